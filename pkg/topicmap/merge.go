package topicmap

import (
	"go.uber.org/zap"

	"github.com/orneryd/tmengine/pkg/literal"
)

// merger carries the work of one merge or duplicate-removal run.
//
// Moving a topic's characteristics can make other constructs structurally
// equal: two occurrences that differed only in their type, associations that
// differed only in a player. Every construct whose signature may have changed
// is queued in pending and re-examined by settle until nothing collides.
// Topic merges discovered while reconciling (two reifiers of equal
// constructs) are queued in deferred and run from settle too, so the
// recursion depth stays flat.
type merger struct {
	tm       *TopicMap
	pending  []ID
	queued   idSet
	deferred [][2]*Topic
	stats    DuplicateStats
}

func (tm *TopicMap) newMerger() *merger {
	return &merger{tm: tm, queued: make(idSet)}
}

func (m *merger) touch(c Construct) {
	if c == nil || m.queued.has(c.ID()) {
		return
	}
	m.queued.add(c.ID())
	m.pending = append(m.pending, c.ID())
}

// mergeTopics merges source into target and settles every cascade.
func (tm *TopicMap) mergeTopics(source, target *Topic) error {
	if source == target {
		return nil
	}
	if source.tm != target.tm {
		return &ModelConstraintError{Construct: target, Reason: "cannot merge " + source.label(), Err: ErrForeignConstruct}
	}
	if source.removed || target.removed {
		return &ModelConstraintError{Construct: target, Reason: "cannot merge " + source.label(), Err: ErrRemoved}
	}
	if err := checkReification(source, target); err != nil {
		return err
	}
	m := tm.newMerger()
	if err := m.topic(source, target); err != nil {
		return err
	}
	return m.settle()
}

// checkReification rejects a merge of two topics reifying different constructs.
func checkReification(source, target *Topic) error {
	if source.reified != 0 && target.reified != 0 && source.reified != target.reified {
		tm := target.tm
		return &ModelConstraintError{
			Construct: target,
			Reason: "topics reify different constructs (" + describe(tm.lookup(target.reified)) +
				" and " + describe(tm.lookup(source.reified)) + ")",
			Err: ErrReificationConflict,
		}
	}
	return nil
}

// topic moves everything from source to target and removes source.
func (m *merger) topic(source, target *Topic) error {
	tm := m.tm
	tm.logger.Debug("merging topics",
		zap.String("source", source.label()),
		zap.String("target", target.label()))
	tm.merges++

	// Identifiers leave source first so the identity checks see no collision
	// with it.
	moves := []struct {
		kind identifierKind
		iris []literal.Literal
		ev   EventKind
	}{
		{itemIdentifier, source.iids, EventItemIdentifierRemoved},
		{subjectIdentifier, source.sids, EventSubjectIdentifierRemoved},
		{subjectLocator, source.slos, EventSubjectLocatorRemoved},
	}
	source.iids, source.sids, source.slos = nil, nil, nil
	for _, mv := range moves {
		for _, iri := range mv.iris {
			tm.bus.notify(Event{Kind: mv.ev, Construct: source, Old: iri})
		}
	}
	for _, mv := range moves {
		for _, iri := range mv.iris {
			if err := tm.addIdentifier(target, iri, mv.kind, true); err != nil {
				return err
			}
		}
	}

	if r, ok := tm.lookup(source.reified).(Reifiable); ok && target.reified == 0 {
		tm.bindReifier(r, target)
	}

	for _, typ := range source.Types() {
		if typ == source {
			typ = target
		}
		target.addType(typ)
	}
	for _, inst := range tm.typeIndex.Topics(source) {
		inst.removeType(source)
		inst.addType(target)
	}
	for _, c := range tm.typeIndex.typedBy(source.id) {
		tm.retype(c, typeSlot(c), target)
		m.touch(c)
	}

	for _, c := range tm.scopedIndex.scopedBy(source.id) {
		m.retheme(c, source, target)
	}

	for _, o := range source.Occurrences() {
		if keep := findEquivalent(tm, target.occurrences, o); keep != nil {
			if err := m.reconcile(keep, o); err != nil {
				return err
			}
		} else {
			tm.moveOccurrence(o, target)
		}
	}
	for _, n := range source.Names() {
		if keep := findEquivalent(tm, target.names, n); keep != nil {
			if err := m.reconcile(keep, n); err != nil {
				return err
			}
		} else {
			tm.moveName(n, target)
		}
	}

	for _, r := range source.RolesPlayed() {
		tm.replay(r, target)
		m.touch(r)
		m.touch(r.Association())
	}

	tm.dropTopic(source, target)
	tm.bus.notify(Event{Kind: EventTopicsMerged, Construct: target, Old: source, New: target})
	return nil
}

// retheme replaces theme source by target in c's scope.
func (m *merger) retheme(c Construct, source, target *Topic) {
	tm := m.tm
	switch c := c.(type) {
	case *Variant:
		if c.own.Contains(source) {
			tm.swapScope(&c.own, c.own.Remove(source).Add(target))
		}
		if n := c.Name(); n != nil {
			tm.rescope(c, &c.scope, tm.union(n.scope, c.own))
		}
	case *Name:
		tm.rescope(c, &c.scope, c.scope.Remove(source).Add(target))
		tm.refreshVariants(c)
		for _, v := range c.Variants() {
			m.touch(v)
		}
	case *Association:
		tm.rescope(c, &c.scope, c.scope.Remove(source).Add(target))
	case *Occurrence:
		tm.rescope(c, &c.scope, c.scope.Remove(source).Add(target))
	}
	m.touch(c)
}

func typeSlot(c Construct) *ID {
	switch c := c.(type) {
	case *Association:
		return &c.typ
	case *Role:
		return &c.typ
	case *Occurrence:
		return &c.typ
	case *Name:
		return &c.typ
	}
	return nil
}

// findEquivalent returns the member of set structurally equal to c, or nil.
func findEquivalent(tm *TopicMap, set idSet, c Construct) Construct {
	sig := SignatureOf(c)
	for _, id := range set.sorted() {
		if id == c.ID() {
			continue
		}
		other := tm.lookup(id)
		if other != nil && SignatureOf(other) == sig && equivalent(other, c) {
			return other
		}
	}
	return nil
}

// reconcile folds dup into keep: item identifiers and the reifier move to
// keep, variants and roles are matched recursively, and dup is removed.
func (m *merger) reconcile(keep, dup Construct) error {
	tm := m.tm
	tm.logger.Debug("reconciling duplicate",
		zap.Stringer("kind", dup.Kind()),
		zap.Uint64("keep", uint64(keep.ID())),
		zap.Uint64("duplicate", uint64(dup.ID())))

	db := dup.base()
	iids := db.iids
	db.iids = nil
	for _, iri := range iids {
		tm.bus.notify(Event{Kind: EventItemIdentifierRemoved, Construct: dup, Old: iri})
	}
	for _, iri := range iids {
		if err := tm.addIdentifier(keep, iri, itemIdentifier, false); err != nil {
			return err
		}
	}

	if r := db.reifierTopic(); r != nil {
		tm.bindReifier(dup.(Reifiable), nil)
		if kr := keep.base().reifierTopic(); kr != nil {
			m.deferred = append(m.deferred, [2]*Topic{r, kr})
		} else {
			tm.bindReifier(keep.(Reifiable), r)
		}
	}

	switch d := dup.(type) {
	case *Name:
		k := keep.(*Name)
		for _, v := range d.Variants() {
			if kv := findEquivalent(tm, k.variants, v); kv != nil {
				if err := m.reconcile(kv, v); err != nil {
					return err
				}
			} else {
				tm.moveVariant(v, k)
			}
		}
		tm.dropName(d)
	case *Association:
		k := keep.(*Association)
		used := make(idSet)
		for _, r := range d.Roles() {
			for _, kr := range k.Roles() {
				if !used.has(kr.id) && kr.typ == r.typ && kr.player == r.player {
					used.add(kr.id)
					if err := m.reconcile(kr, r); err != nil {
						return err
					}
					break
				}
			}
		}
		tm.dropAssociation(d)
	case *Occurrence:
		tm.dropOccurrence(d)
	case *Variant:
		tm.dropVariant(d)
	case *Role:
		tm.dropRole(d)
	}
	db.absorbedBy = keep
	return nil
}

// survivor follows duplicate folding and returns the live construct that
// absorbed c, or c itself.
func survivor(c Construct) Construct {
	for c != nil && c.IsRemoved() {
		c = c.base().absorbedBy
	}
	return c
}

// collapse reconciles a top-level duplicate and counts it.
func (m *merger) collapse(keep, dup Construct) error {
	if err := m.reconcile(keep, dup); err != nil {
		return err
	}
	m.stats.count(dup.Kind())
	return nil
}

// settle runs deferred topic merges and re-examines affected constructs
// until neither queue has work left.
func (m *merger) settle() error {
	tm := m.tm
	for {
		if len(m.deferred) > 0 {
			pair := m.deferred[0]
			m.deferred = m.deferred[1:]
			source, target := pair[0].Current(), pair[1].Current()
			if source == target || source.removed || target.removed {
				continue
			}
			if err := checkReification(source, target); err != nil {
				return err
			}
			if err := m.topic(source, target); err != nil {
				return err
			}
			continue
		}
		if len(m.pending) > 0 {
			id := m.pending[0]
			m.pending = m.pending[1:]
			m.queued.remove(id)
			if err := m.settleConstruct(tm.lookup(id)); err != nil {
				return err
			}
			continue
		}
		return nil
	}
}

// settleConstruct collapses c with an equal sibling, keeping the older one.
func (m *merger) settleConstruct(c Construct) error {
	if c == nil || c.IsRemoved() {
		return nil
	}
	tm := m.tm
	var other Construct
	switch c := c.(type) {
	case *Occurrence:
		if t := c.Topic(); t != nil {
			other = findEquivalent(tm, t.occurrences, c)
		}
	case *Name:
		if t := c.Topic(); t != nil {
			other = findEquivalent(tm, t.names, c)
		}
	case *Variant:
		if n := c.Name(); n != nil {
			other = findEquivalent(tm, n.variants, c)
		}
	case *Role:
		if a := c.Association(); a != nil {
			other = findEquivalent(tm, a.roles, c)
			m.touch(a)
		}
	case *Association:
		other = findEquivalent(tm, m.associationCandidates(c), c)
	}
	if other == nil {
		return nil
	}
	keep, dup := other, c
	if dup.ID() < keep.ID() {
		keep, dup = dup, keep
	}
	return m.collapse(keep, dup)
}

// associationCandidates returns the associations that could equal a: those
// sharing the first role's player, or all associations of a's type when a
// has no roles.
func (m *merger) associationCandidates(a *Association) idSet {
	out := make(idSet)
	roles := a.Roles()
	if len(roles) == 0 {
		for id := range m.tm.typeIndex.associations[a.typ] {
			out.add(id)
		}
		return out
	}
	if p := roles[0].Player(); p != nil {
		for _, r := range p.RolesPlayed() {
			out.add(r.parent)
		}
	}
	return out
}
