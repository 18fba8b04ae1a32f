package topicmap

import (
	"slices"

	"go.uber.org/zap"

	"github.com/orneryd/tmengine/pkg/literal"
)

// MergeIn copies every topic and association of other into tm.
//
// A topic of other that shares a subject identifier, subject locator or item
// identifier with a topic of tm merges into it; all other constructs are
// copied and then folded with their structural duplicates. Only copies are
// folded: duplicates tm already held before the call stay in place. other is
// not modified.
//
// Collisions that cannot be resolved by merging topics are detected before
// anything is copied: an item identifier of a non-topic construct of other
// that already names a construct of tm is only accepted when that construct
// is the equivalent of the one being copied, and the same holds for a reifier
// that already reifies something in tm.
func (tm *TopicMap) MergeIn(other *TopicMap) error {
	if other == nil {
		return &ModelConstraintError{Construct: tm, Reason: "source topic map must not be nil", Err: ErrNilValue}
	}
	if other == tm {
		return nil
	}
	if err := tm.check(); err != nil {
		return err
	}
	if err := other.check(); err != nil {
		return err
	}

	c := &copier{src: other, dst: tm, topics: make(map[ID]*Topic), copied: make(idSet)}
	if err := c.precheck(); err != nil {
		return err
	}
	if err := c.run(); err != nil {
		return err
	}
	stats, err := c.removeDuplicates()
	if err != nil {
		return err
	}
	if err := c.bindReifiers(); err != nil {
		return err
	}
	tm.logger.Info("topic map merged",
		zap.String("source", other.baseLoc.Value()),
		zap.Int("topics", len(other.topics)),
		zap.Int("associations", len(other.assocs)),
		zap.Stringer("duplicates", stats))
	return nil
}

type pendingReifier struct {
	reifier ID
	copy    Construct
}

type copier struct {
	src, dst *TopicMap
	topics   map[ID]*Topic
	reifiers []pendingReifier
	copied   idSet
	assocs   []*Association
}

// existing returns the topic of dst that t would merge into, or nil.
func (c *copier) existing(t *Topic) *Topic {
	dst := c.dst
	byIID := func(iri literal.Literal) *Topic {
		x, _ := dst.ConstructByItemIdentifier(iri).(*Topic)
		return x
	}
	for _, iri := range t.sids {
		if x := dst.TopicBySubjectIdentifier(iri); x != nil {
			return x
		}
		if x := byIID(iri); x != nil {
			return x
		}
	}
	for _, iri := range t.slos {
		if x := dst.TopicBySubjectLocator(iri); x != nil {
			return x
		}
	}
	for _, iri := range t.iids {
		if x := byIID(iri); x != nil {
			return x
		}
		if x := dst.TopicBySubjectIdentifier(iri); x != nil {
			return x
		}
	}
	return nil
}

func (c *copier) precheck() error {
	for _, x := range c.src.identity.byID {
		if t, ok := x.(*Topic); ok {
			for _, iri := range t.iids {
				if d := c.dst.ConstructByItemIdentifier(iri); d != nil && d.Kind() != KindTopic {
					return &IdentityConstraintError{Reporter: t, Existing: d, Locator: iri}
				}
			}
			continue
		}
		for _, iri := range x.base().iids {
			if d := c.dst.ConstructByItemIdentifier(iri); d != nil && !c.equivalentIn(x, d) {
				return &IdentityConstraintError{Reporter: x, Existing: d, Locator: iri}
			}
		}
		r := c.src.topic(x.base().reifier)
		if r == nil {
			continue
		}
		d := c.existing(r)
		if d == nil || d.reified == 0 {
			continue
		}
		if _, isMap := x.(*TopicMap); isMap && d.reified == c.dst.id {
			continue
		}
		if !c.equivalentIn(x, c.dst.lookup(d.reified)) {
			return &ModelConstraintError{
				Construct: x,
				Reason:    "reifier " + r.label() + " already reifies " + describe(c.dst.lookup(d.reified)),
				Err:       ErrReificationConflict,
			}
		}
	}
	return nil
}

// equivalentIn reports whether the src construct x is the structural
// equivalent of the dst construct d once src topics are mapped onto dst.
func (c *copier) equivalentIn(x, d Construct) bool {
	if d == nil || x.Kind() != d.Kind() {
		return false
	}
	switch x := x.(type) {
	case *TopicMap:
		return true
	case *Occurrence:
		d := d.(*Occurrence)
		return x.value == d.value && c.sameTopic(x.typ, d.typ) && c.sameScope(x.scope, d.scope) &&
			c.sameTopic(x.parent, d.parent)
	case *Name:
		d := d.(*Name)
		return x.value == d.value && c.sameTopic(x.typ, d.typ) && c.sameScope(x.scope, d.scope) &&
			c.sameTopic(x.parent, d.parent)
	case *Variant:
		d := d.(*Variant)
		return x.value == d.value && c.sameScope(x.scope, d.scope) &&
			c.equivalentIn(c.src.lookup(x.parent), c.dst.lookup(d.parent))
	case *Role:
		d := d.(*Role)
		return c.sameTopic(x.typ, d.typ) && c.sameTopic(x.player, d.player) &&
			c.equivalentIn(c.src.lookup(x.parent), c.dst.lookup(d.parent))
	case *Association:
		d := d.(*Association)
		if !c.sameTopic(x.typ, d.typ) || !c.sameScope(x.scope, d.scope) || len(x.roles) != len(d.roles) {
			return false
		}
		pairs := make([]rolePair, 0, len(x.roles))
		for _, r := range x.Roles() {
			typ, player := c.mapped(r.typ), c.mapped(r.player)
			if typ == 0 || player == 0 {
				return false
			}
			pairs = append(pairs, rolePair{typ, player})
		}
		slices.SortFunc(pairs, compareRolePairs)
		return slices.Equal(pairs, rolePairs(d))
	}
	return false
}

// mapped returns the dst topic ID the src topic id would merge into, or 0.
func (c *copier) mapped(id ID) ID {
	t := c.src.topic(id)
	if t == nil {
		return 0
	}
	return idOf(c.existing(t))
}

func (c *copier) sameTopic(srcID, dstID ID) bool {
	if srcID == 0 || dstID == 0 {
		return srcID == dstID
	}
	return c.mapped(srcID) == dstID
}

func (c *copier) sameScope(s, d *Scope) bool {
	if s.Len() != d.Len() {
		return false
	}
	for _, id := range s.themes {
		m := c.mapped(id)
		if m == 0 || !d.containsID(m) {
			return false
		}
	}
	return true
}

func (c *copier) topic(id ID) *Topic {
	if t := c.topics[id]; t != nil {
		return t.Current()
	}
	return nil
}

func (c *copier) themes(s *Scope) []*Topic {
	out := make([]*Topic, 0, s.Len())
	for _, id := range s.themes {
		out = append(out, c.topic(id))
	}
	return out
}

func (c *copier) run() error {
	src := c.src.Topics()
	for _, t := range src {
		dt, err := c.copyIdentity(t)
		if err != nil {
			return err
		}
		c.topics[t.id] = dt
	}
	for _, t := range src {
		dt := c.topic(t.id)
		for id := range t.types {
			dt.addType(c.topic(id))
		}
		for _, n := range t.Names() {
			if err := c.copyName(n, dt); err != nil {
				return err
			}
		}
		for _, o := range t.Occurrences() {
			do, err := dt.CreateOccurrence(c.topic(o.typ), o.value, c.themes(o.scope)...)
			if err != nil {
				return err
			}
			if err := c.finish(o, do); err != nil {
				return err
			}
		}
	}
	for _, a := range c.src.Associations() {
		if err := c.copyAssociation(a); err != nil {
			return err
		}
	}
	return c.finish(c.src, c.dst)
}

func (c *copier) copyIdentity(t *Topic) (*Topic, error) {
	dst := c.dst
	target := c.existing(t)
	if target == nil {
		if len(t.iids)+len(t.sids)+len(t.slos) == 0 {
			return dst.CreateTopic()
		}
		target = dst.newTopic()
	}
	for _, set := range []struct {
		kind identifierKind
		iris []literal.Literal
	}{{itemIdentifier, t.iids}, {subjectIdentifier, t.sids}, {subjectLocator, t.slos}} {
		for _, iri := range set.iris {
			if err := dst.addIdentifier(target, iri, set.kind, true); err != nil {
				return nil, err
			}
		}
	}
	return target.Current(), nil
}

func (c *copier) copyName(n *Name, dt *Topic) error {
	dn, err := dt.CreateName(c.topic(n.typ), n.Value(), c.themes(n.scope)...)
	if err != nil {
		return err
	}
	if err := c.finish(n, dn); err != nil {
		return err
	}
	for _, v := range n.Variants() {
		dv, err := dn.CreateVariant(v.value, c.themes(v.own)...)
		if err != nil {
			return err
		}
		if err := c.finish(v, dv); err != nil {
			return err
		}
	}
	return nil
}

func (c *copier) copyAssociation(a *Association) error {
	da, err := c.dst.CreateAssociation(c.topic(a.typ), c.themes(a.scope)...)
	if err != nil {
		return err
	}
	if err := c.finish(a, da); err != nil {
		return err
	}
	c.assocs = append(c.assocs, da)
	for _, r := range a.Roles() {
		dr, err := da.CreateRole(c.topic(r.typ), c.topic(r.player))
		if err != nil {
			return err
		}
		if err := c.finish(r, dr); err != nil {
			return err
		}
	}
	return nil
}

// finish copies item identifiers and records the reifier of x for its copy
// d. Identifiers already bound in dst belong to the equivalent construct d
// will be folded into.
func (c *copier) finish(x, d Construct) error {
	c.copied.add(d.ID())
	for _, iri := range x.base().iids {
		if c.dst.ConstructByItemIdentifier(iri) != nil {
			continue
		}
		if err := c.dst.addIdentifier(d, iri, itemIdentifier, false); err != nil {
			return err
		}
	}
	if r := x.base().reifier; r != 0 {
		c.reifiers = append(c.reifiers, pendingReifier{reifier: r, copy: d})
	}
	return nil
}

// bindReifiers attaches reifiers to the surviving copies. A copy that was
// folded into a construct with its own reifier merges the two reifiers.
func (c *copier) bindReifiers() error {
	for _, p := range c.reifiers {
		d, ok := survivor(p.copy).(Reifiable)
		if !ok {
			continue
		}
		r := c.topic(p.reifier)
		if r == nil {
			continue
		}
		switch cur := d.Reifier(); {
		case cur == r:
		case cur == nil:
			if err := c.dst.setReifier(d, r); err != nil {
				return err
			}
		default:
			if err := c.dst.mergeTopics(r, cur); err != nil {
				return err
			}
		}
	}
	return nil
}

// removeDuplicates folds every copy into the oldest structurally equal
// construct of dst.
func (c *copier) removeDuplicates() (DuplicateStats, error) {
	m := c.dst.newMerger()
	fold := func(x Construct) bool { return c.copied.has(x.ID()) }

	done := make(idSet)
	for _, t := range c.src.Topics() {
		dt := c.topic(t.id)
		if dt == nil || dt.removed || done.has(dt.id) {
			continue
		}
		done.add(dt.id)
		for _, n := range dt.Names() {
			if err := dedupeIf(m, n.Variants(), fold); err != nil {
				return m.stats, err
			}
		}
		if err := dedupeIf(m, dt.Names(), fold); err != nil {
			return m.stats, err
		}
		if err := dedupeIf(m, dt.Occurrences(), fold); err != nil {
			return m.stats, err
		}
	}

	groups := make(idSet)
	for _, a := range c.assocs {
		if a.removed {
			continue
		}
		if err := dedupe(m, a.Roles()); err != nil {
			return m.stats, err
		}
		typ := a.Type()
		if groups.has(idOf(typ)) {
			continue
		}
		groups.add(idOf(typ))
		if err := dedupeIf(m, c.dst.typeIndex.Associations(typ), fold); err != nil {
			return m.stats, err
		}
	}
	err := m.settle()
	return m.stats, err
}
