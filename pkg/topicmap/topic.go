package topicmap

import (
	"fmt"
	"slices"

	"github.com/orneryd/tmengine/pkg/literal"
)

// Topic represents a subject of discourse.
//
// A topic is identified by any mix of subject identifiers, subject locators
// and item identifiers. Attaching an identifier already used by another
// topic merges the two (see TopicMap options); the merged-away handle then
// reports IsRemoved and Current returns the survivor.
type Topic struct {
	construct

	sids        []literal.Literal
	slos        []literal.Literal
	types       idSet
	names       idSet
	occurrences idSet
	roles       idSet
	reified     ID
	mergedInto  *Topic
}

// SubjectIdentifiers returns a copy of the subject identifiers.
func (t *Topic) SubjectIdentifiers() []literal.Literal { return slices.Clone(t.sids) }

// SubjectLocators returns a copy of the subject locators.
func (t *Topic) SubjectLocators() []literal.Literal { return slices.Clone(t.slos) }

// AddSubjectIdentifier attaches sid. A topic already identified by sid, by
// subject identifier or item identifier, is merged into t when auto-merge is
// enabled.
func (t *Topic) AddSubjectIdentifier(sid literal.Literal) error {
	return t.tm.addIdentifier(t, sid, subjectIdentifier, t.tm.opts.AutoMerge)
}

// RemoveSubjectIdentifier detaches sid.
func (t *Topic) RemoveSubjectIdentifier(sid literal.Literal) error {
	return t.removeIdentifier(&t.sids, sid, EventSubjectIdentifierRemoved)
}

// AddSubjectLocator attaches slo, merging with a topic that already has it
// when auto-merge is enabled.
func (t *Topic) AddSubjectLocator(slo literal.Literal) error {
	return t.tm.addIdentifier(t, slo, subjectLocator, t.tm.opts.AutoMerge)
}

// RemoveSubjectLocator detaches slo.
func (t *Topic) RemoveSubjectLocator(slo literal.Literal) error {
	return t.removeIdentifier(&t.slos, slo, EventSubjectLocatorRemoved)
}

func (t *Topic) removeIdentifier(set *[]literal.Literal, iri literal.Literal, kind EventKind) error {
	if err := t.check(); err != nil {
		return err
	}
	i := slices.Index(*set, iri)
	if i < 0 {
		return nil
	}
	*set = slices.Delete(*set, i, i+1)
	t.tm.bus.notify(Event{Kind: kind, Construct: t, Old: iri})
	return nil
}

// Types returns the topic's types in creation order.
func (t *Topic) Types() []*Topic { return resolveAll[*Topic](t.tm, t.types) }

// HasType reports whether typ is one of the topic's types.
func (t *Topic) HasType(typ *Topic) bool { return typ != nil && t.types.has(typ.id) }

// AddType makes t an instance of typ.
func (t *Topic) AddType(typ *Topic) error {
	if err := t.check(); err != nil {
		return err
	}
	if err := t.checkMember(typ, "type"); err != nil {
		return err
	}
	t.addType(typ)
	return nil
}

func (t *Topic) addType(typ *Topic) {
	if t.types.has(typ.id) {
		return
	}
	t.types.add(typ.id)
	t.tm.bus.notify(Event{Kind: EventTypeAdded, Construct: t, New: typ})
}

// RemoveType removes typ from the topic's types.
func (t *Topic) RemoveType(typ *Topic) error {
	if err := t.check(); err != nil {
		return err
	}
	if typ == nil || !t.types.has(typ.id) {
		return nil
	}
	t.removeType(typ)
	return nil
}

func (t *Topic) removeType(typ *Topic) {
	t.types.remove(typ.id)
	t.tm.bus.notify(Event{Kind: EventTypeRemoved, Construct: t, Old: typ})
}

// Names returns all names of the topic.
func (t *Topic) Names() []*Name { return resolveAll[*Name](t.tm, t.names) }

// NamesByType returns the names typed typ.
func (t *Topic) NamesByType(typ *Topic) []*Name {
	return slices.DeleteFunc(t.Names(), func(n *Name) bool { return n.typ != idOf(typ) })
}

// Occurrences returns all occurrences of the topic.
func (t *Topic) Occurrences() []*Occurrence { return resolveAll[*Occurrence](t.tm, t.occurrences) }

// OccurrencesByType returns the occurrences typed typ.
func (t *Topic) OccurrencesByType(typ *Topic) []*Occurrence {
	return slices.DeleteFunc(t.Occurrences(), func(o *Occurrence) bool { return o.typ != idOf(typ) })
}

// RolesPlayed returns the roles played by the topic.
func (t *Topic) RolesPlayed() []*Role { return resolveAll[*Role](t.tm, t.roles) }

// RolesPlayedByType returns the roles of type typ played by the topic.
func (t *Topic) RolesPlayedByType(typ *Topic) []*Role {
	return slices.DeleteFunc(t.RolesPlayed(), func(r *Role) bool { return r.typ != idOf(typ) })
}

// Reified returns the construct this topic reifies, or nil.
func (t *Topic) Reified() Construct {
	if t.removed {
		return nil
	}
	return t.tm.lookup(t.reified)
}

// CreateName adds a name. A nil typ selects the default name type
// (PSITopicName).
func (t *Topic) CreateName(typ *Topic, value string, themes ...*Topic) (*Name, error) {
	if err := t.check(); err != nil {
		return nil, err
	}
	if typ == nil {
		var err error
		if typ, err = t.tm.defaultNameType(); err != nil {
			return nil, err
		}
	} else if err := t.checkMember(typ, "name type"); err != nil {
		return nil, err
	}
	scope, err := t.tm.ScopeOf(themes...)
	if err != nil {
		return nil, err
	}
	n := &Name{typ: typ.id, value: literal.String(value), variants: make(idSet)}
	n.init(n, KindName, t.tm, t.id)
	n.scope = t.tm.scopes.acquire(scope)
	t.names.add(n.id)
	t.tm.bus.notify(Event{Kind: EventConstructAdded, Construct: n})
	return n, nil
}

// CreateOccurrence adds an occurrence with a typed literal value.
func (t *Topic) CreateOccurrence(typ *Topic, value literal.Literal, themes ...*Topic) (*Occurrence, error) {
	if err := t.check(); err != nil {
		return nil, err
	}
	if err := t.checkMember(typ, "occurrence type"); err != nil {
		return nil, err
	}
	if value.IsZero() {
		return nil, &ModelConstraintError{Construct: t, Reason: "occurrence value must not be empty", Err: ErrNilValue}
	}
	scope, err := t.tm.ScopeOf(themes...)
	if err != nil {
		return nil, err
	}
	o := &Occurrence{typ: typ.id, value: value}
	o.init(o, KindOccurrence, t.tm, t.id)
	o.scope = t.tm.scopes.acquire(scope)
	t.occurrences.add(o.id)
	t.tm.bus.notify(Event{Kind: EventConstructAdded, Construct: o})
	return o, nil
}

// MergeIn merges other into t. t survives and other is removed; every
// reference to other is redirected to t. Merging a topic with itself is a
// no-op.
func (t *Topic) MergeIn(other *Topic) error {
	if err := t.check(); err != nil {
		return err
	}
	if err := t.checkMember(other, "merge source"); err != nil {
		return err
	}
	return t.tm.mergeTopics(other, t)
}

// Current follows merge redirections and returns the topic that absorbed t,
// or t itself.
func (t *Topic) Current() *Topic {
	for t.mergedInto != nil {
		t = t.mergedInto
	}
	return t
}

// Remove deletes the topic with its names and occurrences. It fails with
// ErrTopicInUse while the topic is a type, theme, role player or reifier.
func (t *Topic) Remove() error {
	if err := t.check(); err != nil {
		return err
	}
	if why := t.usage(); why != "" {
		return &ModelConstraintError{Construct: t, Reason: why, Err: ErrTopicInUse}
	}
	t.tm.dropTopic(t, nil)
	return nil
}

func (t *Topic) usage() string {
	switch {
	case len(t.roles) > 0:
		return "plays roles"
	case t.reified != 0:
		return "reifies " + describe(t.tm.lookup(t.reified))
	case t.tm.typeIndex.usedAsType(t.id):
		return "used as a type"
	case t.tm.scopedIndex.usedAsTheme(t.id):
		return "used as a theme"
	}
	return ""
}

// dropTopic detaches t and its characteristics. When into is set, t was
// merged and Current() redirects there.
func (tm *TopicMap) dropTopic(t *Topic, into *Topic) {
	for _, n := range t.Names() {
		tm.dropName(n)
	}
	for _, o := range t.Occurrences() {
		tm.dropOccurrence(o)
	}
	if r := tm.lookup(t.reified); r != nil {
		tm.bindReifier(r.(Reifiable), nil)
	}
	tm.bus.notify(Event{Kind: EventConstructRemoving, Construct: t})
	tm.topics.remove(t.id)
	t.removed = true
	t.mergedInto = into
	if tm.nameType == t {
		tm.nameType = into
	}
}

// label returns the most readable identifier of the topic.
func (t *Topic) label() string {
	switch {
	case len(t.sids) > 0:
		return t.sids[0].Value()
	case len(t.slos) > 0:
		return "=" + t.slos[0].Value()
	case len(t.iids) > 0:
		return "^" + t.iids[0].Value()
	}
	return fmt.Sprintf("topic %d", t.id)
}

func (t *Topic) String() string { return t.label() }

func idOf(t *Topic) ID {
	if t == nil {
		return 0
	}
	return t.id
}

func resolveAll[T Construct](tm *TopicMap, ids idSet) []T {
	out := make([]T, 0, len(ids))
	for _, id := range ids.sorted() {
		if c, ok := tm.lookup(id).(T); ok {
			out = append(out, c)
		}
	}
	return out
}
