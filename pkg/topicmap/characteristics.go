package topicmap

import (
	"github.com/orneryd/tmengine/pkg/literal"
)

// setType validates and commits a type change. optional allows nil, which
// only associations accept.
func (tm *TopicMap) setType(c Construct, slot *ID, typ *Topic, optional bool) error {
	b := c.base()
	if err := b.check(); err != nil {
		return err
	}
	if typ == nil {
		if !optional {
			return &ModelConstraintError{Construct: c, Reason: "type must not be nil", Err: ErrNilValue}
		}
	} else if err := b.checkMember(typ, "type"); err != nil {
		return err
	}
	tm.retype(c, slot, typ)
	return nil
}

func (tm *TopicMap) retype(c Construct, slot *ID, typ *Topic) {
	if *slot == idOf(typ) {
		return
	}
	old := tm.topic(*slot)
	*slot = idOf(typ)
	tm.bus.notify(Event{Kind: EventTypeChanged, Construct: c, Old: topicValue(old), New: topicValue(typ)})
}

// addTheme and removeTheme serve associations and occurrences; names and
// variants validate the variant scope rule first.
func (tm *TopicMap) addTheme(c Construct, slot **Scope, theme *Topic) error {
	b := c.base()
	if err := b.check(); err != nil {
		return err
	}
	if err := b.checkMember(theme, "theme"); err != nil {
		return err
	}
	tm.rescope(c, slot, (*slot).Add(theme))
	return nil
}

func (tm *TopicMap) removeTheme(c Construct, slot **Scope, theme *Topic) error {
	if err := c.base().check(); err != nil {
		return err
	}
	tm.rescope(c, slot, (*slot).Remove(theme))
	return nil
}

// rescope commits a scope change and notifies the indices.
func (tm *TopicMap) rescope(c Construct, slot **Scope, next *Scope) {
	if old, changed := tm.swapScope(slot, next); changed {
		tm.bus.notify(Event{Kind: EventScopeChanged, Construct: c, Old: old, New: *slot})
	}
}

// swapScope replaces *slot and keeps registry refcounts in step.
func (tm *TopicMap) swapScope(slot **Scope, next *Scope) (*Scope, bool) {
	old := *slot
	if next == old {
		return old, false
	}
	next = tm.scopes.acquire(next)
	if next == old {
		tm.scopes.release(next)
		return old, false
	}
	*slot = next
	tm.scopes.release(old)
	return old, true
}

func (tm *TopicMap) union(a, b *Scope) *Scope {
	if b.IsUnconstrained() {
		return a
	}
	if a.IsUnconstrained() {
		return b
	}
	ids := make([]ID, 0, len(a.themes)+len(b.themes))
	ids = append(append(ids, a.themes...), b.themes...)
	return tm.scopes.canonical(ids)
}

func (tm *TopicMap) setValue(c Construct, slot *literal.Literal, value literal.Literal) error {
	if err := c.base().check(); err != nil {
		return err
	}
	if value.IsZero() {
		return &ModelConstraintError{Construct: c, Reason: "value must not be empty", Err: ErrNilValue}
	}
	if *slot == value {
		return nil
	}
	old := *slot
	*slot = value
	tm.bus.notify(Event{Kind: EventValueChanged, Construct: c, Old: old, New: value})
	return nil
}

// Occurrence is a typed, scoped literal property of a topic.
type Occurrence struct {
	construct

	typ   ID
	scope *Scope
	value literal.Literal
}

// Topic returns the owning topic.
func (o *Occurrence) Topic() *Topic { return o.tm.topic(o.parent) }

// Type returns the occurrence type.
func (o *Occurrence) Type() *Topic { return o.tm.topic(o.typ) }

// SetType changes the occurrence type; nil is rejected.
func (o *Occurrence) SetType(typ *Topic) error { return o.tm.setType(o, &o.typ, typ, false) }

// Scope returns the canonical scope.
func (o *Occurrence) Scope() *Scope { return o.scope }

// Themes returns the scope's themes.
func (o *Occurrence) Themes() []*Topic { return o.scope.Themes() }

// AddTheme adds theme to the scope.
func (o *Occurrence) AddTheme(theme *Topic) error { return o.tm.addTheme(o, &o.scope, theme) }

// RemoveTheme removes theme from the scope.
func (o *Occurrence) RemoveTheme(theme *Topic) error { return o.tm.removeTheme(o, &o.scope, theme) }

// Value returns the literal value.
func (o *Occurrence) Value() literal.Literal { return o.value }

// SetValue replaces the value.
func (o *Occurrence) SetValue(value literal.Literal) error { return o.tm.setValue(o, &o.value, value) }

// Reifier returns the reifying topic, or nil.
func (o *Occurrence) Reifier() *Topic { return o.reifierTopic() }

// SetReifier binds r as reifier; nil unbinds.
func (o *Occurrence) SetReifier(r *Topic) error { return o.tm.setReifier(o, r) }

// Remove deletes the occurrence.
func (o *Occurrence) Remove() error {
	if err := o.check(); err != nil {
		return err
	}
	o.tm.dropOccurrence(o)
	return nil
}

func (tm *TopicMap) dropOccurrence(o *Occurrence) {
	if o.reifier != 0 {
		tm.bindReifier(o, nil)
	}
	tm.bus.notify(Event{Kind: EventConstructRemoving, Construct: o})
	if t := tm.topic(o.parent); t != nil {
		t.occurrences.remove(o.id)
	}
	tm.scopes.release(o.scope)
	o.removed = true
}

// moveOccurrence reparents o onto t.
func (tm *TopicMap) moveOccurrence(o *Occurrence, t *Topic) {
	old := tm.topic(o.parent)
	if old != nil {
		old.occurrences.remove(o.id)
	}
	o.parent = t.id
	t.occurrences.add(o.id)
	tm.bus.notify(Event{Kind: EventParentChanged, Construct: o, Old: topicValue(old), New: t})
}
