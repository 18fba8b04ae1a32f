package topicmap

import (
	"github.com/orneryd/tmengine/pkg/literal"
)

// Name is a typed, scoped string name of a topic.
type Name struct {
	construct

	typ      ID
	scope    *Scope
	value    literal.Literal
	variants idSet
}

// Topic returns the owning topic.
func (n *Name) Topic() *Topic { return n.tm.topic(n.parent) }

// Type returns the name type.
func (n *Name) Type() *Topic { return n.tm.topic(n.typ) }

// SetType changes the name type; nil is rejected.
func (n *Name) SetType(typ *Topic) error { return n.tm.setType(n, &n.typ, typ, false) }

// Value returns the name string.
func (n *Name) Value() string { return n.value.Value() }

// SetValue replaces the name string.
func (n *Name) SetValue(value string) error {
	return n.tm.setValue(n, &n.value, literal.String(value))
}

// Scope returns the canonical scope.
func (n *Name) Scope() *Scope { return n.scope }

// Themes returns the scope's themes.
func (n *Name) Themes() []*Topic { return n.scope.Themes() }

// AddTheme adds theme to the name's scope. It is rejected when a variant
// would no longer be more specific than the name, i.e. when theme is the only
// theme the variant adds.
func (n *Name) AddTheme(theme *Topic) error {
	if err := n.check(); err != nil {
		return err
	}
	if err := n.checkMember(theme, "theme"); err != nil {
		return err
	}
	next := n.scope.Add(theme)
	if next == n.scope {
		return nil
	}
	for _, v := range n.Variants() {
		if !n.tm.union(next, v.own).IsStrictSupersetOf(next) {
			return &ModelConstraintError{Construct: v, Reason: "variant scope would not be a strict superset of " + next.String()}
		}
	}
	n.tm.rescope(n, &n.scope, next)
	n.tm.refreshVariants(n)
	return nil
}

// RemoveTheme removes theme from the name's scope. Variants keep their own themes.
func (n *Name) RemoveTheme(theme *Topic) error {
	if err := n.check(); err != nil {
		return err
	}
	next := n.scope.Remove(theme)
	if next == n.scope {
		return nil
	}
	n.tm.rescope(n, &n.scope, next)
	n.tm.refreshVariants(n)
	return nil
}

// refreshVariants recomputes the effective scope of every variant of n.
func (tm *TopicMap) refreshVariants(n *Name) {
	for _, v := range n.Variants() {
		tm.rescope(v, &v.scope, tm.union(n.scope, v.own))
	}
}

// Reifier returns the reifying topic, or nil.
func (n *Name) Reifier() *Topic { return n.reifierTopic() }

// SetReifier binds r as reifier; nil unbinds.
func (n *Name) SetReifier(r *Topic) error { return n.tm.setReifier(n, r) }

// Variants returns the variants in creation order.
func (n *Name) Variants() []*Variant { return resolveAll[*Variant](n.tm, n.variants) }

// CreateVariant adds a variant. Its effective scope is the name's scope plus
// themes, and must be a strict superset of the name's scope.
func (n *Name) CreateVariant(value literal.Literal, themes ...*Topic) (*Variant, error) {
	if err := n.check(); err != nil {
		return nil, err
	}
	if value.IsZero() {
		return nil, &ModelConstraintError{Construct: n, Reason: "variant value must not be empty", Err: ErrNilValue}
	}
	own, err := n.tm.ScopeOf(themes...)
	if err != nil {
		return nil, err
	}
	effective := n.tm.union(n.scope, own)
	if !effective.IsStrictSupersetOf(n.scope) {
		return nil, &ModelConstraintError{Construct: n, Reason: "variant scope " + effective.String() + " is not a strict superset of " + n.scope.String()}
	}
	v := &Variant{value: value}
	v.init(v, KindVariant, n.tm, n.id)
	v.own = n.tm.scopes.acquire(own)
	v.scope = n.tm.scopes.acquire(effective)
	n.variants.add(v.id)
	n.tm.bus.notify(Event{Kind: EventConstructAdded, Construct: v})
	return v, nil
}

// Remove deletes the name and its variants.
func (n *Name) Remove() error {
	if err := n.check(); err != nil {
		return err
	}
	n.tm.dropName(n)
	return nil
}

func (tm *TopicMap) dropName(n *Name) {
	for _, v := range n.Variants() {
		tm.dropVariant(v)
	}
	if n.reifier != 0 {
		tm.bindReifier(n, nil)
	}
	tm.bus.notify(Event{Kind: EventConstructRemoving, Construct: n})
	if t := tm.topic(n.parent); t != nil {
		t.names.remove(n.id)
	}
	tm.scopes.release(n.scope)
	n.removed = true
}

func (tm *TopicMap) moveName(n *Name, t *Topic) {
	old := tm.topic(n.parent)
	if old != nil {
		old.names.remove(n.id)
	}
	n.parent = t.id
	t.names.add(n.id)
	tm.bus.notify(Event{Kind: EventParentChanged, Construct: n, Old: topicValue(old), New: t})
}

// Variant is an alternative form of a name, valid in a more specific scope.
//
// The variant's own themes are kept separately from its effective scope,
// which always includes the parent name's themes.
type Variant struct {
	construct

	own   *Scope
	scope *Scope
	value literal.Literal
}

// Name returns the parent name.
func (v *Variant) Name() *Name {
	n, _ := v.tm.lookup(v.parent).(*Name)
	return n
}

// Value returns the literal value.
func (v *Variant) Value() literal.Literal { return v.value }

// SetValue replaces the value.
func (v *Variant) SetValue(value literal.Literal) error { return v.tm.setValue(v, &v.value, value) }

// Scope returns the effective scope: the name's themes plus the variant's own.
// Merging theme topics can leave it equal to the name's scope; only creation
// and theme edits enforce the strict superset.
func (v *Variant) Scope() *Scope { return v.scope }

// OwnScope returns only the themes added by the variant itself.
func (v *Variant) OwnScope() *Scope { return v.own }

// Themes returns the effective scope's themes.
func (v *Variant) Themes() []*Topic { return v.scope.Themes() }

// AddTheme adds theme to the variant's own themes.
func (v *Variant) AddTheme(theme *Topic) error {
	if err := v.check(); err != nil {
		return err
	}
	if err := v.checkMember(theme, "theme"); err != nil {
		return err
	}
	n := v.Name()
	v.tm.swapScope(&v.own, v.own.Add(theme))
	v.tm.rescope(v, &v.scope, v.tm.union(n.scope, v.own))
	return nil
}

// RemoveTheme removes one of the variant's own themes. Themes inherited from
// the name cannot be removed, and the last theme that distinguishes the
// variant from its name cannot be removed either.
func (v *Variant) RemoveTheme(theme *Topic) error {
	if err := v.check(); err != nil {
		return err
	}
	n := v.Name()
	if !v.own.Contains(theme) {
		if n.scope.Contains(theme) {
			return &ModelConstraintError{Construct: v, Reason: "theme " + theme.label() + " is inherited from the name"}
		}
		return nil
	}
	own := v.own.Remove(theme)
	effective := v.tm.union(n.scope, own)
	if !effective.IsStrictSupersetOf(n.scope) {
		return &ModelConstraintError{Construct: v, Reason: "variant scope would not be a strict superset of " + n.scope.String()}
	}
	v.tm.swapScope(&v.own, own)
	v.tm.rescope(v, &v.scope, effective)
	return nil
}

// Reifier returns the reifying topic, or nil.
func (v *Variant) Reifier() *Topic { return v.reifierTopic() }

// SetReifier binds r as reifier; nil unbinds.
func (v *Variant) SetReifier(r *Topic) error { return v.tm.setReifier(v, r) }

// Remove deletes the variant.
func (v *Variant) Remove() error {
	if err := v.check(); err != nil {
		return err
	}
	v.tm.dropVariant(v)
	return nil
}

func (tm *TopicMap) dropVariant(v *Variant) {
	if v.reifier != 0 {
		tm.bindReifier(v, nil)
	}
	tm.bus.notify(Event{Kind: EventConstructRemoving, Construct: v})
	if n, ok := tm.lookup(v.parent).(*Name); ok {
		n.variants.remove(v.id)
	}
	tm.scopes.release(v.own)
	tm.scopes.release(v.scope)
	v.removed = true
}

func (tm *TopicMap) moveVariant(v *Variant, n *Name) {
	if old, ok := tm.lookup(v.parent).(*Name); ok {
		old.variants.remove(v.id)
	}
	v.parent = n.id
	n.variants.add(v.id)
	tm.rescope(v, &v.scope, tm.union(n.scope, v.own))
	tm.bus.notify(Event{Kind: EventParentChanged, Construct: v, New: n})
}
