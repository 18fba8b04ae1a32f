package topicmap

// Association is an n-ary, typed and scoped relationship between topics.
// Each participant is represented by a Role.
type Association struct {
	construct

	typ   ID
	scope *Scope
	roles idSet
}

// Type returns the association type, or nil for an untyped association.
func (a *Association) Type() *Topic { return a.tm.topic(a.typ) }

// SetType changes the association type; nil makes it untyped.
func (a *Association) SetType(typ *Topic) error { return a.tm.setType(a, &a.typ, typ, true) }

// Scope returns the canonical scope.
func (a *Association) Scope() *Scope { return a.scope }

// Themes returns the scope's themes.
func (a *Association) Themes() []*Topic { return a.scope.Themes() }

// AddTheme adds theme to the scope.
func (a *Association) AddTheme(theme *Topic) error { return a.tm.addTheme(a, &a.scope, theme) }

// RemoveTheme removes theme from the scope.
func (a *Association) RemoveTheme(theme *Topic) error {
	return a.tm.removeTheme(a, &a.scope, theme)
}

// Reifier returns the reifying topic, or nil.
func (a *Association) Reifier() *Topic { return a.reifierTopic() }

// SetReifier binds r as reifier; nil unbinds.
func (a *Association) SetReifier(r *Topic) error { return a.tm.setReifier(a, r) }

// Roles returns the roles in creation order.
func (a *Association) Roles() []*Role { return resolveAll[*Role](a.tm, a.roles) }

// RolesByType returns the roles typed typ.
func (a *Association) RolesByType(typ *Topic) []*Role {
	var out []*Role
	for _, r := range a.Roles() {
		if r.typ == idOf(typ) {
			out = append(out, r)
		}
	}
	return out
}

// RoleTypes returns the distinct role types.
func (a *Association) RoleTypes() []*Topic {
	seen := make(idSet)
	for id := range a.roles {
		if r, ok := a.tm.lookup(id).(*Role); ok {
			seen.add(r.typ)
		}
	}
	return resolveAll[*Topic](a.tm, seen)
}

// CreateRole adds a role of type typ played by player.
func (a *Association) CreateRole(typ, player *Topic) (*Role, error) {
	if err := a.check(); err != nil {
		return nil, err
	}
	if err := a.checkMember(typ, "role type"); err != nil {
		return nil, err
	}
	if err := a.checkMember(player, "role player"); err != nil {
		return nil, err
	}
	r := &Role{typ: typ.id, player: player.id}
	r.init(r, KindRole, a.tm, a.id)
	a.roles.add(r.id)
	player.roles.add(r.id)
	a.tm.bus.notify(Event{Kind: EventConstructAdded, Construct: r})
	return r, nil
}

// Remove deletes the association and its roles.
func (a *Association) Remove() error {
	if err := a.check(); err != nil {
		return err
	}
	a.tm.dropAssociation(a)
	return nil
}

func (tm *TopicMap) dropAssociation(a *Association) {
	for _, r := range a.Roles() {
		tm.dropRole(r)
	}
	if a.reifier != 0 {
		tm.bindReifier(a, nil)
	}
	tm.bus.notify(Event{Kind: EventConstructRemoving, Construct: a})
	tm.assocs.remove(a.id)
	tm.scopes.release(a.scope)
	a.removed = true
}

// Role is the participation of a player topic in an association.
type Role struct {
	construct

	typ    ID
	player ID
}

// Association returns the parent association.
func (r *Role) Association() *Association {
	a, _ := r.tm.lookup(r.parent).(*Association)
	return a
}

// Type returns the role type.
func (r *Role) Type() *Topic { return r.tm.topic(r.typ) }

// SetType changes the role type; nil is rejected.
func (r *Role) SetType(typ *Topic) error { return r.tm.setType(r, &r.typ, typ, false) }

// Player returns the topic playing the role.
func (r *Role) Player() *Topic { return r.tm.topic(r.player) }

// SetPlayer changes the role player; nil is rejected.
func (r *Role) SetPlayer(player *Topic) error {
	if err := r.check(); err != nil {
		return err
	}
	if err := r.checkMember(player, "role player"); err != nil {
		return err
	}
	r.tm.replay(r, player)
	return nil
}

// replay moves the role to a new player without checks.
func (tm *TopicMap) replay(r *Role, player *Topic) {
	if r.player == player.id {
		return
	}
	old := tm.topic(r.player)
	if old != nil {
		old.roles.remove(r.id)
	}
	r.player = player.id
	player.roles.add(r.id)
	tm.bus.notify(Event{Kind: EventPlayerChanged, Construct: r, Old: topicValue(old), New: player})
}

// Reifier returns the reifying topic, or nil.
func (r *Role) Reifier() *Topic { return r.reifierTopic() }

// SetReifier binds t as reifier; nil unbinds.
func (r *Role) SetReifier(t *Topic) error { return r.tm.setReifier(r, t) }

// Remove deletes the role from its association.
func (r *Role) Remove() error {
	if err := r.check(); err != nil {
		return err
	}
	r.tm.dropRole(r)
	return nil
}

func (tm *TopicMap) dropRole(r *Role) {
	if r.reifier != 0 {
		tm.bindReifier(r, nil)
	}
	tm.bus.notify(Event{Kind: EventConstructRemoving, Construct: r})
	if a, ok := tm.lookup(r.parent).(*Association); ok {
		a.roles.remove(r.id)
	}
	if p := tm.topic(r.player); p != nil {
		p.roles.remove(r.id)
	}
	r.removed = true
}
