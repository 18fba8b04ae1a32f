package topicmap

// TypeInstanceIndex answers "which constructs have this type" without
// scanning the topic map. It is updated synchronously from the topic map's
// events, so it is always consistent with the graph.
//
// Passing a nil type selects untyped topics (and untyped associations).
type TypeInstanceIndex struct {
	tm           *TopicMap
	topics       buckets
	associations buckets
	roles        buckets
	occurrences  buckets
	names        buckets
}

func newTypeInstanceIndex(tm *TopicMap) *TypeInstanceIndex {
	ix := &TypeInstanceIndex{tm: tm}
	ix.reset()
	return ix
}

func (ix *TypeInstanceIndex) reset() {
	ix.topics = make(buckets)
	ix.associations = make(buckets)
	ix.roles = make(buckets)
	ix.occurrences = make(buckets)
	ix.names = make(buckets)
}

// Reindex rebuilds the index from the topic map.
func (ix *TypeInstanceIndex) Reindex() {
	ix.reset()
	for _, c := range ix.tm.identity.byID {
		ix.add(c)
	}
}

func (ix *TypeInstanceIndex) handle(ev Event) error {
	switch ev.Kind {
	case EventConstructAdded:
		ix.add(ev.Construct)
	case EventConstructRemoving:
		ix.remove(ev.Construct)
	case EventTypeAdded:
		t := ev.Construct.(*Topic)
		typ := ev.New.(*Topic)
		if len(t.types) == 1 {
			ix.topics.remove(0, t.id)
		}
		ix.topics.add(typ.id, t.id)
	case EventTypeRemoved:
		t := ev.Construct.(*Topic)
		typ := ev.Old.(*Topic)
		ix.topics.remove(typ.id, t.id)
		if len(t.types) == 0 {
			ix.topics.add(0, t.id)
		}
	case EventTypeChanged:
		b := ix.bucketsOf(ev.Construct)
		if b == nil {
			return nil
		}
		oldType, _ := ev.Old.(*Topic)
		newType, _ := ev.New.(*Topic)
		b.remove(idOf(oldType), ev.Construct.ID())
		b.add(idOf(newType), ev.Construct.ID())
	}
	return nil
}

func (ix *TypeInstanceIndex) bucketsOf(c Construct) buckets {
	switch c.Kind() {
	case KindAssociation:
		return ix.associations
	case KindRole:
		return ix.roles
	case KindOccurrence:
		return ix.occurrences
	case KindName:
		return ix.names
	}
	return nil
}

func typeOf(c Construct) ID {
	switch c := c.(type) {
	case *Association:
		return c.typ
	case *Role:
		return c.typ
	case *Occurrence:
		return c.typ
	case *Name:
		return c.typ
	}
	return 0
}

func (ix *TypeInstanceIndex) add(c Construct) {
	if t, ok := c.(*Topic); ok {
		if len(t.types) == 0 {
			ix.topics.add(0, t.id)
		}
		for typ := range t.types {
			ix.topics.add(typ, t.id)
		}
		return
	}
	if b := ix.bucketsOf(c); b != nil {
		b.add(typeOf(c), c.ID())
	}
}

func (ix *TypeInstanceIndex) remove(c Construct) {
	if t, ok := c.(*Topic); ok {
		ix.topics.remove(0, t.id)
		for typ := range t.types {
			ix.topics.remove(typ, t.id)
		}
		return
	}
	if b := ix.bucketsOf(c); b != nil {
		b.remove(typeOf(c), c.ID())
	}
}

// usedAsType reports whether id types any topic or typed construct.
func (ix *TypeInstanceIndex) usedAsType(id ID) bool {
	return ix.topics.used(id) || ix.associations.used(id) || ix.roles.used(id) ||
		ix.occurrences.used(id) || ix.names.used(id)
}

// typedBy returns every typed construct whose type is id.
func (ix *TypeInstanceIndex) typedBy(id ID) []Construct {
	var out []Construct
	for _, b := range []buckets{ix.associations, ix.roles, ix.occurrences, ix.names} {
		for _, cid := range b[id].sorted() {
			if c := ix.tm.lookup(cid); c != nil {
				out = append(out, c)
			}
		}
	}
	return out
}

// Topics returns the instances of typ, or the untyped topics when typ is nil.
func (ix *TypeInstanceIndex) Topics(typ *Topic) []*Topic {
	return resolveAll[*Topic](ix.tm, ix.topics.lookup(typ))
}

// TopicsByTypes returns the topics that are instances of any of types, or
// of all of them when matchAll is set.
func (ix *TypeInstanceIndex) TopicsByTypes(types []*Topic, matchAll bool) []*Topic {
	return resolveAll[*Topic](ix.tm, ix.topics.combine(types, matchAll))
}

// Associations returns the associations typed typ; nil selects untyped ones.
func (ix *TypeInstanceIndex) Associations(typ *Topic) []*Association {
	return resolveAll[*Association](ix.tm, ix.associations.lookup(typ))
}

// AssociationsByTypes returns the associations typed by any of types.
func (ix *TypeInstanceIndex) AssociationsByTypes(types []*Topic) []*Association {
	return resolveAll[*Association](ix.tm, ix.associations.combine(types, false))
}

// Roles returns the roles typed typ.
func (ix *TypeInstanceIndex) Roles(typ *Topic) []*Role {
	return resolveAll[*Role](ix.tm, ix.roles.lookup(typ))
}

// RolesByTypes returns the roles typed by any of types.
func (ix *TypeInstanceIndex) RolesByTypes(types []*Topic) []*Role {
	return resolveAll[*Role](ix.tm, ix.roles.combine(types, false))
}

// Occurrences returns the occurrences typed typ.
func (ix *TypeInstanceIndex) Occurrences(typ *Topic) []*Occurrence {
	return resolveAll[*Occurrence](ix.tm, ix.occurrences.lookup(typ))
}

// OccurrencesByTypes returns the occurrences typed by any of types.
func (ix *TypeInstanceIndex) OccurrencesByTypes(types []*Topic) []*Occurrence {
	return resolveAll[*Occurrence](ix.tm, ix.occurrences.combine(types, false))
}

// Names returns the names typed typ.
func (ix *TypeInstanceIndex) Names(typ *Topic) []*Name {
	return resolveAll[*Name](ix.tm, ix.names.lookup(typ))
}

// NamesByTypes returns the names typed by any of types.
func (ix *TypeInstanceIndex) NamesByTypes(types []*Topic) []*Name {
	return resolveAll[*Name](ix.tm, ix.names.combine(types, false))
}

// TopicTypes returns every topic used as a topic type.
func (ix *TypeInstanceIndex) TopicTypes() []*Topic { return ix.topics.keys(ix.tm) }

// AssociationTypes returns every topic used as an association type.
func (ix *TypeInstanceIndex) AssociationTypes() []*Topic { return ix.associations.keys(ix.tm) }

// RoleTypes returns every topic used as a role type.
func (ix *TypeInstanceIndex) RoleTypes() []*Topic { return ix.roles.keys(ix.tm) }

// OccurrenceTypes returns every topic used as an occurrence type.
func (ix *TypeInstanceIndex) OccurrenceTypes() []*Topic { return ix.occurrences.keys(ix.tm) }

// NameTypes returns every topic used as a name type.
func (ix *TypeInstanceIndex) NameTypes() []*Topic { return ix.names.keys(ix.tm) }

// associationKeys returns the association type keys in ascending order,
// including 0 for untyped associations.
func (ix *TypeInstanceIndex) associationKeys() []ID {
	set := make(idSet, len(ix.associations))
	for k := range ix.associations {
		set.add(k)
	}
	return set.sorted()
}
