package topicmap

import (
	"fmt"
	"slices"
	"sync/atomic"

	"github.com/orneryd/tmengine/pkg/literal"
)

// ID is the process-unique internal identifier of a construct.
//
// Every cross-reference inside a topic map (role player, type, theme,
// reifier, reified, parent) is stored as an ID and resolved through the
// owning TopicMap's arena, so a merge can repoint references without leaving
// dangling pointers behind. ID 0 means "no construct".
type ID uint64

var idSeq atomic.Uint64

func nextID() ID {
	return ID(idSeq.Add(1))
}

// Kind enumerates the closed set of construct variants.
type Kind uint8

const (
	KindTopicMap Kind = iota + 1
	KindTopic
	KindAssociation
	KindRole
	KindOccurrence
	KindName
	KindVariant
)

func (k Kind) String() string {
	switch k {
	case KindTopicMap:
		return "topic map"
	case KindTopic:
		return "topic"
	case KindAssociation:
		return "association"
	case KindRole:
		return "role"
	case KindOccurrence:
		return "occurrence"
	case KindName:
		return "name"
	case KindVariant:
		return "variant"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Construct is implemented by exactly seven types: *TopicMap, *Topic,
// *Association, *Role, *Occurrence, *Name and *Variant. The unexported
// method keeps the set closed, so type switches over Construct are
// exhaustive.
type Construct interface {
	ID() ID
	Kind() Kind
	TopicMap() *TopicMap
	Parent() Construct
	ItemIdentifiers() []literal.Literal
	AddItemIdentifier(iri literal.Literal) error
	RemoveItemIdentifier(iri literal.Literal) error
	Remove() error
	IsRemoved() bool

	base() *construct
}

// Reifiable constructs can be bound to a reifying topic.
type Reifiable interface {
	Construct
	Reifier() *Topic
	SetReifier(reifier *Topic) error
}

// Typed constructs carry a type topic.
type Typed interface {
	Construct
	Type() *Topic
	SetType(typ *Topic) error
}

// Scoped constructs carry a canonical Scope.
type Scoped interface {
	Construct
	Scope() *Scope
	Themes() []*Topic
	AddTheme(theme *Topic) error
	RemoveTheme(theme *Topic) error
}

// construct holds the state shared by every variant. self points back at
// the enclosing value so promoted methods can report the concrete construct.
type construct struct {
	id      ID
	kind    Kind
	tm      *TopicMap
	self    Construct
	parent  ID
	iids    []literal.Literal
	reifier ID
	removed bool

	// absorbedBy is set when a duplicate was folded into another construct.
	absorbedBy Construct
}

func (c *construct) init(self Construct, kind Kind, tm *TopicMap, parent ID) {
	c.id = nextID()
	c.kind = kind
	c.tm = tm
	c.self = self
	c.parent = parent
}

func (c *construct) base() *construct { return c }

// ID returns the process-unique identifier.
func (c *construct) ID() ID { return c.id }

// Kind returns the construct variant.
func (c *construct) Kind() Kind { return c.kind }

// TopicMap returns the owning topic map.
func (c *construct) TopicMap() *TopicMap { return c.tm }

// Parent returns the owning construct, or nil for a topic map and for removed constructs.
func (c *construct) Parent() Construct {
	if c.removed || c.parent == 0 {
		return nil
	}
	return c.tm.lookup(c.parent)
}

// IsRemoved reports whether the construct was removed or merged away.
func (c *construct) IsRemoved() bool { return c.removed }

// ItemIdentifiers returns a copy of the item identifiers.
func (c *construct) ItemIdentifiers() []literal.Literal {
	return slices.Clone(c.iids)
}

// AddItemIdentifier attaches iri to the construct.
//
// If another topic already uses iri as item identifier or subject identifier
// and this construct is a topic, the two topics are merged when AutoMerge is
// enabled (the receiver survives); otherwise an *IdentityConstraintError is
// returned.
func (c *construct) AddItemIdentifier(iri literal.Literal) error {
	return c.tm.addItemIdentifier(c.self, iri)
}

// RemoveItemIdentifier detaches iri from the construct. Removing an absent
// identifier is a no-op.
func (c *construct) RemoveItemIdentifier(iri literal.Literal) error {
	if err := c.check(); err != nil {
		return err
	}
	i := slices.Index(c.iids, iri)
	if i < 0 {
		return nil
	}
	c.iids = slices.Delete(c.iids, i, i+1)
	c.tm.bus.notify(Event{Kind: EventItemIdentifierRemoved, Construct: c.self, Old: iri})
	return nil
}

func (c *construct) hasItemIdentifier(iri literal.Literal) bool {
	return slices.Contains(c.iids, iri)
}

func (c *construct) check() error {
	if c.tm.closed {
		return ErrClosed
	}
	if c.removed {
		return fmt.Errorf("%s: %w", describe(c.self), ErrRemoved)
	}
	return nil
}

// checkMember validates that t is a live topic of the same topic map.
func (c *construct) checkMember(t *Topic, what string) error {
	if t == nil {
		return &ModelConstraintError{Construct: c.self, Reason: what + " must not be nil", Err: ErrNilValue}
	}
	if t.tm != c.tm {
		return &ModelConstraintError{Construct: c.self, Reason: what + " is from another topic map", Err: ErrForeignConstruct}
	}
	if t.removed {
		return &ModelConstraintError{Construct: c.self, Reason: what + " has been removed", Err: ErrRemoved}
	}
	return nil
}

func describe(c Construct) string {
	if c == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s %d", c.Kind(), c.ID())
}

// reifierTopic resolves the reifier reference; topics never carry one.
func (c *construct) reifierTopic() *Topic {
	if c.reifier == 0 {
		return nil
	}
	return c.tm.topic(c.reifier)
}

// idSet is an unordered set of construct IDs; sorted() yields creation order.
type idSet map[ID]struct{}

func (s idSet) add(id ID)      { s[id] = struct{}{} }
func (s idSet) remove(id ID)   { delete(s, id) }
func (s idSet) has(id ID) bool { _, ok := s[id]; return ok }

func (s idSet) sorted() []ID {
	ids := make([]ID, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
