// Package topicmap implements an in-memory Topic Maps (ISO 13250-2) engine:
// the construct graph, identity management with automatic merging, canonical
// scopes, structural signatures, duplicate removal and incrementally
// maintained type-instance and scoped indices.
//
// A TopicMap is created through a System. All constructs are handles into
// the owning TopicMap; cross-references between them are stored as IDs and
// resolved on access, so merging two topics repoints every use of the
// merged-away topic in one step.
//
// Example:
//
//	sys := topicmap.NewSystem(topicmap.DefaultOptions())
//	tm, _ := sys.CreateTopicMap("http://example.org/")
//
//	a, _ := tm.Resolve("#a")
//	t1, _ := tm.CreateTopicBySubjectIdentifier(a)
//	t2, _ := tm.CreateTopic()
//	_ = t2.AddItemIdentifier(a) // merges t1 into t2
//	fmt.Println(t1.Current() == t2) // true
//
// Concurrency: a TopicMap is single-writer. Serialize access externally when
// sharing one between goroutines. Literal interning is process-wide and safe
// for concurrent use by independent topic maps.
package topicmap

import (
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/orneryd/tmengine/pkg/literal"
)

// TopicMap is the root construct. It owns all topics and associations, the
// identity manager, the scope registry and both indices.
type TopicMap struct {
	construct

	sys     *System
	baseLoc literal.Literal
	opts    Options
	logger  *zap.Logger

	topics idSet
	assocs idSet

	identity    *identityManager
	scopes      *scopeRegistry
	bus         *dispatcher
	typeIndex   *TypeInstanceIndex
	scopedIndex *ScopedIndex

	nameType *Topic
	merges   int
	closed   bool
}

func newTopicMap(sys *System, base literal.Literal, opts Options) *TopicMap {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	tm := &TopicMap{
		sys:     sys,
		baseLoc: base,
		opts:    opts,
		logger:  opts.Logger.With(zap.String("topicmap", base.Value())),
		topics:  make(idSet),
		assocs:  make(idSet),
	}
	tm.init(tm, KindTopicMap, tm, 0)
	tm.bus = &dispatcher{logger: tm.logger}
	tm.identity = newIdentityManager(tm)
	tm.scopes = newScopeRegistry(tm)
	tm.typeIndex = newTypeInstanceIndex(tm)
	tm.scopedIndex = newScopedIndex(tm)

	tm.bus.subscribe(tm.identity.handle)
	tm.bus.subscribe(tm.typeIndex.handle)
	tm.bus.subscribe(tm.scopedIndex.handle)
	for _, l := range opts.Listeners {
		tm.bus.subscribe(l)
	}
	tm.identity.byID[tm.id] = tm
	return tm
}

// BaseLocator returns the absolute IRI the topic map was created with.
func (tm *TopicMap) BaseLocator() literal.Literal { return tm.baseLoc }

// Logger returns the topic map's logger.
func (tm *TopicMap) Logger() *zap.Logger { return tm.logger }

// Resolve resolves ref against the base locator.
func (tm *TopicMap) Resolve(ref string) (literal.Literal, error) {
	return literal.Resolve(tm.baseLoc, ref)
}

func (tm *TopicMap) lookup(id ID) Construct {
	if id == 0 {
		return nil
	}
	return tm.identity.byID[id]
}

func (tm *TopicMap) topic(id ID) *Topic {
	t, _ := tm.lookup(id).(*Topic)
	return t
}

// ConstructByID returns the live construct with the given ID, or nil.
func (tm *TopicMap) ConstructByID(id ID) Construct {
	return tm.lookup(id)
}

// ConstructByItemIdentifier returns the construct carrying iri as item identifier, or nil.
func (tm *TopicMap) ConstructByItemIdentifier(iri literal.Literal) Construct {
	return tm.lookup(tm.identity.byIID[iri])
}

// TopicBySubjectIdentifier returns the topic with subject identifier iri, or nil.
func (tm *TopicMap) TopicBySubjectIdentifier(iri literal.Literal) *Topic {
	return tm.topic(tm.identity.bySID[iri])
}

// TopicBySubjectLocator returns the topic with subject locator iri, or nil.
func (tm *TopicMap) TopicBySubjectLocator(iri literal.Literal) *Topic {
	return tm.topic(tm.identity.bySLO[iri])
}

// Topics returns all topics in creation order.
func (tm *TopicMap) Topics() []*Topic {
	ids := tm.topics.sorted()
	out := make([]*Topic, 0, len(ids))
	for _, id := range ids {
		out = append(out, tm.topic(id))
	}
	return out
}

// Associations returns all associations in creation order.
func (tm *TopicMap) Associations() []*Association {
	ids := tm.assocs.sorted()
	out := make([]*Association, 0, len(ids))
	for _, id := range ids {
		if a, ok := tm.lookup(id).(*Association); ok {
			out = append(out, a)
		}
	}
	return out
}

// TypeInstanceIndex returns the incrementally maintained type-instance index.
func (tm *TopicMap) TypeInstanceIndex() *TypeInstanceIndex { return tm.typeIndex }

// ScopedIndex returns the incrementally maintained scoped index.
func (tm *TopicMap) ScopedIndex() *ScopedIndex { return tm.scopedIndex }

// ScopeOf returns the canonical scope for themes. Order and duplicates are
// irrelevant; no themes yields Unconstrained().
func (tm *TopicMap) ScopeOf(themes ...*Topic) (*Scope, error) {
	ids := make([]ID, 0, len(themes))
	for _, t := range themes {
		if err := tm.checkMember(t, "theme"); err != nil {
			return nil, err
		}
		ids = append(ids, t.id)
	}
	return tm.scopes.canonical(ids), nil
}

// CreateTopic creates a topic identified by a generated urn:uuid item identifier.
func (tm *TopicMap) CreateTopic() (*Topic, error) {
	if err := tm.check(); err != nil {
		return nil, err
	}
	iid := literal.MustIRI("urn:uuid:" + uuid.NewString())
	return tm.createTopicWith((*Topic).AddItemIdentifier, iid)
}

// CreateTopicBySubjectIdentifier returns the topic with subject identifier
// sid, creating it if needed. A topic whose item identifier equals sid is
// returned after sid is added to it.
func (tm *TopicMap) CreateTopicBySubjectIdentifier(sid literal.Literal) (*Topic, error) {
	if err := tm.checkIRI(sid, "subject identifier"); err != nil {
		return nil, err
	}
	if t := tm.TopicBySubjectIdentifier(sid); t != nil {
		return t, nil
	}
	if t, ok := tm.ConstructByItemIdentifier(sid).(*Topic); ok {
		if err := t.AddSubjectIdentifier(sid); err != nil {
			return nil, err
		}
		return t, nil
	}
	return tm.createTopicWith((*Topic).AddSubjectIdentifier, sid)
}

// CreateTopicBySubjectLocator returns the topic with subject locator slo,
// creating it if needed.
func (tm *TopicMap) CreateTopicBySubjectLocator(slo literal.Literal) (*Topic, error) {
	if err := tm.checkIRI(slo, "subject locator"); err != nil {
		return nil, err
	}
	if t := tm.TopicBySubjectLocator(slo); t != nil {
		return t, nil
	}
	return tm.createTopicWith((*Topic).AddSubjectLocator, slo)
}

// CreateTopicByItemIdentifier returns the topic with item identifier iid,
// creating it if needed. If iid identifies a construct that is not a topic,
// an *IdentityConstraintError is returned.
func (tm *TopicMap) CreateTopicByItemIdentifier(iid literal.Literal) (*Topic, error) {
	if err := tm.checkIRI(iid, "item identifier"); err != nil {
		return nil, err
	}
	if c := tm.ConstructByItemIdentifier(iid); c != nil {
		if t, ok := c.(*Topic); ok {
			return t, nil
		}
		return nil, &IdentityConstraintError{Reporter: tm, Existing: c, Locator: iid}
	}
	if t := tm.TopicBySubjectIdentifier(iid); t != nil {
		if err := t.AddItemIdentifier(iid); err != nil {
			return nil, err
		}
		return t, nil
	}
	return tm.createTopicWith((*Topic).AddItemIdentifier, iid)
}

// createTopicWith creates a topic and gives it its first identifier. A topic
// whose identifier is rejected is removed again.
func (tm *TopicMap) createTopicWith(add func(*Topic, literal.Literal) error, iri literal.Literal) (*Topic, error) {
	t := tm.newTopic()
	if err := add(t, iri); err != nil {
		if !t.removed {
			tm.dropTopic(t, nil)
		}
		return nil, err
	}
	return t, nil
}

func (tm *TopicMap) newTopic() *Topic {
	t := &Topic{types: make(idSet), names: make(idSet), occurrences: make(idSet), roles: make(idSet)}
	t.init(t, KindTopic, tm, tm.id)
	tm.topics.add(t.id)
	tm.bus.notify(Event{Kind: EventConstructAdded, Construct: t})
	return t
}

// CreateAssociation creates an association. typ may be nil for an untyped
// association.
func (tm *TopicMap) CreateAssociation(typ *Topic, themes ...*Topic) (*Association, error) {
	if err := tm.check(); err != nil {
		return nil, err
	}
	if typ != nil {
		if err := tm.checkMember(typ, "association type"); err != nil {
			return nil, err
		}
	}
	scope, err := tm.ScopeOf(themes...)
	if err != nil {
		return nil, err
	}
	a := &Association{roles: make(idSet)}
	a.init(a, KindAssociation, tm, tm.id)
	if typ != nil {
		a.typ = typ.id
	}
	a.scope = tm.scopes.acquire(scope)
	tm.assocs.add(a.id)
	tm.bus.notify(Event{Kind: EventConstructAdded, Construct: a})
	return a, nil
}

func (tm *TopicMap) checkIRI(iri literal.Literal, what string) error {
	if err := tm.check(); err != nil {
		return err
	}
	if !iri.IsIRI() {
		return &ModelConstraintError{Construct: tm, Reason: what + " must be an IRI", Err: ErrNilValue}
	}
	return nil
}

// defaultNameType returns the topic for the TMDM default name type,
// creating it on first use.
func (tm *TopicMap) defaultNameType() (*Topic, error) {
	if tm.nameType != nil && !tm.nameType.removed {
		return tm.nameType, nil
	}
	t, err := tm.CreateTopicBySubjectIdentifier(PSITopicName)
	if err != nil {
		return nil, err
	}
	tm.nameType = t
	return t, nil
}

// Parent returns nil; the topic map is the root.
func (tm *TopicMap) Parent() Construct { return nil }

// Reifier returns the topic reifying the topic map, or nil.
func (tm *TopicMap) Reifier() *Topic { return tm.reifierTopic() }

// SetReifier binds r as reifier of the topic map; nil unbinds.
func (tm *TopicMap) SetReifier(r *Topic) error { return tm.setReifier(tm, r) }

// Remove closes the topic map.
func (tm *TopicMap) Remove() error { return tm.Close() }

// Close clears every construct, index and registry and detaches the topic
// map from its System. Handles obtained earlier report ErrClosed.
func (tm *TopicMap) Close() error {
	if tm.closed {
		return nil
	}
	stats := tm.Stats()
	tm.closed = true
	tm.removed = true
	for _, c := range tm.identity.byID {
		c.base().removed = true
	}
	tm.identity.reset()
	tm.typeIndex.reset()
	tm.scopedIndex.reset()
	tm.topics = make(idSet)
	tm.assocs = make(idSet)
	tm.scopes = newScopeRegistry(tm)
	tm.nameType = nil
	if tm.sys != nil {
		tm.sys.forget(tm)
	}
	tm.logger.Info("topic map closed", zap.Int("topics", stats.Topics), zap.Int("associations", stats.Associations))
	return nil
}

// IsClosed reports whether Close has been called.
func (tm *TopicMap) IsClosed() bool { return tm.closed }

// Stats summarizes the size of a topic map.
type Stats struct {
	Topics       int
	Associations int
	Roles        int
	Occurrences  int
	Names        int
	Variants     int
	Scopes       int
	Merges       int
}

func (s Stats) String() string {
	return fmt.Sprintf("topics=%d associations=%d roles=%d occurrences=%d names=%d variants=%d scopes=%d merges=%d",
		s.Topics, s.Associations, s.Roles, s.Occurrences, s.Names, s.Variants, s.Scopes, s.Merges)
}

// Stats counts the live constructs of the topic map.
func (tm *TopicMap) Stats() Stats {
	s := Stats{Topics: len(tm.topics), Associations: len(tm.assocs), Scopes: tm.scopes.inUseCount(), Merges: tm.merges}
	for _, c := range tm.identity.byID {
		switch c.Kind() {
		case KindRole:
			s.Roles++
		case KindOccurrence:
			s.Occurrences++
		case KindName:
			s.Names++
		case KindVariant:
			s.Variants++
		}
	}
	return s
}
