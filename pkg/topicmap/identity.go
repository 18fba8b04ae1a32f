package topicmap

import (
	"errors"
	"fmt"

	"github.com/orneryd/tmengine/pkg/literal"
)

// identityManager owns the id, item identifier, subject identifier and
// subject locator maps of one topic map. It vetoes colliding identifiers
// during pre-commit events and registers them on the matching post-commit
// event. It never merges; that decision belongs to the caller.
type identityManager struct {
	tm    *TopicMap
	byID  map[ID]Construct
	byIID map[literal.Literal]ID
	bySID map[literal.Literal]ID
	bySLO map[literal.Literal]ID
}

func newIdentityManager(tm *TopicMap) *identityManager {
	im := &identityManager{tm: tm}
	im.reset()
	return im
}

func (im *identityManager) reset() {
	im.byID = make(map[ID]Construct)
	im.byIID = make(map[literal.Literal]ID)
	im.bySID = make(map[literal.Literal]ID)
	im.bySLO = make(map[literal.Literal]ID)
}

func (im *identityManager) handle(ev Event) error {
	c := ev.Construct
	switch ev.Kind {
	case EventConstructAdded:
		im.byID[c.ID()] = c
	case EventConstructRemoving:
		im.unregister(c)

	case EventItemIdentifierAdding:
		return im.checkItemIdentifier(c, ev.New.(literal.Literal))
	case EventItemIdentifierAdded:
		im.byIID[ev.New.(literal.Literal)] = c.ID()
	case EventItemIdentifierRemoved:
		unbind(im.byIID, ev.Old.(literal.Literal), c.ID())

	case EventSubjectIdentifierAdding:
		return im.checkSubjectIdentifier(c.(*Topic), ev.New.(literal.Literal))
	case EventSubjectIdentifierAdded:
		im.bySID[ev.New.(literal.Literal)] = c.ID()
	case EventSubjectIdentifierRemoved:
		unbind(im.bySID, ev.Old.(literal.Literal), c.ID())

	case EventSubjectLocatorAdding:
		return im.checkSubjectLocator(c.(*Topic), ev.New.(literal.Literal))
	case EventSubjectLocatorAdded:
		im.bySLO[ev.New.(literal.Literal)] = c.ID()
	case EventSubjectLocatorRemoved:
		unbind(im.bySLO, ev.Old.(literal.Literal), c.ID())

	case EventReifierChanging:
		r, _ := ev.New.(*Topic)
		return im.checkReifier(c, r)
	}
	return nil
}

func unbind(m map[literal.Literal]ID, iri literal.Literal, id ID) {
	if m[iri] == id {
		delete(m, iri)
	}
}

func (im *identityManager) unregister(c Construct) {
	b := c.base()
	delete(im.byID, b.id)
	for _, iri := range b.iids {
		unbind(im.byIID, iri, b.id)
	}
	if t, ok := c.(*Topic); ok {
		for _, iri := range t.sids {
			unbind(im.bySID, iri, t.id)
		}
		for _, iri := range t.slos {
			unbind(im.bySLO, iri, t.id)
		}
	}
}

func (im *identityManager) checkItemIdentifier(c Construct, iri literal.Literal) error {
	_, isTopic := c.(*Topic)
	if id, ok := im.byIID[iri]; ok && id != c.ID() {
		existing := im.byID[id]
		_, existingTopic := existing.(*Topic)
		return &IdentityConstraintError{Reporter: c, Existing: existing, Locator: iri, Mergeable: isTopic && existingTopic}
	}
	if !isTopic {
		return nil
	}
	if id, ok := im.bySID[iri]; ok && id != c.ID() {
		return &IdentityConstraintError{Reporter: c, Existing: im.byID[id], Locator: iri, Mergeable: true}
	}
	return nil
}

func (im *identityManager) checkSubjectIdentifier(t *Topic, iri literal.Literal) error {
	if id, ok := im.bySID[iri]; ok && id != t.id {
		return &IdentityConstraintError{Reporter: t, Existing: im.byID[id], Locator: iri, Mergeable: true}
	}
	if id, ok := im.byIID[iri]; ok && id != t.id {
		if other, ok := im.byID[id].(*Topic); ok {
			return &IdentityConstraintError{Reporter: t, Existing: other, Locator: iri, Mergeable: true}
		}
	}
	return nil
}

func (im *identityManager) checkSubjectLocator(t *Topic, iri literal.Literal) error {
	if id, ok := im.bySLO[iri]; ok && id != t.id {
		return &IdentityConstraintError{Reporter: t, Existing: im.byID[id], Locator: iri, Mergeable: true}
	}
	return nil
}

func (im *identityManager) checkReifier(c Construct, r *Topic) error {
	if r == nil || r.reified == 0 || r.reified == c.ID() {
		return nil
	}
	return &ModelConstraintError{
		Construct: c,
		Reason:    fmt.Sprintf("reifier %s already reifies %s", r.label(), describe(im.byID[r.reified])),
		Err:       ErrReificationConflict,
	}
}

type identifierKind uint8

const (
	itemIdentifier identifierKind = iota
	subjectIdentifier
	subjectLocator
)

var identifierEvents = [...]struct{ adding, added EventKind }{
	itemIdentifier:    {EventItemIdentifierAdding, EventItemIdentifierAdded},
	subjectIdentifier: {EventSubjectIdentifierAdding, EventSubjectIdentifierAdded},
	subjectLocator:    {EventSubjectLocatorAdding, EventSubjectLocatorAdded},
}

func (k identifierKind) String() string {
	switch k {
	case subjectIdentifier:
		return "subject identifier"
	case subjectLocator:
		return "subject locator"
	}
	return "item identifier"
}

func identifiers(c Construct, kind identifierKind) *[]literal.Literal {
	switch kind {
	case subjectIdentifier:
		return &c.(*Topic).sids
	case subjectLocator:
		return &c.(*Topic).slos
	}
	return &c.base().iids
}

// addIdentifier attaches iri to c after the identity manager approved it.
// Mergeable collisions are resolved by merging the other topic into c when
// merge is true; otherwise the collision error is returned unchanged.
func (tm *TopicMap) addIdentifier(c Construct, iri literal.Literal, kind identifierKind, merge bool) error {
	if err := c.base().check(); err != nil {
		return err
	}
	if !iri.IsIRI() {
		return &ModelConstraintError{Construct: c, Reason: kind.String() + " must be an IRI", Err: ErrNilValue}
	}
	events := identifierEvents[kind]
	for {
		if containsLiteral(*identifiers(c, kind), iri) {
			return nil
		}
		err := tm.bus.check(Event{Kind: events.adding, Construct: c, New: iri})
		if err == nil {
			break
		}
		var ice *IdentityConstraintError
		if !merge || !errors.As(err, &ice) || !ice.Mergeable {
			return err
		}
		if err := tm.mergeTopics(ice.Existing.(*Topic), c.(*Topic)); err != nil {
			return err
		}
	}
	ids := identifiers(c, kind)
	*ids = append(*ids, iri)
	tm.bus.notify(Event{Kind: events.added, Construct: c, New: iri})
	return nil
}

func (tm *TopicMap) addItemIdentifier(c Construct, iri literal.Literal) error {
	return tm.addIdentifier(c, iri, itemIdentifier, tm.opts.AutoMerge)
}

func containsLiteral(s []literal.Literal, v literal.Literal) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}

func topicValue(t *Topic) any {
	if t == nil {
		return nil
	}
	return t
}

// setReifier runs the identity manager's check before binding r to c.
func (tm *TopicMap) setReifier(c Reifiable, r *Topic) error {
	b := c.base()
	if err := b.check(); err != nil {
		return err
	}
	if r != nil {
		if err := b.checkMember(r, "reifier"); err != nil {
			return err
		}
		if b.reifier == r.id {
			return nil
		}
	} else if b.reifier == 0 {
		return nil
	}
	old := b.reifierTopic()
	if err := tm.bus.check(Event{Kind: EventReifierChanging, Construct: c, Old: topicValue(old), New: topicValue(r)}); err != nil {
		return err
	}
	tm.bindReifier(c, r)
	return nil
}

// bindReifier commits a reifier change without checks. r must not reify
// any other construct.
func (tm *TopicMap) bindReifier(c Reifiable, r *Topic) {
	b := c.base()
	old := b.reifierTopic()
	if old != nil {
		old.reified = 0
	}
	b.reifier = 0
	if r != nil {
		if prev := tm.lookup(r.reified); prev != nil && prev != c {
			prev.base().reifier = 0
		}
		r.reified = b.id
		b.reifier = r.id
	}
	tm.bus.notify(Event{Kind: EventReifierChanged, Construct: c, Old: topicValue(old), New: topicValue(r)})
}
