package topicmap

import (
	"fmt"

	"go.uber.org/zap"
)

// EventKind identifies a graph mutation.
//
// Kinds ending in "ing" are pre-commit: listeners see them before the
// mutation is applied and may veto it by returning an error. All other kinds
// are post-commit notifications; listener errors are logged and ignored.
type EventKind uint8

const (
	EventConstructAdded EventKind = iota + 1
	EventConstructRemoving
	EventItemIdentifierAdding
	EventItemIdentifierAdded
	EventItemIdentifierRemoved
	EventSubjectIdentifierAdding
	EventSubjectIdentifierAdded
	EventSubjectIdentifierRemoved
	EventSubjectLocatorAdding
	EventSubjectLocatorAdded
	EventSubjectLocatorRemoved
	EventTypeAdded
	EventTypeRemoved
	EventTypeChanged
	EventScopeChanged
	EventPlayerChanged
	EventValueChanged
	EventReifierChanging
	EventReifierChanged
	EventParentChanged
	EventTopicsMerged
)

var eventNames = map[EventKind]string{
	EventConstructAdded:           "construct-added",
	EventConstructRemoving:        "construct-removing",
	EventItemIdentifierAdding:     "item-identifier-adding",
	EventItemIdentifierAdded:      "item-identifier-added",
	EventItemIdentifierRemoved:    "item-identifier-removed",
	EventSubjectIdentifierAdding:  "subject-identifier-adding",
	EventSubjectIdentifierAdded:   "subject-identifier-added",
	EventSubjectIdentifierRemoved: "subject-identifier-removed",
	EventSubjectLocatorAdding:     "subject-locator-adding",
	EventSubjectLocatorAdded:      "subject-locator-added",
	EventSubjectLocatorRemoved:    "subject-locator-removed",
	EventTypeAdded:                "type-added",
	EventTypeRemoved:              "type-removed",
	EventTypeChanged:              "type-changed",
	EventScopeChanged:             "scope-changed",
	EventPlayerChanged:            "player-changed",
	EventValueChanged:             "value-changed",
	EventReifierChanging:          "reifier-changing",
	EventReifierChanged:           "reifier-changed",
	EventParentChanged:            "parent-changed",
	EventTopicsMerged:             "topics-merged",
}

func (k EventKind) String() string {
	if s, ok := eventNames[k]; ok {
		return s
	}
	return fmt.Sprintf("event(%d)", uint8(k))
}

// Event describes one mutation. Old and New carry the previous and the new
// value; their dynamic type depends on Kind:
//
//	identifier events        literal.Literal
//	type / player / reifier  *Topic (nil when absent)
//	scope events             *Scope
//	value events             literal.Literal
//	parent events            Construct
//	topics-merged            Old = merged-away *Topic, New = surviving *Topic
type Event struct {
	Kind      EventKind
	Construct Construct
	Old       any
	New       any
}

// Listener observes events. A listener returning an error from a pre-commit
// event aborts the mutation and the error is returned to the caller.
type Listener func(ev Event) error

// dispatcher delivers events synchronously, in registration order.
// The identity manager registers first so that the arena is up to date
// before indices and user listeners run.
type dispatcher struct {
	listeners []Listener
	logger    *zap.Logger
}

func (d *dispatcher) subscribe(l Listener) {
	d.listeners = append(d.listeners, l)
}

// check delivers a pre-commit event and returns the first veto.
func (d *dispatcher) check(ev Event) error {
	for _, l := range d.listeners {
		if err := l(ev); err != nil {
			return err
		}
	}
	return nil
}

// notify delivers a post-commit event. Errors cannot undo a committed
// mutation, so they are only logged.
func (d *dispatcher) notify(ev Event) {
	for _, l := range d.listeners {
		if err := l(ev); err != nil {
			d.logger.Warn("listener failed",
				zap.Stringer("event", ev.Kind),
				zap.String("construct", describe(ev.Construct)),
				zap.Error(err))
		}
	}
}
