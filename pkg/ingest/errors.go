package ingest

import (
	"errors"
	"fmt"

	"github.com/orneryd/tmengine/pkg/literal"
	"github.com/orneryd/tmengine/pkg/topicmap"
)

var (
	// ErrUnexpectedEvent is returned when an event arrives in a state that
	// does not accept it, e.g. EndName while a role is open.
	ErrUnexpectedEvent = errors.New("unexpected ingestion event")

	// ErrIncomplete is returned when a construct ends without a required
	// part, such as an occurrence without a value.
	ErrIncomplete = errors.New("incomplete construct")
)

// MergeConflictError reports that ingestion needed to merge two topics, or
// bind a reifier, and the engine refused because both sides already reify
// different constructs.
type MergeConflictError struct {
	// Locator is the identifier that triggered the merge, zero for reifier
	// bindings.
	Locator literal.Literal
	// Construct is the construct being built when the conflict surfaced.
	Construct topicmap.Construct
	Err       error
}

func (e *MergeConflictError) Error() string {
	msg := "merge conflict"
	if !e.Locator.IsZero() {
		msg += " on " + e.Locator.Value()
	}
	if e.Construct != nil {
		msg += fmt.Sprintf(" while building %s", e.Construct.Kind())
	}
	return msg + ": " + e.Err.Error()
}

func (e *MergeConflictError) Unwrap() error { return e.Err }

// conflict converts reification conflicts into a *MergeConflictError and
// passes every other error through unchanged.
func conflict(c topicmap.Construct, loc literal.Literal, err error) error {
	if err == nil || !errors.Is(err, topicmap.ErrReificationConflict) {
		return err
	}
	return &MergeConflictError{Locator: loc, Construct: c, Err: err}
}
