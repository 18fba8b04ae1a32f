package topicmap

import (
	"errors"
	"fmt"

	"github.com/orneryd/tmengine/pkg/literal"
)

// Sentinel errors. Check with errors.Is; typed errors wrap them where useful.
var (
	ErrRemoved          = errors.New("construct has been removed")
	ErrClosed           = errors.New("topic map is closed")
	ErrTopicInUse       = errors.New("topic is in use")
	ErrForeignConstruct = errors.New("construct belongs to another topic map")
	ErrNilValue         = errors.New("required value is missing")
	ErrNotFound         = errors.New("not found")
	ErrMapExists        = errors.New("a topic map with this base locator already exists")

	// ErrReificationConflict is wrapped by the *ModelConstraintError returned
	// when a reifier already reifies another construct, or when two topics
	// that reify different constructs would have to merge.
	ErrReificationConflict = errors.New("reification conflict")
)

// IdentityConstraintError reports that Locator is already bound to Existing
// while Reporter tried to claim it.
//
// Mergeable is true when both constructs are topics and the collision is the
// TMDM signal that they represent the same subject. With auto-merge enabled
// such collisions never surface; they are resolved by merging instead.
type IdentityConstraintError struct {
	Reporter  Construct
	Existing  Construct
	Locator   literal.Literal
	Mergeable bool
}

func (e *IdentityConstraintError) Error() string {
	msg := fmt.Sprintf("identity constraint: %s cannot claim %s, already used by %s",
		describe(e.Reporter), e.Locator, describe(e.Existing))
	if e.Mergeable {
		msg += " (topics are mergeable)"
	}
	return msg
}

// ModelConstraintError reports a violation of the data model itself, such
// as binding a reifier that already reifies something else or a variant scope
// that is not a strict superset of its name's scope.
type ModelConstraintError struct {
	Construct Construct
	Reason    string
	Err       error
}

func (e *ModelConstraintError) Error() string {
	msg := fmt.Sprintf("model constraint on %s: %s", describe(e.Construct), e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ModelConstraintError) Unwrap() error { return e.Err }

// IsMergeable reports whether err is an identity collision between two topics.
func IsMergeable(err error) bool {
	var ice *IdentityConstraintError
	return errors.As(err, &ice) && ice.Mergeable
}
