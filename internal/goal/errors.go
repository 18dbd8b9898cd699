package goal

import (
	"errors"
	"fmt"
	"strings"
)

// InvalidStateError is returned when a lifecycle operation is called in a
// status that does not allow it.
type InvalidStateError struct {
	// Op is the rejected operation, e.g. "pause".
	Op string

	// GoalID identifies the goal.
	GoalID string

	// Status is the status the goal was in.
	Status Status

	// Allowed lists the statuses Op accepts.
	Allowed []Status
}

// Error implements the error interface.
func (e *InvalidStateError) Error() string {
	allowed := make([]string, len(e.Allowed))
	for i, s := range e.Allowed {
		allowed[i] = string(s)
	}
	return fmt.Sprintf("INVALID_STATE: cannot %s goal %s in status %s (requires %s)",
		e.Op, e.GoalID, e.Status, strings.Join(allowed, "|"))
}

// IsInvalidState reports whether err is an *InvalidStateError.
// Uses errors.As to handle wrapped errors.
func IsInvalidState(err error) bool {
	var ise *InvalidStateError
	return errors.As(err, &ise)
}

// Rejection reasons reported by UpdateProgress.
const (
	ReasonNotActive      = "Goal is not active"
	ReasonNotParticipant = "Not a participant"
	ReasonExpired        = "Goal expired"
	ReasonInvalidValue   = "Invalid progress value"
)

// Validation is the outcome of checking Params. Errors lists every
// problem found, not just the first.
type Validation struct {
	IsValid bool     `json:"isValid"`
	Errors  []string `json:"errors,omitempty"`
}

// Err converts a failed validation into an error. It returns nil when valid.
func (v Validation) Err() error {
	if v.IsValid {
		return nil
	}
	return fmt.Errorf("invalid goal: %s", strings.Join(v.Errors, "; "))
}
