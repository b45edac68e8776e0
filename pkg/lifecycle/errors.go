package lifecycle

import (
	"errors"
	"fmt"
	"strings"
)

// Error taxonomy shared by every engine. Classify with errors.Is.
var (
	// ErrInvalidTransition is a local validation failure. Nothing was sent and
	// nothing changed.
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrNotFound means the entity vanished on the server side.
	ErrNotFound = errors.New("not found")

	// ErrConflict means the server detected a concurrent mutation. The caller
	// must refetch; no client-side merge is attempted.
	ErrConflict = errors.New("conflict")

	// ErrUnavailable covers network failures and timeouts on the external service.
	ErrUnavailable = errors.New("service unavailable")

	// ErrInFlight means a mutation for the same entity is still outstanding.
	ErrInFlight = errors.New("request already in flight")

	// ErrPartialBatchFailure marks a batch where some items failed and some succeeded.
	ErrPartialBatchFailure = errors.New("partial batch failure")
)

// TransitionError describes a rejected state change
type TransitionError struct {
	Entity string
	From   string
	To     string
	Reason string
}

func (e *TransitionError) Error() string {
	msg := fmt.Sprintf("%s: cannot move from %s to %s", e.Entity, e.From, e.To)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

// Unwrap lets errors.Is(err, ErrInvalidTransition) match
func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}

// IsInvalidTransition checks if an error is a local validation failure
func IsInvalidTransition(err error) bool {
	return errors.Is(err, ErrInvalidTransition)
}

// Changed reports whether an operation that returned err changed server state.
// Only a batch with at least one succeeded item changes anything on failure.
func Changed(err error) bool {
	if err == nil {
		return true
	}
	var partial *PartialBatchError
	if errors.As(err, &partial) {
		return partial.Succeeded > 0
	}
	return false
}

// PartialBatchError summarizes a batch with mixed outcomes
type PartialBatchError struct {
	Succeeded int
	Failed    int
	Causes    []string
}

func (e *PartialBatchError) Error() string {
	return fmt.Sprintf("%d of %d items failed: %s",
		e.Failed, e.Succeeded+e.Failed, strings.Join(e.Causes, "; "))
}

func (e *PartialBatchError) Unwrap() error {
	return ErrPartialBatchFailure
}

func anyString(v any) string {
	if s, ok := v.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprint(v)
}
