package lifecycle

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidTransition is returned when a status change is not permitted.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrPaymentNotSettled is returned when completing a ride whose payment
	// has not succeeded.
	ErrPaymentNotSettled = errors.New("payment not settled")

	// ErrInconsistentRide is returned when a ride's timestamps disagree with
	// its status.
	ErrInconsistentRide = errors.New("inconsistent ride record")
)

// TransitionError describes a rejected status change.
type TransitionError struct {
	Machine string // "ride" or "payment"
	From    string
	To      string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: %s status %q -> %q", ErrInvalidTransition, e.Machine, e.From, e.To)
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}
