package model

import (
	"errors"
	"fmt"
)

// Error kinds.  Every error returned by the store, the inventory manager and
// the services wraps exactly one of these, so callers classify failures with
// errors.Is instead of matching messages.  The HTTP layer maps each kind to a
// status code.
var (
	ErrNotFound          = errors.New("not found")
	ErrValidation        = errors.New("validation error")
	ErrDuplicate         = errors.New("duplicate")
	ErrInsufficientSeats = errors.New("insufficient seats")
	ErrPastDate          = errors.New("date already elapsed")
	ErrReferenced        = errors.New("still referenced")
	ErrBookingCancelled  = errors.New("booking is cancelled")
	ErrInternal          = errors.New("internal error")
)

var (
	ErrUserNotFound    = fmt.Errorf("user %w", ErrNotFound)
	ErrTheatreNotFound = fmt.Errorf("theatre %w", ErrNotFound)
	ErrShowNotFound    = fmt.Errorf("show %w", ErrNotFound)
	ErrBookingNotFound = fmt.Errorf("booking %w", ErrNotFound)
)

var (
	ErrEmailTaken       = fmt.Errorf("%w: email already exists", ErrDuplicate)
	ErrTheatreExists    = fmt.Errorf("%w: theatre already exists in this city", ErrDuplicate)
	ErrShowExists       = fmt.Errorf("%w: show already exists for theatre, movie, date and time", ErrDuplicate)
	ErrShowPast         = fmt.Errorf("show %w", ErrPastDate)
	ErrInvalidSeatCount = fmt.Errorf("%w: seats must be at least 1", ErrValidation)
)

// Invalid wraps ErrValidation with a human readable reason.
func Invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
