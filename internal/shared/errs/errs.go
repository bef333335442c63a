// Package errs holds the error taxonomy shared by every core module.
//
// Callers compare with errors.Is; the transport layer maps each sentinel to a
// status code. Validation errors carry field detail after the sentinel text.
package errs

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrValidation marks a malformed or incomplete request. Never retried.
	ErrValidation = errors.New("validation error")
	// ErrNoDriversAvailable is the admission-control refusal on order creation.
	ErrNoDriversAvailable = errors.New("no drivers available")
	// ErrAlreadyClaimed is the expected loser outcome of a claim race.
	ErrAlreadyClaimed = errors.New("order already claimed")
	// ErrNotAssigned means the acting driver does not own the order.
	ErrNotAssigned = errors.New("order not assigned to driver")
	// ErrInvalidTransition means the requested status change is not in the table.
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrNotFound          = errors.New("not found")
	ErrForbidden         = errors.New("forbidden")
	// ErrStoreUnavailable wraps transient storage and transport faults.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// Validation builds an ErrValidation with field detail.
func Validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Unavailable wraps a store fault so callers can match ErrStoreUnavailable
// while the cause stays inspectable. Timeouts are faults, not successes.
func Unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrStoreUnavailable) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s: statement timeout: %w", ErrStoreUnavailable, op, err)
	}
	return fmt.Errorf("%w: %s: %w", ErrStoreUnavailable, op, err)
}

// Expected reports whether err is a business outcome rather than a fault.
// Expected outcomes are logged at debug level.
func Expected(err error) bool {
	switch {
	case errors.Is(err, ErrValidation),
		errors.Is(err, ErrNoDriversAvailable),
		errors.Is(err, ErrAlreadyClaimed),
		errors.Is(err, ErrNotAssigned),
		errors.Is(err, ErrInvalidTransition),
		errors.Is(err, ErrNotFound),
		errors.Is(err, ErrForbidden):
		return true
	}
	return false
}
