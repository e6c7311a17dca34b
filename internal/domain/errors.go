package domain

import (
	"errors"
	"fmt"

	"github.com/feral-file/lt-indexer/internal/fixedpoint"
)

var (
	// ErrSubscriptionFailed is returned when subscription to events fails
	ErrSubscriptionFailed = errors.New("subscription failed")

	// ErrInvalidEvent is returned when an event payload is missing required fields
	ErrInvalidEvent = errors.New("invalid event")

	// ErrUserNotFound is returned when a handler requires a user row that does not exist
	ErrUserNotFound = errors.New("user not found")

	// ErrBalanceNotFound is returned when a handler requires a balance row that does not exist
	ErrBalanceNotFound = errors.New("balance not found")

	// ErrInstrumentNotFound is returned when an event references an unknown leveraged token
	ErrInstrumentNotFound = errors.New("leveraged token not found")

	// ErrPendingRedemptionNotFound is returned when an execution has no prepared redemption
	ErrPendingRedemptionNotFound = errors.New("pending redemption not found")

	// ErrReferrerNotFound is returned when a rebate targets a referee without a referrer
	ErrReferrerNotFound = errors.New("referrer not found")

	// ErrInsufficientBalance is returned when a redemption is applied to an empty position
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrEventConflict is returned when an already processed event id is seen with a different payload
	ErrEventConflict = errors.New("event conflict")
)

// FatalError marks an error that retrying cannot fix. The event that caused
// it must not be redelivered.
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("fatal: %v", e.Err)
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// Fatal wraps err as a FatalError. A nil error stays nil.
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return &FatalError{Err: err}
}

// IsFatal reports whether err is permanent: either explicitly wrapped with
// Fatal, or one of the ledger consistency errors.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	var fatal *FatalError
	if errors.As(err, &fatal) {
		return true
	}
	for _, target := range []error{
		ErrInvalidEvent,
		ErrUserNotFound,
		ErrBalanceNotFound,
		ErrInstrumentNotFound,
		ErrPendingRedemptionNotFound,
		ErrReferrerNotFound,
		ErrInsufficientBalance,
		ErrEventConflict,
		fixedpoint.ErrDivisionByZero,
		fixedpoint.ErrInvalidNumber,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
