package service

import (
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	ErrAccountNotFound      = errors.New("account not found")
	ErrVerificationRequired = errors.New("email not verified, please verify your email first")
	ErrTooManyAttempts      = errors.New("too many attempts")
	ErrNotificationFailed   = errors.New("could not send the password reset email, please try again later")
	ErrInvalidCode          = errors.New("invalid password reset code")
	ErrCodeNotFound         = errors.New("no active password reset code, please request a new one")
	ErrResetConflict        = errors.New("password reset state changed concurrently, please try again")
)

// ResetError carries the user-facing details of a refused reset step.
// It unwraps to one of the sentinel errors above.
type ResetError struct {
	Kind              error
	Message           string
	RetryAfter        time.Duration
	RemainingAttempts int
}

func (e *ResetError) Error() string {
	if e.Message == "" {
		return e.Kind.Error()
	}
	return e.Message
}

func (e *ResetError) Unwrap() error {
	return e.Kind
}

func tooManyAttempts(retryAfter time.Duration, format string, args ...any) *ResetError {
	return &ResetError{
		Kind:       ErrTooManyAttempts,
		Message:    fmt.Sprintf(format, args...),
		RetryAfter: retryAfter,
	}
}

// codeSpent reports a code whose attempt budget is used up. It carries no
// RetryAfter: only a new code helps.
func codeSpent() *ResetError {
	return &ResetError{
		Kind:              ErrTooManyAttempts,
		Message:           "attempt limit reached for this code, please request a new one",
		RemainingAttempts: 0,
	}
}

func ceilSeconds(d time.Duration) int {
	return int(math.Ceil(d.Seconds()))
}

func ceilMinutes(d time.Duration) int {
	return int(math.Ceil(d.Minutes()))
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
