// pkg/kv_err/util.go

package kv_err

import (
	"errors"
	"strings"
)

// UserError marks an error as expected and recoverable by the user.
type UserError struct {
	cause error
}

func (e *UserError) Error() string {
	return e.cause.Error()
}

func (e *UserError) Unwrap() error {
	return e.cause
}

// NewExpectedError wraps an error for softer UX handling.
func NewExpectedError(err error) error {
	if err == nil {
		return nil
	}
	return &UserError{cause: err}
}

// IsExpectedUserError checks if the error is marked as expected.
func IsExpectedUserError(err error) bool {
	var e *UserError
	return errors.As(err, &e)
}

// GetExitCode maps an error to a process exit status.
// Every failure is non-zero; misconfiguration and user input get 2.
func GetExitCode(err error) int {
	if err == nil {
		return 0
	}
	if errors.Is(err, ErrUserCancelled) {
		return 130
	}
	if IsKind(err, KindMissingConfig) || IsExpectedUserError(err) {
		return 2
	}
	return 1
}

// SafeErrorSummary returns the first line of err, suitable for terminals.
func SafeErrorSummary(err error) string {
	if err == nil {
		return ""
	}
	msg := strings.TrimSpace(err.Error())
	if i := strings.IndexByte(msg, '\n'); i >= 0 {
		msg = msg[:i]
	}
	if msg == "" {
		return "Unknown error."
	}
	return msg
}
