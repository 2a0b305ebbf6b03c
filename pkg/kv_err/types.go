// pkg/kv_err/types.go

package kv_err

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so callers can branch without string matching.
type Kind string

const (
	KindMissingConfig     Kind = "MISSING_CONFIG"
	KindNotFound          Kind = "NOT_FOUND"
	KindTransportFailure  Kind = "TRANSPORT_FAILURE"
	KindMalformedResponse Kind = "MALFORMED_RESPONSE"
)

// ErrUserCancelled is returned when an interactive flow is aborted.
var ErrUserCancelled = errors.New("operation cancelled")

// Error is the typed failure returned by the vault client.
type Error struct {
	Kind    Kind
	Path    string
	Status  int
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil && e.Message == "" {
		return e.Cause.Error()
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// MissingConfig names the configuration key that was not supplied.
func MissingConfig(key string) error {
	return &Error{
		Kind:    KindMissingConfig,
		Message: fmt.Sprintf("Missing required config value at '%s'", key),
	}
}

// NotFound reports an absent secret.
func NotFound(path string) error {
	return &Error{
		Kind:    KindNotFound,
		Path:    path,
		Status:  404,
		Message: fmt.Sprintf("secret not found at %s", path),
	}
}

// Transport reports a network failure or an unexpected HTTP status.
func Transport(path string, status int, message string, cause error) error {
	return &Error{
		Kind:    KindTransportFailure,
		Path:    path,
		Status:  status,
		Message: message,
		Cause:   cause,
	}
}

// Malformed reports a 2xx body that did not match the expected envelope.
func Malformed(path string, cause error) error {
	return &Error{
		Kind:    KindMalformedResponse,
		Path:    path,
		Message: fmt.Sprintf("malformed response from %s", path),
		Cause:   cause,
	}
}

// KindOf returns the Kind of the first *Error in the chain, or "".
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err carries the given Kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

func IsNotFound(err error) bool {
	return IsKind(err, KindNotFound)
}
