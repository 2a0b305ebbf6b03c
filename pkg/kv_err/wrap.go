// pkg/kv_err/wrap.go

package kv_err

import (
	cerr "github.com/cockroachdb/errors"
)

// WrapValidationError attaches a stack and a hint to a config validation failure.
func WrapValidationError(err error) error {
	return cerr.WithHint(cerr.WithStack(err), "validation failed")
}
