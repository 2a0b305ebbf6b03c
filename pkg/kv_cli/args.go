// pkg/kv_cli/args.go

package kv_cli

import (
	"strings"

	"github.com/CodeMonkeyCybersecurity/kvault/pkg/kv_err"
	"github.com/CodeMonkeyCybersecurity/kvault/pkg/kvpath"
	cerr "github.com/cockroachdb/errors"
)

// SecretPathArg validates a mount-qualified path given on the command line.
func SecretPathArg(arg string) (string, error) {
	p := strings.Trim(strings.TrimSpace(arg), "/")
	if err := kvpath.ValidateSecretPath(p); err != nil {
		return "", kv_err.NewExpectedError(cerr.Wrapf(err, "invalid secret path %q", arg))
	}
	if _, rest := kvpath.SplitMount(p); rest == "" {
		return "", kv_err.NewExpectedError(cerr.Newf("invalid secret path %q: expected <mount>/<path>", arg))
	}
	return p, nil
}
