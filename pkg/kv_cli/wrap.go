// pkg/kv_cli/wrap.go

package kv_cli

import (
	"github.com/CodeMonkeyCybersecurity/kvault/pkg/kv_err"
	"github.com/CodeMonkeyCybersecurity/kvault/pkg/kv_io"
	cerr "github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// Wrap ensures panic recovery, a span and a lifecycle log per command.
func Wrap(fn func(rc *kv_io.RuntimeContext, cmd *cobra.Command, args []string) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		rc := kv_io.NewContext(cmd.Context(), cmd.Name())
		defer rc.End(&err)
		defer rc.HandlePanic(&err)

		rc.Logger().Debug("Command started",
			zap.String("command", cmd.CommandPath()),
			zap.Int("args", len(args)))

		err = fn(rc, cmd, args)
		if err != nil && !kv_err.IsExpectedUserError(err) && kv_err.KindOf(err) == "" {
			err = cerr.WithStack(err)
		}
		return err
	}
}
