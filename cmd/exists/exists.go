// cmd/exists/exists.go
package exists

import (
	"fmt"

	"github.com/CodeMonkeyCybersecurity/kvault/pkg/kv_cli"
	"github.com/CodeMonkeyCybersecurity/kvault/pkg/kv_io"
	"github.com/CodeMonkeyCybersecurity/kvault/pkg/vault"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// ExistsCmd prints whether a secret is present.
var ExistsCmd = &cobra.Command{
	Use:   "exists <mount/path>",
	Short: "Check whether a secret exists",
	Long: `Print "true" when a secret is stored at <mount/path> and "false"
otherwise. KV v2 engines are checked through their metadata endpoint.

A server error also prints "false"; the reason is logged at warn level.

Examples:
  kvault exists kv/my-app/config
  [ "$(kvault exists kv/my-app/config)" = true ] && echo present`,
	Args: cobra.ExactArgs(1),
	RunE: kv_cli.Wrap(runExists),
}

func runExists(rc *kv_io.RuntimeContext, _ *cobra.Command, args []string) error {
	path, err := kv_cli.SecretPathArg(args[0])
	if err != nil {
		return err
	}
	svc, err := kv_cli.NewService(rc)
	if err != nil {
		return err
	}

	lookup, mount := svc.ProbeAuto(rc.Ctx, path)
	if lookup.State == vault.Failed {
		rc.Logger().Warn("Could not check secret",
			zap.String("path", path), zap.Int("status", lookup.Status), zap.Error(lookup.Err))
	}
	rc.Attributes["lookup"] = lookup.State.String()
	if mount.Path != "" {
		rc.Attributes["kv_version"] = mount.Version.Label()
	}

	_, err = fmt.Fprintln(rc.Deps.Out, lookup.State == vault.Found)
	return err
}
