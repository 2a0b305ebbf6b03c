// cmd/write/write.go
package write

import (
	"strings"

	"github.com/CodeMonkeyCybersecurity/kvault/pkg/kv_cli"
	"github.com/CodeMonkeyCybersecurity/kvault/pkg/kv_err"
	"github.com/CodeMonkeyCybersecurity/kvault/pkg/kv_io"
	"github.com/CodeMonkeyCybersecurity/kvault/pkg/kvpath"
	"github.com/CodeMonkeyCybersecurity/kvault/pkg/output"
	cerr "github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// WriteCmd creates or replaces a secret from key=value arguments.
var WriteCmd = &cobra.Command{
	Use:   "write <mount/path> key=value [key=value...]",
	Short: "Create or update a secret",
	Long: `Write the given fields to <mount/path>, detecting the engine version
from sys/mounts.

The secret is replaced by the given fields. Pass --merge to keep fields
already stored that are not named on the command line.

Examples:
  kvault write kv/my-app/config user=admin port=5432
  kvault write secret/legacy/app token=abc --merge`,
	Args: cobra.MinimumNArgs(2),
	RunE: kv_cli.Wrap(runWrite),
}

func init() {
	WriteCmd.Flags().Bool("merge", false, "Keep existing fields not named on the command line")
}

func runWrite(rc *kv_io.RuntimeContext, cmd *cobra.Command, args []string) error {
	merge, _ := cmd.Flags().GetBool("merge")

	path, err := kv_cli.SecretPathArg(args[0])
	if err != nil {
		return err
	}
	fields, err := ParsePairs(args[1:])
	if err != nil {
		return err
	}

	svc, err := kv_cli.NewService(rc)
	if err != nil {
		return err
	}
	mount, err := svc.Locate(rc.Ctx, path)
	if err != nil {
		return err
	}

	payload := fields
	if merge {
		rec, err := svc.Secrets.ReadAt(rc.Ctx, mount, path)
		switch {
		case err == nil:
			payload = mergeFields(rec.Data, fields)
		case kv_err.IsNotFound(err):
			rc.Logger().Debug("Nothing to merge, secret is new", zap.String("path", path))
		default:
			return err
		}
	}

	if err := svc.Secrets.WriteAt(rc.Ctx, mount, path, payload); err != nil {
		return err
	}
	rc.Attributes["kv_version"] = mount.Version.Label()

	p := output.NewPrinter(rc.Deps.Out)
	p.Success("Secret saved successfully!")
	p.Plain("Path: %s", path)
	p.Plain("Engine type: %s", mount.Version.Label())
	p.Plain("Fields: %d", len(payload))
	return nil
}

// ParsePairs turns key=value arguments into a payload. Keys follow the
// same rules as the interactive prompt; values may contain '='.
func ParsePairs(args []string) (map[string]any, error) {
	out := make(map[string]any, len(args))
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok {
			return nil, kv_err.NewExpectedError(cerr.Newf("argument %q is not key=value", arg))
		}
		if err := kvpath.ValidateSecretKey(key); err != nil {
			return nil, kv_err.NewExpectedError(cerr.Wrapf(err, "argument %q", arg))
		}
		if value == "" {
			return nil, kv_err.NewExpectedError(cerr.Newf("value for %q cannot be empty", key))
		}
		if _, dup := out[key]; dup {
			return nil, kv_err.NewExpectedError(cerr.Newf("key %q given more than once", key))
		}
		out[key] = value
	}
	return out, nil
}

func mergeFields(existing, updates map[string]any) map[string]any {
	out := make(map[string]any, len(existing)+len(updates))
	for k, v := range existing {
		out[k] = v
	}
	for k, v := range updates {
		out[k] = v
	}
	return out
}
