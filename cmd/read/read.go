// cmd/read/read.go
package read

import (
	"github.com/CodeMonkeyCybersecurity/kvault/pkg/kv_cli"
	"github.com/CodeMonkeyCybersecurity/kvault/pkg/kv_io"
	"github.com/CodeMonkeyCybersecurity/kvault/pkg/output"
	"github.com/spf13/cobra"
)

// ReadCmd prints one secret.
var ReadCmd = &cobra.Command{
	Use:   "read <mount/path>",
	Short: "Read a secret",
	Long: `Read the secret at <mount/path>. The engine version is detected from
sys/mounts, so the same path works for KV v1 and KV v2 engines.

Examples:
  kvault read secret/my-app/config
  kvault read kv/my-app/config --format json
  kvault read kv/my-app/config --format yaml
  kvault read kv/my-app/config --out config.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: kv_cli.Wrap(runRead),
}

func init() {
	ReadCmd.Flags().StringP("format", "f", string(output.FormatText), "Output format: text, json or yaml")
	ReadCmd.Flags().StringP("out", "o", "", "Write the secret data as YAML to this file (mode 0600)")
}

func runRead(rc *kv_io.RuntimeContext, cmd *cobra.Command, args []string) error {
	raw, _ := cmd.Flags().GetString("format")
	format, err := output.ParseFormat(raw)
	if err != nil {
		return err
	}
	path, err := kv_cli.SecretPathArg(args[0])
	if err != nil {
		return err
	}

	svc, err := kv_cli.NewService(rc)
	if err != nil {
		return err
	}
	rec, mount, err := svc.ReadAuto(rc.Ctx, path)
	if err != nil {
		return err
	}
	rc.Attributes["kv_version"] = mount.Version.Label()

	p := output.NewPrinter(rc.Deps.Out)
	if file, _ := cmd.Flags().GetString("out"); file != "" {
		if err := kv_io.WriteYAML(rc.Ctx, rc.Log, file, rec.Data); err != nil {
			return err
		}
		p.Success("Secret written to %s", file)
		return nil
	}
	if format != output.FormatText {
		return output.Structured(p.Writer(), format, rec)
	}
	return p.Secret(rec, mount)
}
