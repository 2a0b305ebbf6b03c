// cmd/health/health.go
package health

import (
	"github.com/CodeMonkeyCybersecurity/kvault/pkg/kv_cli"
	"github.com/CodeMonkeyCybersecurity/kvault/pkg/kv_io"
	"github.com/CodeMonkeyCybersecurity/kvault/pkg/output"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// HealthCmd reports whether Vault is reachable, initialised and unsealed.
var HealthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check Vault server health",
	Long: `Query sys/health and print a summary.

A sealed or standby server still counts as reachable; only a failed request
reports "not accessible". With --strict (or vault.healthStrict) Vault's own
status codes are kept, so a sealed, uninitialised or standby server reports
"not accessible" too. The command exits 0 either way so it can be used in
scripts that parse --json.

Examples:
  kvault health
  kvault health --json
  kvault health --min-version 1.15.0
  kvault health --strict --json
  kvault health -u https://vault.example.com:8200`,
	Args: cobra.NoArgs,
	RunE: kv_cli.Wrap(runHealth),
}

func init() {
	HealthCmd.Flags().Bool("json", false, "Output in JSON format")
	HealthCmd.Flags().Bool("strict", false, "Report sealed, uninitialised or standby servers as not accessible")
	HealthCmd.Flags().String("min-version", "", "Warn when the server is older than this version (default vault.minVersion)")
}

func runHealth(rc *kv_io.RuntimeContext, cmd *cobra.Command, _ []string) error {
	asJSON, _ := cmd.Flags().GetBool("json")

	svc, err := kv_cli.NewService(rc)
	if err != nil {
		return err
	}

	p := output.NewPrinter(rc.Deps.Out)
	if !asJSON {
		output.NewPrinter(rc.Deps.ErrOut).Info("Checking Vault health...")
	}
	reporter := svc.Health
	if strict, _ := cmd.Flags().GetBool("strict"); strict {
		reporter = reporter.Strict()
	}
	h := reporter.GetHealth(rc.Ctx)
	rc.Logger().Debug("Health checked", zap.Bool("connected", h.Connected), zap.Bool("sealed", h.Sealed))

	if asJSON {
		return output.JSONTo(p.Writer(), h)
	}
	p.Health(h)

	minimum, _ := cmd.Flags().GetString("min-version")
	if minimum == "" {
		minimum = rc.Deps.Config.Vault.MinVersion
	}
	if minimum != "" && h.Connected {
		old, err := h.OlderThan(minimum)
		switch {
		case err != nil:
			rc.Logger().Warn("Could not compare Vault version", zap.Error(err))
		case old:
			p.Warn("Vault %s is older than the required minimum %s", h.Version, minimum)
		}
	}
	return nil
}
