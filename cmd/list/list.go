// cmd/list/list.go
package list

import (
	"github.com/CodeMonkeyCybersecurity/kvault/pkg/kv_cli"
	"github.com/CodeMonkeyCybersecurity/kvault/pkg/kv_io"
	"github.com/CodeMonkeyCybersecurity/kvault/pkg/output"
	"github.com/CodeMonkeyCybersecurity/kvault/pkg/vault"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// ListAllCmd walks every KV engine and prints the secrets it holds.
var ListAllCmd = &cobra.Command{
	Use:     "list-all",
	Aliases: []string{"ls"},
	Short:   "List all secrets in all KV mounts",
	Long: `Discover every KV v1 and KV v2 engine through sys/mounts and list the
secrets under each one, descending into folders.

A folder that cannot be listed is skipped and logged; a mount whose root
cannot be listed is left out of the result.

Examples:
  kvault list-all
  kvault list-all --json | jq '.[].secrets[].path'`,
	Args: cobra.NoArgs,
	RunE: kv_cli.Wrap(runListAll),
}

func init() {
	ListAllCmd.Flags().Bool("json", false, "Output in JSON format")
}

func runListAll(rc *kv_io.RuntimeContext, cmd *cobra.Command, _ []string) error {
	asJSON, _ := cmd.Flags().GetBool("json")

	svc, err := kv_cli.NewService(rc)
	if err != nil {
		return err
	}

	if !asJSON {
		output.NewPrinter(rc.Deps.ErrOut).Info("Scanning Vault for secrets...")
	}
	listings, err := svc.Lister.ListAllMounts(rc.Ctx)
	if err != nil {
		return err
	}
	if listings == nil {
		listings = []vault.MountListing{}
	}

	p := output.NewPrinter(rc.Deps.Out)
	if asJSON {
		return output.JSONTo(p.Writer(), listings)
	}
	total := p.MountListings(listings)
	rc.Logger().Debug("Listed secrets", zap.Int("mounts", len(listings)), zap.Int("secrets", total))
	return nil
}
