// cmd/interactive/interactive.go
package interactive

import (
	"github.com/CodeMonkeyCybersecurity/kvault/pkg/interaction"
	"github.com/CodeMonkeyCybersecurity/kvault/pkg/kv_cli"
	"github.com/CodeMonkeyCybersecurity/kvault/pkg/kv_io"
	"github.com/CodeMonkeyCybersecurity/kvault/pkg/output"
	"github.com/CodeMonkeyCybersecurity/kvault/pkg/wizard"
	"github.com/spf13/cobra"
)

// InteractiveCmd walks the user through creating or updating a secret.
var InteractiveCmd = &cobra.Command{
	Use:     "interactive",
	Aliases: []string{"i"},
	Short:   "Interactively create or update a secret",
	Long: `Choose a KV engine, enter a path, review any current values, then enter
fields one at a time. Values are read without echo when stdin is a
terminal. Nothing is written until you confirm.

Press Ctrl-D at any prompt to abort.`,
	Args: cobra.NoArgs,
	RunE: kv_cli.Wrap(runInteractive),
}

func runInteractive(rc *kv_io.RuntimeContext, _ *cobra.Command, _ []string) error {
	svc, err := kv_cli.NewService(rc)
	if err != nil {
		return err
	}

	prompt := interaction.NewPrompter(rc.Deps.In, rc.Deps.Out, rc.Log)
	res, err := wizard.New(svc, prompt, output.NewPrinter(rc.Deps.Out), rc.Log).Run(rc.Ctx)
	if err != nil {
		return err
	}
	if res.Saved {
		rc.Attributes["kv_version"] = res.Version.Label()
	}
	return nil
}
