/* cmd/root.go */

package cmd

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/CodeMonkeyCybersecurity/kvault/pkg/cli"
	"github.com/CodeMonkeyCybersecurity/kvault/pkg/config"
	"github.com/CodeMonkeyCybersecurity/kvault/pkg/kv_err"
	"github.com/CodeMonkeyCybersecurity/kvault/pkg/kv_io"
	"github.com/CodeMonkeyCybersecurity/kvault/pkg/logger"
	"github.com/CodeMonkeyCybersecurity/kvault/pkg/telemetry"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/term"

	// Subcommands
	"github.com/CodeMonkeyCybersecurity/kvault/cmd/exists"
	"github.com/CodeMonkeyCybersecurity/kvault/cmd/health"
	"github.com/CodeMonkeyCybersecurity/kvault/cmd/interactive"
	"github.com/CodeMonkeyCybersecurity/kvault/cmd/list"
	"github.com/CodeMonkeyCybersecurity/kvault/cmd/read"
	"github.com/CodeMonkeyCybersecurity/kvault/cmd/serve"
	"github.com/CodeMonkeyCybersecurity/kvault/cmd/write"
)

const serviceName = "kvault"

// flagKeys maps persistent flags onto config keys.
var flagKeys = map[string]string{
	"url":       "vault.baseUrl",
	"token":     "vault.token",
	"namespace": "vault.namespace",
	"timeout":   "vault.timeout",
	"log-level": "log.level",
	"log-file":  "log.file",
}

// teardown flushes logs and spans once the command has finished.
var teardown = func() {}

// RootCmd is the base command for kvault.
var RootCmd = &cobra.Command{
	Use:   serviceName,
	Short: "Read, write and list secrets in HashiCorp Vault KV engines",
	Long: `kvault is a command-line client for HashiCorp Vault's key/value secret engines.

It works with both KV v1 and KV v2 mounts, auto-detecting the engine version
from sys/mounts, and can run a small HTTP router exposing Vault health and
secret listings to a plugin host.

Configuration is read from flags, then VAULT_ADDR / VAULT_TOKEN /
VAULT_NAMESPACE (a .env file is loaded when present), then kvault.yaml.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

func init() {
	d := config.Default()
	pf := RootCmd.PersistentFlags()
	pf.StringP("url", "u", d.Vault.BaseURL, "Vault server URL")
	pf.StringP("token", "t", "", "Vault token")
	pf.String("namespace", "", "Vault Enterprise namespace")
	pf.String("config", "", "Path to a kvault.yaml config file")
	pf.String("log-level", d.Log.Level, "Log level (debug, info, warn, error)")
	pf.String("log-file", "", "Also write JSON logs to this file")
	pf.Duration("timeout", d.Vault.Timeout, "Per-request timeout for Vault calls")
}

var registerOnce sync.Once

// RegisterCommands adds all subcommands to the root command.
func RegisterCommands() {
	registerOnce.Do(registerCommands)
}

func registerCommands() {
	for _, subCmd := range []*cobra.Command{
		health.HealthCmd,
		list.ListAllCmd,
		interactive.InteractiveCmd,
		read.ReadCmd,
		write.WriteCmd,
		exists.ExistsCmd,
		serve.ServeCmd,
	} {
		RootCmd.AddCommand(subCmd)
	}
}

// setup loads configuration and builds the logger and tracer every
// subcommand receives through its context.
func setup(cmd *cobra.Command, _ []string) error {
	v := viper.New()
	if err := cli.BindFlagsToViper(cmd.Root().PersistentFlags(), v, flagKeys); err != nil {
		return err
	}
	cfgFile, _ := cmd.Flags().GetString("config")
	if err := config.Prepare(v, config.LoadOptions{ConfigFile: cfgFile}); err != nil {
		return kv_err.NewExpectedError(err)
	}
	cfg, err := config.Decode(v)
	if err != nil {
		return kv_err.NewExpectedError(err)
	}
	if err := cfg.Log.Validate(); err != nil {
		return err
	}

	errOut := cmd.ErrOrStderr()
	log, closeLog, err := logger.New(logger.Options{
		Level:   cfg.Log.Level,
		File:    cfg.Log.File,
		Console: errOut,
		Colour:  isTerminal(errOut),
	})
	if err != nil {
		return err
	}

	shutdown, err := telemetry.Init(serviceName)
	if err != nil {
		log.Warn("Telemetry disabled", zap.Error(err))
		shutdown = func(context.Context) error { return nil }
	}

	teardown = func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(ctx); err != nil {
			log.Warn("Failed to flush telemetry", zap.Error(err))
		}
		if err := closeLog(); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to flush logs: %v\n", err)
		}
	}

	log.Debug("Configuration loaded",
		zap.String("config_file", v.ConfigFileUsed()),
		zap.String("vault_addr", cfg.Vault.BaseURL),
		zap.Bool("namespace_set", cfg.Vault.Namespace != ""))

	cmd.SetContext(kv_io.WithDeps(cmd.Context(), &kv_io.Deps{
		Config: cfg,
		Viper:  v,
		Log:    log,
		In:     cmd.InOrStdin(),
		Out:    cmd.OutOrStdout(),
		ErrOut: errOut,
	}))
	return nil
}

func isTerminal(w any) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// Run executes the root command with args and returns the exit code.
func Run(ctx context.Context, args []string) int {
	RootCmd.SetArgs(args)
	err := RootCmd.ExecuteContext(ctx)
	teardown()
	teardown = func() {}

	if err != nil {
		fmt.Fprintf(RootCmd.ErrOrStderr(), "Error: %s\n", kv_err.SafeErrorSummary(err))
	}
	return kv_err.GetExitCode(err)
}

// Execute initializes and runs the root command.
func Execute() {
	RegisterCommands()
	os.Exit(Run(context.Background(), os.Args[1:]))
}
