// cmd/serve/serve.go
package serve

import (
	"context"
	"net"
	"sync"

	"github.com/CodeMonkeyCybersecurity/kvault/pkg/cli"
	"github.com/CodeMonkeyCybersecurity/kvault/pkg/kv_cli"
	"github.com/CodeMonkeyCybersecurity/kvault/pkg/kv_err"
	"github.com/CodeMonkeyCybersecurity/kvault/pkg/kv_io"
	"github.com/CodeMonkeyCybersecurity/kvault/pkg/router"
	"github.com/CodeMonkeyCybersecurity/kvault/pkg/vault"
	cerr "github.com/cockroachdb/errors"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// ServeCmd runs the plugin router.
var ServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve Vault health and secret listings over HTTP",
	Long: `Start the plugin router:

  GET /health   Vault health status as JSON
  GET /secrets  every KV mount and its secrets as JSON

When a config file is in use it is watched, and a changed vault.token is
applied without a restart. SIGINT or SIGTERM drains in-flight requests and
exits.

Examples:
  kvault serve
  kvault serve --listen 127.0.0.1:7007 --config /etc/kvault/kvault.yaml`,
	Args: cobra.NoArgs,
	RunE: kv_cli.Wrap(runServe),
}

func init() {
	ServeCmd.Flags().String("listen", ":7007", "Address to listen on")
	ServeCmd.Flags().Bool("watch-config", true, "Reload vault.token when the config file changes")
}

func runServe(rc *kv_io.RuntimeContext, cmd *cobra.Command, _ []string) error {
	listen, err := cli.GetRequiredString(cmd, "listen")
	if err != nil {
		return kv_err.NewExpectedError(err)
	}
	watch, _ := cmd.Flags().GetBool("watch-config")

	svc, err := kv_cli.NewService(rc)
	if err != nil {
		return err
	}

	if t, ok := svc.Transport().(*vault.APITransport); ok {
		rc.Logger().Debug("Vault transport ready",
			zap.String("addr", t.Address()),
			zap.String("circuit_breaker", t.BreakerState()))
	}

	sig := kv_cli.NewSignalHandler(rc.Ctx, rc.Log)
	defer sig.Stop()

	if v := rc.Deps.Viper; watch && v != nil && v.ConfigFileUsed() != "" {
		v.OnConfigChange(TokenReloader(sig.Context(), v, svc, rc.Deps.Config.Vault.Token, rc.Log))
		v.WatchConfig()
		rc.Logger().Info("Watching config file for token changes", zap.String("file", v.ConfigFileUsed()))
	}

	ln, err := net.Listen("tcp", listen)
	if err != nil {
		return cerr.Wrapf(err, "listen on %s", listen)
	}
	rc.Attributes["listen"] = ln.Addr().String()

	return router.Serve(sig.Context(), ln, router.New(svc.Health, svc.Lister, rc.Log), rc.Log)
}

// TokenRotator accepts a new Vault token.
type TokenRotator interface {
	SetToken(token string) error
}

// TokenReloader returns a config change handler that applies a changed,
// non-empty vault.token to svc.
func TokenReloader(ctx context.Context, v *viper.Viper, svc TokenRotator, current string, log *otelzap.Logger) func(fsnotify.Event) {
	var mu sync.Mutex
	return func(e fsnotify.Event) {
		mu.Lock()
		defer mu.Unlock()

		token := v.GetString("vault.token")
		if token == "" || token == current {
			log.Ctx(ctx).Debug("Config changed, token unchanged", zap.String("file", e.Name), zap.String("op", e.Op.String()))
			return
		}
		if err := svc.SetToken(token); err != nil {
			log.Ctx(ctx).Error("Failed to apply new Vault token", zap.Error(err))
			return
		}
		current = token
		log.Ctx(ctx).Info("Vault token reloaded from config", zap.String("file", e.Name))
	}
}
