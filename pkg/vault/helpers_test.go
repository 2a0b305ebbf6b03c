package vault

import (
	"context"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/CodeMonkeyCybersecurity/kvault/pkg/config"
	"github.com/CodeMonkeyCybersecurity/kvault/pkg/logger"
	"github.com/CodeMonkeyCybersecurity/kvault/pkg/vault/vaulttest"
	"github.com/hashicorp/vault/api"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func testConfig(addr string) config.Vault {
	cfg := config.Default().Vault
	cfg.BaseURL = addr
	cfg.Token = "root"
	cfg.Timeout = 5 * time.Second
	return cfg
}

func newTestService(t *testing.T, srv *vaulttest.Server, mutate ...func(*config.Vault)) (*Service, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	cfg := testConfig(srv.URL)
	for _, m := range mutate {
		m(&cfg)
	}
	svc, err := New(cfg, logger.Wrap(zap.New(core)), WithClock(func() time.Time { return fixedNow }))
	require.NoError(t, err)
	return svc, logs
}

// closedServerURL returns an address nothing is listening on.
func closedServerURL(t *testing.T) string {
	t.Helper()
	srv := vaulttest.New(t)
	addr := srv.URL
	srv.Close()
	return addr
}

// stubTransport answers from a table keyed by path.
type stubTransport struct {
	mu        sync.Mutex
	responses map[string]*RawResponse
	errs      map[string]error
	calls     []string
}

func (s *stubTransport) Read(_ context.Context, path string, _ url.Values) (*RawResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, path)
	if err, ok := s.errs[path]; ok {
		return nil, err
	}
	if r, ok := s.responses[path]; ok {
		return r, nil
	}
	return &RawResponse{StatusCode: 404}, nil
}

func (s *stubTransport) Write(ctx context.Context, path string, _ []byte) (*RawResponse, error) {
	return s.Read(ctx, path, nil)
}

func jsonResp(status int, body string) *RawResponse {
	return &RawResponse{StatusCode: status, Body: []byte(body)}
}

func mountOutput(typ string, options map[string]string) *api.MountOutput {
	return &api.MountOutput{Type: typ, Options: options}
}
