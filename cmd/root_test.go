package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/CodeMonkeyCybersecurity/kvault/pkg/vault/vaulttest"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type result struct {
	stdout string
	stderr string
	code   int
}

func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// run executes the CLI in-process. Tests using it share RootCmd and must
// not run in parallel.
func run(t *testing.T, stdin string, args ...string) result {
	t.Helper()
	for _, env := range []string{
		"VAULT_ADDR", "VAULT_TOKEN", "VAULT_NAMESPACE", "VAULT_ROLE_ID", "VAULT_SECRET_ID",
		"VAULT_USERNAME", "VAULT_PASSWORD", "LOG_LEVEL", "KVAULT_LOG_FILE", "KVAULT_TELEMETRY_FILE",
	} {
		t.Setenv(env, "")
	}
	RegisterCommands()
	resetFlags(RootCmd)

	var out, errOut bytes.Buffer
	RootCmd.SetOut(&out)
	RootCmd.SetErr(&errOut)
	RootCmd.SetIn(strings.NewReader(stdin))
	t.Cleanup(func() {
		RootCmd.SetOut(nil)
		RootCmd.SetErr(nil)
		RootCmd.SetIn(nil)
	})

	code := Run(context.Background(), args)
	return result{stdout: out.String(), stderr: errOut.String(), code: code}
}

func newServer(t *testing.T) *vaulttest.Server {
	t.Helper()
	srv := vaulttest.New(t)
	srv.Token = "root"
	return srv
}

func TestHealthCommand(t *testing.T) {
	srv := newServer(t)

	res := run(t, "", "health", "-u", srv.URL, "-t", "root")
	require.Equal(t, 0, res.code, res.stderr)
	assert.Contains(t, res.stdout, "✓ Vault is healthy")
	assert.Contains(t, res.stdout, "  Version: 1.16.0")
	assert.Contains(t, res.stdout, "  Sealed: false")
	assert.Contains(t, res.stderr, "Checking Vault health...")

	res = run(t, "", "health", "--json", "-u", srv.URL, "-t", "root")
	require.Equal(t, 0, res.code, res.stderr)
	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &got))
	assert.Equal(t, true, got["connected"])
	assert.Equal(t, "1.16.0", got["version"])
}

func TestHealthCommandMinVersion(t *testing.T) {
	srv := newServer(t)

	res := run(t, "", "health", "-u", srv.URL, "-t", "root", "--min-version", "1.17.0")
	require.Equal(t, 0, res.code, res.stderr)
	assert.Contains(t, res.stdout, "Vault 1.16.0 is older than the required minimum 1.17.0")

	res = run(t, "", "health", "-u", srv.URL, "-t", "root", "--min-version", "1.15.0")
	require.Equal(t, 0, res.code, res.stderr)
	assert.NotContains(t, res.stdout, "older than")
}

func TestHealthCommandStrictSealed(t *testing.T) {
	srv := newServer(t)
	srv.SetHealth(503, map[string]any{"sealed": true})

	res := run(t, "", "health", "-u", srv.URL, "-t", "root", "--json")
	require.Equal(t, 0, res.code, res.stderr)
	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &got))
	assert.Equal(t, true, got["connected"])
	assert.Equal(t, true, got["sealed"])

	res = run(t, "", "health", "-u", srv.URL, "-t", "root", "--json", "--strict")
	require.Equal(t, 0, res.code, res.stderr)
	got = nil
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &got))
	assert.Equal(t, false, got["connected"])
	assert.Equal(t, "unknown", got["version"])
}

func TestHealthCommandUnreachable(t *testing.T) {
	srv := vaulttest.New(t)
	addr := srv.URL
	srv.Close()

	res := run(t, "", "health", "-u", addr, "-t", "root", "--timeout", "2s")
	assert.Equal(t, 0, res.code)
	assert.Contains(t, res.stdout, "✗ Vault is not accessible")
}

func TestMissingTokenExitsWithConfigError(t *testing.T) {
	srv := newServer(t)

	res := run(t, "", "health", "-u", srv.URL)
	assert.Equal(t, 2, res.code)
	assert.Contains(t, res.stderr, "Missing required config value at 'vault.token'")
	assert.Empty(t, srv.Requests())
}

func TestListAllCommand(t *testing.T) {
	srv := newServer(t)
	srv.AddMount("kv", "kv", 2)
	srv.AddMount("legacy", "kv", 1)
	srv.Put("kv/app/db", map[string]any{"pw": "x"})
	srv.Put("kv/web", map[string]any{"k": "v"})

	res := run(t, "", "list-all", "-u", srv.URL, "-t", "root")
	require.Equal(t, 0, res.code, res.stderr)
	assert.Contains(t, res.stdout, "Mount: kv (KV2)\n  kv/app/db\n  kv/web\n")
	assert.Contains(t, res.stdout, "Mount: legacy (KV1)\n  No secrets found\n")
	assert.Contains(t, res.stdout, "Total secrets found: 2")

	res = run(t, "", "list-all", "--json", "-u", srv.URL, "-t", "root")
	require.Equal(t, 0, res.code, res.stderr)
	var listings []map[string]any
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &listings))
	require.Len(t, listings, 2)
	assert.Equal(t, "kv", listings[0]["mount"])
	assert.Equal(t, "KV2", listings[0]["type"])
}

func TestWriteReadExists(t *testing.T) {
	srv := newServer(t)
	srv.AddMount("kv", "kv", 2)

	res := run(t, "", "exists", "kv/app/config", "-u", srv.URL, "-t", "root")
	require.Equal(t, 0, res.code, res.stderr)
	assert.Equal(t, "false\n", res.stdout)

	res = run(t, "", "write", "kv/app/config", "user=admin", "dsn=postgres://u:p@db/x?a=b", "-u", srv.URL, "-t", "root")
	require.Equal(t, 0, res.code, res.stderr)
	assert.Contains(t, res.stdout, "Secret saved successfully!")
	stored, ok := srv.Get("kv/app/config")
	require.True(t, ok)
	assert.Equal(t, "postgres://u:p@db/x?a=b", stored["dsn"])

	res = run(t, "", "exists", "kv/app/config", "-u", srv.URL, "-t", "root")
	assert.Equal(t, "true\n", res.stdout)

	res = run(t, "", "write", "kv/app/config", "port=5432", "--merge", "-u", srv.URL, "-t", "root")
	require.Equal(t, 0, res.code, res.stderr)
	stored, _ = srv.Get("kv/app/config")
	assert.Equal(t, "admin", stored["user"])
	assert.Equal(t, "5432", stored["port"])

	res = run(t, "", "read", "kv/app/config", "--format", "json", "-u", srv.URL, "-t", "root")
	require.Equal(t, 0, res.code, res.stderr)
	var rec struct {
		Path string         `json:"path"`
		Data map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &rec))
	assert.Equal(t, "kv/app/config", rec.Path)
	assert.Equal(t, "admin", rec.Data["user"])

	res = run(t, "", "read", "kv/app/config", "-u", srv.URL, "-t", "root")
	require.Equal(t, 0, res.code, res.stderr)
	assert.Contains(t, res.stdout, "Path: kv/app/config")
	assert.Contains(t, res.stdout, "Engine: kv (KV2)")

	file := filepath.Join(t.TempDir(), "config.yaml")
	res = run(t, "", "read", "kv/app/config", "--out", file, "-u", srv.URL, "-t", "root")
	require.Equal(t, 0, res.code, res.stderr)
	assert.Contains(t, res.stdout, "Secret written to "+file)
	raw, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "user: admin")
	info, err := os.Stat(file)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestReadErrors(t *testing.T) {
	srv := newServer(t)
	srv.AddMount("kv", "kv", 2)

	res := run(t, "", "read", "kv/missing", "-u", srv.URL, "-t", "root")
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stderr, "secret not found at kv/data/missing")

	res = run(t, "", "read", "kv/app", "--format", "xml", "-u", srv.URL, "-t", "root")
	assert.Equal(t, 2, res.code)

	res = run(t, "", "read", "kv", "-u", srv.URL, "-t", "root")
	assert.Equal(t, 2, res.code)
	assert.Contains(t, res.stderr, "expected <mount>/<path>")
}

func TestWriteRejectsBadPairs(t *testing.T) {
	srv := newServer(t)
	srv.AddMount("kv", "kv", 2)

	res := run(t, "", "write", "kv/app", "novalue", "-u", srv.URL, "-t", "root")
	assert.Equal(t, 2, res.code)
	assert.Contains(t, res.stderr, "is not key=value")
	assert.Empty(t, srv.RequestsTo("kv/data/app"))
}

func TestInteractiveCommand(t *testing.T) {
	srv := newServer(t)
	srv.AddMount("kv", "kv", 2)

	stdin := strings.Join([]string{"1", "team/app", "token", "abc123", "n", "y"}, "\n") + "\n"
	res := run(t, stdin, "interactive", "-u", srv.URL, "-t", "root")
	require.Equal(t, 0, res.code, res.stderr)
	assert.Contains(t, res.stdout, "Select secret engine:")
	assert.Contains(t, res.stdout, "Secret saved successfully!")

	stored, ok := srv.Get("kv/team/app")
	require.True(t, ok)
	assert.Equal(t, "abc123", stored["token"])
}

func TestInteractiveCommandAborted(t *testing.T) {
	srv := newServer(t)
	srv.AddMount("kv", "kv", 2)

	res := run(t, "1\n", "interactive", "-u", srv.URL, "-t", "root")
	assert.Equal(t, 130, res.code)
	assert.Contains(t, res.stderr, "operation cancelled")
}

func TestUnknownCommand(t *testing.T) {
	res := run(t, "", "frobnicate")
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stderr, "unknown command")
}
