package wizard

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/CodeMonkeyCybersecurity/kvault/pkg/config"
	"github.com/CodeMonkeyCybersecurity/kvault/pkg/interaction"
	"github.com/CodeMonkeyCybersecurity/kvault/pkg/kv_err"
	"github.com/CodeMonkeyCybersecurity/kvault/pkg/kvpath"
	"github.com/CodeMonkeyCybersecurity/kvault/pkg/logger"
	"github.com/CodeMonkeyCybersecurity/kvault/pkg/output"
	"github.com/CodeMonkeyCybersecurity/kvault/pkg/vault"
	"github.com/CodeMonkeyCybersecurity/kvault/pkg/vault/vaulttest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newWizard(t *testing.T, srv *vaulttest.Server, input string) (*Wizard, *bytes.Buffer) {
	t.Helper()
	cfg := config.Default().Vault
	cfg.BaseURL = srv.URL
	cfg.Token = "root"
	cfg.Timeout = 5 * time.Second
	svc, err := vault.New(cfg, logger.Nop())
	require.NoError(t, err)

	out := &bytes.Buffer{}
	prompt := interaction.NewPrompter(strings.NewReader(input), out, nil)
	return New(svc, prompt, output.NewPrinter(out), nil), out
}

func lines(answers ...string) string {
	return strings.Join(answers, "\n") + "\n"
}

func TestRunCreatesSecret(t *testing.T) {
	t.Parallel()
	srv := vaulttest.New(t)
	srv.AddMount("kv", "kv", 2)
	srv.AddMount("legacy", "kv", 1)

	w, out := newWizard(t, srv, lines(
		"1",             // engine
		"my-app/config", // path
		"user", "admin", "y",
		"pass", "s3cret", "n",
		"y", // save
	))
	res, err := w.Run(context.Background())
	require.NoError(t, err)

	assert.True(t, res.Saved)
	assert.False(t, res.Existed)
	assert.Equal(t, "kv/my-app/config", res.Path)
	assert.Equal(t, kvpath.V2, res.Version)

	stored, ok := srv.Get("kv/my-app/config")
	require.True(t, ok)
	assert.Equal(t, map[string]any{"user": "admin", "pass": "s3cret"}, stored)
	assert.Len(t, srv.RequestsTo("kv/data/my-app/config"), 1)

	text := out.String()
	assert.Contains(t, text, "  1) kv (KV2)\n  2) legacy (KV1)\n")
	assert.Contains(t, text, "Working with secret at: kv/my-app/config")
	assert.Contains(t, text, "Secret saved successfully!")
	assert.Contains(t, text, "Engine type: KV2")
	assert.NotContains(t, text, "Secret already exists")
}

func TestRunShowsExistingValues(t *testing.T) {
	t.Parallel()
	srv := vaulttest.New(t)
	srv.AddMount("legacy", "kv", 1)
	srv.Put("legacy/app", map[string]any{"old": "value"})

	w, out := newWizard(t, srv, lines("1", "app", ""))
	res, err := w.Run(context.Background())
	require.NoError(t, err)

	assert.True(t, res.Existed)
	assert.False(t, res.Saved)
	text := out.String()
	assert.Contains(t, text, "Secret already exists. Current values:")
	assert.Contains(t, text, "old")
	assert.Contains(t, text, "No secret data provided. Operation cancelled.")

	stored, _ := srv.Get("legacy/app")
	assert.Equal(t, "value", stored["old"])
}

func TestRunRejectsInvalidInputAndDeclines(t *testing.T) {
	t.Parallel()
	srv := vaulttest.New(t)
	srv.AddMount("kv", "kv", 2)

	w, out := newWizard(t, srv, lines(
		"1",
		"/leading", "trailing/", "bad path!", "ok/path",
		"bad key", "good_key",
		"", "filled",
		"n",
		"n", // do not save
	))
	res, err := w.Run(context.Background())
	require.NoError(t, err)

	assert.False(t, res.Saved)
	assert.Equal(t, map[string]any{"good_key": "filled"}, res.Data)
	_, ok := srv.Get("kv/ok/path")
	assert.False(t, ok)

	text := out.String()
	assert.Equal(t, 2, strings.Count(text, "path cannot start or end with /"))
	assert.Contains(t, text, "path can only contain")
	assert.Contains(t, text, "key can only contain")
	assert.Contains(t, text, "Value cannot be empty")
	assert.Contains(t, text, "Operation cancelled.")
}

func TestRunEndOfInputCancels(t *testing.T) {
	t.Parallel()
	srv := vaulttest.New(t)
	srv.AddMount("kv", "kv", 2)

	w, _ := newWizard(t, srv, lines("1", "app", "key"))
	_, err := w.Run(context.Background())
	require.ErrorIs(t, err, kv_err.ErrUserCancelled)
	assert.Equal(t, 130, kv_err.GetExitCode(err))
}

func TestRunWithoutEngines(t *testing.T) {
	t.Parallel()
	srv := vaulttest.New(t)
	srv.AddMount("transit", "transit", 0)

	w, _ := newWizard(t, srv, lines("1"))
	_, err := w.Run(context.Background())
	require.Error(t, err)
	assert.True(t, kv_err.IsExpectedUserError(err))
}

func TestRunWriteFailure(t *testing.T) {
	t.Parallel()
	srv := vaulttest.New(t)
	srv.AddMount("kv", "kv", 2)
	srv.FailWith("kv/data/app", 400, map[string]any{"warnings": []string{"check-and-set parameter required"}})

	w, _ := newWizard(t, srv, lines("1", "app", "k", "v", "n", "y"))
	_, err := w.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "check-and-set parameter required")
}
