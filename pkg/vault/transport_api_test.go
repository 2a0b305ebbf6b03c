package vault

import (
	"context"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/CodeMonkeyCybersecurity/kvault/pkg/vault/vaulttest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAPITransportStatusIsNotAnError(t *testing.T) {
	t.Parallel()
	srv := vaulttest.New(t)
	srv.FailWith("kv/data/x", http.StatusBadGateway, map[string]any{"errors": []string{"upstream"}})
	tr, err := NewAPITransport(srv.URL, "tok", WithTimeout(time.Second))
	require.NoError(t, err)

	resp, err := tr.Read(context.Background(), "kv/data/x", url.Values{"version": []string{"2"}})
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.False(t, resp.OK())
	assert.JSONEq(t, `{"errors":["upstream"]}`, string(resp.Body))

	reqs := srv.RequestsTo("kv/data/x")
	require.Len(t, reqs, 1)
	assert.Equal(t, "2", reqs[0].Query.Get("version"))
	assert.Equal(t, "tok", reqs[0].Header.Get("X-Vault-Token"))
}

func TestAPITransportNoRetries(t *testing.T) {
	t.Parallel()
	srv := vaulttest.New(t)
	srv.Fail("sys/health", http.StatusInternalServerError)
	tr, err := NewAPITransport(srv.URL, "tok")
	require.NoError(t, err)

	resp, err := tr.Read(context.Background(), "sys/health", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Len(t, srv.RequestsTo("sys/health"), 1)
}

func TestAPITransportWriteUsesPut(t *testing.T) {
	t.Parallel()
	srv := vaulttest.New(t)
	srv.AddMount("secret", "kv", 1)
	tr, err := NewAPITransport(srv.URL, "tok", WithRateLimit(50))
	require.NoError(t, err)

	resp, err := tr.Write(context.Background(), "secret/a", []byte(`{"k":"v"}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.True(t, resp.OK())

	reqs := srv.RequestsTo("secret/a")
	require.Len(t, reqs, 1)
	assert.Equal(t, http.MethodPut, reqs[0].Method)
}

func TestAPITransportConnectionFailure(t *testing.T) {
	t.Parallel()
	tr, err := NewAPITransport(closedServerURL(t), "tok", WithTimeout(time.Second))
	require.NoError(t, err)

	_, err = tr.Read(context.Background(), "sys/health", nil)
	assert.Error(t, err)
	_, err = tr.Write(context.Background(), "secret/a", []byte(`{}`))
	assert.Error(t, err)
}

func TestAPITransportAccessors(t *testing.T) {
	t.Parallel()
	tr, err := NewAPITransport("http://127.0.0.1:18200", "first")
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:18200", tr.Address())
	assert.Equal(t, "first", tr.Client().Token())
	tr.SetToken("second")
	assert.Equal(t, "second", tr.Client().Token())
	assert.Empty(t, tr.Client().Namespace())
}

func TestRawResponseOK(t *testing.T) {
	t.Parallel()
	var nilResp *RawResponse
	assert.False(t, nilResp.OK())
	assert.True(t, (&RawResponse{StatusCode: 204}).OK())
	assert.False(t, (&RawResponse{StatusCode: 301}).OK())
}

func TestAPITransportCircuitBreakerOpens(t *testing.T) {
	t.Parallel()
	srv := vaulttest.New(t)
	srv.Fail("sys/health", http.StatusInternalServerError)
	tr, err := NewAPITransport(srv.URL, "tok", WithCircuitBreaker(2, time.Minute))
	require.NoError(t, err)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		resp, err := tr.Read(ctx, "sys/health", nil)
		require.NoError(t, err)
		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	}
	assert.Equal(t, "open", tr.BreakerState())

	_, err = tr.Read(ctx, "sys/health", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "circuit breaker is open")
	assert.Len(t, srv.RequestsTo("sys/health"), 2)
}

func TestAPITransportCircuitBreakerIgnoresClientErrors(t *testing.T) {
	t.Parallel()
	srv := vaulttest.New(t)
	srv.Fail("kv/data/missing", http.StatusNotFound)
	tr, err := NewAPITransport(srv.URL, "tok", WithCircuitBreaker(1, time.Minute))
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		resp, err := tr.Read(context.Background(), "kv/data/missing", nil)
		require.NoError(t, err)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	}
	assert.Equal(t, "closed", tr.BreakerState())
}

func TestAPITransportBreakerDisabledByDefault(t *testing.T) {
	t.Parallel()
	tr, err := NewAPITransport("http://127.0.0.1:18200", "tok", WithCircuitBreaker(0, time.Second))
	require.NoError(t, err)
	assert.Equal(t, "disabled", tr.BreakerState())
}
