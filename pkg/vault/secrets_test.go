package vault

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/CodeMonkeyCybersecurity/kvault/pkg/kv_err"
	"github.com/CodeMonkeyCybersecurity/kvault/pkg/kvpath"
	"github.com/CodeMonkeyCybersecurity/kvault/pkg/logger"
	"github.com/CodeMonkeyCybersecurity/kvault/pkg/vault/vaulttest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteThenReadV2(t *testing.T) {
	t.Parallel()
	srv := vaulttest.New(t)
	srv.AddMount("kv", "kv", 2)
	svc, _ := newTestService(t, srv)
	ctx := context.Background()

	require.NoError(t, svc.Secrets.Write(ctx, "kv/app/db", map[string]any{"user": "admin"}, kvpath.V2))

	writes := srv.RequestsTo("kv/data/app/db")
	require.Len(t, writes, 1)
	assert.Equal(t, http.MethodPut, writes[0].Method)
	assert.Equal(t, "root", writes[0].Header.Get("X-Vault-Token"))
	var body map[string]any
	require.NoError(t, json.Unmarshal(writes[0].Body, &body))
	assert.Equal(t, map[string]any{"data": map[string]any{"user": "admin"}}, body)

	rec, err := svc.Secrets.Read(ctx, "kv/app/db", kvpath.V2)
	require.NoError(t, err)
	assert.Equal(t, "kv/app/db", rec.Path)
	assert.Equal(t, map[string]any{"user": "admin"}, rec.Data)
	require.NotNil(t, rec.Metadata)
	assert.Equal(t, 1, rec.Metadata.Version)
}

func TestWriteThenReadV1(t *testing.T) {
	t.Parallel()
	srv := vaulttest.New(t)
	srv.AddMount("secret", "kv", 1)
	svc, _ := newTestService(t, srv)
	ctx := context.Background()

	require.NoError(t, svc.Secrets.Write(ctx, "secret//app", map[string]any{"k": "v"}, kvpath.V1))
	writes := srv.RequestsTo("secret/app")
	require.Len(t, writes, 1)
	assert.JSONEq(t, `{"k":"v"}`, string(writes[0].Body))

	rec, err := svc.Secrets.Read(ctx, "secret/app", kvpath.V1)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"k": "v"}, rec.Data)
	assert.Nil(t, rec.Metadata)
}

func TestReadErrors(t *testing.T) {
	t.Parallel()
	srv := vaulttest.New(t)
	srv.AddMount("kv", "kv", 2)
	srv.Fail("kv/data/broken", http.StatusInternalServerError)
	srv.FailWith("kv/data/odd", http.StatusOK, map[string]any{"unexpected": true})
	svc, _ := newTestService(t, srv)
	ctx := context.Background()

	_, err := svc.Secrets.Read(ctx, "kv/missing", kvpath.V2)
	require.Error(t, err)
	assert.True(t, kv_err.IsNotFound(err))
	assert.Equal(t, "secret not found at kv/data/missing", err.Error())

	_, err = svc.Secrets.Read(ctx, "kv/broken", kvpath.V2)
	require.Error(t, err)
	assert.True(t, kv_err.IsKind(err, kv_err.KindTransportFailure))
	assert.False(t, kv_err.IsNotFound(err))
	assert.Equal(t, "failed to fetch secret: 500", err.Error())

	_, err = svc.Secrets.Read(ctx, "kv/odd", kvpath.V2)
	assert.True(t, kv_err.IsKind(err, kv_err.KindMalformedResponse))
}

func TestReadTransportFailure(t *testing.T) {
	t.Parallel()
	addr := closedServerURL(t)
	tr, err := NewAPITransport(addr, "root")
	require.NoError(t, err)
	c := NewSecretClient(tr, logger.Nop())

	_, err = c.Read(context.Background(), "kv/app", kvpath.V2)
	require.Error(t, err)
	assert.True(t, kv_err.IsKind(err, kv_err.KindTransportFailure))
}

func TestWriteFailureMessages(t *testing.T) {
	t.Parallel()
	srv := vaulttest.New(t)
	srv.AddMount("kv", "kv", 2)
	srv.FailWith("kv/data/warned", http.StatusBadRequest, map[string]any{"warnings": []string{"first", "second"}})
	srv.FailWith("kv/data/errored", http.StatusBadRequest, map[string]any{"errors": []string{"permission denied"}})
	srv.FailWith("kv/data/bare", http.StatusInternalServerError, map[string]any{})
	svc, _ := newTestService(t, srv)
	ctx := context.Background()

	err := svc.Secrets.Write(ctx, "kv/warned", map[string]any{"a": 1}, kvpath.V2)
	require.Error(t, err)
	assert.Equal(t, "first, second", err.Error())

	err = svc.Secrets.Write(ctx, "kv/errored", map[string]any{"a": 1}, kvpath.V2)
	require.Error(t, err)
	assert.Equal(t, "permission denied", err.Error())

	err = svc.Secrets.Write(ctx, "kv/bare", map[string]any{"a": 1}, kvpath.V2)
	require.Error(t, err)
	assert.Equal(t, "failed to save secret (500)", err.Error())
	assert.True(t, kv_err.IsKind(err, kv_err.KindTransportFailure))
}

func TestExistsAndProbe(t *testing.T) {
	t.Parallel()
	srv := vaulttest.New(t)
	srv.AddMount("kv", "kv", 2)
	srv.AddMount("secret", "kv", 1)
	srv.Put("kv/app/db", map[string]any{"a": "b"})
	srv.Put("secret/app", map[string]any{"a": "b"})
	srv.Fail("kv/metadata/flaky", http.StatusInternalServerError)
	svc, _ := newTestService(t, srv)
	ctx := context.Background()

	assert.True(t, svc.Secrets.Exists(ctx, "kv/app/db", kvpath.V2))
	require.Len(t, srv.RequestsTo("kv/metadata/app/db"), 1)
	assert.Empty(t, srv.RequestsTo("kv/data/app/db"))

	assert.True(t, svc.Secrets.Exists(ctx, "secret/app", kvpath.V1))
	assert.False(t, svc.Secrets.Exists(ctx, "kv/nope", kvpath.V2))
	assert.False(t, svc.Secrets.Exists(ctx, "kv/flaky", kvpath.V2))

	assert.Equal(t, NotFound, svc.Secrets.Probe(ctx, "kv/nope", kvpath.V2).State)
	flaky := svc.Secrets.Probe(ctx, "kv/flaky", kvpath.V2)
	assert.Equal(t, Failed, flaky.State)
	assert.Equal(t, http.StatusInternalServerError, flaky.Status)
	assert.True(t, kv_err.IsKind(flaky.Err, kv_err.KindTransportFailure))
}

func TestExistsUnreachableIsFalse(t *testing.T) {
	t.Parallel()
	tr, err := NewAPITransport(closedServerURL(t), "root")
	require.NoError(t, err)
	c := NewSecretClient(tr, logger.Nop())

	assert.False(t, c.Exists(context.Background(), "kv/app", kvpath.V2))
	assert.Equal(t, Failed, c.Probe(context.Background(), "kv/app", kvpath.V2).State)
}

func TestLookupStateString(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "found", Found.String())
	assert.Equal(t, "not_found", NotFound.String())
	assert.Equal(t, "failed", Failed.String())
}

func TestDecodeEnvelope(t *testing.T) {
	t.Parallel()
	data, meta, err := decodeEnvelope(kvpath.V2, []byte(`{"data":{"data":null,"metadata":{"version":3,"destroyed":true}}}`))
	require.NoError(t, err)
	assert.Empty(t, data)
	require.NotNil(t, meta)
	assert.True(t, meta.Destroyed)
	assert.Equal(t, 3, meta.Version)

	_, _, err = decodeEnvelope(kvpath.V1, []byte(`{"warnings":["x"]}`))
	assert.Error(t, err)

	_, _, err = decodeEnvelope(kvpath.V1, []byte(`not json`))
	assert.Error(t, err)
}

func TestServerMessage(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "a, b", serverMessage([]byte(`{"warnings":["a"," ","b"]}`)))
	assert.Equal(t, "e", serverMessage([]byte(`{"errors":["e"]}`)))
	assert.Equal(t, "", serverMessage(nil))
	assert.Equal(t, "", serverMessage([]byte(`<html>`)))
}
