// pkg/vault/secrets.go

package vault

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/CodeMonkeyCybersecurity/kvault/pkg/kv_err"
	"github.com/CodeMonkeyCybersecurity/kvault/pkg/kvpath"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// LookupState is the outcome of probing a secret.
type LookupState int

const (
	Found LookupState = iota
	NotFound
	Failed
)

func (s LookupState) String() string {
	switch s {
	case Found:
		return "found"
	case NotFound:
		return "not_found"
	default:
		return "failed"
	}
}

// Lookup separates an absent secret from an unreachable one.
type Lookup struct {
	State  LookupState
	Status int
	Err    error
}

// SecretClient reads and writes individual secrets.
type SecretClient struct {
	transport Transport
	log       *otelzap.Logger
}

func NewSecretClient(t Transport, log *otelzap.Logger) *SecretClient {
	return &SecretClient{transport: t, log: log}
}

// Write creates or replaces the secret at path. The mount is taken to be
// the first path segment; use WriteAt when it is known.
func (c *SecretClient) Write(ctx context.Context, path string, payload map[string]any, version kvpath.EngineVersion) error {
	return c.write(ctx, path, kvpath.Normalize(path, version, kvpath.Data), payload, version)
}

// WriteAt writes path within mount m.
func (c *SecretClient) WriteAt(ctx context.Context, m EngineMount, path string, payload map[string]any) error {
	target, err := targetAt(m, path, kvpath.Data)
	if err != nil {
		return err
	}
	return c.write(ctx, path, target, payload, m.Version)
}

func (c *SecretClient) write(ctx context.Context, path, target string, payload map[string]any, version kvpath.EngineVersion) error {
	ctx, span := tracer.Start(ctx, "vault.secret.write", secretAttrs(path, version))
	defer span.End()

	body, err := json.Marshal(wrapPayload(version, payload))
	if err != nil {
		return kv_err.Transport(target, 0, "failed to encode secret payload", err)
	}

	c.log.Ctx(ctx).Debug("Writing secret", zap.String("path", target), zap.Int("fields", len(payload)))
	resp, err := c.transport.Write(ctx, target, body)
	if err != nil {
		c.log.Ctx(ctx).Error("Failed to save secret", zap.String("path", target), zap.Error(err))
		return kv_err.Transport(target, 0, "failed to save secret", err)
	}
	if !resp.OK() {
		msg := serverMessage(resp.Body)
		if msg == "" {
			msg = fmt.Sprintf("failed to save secret (%d)", resp.StatusCode)
		}
		c.log.Ctx(ctx).Warn("Vault rejected secret write",
			zap.String("path", target), zap.Int("status", resp.StatusCode), zap.String("message", msg))
		return kv_err.Transport(target, resp.StatusCode, msg, nil)
	}

	c.log.Ctx(ctx).Info("Secret saved", zap.String("path", target))
	return nil
}

// Read fetches the secret at path. The mount is taken to be the first path
// segment; use ReadAt when it is known.
func (c *SecretClient) Read(ctx context.Context, path string, version kvpath.EngineVersion) (*SecretRecord, error) {
	return c.read(ctx, path, kvpath.Normalize(path, version, kvpath.Data), version)
}

// ReadAt fetches path within mount m.
func (c *SecretClient) ReadAt(ctx context.Context, m EngineMount, path string) (*SecretRecord, error) {
	target, err := targetAt(m, path, kvpath.Data)
	if err != nil {
		return nil, err
	}
	return c.read(ctx, path, target, m.Version)
}

func (c *SecretClient) read(ctx context.Context, path, target string, version kvpath.EngineVersion) (*SecretRecord, error) {
	ctx, span := tracer.Start(ctx, "vault.secret.read", secretAttrs(path, version))
	defer span.End()

	resp, err := c.transport.Read(ctx, target, nil)
	if err != nil {
		c.log.Ctx(ctx).Error("Failed to fetch secret", zap.String("path", target), zap.Error(err))
		return nil, kv_err.Transport(target, 0, "failed to fetch secret", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, kv_err.NotFound(target)
	case !resp.OK():
		return nil, kv_err.Transport(target, resp.StatusCode,
			fmt.Sprintf("failed to fetch secret: %d", resp.StatusCode), nil)
	}

	data, meta, err := decodeEnvelope(version, resp.Body)
	if err != nil {
		c.log.Ctx(ctx).Warn("Unexpected secret response shape", zap.String("path", target), zap.Error(err))
		return nil, kv_err.Malformed(target, err)
	}
	return &SecretRecord{Path: path, Data: data, Metadata: meta}, nil
}

// Probe classifies the secret at path without reading its data.
// V2 engines are probed through their metadata endpoint.
func (c *SecretClient) Probe(ctx context.Context, path string, version kvpath.EngineVersion) Lookup {
	return c.probe(ctx, path, kvpath.Normalize(path, version, probePurpose(version)), version)
}

// ProbeAt probes path within mount m.
func (c *SecretClient) ProbeAt(ctx context.Context, m EngineMount, path string) Lookup {
	target, err := targetAt(m, path, probePurpose(m.Version))
	if err != nil {
		return Lookup{State: Failed, Err: err}
	}
	return c.probe(ctx, path, target, m.Version)
}

func probePurpose(version kvpath.EngineVersion) kvpath.Purpose {
	if version == kvpath.V2 {
		return kvpath.Metadata
	}
	return kvpath.Data
}

func (c *SecretClient) probe(ctx context.Context, path, target string, version kvpath.EngineVersion) Lookup {
	ctx, span := tracer.Start(ctx, "vault.secret.probe", secretAttrs(path, version))
	defer span.End()

	resp, err := c.transport.Read(ctx, target, nil)
	if err != nil {
		c.log.Ctx(ctx).Debug("Secret probe failed", zap.String("path", target), zap.Error(err))
		return Lookup{State: Failed, Err: kv_err.Transport(target, 0, "failed to check secret", err)}
	}
	switch resp.StatusCode {
	case http.StatusOK:
		return Lookup{State: Found, Status: resp.StatusCode}
	case http.StatusNotFound:
		return Lookup{State: NotFound, Status: resp.StatusCode}
	default:
		return Lookup{
			State:  Failed,
			Status: resp.StatusCode,
			Err:    kv_err.Transport(target, resp.StatusCode, fmt.Sprintf("failed to check secret: %d", resp.StatusCode), nil),
		}
	}
}

// Exists reports whether a secret is present. Unreachable and absent both
// report false; use Probe to tell them apart.
func (c *SecretClient) Exists(ctx context.Context, path string, version kvpath.EngineVersion) bool {
	return c.Probe(ctx, path, version).State == Found
}

// ExistsAt is Exists within mount m.
func (c *SecretClient) ExistsAt(ctx context.Context, m EngineMount, path string) bool {
	return c.ProbeAt(ctx, m, path).State == Found
}

// targetAt builds the API path for a logical path under a known mount.
func targetAt(m EngineMount, path string, purpose kvpath.Purpose) (string, error) {
	rest, ok := kvpath.Relative(m.Path, path)
	if !ok {
		return "", kv_err.NewExpectedError(fmt.Errorf("path %s is not under mount %s", path, m.Path))
	}
	return kvpath.NormalizeAt(m.Path, rest, m.Version, purpose), nil
}

func secretAttrs(path string, version kvpath.EngineVersion) trace.SpanStartOption {
	return trace.WithAttributes(
		attribute.String("vault.secret_path", path),
		attribute.String("vault.kv_version", version.Label()),
	)
}
