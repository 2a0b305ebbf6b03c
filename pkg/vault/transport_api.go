// pkg/vault/transport_api.go

package vault

import (
	"context"
	"errors"
	"io"
	"net/url"
	"strconv"
	"time"

	cerr "github.com/cockroachdb/errors"
	"github.com/hashicorp/vault/api"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

var (
	tracer = otel.Tracer("kvault/pkg/vault")
	meter  = otel.Meter("kvault/pkg/vault")
)

type transportSettings struct {
	namespace string
	timeout   time.Duration
	rateLimit float64
	breaker   *gobreaker.Settings
}

// TransportOption customises NewAPITransport.
type TransportOption func(*transportSettings)

// WithNamespace sends X-Vault-Namespace on every request.
func WithNamespace(ns string) TransportOption {
	return func(s *transportSettings) { s.namespace = ns }
}

// WithTimeout bounds each request.
func WithTimeout(d time.Duration) TransportOption {
	return func(s *transportSettings) { s.timeout = d }
}

// WithRateLimit caps outgoing requests per second. Zero disables the limiter.
func WithRateLimit(perSecond float64) TransportOption {
	return func(s *transportSettings) { s.rateLimit = perSecond }
}

// WithCircuitBreaker stops sending requests after failures consecutive
// transport errors or 5xx responses, and probes again after cooldown.
func WithCircuitBreaker(failures uint32, cooldown time.Duration) TransportOption {
	return func(s *transportSettings) {
		if failures == 0 {
			s.breaker = nil
			return
		}
		s.breaker = &gobreaker.Settings{
			Name:        "vault",
			MaxRequests: 1,
			Timeout:     cooldown,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= failures
			},
		}
	}
}

var errServerStatus = errors.New("vault server error")

// APITransport is the Transport backed by the official Vault API client.
type APITransport struct {
	client   *api.Client
	requests metric.Int64Counter
	breaker  *gobreaker.CircuitBreaker
}

// NewAPITransport builds a client for addr with retries disabled.
func NewAPITransport(addr, token string, opts ...TransportOption) (*APITransport, error) {
	var s transportSettings
	for _, o := range opts {
		o(&s)
	}

	cfg := api.DefaultConfig()
	if cfg.Error != nil {
		return nil, cerr.Wrap(cfg.Error, "vault client config")
	}
	cfg.Address = addr
	cfg.MaxRetries = 0
	if s.timeout > 0 {
		cfg.Timeout = s.timeout
		cfg.HttpClient.Timeout = s.timeout
	}
	if s.rateLimit > 0 {
		burst := int(s.rateLimit)
		if burst < 1 {
			burst = 1
		}
		cfg.Limiter = rate.NewLimiter(rate.Limit(s.rateLimit), burst)
	}

	client, err := api.NewClient(cfg)
	if err != nil {
		return nil, cerr.Wrap(err, "vault client creation failed")
	}

	// api.NewClient picks up VAULT_TOKEN and VAULT_NAMESPACE from the
	// environment; only explicit settings apply here.
	if token != "" {
		client.SetToken(token)
	} else {
		client.ClearToken()
	}
	if s.namespace != "" {
		client.SetNamespace(s.namespace)
	} else {
		client.ClearNamespace()
	}

	requests, err := meter.Int64Counter("kvault.vault.requests",
		metric.WithDescription("Requests issued to Vault, by method and status"))
	if err != nil {
		return nil, cerr.Wrap(err, "create request counter")
	}

	t := &APITransport{client: client, requests: requests}
	if s.breaker != nil {
		t.breaker = gobreaker.NewCircuitBreaker(*s.breaker)
	}
	return t, nil
}

// Client exposes the underlying API client for login flows.
func (t *APITransport) Client() *api.Client {
	return t.client
}

// SetToken replaces the token used for subsequent requests.
func (t *APITransport) SetToken(token string) {
	t.client.SetToken(token)
}

// Address returns the configured server address.
func (t *APITransport) Address() string {
	return t.client.Address()
}

func (t *APITransport) Read(ctx context.Context, path string, query url.Values) (*RawResponse, error) {
	ctx, span := tracer.Start(ctx, "vault.read", trace.WithAttributes(attribute.String("vault.path", path)))
	defer span.End()

	resp, err := t.call(func() (*api.Response, error) {
		return t.client.Logical().ReadRawWithDataWithContext(ctx, path, query)
	})
	return t.finish(ctx, span, "GET", path, resp, err)
}

func (t *APITransport) Write(ctx context.Context, path string, body []byte) (*RawResponse, error) {
	ctx, span := tracer.Start(ctx, "vault.write", trace.WithAttributes(attribute.String("vault.path", path)))
	defer span.End()

	resp, err := t.call(func() (*api.Response, error) {
		return t.client.Logical().WriteRawWithContext(ctx, path, body)
	})
	return t.finish(ctx, span, "PUT", path, resp, err)
}

// call runs fn through the circuit breaker when one is configured. Only
// transport errors and 5xx statuses count against it.
func (t *APITransport) call(fn func() (*api.Response, error)) (*api.Response, error) {
	if t.breaker == nil {
		return fn()
	}
	var (
		resp    *api.Response
		callErr error
	)
	_, err := t.breaker.Execute(func() (interface{}, error) {
		resp, callErr = fn()
		switch {
		case resp == nil || resp.Response == nil:
			if callErr == nil {
				return nil, errServerStatus
			}
			return nil, callErr
		case resp.StatusCode >= 500:
			return nil, errServerStatus
		}
		return nil, nil
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, err
	}
	return resp, callErr
}

// BreakerState reports the circuit breaker state, or "disabled".
func (t *APITransport) BreakerState() string {
	if t.breaker == nil {
		return "disabled"
	}
	return t.breaker.State().String()
}

// finish converts an api.Response into a RawResponse. The API client
// returns a ResponseError alongside the response for non-2xx statuses;
// those are status results here, not transport failures.
func (t *APITransport) finish(ctx context.Context, span trace.Span, method, path string, resp *api.Response, err error) (*RawResponse, error) {
	if resp == nil || resp.Response == nil {
		if err == nil {
			err = cerr.Newf("no response from vault for %s", path)
		}
		t.requests.Add(ctx, 1, metric.WithAttributes(
			attribute.String("method", method),
			attribute.String("status", "error"),
		))
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport failure")
		return nil, cerr.Wrapf(err, "%s %s", method, path)
	}
	defer resp.Body.Close()

	raw := &RawResponse{StatusCode: resp.StatusCode}
	body, readErr := io.ReadAll(resp.Body)
	switch {
	case readErr == nil:
		raw.Body = body
	case raw.OK() && method == "GET":
		span.RecordError(readErr)
		return nil, cerr.Wrapf(readErr, "read response body for %s", path)
	}

	t.requests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("status", strconv.Itoa(resp.StatusCode)),
	))
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	if !raw.OK() {
		span.SetStatus(codes.Error, strconv.Itoa(resp.StatusCode))
	}
	return raw, nil
}
