// pkg/vault/service.go

package vault

import (
	"context"
	"time"

	"github.com/CodeMonkeyCybersecurity/kvault/pkg/config"
	"github.com/CodeMonkeyCybersecurity/kvault/pkg/logger"
	cerr "github.com/cockroachdb/errors"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// Service bundles the KV operations over one Transport.
type Service struct {
	Secrets *SecretClient
	Lister  *Lister
	Health  *HealthReporter

	cfg       config.Vault
	transport Transport
	log       *otelzap.Logger
}

type serviceSettings struct {
	transport Transport
	now       func() time.Time
}

// Option customises New.
type Option func(*serviceSettings)

// WithTransport replaces the HTTP transport, mainly for tests.
func WithTransport(t Transport) Option {
	return func(s *serviceSettings) { s.transport = t }
}

// WithClock sets the clock used to stamp health reports.
func WithClock(now func() time.Time) Option {
	return func(s *serviceSettings) { s.now = now }
}

// New validates cfg and wires the KV components.
func New(cfg config.Vault, log *otelzap.Logger, opts ...Option) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.Nop()
	}

	s := serviceSettings{now: time.Now}
	for _, o := range opts {
		o(&s)
	}

	if s.transport == nil {
		t, err := NewAPITransport(cfg.BaseURL, cfg.Token, TransportOptions(cfg)...)
		if err != nil {
			return nil, err
		}
		s.transport = t
	}

	log.Debug("Vault service configured",
		zap.String("base_url", cfg.BaseURL),
		zap.Bool("namespace_set", cfg.Namespace != ""),
		zap.Duration("timeout", cfg.Timeout))

	health := NewHealthReporter(s.transport, log, s.now)
	if cfg.HealthStrict {
		health = health.Strict()
	}

	return &Service{
		Secrets: NewSecretClient(s.transport, log),
		Lister: NewLister(s.transport, log,
			WithMaxDepth(cfg.MaxListDepth),
			WithConcurrency(cfg.ListConcurrency)),
		Health:    health,
		cfg:       cfg,
		transport: s.transport,
		log:       log,
	}, nil
}

// TransportOptions derives transport settings from cfg. The namespace is
// only forwarded when set.
func TransportOptions(cfg config.Vault) []TransportOption {
	opts := []TransportOption{WithTimeout(cfg.Timeout)}
	if cfg.Namespace != "" {
		opts = append(opts, WithNamespace(cfg.Namespace))
	}
	if cfg.RateLimit > 0 {
		opts = append(opts, WithRateLimit(cfg.RateLimit))
	}
	if cfg.BreakerFailures > 0 {
		opts = append(opts, WithCircuitBreaker(cfg.BreakerFailures, cfg.BreakerCooldown))
	}
	return opts
}

// Transport returns the underlying transport.
func (s *Service) Transport() Transport {
	return s.transport
}

type tokenSetter interface {
	SetToken(string)
}

// SetToken rotates the token on transports that support it.
func (s *Service) SetToken(token string) error {
	ts, ok := s.transport.(tokenSetter)
	if !ok {
		return cerr.Newf("transport %T does not support token rotation", s.transport)
	}
	ts.SetToken(token)
	s.cfg.Token = token
	return nil
}

// Locate resolves the engine owning path, ready for the SecretClient *At
// calls.
func (s *Service) Locate(ctx context.Context, path string) (EngineMount, error) {
	return s.Lister.ResolveMount(ctx, path)
}

// ReadAuto reads path after detecting its engine version.
func (s *Service) ReadAuto(ctx context.Context, path string) (*SecretRecord, EngineMount, error) {
	m, err := s.Locate(ctx, path)
	if err != nil {
		return nil, EngineMount{}, err
	}
	rec, err := s.Secrets.ReadAt(ctx, m, path)
	return rec, m, err
}

// WriteAuto writes path after detecting its engine version.
func (s *Service) WriteAuto(ctx context.Context, path string, payload map[string]any) (EngineMount, error) {
	m, err := s.Locate(ctx, path)
	if err != nil {
		return EngineMount{}, err
	}
	return m, s.Secrets.WriteAt(ctx, m, path, payload)
}

// ProbeAuto probes path after detecting its engine version.
func (s *Service) ProbeAuto(ctx context.Context, path string) (Lookup, EngineMount) {
	m, err := s.Locate(ctx, path)
	if err != nil {
		return Lookup{State: Failed, Err: err}, EngineMount{}
	}
	return s.Secrets.ProbeAt(ctx, m, path), m
}
