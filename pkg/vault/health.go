// pkg/vault/health.go

package vault

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/hashicorp/go-version"
	"github.com/hashicorp/vault/api"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const healthPath = "sys/health"

// HealthStatus is a point-in-time view of the server.
type HealthStatus struct {
	Initialized   bool   `json:"initialized" yaml:"initialized"`
	Sealed        bool   `json:"sealed" yaml:"sealed"`
	Standby       bool   `json:"standby" yaml:"standby"`
	Version       string `json:"version" yaml:"version"`
	ClusterName   string `json:"clusterName,omitempty" yaml:"clusterName,omitempty"`
	Connected     bool   `json:"connected" yaml:"connected"`
	ServerTimeUTC string `json:"serverTimeUtc" yaml:"serverTimeUtc"`
}

// UnreachableHealth is the status reported when the server cannot be queried.
func UnreachableHealth(now time.Time) HealthStatus {
	return HealthStatus{
		Initialized:   false,
		Sealed:        true,
		Standby:       false,
		Version:       "unknown",
		Connected:     false,
		ServerTimeUTC: now.UTC().Format(time.RFC3339),
	}
}

// OlderThan reports whether the server version is below minimum. An
// unreachable server or an unparseable version is an error.
func (h HealthStatus) OlderThan(minimum string) (bool, error) {
	if !h.Connected {
		return false, fmt.Errorf("server version unknown")
	}
	want, err := version.NewVersion(minimum)
	if err != nil {
		return false, fmt.Errorf("parse minimum version %q: %w", minimum, err)
	}
	have, err := version.NewVersion(h.Version)
	if err != nil {
		return false, fmt.Errorf("parse server version %q: %w", h.Version, err)
	}
	return have.LessThan(want), nil
}

// healthQuery forces 299 for every degraded state so a sealed or standby
// server still returns a parseable body.
var healthQuery = url.Values{
	"uninitcode":             []string{"299"},
	"sealedcode":             []string{"299"},
	"standbycode":            []string{"299"},
	"drsecondarycode":        []string{"299"},
	"performancestandbycode": []string{"299"},
	"removedcode":            []string{"299"},
	"haunhealthycode":        []string{"299"},
}

// HealthReporter queries sys/health.
type HealthReporter struct {
	transport Transport
	log       *otelzap.Logger
	now       func() time.Time
	strict    bool
}

func NewHealthReporter(t Transport, log *otelzap.Logger, now func() time.Time) *HealthReporter {
	if now == nil {
		now = time.Now
	}
	return &HealthReporter{transport: t, log: log, now: now}
}

// Strict returns a reporter that keeps Vault's own status codes, so a sealed,
// uninitialised or standby server is reported as unreachable.
func (h *HealthReporter) Strict() *HealthReporter {
	c := *h
	c.strict = true
	return &c
}

// GetHealth never fails: any error yields UnreachableHealth.
func (h *HealthReporter) GetHealth(ctx context.Context) HealthStatus {
	ctx, span := tracer.Start(ctx, "vault.health")
	defer span.End()

	status, err := h.fetch(ctx)
	if err != nil {
		h.log.Ctx(ctx).Error("Failed to check Vault health status", zap.Error(err))
		span.SetAttributes(attribute.Bool("vault.connected", false))
		return UnreachableHealth(h.now())
	}
	span.SetAttributes(
		attribute.Bool("vault.connected", true),
		attribute.Bool("vault.health_strict", h.strict),
		attribute.Bool("vault.sealed", status.Sealed),
	)
	return status
}

func (h *HealthReporter) fetch(ctx context.Context) (HealthStatus, error) {
	query := healthQuery
	if h.strict {
		query = nil
	}
	resp, err := h.transport.Read(ctx, healthPath, query)
	if err != nil {
		return HealthStatus{}, err
	}
	if !resp.OK() {
		return HealthStatus{}, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, healthPath)
	}

	var hr api.HealthResponse
	if err := json.Unmarshal(resp.Body, &hr); err != nil {
		return HealthStatus{}, fmt.Errorf("decode %s: %w", healthPath, err)
	}
	return HealthStatus{
		Initialized:   hr.Initialized,
		Sealed:        hr.Sealed,
		Standby:       hr.Standby,
		Version:       hr.Version,
		ClusterName:   hr.ClusterName,
		Connected:     true,
		ServerTimeUTC: h.now().UTC().Format(time.RFC3339),
	}, nil
}
