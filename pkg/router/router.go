// Package router exposes the vault client over HTTP for the plugin host.
package router

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/CodeMonkeyCybersecurity/kvault/pkg/logger"
	"github.com/CodeMonkeyCybersecurity/kvault/pkg/vault"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

const RequestIDHeader = "X-Request-ID"

const (
	healthErrorMessage  = "Failed to get vault health status"
	secretsErrorMessage = "Failed to list vault secrets"
)

// HealthSource reports the server's health.
type HealthSource interface {
	GetHealth(ctx context.Context) vault.HealthStatus
}

// SecretsSource lists every KV engine and its secrets.
type SecretsSource interface {
	ListAllMounts(ctx context.Context) ([]vault.MountListing, error)
}

type api struct {
	health  HealthSource
	secrets SecretsSource
	log     *otelzap.Logger
}

// New builds the router. Handler failures are logged and answered with a
// generic 500 body.
func New(health HealthSource, secrets SecretsSource, log *otelzap.Logger) *mux.Router {
	if log == nil {
		log = logger.Nop()
	}
	a := &api{health: health, secrets: secrets, log: log}

	r := mux.NewRouter()
	r.Use(requestID, a.accessLog)
	r.Handle("/health", a.handle(healthErrorMessage, a.getHealth)).Methods(http.MethodGet)
	r.Handle("/secrets", a.handle(secretsErrorMessage, a.getSecrets)).Methods(http.MethodGet)
	return r
}

type handlerFunc func(w http.ResponseWriter, r *http.Request) error

// handle converts errors and panics into a 500 carrying only message.
func (a *api) handle(message string, fn handlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if p := recover(); p != nil {
				a.log.Ctx(r.Context()).Error(message, zap.Any("panic", p), requestIDField(r))
				writeJSON(w, http.StatusInternalServerError, errorBody{Error: message})
			}
		}()
		if err := fn(w, r); err != nil {
			a.log.Ctx(r.Context()).Error(message, zap.Error(err), requestIDField(r))
			writeJSON(w, http.StatusInternalServerError, errorBody{Error: message})
		}
	})
}

func (a *api) getHealth(w http.ResponseWriter, r *http.Request) error {
	writeJSON(w, http.StatusOK, a.health.GetHealth(r.Context()))
	return nil
}

func (a *api) getSecrets(w http.ResponseWriter, r *http.Request) error {
	listings, err := a.secrets.ListAllMounts(r.Context())
	if err != nil {
		return err
	}
	if listings == nil {
		listings = []vault.MountListing{}
	}
	writeJSON(w, http.StatusOK, listings)
	return nil
}

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

type requestIDKey struct{}

// requestID reuses the caller's X-Request-ID or assigns a new one.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.New().String()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

// RequestIDFrom returns the request ID assigned by the router.
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func requestIDField(r *http.Request) zap.Field {
	return zap.String("request_id", RequestIDFrom(r.Context()))
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (a *api) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		a.log.Ctx(r.Context()).Debug("Handled request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)),
			requestIDField(r),
		)
	})
}
