// pkg/kv_io/context.go

package kv_io

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/CodeMonkeyCybersecurity/kvault/pkg/config"
	"github.com/CodeMonkeyCybersecurity/kvault/pkg/kv_err"
	"github.com/CodeMonkeyCybersecurity/kvault/pkg/logger"
	"github.com/CodeMonkeyCybersecurity/kvault/pkg/telemetry"
	cerr "github.com/cockroachdb/errors"
	"github.com/spf13/viper"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Deps are the process-wide collaborators built once by the root command.
type Deps struct {
	Config config.Config
	Viper  *viper.Viper
	Log    *otelzap.Logger
	In     io.Reader
	Out    io.Writer
	ErrOut io.Writer
}

type depsKey struct{}

// WithDeps attaches deps to ctx.
func WithDeps(ctx context.Context, d *Deps) context.Context {
	return context.WithValue(ctx, depsKey{}, d)
}

// DepsFrom returns the deps attached to ctx, or a stdio default with a
// no-op logger when none were attached.
func DepsFrom(ctx context.Context) *Deps {
	if ctx != nil {
		if d, ok := ctx.Value(depsKey{}).(*Deps); ok && d != nil {
			return d
		}
	}
	return &Deps{
		Config: config.Default(),
		Viper:  viper.New(),
		Log:    logger.Nop(),
		In:     os.Stdin,
		Out:    os.Stdout,
		ErrOut: os.Stderr,
	}
}

type RuntimeContext struct {
	Ctx        context.Context
	Log        *otelzap.Logger
	Deps       *Deps
	Timestamp  time.Time
	Span       trace.Span
	Command    string
	Attributes map[string]string
}

// NewContext opens a span for cmdName and scopes the injected logger to it.
func NewContext(parent context.Context, cmdName string) *RuntimeContext {
	deps := DepsFrom(parent)
	if parent == nil {
		parent = context.Background()
	}
	ctx, span := telemetry.Start(parent, cmdName,
		attribute.String("category", telemetry.CommandCategory(cmdName)),
	)

	return &RuntimeContext{
		Ctx:        ctx,
		Span:       span,
		Log:        deps.Log,
		Deps:       deps,
		Timestamp:  time.Now(),
		Command:    cmdName,
		Attributes: make(map[string]string),
	}
}

// Logger returns the injected logger bound to this context's span.
func (rc *RuntimeContext) Logger() otelzap.LoggerWithCtx {
	return rc.Log.Ctx(rc.Ctx)
}

// HandlePanic recovers panics, logs them, and converts to an error.
func (rc *RuntimeContext) HandlePanic(errPtr *error) {
	if r := recover(); r != nil {
		*errPtr = cerr.AssertionFailedf("panic: %v", r)
		rc.Logger().Error("panic recovered", zap.Any("panic", r))
	}
}

// End logs outcome, records span attributes, and ends the span.
func (rc *RuntimeContext) End(errPtr *error) {
	defer rc.Span.End()

	duration := time.Since(rc.Timestamp)
	var err error
	if errPtr != nil {
		err = *errPtr
	}

	if err == nil {
		rc.Logger().Debug("Command completed", zap.String("command", rc.Command), zap.Duration("duration", duration))
	} else {
		rc.Logger().Error("Command failed", zap.String("command", rc.Command), zap.Duration("duration", duration), zap.Error(err))
		rc.Span.RecordError(err)
		rc.Span.SetStatus(codes.Error, kv_err.SafeErrorSummary(err))
	}

	attrs := []attribute.KeyValue{
		attribute.Bool("success", err == nil),
		attribute.Int64("duration_ms", duration.Milliseconds()),
		attribute.String("error_type", classifyError(err)),
	}
	for k, v := range rc.Attributes {
		attrs = append(attrs, attribute.String(k, v))
	}
	rc.Span.SetAttributes(attrs...)
}

func classifyError(err error) string {
	if err == nil {
		return ""
	}
	if kind := kv_err.KindOf(err); kind != "" {
		return string(kind)
	}
	if kv_err.IsExpectedUserError(err) {
		return "user"
	}
	return "system"
}
