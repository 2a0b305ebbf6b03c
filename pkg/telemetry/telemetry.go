// pkg/telemetry/telemetry.go
package telemetry

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	cerr "github.com/cockroachdb/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// FileEnv names the JSONL file spans are appended to. Unset disables export.
const FileEnv = "KVAULT_TELEMETRY_FILE"

// ShutdownFunc flushes pending spans and closes the sink.
type ShutdownFunc func(context.Context) error

var tracer trace.Tracer = noop.NewTracerProvider().Tracer("kvault")

// Init configures OpenTelemetry; call this early in main().
func Init(service string) (ShutdownFunc, error) {
	path := strings.TrimSpace(os.Getenv(FileEnv))
	if path == "" {
		tp := noop.NewTracerProvider()
		otel.SetTracerProvider(tp)
		tracer = tp.Tracer(service)
		return func(context.Context) error { return nil }, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, cerr.Wrap(err, "failed to create telemetry directory")
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, cerr.Wrap(err, "failed to open telemetry file")
	}
	return InitWithWriter(service, file)
}

// InitWithWriter exports spans to w as JSON lines. If w is an io.Closer it
// is closed on shutdown.
func InitWithWriter(service string, w io.Writer) (ShutdownFunc, error) {
	exp, err := stdouttrace.New(
		stdouttrace.WithWriter(w),
		stdouttrace.WithoutTimestamps(), // Spans already have timestamps
	)
	if err != nil {
		if c, ok := w.(io.Closer); ok {
			_ = c.Close()
		}
		return nil, cerr.Wrap(err, "failed to create file exporter")
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exp),
		sdktrace.WithResource(
			sdkresource.NewWithAttributes(
				semconv.SchemaURL,
				attribute.String("service.name", service),
				attribute.String("host.name", hostname()),
			),
		),
	)

	otel.SetTracerProvider(tp)
	tracer = tp.Tracer(service)

	return func(ctx context.Context) error {
		err := tp.Shutdown(ctx)
		if c, ok := w.(io.Closer); ok {
			err = cerr.CombineErrors(err, c.Close())
		}
		return err
	}, nil
}

// Start a telemetry span with optional attributes.
func Start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if ctx == nil {
		ctx = context.Background()
	}
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// CommandCategory groups commands for span attributes.
func CommandCategory(cmd string) string {
	switch cmd {
	case "read", "exists", "list-all", "health":
		return "read"
	case "write", "interactive":
		return "write"
	case "serve":
		return "server"
	default:
		return "general"
	}
}

func hostname() string {
	if h, err := os.Hostname(); err == nil {
		return h
	}
	return "unknown"
}
