// pkg/logger/logger.go

package logger

import (
	"os"
	"path/filepath"

	cerr "github.com/cockroachdb/errors"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a logger from opts. The returned close func syncs the cores
// and releases the log file. Nothing is installed globally.
func New(opts Options) (*otelzap.Logger, func() error, error) {
	level := zap.NewAtomicLevelAt(ParseLogLevel(opts.Level))
	var cores []zapcore.Core
	closers := []func() error{}

	if opts.Console != nil {
		cores = append(cores, zapcore.NewCore(
			zapcore.NewConsoleEncoder(consoleEncoderConfig(opts.Colour)),
			zapcore.AddSync(opts.Console),
			level,
		))
	}

	if opts.File != "" {
		f, err := openLogFile(opts.File)
		if err != nil {
			return nil, nil, err
		}
		closers = append(closers, f.Close)
		cores = append(cores, zapcore.NewCore(
			zapcore.NewJSONEncoder(fileEncoderConfig()),
			zapcore.AddSync(f),
			level,
		))
	}

	var zl *zap.Logger
	if len(cores) == 0 {
		zl = zap.NewNop()
	} else {
		zl = zap.New(zapcore.NewTee(cores...), zap.AddCaller())
	}

	log := wrapOtel(zl)
	closeFn := func() error {
		// Sync on a terminal returns EINVAL on some platforms; only file errors matter.
		_ = zl.Sync()
		var result error
		for _, c := range closers {
			if err := c(); err != nil {
				result = cerr.CombineErrors(result, err)
			}
		}
		return result
	}
	return log, closeFn, nil
}

// Wrap adapts an existing zap logger, typically one from zaptest or observer.
func Wrap(zl *zap.Logger) *otelzap.Logger {
	if zl == nil {
		zl = zap.NewNop()
	}
	return wrapOtel(zl)
}

// wrapOtel marks the active span as failed on Error and above, and bridges
// Warn and above to the OpenTelemetry log provider.
func wrapOtel(zl *zap.Logger) *otelzap.Logger {
	return otelzap.New(zl,
		otelzap.WithMinLevel(zapcore.WarnLevel),
		otelzap.WithErrorStatusLevel(zapcore.ErrorLevel),
	)
}

// Nop returns a logger that discards everything.
func Nop() *otelzap.Logger {
	return Wrap(zap.NewNop())
}

func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, cerr.Wrapf(err, "create log directory for %s", path)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, cerr.Wrapf(err, "open log file %s", path)
	}
	return f, nil
}
