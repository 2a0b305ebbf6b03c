/* pkg/kv_io/yaml.go */

package kv_io

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// EncodeYAML writes v to w as a YAML document with two-space indentation.
func EncodeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to marshal YAML: %w", err)
	}
	return enc.Close()
}

// WriteYAML writes data to a YAML file with structured logging.
func WriteYAML(ctx context.Context, log *otelzap.Logger, filePath string, in any) error {
	logger := log.Ctx(ctx)
	logger.Debug("Writing YAML file", zap.String("path", filePath))

	f, err := os.OpenFile(filePath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		logger.Error("Failed to open YAML file", zap.String("path", filePath), zap.Error(err))
		return fmt.Errorf("failed to write YAML file: %w", err)
	}
	if err := EncodeYAML(f, in); err != nil {
		_ = f.Close()
		logger.Error("Failed to marshal YAML", zap.Error(err))
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write YAML file: %w", err)
	}

	logger.Debug("YAML file written", zap.String("path", filePath))
	return nil
}
