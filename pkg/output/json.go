// Package output renders command results for the terminal and for
// automation (JSON, YAML).
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/CodeMonkeyCybersecurity/kvault/pkg/kv_err"
	"github.com/CodeMonkeyCybersecurity/kvault/pkg/kv_io"
)

// Format selects how a result is written.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat accepts text, json or yaml in any case.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatText, FormatJSON, FormatYAML:
		return f, nil
	case "":
		return FormatText, nil
	default:
		return "", kv_err.NewExpectedError(fmt.Errorf("unknown output format %q (want text, json or yaml)", s))
	}
}

// JSONTo writes any data structure as indented JSON to w.
func JSONTo(w io.Writer, data any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

// YAMLTo writes any data structure as YAML to w.
func YAMLTo(w io.Writer, data any) error {
	return kv_io.EncodeYAML(w, data)
}

// Structured writes data as JSON or YAML. Text is not a structured format.
func Structured(w io.Writer, format Format, data any) error {
	switch format {
	case FormatJSON:
		return JSONTo(w, data)
	case FormatYAML:
		return YAMLTo(w, data)
	default:
		return fmt.Errorf("format %q is not structured", format)
	}
}
