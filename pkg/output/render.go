// pkg/output/render.go

package output

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/CodeMonkeyCybersecurity/kvault/pkg/vault"
	"github.com/charmbracelet/lipgloss"
)

// Printer writes human readable results to one stream.
type Printer struct {
	w io.Writer
	s Styles
}

func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w, s: NewStyles(w)}
}

// Writer is the underlying stream, for structured output.
func (p *Printer) Writer() io.Writer { return p.w }

func (p *Printer) line(style lipgloss.Style, format string, args ...any) {
	_, _ = fmt.Fprintln(p.w, style.Render(fmt.Sprintf(format, args...)))
}

func (p *Printer) Blank() { _, _ = fmt.Fprintln(p.w) }

func (p *Printer) Plain(format string, args ...any) {
	_, _ = fmt.Fprintf(p.w, format+"\n", args...)
}

func (p *Printer) Info(format string, args ...any)    { p.line(p.s.Info, format, args...) }
func (p *Printer) Success(format string, args ...any) { p.line(p.s.Success, format, args...) }
func (p *Printer) Warn(format string, args ...any)    { p.line(p.s.Warning, format, args...) }
func (p *Printer) Error(format string, args ...any)   { p.line(p.s.Error, format, args...) }
func (p *Printer) Muted(format string, args ...any)   { p.line(p.s.Muted, format, args...) }

// Health prints the health summary.
func (p *Printer) Health(h vault.HealthStatus) {
	if !h.Connected {
		p.Error("✗ Vault is not accessible")
		return
	}
	p.Success("✓ Vault is healthy")
	p.line(p.s.Label, "Status:")
	p.Plain("  Version: %s", h.Version)
	p.Plain("  Initialized: %t", h.Initialized)
	p.Plain("  Sealed: %t", h.Sealed)
	p.Plain("  Standby: %t", h.Standby)
	if h.ClusterName != "" {
		p.Plain("  Cluster: %s", h.ClusterName)
	}
}

// MountListings prints every mount and its secrets, and returns the total.
func (p *Printer) MountListings(listings []vault.MountListing) int {
	total := 0
	for _, m := range listings {
		p.Blank()
		p.Warn("Mount: %s (%s)", m.Mount, m.Type)
		if len(m.Secrets) == 0 {
			p.Muted("  No secrets found")
			continue
		}
		for _, s := range m.Secrets {
			p.Plain("  %s", s.Path)
			total++
		}
	}
	p.Blank()
	p.Success("Total secrets found: %d", total)
	return total
}

// SecretData prints the fields of a secret as a sorted table.
func (p *Printer) SecretData(data map[string]any) error {
	if len(data) == 0 {
		p.Muted("  (no fields)")
		return nil
	}
	rows := make(map[string]string, len(data))
	for k, v := range data {
		rows[k] = FormatValue(v)
	}
	return KeyValueTable(p.w, "  ", rows)
}

// Secret prints one record with its engine details.
func (p *Printer) Secret(rec *vault.SecretRecord, m vault.EngineMount) error {
	p.line(p.s.Label, "Path: %s", rec.Path)
	p.Plain("Engine: %s (%s)", m.Path, m.Version.Label())
	if md := rec.Metadata; md != nil {
		p.Plain("Version: %d", md.Version)
		if md.CreatedTime != "" {
			p.Plain("Created: %s", md.CreatedTime)
		}
		if md.DeletionTime != "" || md.Destroyed {
			p.Warn("This version is deleted or destroyed")
		}
	}
	p.line(p.s.Label, "Data:")
	return p.SecretData(rec.Data)
}

// FormatValue renders a field value on one line. Nested values are shown
// as compact JSON.
func FormatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case map[string]any, []any:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	default:
		return fmt.Sprint(t)
	}
}
