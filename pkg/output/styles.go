// pkg/output/styles.go

package output

import (
	"io"

	"github.com/charmbracelet/lipgloss"
)

// Common colour palette for consistent styling
var (
	ColorSuccess = lipgloss.Color("#00ff00") // Green
	ColorError   = lipgloss.Color("#ff0000") // Red
	ColorWarning = lipgloss.Color("#ffaa00") // Orange
	ColorInfo    = lipgloss.Color("#0099ff") // Blue
	ColorMuted   = lipgloss.Color("#666666") // Gray
)

// Styles are bound to one writer. The renderer detects the writer's colour
// support, so output to a pipe or file comes out plain.
type Styles struct {
	Success lipgloss.Style
	Error   lipgloss.Style
	Warning lipgloss.Style
	Info    lipgloss.Style
	Muted   lipgloss.Style
	Label   lipgloss.Style
}

// NewStyles builds the palette for w.
func NewStyles(w io.Writer) Styles {
	r := lipgloss.NewRenderer(w)
	return Styles{
		Success: r.NewStyle().Foreground(ColorSuccess),
		Error:   r.NewStyle().Foreground(ColorError),
		Warning: r.NewStyle().Foreground(ColorWarning),
		Info:    r.NewStyle().Foreground(ColorInfo),
		Muted:   r.NewStyle().Foreground(ColorMuted),
		Label:   r.NewStyle().Bold(true),
	}
}
