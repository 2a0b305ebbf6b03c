// pkg/output/table.go

package output

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
)

// TableWriter provides a fluent interface for building and displaying tables
type TableWriter struct {
	writer     *tabwriter.Writer
	headers    []string
	rows       [][]string
	separator  string
	showBorder bool
	indent     string
}

// NewTableTo creates a new table writer that outputs to w
func NewTableTo(w io.Writer) *TableWriter {
	return &TableWriter{
		writer:     tabwriter.NewWriter(w, 0, 0, 2, ' ', 0),
		separator:  "-",
		showBorder: true,
	}
}

// WithHeaders sets the column headers for the table
func (t *TableWriter) WithHeaders(headers ...string) *TableWriter {
	t.headers = headers
	return t
}

// WithBorder controls whether to show the separator under the headers
func (t *TableWriter) WithBorder(show bool) *TableWriter {
	t.showBorder = show
	return t
}

// WithIndent prefixes every line
func (t *TableWriter) WithIndent(indent string) *TableWriter {
	t.indent = indent
	return t
}

// AddRow adds a row of data to the table
func (t *TableWriter) AddRow(values ...string) *TableWriter {
	t.rows = append(t.rows, values)
	return t
}

// Render outputs the table to the writer
func (t *TableWriter) Render() error {
	if len(t.headers) > 0 {
		_, _ = fmt.Fprintln(t.writer, t.indent+strings.Join(t.headers, "\t"))
		if t.showBorder {
			separators := make([]string, len(t.headers))
			for i, h := range t.headers {
				separators[i] = strings.Repeat(t.separator, len(h))
			}
			_, _ = fmt.Fprintln(t.writer, t.indent+strings.Join(separators, "\t"))
		}
	}

	for _, row := range t.rows {
		_, _ = fmt.Fprintln(t.writer, t.indent+strings.Join(row, "\t"))
	}

	return t.writer.Flush()
}

// KeyValueTable renders data as a two column table sorted by key
func KeyValueTable(w io.Writer, indent string, data map[string]string) error {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	table := NewTableTo(w).WithHeaders("KEY", "VALUE").WithIndent(indent)
	for _, k := range keys {
		table.AddRow(k, data[k])
	}
	return table.Render()
}
