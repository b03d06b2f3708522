package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
)

// Format selects how command results are printed.
type Format string

const (
	FormatTable    Format = "table"
	FormatJSON     Format = "json"
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "markdown"
)

// Formats lists the accepted --output values.
func Formats() []string {
	return []string{string(FormatTable), string(FormatJSON), string(FormatCSV), string(FormatMarkdown)}
}

// ParseFormat accepts the --output values, plus "md" for markdown.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "table":
		return FormatTable, nil
	case "json":
		return FormatJSON, nil
	case "csv":
		return FormatCSV, nil
	case "md", "markdown":
		return FormatMarkdown, nil
	}
	return "", fmt.Errorf("unknown output format %q (want one of %s)", s, strings.Join(Formats(), ", "))
}

// Renderer prints tables and JSON documents to one writer.
type Renderer struct {
	out    io.Writer
	format Format
}

// NewRenderer creates a renderer for format.
func NewRenderer(out io.Writer, format Format) *Renderer {
	return &Renderer{out: out, format: format}
}

// JSONMode reports whether results should be printed as a JSON document.
func (r *Renderer) JSONMode() bool {
	return r.format == FormatJSON
}

// JSON prints v indented.
func (r *Renderer) JSON(v interface{}) error {
	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Table prints headers and rows in the renderer's tabular format. caption is
// printed under terminal tables only, so csv and markdown stay machine
// readable.
func (r *Renderer) Table(headers []string, rows [][]string, caption string) {
	t := table.NewWriter()
	t.SetOutputMirror(r.out)

	header := make(table.Row, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	t.AppendHeader(header)

	for _, row := range rows {
		tr := make(table.Row, len(row))
		for i, cell := range row {
			tr[i] = cell
		}
		t.AppendRow(tr)
	}

	switch r.format {
	case FormatCSV:
		t.RenderCSV()
	case FormatMarkdown:
		t.RenderMarkdown()
	default:
		t.SetStyle(table.StyleLight)
		t.Render()
		if caption != "" {
			_, _ = fmt.Fprintln(r.out, caption)
		}
	}
}
