package dataprocessing

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"stockdash/pkg/contracts/domain"
)

// schemaColumns are matched case-insensitively and stored lowercased.
var schemaColumns = map[string]bool{
	"date":   true,
	"open":   true,
	"high":   true,
	"low":    true,
	"close":  true,
	"volume": true,
}

// Table is one parsed source. Columns are the normalized header names and
// every row has exactly len(Columns) cells.
type Table struct {
	Source          string
	Channel         domain.Channel
	Columns         []string
	Rows            []RawRow
	InferredCompany string
	HasName         bool
}

// RawRow is a data row with the line it was read from.
type RawRow struct {
	Line  int
	Cells []string
}

// Cell returns the value of column, or "" when the table lacks it.
func (t *Table) Cell(row RawRow, column string) string {
	for i, c := range t.Columns {
		if c == column {
			return row.Cells[i]
		}
	}
	return ""
}

// Loader reads sources into tables.
type Loader struct {
	logger *slog.Logger
	strict bool
}

// NewLoader creates a loader. In strict mode the first failing source aborts
// the load; otherwise failures are collected and the rest still load.
func NewLoader(logger *slog.Logger, strict bool) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{
		logger: logger.With(slog.String("component", "loader")),
		strict: strict,
	}
}

// Load parses every source in order.
func (l *Loader) Load(ctx context.Context, sources []domain.Source) ([]*Table, []*SourceParseError, error) {
	if len(sources) == 0 {
		return nil, nil, fmt.Errorf("load sources: %w", ErrNoDataAvailable)
	}

	tables := make([]*Table, 0, len(sources))
	var failures []*SourceParseError

	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			return nil, failures, fmt.Errorf("load sources: %w", err)
		}

		table, err := l.loadSource(src)
		if err != nil {
			var spe *SourceParseError
			if !errors.As(err, &spe) {
				spe = &SourceParseError{Source: src.Name, Channel: src.Channel, Err: err}
			}
			if l.strict {
				l.logger.ErrorContext(ctx, "source failed to parse, aborting load",
					slog.String("source", src.Name),
					slog.String("error", spe.Error()))
				return nil, append(failures, spe), spe
			}
			l.logger.WarnContext(ctx, "skipping source that failed to parse",
				slog.String("source", src.Name),
				slog.String("channel", string(src.Channel)),
				slog.String("error", spe.Error()))
			failures = append(failures, spe)
			continue
		}

		l.logger.DebugContext(ctx, "source loaded",
			slog.String("source", src.Name),
			slog.Int("rows", len(table.Rows)),
			slog.Int("columns", len(table.Columns)))
		tables = append(tables, table)
	}

	return tables, failures, nil
}

// loadSource opens, reads and closes one source.
func (l *Loader) loadSource(src domain.Source) (table *Table, err error) {
	if src.Open == nil {
		return nil, &SourceParseError{Source: src.Name, Channel: src.Channel, Err: errors.New("source has no reader")}
	}
	rc, err := src.Open()
	if err != nil {
		return nil, &SourceParseError{Source: src.Name, Channel: src.Channel, Err: fmt.Errorf("open: %w", err)}
	}
	defer func() {
		if cerr := rc.Close(); cerr != nil && err == nil {
			err = &SourceParseError{Source: src.Name, Channel: src.Channel, Err: fmt.Errorf("close: %w", cerr)}
		}
	}()

	return ReadTable(src.Name, src.Channel, rc)
}

// ReadTable parses comma separated text with a header row.
func ReadTable(name string, channel domain.Channel, r io.Reader) (*Table, error) {
	fail := func(line int, err error) error {
		return &SourceParseError{Source: name, Channel: channel, Line: line, Err: err}
	}

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fail(0, errors.New("empty file"))
	}
	if err != nil {
		return nil, fail(csvErrorLine(err), err)
	}

	table := &Table{
		Source:          name,
		Channel:         channel,
		Columns:         normalizeHeader(header),
		InferredCompany: InferCompany(name),
	}

	hasDate := false
	for _, c := range table.Columns {
		switch c {
		case domain.ColumnDate:
			hasDate = true
		case domain.ColumnName:
			table.HasName = true
		}
	}
	if !hasDate {
		return nil, fail(1, fmt.Errorf("missing %q column", domain.ColumnDate))
	}

	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fail(csvErrorLine(err), err)
		}
		line, _ := cr.FieldPos(0)

		if len(record) > len(table.Columns) {
			return nil, fail(line, fmt.Errorf("expected %d fields, saw %d", len(table.Columns), len(record)))
		}
		for len(record) < len(table.Columns) {
			record = append(record, "")
		}
		table.Rows = append(table.Rows, RawRow{Line: line, Cells: record})
	}

	return table, nil
}

// InferCompany derives a company identifier from a source name: the part of
// the base name before the first underscore, or the whole extensionless base
// name when there is none.
func InferCompany(name string) string {
	base := path.Base(filepath.ToSlash(strings.TrimSpace(name)))
	stem := strings.TrimSuffix(base, path.Ext(base))
	if i := strings.Index(stem, "_"); i > 0 {
		return stem[:i]
	}
	return stem
}

// normalizeHeader trims names, folds schema columns to lower case and the
// company column to "Name", and disambiguates blanks and duplicates.
func normalizeHeader(header []string) []string {
	columns := make([]string, len(header))
	seen := make(map[string]int, len(header))

	for i, raw := range header {
		name := strings.TrimSpace(strings.TrimPrefix(raw, "\ufeff"))
		lower := strings.ToLower(name)
		switch {
		case name == "":
			name = "Unnamed: " + strconv.Itoa(i)
		case schemaColumns[lower]:
			name = lower
		case lower == "name":
			name = domain.ColumnName
		}

		if n, dup := seen[name]; dup {
			seen[name] = n + 1
			name = name + "." + strconv.Itoa(n+1)
		} else {
			seen[name] = 0
		}
		columns[i] = name
	}
	return columns
}

func csvErrorLine(err error) int {
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return pe.Line
	}
	return 0
}
