package exporter

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"stockdash/pkg/contracts/domain"
)

// Sheet names of the workbook export.
const (
	CombinedSheet = "combined"
	StatsSheet    = "stats"
)

var numericColumns = func() map[string]bool {
	m := make(map[string]bool)
	for _, c := range domain.NumericColumns() {
		m[string(c)] = true
	}
	return m
}()

// WriteXLSX writes the combined table and, when view is non-nil, the
// statistics of that view into a workbook.
func WriteXLSX(w io.Writer, ds *domain.Dataset, view *domain.View) error {
	if ds == nil {
		return fmt.Errorf("export xlsx: nil dataset")
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), CombinedSheet); err != nil {
		return fmt.Errorf("failed to rename sheet: %w", err)
	}
	if err := writeCombinedSheet(f, ds); err != nil {
		return err
	}

	if view != nil {
		if _, err := f.NewSheet(StatsSheet); err != nil {
			return fmt.Errorf("failed to create stats sheet: %w", err)
		}
		if err := writeStatsSheet(f, *view); err != nil {
			return err
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func writeCombinedSheet(f *excelize.File, ds *domain.Dataset) error {
	sw, err := f.NewStreamWriter(CombinedSheet)
	if err != nil {
		return fmt.Errorf("failed to open stream writer: %w", err)
	}

	header := make([]interface{}, len(ds.Columns))
	for i, c := range ds.Columns {
		header[i] = c
	}
	if err := sw.SetRow("A1", header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	layout := DateLayout(ds.Records)
	for i, r := range ds.Records {
		row := make([]interface{}, len(ds.Columns))
		for j, c := range ds.Columns {
			switch {
			case c == domain.ColumnDate:
				row[j] = formatDate(r.Date, layout)
			case numericColumns[c]:
				if v, ok := r.Value(c); ok {
					row[j] = v
				} else {
					row[j] = r.Fields[c]
				}
			default:
				row[j] = r.Fields[c]
			}
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	return sw.Flush()
}

func writeStatsSheet(f *excelize.File, view domain.View) error {
	rows := [][]interface{}{
		{"company", view.Selection.Company},
		{"metric", string(view.Selection.Metric)},
		{},
	}

	headers, _ := StatsTable(view.Stats)
	header := make([]interface{}, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	rows = append(rows, header)

	for _, name := range domain.StatNames {
		row := []interface{}{name}
		for _, c := range view.Stats.Columns {
			if v, ok := c.Stat(name); ok {
				row = append(row, v)
			} else {
				row = append(row, nil)
			}
		}
		rows = append(rows, row)
	}

	for i := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(StatsSheet, cell, &rows[i]); err != nil {
			return fmt.Errorf("failed to write stats row %d: %w", i+1, err)
		}
	}
	return nil
}
