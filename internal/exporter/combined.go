package exporter

import (
	"fmt"
	"io"

	"stockdash/pkg/contracts/domain"
)

// File names offered for download.
const (
	CombinedCSVName  = "combined_stocks.csv"
	CombinedXLSXName = "combined_stocks.xlsx"
)

// ViewCSVName is the download name of a filtered view.
func ViewCSVName(company string) string {
	return company + "_view.csv"
}

// StatsCSVName is the download name of a company's statistics table.
func StatsCSVName(company string) string {
	return company + "_stats.csv"
}

// WriteStatsCSV writes the describe table of stats with a BOM for Excel.
func WriteStatsCSV(w io.Writer, stats domain.Stats) error {
	headers, rows := StatsTable(stats)
	headers[0] = "stat"
	_, err := WriteCSV(w, WriteOptions{Headers: headers, Records: rows, BOMPrefix: true})
	return err
}

// WriteCombinedCSV writes every dataset row under the dataset's columns.
// Cells are written as loaded; only the date column is re-rendered.
func WriteCombinedCSV(w io.Writer, ds *domain.Dataset) error {
	if ds == nil {
		return fmt.Errorf("export combined csv: nil dataset")
	}
	return writeRecords(w, ds.Columns, ds.Records, false)
}

// WriteViewCSV writes a filtered view with the dataset's columns.
func WriteViewCSV(w io.Writer, columns []string, view domain.View) error {
	return writeRecords(w, columns, view.Records, true)
}

func writeRecords(w io.Writer, columns []string, records []domain.Record, bom bool) error {
	sw, err := NewStreamWriter(w, columns, bom)
	if err != nil {
		return err
	}

	layout := DateLayout(records)
	row := make([]string, len(columns))
	for i, r := range records {
		FormatRecord(row, columns, r, layout)
		if err := sw.WriteRecord(row); err != nil {
			return fmt.Errorf("failed to write record %d: %w", i, err)
		}
	}
	return sw.Flush()
}

// FormatRecord fills row with the cells of r under columns. row must have
// len(columns) entries.
func FormatRecord(row []string, columns []string, r domain.Record, layout string) {
	for j, c := range columns {
		if c == domain.ColumnDate {
			row[j] = formatDate(r.Date, layout)
		} else {
			row[j] = r.Fields[c]
		}
	}
}
