// Package exporter writes the merged dataset and filtered views out for
// download.
//
// WriteCombinedCSV produces combined_stocks.csv: every dataset row under the
// dataset's column order with a header row and no index column. Numeric
// cells are written exactly as they were loaded, so reloading the export
// reproduces the dataset. The date column uses one layout for the whole
// file, date-only when every date is midnight UTC.
//
// WriteXLSX writes the same table into a workbook (sheet "combined") plus a
// "stats" sheet for the current selection. WriteViewCSV exports one
// company's filtered view.
//
// Example usage:
//
//	var buf bytes.Buffer
//	if err := exporter.WriteCombinedCSV(&buf, ds); err != nil {
//	    return err
//	}
package exporter
