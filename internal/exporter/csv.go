package exporter

import (
	"encoding/csv"
	"fmt"
	"io"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// WriteOptions configures CSV writing behavior
type WriteOptions struct {
	Headers   []string
	Records   [][]string
	BOMPrefix bool // Add UTF-8 BOM for Excel compatibility
}

// WriteCSV writes headers and records to w and returns the number of data
// rows written.
func WriteCSV(w io.Writer, options WriteOptions) (int, error) {
	sw, err := NewStreamWriter(w, options.Headers, options.BOMPrefix)
	if err != nil {
		return 0, err
	}
	for i, record := range options.Records {
		if err := sw.WriteRecord(record); err != nil {
			return sw.Rows(), fmt.Errorf("failed to write record %d: %w", i, err)
		}
	}
	return sw.Rows(), sw.Flush()
}

// StreamWriter provides streaming CSV writing for large datasets
type StreamWriter struct {
	writer *csv.Writer
	rows   int
}

// NewStreamWriter writes the optional BOM and the header row, then returns
// a writer for the data rows.
func NewStreamWriter(w io.Writer, headers []string, bom bool) (*StreamWriter, error) {
	if bom {
		if _, err := w.Write(utf8BOM); err != nil {
			return nil, fmt.Errorf("failed to write BOM: %w", err)
		}
	}

	writer := csv.NewWriter(w)
	if len(headers) > 0 {
		if err := writer.Write(headers); err != nil {
			return nil, fmt.Errorf("failed to write headers: %w", err)
		}
	}
	return &StreamWriter{writer: writer}, nil
}

// WriteRecord writes a single record to the stream
func (s *StreamWriter) WriteRecord(record []string) error {
	if err := s.writer.Write(record); err != nil {
		return err
	}
	s.rows++
	return nil
}

// Rows returns the number of data rows written so far.
func (s *StreamWriter) Rows() int {
	return s.rows
}

// Flush writes any buffered data to the underlying writer
func (s *StreamWriter) Flush() error {
	s.writer.Flush()
	return s.writer.Error()
}
