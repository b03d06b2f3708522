package domain

import (
	"io"
	"math"
	"strconv"
	"strings"
	"time"
)

// Canonical column names of the tabular schema.
const (
	ColumnDate = "date"
	ColumnName = "Name"
)

// Channel identifies how a source reached the loader.
type Channel string

const (
	ChannelFilesystem Channel = "filesystem"
	ChannelUpload     Channel = "upload"
)

// Source is one named input unit. Open is called once per load and the
// returned reader is closed by the loader.
type Source struct {
	Name    string
	Channel Channel
	Open    func() (io.ReadCloser, error)
}

// BytesSource wraps in-memory content as a Source.
func BytesSource(name string, channel Channel, content []byte) Source {
	return Source{
		Name:    name,
		Channel: channel,
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader(string(content))), nil
		},
	}
}

// Record is one dataset row. Fields holds the raw cell text of every column
// except the date, keyed by column name; numeric columns are interpreted
// lazily so malformed values survive into the export untouched.
type Record struct {
	Company string            `json:"company"`
	Date    time.Time         `json:"date"`
	Fields  map[string]string `json:"fields"`
}

// Value parses column as a float. Empty, NaN or non-numeric cells report
// false.
func (r Record) Value(column string) (float64, bool) {
	raw, ok := r.Fields[column]
	if !ok {
		return 0, false
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

// MetricValue is Value for a metric column.
func (r Record) MetricValue(m Metric) (float64, bool) {
	return r.Value(string(m))
}
