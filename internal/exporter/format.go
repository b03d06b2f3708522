package exporter

import (
	"strconv"
	"strings"
	"time"

	"stockdash/pkg/contracts/domain"
)

const (
	dateLayout     = "2006-01-02"
	dateTimeLayout = "2006-01-02 15:04:05"
)

// DateLayout picks one layout for the whole dataset: date-only when every
// record falls on midnight UTC, otherwise date and time. Sub-second values
// widen the time to milli, micro or nanosecond digits, whichever is the
// coarsest that loses nothing.
func DateLayout(records []domain.Record) string {
	intraday := false
	digits := 0
	for _, r := range records {
		t := r.Date.UTC()
		if t.Hour() != 0 || t.Minute() != 0 || t.Second() != 0 || t.Nanosecond() != 0 {
			intraday = true
		}
		if d := fractionDigits(t.Nanosecond()); d > digits {
			digits = d
		}
	}
	switch {
	case !intraday:
		return dateLayout
	case digits == 0:
		return dateTimeLayout
	default:
		return dateTimeLayout + "." + strings.Repeat("0", digits)
	}
}

func fractionDigits(ns int) int {
	switch {
	case ns == 0:
		return 0
	case ns%int(time.Millisecond) == 0:
		return 3
	case ns%int(time.Microsecond) == 0:
		return 6
	default:
		return 9
	}
}

func formatDate(t time.Time, layout string) string {
	return t.UTC().Format(layout)
}

// FormatValue renders an optional statistic; undefined values are empty.
func FormatValue(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

// StatsTable lays out stats the way describe() prints them: one row per
// statistic, one column per numeric column.
func StatsTable(stats domain.Stats) (headers []string, rows [][]string) {
	headers = make([]string, 0, len(stats.Columns)+1)
	headers = append(headers, "")
	for _, c := range stats.Columns {
		headers = append(headers, string(c.Column))
	}

	rows = make([][]string, 0, len(domain.StatNames))
	for _, name := range domain.StatNames {
		row := make([]string, 0, len(stats.Columns)+1)
		row = append(row, name)
		for _, c := range stats.Columns {
			if v, ok := c.Stat(name); ok {
				row = append(row, strconv.FormatFloat(v, 'f', -1, 64))
			} else {
				row = append(row, "")
			}
		}
		rows = append(rows, row)
	}
	return headers, rows
}
