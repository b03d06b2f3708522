package domain

// StatNames lists the statistics rows in table order.
var StatNames = []string{"count", "mean", "std", "min", "25%", "50%", "75%", "max"}

// ColumnStats summarizes one numeric column. Pointer fields are nil when the
// statistic is undefined (no values, or fewer than two for std).
type ColumnStats struct {
	Column Metric   `json:"column"`
	Count  int      `json:"count"`
	Mean   *float64 `json:"mean"`
	Std    *float64 `json:"std"`
	Min    *float64 `json:"min"`
	Q25    *float64 `json:"25%"`
	Q50    *float64 `json:"50%"`
	Q75    *float64 `json:"75%"`
	Max    *float64 `json:"max"`
}

// Stat returns the named statistic. Count is always defined.
func (c ColumnStats) Stat(name string) (float64, bool) {
	var p *float64
	switch name {
	case "count":
		return float64(c.Count), true
	case "mean":
		p = c.Mean
	case "std":
		p = c.Std
	case "min":
		p = c.Min
	case "25%":
		p = c.Q25
	case "50%":
		p = c.Q50
	case "75%":
		p = c.Q75
	case "max":
		p = c.Max
	}
	if p == nil {
		return 0, false
	}
	return *p, true
}

// Stats is the descriptive statistics table over NumericColumns.
type Stats struct {
	Columns []ColumnStats `json:"columns"`
}

// Column returns the statistics for m.
func (s Stats) Column(m Metric) (ColumnStats, bool) {
	for _, c := range s.Columns {
		if c.Column == m {
			return c, true
		}
	}
	return ColumnStats{}, false
}
