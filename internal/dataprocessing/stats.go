package dataprocessing

import (
	"math"
	"sort"

	"stockdash/pkg/contracts/domain"
)

// Describe computes descriptive statistics for every numeric column. Nulls
// are ignored per column.
func Describe(records []domain.Record) domain.Stats {
	columns := domain.NumericColumns()
	stats := domain.Stats{Columns: make([]domain.ColumnStats, 0, len(columns))}
	for _, m := range columns {
		values := make([]float64, 0, len(records))
		for _, r := range records {
			if v, ok := r.MetricValue(m); ok {
				values = append(values, v)
			}
		}
		stats.Columns = append(stats.Columns, describeColumn(m, values))
	}
	return stats
}

func describeColumn(m domain.Metric, values []float64) domain.ColumnStats {
	cs := domain.ColumnStats{Column: m, Count: len(values)}
	n := len(values)
	if n == 0 {
		return cs
	}

	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}
	mean := sum / float64(n)
	cs.Mean = ptr(mean)

	if n > 1 {
		var sq float64
		for _, v := range sorted {
			d := v - mean
			sq += d * d
		}
		cs.Std = ptr(math.Sqrt(sq / float64(n-1)))
	}

	cs.Min = ptr(sorted[0])
	cs.Q25 = ptr(quantile(sorted, 0.25))
	cs.Q50 = ptr(quantile(sorted, 0.50))
	cs.Q75 = ptr(quantile(sorted, 0.75))
	cs.Max = ptr(sorted[n-1])
	return cs
}

// quantile interpolates linearly between the closest ranks of sorted.
func quantile(sorted []float64, q float64) float64 {
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}

func ptr(v float64) *float64 { return &v }
