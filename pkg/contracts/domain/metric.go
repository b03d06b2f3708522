package domain

import "strings"

// Metric names one of the numeric price columns a user can chart.
type Metric string

const (
	MetricOpen   Metric = "open"
	MetricHigh   Metric = "high"
	MetricLow    Metric = "low"
	MetricClose  Metric = "close"
	MetricVolume Metric = "volume"
)

// DefaultMetric is used when a selection names no valid metric.
const DefaultMetric = MetricClose

// Metrics returns the selectable metrics in presentation order.
func Metrics() []Metric {
	return []Metric{MetricClose, MetricOpen, MetricHigh, MetricLow, MetricVolume}
}

// NumericColumns returns the columns summarized by descriptive statistics,
// in table order.
func NumericColumns() []Metric {
	return []Metric{MetricOpen, MetricHigh, MetricLow, MetricClose, MetricVolume}
}

// ParseMetric matches s case-insensitively against the metric set.
func ParseMetric(s string) (Metric, bool) {
	m := Metric(strings.ToLower(strings.TrimSpace(s)))
	switch m {
	case MetricOpen, MetricHigh, MetricLow, MetricClose, MetricVolume:
		return m, true
	}
	return "", false
}

// String implements fmt.Stringer
func (m Metric) String() string { return string(m) }
