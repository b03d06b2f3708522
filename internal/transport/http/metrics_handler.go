package http

import (
	"net/http"

	"stockdash/pkg/contracts/domain"
)

// MetricInfo describes one selectable metric
type MetricInfo struct {
	Name    domain.Metric `json:"name"`
	Default bool          `json:"default"`
}

// ListMetrics handles GET /api/metrics: the fixed metric set in
// presentation order, plus the statistics rows every stats table carries.
func ListMetrics(w http.ResponseWriter, r *http.Request) {
	metrics := make([]MetricInfo, 0, len(domain.Metrics()))
	for _, m := range domain.Metrics() {
		metrics = append(metrics, MetricInfo{Name: m, Default: m == domain.DefaultMetric})
	}
	success(w, r, map[string]interface{}{
		"metrics":    metrics,
		"statistics": domain.StatNames,
	})
}
