package dataprocessing

import (
	"sort"

	"stockdash/pkg/contracts/domain"
)

// Filter returns the records of company ordered by date. Records sharing a
// date keep their dataset order. The dataset is not modified.
func Filter(ds *domain.Dataset, company string) []domain.Record {
	if ds == nil {
		return nil
	}
	var view []domain.Record
	for _, r := range ds.Records {
		if r.Company == company {
			view = append(view, r)
		}
	}
	sort.SliceStable(view, func(i, j int) bool {
		return view[i].Date.Before(view[j].Date)
	})
	return view
}

// Chart projects records onto (date, metric value) points.
func Chart(records []domain.Record, m domain.Metric) []domain.ChartPoint {
	points := make([]domain.ChartPoint, len(records))
	for i, r := range records {
		points[i].Date = r.Date
		if v, ok := r.MetricValue(m); ok {
			points[i].Value = &v
		}
	}
	return points
}
