package dataprocessing

import (
	"time"

	"stockdash/pkg/contracts/domain"
)

// CompanySummary is the at-a-glance line shown next to the company list.
type CompanySummary struct {
	Company       string    `json:"company"`
	Rows          int       `json:"rows"`
	FirstDate     time.Time `json:"first_date"`
	LastDate      time.Time `json:"last_date"`
	LastClose     *float64  `json:"last_close"`
	PreviousClose *float64  `json:"previous_close"`
	Change        *float64  `json:"change"`
	ChangePercent *float64  `json:"change_percent"`
	High          *float64  `json:"high"`
	Low           *float64  `json:"low"`
	LastCloses    []float64 `json:"last_closes"`
}

// DefaultLastCloses is the number of trailing closes kept in a summary.
const DefaultLastCloses = 10

// Summarize builds one summary per company in Companies order.
func Summarize(ds *domain.Dataset, lastN int) []CompanySummary {
	if lastN <= 0 {
		lastN = DefaultLastCloses
	}
	companies := Companies(ds)
	summaries := make([]CompanySummary, 0, len(companies))
	for _, c := range companies {
		summaries = append(summaries, summarizeCompany(c, Filter(ds, c), lastN))
	}
	return summaries
}

// summarizeCompany expects records already in date order.
func summarizeCompany(company string, records []domain.Record, lastN int) CompanySummary {
	s := CompanySummary{
		Company:    company,
		Rows:       len(records),
		LastCloses: make([]float64, 0, lastN),
	}
	if len(records) == 0 {
		return s
	}
	s.FirstDate = records[0].Date
	s.LastDate = records[len(records)-1].Date

	// Walk backwards collecting the most recent closes that parse.
	for i := len(records) - 1; i >= 0 && len(s.LastCloses) < lastN; i-- {
		if v, ok := records[i].MetricValue(domain.MetricClose); ok {
			s.LastCloses = append([]float64{v}, s.LastCloses...)
		}
	}

	if n := len(s.LastCloses); n > 0 {
		s.LastClose = ptr(s.LastCloses[n-1])
		if n > 1 {
			prev := s.LastCloses[n-2]
			s.PreviousClose = ptr(prev)
			s.Change = ptr(*s.LastClose - prev)
			if prev != 0 {
				s.ChangePercent = ptr((*s.LastClose - prev) / prev * 100)
			}
		}
	}

	for _, r := range records {
		if v, ok := r.MetricValue(domain.MetricHigh); ok && (s.High == nil || v > *s.High) {
			s.High = ptr(v)
		}
		if v, ok := r.MetricValue(domain.MetricLow); ok && (s.Low == nil || v < *s.Low) {
			s.Low = ptr(v)
		}
	}

	return s
}
