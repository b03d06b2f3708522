package domain

import "time"

// Dataset is the merged, date-cleaned table for one load cycle.
// Every record has a parsed date and a non-empty company.
type Dataset struct {
	Columns     []string        `json:"columns"`
	Records     []Record        `json:"-"`
	RawRows     int             `json:"raw_rows"`
	DroppedRows int             `json:"dropped_rows"`
	Sources     []SourceSummary `json:"sources"`
	BuiltAt     time.Time       `json:"built_at"`
}

// SourceSummary describes what one source contributed.
type SourceSummary struct {
	Name            string  `json:"name"`
	Channel         Channel `json:"channel"`
	Rows            int     `json:"rows"`
	DroppedRows     int     `json:"dropped_rows"`
	InferredCompany string  `json:"inferred_company,omitempty"`
}

// Len returns the number of records.
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Records)
}

// Empty reports whether the dataset holds no records.
func (d *Dataset) Empty() bool {
	return d.Len() == 0
}

// Selection is the user's current choice of company and metric. Fallback is
// set when the requested company was not present and a default was used.
type Selection struct {
	Company  string `json:"company" validate:"omitempty,max=64"`
	Metric   Metric `json:"metric" validate:"omitempty,metric"`
	Fallback bool   `json:"fallback"`
}

// ChartPoint is one sample of the selected metric. Value is nil when the
// cell is empty or not numeric.
type ChartPoint struct {
	Date  time.Time `json:"date"`
	Value *float64  `json:"value"`
}

// View is everything a presenter needs for one interaction.
type View struct {
	Selection Selection    `json:"selection"`
	Records   []Record     `json:"-"`
	Chart     []ChartPoint `json:"chart"`
	Stats     Stats        `json:"stats"`
}
