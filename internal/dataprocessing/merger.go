package dataprocessing

import (
	"strings"
	"time"

	"stockdash/pkg/contracts/domain"
)

// Merge concatenates tables in order into one dataset. Rows whose date does
// not parse are dropped and counted. Columns are the union of the table
// headers in first-seen order, with Name appended when it was inferred.
func Merge(tables []*Table) *domain.Dataset {
	ds := &domain.Dataset{
		Sources: make([]domain.SourceSummary, 0, len(tables)),
		BuiltAt: time.Now().UTC(),
	}

	seen := make(map[string]bool)
	inferred := false
	for _, t := range tables {
		for _, c := range t.Columns {
			if !seen[c] {
				seen[c] = true
				ds.Columns = append(ds.Columns, c)
			}
		}
		if !t.HasName {
			inferred = true
		}
	}
	if inferred && !seen[domain.ColumnName] {
		ds.Columns = append(ds.Columns, domain.ColumnName)
	}

	for _, t := range tables {
		summary := domain.SourceSummary{Name: t.Source, Channel: t.Channel}
		if !t.HasName {
			summary.InferredCompany = t.InferredCompany
		}

		dateIdx, nameIdx := -1, -1
		for i, c := range t.Columns {
			switch c {
			case domain.ColumnDate:
				dateIdx = i
			case domain.ColumnName:
				nameIdx = i
			}
		}

		for _, row := range t.Rows {
			ds.RawRows++

			date, ok := ParseDate(row.Cells[dateIdx])
			if !ok {
				ds.DroppedRows++
				summary.DroppedRows++
				continue
			}

			company := t.InferredCompany
			if nameIdx >= 0 {
				if v := strings.TrimSpace(row.Cells[nameIdx]); v != "" {
					company = v
				}
			}

			fields := make(map[string]string, len(t.Columns)+1)
			for i, c := range t.Columns {
				if i != dateIdx {
					fields[c] = row.Cells[i]
				}
			}
			fields[domain.ColumnName] = company

			ds.Records = append(ds.Records, domain.Record{
				Company: company,
				Date:    date,
				Fields:  fields,
			})
			summary.Rows++
		}

		ds.Sources = append(ds.Sources, summary)
	}

	return ds
}
