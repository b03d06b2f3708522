package dataprocessing

import (
	"fmt"
	"sort"
	"strings"

	"stockdash/pkg/contracts/domain"
)

// Companies returns the distinct company identifiers in byte-wise order.
func Companies(ds *domain.Dataset) []string {
	if ds == nil {
		return nil
	}
	set := make(map[string]struct{})
	for _, r := range ds.Records {
		set[r.Company] = struct{}{}
	}
	companies := make([]string, 0, len(set))
	for c := range set {
		companies = append(companies, c)
	}
	sort.Strings(companies)
	return companies
}

// Resolve validates sel against ds. An absent or empty company resolves to
// the first company in sorted order; Fallback is set only when a company was
// requested and is missing. An unknown metric resolves to DefaultMetric.
func Resolve(ds *domain.Dataset, sel domain.Selection) (domain.Selection, error) {
	companies := Companies(ds)
	if len(companies) == 0 {
		return domain.Selection{}, fmt.Errorf("resolve selection: %w", ErrNoDataAvailable)
	}

	resolved := domain.Selection{Company: strings.TrimSpace(sel.Company)}

	idx := sort.SearchStrings(companies, resolved.Company)
	if resolved.Company == "" || idx == len(companies) || companies[idx] != resolved.Company {
		resolved.Fallback = resolved.Company != ""
		resolved.Company = companies[0]
	}

	if m, ok := domain.ParseMetric(string(sel.Metric)); ok {
		resolved.Metric = m
	} else {
		resolved.Metric = domain.DefaultMetric
	}

	return resolved, nil
}
