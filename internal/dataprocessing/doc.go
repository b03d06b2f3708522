// Package dataprocessing turns raw CSV sources into the dashboard's dataset
// and derives everything a presenter shows from it.
//
// # Pipeline
//
// One interaction runs the same sequence of pure steps:
//
//	Sources → Loader → Tables → Merge → Dataset → Resolve → Filter → View (+ Describe, Chart)
//
// The Loader parses each source independently and infers the company
// identifier from the source name when the table carries no Name column.
// Merge concatenates the tables, parses dates and silently drops rows whose
// date does not parse. Resolve validates a selection against the dataset,
// falling back to the first company when the requested one is absent.
// Filter narrows to one company in date order and Describe produces the
// descriptive statistics table.
//
// # Usage
//
//	p := dataprocessing.NewPipeline(logger, dataprocessing.Options{})
//	res, err := p.Compute(ctx, sources, domain.Selection{Company: "AAPL"})
//	if errors.Is(err, dataprocessing.ErrNoDataAvailable) {
//	    // show "No data found"
//	}
//
// # Error Handling
//
// ErrNoDataAvailable is returned when there are no sources or no usable
// rows. A source that cannot be parsed is reported as a *SourceParseError;
// by default it is isolated and returned as a warning, in strict mode it
// aborts the whole load.
package dataprocessing
