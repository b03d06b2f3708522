package dataprocessing

import (
	"context"
	"fmt"
	"log/slog"

	"stockdash/pkg/contracts/domain"
)

// Options configures a Pipeline.
type Options struct {
	// StrictSources aborts a load on the first source that fails to parse.
	StrictSources bool
}

// Result is the outcome of one full interaction.
type Result struct {
	Dataset   *domain.Dataset
	Selection domain.Selection
	View      domain.View
	Warnings  []*SourceParseError
}

// Pipeline runs Loader, Merge, Resolve and Filter for one interaction.
// It holds no state between calls.
type Pipeline struct {
	logger *slog.Logger
	loader *Loader
}

// NewPipeline creates a pipeline.
func NewPipeline(logger *slog.Logger, opts Options) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		logger: logger.With(slog.String("component", "pipeline")),
		loader: NewLoader(logger, opts.StrictSources),
	}
}

// Build loads and merges sources. Parse failures of isolated sources are
// returned alongside the dataset. A dataset with no rows is reported as
// ErrNoDataAvailable, still together with any failures.
func (p *Pipeline) Build(ctx context.Context, sources []domain.Source) (*domain.Dataset, []*SourceParseError, error) {
	tables, failures, err := p.loader.Load(ctx, sources)
	if err != nil {
		return nil, failures, err
	}

	ds := Merge(tables)

	p.logger.InfoContext(ctx, "dataset built",
		slog.Int("sources", len(sources)),
		slog.Int("failed_sources", len(failures)),
		slog.Int("raw_rows", ds.RawRows),
		slog.Int("dropped_rows", ds.DroppedRows),
		slog.Int("rows", ds.Len()))

	if ds.Empty() {
		return ds, failures, fmt.Errorf("build dataset: %w", ErrNoDataAvailable)
	}
	return ds, failures, nil
}

// Evaluate resolves sel against ds and computes the filtered view with its
// chart and statistics.
func (p *Pipeline) Evaluate(ds *domain.Dataset, sel domain.Selection) (domain.View, error) {
	resolved, err := Resolve(ds, sel)
	if err != nil {
		return domain.View{}, err
	}
	if resolved.Fallback {
		p.logger.Debug("selection fell back to default company",
			slog.String("requested", sel.Company),
			slog.String("resolved", resolved.Company))
	}

	records := Filter(ds, resolved.Company)
	return domain.View{
		Selection: resolved,
		Records:   records,
		Chart:     Chart(records, resolved.Metric),
		Stats:     Describe(records),
	}, nil
}

// Compute runs the whole pipeline from sources to view.
func (p *Pipeline) Compute(ctx context.Context, sources []domain.Source, sel domain.Selection) (*Result, error) {
	ds, failures, err := p.Build(ctx, sources)
	if err != nil {
		return &Result{Dataset: ds, Warnings: failures}, err
	}

	view, err := p.Evaluate(ds, sel)
	if err != nil {
		return &Result{Dataset: ds, Warnings: failures}, err
	}

	return &Result{
		Dataset:   ds,
		Selection: view.Selection,
		View:      view,
		Warnings:  failures,
	}, nil
}
