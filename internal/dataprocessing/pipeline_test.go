package dataprocessing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockdash/internal/shared/testutil"
	"stockdash/pkg/contracts/domain"
)

func stockSources() []domain.Source {
	return []domain.Source{
		fsSource("AAPL_data.csv", testutil.AAPLCSV),
		fsSource("MSFT_data.csv", testutil.MSFTCSV),
	}
}

func TestPipeline_Compute(t *testing.T) {
	logger, handler := testutil.NewTestLogger(t)
	p := NewPipeline(logger, Options{})

	res, err := p.Compute(context.Background(), stockSources(), domain.Selection{Company: "AAPL", Metric: domain.MetricClose})
	require.NoError(t, err)

	assert.Equal(t, 4, res.Dataset.Len())
	assert.Equal(t, []string{"AAPL", "MSFT"}, Companies(res.Dataset))
	assert.Equal(t, domain.Selection{Company: "AAPL", Metric: domain.MetricClose}, res.Selection)
	assert.Empty(t, res.Warnings)

	require.Len(t, res.View.Chart, 2)
	assert.Equal(t, day(2), res.View.Chart[0].Date)
	assert.Equal(t, 300.0, *res.View.Chart[0].Value)
	assert.Equal(t, day(3), res.View.Chart[1].Date)
	assert.Equal(t, 305.0, *res.View.Chart[1].Value)

	cs, ok := res.View.Stats.Column(domain.MetricClose)
	require.True(t, ok)
	assert.Equal(t, 2, cs.Count)
	assert.InDelta(t, 302.5, *cs.Mean, 1e-9)

	testutil.AssertNoErrors(t, handler)
	assert.True(t, handler.ContainsMessage("dataset built"))
}

func TestPipeline_Build(t *testing.T) {
	ctx := context.Background()

	t.Run("drops unparseable date rows", func(t *testing.T) {
		p := NewPipeline(nil, Options{})
		sources := []domain.Source{
			fsSource("AAPL_data.csv", testutil.AAPLCSV+"not-a-date,1,1,1,1,1\n"),
			fsSource("MSFT_data.csv", testutil.MSFTCSV),
		}
		ds, failures, err := p.Build(ctx, sources)
		require.NoError(t, err)
		assert.Empty(t, failures)
		assert.Equal(t, 4, ds.Len())
		assert.Equal(t, 1, ds.DroppedRows)
	})

	t.Run("loading twice doubles rows", func(t *testing.T) {
		p := NewPipeline(nil, Options{})
		sources := stockSources()
		ds, _, err := p.Build(ctx, append(sources, sources...))
		require.NoError(t, err)
		assert.Equal(t, 8, ds.Len())
	})

	t.Run("no sources", func(t *testing.T) {
		_, _, err := NewPipeline(nil, Options{}).Build(ctx, nil)
		assert.ErrorIs(t, err, ErrNoDataAvailable)
	})

	t.Run("no usable rows", func(t *testing.T) {
		ds, _, err := NewPipeline(nil, Options{}).Build(ctx, []domain.Source{
			fsSource("X_data.csv", "date,close\nnope,1\n"),
		})
		assert.ErrorIs(t, err, ErrNoDataAvailable)
		require.NotNil(t, ds)
		assert.Equal(t, 1, ds.DroppedRows)
	})

	t.Run("all sources failing keeps warnings", func(t *testing.T) {
		_, failures, err := NewPipeline(nil, Options{}).Build(ctx, []domain.Source{
			fsSource("X_data.csv", ""),
		})
		assert.ErrorIs(t, err, ErrNoDataAvailable)
		assert.Len(t, failures, 1)
	})

	t.Run("isolated failure keeps the rest", func(t *testing.T) {
		sources := append(stockSources(), fsSource("BAD_data.csv", "close\n1\n"))
		ds, failures, err := NewPipeline(nil, Options{}).Build(ctx, sources)
		require.NoError(t, err)
		assert.Equal(t, 4, ds.Len())
		require.Len(t, failures, 1)
		assert.Equal(t, "BAD_data.csv", failures[0].Source)
	})

	t.Run("strict failure aborts", func(t *testing.T) {
		sources := append(stockSources(), fsSource("BAD_data.csv", "close\n1\n"))
		ds, _, err := NewPipeline(nil, Options{StrictSources: true}).Build(ctx, sources)
		assert.True(t, IsSourceParseError(err))
		assert.Nil(t, ds)
	})
}

func TestPipeline_Evaluate(t *testing.T) {
	p := NewPipeline(nil, Options{})
	ds, _, err := p.Build(context.Background(), stockSources())
	require.NoError(t, err)

	view, err := p.Evaluate(ds, domain.Selection{Company: "GOOG", Metric: domain.MetricVolume})
	require.NoError(t, err)
	assert.True(t, view.Selection.Fallback)
	assert.Equal(t, "AAPL", view.Selection.Company)
	assert.Len(t, view.Records, 2)
	assert.Equal(t, 33870100.0, *view.Chart[0].Value)

	_, err = p.Evaluate(&domain.Dataset{}, domain.Selection{})
	assert.ErrorIs(t, err, ErrNoDataAvailable)
}
