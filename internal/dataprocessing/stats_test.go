package dataprocessing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockdash/pkg/contracts/domain"
)

func closes(values ...string) []domain.Record {
	records := make([]domain.Record, len(values))
	for i, v := range values {
		records[i] = domain.Record{Date: day(i + 1), Fields: map[string]string{"close": v}}
	}
	return records
}

func TestDescribe(t *testing.T) {
	stats := Describe(closes("1", "2", "3", "4", ""))

	require.Len(t, stats.Columns, len(domain.NumericColumns()))
	cs, ok := stats.Column(domain.MetricClose)
	require.True(t, ok)

	assert.Equal(t, 4, cs.Count)
	assert.InDelta(t, 2.5, *cs.Mean, 1e-9)
	assert.InDelta(t, 1.2909944487358056, *cs.Std, 1e-9)
	assert.Equal(t, 1.0, *cs.Min)
	assert.InDelta(t, 1.75, *cs.Q25, 1e-9)
	assert.InDelta(t, 2.5, *cs.Q50, 1e-9)
	assert.InDelta(t, 3.25, *cs.Q75, 1e-9)
	assert.Equal(t, 4.0, *cs.Max)
}

func TestDescribe_Undefined(t *testing.T) {
	t.Run("single value has no std", func(t *testing.T) {
		cs, _ := Describe(closes("5")).Column(domain.MetricClose)
		assert.Equal(t, 1, cs.Count)
		assert.Nil(t, cs.Std)
		assert.Equal(t, 5.0, *cs.Q25)
		assert.Equal(t, 5.0, *cs.Max)
	})

	t.Run("column without values", func(t *testing.T) {
		cs, _ := Describe(closes("", "x")).Column(domain.MetricClose)
		assert.Equal(t, 0, cs.Count)
		for _, name := range domain.StatNames[1:] {
			_, ok := cs.Stat(name)
			assert.False(t, ok, name)
		}
	})

	t.Run("empty view", func(t *testing.T) {
		stats := Describe(nil)
		for _, cs := range stats.Columns {
			assert.Equal(t, 0, cs.Count)
			assert.Nil(t, cs.Mean)
		}
	})
}

func TestQuantile(t *testing.T) {
	sorted := []float64{10, 20, 30}
	assert.Equal(t, 10.0, quantile(sorted, 0))
	assert.Equal(t, 15.0, quantile(sorted, 0.25))
	assert.Equal(t, 20.0, quantile(sorted, 0.5))
	assert.Equal(t, 30.0, quantile(sorted, 1))
}
