package dataprocessing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummarize(t *testing.T) {
	summaries := Summarize(stockDataset(t), 0)
	require.Len(t, summaries, 2)

	aapl := summaries[0]
	assert.Equal(t, "AAPL", aapl.Company)
	assert.Equal(t, 2, aapl.Rows)
	assert.Equal(t, day(2), aapl.FirstDate)
	assert.Equal(t, day(3), aapl.LastDate)
	assert.Equal(t, []float64{300, 305}, aapl.LastCloses)
	assert.Equal(t, 305.0, *aapl.LastClose)
	assert.Equal(t, 300.0, *aapl.PreviousClose)
	assert.InDelta(t, 5.0, *aapl.Change, 1e-9)
	assert.InDelta(t, 5.0/3.0, *aapl.ChangePercent, 1e-9)
	assert.Equal(t, 300.60, *aapl.High)
	assert.Equal(t, 295.19, *aapl.Low)

	assert.Equal(t, "MSFT", summaries[1].Company)
}

func TestSummarize_LastN(t *testing.T) {
	ds := Merge([]*Table{mustTable(t, "X_data.csv", "date,close\n2020-01-01,1\n2020-01-02,\n2020-01-03,3\n2020-01-04,4\n")})

	s := Summarize(ds, 2)[0]
	assert.Equal(t, []float64{3, 4}, s.LastCloses)
	assert.Nil(t, s.High)
	assert.Nil(t, s.Low)

	single := Summarize(Merge([]*Table{mustTable(t, "Y_data.csv", "date,close\n2020-01-01,7\n")}), 10)[0]
	assert.Equal(t, 7.0, *single.LastClose)
	assert.Nil(t, single.PreviousClose)
	assert.Nil(t, single.Change)
}

func TestSummarize_Empty(t *testing.T) {
	assert.Empty(t, Summarize(Merge(nil), 10))
}
