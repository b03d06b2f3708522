package dataprocessing

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockdash/internal/shared/testutil"
	"stockdash/pkg/contracts/domain"
)

func fsSource(name, content string) domain.Source {
	return domain.BytesSource(name, domain.ChannelFilesystem, []byte(content))
}

// trackedCloser records whether the loader closed the reader.
type trackedCloser struct {
	io.Reader
	closed bool
}

func (c *trackedCloser) Close() error {
	c.closed = true
	return nil
}

func trackedSource(name, content string) (domain.Source, *trackedCloser) {
	rc := &trackedCloser{Reader: strings.NewReader(content)}
	return domain.Source{
		Name:    name,
		Channel: domain.ChannelUpload,
		Open:    func() (io.ReadCloser, error) { return rc, nil },
	}, rc
}

func TestInferCompany(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"AAPL_data.csv", "AAPL"},
		{"data/MSFT_data.csv", "MSFT"},
		{"BRK_B_data.csv", "BRK"},
		{"IBM.csv", "IBM"},
		{"_data.csv", "_data"},
		{"prices", "prices"},
		{"uploads/prices.csv", "prices"},
		{"_MSFT_data.csv", "_MSFT_data"},
		{"  GOOG_data.csv  ", "GOOG"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, InferCompany(tt.name))
		})
	}
}

func TestReadTable(t *testing.T) {
	tests := []struct {
		name        string
		content     string
		wantErr     string
		wantColumns []string
		wantRows    int
		wantHasName bool
	}{
		{
			name:        "schema columns",
			content:     testutil.AAPLCSV,
			wantColumns: []string{"date", "open", "high", "low", "close", "volume"},
			wantRows:    2,
		},
		{
			name:        "headers are case-insensitive and trimmed",
			content:     "\ufeff Date ,OPEN,Close,NAME\n2020-01-02,1,2,X\n",
			wantColumns: []string{"date", "open", "close", "Name"},
			wantRows:    1,
			wantHasName: true,
		},
		{
			name:        "blank and duplicate headers are disambiguated",
			content:     "date,,close,close\n2020-01-02,a,1,2\n",
			wantColumns: []string{"date", "Unnamed: 1", "close", "close.1"},
			wantRows:    1,
		},
		{
			name:        "short rows are padded",
			content:     "date,open,close\n2020-01-02,1\n",
			wantColumns: []string{"date", "open", "close"},
			wantRows:    1,
		},
		{
			name:        "header only",
			content:     "date,close\n",
			wantColumns: []string{"date", "close"},
		},
		{name: "empty file", content: "", wantErr: "empty file"},
		{name: "missing date column", content: "open,close\n1,2\n", wantErr: `missing "date" column`},
		{name: "too many fields", content: "date,close\n2020-01-02,1,2\n", wantErr: "expected 2 fields"},
		{
			name:        "stray quote inside an unquoted cell",
			content:     "date,close,Name\n2020-01-02,1,O\"Neil Corp\n",
			wantColumns: []string{"date", "close", "Name"},
			wantRows:    1,
			wantHasName: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table, err := ReadTable("X_data.csv", domain.ChannelFilesystem, strings.NewReader(tt.content))
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				var spe *SourceParseError
				require.True(t, errors.As(err, &spe))
				assert.Equal(t, "X_data.csv", spe.Source)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantColumns, table.Columns)
			assert.Len(t, table.Rows, tt.wantRows)
			assert.Equal(t, tt.wantHasName, table.HasName)
			assert.Equal(t, "X", table.InferredCompany)
			for _, row := range table.Rows {
				assert.Len(t, row.Cells, len(table.Columns))
			}
		})
	}
}

func TestReadTable_LazyQuotes(t *testing.T) {
	table, err := ReadTable("X_data.csv", domain.ChannelUpload,
		strings.NewReader("date,close,Name\n2020-01-02,1,O\"Neil Corp\n2020-01-03,2,\"Acme, Inc\"\n"))
	require.NoError(t, err)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, `O"Neil Corp`, table.Cell(table.Rows[0], "Name"))
	assert.Equal(t, "Acme, Inc", table.Cell(table.Rows[1], "Name"))
}

// Uploads follow the same naming rule as files on disk: the extension is
// dropped and the token before the first underscore names the company.
func TestReadTable_UploadInferredCompany(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"GOOG_data.csv", "GOOG"},
		{"prices.csv", "prices"},
		{"_data.csv", "_data"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table, err := ReadTable(tt.name, domain.ChannelUpload, strings.NewReader(testutil.AAPLCSV))
			require.NoError(t, err)
			assert.Equal(t, tt.want, table.InferredCompany)
		})
	}
}

func TestReadTable_RowLines(t *testing.T) {
	table, err := ReadTable("a.csv", domain.ChannelUpload, strings.NewReader("date,close\n2020-01-02,1\n\n2020-01-03,2\n"))
	require.NoError(t, err)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, 2, table.Rows[0].Line)
	assert.Equal(t, 4, table.Rows[1].Line)
	assert.Equal(t, "2", table.Cell(table.Rows[1], "close"))
	assert.Equal(t, "", table.Cell(table.Rows[1], "volume"))
}

func TestLoader_Load(t *testing.T) {
	ctx := context.Background()

	t.Run("no sources", func(t *testing.T) {
		_, _, err := NewLoader(nil, false).Load(ctx, nil)
		assert.ErrorIs(t, err, ErrNoDataAvailable)
	})

	t.Run("isolates failing sources", func(t *testing.T) {
		logger, handler := testutil.NewTestLogger(t)
		loader := NewLoader(logger, false)

		tables, failures, err := loader.Load(ctx, []domain.Source{
			fsSource("AAPL_data.csv", testutil.AAPLCSV),
			fsSource("BAD_data.csv", "open,close\n1,2\n"),
			fsSource("MSFT_data.csv", testutil.MSFTCSV),
		})
		require.NoError(t, err)
		require.Len(t, tables, 2)
		assert.Equal(t, "AAPL_data.csv", tables[0].Source)
		assert.Equal(t, "MSFT_data.csv", tables[1].Source)
		require.Len(t, failures, 1)
		assert.Equal(t, "BAD_data.csv", failures[0].Source)
		testutil.AssertLogContains(t, handler, slog.LevelWarn, "skipping source")
	})

	t.Run("strict mode aborts", func(t *testing.T) {
		tables, failures, err := NewLoader(nil, true).Load(ctx, []domain.Source{
			fsSource("AAPL_data.csv", testutil.AAPLCSV),
			fsSource("BAD_data.csv", ""),
			fsSource("MSFT_data.csv", testutil.MSFTCSV),
		})
		require.Error(t, err)
		assert.True(t, IsSourceParseError(err))
		assert.Nil(t, tables)
		assert.Len(t, failures, 1)
	})

	t.Run("open failure is a parse error", func(t *testing.T) {
		src := domain.Source{
			Name:    "gone.csv",
			Channel: domain.ChannelFilesystem,
			Open:    func() (io.ReadCloser, error) { return nil, errors.New("permission denied") },
		}
		_, failures, err := NewLoader(nil, false).Load(ctx, []domain.Source{src})
		require.NoError(t, err)
		require.Len(t, failures, 1)
		assert.Contains(t, failures[0].Error(), "permission denied")
	})

	t.Run("closes readers on success and failure", func(t *testing.T) {
		good, goodRC := trackedSource("AAPL_data.csv", testutil.AAPLCSV)
		bad, badRC := trackedSource("BAD_data.csv", "x\n")
		_, _, err := NewLoader(nil, false).Load(ctx, []domain.Source{good, bad})
		require.NoError(t, err)
		assert.True(t, goodRC.closed)
		assert.True(t, badRC.closed)
	})

	t.Run("honors cancellation", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, _, err := NewLoader(nil, false).Load(cctx, []domain.Source{fsSource("AAPL_data.csv", testutil.AAPLCSV)})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestSourceParseError_JSON(t *testing.T) {
	err := &SourceParseError{Source: "a.csv", Channel: domain.ChannelUpload, Line: 3, Err: errors.New("boom")}
	data, mErr := err.MarshalJSON()
	require.NoError(t, mErr)
	assert.JSONEq(t, `{"source":"a.csv","channel":"upload","line":3,"message":"boom"}`, string(data))
	assert.Equal(t, "parse source a.csv (line 3): boom", err.Error())
}
