package files

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockdash/internal/shared/testutil"
	"stockdash/pkg/contracts/domain"
)

func TestFindFilesByPattern(t *testing.T) {
	dir := testutil.StockDataDir(t)
	testutil.WriteSources(t, dir, map[string]string{
		"notes.txt":           "ignored",
		"combined_stocks.csv": "date,close,Name\n",
	})
	require.NoError(t, os.Mkdir(filepath.Join(dir, "DIR_data.csv"), 0755))

	tests := []struct {
		name    string
		dir     string
		pattern string
		want    []string
		wantErr bool
	}{
		{name: "default pattern", dir: dir, pattern: "*_data.csv", want: []string{"AAPL_data.csv", "MSFT_data.csv"}},
		{name: "all csv", dir: dir, pattern: "*.csv", want: []string{"AAPL_data.csv", "MSFT_data.csv", "combined_stocks.csv"}},
		{name: "missing directory", dir: filepath.Join(dir, "missing"), pattern: "*_data.csv"},
		{name: "bad pattern", dir: dir, pattern: "[", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			files, err := NewDiscovery("").FindFilesByPattern(tt.dir, tt.pattern)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			names := make([]string, 0, len(files))
			for _, f := range files {
				names = append(names, f.Name)
			}
			if tt.want == nil {
				assert.Empty(t, names)
				return
			}
			assert.Equal(t, tt.want, names)
		})
	}
}

func TestFindFilesByPattern_RelativeToBase(t *testing.T) {
	base := t.TempDir()
	testutil.WriteSources(t, base, map[string]string{"data/IBM_data.csv": "date\n"})

	files, err := NewDiscovery(base).FindFilesByPattern("data", "*_data.csv")
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, filepath.Join(base, "data", "IBM_data.csv"), files[0].Path)
}

func TestReadSnapshot(t *testing.T) {
	dir := testutil.StockDataDir(t)

	snapshot, err := NewDiscovery("").ReadSnapshot(context.Background(), dir, "*_data.csv")
	require.NoError(t, err)
	require.Len(t, snapshot, 2)
	assert.Equal(t, testutil.AAPLCSV, string(snapshot[0].Data))

	sources := snapshot.Sources()
	require.Len(t, sources, 2)
	assert.Equal(t, "MSFT_data.csv", sources[1].Name)
	assert.Equal(t, domain.ChannelFilesystem, sources[1].Channel)

	rc, err := sources[1].Open()
	require.NoError(t, err)
	defer rc.Close()
	content, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, testutil.MSFTCSV, string(content))

	assert.Equal(t, "AAPL_data.csv", snapshot.Infos()[0].Name)
}

func TestReadSnapshot_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewDiscovery("").ReadSnapshot(ctx, testutil.StockDataDir(t), "*_data.csv")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSnapshotClone(t *testing.T) {
	original := Snapshot{{FileInfo: FileInfo{Name: "A_data.csv"}, Data: []byte("date\n")}}
	clone := original.Clone()
	clone[0].Data[0] = 'D'

	assert.Equal(t, "date\n", string(original[0].Data))
	assert.Equal(t, "A_data.csv", clone[0].Name)
	assert.Nil(t, Snapshot(nil).Clone())
}

func TestGetLatestFile(t *testing.T) {
	now := time.Now()
	_, ok := GetLatestFile(nil)
	assert.False(t, ok)

	latest, ok := GetLatestFile([]FileInfo{
		{Name: "old", ModTime: now.Add(-time.Hour)},
		{Name: "new", ModTime: now},
		{Name: "mid", ModTime: now.Add(-time.Minute)},
	})
	require.True(t, ok)
	assert.Equal(t, "new", latest.Name)
}
