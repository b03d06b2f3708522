package services

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockdash/internal/shared/testutil"
)

func newHealthService(t *testing.T, dataDir string) *HealthService {
	t.Helper()
	logger, _ := testutil.NewTestLogger(t)
	return NewHealthService(HealthOptions{
		Version:   "1.2.3",
		RepoURL:   "https://example.test/stockdash",
		BuildTime: "2024-01-01T00:00:00Z",
		DataDir:   dataDir,
		Pattern:   "*_data.csv",
		Sessions:  CounterFunc(func() int { return 3 }),
		Clients:   CounterFunc(func() int { return 2 }),
	}, nil, logger)
}

func TestHealthCheck(t *testing.T) {
	hs := newHealthService(t, t.TempDir())
	status := hs.HealthCheck(context.Background())
	assert.Equal(t, "ok", status.Status)
	assert.Equal(t, "1.2.3", status.Version)
}

func TestReadinessCheck(t *testing.T) {
	tests := []struct {
		name    string
		dataDir func(t *testing.T) string
		want    string
	}{
		{name: "data dir with files", dataDir: testutil.StockDataDir, want: "ready"},
		{name: "missing data dir", dataDir: func(t *testing.T) string { return filepath.Join(t.TempDir(), "absent") }, want: "ready"},
		{
			name: "data path is a file",
			dataDir: func(t *testing.T) string {
				p := filepath.Join(t.TempDir(), "file")
				require.NoError(t, os.WriteFile(p, nil, 0644))
				return p
			},
			want: "not_ready",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hs := newHealthService(t, tt.dataDir(t))
			status := hs.ReadinessCheck(context.Background())
			assert.Equal(t, tt.want, status.Status)
			assert.Contains(t, status.Services, "data")
			assert.Contains(t, status.Services, "sessions")
		})
	}
}

func TestReadinessWithoutSessions(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	hs := NewHealthService(HealthOptions{DataDir: t.TempDir(), Pattern: "*.csv"}, nil, logger)
	assert.Equal(t, "not_ready", hs.ReadinessCheck(context.Background()).Status)
}

func TestLivenessCheck(t *testing.T) {
	status := newHealthService(t, t.TempDir()).LivenessCheck(context.Background())
	assert.Equal(t, "alive", status.Status)
	assert.Equal(t, runtime.Version(), status.Runtime["go_version"])
}

func TestVersion(t *testing.T) {
	v := newHealthService(t, t.TempDir()).Version()
	assert.Equal(t, "1.2.3", v["version"])
	assert.Equal(t, "2024-01-01T00:00:00Z", v["build_time"])
	assert.NotContains(t, v, "build_id")
}

func TestSystemStats(t *testing.T) {
	dir := testutil.StockDataDir(t)
	testutil.WriteSources(t, dir, map[string]string{"notes.txt": "ignored"})
	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(dir, "MSFT_data.csv"), old, old))
	hs := newHealthService(t, dir)

	stats, err := hs.SystemStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.DataFiles)
	assert.Equal(t, "AAPL_data.csv", stats.LatestDataFile)
	assert.Equal(t, int64(len(testutil.AAPLCSV)+len(testutil.MSFTCSV)), stats.DataSizeBytes)
	assert.Equal(t, 3, stats.ActiveSessions)
	assert.Equal(t, 2, stats.WebSocketClients)

	detailed := hs.GetDetailedHealth(context.Background())
	assert.Contains(t, detailed, "readiness")
	assert.Contains(t, detailed, "stats")
}
