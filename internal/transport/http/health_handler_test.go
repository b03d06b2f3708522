package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockdash/internal/services"
	"stockdash/internal/shared/testutil"
)

func newHealthHandler(t *testing.T, dataDir string) *HealthHandler {
	t.Helper()
	logger, _ := testutil.NewTestLogger(t)
	svc := services.NewHealthService(services.HealthOptions{
		Version:  "v1.0.0-test",
		RepoURL:  "https://example.test/stockdash",
		DataDir:  dataDir,
		Pattern:  "*_data.csv",
		Sessions: services.CounterFunc(func() int { return 1 }),
		Clients:  services.CounterFunc(func() int { return 0 }),
	}, nil, logger)
	return NewHealthHandler(svc, logger)
}

func TestHealthHandler(t *testing.T) {
	handler := newHealthHandler(t, testutil.StockDataDir(t))

	tests := []struct {
		name        string
		handlerFunc http.HandlerFunc
		wantStatus  string
	}{
		{name: "health", handlerFunc: handler.HealthCheck, wantStatus: "ok"},
		{name: "liveness", handlerFunc: handler.LivenessCheck, wantStatus: "alive"},
		{name: "readiness", handlerFunc: handler.ReadinessCheck, wantStatus: "ready"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			tt.handlerFunc(rec, httptest.NewRequest(http.MethodGet, "/", nil))

			require.Equal(t, http.StatusOK, rec.Code)
			var body map[string]interface{}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantStatus, body["status"])
			assert.Equal(t, "v1.0.0-test", body["version"])
		})
	}
}

func TestReadinessNotReady(t *testing.T) {
	file := filepath.Join(t.TempDir(), "data")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0644))
	handler := newHealthHandler(t, file)

	rec := httptest.NewRecorder()
	handler.ReadinessCheck(rec, httptest.NewRequest(http.MethodGet, "/api/health/ready", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"not_ready"`)
}

func TestVersionAndStats(t *testing.T) {
	handler := newHealthHandler(t, testutil.StockDataDir(t))

	rec := httptest.NewRecorder()
	handler.Version(rec, httptest.NewRequest(http.MethodGet, "/api/version", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "v1.0.0-test")

	rec = httptest.NewRecorder()
	handler.Stats(rec, httptest.NewRequest(http.MethodGet, "/api/health/stats", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	stats := body["stats"].(map[string]interface{})
	assert.Equal(t, float64(2), stats["data_files"])
	assert.Contains(t, []interface{}{"AAPL_data.csv", "MSFT_data.csv"}, stats["latest_data_file"])
	assert.Equal(t, float64(1), stats["active_sessions"])
}
