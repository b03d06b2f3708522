package services

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"time"

	"stockdash/internal/files"
)

// Counter reports a live count, such as sessions or WebSocket clients.
type Counter interface {
	Count() int
}

// CounterFunc adapts a function to Counter.
type CounterFunc func() int

// Count implements Counter
func (f CounterFunc) Count() int { return f() }

// HealthService provides health check functionality
type HealthService struct {
	version   string
	repoURL   string
	buildTime string
	buildID   string
	dataDir   string
	pattern   string
	discovery *files.Discovery
	sessions  Counter
	clients   Counter
	startTime time.Time
	logger    *slog.Logger
}

// HealthStatus represents the health status response
type HealthStatus struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version"`
	Runtime   map[string]interface{} `json:"runtime,omitempty"`
	Services  map[string]interface{} `json:"services,omitempty"`
}

// ServiceHealth represents individual service health
type ServiceHealth struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Uptime  string `json:"uptime,omitempty"`
}

// SystemStats represents system statistics
type SystemStats struct {
	UptimeSeconds    float64 `json:"uptime_seconds"`
	DataFiles        int     `json:"data_files"`
	DataSizeBytes    int64   `json:"data_size_bytes"`
	LatestDataFile   string  `json:"latest_data_file,omitempty"`
	ActiveSessions   int     `json:"active_sessions"`
	WebSocketClients int     `json:"websocket_clients"`
	GoVersion        string  `json:"go_version"`
	OS               string  `json:"os"`
	Arch             string  `json:"arch"`
}

// HealthOptions carries build information and the checks readiness runs.
type HealthOptions struct {
	Version   string
	RepoURL   string
	BuildTime string
	BuildID   string
	DataDir   string
	Pattern   string
	Sessions  Counter
	Clients   Counter
}

// NewHealthService creates a new health service
func NewHealthService(opts HealthOptions, discovery *files.Discovery, logger *slog.Logger) *HealthService {
	if logger == nil {
		logger = slog.Default()
	}
	if discovery == nil {
		discovery = files.NewDiscovery("")
	}

	logger.Info("HealthService initialized",
		slog.String("version", opts.Version),
		slog.String("build_time", opts.BuildTime),
		slog.String("build_id", opts.BuildID))

	return &HealthService{
		version:   opts.Version,
		repoURL:   opts.RepoURL,
		buildTime: opts.BuildTime,
		buildID:   opts.BuildID,
		dataDir:   opts.DataDir,
		pattern:   opts.Pattern,
		discovery: discovery,
		sessions:  opts.Sessions,
		clients:   opts.Clients,
		startTime: time.Now(),
		logger:    logger,
	}
}

// HealthCheck returns overall health status
func (hs *HealthService) HealthCheck(ctx context.Context) HealthStatus {
	hs.logger.DebugContext(ctx, "HealthCheck: performing health check",
		slog.String("uptime", time.Since(hs.startTime).String()))

	return HealthStatus{
		Status:    "ok",
		Timestamp: time.Now(),
		Version:   hs.version,
	}
}

// ReadinessCheck returns readiness status
func (hs *HealthService) ReadinessCheck(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:    "ready",
		Timestamp: time.Now(),
		Version:   hs.version,
		Services: map[string]interface{}{
			"data":      hs.checkDataHealth(),
			"sessions":  hs.checkSessionHealth(),
			"websocket": hs.checkWebSocketHealth(),
		},
	}

	for _, service := range status.Services {
		if sh, ok := service.(ServiceHealth); ok && sh.Status != "ready" {
			status.Status = "not_ready"
			break
		}
	}

	return status
}

// LivenessCheck returns liveness status
func (hs *HealthService) LivenessCheck(ctx context.Context) HealthStatus {
	return HealthStatus{
		Status:    "alive",
		Timestamp: time.Now(),
		Version:   hs.version,
		Runtime: map[string]interface{}{
			"uptime":     time.Since(hs.startTime).Seconds(),
			"go_version": runtime.Version(),
			"goroutines": runtime.NumGoroutine(),
		},
	}
}

// Version returns version information
func (hs *HealthService) Version() map[string]interface{} {
	result := map[string]interface{}{
		"version":      hs.version,
		"go_version":   runtime.Version(),
		"os":           runtime.GOOS,
		"arch":         runtime.GOARCH,
		"repo_url":     hs.repoURL,
		"uptime":       time.Since(hs.startTime).Seconds(),
		"start_time":   hs.startTime.Format(time.RFC3339),
		"current_time": time.Now().Format(time.RFC3339),
	}

	if hs.buildTime != "" {
		result["build_time"] = hs.buildTime
	}
	if hs.buildID != "" {
		result["build_id"] = hs.buildID
	}

	return result
}

// SystemStats returns system statistics
func (hs *HealthService) SystemStats(ctx context.Context) (SystemStats, error) {
	stats := SystemStats{
		UptimeSeconds:    time.Since(hs.startTime).Seconds(),
		ActiveSessions:   count(hs.sessions),
		WebSocketClients: count(hs.clients),
		GoVersion:        runtime.Version(),
		OS:               runtime.GOOS,
		Arch:             runtime.GOARCH,
	}

	found, err := hs.discovery.FindFilesByPattern(hs.dataDir, hs.pattern)
	if err != nil {
		return stats, fmt.Errorf("failed to scan data directory: %w", err)
	}
	stats.DataFiles = len(found)
	for _, f := range found {
		stats.DataSizeBytes += f.Size
	}
	if latest, ok := files.GetLatestFile(found); ok {
		stats.LatestDataFile = latest.Name
	}
	return stats, nil
}

func count(c Counter) int {
	if c == nil {
		return 0
	}
	return c.Count()
}

// checkDataHealth reports whether the data directory is usable. A missing
// directory is ready: it is an empty filesystem channel.
func (hs *HealthService) checkDataHealth() ServiceHealth {
	info, err := os.Stat(hs.dataDir)
	switch {
	case os.IsNotExist(err):
		return ServiceHealth{Status: "ready", Message: "Data directory absent, uploads only"}
	case err != nil:
		return ServiceHealth{Status: "not_ready", Message: fmt.Sprintf("Cannot access data directory: %v", err)}
	case !info.IsDir():
		return ServiceHealth{Status: "not_ready", Message: fmt.Sprintf("Data path is not a directory: %s", hs.dataDir)}
	}

	if _, err := hs.discovery.FindFilesByPattern(hs.dataDir, hs.pattern); err != nil {
		return ServiceHealth{Status: "not_ready", Message: err.Error()}
	}
	return ServiceHealth{Status: "ready", Message: "Data directory is readable"}
}

func (hs *HealthService) checkSessionHealth() ServiceHealth {
	if hs.sessions == nil {
		return ServiceHealth{Status: "not_ready", Message: "session registry not initialized"}
	}
	return ServiceHealth{
		Status:  "ready",
		Message: fmt.Sprintf("%d active sessions", hs.sessions.Count()),
	}
}

// checkWebSocketHealth checks WebSocket service health
func (hs *HealthService) checkWebSocketHealth() ServiceHealth {
	// The hub is always considered healthy if it's running
	return ServiceHealth{
		Status:  "ready",
		Message: "WebSocket service is healthy",
		Uptime:  time.Since(hs.startTime).String(),
	}
}

// GetDetailedHealth returns comprehensive health information
func (hs *HealthService) GetDetailedHealth(ctx context.Context) map[string]interface{} {
	stats, _ := hs.SystemStats(ctx)

	return map[string]interface{}{
		"health":    hs.HealthCheck(ctx),
		"readiness": hs.ReadinessCheck(ctx),
		"liveness":  hs.LivenessCheck(ctx),
		"stats":     stats,
	}
}
