package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// Paths contains the resolved file system locations used by the application.
// Relative entries in Config are resolved against the working directory.
type Paths struct {
	WorkingDir string
	DataDir    string
	LogsDir    string
	LogFile    string
}

// GetPaths resolves the configured directories to absolute paths.
func (c *Config) GetPaths() (*Paths, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}

	logFile := resolve(wd, c.Logging.FilePath)

	return &Paths{
		WorkingDir: wd,
		DataDir:    resolve(wd, c.Data.Dir),
		LogsDir:    filepath.Dir(logFile),
		LogFile:    logFile,
	}, nil
}

func resolve(base, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}

// GetDataDir returns the resolved data directory path
func (c *Config) GetDataDir() string {
	paths, err := c.GetPaths()
	if err != nil {
		return c.Data.Dir
	}
	return paths.DataDir
}

// EnsureDirectories creates the log directory when file logging is enabled.
// The data directory is never created: an absent directory is simply an
// empty filesystem channel.
func (p *Paths) EnsureDirectories(cfg LoggingConfig) error {
	if cfg.Output == "console" {
		return nil
	}
	if err := os.MkdirAll(p.LogsDir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", p.LogsDir, err)
	}
	return nil
}

// FileExists checks if a file exists
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}

// LogPathResolution logs the resolved paths for debugging
func (p *Paths) LogPathResolution(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}

	logger.Info("Path resolution summary",
		slog.Group("directories",
			slog.String("working", p.WorkingDir),
			slog.String("data", p.DataDir),
			slog.String("logs", p.LogsDir),
		),
		slog.Bool("data_dir_exists", FileExists(p.DataDir)))
}
