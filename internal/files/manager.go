package files

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"stockdash/internal/config"
	apierrors "stockdash/internal/errors"
)

// Manager provides file management operations
type Manager struct {
	paths *config.Paths
}

// NewManager creates a new file manager instance
func NewManager(paths *config.Paths) *Manager {
	return &Manager{paths: paths}
}

// FileExists checks if a file exists at the given path
func (m *Manager) FileExists(path string) bool {
	fullPath := m.resolvePath(path)
	_, err := os.Stat(fullPath)
	exists := err == nil

	slog.Debug("FileExists check",
		slog.String("path", path),
		slog.String("full_path", fullPath),
		slog.Bool("exists", exists))

	return exists
}

// EnsureDirectory creates a directory if it doesn't exist
func (m *Manager) EnsureDirectory(path string) error {
	fullPath := m.resolvePath(path)

	slog.Debug("Ensuring directory exists",
		slog.String("path", path),
		slog.String("full_path", fullPath))

	return os.MkdirAll(fullPath, 0755)
}

// WriteAtomic writes a file through a temporary sibling that is renamed into
// place once write succeeds, so readers never observe a partial file.
func (m *Manager) WriteAtomic(path string, write func(io.Writer) error) (err error) {
	fullPath := m.resolvePath(path)
	if err := m.EnsureDirectory(filepath.Dir(path)); err != nil {
		return apierrors.NewStorageError("failed to create directory", err).WithContext("path", path)
	}
	dir := filepath.Dir(fullPath)

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(fullPath)+".*.tmp")
	if err != nil {
		return apierrors.NewStorageError("failed to create temp file", err).WithContext("path", path)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if err = write(tmp); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return apierrors.NewStorageError(fmt.Sprintf("failed to sync %s", tmp.Name()), err)
	}
	if err = tmp.Close(); err != nil {
		return apierrors.NewStorageError(fmt.Sprintf("failed to close %s", tmp.Name()), err)
	}
	if err = os.Rename(tmp.Name(), fullPath); err != nil {
		return apierrors.NewStorageError("failed to move file into place", err).WithContext("path", path)
	}

	slog.Info("Wrote file",
		slog.String("path", path),
		slog.String("full_path", fullPath))
	return nil
}

// resolvePath resolves a path relative to the appropriate base directory
func (m *Manager) resolvePath(path string) string {
	if filepath.IsAbs(path) || m.paths == nil {
		return path
	}

	slashed := filepath.ToSlash(path)
	switch {
	case slashed == "data" || strings.HasPrefix(slashed, "data/"):
		return filepath.Join(m.paths.DataDir, strings.TrimPrefix(strings.TrimPrefix(slashed, "data"), "/"))
	case slashed == "logs" || strings.HasPrefix(slashed, "logs/"):
		return filepath.Join(m.paths.LogsDir, strings.TrimPrefix(strings.TrimPrefix(slashed, "logs"), "/"))
	default:
		return filepath.Join(m.paths.WorkingDir, path)
	}
}
