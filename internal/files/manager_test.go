package files

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockdash/internal/config"
	apierrors "stockdash/internal/errors"
)

func testPaths(t *testing.T) *config.Paths {
	root := t.TempDir()
	return &config.Paths{
		WorkingDir: root,
		DataDir:    filepath.Join(root, "prices"),
		LogsDir:    filepath.Join(root, "var", "log"),
	}
}

func TestResolvePath(t *testing.T) {
	paths := testPaths(t)
	m := NewManager(paths)

	tests := []struct {
		path string
		want string
	}{
		{"/abs/out.csv", "/abs/out.csv"},
		{"data/AAPL_data.csv", filepath.Join(paths.DataDir, "AAPL_data.csv")},
		{"logs/app.log", filepath.Join(paths.LogsDir, "app.log")},
		{"data", paths.DataDir},
		{"logs", paths.LogsDir},
		{"database/x.csv", filepath.Join(paths.WorkingDir, "database", "x.csv")},
		{"exports/combined_stocks.csv", filepath.Join(paths.WorkingDir, "exports", "combined_stocks.csv")},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, m.resolvePath(tt.path))
		})
	}

	assert.Equal(t, "rel.csv", NewManager(nil).resolvePath("rel.csv"))
}

func TestWriteAtomic(t *testing.T) {
	paths := testPaths(t)
	m := NewManager(paths)

	err := m.WriteAtomic("out/combined_stocks.csv", func(w io.Writer) error {
		_, err := fmt.Fprint(w, "date,close\n")
		return err
	})
	require.NoError(t, err)

	target := filepath.Join(paths.WorkingDir, "out", "combined_stocks.csv")
	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "date,close\n", string(data))
	assert.True(t, m.FileExists("out/combined_stocks.csv"))

	entries, err := os.ReadDir(filepath.Dir(target))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file left behind")
}

func TestWriteAtomic_CreatesMappedDirectory(t *testing.T) {
	paths := testPaths(t)
	m := NewManager(paths)

	require.NoError(t, m.WriteAtomic("data/nested/GOOG_data.csv", func(w io.Writer) error {
		_, err := fmt.Fprint(w, "date,close\n")
		return err
	}))
	assert.FileExists(t, filepath.Join(paths.DataDir, "nested", "GOOG_data.csv"))
	assert.NoDirExists(t, filepath.Join(paths.WorkingDir, "data"))
}

func TestWriteAtomic_FailureLeavesNoFile(t *testing.T) {
	paths := testPaths(t)
	m := NewManager(paths)
	boom := errors.New("boom")

	err := m.WriteAtomic("out/partial.csv", func(w io.Writer) error {
		_, _ = fmt.Fprint(w, "date")
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.False(t, m.FileExists("out/partial.csv"))

	entries, err := os.ReadDir(filepath.Join(paths.WorkingDir, "out"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestWriteAtomic_StorageErrors(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(t *testing.T, root string)
		target  string
		message string
	}{
		{
			name: "parent is a regular file",
			setup: func(t *testing.T, root string) {
				require.NoError(t, os.WriteFile(filepath.Join(root, "blocked"), []byte("x"), 0644))
			},
			target:  "blocked/out.csv",
			message: "failed to create directory",
		},
		{
			name: "target is a non-empty directory",
			setup: func(t *testing.T, root string) {
				require.NoError(t, os.MkdirAll(filepath.Join(root, "out.csv", "keep"), 0755))
			},
			target:  "out.csv",
			message: "failed to move file into place",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			paths := testPaths(t)
			tt.setup(t, paths.WorkingDir)

			err := NewManager(paths).WriteAtomic(tt.target, func(w io.Writer) error {
				_, err := fmt.Fprint(w, "date\n")
				return err
			})
			require.Error(t, err)

			var appErr *apierrors.AppError
			require.True(t, errors.As(err, &appErr))
			assert.Equal(t, apierrors.ErrTypeStorage, appErr.Type)
			assert.Equal(t, tt.message, appErr.Message)
			assert.Equal(t, tt.target, appErr.Context["path"])
		})
	}
}

func TestEnsureDirectory(t *testing.T) {
	paths := testPaths(t)
	m := NewManager(paths)

	require.NoError(t, m.EnsureDirectory("data/"))
	assert.True(t, config.FileExists(paths.DataDir))
	require.NoError(t, m.EnsureDirectory("data/"))
}
