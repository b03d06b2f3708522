package files

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	apierrors "stockdash/internal/errors"
	"stockdash/pkg/contracts/domain"
)

// FileInfo represents information about a discovered file
type FileInfo struct {
	Path    string    `json:"-"`
	Name    string    `json:"name"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
}

// File is a discovered file together with its content.
type File struct {
	FileInfo
	Data []byte
}

// Snapshot is the content of every matching data file at one point in time.
type Snapshot []File

// Clone returns a deep copy so callers can hand the snapshot to independent
// owners.
func (s Snapshot) Clone() Snapshot {
	if s == nil {
		return nil
	}
	out := make(Snapshot, len(s))
	for i, f := range s {
		out[i] = File{FileInfo: f.FileInfo, Data: append([]byte(nil), f.Data...)}
	}
	return out
}

// Sources exposes the snapshot as filesystem-channel sources named by file
// name.
func (s Snapshot) Sources() []domain.Source {
	sources := make([]domain.Source, len(s))
	for i, f := range s {
		sources[i] = domain.BytesSource(f.Name, domain.ChannelFilesystem, f.Data)
	}
	return sources
}

// Infos returns the file metadata without content.
func (s Snapshot) Infos() []FileInfo {
	infos := make([]FileInfo, len(s))
	for i, f := range s {
		infos[i] = f.FileInfo
	}
	return infos
}

// Discovery provides file discovery operations
type Discovery struct {
	basePath string
}

// NewDiscovery creates a new file discovery instance
func NewDiscovery(basePath string) *Discovery {
	return &Discovery{basePath: basePath}
}

// FindFilesByPattern finds regular files in dir matching a glob pattern,
// ordered by name. A missing directory yields no files.
func (d *Discovery) FindFilesByPattern(dir string, pattern string) ([]FileInfo, error) {
	fullPath := d.resolve(dir)
	if _, err := filepath.Match(pattern, ""); err != nil {
		return nil, fmt.Errorf("invalid pattern %s: %w", pattern, err)
	}

	matches, err := filepath.Glob(filepath.Join(fullPath, pattern))
	if err != nil {
		return nil, fmt.Errorf("invalid pattern %s: %w", pattern, err)
	}

	var files []FileInfo
	for _, match := range matches {
		info, err := os.Stat(match)
		if err != nil || info.IsDir() {
			continue
		}
		files = append(files, FileInfo{
			Path:    match,
			Name:    filepath.Base(match),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].Name < files[j].Name
	})

	return files, nil
}

// ReadSnapshot reads every file matching pattern in dir.
func (d *Discovery) ReadSnapshot(ctx context.Context, dir, pattern string) (Snapshot, error) {
	infos, err := d.FindFilesByPattern(dir, pattern)
	if err != nil {
		return nil, err
	}

	snapshot := make(Snapshot, 0, len(infos))
	for _, info := range infos {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := os.ReadFile(info.Path)
		if err != nil {
			return nil, apierrors.NewStorageError("failed to read "+info.Name, err).WithContext("path", info.Path)
		}
		snapshot = append(snapshot, File{FileInfo: info, Data: data})
	}
	return snapshot, nil
}

func (d *Discovery) resolve(dir string) string {
	if filepath.IsAbs(dir) || d.basePath == "" {
		return dir
	}
	return filepath.Join(d.basePath, dir)
}

// GetLatestFile returns the most recently modified file from a list
func GetLatestFile(files []FileInfo) (FileInfo, bool) {
	if len(files) == 0 {
		return FileInfo{}, false
	}

	latest := files[0]
	for _, file := range files[1:] {
		if file.ModTime.After(latest.ModTime) {
			latest = file
		}
	}

	return latest, true
}
