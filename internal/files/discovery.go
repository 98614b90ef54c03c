package files

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"mpxreport/internal/config"
	apperrors "mpxreport/internal/errors"
)

// FileInfo represents a generated report file
type FileInfo struct {
	Path    string    `json:"-"`
	Name    string    `json:"name"`
	Format  string    `json:"format"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"modified"`
}

// Discovery finds report files below the report directory
type Discovery struct {
	paths *config.Paths
}

// NewDiscovery creates a new discovery over paths.ReportsDir
func NewDiscovery(paths *config.Paths) *Discovery {
	return &Discovery{paths: paths}
}

// FindReports lists every report file, newest first. A missing report
// directory yields an empty list.
func (d *Discovery) FindReports() ([]FileInfo, error) {
	entries, err := os.ReadDir(d.paths.ReportsDir)
	if errors.Is(err, fs.ErrNotExist) {
		return []FileInfo{}, nil
	}
	if err != nil {
		return nil, apperrors.NewStorageError("failed to read report directory", err).
			WithContext("dir", d.paths.ReportsDir)
	}

	files := make([]FileInfo, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !config.IsReportFileName(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, newFileInfo(filepath.Join(d.paths.ReportsDir, entry.Name()), info))
	}

	sort.Slice(files, func(i, j int) bool {
		if !files[i].ModTime.Equal(files[j].ModTime) {
			return files[i].ModTime.After(files[j].ModTime)
		}
		return files[i].Name > files[j].Name
	})
	return files, nil
}

// Lookup resolves a report by file name. Names that are not report file
// names are rejected before touching the file system.
func (d *Discovery) Lookup(name string) (FileInfo, error) {
	path, err := d.paths.ResolveReport(name)
	if err != nil {
		return FileInfo{}, apperrors.NewValidationError(err.Error())
	}

	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) || (err == nil && info.IsDir()) {
		return FileInfo{}, apperrors.NewNotFoundError(fmt.Sprintf("report %s", name))
	}
	if err != nil {
		return FileInfo{}, apperrors.NewStorageError("failed to stat report", err).
			WithContext("name", name)
	}
	return newFileInfo(path, info), nil
}

func newFileInfo(path string, info fs.FileInfo) FileInfo {
	return FileInfo{
		Path:    path,
		Name:    info.Name(),
		Format:  strings.TrimPrefix(filepath.Ext(info.Name()), "."),
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}
}
