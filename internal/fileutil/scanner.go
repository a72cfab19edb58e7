package fileutil

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// ScanOptions configures the directory scanning behavior
type ScanOptions struct {
	// Extensions is a list of file extensions to include (e.g., ".json", ".jsonl").
	// Empty keeps every file.
	Extensions []string
}

// FileEntry is a matched regular file
type FileEntry struct {
	Path    string    // absolute path
	Size    int64     // size in bytes at scan time
	ModTime time.Time // modification time at scan time
}

// ScanResult contains the results of a directory scan
type ScanResult struct {
	// Files contains every matched file, sorted by path
	Files []FileEntry
	// Errors contains any errors encountered during scanning
	Errors []error
}

// TotalSize returns the combined size of the matched files
func (r *ScanResult) TotalSize() int64 {
	var total int64
	for _, f := range r.Files {
		total += f.Size
	}
	return total
}

// ScanDirectory lists the regular files directly inside dir that match the
// provided options. Subdirectories and hidden files are skipped.
func ScanDirectory(dir string, opts ScanOptions) (*ScanResult, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to access directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("path is not a directory: %s", dir)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	result := &ScanResult{
		Files:  make([]FileEntry, 0),
		Errors: make([]error, 0),
	}
	extMap := normalizeExtensions(opts.Extensions)

	for _, d := range entries {
		if d.IsDir() {
			continue
		}
		// Sockets, pipes and devices are not run files
		if !d.Type().IsRegular() && d.Type()&os.ModeSymlink == 0 {
			continue
		}

		filename := d.Name()
		if strings.HasPrefix(filename, ".") {
			continue
		}
		if len(extMap) > 0 && !extMap[strings.ToLower(filepath.Ext(filename))] {
			continue
		}

		path := filepath.Join(dir, filename)

		// Stat follows symlinks so size and mtime describe the target
		fi, err := os.Stat(path)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("failed to stat %s: %w", path, err))
			continue
		}
		if !fi.Mode().IsRegular() {
			continue
		}

		absPath, err := filepath.Abs(path)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("failed to resolve path %s: %w", path, err))
			continue
		}

		result.Files = append(result.Files, FileEntry{
			Path:    absPath,
			Size:    fi.Size(),
			ModTime: fi.ModTime(),
		})
	}

	sort.Slice(result.Files, func(i, j int) bool {
		return result.Files[i].Path < result.Files[j].Path
	})

	return result, nil
}

// normalizeExtensions lowercases extensions and ensures a leading dot
func normalizeExtensions(exts []string) map[string]bool {
	extMap := make(map[string]bool, len(exts))
	for _, ext := range exts {
		ext = strings.TrimSpace(ext)
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		extMap[strings.ToLower(ext)] = true
	}
	return extMap
}
