package testutil

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"mediakeep/internal/media"
)

// MockFile represents a file in the mock filesystem.
type MockFile struct {
	Content []byte
	ModTime time.Time
	IsDir   bool
}

// MockFilesystemManager is an in-memory media.FilesystemManager. Walks
// return paths in sorted order so tests are deterministic.
type MockFilesystemManager struct {
	Excluded []string
	files    map[string]*MockFile
	// Moves records every successful Move as "src -> dst".
	Moves []string
}

// NewMockFilesystemManager creates an empty mock filesystem.
func NewMockFilesystemManager() *MockFilesystemManager {
	return &MockFilesystemManager{files: make(map[string]*MockFile)}
}

// AddFile adds a file with the given content and a fixed mtime.
func (m *MockFilesystemManager) AddFile(path string, content []byte) {
	m.AddFileModTime(path, content, time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC))
}

// AddFileModTime adds a file with an explicit mtime.
func (m *MockFilesystemManager) AddFileModTime(path string, content []byte, modTime time.Time) {
	m.files[path] = &MockFile{Content: content, ModTime: modTime}
}

// AddDirectory registers a directory so Stat answers for tree roots.
func (m *MockFilesystemManager) AddDirectory(path string) {
	m.files[path] = &MockFile{IsDir: true, ModTime: time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)}
}

// Remove deletes a file if present.
func (m *MockFilesystemManager) Remove(path string) {
	delete(m.files, path)
}

// Walk enumerates files under root, excluded components filtered, classified
// by extension.
func (m *MockFilesystemManager) Walk(ctx context.Context, root string) ([]media.MediaFile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	prefix := strings.TrimSuffix(root, "/") + "/"
	var paths []string
	for p, f := range m.files {
		if f.IsDir {
			continue
		}
		if p == root || strings.HasPrefix(p, prefix) {
			if media.Excluded(p, m.Excluded) {
				continue
			}
			paths = append(paths, p)
		}
	}
	sort.Strings(paths)

	files := make([]media.MediaFile, 0, len(paths))
	for _, p := range paths {
		f := m.files[p]
		ext := media.NormalizeExt(p)
		files = append(files, media.MediaFile{
			Path:    p,
			Ext:     ext,
			Size:    int64(len(f.Content)),
			ModTime: f.ModTime,
			Class:   media.Classify(ext),
		})
	}
	return files, nil
}

// Stat returns file info for a path.
func (m *MockFilesystemManager) Stat(path string) (fs.FileInfo, error) {
	f, ok := m.files[path]
	if !ok {
		return nil, fs.ErrNotExist
	}
	return mockFileInfo{name: filepath.Base(path), size: int64(len(f.Content)), modTime: f.ModTime, dir: f.IsDir}, nil
}

// Exists reports whether a regular file is present.
func (m *MockFilesystemManager) Exists(path string) bool {
	f, ok := m.files[path]
	return ok && !f.IsDir
}

// Open opens a file for reading.
func (m *MockFilesystemManager) Open(path string) (io.ReadCloser, error) {
	f, ok := m.files[path]
	if !ok {
		return nil, fs.ErrNotExist
	}
	return io.NopCloser(bytes.NewReader(f.Content)), nil
}

// MkdirAll is a no-op: the mock has no directories.
func (m *MockFilesystemManager) MkdirAll(string) error { return nil }

// Move relocates a file, refusing to overwrite.
func (m *MockFilesystemManager) Move(src, dst string) error {
	f, ok := m.files[src]
	if !ok {
		return fmt.Errorf("move source missing: %s", src)
	}
	if _, exists := m.files[dst]; exists {
		return fmt.Errorf("%w: %s", media.ErrTargetExists, dst)
	}
	m.files[dst] = f
	delete(m.files, src)
	m.Moves = append(m.Moves, src+" -> "+dst)
	return nil
}

var _ media.FilesystemManager = (*MockFilesystemManager)(nil)

type mockFileInfo struct {
	name    string
	size    int64
	modTime time.Time
	dir     bool
}

func (i mockFileInfo) Name() string       { return i.name }
func (i mockFileInfo) Size() int64        { return i.size }
func (i mockFileInfo) Mode() fs.FileMode  { return 0644 }
func (i mockFileInfo) ModTime() time.Time { return i.modTime }
func (i mockFileInfo) IsDir() bool        { return i.dir }
func (i mockFileInfo) Sys() any           { return nil }
