// Package mirror provides offsite copies of the archive tree. A mirror is
// redundancy only: the local archive stays authoritative and restore never
// requires one.
package mirror

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"mediakeep/internal/media"
)

// FilesystemMirror stores mirrored objects under a local root, typically a
// mounted external or network drive. Keys are archive-relative paths.
type FilesystemMirror struct {
	root string
}

// NewFilesystemMirror creates a mirror rooted at the given directory.
func NewFilesystemMirror(root string) (*FilesystemMirror, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("creating mirror root: %w", err)
	}
	return &FilesystemMirror{root: root}, nil
}

// Put stores an object atomically: temp file in the target directory, then
// rename.
func (m *FilesystemMirror) Put(ctx context.Context, key string, r io.Reader, size int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	destPath := filepath.Join(m.root, filepath.FromSlash(key))
	dir := filepath.Dir(destPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating mirror directory: %w", err)
	}

	tmpFile, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	written, err := io.Copy(tmpFile, r)
	if err != nil {
		tmpFile.Close()
		return fmt.Errorf("writing mirror object: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if size >= 0 && written != size {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, written)
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("renaming temp file: %w", err)
	}
	success = true
	return nil
}

// Get retrieves the object at key and writes it to w.
func (m *FilesystemMirror) Get(ctx context.Context, key string, w io.Writer) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f, err := os.Open(filepath.Join(m.root, filepath.FromSlash(key)))
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("mirror object not found: %s", key)
		}
		return fmt.Errorf("opening mirror object: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("reading mirror object: %w", err)
	}
	return nil
}

// Exists reports whether an object is present at key.
func (m *FilesystemMirror) Exists(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	info, err := os.Stat(filepath.Join(m.root, filepath.FromSlash(key)))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking mirror object: %w", err)
	}
	return info.Mode().IsRegular(), nil
}

var _ media.Mirror = (*FilesystemMirror)(nil)
