package fs

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"mediakeep/internal/media"
)

// OSFilesystemManager is the real filesystem implementation of
// media.FilesystemManager. It performs actual filesystem operations using
// the os package.
type OSFilesystemManager struct {
	excluded []string
}

// NewOSFilesystemManager creates a filesystem manager that hides files whose
// path contains any of the excluded components (e.g. ".dtrash").
func NewOSFilesystemManager(excluded []string) *OSFilesystemManager {
	return &OSFilesystemManager{excluded: excluded}
}

// Walk enumerates all regular files under root, classified by extension and
// filtered through the exclusion list. Cancellation is checked between
// files, never mid-file.
func (m *OSFilesystemManager) Walk(ctx context.Context, root string) ([]media.MediaFile, error) {
	var files []media.MediaFile
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			if media.Excluded(p, m.excluded) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if media.Excluded(p, m.excluded) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return fmt.Errorf("stat %s: %w", p, err)
		}
		ext := media.NormalizeExt(p)
		files = append(files, media.MediaFile{
			Path:    p,
			Ext:     ext,
			Size:    info.Size(),
			ModTime: info.ModTime(),
			Class:   media.Classify(ext),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking directory: %w", err)
	}
	return files, nil
}

// Stat returns fresh file info for a path.
func (m *OSFilesystemManager) Stat(path string) (fs.FileInfo, error) {
	return os.Stat(path)
}

// Exists reports whether a regular file exists at path.
func (m *OSFilesystemManager) Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// Open opens a file for reading.
func (m *OSFilesystemManager) Open(path string) (io.ReadCloser, error) {
	return os.Open(path)
}

// MkdirAll creates a directory tree. Idempotent.
func (m *OSFilesystemManager) MkdirAll(dir string) error {
	return os.MkdirAll(dir, 0755)
}

// Move relocates src to dst, creating dst's parent directories. It refuses
// to overwrite: when dst already exists, media.ErrTargetExists is returned
// and src is left untouched. Cross-device renames fall back to a verified
// copy followed by removal of the source.
func (m *OSFilesystemManager) Move(src, dst string) error {
	if _, err := os.Lstat(dst); err == nil {
		return fmt.Errorf("%w: %s", media.ErrTargetExists, dst)
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("checking target: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("creating target directory: %w", err)
	}

	err := os.Rename(src, dst)
	if err == nil {
		return nil
	}
	if !isCrossDevice(err) {
		return fmt.Errorf("renaming %s: %w", src, err)
	}

	if err := copyFileVerified(src, dst); err != nil {
		return fmt.Errorf("cross-device move of %s: %w", src, err)
	}
	if err := os.Remove(src); err != nil {
		return fmt.Errorf("removing source after cross-device move: %w", err)
	}
	return nil
}

var _ media.FilesystemManager = (*OSFilesystemManager)(nil)
