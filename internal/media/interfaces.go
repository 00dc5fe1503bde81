package media

import (
	"context"
	"errors"
	"io"
	"io/fs"
)

// FilesystemManager abstracts filesystem access so the service can be tested
// without touching a real tree where that matters.
type FilesystemManager interface {
	// Walk enumerates all regular files under root, classified by extension
	// (unsupported extensions included, as ClassUnsupported) and filtered
	// through the exclusion list. The walk checks ctx between files.
	Walk(ctx context.Context, root string) ([]MediaFile, error)

	// Stat returns fresh file info for a path.
	Stat(path string) (fs.FileInfo, error)

	// Exists reports whether a regular file exists at path.
	Exists(path string) bool

	// Open opens a file for reading.
	Open(path string) (io.ReadCloser, error)

	// MkdirAll creates a directory tree. Idempotent.
	MkdirAll(dir string) error

	// Move relocates a file, creating parent directories as needed. It
	// refuses to overwrite: if dst already exists, ErrTargetExists is
	// returned and src is untouched.
	Move(src, dst string) error
}

// ErrNoDate means every metadata source was tried and none yielded a capture
// date. It is a soft condition: callers decide whether an mtime fallback is
// acceptable for their purpose.
var ErrNoDate = errors.New("no capture date found")

// DateResolver resolves a best-effort capture date for a file. A file with
// no usable embedded date yields ErrNoDate; resolvers never invent dates and
// never fall back to mtime themselves.
type DateResolver interface {
	Resolve(ctx context.Context, path string, class Class) (CaptureDate, error)
}

// Converter turns a source media file into a JPEG at dst. It never returns
// an error for per-file problems: all decode/encode/IO failures are reported
// inside the ConversionResult.
type Converter interface {
	Convert(ctx context.Context, src, dst string) ConversionResult
}

// Tracker is the durable reconciliation record. It is the single source of
// truth for "has this original already been archived"; filesystem presence
// alone can never answer that.
type Tracker interface {
	// IsArchived reports whether the original has a committed entry.
	IsArchived(src string) bool

	// BeginArchive writes a provisional entry and flushes it to disk before
	// the caller performs the filesystem move.
	BeginArchive(src string, entry ArchiveEntry) error

	// ConfirmArchive upgrades a provisional entry to confirmed and flushes.
	ConfirmArchive(src string) error

	// AbortArchive removes a provisional entry after a failed move.
	AbortArchive(src string) error

	// FindByName locates an entry whose original basename matches name
	// case-insensitively. Returns the original path and its entry.
	FindByName(name string) (string, ArchiveEntry, bool)

	// Remove deletes a committed entry (used by restore) and flushes.
	Remove(src string) error

	// Entries returns a copy of all committed entries keyed by original path.
	Entries() map[string]ArchiveEntry
}

// HashCache memoizes content hashes keyed by (path, size, mtime) so the
// exact duplicate tier does not rehash unchanged files across runs.
type HashCache interface {
	Lookup(path string, size int64, mtimeNano int64) (string, bool, error)
	Store(path string, size int64, mtimeNano int64, sum string) error
}

// Mirror is an optional offsite copy of the archive tree, keyed by
// archive-relative path. The local archive stays authoritative; the mirror
// is redundancy only.
type Mirror interface {
	Put(ctx context.Context, key string, r io.Reader, size int64) error
	Get(ctx context.Context, key string, w io.Writer) error
	Exists(ctx context.Context, key string) (bool, error)
}

// Encryptor wraps mirror payloads. Encrypt returns a WriteCloser that must
// be closed to flush the final chunk.
type Encryptor interface {
	Encrypt(dst io.Writer) (io.WriteCloser, error)
	Decrypt(src io.Reader) (io.Reader, error)
}
