// Package tracking persists the reconciliation record: which originals have
// been archived, where they went, and when. The JSON file it manages is the
// single membership authority for "already archived".
package tracking

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"mediakeep/internal/media"
)

// SchemaVersion is the current on-disk schema. Files carrying any other
// version fail to load.
const SchemaVersion = 2

const (
	stateConfirmed   = "confirmed"
	stateProvisional = "provisional"
)

type fileRecord struct {
	JpegPath     string `json:"jpeg_path"`
	ArchivePath  string `json:"archive_path"`
	ArchivedDate string `json:"archived_date"`
	OriginalSize int64  `json:"original_size"`
	JpegSize     int64  `json:"jpeg_size"`
	State        string `json:"state,omitempty"`
}

type historyRecord struct {
	HeicPath     string `json:"heic_path"`
	ArchivePath  string `json:"archive_path"`
	ArchivedDate string `json:"archived_date"`
}

type storeFile struct {
	SchemaVersion  int                   `json:"schema_version"`
	ConvertedFiles map[string]fileRecord `json:"converted_files"`
	ArchiveHistory []historyRecord       `json:"archive_history"`
}

// Desync is a tracking entry that disagrees with the filesystem, found at
// load time. Either a previous run recorded its intent to move a file and
// never confirmed, or a confirmed entry's archive file has since gone
// missing. Both need a human decision.
type Desync struct {
	Original string
	Entry    media.ArchiveEntry
	// Confirmed distinguishes a missing confirmed archive from an
	// interrupted provisional move.
	Confirmed bool
	// ArchiveExists reports whether the recorded archive target is on disk.
	ArchiveExists bool
}

// Store is a file-backed Tracker. Every mutation is flushed before it
// returns, so a crash at any point loses at most the in-flight operation.
type Store struct {
	path   string
	logger media.Logger

	mu      sync.Mutex
	data    storeFile
	desyncs []Desync
}

// Load reads the tracking file at path, creating an empty store when the
// file does not exist. Unknown or missing schema versions are a hard error;
// legacy files without a version tag but with the two known keys are
// migrated in memory and tagged on the next flush.
func Load(path string, logger media.Logger) (*Store, error) {
	s := &Store{
		path:   path,
		logger: logger,
		data: storeFile{
			SchemaVersion:  SchemaVersion,
			ConvertedFiles: map[string]fileRecord{},
		},
	}

	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading tracking file: %w", err)
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, fmt.Errorf("parsing tracking file %s: %w", path, err)
	}

	if _, ok := probe["schema_version"]; !ok {
		if !legacyShape(probe) {
			return nil, fmt.Errorf("tracking file %s has no schema_version and is not a recognized legacy layout; refusing to guess", path)
		}
		logger.Warn("migrating legacy tracking file", "path", path)
	}

	var parsed storeFile
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("parsing tracking file %s: %w", path, err)
	}
	if _, ok := probe["schema_version"]; ok && parsed.SchemaVersion != SchemaVersion {
		return nil, fmt.Errorf("tracking file %s has schema version %d, this build reads version %d; refusing to load", path, parsed.SchemaVersion, SchemaVersion)
	}

	parsed.SchemaVersion = SchemaVersion
	if parsed.ConvertedFiles == nil {
		parsed.ConvertedFiles = map[string]fileRecord{}
	}
	// Legacy entries predate the transactional states and were only ever
	// written after a completed move.
	for key, rec := range parsed.ConvertedFiles {
		if rec.State == "" {
			rec.State = stateConfirmed
			parsed.ConvertedFiles[key] = rec
		}
	}
	s.data = parsed
	s.collectDesyncs()
	return s, nil
}

func legacyShape(probe map[string]json.RawMessage) bool {
	for key := range probe {
		if key != "converted_files" && key != "archive_history" {
			return false
		}
	}
	return true
}

func (s *Store) collectDesyncs() {
	for original, rec := range s.data.ConvertedFiles {
		_, statErr := os.Stat(rec.ArchivePath)
		archiveExists := statErr == nil

		switch rec.State {
		case stateProvisional:
			s.desyncs = append(s.desyncs, Desync{
				Original:      original,
				Entry:         recordToEntry(rec),
				ArchiveExists: archiveExists,
			})
			s.logger.Warn("provisional archive entry found, previous run did not complete",
				"original", original, "archive_path", rec.ArchivePath, "archive_exists", archiveExists)
		case stateConfirmed:
			if archiveExists {
				continue
			}
			s.desyncs = append(s.desyncs, Desync{
				Original:  original,
				Entry:     recordToEntry(rec),
				Confirmed: true,
			})
			s.logger.Warn("archived original missing from archive",
				"original", original, "archive_path", rec.ArchivePath)
		}
	}
}

// Desyncs returns the provisional entries observed at load time.
func (s *Store) Desyncs() []Desync {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Desync, len(s.desyncs))
	copy(out, s.desyncs)
	return out
}

// IsArchived reports whether the original has a confirmed entry.
func (s *Store) IsArchived(src string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.data.ConvertedFiles[src]
	return ok && rec.State == stateConfirmed
}

// BeginArchive records a provisional entry and flushes it before the caller
// touches the filesystem.
func (s *Store) BeginArchive(src string, entry media.ArchiveEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.data.ConvertedFiles[src]; ok && rec.State == stateConfirmed {
		return fmt.Errorf("original %s is already archived", src)
	}
	rec := entryToRecord(entry)
	rec.State = stateProvisional
	s.data.ConvertedFiles[src] = rec
	return s.flushLocked()
}

// ConfirmArchive upgrades a provisional entry to confirmed, appends the
// audit record, and flushes.
func (s *Store) ConfirmArchive(src string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.data.ConvertedFiles[src]
	if !ok {
		return fmt.Errorf("no archive entry for %s", src)
	}
	if rec.State == stateConfirmed {
		return nil
	}
	rec.State = stateConfirmed
	s.data.ConvertedFiles[src] = rec
	s.data.ArchiveHistory = append(s.data.ArchiveHistory, historyRecord{
		HeicPath:     src,
		ArchivePath:  rec.ArchivePath,
		ArchivedDate: rec.ArchivedDate,
	})
	return s.flushLocked()
}

// AbortArchive drops a provisional entry after a failed move.
func (s *Store) AbortArchive(src string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.data.ConvertedFiles[src]
	if !ok {
		return nil
	}
	if rec.State == stateConfirmed {
		return fmt.Errorf("refusing to abort confirmed entry for %s", src)
	}
	delete(s.data.ConvertedFiles, src)
	return s.flushLocked()
}

// FindByName locates a confirmed entry whose original basename matches name
// case-insensitively.
func (s *Store) FindByName(name string) (string, media.ArchiveEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for original, rec := range s.data.ConvertedFiles {
		if rec.State != stateConfirmed {
			continue
		}
		if strings.EqualFold(filepath.Base(original), name) {
			return original, recordToEntry(rec), true
		}
	}
	return "", media.ArchiveEntry{}, false
}

// Remove deletes a confirmed entry and flushes. The audit history keeps its
// archive record.
func (s *Store) Remove(src string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data.ConvertedFiles[src]; !ok {
		return fmt.Errorf("no archive entry for %s", src)
	}
	delete(s.data.ConvertedFiles, src)
	return s.flushLocked()
}

// Entries returns a copy of all confirmed entries keyed by original path.
func (s *Store) Entries() map[string]media.ArchiveEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]media.ArchiveEntry, len(s.data.ConvertedFiles))
	for original, rec := range s.data.ConvertedFiles {
		if rec.State != stateConfirmed {
			continue
		}
		out[original] = recordToEntry(rec)
	}
	return out
}

// flushLocked writes the whole store atomically: temp file in the same
// directory, then rename over the target.
func (s *Store) flushLocked() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("creating tracking directory: %w", err)
	}
	encoded, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding tracking data: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".tracking-*.json")
	if err != nil {
		return fmt.Errorf("creating temp tracking file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(encoded); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing tracking data: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp tracking file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replacing tracking file: %w", err)
	}
	return nil
}

func entryToRecord(e media.ArchiveEntry) fileRecord {
	return fileRecord{
		JpegPath:     e.JpegPath,
		ArchivePath:  e.ArchivePath,
		ArchivedDate: e.ArchivedDate.Format(time.RFC3339),
		OriginalSize: e.OriginalSize,
		JpegSize:     e.JpegSize,
	}
}

func recordToEntry(rec fileRecord) media.ArchiveEntry {
	return media.ArchiveEntry{
		JpegPath:     rec.JpegPath,
		ArchivePath:  rec.ArchivePath,
		ArchivedDate: parseArchivedDate(rec.ArchivedDate),
		OriginalSize: rec.OriginalSize,
		JpegSize:     rec.JpegSize,
	}
}

// parseArchivedDate tolerates the legacy tool's local-time ISO format
// alongside RFC3339. An unparseable date degrades to the zero time; the
// entry itself stays intact.
func parseArchivedDate(raw string) time.Time {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05.999999", "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t
		}
	}
	return time.Time{}
}

var _ media.Tracker = (*Store)(nil)
