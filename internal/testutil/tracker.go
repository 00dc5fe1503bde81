package testutil

import (
	"fmt"
	"path/filepath"
	"strings"

	"mediakeep/internal/media"
)

// MemoryTracker is an in-memory media.Tracker with the same provisional and
// confirmed states as the real store, minus the flushing.
type MemoryTracker struct {
	confirmed   map[string]media.ArchiveEntry
	provisional map[string]media.ArchiveEntry
}

// NewMemoryTracker creates an empty tracker.
func NewMemoryTracker() *MemoryTracker {
	return &MemoryTracker{
		confirmed:   make(map[string]media.ArchiveEntry),
		provisional: make(map[string]media.ArchiveEntry),
	}
}

// AddConfirmed seeds a confirmed entry.
func (t *MemoryTracker) AddConfirmed(src string, e media.ArchiveEntry) {
	t.confirmed[src] = e
}

// Provisional returns the pending entries, for asserting on crash windows.
func (t *MemoryTracker) Provisional() map[string]media.ArchiveEntry {
	out := make(map[string]media.ArchiveEntry, len(t.provisional))
	for k, v := range t.provisional {
		out[k] = v
	}
	return out
}

func (t *MemoryTracker) IsArchived(src string) bool {
	_, ok := t.confirmed[src]
	return ok
}

func (t *MemoryTracker) BeginArchive(src string, entry media.ArchiveEntry) error {
	if _, ok := t.confirmed[src]; ok {
		return fmt.Errorf("original %s is already archived", src)
	}
	t.provisional[src] = entry
	return nil
}

func (t *MemoryTracker) ConfirmArchive(src string) error {
	entry, ok := t.provisional[src]
	if !ok {
		if _, done := t.confirmed[src]; done {
			return nil
		}
		return fmt.Errorf("no archive entry for %s", src)
	}
	delete(t.provisional, src)
	t.confirmed[src] = entry
	return nil
}

func (t *MemoryTracker) AbortArchive(src string) error {
	if _, ok := t.confirmed[src]; ok {
		return fmt.Errorf("refusing to abort confirmed entry for %s", src)
	}
	delete(t.provisional, src)
	return nil
}

func (t *MemoryTracker) FindByName(name string) (string, media.ArchiveEntry, bool) {
	for src, entry := range t.confirmed {
		if strings.EqualFold(filepath.Base(src), name) {
			return src, entry, true
		}
	}
	return "", media.ArchiveEntry{}, false
}

func (t *MemoryTracker) Remove(src string) error {
	if _, ok := t.confirmed[src]; !ok {
		return fmt.Errorf("no archive entry for %s", src)
	}
	delete(t.confirmed, src)
	return nil
}

func (t *MemoryTracker) Entries() map[string]media.ArchiveEntry {
	out := make(map[string]media.ArchiveEntry, len(t.confirmed))
	for k, v := range t.confirmed {
		out[k] = v
	}
	return out
}

var _ media.Tracker = (*MemoryTracker)(nil)
