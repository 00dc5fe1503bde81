package media

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
)

// ReconcileSummary compares the source HEIC population against the converted
// destination tree. Pairing is existence-based: a source and its computed
// destination form a pair the moment the destination file exists.
type ReconcileSummary struct {
	TotalHEIC       int
	Pairs           []Pair
	Unconverted     []MediaFile
	OrphanedJPEG    []string
	AlreadyArchived int
	ReadyForArchive int
}

// Reconcile determines which HEIC originals have been converted, which
// remain, and which destination JPEGs are orphaned. "Already archived" comes
// from the tracker, never from filesystem presence: presence alone cannot
// distinguish "not yet processed" from "processed then deleted out of band".
func (s *Service) Reconcile(ctx context.Context) (*ReconcileSummary, error) {
	files, err := s.supportedSource(ctx)
	if err != nil {
		return nil, err
	}

	summary := &ReconcileSummary{}
	matched := make(map[string]bool)

	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		if f.Class != ClassHEIC {
			continue
		}
		summary.TotalHEIC++

		dest, err := DestPath(s.roots.Source, s.roots.Dest, f.Path)
		if err != nil {
			return nil, fmt.Errorf("deriving destination for %s: %w", f.Path, err)
		}

		if !s.fsmgr.Exists(dest) {
			summary.Unconverted = append(summary.Unconverted, f)
			continue
		}
		matched[dest] = true

		pair := Pair{
			Source:          f.Path,
			Dest:            dest,
			SourceSize:      f.Size,
			AlreadyArchived: s.tracker.IsArchived(f.Path),
		}
		if info, err := s.fsmgr.Stat(dest); err == nil {
			pair.DestSize = info.Size()
		}
		summary.Pairs = append(summary.Pairs, pair)
		if pair.AlreadyArchived {
			summary.AlreadyArchived++
		} else {
			summary.ReadyForArchive++
		}
	}

	// Destination-side sweep for orphans.
	destFiles, err := s.fsmgr.Walk(ctx, s.roots.Dest)
	if err != nil {
		s.logger.Warn("destination tree not walkable", "path", s.roots.Dest, "error", err)
	} else {
		for _, df := range destFiles {
			if df.Class != ClassJPEG || matched[df.Path] {
				continue
			}
			if s.hasAnyOriginal(df.Path) {
				continue
			}
			summary.OrphanedJPEG = append(summary.OrphanedJPEG, df.Path)
		}
	}

	s.logger.Info("reconciliation complete",
		"total_heic", summary.TotalHEIC,
		"pairs", len(summary.Pairs),
		"unconverted", len(summary.Unconverted),
		"orphaned", len(summary.OrphanedJPEG),
		"already_archived", summary.AlreadyArchived)
	return summary, nil
}

// hasAnyOriginal reports whether any supported original (any allow-listed
// extension) exists at the destination JPEG's mirrored source location, on
// disk or in the archive record. Destination JPEGs converted from non-HEIC
// sources are not orphans.
func (s *Service) hasAnyOriginal(dest string) bool {
	rel, err := filepath.Rel(s.roots.Dest, dest)
	if err != nil {
		return false
	}
	stem := rel[:len(rel)-len(filepath.Ext(rel))]
	for _, ext := range []string{".jpg", ".jpeg", ".png", ".tiff", ".gif", ".heic", ".mov", ".mp4", ".mts"} {
		candidate := filepath.Join(s.roots.Source, stem+ext)
		if s.fsmgr.Exists(candidate) || s.tracker.IsArchived(candidate) {
			return true
		}
		// Originals may carry upper-case extensions on disk.
		upper := filepath.Join(s.roots.Source, stem+strings.ToUpper(ext))
		if s.fsmgr.Exists(upper) || s.tracker.IsArchived(upper) {
			return true
		}
	}
	return false
}

// ArchiveOutcome accumulates one archive run.
type ArchiveOutcome struct {
	Archived []ArchivedFile
	Planned  []ArchivedFile // dry-run listing
	Errors   []FileError
}

type ArchivedFile struct {
	Source      string
	ArchivePath string
	JpegPath    string
	Mirrored    bool
}

// ArchiveConverted moves every converted, not-yet-archived HEIC original
// into the archive tree. Each move is bracketed by a provisional record
// flushed before the move and a confirmation flushed after, so a crash
// between the two is detectable on the next load instead of silently
// re-classifying the file. Re-running over an already-archived set performs
// zero moves.
func (s *Service) ArchiveConverted(ctx context.Context, dryRun bool) (*ArchiveOutcome, error) {
	summary, err := s.Reconcile(ctx)
	if err != nil {
		return nil, err
	}

	outcome := &ArchiveOutcome{}
	for _, pair := range summary.Pairs {
		if err := ctx.Err(); err != nil {
			return outcome, err
		}
		if pair.AlreadyArchived {
			continue
		}

		archivePath, err := ArchivePath(s.roots.Source, s.roots.Archive, pair.Source)
		if err != nil {
			outcome.Errors = append(outcome.Errors, FileError{Path: pair.Source, Err: err.Error()})
			continue
		}

		if dryRun {
			outcome.Planned = append(outcome.Planned, ArchivedFile{
				Source: pair.Source, ArchivePath: archivePath, JpegPath: pair.Dest,
			})
			continue
		}

		entry := ArchiveEntry{
			JpegPath:     pair.Dest,
			ArchivePath:  archivePath,
			ArchivedDate: s.clock.Now(),
			OriginalSize: pair.SourceSize,
			JpegSize:     pair.DestSize,
		}
		if err := s.tracker.BeginArchive(pair.Source, entry); err != nil {
			outcome.Errors = append(outcome.Errors, FileError{Path: pair.Source, Err: err.Error()})
			s.logger.Error("recording provisional archive entry failed", "path", pair.Source, "error", err)
			continue
		}

		if err := s.fsmgr.Move(pair.Source, archivePath); err != nil {
			if abortErr := s.tracker.AbortArchive(pair.Source); abortErr != nil {
				s.logger.Error("aborting provisional entry failed", "path", pair.Source, "error", abortErr)
			}
			outcome.Errors = append(outcome.Errors, FileError{Path: pair.Source, Err: err.Error()})
			s.logger.Error("archive move failed", "path", pair.Source, "error", err)
			continue
		}

		if err := s.tracker.ConfirmArchive(pair.Source); err != nil {
			// The move succeeded but the confirmation did not persist. The
			// provisional entry remains on disk and the next load will
			// surface it as a desync rather than re-archiving blindly.
			outcome.Errors = append(outcome.Errors, FileError{Path: pair.Source, Err: err.Error()})
			s.logger.Error("confirming archive entry failed", "path", pair.Source, "error", err)
			continue
		}

		archived := ArchivedFile{Source: pair.Source, ArchivePath: archivePath, JpegPath: pair.Dest}
		archived.Mirrored = s.mirrorArchived(ctx, archivePath)
		outcome.Archived = append(outcome.Archived, archived)
		s.logger.Info("archived", "from", pair.Source, "to", archivePath)
	}

	if !dryRun {
		s.logger.Info("archive run complete", "archived", len(outcome.Archived), "errors", len(outcome.Errors))
	}
	return outcome, nil
}

// mirrorArchived uploads an archived original to the offsite mirror when one
// is configured. Mirror failures are logged, never fatal: the local archive
// is the authoritative copy.
func (s *Service) mirrorArchived(ctx context.Context, archivePath string) bool {
	if s.mirror == nil {
		return false
	}
	key, err := filepath.Rel(s.roots.Archive, archivePath)
	if err != nil {
		s.logger.Warn("mirror key derivation failed", "path", archivePath, "error", err)
		return false
	}
	key = filepath.ToSlash(key)

	info, err := s.fsmgr.Stat(archivePath)
	if err != nil {
		s.logger.Warn("mirror stat failed", "path", archivePath, "error", err)
		return false
	}
	rc, err := s.fsmgr.Open(archivePath)
	if err != nil {
		s.logger.Warn("mirror open failed", "path", archivePath, "error", err)
		return false
	}
	defer rc.Close()

	if err := uploadToMirror(ctx, s.mirror, s.enc, key, rc, info.Size()); err != nil {
		s.logger.Warn("mirror upload failed", "key", key, "error", err)
		return false
	}
	s.logger.Debug("mirrored", "key", key)
	return true
}

// RestoreFromArchive reverses one archived entry, located by original
// basename (case-insensitive). The file moves back to its original location
// and the record is deleted. A missing archive file or unknown name fails
// loudly.
func (s *Service) RestoreFromArchive(ctx context.Context, name string) (string, error) {
	original, entry, ok := s.tracker.FindByName(name)
	if !ok {
		return "", fmt.Errorf("no archive record found for: %s", name)
	}

	if !s.fsmgr.Exists(entry.ArchivePath) {
		return "", fmt.Errorf("archive file not found: %s (record desync: entry exists but file is missing)", entry.ArchivePath)
	}
	if s.fsmgr.Exists(original) {
		return "", fmt.Errorf("original location already occupied: %s", original)
	}

	if err := s.fsmgr.Move(entry.ArchivePath, original); err != nil {
		return "", fmt.Errorf("restoring %s: %w", name, err)
	}
	if err := s.tracker.Remove(original); err != nil {
		return "", fmt.Errorf("removing archive record for %s: %w", original, err)
	}

	s.logger.Info("restored", "from", entry.ArchivePath, "to", original)
	return original, nil
}
