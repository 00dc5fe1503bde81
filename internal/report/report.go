// Package report writes timestamped plain-text run reports. Reports are for
// humans: they are regenerated per run and never parsed back.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"

	"mediakeep/internal/media"
)

const stampLayout = "20060102_150405"

// Writer renders run results into the reports directory.
type Writer struct {
	dir   string
	clock media.Clock
}

// NewWriter creates a report writer for dir.
func NewWriter(dir string, clock media.Clock) *Writer {
	return &Writer{dir: dir, clock: clock}
}

func (w *Writer) write(kind string, body string) (string, error) {
	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return "", fmt.Errorf("creating reports directory: %w", err)
	}
	name := fmt.Sprintf("%s_%s.txt", kind, w.clock.Now().Format(stampLayout))
	path := filepath.Join(w.dir, name)
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		return "", fmt.Errorf("writing report: %w", err)
	}
	return path, nil
}

func header(b *strings.Builder, title string, generated string) {
	b.WriteString(title + "\n")
	b.WriteString(strings.Repeat("=", len(title)) + "\n")
	b.WriteString("Generated: " + generated + "\n\n")
}

// ScanSummary writes the library scan report.
func (w *Writer) ScanSummary(s *media.ScanSummary) (string, error) {
	var b strings.Builder
	header(&b, "Media Library Scan", w.clock.Now().Format("2006-01-02 15:04:05"))

	fmt.Fprintf(&b, "Total media files:    %d (%s)\n", s.Total, humanize.Bytes(uint64(s.TotalSize)))
	fmt.Fprintf(&b, "Already JPEG:         %d\n", len(s.AlreadyJPEG))
	fmt.Fprintf(&b, "HEIC originals:       %d (%s)\n", len(s.HEIC), humanize.Bytes(uint64(s.HEICSize)))
	fmt.Fprintf(&b, "Needing conversion:   %d (%s)\n", len(s.NeedsConversion), humanize.Bytes(uint64(s.ConversionSize)))
	fmt.Fprintf(&b, "Videos:               %d\n\n", len(s.Videos))

	b.WriteString("By extension:\n")
	exts := make([]string, 0, len(s.ByExtension))
	for ext := range s.ByExtension {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	for _, ext := range exts {
		fmt.Fprintf(&b, "  %-8s %d\n", ext, s.ByExtension[ext])
	}
	return w.write("scan_report", b.String())
}

// ConversionLog writes the per-file outcome of a conversion run, including
// every failure with its reason.
func (w *Writer) ConversionLog(o *media.ConvertOutcome) (string, error) {
	var b strings.Builder
	header(&b, "Conversion Run", w.clock.Now().Format("2006-01-02 15:04:05"))

	fmt.Fprintf(&b, "Converted: %d (metadata preserved in %d)\n", len(o.Converted), o.Preserved())
	fmt.Fprintf(&b, "Failed:    %d\n\n", len(o.Failed))

	for _, r := range o.Converted {
		marker := " "
		if !r.ExifPreserved {
			marker = "!"
		}
		fmt.Fprintf(&b, "OK %s %s -> %s (%s)\n", marker, r.Source, r.Dest, humanize.Bytes(uint64(r.DestSize)))
	}
	if len(o.Failed) > 0 {
		b.WriteString("\nFailures:\n")
		for _, r := range o.Failed {
			fmt.Fprintf(&b, "FAIL %s: %s\n", r.Source, r.Reason)
		}
	}
	return w.write("conversion_log", b.String())
}

// ReconcileReport writes the HEIC/JPEG pairing state.
func (w *Writer) ReconcileReport(s *media.ReconcileSummary) (string, error) {
	var b strings.Builder
	header(&b, "HEIC/JPEG Reconciliation", w.clock.Now().Format("2006-01-02 15:04:05"))

	fmt.Fprintf(&b, "HEIC originals:      %d\n", s.TotalHEIC)
	fmt.Fprintf(&b, "Converted pairs:     %d\n", len(s.Pairs))
	fmt.Fprintf(&b, "Already archived:    %d\n", s.AlreadyArchived)
	fmt.Fprintf(&b, "Ready for archive:   %d\n", s.ReadyForArchive)
	fmt.Fprintf(&b, "Unconverted:         %d\n", len(s.Unconverted))
	fmt.Fprintf(&b, "Orphaned JPEGs:      %d\n\n", len(s.OrphanedJPEG))

	var saved int64
	for _, p := range s.Pairs {
		saved += p.SourceSize - p.DestSize
	}
	if len(s.Pairs) > 0 {
		fmt.Fprintf(&b, "Space held by archivable originals: %s\n\n", humanize.Bytes(uint64(max64(saved, 0))))
	}

	if len(s.Unconverted) > 0 {
		b.WriteString("Unconverted originals:\n")
		for _, f := range s.Unconverted {
			fmt.Fprintf(&b, "  %s\n", f.Path)
		}
		b.WriteString("\n")
	}
	if len(s.OrphanedJPEG) > 0 {
		b.WriteString("Destination JPEGs with no matching original:\n")
		for _, p := range s.OrphanedJPEG {
			fmt.Fprintf(&b, "  %s\n", p)
		}
	}
	return w.write("reconcile_report", b.String())
}

// ArchiveReport writes what an archive run moved (or would move).
func (w *Writer) ArchiveReport(o *media.ArchiveOutcome, dryRun bool) (string, error) {
	var b strings.Builder
	title := "Archive Run"
	if dryRun {
		title = "Archive Run (dry run)"
	}
	header(&b, title, w.clock.Now().Format("2006-01-02 15:04:05"))

	if dryRun {
		fmt.Fprintf(&b, "Would archive %d originals:\n", len(o.Planned))
		for _, f := range o.Planned {
			fmt.Fprintf(&b, "  %s -> %s\n", f.Source, f.ArchivePath)
		}
	} else {
		fmt.Fprintf(&b, "Archived %d originals:\n", len(o.Archived))
		for _, f := range o.Archived {
			mirrored := ""
			if f.Mirrored {
				mirrored = " [mirrored]"
			}
			fmt.Fprintf(&b, "  %s -> %s%s\n", f.Source, f.ArchivePath, mirrored)
		}
	}
	if len(o.Errors) > 0 {
		b.WriteString("\nErrors:\n")
		for _, e := range o.Errors {
			fmt.Fprintf(&b, "  %s: %s\n", e.Path, e.Err)
		}
	}
	return w.write("archive_report", b.String())
}

// YearReport writes file-type counts grouped by capture year, with the
// files whose year could not be determined listed separately.
func (w *Writer) YearReport(r *media.YearReport) (string, error) {
	var b strings.Builder
	header(&b, "File Types by Year", w.clock.Now().Format("2006-01-02 15:04:05"))

	for _, year := range r.Years() {
		fmt.Fprintf(&b, "%s:\n", year)
		counts := r.Counts[year]
		exts := make([]string, 0, len(counts))
		for ext := range counts {
			exts = append(exts, ext)
		}
		sort.Strings(exts)
		for _, ext := range exts {
			fmt.Fprintf(&b, "  %-8s %d\n", ext, counts[ext])
		}
	}
	if len(r.UnknownFiles) > 0 {
		b.WriteString("\nFiles with no determinable year:\n")
		for _, p := range r.UnknownFiles {
			fmt.Fprintf(&b, "  %s\n", p)
		}
	}
	return w.write("year_report", b.String())
}

// OrganizeReport writes an organization run's moves, collisions, and the
// skipped-no-date list.
func (w *Writer) OrganizeReport(o *media.OrganizeOutcome) (string, error) {
	var b strings.Builder
	header(&b, "Organize Run", w.clock.Now().Format("2006-01-02 15:04:05"))

	fmt.Fprintf(&b, "Moved:      %d\n", len(o.Moved))
	fmt.Fprintf(&b, "Skipped:    %d (no capture date)\n", len(o.SkippedNoDate))
	fmt.Fprintf(&b, "Collisions: %d\n", len(o.Collisions))
	fmt.Fprintf(&b, "Errors:     %d\n\n", len(o.Errors))

	for _, m := range o.Moved {
		fmt.Fprintf(&b, "MOVE %s -> %s (%s)\n", m.From, m.To, m.Date.Source)
	}
	if len(o.SkippedNoDate) > 0 {
		b.WriteString("\nSkipped, no capture date:\n")
		for _, p := range o.SkippedNoDate {
			fmt.Fprintf(&b, "  %s\n", p)
		}
	}
	if len(o.Collisions) > 0 {
		b.WriteString("\nTarget collisions (left in place):\n")
		for _, c := range o.Collisions {
			fmt.Fprintf(&b, "  %s blocked by %s\n", c.Source, c.Target)
		}
	}
	if len(o.Errors) > 0 {
		b.WriteString("\nErrors:\n")
		for _, e := range o.Errors {
			fmt.Fprintf(&b, "  %s: %s\n", e.Path, e.Err)
		}
	}
	return w.write("organize_report", b.String())
}

// DuplicateReport writes the confirmed duplicate groups.
func (w *Writer) DuplicateReport(r *media.DuplicateReport) (string, error) {
	var b strings.Builder
	header(&b, "Duplicate Scan", w.clock.Now().Format("2006-01-02 15:04:05"))

	fmt.Fprintf(&b, "Candidate groups (size+name): %d covering %d files\n", r.CandidateGroups, r.CandidateFiles)
	fmt.Fprintf(&b, "Confirmed groups (content):   %d\n\n", len(r.Groups))

	for _, g := range r.Groups {
		fmt.Fprintf(&b, "Group %s (%s each):\n", shortHash(g.Hash), humanize.Bytes(uint64(g.Size)))
		for _, f := range g.Files {
			fmt.Fprintf(&b, "  %s\n", f)
		}
		b.WriteString("\n")
	}
	if len(r.HashErrors) > 0 {
		b.WriteString("Unreadable files:\n")
		for _, e := range r.HashErrors {
			fmt.Fprintf(&b, "  %s: %s\n", e.Path, e.Err)
		}
	}
	return w.write("duplicate_report", b.String())
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
