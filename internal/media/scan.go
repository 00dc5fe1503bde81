package media

import (
	"context"
	"sort"
	"strconv"
)

// ScanSummary aggregates a conversion-readiness scan. It is a lightweight
// pass: classification only, no metadata reads.
type ScanSummary struct {
	Total           int
	NeedsConversion []MediaFile // non-JPEG still images
	AlreadyJPEG     []MediaFile
	Videos          []MediaFile
	HEIC            []MediaFile
	TotalSize       int64
	ConversionSize  int64
	HEICSize        int64
	ByExtension     map[string]int
}

// ScanLibrary classifies every supported file under the source root and
// aggregates counts and sizes.
func (s *Service) ScanLibrary(ctx context.Context) (*ScanSummary, error) {
	files, err := s.supportedSource(ctx)
	if err != nil {
		return nil, err
	}

	summary := &ScanSummary{ByExtension: make(map[string]int)}
	for _, f := range files {
		summary.Total++
		summary.TotalSize += f.Size
		summary.ByExtension[f.Ext]++

		switch f.Class {
		case ClassHEIC:
			summary.HEIC = append(summary.HEIC, f)
			summary.HEICSize += f.Size
		case ClassJPEG:
			summary.AlreadyJPEG = append(summary.AlreadyJPEG, f)
		case ClassImage:
			summary.NeedsConversion = append(summary.NeedsConversion, f)
			summary.ConversionSize += f.Size
		case ClassVideo:
			summary.Videos = append(summary.Videos, f)
		}
	}

	s.logger.Info("library scanned",
		"total", summary.Total,
		"needs_conversion", len(summary.NeedsConversion),
		"already_jpeg", len(summary.AlreadyJPEG),
		"videos", len(summary.Videos),
		"heic", len(summary.HEIC))
	return summary, nil
}

// YearReport counts files per year and extension. The year comes from the
// top-level folder when it looks like YYYY; otherwise from the EXIF year;
// files with neither are grouped under "Unknown" and listed individually.
type YearReport struct {
	Counts       map[string]map[string]int // year -> ext -> count
	UnknownFiles []string
}

// Years returns the report's years in sorted order.
func (r *YearReport) Years() []string {
	years := make([]string, 0, len(r.Counts))
	for y := range r.Counts {
		years = append(years, y)
	}
	sort.Strings(years)
	return years
}

// ReportByYear builds a YearReport over every file under the source root.
func (s *Service) ReportByYear(ctx context.Context) (*YearReport, error) {
	files, err := s.walkSource(ctx)
	if err != nil {
		return nil, err
	}

	report := &YearReport{Counts: make(map[string]map[string]int)}
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		year := s.yearForFile(ctx, f)
		if year == "" {
			year = "Unknown"
			report.UnknownFiles = append(report.UnknownFiles, f.Path)
		}
		if report.Counts[year] == nil {
			report.Counts[year] = make(map[string]int)
		}
		report.Counts[year][f.Ext]++
	}
	return report, nil
}

// yearForFile prefers the tree structure over metadata and never falls back
// to mtime: an mtime-derived year would silently misfile the report.
func (s *Service) yearForFile(ctx context.Context, f MediaFile) string {
	if year, ok := topYearFolder(s.roots.Source, f.Path); ok {
		return year
	}
	if f.Class == ClassUnsupported {
		return ""
	}
	date, err := s.dates.Resolve(ctx, f.Path, f.Class)
	if err != nil {
		return ""
	}
	return strconv.Itoa(date.Time.Year())
}

// OrganizationReport describes how much of the tree follows the YYYY/MM
// layout.
type OrganizationReport struct {
	TotalFiles       int
	OrganizedFiles   int
	UnorganizedFiles []string
	YearFolders      []string
	FolderCounts     map[string]int // "YYYY/MM" -> file count
}

// Percentage returns how much of the tree is date-organized, 0-100.
func (r *OrganizationReport) Percentage() float64 {
	if r.TotalFiles == 0 {
		return 0
	}
	return float64(r.OrganizedFiles) / float64(r.TotalFiles) * 100
}

// AnalyzeOrganization inspects the source layout without moving anything.
func (s *Service) AnalyzeOrganization(ctx context.Context) (*OrganizationReport, error) {
	files, err := s.supportedSource(ctx)
	if err != nil {
		return nil, err
	}

	report := &OrganizationReport{FolderCounts: make(map[string]int)}
	seenYears := make(map[string]bool)
	for _, f := range files {
		report.TotalFiles++
		if !IsDateOrganized(s.roots.Source, f.Path) {
			report.UnorganizedFiles = append(report.UnorganizedFiles, f.Path)
			continue
		}
		report.OrganizedFiles++
		year, month := topYearMonth(s.roots.Source, f.Path)
		report.FolderCounts[year+"/"+month]++
		if !seenYears[year] {
			seenYears[year] = true
			report.YearFolders = append(report.YearFolders, year)
		}
	}
	sort.Strings(report.YearFolders)
	return report, nil
}

// NonMediaFiles groups files whose extension is outside the known media set
// (a wider set than the conversion allow-list: raw formats and sidecars are
// recognized, not flagged). These are candidates for manual review, never
// deleted by this tool.
func (s *Service) NonMediaFiles(ctx context.Context) (map[string][]string, error) {
	files, err := s.walkSource(ctx)
	if err != nil {
		return nil, err
	}

	knownMedia := map[string]bool{
		".jpg": true, ".jpeg": true, ".png": true, ".heic": true, ".tiff": true,
		".gif": true, ".raw": true, ".arw": true, ".cr2": true, ".nef": true,
		".mov": true, ".mp4": true, ".mts": true, ".avi": true, ".wmv": true,
		".m4v": true, ".3gp": true,
		".thm": true, ".xmp": true, // sidecars worth keeping
	}

	groups := make(map[string][]string)
	for _, f := range files {
		if knownMedia[f.Ext] {
			continue
		}
		ext := f.Ext
		if ext == "" {
			ext = "(none)"
		}
		groups[ext] = append(groups[ext], f.Path)
	}
	return groups, nil
}
