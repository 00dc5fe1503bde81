package media

import (
	"path/filepath"
	"strings"
)

// Extension allow-lists. Classification is extension-based only; content is
// never sniffed during a scan.
var (
	imageExts = map[string]bool{
		".jpg": true, ".jpeg": true, ".png": true, ".tiff": true, ".gif": true,
	}
	videoExts = map[string]bool{
		".mov": true, ".mp4": true, ".mts": true,
	}
)

// NormalizeExt returns the lowercase extension of path, including the dot.
func NormalizeExt(path string) string {
	return strings.ToLower(filepath.Ext(path))
}

// Classify maps a normalized extension to its pipeline class.
func Classify(ext string) Class {
	switch {
	case ext == ".jpg" || ext == ".jpeg":
		return ClassJPEG
	case ext == ".heic":
		return ClassHEIC
	case imageExts[ext]:
		return ClassImage
	case videoExts[ext]:
		return ClassVideo
	default:
		return ClassUnsupported
	}
}

// Supported reports whether the extension is on the allow-list.
func Supported(ext string) bool {
	return Classify(ext) != ClassUnsupported
}

// Excluded reports whether any path component matches one of the excluded
// component names (e.g. a trash folder). Excluded files are invisible to
// every enumeration regardless of extension.
func Excluded(path string, components []string) bool {
	if len(components) == 0 {
		return false
	}
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		for _, excluded := range components {
			if part == excluded {
				return true
			}
		}
	}
	return false
}

// DestPath derives the canonical destination for a source file:
// destRoot joined with the source's path relative to srcRoot, extension
// replaced by .jpg. Every component that needs this path must call this
// function; an independent derivation is a correctness bug.
func DestPath(srcRoot, destRoot, src string) (string, error) {
	rel, err := filepath.Rel(srcRoot, src)
	if err != nil {
		return "", err
	}
	ext := filepath.Ext(rel)
	rel = rel[:len(rel)-len(ext)] + ".jpg"
	return filepath.Join(destRoot, rel), nil
}

// ArchivePath derives the archive location for a source file: the archive
// tree mirrors the source's relative path under archiveRoot, extension kept.
func ArchivePath(srcRoot, archiveRoot, src string) (string, error) {
	rel, err := filepath.Rel(srcRoot, src)
	if err != nil {
		return "", err
	}
	return filepath.Join(archiveRoot, rel), nil
}

// IsDateOrganized reports whether the file already sits under a YYYY/MM
// folder pair relative to root. The check is purely structural: four digits
// then two digits. It does not validate the digits against the file's
// actual capture date.
func IsDateOrganized(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	if len(parts) < 3 {
		// Need at least YYYY/MM/name.
		return false
	}
	return isDigits(parts[0], 4) && isDigits(parts[1], 2)
}

// topYearFolder returns the top path segment under root when it looks like
// a four-digit year.
func topYearFolder(root, path string) (string, bool) {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return "", false
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	if len(parts) >= 2 && isDigits(parts[0], 4) {
		return parts[0], true
	}
	return "", false
}

// topYearMonth returns the first two segments of a path already known to be
// date-organized.
func topYearMonth(root, path string) (year, month string) {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return "", ""
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	if len(parts) < 3 {
		return "", ""
	}
	return parts[0], parts[1]
}

func isDigits(s string, n int) bool {
	if len(s) != n {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
