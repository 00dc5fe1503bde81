package media

import "time"

// Class categorizes a media file by what the pipeline has to do with it.
type Class int

const (
	// ClassUnsupported marks extensions outside the allow-list.
	ClassUnsupported Class = iota
	// ClassJPEG marks files already in the target format.
	ClassJPEG
	// ClassImage marks conventional still images that need conversion (PNG, TIFF, GIF).
	ClassImage
	// ClassHEIC marks HEIC container files, which need container-level metadata handling.
	ClassHEIC
	// ClassVideo marks video containers (MOV, MP4, MTS).
	ClassVideo
)

func (c Class) String() string {
	switch c {
	case ClassJPEG:
		return "jpeg"
	case ClassImage:
		return "image"
	case ClassHEIC:
		return "heic"
	case ClassVideo:
		return "video"
	default:
		return "unsupported"
	}
}

// MediaFile is a file descriptor produced by a scan. It is a point-in-time
// observation: any move, convert, or delete makes it stale, and callers must
// re-scan after mutating the tree.
type MediaFile struct {
	Path    string // absolute
	Ext     string // normalized lowercase, with leading dot
	Size    int64
	ModTime time.Time
	Class   Class
}

// DateSource identifies where a capture date came from. Report and duplicate
// logic must be able to tell embedded dates from the mtime fallback.
type DateSource int

const (
	SourceNone DateSource = iota
	// SourceExif is a date read from parsed EXIF tag data.
	SourceExif
	// SourceContainer is a date read from a HEIC container's metadata block.
	SourceContainer
	// SourceVideo is a creation-time tag read from a video container.
	SourceVideo
	// SourceModTime is the filesystem mtime fallback. Only the Organizer may
	// substitute it, and only as a last resort.
	SourceModTime
)

func (s DateSource) String() string {
	switch s {
	case SourceExif:
		return "exif"
	case SourceContainer:
		return "container"
	case SourceVideo:
		return "video"
	case SourceModTime:
		return "mtime"
	default:
		return "none"
	}
}

// CaptureDate is a resolved capture timestamp attributed to a file. It is
// derived, never stored on the file, and when Source is not SourceModTime it
// always originated from embedded metadata.
type CaptureDate struct {
	Time   time.Time
	Source DateSource
}

// ConversionResult records a single conversion attempt. It is appended to a
// run's result list and never mutated afterward.
type ConversionResult struct {
	Source        string
	Dest          string
	Success       bool
	ExifPreserved bool
	DestSize      int64
	CaptureDate   *CaptureDate
	Reason        string // failure reason when Success is false
}

// ArchiveEntry is the persisted record for one archived original. A confirmed
// entry means both the destination JPEG and the archived original were
// verified on disk at archive time.
type ArchiveEntry struct {
	JpegPath     string
	ArchivePath  string
	ArchivedDate time.Time
	OriginalSize int64
	JpegSize     int64
}

// Pair is a source original matched to its converted destination by
// destination existence. No content comparison is involved; sizes are
// informational only.
type Pair struct {
	Source          string
	Dest            string
	SourceSize      int64
	DestSize        int64
	AlreadyArchived bool
}
