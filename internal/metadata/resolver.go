// Package metadata resolves capture dates from embedded media metadata.
// It never substitutes filesystem times: a file without a usable embedded
// date reports media.ErrNoDate and the caller decides what that means.
package metadata

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	mp4 "github.com/abema/go-mp4"
	"github.com/rwcarlsen/goexif/exif"

	"mediakeep/internal/media"
)

const (
	exifTimeLayout  = "2006:01:02 15:04:05"
	videoTimeLayout = "2006-01-02T15:04:05"
)

// appleEpochOffset is the number of seconds between the Apple/Mac epoch
// (1904-01-01 00:00:00 UTC) and the Unix epoch (1970-01-01 00:00:00 UTC).
const appleEpochOffset = 2082844800

// Resolver implements media.DateResolver over real files.
type Resolver struct {
	ffprobe string
	logger  media.Logger
}

// NewResolver creates a date resolver. ffprobeBinary may be empty, in which
// case "ffprobe" is looked up on PATH.
func NewResolver(ffprobeBinary string, logger media.Logger) *Resolver {
	return &Resolver{ffprobe: ffprobeBinary, logger: logger}
}

// Resolve walks the per-class priority chain and returns the first date it
// finds. Every miss along the chain is soft, and a fully exhausted chain
// yields media.ErrNoDate.
func (r *Resolver) Resolve(ctx context.Context, path string, class media.Class) (media.CaptureDate, error) {
	if err := ctx.Err(); err != nil {
		return media.CaptureDate{}, err
	}
	switch class {
	case media.ClassJPEG, media.ClassImage:
		return r.resolveImage(path)
	case media.ClassHEIC:
		return r.resolveHEIC(path)
	case media.ClassVideo:
		return r.resolveVideo(ctx, path)
	default:
		return media.CaptureDate{}, fmt.Errorf("resolving date for %s: %w", path, media.ErrNoDate)
	}
}

func (r *Resolver) resolveImage(path string) (media.CaptureDate, error) {
	f, err := os.Open(path)
	if err != nil {
		return media.CaptureDate{}, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	t, err := ExifDate(f)
	if err != nil {
		r.logger.Debug("no exif date", "path", path, "error", err)
		return media.CaptureDate{}, fmt.Errorf("resolving date for %s: %w", path, media.ErrNoDate)
	}
	return media.CaptureDate{Time: t, Source: media.SourceExif}, nil
}

func (r *Resolver) resolveHEIC(path string) (media.CaptureDate, error) {
	blob, err := ExtractHEICExif(path)
	if err != nil {
		r.logger.Debug("no exif item in container", "path", path, "error", err)
		return media.CaptureDate{}, fmt.Errorf("resolving date for %s: %w", path, media.ErrNoDate)
	}
	t, err := ExifDate(bytes.NewReader(blob))
	if err != nil {
		r.logger.Debug("container exif has no date", "path", path, "error", err)
		return media.CaptureDate{}, fmt.Errorf("resolving date for %s: %w", path, media.ErrNoDate)
	}
	return media.CaptureDate{Time: t, Source: media.SourceContainer}, nil
}

func (r *Resolver) resolveVideo(ctx context.Context, path string) (media.CaptureDate, error) {
	if result, err := inspect(ctx, r.ffprobe, path); err == nil {
		if raw, ok := result.creationTimeTag(); ok {
			if t, err := parseVideoTime(raw); err == nil {
				return media.CaptureDate{Time: t, Source: media.SourceVideo}, nil
			}
			r.logger.Debug("unparseable creation_time tag", "path", path, "value", raw)
		}
	} else {
		r.logger.Debug("ffprobe failed", "path", path, "error", err)
	}

	if t, err := mvhdCreationTime(path); err == nil {
		return media.CaptureDate{Time: t, Source: media.SourceVideo}, nil
	} else {
		r.logger.Debug("no mvhd creation time", "path", path, "error", err)
	}
	return media.CaptureDate{}, fmt.Errorf("resolving date for %s: %w", path, media.ErrNoDate)
}

// ExifDate reads DateTimeOriginal, falling back to DateTime, from a parsed
// EXIF structure. The reader may hold a whole image file or a bare TIFF blob.
func ExifDate(rd io.Reader) (time.Time, error) {
	x, err := exif.Decode(rd)
	if err != nil {
		return time.Time{}, fmt.Errorf("decoding exif: %w", err)
	}
	for _, field := range []exif.FieldName{exif.DateTimeOriginal, exif.DateTime} {
		tag, err := x.Get(field)
		if err != nil {
			continue
		}
		raw, err := tag.StringVal()
		if err != nil {
			continue
		}
		t, err := time.Parse(exifTimeLayout, strings.TrimSpace(raw))
		if err != nil {
			continue
		}
		return t, nil
	}
	return time.Time{}, fmt.Errorf("no datetime tag")
}

// parseVideoTime parses an ffprobe creation_time tag. Fractional seconds and
// UTC suffixes are discarded before parsing.
func parseVideoTime(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimSuffix(raw, "Z")
	if i := strings.IndexByte(raw, '.'); i >= 0 {
		raw = raw[:i]
	}
	return time.Parse(videoTimeLayout, raw)
}

// mvhdCreationTime reads the moov>mvhd creation time from an ISO-BMFF
// container. The stored value counts seconds from the Apple epoch; zero and
// pre-1970 values are rejected as unset.
func mvhdCreationTime(path string) (time.Time, error) {
	f, err := os.Open(path)
	if err != nil {
		return time.Time{}, fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()

	boxes, err := mp4.ExtractBoxesWithPayload(f, nil, []mp4.BoxPath{
		{mp4.BoxTypeMoov(), mp4.BoxTypeMvhd()},
	})
	if err != nil {
		return time.Time{}, fmt.Errorf("reading container structure: %w", err)
	}
	for _, box := range boxes {
		mvhd, ok := box.Payload.(*mp4.Mvhd)
		if !ok {
			continue
		}
		creation := mvhd.GetCreationTime()
		if creation == 0 {
			return time.Time{}, fmt.Errorf("mvhd creation time is zero")
		}
		t := time.Unix(int64(creation)-appleEpochOffset, 0).UTC()
		if t.Year() < 1970 {
			return time.Time{}, fmt.Errorf("mvhd creation time predates unix epoch")
		}
		return t, nil
	}
	return time.Time{}, fmt.Errorf("mvhd box not found")
}

var _ media.DateResolver = (*Resolver)(nil)
