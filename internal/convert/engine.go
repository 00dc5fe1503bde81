// Package convert turns source media files into JPEGs while carrying their
// EXIF metadata across when it fits.
package convert

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
	"os"
	"path/filepath"

	_ "image/gif"
	_ "image/png"

	_ "github.com/vegidio/heif-go"
	_ "golang.org/x/image/tiff"

	"mediakeep/internal/media"
	"mediakeep/internal/metadata"
)

// DefaultQuality is the JPEG encode quality used when none is configured.
const DefaultQuality = 95

// Engine implements media.Converter on real files.
type Engine struct {
	quality int
	logger  media.Logger
}

// NewEngine creates a conversion engine. Quality values outside 1..100 fall
// back to DefaultQuality.
func NewEngine(quality int, logger media.Logger) *Engine {
	if quality < 1 || quality > 100 {
		quality = DefaultQuality
	}
	return &Engine{quality: quality, logger: logger}
}

// Convert decodes src, re-encodes it as a JPEG at dst, and splices the
// source's EXIF data into the output when possible. Per-file problems are
// reported inside the result, never as an error. An existing dst is
// overwritten.
func (e *Engine) Convert(ctx context.Context, src, dst string) media.ConversionResult {
	result := media.ConversionResult{Source: src, Dest: dst}
	if err := ctx.Err(); err != nil {
		result.Reason = err.Error()
		return result
	}

	img, err := decodeImage(src)
	if err != nil {
		result.Reason = fmt.Sprintf("decoding: %v", err)
		return result
	}

	class := media.Classify(media.NormalizeExt(src))
	blob, err := exifBlob(src, class)
	if err != nil {
		// Metadata loss is reported, not fatal: the conversion proceeds
		// without an EXIF segment.
		e.logger.Debug("exif extraction failed", "path", src, "error", err)
		blob = nil
	}

	data, err := encodeJPEG(flatten(img), e.quality)
	if err != nil {
		result.Reason = fmt.Sprintf("encoding: %v", err)
		return result
	}

	if blob != nil {
		if spliced, err := spliceExifSegment(data, blob); err == nil {
			data = spliced
			result.ExifPreserved = true
		} else {
			e.logger.Warn("exif embed failed, writing without metadata", "path", src, "error", err)
		}
		if t, err := metadata.ExifDate(bytes.NewReader(blob)); err == nil {
			source := media.SourceExif
			if class == media.ClassHEIC {
				source = media.SourceContainer
			}
			result.CaptureDate = &media.CaptureDate{Time: t, Source: source}
		}
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		result.Reason = fmt.Sprintf("creating target directory: %v", err)
		return result
	}
	if err := os.WriteFile(dst, data, 0644); err != nil {
		result.Reason = fmt.Sprintf("writing: %v", err)
		return result
	}

	result.Success = true
	result.DestSize = int64(len(data))
	return result
}

func decodeImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, err
	}
	return img, nil
}

// flatten redraws the image into an RGBA buffer so every source, whatever
// its native color model, encodes the same way.
func flatten(img image.Image) *image.RGBA {
	bounds := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(dst, dst.Bounds(), img, bounds.Min, draw.Src)
	return dst
}

func encodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

var _ media.Converter = (*Engine)(nil)
