package convert

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"mediakeep/internal/media"
	"mediakeep/internal/metadata"
)

// exifIdentifier prefixes every Exif APP1 payload.
var exifIdentifier = []byte("Exif\x00\x00")

// maxExifPayload is the largest TIFF blob that fits a single APP1 segment:
// 65535 bytes of segment length minus the 2 length bytes and the 6-byte
// identifier.
const maxExifPayload = 65535 - 2 - len("Exif\x00\x00")

// exifBlob extracts the raw TIFF-structured EXIF data from a source file.
// A nil blob with nil error means the format simply carries no EXIF.
func exifBlob(path string, class media.Class) ([]byte, error) {
	switch class {
	case media.ClassHEIC:
		return metadata.ExtractHEICExif(path)
	case media.ClassJPEG:
		return jpegExifPayload(path)
	case media.ClassImage:
		if media.NormalizeExt(path) == ".tiff" || media.NormalizeExt(path) == ".tif" {
			return tiffExifPayload(path)
		}
		return nil, nil
	default:
		return nil, nil
	}
}

// jpegExifPayload scans a JPEG's segment chain for the Exif APP1 segment and
// returns its TIFF payload.
func jpegExifPayload(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var soi [2]byte
	if _, err := io.ReadFull(f, soi[:]); err != nil {
		return nil, fmt.Errorf("reading SOI: %w", err)
	}
	if soi[0] != 0xFF || soi[1] != 0xD8 {
		return nil, fmt.Errorf("not a JPEG")
	}

	var hdr [4]byte
	for {
		if _, err := io.ReadFull(f, hdr[:]); err != nil {
			return nil, fmt.Errorf("reading segment header: %w", err)
		}
		if hdr[0] != 0xFF {
			return nil, fmt.Errorf("corrupt segment chain")
		}
		marker := hdr[1]
		length := int(binary.BigEndian.Uint16(hdr[2:])) - 2
		if length < 0 {
			return nil, fmt.Errorf("corrupt segment length")
		}
		// SOS begins entropy-coded data; no APP1 can follow.
		if marker == 0xDA {
			return nil, fmt.Errorf("no exif segment")
		}
		if marker != 0xE1 {
			if _, err := f.Seek(int64(length), io.SeekCurrent); err != nil {
				return nil, err
			}
			continue
		}
		payload := make([]byte, length)
		if _, err := io.ReadFull(f, payload); err != nil {
			return nil, fmt.Errorf("reading APP1: %w", err)
		}
		if !bytes.HasPrefix(payload, exifIdentifier) {
			// XMP also lives in APP1; keep scanning.
			continue
		}
		return payload[len(exifIdentifier):], nil
	}
}

// tiffExifPayload treats the whole TIFF file as the EXIF structure, bounded
// by what an APP1 segment can carry.
func tiffExifPayload(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.Size() > int64(maxExifPayload) {
		return nil, fmt.Errorf("tiff structure %d bytes exceeds APP1 capacity", info.Size())
	}
	return os.ReadFile(path)
}

// spliceExifSegment inserts the blob as an Exif APP1 segment directly after
// the SOI marker of an encoded JPEG. Blobs too large for one segment are an
// error; the caller downgrades to a metadata-free output.
func spliceExifSegment(jpegData, blob []byte) ([]byte, error) {
	if len(jpegData) < 2 || jpegData[0] != 0xFF || jpegData[1] != 0xD8 {
		return nil, fmt.Errorf("encoded output missing SOI")
	}
	if len(blob) > maxExifPayload {
		return nil, fmt.Errorf("exif blob %d bytes exceeds APP1 capacity", len(blob))
	}

	segLen := 2 + len(exifIdentifier) + len(blob)
	out := make([]byte, 0, len(jpegData)+4+segLen-2)
	out = append(out, 0xFF, 0xD8)
	out = append(out, 0xFF, 0xE1)
	out = binary.BigEndian.AppendUint16(out, uint16(segLen))
	out = append(out, exifIdentifier...)
	out = append(out, blob...)
	out = append(out, jpegData[2:]...)
	return out, nil
}
