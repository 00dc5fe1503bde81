package metadata

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	mp4 "github.com/abema/go-mp4"
)

// ExtractHEICExif pulls the raw TIFF-structured Exif payload out of a HEIC
// container. HEIC stores Exif as a metadata item: the meta>iinf>infe boxes
// name the item, meta>iloc locates its bytes in the file.
func ExtractHEICExif(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening container: %w", err)
	}
	defer f.Close()

	itemID, err := exifItemID(f)
	if err != nil {
		return nil, err
	}

	offset, length, err := exifItemLocation(f, itemID)
	if err != nil {
		return nil, err
	}

	payload := make([]byte, length)
	if _, err := f.ReadAt(payload, int64(offset)); err != nil {
		return nil, fmt.Errorf("reading exif item: %w", err)
	}
	return stripExifItemHeader(payload)
}

// exifItemID scans the item info entries for the item typed "Exif".
func exifItemID(r io.ReadSeeker) (uint32, error) {
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return 0, err
	}
	boxes, err := mp4.ExtractBoxesWithPayload(r, nil, []mp4.BoxPath{
		{mp4.BoxTypeMeta(), mp4.BoxTypeIinf(), mp4.BoxTypeInfe()},
	})
	if err != nil {
		return 0, fmt.Errorf("reading item info: %w", err)
	}
	for _, box := range boxes {
		infe, ok := box.Payload.(*mp4.Infe)
		if !ok {
			continue
		}
		if string(infe.ItemType[:]) == "Exif" {
			return infe.ItemID, nil
		}
	}
	return 0, fmt.Errorf("container has no Exif item")
}

// exifItemLocation resolves the item's first extent to an absolute file
// offset and length via the item location box.
func exifItemLocation(r io.ReadSeeker, itemID uint32) (offset, length uint64, err error) {
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return 0, 0, err
	}
	boxes, err := mp4.ExtractBoxesWithPayload(r, nil, []mp4.BoxPath{
		{mp4.BoxTypeMeta(), mp4.BoxTypeIloc()},
	})
	if err != nil {
		return 0, 0, fmt.Errorf("reading item locations: %w", err)
	}
	for _, box := range boxes {
		iloc, ok := box.Payload.(*mp4.Iloc)
		if !ok {
			continue
		}
		for i := range iloc.Items {
			item := &iloc.Items[i]
			if uint32(item.ItemID) != itemID {
				continue
			}
			if len(item.Extents) == 0 {
				return 0, 0, fmt.Errorf("exif item has no extents")
			}
			ext := item.Extents[0]
			return item.BaseOffset + ext.ExtentOffset, ext.ExtentLength, nil
		}
	}
	return 0, 0, fmt.Errorf("exif item %d not located", itemID)
}

// stripExifItemHeader removes the exif_tiff_header_offset prefix so the
// remainder starts at the TIFF header, the form goexif decodes directly.
func stripExifItemHeader(payload []byte) ([]byte, error) {
	if len(payload) < 4 {
		return nil, fmt.Errorf("exif item too short: %d bytes", len(payload))
	}
	headerOffset := binary.BigEndian.Uint32(payload)
	start := 4 + uint64(headerOffset)
	if start >= uint64(len(payload)) {
		return nil, fmt.Errorf("exif header offset %d outside item", headerOffset)
	}
	return payload[start:], nil
}
