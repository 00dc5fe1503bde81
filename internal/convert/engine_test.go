package convert

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"mediakeep/internal/media"
)

func writeTestPNG(t *testing.T, dir, name string) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for x := 0; x < 4; x++ {
		for y := 0; y < 4; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 60), G: uint8(y * 60), B: 40, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encoding test png: %v", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatalf("writing test png: %v", err)
	}
	return path
}

func TestEngineConvert(t *testing.T) {
	t.Parallel()

	t.Run("png to jpeg", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		src := writeTestPNG(t, dir, "photo.png")
		dst := filepath.Join(dir, "out", "photo.jpg")

		engine := NewEngine(DefaultQuality, media.NewNopLogger())
		result := engine.Convert(context.Background(), src, dst)

		if !result.Success {
			t.Fatalf("conversion failed: %s", result.Reason)
		}
		if result.ExifPreserved {
			t.Error("png source cannot preserve exif")
		}
		info, err := os.Stat(dst)
		if err != nil {
			t.Fatalf("stat output: %v", err)
		}
		if info.Size() != result.DestSize {
			t.Errorf("recorded size %d, on disk %d", result.DestSize, info.Size())
		}
		data, err := os.ReadFile(dst)
		if err != nil {
			t.Fatalf("reading output: %v", err)
		}
		if len(data) < 2 || data[0] != 0xFF || data[1] != 0xD8 {
			t.Error("output is not a JPEG")
		}
	})

	t.Run("overwrites existing destination", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		src := writeTestPNG(t, dir, "photo.png")
		dst := filepath.Join(dir, "photo.jpg")
		if err := os.WriteFile(dst, []byte("stale"), 0644); err != nil {
			t.Fatal(err)
		}

		engine := NewEngine(DefaultQuality, media.NewNopLogger())
		result := engine.Convert(context.Background(), src, dst)
		if !result.Success {
			t.Fatalf("conversion failed: %s", result.Reason)
		}
		data, err := os.ReadFile(dst)
		if err != nil {
			t.Fatal(err)
		}
		if bytes.Equal(data, []byte("stale")) {
			t.Error("destination was not overwritten")
		}
	})

	t.Run("unreadable source reported in result", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		engine := NewEngine(DefaultQuality, media.NewNopLogger())
		result := engine.Convert(context.Background(), filepath.Join(dir, "missing.png"), filepath.Join(dir, "out.jpg"))
		if result.Success {
			t.Fatal("expected failure for missing source")
		}
		if result.Reason == "" {
			t.Error("failure must carry a reason")
		}
	})

	t.Run("corrupt source reported in result", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		src := filepath.Join(dir, "broken.png")
		if err := os.WriteFile(src, []byte("not an image"), 0644); err != nil {
			t.Fatal(err)
		}
		engine := NewEngine(DefaultQuality, media.NewNopLogger())
		result := engine.Convert(context.Background(), src, filepath.Join(dir, "out.jpg"))
		if result.Success {
			t.Fatal("expected failure for corrupt source")
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		src := writeTestPNG(t, dir, "photo.png")
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		engine := NewEngine(DefaultQuality, media.NewNopLogger())
		result := engine.Convert(ctx, src, filepath.Join(dir, "out.jpg"))
		if result.Success {
			t.Fatal("expected failure under cancelled context")
		}
	})
}

func TestConvertIdempotent(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	src := writeTestPNG(t, dir, "photo.png")
	engine := NewEngine(DefaultQuality, media.NewNopLogger())

	first := engine.Convert(context.Background(), src, filepath.Join(dir, "a.jpg"))
	second := engine.Convert(context.Background(), src, filepath.Join(dir, "b.jpg"))
	if !first.Success || !second.Success {
		t.Fatalf("conversions failed: %q / %q", first.Reason, second.Reason)
	}

	a, err := os.ReadFile(filepath.Join(dir, "a.jpg"))
	if err != nil {
		t.Fatal(err)
	}
	b, err := os.ReadFile(filepath.Join(dir, "b.jpg"))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(a, b) {
		t.Error("converting the same source twice must produce identical bytes")
	}
	if first.DestSize != second.DestSize {
		t.Errorf("dest sizes differ: %d vs %d", first.DestSize, second.DestSize)
	}
}

func TestSpliceExifSegment(t *testing.T) {
	t.Parallel()

	// Minimal JPEG: SOI followed immediately by EOI.
	minimal := []byte{0xFF, 0xD8, 0xFF, 0xD9}
	blob := []byte{'M', 'M', 0x00, '*', 0, 0, 0, 8}

	t.Run("splice and read back", func(t *testing.T) {
		t.Parallel()
		out, err := spliceExifSegment(minimal, blob)
		if err != nil {
			t.Fatalf("splice failed: %v", err)
		}
		if out[0] != 0xFF || out[1] != 0xD8 {
			t.Fatal("spliced output missing SOI")
		}
		if out[2] != 0xFF || out[3] != 0xE1 {
			t.Fatal("APP1 marker not directly after SOI")
		}

		dir := t.TempDir()
		path := filepath.Join(dir, "spliced.jpg")
		if err := os.WriteFile(path, out, 0644); err != nil {
			t.Fatal(err)
		}
		got, err := jpegExifPayload(path)
		if err != nil {
			t.Fatalf("reading back payload: %v", err)
		}
		if !bytes.Equal(got, blob) {
			t.Errorf("round-tripped payload %x, want %x", got, blob)
		}
	})

	t.Run("oversized blob rejected", func(t *testing.T) {
		t.Parallel()
		if _, err := spliceExifSegment(minimal, make([]byte, maxExifPayload+1)); err == nil {
			t.Error("expected error for oversized blob")
		}
	})

	t.Run("missing SOI rejected", func(t *testing.T) {
		t.Parallel()
		if _, err := spliceExifSegment([]byte{0x00, 0x01}, blob); err == nil {
			t.Error("expected error for non-JPEG data")
		}
	})
}

func TestJpegExifPayload(t *testing.T) {
	t.Parallel()

	t.Run("no exif segment", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		path := filepath.Join(dir, "plain.jpg")
		// SOI, then SOS marker with empty body.
		if err := os.WriteFile(path, []byte{0xFF, 0xD8, 0xFF, 0xDA, 0x00, 0x02}, 0644); err != nil {
			t.Fatal(err)
		}
		if _, err := jpegExifPayload(path); err == nil {
			t.Error("expected error when no exif segment exists")
		}
	})

	t.Run("not a jpeg", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		path := filepath.Join(dir, "fake.jpg")
		if err := os.WriteFile(path, []byte("PNG data"), 0644); err != nil {
			t.Fatal(err)
		}
		if _, err := jpegExifPayload(path); err == nil {
			t.Error("expected error for non-JPEG file")
		}
	})
}
