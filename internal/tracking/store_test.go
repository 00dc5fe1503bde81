package tracking

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"mediakeep/internal/media"
)

func testEntry() media.ArchiveEntry {
	return media.ArchiveEntry{
		JpegPath:     "/photos/2022/07/IMG_100.jpg",
		ArchivePath:  "/archive/2022/07/IMG_100.HEIC",
		ArchivedDate: time.Date(2022, 7, 16, 10, 0, 0, 0, time.UTC),
		OriginalSize: 4_000_000,
		JpegSize:     2_500_000,
	}
}

func TestStoreLifecycle(t *testing.T) {
	t.Parallel()

	t.Run("missing file loads empty", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "tracking.json")
		s, err := Load(path, media.NewNopLogger())
		if err != nil {
			t.Fatalf("loading empty store: %v", err)
		}
		if len(s.Entries()) != 0 {
			t.Errorf("expected no entries, got %d", len(s.Entries()))
		}
	})

	t.Run("begin confirm remove", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "tracking.json")
		s, err := Load(path, media.NewNopLogger())
		if err != nil {
			t.Fatal(err)
		}

		src := "/photos/2022/07/IMG_100.HEIC"
		if err := s.BeginArchive(src, testEntry()); err != nil {
			t.Fatalf("begin: %v", err)
		}
		if s.IsArchived(src) {
			t.Error("provisional entry must not count as archived")
		}
		if err := s.ConfirmArchive(src); err != nil {
			t.Fatalf("confirm: %v", err)
		}
		if !s.IsArchived(src) {
			t.Error("confirmed entry must count as archived")
		}

		entries := s.Entries()
		got, ok := entries[src]
		if !ok {
			t.Fatal("confirmed entry missing from Entries")
		}
		if got.ArchivePath != testEntry().ArchivePath {
			t.Errorf("archive path %q, want %q", got.ArchivePath, testEntry().ArchivePath)
		}

		if err := s.Remove(src); err != nil {
			t.Fatalf("remove: %v", err)
		}
		if s.IsArchived(src) {
			t.Error("removed entry must not count as archived")
		}
	})

	t.Run("abort drops provisional entry", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "tracking.json")
		s, err := Load(path, media.NewNopLogger())
		if err != nil {
			t.Fatal(err)
		}
		src := "/photos/a.HEIC"
		if err := s.BeginArchive(src, testEntry()); err != nil {
			t.Fatal(err)
		}
		if err := s.AbortArchive(src); err != nil {
			t.Fatalf("abort: %v", err)
		}
		reloaded, err := Load(path, media.NewNopLogger())
		if err != nil {
			t.Fatal(err)
		}
		if len(reloaded.Desyncs()) != 0 {
			t.Error("aborted entry must not survive as a desync")
		}
	})

	t.Run("abort refuses confirmed entry", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "tracking.json")
		s, err := Load(path, media.NewNopLogger())
		if err != nil {
			t.Fatal(err)
		}
		src := "/photos/a.HEIC"
		if err := s.BeginArchive(src, testEntry()); err != nil {
			t.Fatal(err)
		}
		if err := s.ConfirmArchive(src); err != nil {
			t.Fatal(err)
		}
		if err := s.AbortArchive(src); err == nil {
			t.Error("expected error aborting a confirmed entry")
		}
	})

	t.Run("each mutation is flushed", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "tracking.json")
		s, err := Load(path, media.NewNopLogger())
		if err != nil {
			t.Fatal(err)
		}
		src := "/photos/b.HEIC"
		if err := s.BeginArchive(src, testEntry()); err != nil {
			t.Fatal(err)
		}

		// A fresh load directly after BeginArchive sees the provisional
		// entry: the write happened before any filesystem move.
		mid, err := Load(path, media.NewNopLogger())
		if err != nil {
			t.Fatal(err)
		}
		if len(mid.Desyncs()) != 1 {
			t.Fatalf("expected 1 provisional entry after begin, got %d", len(mid.Desyncs()))
		}

		if err := s.ConfirmArchive(src); err != nil {
			t.Fatal(err)
		}
		final, err := Load(path, media.NewNopLogger())
		if err != nil {
			t.Fatal(err)
		}
		if !final.IsArchived(src) {
			t.Error("confirmed entry must survive reload")
		}
		if len(final.Desyncs()) != 0 {
			t.Error("confirmed entry must not report as desync")
		}
	})
}

func TestStoreFindByName(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "tracking.json")
	s, err := Load(path, media.NewNopLogger())
	if err != nil {
		t.Fatal(err)
	}
	src := "/photos/2022/IMG_200.HEIC"
	if err := s.BeginArchive(src, testEntry()); err != nil {
		t.Fatal(err)
	}
	if err := s.ConfirmArchive(src); err != nil {
		t.Fatal(err)
	}

	t.Run("case insensitive match", func(t *testing.T) {
		original, _, ok := s.FindByName("img_200.heic")
		if !ok {
			t.Fatal("expected a match")
		}
		if original != src {
			t.Errorf("matched %q, want %q", original, src)
		}
	})

	t.Run("no match", func(t *testing.T) {
		if _, _, ok := s.FindByName("IMG_999.HEIC"); ok {
			t.Error("unexpected match")
		}
	})
}

func TestStoreSchemaHandling(t *testing.T) {
	t.Parallel()

	t.Run("unknown version is fatal", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "tracking.json")
		content := `{"schema_version": 9, "converted_files": {}, "archive_history": []}`
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
		if _, err := Load(path, media.NewNopLogger()); err == nil {
			t.Error("expected error for unknown schema version")
		}
	})

	t.Run("corrupt json is fatal", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "tracking.json")
		if err := os.WriteFile(path, []byte("{truncated"), 0644); err != nil {
			t.Fatal(err)
		}
		if _, err := Load(path, media.NewNopLogger()); err == nil {
			t.Error("expected error for corrupt file")
		}
	})

	t.Run("unrecognized versionless layout is fatal", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "tracking.json")
		if err := os.WriteFile(path, []byte(`{"something_else": true}`), 0644); err != nil {
			t.Fatal(err)
		}
		if _, err := Load(path, media.NewNopLogger()); err == nil {
			t.Error("expected error for unrecognized layout")
		}
	})

	t.Run("legacy file migrates", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "tracking.json")
		legacy := map[string]any{
			"converted_files": map[string]any{
				"/photos/old.HEIC": map[string]any{
					"jpeg_path":     "/photos/old.jpg",
					"archive_path":  "/archive/old.HEIC",
					"archived_date": "2023-05-01T12:30:00.123456",
					"original_size": 100,
					"jpeg_size":     60,
				},
			},
			"archive_history": []any{},
		}
		raw, err := json.Marshal(legacy)
		if err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, raw, 0644); err != nil {
			t.Fatal(err)
		}

		s, err := Load(path, media.NewNopLogger())
		if err != nil {
			t.Fatalf("loading legacy file: %v", err)
		}
		if !s.IsArchived("/photos/old.HEIC") {
			t.Error("legacy entry must load as confirmed")
		}
		entry := s.Entries()["/photos/old.HEIC"]
		if entry.ArchivedDate.IsZero() {
			t.Error("legacy date must parse")
		}

		// Touch the store so it rewrites, then check the version tag landed.
		if err := s.BeginArchive("/photos/new.HEIC", testEntry()); err != nil {
			t.Fatal(err)
		}
		rewritten, err := os.ReadFile(path)
		if err != nil {
			t.Fatal(err)
		}
		var parsed struct {
			SchemaVersion int `json:"schema_version"`
		}
		if err := json.Unmarshal(rewritten, &parsed); err != nil {
			t.Fatal(err)
		}
		if parsed.SchemaVersion != SchemaVersion {
			t.Errorf("rewritten schema version %d, want %d", parsed.SchemaVersion, SchemaVersion)
		}
	})
}

func TestStoreDesyncDetection(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "tracking.json")
	archived := filepath.Join(dir, "archived.HEIC")
	if err := os.WriteFile(archived, []byte("heic"), 0644); err != nil {
		t.Fatal(err)
	}

	s, err := Load(path, media.NewNopLogger())
	if err != nil {
		t.Fatal(err)
	}
	entry := testEntry()
	entry.ArchivePath = archived
	if err := s.BeginArchive("/photos/c.HEIC", entry); err != nil {
		t.Fatal(err)
	}

	// Simulate a crash between move and confirm: reload without confirming.
	reloaded, err := Load(path, media.NewNopLogger())
	if err != nil {
		t.Fatal(err)
	}
	desyncs := reloaded.Desyncs()
	if len(desyncs) != 1 {
		t.Fatalf("expected 1 desync, got %d", len(desyncs))
	}
	if desyncs[0].Original != "/photos/c.HEIC" {
		t.Errorf("desync original %q", desyncs[0].Original)
	}
	if !desyncs[0].ArchiveExists {
		t.Error("archive file exists on disk, desync must report it")
	}
}

func TestStoreMissingConfirmedArchive(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "tracking.json")

	s, err := Load(path, media.NewNopLogger())
	if err != nil {
		t.Fatal(err)
	}

	// One confirmed entry whose archive file is still on disk, one whose
	// archive file has since disappeared.
	intact := filepath.Join(dir, "intact.HEIC")
	if err := os.WriteFile(intact, []byte("heic"), 0644); err != nil {
		t.Fatal(err)
	}
	entry := testEntry()
	entry.ArchivePath = intact
	if err := s.BeginArchive("/photos/a.HEIC", entry); err != nil {
		t.Fatal(err)
	}
	if err := s.ConfirmArchive("/photos/a.HEIC"); err != nil {
		t.Fatal(err)
	}
	gone := testEntry()
	gone.ArchivePath = filepath.Join(dir, "vanished.HEIC")
	if err := s.BeginArchive("/photos/b.HEIC", gone); err != nil {
		t.Fatal(err)
	}
	if err := s.ConfirmArchive("/photos/b.HEIC"); err != nil {
		t.Fatal(err)
	}

	reloaded, err := Load(path, media.NewNopLogger())
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if !reloaded.IsArchived("/photos/b.HEIC") {
		t.Error("entry stays confirmed even when its archive file is gone")
	}
	desyncs := reloaded.Desyncs()
	if len(desyncs) != 1 {
		t.Fatalf("expected 1 desync, got %d", len(desyncs))
	}
	d := desyncs[0]
	if d.Original != "/photos/b.HEIC" {
		t.Errorf("desync original %q", d.Original)
	}
	if !d.Confirmed {
		t.Error("missing confirmed archive must be flagged as a confirmed desync")
	}
	if d.ArchiveExists {
		t.Error("archive file is gone, desync must report it")
	}
}
