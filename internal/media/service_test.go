package media_test

import (
	"context"
	"strings"
	"testing"

	"mediakeep/internal/media"
	"mediakeep/internal/testutil"
)

// env bundles a Service with the fakes it was wired from so tests can seed
// files and inspect side effects.
type env struct {
	fs      *testutil.MockFilesystemManager
	dates   *testutil.StubDateResolver
	conv    *testutil.StubConverter
	tracker *testutil.MemoryTracker
	svc     *media.Service
}

const (
	sourceRoot  = "/photos"
	destRoot    = "/jpeg"
	archiveRoot = "/archive"
)

func newEnv(t *testing.T) *env {
	t.Helper()
	return newEnvWith(t, nil, nil)
}

func newEnvWith(t *testing.T, hashes media.HashCache, mirror media.Mirror) *env {
	t.Helper()
	fs := testutil.NewMockFilesystemManager()
	fs.Excluded = []string{".dtrash"}
	fs.AddDirectory(sourceRoot)

	e := &env{
		fs:      fs,
		dates:   testutil.NewStubDateResolver(),
		conv:    testutil.NewStubConverter(fs),
		tracker: testutil.NewMemoryTracker(),
	}
	e.svc = media.NewService(
		media.Roots{Source: sourceRoot, Dest: destRoot, Archive: archiveRoot},
		fs.Excluded,
		e.fs, e.dates, e.conv, e.tracker, hashes, mirror, nil,
		media.NewNopLogger(), testutil.FixedClock(), testutil.NewStubIDGenerator(),
	)
	return e
}

func TestServiceRoots(t *testing.T) {
	e := newEnv(t)
	roots := e.svc.Roots()
	if roots.Source != sourceRoot || roots.Dest != destRoot || roots.Archive != archiveRoot {
		t.Errorf("unexpected roots: %+v", roots)
	}
}

func TestMissingSourceRoot(t *testing.T) {
	e := newEnv(t)
	e.fs.Remove(sourceRoot)

	_, err := e.svc.ScanLibrary(context.Background())
	if err == nil {
		t.Fatal("expected error for missing source root")
	}
	if !strings.Contains(err.Error(), "source directory does not exist") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestSourceRootNotDirectory(t *testing.T) {
	e := newEnv(t)
	e.fs.Remove(sourceRoot)
	e.fs.AddFile(sourceRoot, []byte("not a dir"))

	_, err := e.svc.ScanLibrary(context.Background())
	if err == nil || !strings.Contains(err.Error(), "not a directory") {
		t.Errorf("expected not-a-directory error, got %v", err)
	}
}

func TestCancelledContext(t *testing.T) {
	e := newEnv(t)
	e.fs.AddFile("/photos/a.jpg", []byte("x"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := e.svc.ScanLibrary(ctx); err == nil {
		t.Error("expected error from cancelled context")
	}
}
