package media_test

import (
	"context"
	"reflect"
	"strings"
	"testing"
	"time"

	"mediakeep/internal/media"
	"mediakeep/internal/testutil"
)

func TestConvertAll(t *testing.T) {
	e := newEnv(t)
	e.fs.AddFile("/photos/2022/07/IMG_1.heic", []byte("heic"))
	e.fs.AddFile("/photos/2022/07/IMG_2.png", []byte("png"))
	e.fs.AddFile("/photos/2022/07/IMG_3.jpg", []byte("jpg"))
	e.fs.AddFile("/photos/2022/07/clip.mov", []byte("mov"))
	e.fs.AddFile("/photos/2022/07/notes.txt", []byte("txt"))

	outcome, err := e.svc.ConvertAll(context.Background(), media.ConvertOptions{})
	if err != nil {
		t.Fatal(err)
	}

	// Only the HEIC and the PNG convert; JPEGs, videos and unsupported
	// files are left alone.
	want := []string{"/photos/2022/07/IMG_1.heic", "/photos/2022/07/IMG_2.png"}
	if !reflect.DeepEqual(e.conv.Calls, want) {
		t.Errorf("converted %v, want %v", e.conv.Calls, want)
	}
	if len(outcome.Converted) != 2 || len(outcome.Failed) != 0 {
		t.Errorf("outcome = %+v", outcome)
	}
	if !e.fs.Exists("/jpeg/2022/07/IMG_1.jpg") || !e.fs.Exists("/jpeg/2022/07/IMG_2.jpg") {
		t.Error("destination files missing")
	}
	if got := outcome.Preserved(); got != 2 {
		t.Errorf("Preserved() = %d, want 2", got)
	}
}

func TestConvertAllDryRun(t *testing.T) {
	e := newEnv(t)
	e.fs.AddFile("/photos/IMG_1.heic", []byte("heic"))

	outcome, err := e.svc.ConvertAll(context.Background(), media.ConvertOptions{DryRun: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(e.conv.Calls) != 0 {
		t.Errorf("dry run invoked the converter: %v", e.conv.Calls)
	}
	wantPlan := []media.PlannedConversion{{Source: "/photos/IMG_1.heic", Dest: "/jpeg/IMG_1.jpg"}}
	if !reflect.DeepEqual(outcome.Planned, wantPlan) {
		t.Errorf("Planned = %v, want %v", outcome.Planned, wantPlan)
	}
}

func TestConvertAllFailureAccumulates(t *testing.T) {
	e := newEnv(t)
	e.fs.AddFile("/photos/bad.heic", []byte("x"))
	e.fs.AddFile("/photos/good.heic", []byte("x"))
	e.conv.Fail("/photos/bad.heic", "decode error")

	outcome, err := e.svc.ConvertAll(context.Background(), media.ConvertOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(outcome.Converted) != 1 || len(outcome.Failed) != 1 {
		t.Fatalf("outcome = %+v", outcome)
	}
	if outcome.Failed[0].Reason != "decode error" {
		t.Errorf("failure reason = %q", outcome.Failed[0].Reason)
	}
	// The failure did not abort the batch.
	if !e.fs.Exists("/jpeg/good.jpg") {
		t.Error("good file was not converted")
	}
}

func TestConvertAllMonthSelection(t *testing.T) {
	e := newEnv(t)
	e.fs.AddDirectory("/photos/2022/07")
	e.fs.AddFile("/photos/2022/07/in.heic", []byte("x"))
	e.fs.AddFile("/photos/2022/08/out.heic", []byte("x"))

	t.Run("restricts to the subtree", func(t *testing.T) {
		outcome, err := e.svc.ConvertAll(context.Background(),
			media.ConvertOptions{Year: "2022", Month: "07"})
		if err != nil {
			t.Fatal(err)
		}
		if len(outcome.Converted) != 1 || outcome.Converted[0].Source != "/photos/2022/07/in.heic" {
			t.Errorf("outcome = %+v", outcome)
		}
	})

	t.Run("year without month", func(t *testing.T) {
		_, err := e.svc.ConvertAll(context.Background(), media.ConvertOptions{Year: "2022"})
		if err == nil || !strings.Contains(err.Error(), "together") {
			t.Errorf("expected pairing error, got %v", err)
		}
	})

	t.Run("malformed selection", func(t *testing.T) {
		_, err := e.svc.ConvertAll(context.Background(),
			media.ConvertOptions{Year: "22", Month: "7"})
		if err == nil || !strings.Contains(err.Error(), "invalid year/month") {
			t.Errorf("expected validation error, got %v", err)
		}
	})

	t.Run("missing folder", func(t *testing.T) {
		_, err := e.svc.ConvertAll(context.Background(),
			media.ConvertOptions{Year: "1999", Month: "01"})
		if err == nil || !strings.Contains(err.Error(), "no folder") {
			t.Errorf("expected missing-folder error, got %v", err)
		}
	})
}

func TestConvertAllProgress(t *testing.T) {
	e := newEnv(t)
	e.fs.AddFile("/photos/a.heic", []byte("x"))
	e.fs.AddFile("/photos/b.heic", []byte("x"))

	var ticks [][2]int
	_, err := e.svc.ConvertAll(context.Background(), media.ConvertOptions{
		Progress: func(done, total int) { ticks = append(ticks, [2]int{done, total}) },
	})
	if err != nil {
		t.Fatal(err)
	}
	want := [][2]int{{1, 2}, {2, 2}}
	if !reflect.DeepEqual(ticks, want) {
		t.Errorf("progress ticks = %v, want %v", ticks, want)
	}
}

func TestConvertFile(t *testing.T) {
	t.Run("inside source tree", func(t *testing.T) {
		e := newEnv(t)
		e.fs.AddFile("/photos/2022/07/IMG_1.heic", []byte("x"))

		result, err := e.svc.ConvertFile(context.Background(), "/photos/2022/07/IMG_1.heic")
		if err != nil {
			t.Fatal(err)
		}
		if !result.Success || result.Dest != "/jpeg/2022/07/IMG_1.jpg" {
			t.Errorf("result = %+v", result)
		}
	})

	t.Run("outside source tree lands by basename", func(t *testing.T) {
		e := newEnv(t)
		e.fs.AddFile("/downloads/pic.HEIC", []byte("x"))

		result, err := e.svc.ConvertFile(context.Background(), "/downloads/pic.HEIC")
		if err != nil {
			t.Fatal(err)
		}
		if result.Dest != "/jpeg/pic.jpg" {
			t.Errorf("dest = %q", result.Dest)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		e := newEnv(t)
		_, err := e.svc.ConvertFile(context.Background(), "/photos/nope.heic")
		if err == nil || !strings.Contains(err.Error(), "not found") {
			t.Errorf("expected not-found error, got %v", err)
		}
	})

	t.Run("rejects non-convertible types", func(t *testing.T) {
		e := newEnv(t)
		e.fs.AddFile("/photos/a.jpg", []byte("x"))
		e.fs.AddFile("/photos/clip.mov", []byte("x"))

		for _, p := range []string{"/photos/a.jpg", "/photos/clip.mov"} {
			_, err := e.svc.ConvertFile(context.Background(), p)
			if err == nil || !strings.Contains(err.Error(), "not a convertible image type") {
				t.Errorf("ConvertFile(%q) err = %v", p, err)
			}
		}
	})
}

// spyLogger captures log calls so tests can assert on emitted attributes.
type spyLogger struct {
	msgs []string
	args [][]any
}

func (l *spyLogger) Debug(string, ...any) {}
func (l *spyLogger) Warn(string, ...any)  {}
func (l *spyLogger) Error(string, ...any) {}
func (l *spyLogger) Info(msg string, args ...any) {
	l.msgs = append(l.msgs, msg)
	l.args = append(l.args, args)
}

func (l *spyLogger) find(msg string) ([]any, bool) {
	for i, m := range l.msgs {
		if m == msg {
			return l.args[i], true
		}
	}
	return nil, false
}

func hasPair(args []any, key string, val any) bool {
	for i := 0; i+1 < len(args); i += 2 {
		if args[i] == key && args[i+1] == val {
			return true
		}
	}
	return false
}

func TestConvertLogsCaptureDate(t *testing.T) {
	fs := testutil.NewMockFilesystemManager()
	fs.AddDirectory(sourceRoot)
	conv := testutil.NewStubConverter(fs)
	log := &spyLogger{}
	svc := media.NewService(
		media.Roots{Source: sourceRoot, Dest: destRoot, Archive: archiveRoot},
		nil,
		fs, testutil.NewStubDateResolver(), conv, testutil.NewMemoryTracker(), nil, nil, nil,
		log, testutil.FixedClock(), testutil.NewStubIDGenerator(),
	)

	fs.AddFile("/photos/2021/03/IMG_1.heic", []byte("heic"))
	fs.AddFile("/photos/2021/03/IMG_2.png", []byte("png"))
	conv.CaptureDates["/photos/2021/03/IMG_1.heic"] = media.CaptureDate{
		Time:   time.Date(2021, 3, 14, 9, 0, 0, 0, time.UTC),
		Source: media.SourceContainer,
	}

	if _, err := svc.ConvertFile(context.Background(), "/photos/2021/03/IMG_1.heic"); err != nil {
		t.Fatalf("convert: %v", err)
	}
	args, ok := log.find("converted")
	if !ok {
		t.Fatal("no converted log line")
	}
	if !hasPair(args, "capture_date", "2021-03-14") {
		t.Errorf("converted line missing capture_date: %v", args)
	}
	if !hasPair(args, "date_source", "container") {
		t.Errorf("converted line missing date_source: %v", args)
	}

	// A source without a resolvable date logs without the date attributes.
	log.msgs, log.args = nil, nil
	if _, err := svc.ConvertFile(context.Background(), "/photos/2021/03/IMG_2.png"); err != nil {
		t.Fatalf("convert: %v", err)
	}
	args, ok = log.find("converted")
	if !ok {
		t.Fatal("no converted log line")
	}
	for i := 0; i < len(args); i += 2 {
		if args[i] == "capture_date" {
			t.Errorf("unexpected capture_date attribute: %v", args)
		}
	}
}
