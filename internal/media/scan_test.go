package media_test

import (
	"context"
	"reflect"
	"testing"
	"time"

	"mediakeep/internal/media"
)

func TestScanLibrary(t *testing.T) {
	e := newEnv(t)
	e.fs.AddFile("/photos/2022/07/IMG_1.heic", make([]byte, 100))
	e.fs.AddFile("/photos/2022/07/IMG_2.HEIC", make([]byte, 50))
	e.fs.AddFile("/photos/2022/07/IMG_3.jpg", make([]byte, 30))
	e.fs.AddFile("/photos/scan.png", make([]byte, 20))
	e.fs.AddFile("/photos/clip.mov", make([]byte, 500))
	e.fs.AddFile("/photos/notes.txt", make([]byte, 10))
	e.fs.AddFile("/photos/.dtrash/junk.heic", make([]byte, 999))

	sum, err := e.svc.ScanLibrary(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if sum.Total != 5 {
		t.Errorf("Total = %d, want 5", sum.Total)
	}
	if len(sum.HEIC) != 2 || sum.HEICSize != 150 {
		t.Errorf("HEIC = %d files / %d bytes, want 2 / 150", len(sum.HEIC), sum.HEICSize)
	}
	if len(sum.AlreadyJPEG) != 1 {
		t.Errorf("AlreadyJPEG = %d, want 1", len(sum.AlreadyJPEG))
	}
	if len(sum.NeedsConversion) != 1 || sum.ConversionSize != 20 {
		t.Errorf("NeedsConversion = %d / %d bytes, want 1 / 20", len(sum.NeedsConversion), sum.ConversionSize)
	}
	if len(sum.Videos) != 1 {
		t.Errorf("Videos = %d, want 1", len(sum.Videos))
	}
	if sum.TotalSize != 700 {
		t.Errorf("TotalSize = %d, want 700", sum.TotalSize)
	}
	if sum.ByExtension[".heic"] != 2 || sum.ByExtension[".png"] != 1 {
		t.Errorf("ByExtension = %v", sum.ByExtension)
	}
	if _, ok := sum.ByExtension[".txt"]; ok {
		t.Error("unsupported extension leaked into the summary")
	}
}

func TestReportByYear(t *testing.T) {
	e := newEnv(t)
	// Structurally organized: year comes from the folder, resolver untouched.
	e.fs.AddFile("/photos/2019/03/a.jpg", []byte("x"))
	e.fs.AddFile("/photos/2019/03/b.jpg", []byte("x"))
	// Loose file with an embedded date.
	e.fs.AddFile("/photos/loose.heic", []byte("x"))
	e.dates.Set("/photos/loose.heic", media.CaptureDate{
		Time: time.Date(2021, 5, 1, 0, 0, 0, 0, time.UTC), Source: media.SourceContainer,
	})
	// Loose file with no date at all.
	e.fs.AddFile("/photos/mystery.png", []byte("x"))

	report, err := e.svc.ReportByYear(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if got := report.Counts["2019"][".jpg"]; got != 2 {
		t.Errorf("2019 .jpg count = %d, want 2", got)
	}
	if got := report.Counts["2021"][".heic"]; got != 1 {
		t.Errorf("2021 .heic count = %d, want 1", got)
	}
	if got := report.Counts["Unknown"][".png"]; got != 1 {
		t.Errorf("Unknown .png count = %d, want 1", got)
	}
	if !reflect.DeepEqual(report.UnknownFiles, []string{"/photos/mystery.png"}) {
		t.Errorf("UnknownFiles = %v", report.UnknownFiles)
	}
	if years := report.Years(); !reflect.DeepEqual(years, []string{"2019", "2021", "Unknown"}) {
		t.Errorf("Years() = %v", years)
	}
}

func TestReportByYearNeverUsesMtime(t *testing.T) {
	e := newEnv(t)
	e.fs.AddFileModTime("/photos/dated-only-by-mtime.jpg", []byte("x"),
		time.Date(2018, 2, 2, 0, 0, 0, 0, time.UTC))

	report, err := e.svc.ReportByYear(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := report.Counts["2018"]; ok {
		t.Error("mtime year leaked into the report")
	}
	if len(report.UnknownFiles) != 1 {
		t.Errorf("UnknownFiles = %v, want one entry", report.UnknownFiles)
	}
}

func TestAnalyzeOrganization(t *testing.T) {
	e := newEnv(t)
	e.fs.AddFile("/photos/2020/01/a.jpg", []byte("x"))
	e.fs.AddFile("/photos/2020/01/b.jpg", []byte("x"))
	e.fs.AddFile("/photos/2021/12/c.heic", []byte("x"))
	e.fs.AddFile("/photos/loose.png", []byte("x"))

	report, err := e.svc.AnalyzeOrganization(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if report.TotalFiles != 4 || report.OrganizedFiles != 3 {
		t.Errorf("organized %d/%d, want 3/4", report.OrganizedFiles, report.TotalFiles)
	}
	if got := report.Percentage(); got != 75 {
		t.Errorf("Percentage = %v, want 75", got)
	}
	if !reflect.DeepEqual(report.UnorganizedFiles, []string{"/photos/loose.png"}) {
		t.Errorf("UnorganizedFiles = %v", report.UnorganizedFiles)
	}
	if !reflect.DeepEqual(report.YearFolders, []string{"2020", "2021"}) {
		t.Errorf("YearFolders = %v", report.YearFolders)
	}
	if report.FolderCounts["2020/01"] != 2 || report.FolderCounts["2021/12"] != 1 {
		t.Errorf("FolderCounts = %v", report.FolderCounts)
	}
}

func TestAnalyzeOrganizationEmptyTree(t *testing.T) {
	e := newEnv(t)
	report, err := e.svc.AnalyzeOrganization(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if report.Percentage() != 0 {
		t.Errorf("Percentage on empty tree = %v, want 0", report.Percentage())
	}
}

func TestNonMediaFiles(t *testing.T) {
	e := newEnv(t)
	e.fs.AddFile("/photos/2020/01/a.jpg", []byte("x"))
	e.fs.AddFile("/photos/2020/01/a.xmp", []byte("x")) // known sidecar
	e.fs.AddFile("/photos/raw/shot.arw", []byte("x"))  // known raw
	e.fs.AddFile("/photos/notes.txt", []byte("x"))
	e.fs.AddFile("/photos/todo.TXT", []byte("x"))
	e.fs.AddFile("/photos/README", []byte("x"))

	groups, err := e.svc.NonMediaFiles(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if len(groups) != 2 {
		t.Fatalf("groups = %v, want .txt and (none)", groups)
	}
	if got := groups[".txt"]; len(got) != 2 {
		t.Errorf(".txt group = %v, want 2 files", got)
	}
	if got := groups["(none)"]; !reflect.DeepEqual(got, []string{"/photos/README"}) {
		t.Errorf("(none) group = %v", got)
	}
}
