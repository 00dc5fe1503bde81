package app

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"mediakeep/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	source := t.TempDir()
	cfg := config.NewConfig(source, t.TempDir())
	return cfg
}

func TestNewAndClose(t *testing.T) {
	cfg := testConfig(t)

	a, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer a.Close()

	if a.Service() == nil || a.Reports() == nil {
		t.Fatal("App wired with nil components")
	}
	if a.OperationID() == "" {
		t.Error("empty operation ID")
	}
	if len(a.Desyncs()) != 0 {
		t.Errorf("fresh tracking file reports desyncs: %v", a.Desyncs())
	}

	// The log file exists and carries the run header.
	data, err := os.ReadFile(filepath.Join(cfg.LogDir, "mediakeep.log"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "run started") {
		t.Errorf("log missing run header: %q", data)
	}

	if err := a.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestNewRefusesConcurrentRun(t *testing.T) {
	cfg := testConfig(t)

	a, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()

	if _, err := New(context.Background(), cfg); err == nil {
		t.Fatal("second New() succeeded while lock held")
	} else if !strings.Contains(err.Error(), "another mediakeep run") {
		t.Errorf("err = %v", err)
	}
}

func TestNewValidatesConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.SourceRoot = ""

	if _, err := New(context.Background(), cfg); err == nil {
		t.Error("New() accepted invalid config")
	}
}
