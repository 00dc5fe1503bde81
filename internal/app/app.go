// Package app wires the configuration into a runnable service and owns the
// per-run resources: the run lock, the log file, and the hash cache handle.
package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"mediakeep/internal/config"
	"mediakeep/internal/convert"
	"mediakeep/internal/encryption"
	"mediakeep/internal/fs"
	"mediakeep/internal/hashcache"
	"mediakeep/internal/media"
	"mediakeep/internal/metadata"
	"mediakeep/internal/mirror"
	"mediakeep/internal/report"
	"mediakeep/internal/tracking"
)

// App is the application layer between the CLI and the media service. It
// constructs all dependencies from config and releases them on Close. Only
// one App may be live per home directory; a file lock enforces that across
// processes.
type App struct {
	cfg     *config.Config
	svc     *media.Service
	reports *report.Writer
	tracker *tracking.Store
	hashes  *hashcache.SQLiteCache
	mirror  media.Mirror
	enc     media.Encryptor
	lock    *flock.Flock
	logFile *os.File
	opID    string
}

// New creates a fully wired App. The caller must call Close when done.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.HomeDir, 0755); err != nil {
		return nil, fmt.Errorf("creating home directory: %w", err)
	}

	lock := flock.New(filepath.Join(cfg.HomeDir, "mediakeep.lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquiring run lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("another mediakeep run is active (lock: %s)", lock.Path())
	}

	opID := media.UUIDGenerator{}.New()[:8]
	logger, logFile, err := newLogger(cfg.LogDir, opID)
	if err != nil {
		lock.Unlock()
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	log := &slogAdapter{l: logger}

	fail := func(err error) (*App, error) {
		logFile.Close()
		lock.Unlock()
		return nil, err
	}

	tracker, err := tracking.Load(cfg.Tracking.Path, log)
	if err != nil {
		return fail(fmt.Errorf("loading tracking file: %w", err))
	}
	for _, d := range tracker.Desyncs() {
		if d.Confirmed {
			log.Warn("archived original missing from archive",
				"original", d.Original, "archive_path", d.Entry.ArchivePath)
		} else {
			log.Warn("provisional archive entry found, previous run may have crashed",
				"original", d.Original, "archive_exists", d.ArchiveExists)
		}
	}

	var hashes media.HashCache
	var cache *hashcache.SQLiteCache
	if cfg.HashCache.Enabled {
		cache, err = hashcache.Open(cfg.HashCache.Path)
		if err != nil {
			return fail(fmt.Errorf("opening hash cache: %w", err))
		}
		hashes = cache
	}

	var m media.Mirror
	if cfg.Mirror.Enabled() {
		m, err = mirror.NewFromConfig(ctx, cfg.Mirror)
		if err != nil {
			if cache != nil {
				cache.Close()
			}
			return fail(fmt.Errorf("creating mirror: %w", err))
		}
	}
	enc := encryption.NewFromConfig(cfg.Encryption)

	fsmgr := fs.NewOSFilesystemManager(cfg.Excluded)
	dates := metadata.NewResolver(cfg.FFProbePath, log)
	engine := convert.NewEngine(cfg.JPEGQuality, log)

	roots := media.Roots{
		Source:  cfg.SourceRoot,
		Dest:    cfg.DestRoot,
		Archive: cfg.ArchiveRoot,
	}
	svc := media.NewService(roots, cfg.Excluded, fsmgr, dates, engine, tracker,
		hashes, m, enc, log, media.RealClock{}, media.UUIDGenerator{})

	reports := report.NewWriter(filepath.Join(cfg.HomeDir, "reports"), media.RealClock{})

	log.Info("run started", "source", cfg.SourceRoot)
	return &App{
		cfg:     cfg,
		svc:     svc,
		reports: reports,
		tracker: tracker,
		hashes:  cache,
		mirror:  m,
		enc:     enc,
		lock:    lock,
		logFile: logFile,
		opID:    opID,
	}, nil
}

// Service returns the wired media service.
func (a *App) Service() *media.Service { return a.svc }

// Reports returns the report writer for this run.
func (a *App) Reports() *report.Writer { return a.reports }

// Config returns the configuration the App was built from.
func (a *App) Config() *config.Config { return a.cfg }

// Desyncs returns tracking entries left provisional by an interrupted run.
func (a *App) Desyncs() []tracking.Desync { return a.tracker.Desyncs() }

// Entries returns all confirmed archive entries keyed by original path.
func (a *App) Entries() map[string]media.ArchiveEntry { return a.tracker.Entries() }

// Mirror returns the configured mirror store, or nil when mirroring is off.
func (a *App) Mirror() media.Mirror { return a.mirror }

// Encryptor returns the mirror payload encryptor, or nil when disabled.
func (a *App) Encryptor() media.Encryptor { return a.enc }

// OperationID identifies this run in the log file.
func (a *App) OperationID() string { return a.opID }

// Close releases the hash cache, the log file, and the run lock.
func (a *App) Close() error {
	var firstErr error
	if a.hashes != nil {
		if err := a.hashes.Close(); err != nil {
			firstErr = fmt.Errorf("closing hash cache: %w", err)
		}
	}
	if a.logFile != nil {
		a.logFile.Close()
	}
	if err := a.lock.Unlock(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("releasing run lock: %w", err)
	}
	return firstErr
}
