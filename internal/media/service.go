package media

import (
	"context"
	"fmt"
)

// Roots carries the three directory trees the pipeline works across. They
// are passed explicitly to the service; nothing in this package has default
// locations.
type Roots struct {
	Source  string // originals, possibly already in YYYY/MM layout
	Dest    string // converted JPEG tree mirroring Source
	Archive string // archived originals mirroring Source
}

// Service orchestrates the maintenance pipeline: scan, convert, organize,
// reconcile, archive, restore. Processing is single-threaded and sequential;
// one file is fully handled before the next, and long walks honor ctx
// between files.
type Service struct {
	roots    Roots
	excluded []string

	fsmgr   FilesystemManager
	dates   DateResolver
	conv    Converter
	tracker Tracker
	hashes  HashCache // may be nil: every exact-tier hash is recomputed
	mirror  Mirror    // may be nil: archive stays local-only
	enc     Encryptor // may be nil: mirror payloads stay plaintext
	logger  Logger
	clock   Clock
	idgen   IDGenerator
}

// NewService wires a Service from its dependencies. hashes, mirror and enc
// are optional and may be nil.
func NewService(roots Roots, excluded []string, fsmgr FilesystemManager, dates DateResolver, conv Converter, tracker Tracker, hashes HashCache, mirror Mirror, enc Encryptor, logger Logger, clock Clock, idgen IDGenerator) *Service {
	return &Service{
		roots:    roots,
		excluded: excluded,
		fsmgr:    fsmgr,
		dates:    dates,
		conv:     conv,
		tracker:  tracker,
		hashes:   hashes,
		mirror:   mirror,
		enc:      enc,
		logger:   logger,
		clock:    clock,
		idgen:    idgen,
	}
}

// Roots returns the configured tree roots.
func (s *Service) Roots() Roots { return s.roots }

// checkSourceRoot verifies the source tree exists. A missing source root is
// the one per-run condition that aborts an operation outright.
func (s *Service) checkSourceRoot() error {
	info, err := s.fsmgr.Stat(s.roots.Source)
	if err != nil {
		return fmt.Errorf("source directory does not exist: %s: %w", s.roots.Source, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("source path is not a directory: %s", s.roots.Source)
	}
	return nil
}

// walkSource enumerates all regular files under the source root.
func (s *Service) walkSource(ctx context.Context) ([]MediaFile, error) {
	if err := s.checkSourceRoot(); err != nil {
		return nil, err
	}
	files, err := s.fsmgr.Walk(ctx, s.roots.Source)
	if err != nil {
		return nil, fmt.Errorf("walking source tree: %w", err)
	}
	return files, nil
}

// supportedSource enumerates just the allow-listed media files.
func (s *Service) supportedSource(ctx context.Context) ([]MediaFile, error) {
	all, err := s.walkSource(ctx)
	if err != nil {
		return nil, err
	}
	files := all[:0:0]
	for _, f := range all {
		if f.Class != ClassUnsupported {
			files = append(files, f)
		}
	}
	return files, nil
}
