package media

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"path/filepath"
	"sort"
)

// DuplicateGroup is a set of files confirmed byte-identical by content hash.
type DuplicateGroup struct {
	Hash  string
	Files []string
	Size  int64
}

// DuplicateReport carries both tiers of duplicate detection. CandidateGroups
// is the cheap (size, basename) pre-filter only — files that merely share a
// size and name. Groups holds the authoritative, content-hashed result.
type DuplicateReport struct {
	CandidateGroups int
	CandidateFiles  int
	Groups          []DuplicateGroup
	HashErrors      []FileError
}

// FindDuplicates runs the two-tier duplicate scan over the source tree.
// The cheap tier keys on (size, basename) to keep the expensive tier small;
// it is a pre-filter, never an answer. Candidate groups are then confirmed
// by SHA-256 over full file contents, memoized in the hash cache when one
// is configured.
func (s *Service) FindDuplicates(ctx context.Context) (*DuplicateReport, error) {
	files, err := s.supportedSource(ctx)
	if err != nil {
		return nil, err
	}

	// Tier 1: approximate grouping.
	candidates := make(map[string][]MediaFile)
	for _, f := range files {
		key := fmt.Sprintf("%d_%s", f.Size, filepath.Base(f.Path))
		candidates[key] = append(candidates[key], f)
	}

	report := &DuplicateReport{}
	byHash := make(map[string][]MediaFile)
	for _, group := range candidates {
		if len(group) < 2 {
			continue
		}
		report.CandidateGroups++
		report.CandidateFiles += len(group)

		// Tier 2: authoritative confirmation by content hash.
		for _, f := range group {
			if err := ctx.Err(); err != nil {
				return report, err
			}
			sum, err := s.contentHash(f)
			if err != nil {
				report.HashErrors = append(report.HashErrors, FileError{Path: f.Path, Err: err.Error()})
				s.logger.Warn("hashing failed", "path", f.Path, "error", err)
				continue
			}
			byHash[sum] = append(byHash[sum], f)
		}
	}

	for sum, group := range byHash {
		if len(group) < 2 {
			continue
		}
		dg := DuplicateGroup{Hash: sum, Size: group[0].Size}
		for _, f := range group {
			dg.Files = append(dg.Files, f.Path)
		}
		sort.Strings(dg.Files)
		report.Groups = append(report.Groups, dg)
	}
	sort.Slice(report.Groups, func(i, j int) bool { return report.Groups[i].Hash < report.Groups[j].Hash })

	s.logger.Info("duplicate scan complete",
		"candidate_groups", report.CandidateGroups,
		"confirmed_groups", len(report.Groups))
	return report, nil
}

// contentHash returns the SHA-256 of the file, consulting the cache first.
// Cache rows are keyed by (path, size, mtime); a stale row is recomputed
// and replaced.
func (s *Service) contentHash(f MediaFile) (string, error) {
	mtime := f.ModTime.UnixNano()
	if s.hashes != nil {
		if sum, ok, err := s.hashes.Lookup(f.Path, f.Size, mtime); err != nil {
			s.logger.Warn("hash cache lookup failed", "path", f.Path, "error", err)
		} else if ok {
			return sum, nil
		}
	}

	rc, err := s.fsmgr.Open(f.Path)
	if err != nil {
		return "", err
	}
	defer rc.Close()

	h := sha256.New()
	if _, err := io.Copy(h, rc); err != nil {
		return "", err
	}
	sum := hex.EncodeToString(h.Sum(nil))

	if s.hashes != nil {
		if err := s.hashes.Store(f.Path, f.Size, mtime, sum); err != nil {
			s.logger.Warn("hash cache store failed", "path", f.Path, "error", err)
		}
	}
	return sum, nil
}
