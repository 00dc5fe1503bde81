package media

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
)

// ErrTargetExists is returned by FilesystemManager.Move when the destination
// already holds a file. Organize treats it as a per-file collision, never an
// overwrite.
var ErrTargetExists = errors.New("target already exists")

// OrganizeOutcome accumulates one organize run. Skips are reported, not
// errors: a file with no capture date stays where it is.
type OrganizeOutcome struct {
	Moved         []MovedFile
	SkippedNoDate []string
	Collisions    []Collision
	Errors        []FileError
}

type MovedFile struct {
	From string
	To   string
	Date CaptureDate
}

type Collision struct {
	Source string
	Target string
}

type FileError struct {
	Path string
	Err  string
}

// OrganizeByDate moves supported files that are not already under a YYYY/MM
// folder into srcRoot/YYYY/MM by capture date. Files without an embedded
// date fall back to filesystem mtime only when allowMtime is set; otherwise
// they are skipped and reported. Name collisions at the target are skipped,
// never overwritten or renamed around.
func (s *Service) OrganizeByDate(ctx context.Context, allowMtime bool) (*OrganizeOutcome, error) {
	files, err := s.supportedSource(ctx)
	if err != nil {
		return nil, err
	}

	outcome := &OrganizeOutcome{}
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return outcome, err
		}
		// Path structure is authoritative: a file already under YYYY/MM is
		// never re-validated against its metadata.
		if IsDateOrganized(s.roots.Source, f.Path) {
			continue
		}

		date, err := s.dates.Resolve(ctx, f.Path, f.Class)
		switch {
		case err == nil:
			// embedded date, proceed
		case errors.Is(err, ErrNoDate) && allowMtime:
			date = CaptureDate{Time: f.ModTime, Source: SourceModTime}
		case errors.Is(err, ErrNoDate):
			outcome.SkippedNoDate = append(outcome.SkippedNoDate, f.Path)
			s.logger.Info("skipped, no capture date", "path", f.Path)
			continue
		default:
			outcome.Errors = append(outcome.Errors, FileError{Path: f.Path, Err: err.Error()})
			s.logger.Warn("date resolution failed", "path", f.Path, "error", err)
			continue
		}

		target := filepath.Join(s.roots.Source,
			fmt.Sprintf("%04d", date.Time.Year()),
			fmt.Sprintf("%02d", int(date.Time.Month())),
			filepath.Base(f.Path))

		if s.fsmgr.Exists(target) {
			outcome.Collisions = append(outcome.Collisions, Collision{Source: f.Path, Target: target})
			s.logger.Warn("target exists, skipping", "path", f.Path, "target", target)
			continue
		}
		if err := s.fsmgr.Move(f.Path, target); err != nil {
			if errors.Is(err, ErrTargetExists) {
				outcome.Collisions = append(outcome.Collisions, Collision{Source: f.Path, Target: target})
				continue
			}
			outcome.Errors = append(outcome.Errors, FileError{Path: f.Path, Err: err.Error()})
			s.logger.Error("move failed", "path", f.Path, "error", err)
			continue
		}

		outcome.Moved = append(outcome.Moved, MovedFile{From: f.Path, To: target, Date: date})
		s.logger.Info("organized", "from", f.Path, "to", target, "source", date.Source.String())
	}

	s.logger.Info("organize complete",
		"moved", len(outcome.Moved),
		"skipped_no_date", len(outcome.SkippedNoDate),
		"collisions", len(outcome.Collisions),
		"errors", len(outcome.Errors))
	return outcome, nil
}
