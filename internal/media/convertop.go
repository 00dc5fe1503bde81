package media

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
)

// ConvertOptions narrows and shapes a conversion run.
type ConvertOptions struct {
	// DryRun lists the planned source→destination pairs without converting.
	DryRun bool
	// Year/Month restrict the run to srcRoot/Year/Month when both are set.
	Year  string
	Month string
	// Progress, when non-nil, is called after each file with (done, total).
	Progress func(done, total int)
}

// ConvertOutcome accumulates one conversion run. Converted and Failed
// partition the attempted files; Planned is populated on dry runs instead.
type ConvertOutcome struct {
	Planned   []PlannedConversion
	Converted []ConversionResult
	Failed    []ConversionResult
}

type PlannedConversion struct {
	Source string
	Dest   string
}

// Preserved counts conversions that carried their metadata over.
func (o *ConvertOutcome) Preserved() int {
	n := 0
	for _, r := range o.Converted {
		if r.ExifPreserved {
			n++
		}
	}
	return n
}

// ConvertAll converts every supported file under the source root (or the
// selected YYYY/MM subtree) into the destination tree. A destination that
// already exists is overwritten without a pre-check: repeated runs simply
// re-convert. Per-file failures accumulate; they never abort the batch.
func (s *Service) ConvertAll(ctx context.Context, opts ConvertOptions) (*ConvertOutcome, error) {
	if (opts.Year == "") != (opts.Month == "") {
		return nil, fmt.Errorf("year and month must be given together")
	}

	root := s.roots.Source
	if opts.Year != "" {
		if !isDigits(opts.Year, 4) || !isDigits(opts.Month, 2) {
			return nil, fmt.Errorf("invalid year/month selection: %s/%s", opts.Year, opts.Month)
		}
		root = filepath.Join(s.roots.Source, opts.Year, opts.Month)
		if _, err := s.fsmgr.Stat(root); err != nil {
			return nil, fmt.Errorf("no folder for %s/%s: %w", opts.Year, opts.Month, err)
		}
	}
	if err := s.checkSourceRoot(); err != nil {
		return nil, err
	}

	files, err := s.fsmgr.Walk(ctx, root)
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", root, err)
	}

	// Only non-JPEG still images convert. JPEGs are already the target
	// format and videos are out of scope for conversion.
	var targets []MediaFile
	for _, f := range files {
		if f.Class == ClassImage || f.Class == ClassHEIC {
			targets = append(targets, f)
		}
	}

	outcome := &ConvertOutcome{}
	for i, f := range targets {
		if err := ctx.Err(); err != nil {
			return outcome, err
		}

		dest, err := DestPath(s.roots.Source, s.roots.Dest, f.Path)
		if err != nil {
			outcome.Failed = append(outcome.Failed, ConversionResult{
				Source: f.Path, Success: false, Reason: err.Error(),
			})
			continue
		}

		if opts.DryRun {
			outcome.Planned = append(outcome.Planned, PlannedConversion{Source: f.Path, Dest: dest})
			continue
		}

		result := s.conv.Convert(ctx, f.Path, dest)
		if result.Success {
			outcome.Converted = append(outcome.Converted, result)
			s.logConverted(result)
		} else {
			outcome.Failed = append(outcome.Failed, result)
			s.logger.Error("conversion failed", "src", f.Path, "error", result.Reason)
		}

		if opts.Progress != nil {
			opts.Progress(i+1, len(targets))
		}
	}

	if !opts.DryRun {
		s.logger.Info("conversion complete", "converted", len(outcome.Converted), "failed", len(outcome.Failed))
	}
	return outcome, nil
}

// ConvertFile converts a single file by path. Paths outside the source root
// land directly under the destination root by basename.
func (s *Service) ConvertFile(ctx context.Context, path string) (ConversionResult, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return ConversionResult{}, fmt.Errorf("resolving path: %w", err)
	}
	if !s.fsmgr.Exists(abs) {
		return ConversionResult{}, fmt.Errorf("file not found: %s", abs)
	}
	ext := NormalizeExt(abs)
	if c := Classify(ext); c != ClassImage && c != ClassHEIC {
		return ConversionResult{}, fmt.Errorf("not a convertible image type: %s", ext)
	}

	var dest string
	if strings.HasPrefix(abs, s.roots.Source+string(filepath.Separator)) {
		dest, err = DestPath(s.roots.Source, s.roots.Dest, abs)
		if err != nil {
			return ConversionResult{}, err
		}
	} else {
		base := filepath.Base(abs)
		dest = filepath.Join(s.roots.Dest, base[:len(base)-len(ext)]+".jpg")
	}

	result := s.conv.Convert(ctx, abs, dest)
	if result.Success {
		s.logConverted(result)
	} else {
		s.logger.Error("conversion failed", "src", abs, "error", result.Reason)
	}
	return result, nil
}

// logConverted records one successful conversion, including the capture date
// the converter read from the source's metadata when it found one.
func (s *Service) logConverted(r ConversionResult) {
	args := []any{"src", r.Source, "dest", r.Dest, "exif_preserved", r.ExifPreserved}
	if r.CaptureDate != nil {
		args = append(args,
			"capture_date", r.CaptureDate.Time.Format("2006-01-02"),
			"date_source", r.CaptureDate.Source.String())
	}
	s.logger.Info("converted", args...)
}
