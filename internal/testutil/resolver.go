package testutil

import (
	"context"
	"fmt"

	"mediakeep/internal/media"
)

// StubDateResolver serves capture dates from a fixed map. Paths without an
// entry report media.ErrNoDate, like a file with no embedded metadata.
type StubDateResolver struct {
	Dates map[string]media.CaptureDate
}

// NewStubDateResolver creates an empty resolver.
func NewStubDateResolver() *StubDateResolver {
	return &StubDateResolver{Dates: make(map[string]media.CaptureDate)}
}

// Set assigns a capture date to a path.
func (r *StubDateResolver) Set(path string, d media.CaptureDate) {
	r.Dates[path] = d
}

func (r *StubDateResolver) Resolve(ctx context.Context, path string, _ media.Class) (media.CaptureDate, error) {
	if err := ctx.Err(); err != nil {
		return media.CaptureDate{}, err
	}
	if d, ok := r.Dates[path]; ok {
		return d, nil
	}
	return media.CaptureDate{}, fmt.Errorf("resolving date for %s: %w", path, media.ErrNoDate)
}

var _ media.DateResolver = (*StubDateResolver)(nil)
