package testutil

import (
	"context"

	"mediakeep/internal/media"
)

// StubConverter reports success for every conversion unless the source is
// listed in Failures. Successful conversions register the destination in the
// attached mock filesystem so follow-up existence checks behave.
type StubConverter struct {
	FS       *MockFilesystemManager
	Failures map[string]string // source -> failure reason
	// CaptureDates are attached to the result for matching sources.
	CaptureDates map[string]media.CaptureDate
	// Calls records every source passed to Convert, in order.
	Calls []string
}

// NewStubConverter creates a converter writing into fs.
func NewStubConverter(fs *MockFilesystemManager) *StubConverter {
	return &StubConverter{
		FS:           fs,
		Failures:     make(map[string]string),
		CaptureDates: make(map[string]media.CaptureDate),
	}
}

// Fail marks a source as failing with the given reason.
func (c *StubConverter) Fail(src, reason string) {
	c.Failures[src] = reason
}

func (c *StubConverter) Convert(ctx context.Context, src, dst string) media.ConversionResult {
	c.Calls = append(c.Calls, src)
	if err := ctx.Err(); err != nil {
		return media.ConversionResult{Source: src, Dest: dst, Reason: err.Error()}
	}
	if reason, ok := c.Failures[src]; ok {
		return media.ConversionResult{Source: src, Dest: dst, Reason: reason}
	}

	content := []byte("jpeg:" + src)
	if c.FS != nil {
		c.FS.AddFile(dst, content)
	}
	result := media.ConversionResult{
		Source:        src,
		Dest:          dst,
		Success:       true,
		ExifPreserved: true,
		DestSize:      int64(len(content)),
	}
	if d, ok := c.CaptureDates[src]; ok {
		result.CaptureDate = &d
	}
	return result
}

var _ media.Converter = (*StubConverter)(nil)
