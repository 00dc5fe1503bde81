package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// probeResult represents the parsed output from an ffprobe inspection.
type probeResult struct {
	Streams []probeStream `json:"streams"`
	Format  probeFormat   `json:"format"`
}

type probeStream struct {
	Index     int               `json:"index"`
	CodecName string            `json:"codec_name"`
	CodecType string            `json:"codec_type"`
	Tags      map[string]string `json:"tags"`
}

type probeFormat struct {
	Filename   string            `json:"filename"`
	FormatName string            `json:"format_name"`
	Duration   string            `json:"duration"`
	Tags       map[string]string `json:"tags"`
}

// inspect executes ffprobe against the provided path and decodes the JSON
// response.
func inspect(ctx context.Context, binary string, path string) (probeResult, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffprobe"
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return probeResult{}, errors.New("ffprobe inspect: empty path")
	}

	cmd := exec.CommandContext(ctx, binary, "-v", "error", "-hide_banner", "-show_format", "-show_streams", "-of", "json", "--", path)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return probeResult{}, fmt.Errorf("ffprobe inspect: %w: %s", err, strings.TrimSpace(string(output)))
	}

	var result probeResult
	if err := json.Unmarshal(output, &result); err != nil {
		return probeResult{}, fmt.Errorf("ffprobe parse: %w", err)
	}
	return result, nil
}

// creationTimeTag finds a creation_time tag, preferring container-level
// format tags over per-stream tags.
func (r probeResult) creationTimeTag() (string, bool) {
	if v, ok := r.Format.Tags["creation_time"]; ok && v != "" {
		return v, true
	}
	for _, s := range r.Streams {
		if v, ok := s.Tags["creation_time"]; ok && v != "" {
			return v, true
		}
	}
	return "", false
}
