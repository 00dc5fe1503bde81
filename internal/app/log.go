package app

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

const logTimestampLayout = "2006-01-02T15:04:05Z"

// runHandler is a custom slog.Handler that formats log records as:
//
//	<timestamp>\t<level>\t<opID>\t<message>\t<key=value ...>
//
// Each record is assembled in memory and written in a single call, so lines
// stay whole even with the log file and stderr sharing the writer.
type runHandler struct {
	w     io.Writer
	opID  string
	attrs []slog.Attr
}

func (h *runHandler) Enabled(_ context.Context, _ slog.Level) bool { return true }

func (h *runHandler) Handle(_ context.Context, r slog.Record) error {
	var line bytes.Buffer
	line.WriteString(r.Time.UTC().Format(logTimestampLayout))
	for _, field := range []string{r.Level.String(), h.opID, r.Message} {
		line.WriteByte('\t')
		line.WriteString(field)
	}
	for _, a := range h.attrs {
		appendAttr(&line, a)
	}
	r.Attrs(func(a slog.Attr) bool {
		appendAttr(&line, a)
		return true
	})
	line.WriteByte('\n')

	_, err := h.w.Write(line.Bytes())
	return err
}

func appendAttr(line *bytes.Buffer, a slog.Attr) {
	fmt.Fprintf(line, "\t%s=%v", a.Key, a.Value)
}

func (h *runHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &runHandler{
		w:     h.w,
		opID:  h.opID,
		attrs: append(append([]slog.Attr{}, h.attrs...), attrs...),
	}
}

func (h *runHandler) WithGroup(string) slog.Handler { return h }

// newLogger creates a structured logger that writes to both
// logDir/mediakeep.log and stderr. It returns the slog.Logger, the open log
// file (for cleanup), and any error.
func newLogger(logDir string, opID string) (*slog.Logger, *os.File, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, nil, fmt.Errorf("creating log directory: %w", err)
	}

	logPath := filepath.Join(logDir, "mediakeep.log")
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}

	w := io.MultiWriter(f, os.Stderr)
	handler := &runHandler{w: w, opID: opID}
	return slog.New(handler), f, nil
}

// slogAdapter wraps *slog.Logger to satisfy the media.Logger interface.
type slogAdapter struct {
	l *slog.Logger
}

func (a *slogAdapter) Debug(msg string, args ...any) { a.l.Debug(msg, args...) }
func (a *slogAdapter) Info(msg string, args ...any)  { a.l.Info(msg, args...) }
func (a *slogAdapter) Warn(msg string, args ...any)  { a.l.Warn(msg, args...) }
func (a *slogAdapter) Error(msg string, args ...any) { a.l.Error(msg, args...) }
