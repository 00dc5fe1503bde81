package mirror

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"mediakeep/internal/media"
)

// MemoryMirror keeps all objects in memory. Useful for testing. Safe for
// concurrent use.
type MemoryMirror struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

// NewMemoryMirror creates an empty in-memory mirror.
func NewMemoryMirror() *MemoryMirror {
	return &MemoryMirror{objects: make(map[string][]byte)}
}

// Put stores an object. Storing the same key again replaces it.
func (m *MemoryMirror) Put(ctx context.Context, key string, r io.Reader, size int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("reading object: %w", err)
	}
	if size >= 0 && int64(len(data)) != size {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, len(data))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	return nil
}

// Get retrieves the object at key.
func (m *MemoryMirror) Get(ctx context.Context, key string, w io.Writer) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.RLock()
	data, ok := m.objects[key]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("mirror object not found: %s", key)
	}
	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("writing object: %w", err)
	}
	return nil
}

// Exists reports whether an object is present at key.
func (m *MemoryMirror) Exists(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.objects[key]
	return ok, nil
}

var _ media.Mirror = (*MemoryMirror)(nil)
