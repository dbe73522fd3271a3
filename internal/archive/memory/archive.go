// Package memory stores archive objects in-memory for development and tests.
package memory

import (
	"context"
	"fmt"
	"sync"
)

// Archive keeps objects in a map and returns pseudo URIs.
type Archive struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// New creates a new in-memory archive.
func New() *Archive {
	return &Archive{data: make(map[string][]byte)}
}

// PutObject persists the content and returns a memory:// URI.
func (a *Archive) PutObject(_ context.Context, path string, _ string, data []byte) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.data[path] = append([]byte(nil), data...)
	return fmt.Sprintf("memory://%s", path), nil
}

// Object returns the stored content for a path.
func (a *Archive) Object(path string) ([]byte, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	data, ok := a.data[path]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), data...), true
}

// Len reports the number of stored objects.
func (a *Archive) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.data)
}
