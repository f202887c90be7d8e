package source

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/opencontainers/go-digest"
)

// MockSource is a simple in-memory Source implementation for tests.
type MockSource struct {
	mu    sync.RWMutex
	texts map[string][]byte
}

// NewMockSource constructs an empty MockSource.
func NewMockSource() *MockSource {
	return &MockSource{
		texts: make(map[string][]byte),
	}
}

// Open returns a reader over the text stored under ref.
func (m *MockSource) Open(ctx context.Context, ref string) (io.ReadCloser, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.texts[ref]
	if !ok {
		return nil, fmt.Errorf("mock source: archive not found: %s", ref)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// Add stores archive text under ref and returns its digest.
func (m *MockSource) Add(ref string, text []byte) digest.Digest {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.texts[ref] = append([]byte(nil), text...)
	return digest.FromBytes(text)
}
