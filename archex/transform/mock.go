package transform

import (
	"context"
	"os"
	"path/filepath"
	"sync"
)

// Mock is an in-memory Transformer for tests. It records every request and
// writes the payload verbatim to DestPath.
type Mock struct {
	mu       sync.Mutex
	requests []Request
	failures map[string]error
}

var _ Transformer = (*Mock)(nil)

// NewMock constructs a Mock that succeeds for every record.
func NewMock() *Mock {
	return &Mock{failures: make(map[string]error)}
}

// FailFor makes Transform return err for the named record.
func (m *Mock) FailFor(name string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[name] = err
}

// Transform records req and writes Key+Data to req.DestPath.
func (m *Mock) Transform(ctx context.Context, req *Request) (*Result, error) {
	m.mu.Lock()
	cp := *req
	cp.Key = append([]byte(nil), req.Key...)
	cp.Data = append([]byte(nil), req.Data...)
	m.requests = append(m.requests, cp)
	err := m.failures[req.Name]
	m.mu.Unlock()

	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(req.DestPath), 0755); err != nil {
		return nil, err
	}
	content := append(append([]byte(nil), req.Key...), req.Data...)
	if err := os.WriteFile(req.DestPath, content, 0644); err != nil {
		return nil, err
	}
	return &Result{Written: int64(len(content))}, nil
}

// Requests returns the requests seen so far.
func (m *Mock) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Request(nil), m.requests...)
}
