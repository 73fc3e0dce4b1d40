// Package testutil provides shared fakes of domain interfaces for use in
// tests across the codebase.
package testutil

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"fec-lake/internal/domain"
)

// === Object Store Fake ===

// MockObjectStore implements domain.ObjectStore for testing. When HeadFn or
// DownloadFn is nil the in-memory Objects map is served instead.
type MockObjectStore struct {
	HeadFn     func(ctx context.Context, key string) (domain.ObjectInfo, error)
	DownloadFn func(ctx context.Context, key string, w io.Writer) (int64, error)

	mu        sync.Mutex
	Objects   map[string]MockObject
	Heads     []string // keys passed to Head, in call order
	Downloads []string // keys passed to Download, in call order
}

// MockObject is an in-memory remote object.
type MockObject struct {
	Body         []byte
	LastModified time.Time
}

// Put stores an object, creating the map on first use.
func (m *MockObjectStore) Put(key string, body []byte, modified time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Objects == nil {
		m.Objects = make(map[string]MockObject)
	}
	m.Objects[key] = MockObject{Body: body, LastModified: modified}
}

// Head implements domain.ObjectStore.
func (m *MockObjectStore) Head(ctx context.Context, key string) (domain.ObjectInfo, error) {
	m.mu.Lock()
	m.Heads = append(m.Heads, key)
	m.mu.Unlock()
	if m.HeadFn != nil {
		return m.HeadFn(ctx, key)
	}
	m.mu.Lock()
	obj, ok := m.Objects[key]
	m.mu.Unlock()
	if !ok {
		return domain.ObjectInfo{}, fmt.Errorf("object %q not found", key)
	}
	return domain.ObjectInfo{Key: key, LastModified: obj.LastModified, Size: int64(len(obj.Body))}, nil
}

// Download implements domain.ObjectStore.
func (m *MockObjectStore) Download(ctx context.Context, key string, w io.Writer) (int64, error) {
	m.mu.Lock()
	m.Downloads = append(m.Downloads, key)
	m.mu.Unlock()
	if m.DownloadFn != nil {
		return m.DownloadFn(ctx, key, w)
	}
	m.mu.Lock()
	obj, ok := m.Objects[key]
	m.mu.Unlock()
	if !ok {
		return 0, fmt.Errorf("object %q not found", key)
	}
	return io.Copy(w, bytes.NewReader(obj.Body))
}

// DownloadCount returns the number of Download calls.
func (m *MockObjectStore) DownloadCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Downloads)
}

var _ domain.ObjectStore = (*MockObjectStore)(nil)

// === Artifact Verifier Fake ===

// MockVerifier implements domain.ArtifactVerifier for testing.
type MockVerifier struct {
	VerifyFn func(ctx context.Context, path string, schema domain.Schema, wantRows int64) error
	Paths    []string
}

// Verify implements domain.ArtifactVerifier.
func (m *MockVerifier) Verify(ctx context.Context, path string, schema domain.Schema, wantRows int64) error {
	m.Paths = append(m.Paths, path)
	if m.VerifyFn != nil {
		return m.VerifyFn(ctx, path, schema, wantRows)
	}
	return nil
}

var _ domain.ArtifactVerifier = (*MockVerifier)(nil)
