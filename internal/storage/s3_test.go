package storage

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeS3 serves a single bucket over the path-style S3 REST API.
type fakeS3 struct {
	bucket   string
	objects  map[string][]byte
	modified time.Time
	status   int // forced status for every request when non-zero
	requests atomic.Int32
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.requests.Add(1)
	if f.status != 0 {
		w.WriteHeader(f.status)
		return
	}
	prefix := "/" + f.bucket + "/"
	if len(r.URL.Path) <= len(prefix) || r.URL.Path[:len(prefix)] != prefix {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	body, ok := f.objects[r.URL.Path[len(prefix):]]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		if r.Method == http.MethodGet {
			_, _ = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>missing</Message></Error>`))
		}
		return
	}

	w.Header().Set("Last-Modified", f.modified.UTC().Format(http.TimeFormat))
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.Header().Set("Content-Type", "application/zip")
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodGet {
		_, _ = w.Write(body)
	}
}

func newTestStore(t *testing.T, fake *fakeS3) *S3Store {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	store, err := NewS3Store(S3Options{
		Bucket:   fake.bucket,
		Region:   "us-gov-west-1",
		Endpoint: srv.URL,
	})
	require.NoError(t, err)
	return store
}

func TestS3Store_Head(t *testing.T) {
	t.Parallel()

	modified := time.Date(2024, 6, 1, 12, 30, 0, 0, time.UTC)
	fake := &fakeS3{
		bucket:   "bulk",
		objects:  map[string][]byte{"bulk-downloads/2024/cm24.zip": []byte("zipdata")},
		modified: modified,
	}
	store := newTestStore(t, fake)

	info, err := store.Head(context.Background(), "bulk-downloads/2024/cm24.zip")
	require.NoError(t, err)
	assert.True(t, modified.Equal(info.LastModified))
	assert.Equal(t, int64(7), info.Size)
	assert.Equal(t, "bulk-downloads/2024/cm24.zip", info.Key)
}

func TestS3Store_HeadNotFound(t *testing.T) {
	t.Parallel()

	fake := &fakeS3{bucket: "bulk", objects: map[string][]byte{}}
	store := newTestStore(t, fake)

	_, err := store.Head(context.Background(), "bulk-downloads/2024/nope.zip")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrObjectNotFound), "got %v", err)
}

func TestS3Store_Download(t *testing.T) {
	t.Parallel()

	payload := bytes.Repeat([]byte("C00000001|COMMITTEE|"), 1000)
	fake := &fakeS3{
		bucket:   "bulk",
		objects:  map[string][]byte{"k.zip": payload},
		modified: time.Now(),
	}
	store := newTestStore(t, fake)

	var buf bytes.Buffer
	n, err := store.Download(context.Background(), "k.zip", &buf)
	require.NoError(t, err)
	assert.Equal(t, int64(len(payload)), n)
	assert.Equal(t, payload, buf.Bytes())
}

func TestS3Store_DownloadNotFound(t *testing.T) {
	t.Parallel()

	fake := &fakeS3{bucket: "bulk", objects: map[string][]byte{}}
	store := newTestStore(t, fake)

	_, err := store.Download(context.Background(), "missing.zip", &bytes.Buffer{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrObjectNotFound), "got %v", err)
}

func TestS3Store_SingleAttempt(t *testing.T) {
	t.Parallel()

	fake := &fakeS3{bucket: "bulk", status: http.StatusServiceUnavailable}
	store := newTestStore(t, fake)

	_, err := store.Head(context.Background(), "k.zip")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrObjectNotFound))
	assert.Equal(t, int32(1), fake.requests.Load(), "requests must not be retried")
}

func TestNewS3Store_Validation(t *testing.T) {
	t.Parallel()

	_, err := NewS3Store(S3Options{Region: "us-east-1"})
	assert.Error(t, err)

	_, err = NewS3Store(S3Options{Bucket: "b"})
	assert.Error(t, err)

	store, err := NewS3Store(S3Options{Bucket: "b", Region: "us-east-1", KeyID: "k", Secret: "s"})
	require.NoError(t, err)
	assert.Equal(t, "b", store.Bucket())
}
