package downloader

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"imgscraper/pkg/errors"
	"imgscraper/pkg/logger"
)

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 2, 2))))
	return buf.Bytes()
}

// mockFetcher serves canned bodies keyed by URL
type mockFetcher struct {
	bodies map[string][]byte
	delay  time.Duration
	calls  int32
}

func (m *mockFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	atomic.AddInt32(&m.calls, 1)
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	data, ok := m.bodies[url]
	if !ok {
		return nil, errors.WithStatus(errors.ErrorTypeDownload, http.StatusNotFound, "not found")
	}
	return data, nil
}

// mockStore records saved names in memory
type mockStore struct {
	mu      sync.Mutex
	names   []string
	saveErr error
}

func (m *mockStore) SaveImage(data []byte, name string) (string, error) {
	if m.saveErr != nil {
		return "", m.saveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.names = append(m.names, name)
	return filepath.Join("/out", name), nil
}

func (m *mockStore) Names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.names...)
}

func TestWorkerProcessesUntilSentinel(t *testing.T) {
	img := pngBytes(t)
	fetcher := &mockFetcher{bodies: map[string][]byte{
		"https://img.example.com/one.png": img,
		"https://img.example.com/two.png": img,
	}}
	store := &mockStore{}
	q := NewQueue()

	var results []DownloadResult
	w := NewWorker(0, q, fetcher, store, true, func(r DownloadResult) { results = append(results, r) }, logger.NewNopLogger())

	q.Put(DownloadJob{URL: "https://img.example.com/one.png", SearchKey: "cat"})
	q.Put(DownloadJob{URL: "https://img.example.com/two.png", SearchKey: "cat"})
	q.PutSentinel()
	q.Put(DownloadJob{URL: "https://img.example.com/after.png", SearchKey: "cat"})

	require.NoError(t, w.Run(context.Background()))

	assert.Equal(t, []string{"one.png", "two.png"}, store.Names())
	require.Len(t, results, 2)
	assert.True(t, results[0].Success)
	assert.Equal(t, "png", results[0].Format)
	assert.Equal(t, "/out/one.png", results[0].Path)

	// The job after the sentinel stays queued
	assert.Equal(t, 1, q.Len())
	assert.Equal(t, 1, q.Unfinished())
}

// A broken item is logged, acknowledged, and the next item is still saved
func TestWorkerContinuesAfterFailure(t *testing.T) {
	fetcher := &mockFetcher{bodies: map[string][]byte{
		"https://img.example.com/broken.gif": []byte("GIF89a truncated"),
		"https://img.example.com/good.png":   pngBytes(t),
	}}
	store := &mockStore{}
	q := NewQueue()
	tl := logger.NewTestLogger()

	var results []DownloadResult
	w := NewWorker(1, q, fetcher, store, false, func(r DownloadResult) { results = append(results, r) }, tl)

	q.Put(DownloadJob{URL: "https://img.example.com/broken.gif", SearchKey: "cat"})
	q.Put(DownloadJob{URL: "https://img.example.com/missing.png", SearchKey: "cat"})
	q.Put(DownloadJob{URL: "https://img.example.com/good.png", SearchKey: "cat"})
	q.PutSentinel()

	require.NoError(t, w.Run(context.Background()))

	require.Len(t, results, 3)
	assert.False(t, results[0].Success)
	assert.True(t, errors.IsType(results[0].Error, errors.ErrorTypeDownload))
	assert.False(t, results[1].Success)
	assert.True(t, results[2].Success)

	names := store.Names()
	require.Len(t, names, 1)
	assert.Regexp(t, `^cat_\d{1,4}\.png$`, names[0])

	assert.Equal(t, 2, tl.CountMessage("Download failed"))
	assert.Equal(t, 0, q.Unfinished())
	require.NoError(t, q.Join(context.Background()))
}

func TestWorkerSaveFailureIsAcknowledged(t *testing.T) {
	fetcher := &mockFetcher{bodies: map[string][]byte{"u": pngBytes(t)}}
	store := &mockStore{saveErr: fmt.Errorf("disk full")}
	q := NewQueue()

	var result DownloadResult
	w := NewWorker(0, q, fetcher, store, false, func(r DownloadResult) { result = r }, logger.NewNopLogger())
	q.Put(DownloadJob{URL: "u", SearchKey: "cat"})
	q.PutSentinel()

	require.NoError(t, w.Run(context.Background()))
	require.Error(t, result.Error)
	assert.Contains(t, result.Error.Error(), "disk full")
	assert.Equal(t, 0, q.Unfinished())
}

func TestWorkerStopsOnCancel(t *testing.T) {
	q := NewQueue()
	w := NewWorker(0, q, &mockFetcher{}, &mockStore{}, false, nil, logger.NewNopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("worker did not stop after cancel")
	}
}

func TestHTTPFetcher(t *testing.T) {
	img := pngBytes(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.UserAgent() != "imgscraper-test" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		switch r.URL.Path {
		case "/ok.png":
			w.Write(img)
		case "/big.png":
			w.Write(make([]byte, 1024))
		case "/slow.png":
			time.Sleep(200 * time.Millisecond)
			w.Write(img)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	f := NewHTTPFetcher(100*time.Millisecond, 512, "imgscraper-test")
	ctx := context.Background()

	data, err := f.Fetch(ctx, srv.URL+"/ok.png")
	require.NoError(t, err)
	assert.Equal(t, img, data)

	_, err = f.Fetch(ctx, srv.URL+"/missing.png")
	require.Error(t, err)
	var typed *errors.Error
	require.ErrorAs(t, err, &typed)
	assert.Equal(t, http.StatusNotFound, typed.Code)

	_, err = f.Fetch(ctx, srv.URL+"/big.png")
	assert.ErrorContains(t, err, "exceeds 512 bytes")

	_, err = f.Fetch(ctx, srv.URL+"/slow.png")
	assert.True(t, errors.IsType(err, errors.ErrorTypeDownload))
}
