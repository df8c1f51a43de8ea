package scraper

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imgscraper/pkg/config"
	"imgscraper/pkg/errors"
	"imgscraper/pkg/logger"
	"imgscraper/pkg/proxy"
)

func testPNG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 4, 4))))
	return buf.Bytes()
}

// imageHost serves a PNG at /photo.JPG and counts requests
func imageHost(t *testing.T) (*httptest.Server, *int32) {
	t.Helper()
	data := testPNG(t)
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Header().Set("Content-Type", "image/png")
		w.Write(data)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

// resultsPage serves a page whose first absolute image points at imageURL
func resultsPage(t *testing.T, imageURL string) (*httptest.Server, *int32) {
	t.Helper()
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		fmt.Fprintf(w, `<html><body><img src="data:image/gif;base64,R0lGOD"><img src="%s"><img src="%s?second"></body></html>`,
			imageURL, imageURL)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func testConfig(t *testing.T, searchURL string) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Search.Keys = []string{"red cat!", "dog", "red cat!"}
	cfg.Search.URL = searchURL
	cfg.Search.NumImages = 3
	cfg.Search.RequestDelay = 10 * time.Millisecond
	cfg.Search.RequestTimeout = time.Second
	cfg.Proxy.Enabled = false
	cfg.Download.Timeout = time.Second
	cfg.Output.BaseDirectory = t.TempDir()
	return cfg
}

type stubSource struct {
	candidates []string
	err        error
	calls      int32
}

func (s *stubSource) ConnectionStrings(ctx context.Context) ([]string, error) {
	atomic.AddInt32(&s.calls, 1)
	return s.candidates, s.err
}

func TestNewRequiresSearchKey(t *testing.T) {
	cfg := config.DefaultConfig()
	_, err := New(cfg, logger.NewNopLogger())
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestNewUsesFirstUniqueKey(t *testing.T) {
	cfg := testConfig(t, "https://example.com/search")
	tl := logger.NewTestLogger()

	s, err := New(cfg, tl)
	require.NoError(t, err)
	assert.Equal(t, "red cat!", s.SearchKey())
	assert.Equal(t, filepath.Join(cfg.Output.BaseDirectory, "red cat!"), s.OutputDir())
	assert.True(t, tl.HasMessage("Only the first search key is used"))
}

func TestNewDisablesProxiesWithoutAPIKey(t *testing.T) {
	cfg := testConfig(t, "https://example.com/search")
	cfg.Proxy.Enabled = true
	cfg.Proxy.APIKey = ""
	tl := logger.NewTestLogger()

	_, err := New(cfg, tl)
	require.NoError(t, err)
	assert.False(t, cfg.Proxy.Enabled)
	assert.True(t, tl.HasMessage("No API key provided. Proxies will not be used."))
}

// Every queued reference is saved before Scrape returns
func TestScrapeWithoutProxies(t *testing.T) {
	images, imageHits := imageHost(t)
	search, searchHits := resultsPage(t, images.URL+"/photo.JPG")

	cfg := testConfig(t, search.URL+"/search")
	s, err := New(cfg, logger.NewNopLogger())
	require.NoError(t, err)
	obs := &countingObserver{}
	s.SetObserver(obs)

	start := time.Now()
	result, err := s.Scrape(context.Background())
	require.NoError(t, err)

	assert.GreaterOrEqual(t, time.Since(start), 3*cfg.Search.RequestDelay)
	assert.Equal(t, int32(3), atomic.LoadInt32(searchHits))
	// One image per page, never the second one
	assert.Equal(t, int32(3), atomic.LoadInt32(imageHits))
	assert.Equal(t, 3, result.Queued())
	assert.Equal(t, 0, result.Failed)
	assert.NoError(t, result.ShutdownErr)
	require.NotEmpty(t, result.Saved)
	assert.Len(t, obs.Downloads(), 3)

	for _, p := range result.Saved {
		assert.Equal(t, s.OutputDir(), filepath.Dir(p))
		assert.Regexp(t, `^redcat_\d{1,4}\.png$`, filepath.Base(p))
		_, err := os.Stat(p)
		assert.NoError(t, err)
	}
}

func TestScrapeKeepFilenames(t *testing.T) {
	images, _ := imageHost(t)
	search, _ := resultsPage(t, images.URL+"/path/photo.JPG")

	cfg := testConfig(t, search.URL)
	cfg.Search.NumImages = 1
	cfg.Download.KeepFilenames = true
	s, err := New(cfg, logger.NewNopLogger())
	require.NoError(t, err)

	result, err := s.Scrape(context.Background())
	require.NoError(t, err)
	require.Len(t, result.Saved, 1)
	assert.Equal(t, "photo.png", filepath.Base(result.Saved[0]))
}

func TestScrapeCountsDownloadFailures(t *testing.T) {
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "not an image")
	}))
	defer broken.Close()
	search, _ := resultsPage(t, broken.URL+"/x.jpg")

	cfg := testConfig(t, search.URL)
	cfg.Search.NumImages = 2
	s, err := New(cfg, logger.NewNopLogger())
	require.NoError(t, err)

	result, err := s.Scrape(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, result.Queued())
	assert.Equal(t, 2, result.Failed)
	assert.Empty(t, result.Saved)
}

// Ten candidates whose probes all fail: nothing is searched
func TestScrapeAbortsWithoutWorkingProxies(t *testing.T) {
	dead := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer dead.Close()
	search, searchHits := resultsPage(t, "https://img.example.com/a.png")

	candidates := make([]string, 10)
	for i := range candidates {
		candidates[i] = withUser(dead.URL, fmt.Sprintf("user%d", i))
	}

	cfg := testConfig(t, search.URL)
	cfg.Proxy.Enabled = true
	cfg.Proxy.APIKey = "key"
	tl := logger.NewTestLogger()
	s, err := New(cfg, tl)
	require.NoError(t, err)

	src := &stubSource{candidates: candidates}
	s.SetProxySource(src)
	s.SetValidator(proxy.NewValidator(search.URL, time.Second, logger.NewNopLogger()))
	obs := &countingObserver{}
	s.SetObserver(obs)

	result, err := s.Scrape(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, result.WorkingProxies)
	assert.Equal(t, 0, result.Queued())
	assert.Empty(t, result.Saved)
	assert.Equal(t, int32(0), atomic.LoadInt32(searchHits))
	assert.Equal(t, [2]int{10, 0}, obs.proxies)
	assert.True(t, tl.HasMessage("Failed to find any working proxies."))

	_, statErr := os.Stat(s.OutputDir())
	assert.True(t, os.IsNotExist(statErr))
}

func TestScrapeUpstreamUnavailable(t *testing.T) {
	cfg := testConfig(t, "https://example.com/search")
	cfg.Proxy.Enabled = true
	cfg.Proxy.APIKey = "key"
	tl := logger.NewTestLogger()
	s, err := New(cfg, tl)
	require.NoError(t, err)

	s.SetProxySource(&stubSource{err: errors.New(errors.ErrorTypeUpstreamUnavailable, "down")})

	result, err := s.Scrape(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, result.WorkingProxies)
	assert.True(t, tl.HasMessage("Proxy list unavailable"))
}

// Search traffic goes through the seeded proxy, image downloads do not
func TestScrapeThroughSeededProxy(t *testing.T) {
	images, imageHits := imageHost(t)

	var proxied int32
	proxySrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&proxied, 1)
		fmt.Fprintf(w, `<img src="%s/p.png">`, images.URL)
	}))
	defer proxySrv.Close()

	cfg := testConfig(t, "http://search.invalid/search")
	cfg.Search.NumImages = 2
	cfg.Proxy.Enabled = true
	cfg.Proxy.APIKey = "key"
	s, err := New(cfg, logger.NewNopLogger())
	require.NoError(t, err)

	src := &stubSource{}
	s.SetProxySource(src)
	s.SetWorkingProxies(proxy.WorkingSet{withUser(proxySrv.URL, "user")})

	result, err := s.Scrape(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(0), atomic.LoadInt32(&src.calls))
	assert.Equal(t, 1, result.WorkingProxies)
	assert.Equal(t, int32(2), atomic.LoadInt32(&proxied))
	assert.Equal(t, int32(2), atomic.LoadInt32(imageHits))
	assert.Len(t, result.Saved, 2)
}

// blockingFetcher never finishes until its context ends
type blockingFetcher struct{}

func (blockingFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestScrapeBoundedShutdown(t *testing.T) {
	search, _ := resultsPage(t, "https://img.example.com/a.png")

	cfg := testConfig(t, search.URL)
	cfg.Search.NumImages = 1
	cfg.Search.RequestDelay = 0
	cfg.Download.ShutdownTimeout = 50 * time.Millisecond
	s, err := New(cfg, logger.NewNopLogger())
	require.NoError(t, err)
	s.SetFetcher(blockingFetcher{})

	done := make(chan *Result, 1)
	go func() {
		result, err := s.Scrape(context.Background())
		assert.NoError(t, err)
		done <- result
	}()

	select {
	case result := <-done:
		require.Error(t, result.ShutdownErr)
		assert.ErrorIs(t, result.ShutdownErr, context.DeadlineExceeded)
	case <-time.After(5 * time.Second):
		t.Fatal("Scrape did not return after the shutdown timeout")
	}
}

func TestResultString(t *testing.T) {
	r := &Result{SearchKey: "cat", Search: Stats{Queued: 3}, Saved: []string{"a", "b"}, Failed: 1, Duration: 1500 * time.Millisecond}
	assert.Equal(t, "cat: 3 queued, 2 saved, 1 failed in 1.5s", r.String())
}

func withUser(serverURL, user string) string {
	return "http://" + user + ":pass@" + serverURL[len("http://"):] + "/"
}
