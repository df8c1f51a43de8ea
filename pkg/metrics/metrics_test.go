package metrics

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imgscraper/internal/downloader"
	"imgscraper/pkg/errors"
	"imgscraper/pkg/logger"
)

func TestOnSearchOutcomes(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.OnSearch(1, 4, "https://img.example.com/a.png", nil)
	m.OnSearch(2, 4, "", nil)
	m.OnSearch(3, 4, "", errors.WithStatus(errors.ErrorTypeSearchRequest, 429, "throttled"))
	m.OnSearch(4, 4, "", errors.Wrap(errors.ErrorTypeSearchRequest, context.DeadlineExceeded, "timeout"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.SearchRequests.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SearchRequests.WithLabelValues("no_image")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SearchRequests.WithLabelValues("http_error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SearchRequests.WithLabelValues("timeout")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ImagesQueued))
}

func TestOnDownloadAndProxies(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.OnProxies(10, 2)
	m.OnDownload(downloader.DownloadResult{Success: true, Size: 100, Duration: time.Millisecond})
	m.OnDownload(downloader.DownloadResult{Success: false, Size: 20})

	assert.Equal(t, 10.0, testutil.ToFloat64(m.ProxyCandidates))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ProxiesWorking))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Downloads.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Downloads.WithLabelValues("failed")))
	assert.Equal(t, 120.0, testutil.ToFloat64(m.DownloadBytes))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.OnProxies(1, 1)
	m.OnSearch(1, 1, "x", nil)
	m.OnDownload(downloader.DownloadResult{})
	m.Watch("x", "y", func() int { return 1 })
}

func TestWatch(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	depth := 3
	m.Watch("queue_depth", "Entries waiting in the download queue", func() int { return depth })
	// Registering again replaces the previous gauge
	m.Watch("queue_depth", "Entries waiting in the download queue", func() int { return depth * 2 })

	expected := `
# HELP imgscraper_queue_depth Entries waiting in the download queue
# TYPE imgscraper_queue_depth gauge
imgscraper_queue_depth 6
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "imgscraper_queue_depth"))
}

func TestServe(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.OnProxies(5, 1)

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Serve(ctx, addr, reg, logger.NewNopLogger()) }()

	var body string
	require.Eventually(t, func() bool {
		resp, err := http.Get(fmt.Sprintf("http://%s/metrics", addr))
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		b, _ := io.ReadAll(resp.Body)
		body = string(b)
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	assert.Contains(t, body, "imgscraper_proxies_working 1")

	cancel()
	assert.NoError(t, <-done)
}
