// Package metrics exposes scrape progress as Prometheus metrics.
package metrics

import (
	"context"
	stderrors "errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"imgscraper/internal/downloader"
	"imgscraper/pkg/errors"
	"imgscraper/pkg/logger"
)

const namespace = "imgscraper"

// Metrics holds every collector. A nil *Metrics is valid and records nothing.
type Metrics struct {
	reg prometheus.Registerer

	ProxyCandidates  prometheus.Gauge
	ProxiesWorking   prometheus.Gauge
	SearchRequests   *prometheus.CounterVec
	ImagesQueued     prometheus.Counter
	Downloads        *prometheus.CounterVec
	DownloadBytes    prometheus.Counter
	DownloadDuration prometheus.Histogram
}

// New registers the collectors on reg
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		reg: reg,
		ProxyCandidates: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "proxy_candidates",
			Help:      "Number of proxies returned by the listing service",
		}),
		ProxiesWorking: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "proxies_working",
			Help:      "Number of proxies that passed validation",
		}),
		SearchRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_requests_total",
			Help:      "Search page requests by outcome",
		}, []string{"outcome"}),
		ImagesQueued: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "images_queued_total",
			Help:      "Image references handed to the download workers",
		}),
		Downloads: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "downloads_total",
			Help:      "Image downloads by outcome",
		}, []string{"outcome"}),
		DownloadBytes: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "download_bytes_total",
			Help:      "Bytes fetched by the download workers",
		}),
		DownloadDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "download_duration_seconds",
			Help:      "Time to fetch, decode and save one image",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 8),
		}),
	}
}

// Watch registers a gauge whose value is read from fn at scrape time
func (m *Metrics) Watch(name, help string, fn func() int) {
	if m == nil {
		return
	}
	g := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
	}, func() float64 { return float64(fn()) })

	if err := m.reg.Register(g); err != nil {
		var are prometheus.AlreadyRegisteredError
		if stderrors.As(err, &are) {
			m.reg.Unregister(are.ExistingCollector)
			_ = m.reg.Register(g)
		}
	}
}

// OnProxies records the outcome of proxy validation
func (m *Metrics) OnProxies(candidates, working int) {
	if m == nil {
		return
	}
	m.ProxyCandidates.Set(float64(candidates))
	m.ProxiesWorking.Set(float64(working))
}

// OnSearch records one search iteration
func (m *Metrics) OnSearch(done, total int, imageURL string, err error) {
	if m == nil {
		return
	}
	switch {
	case err != nil:
		m.SearchRequests.WithLabelValues(outcome(err)).Inc()
	case imageURL == "":
		m.SearchRequests.WithLabelValues("no_image").Inc()
	default:
		m.SearchRequests.WithLabelValues("ok").Inc()
		m.ImagesQueued.Inc()
	}
}

// OnDownload records one download result
func (m *Metrics) OnDownload(result downloader.DownloadResult) {
	if m == nil {
		return
	}
	if result.Success {
		m.Downloads.WithLabelValues("ok").Inc()
	} else {
		m.Downloads.WithLabelValues("failed").Inc()
	}
	m.DownloadBytes.Add(float64(result.Size))
	m.DownloadDuration.Observe(result.Duration.Seconds())
}

func outcome(err error) string {
	var typed *errors.Error
	if stderrors.As(err, &typed) && typed.Code != 0 {
		return "http_error"
	}
	if stderrors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	return "network_error"
}

// Serve exposes gatherer on addr under /metrics until ctx is done
func Serve(ctx context.Context, addr string, gatherer prometheus.Gatherer, log logger.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	log.InfoWithFields("Metrics server listening", logger.Fields{"addr": addr})

	select {
	case err := <-errCh:
		if stderrors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
