package scraper

import (
	"context"
	"fmt"
	"time"

	"imgscraper/internal/downloader"
	"imgscraper/pkg/config"
	"imgscraper/pkg/errors"
	"imgscraper/pkg/logger"
	"imgscraper/pkg/proxy"
	"imgscraper/pkg/ratelimit"
	"imgscraper/pkg/storage"
)

// listTimeout bounds the proxy listing request
const listTimeout = 30 * time.Second

// ProxySource lists candidate proxy connection strings
type ProxySource interface {
	ConnectionStrings(ctx context.Context) ([]string, error)
}

// ProxyValidator filters candidates down to working proxies
type ProxyValidator interface {
	Validate(ctx context.Context, candidates []string) proxy.WorkingSet
}

// Result summarizes one scrape run
type Result struct {
	SearchKey      string
	OutputDir      string
	WorkingProxies int
	Search         Stats
	Saved          []string
	Failed         int
	// ShutdownErr is set when workers did not finish within the shutdown timeout
	ShutdownErr error
	Duration    time.Duration
}

// Queued returns how many images were handed to the workers
func (r *Result) Queued() int {
	return r.Search.Queued
}

// Scraper orchestrates proxy validation, searching and downloading
type Scraper struct {
	config    *config.Config
	searchKey string
	source    ProxySource
	validator ProxyValidator
	fetcher   downloader.ImageFetcher
	observer  Observer
	logger    logger.Logger

	working proxy.WorkingSet
}

// New creates a Scraper for the first search key in cfg. Proxies are turned
// off with a warning when enabled without an API key.
func New(cfg *config.Config, log logger.Logger) (*Scraper, error) {
	if log == nil {
		log = logger.GetLogger()
	}

	keys := config.UniqueKeys(cfg.Search.Keys)
	if len(keys) == 0 {
		return nil, errors.New(errors.ErrorTypeConfig, "at least one search key is required")
	}
	if len(keys) > 1 {
		log.WarnWithFields("Only the first search key is used", logger.Fields{
			"search_key": keys[0],
			"ignored":    keys[1:],
		})
	}

	if cfg.Proxy.Enabled && cfg.Proxy.APIKey == "" {
		log.Warn("No API key provided. Proxies will not be used.")
		cfg.Proxy.Enabled = false
	}

	return &Scraper{
		config:    cfg,
		searchKey: keys[0],
		source: proxy.NewPool(cfg.Proxy.APIBaseURL, cfg.Proxy.APIKey,
			cfg.Proxy.MaxCandidates, listTimeout, log),
		validator: proxy.NewValidator(cfg.Proxy.ProbeURL, cfg.Proxy.ProbeTimeout, log),
		fetcher: downloader.NewHTTPFetcher(cfg.Download.Timeout,
			cfg.Download.MaxImageBytes, cfg.Search.UserAgent),
		observer: nopObserver{},
		logger:   log,
	}, nil
}

// SetObserver sets the receiver of progress events
func (s *Scraper) SetObserver(o Observer) {
	if o == nil {
		o = nopObserver{}
	}
	s.observer = o
}

// SetProxySource replaces the proxy listing client
func (s *Scraper) SetProxySource(src ProxySource) {
	s.source = src
}

// SetValidator replaces the proxy validator
func (s *Scraper) SetValidator(v ProxyValidator) {
	s.validator = v
}

// SetFetcher replaces the image fetcher used by the workers
func (s *Scraper) SetFetcher(f downloader.ImageFetcher) {
	s.fetcher = f
}

// SetWorkingProxies seeds the working set, skipping validation
func (s *Scraper) SetWorkingProxies(ws proxy.WorkingSet) {
	s.working = ws
}

// SearchKey returns the key this scraper searches for
func (s *Scraper) SearchKey() string {
	return s.searchKey
}

// OutputDir returns <base>/<search key>
func (s *Scraper) OutputDir() string {
	return storage.OutputDir(s.config.Output.BaseDirectory, s.searchKey)
}

// Scrape runs one full pass. Running out of working proxies is not an
// error: an empty Result is returned after logging it.
func (s *Scraper) Scrape(ctx context.Context) (*Result, error) {
	start := time.Now()
	result := &Result{SearchKey: s.searchKey, OutputDir: s.OutputDir()}

	if s.config.Proxy.Enabled && s.working.Empty() {
		s.logger.Info("No working proxies available. Fetching new proxies...")
		s.working = s.fetchWorkingProxies(ctx)
	}
	result.WorkingProxies = s.working.Len()

	if s.config.Proxy.Enabled && s.working.Empty() {
		err := errors.New(errors.ErrorTypeNoWorkingProxies, "failed to find any working proxies")
		s.logger.WithError(err).Error("Failed to find any working proxies.")
		result.Duration = time.Since(start)
		return result, nil
	}

	store, err := storage.NewManager(result.OutputDir)
	if err != nil {
		return nil, err
	}

	queue := downloader.NewQueue()
	pool := downloader.NewPool(downloader.PoolConfig{
		Workers:       s.config.Download.Workers,
		KeepFilenames: s.config.Download.KeepFilenames,
		OnResult:      s.observer.OnDownload,
	}, queue, s.fetcher, store, s.logger)
	pool.Start(ctx)

	var clients *proxy.ClientSet
	if s.config.Proxy.Enabled {
		clients = proxy.NewClientSet(s.working, s.config.Search.RequestTimeout)
	}
	gate := ratelimit.NewGate(s.config.Search.Concurrency)
	if w, ok := s.observer.(gaugeWatcher); ok {
		w.Watch("queue_depth", "Entries waiting in the download queue", queue.Len)
		w.Watch("search_in_flight", "Search requests holding a gate permit", gate.InFlight)
	}

	loop := NewLoop(LoopConfig{
		SearchURL: s.config.Search.URL,
		SearchKey: s.searchKey,
		UserAgent: s.config.Search.UserAgent,
		Timeout:   s.config.Search.RequestTimeout,
		Delay:     s.config.Search.RequestDelay,
	}, clients, gate, queue, s.observer, s.logger)

	result.Search = loop.Run(ctx, s.config.Search.NumImages)

	stopCtx := context.WithoutCancel(ctx)
	if timeout := s.config.Download.ShutdownTimeout; timeout > 0 {
		var cancel context.CancelFunc
		stopCtx, cancel = context.WithTimeout(stopCtx, timeout)
		defer cancel()
	}
	if err := pool.Stop(stopCtx); err != nil {
		result.ShutdownErr = err
		s.logger.WithError(err).Warn("Download workers did not finish in time")
	}

	for _, r := range pool.Results() {
		if r.Success {
			result.Saved = append(result.Saved, r.Path)
		} else {
			result.Failed++
		}
	}
	result.Duration = time.Since(start)

	s.logger.InfoWithFields("Scrape finished", logger.Fields{
		"search_key": s.searchKey,
		"queued":     result.Queued(),
		"saved":      len(result.Saved),
		"failed":     result.Failed,
		"duration":   result.Duration.String(),
	})
	return result, nil
}

// gaugeWatcher is implemented by observers that export live gauges
type gaugeWatcher interface {
	Watch(name, help string, fn func() int)
}

func (s *Scraper) fetchWorkingProxies(ctx context.Context) proxy.WorkingSet {
	candidates, err := s.source.ConnectionStrings(ctx)
	if err != nil {
		s.logger.WithError(err).Warn("Proxy list unavailable")
		candidates = nil
	}

	working := s.validator.Validate(ctx, candidates)
	s.observer.OnProxies(len(candidates), working.Len())

	s.logger.InfoWithFields("Proxy validation complete", logger.Fields{
		"candidates": len(candidates),
		"working":    working.Len(),
	})
	return working
}

// String renders a one-line summary
func (r *Result) String() string {
	return fmt.Sprintf("%s: %d queued, %d saved, %d failed in %s",
		r.SearchKey, r.Queued(), len(r.Saved), r.Failed, r.Duration.Round(time.Millisecond))
}
