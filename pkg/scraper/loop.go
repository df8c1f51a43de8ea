package scraper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"imgscraper/internal/downloader"
	"imgscraper/pkg/errors"
	"imgscraper/pkg/logger"
	"imgscraper/pkg/proxy"
	"imgscraper/pkg/ratelimit"
)

// maxPageBytes caps how much of a search page is parsed
const maxPageBytes = 10 << 20

// Enqueuer accepts image references for download
type Enqueuer interface {
	Put(job downloader.DownloadJob)
}

// Stats summarizes a completed loop
type Stats struct {
	Iterations int
	Queued     int
	NoImage    int
	Failed     int
}

// LoopConfig configures the search loop
type LoopConfig struct {
	SearchURL string
	SearchKey string
	UserAgent string
	Timeout   time.Duration
	Delay     time.Duration
}

// Loop issues search requests and enqueues one image per response
type Loop struct {
	cfg      LoopConfig
	clients  *proxy.ClientSet
	gate     *ratelimit.Gate
	throttle *ratelimit.Throttle
	queue    Enqueuer
	observer Observer
	logger   logger.Logger
}

// NewLoop creates a search loop. clients may be nil for direct requests.
func NewLoop(cfg LoopConfig, clients *proxy.ClientSet, gate *ratelimit.Gate, queue Enqueuer, observer Observer, log logger.Logger) *Loop {
	if clients == nil {
		clients = proxy.NewClientSet(nil, cfg.Timeout)
	}
	if gate == nil {
		gate = ratelimit.NewGate(ratelimit.DefaultCapacity)
	}
	if observer == nil {
		observer = nopObserver{}
	}
	if log == nil {
		log = logger.GetLogger()
	}
	return &Loop{
		cfg:      cfg,
		clients:  clients,
		gate:     gate,
		throttle: ratelimit.NewThrottle(cfg.Delay),
		queue:    queue,
		observer: observer,
		logger:   log.WithField("search_key", cfg.SearchKey),
	}
}

// SearchPageURL builds <base>?q=<key>&tbm=isch, keeping any query already on base
func SearchPageURL(base, key string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid search url: %w", err)
	}
	q := u.Query()
	q.Set("q", key)
	q.Set("tbm", "isch")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Run performs target iterations, pausing after each one. It stops early
// only when ctx is cancelled.
func (l *Loop) Run(ctx context.Context, target int) Stats {
	var stats Stats

	logger.LogComponentStart(l.logger, "scrape_loop", logger.Fields{
		"target":   target,
		"proxies":  l.clients.Len(),
		"capacity": l.gate.Capacity(),
	})

	for i := 0; i < target; i++ {
		if ctx.Err() != nil {
			break
		}

		imageURL, err := l.Iterate(ctx)
		stats.Iterations++
		switch {
		case err != nil:
			stats.Failed++
		case imageURL == "":
			stats.NoImage++
		default:
			stats.Queued++
		}
		l.observer.OnSearch(i+1, target, imageURL, err)

		if err := l.throttle.Wait(ctx); err != nil {
			break
		}
	}

	reason := "completed"
	if ctx.Err() != nil {
		reason = "cancelled"
	}
	logger.LogComponentStop(l.logger, "scrape_loop", reason)
	return stats
}

// Iterate performs one search request under the gate and enqueues the first
// image found. It returns the queued URL, or "" if the page had none. Safe
// for concurrent use.
func (l *Loop) Iterate(ctx context.Context) (string, error) {
	proxyURL, client := l.clients.Pick()

	var imageURL string
	err := l.gate.Do(ctx, func(ctx context.Context) error {
		page, err := l.fetchPage(ctx, client)
		if err != nil {
			return err
		}
		defer page.Close()

		src, ok, err := ExtractFirstImage(io.LimitReader(page, maxPageBytes))
		if err != nil {
			return errors.Wrap(errors.ErrorTypeSearchRequest, err, "failed to parse search page")
		}
		if ok {
			l.queue.Put(downloader.DownloadJob{URL: src, SearchKey: l.cfg.SearchKey})
			imageURL = src
		}
		return nil
	})

	if err != nil {
		if !errors.IsType(err, errors.ErrorTypeSearchRequest) {
			err = errors.Wrap(errors.ErrorTypeSearchRequest, err, "search iteration aborted")
		}
		fields := logger.Fields{"proxy": proxy.Redact(proxyURL)}
		if ctx.Err() != nil {
			l.logger.WithError(err).DebugWithFields("Search iteration cancelled", fields)
		} else {
			l.logger.WithError(err).WarnWithFields("Error while scraping images", fields)
		}
		return "", err
	}

	if imageURL == "" {
		l.logger.DebugWithFields("No image found on search page", logger.Fields{
			"proxy": proxy.Redact(proxyURL),
		})
	} else {
		l.logger.DebugWithFields("Image queued", logger.Fields{"url": imageURL})
	}
	return imageURL, nil
}

// fetchPage GETs the search page. The caller closes the body.
func (l *Loop) fetchPage(ctx context.Context, client *http.Client) (io.ReadCloser, error) {
	pageURL, err := SearchPageURL(l.cfg.SearchURL, l.cfg.SearchKey)
	if err != nil {
		return nil, errors.Wrap(errors.ErrorTypeSearchRequest, err, "bad search url")
	}

	reqCtx, cancel := context.WithTimeout(ctx, l.cfg.Timeout)

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, pageURL, nil)
	if err != nil {
		cancel()
		return nil, errors.Wrap(errors.ErrorTypeSearchRequest, err, "failed to create request")
	}
	if l.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", l.cfg.UserAgent)
	}

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		cancel()
		logger.LogRequest(l.logger, req.Method, pageURL, 0, time.Since(start))
		return nil, errors.Wrap(errors.ErrorTypeSearchRequest, err, "request failed")
	}
	logger.LogRequest(l.logger, req.Method, pageURL, resp.StatusCode, time.Since(start))

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		cancel()
		return nil, errors.WithStatus(errors.ErrorTypeSearchRequest, resp.StatusCode,
			fmt.Sprintf("failed to fetch images with status %d", resp.StatusCode))
	}

	return &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}, nil
}

// cancelOnClose releases the request context together with the body
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}
