package downloader

import (
	"context"
	"fmt"
	"sync"

	"imgscraper/pkg/logger"
)

// PoolConfig configures a worker pool
type PoolConfig struct {
	Workers       int
	KeepFilenames bool
	// OnResult is called once per job, from the worker goroutine
	OnResult ResultHandler
}

// Pool runs download workers against a shared Queue
type Pool struct {
	cfg     PoolConfig
	queue   *Queue
	fetcher ImageFetcher
	store   ImageStore
	logger  logger.Logger

	wg      sync.WaitGroup
	cancel  context.CancelFunc
	mu      sync.Mutex
	results []DownloadResult
	started bool
}

// NewPool creates a new download worker pool
func NewPool(cfg PoolConfig, queue *Queue, fetcher ImageFetcher, store ImageStore, log logger.Logger) *Pool {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if log == nil {
		log = logger.GetLogger()
	}
	return &Pool{
		cfg:     cfg,
		queue:   queue,
		fetcher: fetcher,
		store:   store,
		logger:  log,
	}
}

// Start launches the workers. They run until they each receive a sentinel
// or ctx is cancelled.
func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	ctx, p.cancel = context.WithCancel(ctx)

	p.logger.InfoWithFields("Starting worker pool", logger.Fields{
		"num_workers": p.cfg.Workers,
	})

	for i := 0; i < p.cfg.Workers; i++ {
		w := NewWorker(i, p.queue, p.fetcher, p.store, p.cfg.KeepFilenames, p.record, p.logger)
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			_ = w.Run(ctx)
		}()
	}
}

func (p *Pool) record(result DownloadResult) {
	p.mu.Lock()
	p.results = append(p.results, result)
	p.mu.Unlock()

	if p.cfg.OnResult != nil {
		p.cfg.OnResult(result)
	}
}

// Stop enqueues one sentinel per worker and waits for all of them to exit.
// If ctx ends first the workers are cancelled and the context error returned.
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	started := p.started
	p.mu.Unlock()
	if !started {
		return nil
	}

	p.logger.Info("Stopping worker pool...")

	for i := 0; i < p.cfg.Workers; i++ {
		p.queue.PutSentinel()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		p.logger.Info("Worker pool stopped")
		return nil
	case <-ctx.Done():
		p.cancel()
		<-done
		p.logger.WarnWithFields("Worker pool stop timed out", logger.Fields{
			"pending": p.queue.Unfinished(),
		})
		return fmt.Errorf("waiting for download workers: %w", ctx.Err())
	}
}

// Results returns the outcomes recorded so far
func (p *Pool) Results() []DownloadResult {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]DownloadResult, len(p.results))
	copy(out, p.results)
	return out
}

// Workers returns the number of workers in the pool
func (p *Pool) Workers() int {
	return p.cfg.Workers
}
