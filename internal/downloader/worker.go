package downloader

import (
	"context"
	stderrors "errors"
	"time"

	"imgscraper/pkg/errors"
	"imgscraper/pkg/imaging"
	"imgscraper/pkg/logger"
	"imgscraper/pkg/storage"
)

// ImageFetcher retrieves the raw bytes of an image URL
type ImageFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// ImageStore persists a named image and returns where it was written
type ImageStore interface {
	SaveImage(data []byte, name string) (string, error)
}

// DownloadResult is the outcome of one job
type DownloadResult struct {
	Job      DownloadJob
	Success  bool
	Path     string
	Format   string
	Size     int
	Error    error
	Duration time.Duration
}

// ResultHandler is called by a worker after every job
type ResultHandler func(DownloadResult)

// Worker drains a Queue until it receives a sentinel
type Worker struct {
	id            int
	queue         *Queue
	fetcher       ImageFetcher
	store         ImageStore
	keepFilenames bool
	onResult      ResultHandler
	logger        logger.Logger
}

// NewWorker creates a worker; onResult may be nil
func NewWorker(id int, queue *Queue, fetcher ImageFetcher, store ImageStore, keepFilenames bool, onResult ResultHandler, log logger.Logger) *Worker {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Worker{
		id:            id,
		queue:         queue,
		fetcher:       fetcher,
		store:         store,
		keepFilenames: keepFilenames,
		onResult:      onResult,
		logger:        log.WithField("worker_id", id),
	}
}

// Run processes jobs in queue order. It returns nil after a sentinel and
// ctx.Err() if the context ends first. Failed jobs are logged, never retried.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Debug("Worker started")

	for {
		job, err := w.queue.Get(ctx)
		if stderrors.Is(err, ErrSentinel) {
			w.logger.Debug("Worker stopping - sentinel received")
			return nil
		}
		if err != nil {
			w.logger.WithError(err).Debug("Worker stopping - context cancelled")
			return err
		}

		result := w.process(ctx, job)
		w.queue.TaskDone()

		if w.onResult != nil {
			w.onResult(result)
		}
	}
}

// process handles a single download job
func (w *Worker) process(ctx context.Context, job DownloadJob) DownloadResult {
	start := time.Now()
	result := DownloadResult{Job: job}

	w.logger.InfoWithFields("Downloading image", logger.Fields{"url": job.URL})

	data, err := w.fetcher.Fetch(ctx, job.URL)
	if err != nil {
		return w.fail(result, start, err, "fetch image")
	}
	result.Size = len(data)

	info, err := imaging.Decode(data)
	if err != nil {
		return w.fail(result, start, err, "decode image")
	}
	result.Format = info.Format

	name := storage.FileName(job.SearchKey, job.URL, info.Extension(), w.keepFilenames)
	path, err := w.store.SaveImage(data, name)
	if err != nil {
		return w.fail(result, start, err, "save image")
	}

	result.Success = true
	result.Path = path
	result.Duration = time.Since(start)

	logger.LogDownload(w.logger, job.URL, path, nil)
	return result
}

func (w *Worker) fail(result DownloadResult, start time.Time, err error, stage string) DownloadResult {
	if !errors.IsType(err, errors.ErrorTypeDownload) {
		err = errors.Wrap(errors.ErrorTypeDownload, err, stage)
	}
	result.Error = err
	result.Duration = time.Since(start)

	logger.LogDownload(w.logger.WithField("size", result.Size), result.Job.URL, "", err)
	return result
}
