package downloader

import (
	"context"
	"errors"
	"sync"
)

// ErrSentinel is returned by Get when it dequeues a stop marker
var ErrSentinel = errors.New("downloader: stop sentinel")

// DownloadJob is one image reference waiting to be fetched
type DownloadJob struct {
	URL       string
	SearchKey string
}

type entry struct {
	job      DownloadJob
	sentinel bool
}

// Queue is an unbounded FIFO shared by producers and download workers.
// Jobs are tracked until acknowledged with TaskDone; sentinels are not.
type Queue struct {
	mu         sync.Mutex
	items      []entry
	notify     chan struct{}
	unfinished int
	idle       chan struct{}
}

// NewQueue creates an empty queue
func NewQueue() *Queue {
	idle := make(chan struct{})
	close(idle)
	return &Queue{
		notify: make(chan struct{}),
		idle:   idle,
	}
}

// Put appends a job; it never blocks
func (q *Queue) Put(job DownloadJob) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.unfinished++
	if q.unfinished == 1 {
		q.idle = make(chan struct{})
	}
	q.push(entry{job: job})
}

// PutSentinel appends a stop marker. Each marker stops exactly one worker.
func (q *Queue) PutSentinel() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.push(entry{sentinel: true})
}

// push must be called with q.mu held
func (q *Queue) push(e entry) {
	q.items = append(q.items, e)
	close(q.notify)
	q.notify = make(chan struct{})
}

// Get removes the oldest entry, waiting while the queue is empty. It returns
// ErrSentinel for a stop marker and ctx.Err() if ctx is done first.
func (q *Queue) Get(ctx context.Context) (DownloadJob, error) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			e := q.items[0]
			q.items[0] = entry{}
			q.items = q.items[1:]
			q.mu.Unlock()

			if e.sentinel {
				return DownloadJob{}, ErrSentinel
			}
			return e.job, nil
		}
		wait := q.notify
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return DownloadJob{}, ctx.Err()
		case <-wait:
		}
	}
}

// TaskDone acknowledges one job returned by Get
func (q *Queue) TaskDone() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.unfinished <= 0 {
		panic("downloader: TaskDone called more times than Put")
	}
	q.unfinished--
	if q.unfinished == 0 {
		close(q.idle)
	}
}

// Join waits until every job put so far has been acknowledged
func (q *Queue) Join(ctx context.Context) error {
	q.mu.Lock()
	idle := q.idle
	q.mu.Unlock()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-idle:
		return nil
	}
}

// Len returns the number of queued entries, sentinels included
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Unfinished returns the number of jobs not yet acknowledged
func (q *Queue) Unfinished() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.unfinished
}
