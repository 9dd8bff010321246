package queue

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// MemoryQueue is a buffered in-process queue with bounded retries
type MemoryQueue struct {
	jobs       chan Job
	logger     logrus.FieldLogger
	maxRetries int
	backoff    time.Duration

	mu     sync.RWMutex
	closed bool
}

// NewMemoryQueue creates a queue that holds up to capacity undelivered jobs
func NewMemoryQueue(capacity int, logger logrus.FieldLogger) *MemoryQueue {
	if capacity <= 0 {
		capacity = 1024
	}
	return &MemoryQueue{
		jobs:       make(chan Job, capacity),
		logger:     logger,
		maxRetries: 3,
		backoff:    500 * time.Millisecond,
	}
}

// Publish enqueues a job without blocking
func (q *MemoryQueue) Publish(ctx context.Context, job Job) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}

	select {
	case q.jobs <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrQueueFull
	}
}

// Subscribe consumes jobs in a goroutine until ctx is done or the queue is closed
func (q *MemoryQueue) Subscribe(ctx context.Context, handler Handler) error {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case job, ok := <-q.jobs:
				if !ok {
					return
				}
				q.process(ctx, handler, job)
			}
		}
	}()
	return nil
}

func (q *MemoryQueue) process(ctx context.Context, handler Handler, job Job) {
	for attempt := 0; ; attempt++ {
		err := handler(ctx, job)
		if err == nil {
			return
		}

		log := q.logger.WithFields(logrus.Fields{
			"campaign_id": job.CampaignID,
			"attempt":     attempt + 1,
		})
		if attempt >= q.maxRetries {
			log.WithError(err).Error("dispatch job dropped after retries")
			return
		}
		log.WithError(err).Warn("dispatch job failed, retrying")

		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Duration(attempt+1) * q.backoff):
		}
	}
}

// Close stops accepting jobs and ends subscriber loops once the buffer drains
func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.jobs)
	}
	return nil
}
