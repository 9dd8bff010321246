// Package queue hands "start dispatch" jobs from the HTTP layer to the dispatcher
package queue

import (
	"context"
	"errors"
	"time"
)

var (
	ErrQueueFull   = errors.New("dispatch queue is full")
	ErrQueueClosed = errors.New("dispatch queue is closed")
)

// Job asks the dispatcher to run the loop of one campaign
type Job struct {
	CampaignID uint      `json:"campaign_id"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// Handler processes one job. A returned error asks the queue to deliver the job again.
type Handler func(ctx context.Context, job Job) error

// Queue is a durable or in-process job channel
type Queue interface {
	Publish(ctx context.Context, job Job) error
	// Subscribe starts consuming in the background until ctx is cancelled
	Subscribe(ctx context.Context, handler Handler) error
	Close() error
}
