package queue

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestMemoryQueueDelivers(t *testing.T) {
	q := NewMemoryQueue(4, quietLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan Job, 2)
	require.NoError(t, q.Subscribe(ctx, func(_ context.Context, job Job) error {
		got <- job
		return nil
	}))

	require.NoError(t, q.Publish(ctx, Job{CampaignID: 7, EnqueuedAt: time.Now()}))

	select {
	case job := <-got:
		assert.Equal(t, uint(7), job.CampaignID)
	case <-time.After(time.Second):
		t.Fatal("job not delivered")
	}
}

func TestMemoryQueueRetries(t *testing.T) {
	q := NewMemoryQueue(4, quietLogger())
	q.backoff = time.Millisecond
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var attempts atomic.Int32
	done := make(chan struct{})
	require.NoError(t, q.Subscribe(ctx, func(_ context.Context, job Job) error {
		if attempts.Add(1) < 3 {
			return errors.New("store unavailable")
		}
		close(done)
		return nil
	}))
	require.NoError(t, q.Publish(ctx, Job{CampaignID: 1}))

	select {
	case <-done:
		assert.Equal(t, int32(3), attempts.Load())
	case <-time.After(time.Second):
		t.Fatal("job not retried")
	}
}

func TestMemoryQueueFullAndClosed(t *testing.T) {
	q := NewMemoryQueue(1, quietLogger())
	ctx := context.Background()

	require.NoError(t, q.Publish(ctx, Job{CampaignID: 1}))
	assert.ErrorIs(t, q.Publish(ctx, Job{CampaignID: 2}), ErrQueueFull)

	require.NoError(t, q.Close())
	require.NoError(t, q.Close())
	assert.ErrorIs(t, q.Publish(ctx, Job{CampaignID: 3}), ErrQueueClosed)
}
