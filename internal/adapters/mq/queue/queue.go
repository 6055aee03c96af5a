// Package queue holds trials between submission and analysis.
//
// The in-memory implementation is a bounded buffered channel. A full queue
// rejects instead of blocking so the HTTP layer can answer 429.
package queue

import (
	"context"
	"sync"
	"time"

	"github.com/okian/zonetrack/internal/domain/model"
	"github.com/okian/zonetrack/pkg/metrics"
)

const defaultQueueCapacity = 1_000

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds a trial. It returns ErrFull or ErrClosed without blocking.
	Enqueue(ctx context.Context, t *model.Trial) error

	// Dequeue returns a channel that receives trials as they become available.
	// The channel is closed when the queue is closed and drained, or soon after
	// ctx is canceled. A trial already taken off the queue is still sent, so
	// consumers read until the channel closes.
	Dequeue(ctx context.Context) <-chan *model.Trial

	// Drain removes and returns the trials still queued.
	Drain() []*model.Trial

	// Len returns the current number of queued trials.
	Len(ctx context.Context) int

	// Cap returns the configured capacity.
	Cap() int

	// Close stops accepting trials. Queued trials are still delivered.
	Close() error

	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	trials   chan *model.Trial
	capacity int

	mu     sync.RWMutex
	closed bool
}

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{capacity: defaultQueueCapacity}
	for _, opt := range opts {
		opt(q)
	}
	q.trials = make(chan *model.Trial, q.capacity)

	metrics.UpdateQueueCapacity(q.capacity)
	metrics.UpdateQueueSize(0)
	metrics.UpdateQueueUtilization(0.0)

	return q
}

// Enqueue adds a trial to the queue.
func (q *InMemoryQueue) Enqueue(ctx context.Context, t *model.Trial) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "closed")
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "context_cancelled")
		return err
	}

	select {
	case q.trials <- t:
		metrics.RecordQueueEnqueue()
		q.observe()
		return nil
	default:
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "queue_full")
		return ErrFull
	}
}

// Dequeue returns a channel that will receive trials as they become available.
func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan *model.Trial {
	out := make(chan *model.Trial)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case t, ok := <-q.trials:
				if !ok {
					return
				}
				out <- t
				metrics.RecordQueueDequeue()
				if !t.Received.IsZero() {
					metrics.RecordQueueProcessingLatency(float64(time.Since(t.Received).Milliseconds()))
				}
				q.observe()
			}
		}
	}()
	return out
}

// Drain removes and returns the trials still queued without blocking.
func (q *InMemoryQueue) Drain() []*model.Trial {
	var out []*model.Trial
	defer q.observe()
	for {
		select {
		case t, ok := <-q.trials:
			if !ok {
				return out
			}
			out = append(out, t)
		default:
			return out
		}
	}
}

// Len returns the current number of queued trials.
func (q *InMemoryQueue) Len(_ context.Context) int {
	return q.observe()
}

// Cap returns the queue capacity.
func (q *InMemoryQueue) Cap() int { return q.capacity }

func (q *InMemoryQueue) observe() int {
	size := len(q.trials)
	metrics.UpdateQueueSize(size)
	metrics.UpdateQueueUtilization(float64(size) / float64(q.capacity))
	return size
}

// Close gracefully shuts down the queue.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.trials)
	q.closed = true
	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
