// Package memory provides an in-process bulk job queue for local development
// and single-binary deployments.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/bhupendraedzeb-hub/programtic-seo/internal/pagegen"
)

// ErrClosed is returned once the queue has been closed and drained.
var ErrClosed = pagegen.ErrQueueClosed

// Queue is a bounded in-memory queue with context-aware operations.
type Queue struct {
	ch      chan pagegen.QueueItem
	done    chan struct{}
	closeMu sync.Mutex
	closed  bool
}

// NewQueue constructs a new queue with the provided capacity.
func NewQueue(capacity int) *Queue {
	if capacity < 0 {
		capacity = 0
	}
	return &Queue{
		ch:   make(chan pagegen.QueueItem, capacity),
		done: make(chan struct{}),
	}
}

// Enqueue pushes a delivery into the queue or returns if the context ends.
func (q *Queue) Enqueue(ctx context.Context, item pagegen.QueueItem) error {
	select {
	case <-q.done:
		return ErrClosed
	default:
	}
	select {
	case <-ctx.Done():
		return fmt.Errorf("enqueue canceled: %w", ctx.Err())
	case <-q.done:
		return ErrClosed
	case q.ch <- item:
		return nil
	}
}

// Dequeue pops the next delivery, respecting context cancellation. Items
// buffered before Close are still handed out.
func (q *Queue) Dequeue(ctx context.Context) (pagegen.QueueItem, error) {
	select {
	case <-ctx.Done():
		return pagegen.QueueItem{}, fmt.Errorf("dequeue canceled: %w", ctx.Err())
	case item := <-q.ch:
		return item, nil
	case <-q.done:
		select {
		case item := <-q.ch:
			return item, nil
		default:
			return pagegen.QueueItem{}, ErrClosed
		}
	}
}

// Len reports the number of buffered deliveries.
func (q *Queue) Len() int {
	return len(q.ch)
}

// Close stops accepting deliveries. It is safe to call more than once.
func (q *Queue) Close() error {
	q.closeMu.Lock()
	defer q.closeMu.Unlock()
	if q.closed {
		return nil
	}
	close(q.done)
	q.closed = true
	return nil
}
