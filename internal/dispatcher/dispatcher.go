// Package dispatcher manages worker fan-out over the in-process job queue.
package dispatcher

import (
	"context"
	"fmt"
	"sync"

	"github.com/bhupendraedzeb-hub/programtic-seo/internal/pagegen"
	"github.com/bhupendraedzeb-hub/programtic-seo/internal/queue"
	"github.com/bhupendraedzeb-hub/programtic-seo/internal/worker"
)

// Dispatcher fans out queue work to a pool of workers. It doubles as the
// queue.Producer for the in-process backend.
type Dispatcher struct {
	queue   pagegen.Queue
	workers []*worker.Worker
}

var _ queue.Producer = (*Dispatcher)(nil)

// New creates a Dispatcher.
func New(q pagegen.Queue, workers []*worker.Worker) *Dispatcher {
	return &Dispatcher{
		queue:   q,
		workers: workers,
	}
}

// Run starts all workers and blocks until the context finishes.
func (d *Dispatcher) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, w := range d.workers {
		wg.Add(1)
		go func(wk *worker.Worker) {
			defer wg.Done()
			wk.Run(ctx)
		}(w)
	}
	<-ctx.Done()
	wg.Wait()
}

// Enqueue proxies to the underlying queue.
func (d *Dispatcher) Enqueue(ctx context.Context, item pagegen.QueueItem) error {
	if err := d.queue.Enqueue(ctx, item); err != nil {
		return fmt.Errorf("queue enqueue: %w", err)
	}
	return nil
}

// Close closes the underlying queue when it supports closing.
func (d *Dispatcher) Close() error {
	if c, ok := d.queue.(interface{ Close() error }); ok {
		if err := c.Close(); err != nil {
			return fmt.Errorf("queue close: %w", err)
		}
	}
	return nil
}
