// Package queue defines the producer side of the bulk job work queue.
// Deliveries are consumed either in-process (memory) or by an asynq server.
package queue

import (
	"context"
	"time"

	"github.com/bhupendraedzeb-hub/programtic-seo/internal/pagegen"
)

// Delivery defaults shared by every backend.
const (
	DefaultMaxRetry   = 3
	DefaultJobTimeout = 600 * time.Second
)

// Producer submits bulk job deliveries for asynchronous processing.
type Producer interface {
	// Enqueue schedules one delivery of the job described by item.
	Enqueue(ctx context.Context, item pagegen.QueueItem) error

	// Close releases client connections and resources.
	Close() error
}
