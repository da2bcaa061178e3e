package asynqueue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/bhupendraedzeb-hub/programtic-seo/internal/pagegen"
	"github.com/bhupendraedzeb-hub/programtic-seo/internal/queue"
)

// DefaultQueue is the asynq queue bulk jobs are placed on.
const DefaultQueue = "bulk"

// ProducerConfig controls how deliveries are enqueued.
type ProducerConfig struct {
	Queue      string
	MaxRetry   int
	JobTimeout time.Duration
}

func (c ProducerConfig) withDefaults() ProducerConfig {
	if c.Queue == "" {
		c.Queue = DefaultQueue
	}
	if c.MaxRetry < 0 {
		c.MaxRetry = queue.DefaultMaxRetry
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = queue.DefaultJobTimeout
	}
	return c
}

type enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
	Close() error
}

// Producer enqueues bulk jobs onto asynq.
type Producer struct {
	client enqueuer
	cfg    ProducerConfig
	logger *zap.Logger
}

// NewProducer dials Redis lazily through an asynq client.
func NewProducer(redisAddr string, cfg ProducerConfig, logger *zap.Logger) *Producer {
	client := asynq.NewClient(asynq.RedisClientOpt{Addr: redisAddr})
	return newProducer(client, cfg, logger)
}

func newProducer(client enqueuer, cfg ProducerConfig, logger *zap.Logger) *Producer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Producer{client: client, cfg: cfg.withDefaults(), logger: logger.Named("asynq_producer")}
}

var _ queue.Producer = (*Producer)(nil)

// Enqueue schedules the job with the configured retry budget and timeout. The
// job ID doubles as the task ID so a job is never queued twice concurrently.
func (p *Producer) Enqueue(ctx context.Context, item pagegen.QueueItem) error {
	task, err := NewBulkTask(item)
	if err != nil {
		return err
	}
	info, err := p.client.EnqueueContext(ctx, task,
		asynq.Queue(p.cfg.Queue),
		asynq.MaxRetry(p.cfg.MaxRetry),
		asynq.Timeout(p.cfg.JobTimeout),
		asynq.TaskID(item.JobID),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		p.logger.Debug("job already queued", zap.String("job_id", item.JobID))
		return nil
	}
	if err != nil {
		return fmt.Errorf("enqueue job %s: %w", item.JobID, err)
	}
	p.logger.Debug("job enqueued",
		zap.String("job_id", item.JobID),
		zap.String("queue", info.Queue),
		zap.Int("rows", len(item.Rows)),
	)
	return nil
}

// Close releases the Redis connection.
func (p *Producer) Close() error {
	if err := p.client.Close(); err != nil {
		return fmt.Errorf("close asynq client: %w", err)
	}
	return nil
}
