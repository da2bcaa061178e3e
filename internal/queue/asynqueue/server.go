package asynqueue

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/bhupendraedzeb-hub/programtic-seo/internal/pagegen"
)

// Processor handles one delivery of a bulk job.
type Processor interface {
	Process(ctx context.Context, item pagegen.QueueItem) error
}

// ServerConfig controls the asynq consumer.
type ServerConfig struct {
	RedisAddr   string
	Queue       string
	Concurrency int
}

// Handler adapts a Processor to asynq.
type Handler struct {
	processor Processor
	logger    *zap.Logger
}

// NewHandler wraps processor.
func NewHandler(processor Processor, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{processor: processor, logger: logger.Named("asynq_handler")}
}

// HandleTask decodes the delivery and runs it. Errors that cannot be fixed by
// a retry are wrapped with asynq.SkipRetry.
func (h *Handler) HandleTask(ctx context.Context, task *asynq.Task) error {
	item, err := DecodeBulkTask(task)
	if err != nil {
		h.logger.Error("dropping malformed task", zap.Error(err))
		return fmt.Errorf("%w: %w", asynq.SkipRetry, err)
	}
	if retried, ok := asynq.GetRetryCount(ctx); ok {
		item.Attempt = retried
	}

	err = h.processor.Process(ctx, item)
	switch {
	case err == nil:
		return nil
	case pagegen.IsPermanent(err):
		h.logger.Warn("job failed permanently",
			zap.String("job_id", item.JobID),
			zap.Int("attempt", item.Attempt),
			zap.Error(err),
		)
		return fmt.Errorf("%w: %w", asynq.SkipRetry, err)
	default:
		h.logger.Warn("job delivery failed, will retry",
			zap.String("job_id", item.JobID),
			zap.Int("attempt", item.Attempt),
			zap.Error(err),
		)
		return err
	}
}

// Server consumes bulk tasks from Redis.
type Server struct {
	srv *asynq.Server
	mux *asynq.ServeMux
}

// NewServer builds the consumer; call Run to start it.
func NewServer(cfg ServerConfig, processor Processor, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	queueName := cfg.Queue
	if queueName == "" {
		queueName = DefaultQueue
	}
	handler := NewHandler(processor, logger)
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskTypeBulkGenerate, handler.HandleTask)

	named := logger.Named("asynq")
	srv := asynq.NewServer(
		asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		asynq.Config{
			Concurrency: cfg.Concurrency,
			Queues:      map[string]int{queueName: 1},
			Logger:      named.Sugar(),
			ErrorHandler: asynq.ErrorHandlerFunc(func(_ context.Context, task *asynq.Task, err error) {
				named.Debug("task errored", zap.String("type", task.Type()), zap.Error(err))
			}),
		},
	)
	return &Server{srv: srv, mux: mux}
}

// Run processes tasks until ctx is canceled, then drains in-flight work.
func (s *Server) Run(ctx context.Context) error {
	if err := s.srv.Start(s.mux); err != nil {
		return fmt.Errorf("start asynq server: %w", err)
	}
	<-ctx.Done()
	s.srv.Shutdown()
	return nil
}
