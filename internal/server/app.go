// Package server builds the application's dependencies and runs its processes.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"cloud.google.com/go/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/bhupendraedzeb-hub/programtic-seo/internal/api"
	"github.com/bhupendraedzeb-hub/programtic-seo/internal/clock/system"
	"github.com/bhupendraedzeb-hub/programtic-seo/internal/config"
	"github.com/bhupendraedzeb-hub/programtic-seo/internal/dispatcher"
	"github.com/bhupendraedzeb-hub/programtic-seo/internal/hash/sha256"
	"github.com/bhupendraedzeb-hub/programtic-seo/internal/id/uuid"
	"github.com/bhupendraedzeb-hub/programtic-seo/internal/metrics"
	"github.com/bhupendraedzeb-hub/programtic-seo/internal/pagegen"
	"github.com/bhupendraedzeb-hub/programtic-seo/internal/pipeline"
	"github.com/bhupendraedzeb-hub/programtic-seo/internal/policy/ratelimit"
	"github.com/bhupendraedzeb-hub/programtic-seo/internal/progress"
	progresssinks "github.com/bhupendraedzeb-hub/programtic-seo/internal/progress/sinks"
	memorypublisher "github.com/bhupendraedzeb-hub/programtic-seo/internal/publisher/memory"
	gcppublisher "github.com/bhupendraedzeb-hub/programtic-seo/internal/publisher/pubsub"
	"github.com/bhupendraedzeb-hub/programtic-seo/internal/queue"
	"github.com/bhupendraedzeb-hub/programtic-seo/internal/queue/asynqueue"
	queueMemory "github.com/bhupendraedzeb-hub/programtic-seo/internal/queue/memory"
	gcsstorage "github.com/bhupendraedzeb-hub/programtic-seo/internal/storage/gcs"
	localstorage "github.com/bhupendraedzeb-hub/programtic-seo/internal/storage/local"
	memoryStorage "github.com/bhupendraedzeb-hub/programtic-seo/internal/storage/memory"
	miniostorage "github.com/bhupendraedzeb-hub/programtic-seo/internal/storage/minio"
	pgstore "github.com/bhupendraedzeb-hub/programtic-seo/internal/storage/postgres"
	s3storage "github.com/bhupendraedzeb-hub/programtic-seo/internal/storage/s3"
	"github.com/bhupendraedzeb-hub/programtic-seo/internal/telemetry"
	"github.com/bhupendraedzeb-hub/programtic-seo/internal/worker"
)

// ErrWorkerModeUnsupported is returned by RunWorker when jobs are queued in memory.
var ErrWorkerModeUnsupported = errors.New("worker mode requires queue.backend=asynq")

const shutdownTimeout = 10 * time.Second

// App contains the application's dependencies.
type App struct {
	cfg    *config.Config
	logger *zap.Logger

	templates pagegen.TemplateStore
	pages     pagegen.PageStore
	jobs      pagegen.JobStore
	blobs     pagegen.BlobStore
	publisher pagegen.Publisher
	emitter   progress.Emitter
	generator *pipeline.Pipeline
	clock     pagegen.Clock
	ids       *uuid.Generator

	producer  queue.Producer
	memQueue  *queueMemory.Queue
	dispatch  *dispatcher.Dispatcher
	apiServer *api.Server

	catalog         *pgstore.Catalog
	gcsClient       *storage.Client
	pubsubPublisher *gcppublisher.Publisher
	progressHub     *progress.Hub
	redisClient     *redis.Client
	tracerShutdown  func(context.Context) error
}

// Build creates the application's dependencies.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{
		cfg:    cfg,
		logger: logger,
		clock:  system.New(),
		ids:    uuid.New(),
	}
	logger.Info("building application dependencies",
		zap.Int("port", cfg.Server.Port),
		zap.String("storage_backend", cfg.Storage.Backend),
		zap.String("queue_backend", cfg.Queue.Backend),
		zap.Bool("postgres", cfg.Database.DSN != ""),
	)
	metrics.Init()

	steps := []func(context.Context) error{
		a.setupTelemetry,
		a.setupCatalog,
		a.setupStorage,
		a.setupPublisher,
		a.setupProgress,
	}
	for _, step := range steps {
		if err := step(ctx); err != nil {
			a.closeInfrastructure(ctx)
			return nil, err
		}
	}

	a.generator = pipeline.New(
		a.pages,
		a.blobs,
		a.ids,
		sha256.New(),
		a.clock,
		pipeline.Config{ContentType: cfg.Storage.ContentType},
		logger,
	)
	a.setupQueue()

	deps := api.Dependencies{
		Templates: a.templates,
		Pages:     a.pages,
		Jobs:      a.jobs,
		Generator: a.generator,
		Queue:     a.producer,
		IDs:       a.ids,
		Clock:     a.clock,
		Ready:     a.ready,
	}
	if cfg.Server.RateLimitRPS > 0 {
		deps.Limiter = ratelimit.New(ratelimit.Config{
			RPS:   cfg.Server.RateLimitRPS,
			Burst: cfg.Server.RateLimitBurst,
		})
		logger.Info("per-owner rate limiting enabled",
			zap.Float64("rps", cfg.Server.RateLimitRPS),
			zap.Int("burst", cfg.Server.RateLimitBurst),
		)
	}
	a.apiServer = api.NewServer(deps, api.Config{
		JWTSecret:      cfg.Auth.JWTSecret,
		RequestTimeout: cfg.RequestTimeout(),
		MaxUploadBytes: cfg.MaxUploadBytes(),
	}, logger)

	return a, nil
}

// Handler exposes the HTTP API, mainly for tests.
func (a *App) Handler() http.Handler {
	return a.apiServer.Handler()
}

// RunAPI serves HTTP until ctx is canceled. With the memory queue the bulk
// workers run in the same process.
func (a *App) RunAPI(ctx context.Context) error {
	ctx, stop := context.WithCancel(ctx)
	defer stop()

	if a.dispatch != nil {
		go func() {
			a.logger.Info("dispatcher started", zap.Int("workers", a.cfg.Workers.Count))
			a.dispatch.Run(ctx)
		}()
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           a.apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("http server started", zap.Int("port", a.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
			stop()
		}
	}()

	<-ctx.Done()
	a.logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}

	select {
	case err := <-errCh:
		return err
	default:
		return nil
	}
}

// RunWorker consumes bulk jobs from Redis until ctx is canceled.
func (a *App) RunWorker(ctx context.Context) error {
	if a.cfg.Queue.Backend != config.QueueAsynq {
		return ErrWorkerModeUnsupported
	}
	w := a.newWorker(nil, 0)
	srv := asynqueue.NewServer(asynqueue.ServerConfig{
		RedisAddr:   a.cfg.Queue.RedisAddr,
		Queue:       a.cfg.Queue.Name,
		Concurrency: a.cfg.Workers.Count,
	}, w, a.logger)
	a.logger.Info("asynq worker started",
		zap.String("queue", a.cfg.Queue.Name),
		zap.Int("concurrency", a.cfg.Workers.Count),
	)
	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("run asynq worker: %w", err)
	}
	return nil
}

// Close gracefully shuts down the application.
func (a *App) Close(ctx context.Context) error {
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Warn("queue close failed", zap.Error(err))
		}
	}
	a.closeInfrastructure(ctx)
	a.closeObservability(ctx)
	a.logger.Info("shutdown complete")
	return nil
}

func (a *App) closeInfrastructure(ctx context.Context) {
	if a.progressHub != nil {
		if err := a.progressHub.Close(ctx); err != nil {
			a.logger.Warn("progress hub close failed", zap.Error(err))
		}
	}
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Warn("redis client close failed", zap.Error(err))
		}
	}
	if a.pubsubPublisher != nil {
		if err := a.pubsubPublisher.Close(); err != nil {
			a.logger.Warn("pubsub client close failed", zap.Error(err))
		}
	}
	if a.gcsClient != nil {
		if err := a.gcsClient.Close(); err != nil {
			a.logger.Warn("gcs client close failed", zap.Error(err))
		}
	}
	if a.catalog != nil {
		a.catalog.Close()
	}
}

func (a *App) closeObservability(ctx context.Context) {
	if a.tracerShutdown != nil {
		if err := a.tracerShutdown(ctx); err != nil {
			a.logger.Warn("tracer shutdown failed", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}

func (a *App) ready(ctx context.Context) error {
	if a.catalog == nil {
		return nil
	}
	return a.catalog.Ping(ctx)
}

func (a *App) setupTelemetry(ctx context.Context) error {
	if !a.cfg.Telemetry.Enabled {
		return nil
	}
	tp, err := telemetry.InitTracerProvider(ctx, telemetry.Config{
		ServiceName:    a.cfg.Telemetry.ServiceName,
		ServiceVersion: a.cfg.Telemetry.ServiceVersion,
		SampleRatio:    a.cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		return fmt.Errorf("tracer init failed: %w", err)
	}
	a.tracerShutdown = tp.Shutdown
	return nil
}

func (a *App) setupCatalog(ctx context.Context) error {
	dbCfg := a.cfg.Database
	if dbCfg.DSN == "" {
		a.logger.Warn("no database DSN configured, using in-memory catalog")
		a.templates = memoryStorage.NewTemplateStore()
		a.pages = memoryStorage.NewPageStore()
		a.jobs = memoryStorage.NewJobStore(a.clock)
		return nil
	}
	if dbCfg.AutoMigrate {
		if err := pgstore.Migrate(dbCfg.DSN); err != nil {
			return fmt.Errorf("migrate database: %w", err)
		}
		a.logger.Info("database migrations applied")
	}
	catalog, err := pgstore.Open(ctx, pgstore.Config{
		DSN:             dbCfg.DSN,
		MaxConns:        dbCfg.MaxConns,
		MinConns:        dbCfg.MinConns,
		MaxConnLifetime: time.Duration(dbCfg.MaxConnLifetimeMinutes) * time.Minute,
	})
	if err != nil {
		return fmt.Errorf("catalog init failed: %w", err)
	}
	a.catalog = catalog
	a.templates = catalog.Templates
	a.pages = catalog.Pages
	a.jobs = catalog.Jobs
	a.logger.Info("postgres catalog initialized", zap.Int32("max_conns", dbCfg.MaxConns))
	return nil
}

func (a *App) setupStorage(ctx context.Context) error {
	st := a.cfg.Storage
	switch st.Backend {
	case config.StorageGCS:
		client, err := storage.NewClient(ctx)
		if err != nil {
			return fmt.Errorf("gcs client init failed: %w", err)
		}
		a.gcsClient = client
		blobs, err := gcsstorage.New(client, gcsstorage.Config{Bucket: st.Bucket, PublicBaseURL: st.PublicBaseURL})
		if err != nil {
			return fmt.Errorf("gcs blob store init failed: %w", err)
		}
		a.blobs = blobs
	case config.StorageS3:
		blobs, err := s3storage.New(s3storage.Config{
			Endpoint:      st.S3.Endpoint,
			Region:        st.S3.Region,
			AccessKey:     st.S3.AccessKey,
			SecretKey:     st.S3.SecretKey,
			Bucket:        st.Bucket,
			PublicBaseURL: st.PublicBaseURL,
			PublicRead:    st.S3.PublicRead,
		})
		if err != nil {
			return fmt.Errorf("s3 blob store init failed: %w", err)
		}
		a.blobs = blobs
	case config.StorageMinIO:
		blobs, err := miniostorage.New(ctx, miniostorage.Config{
			Endpoint:      st.MinIO.Endpoint,
			AccessKey:     st.MinIO.AccessKey,
			SecretKey:     st.MinIO.SecretKey,
			Bucket:        st.Bucket,
			UseSSL:        st.MinIO.UseSSL,
			PublicBaseURL: st.PublicBaseURL,
		})
		if err != nil {
			return fmt.Errorf("minio blob store init failed: %w", err)
		}
		a.blobs = blobs
	case config.StorageLocal:
		blobs, err := localstorage.New(st.Local)
		if err != nil {
			return fmt.Errorf("local blob store init failed: %w", err)
		}
		a.blobs = blobs
	default:
		a.blobs = memoryStorage.NewBlobStore(st.PublicBaseURL)
	}
	a.logger.Info("object storage initialized",
		zap.String("backend", st.Backend),
		zap.String("bucket", st.Bucket),
	)
	return nil
}

func (a *App) setupPublisher(ctx context.Context) error {
	ps := a.cfg.PubSub
	if ps.TopicName == "" || ps.ProjectID == "" {
		a.logger.Warn("no Pub/Sub topic configured, using in-memory publisher")
		a.publisher = memorypublisher.New()
		return nil
	}
	publisher, err := gcppublisher.Dial(ctx, ps.ProjectID)
	if err != nil {
		return fmt.Errorf("pubsub publisher init failed: %w", err)
	}
	a.pubsubPublisher = publisher
	a.publisher = publisher
	a.logger.Info("Pub/Sub publisher initialized",
		zap.String("project", ps.ProjectID),
		zap.String("topic", ps.TopicName),
	)
	return nil
}

func (a *App) setupProgress(ctx context.Context) error {
	pc := a.cfg.Progress
	if !pc.Enabled {
		a.logger.Info("progress tracking disabled")
		a.emitter = progress.Discard{}
		return nil
	}
	var sinkList []progress.Sink
	if pc.LogEnabled {
		sinkList = append(sinkList, progresssinks.NewLogSink(a.logger.Named("progress_log")))
	}
	if pc.PrometheusEnabled {
		sink, err := progresssinks.NewPrometheusSink(prometheus.DefaultRegisterer)
		if err != nil {
			return fmt.Errorf("progress prometheus sink: %w", err)
		}
		sinkList = append(sinkList, sink)
	}
	if pc.Redis.Enabled {
		a.redisClient = redis.NewClient(&redis.Options{Addr: pc.Redis.Addr})
		if err := a.redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("progress redis ping: %w", err)
		}
		sinkList = append(sinkList, progresssinks.NewRedisSink(a.redisClient, progresssinks.RedisConfig{
			Prefix:      pc.Redis.Prefix,
			SnapshotTTL: time.Duration(pc.Redis.SnapshotTTLSeconds) * time.Second,
		}))
	}
	if len(sinkList) == 0 {
		a.logger.Warn("progress tracking enabled but no sinks configured")
		a.emitter = progress.Discard{}
		return nil
	}
	hubCfg := progress.Config{
		BufferSize:     pc.BufferSize,
		MaxBatchEvents: pc.Batch.MaxEvents,
		MaxBatchWait:   time.Duration(pc.Batch.MaxWaitMs) * time.Millisecond,
		SinkTimeout:    time.Duration(pc.SinkTimeoutMs) * time.Millisecond,
		Logger:         a.logger,
	}
	a.progressHub = progress.NewHub(hubCfg, sinkList...)
	a.emitter = a.progressHub
	a.logger.Info("progress hub initialized",
		zap.Int("sinks", len(sinkList)),
		zap.Int("buffer_size", pc.BufferSize),
		zap.Duration("max_batch_wait", hubCfg.MaxBatchWait),
	)
	return nil
}

func (a *App) setupQueue() {
	qc := a.cfg.Queue
	if qc.Backend == config.QueueAsynq {
		a.producer = asynqueue.NewProducer(qc.RedisAddr, asynqueue.ProducerConfig{
			Queue:      qc.Name,
			MaxRetry:   qc.MaxRetry,
			JobTimeout: a.cfg.JobTimeout(),
		}, a.logger)
		a.logger.Info("asynq producer initialized", zap.String("redis_addr", qc.RedisAddr))
		return
	}
	a.memQueue = queueMemory.NewQueue(qc.Depth)
	workers := make([]*worker.Worker, 0, a.cfg.Workers.Count)
	for i := 0; i < a.cfg.Workers.Count; i++ {
		workers = append(workers, a.newWorker(a.memQueue, i))
	}
	a.dispatch = dispatcher.New(a.memQueue, workers)
	a.producer = a.dispatch
}

func (a *App) newWorker(q pagegen.Queue, index int) *worker.Worker {
	return worker.New(
		q,
		a.jobs,
		a.templates,
		a.pages,
		a.blobs,
		a.generator,
		a.publisher,
		a.emitter,
		a.clock,
		worker.Config{
			Topic:         a.cfg.PubSub.TopicName,
			ProgressEvery: a.cfg.Workers.ProgressEvery,
			MaxRetry:      a.cfg.Queue.MaxRetry,
			JobTimeout:    a.cfg.JobTimeout(),
			RetryDelay:    a.cfg.RetryDelay(),
		},
		a.logger.With(zap.Int("index", index)),
	)
}

// Migrate applies the embedded catalog migrations to cfg's database.
func Migrate(cfg *config.Config) error {
	if cfg.Database.DSN == "" {
		return errors.New("database.dsn is required to migrate")
	}
	if err := pgstore.Migrate(cfg.Database.DSN); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}
	return nil
}
