// Package worker implements the bulk page generation orchestrator.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/bhupendraedzeb-hub/programtic-seo/internal/metrics"
	"github.com/bhupendraedzeb-hub/programtic-seo/internal/pagegen"
	"github.com/bhupendraedzeb-hub/programtic-seo/internal/pipeline"
	"github.com/bhupendraedzeb-hub/programtic-seo/internal/progress"
	"github.com/bhupendraedzeb-hub/programtic-seo/internal/queue"
)

// Defaults applied by New.
const (
	DefaultProgressEvery = 10
	DefaultRetryDelay    = time.Second
	failureWriteTimeout  = 10 * time.Second
)

// Generator renders and stores one page.
type Generator interface {
	Generate(ctx context.Context, req pipeline.Request) (pagegen.Page, string, error)
}

// Config controls Worker behavior.
type Config struct {
	// Topic receives a completion message per finished job when set.
	Topic string
	// ProgressEvery persists progress after this many rows.
	ProgressEvery int
	// MaxRetry bounds redeliveries after the first attempt. Zero disables them.
	MaxRetry int
	// JobTimeout is the wall-clock budget of one in-process delivery.
	JobTimeout time.Duration
	// RetryDelay is multiplied by the attempt number before redelivery.
	RetryDelay time.Duration
	Columns    []ColumnRule
}

func (c Config) withDefaults() Config {
	if c.ProgressEvery <= 0 {
		c.ProgressEvery = DefaultProgressEvery
	}
	if c.MaxRetry < 0 {
		c.MaxRetry = queue.DefaultMaxRetry
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = queue.DefaultJobTimeout
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = DefaultRetryDelay
	}
	if len(c.Columns) == 0 {
		c.Columns = DefaultColumns
	}
	return c
}

// Worker consumes bulk job deliveries and drives each job to a terminal state.
type Worker struct {
	queue     pagegen.Queue
	jobs      pagegen.JobStore
	templates pagegen.TemplateStore
	pages     pagegen.PageStore
	blobs     pagegen.BlobStore
	generator Generator
	publisher pagegen.Publisher
	emitter   progress.Emitter
	clock     pagegen.Clock
	cfg       Config
	logger    *zap.Logger
}

// New constructs a Worker. q is only needed by Run; publisher and emitter may
// be nil.
func New(
	q pagegen.Queue,
	jobs pagegen.JobStore,
	templates pagegen.TemplateStore,
	pages pagegen.PageStore,
	blobs pagegen.BlobStore,
	generator Generator,
	publisher pagegen.Publisher,
	emitter progress.Emitter,
	clock pagegen.Clock,
	cfg Config,
	logger *zap.Logger,
) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if emitter == nil {
		emitter = progress.Discard{}
	}
	return &Worker{
		queue:     q,
		jobs:      jobs,
		templates: templates,
		pages:     pages,
		blobs:     blobs,
		generator: generator,
		publisher: publisher,
		emitter:   emitter,
		clock:     clock,
		cfg:       cfg.withDefaults(),
		logger:    logger.Named("worker"),
	}
}

// Run blocks, consuming queue items until the context finishes or the queue
// is closed.
func (w *Worker) Run(ctx context.Context) {
	for {
		item, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, pagegen.ErrQueueClosed) {
				return
			}
			w.logger.Error("queue dequeue failed", zap.Error(err))
			continue
		}
		w.logger.Debug("dequeued job", zap.String("job_id", item.JobID), zap.Int("attempt", item.Attempt))
		w.deliver(ctx, item)
	}
}

func (w *Worker) deliver(ctx context.Context, item pagegen.QueueItem) {
	jobCtx, cancel := context.WithTimeout(ctx, w.cfg.JobTimeout)
	err := w.Process(jobCtx, item)
	cancel()
	if err == nil {
		return
	}
	if pagegen.IsPermanent(err) {
		w.logger.Warn("job failed permanently", zap.String("job_id", item.JobID), zap.Error(err))
		return
	}
	if item.Attempt >= w.cfg.MaxRetry || ctx.Err() != nil {
		w.logger.Error("job delivery abandoned",
			zap.String("job_id", item.JobID),
			zap.Int("attempt", item.Attempt),
			zap.Error(err),
		)
		return
	}
	item.Attempt++
	go w.redeliver(ctx, item)
}

func (w *Worker) redeliver(ctx context.Context, item pagegen.QueueItem) {
	select {
	case <-ctx.Done():
		return
	case <-time.After(time.Duration(item.Attempt) * w.cfg.RetryDelay):
	}
	if err := w.queue.Enqueue(ctx, item); err != nil {
		w.logger.Error("job redelivery failed", zap.String("job_id", item.JobID), zap.Error(err))
	}
}

// Process runs one delivery of a bulk job. Rows already resolved by an earlier
// delivery are not regenerated. Errors satisfying pagegen.IsPermanent must not
// be retried.
func (w *Worker) Process(ctx context.Context, item pagegen.QueueItem) error {
	metrics.IncActiveWorkers()
	defer metrics.DecActiveWorkers()

	logger := w.logger.With(zap.String("job_id", item.JobID))
	job, err := w.jobs.GetJob(ctx, item.JobID)
	if err != nil {
		return fmt.Errorf("load job %s: %w", item.JobID, err)
	}
	if job.Status.Terminal() {
		logger.Info("skipping finished job", zap.String("status", string(job.Status)))
		return nil
	}
	attempts, err := w.jobs.IncrementAttempts(ctx, job.ID)
	if err != nil {
		return fmt.Errorf("record attempt: %w", err)
	}

	run := newJobRun(job, item.Rows, w.clock.Now())
	if err := w.jobs.UpdateJobProgress(ctx, job.ID, run.progress(pagegen.JobStatusProcessing)); err != nil {
		return fmt.Errorf("mark processing: %w", err)
	}
	logger.Info("job started",
		zap.Int("rows", run.total),
		zap.Int("attempt", attempts),
		zap.Int("resolved_rows", len(run.outcomes)),
	)
	w.emit(run, progress.Event{Stage: progress.StageJobStart})

	if err := w.execute(ctx, run); err != nil {
		return w.fail(ctx, run, attempts, err)
	}
	return nil
}

func (w *Worker) execute(ctx context.Context, run *jobRun) error {
	tmpl, err := w.templates.GetTemplate(ctx, run.job.OwnerID, run.job.TemplateID)
	if err != nil {
		return fmt.Errorf("load template: %w", err)
	}

	for i, raw := range run.rows {
		rowNum := i + 1
		if outcome, ok := run.outcomes[rowNum]; ok {
			restored, err := w.restoreRow(ctx, run, rowNum, outcome)
			if err != nil {
				return err
			}
			if restored {
				continue
			}
		}
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("job interrupted before row %d: %w", rowNum, err)
		}
		adopted, err := w.adoptRow(ctx, run, rowNum)
		if err != nil {
			return err
		}
		if !adopted {
			if err := w.processRow(ctx, run, tmpl, i, raw); err != nil {
				return err
			}
		}
		if rowNum%w.cfg.ProgressEvery == 0 || rowNum == run.total {
			if err := w.jobs.UpdateJobProgress(ctx, run.job.ID, run.progress(pagegen.JobStatusProcessing)); err != nil {
				return fmt.Errorf("persist progress: %w", err)
			}
		}
	}

	if len(run.entries) > 0 {
		if err := w.uploadArchive(ctx, run); err != nil {
			return err
		}
	}

	status := pagegen.JobStatusCompleted
	if run.failed > 0 {
		status = pagegen.JobStatusCompletedWithErrors
	}
	if err := w.jobs.UpdateJobProgress(ctx, run.job.ID, run.progress(status)); err != nil {
		return fmt.Errorf("persist final status: %w", err)
	}
	w.finish(ctx, run, status, "")
	return nil
}

// processRow generates one page. Row-level failures are recorded on run; only
// cancellation of ctx is returned.
func (w *Worker) processRow(
	ctx context.Context,
	run *jobRun,
	tmpl pagegen.Template,
	index int,
	raw pagegen.Row,
) error {
	rowNum := index + 1
	start := time.Now()
	row := normalizeRow(raw)
	fields := deriveFields(w.cfg.Columns, row, index)

	page, url, err := w.generateRow(ctx, run, tmpl, rowNum, row, fields)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("job interrupted at row %d: %w", rowNum, ctxErr)
		}
		run.recordFailure(rowNum, row, err)
		metrics.ObserveRow(string(pagegen.RowFailed))
		w.logger.Warn("row failed",
			zap.String("job_id", run.job.ID),
			zap.Int("row", rowNum),
			zap.Error(err),
		)
		w.emit(run, progress.Event{
			Stage: progress.StageRowFailed,
			Row:   rowNum,
			Dur:   time.Since(start),
			Note:  err.Error(),
		})
		return nil
	}

	run.recordSuccess(rowNum, page, url)
	metrics.ObserveRow(string(pagegen.RowSucceeded))
	w.emit(run, progress.Event{
		Stage:    progress.StageRowDone,
		Row:      rowNum,
		Slug:     page.Slug,
		URL:      url,
		SEOScore: page.SEOScore,
		Dur:      time.Since(start),
	})
	return nil
}

func (w *Worker) generateRow(
	ctx context.Context,
	run *jobRun,
	tmpl pagegen.Template,
	rowNum int,
	row pagegen.Row,
	fields rowFields,
) (pagegen.Page, string, error) {
	if err := pipeline.CheckVariables(tmpl.Variables, row); err != nil {
		return pagegen.Page{}, "", err
	}
	return w.generator.Generate(ctx, pipeline.Request{
		Template:        tmpl,
		OwnerID:         run.job.OwnerID,
		Variables:       row,
		Title:           fields.Title,
		MetaDescription: fields.MetaDescription,
		Slug:            fields.Slug,
		IsBulk:          true,
		JobID:           run.job.ID,
		JobRow:          rowNum,
	})
}

// restoreRow re-attaches a row resolved by an earlier delivery. Counters and
// error descriptors were restored with the job; only the page is reloaded.
// A page deleted since then is forgotten so the row is generated again.
func (w *Worker) restoreRow(
	ctx context.Context,
	run *jobRun,
	rowNum int,
	outcome pagegen.RowOutcome,
) (bool, error) {
	if outcome.Status != pagegen.RowSucceeded || outcome.PageID == "" {
		return true, nil
	}
	page, err := w.pages.GetPage(ctx, run.job.OwnerID, outcome.PageID)
	if errors.Is(err, pagegen.ErrPageNotFound) {
		w.logger.Warn("generated page deleted, regenerating row",
			zap.String("job_id", run.job.ID),
			zap.Int("row", rowNum),
			zap.String("page_id", outcome.PageID),
		)
		run.forget(rowNum)
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("restore row %d: %w", rowNum, err)
	}
	run.attach(page, page.StorageURL)
	return true, nil
}

// adoptRow records a page generated for rowNum by a delivery that died before
// its progress checkpoint.
func (w *Worker) adoptRow(ctx context.Context, run *jobRun, rowNum int) (bool, error) {
	page, found, err := w.pages.FindPageByJobRow(ctx, run.job.OwnerID, run.job.ID, rowNum)
	if err != nil {
		return false, fmt.Errorf("check row %d: %w", rowNum, err)
	}
	if !found {
		return false, nil
	}
	run.recordSuccess(rowNum, page, page.StorageURL)
	metrics.ObserveRow(string(pagegen.RowSucceeded))
	w.logger.Info("row already generated",
		zap.String("job_id", run.job.ID),
		zap.Int("row", rowNum),
		zap.String("page_id", page.ID),
	)
	w.emit(run, progress.Event{
		Stage:    progress.StageRowDone,
		Row:      rowNum,
		Slug:     page.Slug,
		URL:      page.StorageURL,
		SEOScore: page.SEOScore,
	})
	return true, nil
}

func (w *Worker) uploadArchive(ctx context.Context, run *jobRun) error {
	data, err := buildArchive(run.urls, run.entries)
	if err != nil {
		return fmt.Errorf("build archive: %w", err)
	}
	if w.blobs == nil {
		return fmt.Errorf("upload archive: %w", pagegen.ErrStorageUnavailable)
	}
	url, err := w.blobs.Upload(ctx, archiveKey(run.job.OwnerID, run.job.ID), ArchiveContentType, data)
	if err != nil {
		return fmt.Errorf("upload archive: %w", err)
	}
	run.results = append(run.results, pagegen.ResultDescriptor{Type: pagegen.ResultTypeZip, URL: url})
	w.emit(run, progress.Event{Stage: progress.StageArchiveUploaded, URL: url})
	w.logger.Info("archive uploaded",
		zap.String("job_id", run.job.ID),
		zap.String("url", url),
		zap.Int("entries", len(run.entries)),
		zap.Int("bytes", len(data)),
	)
	return nil
}

// fail decides whether a job-level error is final. Non-final errors leave the
// job processing so a redelivery can resume it.
func (w *Worker) fail(ctx context.Context, run *jobRun, attempts int, cause error) error {
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), failureWriteTimeout)
	defer cancel()

	final := pagegen.IsPermanent(cause) || attempts > w.cfg.MaxRetry
	if !final {
		w.logger.Warn("job attempt failed, awaiting redelivery",
			zap.String("job_id", run.job.ID),
			zap.Int("attempt", attempts),
			zap.Error(cause),
		)
		if err := w.jobs.UpdateJobProgress(writeCtx, run.job.ID, run.progress(pagegen.JobStatusProcessing)); err != nil {
			w.logger.Error("persist progress after failure", zap.String("job_id", run.job.ID), zap.Error(err))
		}
		return cause
	}

	w.logger.Error("job failed",
		zap.String("job_id", run.job.ID),
		zap.Int("attempt", attempts),
		zap.Error(cause),
	)
	failure := pagegen.JobProgress{
		Status:      pagegen.JobStatusFailed,
		TotalRows:   run.total,
		ResultURLs:  []pagegen.ResultDescriptor{},
		Errors:      []pagegen.ErrorDescriptor{{Error: cause.Error()}},
		RowOutcomes: run.outcomes,
	}
	if err := w.jobs.UpdateJobProgress(writeCtx, run.job.ID, failure); err != nil {
		w.logger.Error("mark job failed", zap.String("job_id", run.job.ID), zap.Error(err))
		if errors.Is(err, pagegen.ErrJobNotFound) {
			return fmt.Errorf("%w: %w", pagegen.ErrJobFailed, err)
		}
		return fmt.Errorf("mark job failed: %w", err)
	}
	run.processed, run.failed = 0, 0
	w.finish(writeCtx, run, pagegen.JobStatusFailed, cause.Error())
	return fmt.Errorf("%w: %w", pagegen.ErrJobFailed, cause)
}

// finish reports a terminal status to metrics, the progress hub and the
// completion topic.
func (w *Worker) finish(ctx context.Context, run *jobRun, status pagegen.JobStatus, note string) {
	metrics.ObserveJob(string(status))
	stage := progress.StageJobDone
	if status == pagegen.JobStatusFailed {
		stage = progress.StageJobFailed
	}
	w.emit(run, progress.Event{
		Stage:  stage,
		Status: status,
		Dur:    w.clock.Now().Sub(run.started),
		Note:   note,
	})
	w.logger.Info("job finished",
		zap.String("job_id", run.job.ID),
		zap.String("status", string(status)),
		zap.Int("processed_rows", run.processed),
		zap.Int("failed_rows", run.failed),
	)
	w.publishCompletion(ctx, run, status)
}

func (w *Worker) publishCompletion(ctx context.Context, run *jobRun, status pagegen.JobStatus) {
	if w.cfg.Topic == "" || w.publisher == nil {
		return
	}
	payload := map[string]any{
		"job_id":         run.job.ID,
		"owner_id":       run.job.OwnerID,
		"template_id":    run.job.TemplateID,
		"status":         string(status),
		"total_rows":     run.total,
		"processed_rows": run.processed,
		"failed_rows":    run.failed,
		"archive_url":    run.archiveURL(),
		"timestamp":      w.clock.Now().Format(time.RFC3339),
	}
	id, err := w.publisher.Publish(ctx, w.cfg.Topic, payload)
	if err != nil {
		w.logger.Warn("publish completion failed", zap.String("job_id", run.job.ID), zap.Error(err))
		return
	}
	w.logger.Debug("completion published", zap.String("job_id", run.job.ID), zap.String("message_id", id))
}

func (w *Worker) emit(run *jobRun, evt progress.Event) {
	evt.JobID = run.job.ID
	evt.OwnerID = run.job.OwnerID
	evt.TS = w.clock.Now()
	evt.Processed = run.processed
	evt.Failed = run.failed
	evt.Total = run.total
	w.emitter.Emit(evt)
}
