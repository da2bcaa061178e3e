package worker

import (
	"bytes"
	"context"
	"errors"
	"io"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bhupendraedzeb-hub/programtic-seo/internal/clock/system"
	"github.com/bhupendraedzeb-hub/programtic-seo/internal/hash/sha256"
	"github.com/bhupendraedzeb-hub/programtic-seo/internal/id/uuid"
	"github.com/bhupendraedzeb-hub/programtic-seo/internal/pagegen"
	"github.com/bhupendraedzeb-hub/programtic-seo/internal/pipeline"
	"github.com/bhupendraedzeb-hub/programtic-seo/internal/progress"
	pubmemory "github.com/bhupendraedzeb-hub/programtic-seo/internal/publisher/memory"
	queuememory "github.com/bhupendraedzeb-hub/programtic-seo/internal/queue/memory"
	"github.com/bhupendraedzeb-hub/programtic-seo/internal/storage/memory"
)

const (
	ownerID    = "user-1"
	templateID = "tpl-1"
	topic      = "bulk-jobs"
	markup     = "<html><head><title>{{title}}</title></head><body>{{title}} | {{body}}</body></html>"
)

var pinned = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type recordingEmitter struct {
	mu     sync.Mutex
	events []progress.Event
}

func (r *recordingEmitter) Emit(evt progress.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
}

func (r *recordingEmitter) stages() []progress.Stage {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]progress.Stage, 0, len(r.events))
	for _, evt := range r.events {
		out = append(out, evt.Stage)
	}
	return out
}

// flakyBlobs rejects archive uploads while failArchives is positive.
type flakyBlobs struct {
	*memory.BlobStore
	mu           sync.Mutex
	failArchives int
}

func (f *flakyBlobs) Upload(ctx context.Context, key, contentType string, data []byte) (string, error) {
	if strings.HasSuffix(key, ".zip") {
		f.mu.Lock()
		fail := f.failArchives > 0
		if fail {
			f.failArchives--
		}
		f.mu.Unlock()
		if fail {
			return "", errors.New("bucket unavailable")
		}
	}
	return f.BlobStore.Upload(ctx, key, contentType, data)
}

type fixture struct {
	jobs      *memory.JobStore
	templates *memory.TemplateStore
	pages     *memory.PageStore
	blobs     *flakyBlobs
	publisher *pubmemory.Publisher
	emitter   *recordingEmitter
	queue     *queuememory.Queue
	worker    *Worker
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	clock := system.Fixed{At: pinned}
	f := &fixture{
		jobs:      memory.NewJobStore(clock),
		templates: memory.NewTemplateStore(),
		pages:     memory.NewPageStore(),
		blobs:     &flakyBlobs{BlobStore: memory.NewBlobStore("https://cdn.example.com")},
		publisher: pubmemory.New(),
		emitter:   &recordingEmitter{},
		queue:     queuememory.NewQueue(4),
	}
	gen := pipeline.New(f.pages, f.blobs, uuid.New(), sha256.New(), clock, pipeline.Config{}, nil)
	cfg.Topic = topic
	f.worker = New(f.queue, f.jobs, f.templates, f.pages, f.blobs, gen, f.publisher, f.emitter, clock, cfg, zap.NewNop())

	_, err := f.templates.CreateTemplate(context.Background(), pagegen.Template{
		ID:          templateID,
		OwnerID:     ownerID,
		Name:        "Landing",
		HTMLContent: markup,
		Variables:   []string{"title", "body"},
	})
	require.NoError(t, err)
	return f
}

func (f *fixture) createJob(t *testing.T, id string, rows []pagegen.Row) pagegen.QueueItem {
	t.Helper()
	require.NoError(t, f.jobs.CreateJob(context.Background(), pagegen.BulkJob{
		ID:         id,
		OwnerID:    ownerID,
		TemplateID: templateID,
		Filename:   "rows.csv",
		TotalRows:  len(rows),
		Status:     pagegen.JobStatusQueued,
		CreatedAt:  pinned,
		UpdatedAt:  pinned,
	}))
	return pagegen.QueueItem{JobID: id, OwnerID: ownerID, TemplateID: templateID, Rows: rows}
}

func (f *fixture) job(t *testing.T, id string) pagegen.BulkJob {
	t.Helper()
	job, err := f.jobs.GetJob(context.Background(), id)
	require.NoError(t, err)
	return job
}

func (f *fixture) pageCount(t *testing.T) int {
	t.Helper()
	pages, err := f.pages.ListPages(context.Background(), ownerID)
	require.NoError(t, err)
	return len(pages)
}

func readArchive(t *testing.T, data []byte) map[string]string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	out := make(map[string]string, len(zr.File))
	for _, file := range zr.File {
		rc, err := file.Open()
		require.NoError(t, err)
		body, err := io.ReadAll(rc)
		require.NoError(t, err)
		require.NoError(t, rc.Close())
		out[file.Name] = string(body)
	}
	return out
}

func rowsOf(titles ...string) []pagegen.Row {
	rows := make([]pagegen.Row, 0, len(titles))
	for _, title := range titles {
		rows = append(rows, pagegen.Row{"title": title, "body": "Body of " + title})
	}
	return rows
}

func TestWorker_Process_AllRowsSucceed(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Config{})
	item := f.createJob(t, "job-ok", rowsOf("Alpha", "Beta", "Gamma"))

	require.NoError(t, f.worker.Process(context.Background(), item))

	job := f.job(t, "job-ok")
	require.Equal(t, pagegen.JobStatusCompleted, job.Status)
	require.Equal(t, 3, job.TotalRows)
	require.Equal(t, 3, job.ProcessedRows)
	require.Zero(t, job.FailedRows)
	require.Empty(t, job.Errors)
	require.Equal(t, 1, job.Attempts)
	require.Len(t, job.ResultURLs, 4)

	last := job.ResultURLs[len(job.ResultURLs)-1]
	require.Equal(t, pagegen.ResultTypeZip, last.Type)
	require.Equal(t, "https://cdn.example.com/user-1/bulk-job-ok.zip", last.URL)
	require.Equal(t, "alpha", job.ResultURLs[0].Slug)
	require.NotNil(t, job.ResultURLs[0].SEOScore)

	data, contentType, ok := f.blobs.Object("user-1/bulk-job-ok.zip")
	require.True(t, ok)
	require.Equal(t, ArchiveContentType, contentType)
	entries := readArchive(t, data)
	require.Len(t, entries, 4)
	require.Contains(t, entries, ManifestName)
	require.Contains(t, entries["alpha.html"], "Alpha | Body of Alpha")
	require.Contains(t, entries["gamma.html"], `content="noindex, nofollow"`)
	require.Len(t, strings.Split(entries[ManifestName], "\n"), 3)
	require.Equal(t, job.ResultURLs[0].URL, strings.Split(entries[ManifestName], "\n")[0])

	require.Equal(t, []progress.Stage{
		progress.StageJobStart,
		progress.StageRowDone,
		progress.StageRowDone,
		progress.StageRowDone,
		progress.StageArchiveUploaded,
		progress.StageJobDone,
	}, f.emitter.stages())

	published := f.publisher.Topic(topic)
	require.Len(t, published, 1)
	payload, ok := published[0].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "job-ok", payload["job_id"])
	require.Equal(t, string(pagegen.JobStatusCompleted), payload["status"])
	require.Equal(t, last.URL, payload["archive_url"])
}

func TestWorker_Process_RowMissingVariableIsIsolated(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Config{})
	rows := rowsOf("One", "Two", "Three", "Four", "Five")
	rows[2] = pagegen.Row{"title": "Three", "body": "  "}
	item := f.createJob(t, "job-partial", rows)

	require.NoError(t, f.worker.Process(context.Background(), item))

	job := f.job(t, "job-partial")
	require.Equal(t, pagegen.JobStatusCompletedWithErrors, job.Status)
	require.Equal(t, 4, job.ProcessedRows)
	require.Equal(t, 1, job.FailedRows)
	require.Len(t, job.Errors, 1)
	require.Equal(t, 3, job.Errors[0].Row)
	require.Equal(t, "Missing variables: body", job.Errors[0].Error)
	require.Equal(t, "Three", job.Errors[0].Data["title"])
	require.Equal(t, pagegen.RowFailed, job.RowOutcomes[3].Status)
	require.Equal(t, pagegen.RowSucceeded, job.RowOutcomes[5].Status)

	require.Len(t, job.ResultURLs, 5)
	require.Equal(t, pagegen.ResultTypeZip, job.ResultURLs[4].Type)
	require.Equal(t, 4, f.pageCount(t))
	require.Contains(t, f.emitter.stages(), progress.StageRowFailed)
}

func TestWorker_Process_NoPagesSkipsArchive(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Config{})
	item := f.createJob(t, "job-empty", []pagegen.Row{{"title": "Only title"}})

	require.NoError(t, f.worker.Process(context.Background(), item))

	job := f.job(t, "job-empty")
	require.Equal(t, pagegen.JobStatusCompletedWithErrors, job.Status)
	require.Empty(t, job.ResultURLs)
	_, _, ok := f.blobs.Object("user-1/bulk-job-empty.zip")
	require.False(t, ok)
}

func TestWorker_Process_MissingTemplateFailsJob(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Config{MaxRetry: 3})
	item := f.createJob(t, "job-orphan", rowsOf("Alpha"))
	require.NoError(t, f.templates.DeleteTemplate(context.Background(), ownerID, templateID))

	err := f.worker.Process(context.Background(), item)
	require.ErrorIs(t, err, pagegen.ErrJobFailed)
	require.ErrorIs(t, err, pagegen.ErrTemplateNotFound)
	require.True(t, pagegen.IsPermanent(err))

	job := f.job(t, "job-orphan")
	require.Equal(t, pagegen.JobStatusFailed, job.Status)
	require.Zero(t, job.ProcessedRows)
	require.Zero(t, job.FailedRows)
	require.Empty(t, job.ResultURLs)
	require.Len(t, job.Errors, 1)
	require.Zero(t, job.Errors[0].Row)
	require.Contains(t, job.Errors[0].Error, "template not found")

	stages := f.emitter.stages()
	require.Equal(t, progress.StageJobFailed, stages[len(stages)-1])
	require.Len(t, f.publisher.Topic(topic), 1)
}

func TestWorker_Process_MissingJob(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Config{})
	err := f.worker.Process(context.Background(), pagegen.QueueItem{JobID: "ghost"})
	require.ErrorIs(t, err, pagegen.ErrJobNotFound)
	require.True(t, pagegen.IsPermanent(err))
	require.Empty(t, f.emitter.stages())
}

func TestWorker_Process_SkipsTerminalJob(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Config{})
	item := f.createJob(t, "job-done", rowsOf("Alpha"))
	require.NoError(t, f.jobs.UpdateJobProgress(context.Background(), "job-done", pagegen.JobProgress{
		Status:        pagegen.JobStatusCompleted,
		TotalRows:     1,
		ProcessedRows: 1,
	}))

	require.NoError(t, f.worker.Process(context.Background(), item))
	require.Zero(t, f.job(t, "job-done").Attempts)
	require.Zero(t, f.pageCount(t))
}

func TestWorker_Process_ResumesResolvedRows(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Config{})
	item := f.createJob(t, "job-resume", rowsOf("Alpha", "Beta", "Gamma"))

	existing, err := f.pages.CreatePage(context.Background(), pagegen.Page{
		ID:          "page-alpha",
		OwnerID:     ownerID,
		TemplateID:  templateID,
		JobID:       "job-resume",
		Title:       "Alpha",
		Slug:        "alpha",
		HTMLContent: "<html>stored alpha</html>",
		StorageURL:  "https://cdn.example.com/user-1/alpha-stored.html",
		SEOScore:    100,
		IsBulk:      true,
	})
	require.NoError(t, err)
	require.NoError(t, f.jobs.UpdateJobProgress(context.Background(), "job-resume", pagegen.JobProgress{
		Status:        pagegen.JobStatusProcessing,
		TotalRows:     3,
		ProcessedRows: 1,
		FailedRows:    1,
		Errors:        []pagegen.ErrorDescriptor{{Row: 2, Error: "Missing variables: body"}},
		RowOutcomes: map[int]pagegen.RowOutcome{
			1: {Status: pagegen.RowSucceeded, PageID: existing.ID},
			2: {Status: pagegen.RowFailed},
		},
	}))

	require.NoError(t, f.worker.Process(context.Background(), item))

	job := f.job(t, "job-resume")
	require.Equal(t, pagegen.JobStatusCompletedWithErrors, job.Status)
	require.Equal(t, 2, job.ProcessedRows)
	require.Equal(t, 1, job.FailedRows)
	require.Len(t, job.Errors, 1)
	require.Equal(t, 2, job.Errors[0].Row)
	require.Equal(t, 2, f.pageCount(t), "only the unresolved row is generated")

	require.Len(t, job.ResultURLs, 3)
	require.Equal(t, existing.StorageURL, job.ResultURLs[0].URL)
	require.Equal(t, "gamma", job.ResultURLs[1].Slug)

	data, _, ok := f.blobs.Object("user-1/bulk-job-resume.zip")
	require.True(t, ok)
	entries := readArchive(t, data)
	require.Equal(t, "<html>stored alpha</html>", entries["alpha.html"])
	require.Contains(t, entries, "gamma.html")
}

// dyingGenerator stops the calling goroutine when it reaches crashRow, the way
// a killed worker process abandons a delivery without persisting anything.
type dyingGenerator struct {
	Generator
	crashRow int
}

func (g dyingGenerator) Generate(ctx context.Context, req pipeline.Request) (pagegen.Page, string, error) {
	if req.JobRow == g.crashRow {
		runtime.Goexit()
	}
	return g.Generator.Generate(ctx, req)
}

func TestWorker_Process_RedeliveryAfterCrashDoesNotDuplicatePages(t *testing.T) {
	t.Parallel()

	cfg := Config{ProgressEvery: 10, MaxRetry: 3}
	f := newFixture(t, cfg)
	item := f.createJob(t, "job-crash", rowsOf("Alpha", "Beta", "Gamma", "Delta", "Epsilon"))

	clock := system.Fixed{At: pinned}
	gen := pipeline.New(f.pages, f.blobs, uuid.New(), sha256.New(), clock, pipeline.Config{}, nil)
	dying := New(nil, f.jobs, f.templates, f.pages, f.blobs, dyingGenerator{Generator: gen, crashRow: 4},
		f.publisher, f.emitter, clock, cfg, zap.NewNop())

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = dying.Process(context.Background(), item)
	}()
	<-done

	require.Equal(t, 3, f.pageCount(t))
	crashed := f.job(t, "job-crash")
	require.Equal(t, pagegen.JobStatusProcessing, crashed.Status)
	require.Empty(t, crashed.RowOutcomes, "no checkpoint before the crash")

	require.NoError(t, f.worker.Process(context.Background(), item))

	job := f.job(t, "job-crash")
	require.Equal(t, pagegen.JobStatusCompleted, job.Status)
	require.Equal(t, 5, job.ProcessedRows)
	require.Zero(t, job.FailedRows)
	require.Equal(t, 2, job.Attempts)
	require.Equal(t, 5, f.pageCount(t))
	require.Len(t, job.ResultURLs, 6)
	require.Equal(t, "alpha", job.ResultURLs[0].Slug)

	data, _, ok := f.blobs.Object("user-1/bulk-job-crash.zip")
	require.True(t, ok)
	entries := readArchive(t, data)
	require.Len(t, entries, 6)
	for _, name := range []string{"alpha.html", "beta.html", "gamma.html", "delta.html", "epsilon.html"} {
		require.Contains(t, entries, name)
	}
}

func TestWorker_Process_RegeneratesDeletedResolvedPage(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Config{})
	item := f.createJob(t, "job-deleted", rowsOf("Alpha", "Beta"))
	require.NoError(t, f.jobs.UpdateJobProgress(context.Background(), "job-deleted", pagegen.JobProgress{
		Status:        pagegen.JobStatusProcessing,
		TotalRows:     2,
		ProcessedRows: 1,
		RowOutcomes: map[int]pagegen.RowOutcome{
			1: {Status: pagegen.RowSucceeded, PageID: "page-gone"},
		},
	}))

	require.NoError(t, f.worker.Process(context.Background(), item))

	job := f.job(t, "job-deleted")
	require.Equal(t, pagegen.JobStatusCompleted, job.Status)
	require.Equal(t, 2, job.ProcessedRows)
	require.Equal(t, 2, f.pageCount(t))
	require.NotEqual(t, "page-gone", job.RowOutcomes[1].PageID)

	data, _, ok := f.blobs.Object("user-1/bulk-job-deleted.zip")
	require.True(t, ok)
	entries := readArchive(t, data)
	require.Len(t, entries, job.ProcessedRows+1)
	require.Contains(t, entries, "alpha.html")
}

func TestWorker_Process_ArchiveFailureWaitsForRedelivery(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Config{MaxRetry: 1})
	f.blobs.failArchives = 2
	item := f.createJob(t, "job-archive", rowsOf("Alpha", "Beta"))

	err := f.worker.Process(context.Background(), item)
	require.Error(t, err)
	require.False(t, pagegen.IsPermanent(err))

	job := f.job(t, "job-archive")
	require.Equal(t, pagegen.JobStatusProcessing, job.Status)
	require.Equal(t, 2, job.ProcessedRows)
	require.Len(t, job.RowOutcomes, 2)

	err = f.worker.Process(context.Background(), item)
	require.ErrorIs(t, err, pagegen.ErrJobFailed)

	job = f.job(t, "job-archive")
	require.Equal(t, pagegen.JobStatusFailed, job.Status)
	require.Equal(t, 2, job.Attempts)
	require.Zero(t, job.ProcessedRows)
	require.Zero(t, job.FailedRows)
	require.Len(t, job.Errors, 1)
	require.Contains(t, job.Errors[0].Error, "bucket unavailable")
	require.Equal(t, 2, f.pageCount(t), "pages are not regenerated on redelivery")
}

func TestWorker_Run_RedeliversTransientFailures(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Config{MaxRetry: 2, RetryDelay: 5 * time.Millisecond})
	f.blobs.failArchives = 1
	item := f.createJob(t, "job-retry", rowsOf("Alpha", "Beta"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go f.worker.Run(ctx)

	require.NoError(t, f.queue.Enqueue(ctx, item))

	require.Eventually(t, func() bool {
		job, err := f.jobs.GetJob(context.Background(), "job-retry")
		return err == nil && job.Status == pagegen.JobStatusCompleted
	}, 2*time.Second, 10*time.Millisecond)

	job := f.job(t, "job-retry")
	require.Equal(t, 2, job.Attempts)
	require.Equal(t, 2, job.ProcessedRows)
	require.Equal(t, 2, f.pageCount(t))
}

func TestWorker_Run_StopsWhenQueueClosed(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Config{})
	require.NoError(t, f.queue.Close())

	done := make(chan struct{})
	go func() {
		f.worker.Run(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop after queue close")
	}
}

func TestWorker_Process_ProgressEveryPersistsIncrementally(t *testing.T) {
	t.Parallel()

	spy := &progressSpy{}
	f := newFixture(t, Config{ProgressEvery: 2})
	f.worker.jobs = spy.wrap(f.jobs)
	item := f.createJob(t, "job-steps", rowsOf("A1", "A2", "A3", "A4", "A5"))

	require.NoError(t, f.worker.Process(context.Background(), item))

	// processing, rows 2 and 4, last row 5, final status.
	require.Equal(t, []int{0, 2, 4, 5, 5}, spy.processedSeen())
}

type progressSpy struct {
	pagegen.JobStore
	mu   sync.Mutex
	seen []int
}

func (s *progressSpy) wrap(inner pagegen.JobStore) *progressSpy {
	s.JobStore = inner
	return s
}

func (s *progressSpy) UpdateJobProgress(ctx context.Context, jobID string, p pagegen.JobProgress) error {
	s.mu.Lock()
	s.seen = append(s.seen, p.ProcessedRows)
	s.mu.Unlock()
	return s.JobStore.UpdateJobProgress(ctx, jobID, p)
}

func (s *progressSpy) processedSeen() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.seen...)
}
