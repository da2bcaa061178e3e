package asynqueue

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/bhupendraedzeb-hub/programtic-seo/internal/pagegen"
)

type fakeEnqueuer struct {
	task   *asynq.Task
	opts   []asynq.Option
	err    error
	closed bool
}

func (f *fakeEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	f.task = task
	f.opts = opts
	if f.err != nil {
		return nil, f.err
	}
	return &asynq.TaskInfo{ID: "job-1", Queue: DefaultQueue}, nil
}

func (f *fakeEnqueuer) Close() error {
	f.closed = true
	return nil
}

type fakeProcessor struct {
	err  error
	got  pagegen.QueueItem
	runs int
}

func (f *fakeProcessor) Process(_ context.Context, item pagegen.QueueItem) error {
	f.runs++
	f.got = item
	return f.err
}

func TestBulkTaskRoundTrip(t *testing.T) {
	t.Parallel()

	item := pagegen.QueueItem{
		JobID:      "job-1",
		OwnerID:    "owner",
		TemplateID: "tmpl",
		Rows:       []pagegen.Row{{"title": "Alpha"}},
	}
	task, err := NewBulkTask(item)
	require.NoError(t, err)
	require.Equal(t, TaskTypeBulkGenerate, task.Type())

	decoded, err := DecodeBulkTask(task)
	require.NoError(t, err)
	require.Equal(t, item, decoded)
}

func TestDecodeBulkTaskRejectsMalformedPayload(t *testing.T) {
	t.Parallel()

	_, err := DecodeBulkTask(asynq.NewTask(TaskTypeBulkGenerate, []byte("{")))
	require.Error(t, err)

	_, err = DecodeBulkTask(asynq.NewTask(TaskTypeBulkGenerate, []byte(`{"owner_id":"x"}`)))
	require.ErrorContains(t, err, "missing job id")
}

func TestProducerEnqueueOptions(t *testing.T) {
	t.Parallel()

	client := &fakeEnqueuer{}
	p := newProducer(client, ProducerConfig{MaxRetry: 3, JobTimeout: 10 * time.Minute}, nil)

	require.NoError(t, p.Enqueue(context.Background(), pagegen.QueueItem{JobID: "job-1"}))
	require.NotNil(t, client.task)

	values := map[asynq.OptionType]any{}
	for _, opt := range client.opts {
		values[opt.Type()] = opt.Value()
	}
	require.Equal(t, DefaultQueue, values[asynq.QueueOpt])
	require.Equal(t, 3, values[asynq.MaxRetryOpt])
	require.Equal(t, 10*time.Minute, values[asynq.TimeoutOpt])
	require.Equal(t, "job-1", values[asynq.TaskIDOpt])

	require.NoError(t, p.Close())
	require.True(t, client.closed)
}

func TestProducerEnqueueErrors(t *testing.T) {
	t.Parallel()

	dup := newProducer(&fakeEnqueuer{err: asynq.ErrTaskIDConflict}, ProducerConfig{}, nil)
	require.NoError(t, dup.Enqueue(context.Background(), pagegen.QueueItem{JobID: "job-1"}))

	boom := errors.New("redis down")
	failing := newProducer(&fakeEnqueuer{err: boom}, ProducerConfig{}, nil)
	err := failing.Enqueue(context.Background(), pagegen.QueueItem{JobID: "job-2"})
	require.ErrorIs(t, err, boom)
	require.ErrorContains(t, err, "job-2")
}

func TestHandleTask(t *testing.T) {
	t.Parallel()

	task, err := NewBulkTask(pagegen.QueueItem{JobID: "job-1"})
	require.NoError(t, err)

	tests := []struct {
		name     string
		err      error
		wantErr  bool
		wantSkip bool
	}{
		{name: "success"},
		{name: "transient", err: errors.New("db timeout"), wantErr: true},
		{name: "job missing", err: fmt.Errorf("load: %w", pagegen.ErrJobNotFound), wantErr: true, wantSkip: true},
		{name: "template missing", err: pagegen.ErrTemplateNotFound, wantErr: true, wantSkip: true},
		{name: "marked failed", err: pagegen.ErrJobFailed, wantErr: true, wantSkip: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			proc := &fakeProcessor{err: tt.err}
			err := NewHandler(proc, nil).HandleTask(context.Background(), task)
			require.Equal(t, 1, proc.runs)
			require.Equal(t, "job-1", proc.got.JobID)
			if !tt.wantErr {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			require.Equal(t, tt.wantSkip, errors.Is(err, asynq.SkipRetry))
			require.ErrorIs(t, err, tt.err)
		})
	}
}

func TestHandleTaskSkipsMalformedPayload(t *testing.T) {
	t.Parallel()

	proc := &fakeProcessor{}
	err := NewHandler(proc, nil).HandleTask(context.Background(), asynq.NewTask(TaskTypeBulkGenerate, []byte("nope")))
	require.ErrorIs(t, err, asynq.SkipRetry)
	require.Zero(t, proc.runs)
}
