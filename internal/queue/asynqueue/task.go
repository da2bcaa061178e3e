// Package asynqueue runs bulk job deliveries on a Redis-backed asynq queue.
package asynqueue

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/bhupendraedzeb-hub/programtic-seo/internal/pagegen"
)

// TaskTypeBulkGenerate is the asynq task type for one bulk job.
const TaskTypeBulkGenerate = "bulk:generate"

// NewBulkTask encodes a queue item as an asynq task.
func NewBulkTask(item pagegen.QueueItem) (*asynq.Task, error) {
	payload, err := json.Marshal(item)
	if err != nil {
		return nil, fmt.Errorf("marshal queue item: %w", err)
	}
	return asynq.NewTask(TaskTypeBulkGenerate, payload), nil
}

// DecodeBulkTask reverses NewBulkTask.
func DecodeBulkTask(task *asynq.Task) (pagegen.QueueItem, error) {
	var item pagegen.QueueItem
	if err := json.Unmarshal(task.Payload(), &item); err != nil {
		return pagegen.QueueItem{}, fmt.Errorf("unmarshal queue item: %w", err)
	}
	if item.JobID == "" {
		return pagegen.QueueItem{}, fmt.Errorf("queue item missing job id")
	}
	return item, nil
}
