package sinks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/bhupendraedzeb-hub/programtic-seo/internal/progress"
)

// DefaultRedisPrefix namespaces the channels and snapshot keys.
const DefaultRedisPrefix = "pagegen"

// RedisConfig controls RedisSink.
type RedisConfig struct {
	Prefix string
	// SnapshotTTL bounds how long the latest job snapshot is kept (default 24h).
	SnapshotTTL time.Duration
}

// RedisSink publishes each event as JSON on "{prefix}:jobs:{job_id}" and keeps
// the latest counters in the hash "{prefix}:job:{job_id}" so dashboards can
// poll or subscribe.
type RedisSink struct {
	client redis.UniversalClient
	cfg    RedisConfig
}

// NewRedisSink constructs a RedisSink over client.
func NewRedisSink(client redis.UniversalClient, cfg RedisConfig) *RedisSink {
	if cfg.Prefix == "" {
		cfg.Prefix = DefaultRedisPrefix
	}
	if cfg.SnapshotTTL <= 0 {
		cfg.SnapshotTTL = 24 * time.Hour
	}
	return &RedisSink{client: client, cfg: cfg}
}

// Channel returns the pub/sub channel for a job.
func (s *RedisSink) Channel(jobID string) string {
	return fmt.Sprintf("%s:jobs:%s", s.cfg.Prefix, jobID)
}

// SnapshotKey returns the hash key holding a job's latest counters.
func (s *RedisSink) SnapshotKey(jobID string) string {
	return fmt.Sprintf("%s:job:%s", s.cfg.Prefix, jobID)
}

type redisEvent struct {
	JobID     string `json:"job_id"`
	Stage     string `json:"stage"`
	TS        string `json:"ts"`
	Row       int    `json:"row,omitempty"`
	Slug      string `json:"slug,omitempty"`
	URL       string `json:"url,omitempty"`
	SEOScore  int    `json:"seo_score,omitempty"`
	Processed int    `json:"processed_rows"`
	Failed    int    `json:"failed_rows"`
	Total     int    `json:"total_rows"`
	Status    string `json:"status,omitempty"`
	Note      string `json:"note,omitempty"`
}

// Consume pipelines one PUBLISH per event plus a snapshot update per event.
func (s *RedisSink) Consume(ctx context.Context, batch []progress.Event) error {
	if s == nil || s.client == nil || len(batch) == 0 {
		return nil
	}
	pipe := s.client.Pipeline()
	for _, evt := range batch {
		payload, err := json.Marshal(redisEvent{
			JobID:     evt.JobID,
			Stage:     string(evt.Stage),
			TS:        evt.TS.UTC().Format(time.RFC3339Nano),
			Row:       evt.Row,
			Slug:      evt.Slug,
			URL:       evt.URL,
			SEOScore:  evt.SEOScore,
			Processed: evt.Processed,
			Failed:    evt.Failed,
			Total:     evt.Total,
			Status:    string(evt.Status),
			Note:      evt.Note,
		})
		if err != nil {
			return fmt.Errorf("marshal progress event: %w", err)
		}
		pipe.Publish(ctx, s.Channel(evt.JobID), payload)

		fields := map[string]any{
			"stage":          string(evt.Stage),
			"processed_rows": evt.Processed,
			"failed_rows":    evt.Failed,
			"total_rows":     evt.Total,
			"updated_at":     evt.TS.UTC().Format(time.RFC3339Nano),
		}
		if evt.Status != "" {
			fields["status"] = string(evt.Status)
		}
		key := s.SnapshotKey(evt.JobID)
		pipe.HSet(ctx, key, fields)
		pipe.Expire(ctx, key, s.cfg.SnapshotTTL)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis progress pipeline: %w", err)
	}
	return nil
}

// Close implements the Sink interface. The client is owned by the caller.
func (s *RedisSink) Close(context.Context) error {
	return nil
}
