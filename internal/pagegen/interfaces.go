package pagegen

import (
	"context"
	"time"
)

// TemplateStore persists templates and their derived variable rows.
type TemplateStore interface {
	CreateTemplate(ctx context.Context, tmpl Template) (Template, error)
	UpdateTemplate(ctx context.Context, tmpl Template) (Template, error)
	GetTemplate(ctx context.Context, ownerID, templateID string) (Template, error)
	ListTemplates(ctx context.Context, ownerID string) ([]Template, error)
	DeleteTemplate(ctx context.Context, ownerID, templateID string) error
	ListTemplateVariables(ctx context.Context, templateID string) ([]TemplateVariable, error)
}

// PageStore persists generated pages. CreatePage returns ErrSlugConflict when
// (owner, slug) is already taken.
type PageStore interface {
	CreatePage(ctx context.Context, page Page) (Page, error)
	GetPage(ctx context.Context, ownerID, pageID string) (Page, error)
	FindPageBySlug(ctx context.Context, ownerID, slug string) (Page, bool, error)
	// FindPageByJobRow looks up the page a bulk job generated for a 1-based row.
	FindPageByJobRow(ctx context.Context, ownerID, jobID string, row int) (Page, bool, error)
	TitleExists(ctx context.Context, ownerID, title string) (bool, error)
	ListPages(ctx context.Context, ownerID string) ([]Page, error)
	DeletePage(ctx context.Context, ownerID, pageID string) error
}

// JobStore persists bulk jobs and their progress.
type JobStore interface {
	CreateJob(ctx context.Context, job BulkJob) error
	GetJob(ctx context.Context, jobID string) (BulkJob, error)
	GetOwnedJob(ctx context.Context, ownerID, jobID string) (BulkJob, error)
	UpdateJobProgress(ctx context.Context, jobID string, progress JobProgress) error
	IncrementAttempts(ctx context.Context, jobID string) (int, error)
	ListJobs(ctx context.Context, ownerID string, limit int) ([]BulkJob, error)
	DeleteJob(ctx context.Context, ownerID, jobID string) error
	JobStats(ctx context.Context, ownerID string) (JobStats, error)
}

// BlobStore uploads payloads to object storage and builds their public URLs.
type BlobStore interface {
	Upload(ctx context.Context, key string, contentType string, data []byte) (string, error)
	PublicURL(key string) string
}

// Queue provides enqueue/dequeue semantics for bulk job deliveries.
type Queue interface {
	Enqueue(ctx context.Context, item QueueItem) error
	Dequeue(ctx context.Context) (QueueItem, error)
}

// Publisher pushes completion events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Hasher computes digests for content integrity.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces record IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
