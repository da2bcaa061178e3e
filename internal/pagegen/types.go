package pagegen

import (
	"time"
)

// JobStatus represents the lifecycle state of a bulk job.
type JobStatus string

// Job status values persisted in the job store.
const (
	JobStatusQueued              JobStatus = "queued"
	JobStatusProcessing          JobStatus = "processing"
	JobStatusCompleted           JobStatus = "completed"
	JobStatusCompletedWithErrors JobStatus = "completed_with_errors"
	JobStatusFailed              JobStatus = "failed"
)

// Terminal reports whether no further transitions are expected.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusCompletedWithErrors, JobStatusFailed:
		return true
	default:
		return false
	}
}

// PageStatusActive is the status of every persisted page.
const PageStatusActive = "active"

// Robots directives injected by the pipeline.
const (
	RobotsIndex   = "index, follow"
	RobotsNoIndex = "noindex, nofollow"
)

// Template is a user-owned HTML document with {{placeholders}}.
type Template struct {
	ID          string         `json:"id"`
	OwnerID     string         `json:"user_id"`
	Name        string         `json:"name"`
	HTMLContent string         `json:"html_content"`
	Variables   []string       `json:"variables"`
	SEOChecks   map[string]any `json:"seo_checks"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// TemplateVariable is a named input bound to exactly one template.
type TemplateVariable struct {
	ID          string    `json:"id"`
	TemplateID  string    `json:"template_id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Required    bool      `json:"required"`
	CreatedAt   time.Time `json:"created_at"`
}

// SEOData is the detail blob stored alongside a page's score.
type SEOData struct {
	Issues      []string `json:"issues"`
	Warnings    []string `json:"warnings"`
	Suggestions []string `json:"suggestions"`
	WordCount   int      `json:"word_count"`
}

// Page is a rendered, stored and catalogued document.
type Page struct {
	ID              string    `json:"id"`
	OwnerID         string    `json:"user_id"`
	TemplateID      string    `json:"template_id,omitempty"`
	JobID           string    `json:"job_id,omitempty"`
	JobRow          int       `json:"job_row,omitempty"`
	Title           string    `json:"title"`
	MetaDescription string    `json:"meta_description"`
	Slug            string    `json:"slug"`
	HTMLContent     string    `json:"html_content"`
	StorageURL      string    `json:"storage_url"`
	ContentHash     string    `json:"content_hash"`
	WordCount       int       `json:"word_count"`
	SEOScore        int       `json:"seo_score"`
	SEOData         SEOData   `json:"seo_data"`
	Status          string    `json:"status"`
	IsBulk          bool      `json:"is_bulk"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// ResultDescriptor describes one generated page, or the archive when Type is "zip".
type ResultDescriptor struct {
	Type     string `json:"type,omitempty"`
	URL      string `json:"url"`
	Title    string `json:"title,omitempty"`
	Slug     string `json:"slug,omitempty"`
	SEOScore *int   `json:"seo_score,omitempty"`
}

// ResultTypeZip marks the archive descriptor in a job's result list.
const ResultTypeZip = "zip"

// ErrorDescriptor records a failed row. Row is zero for job-level failures.
type ErrorDescriptor struct {
	Row   int               `json:"row,omitempty"`
	Error string            `json:"error"`
	Data  map[string]string `json:"data,omitempty"`
}

// RowStatus is the persisted outcome of a single bulk row.
type RowStatus string

// Row outcome values.
const (
	RowSucceeded RowStatus = "succeeded"
	RowFailed    RowStatus = "failed"
)

// RowOutcome marks a row as resolved so a redelivered job can skip it.
type RowOutcome struct {
	Status RowStatus `json:"status"`
	PageID string    `json:"page_id,omitempty"`
}

// BulkJob tracks the generation of many pages from one template.
type BulkJob struct {
	ID            string             `json:"id"`
	OwnerID       string             `json:"user_id"`
	TemplateID    string             `json:"template_id"`
	Filename      string             `json:"csv_filename"`
	TotalRows     int                `json:"total_rows"`
	ProcessedRows int                `json:"processed_rows"`
	FailedRows    int                `json:"failed_rows"`
	Status        JobStatus          `json:"status"`
	ResultURLs    []ResultDescriptor `json:"result_urls"`
	Errors        []ErrorDescriptor  `json:"errors"`
	RowOutcomes   map[int]RowOutcome `json:"row_outcomes,omitempty"`
	Attempts      int                `json:"attempts"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
}

// JobProgress is the mutable part of a BulkJob written by the orchestrator.
type JobProgress struct {
	Status        JobStatus
	TotalRows     int
	ProcessedRows int
	FailedRows    int
	ResultURLs    []ResultDescriptor
	Errors        []ErrorDescriptor
	RowOutcomes   map[int]RowOutcome
}

// JobStats aggregates an owner's jobs by status.
type JobStats struct {
	Total      int `json:"total_jobs"`
	Queued     int `json:"queued"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
}

// Row is one record of a tabular batch, keyed by column header.
type Row map[string]string

// QueueItem is the work-queue payload for one bulk job delivery.
type QueueItem struct {
	JobID      string `json:"job_id"`
	OwnerID    string `json:"owner_id"`
	TemplateID string `json:"template_id"`
	Rows       []Row  `json:"rows"`
	Attempt    int    `json:"attempt"`
	Submitted  int64  `json:"submitted"`
}
