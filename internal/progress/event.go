package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/bhupendraedzeb-hub/programtic-seo/internal/pagegen"
)

// Stage denotes the milestone represented by an Event.
type Stage string

// Supported progress stages.
const (
	StageJobStart        Stage = "JOB_START"
	StageRowDone         Stage = "ROW_DONE"
	StageRowFailed       Stage = "ROW_FAILED"
	StageArchiveUploaded Stage = "ARCHIVE_UPLOADED"
	StageJobDone         Stage = "JOB_DONE"
	StageJobFailed       Stage = "JOB_FAILED"
)

// Event captures one step of a bulk job.
type Event struct {
	JobID   string
	OwnerID string
	// TS is the UTC timestamp recorded by the emitter.
	TS    time.Time
	Stage Stage
	// Row is the 1-based row number for row stages.
	Row      int
	Slug     string
	URL      string
	SEOScore int
	// Processed, Failed and Total are the job counters after this step.
	Processed int
	Failed    int
	Total     int
	// Status is the job status reported by JOB_DONE and JOB_FAILED.
	Status pagegen.JobStatus
	// Dur is the row latency for row stages and the job runtime for terminal stages.
	Dur time.Duration
	// Note carries low-volume context such as the row error text.
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.JobID == "" {
		return errors.New("job id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageJobStart, StageArchiveUploaded:
	case StageRowDone, StageRowFailed:
		if e.Row <= 0 {
			return errors.New("row stages require a positive row number")
		}
	case StageJobDone, StageJobFailed:
		if !e.Status.Terminal() {
			return fmt.Errorf("stage %s requires a terminal status, got %q", e.Stage, e.Status)
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}
