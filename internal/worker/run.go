package worker

import (
	"time"

	"github.com/bhupendraedzeb-hub/programtic-seo/internal/pagegen"
)

// jobRun is the in-memory state of one delivery.
type jobRun struct {
	job       pagegen.BulkJob
	rows      []pagegen.Row
	total     int
	processed int
	failed    int
	results   []pagegen.ResultDescriptor
	errs      []pagegen.ErrorDescriptor
	outcomes  map[int]pagegen.RowOutcome
	urls      []string
	entries   []archiveEntry
	started   time.Time
}

// newJobRun seeds counters, row errors and outcomes from earlier deliveries.
// Result descriptors are rebuilt as resolved rows are restored.
func newJobRun(job pagegen.BulkJob, rows []pagegen.Row, started time.Time) *jobRun {
	run := &jobRun{
		job:       job,
		rows:      rows,
		total:     len(rows),
		processed: job.ProcessedRows,
		failed:    job.FailedRows,
		results:   make([]pagegen.ResultDescriptor, 0, len(rows)+1),
		errs:      make([]pagegen.ErrorDescriptor, 0),
		outcomes:  make(map[int]pagegen.RowOutcome, len(job.RowOutcomes)),
		started:   started,
	}
	for row, outcome := range job.RowOutcomes {
		run.outcomes[row] = outcome
	}
	for _, e := range job.Errors {
		if e.Row > 0 {
			run.errs = append(run.errs, e)
		}
	}
	return run
}

func (r *jobRun) recordSuccess(rowNum int, page pagegen.Page, url string) {
	r.processed++
	r.outcomes[rowNum] = pagegen.RowOutcome{Status: pagegen.RowSucceeded, PageID: page.ID}
	r.attach(page, url)
}

// attach adds page to the result list and the archive.
func (r *jobRun) attach(page pagegen.Page, url string) {
	score := page.SEOScore
	r.results = append(r.results, pagegen.ResultDescriptor{
		URL:      url,
		Title:    page.Title,
		Slug:     page.Slug,
		SEOScore: &score,
	})
	r.urls = append(r.urls, url)
	r.entries = append(r.entries, archiveEntry{Name: page.Slug + ".html", Content: page.HTMLContent})
}

// forget drops rowNum's outcome so the row is processed again.
func (r *jobRun) forget(rowNum int) {
	if outcome, ok := r.outcomes[rowNum]; ok && outcome.Status == pagegen.RowSucceeded {
		r.processed--
	}
	delete(r.outcomes, rowNum)
}

func (r *jobRun) recordFailure(rowNum int, row pagegen.Row, err error) {
	r.failed++
	r.outcomes[rowNum] = pagegen.RowOutcome{Status: pagegen.RowFailed}
	r.errs = append(r.errs, pagegen.ErrorDescriptor{
		Row:   rowNum,
		Error: err.Error(),
		Data:  snapshotRow(row),
	})
}

func (r *jobRun) progress(status pagegen.JobStatus) pagegen.JobProgress {
	return pagegen.JobProgress{
		Status:        status,
		TotalRows:     r.total,
		ProcessedRows: r.processed,
		FailedRows:    r.failed,
		ResultURLs:    append([]pagegen.ResultDescriptor(nil), r.results...),
		Errors:        append([]pagegen.ErrorDescriptor(nil), r.errs...),
		RowOutcomes:   copyOutcomes(r.outcomes),
	}
}

func (r *jobRun) archiveURL() string {
	for _, res := range r.results {
		if res.Type == pagegen.ResultTypeZip {
			return res.URL
		}
	}
	return ""
}

func copyOutcomes(in map[int]pagegen.RowOutcome) map[int]pagegen.RowOutcome {
	out := make(map[int]pagegen.RowOutcome, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
