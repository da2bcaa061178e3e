package sinks

import (
	"context"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/bhupendraedzeb-hub/programtic-seo/internal/progress"
)

// PrometheusSink derives job and row collectors from progress events.
type PrometheusSink struct {
	jobsStarted   prometheus.Counter
	jobsFinished  *prometheus.CounterVec
	jobsRunning   prometheus.Gauge
	jobRuntime    *prometheus.HistogramVec
	rows          *prometheus.CounterVec
	rowDuration   prometheus.Histogram
	seoScores     prometheus.Histogram
	archivesTotal prometheus.Counter

	mu      sync.Mutex
	running map[string]struct{}
}

// NewPrometheusSink registers the collectors against reg, or the default
// registerer when reg is nil.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		jobsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pagegen_progress_jobs_started_total",
			Help: "Bulk job deliveries that started processing.",
		}),
		jobsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pagegen_progress_jobs_finished_total",
			Help: "Bulk jobs that reached a terminal status, by status.",
		}, []string{"status"}),
		jobsRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pagegen_progress_jobs_running",
			Help: "Bulk jobs currently processing.",
		}),
		jobRuntime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pagegen_progress_job_runtime_seconds",
			Help:    "Wall time per finished bulk job.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}, []string{"status"}),
		rows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pagegen_progress_rows_total",
			Help: "Bulk rows handled, by outcome.",
		}, []string{"outcome"}),
		rowDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pagegen_progress_row_duration_seconds",
			Help:    "Per-row generation latency.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		}),
		seoScores: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pagegen_progress_seo_score",
			Help:    "SEO scores of pages generated by bulk jobs.",
			Buckets: []float64{0, 25, 50, 70, 85, 95, 100},
		}),
		archivesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pagegen_progress_archives_total",
			Help: "ZIP archives uploaded for finished jobs.",
		}),
		running: make(map[string]struct{}),
	}
	for _, collector := range []prometheus.Collector{
		s.jobsStarted,
		s.jobsFinished,
		s.jobsRunning,
		s.jobRuntime,
		s.rows,
		s.rowDuration,
		s.seoScores,
		s.archivesTotal,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the collectors from batch.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		s.consumeEvent(evt)
	}
	return nil
}

func (s *PrometheusSink) consumeEvent(evt progress.Event) {
	switch evt.Stage {
	case progress.StageJobStart:
		s.jobsStarted.Inc()
		if s.track(evt.JobID, true) {
			s.jobsRunning.Inc()
		}
	case progress.StageRowDone:
		s.rows.WithLabelValues("succeeded").Inc()
		s.seoScores.Observe(float64(evt.SEOScore))
		if evt.Dur > 0 {
			s.rowDuration.Observe(evt.Dur.Seconds())
		}
	case progress.StageRowFailed:
		s.rows.WithLabelValues("failed").Inc()
	case progress.StageArchiveUploaded:
		s.archivesTotal.Inc()
	case progress.StageJobDone, progress.StageJobFailed:
		status := string(evt.Status)
		s.jobsFinished.WithLabelValues(status).Inc()
		if evt.Dur > 0 {
			s.jobRuntime.WithLabelValues(status).Observe(evt.Dur.Seconds())
		}
		if s.track(evt.JobID, false) {
			s.jobsRunning.Dec()
		}
	}
}

// track records a job as running (start) or finished and reports whether the
// running set changed.
func (s *PrometheusSink) track(jobID string, start bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.running[jobID]
	if start {
		if ok {
			return false
		}
		s.running[jobID] = struct{}{}
		return true
	}
	if !ok {
		return false
	}
	delete(s.running, jobID)
	return true
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}
