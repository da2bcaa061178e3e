package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/bhupendraedzeb-hub/programtic-seo/internal/pagegen"
	"github.com/bhupendraedzeb-hub/programtic-seo/internal/rows"
)

// multipartMemory is how much of an upload is buffered before spilling to disk.
const multipartMemory = 8 << 20

func (s *Server) createBulkJob(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	owner := OwnerID(ctx)

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "upload too large")
			return
		}
		writeError(w, http.StatusBadRequest, "multipart form with a file field is required")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	templateID := strings.TrimSpace(r.URL.Query().Get("template_id"))
	if templateID == "" {
		templateID = strings.TrimSpace(r.FormValue("template_id"))
	}
	if templateID == "" {
		writeError(w, http.StatusBadRequest, "template_id is required")
		return
	}
	tmpl, err := s.deps.Templates.GetTemplate(ctx, owner, templateID)
	if err != nil {
		s.respondError(w, err, "failed to load template")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer func() { _ = file.Close() }()

	table, err := rows.Parse(header.Filename, file)
	if err != nil {
		if errors.Is(err, rows.ErrUnsupportedFormat) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusBadRequest, "invalid file: "+err.Error())
		return
	}
	if len(table.Rows) == 0 {
		writeError(w, http.StatusBadRequest, "CSV has no rows")
		return
	}
	if missing := rows.MissingColumns(tmpl.Variables, table.Header); len(missing) > 0 {
		writeError(w, http.StatusBadRequest, "CSV missing required columns: "+strings.Join(missing, ", "))
		return
	}

	id, err := s.deps.IDs.NewID()
	if err != nil {
		s.respondError(w, err, "failed to create bulk job")
		return
	}
	now := s.deps.Clock.Now().UTC()
	job := pagegen.BulkJob{
		ID:         id,
		OwnerID:    owner,
		TemplateID: tmpl.ID,
		Filename:   header.Filename,
		TotalRows:  len(table.Rows),
		Status:     pagegen.JobStatusQueued,
		ResultURLs: []pagegen.ResultDescriptor{},
		Errors:     []pagegen.ErrorDescriptor{},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.deps.Jobs.CreateJob(ctx, job); err != nil {
		s.respondError(w, err, "failed to create bulk job")
		return
	}

	enqueueCtx, cancel := context.WithTimeout(ctx, enqueueTimeout)
	defer cancel()
	err = s.deps.Queue.Enqueue(enqueueCtx, pagegen.QueueItem{
		JobID:      job.ID,
		OwnerID:    owner,
		TemplateID: tmpl.ID,
		Rows:       table.Rows,
		Submitted:  now.Unix(),
	})
	if err != nil {
		s.logger.Error("enqueue bulk job failed", zap.String("job_id", job.ID), zap.Error(err))
		failure := pagegen.JobProgress{
			Status:     pagegen.JobStatusFailed,
			TotalRows:  job.TotalRows,
			ResultURLs: []pagegen.ResultDescriptor{},
			Errors:     []pagegen.ErrorDescriptor{{Error: "failed to queue job"}},
		}
		if uerr := s.deps.Jobs.UpdateJobProgress(context.WithoutCancel(ctx), job.ID, failure); uerr != nil {
			s.logger.Error("mark unqueued job failed", zap.String("job_id", job.ID), zap.Error(uerr))
		}
		writeError(w, http.StatusServiceUnavailable, "failed to queue job")
		return
	}

	s.logger.Info("bulk job queued",
		zap.String("job_id", job.ID),
		zap.String("owner_id", owner),
		zap.String("template_id", tmpl.ID),
		zap.Int("rows", job.TotalRows),
	)
	writeJSON(w, http.StatusAccepted, job)
}

func (s *Server) listBulkJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := s.deps.Jobs.ListJobs(r.Context(), OwnerID(r.Context()), 0)
	if err != nil {
		s.respondError(w, err, "failed to list bulk jobs")
		return
	}
	if jobs == nil {
		jobs = []pagegen.BulkJob{}
	}
	writeJSON(w, http.StatusOK, jobs)
}

func (s *Server) getBulkJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.deps.Jobs.GetOwnedJob(r.Context(), OwnerID(r.Context()), chi.URLParam(r, "job_id"))
	if err != nil {
		s.respondError(w, err, "failed to load bulk job")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) deleteBulkJob(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Jobs.DeleteJob(r.Context(), OwnerID(r.Context()), chi.URLParam(r, "job_id")); err != nil {
		s.respondError(w, err, "failed to delete bulk job")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Bulk job deleted"})
}
