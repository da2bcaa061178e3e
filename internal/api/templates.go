package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/bhupendraedzeb-hub/programtic-seo/internal/pagegen"
	"github.com/bhupendraedzeb-hub/programtic-seo/internal/placeholder"
	"github.com/bhupendraedzeb-hub/programtic-seo/internal/seo"
)

type templateRequest struct {
	Name        string `json:"name"`
	HTMLContent string `json:"html_content"`
}

type templateUpdateRequest struct {
	Name        *string `json:"name"`
	HTMLContent *string `json:"html_content"`
}

type validateRequest struct {
	HTMLContent string `json:"html_content"`
}

type validationResponse struct {
	placeholder.Validation
	WordCount int `json:"word_count"`
}

func (s *Server) createTemplate(w http.ResponseWriter, r *http.Request) {
	var req templateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" || strings.TrimSpace(req.HTMLContent) == "" {
		writeError(w, http.StatusBadRequest, "name and html_content are required")
		return
	}
	report, err := placeholder.Validate(req.HTMLContent)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	id, err := s.deps.IDs.NewID()
	if err != nil {
		s.respondError(w, err, "failed to create template")
		return
	}
	now := s.deps.Clock.Now().UTC()
	tmpl, err := s.deps.Templates.CreateTemplate(r.Context(), pagegen.Template{
		ID:          id,
		OwnerID:     OwnerID(r.Context()),
		Name:        req.Name,
		HTMLContent: req.HTMLContent,
		Variables:   report.Variables,
		SEOChecks:   map[string]any{},
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		s.respondError(w, err, "failed to create template")
		return
	}
	writeJSON(w, http.StatusCreated, tmpl)
}

func (s *Server) listTemplates(w http.ResponseWriter, r *http.Request) {
	templates, err := s.deps.Templates.ListTemplates(r.Context(), OwnerID(r.Context()))
	if err != nil {
		s.respondError(w, err, "failed to list templates")
		return
	}
	if templates == nil {
		templates = []pagegen.Template{}
	}
	writeJSON(w, http.StatusOK, templates)
}

func (s *Server) getTemplate(w http.ResponseWriter, r *http.Request) {
	tmpl, err := s.deps.Templates.GetTemplate(r.Context(), OwnerID(r.Context()), chi.URLParam(r, "template_id"))
	if err != nil {
		s.respondError(w, err, "failed to load template")
		return
	}
	writeJSON(w, http.StatusOK, tmpl)
}

func (s *Server) updateTemplate(w http.ResponseWriter, r *http.Request) {
	var req templateUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	tmpl, err := s.deps.Templates.GetTemplate(r.Context(), OwnerID(r.Context()), chi.URLParam(r, "template_id"))
	if err != nil {
		s.respondError(w, err, "failed to load template")
		return
	}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			writeError(w, http.StatusBadRequest, "name must not be empty")
			return
		}
		tmpl.Name = name
	}
	if req.HTMLContent != nil {
		report, err := placeholder.Validate(*req.HTMLContent)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		tmpl.HTMLContent = *req.HTMLContent
		tmpl.Variables = report.Variables
	}
	tmpl.UpdatedAt = s.deps.Clock.Now().UTC()
	updated, err := s.deps.Templates.UpdateTemplate(r.Context(), tmpl)
	if err != nil {
		s.respondError(w, err, "failed to update template")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) deleteTemplate(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Templates.DeleteTemplate(r.Context(), OwnerID(r.Context()), chi.URLParam(r, "template_id")); err != nil {
		s.respondError(w, err, "failed to delete template")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Template deleted"})
}

func (s *Server) validateTemplate(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.writeValidation(w, req.HTMLContent)
}

func (s *Server) validateSavedTemplate(w http.ResponseWriter, r *http.Request) {
	tmpl, err := s.deps.Templates.GetTemplate(r.Context(), OwnerID(r.Context()), chi.URLParam(r, "template_id"))
	if err != nil {
		s.respondError(w, err, "failed to load template")
		return
	}
	s.writeValidation(w, tmpl.HTMLContent)
}

func (s *Server) writeValidation(w http.ResponseWriter, markup string) {
	report, err := placeholder.Validate(markup)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, validationResponse{
		Validation: report,
		WordCount:  seo.WordCount(markup),
	})
}
