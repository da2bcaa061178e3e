package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/bhupendraedzeb-hub/programtic-seo/internal/pagegen"
	"github.com/bhupendraedzeb-hub/programtic-seo/internal/pipeline"
)

// DefaultPageTitle is used when neither the request nor its variables carry a title.
const DefaultPageTitle = "Untitled Page"

type pageRequest struct {
	TemplateID      string            `json:"template_id"`
	Variables       map[string]string `json:"variables"`
	Title           string            `json:"title"`
	MetaDescription string            `json:"meta_description"`
	Slug            string            `json:"slug"`
}

func (s *Server) createPage(w http.ResponseWriter, r *http.Request) {
	var req pageRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.TemplateID) == "" {
		writeError(w, http.StatusBadRequest, "template_id is required")
		return
	}
	if req.Variables == nil {
		req.Variables = map[string]string{}
	}
	ctx := r.Context()
	owner := OwnerID(ctx)

	tmpl, err := s.deps.Templates.GetTemplate(ctx, owner, req.TemplateID)
	if err != nil {
		s.respondError(w, err, "failed to load template")
		return
	}
	if err := pipeline.CheckVariables(tmpl.Variables, req.Variables); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	title := firstNonBlank(req.Title, req.Variables["title"], DefaultPageTitle)
	meta := pipeline.TruncateRunes(firstNonBlank(req.MetaDescription, req.Variables["meta_description"]), pipeline.MaxFieldRunes)
	title, err = pipeline.UniqueTitle(ctx, s.deps.Pages, owner, title)
	if err != nil {
		s.respondError(w, err, "failed to generate page")
		return
	}

	page, url, err := s.deps.Generator.Generate(ctx, pipeline.Request{
		Template:        tmpl,
		OwnerID:         owner,
		Variables:       req.Variables,
		Title:           title,
		MetaDescription: meta,
		Slug:            req.Slug,
	})
	if err != nil {
		s.respondError(w, err, "failed to generate page")
		return
	}
	s.logger.Info("page generated",
		zap.String("owner_id", owner),
		zap.String("page_id", page.ID),
		zap.String("url", url),
	)
	writeJSON(w, http.StatusCreated, page)
}

func (s *Server) listPages(w http.ResponseWriter, r *http.Request) {
	pages, err := s.deps.Pages.ListPages(r.Context(), OwnerID(r.Context()))
	if err != nil {
		s.respondError(w, err, "failed to list pages")
		return
	}
	if pages == nil {
		pages = []pagegen.Page{}
	}
	writeJSON(w, http.StatusOK, pages)
}

func (s *Server) getPage(w http.ResponseWriter, r *http.Request) {
	page, err := s.deps.Pages.GetPage(r.Context(), OwnerID(r.Context()), chi.URLParam(r, "page_id"))
	if err != nil {
		s.respondError(w, err, "failed to load page")
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) deletePage(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Pages.DeletePage(r.Context(), OwnerID(r.Context()), chi.URLParam(r, "page_id")); err != nil {
		s.respondError(w, err, "failed to delete page")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Page deleted"})
}

func firstNonBlank(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
