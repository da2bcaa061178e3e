package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/bhupendraedzeb-hub/programtic-seo/internal/pagegen"
)

// TemplateStore provides an in-memory template catalog.
type TemplateStore struct {
	mu        sync.RWMutex
	templates map[string]pagegen.Template
	variables map[string][]pagegen.TemplateVariable
}

// NewTemplateStore constructs a TemplateStore.
func NewTemplateStore() *TemplateStore {
	return &TemplateStore{
		templates: make(map[string]pagegen.Template),
		variables: make(map[string][]pagegen.TemplateVariable),
	}
}

// CreateTemplate stores tmpl and one required variable row per derived name.
func (s *TemplateStore) CreateTemplate(_ context.Context, tmpl pagegen.Template) (pagegen.Template, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.templates[tmpl.ID] = cloneTemplate(tmpl)
	s.variables[tmpl.ID] = variableRows(tmpl)
	return cloneTemplate(tmpl), nil
}

// UpdateTemplate replaces tmpl and rewrites its variable rows.
func (s *TemplateStore) UpdateTemplate(_ context.Context, tmpl pagegen.Template) (pagegen.Template, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.templates[tmpl.ID]
	if !ok || existing.OwnerID != tmpl.OwnerID {
		return pagegen.Template{}, pagegen.ErrTemplateNotFound
	}
	tmpl.CreatedAt = existing.CreatedAt
	s.templates[tmpl.ID] = cloneTemplate(tmpl)
	s.variables[tmpl.ID] = variableRows(tmpl)
	return cloneTemplate(tmpl), nil
}

// GetTemplate returns the owner's template.
func (s *TemplateStore) GetTemplate(_ context.Context, ownerID, templateID string) (pagegen.Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tmpl, ok := s.templates[templateID]
	if !ok || tmpl.OwnerID != ownerID {
		return pagegen.Template{}, pagegen.ErrTemplateNotFound
	}
	return cloneTemplate(tmpl), nil
}

// ListTemplates returns the owner's templates, newest first.
func (s *TemplateStore) ListTemplates(_ context.Context, ownerID string) ([]pagegen.Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]pagegen.Template, 0)
	for _, tmpl := range s.templates {
		if tmpl.OwnerID == ownerID {
			out = append(out, cloneTemplate(tmpl))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// DeleteTemplate removes the template and its variables. Pages keep their
// template ID.
func (s *TemplateStore) DeleteTemplate(_ context.Context, ownerID, templateID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tmpl, ok := s.templates[templateID]
	if !ok || tmpl.OwnerID != ownerID {
		return pagegen.ErrTemplateNotFound
	}
	delete(s.templates, templateID)
	delete(s.variables, templateID)
	return nil
}

// ListTemplateVariables returns the variable rows of a template in markup order.
func (s *TemplateStore) ListTemplateVariables(_ context.Context, templateID string) ([]pagegen.TemplateVariable, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows := s.variables[templateID]
	out := make([]pagegen.TemplateVariable, len(rows))
	copy(out, rows)
	return out, nil
}

func variableRows(tmpl pagegen.Template) []pagegen.TemplateVariable {
	rows := make([]pagegen.TemplateVariable, 0, len(tmpl.Variables))
	seen := make(map[string]struct{}, len(tmpl.Variables))
	for _, name := range tmpl.Variables {
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		rows = append(rows, pagegen.TemplateVariable{
			ID:         tmpl.ID + ":" + name,
			TemplateID: tmpl.ID,
			Name:       name,
			Required:   true,
			CreatedAt:  tmpl.UpdatedAt,
		})
	}
	return rows
}

func cloneTemplate(tmpl pagegen.Template) pagegen.Template {
	tmpl.Variables = append([]string(nil), tmpl.Variables...)
	if tmpl.SEOChecks != nil {
		checks := make(map[string]any, len(tmpl.SEOChecks))
		for k, v := range tmpl.SEOChecks {
			checks[k] = v
		}
		tmpl.SEOChecks = checks
	}
	return tmpl
}
