package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/bhupendraedzeb-hub/programtic-seo/internal/pagegen"
)

// TemplateStore implements pagegen.TemplateStore on Postgres.
type TemplateStore struct {
	pool querier
}

const templateColumns = `id, owner_id, name, html_content, variables, seo_checks, created_at, updated_at`

// CreateTemplate inserts tmpl and one required variable row per derived name
// in a single transaction.
func (s *TemplateStore) CreateTemplate(ctx context.Context, tmpl pagegen.Template) (pagegen.Template, error) {
	vars, checks, err := marshalTemplate(tmpl)
	if err != nil {
		return pagegen.Template{}, err
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return pagegen.Template{}, fmt.Errorf("begin create template: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
INSERT INTO templates (id, owner_id, name, html_content, variables, seo_checks, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		tmpl.ID, tmpl.OwnerID, tmpl.Name, tmpl.HTMLContent, vars, checks, tmpl.CreatedAt, tmpl.UpdatedAt)
	if err != nil {
		return pagegen.Template{}, fmt.Errorf("insert template: %w", err)
	}
	if err := insertVariables(ctx, tx, tmpl); err != nil {
		return pagegen.Template{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return pagegen.Template{}, fmt.Errorf("commit create template: %w", err)
	}
	return tmpl, nil
}

// UpdateTemplate replaces the owner's template and rewrites its variable rows.
func (s *TemplateStore) UpdateTemplate(ctx context.Context, tmpl pagegen.Template) (pagegen.Template, error) {
	vars, checks, err := marshalTemplate(tmpl)
	if err != nil {
		return pagegen.Template{}, err
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return pagegen.Template{}, fmt.Errorf("begin update template: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	err = tx.QueryRow(ctx, `
UPDATE templates
SET name = $3, html_content = $4, variables = $5, seo_checks = $6, updated_at = $7
WHERE id = $1 AND owner_id = $2
RETURNING created_at`,
		tmpl.ID, tmpl.OwnerID, tmpl.Name, tmpl.HTMLContent, vars, checks, tmpl.UpdatedAt).Scan(&tmpl.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return pagegen.Template{}, pagegen.ErrTemplateNotFound
	}
	if err != nil {
		return pagegen.Template{}, fmt.Errorf("update template: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM template_variables WHERE template_id = $1`, tmpl.ID); err != nil {
		return pagegen.Template{}, fmt.Errorf("clear template variables: %w", err)
	}
	if err := insertVariables(ctx, tx, tmpl); err != nil {
		return pagegen.Template{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return pagegen.Template{}, fmt.Errorf("commit update template: %w", err)
	}
	return tmpl, nil
}

// GetTemplate returns the owner's template.
func (s *TemplateStore) GetTemplate(ctx context.Context, ownerID, templateID string) (pagegen.Template, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+templateColumns+` FROM templates WHERE id = $1 AND owner_id = $2`,
		templateID, ownerID)
	tmpl, err := scanTemplate(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return pagegen.Template{}, pagegen.ErrTemplateNotFound
	}
	if err != nil {
		return pagegen.Template{}, fmt.Errorf("get template: %w", err)
	}
	return tmpl, nil
}

// ListTemplates returns the owner's templates, newest first.
func (s *TemplateStore) ListTemplates(ctx context.Context, ownerID string) ([]pagegen.Template, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+templateColumns+` FROM templates WHERE owner_id = $1 ORDER BY created_at DESC`,
		ownerID)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close()
	out := make([]pagegen.Template, 0)
	for rows.Next() {
		tmpl, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}
		out = append(out, tmpl)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	return out, nil
}

// DeleteTemplate removes the owner's template. Variable rows cascade.
func (s *TemplateStore) DeleteTemplate(ctx context.Context, ownerID, templateID string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM templates WHERE id = $1 AND owner_id = $2`, templateID, ownerID)
	if err != nil {
		return fmt.Errorf("delete template: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pagegen.ErrTemplateNotFound
	}
	return nil
}

// ListTemplateVariables returns the variable rows of a template in markup order.
func (s *TemplateStore) ListTemplateVariables(ctx context.Context, templateID string) ([]pagegen.TemplateVariable, error) {
	rows, err := s.pool.Query(ctx, `
SELECT id::text, template_id, name, description, required, created_at
FROM template_variables WHERE template_id = $1 ORDER BY position`, templateID)
	if err != nil {
		return nil, fmt.Errorf("list template variables: %w", err)
	}
	defer rows.Close()
	out := make([]pagegen.TemplateVariable, 0)
	for rows.Next() {
		var v pagegen.TemplateVariable
		if err := rows.Scan(&v.ID, &v.TemplateID, &v.Name, &v.Description, &v.Required, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan template variable: %w", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list template variables: %w", err)
	}
	return out, nil
}

func insertVariables(ctx context.Context, tx pgx.Tx, tmpl pagegen.Template) error {
	seen := make(map[string]struct{}, len(tmpl.Variables))
	position := 0
	for _, name := range tmpl.Variables {
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		_, err := tx.Exec(ctx, `
INSERT INTO template_variables (template_id, name, required, position, created_at)
VALUES ($1, $2, TRUE, $3, $4)`, tmpl.ID, name, position, tmpl.UpdatedAt)
		if err != nil {
			return fmt.Errorf("insert template variable %q: %w", name, err)
		}
		position++
	}
	return nil
}

func marshalTemplate(tmpl pagegen.Template) ([]byte, []byte, error) {
	variables := tmpl.Variables
	if variables == nil {
		variables = []string{}
	}
	vars, err := json.Marshal(variables)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal variables: %w", err)
	}
	seoChecks := tmpl.SEOChecks
	if seoChecks == nil {
		seoChecks = map[string]any{}
	}
	checks, err := json.Marshal(seoChecks)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal seo checks: %w", err)
	}
	return vars, checks, nil
}

func scanTemplate(row pgx.Row) (pagegen.Template, error) {
	var (
		tmpl   pagegen.Template
		vars   []byte
		checks []byte
	)
	if err := row.Scan(&tmpl.ID, &tmpl.OwnerID, &tmpl.Name, &tmpl.HTMLContent,
		&vars, &checks, &tmpl.CreatedAt, &tmpl.UpdatedAt); err != nil {
		return pagegen.Template{}, err
	}
	tmpl.Variables = []string{}
	if len(vars) > 0 {
		if err := json.Unmarshal(vars, &tmpl.Variables); err != nil {
			return pagegen.Template{}, fmt.Errorf("decode variables: %w", err)
		}
	}
	if len(checks) > 0 {
		if err := json.Unmarshal(checks, &tmpl.SEOChecks); err != nil {
			return pagegen.Template{}, fmt.Errorf("decode seo checks: %w", err)
		}
	}
	return tmpl, nil
}
