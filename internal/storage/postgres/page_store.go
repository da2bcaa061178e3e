package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/bhupendraedzeb-hub/programtic-seo/internal/pagegen"
)

const slugConstraint = "uq_pages_owner_slug"

const pageColumns = `id, owner_id, COALESCE(template_id, ''), COALESCE(job_id, ''), COALESCE(job_row, 0), title,
meta_description, slug, html_content, storage_url, content_hash, word_count, seo_score,
seo_data, status, is_bulk, created_at, updated_at`

// PageStore implements pagegen.PageStore on Postgres.
type PageStore struct {
	pool querier
}

// CreatePage inserts page. A violation of the (owner, slug) constraint is
// reported as pagegen.ErrSlugConflict.
func (s *PageStore) CreatePage(ctx context.Context, page pagegen.Page) (pagegen.Page, error) {
	seoData, err := json.Marshal(page.SEOData)
	if err != nil {
		return pagegen.Page{}, fmt.Errorf("marshal seo data: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
INSERT INTO pages (
	id, owner_id, template_id, job_id, job_row, title, meta_description, slug, html_content,
	storage_url, content_hash, word_count, seo_score, seo_data, status, is_bulk,
	created_at, updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`,
		page.ID, page.OwnerID, nullable(page.TemplateID), nullable(page.JobID), nullableRow(page.JobRow), page.Title,
		page.MetaDescription, page.Slug, page.HTMLContent, page.StorageURL, page.ContentHash,
		page.WordCount, page.SEOScore, seoData, page.Status, page.IsBulk,
		page.CreatedAt, page.UpdatedAt,
	)
	if isUniqueViolation(err, slugConstraint) {
		return pagegen.Page{}, pagegen.ErrSlugConflict
	}
	if err != nil {
		return pagegen.Page{}, fmt.Errorf("insert page: %w", err)
	}
	return page, nil
}

// GetPage returns the owner's page.
func (s *PageStore) GetPage(ctx context.Context, ownerID, pageID string) (pagegen.Page, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+pageColumns+` FROM pages WHERE id = $1 AND owner_id = $2`, pageID, ownerID)
	page, err := scanPage(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return pagegen.Page{}, pagegen.ErrPageNotFound
	}
	if err != nil {
		return pagegen.Page{}, fmt.Errorf("get page: %w", err)
	}
	return page, nil
}

// FindPageBySlug looks up the owner's page holding slug.
func (s *PageStore) FindPageBySlug(ctx context.Context, ownerID, slug string) (pagegen.Page, bool, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+pageColumns+` FROM pages WHERE owner_id = $1 AND slug = $2`, ownerID, slug)
	page, err := scanPage(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return pagegen.Page{}, false, nil
	}
	if err != nil {
		return pagegen.Page{}, false, fmt.Errorf("find page by slug: %w", err)
	}
	return page, true, nil
}

// FindPageByJobRow looks up the page jobID generated for row.
func (s *PageStore) FindPageByJobRow(ctx context.Context, ownerID, jobID string, row int) (pagegen.Page, bool, error) {
	r := s.pool.QueryRow(ctx,
		`SELECT `+pageColumns+` FROM pages WHERE owner_id = $1 AND job_id = $2 AND job_row = $3`,
		ownerID, jobID, row)
	page, err := scanPage(r)
	if errors.Is(err, pgx.ErrNoRows) {
		return pagegen.Page{}, false, nil
	}
	if err != nil {
		return pagegen.Page{}, false, fmt.Errorf("find page by job row: %w", err)
	}
	return page, true, nil
}

// TitleExists reports whether the owner has a page with exactly title.
func (s *PageStore) TitleExists(ctx context.Context, ownerID, title string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM pages WHERE owner_id = $1 AND title = $2)`,
		ownerID, title).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check page title: %w", err)
	}
	return exists, nil
}

// ListPages returns the owner's pages, newest first.
func (s *PageStore) ListPages(ctx context.Context, ownerID string) ([]pagegen.Page, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+pageColumns+` FROM pages WHERE owner_id = $1 ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}
	defer rows.Close()
	out := make([]pagegen.Page, 0)
	for rows.Next() {
		page, err := scanPage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan page: %w", err)
		}
		out = append(out, page)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}
	return out, nil
}

// DeletePage removes the owner's page and frees its slug.
func (s *PageStore) DeletePage(ctx context.Context, ownerID, pageID string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM pages WHERE id = $1 AND owner_id = $2`, pageID, ownerID)
	if err != nil {
		return fmt.Errorf("delete page: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pagegen.ErrPageNotFound
	}
	return nil
}

func scanPage(row pgx.Row) (pagegen.Page, error) {
	var (
		page    pagegen.Page
		seoData []byte
	)
	err := row.Scan(&page.ID, &page.OwnerID, &page.TemplateID, &page.JobID, &page.JobRow, &page.Title,
		&page.MetaDescription, &page.Slug, &page.HTMLContent, &page.StorageURL, &page.ContentHash,
		&page.WordCount, &page.SEOScore, &seoData, &page.Status, &page.IsBulk,
		&page.CreatedAt, &page.UpdatedAt)
	if err != nil {
		return pagegen.Page{}, err
	}
	if len(seoData) > 0 {
		if err := json.Unmarshal(seoData, &page.SEOData); err != nil {
			return pagegen.Page{}, fmt.Errorf("decode seo data: %w", err)
		}
	}
	return page, nil
}

func nullableRow(row int) any {
	if row <= 0 {
		return nil
	}
	return row
}
