package memory

import (
	"context"
	"sort"
	"strconv"
	"sync"

	"github.com/bhupendraedzeb-hub/programtic-seo/internal/pagegen"
)

// PageStore provides an in-memory page catalog enforcing unique (owner, slug).
type PageStore struct {
	mu       sync.RWMutex
	pages    map[string]pagegen.Page
	bySlug   map[string]string
	byJobRow map[string]string
}

// NewPageStore constructs a PageStore.
func NewPageStore() *PageStore {
	return &PageStore{
		pages:    make(map[string]pagegen.Page),
		bySlug:   make(map[string]string),
		byJobRow: make(map[string]string),
	}
}

func slugKey(ownerID, slug string) string {
	return ownerID + "\x00" + slug
}

func jobRowKey(jobID string, row int) string {
	return jobID + "\x00" + strconv.Itoa(row)
}

// CreatePage stores page, failing with ErrSlugConflict if the owner already
// has the slug.
func (s *PageStore) CreatePage(_ context.Context, page pagegen.Page) (pagegen.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := slugKey(page.OwnerID, page.Slug)
	if _, taken := s.bySlug[key]; taken {
		return pagegen.Page{}, pagegen.ErrSlugConflict
	}
	s.pages[page.ID] = clonePage(page)
	s.bySlug[key] = page.ID
	if page.JobID != "" && page.JobRow > 0 {
		s.byJobRow[jobRowKey(page.JobID, page.JobRow)] = page.ID
	}
	return clonePage(page), nil
}

// GetPage returns the owner's page.
func (s *PageStore) GetPage(_ context.Context, ownerID, pageID string) (pagegen.Page, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	page, ok := s.pages[pageID]
	if !ok || page.OwnerID != ownerID {
		return pagegen.Page{}, pagegen.ErrPageNotFound
	}
	return clonePage(page), nil
}

// FindPageBySlug looks up the owner's page holding slug.
func (s *PageStore) FindPageBySlug(_ context.Context, ownerID, slug string) (pagegen.Page, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.bySlug[slugKey(ownerID, slug)]
	if !ok {
		return pagegen.Page{}, false, nil
	}
	return clonePage(s.pages[id]), true, nil
}

// FindPageByJobRow looks up the page jobID generated for row.
func (s *PageStore) FindPageByJobRow(_ context.Context, ownerID, jobID string, row int) (pagegen.Page, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byJobRow[jobRowKey(jobID, row)]
	if !ok {
		return pagegen.Page{}, false, nil
	}
	page := s.pages[id]
	if page.OwnerID != ownerID {
		return pagegen.Page{}, false, nil
	}
	return clonePage(page), true, nil
}

// TitleExists reports whether the owner has a page with exactly title.
func (s *PageStore) TitleExists(_ context.Context, ownerID, title string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, page := range s.pages {
		if page.OwnerID == ownerID && page.Title == title {
			return true, nil
		}
	}
	return false, nil
}

// ListPages returns the owner's pages, newest first.
func (s *PageStore) ListPages(_ context.Context, ownerID string) ([]pagegen.Page, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]pagegen.Page, 0)
	for _, page := range s.pages {
		if page.OwnerID == ownerID {
			out = append(out, clonePage(page))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// DeletePage removes the owner's page and frees its slug.
func (s *PageStore) DeletePage(_ context.Context, ownerID, pageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	page, ok := s.pages[pageID]
	if !ok || page.OwnerID != ownerID {
		return pagegen.ErrPageNotFound
	}
	delete(s.pages, pageID)
	delete(s.bySlug, slugKey(page.OwnerID, page.Slug))
	if page.JobID != "" && page.JobRow > 0 {
		delete(s.byJobRow, jobRowKey(page.JobID, page.JobRow))
	}
	return nil
}

func clonePage(page pagegen.Page) pagegen.Page {
	page.SEOData.Issues = append([]string{}, page.SEOData.Issues...)
	page.SEOData.Warnings = append([]string{}, page.SEOData.Warnings...)
	page.SEOData.Suggestions = append([]string{}, page.SEOData.Suggestions...)
	return page
}
