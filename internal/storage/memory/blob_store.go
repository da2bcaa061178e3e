// Package memory keeps blobs and catalog records in process memory for
// development and tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/bhupendraedzeb-hub/programtic-seo/internal/pagegen"
)

type blob struct {
	contentType string
	data        []byte
}

// BlobStore stores uploads in-memory and returns memory:// URLs unless a
// public base URL is configured.
type BlobStore struct {
	mu      sync.RWMutex
	objects map[string]blob
	baseURL string
}

// NewBlobStore creates a new in-memory blob store. baseURL may be empty.
func NewBlobStore(baseURL string) *BlobStore {
	return &BlobStore{
		objects: make(map[string]blob),
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Upload stores a copy of data under key and returns its public URL.
func (s *BlobStore) Upload(_ context.Context, key string, contentType string, data []byte) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", fmt.Errorf("%w: key is required", pagegen.ErrStorageUploadFailed)
	}
	s.mu.Lock()
	s.objects[key] = blob{contentType: contentType, data: append([]byte(nil), data...)}
	s.mu.Unlock()
	return s.PublicURL(key), nil
}

// PublicURL returns the URL an uploaded key is served from.
func (s *BlobStore) PublicURL(key string) string {
	if s.baseURL == "" {
		return "memory://" + key
	}
	return s.baseURL + "/" + key
}

// Object returns a copy of the stored bytes and content type for key.
func (s *BlobStore) Object(key string) ([]byte, string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.objects[key]
	if !ok {
		return nil, "", false
	}
	return append([]byte(nil), b.data...), b.contentType, true
}

// Keys lists stored keys in lexical order.
func (s *BlobStore) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.objects))
	for k := range s.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
