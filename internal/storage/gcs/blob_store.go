// Package gcs provides a BlobStore backed by Google Cloud Storage.
package gcs

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"

	"github.com/bhupendraedzeb-hub/programtic-seo/internal/pagegen"
)

const defaultPublicBase = "https://storage.googleapis.com"

// Config captures the parameters required to connect to GCS.
type Config struct {
	Bucket string
	// PublicBaseURL overrides https://storage.googleapis.com/<bucket>, e.g. a CDN.
	PublicBaseURL string
}

// BlobStore writes uploads to a configured GCS bucket.
type BlobStore struct {
	client  *storage.Client
	bucket  string
	baseURL string
}

// New creates a GCS-backed blob store.
func New(client *storage.Client, cfg Config) (*BlobStore, error) {
	if client == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	baseURL := strings.TrimRight(cfg.PublicBaseURL, "/")
	if baseURL == "" {
		baseURL = defaultPublicBase + "/" + cfg.Bucket
	}
	return &BlobStore{
		client:  client,
		bucket:  cfg.Bucket,
		baseURL: baseURL,
	}, nil
}

// Upload writes data to the bucket and returns the object's public URL.
func (s *BlobStore) Upload(ctx context.Context, key string, contentType string, data []byte) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", fmt.Errorf("%w: key is required", pagegen.ErrStorageUploadFailed)
	}
	writer := s.client.Bucket(s.bucket).Object(key).NewWriter(ctx)
	if contentType != "" {
		writer.ContentType = contentType
	}
	if _, err := io.Copy(writer, bytes.NewReader(data)); err != nil {
		closeErr := writer.Close()
		if closeErr != nil {
			return "", fmt.Errorf("%w: copy object: %w (close writer: %v)", pagegen.ErrStorageUploadFailed, err, closeErr)
		}
		return "", fmt.Errorf("%w: copy object: %w", pagegen.ErrStorageUploadFailed, err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("%w: close writer: %w", pagegen.ErrStorageUploadFailed, err)
	}
	return s.PublicURL(key), nil
}

// PublicURL returns the HTTPS URL of key.
func (s *BlobStore) PublicURL(key string) string {
	return PublicURL(s.baseURL, key)
}

// PublicURL joins base and key with a single slash.
func PublicURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(key, "/")
}
