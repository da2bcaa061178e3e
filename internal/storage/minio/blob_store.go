// Package minio provides a BlobStore backed by a MinIO bucket.
package minio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/bhupendraedzeb-hub/programtic-seo/internal/pagegen"
)

// Config captures the MinIO endpoint, credentials and bucket.
type Config struct {
	Endpoint      string
	AccessKey     string
	SecretKey     string
	Bucket        string
	UseSSL        bool
	PublicBaseURL string
}

type objectPutter interface {
	PutObject(
		ctx context.Context,
		bucketName, objectName string,
		reader io.Reader,
		objectSize int64,
		opts miniogo.PutObjectOptions,
	) (miniogo.UploadInfo, error)
}

// BlobStore uploads to one MinIO bucket.
type BlobStore struct {
	client  objectPutter
	bucket  string
	baseURL string
}

// New connects to MinIO and ensures the bucket exists.
func New(ctx context.Context, cfg Config) (*BlobStore, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("minio endpoint and bucket are required")
	}
	client, err := miniogo.New(cfg.Endpoint, &miniogo.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio client: %w", err)
	}

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	exists, err := client.BucketExists(checkCtx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(checkCtx, cfg.Bucket, miniogo.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket: %w", err)
		}
	}

	if cfg.PublicBaseURL == "" {
		cfg.PublicBaseURL = client.EndpointURL().String() + "/" + cfg.Bucket
	}
	return newWithClient(client, cfg), nil
}

func newWithClient(client objectPutter, cfg Config) *BlobStore {
	return &BlobStore{
		client:  client,
		bucket:  cfg.Bucket,
		baseURL: strings.TrimRight(cfg.PublicBaseURL, "/"),
	}
}

// Upload puts data under key and returns its public URL.
func (s *BlobStore) Upload(ctx context.Context, key string, contentType string, data []byte) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", fmt.Errorf("%w: key is required", pagegen.ErrStorageUploadFailed)
	}
	_, err := s.client.PutObject(
		ctx,
		s.bucket,
		key,
		bytes.NewReader(data),
		int64(len(data)),
		miniogo.PutObjectOptions{ContentType: contentType},
	)
	if err != nil {
		return "", fmt.Errorf("%w: put object: %w", pagegen.ErrStorageUploadFailed, err)
	}
	return s.PublicURL(key), nil
}

// PublicURL returns <endpoint>/<bucket>/<key> or PublicBaseURL/<key>.
func (s *BlobStore) PublicURL(key string) string {
	return s.baseURL + "/" + key
}
