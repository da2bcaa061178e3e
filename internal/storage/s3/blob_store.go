// Package s3 provides a BlobStore for S3-compatible object storage using
// path-style addressing.
package s3

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/bhupendraedzeb-hub/programtic-seo/internal/pagegen"
)

// Config captures the S3 endpoint, credentials and bucket.
type Config struct {
	Endpoint      string
	Region        string
	AccessKey     string
	SecretKey     string
	Bucket        string
	PublicBaseURL string
	PublicRead    bool
}

// putObjectAPI is the subset of *s3.Client used by BlobStore.
type putObjectAPI interface {
	PutObject(ctx context.Context, params *awss3.PutObjectInput, optFns ...func(*awss3.Options)) (*awss3.PutObjectOutput, error)
}

// BlobStore uploads to one S3 bucket.
type BlobStore struct {
	api        putObjectAPI
	bucket     string
	endpoint   string
	baseURL    string
	publicRead bool
}

// New builds an S3 client with static credentials.
func New(cfg Config) (*BlobStore, error) {
	if cfg.Endpoint == "" || cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("s3 endpoint and credentials are required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	endpoint := strings.TrimRight(cfg.Endpoint, "/")
	client := awss3.New(awss3.Options{
		Region:       cfg.Region,
		BaseEndpoint: aws.String(endpoint),
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: true,
	})
	return newWithAPI(client, cfg), nil
}

func newWithAPI(api putObjectAPI, cfg Config) *BlobStore {
	return &BlobStore{
		api:        api,
		bucket:     cfg.Bucket,
		endpoint:   strings.TrimRight(cfg.Endpoint, "/"),
		baseURL:    strings.TrimRight(cfg.PublicBaseURL, "/"),
		publicRead: cfg.PublicRead,
	}
}

// Upload puts data under key and returns its public URL.
func (s *BlobStore) Upload(ctx context.Context, key string, contentType string, data []byte) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", fmt.Errorf("%w: key is required", pagegen.ErrStorageUploadFailed)
	}
	input := &awss3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(contentType),
	}
	if s.publicRead {
		input.ACL = s3types.ObjectCannedACLPublicRead
	}
	if _, err := s.api.PutObject(ctx, input); err != nil {
		return "", fmt.Errorf("%w: s3 upload %s/%s: %w", pagegen.ErrStorageUploadFailed, s.bucket, key, err)
	}
	return s.PublicURL(key), nil
}

// PublicURL uses PublicBaseURL when set, otherwise a path-style endpoint URL.
func (s *BlobStore) PublicURL(key string) string {
	if s.baseURL != "" {
		return s.baseURL + "/" + key
	}
	return s.endpoint + "/" + s.bucket + "/" + key
}
