package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
)

const avatarCacheControl = "public, max-age=86400, immutable"

var errNoS3 = errors.New("s3 client is nil")

// S3Storage keeps avatar objects in one bucket. A nil client is allowed so the
// api can start without object storage; every write then fails and deletes
// are no-ops.
type S3Storage struct {
	client        *minio.Client
	bucket        string
	publicBaseURL string

	mu      sync.Mutex
	ensured bool
}

func NewS3Storage(client *minio.Client, bucket, publicBaseURL string) *S3Storage {
	return &S3Storage{
		client:        client,
		bucket:        strings.TrimSpace(bucket),
		publicBaseURL: strings.TrimRight(strings.TrimSpace(publicBaseURL), "/"),
	}
}

// EnsureBucket creates the bucket on first use. A failed attempt is retried
// on the next call.
func (s *S3Storage) EnsureBucket(ctx context.Context) error {
	if s.client == nil {
		return errNoS3
	}
	if s.bucket == "" {
		return errors.New("s3 bucket is empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ensured {
		return nil
	}

	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %q: %w", s.bucket, err)
	}
	if !exists {
		err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{})
		if err != nil && minio.ToErrorResponse(err).Code != "BucketAlreadyOwnedByYou" {
			return fmt.Errorf("create bucket %q: %w", s.bucket, err)
		}
	}

	s.ensured = true
	return nil
}

func (s *S3Storage) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	if s.client == nil {
		return errNoS3
	}
	if key == "" || body == nil || size <= 0 {
		return fmt.Errorf("invalid avatar object %q", key)
	}

	_, err := s.client.PutObject(ctx, s.bucket, key, body, size, minio.PutObjectOptions{
		ContentType:  contentType,
		CacheControl: avatarCacheControl,
	})
	if err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}
	return nil
}

// PublicURL assumes the bucket is served read-only under publicBaseURL, or
// path-style from the storage endpoint when no base is configured.
func (s *S3Storage) PublicURL(key string) string {
	if key == "" {
		return ""
	}
	if s.publicBaseURL == "" {
		return "/" + s.bucket + "/" + key
	}
	if joined, err := url.JoinPath(s.publicBaseURL, key); err == nil {
		return joined
	}
	return s.publicBaseURL + "/" + key
}

// Delete treats a missing object as already deleted.
func (s *S3Storage) Delete(ctx context.Context, key string) error {
	if s.client == nil || key == "" {
		return nil
	}

	err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{})
	if err != nil && minio.ToErrorResponse(err).Code != "NoSuchKey" {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}
