// Package objstore wraps the MinIO client behind the four operations
// spec.md §4.1 requires, in the teacher's small-provider-behind-an-interface
// shape (ais/cloud/aws.go, ais/cloud/gcp.go): a thin struct holding a
// client, bounded retry around each call, typed errors on the way out.
package objstore

import (
	"context"
	"io"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	"github.com/gbolabs/photoindex/internal/cmn"
)

// Bucket names from spec.md §4.1.
const (
	BucketMetadataImages  = "metadata-images"
	BucketThumbnailImages = "thumbnail-images"
	BucketThumbnails      = "thumbnails"
)

// MetadataKey and ThumbnailKey build the content-addressed keys from
// spec.md §6.4.
func MetadataKey(hash string) string  { return "files/" + hash }
func ThumbnailKey(hash string) string { return "thumbs/" + hash + ".jpg" }

type Store struct {
	client *minio.Client
	log    *zap.Logger
	retry  int
}

type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

func New(cfg Config, log *zap.Logger) (*Store, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, cmn.NewIO("minio_client_failed", "failed to construct minio client", err)
	}
	return &Store{client: client, log: log, retry: 3}, nil
}

// EnsureBucket creates bucket if it does not already exist. Idempotent,
// so safe to call from every process at boot.
func (s *Store) EnsureBucket(ctx context.Context, bucket string) error {
	return s.withRetry(ctx, "ensure_bucket", func(ctx context.Context) error {
		exists, err := s.client.BucketExists(ctx, bucket)
		if err != nil {
			return err
		}
		if exists {
			return nil
		}
		return s.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{})
	})
}

// Put uploads stream to bucket/key. Content-addressed keys make concurrent
// uploads of identical bytes idempotent (spec.md §4.1).
func (s *Store) Put(ctx context.Context, bucket, key string, stream io.Reader, size int64, contentType string) error {
	return s.withRetry(ctx, "put", func(ctx context.Context) error {
		_, err := s.client.PutObject(ctx, bucket, key, stream, size, minio.PutObjectOptions{ContentType: contentType})
		return err
	})
}

// Get streams bucket/key back to the caller; the caller is responsible for
// closing the returned reader.
func (s *Store) Get(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	var obj *minio.Object
	err := s.withRetry(ctx, "get", func(ctx context.Context) error {
		o, err := s.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
		if err != nil {
			return err
		}
		// Force a stat to surface NoSuchKey immediately rather than on first Read.
		if _, err := o.Stat(); err != nil {
			return err
		}
		obj = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return obj, nil
}

// Delete removes bucket/key. Deleting an absent key is not an error.
func (s *Store) Delete(ctx context.Context, bucket, key string) error {
	return s.withRetry(ctx, "delete", func(ctx context.Context) error {
		return s.client.RemoveObject(ctx, bucket, key, minio.RemoveObjectOptions{})
	})
}

func (s *Store) withRetry(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	var lastErr error
	backoff := 100 * time.Millisecond
	for attempt := 0; attempt <= s.retry; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return cmn.NewCancelled("objstore_cancelled", op+" cancelled")
			case <-time.After(backoff):
			}
			backoff *= 2
		}
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err
		if !isTransient(err) {
			break
		}
		s.log.Warn("objstore retrying", zap.String("op", op), zap.Int("attempt", attempt), zap.Error(err))
	}
	return cmn.NewIO("objstore_"+op+"_failed", "object store operation failed", lastErr)
}

func isTransient(err error) bool {
	resp := minio.ToErrorResponse(err)
	switch resp.Code {
	case "NoSuchKey", "NoSuchBucket", "AccessDenied":
		return false
	default:
		return true
	}
}
