package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/hughes7370/fundconnectv3-sub001/internal/config"
)

// MinioStore implements ObjectStore against any S3-compatible endpoint.
type MinioStore struct {
	client   *minio.Client
	endpoint string
	bucket   string
	useSSL   bool
}

// NewMinioStore creates a client for the configured endpoint. It does not
// touch the bucket; call EnsureBucket (or run cmd/storage-setup) for that.
func NewMinioStore(cfg *config.Config) (*MinioStore, error) {
	client, err := minio.New(cfg.StorageEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.StorageAccessKey, cfg.StorageSecretKey, ""),
		Secure: cfg.StorageUseSSL,
	})
	if err != nil {
		return nil, err
	}

	return &MinioStore{
		client:   client,
		endpoint: cfg.StorageEndpoint,
		bucket:   cfg.StorageBucket,
		useSSL:   cfg.StorageUseSSL,
	}, nil
}

// publicReadPolicy grants anonymous read on every object in the bucket.
func publicReadPolicy(bucket string) string {
	return fmt.Sprintf(`{
		"Version": "2012-10-17",
		"Statement": [{
			"Effect": "Allow",
			"Principal": {"AWS": ["*"]},
			"Action": ["s3:GetObject"],
			"Resource": ["arn:aws:s3:::%s/*"]
		}]
	}`, bucket)
}

// EnsureBucket creates the bucket if missing and applies the public-read
// policy.
func (s *MinioStore) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return err
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
			return err
		}
	}
	return s.client.SetBucketPolicy(ctx, s.bucket, publicReadPolicy(s.bucket))
}

// CheckBucket reports whether the bucket exists and is publicly readable.
func (s *MinioStore) CheckBucket(ctx context.Context) (*BucketStatus, error) {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return nil, err
	}

	status := &BucketStatus{Exists: exists, Bucket: s.bucket}
	if !exists {
		return status, nil
	}

	policy, err := s.client.GetBucketPolicy(ctx, s.bucket)
	if err != nil {
		return nil, err
	}
	status.PublicRead = policy != ""
	return status, nil
}

// Upload stores an object under key.
func (s *MinioStore) Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	_, err := s.client.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	return err
}

// Remove deletes an object by key.
func (s *MinioStore) Remove(ctx context.Context, key string) error {
	return s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{})
}

// PublicURL resolves the anonymous-read URL for an object.
func (s *MinioStore) PublicURL(key string) string {
	scheme := "http"
	if s.useSSL {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/%s/%s", scheme, s.endpoint, s.bucket, key)
}
