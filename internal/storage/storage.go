// Package storage wraps the S3-compatible object store holding fund
// documents. Handlers depend on the ObjectStore interface; the server wires
// the MinIO client, tests substitute an in-memory fake.
package storage

import (
	"context"
	"io"
)

// BucketStatus describes the state of the documents bucket for the
// storage-check endpoint.
type BucketStatus struct {
	Exists     bool   `json:"exists"`
	Bucket     string `json:"bucket"`
	PublicRead bool   `json:"public_read"`
}

// ObjectStore is the object-storage contract the document paths consume.
type ObjectStore interface {
	// EnsureBucket creates the bucket if missing and applies the
	// public-read policy.
	EnsureBucket(ctx context.Context) error
	CheckBucket(ctx context.Context) (*BucketStatus, error)
	Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Remove(ctx context.Context, key string) error
	PublicURL(key string) string
}
