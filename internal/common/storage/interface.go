package storage

import (
	"context"
	"io"
	"time"
)

// ObjectStorage defines the object operations used by the upload flow.
type ObjectStorage interface {
	// PutObject stores size bytes read from reader under objectKey.
	PutObject(ctx context.Context, bucket, objectKey string, reader io.Reader, sizeBytes int64, contentType string) error

	// StatObject returns size and ETag for an object.
	StatObject(ctx context.Context, bucket, objectKey string) (ObjectStat, error)

	// RemoveObject deletes an object. Removing a missing object is not an error.
	RemoveObject(ctx context.Context, bucket, objectKey string) error

	// PresignGet returns a time-limited download URL.
	PresignGet(ctx context.Context, bucket, objectKey string, ttl time.Duration) (string, error)

	// EnsureBucket creates bucket when it does not exist yet.
	EnsureBucket(ctx context.Context, bucket string) error
}

// ObjectStat contains object metadata used for validation.
type ObjectStat struct {
	SizeBytes   int64
	ETag        string
	ContentType string
}
