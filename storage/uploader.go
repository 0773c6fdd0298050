package storage

import (
	"context"
	"io"
)

type UploadResult struct {
	Key      string
	Location string
	ETag     string
}

// ObjectUploader writes objects to a bucket.
type ObjectUploader interface {
	Upload(ctx context.Context, key string, contentType string, reader io.Reader) (*UploadResult, error)

	// GetPublicURL returns "" when the bucket has no public base URL.
	GetPublicURL(key string) string
}
