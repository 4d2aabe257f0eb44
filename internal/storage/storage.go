// Package storage reads the static frontend bundles that sites serve.
//
// Implementations:
// - S3Storage: an S3 (or S3-compatible) bucket for production
// - LocalStorage: a directory on disk for development
package storage

import (
	"context"
	"fmt"
	"io"
	"time"
)

// =============================================================================
// Interface Definition
// =============================================================================

// Storage reads objects by key. Sites only ever fetch their index.html.
type Storage interface {
	// Get retrieves the data at the specified key.
	// The caller must close the returned reader. Returns ErrNotFound if the
	// key doesn't exist.
	Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error)
}

// ObjectInfo contains metadata about a stored object.
type ObjectInfo struct {
	Key          string
	Size         int64
	ContentType  string
	LastModified time.Time
	ETag         string
}

// ReadObject reads the whole object at key, failing with ErrTooLarge when it
// is bigger than maxSize bytes. A maxSize of zero means no limit.
func ReadObject(ctx context.Context, s Storage, key string, maxSize int64) ([]byte, ObjectInfo, error) {
	body, info, err := s.Get(ctx, key)
	if err != nil {
		return nil, ObjectInfo{}, err
	}
	defer body.Close()

	var r io.Reader = body
	if maxSize > 0 {
		r = io.LimitReader(body, maxSize+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, ObjectInfo{}, objectErr("read", key, fmt.Errorf("read body: %w", err))
	}
	if maxSize > 0 && int64(len(data)) > maxSize {
		return nil, ObjectInfo{}, objectErr("read", key, ErrTooLarge)
	}
	return data, info, nil
}

// =============================================================================
// Configuration Types
// =============================================================================

// LocalConfig holds configuration for local filesystem storage.
type LocalConfig struct {
	// BasePath is the root directory holding the site folders.
	BasePath string
}

// S3Config holds configuration for S3 storage.
type S3Config struct {
	Bucket          string
	Region          string
	AccessKeyID     string
	SecretAccessKey string

	// Endpoint overrides the AWS endpoint for S3-compatible services.
	// Path-style addressing is used whenever it is set.
	Endpoint string
}

const (
	// ProviderLocal identifies the local filesystem storage provider.
	ProviderLocal = "local"

	// ProviderS3 identifies the S3 storage provider.
	ProviderS3 = "s3"
)
