// Package storage 提供对象存储桶的抽象，支持本地目录、S3 与 GCS 三种后端。
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/threadlog/internal/config"
)

// CacheControl is applied to every uploaded object.
const CacheControl = "max-age=3600"

// ErrObjectExists is returned by Upload when the key is already taken. Uploads never overwrite.
var ErrObjectExists = errors.New("object already exists")

// Bucket is a named object container with public URLs.
type Bucket interface {
	Name() string
	// Upload writes body under key and returns its public URL.
	Upload(ctx context.Context, key string, body io.Reader, size int64, contentType string) (string, error)
	PublicURL(key string) string
	// Remove deletes keys; missing keys are not an error.
	Remove(ctx context.Context, keys []string) error
}

// KeyFromURL extracts the object key from a public URL of the named bucket,
// i.e. everything after the last "/<bucket>/" segment.
func KeyFromURL(bucket, url string) (string, bool) {
	marker := "/" + bucket + "/"
	idx := strings.LastIndex(url, marker)
	if idx < 0 {
		return "", false
	}
	key := url[idx+len(marker):]
	if q := strings.IndexAny(key, "?#"); q >= 0 {
		key = key[:q]
	}
	if key == "" {
		return "", false
	}
	return key, true
}

// Open builds the bucket for the configured backend.
func Open(ctx context.Context, cfg config.AppConfig, name string) (Bucket, error) {
	switch cfg.StorageBackend {
	case "", "local":
		return NewLocalBucket(cfg.UploadDir, cfg.UploadURLPath, name)
	case "s3":
		return NewS3Bucket(cfg.S3Region, name)
	case "gcs":
		return NewGCSBucket(ctx, cfg.GCSProjectID, name, cfg.GCSCredentials)
	default:
		return nil, fmt.Errorf("unsupported storage backend %q", cfg.StorageBackend)
	}
}
