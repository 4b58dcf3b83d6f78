package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

type GCSBucket struct {
	client     *storage.Client
	bucketName string
}

func NewGCSBucket(ctx context.Context, projectID, bucketName, credentialsFile string) (*GCSBucket, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	if projectID != "" {
		opts = append(opts, option.WithQuotaProject(projectID))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, err
	}

	return &GCSBucket{
		client:     client,
		bucketName: bucketName,
	}, nil
}

func (b *GCSBucket) Name() string { return b.bucketName }

func (b *GCSBucket) PublicURL(key string) string {
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", b.bucketName, key)
}

func (b *GCSBucket) Upload(ctx context.Context, key string, body io.Reader, _ int64, contentType string) (string, error) {
	obj := b.client.Bucket(b.bucketName).Object(key).If(storage.Conditions{DoesNotExist: true})

	writer := obj.NewWriter(ctx)
	writer.ContentType = contentType
	writer.CacheControl = CacheControl

	if _, err := io.Copy(writer, body); err != nil {
		writer.Close()
		return "", err
	}
	if err := writer.Close(); err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) && apiErr.Code == http.StatusPreconditionFailed {
			return "", ErrObjectExists
		}
		return "", err
	}

	return b.PublicURL(key), nil
}

func (b *GCSBucket) Remove(ctx context.Context, keys []string) error {
	bucket := b.client.Bucket(b.bucketName)
	var errs []error
	for _, key := range keys {
		if err := bucket.Object(key).Delete(ctx); err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
