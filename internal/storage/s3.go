package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
)

type S3Bucket struct {
	s3     *s3.S3
	region string
	bucket string
}

func NewS3Bucket(region, bucket string) (*S3Bucket, error) {
	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(region),
	})
	if err != nil {
		return nil, err
	}

	return &S3Bucket{
		s3:     s3.New(sess),
		region: region,
		bucket: bucket,
	}, nil
}

func (b *S3Bucket) Name() string { return b.bucket }

// PublicURL uses path-style addressing so the bucket name stays in the path.
func (b *S3Bucket) PublicURL(key string) string {
	return fmt.Sprintf("https://s3.%s.amazonaws.com/%s/%s", b.region, b.bucket, key)
}

func (b *S3Bucket) Upload(ctx context.Context, key string, body io.Reader, size int64, contentType string) (string, error) {
	_, err := b.s3.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return "", ErrObjectExists
	}
	if !isS3NotFound(err) {
		return "", err
	}

	buffer, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}

	_, err = b.s3.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(b.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(buffer),
		ContentLength: aws.Int64(int64(len(buffer))),
		ContentType:   aws.String(contentType),
		CacheControl:  aws.String(CacheControl),
	})
	if err != nil {
		return "", err
	}

	return b.PublicURL(key), nil
}

func (b *S3Bucket) Remove(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	objects := make([]*s3.ObjectIdentifier, 0, len(keys))
	for _, key := range keys {
		objects = append(objects, &s3.ObjectIdentifier{Key: aws.String(key)})
	}

	out, err := b.s3.DeleteObjectsWithContext(ctx, &s3.DeleteObjectsInput{
		Bucket: aws.String(b.bucket),
		Delete: &s3.Delete{Objects: objects, Quiet: aws.Bool(true)},
	})
	if err != nil {
		return err
	}
	if len(out.Errors) > 0 {
		first := out.Errors[0]
		return fmt.Errorf("delete %s: %s", aws.StringValue(first.Key), aws.StringValue(first.Message))
	}
	return nil
}

func isS3NotFound(err error) bool {
	if reqErr, ok := err.(awserr.RequestFailure); ok && reqErr.StatusCode() == http.StatusNotFound {
		return true
	}
	if aerr, ok := err.(awserr.Error); ok {
		return aerr.Code() == s3.ErrCodeNoSuchKey || aerr.Code() == "NotFound"
	}
	return false
}
