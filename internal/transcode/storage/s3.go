package storage

import (
	"context"
	"fmt"
	"io"

	"transcoding_service/internal/transcode/domain"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Uploader *manager.Uploader
type S3Uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// S3Getter *s3.Client
type S3Getter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Store aws s3 backend
type S3Store struct {
	uploader S3Uploader
	getter   S3Getter
	bucket   string
	urlFor   func(key string) string
}

// NewS3Store create s3 store
func NewS3Store(uploader S3Uploader, getter S3Getter, bucket string, urlFor func(string) string) *S3Store {
	return &S3Store{uploader: uploader, getter: getter, bucket: bucket, urlFor: urlFor}
}

// Put upload object, 大檔由 manager 自動分段上傳
func (s *S3Store) Put(ctx context.Context, key string, r io.Reader, _ int64, contentType string) (domain.UploadResult, error) {
	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        r,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return domain.UploadResult{}, fmt.Errorf("failed to upload object %s to bucket %s: %w", key, s.bucket, err)
	}
	return domain.RemoteResult(s.urlFor(key), key), nil
}

// Get download object
func (s *S3Store) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := s.getter.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get object %s from bucket %s: %w", key, s.bucket, err)
	}
	return out.Body, nil
}
