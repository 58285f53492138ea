package storage

import (
	"context"
	"io"

	"transcoding_service/internal/transcode/domain"
)

// MinIOClientRepo database.MinIOClient 的方法
type MinIOClientRepo interface {
	PutObject(ctx context.Context, objectName string, r io.Reader, size int64, contentType string) error
	GetObject(ctx context.Context, objectName string) (io.ReadCloser, error)
	ObjectURL(objectName string) string
}

// MinIOStore minio backend
type MinIOStore struct {
	client MinIOClientRepo
}

// NewMinIOStore create minio store
func NewMinIOStore(client MinIOClientRepo) *MinIOStore {
	return &MinIOStore{client: client}
}

// Put upload object
func (m *MinIOStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (domain.UploadResult, error) {
	if err := m.client.PutObject(ctx, key, r, size, contentType); err != nil {
		return domain.UploadResult{}, err
	}
	return domain.RemoteResult(m.client.ObjectURL(key), key), nil
}

// Get download object
func (m *MinIOStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	return m.client.GetObject(ctx, key)
}
