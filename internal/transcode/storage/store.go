package storage

import (
	"context"
	"fmt"
	"io"

	"transcoding_service/internal/transcode/domain"
	"transcoding_service/pkg/config"
	"transcoding_service/pkg/database"
)

// ObjectStore object storage 後端
type ObjectStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (domain.UploadResult, error)
	Get(ctx context.Context, key string) (io.ReadCloser, error)
}

// 支援的 driver
const (
	DriverMinIO = "minio"
	DriverS3    = "s3"
	DriverLocal = "local"
)

// New 依設定建立 object store
func New(ctx context.Context, cfg config.StorageConfig) (ObjectStore, error) {
	switch cfg.Driver {
	case DriverMinIO, "":
		mc, err := database.NewMinIOConnection(database.MinIOConnection{
			Endpoint:      fmt.Sprintf("%s:%d", cfg.MinIO.Host, cfg.MinIO.Port),
			User:          cfg.MinIO.User,
			Password:      cfg.MinIO.Password,
			BucketName:    cfg.MinIO.BucketName,
			UseSSL:        cfg.MinIO.UseSSL,
			PublicURL:     cfg.MinIO.PublicURL,
			RetryCount:    cfg.MinIO.RetryCount,
			RetryInterval: database.SecondsOf(cfg.MinIO.RetryInterval),
		})
		if err != nil {
			return nil, err
		}
		return NewMinIOStore(mc), nil

	case DriverS3:
		c, err := database.NewS3Client(database.S3Connection{
			Region:       cfg.S3.Region,
			Endpoint:     cfg.S3.Endpoint,
			AccessKey:    cfg.S3.AccessKey,
			SecretKey:    cfg.S3.SecretKey,
			Bucket:       cfg.S3.Bucket,
			UsePathStyle: cfg.S3.UsePathStyle,
			PublicURL:    cfg.S3.PublicURL,
		})
		if err != nil {
			return nil, err
		}
		return NewS3Store(c.Uploader, c.Client, c.Bucket, c.ObjectURL), nil

	case DriverLocal:
		return NewLocalStore(cfg.Local.Dir)
	}

	return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
}
