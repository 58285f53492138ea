package database

import (
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Client definition s3 client with multipart uploader
type S3Client struct {
	Client   *s3.Client
	Uploader *manager.Uploader
	Bucket   string
	baseURL  string
}

// NewS3Client create s3 client with static credentials
func NewS3Client(d S3Connection) (*S3Client, error) {
	if d.Bucket == "" {
		return nil, fmt.Errorf("s3: bucket is required")
	}
	if d.Region == "" {
		return nil, fmt.Errorf("s3: region is required")
	}

	opts := s3.Options{
		Region:       d.Region,
		UsePathStyle: d.UsePathStyle,
	}
	if d.AccessKey != "" {
		opts.Credentials = credentials.NewStaticCredentialsProvider(d.AccessKey, d.SecretKey, "")
	}
	if d.Endpoint != "" {
		opts.BaseEndpoint = aws.String(d.Endpoint)
	}

	client := s3.New(opts)
	return &S3Client{
		Client:   client,
		Uploader: manager.NewUploader(client),
		Bucket:   d.Bucket,
		baseURL:  s3BaseURL(d),
	}, nil
}

func s3BaseURL(d S3Connection) string {
	switch {
	case d.PublicURL != "":
		return strings.TrimRight(d.PublicURL, "/")
	case d.Endpoint != "":
		return strings.TrimRight(d.Endpoint, "/") + "/" + d.Bucket
	default:
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com", d.Bucket, d.Region)
	}
}

// ObjectURL 物件的公開 URL
func (c *S3Client) ObjectURL(key string) string {
	return c.baseURL + "/" + strings.TrimLeft(key, "/")
}
