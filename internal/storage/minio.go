package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinIOOptions configures NewMinIO.
type MinIOOptions struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	PublicURL string
}

// MinIO stores uploads in an S3 compatible bucket.
type MinIO struct {
	client    *minio.Client
	bucket    string
	publicURL string
	now       func() time.Time
}

// NewMinIO connects to the server and makes sure the bucket exists.
func NewMinIO(ctx context.Context, opts MinIOOptions) (*MinIO, error) {
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, opts.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to minio server: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, opts.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", opts.Bucket, err)
		}
		slog.InfoContext(ctx, "created upload bucket", "bucket", opts.Bucket)
	}

	return &MinIO{client: client, bucket: opts.Bucket, publicURL: publicBaseURL(opts), now: time.Now}, nil
}

// publicBaseURL prefers the configured public URL and otherwise points at
// the endpoint itself.
func publicBaseURL(opts MinIOOptions) string {
	if publicURL := strings.TrimRight(strings.TrimSpace(opts.PublicURL), "/"); publicURL != "" {
		return publicURL
	}
	scheme := "http"
	if opts.UseSSL {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s", scheme, opts.Endpoint)
}

func (s *MinIO) Put(ctx context.Context, name, contentType string, r io.Reader, size int64) (string, error) {
	objectName := ObjectName(name, s.now())
	info, err := s.client.PutObject(ctx, s.bucket, objectName, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload file: %w", err)
	}
	return s.ObjectURL(info.Key), nil
}

// ObjectURL is the public reference stored on posts.
func (s *MinIO) ObjectURL(key string) string {
	return fmt.Sprintf("%s/%s/%s", s.publicURL, s.bucket, key)
}
