package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/starford/studynotes/internal/apperr"
)

// MinIOConfig configures a MinIO bucket.
type MinIOConfig struct {
	Endpoint      string
	AccessKey     string
	SecretKey     string
	Bucket        string
	UseSSL        bool
	PublicBaseURL string
}

// MinIO implements Bucket on minio-go.
type MinIO struct {
	client    *minio.Client
	bucket    string
	publicURL string
}

// NewMinIO connects and creates the bucket when it does not exist yet.
func NewMinIO(ctx context.Context, cfg MinIOConfig) (*MinIO, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("storage: minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("storage: check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("storage: create bucket: %w", err)
		}
		slog.Info("bucket created", slog.String("bucket", cfg.Bucket))
	}

	public := cfg.PublicBaseURL
	if public == "" {
		scheme := "http://"
		if cfg.UseSSL {
			scheme = "https://"
		}
		public = joinURL(scheme+cfg.Endpoint, cfg.Bucket)
	}
	return &MinIO{client: client, bucket: cfg.Bucket, publicURL: public}, nil
}

func (m *MinIO) Upload(ctx context.Context, path string, r io.Reader, size int64, contentType string) error {
	ctx, span := tracer.Start(ctx, "minio.upload", trace.WithAttributes(
		attribute.String("object_key", path),
		attribute.Int64("size_bytes", size),
	))
	defer span.End()

	exists, err := m.Exists(ctx, path)
	if err != nil {
		return err
	}
	if exists {
		return apperr.ErrAlreadyExists
	}
	_, err = m.client.PutObject(ctx, m.bucket, path, r, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		span.RecordError(err)
		return minioError(opUpload, err)
	}
	return nil
}

func (m *MinIO) Remove(ctx context.Context, path string) error {
	ctx, span := tracer.Start(ctx, "minio.remove", trace.WithAttributes(attribute.String("object_key", path)))
	defer span.End()

	if err := m.client.RemoveObject(ctx, m.bucket, path, minio.RemoveObjectOptions{}); err != nil {
		span.RecordError(err)
		return minioError(opRemove, err)
	}
	return nil
}

func (m *MinIO) Exists(ctx context.Context, path string) (bool, error) {
	_, err := m.client.StatObject(ctx, m.bucket, path, minio.StatObjectOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return false, nil
		}
		return false, minioError(opCheck, err)
	}
	return true, nil
}

func (m *MinIO) PublicURL(path string) string {
	return joinURL(m.publicURL, path)
}

func minioError(op string, err error) error {
	return &apperr.UpstreamError{Op: op, Code: minio.ToErrorResponse(err).Code, Err: err}
}
