package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/starford/studynotes/internal/apperr"
)

// S3Config configures an S3-compatible bucket (AWS, R2, MinIO gateway).
type S3Config struct {
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	PublicBaseURL   string
}

// S3 implements Bucket on the AWS SDK.
type S3 struct {
	client    *s3.Client
	bucket    string
	publicURL string
}

// NewS3 builds a client with static credentials. A custom endpoint switches
// to path-style addressing.
func NewS3(cfg S3Config) *S3 {
	awsCfg := aws.Config{
		Credentials: credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Region:      cfg.Region,
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	public := cfg.PublicBaseURL
	if public == "" {
		if cfg.Endpoint != "" {
			public = joinURL(cfg.Endpoint, cfg.Bucket)
		} else {
			public = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, cfg.Region)
		}
	}
	return &S3{client: client, bucket: cfg.Bucket, publicURL: public}
}

func (b *S3) Upload(ctx context.Context, path string, r io.Reader, size int64, contentType string) error {
	ctx, span := tracer.Start(ctx, "s3.upload", trace.WithAttributes(
		attribute.String("object_key", path),
		attribute.Int64("size_bytes", size),
	))
	defer span.End()

	_, err := b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(b.bucket),
		Key:           aws.String(path),
		Body:          r,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String(contentType),
		IfNoneMatch:   aws.String("*"),
	})
	if err != nil {
		if s3Code(err) == "PreconditionFailed" {
			return apperr.ErrAlreadyExists
		}
		span.RecordError(err)
		return s3Error(opUpload, err)
	}
	return nil
}

func (b *S3) Remove(ctx context.Context, path string) error {
	ctx, span := tracer.Start(ctx, "s3.remove", trace.WithAttributes(attribute.String("object_key", path)))
	defer span.End()

	_, err := b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(path),
	})
	if err != nil {
		span.RecordError(err)
		return s3Error(opRemove, err)
	}
	return nil
}

func (b *S3) Exists(ctx context.Context, path string) (bool, error) {
	_, err := b.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(path),
	})
	if err != nil {
		var nf *s3types.NotFound
		if errors.As(err, &nf) || s3Code(err) == "NoSuchKey" {
			return false, nil
		}
		return false, s3Error(opCheck, err)
	}
	return true, nil
}

func (b *S3) PublicURL(path string) string {
	return joinURL(b.publicURL, path)
}

func s3Code(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	return ""
}

// s3Error reports an SDK failure with the service's error code.
func s3Error(op string, err error) error {
	return &apperr.UpstreamError{Op: op, Code: s3Code(err), Err: err}
}
