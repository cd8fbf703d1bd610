package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"cover-studio/internal/config"
	"cover-studio/internal/domain/ports/adapter"
	"cover-studio/internal/infra/metrics"
)

var _ adapter.ObjectStorage = (*S3Storage)(nil)

// S3Storage keeps generated cover payloads in an S3-compatible bucket
// (AWS or MinIO). The datastore row only carries the key and URLs.
type S3Storage struct {
	client     *s3.Client
	bucket     string
	publicBase string
}

func NewS3Storage(ctx context.Context, cfg config.StorageConfig) (*S3Storage, error) {
	var awsCfg aws.Config
	var err error

	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		// Static credentials (MinIO, or AWS with explicit keys).
		awsCfg, err = awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(cfg.Region),
			awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
				cfg.AccessKey,
				cfg.SecretKey,
				"",
			)),
		)
	} else {
		// Default credential chain (IAM roles, env vars, etc.).
		awsCfg, err = awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(cfg.Region),
		)
	}
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		if cfg.UsePathStyle {
			o.UsePathStyle = true
		}
	})

	if err := ensureBucket(ctx, client, cfg.Bucket); err != nil {
		return nil, fmt.Errorf("ensure bucket: %w", err)
	}

	base := cfg.PublicBase
	if base == "" {
		base = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, cfg.Region)
	}
	return &S3Storage{client: client, bucket: cfg.Bucket, publicBase: strings.TrimRight(base, "/")}, nil
}

func ensureBucket(ctx context.Context, client *s3.Client, bucket string) error {
	_, err := client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(bucket)})
	if err == nil {
		return nil
	}
	_, err = client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(bucket)})
	var owned *types.BucketAlreadyOwnedByYou
	var exists *types.BucketAlreadyExists
	if errors.As(err, &owned) || errors.As(err, &exists) {
		return nil
	}
	return err
}

func (s *S3Storage) Upload(ctx context.Context, data []byte, params adapter.UploadParams) (*adapter.Upload, error) {
	contentType := params.ContentType
	if contentType == "" {
		contentType = "image/png"
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(params.Key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
		Metadata:    params.Metadata,
	})
	metrics.IncStorageOp("upload", err)
	if err != nil {
		return nil, fmt.Errorf("s3 put %s: %w", params.Key, err)
	}

	width, height, format := probeImage(data)
	url := s.publicBase + "/" + params.Key
	secure := url
	if strings.HasPrefix(url, "http://") {
		secure = "https://" + strings.TrimPrefix(url, "http://")
	}
	return &adapter.Upload{
		Ref:       params.Key,
		URL:       url,
		SecureURL: secure,
		Bytes:     int64(len(data)),
		Width:     width,
		Height:    height,
		Format:    format,
	}, nil
}

func (s *S3Storage) Download(ctx context.Context, ref string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(ref),
	})
	metrics.IncStorageOp("download", err)
	if err != nil {
		return nil, fmt.Errorf("s3 get %s: %w", ref, err)
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}

func (s *S3Storage) Delete(ctx context.Context, ref string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(ref),
	})
	metrics.IncStorageOp("delete", err)
	if err != nil {
		return fmt.Errorf("s3 delete %s: %w", ref, err)
	}
	return nil
}

// probeImage reads the header only; a payload we cannot decode still
// uploads fine, it just loses dimension metadata.
func probeImage(data []byte) (width, height int, format string) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, ""
	}
	return cfg.Width, cfg.Height, format
}
