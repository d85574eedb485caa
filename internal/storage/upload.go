package storage

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// UploadConfig selects an S3-compatible bucket for run artifacts.
type UploadConfig struct {
	Bucket          string
	Prefix          string
	Endpoint        string // custom endpoint for R2, MinIO and similar stores
	Region          string
	AccessKeyID     string
	SecretAccessKey string
}

// Enabled reports whether a bucket is configured.
func (c UploadConfig) Enabled() bool {
	return strings.TrimSpace(c.Bucket) != ""
}

// Uploader archives run artifacts to a bucket.
type Uploader struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewUploader builds an S3 client from the default credential chain, or from
// static keys when both are set.
func NewUploader(ctx context.Context, cfg UploadConfig) (*Uploader, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("upload bucket is required")
	}

	region := cfg.Region
	if region == "" {
		if cfg.Endpoint != "" {
			region = "auto"
		} else {
			region = "us-east-1"
		}
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &Uploader{
		client: client,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
	}, nil
}

// Key returns the object key for an artifact of run runID.
func (u *Uploader) Key(runID, name string) string {
	return path.Join(u.prefix, runID, name)
}

// Upload stores data under key.
func (u *Uploader) Upload(ctx context.Context, key string, data []byte, contentType string) error {
	input := &s3.PutObjectInput{
		Bucket: aws.String(u.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	if _, err := u.client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("failed to upload object: %w", err)
	}
	return nil
}

// UploadFile stores the file at p under the run's prefix and returns its key.
func (u *Uploader) UploadFile(ctx context.Context, runID, p string) (string, error) {
	data, err := os.ReadFile(p)
	if err != nil {
		return "", fmt.Errorf("read artifact: %w", err)
	}
	key := u.Key(runID, filepath.Base(p))
	if err := u.Upload(ctx, key, data, contentTypeFor(p)); err != nil {
		return "", err
	}
	return key, nil
}

func contentTypeFor(p string) string {
	switch strings.ToLower(filepath.Ext(p)) {
	case ".json":
		return "application/json"
	case ".yaml", ".yml":
		return "application/yaml"
	case ".html":
		return "text/html; charset=utf-8"
	case ".parquet":
		return "application/vnd.apache.parquet"
	default:
		return "application/octet-stream"
	}
}
