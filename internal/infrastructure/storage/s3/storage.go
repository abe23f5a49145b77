package s3

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/kirillkom/kpi-benchmark/internal/core/domain"
	"github.com/kirillkom/kpi-benchmark/internal/core/ports"
)

type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Region    string
	Bucket    string
	Prefix    string
}

// Storage saves exported artifacts into a MinIO/S3 bucket.
type Storage struct {
	client *minio.Client
	bucket string
	prefix string
	region string
}

func New(cfg Config) (*Storage, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio: %w", err)
	}
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, fmt.Errorf("init minio: bucket is required")
	}
	return &Storage{
		client: client,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
		region: cfg.Region,
	}, nil
}

// EnsureBucket creates the artifact bucket on first use.
func (s *Storage) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
		return fmt.Errorf("make bucket %s: %w", s.bucket, err)
	}
	return nil
}

func (s *Storage) Save(ctx context.Context, artifact domain.Artifact) (string, error) {
	key, err := objectKey(s.prefix, artifact.Filename)
	if err != nil {
		return "", err
	}
	contentType := artifact.ContentType
	if contentType == "" {
		contentType = "application/pdf"
	}
	opts := minio.PutObjectOptions{ContentType: contentType}
	if _, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(artifact.Data), int64(len(artifact.Data)), opts); err != nil {
		return "", fmt.Errorf("upload artifact object: %w", err)
	}
	return "s3://" + s.bucket + "/" + key, nil
}

func objectKey(prefix, filename string) (string, error) {
	name := strings.TrimSpace(filename)
	if name == "" || strings.ContainsAny(name, `/\`) {
		return "", domain.WrapError(domain.ErrInvalidInput, "artifact key", fmt.Errorf("invalid artifact name %q", filename))
	}
	if prefix == "" {
		return name, nil
	}
	return path.Join(prefix, name), nil
}

var _ ports.ArtifactSink = (*Storage)(nil)
