package minio

import (
	"context"
	"fmt"
	"io"

	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ArtifactStore mirrors finished frame archives into an object bucket.
type ArtifactStore struct {
	client    *miniogo.Client
	zipBucket string
}

type StorageConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	ZipBucket string
}

func NewArtifactStore(cfg StorageConfig) (*ArtifactStore, error) {
	client, err := miniogo.New(cfg.Endpoint, &miniogo.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	return &ArtifactStore{
		client:    client,
		zipBucket: cfg.ZipBucket,
	}, nil
}

func (s *ArtifactStore) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.zipBucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.zipBucket, err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.zipBucket, miniogo.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create bucket %s: %w", s.zipBucket, err)
	}
	return nil
}

func (s *ArtifactStore) UploadZip(ctx context.Context, objectKey string, reader io.Reader, size int64) error {
	_, err := s.client.PutObject(ctx, s.zipBucket, objectKey, reader, size, miniogo.PutObjectOptions{
		ContentType: "application/zip",
	})
	if err != nil {
		return fmt.Errorf("upload zip %s: %w", objectKey, err)
	}
	return nil
}

// OpenZip streams a mirrored archive back, used when the local copy is gone.
func (s *ArtifactStore) OpenZip(ctx context.Context, objectKey string) (io.ReadCloser, error) {
	obj, err := s.client.GetObject(ctx, s.zipBucket, objectKey, miniogo.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get zip %s: %w", objectKey, err)
	}
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		return nil, fmt.Errorf("stat zip %s: %w", objectKey, err)
	}
	return obj, nil
}
