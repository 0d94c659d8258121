package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// DefaultPresignExpiry is how long MinioStore URLs stay valid.
const DefaultPresignExpiry = time.Hour

// MinioConfig holds the connection settings for an S3-compatible endpoint.
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	Region    string
}

// MinioStore keeps attachments in a MinIO/S3 bucket and hands out presigned
// GET URLs.
type MinioStore struct {
	client *minio.Client
	bucket string
	expiry time.Duration
}

var _ Store = (*MinioStore)(nil)

// NewMinioStore connects and creates the bucket if it does not exist.
func NewMinioStore(ctx context.Context, cfg MinioConfig) (*MinioStore, error) {
	store, err := newMinioStore(cfg)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	exists, err := store.client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("storage: checking bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := store.client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, fmt.Errorf("storage: creating bucket %s: %w", cfg.Bucket, err)
		}
	}
	return store, nil
}

// newMinioStore builds the client without touching the network.
func newMinioStore(cfg MinioConfig) (*MinioStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("storage: init minio client: %w", err)
	}
	return &MinioStore{client: client, bucket: cfg.Bucket, expiry: DefaultPresignExpiry}, nil
}

func (m *MinioStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	cleaned, err := cleanKey(key)
	if err != nil {
		return err
	}
	_, err = m.client.PutObject(ctx, m.bucket, cleaned, r, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("storage: put object %s: %w", cleaned, err)
	}
	return nil
}

func (m *MinioStore) Delete(ctx context.Context, key string) error {
	cleaned, err := cleanKey(key)
	if err != nil {
		return err
	}
	if err := m.client.RemoveObject(ctx, m.bucket, cleaned, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("storage: delete object %s: %w", cleaned, err)
	}
	return nil
}

// URL presigns a GET for key.
func (m *MinioStore) URL(ctx context.Context, key string) (string, error) {
	cleaned, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	u, err := m.client.PresignedGetObject(ctx, m.bucket, cleaned, m.expiry, nil)
	if err != nil {
		return "", fmt.Errorf("storage: presign %s: %w", cleaned, err)
	}
	return u.String(), nil
}
