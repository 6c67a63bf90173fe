package objectstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type MinioStore struct {
	client *minio.Client
	bucket string
	logger *slog.Logger
}

func NewMinioStore(cfg Config, logger *slog.Logger) (*MinioStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}
	return NewMinioStoreWithClient(client, cfg.Bucket, logger)
}

func NewMinioStoreWithClient(client *minio.Client, bucket string, logger *slog.Logger) (*MinioStore, error) {
	if client == nil {
		return nil, fmt.Errorf("minio client is required")
	}
	if strings.TrimSpace(bucket) == "" {
		return nil, fmt.Errorf("bucket is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &MinioStore{client: client, bucket: bucket, logger: logger}, nil
}

// EnsureBucket creates the artifact bucket if missing; called at startup.
func (s *MinioStore) EnsureBucket(ctx context.Context) error {
	if s == nil || s.client == nil {
		return fmt.Errorf("minio store not initialized")
	}
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("bucket exists: %w", err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("make bucket: %w", err)
	}
	return nil
}

func (s *MinioStore) Save(ctx context.Context, key, contentType string, body []byte) error {
	if s == nil || s.client == nil {
		return fmt.Errorf("minio store not initialized")
	}
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("object key is required")
	}
	opts := minio.PutObjectOptions{ContentType: contentType}
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(body), int64(len(body)), opts)
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

func (s *MinioStore) Get(ctx context.Context, key string) ([]byte, error) {
	if s == nil || s.client == nil {
		return nil, fmt.Errorf("minio store not initialized")
	}
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	defer obj.Close()
	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	return data, nil
}

func (s *MinioStore) Sign(ctx context.Context, key string, perm Permission, ttl time.Duration) string {
	if s == nil || s.client == nil {
		return ""
	}
	if strings.TrimSpace(key) == "" {
		return ""
	}
	if ttl <= 0 {
		ttl = DefaultSignTTL
	}
	switch perm {
	case PermissionWrite:
		u, err := s.client.PresignedPutObject(ctx, s.bucket, key, ttl)
		if err != nil {
			s.logger.Warn("presign put failed", "key", key, "error", err)
			return ""
		}
		return u.String()
	default:
		u, err := s.client.PresignedGetObject(ctx, s.bucket, key, ttl, nil)
		if err != nil {
			s.logger.Warn("presign get failed", "key", key, "error", err)
			return ""
		}
		return u.String()
	}
}
