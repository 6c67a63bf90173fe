package objectstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/arena-labs/arena-go/internal/platform/env"
)

const (
	BackendMinio = "minio"
	BackendS3    = "s3"
)

type Config struct {
	Backend string

	// Bucket holds every submission artifact; keys are namespaced per
	// submission underneath it.
	Bucket string

	// MinIO backend.
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
	UseSSL    bool

	// S3 backend. Credentials fall back to the ambient AWS chain when the
	// explicit pair is unset.
	S3Region          string
	S3Endpoint        string
	S3AccessKeyID     string
	S3SecretAccessKey string
	S3ForcePathStyle  bool
}

func ConfigFromEnv() (Config, error) {
	useSSL, err := env.Bool("ARENA_MINIO_USE_SSL", false)
	if err != nil {
		return Config{}, err
	}
	forcePathStyle, err := env.Bool("ARENA_S3_FORCE_PATH_STYLE", false)
	if err != nil {
		return Config{}, err
	}
	cfg := Config{
		Backend:           env.String("ARENA_OBJECTSTORE_BACKEND", BackendMinio),
		Bucket:            env.String("ARENA_OBJECTSTORE_BUCKET", "submissions"),
		Endpoint:          env.String("ARENA_MINIO_ENDPOINT", "localhost:9000"),
		AccessKey:         env.String("ARENA_MINIO_ACCESS_KEY", "arena"),
		SecretKey:         env.String("ARENA_MINIO_SECRET_KEY", "arenaminio"),
		Region:            env.String("ARENA_MINIO_REGION", "us-east-1"),
		UseSSL:            useSSL,
		S3Region:          env.String("ARENA_S3_REGION", ""),
		S3Endpoint:        env.String("ARENA_S3_ENDPOINT", ""),
		S3AccessKeyID:     env.String("ARENA_S3_ACCESS_KEY_ID", ""),
		S3SecretAccessKey: env.String("ARENA_S3_SECRET_ACCESS_KEY", ""),
		S3ForcePathStyle:  forcePathStyle,
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.Backend {
	case BackendMinio:
		if strings.TrimSpace(c.Endpoint) == "" {
			return errors.New("minio endpoint is required")
		}
		if strings.Contains(c.Endpoint, "://") {
			return fmt.Errorf("minio endpoint must not include scheme: %q", c.Endpoint)
		}
		if strings.TrimSpace(c.AccessKey) == "" {
			return errors.New("minio access key is required")
		}
		if strings.TrimSpace(c.SecretKey) == "" {
			return errors.New("minio secret key is required")
		}
	case BackendS3:
	default:
		return fmt.Errorf("unknown object store backend %q", c.Backend)
	}
	if strings.TrimSpace(c.Bucket) == "" {
		return errors.New("bucket is required")
	}
	return nil
}

// New selects the configured backend.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Backend {
	case BackendMinio:
		return NewMinioStore(cfg, logger)
	case BackendS3:
		return NewS3Store(ctx, cfg, logger)
	default:
		return nil, fmt.Errorf("unknown object store backend %q", cfg.Backend)
	}
}
