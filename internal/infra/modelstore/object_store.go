package modelstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Config points at an S3-compatible bucket (R2, MinIO, S3).
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	Key       string
}

// Enabled reports whether a remote artifact is configured.
func (c Config) Enabled() bool {
	return strings.TrimSpace(c.Endpoint) != "" && strings.TrimSpace(c.Bucket) != "" && strings.TrimSpace(c.Key) != ""
}

// ObjectStore downloads model artifacts from object storage.
type ObjectStore struct {
	client *minio.Client
	bucket string
	key    string
	logger *slog.Logger
}

// NewObjectStore constructs the storage adapter.
func NewObjectStore(cfg Config, logger *slog.Logger) (*ObjectStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if !cfg.Enabled() {
		return nil, errors.New("object storage endpoint, bucket and key are required")
	}
	client, err := minio.New(sanitizeEndpoint(cfg.Endpoint), &minio.Options{
		Creds:        credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:       !strings.HasPrefix(strings.ToLower(strings.TrimSpace(cfg.Endpoint)), "http://"),
		Region:       cfg.Region,
		BucketLookup: minio.BucketLookupPath,
	})
	if err != nil {
		return nil, fmt.Errorf("init object storage client: %w", err)
	}
	return &ObjectStore{
		client: client,
		bucket: cfg.Bucket,
		key:    cfg.Key,
		logger: logger.With("component", "modelstore.object"),
	}, nil
}

// EnsureLocal downloads the artifact to path unless a file is already there.
func (s *ObjectStore) EnsureLocal(ctx context.Context, path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("stat model artifact: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create model dir: %w", err)
	}
	// Download beside the target so a partial file is never picked up.
	tmp := path + ".download"
	if err := s.client.FGetObject(ctx, s.bucket, s.key, tmp, minio.GetObjectOptions{}); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("download s3://%s/%s: %w", s.bucket, s.key, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("install model artifact: %w", err)
	}
	s.logger.Info("model artifact downloaded", "bucket", s.bucket, "key", s.key, "path", path)
	return nil
}

// sanitizeEndpoint removes schemes and paths to satisfy minio.New expectations.
func sanitizeEndpoint(raw string) string {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(strings.TrimPrefix(raw, "https://"), "http://")
	if i := strings.Index(raw, "/"); i >= 0 {
		raw = raw[:i]
	}
	return raw
}
