// Package storage provides a read-only inspector for the S3-compatible
// object store holding conversation workspaces. It is a diagnostic surface:
// list what is in a bucket, nothing more.
package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/agenthub-dev/agenthub/internal/config"
)

// Object describes one listed object.
type Object struct {
	Key          string
	Size         int64
	LastModified time.Time
	ETag         string
}

// Inspector lists objects in the configured bucket.
type Inspector struct {
	client *minio.Client
	bucket string
}

// NewInspector builds an Inspector from the storage configuration.
func NewInspector(cfg config.StorageConfig) (*Inspector, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("storage: endpoint is required")
	}
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, fmt.Errorf("storage: bucket is required")
	}

	client, errClient := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if errClient != nil {
		return nil, fmt.Errorf("storage: create client: %w", errClient)
	}
	return &Inspector{client: client, bucket: cfg.Bucket}, nil
}

// List returns up to limit objects under prefix. A limit of zero or less
// means no cap.
func (i *Inspector) List(ctx context.Context, prefix string, limit int) ([]Object, error) {
	opts := minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}
	if limit > 0 {
		opts.MaxKeys = limit
	}

	objects := make([]Object, 0, 64)
	for info := range i.client.ListObjects(ctx, i.bucket, opts) {
		if info.Err != nil {
			return nil, fmt.Errorf("storage: list %s: %w", i.bucket, info.Err)
		}
		objects = append(objects, Object{
			Key:          info.Key,
			Size:         info.Size,
			LastModified: info.LastModified,
			ETag:         info.ETag,
		})
		if limit > 0 && len(objects) >= limit {
			break
		}
	}
	return objects, nil
}

// Bucket returns the configured bucket name.
func (i *Inspector) Bucket() string {
	return i.bucket
}
