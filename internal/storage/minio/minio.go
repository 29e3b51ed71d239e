// Package minio implements storage.Images on a MinIO/S3 bucket.
// Objects live under "images/<uuid><ext>"; the image id is the last path element.
package minio

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	mclient "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/pribylovaa/siveal/internal/config"
	"github.com/pribylovaa/siveal/internal/storage"
)

// ImagesStorage is the MinIO adapter for uploaded pictures.
type ImagesStorage struct {
	s3     config.S3Config
	images config.ImagesConfig
	client *mclient.Client
}

// New builds the client and checks that the bucket exists.
// The endpoint may carry a scheme; https switches on TLS.
func New(ctx context.Context, cfg *config.Config) (*ImagesStorage, error) {
	const op = "storage/minio/New"

	endpoint := cfg.S3.Endpoint
	secure := strings.HasPrefix(endpoint, "https://")

	if u, err := url.Parse(endpoint); err == nil && u.Scheme != "" && u.Host != "" {
		endpoint = u.Host
		secure = u.Scheme == "https"
	}

	client, err := mclient.New(endpoint, &mclient.Options{
		Creds:  credentials.NewStaticV4(cfg.S3.RootUser, cfg.S3.RootPassword, ""),
		Secure: secure,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	exists, err := client.BucketExists(ctx, cfg.S3.Bucket)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if !exists {
		return nil, fmt.Errorf("%s: bucket %q does not exist", op, cfg.S3.Bucket)
	}

	return &ImagesStorage{s3: cfg.S3, images: cfg.Images, client: client}, nil
}

var _ storage.Images = (*ImagesStorage)(nil)
