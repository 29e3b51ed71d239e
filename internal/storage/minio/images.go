package minio

import (
	"context"
	"fmt"
	"net/http"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
	mclient "github.com/minio/minio-go/v7"
	"github.com/pribylovaa/siveal/internal/models"
	"github.com/pribylovaa/siveal/internal/storage"
)

const imagesPrefix = "images/"

var extByType = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// ImageUploadURL validates type and size against the config and presigns
// a PUT for "images/<uuid><ext>". The client must send RequiredHeader as is.
func (s *ImagesStorage) ImageUploadURL(ctx context.Context, contentType string, contentLength int64) (*models.UploadInfo, error) {
	const op = "storage/minio/images/ImageUploadURL"

	if contentLength <= 0 || contentLength > s.images.MaxSizeBytes {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrInvalidArgument)
	}

	if !isAllowedContentType(s.images.AllowedContentTypes, contentType) {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrInvalidArgument)
	}

	id := uuid.NewString() + extByType[contentType]
	key := path.Join(strings.TrimSuffix(imagesPrefix, "/"), id)

	u, err := s.client.PresignedPutObject(ctx, s.s3.Bucket, key, s.s3.PresignTTL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &models.UploadInfo{
		UploadURL: u.String(),
		ImageID:   id,
		Key:       key,
		PublicURL: s.publicURL(key),
		Expires:   s.s3.PresignTTL,
		RequiredHeader: map[string]string{
			"Content-Type":   contentType,
			"Content-Length": strconv.FormatInt(contentLength, 10),
		},
	}, nil
}

// ImageInfo stats the object behind id.
func (s *ImagesStorage) ImageInfo(ctx context.Context, id string) (*models.Image, error) {
	const op = "storage/minio/images/ImageInfo"

	key, err := keyFromID(id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	info, err := s.client.StatObject(ctx, s.s3.Bucket, key, mclient.StatObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapErr(err))
	}

	img := s.toImage(info)

	return &img, nil
}

// ListImages returns up to limit objects, most recently modified first.
func (s *ImagesStorage) ListImages(ctx context.Context, limit int) ([]models.Image, error) {
	const op = "storage/minio/images/ListImages"

	items := make([]models.Image, 0)
	for obj := range s.client.ListObjects(ctx, s.s3.Bucket, mclient.ListObjectsOptions{
		Prefix:    imagesPrefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("%s: %w", op, obj.Err)
		}

		items = append(items, s.toImage(obj))
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})

	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}

	return items, nil
}

// DeleteImage removes the object; storage.ErrNotFound when it is absent.
func (s *ImagesStorage) DeleteImage(ctx context.Context, id string) error {
	const op = "storage/minio/images/DeleteImage"

	key, err := keyFromID(id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	// RemoveObject succeeds on missing keys, so stat first.
	if _, err := s.client.StatObject(ctx, s.s3.Bucket, key, mclient.StatObjectOptions{}); err != nil {
		return fmt.Errorf("%s: %w", op, mapErr(err))
	}

	if err := s.client.RemoveObject(ctx, s.s3.Bucket, key, mclient.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *ImagesStorage) toImage(obj mclient.ObjectInfo) models.Image {
	return models.Image{
		ID:          path.Base(obj.Key),
		Key:         obj.Key,
		URL:         s.publicURL(obj.Key),
		ContentType: obj.ContentType,
		Size:        obj.Size,
		CreatedAt:   obj.LastModified.UTC(),
	}
}

// publicURL is empty when no public base is configured.
func (s *ImagesStorage) publicURL(key string) string {
	if s.s3.PublicBaseURL == "" {
		return ""
	}

	return strings.TrimRight(s.s3.PublicBaseURL, "/") + "/" + key
}

// keyFromID accepts "<uuid>" optionally followed by a known extension.
func keyFromID(id string) (string, error) {
	name := strings.TrimSuffix(id, path.Ext(id))
	if _, err := uuid.Parse(name); err != nil || strings.ContainsAny(id, "/\\") {
		return "", storage.ErrInvalidArgument
	}

	return imagesPrefix + id, nil
}

func mapErr(err error) error {
	resp := mclient.ToErrorResponse(err)
	if resp.Code == "NoSuchKey" || resp.StatusCode == http.StatusNotFound {
		return storage.ErrNotFound
	}

	return err
}

// isAllowedContentType checks the allow-list.
func isAllowedContentType(allow []string, contentType string) bool {
	for _, a := range allow {
		if a == contentType {
			return true
		}
	}

	return false
}
