package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pribylovaa/siveal/internal/models"
	"github.com/pribylovaa/siveal/internal/pkg/log"
	"github.com/pribylovaa/siveal/internal/storage"
)

const maxListImages = 100

// ImageUploadURL is admin only. It checks the declared type and size and
// returns a presigned PUT for a new object.
func (s *Service) ImageUploadURL(ctx context.Context, id *models.Identity, contentType string, contentLength int64) (*models.UploadInfo, error) {
	const op = "service/images/ImageUploadURL"

	if err := RequireRole(id, models.RoleAdmin); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if s.images == nil {
		return nil, detailed(op, ErrUnavailable, ErrImagesDisabled)
	}

	lg := log.From(ctx).With(slog.String("op", op))

	contentType = strings.ToLower(strings.TrimSpace(contentType))
	if !allowedType(s.cfg.Images.AllowedContentTypes, contentType) {
		lg.Warn("upload_bad_content_type", slog.String("content_type", contentType))
		return nil, invalid(op, "contentType", "must be one of: "+strings.Join(s.cfg.Images.AllowedContentTypes, " "))
	}

	if contentLength <= 0 || contentLength > s.cfg.Images.MaxSizeBytes {
		lg.Warn("upload_bad_size", slog.Int64("content_length", contentLength))
		return nil, invalid(op, "contentLength", fmt.Sprintf("must be between 1 and %d bytes", s.cfg.Images.MaxSizeBytes))
	}

	info, err := s.images.ImageUploadURL(ctx, contentType, contentLength)
	if err != nil {
		if errors.Is(err, storage.ErrInvalidArgument) {
			return nil, invalid(op, "", "unsupported upload")
		}

		lg.Error("presign_failed", slog.String("err", err.Error()))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	lg.Info("upload_presigned", slog.String("image_id", info.ImageID))

	return info, nil
}

// ImageInfo is public.
func (s *Service) ImageInfo(ctx context.Context, imageID string) (*models.Image, error) {
	const op = "service/images/ImageInfo"

	if s.images == nil {
		return nil, detailed(op, ErrUnavailable, ErrImagesDisabled)
	}

	img, err := s.images.ImageInfo(ctx, imageID)
	if err != nil {
		return nil, imageErr(ctx, op, err)
	}

	return img, nil
}

// ListImages needs any authenticated caller. The result is capped at 100.
func (s *Service) ListImages(ctx context.Context, id *models.Identity) ([]models.Image, error) {
	const op = "service/images/ListImages"

	if id == nil {
		return nil, fmt.Errorf("%s: %w", op, ErrUnauthorized)
	}

	if s.images == nil {
		return nil, detailed(op, ErrUnavailable, ErrImagesDisabled)
	}

	items, err := s.images.ListImages(ctx, maxListImages)
	if err != nil {
		return nil, imageErr(ctx, op, err)
	}

	return items, nil
}

// DeleteImage is admin only.
func (s *Service) DeleteImage(ctx context.Context, id *models.Identity, imageID string) error {
	const op = "service/images/DeleteImage"

	if err := RequireRole(id, models.RoleAdmin); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if s.images == nil {
		return detailed(op, ErrUnavailable, ErrImagesDisabled)
	}

	if err := s.images.DeleteImage(ctx, imageID); err != nil {
		return imageErr(ctx, op, err)
	}

	log.From(ctx).Info("image_deleted", slog.String("op", op), slog.String("image_id", imageID))

	return nil
}

func imageErr(ctx context.Context, op string, err error) error {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	case errors.Is(err, storage.ErrInvalidArgument):
		return invalid(op, "id", "is invalid")
	}

	log.From(ctx).Error("image_storage_failed", slog.String("op", op), slog.String("err", err.Error()))

	return fmt.Errorf("%s: %w", op, err)
}

func allowedType(allowed []string, ct string) bool {
	for _, a := range allowed {
		if strings.EqualFold(a, ct) {
			return true
		}
	}

	return false
}
