package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pribylovaa/siveal/internal/models"
	"github.com/pribylovaa/siveal/internal/pkg/log"
	"github.com/pribylovaa/siveal/internal/pkg/redact"
	"github.com/pribylovaa/siveal/internal/storage"
)

// ProfileInput is a partial profile update. Nil fields are left untouched.
type ProfileInput struct {
	Email     *string `validate:"omitnil,max=255"`
	FirstName *string `validate:"omitnil,max=50"`
	LastName  *string `validate:"omitnil,max=50"`
	Bio       *string `validate:"omitnil,max=500"`
	Location  *string `validate:"omitnil,max=100"`
	Website   *string `validate:"omitnil,max=255"`
	Avatar    *string `validate:"omitnil,max=500"`

	CurrentPassword string
	NewPassword     string
}

// Status returns the account behind a token.
func (s *Service) Status(ctx context.Context, id *models.Identity) (*models.User, error) {
	const op = "service/users/Status"

	return s.currentUser(ctx, op, id)
}

// Profile returns the caller's own account.
func (s *Service) Profile(ctx context.Context, id *models.Identity) (*models.User, error) {
	const op = "service/users/Profile"

	return s.currentUser(ctx, op, id)
}

func (s *Service) currentUser(ctx context.Context, op string, id *models.Identity) (*models.User, error) {
	if id == nil {
		return nil, fmt.Errorf("%s: %w", op, ErrUnauthorized)
	}

	u, err := s.storage.UserByID(ctx, id.ID)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			log.From(ctx).Error("user_lookup_failed", slog.String("op", op), slog.String("err", err.Error()))
		}

		return nil, notFound(op, err)
	}

	return u, nil
}

// UpdateProfile changes the caller's profile. A password change needs the
// current password; an email change must not collide with another account.
func (s *Service) UpdateProfile(ctx context.Context, id *models.Identity, in ProfileInput) (*models.User, error) {
	const op = "service/users/UpdateProfile"

	if id == nil {
		return nil, fmt.Errorf("%s: %w", op, ErrUnauthorized)
	}

	lg := log.From(ctx).With(slog.String("op", op), slog.Int64("user_id", id.ID))

	if err := s.validate.Struct(in); err != nil {
		lg.Warn("profile_invalid", slog.String("err", err.Error()))
		return nil, validationError(op, err)
	}

	u, err := s.storage.UserByID(ctx, id.ID)
	if err != nil {
		return nil, notFound(op, err)
	}

	patch := models.UserPatch{
		FirstName: trimmed(in.FirstName),
		LastName:  trimmed(in.LastName),
		Bio:       trimmed(in.Bio),
		Location:  trimmed(in.Location),
		Website:   trimmed(in.Website),
		Avatar:    trimmed(in.Avatar),
	}

	if in.NewPassword != "" {
		if in.CurrentPassword == "" {
			lg.Warn("profile_current_password_missing")
			return nil, detailed(op, ErrInvalidArgument, ErrCurrentPasswordRequired)
		}

		if !checkPassword(u.PasswordHash, in.CurrentPassword) {
			lg.Warn("profile_wrong_password")
			return nil, detailed(op, ErrInvalidArgument, ErrWrongPassword)
		}

		if err := validatePassword(in.NewPassword); err != nil {
			lg.Warn("profile_weak_password")
			return nil, detailed(op, ErrInvalidArgument, err)
		}

		hash, err := s.hashPassword(in.NewPassword)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		patch.PasswordHash = &hash
	}

	if in.Email != nil && strings.TrimSpace(*in.Email) != "" {
		email, err := validateEmail(*in.Email)
		if err != nil {
			lg.Warn("profile_invalid_email", slog.String("email", redact.Email(*in.Email)))
			return nil, detailed(op, ErrInvalidArgument, err)
		}

		if email != u.Email {
			other, err := s.storage.UserByEmail(ctx, email)
			switch {
			case err == nil && other.ID != u.ID:
				lg.Warn("profile_email_taken", slog.String("email", redact.Email(email)))
				return nil, detailed(op, ErrConflict, ErrEmailTaken)
			case err != nil && !errors.Is(err, storage.ErrNotFound):
				lg.Error("profile_email_lookup_failed", slog.String("err", err.Error()))
				return nil, fmt.Errorf("%s: %w", op, err)
			}

			patch.Email = &email
		}
	}

	updated, err := s.storage.UpdateUser(ctx, u.ID, patch)
	if err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return nil, detailed(op, ErrConflict, ErrEmailTaken)
		}

		if !errors.Is(err, storage.ErrNotFound) {
			lg.Error("profile_update_failed", slog.String("err", err.Error()))
		}

		return nil, notFound(op, err)
	}

	lg.Info("profile_updated", slog.Bool("password_changed", patch.PasswordHash != nil))

	return updated, nil
}

// ListUsers is admin only.
func (s *Service) ListUsers(ctx context.Context, id *models.Identity) ([]models.User, error) {
	const op = "service/users/ListUsers"

	if err := RequireRole(id, models.RoleAdmin); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	users, err := s.storage.ListUsers(ctx)
	if err != nil {
		log.From(ctx).Error("list_users_failed", slog.String("op", op), slog.String("err", err.Error()))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return users, nil
}

// DeleteUser is admin only and never removes another admin.
func (s *Service) DeleteUser(ctx context.Context, id *models.Identity, targetID int64) error {
	const op = "service/users/DeleteUser"

	if err := RequireRole(id, models.RoleAdmin); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	lg := log.From(ctx).With(slog.String("op", op), slog.Int64("target_id", targetID))

	target, err := s.storage.UserByID(ctx, targetID)
	if err != nil {
		return notFound(op, err)
	}

	if target.Role == models.RoleAdmin {
		lg.Warn("delete_admin_refused")
		return detailed(op, ErrForbidden, ErrAdminUndeletable)
	}

	if err := s.storage.DeleteUser(ctx, targetID); err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			lg.Error("delete_user_failed", slog.String("err", err.Error()))
		}

		return notFound(op, err)
	}

	lg.Info("user_deleted", slog.Int64("by", id.ID))

	return nil
}

// AdminStats is the dashboard summary, admin only.
func (s *Service) AdminStats(ctx context.Context, id *models.Identity) (*models.AdminStats, error) {
	const op = "service/users/AdminStats"

	if err := RequireRole(id, models.RoleAdmin); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	users, err := s.storage.CountUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	articles, views, err := s.storage.ArticleStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	comments, err := s.storage.CountComments(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &models.AdminStats{
		TotalUsers:    users,
		TotalArticles: articles,
		TotalComments: comments,
		TotalViews:    views,
	}, nil
}

func trimmed(v *string) *string {
	if v == nil {
		return nil
	}

	t := strings.TrimSpace(*v)

	return &t
}
