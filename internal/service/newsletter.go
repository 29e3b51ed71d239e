package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/pribylovaa/siveal/internal/models"
	"github.com/pribylovaa/siveal/internal/pkg/log"
	"github.com/pribylovaa/siveal/internal/pkg/redact"
	"github.com/pribylovaa/siveal/internal/storage"
)

// PreferencesInput is validated before it reaches the storage.
// Empty fields mean "keep" on update and "default" on create.
type PreferencesInput struct {
	Categories []string `validate:"omitempty,max=20,dive,min=1,max=50"`
	Language   string   `validate:"omitempty,oneof=en tr az ru"`
	Frequency  string   `validate:"omitempty,oneof=daily weekly monthly"`
}

func (p PreferencesInput) patch() models.PreferencesPatch {
	return models.PreferencesPatch{
		Categories: p.Categories,
		Language:   p.Language,
		Frequency:  p.Frequency,
	}
}

// Subscribe adds the email to the newsletter. An inactive subscriber is
// reactivated in place and keeps its unsubscribe token; created reports
// whether a new subscriber was stored.
func (s *Service) Subscribe(ctx context.Context, email string, prefs PreferencesInput) (sub *models.Subscriber, created bool, err error) {
	const op = "service/newsletter/Subscribe"

	lg := log.From(ctx).With(slog.String("op", op), slog.String("email", redact.Email(email)))

	if strings.TrimSpace(email) == "" {
		return nil, false, invalid(op, "email", "is required")
	}

	norm, err := validateEmail(email)
	if err != nil {
		lg.Warn("subscribe_invalid_email")
		return nil, false, detailed(op, ErrInvalidArgument, err)
	}

	if err := s.validate.Struct(prefs); err != nil {
		lg.Warn("subscribe_invalid_preferences", slog.String("err", err.Error()))
		return nil, false, validationError(op, err)
	}

	existing, err := s.storage.SubscriberByEmail(ctx, norm)
	switch {
	case err == nil && existing.IsActive:
		lg.Warn("subscribe_already_active")
		return nil, false, detailed(op, ErrConflict, ErrAlreadySubscribed)
	case err == nil:
		sub, err := s.storage.ReactivateSubscriber(ctx, norm, prefs.patch(), s.now())
		if err != nil {
			// Someone reactivated it first.
			if errors.Is(err, storage.ErrNotFound) {
				return nil, false, detailed(op, ErrConflict, ErrAlreadySubscribed)
			}

			lg.Error("subscribe_reactivate_failed", slog.String("err", err.Error()))
			return nil, false, fmt.Errorf("%s: %w", op, err)
		}

		lg.Info("subscriber_reactivated")

		return sub, false, nil
	case !errors.Is(err, storage.ErrNotFound):
		lg.Error("subscribe_lookup_failed", slog.String("err", err.Error()))
		return nil, false, fmt.Errorf("%s: %w", op, err)
	}

	token, err := newUnsubscribeToken()
	if err != nil {
		lg.Error("subscribe_token_failed", slog.String("err", err.Error()))
		return nil, false, fmt.Errorf("%s: %w: %w", op, ErrInternal, err)
	}

	p := models.Preferences{
		Categories: prefs.Categories,
		Language:   prefs.Language,
		Frequency:  prefs.Frequency,
	}

	if len(p.Categories) == 0 {
		p.Categories = []string{models.CategoryAll}
	}

	if p.Language == "" {
		p.Language = models.LanguageEN
	}

	if p.Frequency == "" {
		p.Frequency = models.FrequencyDaily
	}

	sub, err = s.storage.CreateSubscriber(ctx, models.Subscriber{
		Email:            norm,
		IsActive:         true,
		SubscribedAt:     s.now(),
		Preferences:      p,
		UnsubscribeToken: token,
	})
	if err != nil {
		if errors.Is(err, storage.ErrConflict) {
			lg.Warn("subscribe_already_active")
			return nil, false, detailed(op, ErrConflict, ErrAlreadySubscribed)
		}

		lg.Error("subscribe_create_failed", slog.String("err", err.Error()))
		return nil, false, fmt.Errorf("%s: %w", op, err)
	}

	lg.Info("subscriber_created")

	return sub, true, nil
}

// Unsubscribe deactivates by token when one is given, otherwise by email.
func (s *Service) Unsubscribe(ctx context.Context, email, token string) error {
	const op = "service/newsletter/Unsubscribe"

	email = strings.ToLower(strings.TrimSpace(email))
	token = strings.TrimSpace(token)

	if email == "" && token == "" {
		return invalid(op, "", "email or unsubscribe token is required")
	}

	lookup := models.SubscriberLookup{Token: token}
	if token == "" {
		lookup = models.SubscriberLookup{Email: email}
	}

	if _, err := s.storage.DeactivateSubscriber(ctx, lookup, s.now()); err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			log.From(ctx).Error("unsubscribe_failed", slog.String("op", op), slog.String("err", err.Error()))
		}

		return notFound(op, err)
	}

	log.From(ctx).Info("subscriber_deactivated", slog.String("op", op), slog.String("email", redact.Email(email)))

	return nil
}

// UpdatePreferences is admin only and needs an active subscriber.
func (s *Service) UpdatePreferences(ctx context.Context, id *models.Identity, email string, prefs PreferencesInput) (*models.Subscriber, error) {
	const op = "service/newsletter/UpdatePreferences"

	if err := RequireRole(id, models.RoleAdmin); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := s.validate.Struct(prefs); err != nil {
		log.From(ctx).Warn("preferences_invalid", slog.String("op", op), slog.String("err", err.Error()))
		return nil, validationError(op, err)
	}

	sub, err := s.storage.UpdatePreferences(ctx, strings.ToLower(strings.TrimSpace(email)), prefs.patch(), s.now())
	if err != nil {
		return nil, notFound(op, err)
	}

	return sub, nil
}

// SubscriberQuery is the admin listing request.
type SubscriberQuery struct {
	Category string
	Language string
	Search   string
	Page     int64
	Limit    int64
}

// ListSubscribers is admin only. Unsubscribe tokens are never returned.
func (s *Service) ListSubscribers(ctx context.Context, id *models.Identity, q SubscriberQuery) (*models.SubscriberPage, error) {
	const op = "service/newsletter/ListSubscribers"

	if err := RequireRole(id, models.RoleAdmin); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if q.Page < 0 || q.Limit < 0 {
		return nil, invalid(op, "", "page and limit must not be negative")
	}

	if q.Page == 0 {
		q.Page = 1
	}

	if q.Limit == 0 {
		q.Limit = s.cfg.Limits.SubscribersDefault
	}

	if q.Limit > s.cfg.Limits.SubscribersMax {
		q.Limit = s.cfg.Limits.SubscribersMax
	}

	// The storage skips (page-1)*limit rows.
	if q.Page-1 > math.MaxInt64/q.Limit {
		return nil, invalid(op, "page", "is too large")
	}

	page, err := s.storage.ListSubscribers(ctx, models.SubscriberFilter{
		Category: strings.TrimSpace(q.Category),
		Language: strings.TrimSpace(q.Language),
		Search:   strings.TrimSpace(q.Search),
		Page:     q.Page,
		Limit:    q.Limit,
	})
	if err != nil {
		log.From(ctx).Error("list_subscribers_failed", slog.String("op", op), slog.String("err", err.Error()))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	for i := range page.Items {
		page.Items[i].UnsubscribeToken = ""
	}

	return page, nil
}

// Statistics is admin only. NewThisMonth counts from the first day of the current UTC month.
func (s *Service) Statistics(ctx context.Context, id *models.Identity) (*models.SubscriberStats, error) {
	const op = "service/newsletter/Statistics"

	if err := RequireRole(id, models.RoleAdmin); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	stats, err := s.storage.SubscriberStats(ctx, monthStart(s.now()))
	if err != nil {
		log.From(ctx).Error("newsletter_stats_failed", slog.String("op", op), slog.String("err", err.Error()))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return stats, nil
}

// NewsletterHealth returns subscriber counts.
func (s *Service) NewsletterHealth(ctx context.Context) (*models.SubscriberCounts, error) {
	const op = "service/newsletter/NewsletterHealth"

	counts, err := s.storage.CountSubscribers(ctx)
	if err != nil {
		log.From(ctx).Error("newsletter_health_failed", slog.String("op", op), slog.String("err", err.Error()))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return counts, nil
}

func monthStart(now time.Time) time.Time {
	now = now.UTC()
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// newUnsubscribeToken is 32 random bytes, hex encoded.
func newUnsubscribeToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}

	return hex.EncodeToString(b), nil
}
