package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/pribylovaa/siveal/internal/models"
	"github.com/pribylovaa/siveal/internal/pkg/log"
	"github.com/pribylovaa/siveal/internal/storage"
)

// ArticleInput is the create form. Title, summary, content, category
// and author are required; Time defaults to now.
type ArticleInput struct {
	Title           string `validate:"required,max=500"`
	Summary         string `validate:"required,max=1000"`
	Content         string `validate:"required"`
	Category        string `validate:"required,max=100"`
	Author          string `validate:"required,max=100"`
	Image           string `validate:"max=2048"`
	Time            *time.Time
	Featured        *bool
	Published       *bool
	Tags            []string `validate:"dive,max=50"`
	MetaTitle       string   `validate:"max=60"`
	MetaDescription string   `validate:"max=160"`

	TitleTR   string `validate:"max=500"`
	SummaryTR string `validate:"max=1000"`
	ContentTR string
	TitleAZ   string `validate:"max=500"`
	SummaryAZ string `validate:"max=1000"`
	ContentAZ string
	TitleRU   string `validate:"max=500"`
	SummaryRU string `validate:"max=1000"`
	ContentRU string
}

// ArticleUpdate is a partial update. Required fields may change but not be blanked.
type ArticleUpdate struct {
	Title           *string `validate:"omitnil,min=1,max=500"`
	Summary         *string `validate:"omitnil,min=1,max=1000"`
	Content         *string `validate:"omitnil,min=1"`
	Category        *string `validate:"omitnil,min=1,max=100"`
	Author          *string `validate:"omitnil,min=1,max=100"`
	Image           *string `validate:"omitnil,max=2048"`
	Time            *time.Time
	Featured        *bool
	Published       *bool
	Tags            *[]string
	MetaTitle       *string `validate:"omitnil,max=60"`
	MetaDescription *string `validate:"omitnil,max=160"`

	TitleTR   *string `validate:"omitnil,max=500"`
	SummaryTR *string `validate:"omitnil,max=1000"`
	ContentTR *string
	TitleAZ   *string `validate:"omitnil,max=500"`
	SummaryAZ *string `validate:"omitnil,max=1000"`
	ContentAZ *string
	TitleRU   *string `validate:"omitnil,max=500"`
	SummaryRU *string `validate:"omitnil,max=1000"`
	ContentRU *string
}

// ListParams are the raw paging values of a list request.
type ListParams struct {
	Category     string
	FeaturedOnly bool
	Limit        int64
	Offset       int64
}

// ListPublished returns published articles, newest first.
// A zero limit takes the configured default; larger limits are capped.
func (s *Service) ListPublished(ctx context.Context, p ListParams) ([]models.Article, error) {
	const op = "service/news/ListPublished"

	if p.Limit < 0 {
		return nil, invalid(op, "limit", "must not be negative")
	}

	if p.Offset < 0 {
		return nil, invalid(op, "skip", "must not be negative")
	}

	limit := p.Limit
	if limit == 0 {
		limit = s.cfg.Limits.NewsDefault
	}

	if limit > s.cfg.Limits.NewsMax {
		limit = s.cfg.Limits.NewsMax
	}

	items, err := s.storage.ListArticles(ctx, models.ArticleFilter{
		Category:     strings.TrimSpace(p.Category),
		FeaturedOnly: p.FeaturedOnly,
		Limit:        limit,
		Offset:       p.Offset,
	})
	if err != nil {
		log.From(ctx).Error("list_news_failed", slog.String("op", op), slog.String("err", err.Error()))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return items, nil
}

// GetArticle returns a published article.
func (s *Service) GetArticle(ctx context.Context, id int64) (*models.Article, error) {
	const op = "service/news/GetArticle"

	a, err := s.storage.ArticleByID(ctx, id)
	if err != nil {
		return nil, notFound(op, err)
	}

	if !a.Published {
		return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
	}

	return a, nil
}

// CreateArticle is admin only.
func (s *Service) CreateArticle(ctx context.Context, id *models.Identity, in ArticleInput) (*models.Article, error) {
	const op = "service/news/CreateArticle"

	if err := RequireRole(id, models.RoleAdmin); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	lg := log.From(ctx).With(slog.String("op", op))

	in.Title = strings.TrimSpace(in.Title)
	in.Summary = strings.TrimSpace(in.Summary)
	in.Content = strings.TrimSpace(in.Content)
	in.Category = strings.TrimSpace(in.Category)
	in.Author = strings.TrimSpace(in.Author)

	if err := s.validate.Struct(in); err != nil {
		lg.Warn("article_invalid", slog.String("err", err.Error()))
		return nil, validationError(op, err)
	}

	a := models.Article{
		Title:           in.Title,
		Summary:         in.Summary,
		Content:         in.Content,
		Image:           in.Image,
		Category:        in.Category,
		Author:          in.Author,
		Featured:        false,
		Published:       true,
		Tags:            in.Tags,
		MetaTitle:       in.MetaTitle,
		MetaDescription: in.MetaDescription,
		TitleTR:         in.TitleTR,
		SummaryTR:       in.SummaryTR,
		ContentTR:       in.ContentTR,
		TitleAZ:         in.TitleAZ,
		SummaryAZ:       in.SummaryAZ,
		ContentAZ:       in.ContentAZ,
		TitleRU:         in.TitleRU,
		SummaryRU:       in.SummaryRU,
		ContentRU:       in.ContentRU,
	}

	if in.Time != nil {
		a.Time = in.Time.UTC()
	}

	if in.Featured != nil {
		a.Featured = *in.Featured
	}

	if in.Published != nil {
		a.Published = *in.Published
	}

	created, err := s.storage.CreateArticle(ctx, a)
	if err != nil {
		lg.Error("article_create_failed", slog.String("err", err.Error()))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	lg.Info("article_created", slog.Int64("article_id", created.ID), slog.Int64("by", id.ID))

	return created, nil
}

// UpdateArticle is admin only.
func (s *Service) UpdateArticle(ctx context.Context, id *models.Identity, articleID int64, in ArticleUpdate) (*models.Article, error) {
	const op = "service/news/UpdateArticle"

	if err := RequireRole(id, models.RoleAdmin); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	lg := log.From(ctx).With(slog.String("op", op), slog.Int64("article_id", articleID))

	in.Title = trimmed(in.Title)
	in.Summary = trimmed(in.Summary)
	in.Content = trimmed(in.Content)
	in.Category = trimmed(in.Category)
	in.Author = trimmed(in.Author)

	if err := s.validate.Struct(in); err != nil {
		lg.Warn("article_invalid", slog.String("err", err.Error()))
		return nil, validationError(op, err)
	}

	patch := models.ArticlePatch{
		Title:           in.Title,
		Summary:         in.Summary,
		Content:         in.Content,
		Image:           in.Image,
		Category:        in.Category,
		Author:          in.Author,
		Featured:        in.Featured,
		Published:       in.Published,
		Tags:            in.Tags,
		MetaTitle:       in.MetaTitle,
		MetaDescription: in.MetaDescription,
		TitleTR:         in.TitleTR,
		SummaryTR:       in.SummaryTR,
		ContentTR:       in.ContentTR,
		TitleAZ:         in.TitleAZ,
		SummaryAZ:       in.SummaryAZ,
		ContentAZ:       in.ContentAZ,
		TitleRU:         in.TitleRU,
		SummaryRU:       in.SummaryRU,
		ContentRU:       in.ContentRU,
	}

	if in.Time != nil {
		t := in.Time.UTC()
		patch.Time = &t
	}

	updated, err := s.storage.UpdateArticle(ctx, articleID, patch)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			lg.Error("article_update_failed", slog.String("err", err.Error()))
		}

		return nil, notFound(op, err)
	}

	lg.Info("article_updated", slog.Int64("by", id.ID))

	return updated, nil
}

// DeleteArticle is admin only. Comments of the article are kept.
func (s *Service) DeleteArticle(ctx context.Context, id *models.Identity, articleID int64) error {
	const op = "service/news/DeleteArticle"

	if err := RequireRole(id, models.RoleAdmin); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := s.storage.DeleteArticle(ctx, articleID); err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			log.From(ctx).Error("article_delete_failed", slog.String("op", op), slog.String("err", err.Error()))
		}

		return notFound(op, err)
	}

	log.From(ctx).Info("article_deleted", slog.String("op", op), slog.Int64("article_id", articleID), slog.Int64("by", id.ID))

	return nil
}

// IncrementView counts one view and returns the new total.
func (s *Service) IncrementView(ctx context.Context, articleID int64) (int64, error) {
	const op = "service/news/IncrementView"

	views, err := s.storage.IncrementViews(ctx, articleID)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			log.From(ctx).Error("increment_views_failed", slog.String("op", op), slog.String("err", err.Error()))
		}

		return 0, notFound(op, err)
	}

	return views, nil
}
