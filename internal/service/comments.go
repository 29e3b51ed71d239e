package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/pribylovaa/siveal/internal/models"
	"github.com/pribylovaa/siveal/internal/pkg/log"
	"github.com/pribylovaa/siveal/internal/storage"
)

const (
	maxCommentLen = 2000
	maxAuthorLen  = 100
	maxReasonLen  = 500
)

// CommentInput is a new comment. IPAddress and UserAgent come from the request.
type CommentInput struct {
	ArticleID   int64
	Author      string
	AuthorEmail string
	Content     string
	ParentID    *int64
	IPAddress   string
	UserAgent   string
}

// ListComments returns visible top-level comments newest first,
// each with its visible replies oldest first.
func (s *Service) ListComments(ctx context.Context, articleID int64) ([]models.Thread, error) {
	const op = "service/comments/ListComments"

	all, err := s.storage.ListVisibleComments(ctx, articleID)
	if err != nil {
		log.From(ctx).Error("list_comments_failed", slog.String("op", op), slog.String("err", err.Error()))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return buildThreads(all), nil
}

// buildThreads groups comments under their top-level parent. Replies whose
// parent is not visible are dropped together with it.
func buildThreads(all []models.Comment) []models.Thread {
	replies := make(map[int64][]models.Comment)
	threads := make([]models.Thread, 0)

	for _, c := range all {
		if c.ParentID != nil {
			replies[*c.ParentID] = append(replies[*c.ParentID], c)
			continue
		}

		threads = append(threads, models.Thread{Comment: c})
	}

	sort.SliceStable(threads, func(i, j int) bool {
		if threads[i].CreatedAt.Equal(threads[j].CreatedAt) {
			return threads[i].ID > threads[j].ID
		}

		return threads[i].CreatedAt.After(threads[j].CreatedAt)
	})

	for i := range threads {
		r := replies[threads[i].ID]
		sort.SliceStable(r, func(a, b int) bool {
			if r[a].CreatedAt.Equal(r[b].CreatedAt) {
				return r[a].ID < r[b].ID
			}

			return r[a].CreatedAt.Before(r[b].CreatedAt)
		})

		threads[i].Replies = append([]models.Comment{}, r...)
	}

	return threads
}

// CreateComment adds a comment to an existing article. A reply to a reply is
// attached to the top-level comment so threads stay two levels deep.
func (s *Service) CreateComment(ctx context.Context, id *models.Identity, in CommentInput) (*models.Comment, error) {
	const op = "service/comments/CreateComment"

	lg := log.From(ctx).With(slog.String("op", op), slog.Int64("article_id", in.ArticleID))

	author := strings.TrimSpace(in.Author)
	content := strings.TrimSpace(in.Content)

	if author == "" || content == "" {
		lg.Warn("comment_missing_fields")
		return nil, invalid(op, "", "author and content are required")
	}

	if utf8.RuneCountInString(author) > maxAuthorLen {
		lg.Warn("comment_author_too_long")
		return nil, invalid(op, "author", fmt.Sprintf("must be at most %d characters", maxAuthorLen))
	}

	if err := validateContent(content); err != nil {
		lg.Warn("comment_invalid_content")
		return nil, detailed(op, ErrInvalidArgument, err)
	}

	if _, err := s.storage.ArticleByID(ctx, in.ArticleID); err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			lg.Error("comment_article_lookup_failed", slog.String("err", err.Error()))
		}

		return nil, notFound(op, err)
	}

	c := models.Comment{
		ArticleID:   in.ArticleID,
		Author:      author,
		AuthorEmail: strings.ToLower(strings.TrimSpace(in.AuthorEmail)),
		Content:     content,
		IsApproved:  true,
		IPAddress:   in.IPAddress,
		UserAgent:   in.UserAgent,
	}

	if id != nil {
		uid := id.ID
		c.AuthorID = &uid
	}

	if in.ParentID != nil {
		parent, err := s.storage.CommentByID(ctx, *in.ParentID)
		switch {
		case errors.Is(err, storage.ErrNotFound):
			lg.Warn("comment_parent_not_found", slog.Int64("parent_id", *in.ParentID))
			return nil, detailed(op, ErrInvalidArgument, ErrParentNotFound)
		case err != nil:
			lg.Error("comment_parent_lookup_failed", slog.String("err", err.Error()))
			return nil, fmt.Errorf("%s: %w", op, err)
		case parent.ArticleID != in.ArticleID:
			lg.Warn("comment_parent_other_article", slog.Int64("parent_id", parent.ID))
			return nil, detailed(op, ErrInvalidArgument, ErrParentNotFound)
		case !parent.Visible():
			lg.Warn("comment_parent_hidden", slog.Int64("parent_id", parent.ID))
			return nil, detailed(op, ErrInvalidArgument, ErrParentNotFound)
		}

		top := parent.ID
		if parent.ParentID != nil {
			top = *parent.ParentID
		}

		c.ParentID = &top
	}

	created, err := s.storage.CreateComment(ctx, c)
	if err != nil {
		lg.Error("comment_create_failed", slog.String("err", err.Error()))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	lg.Info("comment_created", slog.Int64("comment_id", created.ID))

	return created, nil
}

// EditComment lets the author or a moderator change the content.
// Soft-deleted comments can be edited too; they stay hidden.
func (s *Service) EditComment(ctx context.Context, id *models.Identity, commentID int64, content string) (*models.Comment, error) {
	const op = "service/comments/EditComment"

	c, err := s.ownedComment(ctx, op, id, commentID, true)
	if err != nil {
		return nil, err
	}

	content = strings.TrimSpace(content)
	if err := validateContent(content); err != nil {
		log.From(ctx).Warn("comment_invalid_content", slog.String("op", op), slog.Int64("comment_id", c.ID))
		return nil, detailed(op, ErrInvalidArgument, err)
	}

	updated, err := s.storage.EditComment(ctx, c.ID, content, s.now())
	if err != nil {
		return nil, notFound(op, err)
	}

	return updated, nil
}

// DeleteComment is a soft delete by the author or a moderator.
func (s *Service) DeleteComment(ctx context.Context, id *models.Identity, commentID int64) error {
	const op = "service/comments/DeleteComment"

	c, err := s.ownedComment(ctx, op, id, commentID, false)
	if err != nil {
		return err
	}

	if err := s.storage.SoftDeleteComment(ctx, c.ID, id.ID, s.now()); err != nil {
		return notFound(op, err)
	}

	log.From(ctx).Info("comment_deleted", slog.String("op", op), slog.Int64("comment_id", c.ID), slog.Int64("by", id.ID))

	return nil
}

// RestoreComment undoes a soft delete; admins and moderators only.
func (s *Service) RestoreComment(ctx context.Context, id *models.Identity, commentID int64) error {
	const op = "service/comments/RestoreComment"

	if err := RequireRole(id, models.RoleAdmin, models.RoleModerator); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := s.storage.RestoreComment(ctx, commentID); err != nil {
		return notFound(op, err)
	}

	log.From(ctx).Info("comment_restored", slog.String("op", op), slog.Int64("comment_id", commentID), slog.Int64("by", id.ID))

	return nil
}

// ReactToComment adds a like (like=true) or a dislike to a visible comment.
func (s *Service) ReactToComment(ctx context.Context, commentID int64, like bool) (*models.Comment, error) {
	const op = "service/comments/ReactToComment"

	c, err := s.storage.CommentByID(ctx, commentID)
	if err != nil {
		return nil, notFound(op, err)
	}

	if !c.Visible() {
		return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
	}

	updated, err := s.storage.ReactToComment(ctx, commentID, like)
	if err != nil {
		return nil, notFound(op, err)
	}

	return updated, nil
}

// ReportComment records an abuse report from an authenticated user.
func (s *Service) ReportComment(ctx context.Context, id *models.Identity, commentID int64, reason string) error {
	const op = "service/comments/ReportComment"

	if id == nil {
		return fmt.Errorf("%s: %w", op, ErrUnauthorized)
	}

	reason = strings.TrimSpace(reason)
	if reason == "" {
		return invalid(op, "reason", "is required")
	}

	if utf8.RuneCountInString(reason) > maxReasonLen {
		return invalid(op, "reason", fmt.Sprintf("must be at most %d characters", maxReasonLen))
	}

	if err := s.storage.ReportComment(ctx, commentID, models.CommentReport{
		UserID:     id.ID,
		Reason:     reason,
		ReportedAt: s.now(),
	}); err != nil {
		return notFound(op, err)
	}

	log.From(ctx).Info("comment_reported", slog.String("op", op), slog.Int64("comment_id", commentID), slog.Int64("by", id.ID))

	return nil
}

// ownedComment loads a comment the caller may change. Soft-deleted
// comments are NotFound unless allowDeleted is set.
func (s *Service) ownedComment(ctx context.Context, op string, id *models.Identity, commentID int64, allowDeleted bool) (*models.Comment, error) {
	if id == nil {
		return nil, fmt.Errorf("%s: %w", op, ErrUnauthorized)
	}

	c, err := s.storage.CommentByID(ctx, commentID)
	if err != nil {
		return nil, notFound(op, err)
	}

	if c.Deleted && !allowDeleted {
		return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
	}

	isAuthor := c.AuthorID != nil && *c.AuthorID == id.ID
	if !isAuthor && !id.HasRole(models.RoleAdmin, models.RoleModerator) {
		log.From(ctx).Warn("comment_forbidden", slog.String("op", op), slog.Int64("comment_id", c.ID), slog.Int64("user_id", id.ID))
		return nil, fmt.Errorf("%s: %w", op, ErrForbidden)
	}

	return c, nil
}

// validateContent: 1-2000 characters, no script tags.
func validateContent(content string) error {
	n := utf8.RuneCountInString(content)
	if n == 0 || n > maxCommentLen {
		return ErrInvalidContent
	}

	if strings.Contains(strings.ToLower(content), "<script") {
		return ErrInvalidContent
	}

	return nil
}
