package storage

import (
	"context"
	"errors"
	"time"

	"github.com/pribylovaa/siveal/internal/models"
)

var (
	// ErrNotFound means the entity is absent.
	ErrNotFound = errors.New("not found")
	// ErrConflict is a unique index violation.
	ErrConflict = errors.New("conflict")
	// ErrInvalidArgument is an input the backend refuses (bad object key, etc).
	ErrInvalidArgument = errors.New("invalid argument")
)

// UserStorage keeps accounts.
type UserStorage interface {
	// CreateUser assigns the next sequential id and timestamps.
	// Duplicate username or email returns ErrConflict.
	CreateUser(ctx context.Context, u models.User) (*models.User, error)
	UserByID(ctx context.Context, id int64) (*models.User, error)
	UserByUsername(ctx context.Context, username string) (*models.User, error)
	UserByEmail(ctx context.Context, email string) (*models.User, error)
	// UserExists reports whether the username or the email is already taken.
	UserExists(ctx context.Context, username, email string) (bool, error)
	UpdateUser(ctx context.Context, id int64, patch models.UserPatch) (*models.User, error)
	// IncrementLoginAttempts adds one failed attempt and sets lockUntil once
	// the counter reaches max and the account is not yet locked, in a single update.
	IncrementLoginAttempts(ctx context.Context, id int64, max int, lockUntil time.Time) (*models.User, error)
	// ResetLoginAttempts clears the counter and the lock and stamps lastLogin.
	ResetLoginAttempts(ctx context.Context, id int64, at time.Time) error
	DeleteUser(ctx context.Context, id int64) error
	ListUsers(ctx context.Context) ([]models.User, error)
	CountUsers(ctx context.Context) (int64, error)
}

// NewsStorage keeps articles.
type NewsStorage interface {
	CreateArticle(ctx context.Context, a models.Article) (*models.Article, error)
	ArticleByID(ctx context.Context, id int64) (*models.Article, error)
	UpdateArticle(ctx context.Context, id int64, patch models.ArticlePatch) (*models.Article, error)
	DeleteArticle(ctx context.Context, id int64) error
	// ListArticles returns published articles, newest first.
	ListArticles(ctx context.Context, f models.ArticleFilter) ([]models.Article, error)
	// IncrementViews is an atomic $inc; it returns the new value.
	IncrementViews(ctx context.Context, id int64) (int64, error)
	// ArticleStats returns the article count and the sum of views.
	ArticleStats(ctx context.Context) (count int64, views int64, err error)
}

// CommentStorage keeps comments.
type CommentStorage interface {
	CreateComment(ctx context.Context, c models.Comment) (*models.Comment, error)
	CommentByID(ctx context.Context, id int64) (*models.Comment, error)
	// ListVisibleComments returns approved, non-deleted comments of the article
	// ordered by createdAt ascending.
	ListVisibleComments(ctx context.Context, articleID int64) ([]models.Comment, error)
	EditComment(ctx context.Context, id int64, content string, at time.Time) (*models.Comment, error)
	SoftDeleteComment(ctx context.Context, id, by int64, at time.Time) error
	RestoreComment(ctx context.Context, id int64) error
	// ReactToComment increments likes (like=true) or dislikes and returns the updated comment.
	ReactToComment(ctx context.Context, id int64, like bool) (*models.Comment, error)
	ReportComment(ctx context.Context, id int64, r models.CommentReport) error
	// CountComments counts non-deleted comments.
	CountComments(ctx context.Context) (int64, error)
}

// SubscriberStorage keeps newsletter subscribers.
type SubscriberStorage interface {
	CreateSubscriber(ctx context.Context, s models.Subscriber) (*models.Subscriber, error)
	SubscriberByEmail(ctx context.Context, email string) (*models.Subscriber, error)
	// ReactivateSubscriber flips an inactive subscriber back to active.
	// ErrNotFound when there is no inactive subscriber with that email.
	ReactivateSubscriber(ctx context.Context, email string, prefs models.PreferencesPatch, at time.Time) (*models.Subscriber, error)
	// DeactivateSubscriber marks an active subscriber inactive.
	// ErrNotFound when there is no active match.
	DeactivateSubscriber(ctx context.Context, lookup models.SubscriberLookup, at time.Time) (*models.Subscriber, error)
	// UpdatePreferences changes preferences of an active subscriber.
	UpdatePreferences(ctx context.Context, email string, prefs models.PreferencesPatch, at time.Time) (*models.Subscriber, error)
	ListSubscribers(ctx context.Context, f models.SubscriberFilter) (*models.SubscriberPage, error)
	// SubscriberStats aggregates active subscribers; since bounds NewThisMonth.
	SubscriberStats(ctx context.Context, since time.Time) (*models.SubscriberStats, error)
	CountSubscribers(ctx context.Context) (*models.SubscriberCounts, error)
}

// Storage is the document store behind the service.
type Storage interface {
	UserStorage
	NewsStorage
	CommentStorage
	SubscriberStorage

	Close(ctx context.Context) error
}

// Images is the object store for uploaded pictures.
type Images interface {
	// ImageUploadURL presigns a PUT for a new object.
	ImageUploadURL(ctx context.Context, contentType string, contentLength int64) (*models.UploadInfo, error)
	// ImageInfo returns metadata; ErrNotFound when the object is absent.
	ImageInfo(ctx context.Context, id string) (*models.Image, error)
	// ListImages returns up to limit objects, newest first.
	ListImages(ctx context.Context, limit int) ([]models.Image, error)
	DeleteImage(ctx context.Context, id string) error
}
