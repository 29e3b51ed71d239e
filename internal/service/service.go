// Package service holds the SIVEAL business logic: accounts and tokens,
// news, comments, the newsletter, the RSS feed and image uploads.
//
// Service keeps no per-request state and is safe for concurrent use as long
// as the storage implementations are.
//
// Errors carry a kind (ErrInvalidArgument, ErrNotFound, ...) that the HTTP
// layer maps to a status. Some also carry a detail sentinel wrapped next to
// the kind, whose text is safe to show to the client.
package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pribylovaa/siveal/internal/config"
	"github.com/pribylovaa/siveal/internal/storage"
)

// Error kinds.
var (
	// ErrInvalidArgument is a malformed or out-of-range input. HTTP 400.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrUnauthorized means no credentials were supplied. HTTP 401.
	ErrUnauthorized = errors.New("authentication required")
	// ErrInvalidCredentials covers unknown user, inactive or locked account and wrong password. HTTP 401.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidToken is a token with a bad signature, issuer, audience or shape. HTTP 403.
	ErrInvalidToken = errors.New("invalid token")
	// ErrTokenExpired is an expired token. HTTP 403.
	ErrTokenExpired = errors.New("token expired")
	// ErrForbidden means the caller lacks the role. HTTP 403.
	ErrForbidden = errors.New("forbidden")
	// ErrNotFound HTTP 404.
	ErrNotFound = errors.New("not found")
	// ErrConflict HTTP 409.
	ErrConflict = errors.New("conflict")
	// ErrUnavailable means an optional backend is not configured. HTTP 503.
	ErrUnavailable = errors.New("service unavailable")
	// ErrInternal HTTP 500.
	ErrInternal = errors.New("internal error")
)

// Details. They are always wrapped together with a kind.
var (
	ErrInvalidUsername         = errors.New("username must be 3-30 characters: letters, digits or underscore")
	ErrInvalidEmail            = errors.New("please provide a valid email address")
	ErrWeakPassword            = errors.New("password must be 8-128 characters with at least one uppercase letter, one lowercase letter and one digit")
	ErrInvalidContent          = errors.New("comment content must be 1-2000 characters and must not contain scripts")
	ErrParentNotFound          = errors.New("parent comment not found")
	ErrCurrentPasswordRequired = errors.New("current password is required")
	ErrWrongPassword           = errors.New("current password is incorrect")
	ErrUserExists              = errors.New("username or email already exists")
	ErrEmailTaken              = errors.New("email is already in use")
	ErrAlreadySubscribed       = errors.New("email is already subscribed")
	ErrAdminUndeletable        = errors.New("admin accounts cannot be deleted")
	ErrImagesDisabled          = errors.New("image storage is not configured")
)

// ValidationError is an ErrInvalidArgument about one input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}

	return e.Field + ": " + e.Message
}

// Is makes errors.Is(err, ErrInvalidArgument) hold.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidArgument
}

// Service is the business logic over the storage.
type Service struct {
	storage  storage.Storage
	images   storage.Images // nil when S3 is not configured
	cfg      *config.Config
	validate *validator.Validate
	now      func() time.Time
}

// New creates a Service.
func New(st storage.Storage, cfg *config.Config) *Service {
	return &Service{
		storage:  st,
		cfg:      cfg,
		validate: validator.New(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// SetImages installs the optional image storage.
func (s *Service) SetImages(img storage.Images) {
	s.images = img
}

// detailed wraps the kind and the detail under op.
func detailed(op string, kind, detail error) error {
	return fmt.Errorf("%s: %w: %w", op, kind, detail)
}

// invalid builds a field ValidationError under op.
func invalid(op, field, msg string) error {
	return fmt.Errorf("%s: %w", op, &ValidationError{Field: field, Message: msg})
}

// validationError converts the first validator failure to a ValidationError.
func validationError(op string, err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("%s: %w", op, ErrInvalidArgument)
	}

	fe := verrs[0]
	field := jsonName(fe.Field())

	var msg string
	switch fe.Tag() {
	case "required":
		msg = "is required"
	case "max":
		msg = "must be at most " + fe.Param() + " characters"
	case "min":
		msg = "must be at least " + fe.Param() + " characters"
		if fe.Param() == "1" {
			msg = "must not be empty"
		}
	case "oneof":
		msg = "must be one of: " + fe.Param()
	case "email":
		msg = "must be a valid email"
	case "url":
		msg = "must be a valid URL"
	default:
		msg = "is invalid"
	}

	return invalid(op, field, msg)
}

// jsonName lower-cases the first letter of a Go field name and
// maps the "TitleTR" style language suffix to "title_tr".
func jsonName(field string) string {
	for _, suffix := range []string{"TR", "AZ", "RU"} {
		if strings.HasSuffix(field, suffix) && len(field) > 2 {
			return jsonName(strings.TrimSuffix(field, suffix)) + "_" + strings.ToLower(suffix)
		}
	}

	if field == "" {
		return field
	}

	return strings.ToLower(field[:1]) + field[1:]
}

// notFound maps storage.ErrNotFound to ErrNotFound and leaves other errors as is.
func notFound(op string, err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}

	return fmt.Errorf("%s: %w", op, err)
}
