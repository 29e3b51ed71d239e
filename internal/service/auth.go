package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/pribylovaa/siveal/internal/models"
	"github.com/pribylovaa/siveal/internal/pkg/log"
	"github.com/pribylovaa/siveal/internal/pkg/redact"
	"github.com/pribylovaa/siveal/internal/storage"
	"golang.org/x/crypto/bcrypt"
)

const maxEmailLen = 255

var usernameRe = regexp.MustCompile(`^[A-Za-z0-9_]{3,30}$`)

// RegisterInput is the sign-up form.
type RegisterInput struct {
	Username  string
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// AuthResult is a signed token and the account it belongs to.
type AuthResult struct {
	Token string
	User  *models.User
}

// Register creates a user account and signs a token for it.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	const op = "service/auth/Register"

	lg := log.From(ctx).With(
		slog.String("op", op),
		slog.String("username", in.Username),
		slog.String("email", redact.Email(in.Email)),
	)

	if in.Username == "" || strings.TrimSpace(in.Email) == "" || in.Password == "" {
		lg.Warn("register_missing_fields")
		return nil, invalid(op, "", "username, email and password are required")
	}

	if err := validateUsername(in.Username); err != nil {
		lg.Warn("register_invalid_username")
		return nil, detailed(op, ErrInvalidArgument, err)
	}

	email, err := validateEmail(in.Email)
	if err != nil {
		lg.Warn("register_invalid_email")
		return nil, detailed(op, ErrInvalidArgument, err)
	}

	if err := validatePassword(in.Password); err != nil {
		lg.Warn("register_weak_password")
		return nil, detailed(op, ErrInvalidArgument, err)
	}

	exists, err := s.storage.UserExists(ctx, in.Username, email)
	if err != nil {
		lg.Error("register_lookup_failed", slog.String("err", err.Error()))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if exists {
		lg.Warn("register_user_exists")
		return nil, detailed(op, ErrConflict, ErrUserExists)
	}

	hash, err := s.hashPassword(in.Password)
	if err != nil {
		lg.Error("register_hash_failed", slog.String("err", err.Error()))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	u, err := s.storage.CreateUser(ctx, models.User{
		Username:     in.Username,
		Email:        email,
		PasswordHash: hash,
		Role:         models.RoleUser,
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		IsActive:     true,
	})
	if err != nil {
		// Lost a race with a concurrent sign-up.
		if errors.Is(err, storage.ErrConflict) {
			lg.Warn("register_user_exists")
			return nil, detailed(op, ErrConflict, ErrUserExists)
		}

		lg.Error("register_create_failed", slog.String("err", err.Error()))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	token, err := s.issueToken(ctx, u, s.now())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	lg.Info("user_registered", slog.Int64("user_id", u.ID))

	return &AuthResult{Token: token, User: u}, nil
}

// Login checks the credentials and applies the lockout policy:
// a locked account is rejected before the password is compared, and every
// mismatch counts toward the lock.
func (s *Service) Login(ctx context.Context, username, password string) (*AuthResult, error) {
	const op = "service/auth/Login"

	lg := log.From(ctx).With(slog.String("op", op), slog.String("username", username))

	if username == "" || password == "" {
		lg.Warn("login_missing_fields")
		return nil, invalid(op, "", "username and password are required")
	}

	u, err := s.storage.UserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			lg.Warn("login_unknown_user")
			return nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
		}

		lg.Error("login_lookup_failed", slog.String("err", err.Error()))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	now := s.now()

	if !u.IsActive {
		lg.Warn("login_inactive_user", slog.Int64("user_id", u.ID))
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	if u.IsLocked(now) {
		lg.Warn("login_locked_user", slog.Int64("user_id", u.ID))
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	if !checkPassword(u.PasswordHash, password) {
		updated, err := s.storage.IncrementLoginAttempts(ctx, u.ID, s.cfg.Auth.MaxLoginAttempts, now.Add(s.cfg.Auth.LockDuration))
		if err != nil {
			lg.Error("login_attempts_update_failed", slog.String("err", err.Error()))
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		lg.Warn("login_wrong_password",
			slog.Int64("user_id", u.ID),
			slog.Int("attempts", updated.LoginAttempts),
			slog.Bool("locked", updated.IsLocked(now)),
		)

		return nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	if err := s.storage.ResetLoginAttempts(ctx, u.ID, now); err != nil {
		lg.Error("login_reset_failed", slog.String("err", err.Error()))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	u.LoginAttempts = 0
	u.LockUntil = nil
	u.LastLogin = &now

	token, err := s.issueToken(ctx, u, now)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	lg.Info("user_logged_in", slog.Int64("user_id", u.ID))

	return &AuthResult{Token: token, User: u}, nil
}

// Logout is stateless: tokens stay valid until they expire.
func (s *Service) Logout(ctx context.Context, id *models.Identity) error {
	const op = "service/auth/Logout"

	if id == nil {
		return fmt.Errorf("%s: %w", op, ErrUnauthorized)
	}

	log.From(ctx).Info("user_logged_out", slog.String("op", op), slog.Int64("user_id", id.ID))

	return nil
}

func (s *Service) hashPassword(password string) (string, error) {
	const op = "service/auth/hashPassword"

	cost := s.cfg.Auth.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}

	b, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("%s: %w: %w", op, ErrInternal, err)
	}

	return string(b), nil
}

func checkPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

func validateUsername(username string) error {
	if !usernameRe.MatchString(username) {
		return ErrInvalidUsername
	}

	return nil
}

// validateEmail trims, lowercases and checks the address.
func validateEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" || len(email) > maxEmailLen {
		return "", ErrInvalidEmail
	}

	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || !strings.Contains(email[strings.LastIndex(email, "@"):], ".") {
		return "", ErrInvalidEmail
	}

	return email, nil
}

// validatePassword: 8-128 characters with an upper, a lower and a digit.
func validatePassword(pw string) error {
	if n := utf8.RuneCountInString(pw); n < 8 || n > 128 {
		return ErrWeakPassword
	}

	var hasLower, hasUpper, hasDigit bool
	for _, r := range pw {
		switch {
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}

	if !(hasLower && hasUpper && hasDigit) {
		return ErrWeakPassword
	}

	return nil
}
