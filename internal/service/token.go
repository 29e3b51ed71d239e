package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pribylovaa/siveal/internal/models"
	"github.com/pribylovaa/siveal/internal/pkg/log"
	"github.com/pribylovaa/siveal/internal/pkg/redact"
)

type accessClaims struct {
	UserID   int64  `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// issueToken signs an HS256 token with the id, username and role of u.
func (s *Service) issueToken(ctx context.Context, u *models.User, now time.Time) (string, error) {
	const op = "service/token/issueToken"

	claims := accessClaims{
		UserID:   u.ID,
		Username: u.Username,
		Role:     u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.Auth.TokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    s.cfg.Auth.Issuer,
			Subject:   fmt.Sprintf("%d", u.ID),
			Audience:  jwt.ClaimStrings(s.cfg.Auth.Audience),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.Auth.JWTSecret))
	if err != nil {
		log.From(ctx).Error("token_sign_failed",
			slog.String("op", op),
			slog.String("err", err.Error()),
		)

		return "", fmt.Errorf("%s: %w: %w", op, ErrInternal, err)
	}

	return signed, nil
}

// Authenticate verifies a bearer token and returns the caller.
// An empty token is ErrUnauthorized; every other failure is
// ErrInvalidToken or ErrTokenExpired.
func (s *Service) Authenticate(ctx context.Context, raw string) (*models.Identity, error) {
	const op = "service/token/Authenticate"

	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrUnauthorized)
	}

	token, err := jwt.ParseWithClaims(raw, &accessClaims{},
		func(t *jwt.Token) (interface{}, error) {
			return []byte(s.cfg.Auth.JWTSecret), nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(5*time.Second),
		jwt.WithIssuer(s.cfg.Auth.Issuer),
		jwt.WithAudience(s.cfg.Auth.Audience...),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		lg := log.From(ctx).With(slog.String("op", op), slog.String("token", redact.Token(raw)))

		if errors.Is(err, jwt.ErrTokenExpired) {
			lg.Warn("token_expired")
			return nil, fmt.Errorf("%s: %w", op, ErrTokenExpired)
		}

		lg.Warn("token_invalid", slog.String("err", err.Error()))

		return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	claims, ok := token.Claims.(*accessClaims)
	if !ok || !token.Valid || claims.UserID <= 0 {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	return &models.Identity{
		ID:       claims.UserID,
		Username: claims.Username,
		Role:     claims.Role,
	}, nil
}

// RequireRole returns ErrUnauthorized without an identity and
// ErrForbidden when the identity has none of roles.
func RequireRole(id *models.Identity, roles ...string) error {
	const op = "service/token/RequireRole"

	if id == nil {
		return fmt.Errorf("%s: %w", op, ErrUnauthorized)
	}

	if !id.HasRole(roles...) {
		return fmt.Errorf("%s: %w", op, ErrForbidden)
	}

	return nil
}
