package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	apierrors "github.com/pribylovaa/siveal/internal/errors"
	"github.com/pribylovaa/siveal/internal/models"
	"github.com/pribylovaa/siveal/internal/pkg/log"
	"github.com/pribylovaa/siveal/internal/service"
)

// AuthBearer extracts the Bearer token from Authorization into the context.
func AuthBearer() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")

			if auth != "" {
				const prefix = "Bearer "
				if len(auth) > len(prefix) && strings.EqualFold(auth[:len(prefix)], prefix) {
					token := strings.TrimSpace(auth[len(prefix):])

					if token != "" {
						ctx := context.WithValue(r.Context(), ctxAuthToken, token)
						r = r.WithContext(ctx)
					}
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// TokenVerifier turns a raw token into the caller.
type TokenVerifier interface {
	Authenticate(ctx context.Context, raw string) (*models.Identity, error)
}

// Authenticate verifies the token found by AuthBearer. Requests without a
// token pass as anonymous. A bad or expired token is kept in the context
// as an error and the request goes on as anonymous; RequireAuth and
// RequireRole reject it on protected routes.
func Authenticate(v TokenVerifier) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := TokenFrom(r.Context())
			if raw == "" {
				next.ServeHTTP(w, r)
				return
			}

			id, err := v.Authenticate(r.Context(), raw)
			if err != nil {
				next.ServeHTTP(w, r.WithContext(withAuthError(r.Context(), err)))
				return
			}

			ctx := WithIdentity(r.Context(), id)
			ctx = log.Into(ctx, log.From(ctx).With(slog.Int64("user_id", id.ID)))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAuth rejects anonymous callers: 401 without a token and 403 when
// the token failed verification.
func RequireAuth() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if IdentityFrom(r.Context()) == nil {
				denyAnonymous(w, r, "middleware/RequireAuth")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireRole rejects anonymous callers like RequireAuth and callers
// without one of roles with 403.
func RequireRole(roles ...string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := IdentityFrom(r.Context())
			if id == nil {
				denyAnonymous(w, r, "middleware/RequireRole")
				return
			}

			if err := service.RequireRole(id, roles...); err != nil {
				log.From(r.Context()).Warn("access_denied",
					slog.String("path", r.URL.Path),
					slog.String("err", err.Error()),
				)
				apierrors.WriteError(w, r, fmt.Errorf("middleware/RequireRole: %w", err))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// denyAnonymous writes the kept token error, or ErrUnauthorized when
// no token was sent.
func denyAnonymous(w http.ResponseWriter, r *http.Request, op string) {
	err := AuthErrorFrom(r.Context())
	if err == nil {
		err = service.ErrUnauthorized
	}

	log.From(r.Context()).Warn("access_denied",
		slog.String("path", r.URL.Path),
		slog.String("err", err.Error()),
	)
	apierrors.WriteError(w, r, fmt.Errorf("%s: %w", op, err))
}
