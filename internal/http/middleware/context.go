package middleware

import (
	"context"

	"github.com/pribylovaa/siveal/internal/models"
)

type ctxKey int

const (
	ctxRequestID ctxKey = iota
	ctxAuthToken
	ctxIdentity
	ctxAuthError
)

// RequestIDFrom returns the request id set by RequestID.
func RequestIDFrom(ctx context.Context) string {
	v, _ := ctx.Value(ctxRequestID).(string)
	return v
}

// TokenFrom returns the raw bearer token set by AuthBearer.
func TokenFrom(ctx context.Context) string {
	v, _ := ctx.Value(ctxAuthToken).(string)
	return v
}

// IdentityFrom returns the caller set by Authenticate, or nil for anonymous requests.
func IdentityFrom(ctx context.Context) *models.Identity {
	v, _ := ctx.Value(ctxIdentity).(*models.Identity)
	return v
}

// WithIdentity stores the caller in ctx.
func WithIdentity(ctx context.Context, id *models.Identity) context.Context {
	return context.WithValue(ctx, ctxIdentity, id)
}

// AuthErrorFrom returns the verification error of a token that Authenticate
// rejected, or nil.
func AuthErrorFrom(ctx context.Context) error {
	v, _ := ctx.Value(ctxAuthError).(error)
	return v
}

func withAuthError(ctx context.Context, err error) context.Context {
	return context.WithValue(ctx, ctxAuthError, err)
}
