package service

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pribylovaa/siveal/internal/models"
	"github.com/stretchr/testify/require"
)

func signWith(t *testing.T, method jwt.SigningMethod, key interface{}, c accessClaims) string {
	t.Helper()
	raw, err := jwt.NewWithClaims(method, c).SignedString(key)
	require.NoError(t, err)
	return raw
}

func validClaims() accessClaims {
	return accessClaims{
		UserID:   3,
		Username: "alice",
		Role:     models.RoleUser,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(fixedNow.Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(fixedNow),
			Issuer:    "siveal",
			Audience:  jwt.ClaimStrings{"siveal-web"},
		},
	}
}

func TestService_Authenticate(t *testing.T) {
	s, _, ctrl := newServiceWithMocks(t)
	defer ctrl.Finish()

	secret := []byte("test-secret")

	expired := validClaims()
	expired.ExpiresAt = jwt.NewNumericDate(fixedNow.Add(-time.Minute))

	wrongIssuer := validClaims()
	wrongIssuer.Issuer = "someone-else"

	wrongAudience := validClaims()
	wrongAudience.Audience = jwt.ClaimStrings{"mobile"}

	noUser := validClaims()
	noUser.UserID = 0

	tests := []struct {
		name string
		raw  string
		want error
	}{
		{"empty", "   ", ErrUnauthorized},
		{"garbage", "not.a.token", ErrInvalidToken},
		{"expired", signWith(t, jwt.SigningMethodHS256, secret, expired), ErrTokenExpired},
		{"wrong_secret", signWith(t, jwt.SigningMethodHS256, []byte("other"), validClaims()), ErrInvalidToken},
		{"wrong_alg", signWith(t, jwt.SigningMethodHS512, secret, validClaims()), ErrInvalidToken},
		{"none_alg", signWith(t, jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, validClaims()), ErrInvalidToken},
		{"wrong_issuer", signWith(t, jwt.SigningMethodHS256, secret, wrongIssuer), ErrInvalidToken},
		{"wrong_audience", signWith(t, jwt.SigningMethodHS256, secret, wrongAudience), ErrInvalidToken},
		{"no_user_id", signWith(t, jwt.SigningMethodHS256, secret, noUser), ErrInvalidToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Authenticate(context.Background(), tt.raw)
			require.ErrorIs(t, err, tt.want)
		})
	}

	id, err := s.Authenticate(context.Background(), signWith(t, jwt.SigningMethodHS256, secret, validClaims()))
	require.NoError(t, err)
	require.Equal(t, &models.Identity{ID: 3, Username: "alice", Role: models.RoleUser}, id)
}

func TestService_IssueToken_TTL(t *testing.T) {
	s, _, ctrl := newServiceWithMocks(t)
	defer ctrl.Finish()

	raw, err := s.issueToken(context.Background(), &models.User{ID: 9, Username: "bob", Role: models.RoleAdmin}, fixedNow)
	require.NoError(t, err)

	var c accessClaims
	_, _, err = jwt.NewParser().ParseUnverified(raw, &c)
	require.NoError(t, err)
	require.EqualValues(t, 9, c.UserID)
	require.Equal(t, models.RoleAdmin, c.Role)
	require.Equal(t, "siveal", c.Issuer)
	require.Equal(t, fixedNow.Add(7*24*time.Hour).Unix(), c.ExpiresAt.Unix())

	// A week and a minute later the token is expired.
	s.now = func() time.Time { return fixedNow.Add(7*24*time.Hour + time.Minute) }
	_, err = s.Authenticate(context.Background(), raw)
	require.ErrorIs(t, err, ErrTokenExpired)
}

func TestRequireRole(t *testing.T) {
	t.Parallel()

	require.ErrorIs(t, RequireRole(nil, models.RoleAdmin), ErrUnauthorized)
	require.ErrorIs(t, RequireRole(member, models.RoleAdmin), ErrForbidden)
	require.NoError(t, RequireRole(admin, models.RoleAdmin))
	require.NoError(t, RequireRole(moderator, models.RoleAdmin, models.RoleModerator))
}
