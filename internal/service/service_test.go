package service

// Service tests run against gomock storage mocks:
//
//	mockgen -source=./internal/storage/storage.go -destination=./mocks/storage.go -package=mocks
//	go test ./internal/service -v -race -count=1

import (
	"errors"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/pribylovaa/siveal/internal/config"
	"github.com/pribylovaa/siveal/internal/models"
	"github.com/pribylovaa/siveal/mocks"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var fixedNow = time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)

var (
	admin     = &models.Identity{ID: 1, Username: "root", Role: models.RoleAdmin}
	moderator = &models.Identity{ID: 2, Username: "mod", Role: models.RoleModerator}
	member    = &models.Identity{ID: 3, Username: "alice", Role: models.RoleUser}
)

func testConfig() *config.Config {
	return &config.Config{
		Env: "local",
		Auth: config.AuthConfig{
			JWTSecret:        "test-secret",
			TokenTTL:         168 * time.Hour,
			Issuer:           "siveal",
			Audience:         []string{"siveal-web"},
			BcryptCost:       bcrypt.MinCost,
			MaxLoginAttempts: 5,
			LockDuration:     2 * time.Hour,
		},
		Images: config.ImagesConfig{
			MaxSizeBytes:        10 * 1024 * 1024,
			AllowedContentTypes: []string{"image/jpeg", "image/png", "image/gif", "image/webp"},
		},
		Site: config.SiteConfig{BaseURL: "https://siveal.example"},
		Limits: config.LimitsConfig{
			NewsDefault:        50,
			NewsMax:            100,
			SubscribersDefault: 50,
			SubscribersMax:     200,
		},
	}
}

// newServiceWithMocks builds a Service over a mocked storage with a frozen clock.
func newServiceWithMocks(t *testing.T) (*Service, *mocks.MockStorage, *gomock.Controller) {
	t.Helper()
	ctrl := gomock.NewController(t)
	ms := mocks.NewMockStorage(ctrl)
	s := New(ms, testConfig())
	s.now = func() time.Time { return fixedNow }
	return s, ms, ctrl
}

func mustHash(t *testing.T, pw string) string {
	t.Helper()
	b, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.MinCost)
	require.NoError(t, err)
	return string(b)
}

// requireField asserts a ValidationError about field.
func requireField(t *testing.T, err error, field string) {
	t.Helper()
	require.ErrorIs(t, err, ErrInvalidArgument)
	var ve *ValidationError
	require.True(t, errors.As(err, &ve), "want ValidationError, got %v", err)
	require.Equal(t, field, ve.Field)
}

func TestJSONName(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"Title":     "title",
		"MetaTitle": "metaTitle",
		"TitleTR":   "title_tr",
		"SummaryAZ": "summary_az",
		"ContentRU": "content_ru",
		"":          "",
	}

	for in, want := range cases {
		require.Equal(t, want, jsonName(in), in)
	}
}

func TestValidationError_IsInvalidArgument(t *testing.T) {
	t.Parallel()

	err := invalid("op", "email", "is required")
	require.ErrorIs(t, err, ErrInvalidArgument)
	require.EqualError(t, err, "op: email: is required")
	require.NotErrorIs(t, err, ErrNotFound)
}

func TestDetailed_KeepsKindAndDetail(t *testing.T) {
	t.Parallel()

	err := detailed("op", ErrConflict, ErrUserExists)
	require.ErrorIs(t, err, ErrConflict)
	require.ErrorIs(t, err, ErrUserExists)
}
