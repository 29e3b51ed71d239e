package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/pribylovaa/siveal/internal/cache"
	"github.com/pribylovaa/siveal/internal/config"
	"github.com/pribylovaa/siveal/internal/models"
	"github.com/pribylovaa/siveal/internal/service"
	"github.com/pribylovaa/siveal/internal/storage"
	"github.com/pribylovaa/siveal/mocks"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const password = "Secr3tPass"

func testConfig() *config.Config {
	return &config.Config{
		Env:  "local",
		HTTP: config.HTTPConfig{BasePath: "/api"},
		Auth: config.AuthConfig{
			JWTSecret:        "test-secret",
			TokenTTL:         time.Hour,
			Issuer:           "siveal",
			Audience:         []string{"siveal-web"},
			BcryptCost:       bcrypt.MinCost,
			MaxLoginAttempts: 5,
			LockDuration:     2 * time.Hour,
		},
		Images: config.ImagesConfig{
			MaxSizeBytes:        1024,
			AllowedContentTypes: []string{"image/png"},
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

type testEnv struct {
	router http.Handler
	store  *mocks.MockStorage
}

func newTestEnv(t *testing.T, mutate func(*Options)) *testEnv {
	t.Helper()

	ctrl := gomock.NewController(t)
	ms := mocks.NewMockStorage(ctrl)
	cfg := testConfig()

	opts := Options{
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		Timeout:     5 * time.Second,
		BasePath:    cfg.HTTP.BasePath,
		CORSOrigins: []string{"*"},
	}
	if mutate != nil {
		mutate(&opts)
	}

	return &testEnv{router: NewRouter(service.New(ms, cfg), opts), store: ms}
}

func (e *testEnv) do(t *testing.T, method, target, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var rd io.Reader = http.NoBody
	switch b := body.(type) {
	case nil:
	case string:
		rd = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		rd = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, target, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

// login signs in u through the API and returns the token.
func (e *testEnv) login(t *testing.T, u models.User) string {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	u.PasswordHash = string(hash)
	u.IsActive = true

	e.store.EXPECT().UserByUsername(gomock.Any(), u.Username).Return(&u, nil)
	e.store.EXPECT().ResetLoginAttempts(gomock.Any(), u.ID, gomock.Any()).Return(nil)

	rr := e.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"username": u.Username,
		"password": password,
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var out struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	require.NotEmpty(t, out.Token)
	return out.Token
}

var (
	adminUser  = models.User{ID: 1, Username: "root", Email: "root@siveal.example", Role: models.RoleAdmin}
	memberUser = models.User{ID: 3, Username: "alice", Email: "alice@siveal.example", Role: models.RoleUser}
)

func errCode(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var env struct {
		Error struct {
			Code      string `json:"code"`
			RequestID string `json:"request_id"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env), rr.Body.String())
	require.NotEmpty(t, env.Error.RequestID)
	return env.Error.Code
}

func TestRouter_RegisterHidesPasswordHash(t *testing.T) {
	e := newTestEnv(t, nil)

	e.store.EXPECT().UserExists(gomock.Any(), "bob_1", "bob@siveal.example").Return(false, nil)
	e.store.EXPECT().CreateUser(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, u models.User) (*models.User, error) {
			u.ID = 7
			u.CreatedAt = time.Now()
			return &u, nil
		})

	rr := e.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": "bob_1",
		"email":    "Bob@Siveal.example",
		"password": password,
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	body := rr.Body.String()
	require.NotContains(t, body, "password")
	require.NotContains(t, body, "$2a$")

	var out struct {
		Success bool   `json:"success"`
		Token   string `json:"token"`
		User    struct {
			ID    int64  `json:"id"`
			Email string `json:"email"`
			Role  string `json:"role"`
		} `json:"user"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	require.True(t, out.Success)
	require.NotEmpty(t, out.Token)
	require.EqualValues(t, 7, out.User.ID)
	require.Equal(t, "bob@siveal.example", out.User.Email)
	require.Equal(t, models.RoleUser, out.User.Role)
}

func TestRouter_ProfileHidesPasswordHash(t *testing.T) {
	e := newTestEnv(t, nil)
	token := e.login(t, memberUser)

	u := memberUser
	u.PasswordHash = "$2a$10$shouldneverleak"
	u.IsActive = true
	e.store.EXPECT().UserByID(gomock.Any(), memberUser.ID).Return(&u, nil)

	rr := e.do(t, http.MethodGet, "/api/profile", token, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	require.NotContains(t, rr.Body.String(), "shouldneverleak")
	require.Contains(t, rr.Body.String(), `"username":"alice"`)
}

func TestRouter_CreateThenViewTwice(t *testing.T) {
	e := newTestEnv(t, nil)
	token := e.login(t, adminUser)

	var views int64
	e.store.EXPECT().CreateArticle(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, a models.Article) (*models.Article, error) {
			a.ID = 1
			a.Time = time.Now()
			return &a, nil
		})
	e.store.EXPECT().IncrementViews(gomock.Any(), int64(1)).
		DoAndReturn(func(context.Context, int64) (int64, error) {
			views++
			return views, nil
		}).Times(2)

	rr := e.do(t, http.MethodPost, "/api/news", token, map[string]any{
		"title":    "T",
		"summary":  "S",
		"content":  "C",
		"category": "Science",
		"author":   "A",
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var created struct {
		Article struct {
			ID    int64  `json:"id"`
			Slug  string `json:"slug"`
			Views int64  `json:"views"`
		} `json:"article"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &created))
	require.EqualValues(t, 1, created.Article.ID)
	require.Equal(t, "t", created.Article.Slug)
	require.Zero(t, created.Article.Views)

	for want := int64(1); want <= 2; want++ {
		rr = e.do(t, http.MethodPost, "/api/news/1/view", "", nil)
		require.Equal(t, http.StatusOK, rr.Code)

		var out struct {
			Views int64 `json:"views"`
		}
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
		require.Equal(t, want, out.Views)
	}
}

func TestRouter_AccessControl(t *testing.T) {
	e := newTestEnv(t, nil)

	// No token.
	rr := e.do(t, http.MethodGet, "/api/users", "", nil)
	require.Equal(t, http.StatusUnauthorized, rr.Code)
	require.Equal(t, "unauthenticated", errCode(t, rr))

	// Garbage token on protected routes.
	rr = e.do(t, http.MethodGet, "/api/users", "not-a-jwt", nil)
	require.Equal(t, http.StatusForbidden, rr.Code)
	require.Equal(t, "invalid_token", errCode(t, rr))

	rr = e.do(t, http.MethodGet, "/api/profile", "not-a-jwt", nil)
	require.Equal(t, http.StatusForbidden, rr.Code)
	require.Equal(t, "invalid_token", errCode(t, rr))

	rr = e.do(t, http.MethodGet, "/api/profile", "", nil)
	require.Equal(t, http.StatusUnauthorized, rr.Code)
	require.Equal(t, "unauthenticated", errCode(t, rr))

	// Wrong role.
	token := e.login(t, memberUser)
	rr = e.do(t, http.MethodGet, "/api/users", token, nil)
	require.Equal(t, http.StatusForbidden, rr.Code)
	require.Equal(t, "permission_denied", errCode(t, rr))

	rr = e.do(t, http.MethodPost, "/api/comments/id/5/restore", token, nil)
	require.Equal(t, http.StatusForbidden, rr.Code)
}

func TestRouter_StaleTokenOnPublicRoutes(t *testing.T) {
	e := newTestEnv(t, nil)
	const stale = "expired.or.garbage"

	e.store.EXPECT().ListArticles(gomock.Any(), gomock.Any()).
		Return([]models.Article{{ID: 1, Title: "Open", Published: true, Time: time.Now()}}, nil).Times(2)

	rr := e.do(t, http.MethodGet, "/api/news", stale, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = e.do(t, http.MethodGet, "/rss.xml", stale, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	// A stale token does not block signing in again.
	u := memberUser
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	u.PasswordHash = string(hash)
	u.IsActive = true

	e.store.EXPECT().UserByUsername(gomock.Any(), u.Username).Return(&u, nil)
	e.store.EXPECT().ResetLoginAttempts(gomock.Any(), u.ID, gomock.Any()).Return(nil)

	rr = e.do(t, http.MethodPost, "/api/auth/login", stale, map[string]string{
		"username": u.Username,
		"password": password,
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	// Comment creation treats the caller as anonymous.
	e.store.EXPECT().ArticleByID(gomock.Any(), int64(1)).Return(&models.Article{ID: 1, Published: true}, nil)
	e.store.EXPECT().CreateComment(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, c models.Comment) (*models.Comment, error) {
			require.Nil(t, c.AuthorID)
			c.ID = 1
			return &c, nil
		})

	rr = e.do(t, http.MethodPost, "/api/comments/1", stale, map[string]string{
		"author":  "guest",
		"content": "hello",
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
}

func TestRouter_Fallbacks(t *testing.T) {
	e := newTestEnv(t, nil)

	rr := e.do(t, http.MethodGet, "/api/nope", "", nil)
	require.Equal(t, http.StatusNotFound, rr.Code)
	require.Equal(t, "not_found", errCode(t, rr))

	rr = e.do(t, http.MethodPatch, "/api/news", "", nil)
	require.Equal(t, http.StatusMethodNotAllowed, rr.Code)
	require.Equal(t, "method_not_allowed", errCode(t, rr))
}

func TestRouter_BadInput(t *testing.T) {
	e := newTestEnv(t, nil)

	tests := []struct {
		name   string
		method string
		target string
		body   any
	}{
		{"unknown_field", http.MethodPost, "/api/auth/login", `{"username":"a","password":"b","admin":true}`},
		{"broken_json", http.MethodPost, "/api/auth/login", `{"username":`},
		{"bad_limit", http.MethodGet, "/api/news?limit=ten", nil},
		{"bad_featured", http.MethodGet, "/api/news?featured=maybe", nil},
		{"bad_id", http.MethodGet, "/api/news/abc", nil},
		{"zero_id", http.MethodPost, "/api/news/0/view", nil},
		{"bad_article_id", http.MethodGet, "/api/comments/x", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := e.do(t, tt.method, tt.target, "", tt.body)
			require.Equal(t, http.StatusBadRequest, rr.Code, rr.Body.String())
			require.Equal(t, "invalid_argument", errCode(t, rr))
		})
	}
}

func TestRouter_ListNewsQuery(t *testing.T) {
	e := newTestEnv(t, nil)

	e.store.EXPECT().ListArticles(gomock.Any(), models.ArticleFilter{
		Category:     "tech",
		FeaturedOnly: true,
		Limit:        100,
		Offset:       10,
	}).Return([]models.Article{{ID: 3, Title: "Hello", Published: true}}, nil)

	rr := e.do(t, http.MethodGet, "/api/news?category=tech&featured=true&limit=500&skip=10", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var out []struct {
		ID   int64    `json:"id"`
		Tags []string `json:"tags"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	require.Len(t, out, 1)
	require.EqualValues(t, 3, out[0].ID)
	require.NotNil(t, out[0].Tags)
}

func TestRouter_GetArticleNotFound(t *testing.T) {
	e := newTestEnv(t, nil)
	e.store.EXPECT().ArticleByID(gomock.Any(), int64(9)).Return(nil, storage.ErrNotFound)

	rr := e.do(t, http.MethodGet, "/api/news/9", "", nil)
	require.Equal(t, http.StatusNotFound, rr.Code)
	require.Equal(t, "not_found", errCode(t, rr))
}

func TestRouter_CommentsAliasAndPrivacy(t *testing.T) {
	e := newTestEnv(t, nil)

	parent := int64(10)
	now := time.Now()
	e.store.EXPECT().ListVisibleComments(gomock.Any(), int64(5)).Return([]models.Comment{
		{ID: 10, ArticleID: 5, Author: "a", AuthorEmail: "a@x.io", IPAddress: "10.0.0.1", Content: "top", IsApproved: true, CreatedAt: now},
		{ID: 11, ArticleID: 5, Author: "b", Content: "reply", ParentID: &parent, IsApproved: true, CreatedAt: now.Add(time.Second)},
	}, nil).Times(2)

	for _, target := range []string{"/api/comments/5", "/api/news/comments/5"} {
		rr := e.do(t, http.MethodGet, target, "", nil)
		require.Equal(t, http.StatusOK, rr.Code, target)
		require.NotContains(t, rr.Body.String(), "a@x.io")
		require.NotContains(t, rr.Body.String(), "10.0.0.1")

		var out []struct {
			ID      int64 `json:"id"`
			Replies []struct {
				ID int64 `json:"id"`
			} `json:"replies"`
		}
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
		require.Len(t, out, 1)
		require.EqualValues(t, 10, out[0].ID)
		require.Len(t, out[0].Replies, 1)
		require.EqualValues(t, 11, out[0].Replies[0].ID)
	}
}

func TestRouter_SubscribeTwice(t *testing.T) {
	e := newTestEnv(t, nil)

	gomock.InOrder(
		e.store.EXPECT().SubscriberByEmail(gomock.Any(), "reader@siveal.example").Return(nil, storage.ErrNotFound),
		e.store.EXPECT().CreateSubscriber(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, s models.Subscriber) (*models.Subscriber, error) {
				return &s, nil
			}),
		e.store.EXPECT().SubscriberByEmail(gomock.Any(), "reader@siveal.example").
			Return(&models.Subscriber{Email: "reader@siveal.example", IsActive: true}, nil),
	)

	body := map[string]any{"email": "reader@siveal.example"}

	rr := e.do(t, http.MethodPost, "/api/newsletter/subscribe", "", body)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	require.NotContains(t, rr.Body.String(), "unsubscribeToken")
	require.Contains(t, rr.Body.String(), `"language":"en"`)

	rr = e.do(t, http.MethodPost, "/api/newsletter/subscribe", "", body)
	require.Equal(t, http.StatusConflict, rr.Code)
	require.Equal(t, "already_exists", errCode(t, rr))
}

func TestRouter_ImagesDisabled(t *testing.T) {
	e := newTestEnv(t, nil)
	token := e.login(t, adminUser)

	rr := e.do(t, http.MethodPost, "/api/upload/presign", token, map[string]any{
		"contentType":   "image/png",
		"contentLength": 100,
	})
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
	require.Equal(t, "unavailable", errCode(t, rr))
}

func TestRouter_RSS(t *testing.T) {
	e := newTestEnv(t, nil)
	e.store.EXPECT().ListArticles(gomock.Any(), gomock.Any()).
		Return([]models.Article{{ID: 4, Title: "Feed item", Summary: "s", Category: "tech", Time: time.Now()}}, nil)

	rr := e.do(t, http.MethodGet, "/rss.xml", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.True(t, strings.HasPrefix(rr.Header().Get("Content-Type"), "application/rss+xml"))
	require.Contains(t, rr.Body.String(), "https://siveal.example/article.html?id=4")
}

func TestRouter_AuthRateLimit(t *testing.T) {
	e := newTestEnv(t, func(o *Options) {
		o.RateStore = cache.NewMemoryStore()
		o.RateLimit = config.RateLimitConfig{
			General: config.RateRule{Limit: 100, Window: time.Minute},
			Auth:    config.RateRule{Limit: 1, Window: time.Minute},
		}
	})

	e.store.EXPECT().UserByUsername(gomock.Any(), "ghost").Return(nil, storage.ErrNotFound)

	body := map[string]string{"username": "ghost", "password": "whatever"}

	rr := e.do(t, http.MethodPost, "/api/auth/login", "", body)
	require.Equal(t, http.StatusUnauthorized, rr.Code)
	require.Equal(t, "invalid_credentials", errCode(t, rr))

	rr = e.do(t, http.MethodPost, "/api/auth/login", "", body)
	require.Equal(t, http.StatusTooManyRequests, rr.Code)
	require.Equal(t, "rate_limited", errCode(t, rr))
	require.NotEmpty(t, rr.Header().Get("Retry-After"))

	// Other endpoints only see the general rule.
	e.store.EXPECT().CountSubscribers(gomock.Any()).Return(&models.SubscriberCounts{Active: 2, Inactive: 1}, nil)
	rr = e.do(t, http.MethodGet, "/api/newsletter/health", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	// Both logins counted toward it.
	require.Equal(t, "97", rr.Header().Get("X-RateLimit-Remaining"))
	require.Contains(t, rr.Body.String(), `"totalSubscribers":3`)
}

func TestRouter_CORSPreflight(t *testing.T) {
	e := newTestEnv(t, nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/news", nil)
	req.Header.Set("Origin", "https://app.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)

	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusNoContent, rr.Code)
	require.NotEmpty(t, rr.Header().Get("Access-Control-Allow-Methods"))
	require.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
}
