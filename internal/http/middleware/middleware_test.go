package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pribylovaa/siveal/internal/models"
	"github.com/pribylovaa/siveal/internal/pkg/log"
	"github.com/pribylovaa/siveal/internal/service"
	"github.com/stretchr/testify/require"
)

// capHandler is a slog.Handler that keeps the attrs of the last record
// together with the attrs added through Logger.With.
type capHandler struct {
	base    []slog.Attr
	lastMsg string
	lastLvl slog.Level
	attrs   map[string]any
	count   int
}

func (h *capHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *capHandler) Handle(_ context.Context, r slog.Record) error {
	out := make(map[string]any, len(h.base)+8)

	for _, a := range h.base {
		out[a.Key] = a.Value.Any()
	}

	r.Attrs(func(a slog.Attr) bool {
		out[a.Key] = a.Value.Any()
		return true
	})

	h.count++
	h.lastMsg = r.Message
	h.lastLvl = r.Level
	h.attrs = out

	return nil
}

func (h *capHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) > 0 {
		h.base = append(h.base, attrs...)
	}

	return h
}

func (h *capHandler) WithGroup(string) slog.Handler { return h }

func makeReq(target string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	req.RemoteAddr = (&net.TCPAddr{IP: net.ParseIP("127.0.0.1"), Port: 12345}).String()
	return req
}

type apiError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

type errEnvelope struct {
	Error apiError `json:"error"`
}

func decodeErr(t *testing.T, rr *httptest.ResponseRecorder) apiError {
	t.Helper()
	var env errEnvelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))
	return env.Error
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestChain_Order(t *testing.T) {
	order := []string{}

	m1 := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			order = append(order, "m1-begin")
			next.ServeHTTP(w, r)
			order = append(order, "m1-end")
		})
	}

	m2 := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			order = append(order, "m2-begin")
			next.ServeHTTP(w, r)
			order = append(order, "m2-end")
		})
	}

	final := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		order = append(order, "handler")
		w.WriteHeader(http.StatusTeapot)
	})

	chain := Chain(final, m1, m2)
	rr := httptest.NewRecorder()
	chain.ServeHTTP(rr, makeReq("/chain"))

	require.Equal(t, []string{"m1-begin", "m2-begin", "handler", "m2-end", "m1-end"}, order)
	require.Equal(t, http.StatusTeapot, rr.Code)
}

func TestRequestID_GenerateAndPropagate(t *testing.T) {
	var seenHeader, seenCtx string

	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenHeader = r.Header.Get("X-Request-Id")
		seenCtx = RequestIDFrom(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	rr := httptest.NewRecorder()
	Chain(h, RequestID()).ServeHTTP(rr, makeReq("/x"))

	require.Len(t, seenHeader, 32)
	require.Equal(t, seenHeader, seenCtx)
	require.Equal(t, seenHeader, rr.Header().Get("X-Request-Id"))

	req := makeReq("/x")
	req.Header.Set("X-Request-Id", "given-id")
	rr = httptest.NewRecorder()
	Chain(h, RequestID()).ServeHTTP(rr, req)

	require.Equal(t, "given-id", seenCtx)
	require.Equal(t, "given-id", rr.Header().Get("X-Request-Id"))
}

func TestRecover_Returns500(t *testing.T) {
	capture := &capHandler{}
	h := http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") })

	req := makeReq("/panic")
	req.Header.Set("X-Request-Id", "rid-9")
	req = req.WithContext(log.Into(req.Context(), slog.New(capture)))

	rr := httptest.NewRecorder()
	Chain(h, Recover()).ServeHTTP(rr, req)

	require.Equal(t, http.StatusInternalServerError, rr.Code)
	e := decodeErr(t, rr)
	require.Equal(t, "internal", e.Code)
	require.Equal(t, "internal error", e.Message)
	require.Equal(t, "rid-9", e.RequestID)
	require.Equal(t, "panic", capture.lastMsg)
	require.Equal(t, slog.LevelError, capture.lastLvl)
}

func TestTimeout(t *testing.T) {
	var hasDeadline bool
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, hasDeadline = r.Context().Deadline()
	})

	Chain(h, Timeout(time.Second)).ServeHTTP(httptest.NewRecorder(), makeReq("/t"))
	require.True(t, hasDeadline)

	Chain(h, Timeout(0)).ServeHTTP(httptest.NewRecorder(), makeReq("/t"))
	require.False(t, hasDeadline)

	// An existing, earlier deadline is kept.
	ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
	defer cancel()
	want, _ := ctx.Deadline()

	var got time.Time
	h2 := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = r.Context().Deadline()
	})
	Chain(h2, Timeout(time.Hour)).ServeHTTP(httptest.NewRecorder(), makeReq("/t").WithContext(ctx))
	require.Equal(t, want, got)
}

func TestLogging_RequestScopedLogger(t *testing.T) {
	capture := &capHandler{}
	l := slog.New(capture)

	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.From(r.Context()).Info("inner")
		require.Equal(t, "rid-1", capture.attrs["request_id"])
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("nope"))
	})

	req := makeReq("/news/1")
	req.Header.Set("X-Request-Id", "rid-1")
	Chain(h, Logging(l)).ServeHTTP(httptest.NewRecorder(), req)

	require.Equal(t, 2, capture.count)
	require.Equal(t, "http", capture.lastMsg)
	require.Equal(t, slog.LevelWarn, capture.lastLvl)
	require.EqualValues(t, http.StatusNotFound, capture.attrs["status"])
	require.EqualValues(t, 4, capture.attrs["bytes"])
	require.Equal(t, "/news/1", capture.attrs["path"])
}

type stubVerifier struct {
	id  *models.Identity
	err error
	got string
}

func (v *stubVerifier) Authenticate(_ context.Context, raw string) (*models.Identity, error) {
	v.got = raw
	return v.id, v.err
}

func TestAuthBearer_ExtractsToken(t *testing.T) {
	var seen string
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = TokenFrom(r.Context())
	})

	cases := map[string]string{
		"Bearer abc":   "abc",
		"bearer  xyz ": "xyz",
		"Basic abc":    "",
		"Bearer ":      "",
		"":             "",
	}

	for header, want := range cases {
		req := makeReq("/")
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		seen = "unset"
		Chain(h, AuthBearer()).ServeHTTP(httptest.NewRecorder(), req)
		require.Equal(t, want, seen, header)
	}
}

func TestAuthenticate(t *testing.T) {
	var seen *models.Identity
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = IdentityFrom(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	// Anonymous requests pass without calling the verifier.
	v := &stubVerifier{}
	rr := httptest.NewRecorder()
	Chain(h, AuthBearer(), Authenticate(v)).ServeHTTP(rr, makeReq("/"))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Nil(t, seen)
	require.Empty(t, v.got)

	// Bad token goes on as anonymous with the error kept.
	var seenErr error
	withErr := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = IdentityFrom(r.Context())
		seenErr = AuthErrorFrom(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	v = &stubVerifier{err: fmt.Errorf("x: %w", service.ErrInvalidToken)}
	req := makeReq("/")
	req.Header.Set("Authorization", "Bearer bad")
	rr = httptest.NewRecorder()
	Chain(withErr, AuthBearer(), Authenticate(v)).ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Nil(t, seen)
	require.ErrorIs(t, seenErr, service.ErrInvalidToken)

	// Good token puts the identity in the context.
	want := &models.Identity{ID: 5, Username: "alice", Role: models.RoleUser}
	v = &stubVerifier{id: want}
	req = makeReq("/")
	req.Header.Set("Authorization", "Bearer good")
	rr = httptest.NewRecorder()
	Chain(h, AuthBearer(), Authenticate(v)).ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "good", v.got)
	require.Equal(t, want, seen)
}

func TestRequireRole(t *testing.T) {
	run := func(id *models.Identity) *httptest.ResponseRecorder {
		req := makeReq("/admin")
		if id != nil {
			req = req.WithContext(WithIdentity(req.Context(), id))
		}
		rr := httptest.NewRecorder()
		Chain(okHandler(), RequireRole(models.RoleAdmin)).ServeHTTP(rr, req)
		return rr
	}

	require.Equal(t, http.StatusUnauthorized, run(nil).Code)
	require.Equal(t, http.StatusForbidden, run(&models.Identity{ID: 1, Role: models.RoleUser}).Code)
	require.Equal(t, http.StatusOK, run(&models.Identity{ID: 1, Role: models.RoleAdmin}).Code)
}

func TestRequireAuth(t *testing.T) {
	run := func(mws ...Middleware) *httptest.ResponseRecorder {
		rr := httptest.NewRecorder()
		Chain(okHandler(), append(mws, RequireAuth())...).ServeHTTP(rr, makeReq("/profile"))
		return rr
	}

	rr := run()
	require.Equal(t, http.StatusUnauthorized, rr.Code)
	require.Equal(t, "unauthenticated", decodeErr(t, rr).Code)

	setErr := func(err error) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				next.ServeHTTP(w, r.WithContext(withAuthError(r.Context(), err)))
			})
		}
	}

	rr = run(setErr(fmt.Errorf("x: %w", service.ErrTokenExpired)))
	require.Equal(t, http.StatusForbidden, rr.Code)
	require.Equal(t, "token_expired", decodeErr(t, rr).Code)

	setID := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), &models.Identity{ID: 1, Role: models.RoleUser})))
		})
	}
	require.Equal(t, http.StatusOK, run(setID).Code)

	// RequireRole reports the kept token error too.
	rr = httptest.NewRecorder()
	Chain(okHandler(), setErr(fmt.Errorf("x: %w", service.ErrInvalidToken)), RequireRole(models.RoleAdmin)).
		ServeHTTP(rr, makeReq("/admin"))
	require.Equal(t, http.StatusForbidden, rr.Code)
	require.Equal(t, "invalid_token", decodeErr(t, rr).Code)
}

func TestCORS(t *testing.T) {
	mw := CORS([]string{"https://siveal.example"})

	req := makeReq("/api/news")
	req.Header.Set("Origin", "https://siveal.example")
	rr := httptest.NewRecorder()
	Chain(okHandler(), mw).ServeHTTP(rr, req)
	require.Equal(t, "https://siveal.example", rr.Header().Get("Access-Control-Allow-Origin"))
	require.Equal(t, "true", rr.Header().Get("Access-Control-Allow-Credentials"))

	req = makeReq("/api/news")
	req.Header.Set("Origin", "https://evil.example")
	rr = httptest.NewRecorder()
	Chain(okHandler(), mw).ServeHTTP(rr, req)
	require.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))

	called := false
	h := http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true })
	req = httptest.NewRequest(http.MethodOptions, "/api/news", nil)
	req.Header.Set("Origin", "https://siveal.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr = httptest.NewRecorder()
	Chain(h, mw).ServeHTTP(rr, req)
	require.Equal(t, http.StatusNoContent, rr.Code)
	require.False(t, called)
	require.Contains(t, rr.Header().Get("Access-Control-Allow-Headers"), "Authorization")

	rr = httptest.NewRecorder()
	Chain(okHandler(), CORS([]string{"*"})).ServeHTTP(rr, makeReq("/"))
	require.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestSecurityHeaders(t *testing.T) {
	rr := httptest.NewRecorder()
	Chain(okHandler(), SecurityHeaders(false)).ServeHTTP(rr, makeReq("/"))
	require.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
	require.Equal(t, "DENY", rr.Header().Get("X-Frame-Options"))
	require.Empty(t, rr.Header().Get("Strict-Transport-Security"))

	rr = httptest.NewRecorder()
	Chain(okHandler(), SecurityHeaders(true)).ServeHTTP(rr, makeReq("/"))
	require.NotEmpty(t, rr.Header().Get("Strict-Transport-Security"))
}

func TestStatusWriter_DefaultsTo200(t *testing.T) {
	sw := newStatusWriter(httptest.NewRecorder())
	require.Equal(t, http.StatusOK, sw.Status())
	require.Same(t, sw, newStatusWriter(sw))

	_, err := sw.Write([]byte("x"))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, sw.Status())
}
