package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/pribylovaa/siveal/internal/cache"
	"github.com/stretchr/testify/require"
)

type failingStore struct{ err error }

func (f failingStore) TrimWindow(context.Context, string, time.Duration, time.Time) error {
	return f.err
}

func (f failingStore) CountAttempts(context.Context, string, time.Duration, time.Time) (int, error) {
	return 0, f.err
}

func (f failingStore) RecordAttempt(context.Context, string, time.Time) error { return f.err }

func (f failingStore) OldestAttempt(context.Context, string, time.Duration, time.Time) (time.Time, bool, error) {
	return time.Time{}, false, f.err
}

func TestRateLimiter_SlidingWindow(t *testing.T) {
	now := time.Date(2026, 10, 14, 10, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	rl := NewRateLimiter(cache.NewMemoryStore()).WithClock(clock)
	h := Chain(okHandler(), rl.Limit(RateLimitRule{Name: "comment", Limit: 3, Window: time.Minute}))

	for i := 0; i < 3; i++ {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, makeReq("/api/comments/1"))
		require.Equal(t, http.StatusOK, rr.Code)
		require.Equal(t, "3", rr.Header().Get("X-RateLimit-Limit"))
		require.Equal(t, strconv.Itoa(2-i), rr.Header().Get("X-RateLimit-Remaining"))
		now = now.Add(10 * time.Second)
	}

	// 4th request within the minute is rejected.
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, makeReq("/api/comments/1"))
	require.Equal(t, http.StatusTooManyRequests, rr.Code)
	require.Equal(t, "rate_limited", decodeErr(t, rr).Code)
	require.Equal(t, "0", rr.Header().Get("X-RateLimit-Remaining"))
	// The oldest attempt was 30s ago, so it leaves the window in 30s.
	require.Equal(t, "30", rr.Header().Get("Retry-After"))

	// Another client is not affected.
	req := makeReq("/api/comments/1")
	req.RemoteAddr = "10.1.1.1:4000"
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	// Once the first attempt slides out, one more request fits.
	now = now.Add(31 * time.Second)
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, makeReq("/api/comments/1"))
	require.Equal(t, http.StatusOK, rr.Code)
}

func TestRateLimiter_RulesAreIndependent(t *testing.T) {
	store := cache.NewMemoryStore()
	rl := NewRateLimiter(store)

	general := rl.Limit(RateLimitRule{Name: "general", Limit: 100, Window: time.Minute})
	auth := rl.Limit(RateLimitRule{Name: "auth", Limit: 1, Window: time.Minute})
	h := Chain(okHandler(), general, auth)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, makeReq("/api/auth/login"))
	require.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, makeReq("/api/auth/login"))
	require.Equal(t, http.StatusTooManyRequests, rr.Code)

	// The general rule counted both requests.
	n, err := store.CountAttempts(context.Background(), "general:127.0.0.1", time.Minute, time.Now())
	require.NoError(t, err)
	require.Equal(t, 2, n)
}

func TestRateLimiter_FailOpen(t *testing.T) {
	rl := NewRateLimiter(failingStore{err: errors.New("redis down")})
	h := Chain(okHandler(), rl.Limit(RateLimitRule{Name: "general", Limit: 1, Window: time.Minute}))

	for i := 0; i < 3; i++ {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, makeReq("/"))
		require.Equal(t, http.StatusOK, rr.Code)
		require.Empty(t, rr.Header().Get("X-RateLimit-Limit"))
	}
}

func TestRateLimiter_Disabled(t *testing.T) {
	var nilLimiter *RateLimiter
	h := Chain(okHandler(), nilLimiter.Limit(RateLimitRule{Limit: 1, Window: time.Minute}))
	for i := 0; i < 3; i++ {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, makeReq("/"))
		require.Equal(t, http.StatusOK, rr.Code)
	}

	h = Chain(okHandler(), NewRateLimiter(cache.NewMemoryStore()).Limit(RateLimitRule{Limit: 0, Window: time.Minute}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, makeReq("/"))
	require.Equal(t, http.StatusOK, rr.Code)
}
