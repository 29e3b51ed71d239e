package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"time"

	apierrors "github.com/pribylovaa/siveal/internal/errors"
	"github.com/pribylovaa/siveal/internal/pkg/log"
)

// RateLimitStore is the sliding-window backend of the limiter.
// cache.RedisStore and cache.MemoryStore implement it.
type RateLimitStore interface {
	TrimWindow(ctx context.Context, identifier string, window time.Duration, reference time.Time) error
	CountAttempts(ctx context.Context, identifier string, window time.Duration, reference time.Time) (int, error)
	RecordAttempt(ctx context.Context, identifier string, at time.Time) error
	OldestAttempt(ctx context.Context, identifier string, window time.Duration, reference time.Time) (time.Time, bool, error)
}

// IdentifierFunc picks the key a rule is scoped to (client IP by default).
type IdentifierFunc func(*http.Request) (string, bool)

// RateLimitRule allows at most Limit requests per Window for one identifier.
type RateLimitRule struct {
	Name       string
	Limit      int
	Window     time.Duration
	Identifier IdentifierFunc
}

// RateLimiter enforces rules over a RateLimitStore.
type RateLimiter struct {
	store RateLimitStore
	now   func() time.Time
}

type ruleResult struct {
	allowed    bool
	limit      int
	remaining  int
	reset      time.Time
	retryAfter time.Duration
}

// NewRateLimiter returns a limiter. A nil store disables limiting.
func NewRateLimiter(store RateLimitStore) *RateLimiter {
	return &RateLimiter{store: store, now: time.Now}
}

// WithClock replaces the clock; used by tests.
func (rl *RateLimiter) WithClock(now func() time.Time) *RateLimiter {
	if now != nil {
		rl.now = now
	}
	return rl
}

// ClientIP scopes a rule by the remote address host.
// Behind a proxy, chi's RealIP middleware must run first.
func ClientIP() IdentifierFunc {
	return func(r *http.Request) (string, bool) {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		return host, host != ""
	}
}

// Limit returns a middleware enforcing rules. Rules with a zero limit or
// window are dropped. Store failures are logged and let the request through.
func (rl *RateLimiter) Limit(rules ...RateLimitRule) Middleware {
	filtered := make([]RateLimitRule, 0, len(rules))
	for _, rule := range rules {
		if rule.Limit <= 0 || rule.Window <= 0 {
			continue
		}
		if rule.Identifier == nil {
			rule.Identifier = ClientIP()
		}
		if rule.Name == "" {
			rule.Name = "default"
		}
		filtered = append(filtered, rule)
	}

	return func(next http.Handler) http.Handler {
		if rl == nil || rl.store == nil || len(filtered) == 0 {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			now := rl.now()
			var best *ruleResult

			for _, rule := range filtered {
				identifier, ok := rule.Identifier(r)
				if !ok {
					continue
				}

				key := rule.Name + ":" + identifier

				res, err := rl.evaluate(r.Context(), rule, key, now)
				if err != nil {
					log.From(r.Context()).Warn("rate_limit_check_failed",
						slog.String("rule", rule.Name),
						slog.String("err", err.Error()),
					)
					continue
				}

				if !res.allowed {
					applyHeaders(w, res)
					log.From(r.Context()).Warn("rate_limited",
						slog.String("rule", rule.Name),
						slog.String("identifier", identifier),
					)
					apierrors.WriteError(w, r, fmt.Errorf("middleware/RateLimit %s: %w", rule.Name, apierrors.ErrRateLimited))
					return
				}

				if best == nil || res.remaining < best.remaining ||
					(res.remaining == best.remaining && res.reset.Before(best.reset)) {
					snapshot := res
					best = &snapshot
				}
			}

			if best != nil {
				applyHeaders(w, *best)
			}

			next.ServeHTTP(w, r)
		})
	}
}

func (rl *RateLimiter) evaluate(ctx context.Context, rule RateLimitRule, key string, now time.Time) (ruleResult, error) {
	if err := rl.store.TrimWindow(ctx, key, rule.Window, now); err != nil {
		return ruleResult{}, err
	}

	count, err := rl.store.CountAttempts(ctx, key, rule.Window, now)
	if err != nil {
		return ruleResult{}, err
	}

	oldest, hasAttempts, err := rl.store.OldestAttempt(ctx, key, rule.Window, now)
	if err != nil {
		return ruleResult{}, err
	}

	res := ruleResult{
		allowed: true,
		limit:   rule.Limit,
		reset:   now.Add(rule.Window),
	}

	if hasAttempts {
		res.reset = oldest.Add(rule.Window)
	}

	res.retryAfter = res.reset.Sub(now)
	if res.retryAfter < 0 {
		res.retryAfter = 0
	}

	if count >= rule.Limit {
		res.allowed = false
		return res, nil
	}

	if err := rl.store.RecordAttempt(ctx, key, now); err != nil {
		return ruleResult{}, err
	}

	res.remaining = rule.Limit - count - 1
	if res.remaining < 0 {
		res.remaining = 0
	}

	return res, nil
}

func applyHeaders(w http.ResponseWriter, res ruleResult) {
	h := w.Header()
	h.Set("X-RateLimit-Limit", strconv.Itoa(res.limit))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(res.remaining))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(res.reset.Unix(), 10))

	if !res.allowed {
		h.Set("Retry-After", strconv.Itoa(int(math.Ceil(res.retryAfter.Seconds()))))
	}
}
