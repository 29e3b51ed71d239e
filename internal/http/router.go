// Package http assembles the SIVEAL REST router.
package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/pribylovaa/siveal/internal/config"
	apierrors "github.com/pribylovaa/siveal/internal/errors"
	"github.com/pribylovaa/siveal/internal/http/handlers"
	"github.com/pribylovaa/siveal/internal/http/middleware"
	"github.com/pribylovaa/siveal/internal/models"
	"github.com/pribylovaa/siveal/internal/service"
)

// Options are the router build parameters.
type Options struct {
	Logger   *slog.Logger
	Timeout  time.Duration
	BasePath string // "/api"; empty registers the API on the root

	CORSOrigins []string
	HSTS        bool

	// RateLimit rules are enforced over RateStore. A nil store or
	// RateLimit.Disabled turns limiting off.
	RateLimit config.RateLimitConfig
	RateStore middleware.RateLimitStore

	// Metrics may be nil.
	Metrics *middleware.HTTPMetrics
}

// NewRouter builds the http.Handler with chi, the middleware chain and the routes.
func NewRouter(svc *service.Service, opts Options) http.Handler {
	root := chi.NewRouter()

	// Outermost first.
	root.Use(
		middleware.Recover(),
		middleware.RequestID(), // before Logging
		chimw.RealIP,           // before anything that reads the client address
		middleware.Logging(opts.Logger),
		opts.Metrics.Handler(),
		middleware.SecurityHeaders(opts.HSTS),
		middleware.CORS(opts.CORSOrigins), // answers preflight itself
		middleware.AuthBearer(),
		middleware.Authenticate(svc),
	)
	if opts.Timeout > 0 {
		root.Use(middleware.Timeout(opts.Timeout))
	}

	setFallbacks(root)

	var limiter *middleware.RateLimiter
	if !opts.RateLimit.Disabled && opts.RateStore != nil {
		limiter = middleware.NewRateLimiter(opts.RateStore)
	}

	h := handlers.New(svc)

	root.Get("/rss.xml", h.RSS)

	if opts.BasePath != "" {
		sub := chi.NewRouter()
		setFallbacks(sub)
		registerRoutes(sub, h, limiter, opts.RateLimit)
		root.Mount(opts.BasePath, sub)
		return root
	}

	registerRoutes(root, h, limiter, opts.RateLimit)
	return root
}

func setFallbacks(r chi.Router) {
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		apierrors.WriteError(w, r, apierrors.ErrRouteNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		apierrors.WriteError(w, r, apierrors.ErrMethodNotAllowed)
	})
}

func rule(name string, r config.RateRule) middleware.RateLimitRule {
	return middleware.RateLimitRule{Name: name, Limit: r.Limit, Window: r.Window}
}

// registerRoutes is the single place where REST endpoints are registered.
func registerRoutes(root chi.Router, h *handlers.Handlers, rl *middleware.RateLimiter, rules config.RateLimitConfig) {
	root.Group(func(r chi.Router) {
		r.Use(rl.Limit(rule("general", rules.General)))
		apiRoutes(r, h, rl, rules)
	})
}

func apiRoutes(r chi.Router, h *handlers.Handlers, rl *middleware.RateLimiter, rules config.RateLimitConfig) {
	authLimit := rl.Limit(rule("auth", rules.Auth))
	commentLimit := rl.Limit(rule("comment", rules.Comment))
	newsletterLimit := rl.Limit(rule("newsletter", rules.Newsletter))

	authed := middleware.RequireAuth()
	admin := middleware.RequireRole(models.RoleAdmin)
	staff := middleware.RequireRole(models.RoleAdmin, models.RoleModerator)

	// auth
	r.With(authLimit).Post("/auth/register", h.Register)
	r.With(authLimit).Post("/auth/login", h.Login)
	r.With(authed).Post("/auth/logout", h.Logout)
	r.With(authed).Get("/auth/status", h.Status)

	// users
	r.With(authed).Get("/profile", h.Profile)
	r.With(authed).Put("/profile", h.UpdateProfile)
	r.With(admin).Get("/users", h.ListUsers)
	r.With(admin).Delete("/users/{id}", h.DeleteUser)
	r.With(admin).Get("/admin/stats", h.AdminStats)

	// news
	r.Get("/news", h.ListNews)
	r.With(admin).Post("/news", h.CreateArticle)
	r.Get("/news/{id}", h.GetArticle)
	r.With(admin).Put("/news/{id}", h.UpdateArticle)
	r.With(admin).Delete("/news/{id}", h.DeleteArticle)
	r.Post("/news/{id}/view", h.IncrementView)

	// comments
	for _, prefix := range []string{"/comments", "/news/comments"} {
		r.Get(prefix+"/{articleId}", h.ListComments)
		r.With(commentLimit).Post(prefix+"/{articleId}", h.CreateComment)
	}
	r.With(authed).Put("/comments/id/{id}", h.EditComment)
	r.With(authed).Delete("/comments/id/{id}", h.DeleteComment)
	r.With(staff).Post("/comments/id/{id}/restore", h.RestoreComment)
	r.Post("/comments/id/{id}/like", h.LikeComment)
	r.Post("/comments/id/{id}/dislike", h.DislikeComment)
	r.With(authed).Post("/comments/id/{id}/report", h.ReportComment)

	// newsletter
	r.With(newsletterLimit).Post("/newsletter/subscribe", h.Subscribe)
	r.Post("/newsletter/unsubscribe", h.Unsubscribe)
	r.With(admin).Get("/newsletter/subscribers", h.ListSubscribers)
	r.With(admin).Get("/newsletter/statistics", h.Statistics)
	r.With(admin).Put("/newsletter/preferences/{email}", h.UpdatePreferences)
	r.Get("/newsletter/health", h.NewsletterHealth)

	// images
	r.With(admin).Post("/upload/presign", h.ImageUploadURL)
	r.With(authed).Get("/images", h.ListImages)
	r.Get("/images/{id}", h.ImageInfo)
	r.With(admin).Delete("/images/{id}", h.DeleteImage)
}
