package http

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/portfolio-api/internal/config"
	"github.com/portfolio-api/internal/domain"
	"github.com/portfolio-api/internal/transport/http/handler"
	appmiddleware "github.com/portfolio-api/internal/transport/http/middleware"
	"golang.org/x/time/rate"
)

// NewRouter builds and returns the application router. ctx bounds the rate
// limiters' background cleanup.
func NewRouter(ctx context.Context, cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	var authMw func(http.Handler) http.Handler
	if deps.Verifier != nil {
		authMw = appmiddleware.Auth(deps.Verifier)
	} else {
		authMw = adminDisabled
	}

	proxies := appmiddleware.ParseTrustedProxies(cfg.TrustedProxies)
	// 5 requests/second, burst of 10, on public writes.
	publicRL := appmiddleware.NewRateLimiter(ctx, rate.Limit(5), 10, proxies...)
	// Login is tighter: 1 request/second, burst of 5.
	loginRL := appmiddleware.NewRateLimiter(ctx, rate.Limit(1), 5, proxies...)

	healthH := handler.NewHealthHandler()
	contactH := handler.NewContactHandler(deps.Contact, deps.Forms)
	visitorH := handler.NewVisitorHandler(deps.Contact)
	resumeH := handler.NewResumeHandler(deps.Resume)
	adminH := handler.NewAdminHandler(deps.Admin)
	feedH := handler.NewFeedHandler(deps.Feed, deps.Desktop, deps.Hub)

	r.Route("/v1", func(r chi.Router) {
		// ── Public routes (no auth) ──────────────────────────────────────────
		r.Get("/health-check/{action}", healthH.Ping)
		r.Get("/resume", resumeH.Download)
		r.With(loginRL.Limit).Post("/admin/sessions", adminH.Login)

		r.Group(func(r chi.Router) {
			r.Use(publicRL.Limit)

			r.Post("/contact", contactH.Submit)
			r.Post("/contact/forms", contactH.NewForm)
			r.Get("/contact/forms/{id}", contactH.GetForm)
			r.Patch("/contact/forms/{id}", contactH.UpdateField)
			r.Post("/contact/forms/{id}/submit", contactH.SubmitForm)
			r.Post("/hire-me-clicks", visitorH.HireMeClick)
			r.Post("/analytics/page-views", visitorH.PageView)
			r.Post("/analytics/contact-form-views", visitorH.ContactFormView)
		})

		// ── Admin routes ─────────────────────────────────────────────────────
		r.Group(func(r chi.Router) {
			r.Use(authMw)
			r.Use(appmiddleware.RequireRole(domain.RoleAdmin))

			r.Get("/admin/feed", feedH.Get)
			r.Delete("/admin/feed", feedH.ClearAll)
			r.Get("/admin/feed/stream", feedH.Stream)
			r.Put("/admin/feed/permission", feedH.SetPermission)
			r.Delete("/admin/feed/{id}", feedH.Dismiss)
			r.Get("/admin/feed/{id}/action", feedH.Action)
			r.Put("/admin/resume", resumeH.Upload)
		})
	})

	return r
}

func adminDisabled(http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "admin access is not configured"})
	})
}
