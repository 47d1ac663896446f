package gateway

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter constructs the chi mux with all routes wired.
func (g *Gateway) buildRouter() http.Handler {
	r := chi.NewRouter()

	if g.tracing != nil {
		r.Use(g.tracing)
	}

	// Public — no auth required.
	r.Get("/health", g.handleHealth())
	r.Method(http.MethodGet, "/metrics", g.metrics.Handler())

	// Telegram delivers updates with its own secret-token header; the
	// module's handler validates it. Mounted only when the module
	// registered one.
	if g.telegram != nil {
		r.Post("/webhooks/telegram", g.telegram.ServeHTTP)
	}

	// Remaining webhook sources — HMAC auth per source.
	r.Post("/webhooks/{source}", g.dispatcher.ServeHTTP)

	// Admin endpoints — auth required. Not mounted if no auth configured.
	if g.config.Auth.IsConfigured() {
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware(g.config.Auth, g.audit, g.limiter))
			r.Get("/status", g.handleStatus())
			r.Route("/api", func(r chi.Router) {
				r.Get("/tasks", g.handleListTasks())
				r.Get("/tasks/{id}", g.handleGetTask())
				r.Get("/approvals", g.handleApprovals())
				r.Get("/config", g.handleGetConfig())
				r.Post("/reload", g.handleReload())
				r.Get("/events", g.handleEvents())
			})
		})
	}

	return r
}
