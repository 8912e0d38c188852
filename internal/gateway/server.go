package gateway

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// buildRouter constructs the chi mux with all routes wired.
func (g *Gateway) buildRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	// Public, no auth required.
	r.Get("/health", g.handleHealth())
	if g.deps.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(g.deps.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/v1", func(r chi.Router) {
		if g.config.Auth.IsConfigured() {
			r.Use(authMiddleware(g.config.Auth, g.logger))
		}
		r.Use(middleware.RequestSize(g.config.MaxBodyBytes))

		r.Get("/status", g.handleStatus())
		r.Get("/models", g.handleModels())
		r.Route("/users/{id}", func(r chi.Router) {
			r.Post("/requests", g.handleSubmit())
			r.Post("/cancel", g.handleCancel())
			r.Post("/retry", g.handleRetry())
			r.Post("/dialogs", g.handleNewDialog())
			r.Get("/status", g.handleUserStatus())
			r.Get("/balance", g.handleBalance())
			r.Get("/usage", g.handleUsage())
			r.Put("/model", g.handleSetModel())
			r.Put("/mode", g.handleSetChatMode())
			r.Post("/charges", g.handleCharge())
		})
	})

	return r
}
