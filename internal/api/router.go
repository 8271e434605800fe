package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		// Health check (no auth required)
		r.Get("/health", s.handleHealth)

		// Auth endpoints (no auth required)
		r.Post("/auth/login", s.handleLogin)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			// WS ticket requires authentication; the caller trades the
			// bearer token for a short-lived connection ticket.
			r.Post("/auth/ws-ticket", s.handleWSTicket)

			// Entity endpoints
			r.Route("/entities", func(r chi.Router) {
				r.Get("/", s.handleListEntities)
				r.Get("/{id}", s.handleGetEntity)
				r.Post("/{id}/command", s.handleEntityCommand)
			})

			// Config entry and flow endpoints
			r.Route("/config", func(r chi.Router) {
				r.Route("/entries", func(r chi.Router) {
					r.Get("/", s.handleListEntries)
					r.Delete("/{id}", s.handleDeleteEntry)
					r.Post("/{id}/reload", s.handleReloadEntry)
				})
				r.Route("/flows", func(r chi.Router) {
					r.Get("/handlers", s.handleFlowHandlers)
					r.Post("/", s.handleStartFlow)
					r.Post("/{id}", s.handleContinueFlow)
				})
			})

			// Integration inventory
			r.Get("/integrations", s.handleListIntegrations)

			// WebSocket (auth via ticket, validated in handler)
			r.Get("/ws", s.handleWebSocket)
		})
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
	})
}
