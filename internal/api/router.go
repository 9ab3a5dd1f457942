package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(middleware.RequestSize(maxRequestBodySize))

	r.Route("/api/v1", func(r chi.Router) {
		// Health check (no auth required)
		r.Get("/health", s.handleHealth)

		// WebSocket (ticket checked in the handler when auth is enabled)
		r.Get("/ws", s.handleWebSocket)

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Get("/metrics", s.handleMetrics)
			r.Post("/ws-ticket", s.handleWSTicket)
			r.Get("/discovery", s.handleDiscovery)

			r.Route("/entries", func(r chi.Router) {
				r.Get("/", s.handleListEntries)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetEntry)
					r.Delete("/", s.handleDeleteEntry)
					r.Post("/reload", s.handleReloadEntry)
					r.Post("/options", s.handleStartOptionsFlow)
				})
			})

			r.Route("/flows", func(r chi.Router) {
				r.Post("/", s.handleStartConfigFlow)
				r.Post("/{flowID}", s.handleConfigureFlow)
				r.Delete("/{flowID}", s.handleAbortFlow)
			})

			r.Route("/players", func(r chi.Router) {
				r.Get("/", s.handleListPlayers)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetPlayer)
					r.Get("/state", s.handleGetPlayerState)
					r.Post("/commands", s.handlePlayerCommand)
					r.Post("/services/{service}", s.handlePlayerService)
					r.Get("/image", s.handlePlayerImage)
				})
			})
		})
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	stats := s.players.PlayerStats()
	resp := map[string]any{
		"status":         "ok",
		"version":        s.version,
		"uptime_seconds": int64(time.Since(s.startTime).Seconds()),
		"players":        stats,
	}
	if s.mqtt != nil {
		resp["mqtt_connected"] = s.mqtt.IsConnected()
	}
	writeJSON(w, http.StatusOK, resp)
}
