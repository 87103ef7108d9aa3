package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ngocmanh2004/demo-security/internal/auth"
)

// healthCheckTimeout bounds the database check in /health.
const healthCheckTimeout = 2 * time.Second

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)
	r.Use(s.authGate)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Route("/auth", func(r chi.Router) {
			r.Post("/login", s.handleLogin)
			r.Post("/renew", s.handleRenew)
			r.Post("/logout", s.handleLogout)
			r.Post("/register", s.handleRegister)
			r.Get("/validate", s.handleValidate)
		})

		r.With(s.requireRole(auth.RoleUser, auth.RoleAdmin)).Get("/user/profile", s.handleProfile)

		r.Route("/admin", func(r chi.Router) {
			// The stream authenticates with a ticket, not a bearer token.
			r.Get("/events/ws", s.handleWebSocket)

			r.Group(func(r chi.Router) {
				r.Use(s.requireRole(auth.RoleAdmin))

				r.With(s.requirePermission(auth.PermUserRead)).Get("/users", s.handleListUsers)
				r.With(s.requirePermission(auth.PermUserManage)).Patch("/users/{username}", s.handleUpdateUser)
				r.With(s.requirePermission(auth.PermSessionAdmin)).Post("/users/{username}/logout", s.handleLogoutEverywhere)
				r.With(s.requirePermission(auth.PermAuditRead)).Get("/audit", s.handleListAuditLogs)
				r.With(s.requirePermission(auth.PermEventStream)).Post("/events/ticket", s.handleEventTicket)
				r.Get("/metrics", s.handleMetrics)
			})
		})
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()
		if err := s.db.HealthCheck(ctx); err != nil {
			s.logger.Warn("health check failed", "component", "database", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{
				"status":  "degraded",
				"version": s.version,
			})
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
	})
}
