package api

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gatekeeper/internal/auth"
)

// healthCheckTimeout bounds each dependency check in /health.
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

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeNotFound(w, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, ErrCodeMethodNotAllow, "method not allowed")
	})

	if s.metricsCfg.Enabled && s.metricsHandler != nil {
		r.Handle(s.metricsCfg.Path, s.metricsHandler)
	}

	r.Route("/api/v1", func(r chi.Router) {
		// Health check (no auth required)
		r.Get("/health", s.handleHealth)

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.With(s.requireAuthenticated).Get("/auth/me", s.handleMe)

			r.Route("/ranks", func(r chi.Router) {
				anyRank := s.requireRoles(auth.RoleUserRankAdd, auth.RoleUserRankEdit, auth.RoleUserRankDelete)

				r.With(anyRank).Get("/", s.handleListRanks)
				r.With(s.requireRoles(auth.RoleUserRankAdd)).Post("/", s.handleCreateRank)
				r.With(anyRank).Get("/{name}/roles", s.handleRankRoles)
				r.With(s.requireRoles(auth.RoleUserRankEdit)).Put("/{name}/permissions", s.handleUpdateRankPermissions)
			})

			r.Route("/users", func(r chi.Router) {
				r.With(s.requireRoles(auth.RoleUserAdd)).Post("/", s.handleCreateUser)
				r.With(s.requireRoles(auth.RoleUserEdit)).Patch("/{username}/status", s.handleSetUserStatus)
			})

			r.With(s.requireRoles(auth.RoleUserAccountEdit)).Get("/audit", s.handleListAuditLogs)
		})
	})

	return r
}

// handleHealth returns the server health status and the state of each
// registered dependency. Any failing dependency makes the response 503.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	names := make([]string, 0, len(s.health))
	for name := range s.health {
		names = append(names, name)
	}
	sort.Strings(names)

	status := "ok"
	code := http.StatusOK
	components := make(map[string]string, len(names))
	for _, name := range names {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		err := s.health[name].HealthCheck(ctx)
		cancel()

		if err != nil {
			s.logger.Warn("health check failed", "component", name, "error", err)
			components[name] = "unhealthy"
			status = "degraded"
			code = http.StatusServiceUnavailable
			continue
		}
		components[name] = "ok"
	}

	writeJSON(w, code, map[string]any{
		"status":         status,
		"version":        s.version,
		"uptime_seconds": int64(time.Since(s.startTime).Seconds()),
		"components":     components,
	})
}
