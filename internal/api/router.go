package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// healthCheckTimeout bounds the pool probe behind /api/health.
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
	r.Use(s.principalMiddleware)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Route("/auth", func(r chi.Router) {
			r.Post("/", s.handleRegister)
			r.Put("/", s.handleLogin)
			r.With(s.requireAuth).Delete("/", s.handleLogout)
		})

		r.Route("/user", func(r chi.Router) {
			r.Use(s.requireAuth)
			r.Get("/me", s.handleMe)
			r.Put("/{userID}", s.handleUpdateUser)
			r.With(s.requireAdmin).Get("/", s.handleListUsers)
			r.With(s.requireAdmin).Delete("/{userID}", s.handleDeleteUser)
		})

		r.Route("/order", func(r chi.Router) {
			r.Get("/menu", s.handleGetMenu)
			r.With(s.requireAuth, s.requireAdmin).Put("/menu", s.handleAddMenuItem)

			r.Group(func(r chi.Router) {
				r.Use(s.requireAuth)
				r.Get("/", s.handleListOrders)
				r.Post("/", s.handleCreateOrder)
			})
		})

		r.With(s.requireAuth, s.requireAdmin).Get("/audit", s.handleListAuditLogs)

		r.Route("/franchise", func(r chi.Router) {
			// Anonymous callers may browse; admins see more.
			r.Get("/", s.handleListFranchises)

			r.Group(func(r chi.Router) {
				r.Use(s.requireAuth)
				// {id} is a user id on GET and a franchise id elsewhere; chi
				// needs one parameter name per path position.
				r.Get("/{id}", s.handleUserFranchises)
				r.With(s.requireAdmin).Post("/", s.handleCreateFranchise)
				r.With(s.requireAdmin).Delete("/{id}", s.handleDeleteFranchise)
				r.Post("/{id}/store", s.handleCreateStore)
				r.Delete("/{id}/store/{storeID}", s.handleDeleteStore)
			})
		})
	})

	return r
}

// handleHealth reports service health including connection pool usage.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	status := "healthy"
	code := http.StatusOK
	if err := s.pool.HealthCheck(ctx); err != nil {
		s.logger.Warn("health check failed", "error", err)
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	writeJSON(w, code, map[string]any{
		"status":   status,
		"version":  s.version,
		"database": s.pool.Stats(),
	})
}
