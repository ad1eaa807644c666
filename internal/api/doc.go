// Package api implements the HTTP REST API of the pizza service.
//
// This package provides:
//   - Auth endpoints: register, login and logout under /api/auth
//   - User, order, menu and franchise endpoints backed by pizza.Repository
//   - Principal resolution from the token cookie or a Bearer header
//   - Middleware stack (request ID, logging, recovery, CORS, body limit)
//   - TLS support for production deployments
//
// # Security
//
// A request is authenticated only if its token has a live session record and
// a valid signature, checked in that order. Logout and password changes
// delete session records, so a revoked token stops working immediately even
// though its signature is still valid.
//
// # Errors
//
// Store errors are mapped to status codes in one place (writeStoreError):
// not found 404, invalid input 400, conflict 409, unauthenticated 401,
// forbidden 403, pool exhaustion 503. Internal causes are logged with the
// request ID and never returned to the client.
//
// # Graceful Degradation
//
// Order events and business metrics are optional. When the broker or the
// metrics store is down, orders still succeed and the failure is logged.
//
// Lifecycle:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
package api
