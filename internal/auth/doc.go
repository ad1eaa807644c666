// Package auth provides identity and authorisation for the pizza service.
//
// It covers:
//   - Password digests (bcrypt by default, Argon2id PHC accepted and optional)
//   - HS256 bearer tokens carrying the principal and its role assignments
//   - Server-side session liveness keyed by the token's signature segment
//   - Role checks: diner, admin, and franchisee scoped to one franchise
//
// A token is only accepted when its signature verifies AND its session row
// exists. Logout deletes the row, so a revoked token stops working before
// it expires. There is no role hierarchy: admin is checked explicitly, and a
// franchisee assignment grants nothing outside its own franchise.
package auth
