package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/pizza-service/internal/auth"
	"github.com/nerrad567/pizza-service/internal/pizza"
)

// registerRequest is the request body for POST /api/auth.
type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// loginRequest is the request body for PUT /api/auth.
type loginRequest struct {
	Email    string  `json:"email"`
	Password *string `json:"password"`
}

// sessionResponse is returned by register, login and user update.
type sessionResponse struct {
	User  *auth.User `json:"user"`
	Token string     `json:"token,omitempty"`
}

// handleRegister creates a diner account and logs it in. Roles in the body
// are ignored; self-registration only ever yields a diner.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Name == "" || req.Email == "" || req.Password == "" {
		writeBadRequest(w, "name, email, and password are required")
		return
	}

	user, err := s.repo.CreateUser(r.Context(), pizza.NewUser{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		s.writeStoreError(w, r, "register", err)
		return
	}

	token, err := s.startSession(r.Context(), user)
	if err != nil {
		s.writeStoreError(w, r, "register", err)
		return
	}

	s.recordAuthAttempt(AuthRegister)
	s.logger.Info("user registered", "user_id", user.ID)
	setTokenCookie(w, token)
	writeJSON(w, http.StatusOK, sessionResponse{User: user, Token: token})
}

// handleLogin checks credentials and opens a new session. Every login gets
// its own token, so logging out one client leaves the others signed in.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Email == "" || req.Password == nil {
		writeBadRequest(w, "email and password are required")
		return
	}

	user, err := s.repo.AuthenticateUser(r.Context(), req.Email, req.Password)
	if err != nil {
		s.recordAuthAttempt(AuthFailure)
		s.writeStoreError(w, r, "login", err)
		return
	}

	token, err := s.startSession(r.Context(), user)
	if err != nil {
		s.writeStoreError(w, r, "login", err)
		return
	}

	s.recordAuthAttempt(AuthSuccess)
	setTokenCookie(w, token)
	writeJSON(w, http.StatusOK, sessionResponse{User: user, Token: token})
}

// handleLogout ends the session of the presented token.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Revoke(r.Context(), tokenFromContext(r.Context())); err != nil {
		s.writeStoreError(w, r, "logout", err)
		return
	}

	s.recordAuthAttempt(AuthLogout)
	clearTokenCookie(w)
	writeJSON(w, http.StatusOK, map[string]string{"message": "logout successful"})
}

// startSession issues a token for user and records it as live.
func (s *Server) startSession(ctx context.Context, user *auth.User) (string, error) {
	token, err := s.tokens.Issue(user)
	if err != nil {
		return "", fmt.Errorf("issuing token: %w", err)
	}
	if err := s.sessions.Record(ctx, user.ID, token); err != nil {
		return "", err
	}
	return token, nil
}

func (s *Server) recordAuthAttempt(outcome string) {
	if s.metrics != nil {
		s.metrics.RecordAuthAttempt(outcome)
	}
}

// setTokenCookie hands the token to browsers. JavaScript cannot read it and
// it is not sent on cross-site subrequests.
func setTokenCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     tokenCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
	})
}

func clearTokenCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     tokenCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
	})
}

// decodeJSON reads the request body into v, writing a 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return false
	}
	return true
}

// pathID parses a numeric URL parameter, writing a 400 on failure.
func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		writeBadRequest(w, "invalid "+name)
		return 0, false
	}
	return id, true
}

// queryInt parses an optional integer query parameter, returning def when
// absent or malformed.
func queryInt(r *http.Request, name string, def int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil {
		return def
	}
	return v
}
