package api

import (
	"net/http"

	"github.com/nerrad567/pizza-service/internal/audit"
	"github.com/nerrad567/pizza-service/internal/auth"
	"github.com/nerrad567/pizza-service/internal/pizza"
)

// handleMe returns the authenticated principal.
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, principalFromContext(r.Context()))
}

// handleUpdateUser changes a user's name, email or password. Users may edit
// themselves and get a fresh session back; admins may edit anyone, and an
// edit of another user returns only the user so no session is minted for
// someone who is not at the keyboard. A password change ends every existing
// session of the user.
func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "userID")
	if !ok {
		return
	}
	principal := principalFromContext(r.Context())
	if err := auth.RequireUserAccess(principal, id); err != nil {
		s.writeStoreError(w, r, "update user", err)
		return
	}

	var upd pizza.UserUpdate
	if !decodeJSON(w, r, &upd) {
		return
	}

	user, err := s.repo.UpdateUser(r.Context(), id, upd)
	if err != nil {
		s.writeStoreError(w, r, "update user", err)
		return
	}

	if upd.ChangesPassword() {
		n, err := s.sessions.RevokeAllForUser(r.Context(), id)
		if err != nil {
			s.writeStoreError(w, r, "update user", err)
			return
		}
		s.logger.Info("password changed, sessions revoked", "user_id", id, "sessions", n)
	}

	if principal.ID != id {
		s.auditLog(audit.ActionUpdate, audit.EntityUser, id, principal.ID, map[string]any{
			"password_changed": upd.ChangesPassword(),
		})
		writeJSON(w, http.StatusOK, sessionResponse{User: user})
		return
	}

	token, err := s.startSession(r.Context(), user)
	if err != nil {
		s.writeStoreError(w, r, "update user", err)
		return
	}
	setTokenCookie(w, token)
	writeJSON(w, http.StatusOK, sessionResponse{User: user, Token: token})
}

// handleListUsers returns a page of users. Query: page (0-based), limit, name
// (glob with * wildcard).
func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	page := queryInt(r, "page", 0)
	limit := queryInt(r, "limit", pizza.DefaultUsersPerPage)

	users, more, err := s.repo.ListUsers(r.Context(), page, limit, r.URL.Query().Get("name"))
	if err != nil {
		s.writeStoreError(w, r, "list users", err)
		return
	}
	if users == nil {
		users = []auth.User{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"users": users,
		"more":  more,
	})
}

// handleDeleteUser removes a user with all of their orders and sessions.
// Admins cannot delete themselves.
func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "userID")
	if !ok {
		return
	}
	principal := principalFromContext(r.Context())
	if principal.ID == id {
		writeBadRequest(w, "you cannot delete yourself")
		return
	}

	target, err := s.repo.GetUserByID(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, r, "delete user", err)
		return
	}
	if err := s.repo.DeleteUser(r.Context(), target.Email); err != nil {
		s.writeStoreError(w, r, "delete user", err)
		return
	}

	s.logger.Info("user deleted", "user_id", id, "deleted_by", principal.ID)
	s.auditLog(audit.ActionDelete, audit.EntityUser, id, principal.ID, map[string]any{"email": target.Email})
	writeJSON(w, http.StatusOK, map[string]string{"message": "user deleted"})
}
