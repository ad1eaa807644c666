package api

import (
	"net/http"

	"github.com/nerrad567/pizza-service/internal/audit"
	"github.com/nerrad567/pizza-service/internal/auth"
	"github.com/nerrad567/pizza-service/internal/pizza"
)

type createStoreRequest struct {
	Name string `json:"name"`
}

// handleListFranchises returns a page of franchises. Query: page (0-based),
// limit, name (glob with * wildcard). Admin callers also get franchise
// admins and store revenue.
func (s *Server) handleListFranchises(w http.ResponseWriter, r *http.Request) {
	page := queryInt(r, "page", 0)
	limit := queryInt(r, "limit", 0)

	franchises, more, err := s.repo.ListFranchises(r.Context(), principalFromContext(r.Context()),
		page, limit, r.URL.Query().Get("name"))
	if err != nil {
		s.writeStoreError(w, r, "list franchises", err)
		return
	}
	if franchises == nil {
		franchises = []pizza.Franchise{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"franchises": franchises,
		"more":       more,
	})
}

// handleUserFranchises returns the franchises a user runs. Callers may ask
// about themselves; admins may ask about anyone.
func (s *Server) handleUserFranchises(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if !auth.CanModifyUser(principalFromContext(r.Context()), userID) {
		// Other users' franchises read as empty.
		writeJSON(w, http.StatusOK, []pizza.Franchise{})
		return
	}

	franchises, err := s.repo.GetFranchisesForUser(r.Context(), userID)
	if err != nil {
		s.writeStoreError(w, r, "list user franchises", err)
		return
	}
	if franchises == nil {
		franchises = []pizza.Franchise{}
	}
	writeJSON(w, http.StatusOK, franchises)
}

// handleCreateFranchise creates a franchise with its admins, named by email.
func (s *Server) handleCreateFranchise(w http.ResponseWriter, r *http.Request) {
	var req pizza.NewFranchise
	if !decodeJSON(w, r, &req) {
		return
	}

	franchise, err := s.repo.CreateFranchise(r.Context(), req)
	if err != nil {
		s.writeStoreError(w, r, "create franchise", err)
		return
	}

	s.logger.Info("franchise created", "franchise_id", franchise.ID, "admins", len(franchise.Admins))
	s.auditLog(audit.ActionCreate, audit.EntityFranchise, franchise.ID, actorID(r), map[string]any{"name": franchise.Name})
	writeJSON(w, http.StatusOK, franchise)
}

// handleDeleteFranchise removes a franchise, its stores and role grants.
func (s *Server) handleDeleteFranchise(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	if err := s.repo.DeleteFranchise(r.Context(), id); err != nil {
		s.writeStoreError(w, r, "delete franchise", err)
		return
	}

	s.logger.Info("franchise deleted", "franchise_id", id)
	s.auditLog(audit.ActionDelete, audit.EntityFranchise, id, actorID(r), nil)
	writeJSON(w, http.StatusOK, map[string]string{"message": "franchise deleted"})
}

// handleCreateStore opens a store. Admins and the franchise's own
// franchisees may do this.
func (s *Server) handleCreateStore(w http.ResponseWriter, r *http.Request) {
	franchiseID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := auth.RequireFranchiseAccess(principalFromContext(r.Context()), franchiseID); err != nil {
		s.writeStoreError(w, r, "create store", err)
		return
	}

	var req createStoreRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	store, err := s.repo.CreateStore(r.Context(), franchiseID, req.Name)
	if err != nil {
		s.writeStoreError(w, r, "create store", err)
		return
	}
	s.auditLog(audit.ActionCreate, audit.EntityStore, store.ID, actorID(r), map[string]any{
		"franchise_id": franchiseID,
		"name":         store.Name,
	})
	writeJSON(w, http.StatusOK, store)
}

// handleDeleteStore closes a store of the franchise.
func (s *Server) handleDeleteStore(w http.ResponseWriter, r *http.Request) {
	franchiseID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	storeID, ok := pathID(w, r, "storeID")
	if !ok {
		return
	}
	if err := auth.RequireFranchiseAccess(principalFromContext(r.Context()), franchiseID); err != nil {
		s.writeStoreError(w, r, "delete store", err)
		return
	}

	if err := s.repo.DeleteStore(r.Context(), franchiseID, storeID); err != nil {
		s.writeStoreError(w, r, "delete store", err)
		return
	}
	s.auditLog(audit.ActionDelete, audit.EntityStore, storeID, actorID(r), map[string]any{"franchise_id": franchiseID})
	writeJSON(w, http.StatusOK, map[string]string{"message": "store deleted"})
}
