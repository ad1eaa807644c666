package api

import (
	"net/http"

	"github.com/nerrad567/pizza-service/internal/audit"
	"github.com/nerrad567/pizza-service/internal/pizza"
)

// handleGetMenu returns the full menu. No authentication is needed.
func (s *Server) handleGetMenu(w http.ResponseWriter, r *http.Request) {
	items, err := s.repo.ListMenu(r.Context())
	if err != nil {
		s.writeStoreError(w, r, "list menu", err)
		return
	}
	if items == nil {
		items = []pizza.MenuItem{}
	}
	writeJSON(w, http.StatusOK, items)
}

// handleAddMenuItem adds an item and returns the updated menu.
func (s *Server) handleAddMenuItem(w http.ResponseWriter, r *http.Request) {
	var item pizza.MenuItem
	if !decodeJSON(w, r, &item) {
		return
	}
	item.ID = 0

	added, err := s.repo.AddMenuItem(r.Context(), item)
	if err != nil {
		s.writeStoreError(w, r, "add menu item", err)
		return
	}
	s.auditLog(audit.ActionCreate, audit.EntityMenuItem, added.ID, actorID(r), map[string]any{
		"title": added.Title,
		"price": added.Price,
	})

	items, err := s.repo.ListMenu(r.Context())
	if err != nil {
		s.writeStoreError(w, r, "list menu", err)
		return
	}

	if s.events != nil {
		if err := s.events.PublishMenu(items); err != nil {
			s.logger.Warn("menu update not published", "error", err, "request_id", requestID(r.Context()))
		}
	}
	writeJSON(w, http.StatusOK, items)
}

// handleListOrders returns one page of the caller's order history. Query:
// page (1-based).
func (s *Server) handleListOrders(w http.ResponseWriter, r *http.Request) {
	principal := principalFromContext(r.Context())

	page, err := s.repo.ListOrdersForUser(r.Context(), principal.ID, queryInt(r, "page", 1))
	if err != nil {
		s.writeStoreError(w, r, "list orders", err)
		return
	}
	if page.Orders == nil {
		page.Orders = []pizza.Order{}
	}
	writeJSON(w, http.StatusOK, page)
}

// handleCreateOrder places an order for the caller, then announces it and
// records revenue. Neither follow-up can fail the order.
func (s *Server) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	principal := principalFromContext(r.Context())

	var req pizza.NewOrder
	if !decodeJSON(w, r, &req) {
		return
	}

	order, err := s.repo.CreateOrder(r.Context(), principal.ID, req)
	if err != nil {
		s.writeStoreError(w, r, "create order", err)
		return
	}

	if s.events != nil {
		if err := s.events.PublishOrder(order); err != nil {
			s.logger.Warn("order event not published",
				"order_id", order.ID,
				"error", err,
				"request_id", requestID(r.Context()),
			)
		}
	}
	if s.metrics != nil {
		s.metrics.RecordOrder(order)
	}

	s.logger.Info("order placed",
		"order_id", order.ID,
		"franchise_id", order.FranchiseID,
		"store_id", order.StoreID,
		"items", len(order.Items),
	)
	writeJSON(w, http.StatusOK, map[string]any{"order": order})
}
