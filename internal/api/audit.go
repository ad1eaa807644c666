package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/nerrad567/pizza-service/internal/audit"
)

const (
	// auditChanSize bounds queued entries; a full queue drops rather than
	// making a request wait on the audit table.
	auditChanSize = 256

	auditWriteTimeout = 5 * time.Second
)

// auditLog queues an administrative change for the writer goroutine.
// It never blocks and never fails the request.
func (s *Server) auditLog(action, entityType string, entityID, actorID int64, details map[string]any) {
	if s.auditRepo == nil || s.auditCh == nil {
		return
	}
	entry := &audit.Entry{
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		ActorID:    actorID,
		Details:    details,
	}
	select {
	case s.auditCh <- entry:
	default:
		s.logger.Warn("audit queue full, entry dropped", "action", action, "entity_type", entityType, "entity_id", entityID)
	}
}

func actorID(r *http.Request) int64 {
	if user := principalFromContext(r.Context()); user != nil {
		return user.ID
	}
	return 0
}

// drainAuditLog persists queued entries until ctx is cancelled and then
// writes whatever is still buffered.
func (s *Server) drainAuditLog(ctx context.Context) {
	for {
		select {
		case entry := <-s.auditCh:
			s.writeAudit(entry)
		case <-ctx.Done():
			for len(s.auditCh) > 0 {
				s.writeAudit(<-s.auditCh)
			}
			return
		}
	}
}

func (s *Server) writeAudit(entry *audit.Entry) {
	ctx, cancel := context.WithTimeout(context.Background(), auditWriteTimeout)
	defer cancel()

	if err := s.auditRepo.Create(ctx, entry); err != nil {
		s.logger.Error("writing audit entry",
			"action", entry.Action,
			"entity_type", entry.EntityType,
			"entity_id", entry.EntityID,
			"error", err,
		)
	}
}

// handleListAuditLogs serves GET /api/audit, newest first. Filters:
// action, entity_type, entity_id; paging: limit (default 50, max 200) and
// offset.
func (s *Server) handleListAuditLogs(w http.ResponseWriter, r *http.Request) {
	if s.auditRepo == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "audit logging not configured")
		return
	}

	q := r.URL.Query()
	filter := audit.Filter{
		Action:     q.Get("action"),
		EntityType: q.Get("entity_type"),
		Limit:      queryInt(r, "limit", audit.DefaultLimit),
		Offset:     queryInt(r, "offset", 0),
	}
	if raw := q.Get("entity_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			writeBadRequest(w, "invalid entity_id")
			return
		}
		filter.EntityID = id
	}

	res, err := s.auditRepo.List(r.Context(), filter)
	if err != nil {
		s.writeStoreError(w, r, "list audit logs", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
