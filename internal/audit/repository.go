// Package audit records administrative changes (user deletions, franchise
// and store changes, menu edits) in the audit_logs table and lists them for
// admins.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nerrad567/pizza-service/internal/infrastructure/database"
)

// Actions.
const (
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
)

// Entity types.
const (
	EntityUser      = "user"
	EntityFranchise = "franchise"
	EntityStore     = "store"
	EntityMenuItem  = "menu_item"
)

// List paging bounds.
const (
	DefaultLimit = 50
	MaxLimit     = 200
)

// Entry is a single audit trail record.
type Entry struct {
	ID         int64          `json:"id"`
	Action     string         `json:"action"`
	EntityType string         `json:"entity_type"`
	EntityID   int64          `json:"entity_id,omitempty"`
	ActorID    int64          `json:"actor_id,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// Filter controls which entries List returns.
type Filter struct {
	Action     string // optional
	EntityType string // optional
	EntityID   int64  // optional; zero matches any
	Limit      int    // default 50, max 200
	Offset     int
}

// ListResult is one page of entries, newest first.
type ListResult struct {
	Entries []Entry `json:"entries"`
	Total   int     `json:"total"`
	Limit   int     `json:"limit"`
	Offset  int     `json:"offset"`
}

// Repository defines the audit log operations.
type Repository interface {
	Create(ctx context.Context, entry *Entry) error
	List(ctx context.Context, filter Filter) (*ListResult, error)
}

// SQLiteRepository stores entries through the connection pool.
type SQLiteRepository struct {
	pool *database.Pool
	now  func() time.Time
}

// NewSQLiteRepository creates an audit repository over pool.
func NewSQLiteRepository(pool *database.Pool) *SQLiteRepository {
	return &SQLiteRepository{pool: pool, now: time.Now}
}

// Create inserts entry and fills in its ID. CreatedAt defaults to now.
func (r *SQLiteRepository) Create(ctx context.Context, entry *Entry) error {
	if entry.Action == "" || entry.EntityType == "" {
		return fmt.Errorf("audit entry requires action and entity type")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = r.now().UTC().Truncate(time.Second)
	}

	var details *string
	if entry.Details != nil {
		b, err := json.Marshal(entry.Details)
		if err != nil {
			return fmt.Errorf("marshalling audit details: %w", err)
		}
		s := string(b)
		details = &s
	}

	return r.pool.WithConn(ctx, func(c *database.Conn) error {
		res, err := c.ExecContext(ctx, `
			INSERT INTO audit_logs (action, entity_type, entity_id, actor_id, details, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, entry.Action, entry.EntityType, nullableID(entry.EntityID), nullableID(entry.ActorID),
			details, entry.CreatedAt.UTC().Format(time.RFC3339))
		if err != nil {
			return fmt.Errorf("inserting audit entry: %w", err)
		}
		entry.ID, err = res.LastInsertId()
		return err
	})
}

// nullableID maps the zero id to NULL.
func nullableID(id int64) any {
	if id == 0 {
		return nil
	}
	return id
}

// List returns entries matching filter, newest first.
func (r *SQLiteRepository) List(ctx context.Context, filter Filter) (*ListResult, error) {
	if filter.Limit <= 0 {
		filter.Limit = DefaultLimit
	}
	if filter.Limit > MaxLimit {
		filter.Limit = MaxLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	var conditions []string
	var args []any
	if filter.Action != "" {
		conditions = append(conditions, "action = ?")
		args = append(args, filter.Action)
	}
	if filter.EntityType != "" {
		conditions = append(conditions, "entity_type = ?")
		args = append(args, filter.EntityType)
	}
	if filter.EntityID != 0 {
		conditions = append(conditions, "entity_id = ?")
		args = append(args, filter.EntityID)
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	result := &ListResult{Entries: []Entry{}, Limit: filter.Limit, Offset: filter.Offset}
	err := r.pool.WithConn(ctx, func(c *database.Conn) error {
		// WHERE holds only fixed column names with ? placeholders.
		countQuery := "SELECT COUNT(*) FROM audit_logs " + where //nolint:gosec // parameterised conditions
		if err := c.QueryRowContext(ctx, countQuery, args...).Scan(&result.Total); err != nil {
			return fmt.Errorf("counting audit entries: %w", err)
		}

		query := "SELECT id, action, entity_type, entity_id, actor_id, details, created_at FROM audit_logs " + //nolint:gosec // parameterised conditions
			where + " ORDER BY id DESC LIMIT ? OFFSET ?"
		rows, err := c.QueryContext(ctx, query, append(args, filter.Limit, filter.Offset)...)
		if err != nil {
			return fmt.Errorf("querying audit entries: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			entry, err := scanEntry(rows)
			if err != nil {
				return err
			}
			result.Entries = append(result.Entries, entry)
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("iterating audit entries: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func scanEntry(rows *sql.Rows) (Entry, error) {
	var e Entry
	var entityID, actorID sql.NullInt64
	var details sql.NullString
	var createdAt string

	if err := rows.Scan(&e.ID, &e.Action, &e.EntityType, &entityID, &actorID, &details, &createdAt); err != nil {
		return Entry{}, fmt.Errorf("scanning audit entry: %w", err)
	}
	e.EntityID = entityID.Int64
	e.ActorID = actorID.Int64

	// Unreadable details are dropped rather than failing the page.
	if details.Valid && details.String != "" {
		var m map[string]any
		if json.Unmarshal([]byte(details.String), &m) == nil {
			e.Details = m
		}
	}

	t, err := time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return Entry{}, fmt.Errorf("parsing audit timestamp %q: %w", createdAt, err)
	}
	e.CreatedAt = t
	return e, nil
}
