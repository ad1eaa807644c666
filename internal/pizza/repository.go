package pizza

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/nerrad567/pizza-service/internal/auth"
	"github.com/nerrad567/pizza-service/internal/infrastructure/database"
)

// Paging defaults.
const (
	DefaultOrdersPerPage     = 10
	DefaultFranchisesPerPage = 10
	DefaultUsersPerPage      = 10
)

// Config holds repository tunables from the store section of config.yaml.
type Config struct {
	// OrdersPerPage is the fixed page size of a diner's order history.
	OrdersPerPage int

	// FranchisesPerPage is the listing page size when the caller gives none.
	FranchisesPerPage int
}

// Repository is the transactional store for users, franchises, stores, the
// menu and orders. It is safe for concurrent use; every call checks a
// connection out of the pool and returns it before returning.
type Repository struct {
	pool              *database.Pool
	hasher            auth.Hasher
	ordersPerPage     int
	franchisesPerPage int
	now               func() time.Time
}

// NewRepository creates a repository over pool. hasher digests passwords
// on user creation and update.
func NewRepository(pool *database.Pool, hasher auth.Hasher, cfg Config) *Repository {
	if cfg.OrdersPerPage <= 0 {
		cfg.OrdersPerPage = DefaultOrdersPerPage
	}
	if cfg.FranchisesPerPage <= 0 {
		cfg.FranchisesPerPage = DefaultFranchisesPerPage
	}
	return &Repository{
		pool:              pool,
		hasher:            hasher,
		ordersPerPage:     cfg.OrdersPerPage,
		franchisesPerPage: cfg.FranchisesPerPage,
		now:               time.Now,
	}
}

// inTx runs fn in a transaction and classifies its failure: business errors
// and pool exhaustion pass through, unique violations become ErrConflict and
// everything else becomes ErrInternal with the cause attached.
func (r *Repository) inTx(ctx context.Context, op string, fn func(*database.Conn) error) error {
	err := r.pool.WithTx(ctx, fn)
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrConflict), errors.Is(err, ErrInvalid),
		errors.Is(err, database.ErrBusy), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case isUniqueViolation(err):
		return fmt.Errorf("%w: %s: %w", ErrConflict, op, err)
	default:
		return fmt.Errorf("%w: %s: %w", ErrInternal, op, err)
	}
}

// isUniqueViolation reports whether err is a SQLite UNIQUE constraint failure.
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

// isForeignKeyViolation reports whether err is a SQLite FOREIGN KEY failure.
func isForeignKeyViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintForeignKey
	}
	return false
}

// nameFilterPattern turns a listing glob into a LIKE pattern. Only * is a
// wildcard; LIKE metacharacters in the filter match literally.
func nameFilterPattern(glob string) string {
	if glob == "" {
		return "%"
	}
	escaped := strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`).Replace(glob)
	return strings.ReplaceAll(escaped, "*", "%")
}

// pageWindow normalises a 0-based page and limit.
func pageWindow(page, limit, fallback int) (offset, size int) {
	if limit <= 0 {
		limit = fallback
	}
	if page < 0 {
		page = 0
	}
	return page * limit, limit
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", s, err)
	}
	return t, nil
}
