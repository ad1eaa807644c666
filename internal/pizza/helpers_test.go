package pizza

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/nerrad567/pizza-service/internal/auth"
	"github.com/nerrad567/pizza-service/internal/infrastructure/database"
	_ "github.com/nerrad567/pizza-service/migrations"
)

// testRepo opens a migrated temp-file database and returns a repository
// over it plus the raw handle for direct row assertions.
func testRepo(t *testing.T) (*Repository, *sql.DB) {
	t.Helper()

	cfg := database.Config{
		Path:        filepath.Join(t.TempDir(), "pizza-test.db"),
		WALMode:     true,
		BusyTimeout: 5,
	}
	db, err := database.Open(cfg)
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup

	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("applying migrations: %v", err)
	}

	return NewRepository(database.NewPool(db, cfg), testHasher(t), Config{OrdersPerPage: 2}), db.DB
}

// mockRepo returns a repository over a sqlmock connection.
func mockRepo(t *testing.T) (*Repository, sqlmock.Sqlmock) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	t.Cleanup(func() { sqlDB.Close() })

	pool := database.NewPool(database.Wrap(sqlDB, 1), database.Config{MaxOpenConns: 1})
	return NewRepository(pool, testHasher(t), Config{}), mock
}

func testHasher(t *testing.T) auth.Hasher {
	t.Helper()
	h, err := auth.NewPasswordHasher(auth.HashConfig{BcryptCost: 4})
	if err != nil {
		t.Fatalf("NewPasswordHasher() error = %v", err)
	}
	return h
}

func countRows(t *testing.T, db *sql.DB, query string, args ...any) int {
	t.Helper()
	var n int
	if err := db.QueryRow(query, args...).Scan(&n); err != nil {
		t.Fatalf("count %q error = %v", query, err)
	}
	return n
}

func mustCreateUser(t *testing.T, r *Repository, name, email string, roles ...RoleRequest) *auth.User {
	t.Helper()
	u, err := r.CreateUser(context.Background(), NewUser{Name: name, Email: email, Password: "pw-" + name, Roles: roles})
	if err != nil {
		t.Fatalf("CreateUser(%s) error = %v", email, err)
	}
	return u
}

func mustCreateFranchise(t *testing.T, r *Repository, name string, admins ...string) *Franchise {
	t.Helper()
	f, err := r.CreateFranchise(context.Background(), NewFranchise{Name: name, Admins: admins})
	if err != nil {
		t.Fatalf("CreateFranchise(%s) error = %v", name, err)
	}
	return f
}

func mustAddMenuItem(t *testing.T, r *Repository, title string, price float64) *MenuItem {
	t.Helper()
	m, err := r.AddMenuItem(context.Background(), MenuItem{Title: title, Description: title, Image: title + ".png", Price: price})
	if err != nil {
		t.Fatalf("AddMenuItem(%s) error = %v", title, err)
	}
	return m
}

func ptr[T any](v T) *T { return &v }
