package audit

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/nerrad567/pizza-service/internal/infrastructure/database"
	_ "github.com/nerrad567/pizza-service/migrations"
)

func testRepo(t *testing.T) *SQLiteRepository {
	t.Helper()

	cfg := database.Config{Path: filepath.Join(t.TempDir(), "audit-test.db"), WALMode: true, BusyTimeout: 5}
	db, err := database.Open(cfg)
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup

	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("applying migrations: %v", err)
	}
	return NewSQLiteRepository(database.NewPool(db, cfg))
}

func TestCreate(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()
	fixed := time.Date(2026, 3, 15, 9, 30, 0, 0, time.UTC)
	repo.now = func() time.Time { return fixed }

	entry := &Entry{
		Action:     ActionDelete,
		EntityType: EntityUser,
		EntityID:   42,
		ActorID:    1,
		Details:    map[string]any{"email": "d@jwt.com"},
	}
	if err := repo.Create(ctx, entry); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if entry.ID == 0 {
		t.Error("Create() did not set ID")
	}

	got, err := repo.List(ctx, Filter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if got.Total != 1 || len(got.Entries) != 1 {
		t.Fatalf("List() = %+v, want one entry", got)
	}
	e := got.Entries[0]
	if e.EntityID != 42 || e.ActorID != 1 || !e.CreatedAt.Equal(fixed) {
		t.Errorf("entry = %+v", e)
	}
	if e.Details["email"] != "d@jwt.com" {
		t.Errorf("Details = %v", e.Details)
	}
}

func TestCreate_RequiresActionAndEntity(t *testing.T) {
	repo := testRepo(t)

	if err := repo.Create(context.Background(), &Entry{EntityType: EntityUser}); err == nil {
		t.Error("Create() without action error = nil")
	}
	if err := repo.Create(context.Background(), &Entry{Action: ActionCreate}); err == nil {
		t.Error("Create() without entity type error = nil")
	}
}

func TestList_Filters(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	seed := []Entry{
		{Action: ActionCreate, EntityType: EntityFranchise, EntityID: 1},
		{Action: ActionCreate, EntityType: EntityStore, EntityID: 7},
		{Action: ActionDelete, EntityType: EntityStore, EntityID: 7},
		{Action: ActionCreate, EntityType: EntityMenuItem},
	}
	for i := range seed {
		if err := repo.Create(ctx, &seed[i]); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	tests := []struct {
		name      string
		filter    Filter
		wantTotal int
		wantLen   int
		wantFirst string
	}{
		{"all, newest first", Filter{}, 4, 4, EntityMenuItem},
		{"by action", Filter{Action: ActionCreate}, 3, 3, EntityMenuItem},
		{"by entity", Filter{EntityType: EntityStore, EntityID: 7}, 2, 2, EntityStore},
		{"paged", Filter{Limit: 1, Offset: 1}, 4, 1, EntityStore},
		{"no match", Filter{Action: ActionUpdate}, 0, 0, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.List(ctx, tt.filter)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if got.Total != tt.wantTotal || len(got.Entries) != tt.wantLen {
				t.Fatalf("List() total = %d, len = %d; want %d, %d", got.Total, len(got.Entries), tt.wantTotal, tt.wantLen)
			}
			if tt.wantLen > 0 && got.Entries[0].EntityType != tt.wantFirst {
				t.Errorf("first entry = %s, want %s", got.Entries[0].EntityType, tt.wantFirst)
			}
		})
	}
}

func TestList_ClampsLimit(t *testing.T) {
	repo := testRepo(t)

	got, err := repo.List(context.Background(), Filter{Limit: 10_000, Offset: -3})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if got.Limit != MaxLimit || got.Offset != 0 {
		t.Errorf("List() limit = %d, offset = %d; want %d, 0", got.Limit, got.Offset, MaxLimit)
	}
}
