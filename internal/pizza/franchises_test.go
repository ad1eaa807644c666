package pizza

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/nerrad567/pizza-service/internal/auth"
)

func TestCreateFranchise(t *testing.T) {
	repo, db := testRepo(t)
	ctx := context.Background()
	owner := mustCreateUser(t, repo, "owner", "owner@jwt.com")

	f, err := repo.CreateFranchise(ctx, NewFranchise{Name: "pizzaPocket", Admins: []string{"owner@jwt.com"}})
	if err != nil {
		t.Fatalf("CreateFranchise() error = %v", err)
	}
	if len(f.Admins) != 1 || f.Admins[0].ID != owner.ID || f.Admins[0].Name != "owner" {
		t.Errorf("Admins = %+v, want owner", f.Admins)
	}

	got, err := repo.GetUserByID(ctx, owner.ID)
	if err != nil {
		t.Fatalf("GetUserByID() error = %v", err)
	}
	if !auth.CanManageFranchise(got, f.ID) {
		t.Errorf("owner roles = %v, want franchisee of %d", got.Roles, f.ID)
	}

	t.Run("duplicate name", func(t *testing.T) {
		_, err := repo.CreateFranchise(ctx, NewFranchise{Name: "pizzaPocket"})
		if !errors.Is(err, ErrConflict) {
			t.Errorf("CreateFranchise() error = %v, want ErrConflict", err)
		}
	})

	t.Run("unknown admin writes nothing", func(t *testing.T) {
		_, err := repo.CreateFranchise(ctx, NewFranchise{Name: "ghostTown", Admins: []string{"owner@jwt.com", "ghost@jwt.com"}})
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("CreateFranchise() error = %v, want ErrNotFound", err)
		}
		if n := countRows(t, db, "SELECT COUNT(*) FROM franchises WHERE name = 'ghostTown'"); n != 0 {
			t.Errorf("franchise rows = %d, want 0", n)
		}
		if n := countRows(t, db, "SELECT COUNT(*) FROM user_roles WHERE user_id = ? AND role = 'franchisee'", owner.ID); n != 1 {
			t.Errorf("owner franchisee roles = %d, want 1", n)
		}
	})

	t.Run("missing name", func(t *testing.T) {
		if _, err := repo.CreateFranchise(ctx, NewFranchise{}); !errors.Is(err, ErrInvalid) {
			t.Errorf("CreateFranchise() error = %v, want ErrInvalid", err)
		}
	})
}

func TestDeleteFranchise(t *testing.T) {
	repo, db := testRepo(t)
	ctx := context.Background()
	owner := mustCreateUser(t, repo, "owner", "owner@jwt.com")
	f := mustCreateFranchise(t, repo, "doomed", "owner@jwt.com")
	keep := mustCreateFranchise(t, repo, "keeper", "owner@jwt.com")
	for _, id := range []int64{f.ID, keep.ID} {
		if _, err := repo.CreateStore(ctx, id, "main"); err != nil {
			t.Fatalf("CreateStore() error = %v", err)
		}
	}

	if err := repo.DeleteFranchise(ctx, f.ID); err != nil {
		t.Fatalf("DeleteFranchise() error = %v", err)
	}

	if n := countRows(t, db, "SELECT COUNT(*) FROM franchises WHERE id = ?", f.ID); n != 0 {
		t.Errorf("franchise rows = %d, want 0", n)
	}
	if n := countRows(t, db, "SELECT COUNT(*) FROM stores WHERE franchise_id = ?", f.ID); n != 0 {
		t.Errorf("store rows = %d, want 0", n)
	}
	if n := countRows(t, db, "SELECT COUNT(*) FROM user_roles WHERE role = 'franchisee' AND object_id = ?", f.ID); n != 0 {
		t.Errorf("franchisee roles = %d, want 0", n)
	}

	got, err := repo.GetUserByID(ctx, owner.ID)
	if err != nil {
		t.Fatalf("GetUserByID() error = %v", err)
	}
	if auth.CanManageFranchise(got, f.ID) || !auth.CanManageFranchise(got, keep.ID) {
		t.Errorf("owner roles after delete = %v", got.Roles)
	}

	// Unknown ids are a no-op.
	if err := repo.DeleteFranchise(ctx, 9999); err != nil {
		t.Errorf("DeleteFranchise(unknown) error = %v", err)
	}
}

func TestDeleteFranchise_FailureRollsBack(t *testing.T) {
	repo, mock := mockRepo(t)
	cause := errors.New("database is locked")

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM stores").WithArgs(3).WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("DELETE FROM user_roles").WillReturnError(cause)
	mock.ExpectRollback()

	err := repo.DeleteFranchise(context.Background(), 3)
	if !errors.Is(err, ErrInternal) {
		t.Fatalf("DeleteFranchise() error = %v, want ErrInternal", err)
	}
	if !errors.Is(err, cause) {
		t.Errorf("DeleteFranchise() error = %v, want cause attached", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestListFranchises_Pagination(t *testing.T) {
	tests := []struct {
		name      string
		count     int
		wantLen   int
		wantMore  bool
		wantFirst string
	}{
		{name: "more than a page", count: 3, wantLen: 2, wantMore: true, wantFirst: "f1"},
		{name: "exactly a page", count: 2, wantLen: 2, wantMore: false, wantFirst: "f1"},
		{name: "empty", count: 0, wantLen: 0, wantMore: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, _ := testRepo(t)
			names := []string{"f1", "f2", "f3"}
			for _, n := range names[:tt.count] {
				mustCreateFranchise(t, repo, n)
			}

			got, more, err := repo.ListFranchises(context.Background(), nil, 0, 2, "*")
			if err != nil {
				t.Fatalf("ListFranchises() error = %v", err)
			}
			if len(got) != tt.wantLen || more != tt.wantMore {
				t.Errorf("ListFranchises() = %d, more %v; want %d, more %v", len(got), more, tt.wantLen, tt.wantMore)
			}
			if tt.wantFirst != "" && got[0].Name != tt.wantFirst {
				t.Errorf("first = %q, want %q", got[0].Name, tt.wantFirst)
			}
		})
	}
}

func TestListFranchises_Hydration(t *testing.T) {
	repo, _ := testRepo(t)
	ctx := context.Background()

	admin, err := repo.CreateAdmin(ctx, "admin", "a@jwt.com", "admin")
	if err != nil {
		t.Fatalf("CreateAdmin() error = %v", err)
	}
	diner := mustCreateUser(t, repo, "diner", "d@jwt.com")
	mustCreateUser(t, repo, "owner", "owner@jwt.com")

	f := mustCreateFranchise(t, repo, "pizzaPocket", "owner@jwt.com")
	store, err := repo.CreateStore(ctx, f.ID, "SLC")
	if err != nil {
		t.Fatalf("CreateStore() error = %v", err)
	}
	menu := mustAddMenuItem(t, repo, "Pepperoni", 0.0042)
	if _, err := repo.CreateOrder(ctx, diner.ID, NewOrder{
		FranchiseID: f.ID,
		StoreID:     store.ID,
		Items: []NewOrderItem{
			{MenuID: menu.ID, Description: "Pepperoni", Price: 0.5},
			{MenuID: menu.ID, Description: "Pepperoni", Price: 0.25},
		},
	}); err != nil {
		t.Fatalf("CreateOrder() error = %v", err)
	}

	t.Run("admin", func(t *testing.T) {
		got, _, err := repo.ListFranchises(ctx, admin, 0, 10, "")
		if err != nil {
			t.Fatalf("ListFranchises() error = %v", err)
		}
		if len(got) != 1 {
			t.Fatalf("ListFranchises() = %d franchises, want 1", len(got))
		}
		if len(got[0].Admins) != 1 || got[0].Admins[0].Email != "owner@jwt.com" {
			t.Errorf("Admins = %+v", got[0].Admins)
		}
		if len(got[0].Stores) != 1 || got[0].Stores[0].TotalRevenue == nil {
			t.Fatalf("Stores = %+v, want revenue", got[0].Stores)
		}
		if rev := *got[0].Stores[0].TotalRevenue; rev != 0.75 {
			t.Errorf("TotalRevenue = %v, want 0.75", rev)
		}
	})

	t.Run("diner", func(t *testing.T) {
		got, _, err := repo.ListFranchises(ctx, diner, 0, 10, "")
		if err != nil {
			t.Fatalf("ListFranchises() error = %v", err)
		}
		if len(got) != 1 {
			t.Fatalf("ListFranchises() = %d franchises, want 1", len(got))
		}
		if got[0].Admins != nil {
			t.Errorf("Admins = %+v, want nil for non-admin", got[0].Admins)
		}
		if len(got[0].Stores) != 1 || got[0].Stores[0].TotalRevenue != nil {
			t.Errorf("Stores = %+v, want bare stores", got[0].Stores)
		}
	})

	t.Run("name filter", func(t *testing.T) {
		got, _, err := repo.ListFranchises(ctx, nil, 0, 10, "pizza*")
		if err != nil {
			t.Fatalf("ListFranchises() error = %v", err)
		}
		if len(got) != 1 {
			t.Errorf("pizza* = %d, want 1", len(got))
		}
		got, _, err = repo.ListFranchises(ctx, nil, 0, 10, "burger*")
		if err != nil {
			t.Fatalf("ListFranchises() error = %v", err)
		}
		if len(got) != 0 {
			t.Errorf("burger* = %d, want 0", len(got))
		}
	})
}

func TestGetFranchisesForUser(t *testing.T) {
	repo, _ := testRepo(t)
	ctx := context.Background()
	owner := mustCreateUser(t, repo, "owner", "owner@jwt.com")
	other := mustCreateUser(t, repo, "other", "other@jwt.com")
	mustCreateFranchise(t, repo, "mine", "owner@jwt.com")
	mustCreateFranchise(t, repo, "theirs")

	got, err := repo.GetFranchisesForUser(ctx, owner.ID)
	if err != nil {
		t.Fatalf("GetFranchisesForUser() error = %v", err)
	}
	if len(got) != 1 || got[0].Name != "mine" {
		t.Errorf("GetFranchisesForUser() = %+v, want [mine]", got)
	}

	got, err = repo.GetFranchisesForUser(ctx, other.ID)
	if err != nil {
		t.Fatalf("GetFranchisesForUser() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("GetFranchisesForUser(other) = %d, want 0", len(got))
	}
}

func TestGetFranchise_NotFound(t *testing.T) {
	repo, _ := testRepo(t)

	if _, err := repo.GetFranchise(context.Background(), 42); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetFranchise() error = %v, want ErrNotFound", err)
	}
}

func TestStores(t *testing.T) {
	repo, db := testRepo(t)
	ctx := context.Background()
	a := mustCreateFranchise(t, repo, "a")
	b := mustCreateFranchise(t, repo, "b")

	if _, err := repo.CreateStore(ctx, 9999, "nowhere"); !errors.Is(err, ErrNotFound) {
		t.Errorf("CreateStore(unknown franchise) error = %v, want ErrNotFound", err)
	}
	if _, err := repo.CreateStore(ctx, a.ID, ""); !errors.Is(err, ErrInvalid) {
		t.Errorf("CreateStore(no name) error = %v, want ErrInvalid", err)
	}

	s, err := repo.CreateStore(ctx, a.ID, "north")
	if err != nil {
		t.Fatalf("CreateStore() error = %v", err)
	}
	if s.ID == 0 || s.FranchiseID != a.ID {
		t.Errorf("CreateStore() = %+v", s)
	}

	// A store id under the wrong franchise is left alone.
	if err := repo.DeleteStore(ctx, b.ID, s.ID); err != nil {
		t.Fatalf("DeleteStore() error = %v", err)
	}
	if n := countRows(t, db, "SELECT COUNT(*) FROM stores WHERE id = ?", s.ID); n != 1 {
		t.Errorf("stores after mismatched delete = %d, want 1", n)
	}

	if err := repo.DeleteStore(ctx, a.ID, s.ID); err != nil {
		t.Fatalf("DeleteStore() error = %v", err)
	}
	if n := countRows(t, db, "SELECT COUNT(*) FROM stores WHERE id = ?", s.ID); n != 0 {
		t.Errorf("stores after delete = %d, want 0", n)
	}
}
