package pizza

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/nerrad567/pizza-service/internal/auth"
	"github.com/nerrad567/pizza-service/internal/infrastructure/database"
)

// CreateFranchise stores a franchise and grants each listed admin the
// franchisee role for it, in one transaction. Every admin email is resolved
// before anything is written; the first unknown email fails with
// ErrNotFound.
func (r *Repository) CreateFranchise(ctx context.Context, nf NewFranchise) (*Franchise, error) {
	if nf.Name == "" {
		return nil, fmt.Errorf("%w: franchise name is required", ErrInvalid)
	}

	franchise := &Franchise{Name: nf.Name, Admins: []FranchiseAdmin{}, Stores: []Store{}}
	err := r.inTx(ctx, "create franchise", func(c *database.Conn) error {
		for _, email := range nf.Admins {
			var admin FranchiseAdmin
			err := c.QueryRowContext(ctx,
				"SELECT id, name, email FROM users WHERE email = ?", email,
			).Scan(&admin.ID, &admin.Name, &admin.Email)
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("%w: unknown user for franchise admin %s provided", ErrNotFound, email)
			}
			if err != nil {
				return fmt.Errorf("resolving admin %s: %w", email, err)
			}
			franchise.Admins = append(franchise.Admins, admin)
		}

		res, err := c.ExecContext(ctx, "INSERT INTO franchises (name) VALUES (?)", nf.Name)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: franchise %q already exists", ErrConflict, nf.Name)
			}
			return fmt.Errorf("inserting franchise: %w", err)
		}
		if franchise.ID, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("reading franchise id: %w", err)
		}

		for _, admin := range franchise.Admins {
			if err := insertRole(ctx, c, admin.ID, auth.FranchiseeRole(franchise.ID)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return franchise, nil
}

// DeleteFranchise removes a franchise with its stores and the franchisee
// roles that target it, in one transaction. Orders placed at its stores are
// order history and are kept. Deleting an unknown id is a no-op.
func (r *Repository) DeleteFranchise(ctx context.Context, franchiseID int64) error {
	return r.inTx(ctx, "delete franchise", func(c *database.Conn) error {
		if _, err := c.ExecContext(ctx, "DELETE FROM stores WHERE franchise_id = ?", franchiseID); err != nil {
			return fmt.Errorf("deleting stores of franchise %d: %w", franchiseID, err)
		}
		if _, err := c.ExecContext(ctx,
			"DELETE FROM user_roles WHERE role = ? AND object_id = ?",
			string(auth.RoleFranchisee), franchiseID,
		); err != nil {
			return fmt.Errorf("deleting franchisee roles of franchise %d: %w", franchiseID, err)
		}
		if _, err := c.ExecContext(ctx, "DELETE FROM franchises WHERE id = ?", franchiseID); err != nil {
			return fmt.Errorf("deleting franchise %d: %w", franchiseID, err)
		}
		return nil
	})
}

// ListFranchises returns one 0-based page of franchises whose name matches
// the glob (* is the wildcard) and whether more exist. Admin requesters get
// admins and per-store revenue; everyone else gets bare store lists.
func (r *Repository) ListFranchises(ctx context.Context, requester *auth.User, page, limit int, nameFilter string) ([]Franchise, bool, error) {
	offset, size := pageWindow(page, limit, r.franchisesPerPage)
	full := auth.IsAdmin(requester)

	var franchises []Franchise
	var hasMore bool
	err := r.pool.WithConn(ctx, func(c *database.Conn) error {
		var err error
		franchises, err = queryFranchises(ctx, c, `
			SELECT id, name FROM franchises
			WHERE name LIKE ? ESCAPE '\'
			ORDER BY id LIMIT ? OFFSET ?
		`, nameFilterPattern(nameFilter), size+1, offset)
		if err != nil {
			return err
		}

		// One extra row was fetched to detect a following page.
		if len(franchises) > size {
			hasMore = true
			franchises = franchises[:size]
		}

		for i := range franchises {
			if full {
				err = hydrateFranchise(ctx, c, &franchises[i])
			} else {
				franchises[i].Stores, err = queryStores(ctx, c, franchises[i].ID)
			}
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return franchises, hasMore, nil
}

// GetFranchisesForUser returns every franchise the user is a franchisee
// of, fully hydrated.
func (r *Repository) GetFranchisesForUser(ctx context.Context, userID int64) ([]Franchise, error) {
	var franchises []Franchise
	err := r.pool.WithConn(ctx, func(c *database.Conn) error {
		var err error
		franchises, err = queryFranchises(ctx, c, `
			SELECT f.id, f.name
			FROM user_roles ur
			JOIN franchises f ON f.id = ur.object_id
			WHERE ur.user_id = ? AND ur.role = ?
			ORDER BY f.id
		`, userID, string(auth.RoleFranchisee))
		if err != nil {
			return err
		}
		for i := range franchises {
			if err := hydrateFranchise(ctx, c, &franchises[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return franchises, nil
}

// GetFranchise returns one fully hydrated franchise.
func (r *Repository) GetFranchise(ctx context.Context, franchiseID int64) (*Franchise, error) {
	f := &Franchise{ID: franchiseID}
	err := r.pool.WithConn(ctx, func(c *database.Conn) error {
		err := c.QueryRowContext(ctx, "SELECT name FROM franchises WHERE id = ?", franchiseID).Scan(&f.Name)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: franchise %d", ErrNotFound, franchiseID)
		}
		if err != nil {
			return fmt.Errorf("querying franchise %d: %w", franchiseID, err)
		}
		return hydrateFranchise(ctx, c, f)
	})
	if err != nil {
		return nil, err
	}
	return f, nil
}

// CreateStore adds a store to an existing franchise.
func (r *Repository) CreateStore(ctx context.Context, franchiseID int64, name string) (*Store, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: store name is required", ErrInvalid)
	}

	store := &Store{FranchiseID: franchiseID, Name: name}
	err := r.pool.WithConn(ctx, func(c *database.Conn) error {
		res, err := c.ExecContext(ctx,
			"INSERT INTO stores (franchise_id, name) VALUES (?, ?)", franchiseID, name)
		if err != nil {
			if isForeignKeyViolation(err) {
				return fmt.Errorf("%w: franchise %d", ErrNotFound, franchiseID)
			}
			return fmt.Errorf("inserting store: %w", err)
		}
		store.ID, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return nil, err
	}
	return store, nil
}

// DeleteStore removes a store of a franchise. A store id belonging to a
// different franchise is left untouched.
func (r *Repository) DeleteStore(ctx context.Context, franchiseID, storeID int64) error {
	return r.pool.WithConn(ctx, func(c *database.Conn) error {
		if _, err := c.ExecContext(ctx,
			"DELETE FROM stores WHERE franchise_id = ? AND id = ?", franchiseID, storeID,
		); err != nil {
			return fmt.Errorf("deleting store %d: %w", storeID, err)
		}
		return nil
	})
}

func queryFranchises(ctx context.Context, q database.Querier, query string, args ...any) ([]Franchise, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying franchises: %w", err)
	}
	defer rows.Close()

	franchises := []Franchise{}
	for rows.Next() {
		var f Franchise
		if err := rows.Scan(&f.ID, &f.Name); err != nil {
			return nil, fmt.Errorf("scanning franchise: %w", err)
		}
		franchises = append(franchises, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating franchises: %w", err)
	}
	return franchises, nil
}

// hydrateFranchise attaches admins and stores with revenue.
func hydrateFranchise(ctx context.Context, q database.Querier, f *Franchise) error {
	rows, err := q.QueryContext(ctx, `
		SELECT u.id, u.name, u.email
		FROM user_roles ur
		JOIN users u ON u.id = ur.user_id
		WHERE ur.role = ? AND ur.object_id = ?
		ORDER BY u.id
	`, string(auth.RoleFranchisee), f.ID)
	if err != nil {
		return fmt.Errorf("querying admins of franchise %d: %w", f.ID, err)
	}
	f.Admins = []FranchiseAdmin{}
	for rows.Next() {
		var a FranchiseAdmin
		if err := rows.Scan(&a.ID, &a.Name, &a.Email); err != nil {
			rows.Close()
			return fmt.Errorf("scanning admin: %w", err)
		}
		f.Admins = append(f.Admins, a)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return fmt.Errorf("iterating admins: %w", err)
	}

	f.Stores, err = queryStoresWithRevenue(ctx, q, f.ID)
	return err
}

func queryStores(ctx context.Context, q database.Querier, franchiseID int64) ([]Store, error) {
	rows, err := q.QueryContext(ctx,
		"SELECT id, name FROM stores WHERE franchise_id = ? ORDER BY id", franchiseID)
	if err != nil {
		return nil, fmt.Errorf("querying stores of franchise %d: %w", franchiseID, err)
	}
	defer rows.Close()

	stores := []Store{}
	for rows.Next() {
		s := Store{FranchiseID: franchiseID}
		if err := rows.Scan(&s.ID, &s.Name); err != nil {
			return nil, fmt.Errorf("scanning store: %w", err)
		}
		stores = append(stores, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating stores: %w", err)
	}
	return stores, nil
}

// queryStoresWithRevenue sums order item prices per store; stores without
// orders report zero.
func queryStoresWithRevenue(ctx context.Context, q database.Querier, franchiseID int64) ([]Store, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT s.id, s.name, COALESCE(SUM(oi.price), 0.0)
		FROM stores s
		LEFT JOIN diner_orders o ON o.store_id = s.id AND o.franchise_id = s.franchise_id
		LEFT JOIN order_items oi ON oi.order_id = o.id
		WHERE s.franchise_id = ?
		GROUP BY s.id, s.name
		ORDER BY s.id
	`, franchiseID)
	if err != nil {
		return nil, fmt.Errorf("querying store revenue of franchise %d: %w", franchiseID, err)
	}
	defer rows.Close()

	stores := []Store{}
	for rows.Next() {
		s := Store{FranchiseID: franchiseID}
		var revenue float64
		if err := rows.Scan(&s.ID, &s.Name, &revenue); err != nil {
			return nil, fmt.Errorf("scanning store: %w", err)
		}
		s.TotalRevenue = &revenue
		stores = append(stores, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating stores: %w", err)
	}
	return stores, nil
}
