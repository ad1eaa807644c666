package pizza

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/nerrad567/pizza-service/internal/auth"
	"github.com/nerrad567/pizza-service/internal/infrastructure/database"
)

// CreateUser stores a new account and its role assignments in one
// transaction. A franchisee role naming an unknown franchise fails with
// ErrNotFound and nothing is written; a taken email fails with ErrConflict.
func (r *Repository) CreateUser(ctx context.Context, nu NewUser) (*auth.User, error) {
	if nu.Name == "" || nu.Email == "" || nu.Password == "" {
		return nil, fmt.Errorf("%w: name, email, and password are required", ErrInvalid)
	}
	roles := nu.Roles
	if len(roles) == 0 {
		roles = []RoleRequest{{Role: auth.RoleDiner}}
	}
	for _, rr := range roles {
		if !auth.IsValidRole(rr.Role) {
			return nil, fmt.Errorf("%w: unknown role %q", ErrInvalid, rr.Role)
		}
		if rr.Role == auth.RoleFranchisee && rr.Franchise == "" {
			return nil, fmt.Errorf("%w: franchisee role requires a franchise", ErrInvalid)
		}
	}

	digest, err := r.hasher.Hash(nu.Password)
	if err != nil {
		return nil, fmt.Errorf("%w: hashing password: %w", ErrInternal, err)
	}

	user := &auth.User{Name: nu.Name, Email: nu.Email}
	err = r.inTx(ctx, "create user", func(c *database.Conn) error {
		res, err := c.ExecContext(ctx,
			"INSERT INTO users (name, email, password_hash) VALUES (?, ?, ?)",
			nu.Name, nu.Email, digest)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: email %s already registered", ErrConflict, nu.Email)
			}
			return fmt.Errorf("inserting user: %w", err)
		}
		if user.ID, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("reading user id: %w", err)
		}

		for _, rr := range roles {
			assignment, err := resolveRole(ctx, c, rr)
			if err != nil {
				return err
			}
			if err := insertRole(ctx, c, user.ID, assignment); err != nil {
				return err
			}
			user.Roles = append(user.Roles, assignment)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// CreateAdmin creates an account holding only the admin role.
func (r *Repository) CreateAdmin(ctx context.Context, name, email, password string) (*auth.User, error) {
	return r.CreateUser(ctx, NewUser{
		Name:     name,
		Email:    email,
		Password: password,
		Roles:    []RoleRequest{{Role: auth.RoleAdmin}},
	})
}

// resolveRole turns a role request into an assignment, looking up the
// franchise of a franchisee role by name.
func resolveRole(ctx context.Context, q database.Querier, rr RoleRequest) (auth.RoleAssignment, error) {
	switch rr.Role {
	case auth.RoleDiner:
		return auth.DinerRole(), nil
	case auth.RoleAdmin:
		return auth.AdminRole(), nil
	}

	var franchiseID int64
	err := q.QueryRowContext(ctx, "SELECT id FROM franchises WHERE name = ?", rr.Franchise).Scan(&franchiseID)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.RoleAssignment{}, fmt.Errorf("%w: franchise %q", ErrNotFound, rr.Franchise)
	}
	if err != nil {
		return auth.RoleAssignment{}, fmt.Errorf("resolving franchise %q: %w", rr.Franchise, err)
	}
	return auth.FranchiseeRole(franchiseID), nil
}

func insertRole(ctx context.Context, q database.Querier, userID int64, a auth.RoleAssignment) error {
	_, err := q.ExecContext(ctx,
		"INSERT INTO user_roles (user_id, role, object_id) VALUES (?, ?, ?)",
		userID, string(a.Role()), a.ObjectPtr())
	if err != nil {
		return fmt.Errorf("inserting %s role for user %d: %w", a, userID, err)
	}
	return nil
}

// userRow is a users row including the digest, which never leaves the package.
type userRow struct {
	user   auth.User
	digest string
}

// AuthenticateUser looks a user up by email. With a non-nil password the
// password must verify. Unknown email and wrong password both fail with
// ErrNotFound so callers cannot tell them apart.
func (r *Repository) AuthenticateUser(ctx context.Context, email string, password *string) (*auth.User, error) {
	var row *userRow
	err := r.pool.WithConn(ctx, func(c *database.Conn) error {
		var err error
		row, err = loadUser(ctx, c, "email = ?", email)
		return err
	})
	if err != nil {
		return nil, err
	}

	// Verification runs after the connection is back in the pool.
	if password != nil {
		ok, err := r.hasher.Verify(*password, row.digest)
		if err != nil {
			return nil, fmt.Errorf("verifying password for user %d: %w", row.user.ID, err)
		}
		if !ok {
			return nil, fmt.Errorf("%w: unknown user", ErrNotFound)
		}
	}
	return &row.user, nil
}

// GetUserByID returns a user with resolved roles.
func (r *Repository) GetUserByID(ctx context.Context, id int64) (*auth.User, error) {
	var row *userRow
	err := r.pool.WithConn(ctx, func(c *database.Conn) error {
		var err error
		row, err = loadUser(ctx, c, "id = ?", id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &row.user, nil
}

// loadUser reads one user by a fixed predicate and attaches its roles.
func loadUser(ctx context.Context, q database.Querier, where string, arg any) (*userRow, error) {
	row := &userRow{}
	err := q.QueryRowContext(ctx,
		"SELECT id, name, email, password_hash FROM users WHERE "+where, arg,
	).Scan(&row.user.ID, &row.user.Name, &row.user.Email, &row.digest)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: unknown user", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("querying user: %w", err)
	}

	row.user.Roles, err = loadRoles(ctx, q, row.user.ID)
	if err != nil {
		return nil, err
	}
	return row, nil
}

func loadRoles(ctx context.Context, q database.Querier, userID int64) ([]auth.RoleAssignment, error) {
	rows, err := q.QueryContext(ctx,
		"SELECT role, object_id FROM user_roles WHERE user_id = ? ORDER BY id", userID)
	if err != nil {
		return nil, fmt.Errorf("querying roles of user %d: %w", userID, err)
	}
	defer rows.Close()

	roles := []auth.RoleAssignment{}
	for rows.Next() {
		var role string
		var objectID sql.NullInt64
		if err := rows.Scan(&role, &objectID); err != nil {
			return nil, fmt.Errorf("scanning role: %w", err)
		}
		var target *int64
		if objectID.Valid {
			target = &objectID.Int64
		}
		a, err := auth.NewRoleAssignment(auth.Role(role), target)
		if err != nil {
			return nil, fmt.Errorf("role row of user %d: %w", userID, err)
		}
		roles = append(roles, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating roles: %w", err)
	}
	return roles, nil
}

// UpdateUser changes only the supplied non-empty fields and returns the
// refreshed user.
// Column names are fixed; values are always bound parameters.
func (r *Repository) UpdateUser(ctx context.Context, id int64, upd UserUpdate) (*auth.User, error) {
	if upd.Empty() {
		return r.GetUserByID(ctx, id)
	}

	var sets []string
	var args []any
	if supplied(upd.Name) {
		sets = append(sets, "name = ?")
		args = append(args, *upd.Name)
	}
	if supplied(upd.Email) {
		sets = append(sets, "email = ?")
		args = append(args, *upd.Email)
	}
	if supplied(upd.Password) {
		digest, err := r.hasher.Hash(*upd.Password)
		if err != nil {
			return nil, fmt.Errorf("%w: hashing password: %w", ErrInternal, err)
		}
		sets = append(sets, "password_hash = ?")
		args = append(args, digest)
	}
	args = append(args, id)

	query := "UPDATE users SET " + strings.Join(sets, ", ") + " WHERE id = ?"

	var row *userRow
	err := r.pool.WithConn(ctx, func(c *database.Conn) error {
		res, err := c.ExecContext(ctx, query, args...)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: email already registered", ErrConflict)
			}
			return fmt.Errorf("updating user %d: %w", id, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("updating user %d: %w", id, err)
		}
		if n == 0 {
			return fmt.Errorf("%w: unknown user", ErrNotFound)
		}
		row, err = loadUser(ctx, c, "id = ?", id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &row.user, nil
}

// DeleteUser removes a user and everything it owns: order items, orders,
// sessions, role assignments, then the user row, in one transaction.
// Deleting an unknown email commits nothing and is not an error.
func (r *Repository) DeleteUser(ctx context.Context, email string) error {
	return r.inTx(ctx, "delete user", func(c *database.Conn) error {
		var id int64
		err := c.QueryRowContext(ctx, "SELECT id FROM users WHERE email = ?", email).Scan(&id)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("resolving user: %w", err)
		}

		steps := []struct {
			what  string
			query string
		}{
			{"order items", "DELETE FROM order_items WHERE order_id IN (SELECT id FROM diner_orders WHERE diner_id = ?)"},
			{"orders", "DELETE FROM diner_orders WHERE diner_id = ?"},
			{"sessions", "DELETE FROM sessions WHERE user_id = ?"},
			{"roles", "DELETE FROM user_roles WHERE user_id = ?"},
			{"user", "DELETE FROM users WHERE id = ?"},
		}
		for _, s := range steps {
			if _, err := c.ExecContext(ctx, s.query, id); err != nil {
				return fmt.Errorf("deleting %s of user %d: %w", s.what, id, err)
			}
		}
		return nil
	})
}

// ListUsers returns one page of users whose name matches the glob, with
// roles attached, and whether more pages exist. Pages are 0-based.
func (r *Repository) ListUsers(ctx context.Context, page, limit int, nameFilter string) ([]auth.User, bool, error) {
	offset, size := pageWindow(page, limit, DefaultUsersPerPage)

	var users []auth.User
	var hasMore bool
	err := r.pool.WithConn(ctx, func(c *database.Conn) error {
		rows, err := c.QueryContext(ctx, `
			SELECT id, name, email FROM users
			WHERE name LIKE ? ESCAPE '\'
			ORDER BY id LIMIT ? OFFSET ?
		`, nameFilterPattern(nameFilter), size+1, offset)
		if err != nil {
			return fmt.Errorf("listing users: %w", err)
		}
		for rows.Next() {
			var u auth.User
			if err := rows.Scan(&u.ID, &u.Name, &u.Email); err != nil {
				rows.Close()
				return fmt.Errorf("scanning user: %w", err)
			}
			users = append(users, u)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return fmt.Errorf("iterating users: %w", err)
		}
		rows.Close()

		// One extra row was fetched to detect a following page.
		if len(users) > size {
			hasMore = true
			users = users[:size]
		}
		for i := range users {
			if users[i].Roles, err = loadRoles(ctx, c, users[i].ID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	if users == nil {
		users = []auth.User{}
	}
	return users, hasMore, nil
}

// CountUsers returns the number of accounts.
func (r *Repository) CountUsers(ctx context.Context) (int, error) {
	var n int
	err := r.pool.WithConn(ctx, func(c *database.Conn) error {
		return c.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&n)
	})
	if err != nil {
		return 0, fmt.Errorf("counting users: %w", err)
	}
	return n, nil
}
