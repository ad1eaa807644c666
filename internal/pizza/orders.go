package pizza

import (
	"context"
	"fmt"
	"time"

	"github.com/nerrad567/pizza-service/internal/infrastructure/database"
)

// ListOrdersForUser returns one page of a diner's orders, newest id last,
// each with its items. Pages are 1-based and a fixed size; page values
// below 1 are treated as 1.
func (r *Repository) ListOrdersForUser(ctx context.Context, userID int64, page int) (*OrderPage, error) {
	if page < 1 {
		page = 1
	}
	offset := (page - 1) * r.ordersPerPage

	result := &OrderPage{DinerID: userID, Page: page, Orders: []Order{}}
	err := r.pool.WithConn(ctx, func(c *database.Conn) error {
		rows, err := c.QueryContext(ctx, `
			SELECT id, franchise_id, store_id, created_at
			FROM diner_orders
			WHERE diner_id = ?
			ORDER BY id LIMIT ? OFFSET ?
		`, userID, r.ordersPerPage, offset)
		if err != nil {
			return fmt.Errorf("querying orders of user %d: %w", userID, err)
		}
		for rows.Next() {
			o := Order{DinerID: userID}
			var createdAt string
			if err := rows.Scan(&o.ID, &o.FranchiseID, &o.StoreID, &createdAt); err != nil {
				rows.Close()
				return fmt.Errorf("scanning order: %w", err)
			}
			if o.CreatedAt, err = parseTime(createdAt); err != nil {
				rows.Close()
				return err
			}
			result.Orders = append(result.Orders, o)
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return fmt.Errorf("iterating orders: %w", err)
		}

		for i := range result.Orders {
			if result.Orders[i].Items, err = queryOrderItems(ctx, c, result.Orders[i].ID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func queryOrderItems(ctx context.Context, q database.Querier, orderID int64) ([]OrderItem, error) {
	rows, err := q.QueryContext(ctx,
		"SELECT id, menu_id, description, price FROM order_items WHERE order_id = ? ORDER BY id", orderID)
	if err != nil {
		return nil, fmt.Errorf("querying items of order %d: %w", orderID, err)
	}
	defer rows.Close()

	items := []OrderItem{}
	for rows.Next() {
		var it OrderItem
		if err := rows.Scan(&it.ID, &it.MenuID, &it.Description, &it.Price); err != nil {
			return nil, fmt.Errorf("scanning order item: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating order items: %w", err)
	}
	return items, nil
}

// CreateOrder records an order for userID in one transaction. Each item's
// menu id must exist, otherwise the order fails with ErrNotFound and
// nothing is written. Items keep the price the caller supplied; the live
// menu price is never read.
func (r *Repository) CreateOrder(ctx context.Context, userID int64, no NewOrder) (*Order, error) {
	if len(no.Items) == 0 {
		return nil, fmt.Errorf("%w: order has no items", ErrInvalid)
	}

	order := &Order{
		DinerID:     userID,
		FranchiseID: no.FranchiseID,
		StoreID:     no.StoreID,
		CreatedAt:   r.now().UTC().Truncate(time.Second),
		Items:       make([]OrderItem, 0, len(no.Items)),
	}

	err := r.inTx(ctx, "create order", func(c *database.Conn) error {
		res, err := c.ExecContext(ctx, `
			INSERT INTO diner_orders (diner_id, franchise_id, store_id, created_at)
			VALUES (?, ?, ?, ?)
		`, userID, no.FranchiseID, no.StoreID, formatTime(order.CreatedAt))
		if err != nil {
			if isForeignKeyViolation(err) {
				return fmt.Errorf("%w: unknown user %d", ErrNotFound, userID)
			}
			return fmt.Errorf("inserting order: %w", err)
		}
		if order.ID, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("reading order id: %w", err)
		}

		for _, item := range no.Items {
			var exists int
			if err := c.QueryRowContext(ctx,
				"SELECT EXISTS (SELECT 1 FROM menu WHERE id = ?)", item.MenuID,
			).Scan(&exists); err != nil {
				return fmt.Errorf("checking menu item %d: %w", item.MenuID, err)
			}
			if exists == 0 {
				return fmt.Errorf("%w: menu item %d", ErrNotFound, item.MenuID)
			}

			res, err := c.ExecContext(ctx, `
				INSERT INTO order_items (order_id, menu_id, description, price)
				VALUES (?, ?, ?, ?)
			`, order.ID, item.MenuID, item.Description, item.Price)
			if err != nil {
				return fmt.Errorf("inserting order item: %w", err)
			}
			itemID, err := res.LastInsertId()
			if err != nil {
				return fmt.Errorf("reading order item id: %w", err)
			}
			order.Items = append(order.Items, OrderItem{
				ID:          itemID,
				MenuID:      item.MenuID,
				Description: item.Description,
				Price:       item.Price,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// ListMenu returns the whole menu ordered by id.
func (r *Repository) ListMenu(ctx context.Context) ([]MenuItem, error) {
	items := []MenuItem{}
	err := r.pool.WithConn(ctx, func(c *database.Conn) error {
		rows, err := c.QueryContext(ctx,
			"SELECT id, title, description, image, price FROM menu ORDER BY id")
		if err != nil {
			return fmt.Errorf("querying menu: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var m MenuItem
			if err := rows.Scan(&m.ID, &m.Title, &m.Description, &m.Image, &m.Price); err != nil {
				return fmt.Errorf("scanning menu item: %w", err)
			}
			items = append(items, m)
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("iterating menu: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

// AddMenuItem inserts a menu entry and returns it with its id.
func (r *Repository) AddMenuItem(ctx context.Context, item MenuItem) (*MenuItem, error) {
	if item.Title == "" {
		return nil, fmt.Errorf("%w: menu item title is required", ErrInvalid)
	}

	err := r.pool.WithConn(ctx, func(c *database.Conn) error {
		res, err := c.ExecContext(ctx,
			"INSERT INTO menu (title, description, image, price) VALUES (?, ?, ?, ?)",
			item.Title, item.Description, item.Image, item.Price)
		if err != nil {
			return fmt.Errorf("inserting menu item: %w", err)
		}
		item.ID, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// UpdateMenuItem replaces a menu entry. Orders already placed keep the
// prices they were charged.
func (r *Repository) UpdateMenuItem(ctx context.Context, item MenuItem) error {
	return r.pool.WithConn(ctx, func(c *database.Conn) error {
		res, err := c.ExecContext(ctx,
			"UPDATE menu SET title = ?, description = ?, image = ?, price = ? WHERE id = ?",
			item.Title, item.Description, item.Image, item.Price, item.ID)
		if err != nil {
			return fmt.Errorf("updating menu item %d: %w", item.ID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("updating menu item %d: %w", item.ID, err)
		}
		if n == 0 {
			return fmt.Errorf("%w: menu item %d", ErrNotFound, item.ID)
		}
		return nil
	})
}
