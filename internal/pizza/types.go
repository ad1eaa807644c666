package pizza

import (
	"time"

	"github.com/nerrad567/pizza-service/internal/auth"
)

// RoleRequest asks for a role at user creation. Franchise names the target
// franchise of a franchisee role and is resolved to its id.
type RoleRequest struct {
	Role      auth.Role `json:"role"`
	Franchise string    `json:"franchise,omitempty"`
}

// NewUser is the input to CreateUser. With no Roles the user is a diner.
type NewUser struct {
	Name     string        `json:"name"`
	Email    string        `json:"email"`
	Password string        `json:"password"`
	Roles    []RoleRequest `json:"roles,omitempty"`
}

// UserUpdate lists the fields to change; nil fields are left alone.
type UserUpdate struct {
	Name     *string `json:"name,omitempty"`
	Email    *string `json:"email,omitempty"`
	Password *string `json:"password,omitempty"`
}

// Empty reports whether the update changes nothing. An empty string counts
// as not supplied, so a blank form field never clears a column.
func (u UserUpdate) Empty() bool {
	return !supplied(u.Name) && !supplied(u.Email) && !supplied(u.Password)
}

// ChangesPassword reports whether applying u sets a new password.
func (u UserUpdate) ChangesPassword() bool { return supplied(u.Password) }

func supplied(s *string) bool { return s != nil && *s != "" }

// FranchiseAdmin is a user holding the franchisee role for a franchise.
type FranchiseAdmin struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Store is a location of a franchise. TotalRevenue is only filled in for
// fully hydrated franchise views.
type Store struct {
	ID           int64    `json:"id"`
	FranchiseID  int64    `json:"franchise_id"`
	Name         string   `json:"name"`
	TotalRevenue *float64 `json:"total_revenue,omitempty"`
}

// Franchise groups stores under a brand. Admins is nil unless the view is
// fully hydrated.
type Franchise struct {
	ID     int64            `json:"id"`
	Name   string           `json:"name"`
	Admins []FranchiseAdmin `json:"admins,omitempty"`
	Stores []Store          `json:"stores"`
}

// NewFranchise is the input to CreateFranchise. Admins are user emails.
type NewFranchise struct {
	Name   string   `json:"name"`
	Admins []string `json:"admins"`
}

// MenuItem is an entry of the shared menu.
type MenuItem struct {
	ID          int64   `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Image       string  `json:"image"`
	Price       float64 `json:"price"`
}

// OrderItem is a line of an order. Price is the price charged when the
// order was placed, independent of later menu changes.
type OrderItem struct {
	ID          int64   `json:"id"`
	MenuID      int64   `json:"menu_id"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
}

// Order is a diner's order at one store.
type Order struct {
	ID          int64       `json:"id"`
	DinerID     int64       `json:"diner_id"`
	FranchiseID int64       `json:"franchise_id"`
	StoreID     int64       `json:"store_id"`
	CreatedAt   time.Time   `json:"date"`
	Items       []OrderItem `json:"items"`
}

// Total returns the sum of item prices.
func (o *Order) Total() float64 {
	var total float64
	for _, it := range o.Items {
		total += it.Price
	}
	return total
}

// NewOrderItem is one requested line of a new order.
type NewOrderItem struct {
	MenuID      int64   `json:"menu_id"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
}

// NewOrder is the input to CreateOrder.
type NewOrder struct {
	FranchiseID int64          `json:"franchise_id"`
	StoreID     int64          `json:"store_id"`
	Items       []NewOrderItem `json:"items"`
}

// OrderPage is one page of a diner's order history. Page is 1-based.
type OrderPage struct {
	DinerID int64   `json:"diner_id"`
	Orders  []Order `json:"orders"`
	Page    int     `json:"page"`
}
