package mqtt

import (
	"encoding/json"
	"fmt"
	"time"
)

// OrderEvent is the payload published when a diner places an order.
type OrderEvent struct {
	OrderID     int64     `json:"order_id"`
	DinerID     int64     `json:"diner_id"`
	FranchiseID int64     `json:"franchise_id"`
	StoreID     int64     `json:"store_id"`
	Items       []string  `json:"items"`
	Total       float64   `json:"total"`
	PlacedAt    time.Time `json:"placed_at"`
}

// PublishOrderPlaced publishes an order event to its store's topic.
// Order events are never retained.
func (c *Client) PublishOrderPlaced(ev OrderEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("%w: encoding order %d: %w", ErrPublishFailed, ev.OrderID, err)
	}
	return c.Publish(Topics{}.OrderPlaced(ev.FranchiseID, ev.StoreID), payload, c.qos, false)
}

// MenuEvent is the payload published after the menu changes.
type MenuEvent struct {
	ItemCount int       `json:"item_count"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PublishMenuUpdated announces a menu change. The latest event is retained
// so displays that connect later still see when the menu last changed.
func (c *Client) PublishMenuUpdated(ev MenuEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("%w: encoding menu event: %w", ErrPublishFailed, err)
	}
	return c.Publish(Topics{}.MenuUpdated(), payload, c.qos, true)
}
