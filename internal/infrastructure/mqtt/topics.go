package mqtt

import "fmt"

// Topic prefixes.
const (
	// TopicPrefixOrders is the base for order events.
	TopicPrefixOrders = "pizza/orders"

	// TopicPrefixMenu is the base for menu change events.
	TopicPrefixMenu = "pizza/menu"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "pizza/system"
)

// Topics provides builders for the service's MQTT topics.
//
//	topic := mqtt.Topics{}.OrderPlaced(1, 4)
//	// Returns: "pizza/orders/1/4"
type Topics struct{}

// OrderPlaced returns the topic a store's kitchen listens on for new orders.
//
// Example: pizza/orders/1/4
func (Topics) OrderPlaced(franchiseID, storeID int64) string {
	return fmt.Sprintf("%s/%d/%d", TopicPrefixOrders, franchiseID, storeID)
}

// MenuUpdated returns the topic announcing menu changes.
//
// Example: pizza/menu/updated
func (Topics) MenuUpdated() string {
	return TopicPrefixMenu + "/updated"
}

// SystemStatus returns the retained online/offline status topic.
//
// Example: pizza/system/status
func (Topics) SystemStatus() string {
	return TopicPrefixSystem + "/status"
}

// FranchiseOrders matches every store of one franchise.
//
// Pattern: pizza/orders/1/+
func (Topics) FranchiseOrders(franchiseID int64) string {
	return fmt.Sprintf("%s/%d/+", TopicPrefixOrders, franchiseID)
}

// AllOrders matches order events for every store.
//
// Pattern: pizza/orders/+/+
func (Topics) AllOrders() string {
	return TopicPrefixOrders + "/+/+"
}
