package influxdb

import (
	"strconv"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	MeasurementOrders       = "orders"
	MeasurementAuthAttempts = "auth_attempts"
	MeasurementDBPool       = "db_pool"
)

// Auth attempt outcomes, used as the outcome tag.
const (
	OutcomeSuccess  = "success"
	OutcomeFailure  = "failure"
	OutcomeRegister = "register"
	OutcomeLogout   = "logout"
)

// WriteOrderMetric records one placed order against its store, timestamped
// when the order was placed.
//
//	client.WriteOrderMetric(1, 4, 2, 0.008, order.CreatedAt)
func (c *Client) WriteOrderMetric(franchiseID, storeID int64, items int, revenue float64, placedAt time.Time) {
	c.write(MeasurementOrders,
		map[string]string{
			"franchise_id": strconv.FormatInt(franchiseID, 10),
			"store_id":     strconv.FormatInt(storeID, 10),
		},
		map[string]any{"items": items, "revenue": revenue},
		placedAt)
}

// WriteAuthAttempt counts a login, registration or logout by outcome.
// No user identifier is recorded.
func (c *Client) WriteAuthAttempt(outcome string) {
	c.write(MeasurementAuthAttempts,
		map[string]string{"outcome": outcome},
		map[string]any{"count": 1},
		time.Now())
}

// WritePoolStats samples connection pool usage.
func (c *Client) WritePoolStats(capacity, inUse, waiting int64) {
	c.write(MeasurementDBPool, nil,
		map[string]any{"capacity": capacity, "in_use": inUse, "waiting": waiting},
		time.Now())
}

// write queues a point; it never blocks and drops the point when closed.
func (c *Client) write(measurement string, tags map[string]string, fields map[string]any, ts time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, ts))
}
