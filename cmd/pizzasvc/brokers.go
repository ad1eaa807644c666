package main

import (
	"context"
	"fmt"
	"time"

	"github.com/nerrad567/pizza-service/internal/infrastructure/config"
	"github.com/nerrad567/pizza-service/internal/infrastructure/database"
	"github.com/nerrad567/pizza-service/internal/infrastructure/influxdb"
	"github.com/nerrad567/pizza-service/internal/infrastructure/logging"
	"github.com/nerrad567/pizza-service/internal/infrastructure/mqtt"
	"github.com/nerrad567/pizza-service/internal/pizza"
)

// poolStatsInterval is how often pool usage is sampled into InfluxDB.
const poolStatsInterval = 30 * time.Second

// connectMQTT returns nil when MQTT is disabled or the broker is
// unreachable; orders are then simply not announced.
func connectMQTT(ctx context.Context, cfg config.MQTTConfig, log *logging.Logger) *mqtt.Client {
	if !cfg.Enabled {
		log.Info("MQTT disabled")
		return nil
	}
	client, err := mqtt.Connect(ctx, cfg)
	if err != nil {
		log.Warn("MQTT unavailable, order events disabled", "error", err)
		return nil
	}
	client.SetLogger(log)
	client.SetOnConnect(func() { log.Info("MQTT connected") })
	client.SetOnDisconnect(func(err error) { log.Warn("MQTT disconnected", "error", err) })
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.Broker.Host, cfg.Broker.Port),
		"client_id", cfg.Broker.ClientID,
	)
	return client
}

// connectInfluxDB returns nil when metrics are disabled or the server is
// unreachable.
func connectInfluxDB(ctx context.Context, cfg config.InfluxDBConfig, serviceID string, log *logging.Logger) *influxdb.Client {
	if !cfg.Enabled {
		log.Info("InfluxDB disabled")
		return nil
	}
	client, err := influxdb.Connect(ctx, cfg, serviceID)
	if err != nil {
		log.Warn("InfluxDB unavailable, metrics disabled", "error", err)
		return nil
	}
	client.SetOnError(func(err error) { log.Error("InfluxDB write failed", "error", err) })
	log.Info("InfluxDB connected", "url", cfg.URL, "org", cfg.Org, "bucket", cfg.Bucket)
	return client
}

// reportPoolStats samples connection pool usage until ctx is done.
func reportPoolStats(ctx context.Context, pool *database.Pool, client *influxdb.Client, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			st := pool.Stats()
			client.WritePoolStats(st.Capacity, st.InUse, st.Waiting)
		}
	}
}

// orderEventAdapter satisfies api.OrderPublisher.
type orderEventAdapter struct {
	client *mqtt.Client
}

func (a *orderEventAdapter) PublishOrder(order *pizza.Order) error {
	return a.client.PublishOrderPlaced(orderEvent(order))
}

func (a *orderEventAdapter) PublishMenu(items []pizza.MenuItem) error {
	return a.client.PublishMenuUpdated(mqtt.MenuEvent{ItemCount: len(items), UpdatedAt: time.Now().UTC()})
}

func orderEvent(order *pizza.Order) mqtt.OrderEvent {
	items := make([]string, 0, len(order.Items))
	for _, it := range order.Items {
		items = append(items, it.Description)
	}
	return mqtt.OrderEvent{
		OrderID:     order.ID,
		DinerID:     order.DinerID,
		FranchiseID: order.FranchiseID,
		StoreID:     order.StoreID,
		Items:       items,
		Total:       order.Total(),
		PlacedAt:    order.CreatedAt,
	}
}

// metricsAdapter satisfies api.MetricsRecorder.
type metricsAdapter struct {
	client *influxdb.Client
}

func (a *metricsAdapter) RecordOrder(order *pizza.Order) {
	a.client.WriteOrderMetric(order.FranchiseID, order.StoreID, len(order.Items), order.Total(), order.CreatedAt)
}

func (a *metricsAdapter) RecordAuthAttempt(outcome string) {
	a.client.WriteAuthAttempt(outcome)
}
