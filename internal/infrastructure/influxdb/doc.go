// Package influxdb records business metrics for the pizza service.
//
// It wraps the official influxdb-client-go v2 library with a non-blocking,
// batched write API.
//
// # Measurements
//
//	orders         tags franchise_id, store_id; fields items, revenue
//	auth_attempts  tag outcome (success, failure, register, logout); field count
//	db_pool        fields capacity, in_use, waiting
//
// Every point also carries the service tag passed to Connect.
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB, cfg.Service.ID)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	client.WriteOrderMetric(order.FranchiseID, order.StoreID, len(order.Items), order.Total(), order.CreatedAt)
//
// Writes on a disabled or closed client are silently dropped. Batch errors
// arrive asynchronously through SetOnError.
package influxdb
