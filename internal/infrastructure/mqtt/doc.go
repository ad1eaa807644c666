// Package mqtt publishes order events to store kitchens over MQTT.
//
// Connect fails fast if the broker is unreachable at startup; once connected,
// paho reconnects on its own and every reconnect republishes the online
// status. If the process dies without Close, the broker publishes the
// offline will for it.
//
// # Topics
//
//	pizza/orders/{franchiseID}/{storeID}   order placed (QoS from config, not retained)
//	pizza/menu/updated                     menu changed (retained)
//	pizza/system/status                    online/offline (retained, also the LWT)
//
// A store display subscribes to its own order topic; a franchise dashboard
// subscribes to pizza/orders/{franchiseID}/+.
//
// # Security Considerations
//
//   - Enable TLS for production deployments (cfg.Broker.TLS=true)
//   - Order payloads carry ids and prices, never names or emails
//
// # Usage
//
//	client, err := mqtt.Connect(ctx, cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	err = client.PublishOrderPlaced(mqtt.OrderEvent{OrderID: 7, FranchiseID: 1, StoreID: 4})
package mqtt
