// Package config loads config.yaml for the pizza service.
//
// Values are layered: built-in defaults, then the YAML file, then PIZZA_*
// environment variables. Validate collects every problem before failing so
// an operator fixes a bad file in one pass.
//
// The JWT secret has no default and must be at least 32 characters. Keep it,
// the broker and InfluxDB credentials and the bootstrap admin password in
// the environment (PIZZA_JWT_SECRET, PIZZA_MQTT_PASSWORD,
// PIZZA_INFLUXDB_TOKEN, PIZZA_BOOTSTRAP_ADMIN_PASSWORD) rather than in the
// file, and keep the file itself at 0600.
//
//	cfg, err := config.Load(os.Getenv("PIZZA_CONFIG"))
package config
