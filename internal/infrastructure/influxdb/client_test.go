package influxdb_test

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/pizza-service/internal/infrastructure/config"
	"github.com/nerrad567/pizza-service/internal/infrastructure/influxdb"
)

// testConfig returns a configuration for a local dev InfluxDB.
func testConfig() config.InfluxDBConfig {
	return config.InfluxDBConfig{
		Enabled:       true,
		URL:           "http://127.0.0.1:8086",
		Token:         "pizza-dev-token",
		Org:           "pizza",
		Bucket:        "metrics",
		BatchSize:     100,
		FlushInterval: 1,
	}
}

// connectOrSkip connects to the local InfluxDB or skips the test.
func connectOrSkip(t *testing.T) *influxdb.Client {
	t.Helper()
	client, err := influxdb.Connect(context.Background(), testConfig(), "pizza-test")
	if err != nil {
		if os.Getenv("RUN_INTEGRATION") != "" {
			t.Fatalf("Connect() error = %v", err)
		}
		t.Skip("InfluxDB not available, skipping integration test")
	}
	t.Cleanup(func() { client.Close() }) //nolint:errcheck // Test cleanup
	return client
}

// collectErrors records async write errors.
func collectErrors(client *influxdb.Client) func() error {
	var mu sync.Mutex
	var writeErr error
	client.SetOnError(func(err error) {
		mu.Lock()
		writeErr = err
		mu.Unlock()
	})
	return func() error {
		mu.Lock()
		defer mu.Unlock()
		return writeErr
	}
}

func TestConnect_Disabled(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false

	_, err := influxdb.Connect(context.Background(), cfg, "pizza-test")
	if !errors.Is(err, influxdb.ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestConnect_InvalidURL(t *testing.T) {
	cfg := testConfig()
	cfg.URL = "http://127.0.0.1:59999"

	_, err := influxdb.Connect(context.Background(), cfg, "pizza-test")
	if !errors.Is(err, influxdb.ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestUnconnectedClient(t *testing.T) {
	client := &influxdb.Client{}

	// Writes on a client that never connected are dropped without panicking.
	client.WriteOrderMetric(1, 1, 2, 0.008, time.Now())
	client.WriteAuthAttempt(influxdb.OutcomeSuccess)
	client.WritePoolStats(4, 1, 0)
	client.Flush()

	if client.IsConnected() {
		t.Error("IsConnected() = true for unconnected client")
	}
	if err := client.HealthCheck(context.Background()); !errors.Is(err, influxdb.ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}
	if err := client.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestConnect(t *testing.T) {
	client := connectOrSkip(t)

	if !client.IsConnected() {
		t.Error("IsConnected() = false after Connect()")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.HealthCheck(ctx); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}

func TestWrites(t *testing.T) {
	client := connectOrSkip(t)
	writeErr := collectErrors(client)

	tests := map[string]func(){
		"order":     func() { client.WriteOrderMetric(1, 4, 2, 0.008, time.Now().Add(-time.Minute)) },
		"pool":      func() { client.WritePoolStats(10, 3, 1) },
		"auth":      func() { client.WriteAuthAttempt(influxdb.OutcomeSuccess) },
		"auth fail": func() { client.WriteAuthAttempt(influxdb.OutcomeFailure) },
		"register":  func() { client.WriteAuthAttempt(influxdb.OutcomeRegister) },
		"logout":    func() { client.WriteAuthAttempt(influxdb.OutcomeLogout) },
	}
	for name, write := range tests {
		t.Run(name, func(t *testing.T) {
			write()
			client.Flush()
			time.Sleep(100 * time.Millisecond)
			if err := writeErr(); err != nil {
				t.Errorf("async write error = %v", err)
			}
		})
	}
}

func TestClose(t *testing.T) {
	client := connectOrSkip(t)

	client.WriteAuthAttempt(influxdb.OutcomeLogout)

	if err := client.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if client.IsConnected() {
		t.Error("IsConnected() = true after Close()")
	}

	// Flush and a second Close are no-ops.
	client.Flush()
	if err := client.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}
