package main

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/nerrad567/pizza-service/internal/pizza"
)

const testJWTSecret = "test-secret-key-at-least-32-chars!"

// writeTestConfig writes a config with MQTT and InfluxDB disabled and points
// PIZZA_CONFIG at it.
func writeTestConfig(t *testing.T, dbPath string, port int, jwtSecret string) {
	t.Helper()

	configPath := filepath.Join(t.TempDir(), "test-config.yaml")
	configContent := fmt.Sprintf(`
service:
  id: test-pizza

database:
  path: %q
  wal_mode: true
  busy_timeout: 5
  max_open_conns: 4

mqtt:
  enabled: false

influxdb:
  enabled: false

logging:
  level: error
  format: text
  output: stdout

api:
  host: "127.0.0.1"
  port: %d
  timeouts:
    read: 5
    write: 5
    idle: 5

security:
  jwt:
    secret: %q
  password:
    bcrypt_cost: 4
`, dbPath, port, jwtSecret)

	if err := os.WriteFile(configPath, []byte(configContent), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	t.Setenv("PIZZA_CONFIG", configPath)
	t.Setenv("PIZZA_JWT_SECRET", "")
}

// freePort asks the kernel for an unused TCP port.
func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func TestRun_InvalidConfig(t *testing.T) {
	t.Setenv("PIZZA_CONFIG", "/nonexistent/path/config.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
}

func TestRun_WeakJWTSecret(t *testing.T) {
	writeTestConfig(t, filepath.Join(t.TempDir(), "pizza.db"), freePort(t), "short")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should refuse a short JWT secret")
	}
}

func TestGetConfigPath_Default(t *testing.T) {
	t.Setenv("PIZZA_CONFIG", "")

	if got := getConfigPath(); got != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", got, defaultConfigPath)
	}
}

func TestGetConfigPath_EnvOverride(t *testing.T) {
	t.Setenv("PIZZA_CONFIG", "/custom/config.yaml")

	if got := getConfigPath(); got != "/custom/config.yaml" {
		t.Errorf("getConfigPath() = %q, want %q", got, "/custom/config.yaml")
	}
}

// TestRun_StartupServeAndShutdown starts the service without optional
// brokers, waits for /api/health, then cancels and expects a clean exit with
// the bootstrap admin seeded.
func TestRun_StartupServeAndShutdown(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "pizza.db")
	port := freePort(t)
	writeTestConfig(t, dbPath, port, testJWTSecret)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- run(ctx) }()

	healthURL := fmt.Sprintf("http://127.0.0.1:%d/api/health", port)
	deadline := time.Now().Add(10 * time.Second)
	for {
		resp, err := http.Get(healthURL) //nolint:noctx // test polling
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				break
			}
		}
		if time.Now().After(deadline) {
			cancel()
			t.Fatalf("service not healthy before deadline: last error %v", err)
		}
		select {
		case err := <-done:
			t.Fatalf("run() exited early: %v", err)
		case <-time.After(50 * time.Millisecond):
		}
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run() error = %v", err)
		}
	case <-time.After(15 * time.Second):
		t.Fatal("run() did not return after cancel")
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		t.Fatalf("reopening db: %v", err)
	}
	defer db.Close()

	var users int
	if err := db.QueryRow("SELECT COUNT(*) FROM users").Scan(&users); err != nil {
		t.Fatalf("counting users: %v", err)
	}
	if users != 1 {
		t.Errorf("users = %d, want the seeded admin only", users)
	}
}

func TestOrderEvent(t *testing.T) {
	placed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	order := &pizza.Order{
		ID:          7,
		DinerID:     3,
		FranchiseID: 1,
		StoreID:     2,
		CreatedAt:   placed,
		Items: []pizza.OrderItem{
			{MenuID: 1, Description: "Veggie", Price: 0.5},
			{MenuID: 2, Description: "Pepperoni", Price: 0.25},
		},
	}

	ev := orderEvent(order)
	if ev.OrderID != 7 || ev.DinerID != 3 || ev.FranchiseID != 1 || ev.StoreID != 2 {
		t.Errorf("ids = %+v", ev)
	}
	if len(ev.Items) != 2 || ev.Items[0] != "Veggie" || ev.Items[1] != "Pepperoni" {
		t.Errorf("Items = %v", ev.Items)
	}
	if ev.Total != 0.75 {
		t.Errorf("Total = %v, want 0.75", ev.Total)
	}
	if !ev.PlacedAt.Equal(placed) {
		t.Errorf("PlacedAt = %v, want %v", ev.PlacedAt, placed)
	}
}
