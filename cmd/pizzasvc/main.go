// Command pizzasvc serves the pizza franchise ordering API.
//
// It opens and migrates the SQLite store, seeds the bootstrap admin, and
// serves HTTP until SIGINT or SIGTERM. MQTT order events and InfluxDB
// metrics are optional and the service runs without them.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/nerrad567/pizza-service/migrations"

	"github.com/nerrad567/pizza-service/internal/api"
	"github.com/nerrad567/pizza-service/internal/audit"
	"github.com/nerrad567/pizza-service/internal/auth"
	"github.com/nerrad567/pizza-service/internal/infrastructure/config"
	"github.com/nerrad567/pizza-service/internal/infrastructure/database"
	"github.com/nerrad567/pizza-service/internal/infrastructure/influxdb"
	"github.com/nerrad567/pizza-service/internal/infrastructure/logging"
	"github.com/nerrad567/pizza-service/internal/infrastructure/mqtt"
	"github.com/nerrad567/pizza-service/internal/pizza"
)

// Set with -ldflags "-X main.version=1.2.0 -X main.commit=$(git rev-parse --short HEAD)".
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run starts the service and blocks until ctx is cancelled. Store, config
// and seeding failures are fatal; broker failures are not. Deferred closes
// run in reverse: API server (which flushes queued audit entries), InfluxDB,
// MQTT, database.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting pizza service", "version", version, "commit", commit, "build_date", date)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded", "path", configPath, "level", cfg.Logging.Level)

	dbCfg := database.Config{
		Path:           cfg.Database.Path,
		WALMode:        cfg.Database.WALMode,
		BusyTimeout:    cfg.Database.BusyTimeout,
		MaxOpenConns:   cfg.Database.MaxOpenConns,
		MaxWaiting:     cfg.Database.MaxWaiting,
		AcquireTimeout: cfg.GetAcquireTimeout(),
	}
	db, err := database.Open(dbCfg)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer closeLogged(log, "database", db.Close)

	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	pool := database.NewPool(db, dbCfg)
	log.Info("database ready", "path", cfg.Database.Path, "pool_capacity", pool.Stats().Capacity)

	hasher, err := auth.NewPasswordHasher(auth.HashConfig{
		Algorithm:  cfg.Security.Password.Algorithm,
		BcryptCost: cfg.Security.Password.BcryptCost,
	})
	if err != nil {
		return fmt.Errorf("creating password hasher: %w", err)
	}
	repo := pizza.NewRepository(pool, hasher, pizza.Config{
		OrdersPerPage:     cfg.Store.OrdersPerPage,
		FranchisesPerPage: cfg.Store.FranchisesPerPage,
	})

	admin := auth.BootstrapAdmin{
		Name:     cfg.Bootstrap.AdminName,
		Email:    cfg.Bootstrap.AdminEmail,
		Password: cfg.Bootstrap.AdminPassword,
	}
	if _, err := auth.SeedAdmin(ctx, repo, admin, log.Logger); err != nil {
		return fmt.Errorf("seeding admin: %w", err)
	}

	deps := api.Deps{
		Config:   cfg.API,
		Logger:   log,
		Repo:     repo,
		Sessions: auth.NewSessionStore(pool),
		Tokens:   auth.NewTokenIssuer(cfg.Security.JWT.Secret, cfg.GetTokenTTL()),
		Pool:     pool,
		Audit:    audit.NewSQLiteRepository(pool),
		Version:  version,
	}

	// The interfaces in deps stay nil for a disabled or unreachable broker.
	mqttClient := connectMQTT(ctx, cfg.MQTT, log)
	if mqttClient != nil {
		defer closeLogged(log, "MQTT", mqttClient.Close)
		deps.Events = &orderEventAdapter{client: mqttClient}
	}
	influxClient := connectInfluxDB(ctx, cfg.InfluxDB, cfg.Service.ID, log)
	if influxClient != nil {
		defer closeLogged(log, "InfluxDB", influxClient.Close)
		deps.Metrics = &metricsAdapter{client: influxClient}
		go reportPoolStats(ctx, pool, influxClient, poolStatsInterval)
	}

	server, err := api.New(deps)
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer closeLogged(log, "API server", server.Close)

	if err := healthCheck(ctx, pool, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	log.Info("pizza service ready")
	<-ctx.Done()
	log.Info("shutdown signal received")
	return nil
}

func getConfigPath() string {
	if path := os.Getenv("PIZZA_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

func closeLogged(log *logging.Logger, name string, closeFn func() error) {
	if err := closeFn(); err != nil {
		log.Error("closing "+name, "error", err)
		return
	}
	log.Info(name + " closed")
}

// healthCheck verifies the store and whichever brokers are connected.
func healthCheck(ctx context.Context, pool *database.Pool, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := pool.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}
	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}
	return nil
}
