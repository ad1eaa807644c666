package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config mirrors config.yaml. Load fills it from defaults, the file and then
// PIZZA_* environment variables, in that order.
type Config struct {
	Service   ServiceConfig   `yaml:"service"`
	Database  DatabaseConfig  `yaml:"database"`
	Store     StoreConfig     `yaml:"store"`
	Bootstrap BootstrapConfig `yaml:"bootstrap"`
	API       APIConfig       `yaml:"api"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
	Security  SecurityConfig  `yaml:"security"`
}

// ServiceConfig identifies this deployment.
type ServiceConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// DatabaseConfig contains SQLite and connection pool settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`

	// MaxOpenConns bounds concurrently checked-out connections.
	MaxOpenConns int `yaml:"max_open_conns"`

	// MaxWaiting bounds callers queued for a connection; beyond it
	// acquisition fails immediately.
	MaxWaiting int `yaml:"max_waiting"`

	// AcquireTimeout is how long a caller waits for a connection (seconds).
	AcquireTimeout int `yaml:"acquire_timeout"`
}

// StoreConfig contains repository paging settings.
type StoreConfig struct {
	OrdersPerPage     int `yaml:"orders_per_page"`
	FranchisesPerPage int `yaml:"franchises_per_page"`
}

// BootstrapConfig holds the admin account created on an empty database.
type BootstrapConfig struct {
	AdminName     string `yaml:"admin_name"`
	AdminEmail    string `yaml:"admin_email"`
	AdminPassword string `yaml:"admin_password"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// TLSConfig contains TLS certificate settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// APITimeoutConfig holds HTTP server timeouts in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

func (t APITimeoutConfig) ReadTimeout() time.Duration  { return seconds(t.Read) }
func (t APITimeoutConfig) WriteTimeout() time.Duration { return seconds(t.Write) }
func (t APITimeoutConfig) IdleTimeout() time.Duration  { return seconds(t.Idle) }

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// SecurityConfig contains security settings.
type SecurityConfig struct {
	JWT      JWTConfig      `yaml:"jwt"`
	Password PasswordConfig `yaml:"password"`
}

// JWTConfig contains JWT token settings.
type JWTConfig struct {
	Secret string `yaml:"secret"`

	// TokenTTL is the token lifetime in minutes.
	TokenTTL int `yaml:"token_ttl"`
}

// PasswordConfig selects the password digest for new hashes. Stored digests
// of either algorithm always verify.
type PasswordConfig struct {
	Algorithm  string `yaml:"algorithm"`
	BcryptCost int    `yaml:"bcrypt_cost"`
}

// Load reads path, applies PIZZA_* overrides and validates the result.
// Keys missing from the file keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- operator-supplied path
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Service: ServiceConfig{ID: "pizza-001", Name: "JWT Pizza"},
		Database: DatabaseConfig{
			Path:           "./data/pizza.db",
			WALMode:        true,
			BusyTimeout:    5,
			MaxOpenConns:   10,
			MaxWaiting:     64,
			AcquireTimeout: 5,
		},
		Store: StoreConfig{OrdersPerPage: 10, FranchisesPerPage: 10},
		MQTT: MQTTConfig{
			Broker:    MQTTBrokerConfig{Host: "localhost", Port: 1883, ClientID: "pizza-service"},
			QoS:       1,
			Reconnect: MQTTReconnectConfig{InitialDelay: 1, MaxDelay: 60},
		},
		API: APIConfig{
			Host:     "0.0.0.0",
			Port:     3000,
			Timeouts: APITimeoutConfig{Read: 30, Write: 30, Idle: 60},
		},
		InfluxDB: InfluxDBConfig{BatchSize: 100, FlushInterval: 10},
		Logging:  LoggingConfig{Level: "info", Format: "json", Output: "stdout"},
		Security: SecurityConfig{
			JWT:      JWTConfig{TokenTTL: 1440},
			Password: PasswordConfig{Algorithm: "bcrypt", BcryptCost: 10},
		},
	}
}

// envBinding maps one PIZZA_* variable onto a field. Unset or empty
// variables leave the field alone.
type envBinding struct {
	name  string
	apply func(cfg *Config, v string) error
}

func envString(name string, field func(*Config) *string) envBinding {
	return envBinding{name, func(cfg *Config, v string) error {
		*field(cfg) = v
		return nil
	}}
}

func envInt(name string, field func(*Config) *int) envBinding {
	return envBinding{name, func(cfg *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		*field(cfg) = n
		return nil
	}}
}

// Secrets (JWT, broker and InfluxDB credentials, the bootstrap admin
// password) are expected to come from here rather than the file.
var envBindings = []envBinding{
	envString("PIZZA_DATABASE_PATH", func(c *Config) *string { return &c.Database.Path }),
	envInt("PIZZA_DATABASE_MAX_OPEN_CONNS", func(c *Config) *int { return &c.Database.MaxOpenConns }),
	envString("PIZZA_MQTT_HOST", func(c *Config) *string { return &c.MQTT.Broker.Host }),
	envString("PIZZA_MQTT_USERNAME", func(c *Config) *string { return &c.MQTT.Auth.Username }),
	envString("PIZZA_MQTT_PASSWORD", func(c *Config) *string { return &c.MQTT.Auth.Password }),
	envString("PIZZA_API_HOST", func(c *Config) *string { return &c.API.Host }),
	envInt("PIZZA_API_PORT", func(c *Config) *int { return &c.API.Port }),
	envString("PIZZA_INFLUXDB_URL", func(c *Config) *string { return &c.InfluxDB.URL }),
	envString("PIZZA_INFLUXDB_TOKEN", func(c *Config) *string { return &c.InfluxDB.Token }),
	envString("PIZZA_BOOTSTRAP_ADMIN_PASSWORD", func(c *Config) *string { return &c.Bootstrap.AdminPassword }),
	envString("PIZZA_JWT_SECRET", func(c *Config) *string { return &c.Security.JWT.Secret }),
	envString("PIZZA_LOG_LEVEL", func(c *Config) *string { return &c.Logging.Level }),
}

func applyEnvOverrides(cfg *Config) error {
	for _, b := range envBindings {
		v := os.Getenv(b.name)
		if v == "" {
			continue
		}
		if err := b.apply(cfg, v); err != nil {
			return fmt.Errorf("environment override %w", err)
		}
	}
	return nil
}

// minJWTSecretLength keeps HS256 keys out of brute-force range.
const minJWTSecretLength = 32

// Validate reports every problem at once, joined with errors.Join.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, msg string) {
		if !ok {
			errs = append(errs, errors.New(msg))
		}
	}

	check(c.Service.ID != "", "service.id is required")

	check(c.Database.Path != "", "database.path is required")
	check(c.Database.MaxOpenConns >= 0, "database.max_open_conns must not be negative")
	check(c.Database.MaxWaiting >= 0, "database.max_waiting must not be negative")
	check(c.Database.AcquireTimeout >= 0, "database.acquire_timeout must not be negative")

	check(c.API.Port >= 1 && c.API.Port <= 65535, "api.port must be between 1 and 65535")
	if c.API.TLS.Enabled {
		check(c.API.TLS.CertFile != "" && c.API.TLS.KeyFile != "", "api.tls needs cert_file and key_file")
	}

	check(c.MQTT.QoS >= 0 && c.MQTT.QoS <= 2, "mqtt.qos must be 0, 1, or 2")
	if c.MQTT.Enabled {
		check(c.MQTT.Broker.Host != "", "mqtt.broker.host is required when mqtt is enabled")
		check(c.MQTT.Broker.ClientID != "", "mqtt.broker.client_id is required when mqtt is enabled")
	}

	if c.InfluxDB.Enabled {
		check(c.InfluxDB.URL != "", "influxdb.url is required when influxdb is enabled")
		check(c.InfluxDB.Bucket != "", "influxdb.bucket is required when influxdb is enabled")
	}

	switch {
	case c.Security.JWT.Secret == "":
		check(false, "security.jwt.secret is required (set PIZZA_JWT_SECRET)")
	case len(c.Security.JWT.Secret) < minJWTSecretLength:
		check(false, fmt.Sprintf("security.jwt.secret must be at least %d characters", minJWTSecretLength))
	}
	check(c.Security.JWT.TokenTTL >= 0, "security.jwt.token_ttl must not be negative")

	switch c.Security.Password.Algorithm {
	case "", "bcrypt", "argon2id":
	default:
		check(false, "security.password.algorithm must be bcrypt or argon2id")
	}

	return errors.Join(errs...)
}

// GetTokenTTL returns the JWT lifetime.
func (c *Config) GetTokenTTL() time.Duration {
	return time.Duration(c.Security.JWT.TokenTTL) * time.Minute
}

// GetAcquireTimeout returns how long a request waits for a pool connection.
func (c *Config) GetAcquireTimeout() time.Duration {
	return seconds(c.Database.AcquireTimeout)
}
