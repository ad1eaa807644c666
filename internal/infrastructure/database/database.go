package database

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "github.com/mattn/go-sqlite3" // registers "sqlite3"
)

// Pool sizing defaults. Ten connections matches the MySQL pool the service
// originally ran against.
const (
	DefaultMaxOpenConns   = 10
	DefaultMaxWaiting     = 64
	DefaultAcquireTimeout = 5 * time.Second
)

const (
	pingTimeout     = 5 * time.Second
	connMaxLifetime = time.Hour
	connMaxIdleTime = 30 * time.Minute
)

// Config is the database section of config.yaml plus pool limits.
type Config struct {
	// Path of the SQLite file. Missing parent directories are created.
	Path string

	// WALMode lets readers proceed while a write transaction is open.
	WALMode bool

	// BusyTimeout in seconds that a statement waits on a locked database.
	BusyTimeout int

	// MaxOpenConns caps both sql.DB and the Pool.
	MaxOpenConns int

	// MaxWaiting callers may queue for a connection; the next one gets ErrBusy.
	MaxWaiting int

	// AcquireTimeout bounds how long a queued caller waits.
	AcquireTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxOpenConns <= 0 {
		c.MaxOpenConns = DefaultMaxOpenConns
	}
	if c.MaxWaiting <= 0 {
		c.MaxWaiting = DefaultMaxWaiting
	}
	if c.AcquireTimeout <= 0 {
		c.AcquireTimeout = DefaultAcquireTimeout
	}
	return c
}

// dsn builds a go-sqlite3 connection string. _txlock=immediate makes every
// BEGIN take the write lock at once, so concurrent writers queue on
// busy_timeout rather than failing with SQLITE_BUSY on lock upgrade.
func (c Config) dsn() string {
	q := url.Values{}
	q.Set("_busy_timeout", strconv.Itoa(c.BusyTimeout*1000))
	q.Set("_foreign_keys", "on")
	q.Set("_txlock", "immediate")
	if c.WALMode {
		q.Set("_journal_mode", "WAL")
		q.Set("_synchronous", "NORMAL")
	}
	return "file:" + c.Path + "?" + q.Encode()
}

// DB is the service's *sql.DB with migrations and health checks attached.
type DB struct {
	*sql.DB
	path         string
	maxOpenConns int
}

// Open creates the database file if needed, applies the connection pragmas
// and pings it. Call Migrate before handing it to a Pool.
func Open(cfg Config) (*DB, error) {
	cfg = cfg.withDefaults()

	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o750); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	sqlDB, err := sql.Open("sqlite3", cfg.dsn())
	if err != nil {
		return nil, fmt.Errorf("opening database %s: %w", cfg.Path, err)
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(connMaxLifetime)
	sqlDB.SetConnMaxIdleTime(connMaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close() //nolint:errcheck // already failing
		return nil, fmt.Errorf("pinging database %s: %w", cfg.Path, err)
	}

	// Holds password hashes and session fragments.
	_ = os.Chmod(cfg.Path, 0o600) //nolint:errcheck // file may appear on first write

	return &DB{DB: sqlDB, path: cfg.Path, maxOpenConns: cfg.MaxOpenConns}, nil
}

// Wrap adopts an opened *sql.DB such as a sqlmock handle.
func Wrap(sqlDB *sql.DB, maxOpenConns int) *DB {
	if maxOpenConns <= 0 {
		maxOpenConns = DefaultMaxOpenConns
	}
	sqlDB.SetMaxOpenConns(maxOpenConns)
	return &DB{DB: sqlDB, maxOpenConns: maxOpenConns}
}

// Close is safe on a zero DB.
func (db *DB) Close() error {
	if db.DB == nil {
		return nil
	}
	if err := db.DB.Close(); err != nil {
		return fmt.Errorf("closing database: %w", err)
	}
	return nil
}

func (db *DB) Path() string      { return db.path }
func (db *DB) MaxOpenConns() int { return db.maxOpenConns }

// HealthCheck runs a trivial query.
func (db *DB) HealthCheck(ctx context.Context) error {
	var one int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("database health check: %w", err)
	}
	return nil
}

// ExecContext wraps driver errors. Request paths use Pool connections; this is
// for migrations and tests.
func (db *DB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	res, err := db.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("exec: %w", err)
	}
	return res, nil
}

// BeginTx starts a transaction outside the pool. Only migrations use it.
func (db *DB) BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error) {
	tx, err := db.DB.BeginTx(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	return tx, nil
}
