package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
)

// Pool errors.
var (
	// ErrBusy is returned when no connection became available within the
	// acquire timeout, or when the wait queue is already full.
	ErrBusy = errors.New("database busy: no connection available")

	// ErrTxActive is returned by Begin when the connection already holds a
	// transaction. Nested transactions are not supported.
	ErrTxActive = errors.New("transaction already active")

	// ErrNoTx is returned by Commit or Rollback without a transaction.
	ErrNoTx = errors.New("no active transaction")

	// ErrConnReleased is returned when a connection is used after Release.
	ErrConnReleased = errors.New("connection already released")
)

// Querier is the statement surface shared by Conn and *sql.DB.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Pool hands out a bounded number of dedicated connections.
//
// At most MaxOpenConns connections are checked out at once. A caller that
// finds the pool exhausted queues for up to AcquireTimeout; once MaxWaiting
// callers are queued, further callers fail immediately with ErrBusy.
type Pool struct {
	db             *DB
	slots          *semaphore.Weighted
	capacity       int64
	maxWaiting     int64
	acquireTimeout time.Duration

	inUse   atomic.Int64
	waiting atomic.Int64
}

// PoolStats is a point-in-time view of pool usage.
type PoolStats struct {
	Capacity int64 `json:"capacity"`
	InUse    int64 `json:"in_use"`
	Waiting  int64 `json:"waiting"`
}

// NewPool creates a pool over db using the pool settings in cfg.
func NewPool(db *DB, cfg Config) *Pool {
	cfg = cfg.withDefaults()
	capacity := int64(cfg.MaxOpenConns)
	if db.maxOpenConns > 0 && int64(db.maxOpenConns) < capacity {
		capacity = int64(db.maxOpenConns)
	}
	return &Pool{
		db:             db,
		slots:          semaphore.NewWeighted(capacity),
		capacity:       capacity,
		maxWaiting:     int64(cfg.MaxWaiting),
		acquireTimeout: cfg.AcquireTimeout,
	}
}

// Acquire checks out a connection. Every successful Acquire must be paired
// with exactly one Release; prefer WithConn and WithTx which guarantee it.
func (p *Pool) Acquire(ctx context.Context) (*Conn, error) {
	if err := p.reserveSlot(ctx); err != nil {
		return nil, err
	}

	sqlConn, err := p.db.DB.Conn(ctx)
	if err != nil {
		p.slots.Release(1)
		return nil, fmt.Errorf("acquiring connection: %w", err)
	}

	p.inUse.Add(1)
	return &Conn{pool: p, conn: sqlConn}, nil
}

// reserveSlot takes a pool slot, queueing within the wait policy.
func (p *Pool) reserveSlot(ctx context.Context) error {
	if p.slots.TryAcquire(1) {
		return nil
	}

	if p.waiting.Add(1) > p.maxWaiting {
		p.waiting.Add(-1)
		return ErrBusy
	}
	defer p.waiting.Add(-1)

	waitCtx, cancel := context.WithTimeout(ctx, p.acquireTimeout)
	defer cancel()

	if err := p.slots.Acquire(waitCtx, 1); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return ErrBusy
	}
	return nil
}

// WithConn runs fn on a pooled connection and releases it on every exit
// path, including a panic inside fn.
func (p *Pool) WithConn(ctx context.Context, fn func(*Conn) error) (err error) {
	conn, err := p.Acquire(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if relErr := conn.Release(); relErr != nil && err == nil {
			err = relErr
		}
	}()
	return fn(conn)
}

// WithTx runs fn inside a transaction. The transaction commits when fn
// returns nil and rolls back otherwise. fn's error is returned unchanged so
// callers can classify it.
func (p *Pool) WithTx(ctx context.Context, fn func(*Conn) error) error {
	return p.WithConn(ctx, func(conn *Conn) error {
		if err := conn.Begin(ctx); err != nil {
			return err
		}
		if err := fn(conn); err != nil {
			if rbErr := conn.Rollback(); rbErr != nil {
				return errors.Join(err, fmt.Errorf("rolling back: %w", rbErr))
			}
			return err
		}
		return conn.Commit()
	})
}

// HealthCheck acquires a connection and runs a trivial query on it.
func (p *Pool) HealthCheck(ctx context.Context) error {
	return p.WithConn(ctx, func(conn *Conn) error {
		var one int
		if err := conn.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
			return fmt.Errorf("database health check failed: %w", err)
		}
		return nil
	})
}

// Stats reports current pool usage.
func (p *Pool) Stats() PoolStats {
	return PoolStats{
		Capacity: p.capacity,
		InUse:    p.inUse.Load(),
		Waiting:  p.waiting.Load(),
	}
}

// Conn is a checked-out connection. A Conn is owned by one goroutine at a
// time; statements run inside the open transaction when there is one.
type Conn struct {
	pool     *Pool
	conn     *sql.Conn
	tx       *sql.Tx
	released atomic.Bool
}

// Begin opens a transaction on the connection.
func (c *Conn) Begin(ctx context.Context) error {
	if c.released.Load() {
		return ErrConnReleased
	}
	if c.tx != nil {
		return ErrTxActive
	}
	tx, err := c.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	c.tx = tx
	return nil
}

// Commit commits the open transaction.
func (c *Conn) Commit() error {
	if c.tx == nil {
		return ErrNoTx
	}
	tx := c.tx
	c.tx = nil
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Rollback aborts the open transaction. A transaction already ended by
// context cancellation counts as rolled back.
func (c *Conn) Rollback() error {
	if c.tx == nil {
		return ErrNoTx
	}
	tx := c.tx
	c.tx = nil
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("rolling back transaction: %w", err)
	}
	return nil
}

// InTx reports whether a transaction is open.
func (c *Conn) InTx() bool {
	return c.tx != nil
}

// Release rolls back any open transaction and returns the connection to the
// pool. Calls after the first are no-ops.
func (c *Conn) Release() error {
	if !c.released.CompareAndSwap(false, true) {
		return nil
	}
	defer func() {
		c.pool.inUse.Add(-1)
		c.pool.slots.Release(1)
	}()

	var rbErr error
	if c.tx != nil {
		rbErr = c.Rollback()
	}
	if err := c.conn.Close(); err != nil && !errors.Is(err, sql.ErrConnDone) {
		return errors.Join(rbErr, fmt.Errorf("closing connection: %w", err))
	}
	return rbErr
}

// ExecContext executes a statement on the connection or its transaction.
func (c *Conn) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	if c.released.Load() {
		return nil, ErrConnReleased
	}
	if c.tx != nil {
		return c.tx.ExecContext(ctx, query, args...)
	}
	return c.conn.ExecContext(ctx, query, args...)
}

// QueryContext runs a query on the connection or its transaction.
func (c *Conn) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	if c.released.Load() {
		return nil, ErrConnReleased
	}
	if c.tx != nil {
		return c.tx.QueryContext(ctx, query, args...)
	}
	return c.conn.QueryContext(ctx, query, args...)
}

// QueryRowContext runs a single-row query on the connection or its
// transaction. On a released connection the row reports sql.ErrConnDone.
func (c *Conn) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	if c.tx != nil {
		return c.tx.QueryRowContext(ctx, query, args...)
	}
	return c.conn.QueryRowContext(ctx, query, args...)
}
