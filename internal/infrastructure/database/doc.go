// Package database provides SQLite connectivity, schema migrations and the
// bounded connection pool used by the pizza service repositories.
//
// This package manages:
//   - Database connection with WAL mode for concurrent readers
//   - Schema migrations embedded into the binary
//   - A bounded Pool of dedicated connections with scoped transactions
//
// Pool discipline:
//
// Every Acquire is matched by exactly one Release. WithConn and WithTx make
// that automatic, including when the callback panics; a transaction still
// open at Release time is rolled back. When the pool is exhausted a caller
// waits up to the acquire timeout, and callers beyond the wait queue are
// rejected with ErrBusy straight away.
//
// Usage:
//
//	db, err := database.Open(cfg)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
//	pool := database.NewPool(db, cfg)
//	err = pool.WithTx(ctx, func(c *database.Conn) error {
//	    _, err := c.ExecContext(ctx, "DELETE FROM stores WHERE franchise_id = ?", id)
//	    return err
//	})
//
// Security Considerations:
//   - All queries use parameterised statements
//   - Database file permissions are set to 0600 (owner read/write only)
package database
