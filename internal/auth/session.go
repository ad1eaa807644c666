package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nerrad567/pizza-service/internal/infrastructure/database"
)

// tokenSegments is the number of dot-delimited segments in a signed token.
const tokenSegments = 3

// TokenFragment returns the signature segment of a header.payload.signature
// token. Anything with fewer than three segments yields "", which is never
// stored and so never matches a session.
func TokenFragment(token string) string {
	parts := strings.Split(token, ".")
	if len(parts) < tokenSegments {
		return ""
	}
	return parts[2]
}

// SessionStore tracks which issued tokens are still live. A row keyed by the
// token's signature fragment means the token has not been revoked; the token
// itself is never stored.
type SessionStore struct {
	pool *database.Pool
	now  func() time.Time
}

// NewSessionStore creates a session store backed by pool.
func NewSessionStore(pool *database.Pool) *SessionStore {
	return &SessionStore{pool: pool, now: time.Now}
}

// Record marks token as live for userID. Recording the same token again is
// a no-op.
func (s *SessionStore) Record(ctx context.Context, userID int64, token string) error {
	fragment := TokenFragment(token)
	if fragment == "" {
		return fmt.Errorf("%w: missing signature segment", ErrTokenInvalid)
	}

	return s.pool.WithConn(ctx, func(c *database.Conn) error {
		_, err := c.ExecContext(ctx, `
			INSERT INTO sessions (token_fragment, user_id, created_at)
			VALUES (?, ?, ?)
			ON CONFLICT (token_fragment) DO NOTHING
		`, fragment, userID, s.now().UTC().Format(time.RFC3339))
		if err != nil {
			return fmt.Errorf("recording session: %w", err)
		}
		return nil
	})
}

// IsValid reports whether token has a live session. It does not check the
// token's signature; callers verify that separately.
func (s *SessionStore) IsValid(ctx context.Context, token string) (bool, error) {
	fragment := TokenFragment(token)
	if fragment == "" {
		return false, nil
	}

	var found bool
	err := s.pool.WithConn(ctx, func(c *database.Conn) error {
		var exists int
		err := c.QueryRowContext(ctx,
			"SELECT EXISTS (SELECT 1 FROM sessions WHERE token_fragment = ?)", fragment,
		).Scan(&exists)
		if err != nil {
			return fmt.Errorf("checking session: %w", err)
		}
		found = exists == 1
		return nil
	})
	return found, err
}

// Revoke ends the session for token. Revoking an unknown token is not an
// error.
func (s *SessionStore) Revoke(ctx context.Context, token string) error {
	fragment := TokenFragment(token)
	if fragment == "" {
		return nil
	}

	return s.pool.WithConn(ctx, func(c *database.Conn) error {
		if _, err := c.ExecContext(ctx, "DELETE FROM sessions WHERE token_fragment = ?", fragment); err != nil {
			return fmt.Errorf("revoking session: %w", err)
		}
		return nil
	})
}

// RevokeAllForUser ends every session of a user, for example after a
// password change.
func (s *SessionStore) RevokeAllForUser(ctx context.Context, userID int64) (int64, error) {
	var n int64
	err := s.pool.WithConn(ctx, func(c *database.Conn) error {
		res, err := c.ExecContext(ctx, "DELETE FROM sessions WHERE user_id = ?", userID)
		if err != nil {
			return fmt.Errorf("revoking user sessions: %w", err)
		}
		n, err = res.RowsAffected()
		return err
	})
	return n, err
}
