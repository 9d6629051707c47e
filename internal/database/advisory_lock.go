package database

import (
	"context"
	"fmt"
	"hash/fnv"

	"github.com/jackc/pgx/v5/pgxpool"
)

// lockKey identifies the migration runner's advisory lock. The bigint
// PostgreSQL wants is derived from it by hashing, so every runner built from
// this module contends on the same lock without sharing a magic number.
const lockKey = "reisewerk.schema_migrations"

// LockID returns the advisory lock identifier used by all runner instances.
func LockID() int64 {
	h := fnv.New64a()
	h.Write([]byte(lockKey)) //nolint:errcheck // fnv.Write never fails

	return int64(h.Sum64()) //nolint:gosec // wraparound is fine, pg lock ids are opaque
}

// LockHandle wraps a dedicated pooled connection holding a session-level
// advisory lock. The lock lives for the session, so the connection must stay
// out of the pool until Release is called.
type LockHandle struct {
	conn *pgxpool.Conn
}

// TryAcquireLock attempts to take the session-level migration lock without
// blocking. Returns ErrLockNotAcquired when another runner holds it — two
// instances racing "is version X applied" checks is exactly what the lock
// exists to prevent, so the caller should give up rather than wait.
func TryAcquireLock(ctx context.Context, pool *pgxpool.Pool) (*LockHandle, error) {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquiring connection for advisory lock: %w", err)
	}

	var acquired bool

	err = conn.QueryRow(ctx, "SELECT pg_try_advisory_lock($1)", LockID()).Scan(&acquired)
	if err != nil {
		conn.Release()

		return nil, fmt.Errorf("executing pg_try_advisory_lock: %w", err)
	}

	if !acquired {
		conn.Release()

		return nil, ErrLockNotAcquired
	}

	return &LockHandle{conn: conn}, nil
}

// Release unlocks the advisory lock and returns the connection to the pool.
// Safe to call multiple times; subsequent calls are no-ops.
func (h *LockHandle) Release(ctx context.Context) error {
	if h == nil || h.conn == nil {
		return nil
	}

	_, err := h.conn.Exec(ctx, "SELECT pg_advisory_unlock($1)", LockID())
	h.conn.Release()
	h.conn = nil

	if err != nil {
		return fmt.Errorf("releasing advisory lock: %w", err)
	}

	return nil
}
