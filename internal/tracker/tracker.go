package tracker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AppliedMigration represents one row of the schema_migrations ledger.
type AppliedMigration struct {
	Version    string
	Filename   string
	Checksum   string
	AppliedAt  time.Time
	DurationMs int
}

// RecordParams contains the fields needed to record a migration as applied.
type RecordParams struct {
	Version    string
	Filename   string
	Checksum   string
	DurationMs int
}

// DB is the subset of pgx execution needed for ledger writes. Both
// *pgxpool.Pool and pgx.Tx satisfy it; Record and Remove must be handed the
// open transaction of the schema change they document so the ledger row
// commits or rolls back together with it.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Tracker manages the schema_migrations ledger table.
type Tracker struct {
	pool *pgxpool.Pool
}

// New creates a Tracker backed by the given connection pool.
func New(pool *pgxpool.Pool) *Tracker {
	return &Tracker{pool: pool}
}

// EnsureTable creates the schema_migrations table if it does not exist.
// Idempotent; safe to call on every access.
func (t *Tracker) EnsureTable(ctx context.Context) error {
	_, err := t.pool.Exec(ctx, createSchemaSQL)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTableCreation, err)
	}

	return nil
}

// GetApplied returns all applied migrations ordered ascending by version.
func (t *Tracker) GetApplied(ctx context.Context) ([]AppliedMigration, error) {
	rows, err := t.pool.Query(ctx,
		`SELECT version, filename, checksum, applied_at, duration_ms
		 FROM schema_migrations
		 ORDER BY version`,
	)
	if err != nil {
		return nil, fmt.Errorf("querying applied migrations: %w", err)
	}
	defer rows.Close()

	applied, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (AppliedMigration, error) {
		var m AppliedMigration
		if scanErr := row.Scan(&m.Version, &m.Filename, &m.Checksum, &m.AppliedAt, &m.DurationMs); scanErr != nil {
			return AppliedMigration{}, fmt.Errorf("scanning migration row: %w", scanErr)
		}

		return m, nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning applied migrations: %w", err)
	}

	return applied, nil
}

// Find returns the ledger record for a version, or ErrMigrationNotFound.
func (t *Tracker) Find(ctx context.Context, version string) (*AppliedMigration, error) {
	var m AppliedMigration

	err := t.pool.QueryRow(ctx,
		`SELECT version, filename, checksum, applied_at, duration_ms
		 FROM schema_migrations
		 WHERE version = $1`,
		version,
	).Scan(&m.Version, &m.Filename, &m.Checksum, &m.AppliedAt, &m.DurationMs)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("migration %s: %w", version, ErrMigrationNotFound)
		}

		return nil, fmt.Errorf("finding migration %s: %w", version, err)
	}

	return &m, nil
}

// Record inserts one ledger row on db, which must be the open transaction of
// the schema change being recorded. A plain insert: a version that was rolled
// back has no row left behind, so re-applying it is a fresh insert, and a
// concurrent duplicate apply fails on the primary key instead of silently
// overwriting history.
func (t *Tracker) Record(ctx context.Context, db DB, p RecordParams) error {
	_, err := db.Exec(ctx,
		`INSERT INTO schema_migrations (version, filename, checksum, duration_ms)
		 VALUES ($1, $2, $3, $4)`,
		p.Version, p.Filename, p.Checksum, p.DurationMs,
	)
	if err != nil {
		return fmt.Errorf("recording migration %s as applied: %w", p.Version, err)
	}

	return nil
}

// Remove deletes one ledger row on db, which must be the open transaction of
// the reverting schema change.
func (t *Tracker) Remove(ctx context.Context, db DB, version string) error {
	tag, err := db.Exec(ctx,
		`DELETE FROM schema_migrations WHERE version = $1`,
		version,
	)
	if err != nil {
		return fmt.Errorf("removing migration %s from ledger: %w", version, err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("migration %s: %w", version, ErrMigrationNotFound)
	}

	return nil
}
