//go:build integration

package integration

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reisewerk/migrate/internal/tracker"
)

func TestTracker_fullLifecycle(t *testing.T) {
	t.Parallel()

	pool := SetupPostgres(t)
	ctx := context.Background()
	tr := tracker.New(pool)

	// EnsureTable creates the table and is idempotent.
	require.NoError(t, tr.EnsureTable(ctx))
	require.NoError(t, tr.EnsureTable(ctx))

	applied, err := tr.GetApplied(ctx)
	require.NoError(t, err)
	assert.Empty(t, applied)

	_, err = tr.Find(ctx, "001")
	require.ErrorIs(t, err, tracker.ErrMigrationNotFound)

	err = tr.Record(ctx, pool, tracker.RecordParams{
		Version:    "001",
		Filename:   "001_create_employees.sql",
		Checksum:   "abc123",
		DurationMs: 42,
	})
	require.NoError(t, err)

	rec, err := tr.Find(ctx, "001")
	require.NoError(t, err)
	assert.Equal(t, "001_create_employees.sql", rec.Filename)
	assert.Equal(t, "abc123", rec.Checksum)
	assert.Equal(t, 42, rec.DurationMs)
	assert.False(t, rec.AppliedAt.IsZero())

	applied, err = tr.GetApplied(ctx)
	require.NoError(t, err)
	require.Len(t, applied, 1)
	assert.Equal(t, "001", applied[0].Version)

	require.NoError(t, tr.Remove(ctx, pool, "001"))

	_, err = tr.Find(ctx, "001")
	require.ErrorIs(t, err, tracker.ErrMigrationNotFound)
}

func TestTracker_Remove_unknownVersion_returnsNotFound(t *testing.T) {
	t.Parallel()

	pool := SetupPostgres(t)
	ctx := context.Background()
	tr := tracker.New(pool)

	require.NoError(t, tr.EnsureTable(ctx))

	err := tr.Remove(ctx, pool, "999")
	require.ErrorIs(t, err, tracker.ErrMigrationNotFound)
}

func TestTracker_GetApplied_ordersByVersion(t *testing.T) {
	t.Parallel()

	pool := SetupPostgres(t)
	ctx := context.Background()
	tr := tracker.New(pool)

	require.NoError(t, tr.EnsureTable(ctx))

	for _, v := range []string{"003", "001", "002"} {
		err := tr.Record(ctx, pool, tracker.RecordParams{
			Version:  v,
			Filename: v + "_migration.sql",
			Checksum: "cs" + v,
		})
		require.NoError(t, err)
	}

	applied, err := tr.GetApplied(ctx)
	require.NoError(t, err)
	require.Len(t, applied, 3)
	assert.Equal(t, "001", applied[0].Version)
	assert.Equal(t, "002", applied[1].Version)
	assert.Equal(t, "003", applied[2].Version)
}

func TestTracker_Record_insideRolledBackTransaction_leavesNoRow(t *testing.T) {
	t.Parallel()

	pool := SetupPostgres(t)
	ctx := context.Background()
	tr := tracker.New(pool)

	require.NoError(t, tr.EnsureTable(ctx))

	// Record rides whatever transaction the caller opens; an aborted
	// transaction must take the ledger row down with it.
	tx, err := pool.Begin(ctx)
	require.NoError(t, err)

	err = tr.Record(ctx, tx, tracker.RecordParams{
		Version:  "001",
		Filename: "001_create_employees.sql",
		Checksum: "abc123",
	})
	require.NoError(t, err)

	require.NoError(t, tx.Rollback(ctx))

	_, err = tr.Find(ctx, "001")
	require.ErrorIs(t, err, tracker.ErrMigrationNotFound)
}

func TestTracker_Record_duplicateVersion_fails(t *testing.T) {
	t.Parallel()

	pool := SetupPostgres(t)
	ctx := context.Background()
	tr := tracker.New(pool)

	require.NoError(t, tr.EnsureTable(ctx))

	p := tracker.RecordParams{
		Version:  "001",
		Filename: "001_create_employees.sql",
		Checksum: "abc123",
	}
	require.NoError(t, tr.Record(ctx, pool, p))

	err := tr.Record(ctx, pool, p)
	require.Error(t, err)
}
