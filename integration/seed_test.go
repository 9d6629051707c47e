//go:build integration

package integration

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reisewerk/migrate/internal/executor"
	"github.com/reisewerk/migrate/internal/tracker"
)

func TestSeed_loadsRowsWithoutTouchingLedger(t *testing.T) {
	t.Parallel()

	pool := SetupPostgres(t)
	ctx := context.Background()
	tr := tracker.New(pool)
	migrations, dir := loadScripts(t, hrScripts())

	exec := executor.New(pool, tr, executor.WithMigrationsDir(dir))
	require.NoError(t, exec.Apply(ctx, migrations))

	seedDir := writeScripts(t, map[string]string{
		"seed.sql": `INSERT INTO employees (full_name, home_canton) VALUES
    ('Anna Keller', 'ZH'),
    ('Luca Bernasconi', 'TI');
INSERT INTO projects (name, site_address) VALUES
    ('Bahnhofstrasse Renovation', 'Bahnhofstrasse 1, Zürich');`,
	})

	err := exec.Seed(ctx, filepath.Join(seedDir, "seed.sql"))
	require.NoError(t, err)

	var employees int
	require.NoError(t, pool.QueryRow(ctx, "SELECT COUNT(*) FROM employees").Scan(&employees))
	assert.Equal(t, 2, employees)

	// Seed data is reference data, not a migration; the ledger stays as-is.
	assert.Equal(t, []string{"001", "002"}, ledgerVersions(t, pool))
}

func TestSeed_failingStatement_rollsBackEverything(t *testing.T) {
	t.Parallel()

	pool := SetupPostgres(t)
	ctx := context.Background()
	tr := tracker.New(pool)
	migrations, dir := loadScripts(t, hrScripts())

	exec := executor.New(pool, tr, executor.WithMigrationsDir(dir))
	require.NoError(t, exec.Apply(ctx, migrations))

	seedDir := writeScripts(t, map[string]string{
		"seed.sql": `INSERT INTO employees (full_name, home_canton) VALUES ('Anna Keller', 'ZH');
INSERT INTO no_such_table (x) VALUES (1);`,
	})

	err := exec.Seed(ctx, filepath.Join(seedDir, "seed.sql"))
	require.Error(t, err)

	// The whole seed runs in one transaction, so the first insert is gone.
	var employees int
	require.NoError(t, pool.QueryRow(ctx, "SELECT COUNT(*) FROM employees").Scan(&employees))
	assert.Zero(t, employees)
}

func TestSeed_emptyFile_isNoOp(t *testing.T) {
	t.Parallel()

	pool := SetupPostgres(t)
	ctx := context.Background()
	tr := tracker.New(pool)

	seedDir := writeScripts(t, map[string]string{"seed.sql": "  \n"})

	exec := executor.New(pool, tr)
	err := exec.Seed(ctx, filepath.Join(seedDir, "seed.sql"))
	require.NoError(t, err)
}
