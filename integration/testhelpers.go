//go:build integration

package integration

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/reisewerk/migrate/internal/migration"
)

const (
	postgresImage = "postgres:16-alpine"
	testDB        = "reisewerk_test"
	testUser      = "migrate"
	testPassword  = "migrate"
)

// SetupPostgres starts a PostgreSQL 16 container and returns a connection pool.
// The container and pool are automatically cleaned up when the test completes.
func SetupPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()

	ctx := context.Background()
	dsn := SetupPostgresDSN(t)

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)

	t.Cleanup(func() {
		pool.Close()
	})

	require.NoError(t, pool.Ping(ctx))

	return pool
}

// SetupPostgresDSN starts a PostgreSQL 16 container and returns its DSN.
func SetupPostgresDSN(t *testing.T) string {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        postgresImage,
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_DB":       testDB,
			"POSTGRES_USER":     testUser,
			"POSTGRES_PASSWORD": testPassword,
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, container.Terminate(context.Background()))
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)

	port, err := container.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	return "postgres://" + testUser + ":" + testPassword + "@" + host + ":" + port.Port() + "/" + testDB + "?sslmode=disable"
}

// writeScripts materializes migration scripts into a fresh temp directory and
// returns its path. Keys are filenames, values the SQL content.
func writeScripts(t *testing.T, files map[string]string) string {
	t.Helper()

	dir := t.TempDir()
	for name, sql := range files {
		err := os.WriteFile(filepath.Join(dir, name), []byte(sql), 0o644)
		require.NoError(t, err)
	}
	return dir
}

// loadScripts writes the given scripts and loads them through the directory
// loader, returning both the sorted migrations and the directory they live in.
func loadScripts(t *testing.T, files map[string]string) ([]migration.Migration, string) {
	t.Helper()

	dir := writeScripts(t, files)
	migrations, err := migration.LoadFromDir(dir, zerolog.Nop())
	require.NoError(t, err)
	migration.Sort(migrations)
	return migrations, dir
}

// hrScripts returns a small forward-plus-rollback script set for the tests
// that exercise the full apply and rollback lifecycle.
func hrScripts() map[string]string {
	return map[string]string{
		"001_create_employees.sql": `CREATE TABLE employees (
    id SERIAL PRIMARY KEY,
    full_name TEXT NOT NULL,
    home_canton TEXT NOT NULL
);`,
		"001_create_employees_rollback.sql": `DROP TABLE employees;`,
		"002_create_projects.sql": `CREATE TABLE projects (
    id SERIAL PRIMARY KEY,
    name TEXT NOT NULL,
    site_address TEXT
);`,
		"002_create_projects_rollback.sql": `DROP TABLE projects;`,
	}
}

func tableExists(t *testing.T, pool *pgxpool.Pool, name string) bool {
	t.Helper()

	var exists bool
	err := pool.QueryRow(context.Background(),
		"SELECT EXISTS(SELECT 1 FROM information_schema.tables WHERE table_name = $1)",
		name,
	).Scan(&exists)
	require.NoError(t, err)
	return exists
}

// ledgerVersions reads the versions recorded in schema_migrations in
// ascending order.
func ledgerVersions(t *testing.T, pool *pgxpool.Pool) []string {
	t.Helper()

	rows, err := pool.Query(context.Background(),
		"SELECT version FROM schema_migrations ORDER BY version")
	require.NoError(t, err)
	defer rows.Close()

	var versions []string
	for rows.Next() {
		var v string
		require.NoError(t, rows.Scan(&v))
		versions = append(versions, v)
	}
	require.NoError(t, rows.Err())
	return versions
}
