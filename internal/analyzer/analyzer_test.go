package analyzer_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reisewerk/migrate/internal/analyzer"
	"github.com/reisewerk/migrate/internal/migration"
)

func analyze(t *testing.T, sql string) *analyzer.Result {
	t.Helper()

	m := &migration.Migration{Version: "001", Name: "test", UpSQL: sql}

	result, err := analyzer.New().Analyze(m)
	require.NoError(t, err)

	return result
}

func TestAnalyze_safeStatements_noFindings(t *testing.T) {
	t.Parallel()

	result := analyze(t, "CREATE TABLE employees (id SERIAL PRIMARY KEY, name TEXT NOT NULL);")

	assert.Empty(t, result.Findings)
	assert.Equal(t, analyzer.Safe, result.MaxSeverity)
	assert.False(t, result.HasHighOrCritical())
}

func TestAnalyze_dropTable_critical(t *testing.T) {
	t.Parallel()

	result := analyze(t, "DROP TABLE employees;")

	require.Len(t, result.Findings, 1)
	assert.Equal(t, "drop-object", result.Findings[0].Rule)
	assert.Equal(t, analyzer.Critical, result.Findings[0].Severity)
	assert.Equal(t, "employees", result.Findings[0].Table)
	assert.True(t, result.HasHighOrCritical())
}

func TestAnalyze_truncate_critical(t *testing.T) {
	t.Parallel()

	result := analyze(t, "TRUNCATE employees, projects;")

	require.Len(t, result.Findings, 1)
	assert.Equal(t, analyzer.Critical, result.Findings[0].Severity)
	assert.Contains(t, result.Findings[0].Table, "employees")
	assert.Contains(t, result.Findings[0].Table, "projects")
}

func TestAnalyze_blockingIndex_high(t *testing.T) {
	t.Parallel()

	result := analyze(t, "CREATE INDEX idx_employees_email ON employees (email);")

	require.Len(t, result.Findings, 1)
	assert.Equal(t, "blocking-index", result.Findings[0].Rule)
	assert.Equal(t, analyzer.High, result.Findings[0].Severity)
}

func TestAnalyze_concurrentIndex_notFlagged(t *testing.T) {
	t.Parallel()

	result := analyze(t, "CREATE INDEX CONCURRENTLY idx_employees_email ON employees (email);")

	assert.Empty(t, result.Findings)
}

func TestAnalyze_alterColumnType_high(t *testing.T) {
	t.Parallel()

	result := analyze(t, "ALTER TABLE employees ALTER COLUMN salary TYPE NUMERIC(12,2);")

	require.Len(t, result.Findings, 1)
	assert.Equal(t, "column-type-change", result.Findings[0].Rule)
	assert.Equal(t, analyzer.High, result.Findings[0].Severity)
	assert.Equal(t, "employees", result.Findings[0].Table)
}

func TestAnalyze_setNotNull_medium(t *testing.T) {
	t.Parallel()

	result := analyze(t, "ALTER TABLE employees ALTER COLUMN email SET NOT NULL;")

	require.Len(t, result.Findings, 1)
	assert.Equal(t, "set-not-null", result.Findings[0].Rule)
	assert.Equal(t, analyzer.Medium, result.Findings[0].Severity)
	assert.False(t, result.HasHighOrCritical())
}

func TestAnalyze_multipleStatements_indexedFindings(t *testing.T) {
	t.Parallel()

	result := analyze(t, "CREATE TABLE t (id INT); DROP TABLE old_t; CREATE INDEX idx_t ON t (id);")

	require.Len(t, result.Findings, 2)
	assert.Equal(t, 1, result.Findings[0].StmtIndex)
	assert.Equal(t, 2, result.Findings[1].StmtIndex)
	assert.Equal(t, analyzer.Critical, result.MaxSeverity)
}

func TestAnalyze_invalidSQL_returnsError(t *testing.T) {
	t.Parallel()

	m := &migration.Migration{Version: "001", UpSQL: "CREATE TABEL oops"}

	_, err := analyzer.New().Analyze(m)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing migration 001")
}

func TestAnalyzeAll_aggregatesPerMigration(t *testing.T) {
	t.Parallel()

	migrations := []migration.Migration{
		{Version: "001", UpSQL: "CREATE TABLE a (id INT);"},
		{Version: "002", UpSQL: "DROP TABLE a;"},
	}

	results, err := analyzer.New().AnalyzeAll(migrations)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Empty(t, results[0].Findings)
	assert.Len(t, results[1].Findings, 1)
}

func TestSeverity_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "SAFE", analyzer.Safe.String())
	assert.Equal(t, "LOW", analyzer.Low.String())
	assert.Equal(t, "MEDIUM", analyzer.Medium.String())
	assert.Equal(t, "HIGH", analyzer.High.String())
	assert.Equal(t, "CRITICAL", analyzer.Critical.String())
	assert.Equal(t, "UNKNOWN", analyzer.Severity(99).String())
}
