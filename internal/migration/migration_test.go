package migration_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reisewerk/migrate/internal/migration"
)

func TestComputeChecksum(t *testing.T) {
	t.Parallel()

	// SHA-256 of "SELECT 1;" — fixed-length hex, stable across calls.
	first := migration.ComputeChecksum("SELECT 1;")
	second := migration.ComputeChecksum("SELECT 1;")

	assert.Equal(t, first, second)
	assert.Len(t, first, 64)

	other := migration.ComputeChecksum("SELECT 2;")
	assert.NotEqual(t, first, other)
}

func TestComputeChecksum_emptyInput(t *testing.T) {
	t.Parallel()

	cs := migration.ComputeChecksum("")
	assert.Len(t, cs, 64)
}

func TestResolveVersion(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		target  string
		want    string
		wantErr bool
	}{
		{name: "bare version", target: "001", want: "001"},
		{name: "forward filename", target: "001_create_employees.sql", want: "001"},
		{name: "rollback filename", target: "001_create_employees_rollback.sql", want: "001"},
		{name: "hyphen separator", target: "002-create_projects.sql", want: "002"},
		{name: "long version", target: "20240101120000_init.sql", want: "20240101120000"},
		{name: "no digits", target: "create_employees.sql", wantErr: true},
		{name: "digits not a prefix run", target: "001abc.sql", wantErr: true},
		{name: "empty", target: "", wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := migration.ResolveVersion(tt.target)

			if tt.wantErr {
				require.ErrorIs(t, err, migration.ErrNoVersion)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRollbackName(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "001_create_employees_rollback.sql",
		migration.RollbackName("001_create_employees.sql"))

	// Already-suffixed names pass through unchanged.
	assert.Equal(t, "001_create_employees_rollback.sql",
		migration.RollbackName("001_create_employees_rollback.sql"))
}
