package migration_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/reisewerk/migrate/internal/migration"
)

func TestSort_ordersByVersionNotInsertionOrder(t *testing.T) {
	t.Parallel()

	input := []migration.Migration{
		{Version: "003", Name: "x"},
		{Version: "001", Name: "y"},
		{Version: "002", Name: "z"},
	}

	sorted := migration.Sort(input)

	assert.Equal(t, "001", sorted[0].Version)
	assert.Equal(t, "002", sorted[1].Version)
	assert.Equal(t, "003", sorted[2].Version)

	// Input slice is untouched.
	assert.Equal(t, "003", input[0].Version)
}

func TestSort_emptyInput(t *testing.T) {
	t.Parallel()

	sorted := migration.Sort(nil)
	assert.Empty(t, sorted)
}

func TestSort_zeroPaddedVersionsRespectMagnitude(t *testing.T) {
	t.Parallel()

	input := []migration.Migration{
		{Version: "010"},
		{Version: "002"},
		{Version: "001"},
	}

	sorted := migration.Sort(input)

	assert.Equal(t, []string{"001", "002", "010"}, []string{
		sorted[0].Version, sorted[1].Version, sorted[2].Version,
	})
}
