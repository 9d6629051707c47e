package tracker_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/reisewerk/migrate/internal/tracker"
)

func TestNew_returnsNonNil(t *testing.T) {
	t.Parallel()

	// nil pool is accepted at construction time; errors surface on use.
	tr := tracker.New(nil)
	assert.NotNil(t, tr)
}

func TestErrors_sentinel(t *testing.T) {
	t.Parallel()

	assert.EqualError(t, tracker.ErrMigrationNotFound, "migration not found in schema_migrations")
	assert.EqualError(t, tracker.ErrChecksumMismatch, "migration checksum mismatch")
}
