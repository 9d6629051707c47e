package executor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSeed_unreadableScript_returnsError(t *testing.T) {
	t.Parallel()

	e := newTestExecutor(newMockTracker())
	e.readFile = func(path string) ([]byte, error) {
		return nil, &readError{path: path}
	}

	err := e.Seed(context.Background(), "seed/data.sql")

	require.ErrorContains(t, err, "reading seed script seed/data.sql")
}

func TestSeed_emptyScript_isNoOp(t *testing.T) {
	t.Parallel()

	e := newTestExecutor(newMockTracker())
	e.readFile = func(_ string) ([]byte, error) { return []byte("  \n\t"), nil }

	// No pool behind the executor: reaching the database would panic.
	require.NoError(t, e.Seed(context.Background(), "seed/data.sql"))
}

type readError struct {
	path string
}

func (e *readError) Error() string { return "permission denied: " + e.path }
