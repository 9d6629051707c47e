package executor

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
)

// Seed executes a fixed data-loading script in a single transaction.
// Seed scripts are deliberately not ledger-tracked: their content changes
// without constituting a schema version, which would trip drift detection.
// The flip side is that re-running one is not guaranteed to be harmless;
// that burden stays with the script author.
func (e *Executor) Seed(ctx context.Context, path string) error {
	data, err := e.readFile(path)
	if err != nil {
		return fmt.Errorf("reading seed script %s: %w", path, err)
	}

	sql := strings.TrimSpace(string(data))
	if sql == "" {
		e.log.Warn().Str("path", path).Msg("seed script is empty, nothing to do")
		return nil
	}

	err = ExecInTransaction(ctx, e.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, sql); err != nil {
			return fmt.Errorf("executing seed SQL: %w", err)
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("loading seed data from %s: %w", path, err)
	}

	e.log.Info().Str("path", path).Msg("seed data loaded")

	return nil
}
