package executor

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/reisewerk/migrate/internal/migration"
)

func defaultReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// Rollback reverses a single applied migration. The target may be a bare
// version, a forward-script filename, or a rollback-script filename; all
// three resolve to the same (version, rollback script) pair. The rollback
// script and the ledger delete run in one transaction.
func (e *Executor) Rollback(ctx context.Context, target string) error {
	version, err := migration.ResolveVersion(filepath.Base(target))
	if err != nil {
		return fmt.Errorf("resolving rollback target %q: %w", target, err)
	}

	lock, err := e.acquireLock(ctx)
	if err != nil {
		return fmt.Errorf("acquiring migration lock: %w", err)
	}
	defer lock.Release(ctx) //nolint:errcheck // best-effort release on return

	if err := e.tracker.EnsureTable(ctx); err != nil {
		return err
	}

	return e.rollbackOne(ctx, version)
}

// RollbackSteps reverses the most recent `steps` applied migrations, latest
// version first, halting on the first failure.
func (e *Executor) RollbackSteps(ctx context.Context, steps int) error {
	return e.rollbackLatest(ctx, steps)
}

// RollbackAll reverses every applied migration, latest version first,
// halting on the first failure and leaving the database at whatever point
// the sequence reached.
func (e *Executor) RollbackAll(ctx context.Context) error {
	return e.rollbackLatest(ctx, -1)
}

// rollbackLatest rolls back up to limit applied migrations in descending
// version order. A negative limit means all of them.
func (e *Executor) rollbackLatest(ctx context.Context, limit int) error {
	lock, err := e.acquireLock(ctx)
	if err != nil {
		return fmt.Errorf("acquiring migration lock: %w", err)
	}
	defer lock.Release(ctx) //nolint:errcheck // best-effort release on return

	if err := e.tracker.EnsureTable(ctx); err != nil {
		return err
	}

	applied, err := e.tracker.GetApplied(ctx)
	if err != nil {
		return err
	}

	if limit < 0 || limit > len(applied) {
		limit = len(applied)
	}

	// GetApplied is ascending; walk from the tail.
	for i := 0; i < limit; i++ {
		version := applied[len(applied)-1-i].Version
		if err := e.rollbackOne(ctx, version); err != nil {
			return err
		}
	}

	return nil
}

// rollbackOne reverses one migration: locate the ledger record, derive the
// rollback script from the recorded filename, execute it and remove the
// record in a single transaction. A missing script fails before any database
// change; a failing script rolls its transaction back, leaving the applied
// state intact.
func (e *Executor) rollbackOne(ctx context.Context, version string) error {
	rec, err := e.tracker.Find(ctx, version)
	if err != nil {
		return fmt.Errorf("rolling back %s: %w", version, err)
	}

	if e.migrationsDir == "" {
		return ErrNoMigrationsDir
	}

	m := &migration.Migration{
		Version:  rec.Version,
		Name:     nameFromFilename(rec.Filename),
		Filename: rec.Filename,
	}

	downName := migration.RollbackName(rec.Filename)
	downPath := filepath.Join(e.migrationsDir, downName)

	downData, err := e.readFile(downPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("migration %s: %w: %s", version, ErrRollbackFileMissing, downName)
		}

		return fmt.Errorf("reading rollback script %s: %w", downPath, err)
	}

	downSQL := strings.TrimSpace(string(downData))
	m.DownSQL = downSQL

	e.fireProgress(ProgressEvent{Migration: m, Action: ActionRollback, Status: StatusStarting})

	start := time.Now()
	execErr := e.execDown(ctx, downSQL, version)
	duration := time.Since(start)

	if execErr != nil {
		e.fireProgress(ProgressEvent{
			Migration: m,
			Action:    ActionRollback,
			Status:    StatusFailed,
			Duration:  duration,
			Error:     execErr,
		})

		return fmt.Errorf("rolling back migration %s: %w", version, execErr)
	}

	e.log.Info().Str("version", version).Dur("duration", duration).Msg("migration rolled back")
	e.fireProgress(ProgressEvent{
		Migration: m,
		Action:    ActionRollback,
		Status:    StatusCompleted,
		Duration:  duration,
	})

	return nil
}

// executeRollback runs the rollback SQL and deletes the ledger row in a
// single transaction, so a failing script leaves the applied state intact.
func (e *Executor) executeRollback(ctx context.Context, downSQL, version string) error {
	return ExecInTransaction(ctx, e.pool, func(tx pgx.Tx) error {
		if err := e.applyTimeouts(ctx, tx); err != nil {
			return err
		}

		if _, err := tx.Exec(ctx, downSQL); err != nil {
			return fmt.Errorf("executing rollback SQL: %w", err)
		}

		return e.tracker.Remove(ctx, tx, version)
	})
}

// nameFromFilename recovers the descriptive part of a forward filename,
// e.g. "001_create_employees.sql" -> "create_employees".
func nameFromFilename(filename string) string {
	base := strings.TrimSuffix(filename, migration.ScriptExt)

	if i := strings.IndexAny(base, "_-"); i >= 0 {
		return base[i+1:]
	}

	return base
}
