package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/reisewerk/migrate/internal/database"
	"github.com/reisewerk/migrate/internal/migration"
	"github.com/reisewerk/migrate/internal/parser"
	"github.com/reisewerk/migrate/internal/tracker"
)

// Progress status constants reported via ProgressEvent.
const (
	StatusStarting  = "starting"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusSkipped   = "skipped"
	// StatusPending is reported for migrations a dry run would apply,
	// keeping them distinguishable from already-applied skips.
	StatusPending = "pending"
)

// Actions reported via ProgressEvent.
const (
	ActionApply    = "apply"
	ActionRollback = "rollback"
)

// ProgressEvent is emitted by the executor for each migration processed.
type ProgressEvent struct {
	Migration *migration.Migration
	Action    string
	Status    string
	Duration  time.Duration
	Error     error
}

// MigrationTracker abstracts ledger operations for testability. Record and
// Remove receive the open transaction of the schema change they document.
type MigrationTracker interface {
	EnsureTable(ctx context.Context) error
	Find(ctx context.Context, version string) (*tracker.AppliedMigration, error)
	GetApplied(ctx context.Context) ([]tracker.AppliedMigration, error)
	Record(ctx context.Context, db tracker.DB, p tracker.RecordParams) error
	Remove(ctx context.Context, db tracker.DB, version string) error
}

// lockReleaser is returned by lockFn and must be released when done.
type lockReleaser interface {
	Release(ctx context.Context) error
}

// lockFunc acquires an advisory lock and returns a releaser.
type lockFunc func(ctx context.Context) (lockReleaser, error)

// sqlExecFunc executes one migration's forward SQL and records it.
type sqlExecFunc func(ctx context.Context, m *migration.Migration, start time.Time) error

// sqlDownFunc executes one migration's rollback SQL and removes its record.
type sqlDownFunc func(ctx context.Context, downSQL, version string) error

// Executor applies and rolls back migrations with transaction safety,
// timeouts, and an advisory lock preventing concurrent runner instances.
type Executor struct {
	pool             *pgxpool.Pool
	tracker          MigrationTracker
	migrationsDir    string
	lockTimeout      time.Duration
	statementTimeout time.Duration
	dryRun           bool
	onProgress       func(ProgressEvent)
	log              zerolog.Logger
	acquireLock      lockFunc
	execSQL          sqlExecFunc
	execDown         sqlDownFunc
	readFile         func(path string) ([]byte, error)
}

// Option configures an Executor.
type Option func(*Executor)

// WithMigrationsDir sets the directory rollback scripts are loaded from.
func WithMigrationsDir(dir string) Option {
	return func(e *Executor) { e.migrationsDir = dir }
}

// WithLockTimeout sets the per-transaction lock_timeout.
func WithLockTimeout(d time.Duration) Option {
	return func(e *Executor) { e.lockTimeout = d }
}

// WithStatementTimeout sets the per-transaction statement_timeout.
func WithStatementTimeout(d time.Duration) Option {
	return func(e *Executor) { e.statementTimeout = d }
}

// WithDryRun enables dry-run mode where no SQL is executed.
func WithDryRun(b bool) Option {
	return func(e *Executor) { e.dryRun = b }
}

// WithProgressCallback sets a function called for each migration processed.
func WithProgressCallback(fn func(ProgressEvent)) Option {
	return func(e *Executor) { e.onProgress = fn }
}

// WithLogger sets the executor's diagnostic logger.
func WithLogger(log zerolog.Logger) Option {
	return func(e *Executor) { e.log = log }
}

// New creates an Executor with the given pool, tracker, and options.
func New(pool *pgxpool.Pool, t MigrationTracker, opts ...Option) *Executor {
	e := &Executor{
		pool:    pool,
		tracker: t,
		log:     zerolog.Nop(),
	}

	for _, opt := range opts {
		opt(e)
	}

	// Defaults for injectable functions are set after options so internal
	// tests can override the fields directly.
	if e.acquireLock == nil {
		e.acquireLock = func(ctx context.Context) (lockReleaser, error) {
			return database.TryAcquireLock(ctx, e.pool)
		}
	}

	if e.execSQL == nil {
		e.execSQL = e.executeMigration
	}

	if e.execDown == nil {
		e.execDown = e.executeRollback
	}

	if e.readFile == nil {
		e.readFile = defaultReadFile
	}

	return e
}

// Apply executes pending migrations in ascending version order, halting on
// the first failure since later migrations may depend on earlier ones having
// actually succeeded. Already-applied migrations are skipped after verifying
// their checksum; a mismatch aborts the entire run before any further
// database mutation. The advisory lock excludes concurrent runner instances.
func (e *Executor) Apply(ctx context.Context, migrations []migration.Migration) error {
	lock, err := e.acquireLock(ctx)
	if err != nil {
		return fmt.Errorf("acquiring migration lock: %w", err)
	}
	defer lock.Release(ctx) //nolint:errcheck // best-effort release on return

	if err := e.tracker.EnsureTable(ctx); err != nil {
		return err
	}

	for i := range migrations {
		if err := e.applyOne(ctx, &migrations[i]); err != nil {
			return err
		}
	}

	return nil
}

// applyOne handles a single migration: checksum-verified skip, dry-run,
// transactional execute-and-record, progress reporting.
func (e *Executor) applyOne(ctx context.Context, m *migration.Migration) error {
	skip, err := e.shouldSkip(ctx, m)
	if err != nil {
		return err
	}

	if skip {
		e.log.Debug().Str("version", m.Version).Msg("already applied, skipping")
		e.fireProgress(ProgressEvent{Migration: m, Action: ActionApply, Status: StatusSkipped})

		return nil
	}

	if e.dryRun {
		e.fireProgress(ProgressEvent{Migration: m, Action: ActionApply, Status: StatusPending})
		return nil
	}

	e.fireProgress(ProgressEvent{Migration: m, Action: ActionApply, Status: StatusStarting})

	start := time.Now()
	execErr := e.execSQL(ctx, m, start)
	duration := time.Since(start)

	if execErr != nil {
		e.fireProgress(ProgressEvent{
			Migration: m,
			Action:    ActionApply,
			Status:    StatusFailed,
			Duration:  duration,
			Error:     execErr,
		})

		return fmt.Errorf("executing migration %s: %w", m.Version, execErr)
	}

	e.log.Info().Str("version", m.Version).Dur("duration", duration).Msg("migration applied")
	e.fireProgress(ProgressEvent{
		Migration: m,
		Action:    ActionApply,
		Status:    StatusCompleted,
		Duration:  duration,
	})

	return nil
}

// shouldSkip returns true if the migration is already applied with matching
// checksum. A recorded checksum that disagrees with the script on disk means
// the script was edited after execution; every later migration may then
// assume false preconditions, so the mismatch is fatal for the whole run.
func (e *Executor) shouldSkip(ctx context.Context, m *migration.Migration) (bool, error) {
	rec, err := e.tracker.Find(ctx, m.Version)
	if err != nil {
		if errors.Is(err, tracker.ErrMigrationNotFound) {
			return false, nil
		}

		return false, fmt.Errorf("checking migration %s: %w", m.Version, err)
	}

	if rec.Checksum != m.Checksum {
		return false, fmt.Errorf(
			"migration %s: %w: stored=%s computed=%s",
			m.Version, tracker.ErrChecksumMismatch, rec.Checksum, m.Checksum,
		)
	}

	return true, nil
}

// executeMigration runs one migration's SQL and records its ledger row.
// The normal path does both inside a single transaction so either the schema
// change and its record commit together or neither does. Migrations holding
// CREATE INDEX CONCURRENTLY cannot run inside a transaction block; they
// execute directly and are recorded immediately afterwards.
func (e *Executor) executeMigration(ctx context.Context, m *migration.Migration, start time.Time) error {
	concurrent, err := parser.ContainsConcurrentIndex(m.UpSQL)
	if err != nil {
		return err
	}

	if concurrent {
		if err := ExecWithoutTransaction(ctx, e.pool, m.UpSQL); err != nil {
			return err
		}

		return e.tracker.Record(ctx, e.pool, e.recordParams(m, start))
	}

	return ExecInTransaction(ctx, e.pool, func(tx pgx.Tx) error {
		if err := e.applyTimeouts(ctx, tx); err != nil {
			return err
		}

		if _, err := tx.Exec(ctx, m.UpSQL); err != nil {
			return fmt.Errorf("executing SQL: %w", err)
		}

		return e.tracker.Record(ctx, tx, e.recordParams(m, start))
	})
}

func (e *Executor) applyTimeouts(ctx context.Context, tx pgx.Tx) error {
	if e.lockTimeout > 0 {
		if err := SetLockTimeout(ctx, tx, e.lockTimeout); err != nil {
			return err
		}
	}

	if e.statementTimeout > 0 {
		if err := SetStatementTimeout(ctx, tx, e.statementTimeout); err != nil {
			return err
		}
	}

	return nil
}

func (e *Executor) recordParams(m *migration.Migration, start time.Time) tracker.RecordParams {
	return tracker.RecordParams{
		Version:    m.Version,
		Filename:   m.Filename,
		Checksum:   m.Checksum,
		DurationMs: int(time.Since(start).Milliseconds()),
	}
}

func (e *Executor) fireProgress(event ProgressEvent) {
	if e.onProgress != nil {
		e.onProgress(event)
	}
}
