package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/reisewerk/migrate/internal/analyzer"
	"github.com/reisewerk/migrate/internal/config"
	"github.com/reisewerk/migrate/internal/database"
	"github.com/reisewerk/migrate/internal/executor"
	"github.com/reisewerk/migrate/internal/migration"
	"github.com/reisewerk/migrate/internal/tracker"
)

// errDangerousMigrations is returned when apply is blocked by high/critical findings.
var errDangerousMigrations = errors.New("apply aborted: dangerous migrations detected (use --force to override)")

// errDatabaseURLRequired is returned when no database URL is configured.
var errDatabaseURLRequired = errors.New(
	"database URL is required (set --database-url, MIGRATE_DATABASE_URL, or database_url in config)",
)

var applyCmd = &cobra.Command{ //nolint:gochecknoglobals // standard Cobra pattern
	Use:   "apply",
	Short: "Apply pending migrations",
	Long: `Apply pending migrations in ascending version order. Already-applied
migrations are skipped after their recorded checksum is verified against the
script on disk; a mismatch aborts the run. Each migration and its ledger row
commit in one transaction.`,
	RunE: runApply,
}

func init() { //nolint:gochecknoinits // standard Cobra pattern for flag registration
	applyCmd.Flags().Bool("dry-run", false, "show what would be applied without executing")
	applyCmd.Flags().Bool("force", false, "skip the dangerous-operation preflight check")
	applyCmd.Flags().Bool("with-seed", false, "load seed data after a successful apply")
	applyCmd.Flags().Duration("lock-timeout", 0, "override lock timeout (e.g., 10s, 1m)")
	applyCmd.Flags().Duration("statement-timeout", 0, "override statement timeout (e.g., 30s, 5m)")
	rootCmd.AddCommand(applyCmd)
}

func runApply(cmd *cobra.Command, _ []string) error {
	cfg := AppConfig

	if cfg.DatabaseURL == "" {
		return errDatabaseURLRequired
	}

	dryRun, _ := cmd.Flags().GetBool("dry-run")
	force, _ := cmd.Flags().GetBool("force")
	withSeed, _ := cmd.Flags().GetBool("with-seed")

	lockTimeout := cfg.LockTimeout
	if cmd.Flags().Changed("lock-timeout") {
		lockTimeout, _ = cmd.Flags().GetDuration("lock-timeout")
	}

	stmtTimeout := cfg.StatementTimeout
	if cmd.Flags().Changed("statement-timeout") {
		stmtTimeout, _ = cmd.Flags().GetDuration("statement-timeout")
	}

	sorted, err := loadAndSortMigrations(cfg.MigrationsDir, cmd.OutOrStdout())
	if err != nil || sorted == nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	pool, err := connectDB(ctx, cfg, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer pool.Close()

	if !force && !dryRun {
		t := tracker.New(pool)
		if err := t.EnsureTable(ctx); err != nil {
			return err
		}

		applied, err := t.GetApplied(ctx)
		if err != nil {
			return err
		}

		if err := guardDangerous(cmd.OutOrStdout(), pendingMigrations(sorted, applied)); err != nil {
			return err
		}
	}

	if err := executeMigrations(ctx, cmd.OutOrStdout(), pool, sorted, applyOpts{
		lockTimeout: lockTimeout,
		stmtTimeout: stmtTimeout,
		dryRun:      dryRun,
	}); err != nil {
		return err
	}

	if withSeed && !dryRun {
		return loadSeed(ctx, cmd.OutOrStdout(), pool)
	}

	return nil
}

// guardDangerous analyzes the given pending migrations and blocks the run on
// HIGH or CRITICAL findings. Already-applied migrations must not be passed:
// a dangerous script that has long since run should not block future applies.
func guardDangerous(out io.Writer, pending []migration.Migration) error {
	if len(pending) == 0 {
		return nil
	}

	results, err := analyzer.New().AnalyzeAll(pending)
	if err != nil {
		return fmt.Errorf("analyzing migrations: %w", err)
	}

	if printFindings(out, results) {
		return errDangerousMigrations
	}

	return nil
}

type applyOpts struct {
	lockTimeout time.Duration
	stmtTimeout time.Duration
	dryRun      bool
}

func loadAndSortMigrations(dir string, out io.Writer) ([]migration.Migration, error) {
	migrations, err := migration.LoadFromDir(dir, Logger)
	if err != nil {
		return nil, fmt.Errorf("loading migrations: %w", err)
	}

	if len(migrations) == 0 {
		fmt.Fprintln(out, "No migration files found.")
		return nil, nil //nolint:nilnil // nil,nil signals "no migrations, no error"
	}

	return migration.Sort(migrations), nil
}

func connectDB(ctx context.Context, cfg *config.Config, out io.Writer) (*pgxpool.Pool, error) {
	fmt.Fprintf(out, "Connecting to %s\n", config.RedactURL(cfg.DatabaseURL))

	pool, err := database.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	return pool, nil
}

func newExecutor(pool *pgxpool.Pool, out io.Writer, opts ...executor.Option) (*executor.Executor, *runCounts) {
	counts := &runCounts{}
	base := []executor.Option{
		executor.WithMigrationsDir(AppConfig.MigrationsDir),
		executor.WithLogger(Logger),
		executor.WithProgressCallback(progressPrinter(out, counts)),
	}

	return executor.New(pool, tracker.New(pool), append(base, opts...)...), counts
}

type runCounts struct {
	applied    int
	rolledBack int
	skipped    int
	pending    int
}

// progressPrinter renders executor progress events for humans.
func progressPrinter(out io.Writer, counts *runCounts) func(executor.ProgressEvent) {
	return func(event executor.ProgressEvent) {
		verb := "Applying"
		if event.Action == executor.ActionRollback {
			verb = "Rolling back"
		}

		switch event.Status {
		case executor.StatusStarting:
			fmt.Fprintf(out, "  %s %s_%s ... ", verb, event.Migration.Version, event.Migration.Name)
		case executor.StatusCompleted:
			fmt.Fprintf(out, "done (%s)\n", event.Duration.Truncate(time.Millisecond))

			if event.Action == executor.ActionRollback {
				counts.rolledBack++
			} else {
				counts.applied++
			}
		case executor.StatusSkipped:
			counts.skipped++
		case executor.StatusPending:
			fmt.Fprintf(out, "  Would apply %s_%s\n", event.Migration.Version, event.Migration.Name)
			counts.pending++
		case executor.StatusFailed:
			fmt.Fprintf(out, "FAILED\n")
			fmt.Fprintf(out, "    Error: %v\n", event.Error)
		}
	}
}

func executeMigrations(
	ctx context.Context,
	out io.Writer,
	pool *pgxpool.Pool,
	sorted []migration.Migration,
	opts applyOpts,
) error {
	exec, counts := newExecutor(pool, out,
		executor.WithLockTimeout(opts.lockTimeout),
		executor.WithStatementTimeout(opts.stmtTimeout),
		executor.WithDryRun(opts.dryRun),
	)

	if opts.dryRun {
		fmt.Fprintln(out, "\n--- DRY RUN (no changes will be made) ---")
	}

	if err := exec.Apply(ctx, sorted); err != nil {
		return err
	}

	if opts.dryRun {
		fmt.Fprintf(out, "\nDry run complete: %d migration(s) would be applied, %d already applied.\n",
			counts.pending, counts.skipped)
	} else {
		fmt.Fprintf(out, "\nApply complete: %d applied, %d skipped.\n", counts.applied, counts.skipped)
	}

	return nil
}
