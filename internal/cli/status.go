package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/reisewerk/migrate/internal/migration"
	"github.com/reisewerk/migrate/internal/tracker"
)

var statusCmd = &cobra.Command{ //nolint:gochecknoglobals // standard Cobra pattern
	Use:   "status",
	Short: "Show migration status",
	Long: `Display applied and pending migrations. Read-only apart from creating
the ledger table on a fresh database, so an empty database reports an empty
ledger instead of erroring.`,
	RunE: runStatus,
}

func init() { //nolint:gochecknoinits // standard Cobra pattern for flag registration
	statusCmd.Flags().String("format", "", "output format (text, json)")
	rootCmd.AddCommand(statusCmd)
}

// statusReport is the machine-readable status shape.
type statusReport struct {
	Applied []appliedEntry `json:"applied"`
	Pending []pendingEntry `json:"pending"`
}

type appliedEntry struct {
	Version   string    `json:"version"`
	Filename  string    `json:"filename"`
	Checksum  string    `json:"checksum"`
	AppliedAt time.Time `json:"applied_at"`
}

type pendingEntry struct {
	Version  string `json:"version"`
	Filename string `json:"filename"`
}

func runStatus(cmd *cobra.Command, _ []string) error {
	cfg := AppConfig

	if cfg.DatabaseURL == "" {
		return errDatabaseURLRequired
	}

	format := cfg.Format
	if cmd.Flags().Changed("format") {
		format, _ = cmd.Flags().GetString("format")
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

	t := tracker.New(pool)
	if err := t.EnsureTable(ctx); err != nil {
		return err
	}

	applied, err := t.GetApplied(ctx)
	if err != nil {
		return err
	}

	// Directory problems should not hide ledger state: report them but
	// still show what is applied.
	var pending []migration.Migration

	available, loadErr := migration.LoadFromDir(cfg.MigrationsDir, Logger)
	if loadErr != nil {
		Logger.Warn().Err(loadErr).Msg("could not load migrations directory, pending list unavailable")
	} else {
		pending = pendingMigrations(migration.Sort(available), applied)
	}

	report := buildReport(applied, pending)

	if format == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")

		return enc.Encode(report)
	}

	printStatusText(cmd.OutOrStdout(), report)

	return nil
}

// pendingMigrations returns the migrations in sorted that have no ledger row.
func pendingMigrations(sorted []migration.Migration, applied []tracker.AppliedMigration) []migration.Migration {
	appliedSet := make(map[string]struct{}, len(applied))
	for _, a := range applied {
		appliedSet[a.Version] = struct{}{}
	}

	var pending []migration.Migration

	for _, m := range sorted {
		if _, ok := appliedSet[m.Version]; !ok {
			pending = append(pending, m)
		}
	}

	return pending
}

func buildReport(applied []tracker.AppliedMigration, pending []migration.Migration) statusReport {
	report := statusReport{
		Applied: make([]appliedEntry, 0, len(applied)),
		Pending: make([]pendingEntry, 0, len(pending)),
	}

	for _, a := range applied {
		report.Applied = append(report.Applied, appliedEntry{
			Version:   a.Version,
			Filename:  a.Filename,
			Checksum:  a.Checksum,
			AppliedAt: a.AppliedAt,
		})
	}

	for _, m := range pending {
		report.Pending = append(report.Pending, pendingEntry{
			Version:  m.Version,
			Filename: m.Filename,
		})
	}

	return report
}

func printStatusText(out io.Writer, report statusReport) {
	if len(report.Applied) == 0 {
		fmt.Fprintln(out, "No migrations applied.")
	} else {
		fmt.Fprintf(out, "Applied (%d):\n", len(report.Applied))

		for _, a := range report.Applied {
			fmt.Fprintf(out, "  %s  %s  %s\n", a.Version, a.AppliedAt.Format(time.RFC3339), a.Filename)
		}
	}

	if len(report.Pending) == 0 {
		fmt.Fprintln(out, "No pending migrations.")

		return
	}

	fmt.Fprintf(out, "Pending (%d):\n", len(report.Pending))

	for _, p := range report.Pending {
		fmt.Fprintf(out, "  %s  %s\n", p.Version, p.Filename)
	}
}
