package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/reisewerk/migrate/internal/analyzer"
)

var planCmd = &cobra.Command{ //nolint:gochecknoglobals // standard Cobra pattern
	Use:   "plan [migration-dir]",
	Short: "Analyze migrations for dangerous operations",
	Long: `Parse migration scripts with the PostgreSQL parser and report DDL
operations that lock tables, rewrite data, or destroy it, with severity
levels and safer alternatives. Purely static; the database is not contacted.`,
	RunE: runPlan,
}

func init() { //nolint:gochecknoinits // standard Cobra pattern for flag registration
	planCmd.Flags().Bool("fail-on-high", false, "exit non-zero if high/critical findings exist")
	rootCmd.AddCommand(planCmd)
}

func runPlan(cmd *cobra.Command, args []string) error {
	dir := AppConfig.MigrationsDir
	if len(args) > 0 {
		dir = args[0]
	}

	sorted, err := loadAndSortMigrations(dir, cmd.OutOrStdout())
	if err != nil || sorted == nil {
		return err
	}

	results, err := analyzer.New().AnalyzeAll(sorted)
	if err != nil {
		return fmt.Errorf("analyzing migrations: %w", err)
	}

	hasHighOrCritical := printFindings(cmd.OutOrStdout(), results)

	failOnHigh, _ := cmd.Flags().GetBool("fail-on-high")
	if failOnHigh && hasHighOrCritical {
		return errDangerousMigrations
	}

	return nil
}

// printFindings renders analysis results and reports whether any migration
// carries a HIGH or CRITICAL finding.
func printFindings(out io.Writer, results []analyzer.Result) bool {
	totalFindings := 0
	hasHighOrCritical := false

	for i := range results {
		r := &results[i]
		if len(r.Findings) == 0 {
			continue
		}

		fmt.Fprintf(out, "\n=== %s_%s ===\n", r.Migration.Version, r.Migration.Name)

		for _, f := range r.Findings {
			fmt.Fprintf(out, "  [%s] %s\n", f.Severity, f.Message)
			fmt.Fprintf(out, "    Table: %s\n", f.Table)
			fmt.Fprintf(out, "    Rule:  %s\n", f.Rule)
			fmt.Fprintf(out, "    Fix:   %s\n\n", f.Suggestion)
		}

		totalFindings += len(r.Findings)

		if r.HasHighOrCritical() {
			hasHighOrCritical = true
		}
	}

	if totalFindings == 0 {
		fmt.Fprintln(out, "No dangerous operations detected.")
	} else {
		fmt.Fprintf(out, "Found %d finding(s).\n", totalFindings)
	}

	return hasHighOrCritical
}
