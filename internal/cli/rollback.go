package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

// errRollbackTarget is returned when the rollback invocation is ambiguous.
var errRollbackTarget = errors.New(
	"specify exactly one of: a version/filename argument, --steps, or --all",
)

var rollbackCmd = &cobra.Command{ //nolint:gochecknoglobals // standard Cobra pattern
	Use:   "rollback [version|filename]",
	Short: "Roll back applied migrations",
	Long: `Roll back previously applied migrations using their paired rollback
scripts. A target may be given as a bare version, a forward-script filename,
or a rollback-script filename. Each rollback script and the removal of its
ledger row commit in one transaction.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRollback,
}

func init() { //nolint:gochecknoinits // standard Cobra pattern for flag registration
	rollbackCmd.Flags().Int("steps", 0, "number of most recent migrations to roll back")
	rollbackCmd.Flags().Bool("all", false, "roll back every applied migration")
	rootCmd.AddCommand(rollbackCmd)
}

func runRollback(cmd *cobra.Command, args []string) error {
	cfg := AppConfig

	if cfg.DatabaseURL == "" {
		return errDatabaseURLRequired
	}

	steps, _ := cmd.Flags().GetInt("steps")
	all, _ := cmd.Flags().GetBool("all")

	modes := 0
	if len(args) == 1 {
		modes++
	}

	if steps > 0 {
		modes++
	}

	if all {
		modes++
	}

	if modes != 1 {
		return errRollbackTarget
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

	exec, counts := newExecutor(pool, cmd.OutOrStdout())

	switch {
	case all:
		err = exec.RollbackAll(ctx)
	case steps > 0:
		err = exec.RollbackSteps(ctx, steps)
	default:
		err = exec.Rollback(ctx, args[0])
	}

	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "\nRollback complete: %d migration(s) rolled back.\n", counts.rolledBack)

	return nil
}
