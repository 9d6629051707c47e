package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
)

var seedCmd = &cobra.Command{ //nolint:gochecknoglobals // standard Cobra pattern
	Use:   "seed [file]",
	Short: "Load seed data",
	Long: `Execute the seed script in a single transaction. Seed scripts are not
tracked in the migration ledger, so re-running one is not guaranteed to be
harmless. Keep seed scripts restartable or run them once.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSeed,
}

func init() { //nolint:gochecknoinits // standard Cobra pattern for flag registration
	rootCmd.AddCommand(seedCmd)
}

func runSeed(cmd *cobra.Command, args []string) error {
	cfg := AppConfig

	if cfg.DatabaseURL == "" {
		return errDatabaseURLRequired
	}

	seedFile := cfg.SeedFile
	if len(args) == 1 {
		seedFile = args[0]
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

	return loadSeedFrom(ctx, cmd.OutOrStdout(), pool, seedFile)
}

func loadSeed(ctx context.Context, out io.Writer, pool *pgxpool.Pool) error {
	return loadSeedFrom(ctx, out, pool, AppConfig.SeedFile)
}

func loadSeedFrom(ctx context.Context, out io.Writer, pool *pgxpool.Pool, path string) error {
	exec, _ := newExecutor(pool, out)

	fmt.Fprintf(out, "Loading seed data from %s ... ", path)

	if err := exec.Seed(ctx, path); err != nil {
		fmt.Fprintln(out, "FAILED")

		return err
	}

	fmt.Fprintln(out, "done")

	return nil
}
