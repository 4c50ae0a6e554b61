// The reconcile CLI runs the same batches the server exposes, as one-shot
// commands for operators: a reconciliation pass, split resolution, and
// charter balance verification.
package main

import (
	"database/sql"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"charter-reconciliation/internal/config"
	"charter-reconciliation/internal/database"
	"charter-reconciliation/internal/logger"
)

var rootCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Charter reconciliation batch runner",
	Long: `Runs reconciliation batches against the charter back-office database:
matching bank deposits to payments, resolving split receipt groups, and
verifying stored charter balances against the derived values.

Each subcommand is a single all-or-nothing batch; back up the database
before running any of them against live data.`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// setup loads config, initializes logging and opens the database. Every
// subcommand starts here.
func setup() (*config.Config, *sql.DB, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if err := logger.Setup(cfg.LogLevel, cfg.Environment); err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}
	db, err := database.NewConnection(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("connect database: %w", err)
	}
	return cfg, db, nil
}
