// Package cmd provides the budgetctl operator commands.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"budgetblocks/internal/backend"
	"budgetblocks/internal/cli"
	"budgetblocks/internal/config"
	"budgetblocks/internal/ledger"
	"budgetblocks/internal/log"
)

var (
	envFile string
	dbPath  string
	debug   bool

	logger *log.Logger
	cfg    *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "budgetctl",
	Short: "Operate on a Budget Blocks database",
	Long: `budgetctl reads and writes the Budget Blocks SQLite database directly.

Stop the budgetblocks server before running commands that write, or its
next save will overwrite their changes.

Example:
  budgetctl export --out backup.json
  budgetctl import --in backup.json
  budgetctl bands generate --frequency monthly --dry-run
  budgetctl kpis`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if envFile != "" {
			cli.LoadEnvFile(envFile)
		} else {
			cli.LoadEnvFile()
		}
		level := os.Getenv("LOG_LEVEL")
		if debug {
			level = "debug"
		}
		// Logs go to stderr so stdout stays clean for export.
		lvl := log.ParseLevel(level)
		logger = log.New(log.Config{
			Level:     lvl,
			Component: log.ComponentApp,
			Handler:   slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}),
		})
		log.SetDefault(logger)

		cfg = config.Load()
		cfg.DataBackend = string(backend.SQLiteBackend)
		if dbPath != "" {
			cfg.SQLiteDBPath = dbPath
		}
		if err := cfg.Validate(); err != nil {
			exitOnError(err, "invalid configuration")
		}
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env", "", "env file to load (default is .env)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite database path (overrides SQLITE_DB_PATH)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(bandsCmd)
	rootCmd.AddCommand(kpisCmd)
}

// openLedger opens the database and restores the stored ledger. The returned
// close func releases the database.
func openLedger(ctx context.Context) (*ledger.Store, backend.Backend, func()) {
	bcfg, err := backend.FromAppConfig(cfg)
	exitOnError(err, "invalid backend configuration")
	res, err := backend.NewFactory(logger).CreateBackend(ctx, bcfg)
	exitOnError(err, "failed to open database")

	store, _, err := cli.LoadLedger(ctx, cfg, res.Backend, logger)
	if err != nil {
		_ = res.Cleanup()
		exitOnError(err, "failed to load ledger")
	}
	return store, res.Backend, func() {
		if err := res.Cleanup(); err != nil {
			logger.Error("Database close failed", log.FieldError, err.Error())
		}
	}
}

// save writes the store's current state back to the database.
func save(ctx context.Context, store *ledger.Store, b backend.Backend) error {
	snap, _ := store.Snapshot()
	if err := b.SaveSnapshot(ctx, snap); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

func exitOnError(err error, msg string) {
	if err != nil {
		logger.Error(msg, log.FieldError, err.Error())
		fmt.Fprintf(os.Stderr, "Error: %s: %v\n", msg, err)
		os.Exit(1)
	}
}
