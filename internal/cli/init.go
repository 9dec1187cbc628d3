// Package cli provides common initialization utilities shared by
// cmd/budgetblocks, cmd/budget-worker and cmd/budgetctl.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"budgetblocks/internal/backend"
	"budgetblocks/internal/config"
	"budgetblocks/internal/ledger"
	"budgetblocks/internal/log"
	"budgetblocks/internal/seed"

	"github.com/joho/godotenv"
)

// SetupLogger builds the process logger at the given LOG_LEVEL and makes it
// the slog default.
func SetupLogger(level string) *log.Logger {
	logger := log.New(log.Config{Level: log.ParseLevel(level), Component: log.ComponentApp})
	log.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile(paths ...string) {
	_ = godotenv.Load(paths...)
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig(logger *log.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err.Error())
		os.Exit(1)
	}
	return cfg
}

// OpenBackend creates the configured storage backend.
// Returns the backend or exits the process on failure.
func OpenBackend(ctx context.Context, logger *log.Logger, cfg *config.Config) *backend.BackendResult {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err.Error())
		os.Exit(1)
	}
	res, err := backend.NewFactory(logger).CreateBackend(ctx, bcfg)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err.Error(), "backend", bcfg.Type.String())
		os.Exit(1)
	}
	return res
}

// LoadLedger restores the stored state into a new Store and applies the
// master-list seed. seeded reports how many master items the seed added,
// which the caller should persist.
func LoadLedger(ctx context.Context, cfg *config.Config, b backend.Backend, logger *log.Logger) (store *ledger.Store, seeded int, err error) {
	st := ledger.NewState(ledger.WithHistoryLimit(cfg.UndoHistoryLimit))

	snap, found, err := b.LoadSnapshot(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("load snapshot: %w", err)
	}
	if found {
		dropped, err := st.Import(snap)
		if err != nil {
			return nil, 0, fmt.Errorf("restore snapshot: %w", err)
		}
		if dropped > 0 {
			logger.WarnContext(ctx, "Dropped unreadable undo entries", log.FieldCount, dropped)
		}
		logger.InfoContext(ctx, "Ledger restored",
			"bases", len(snap.Bases),
			"blocks", len(snap.Blocks),
			"bands", len(snap.Bands))
	}

	var file seed.File
	switch {
	case cfg.SeedFile != "":
		if file, err = seed.Load(cfg.SeedFile); err != nil {
			return nil, 0, err
		}
	case !found:
		file = seed.Default()
	}
	seeded = st.SeedMasters(file.Masters())
	if seeded > 0 {
		logger.InfoContext(ctx, "Master lists seeded", log.FieldCount, seeded)
	}

	return ledger.NewStore(st, logger), seeded, nil
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext(logger *log.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			logger.Info("Shutdown signal received", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
