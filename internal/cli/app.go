package cli

import (
	"log/slog"

	"github.com/roach88/slotswap/internal/config"
	"github.com/roach88/slotswap/internal/store"
)

// loadConfig reads the environment, applies command-line overrides and
// configures logging.
func loadConfig(opts *RootOptions) (config.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.App{}, WrapExitError(ExitCommandError, "failed to load configuration", err)
	}
	if opts.Database != "" {
		cfg.DatabasePath = opts.Database
	}
	setupLogging(opts.Verbose, cfg.SlogLevel())
	return cfg, nil
}

// openStore opens the database, creating and migrating it as needed. The
// returned func closes it and logs any error.
func openStore(path string) (*store.Store, func(), error) {
	slog.Debug("opening database", "path", path)
	st, err := store.Open(path)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, func() {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}, nil
}
