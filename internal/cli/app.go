// Package cli holds the billtxd commands.
package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mmynk/billtx/internal/config"
	"github.com/mmynk/billtx/internal/service"
	"github.com/mmynk/billtx/internal/storage"
	"github.com/mmynk/billtx/internal/storage/postgres"
	"github.com/mmynk/billtx/internal/storage/sqlite"
	"github.com/mmynk/billtx/internal/txn"
	"github.com/mmynk/billtx/internal/validation"
)

// openStore opens the store selected by cfg.StoreDriver.
func openStore(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		store, err := postgres.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres store: %w", err)
		}
		return store, nil
	case config.DriverSQLite:
		store, err := sqlite.New(cfg.DBPath, sqlite.WithBusyTimeout(cfg.BusyTimeout))
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite store: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

func newUserService(store storage.Store, logger *slog.Logger, opts ...txn.Option) *service.UserService {
	return service.NewUserService(
		store,
		txn.NewManager(store, logger, opts...),
		validation.New(nil),
		logger,
	)
}
