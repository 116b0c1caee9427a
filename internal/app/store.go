package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/AkZcH/MutexTalk/internal/platform/cache"
	"github.com/AkZcH/MutexTalk/internal/platform/db"
	"github.com/AkZcH/MutexTalk/internal/shared"
	"github.com/AkZcH/MutexTalk/internal/storage"
	"github.com/AkZcH/MutexTalk/internal/storage/flatfile"
	"github.com/AkZcH/MutexTalk/internal/storage/postgres"
	"github.com/AkZcH/MutexTalk/internal/storage/redisstore"
	"github.com/AkZcH/MutexTalk/internal/storage/sqlite"
)

// OpenStore opens the backend named by cfg.StoreDriver.
func OpenStore(ctx context.Context, cfg *Config, logger *slog.Logger) (storage.Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch cfg.StoreDriver {
	case DriverPostgres:
		pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
		if err != nil {
			return nil, err
		}
		if cfg.PGMigrate {
			if err := db.Migrate(pool); err != nil {
				pool.Close()
				return nil, err
			}
			logger.Info("postgres migrations applied")
		}
		return postgres.New(pool), nil
	case DriverRedis:
		client, err := cache.New(ctx, cfg.RedisAddr)
		if err != nil {
			return nil, err
		}
		return redisstore.New(client, cfg.RedisPrefix), nil
	case DriverFile:
		store, err := flatfile.Open(cfg.FileStoreDir)
		if err != nil {
			return nil, err
		}
		return store, nil
	case DriverSQLite:
		store, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return store, nil
	}
	return nil, fmt.Errorf("app: unknown store driver %q", cfg.StoreDriver)
}

// StoreHealth probes store with a one-row read.
func StoreHealth(store storage.Store) HealthCheck {
	return func(ctx context.Context) error {
		_, err := store.ListMessages(ctx, shared.Page{Page: 1, Limit: 1})
		return err
	}
}
