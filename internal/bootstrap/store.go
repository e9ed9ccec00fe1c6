// Package bootstrap builds the durable store selected by configuration.
// It is shared by the server and the personalizectl CLI.
package bootstrap

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/redis/go-redis/v9"

	"github.com/benvon/smart-health/internal/config"
	"github.com/benvon/smart-health/internal/database"
	"github.com/benvon/smart-health/internal/storage"
)

// Pinger is implemented by stores backed by a remote service
type Pinger interface {
	Ping(ctx context.Context) error
}

// OpenStore opens the store named by cfg.StoreBackend. A non-nil redisClient
// is reused by the redis backend instead of dialing a second connection.
func OpenStore(ctx context.Context, cfg *config.Config, redisClient *redis.Client) (storage.Store, error) {
	switch cfg.StoreBackend {
	case storage.BackendMemory:
		return storage.NewMemoryStore(), nil

	case storage.BackendFile:
		store, err := storage.NewFileStore(cfg.StoreDir)
		if err != nil {
			return nil, fmt.Errorf("failed to open file store: %w", err)
		}
		return store, nil

	case storage.BackendRedis:
		if redisClient != nil {
			return storage.NewRedisStoreFromClient(redisClient), nil
		}
		store, err := storage.NewRedisStore(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open redis store: %w", err)
		}
		return store, nil

	case storage.BackendPostgres:
		return openStateRepository(ctx, database.DialectPostgres, cfg.DatabaseURL)

	case storage.BackendSQLite:
		if dir := filepath.Dir(cfg.SQLitePath); dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, fmt.Errorf("failed to create sqlite directory: %w", err)
			}
		}
		return openStateRepository(ctx, database.DialectSQLite, cfg.SQLitePath)

	default:
		return nil, fmt.Errorf("unsupported store backend %q", cfg.StoreBackend)
	}
}

func openStateRepository(ctx context.Context, dialect database.Dialect, dsn string) (*database.StateRepository, error) {
	db, err := database.New(dialect, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", dialect, err)
	}

	repo := database.NewStateRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		_ = repo.Close()
		return nil, err
	}
	return repo, nil
}
