// Package storage provides the durable key-value slot the session manager
// persists the serialized interaction snapshot into.
package storage

import (
	"context"
)

// Store is a scoped key-value facility holding serialized blobs.
// Get reports found=false with a nil error when the key has never been set.
type Store interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Backend names accepted by configuration
const (
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
)

// Ensure concrete types implement the interface
var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*FileStore)(nil)
	_ Store = (*RedisStore)(nil)
)
