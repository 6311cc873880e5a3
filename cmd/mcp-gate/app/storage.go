package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/giantswarm/mcp-gate/storage"
	"github.com/giantswarm/mcp-gate/storage/memory"
	"github.com/giantswarm/mcp-gate/storage/redis"
	"github.com/giantswarm/mcp-gate/storage/sqlite"
	"github.com/giantswarm/mcp-gate/storage/valkey"
)

// openBackend opens the configured storage backend. The returned function
// releases it.
func openBackend(ctx context.Context, s *settings, logger *slog.Logger) (storage.Store, func(), error) {
	switch s.StorageBackend {
	case backendMemory:
		logger.Warn("Using in-memory storage; flow state is lost on restart")
		return memory.New(), func() {}, nil

	case backendValkey:
		store, err := valkey.New(valkey.Config{
			Address:   s.StorageAddr,
			Password:  s.StoragePassword,
			KeyPrefix: s.StoragePrefix,
			Logger:    logger,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open valkey storage: %w", err)
		}
		return store, store.Close, nil

	case backendRedis:
		store, err := redis.New(ctx, redis.Config{
			Addr:      s.StorageAddr,
			Password:  s.StoragePassword,
			KeyPrefix: s.StoragePrefix,
			Logger:    logger,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open redis storage: %w", err)
		}
		return store, func() {
			if err := store.Close(); err != nil {
				logger.Warn("Failed to close redis storage", "error", err)
			}
		}, nil

	case backendSQLite:
		store, err := sqlite.Open(s.SQLitePath, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open sqlite storage: %w", err)
		}
		return store, func() {
			if err := store.Close(); err != nil {
				logger.Warn("Failed to close sqlite storage", "error", err)
			}
		}, nil
	}
	return nil, nil, fmt.Errorf("unknown storage backend %q", s.StorageBackend)
}
