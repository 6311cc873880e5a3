package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/giantswarm/mcp-gate/storage"
)

const (
	// DefaultKeyPrefix is the default prefix for all Redis keys
	DefaultKeyPrefix = "mcp-gate:"

	// DefaultDialTimeout is the default timeout for establishing connections
	DefaultDialTimeout = 5 * time.Second

	// DefaultReadTimeout is the default timeout for socket reads
	DefaultReadTimeout = 3 * time.Second

	// DefaultWriteTimeout is the default timeout for socket writes
	DefaultWriteTimeout = 3 * time.Second
)

// Config holds configuration for the Redis storage backend.
type Config struct {
	// Addr is the Redis server address (required), e.g., "localhost:6379"
	Addr string

	// Username and Password are optional ACL credentials
	Username string
	Password string

	// DB is the optional database number
	DB int

	// KeyPrefix is the prefix for all keys (default "mcp-gate:")
	KeyPrefix string

	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// Logger is the optional structured logger (default: slog.Default())
	Logger *slog.Logger
}

// Store is a Redis-backed storage.Store.
type Store struct {
	client goredis.UniversalClient
	prefix string
	logger *slog.Logger
}

var _ storage.Store = (*Store)(nil)

// New connects to Redis and verifies the connection with PING.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis address is required")
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = DefaultDialTimeout
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = DefaultKeyPrefix
	}

	client := goredis.NewClient(&goredis.Options{
		Addr:         cfg.Addr,
		Username:     cfg.Username,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	store := NewWithClient(client, cfg.KeyPrefix, cfg.Logger)
	store.logger.Info("Connected to Redis storage", "address", cfg.Addr, "db", cfg.DB, "prefix", cfg.KeyPrefix)
	return store, nil
}

// NewWithClient creates a Store with a pre-configured client.
// This is useful for testing with miniredis.
func NewWithClient(client goredis.UniversalClient, prefix string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		client: client,
		prefix: prefix,
		logger: logger,
	}
}

// Close closes the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}

// Ping checks connectivity, for readiness probes.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Get implements storage.Store.
func (s *Store) Get(ctx context.Context, table storage.Table, key string) ([]byte, error) {
	data, err := s.client.Get(ctx, s.recordKey(table, key)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get %s record: %w", table, err)
	}
	return data, nil
}

// Set implements storage.Store. Records are stored without a TTL.
func (s *Store) Set(ctx context.Context, table storage.Table, key string, record []byte) error {
	if key == "" {
		return fmt.Errorf("key cannot be empty")
	}
	if err := s.client.Set(ctx, s.recordKey(table, key), record, 0).Err(); err != nil {
		return fmt.Errorf("failed to set %s record: %w", table, err)
	}
	return nil
}

// Delete implements storage.Store.
func (s *Store) Delete(ctx context.Context, table storage.Table, key string) error {
	if err := s.client.Del(ctx, s.recordKey(table, key)).Err(); err != nil {
		return fmt.Errorf("failed to delete %s record: %w", table, err)
	}
	return nil
}

func (s *Store) recordKey(table storage.Table, key string) string {
	return s.prefix + string(table) + ":" + key
}
