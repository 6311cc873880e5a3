package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	// registers the "sqlite" driver
	_ "modernc.org/sqlite"

	"github.com/giantswarm/mcp-gate/storage"
)

const schema = `
CREATE TABLE IF NOT EXISTS records (
	tbl TEXT NOT NULL,
	record_key TEXT NOT NULL,
	doc BLOB NOT NULL,
	PRIMARY KEY (tbl, record_key)
)`

// Store is a SQLite-backed storage.Store.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ storage.Store = (*Store)(nil)

// Open opens (or creates) the database at path and ensures the schema exists.
// Use ":memory:" for a private in-memory database.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	if path != ":memory:" {
		// the directory must exist or the driver fails on first use
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return nil, fmt.Errorf("failed to create directory for sqlite database: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	// SQLite serialises writers anyway; one connection also keeps ":memory:" shared.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	logger.Info("Opened SQLite storage", "path", path)
	return &Store{db: db, logger: logger}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Get implements storage.Store.
func (s *Store) Get(ctx context.Context, table storage.Table, key string) ([]byte, error) {
	var doc []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT doc FROM records WHERE tbl = ? AND record_key = ?`, string(table), key,
	).Scan(&doc)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get %s record: %w", table, err)
	}
	return doc, nil
}

// Set implements storage.Store.
func (s *Store) Set(ctx context.Context, table storage.Table, key string, record []byte) error {
	if key == "" {
		return errors.New("key cannot be empty")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO records (tbl, record_key, doc) VALUES (?, ?, ?)
		 ON CONFLICT (tbl, record_key) DO UPDATE SET doc = excluded.doc`,
		string(table), key, record,
	)
	if err != nil {
		return fmt.Errorf("failed to set %s record: %w", table, err)
	}
	return nil
}

// Delete implements storage.Store.
func (s *Store) Delete(ctx context.Context, table storage.Table, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM records WHERE tbl = ? AND record_key = ?`, string(table), key); err != nil {
		return fmt.Errorf("failed to delete %s record: %w", table, err)
	}
	return nil
}
