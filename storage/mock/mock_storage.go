// Package mock provides a mock implementation of storage.Store for testing.
package mock

import (
	"context"
	"sync"

	"github.com/giantswarm/mcp-gate/storage"
)

// Store is a mock storage.Store. By default it behaves like a simple map;
// override GetFunc, SetFunc or DeleteFunc to inject failures.
type Store struct {
	mu      sync.Mutex
	records map[string][]byte

	GetFunc    func(ctx context.Context, table storage.Table, key string) ([]byte, error)
	SetFunc    func(ctx context.Context, table storage.Table, key string, record []byte) error
	DeleteFunc func(ctx context.Context, table storage.Table, key string) error

	CallCounts map[string]int
}

var _ storage.Store = (*Store)(nil)

// NewStore creates a new mock store with map-backed default implementations
func NewStore() *Store {
	m := &Store{
		records:    make(map[string][]byte),
		CallCounts: make(map[string]int),
	}

	m.GetFunc = func(_ context.Context, table storage.Table, key string) ([]byte, error) {
		m.mu.Lock()
		defer m.mu.Unlock()
		record, ok := m.records[mapKey(table, key)]
		if !ok {
			return nil, storage.ErrNotFound
		}
		return record, nil
	}

	m.SetFunc = func(_ context.Context, table storage.Table, key string, record []byte) error {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.records[mapKey(table, key)] = record
		return nil
	}

	m.DeleteFunc = func(_ context.Context, table storage.Table, key string) error {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.records, mapKey(table, key))
		return nil
	}

	return m
}

// Get implements storage.Store
func (m *Store) Get(ctx context.Context, table storage.Table, key string) ([]byte, error) {
	m.count("Get")
	return m.GetFunc(ctx, table, key)
}

// Set implements storage.Store
func (m *Store) Set(ctx context.Context, table storage.Table, key string, record []byte) error {
	m.count("Set")
	return m.SetFunc(ctx, table, key, record)
}

// Delete implements storage.Store
func (m *Store) Delete(ctx context.Context, table storage.Table, key string) error {
	m.count("Delete")
	return m.DeleteFunc(ctx, table, key)
}

// Calls returns how often method was called
func (m *Store) Calls(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.CallCounts[method]
}

// Has reports whether the default map holds a record for key
func (m *Store) Has(table storage.Table, key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.records[mapKey(table, key)]
	return ok
}

func (m *Store) count(method string) {
	m.mu.Lock()
	m.CallCounts[method]++
	m.mu.Unlock()
}

func mapKey(table storage.Table, key string) string {
	return string(table) + ":" + key
}
