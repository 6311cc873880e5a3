package memory

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/giantswarm/mcp-gate/instrumentation"
	"github.com/giantswarm/mcp-gate/storage"
)

// Store is an in-memory storage.Store.
type Store struct {
	mu     sync.RWMutex
	tables map[storage.Table]map[string][]byte

	// record count kept outside the lock for metric callbacks
	records atomic.Int64

	instrumentation *instrumentation.Instrumentation
	tracer          trace.Tracer
}

var _ storage.Store = (*Store)(nil)

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		tables: make(map[storage.Table]map[string][]byte),
	}
}

// SetInstrumentation enables tracing and metrics for storage operations.
func (s *Store) SetInstrumentation(inst *instrumentation.Instrumentation) {
	s.mu.Lock()
	s.instrumentation = inst
	if inst != nil {
		s.tracer = inst.Tracer("storage")
	}
	s.mu.Unlock()

	if inst != nil {
		_ = inst.RegisterStorageSizeCallback(func() int64 { return s.records.Load() })
	}
}

// Get implements storage.Store.
func (s *Store) Get(ctx context.Context, table storage.Table, key string) ([]byte, error) {
	ctx, span := s.startStorageSpan(ctx, "get", table)
	defer span.End()

	startTime := time.Now()
	var err error
	defer func() {
		s.recordStorageOperation(ctx, span, "get", err, startTime)
	}()

	s.mu.RLock()
	record, ok := s.tables[table][key]
	s.mu.RUnlock()

	if !ok {
		err = storage.ErrNotFound
		return nil, err
	}

	// callers may not mutate our copy
	out := make([]byte, len(record))
	copy(out, record)
	return out, nil
}

// Set implements storage.Store.
func (s *Store) Set(ctx context.Context, table storage.Table, key string, record []byte) error {
	ctx, span := s.startStorageSpan(ctx, "set", table)
	defer span.End()

	startTime := time.Now()
	var err error
	defer func() {
		s.recordStorageOperation(ctx, span, "set", err, startTime)
	}()

	if key == "" {
		err = fmt.Errorf("key cannot be empty")
		return err
	}

	stored := make([]byte, len(record))
	copy(stored, record)

	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tables[table]
	if !ok {
		t = make(map[string][]byte)
		s.tables[table] = t
	}
	if _, existed := t[key]; !existed {
		s.records.Add(1)
	}
	t[key] = stored
	return nil
}

// Delete implements storage.Store.
func (s *Store) Delete(ctx context.Context, table storage.Table, key string) error {
	ctx, span := s.startStorageSpan(ctx, "delete", table)
	defer span.End()

	startTime := time.Now()
	defer func() {
		s.recordStorageOperation(ctx, span, "delete", nil, startTime)
	}()

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tables[table][key]; ok {
		delete(s.tables[table], key)
		s.records.Add(-1)
	}
	return nil
}

// Len returns the number of records held in table.
func (s *Store) Len(table storage.Table) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tables[table])
}

func (s *Store) startStorageSpan(ctx context.Context, operation string, table storage.Table) (context.Context, trace.Span) {
	s.mu.RLock()
	tracer := s.tracer
	s.mu.RUnlock()

	if tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}

	return tracer.Start(ctx, "storage."+operation,
		trace.WithAttributes(
			attribute.String(instrumentation.AttrStorageOperation, operation),
			attribute.String(instrumentation.AttrStorageTable, string(table)),
			attribute.String(instrumentation.AttrStorageType, "memory"),
		))
}

// recordStorageOperation records metrics for a storage operation and sets span status.
// A miss is a normal outcome and is not marked as a span error.
func (s *Store) recordStorageOperation(ctx context.Context, span trace.Span, operation string, err error, startTime time.Time) {
	s.mu.RLock()
	inst := s.instrumentation
	s.mu.RUnlock()

	if inst == nil {
		return
	}

	durationMs := instrumentation.SinceMs(startTime)
	result := "success"
	switch {
	case err == storage.ErrNotFound:
		result = "miss"
		span.SetStatus(codes.Ok, "")
	case err != nil:
		result = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	default:
		span.SetStatus(codes.Ok, "")
	}

	inst.Metrics().RecordStorageOperation(ctx, operation, result, durationMs)
}
