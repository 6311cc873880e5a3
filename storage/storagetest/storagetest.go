// Package storagetest holds the behaviour every storage.Store backend must share.
// Backend packages call Run from their own tests.
package storagetest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/giantswarm/mcp-gate/storage"
)

// Run exercises the storage.Store contract against store.
// The store must be empty when Run is called.
func Run(t *testing.T, store storage.Store) {
	t.Helper()

	t.Run("GetMissing", func(t *testing.T) { testGetMissing(t, store) })
	t.Run("SetGet", func(t *testing.T) { testSetGet(t, store) })
	t.Run("Overwrite", func(t *testing.T) { testOverwrite(t, store) })
	t.Run("Delete", func(t *testing.T) { testDelete(t, store) })
	t.Run("DeleteMissing", func(t *testing.T) { testDeleteMissing(t, store) })
	t.Run("TablesAreIsolated", func(t *testing.T) { testTablesAreIsolated(t, store) })
	t.Run("Concurrent", func(t *testing.T) { testConcurrent(t, store) })
}

func testGetMissing(t *testing.T, store storage.Store) {
	_, err := store.Get(context.Background(), storage.TablePendingAuth, "does-not-exist")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
}

func testSetGet(t *testing.T, store storage.Store) {
	ctx := context.Background()
	record := []byte(`{"clientId":"client-1","redirectUri":"https://app.example.com/cb"}`)

	if err := store.Set(ctx, storage.TablePendingAuth, "state-setget", record); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	got, err := store.Get(ctx, storage.TablePendingAuth, "state-setget")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !bytes.Equal(got, record) {
		t.Errorf("Get() = %s, want %s", got, record)
	}
}

func testOverwrite(t *testing.T, store storage.Store) {
	ctx := context.Background()

	if err := store.Set(ctx, storage.TableGoogleCredentials, "alice@example.com", []byte(`{"accessToken":"old"}`)); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := store.Set(ctx, storage.TableGoogleCredentials, "alice@example.com", []byte(`{"accessToken":"new"}`)); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	got, err := store.Get(ctx, storage.TableGoogleCredentials, "alice@example.com")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(got) != `{"accessToken":"new"}` {
		t.Errorf("Get() = %s, want overwritten record", got)
	}
}

func testDelete(t *testing.T, store storage.Store) {
	ctx := context.Background()

	if err := store.Set(ctx, storage.TableAuthCodes, "code-delete", []byte(`{}`)); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := store.Delete(ctx, storage.TableAuthCodes, "code-delete"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := store.Get(ctx, storage.TableAuthCodes, "code-delete"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Get() after Delete() error = %v, want ErrNotFound", err)
	}
}

func testDeleteMissing(t *testing.T, store storage.Store) {
	if err := store.Delete(context.Background(), storage.TableAuthCodes, "never-stored"); err != nil {
		t.Errorf("Delete() of missing key error = %v, want nil", err)
	}
}

func testTablesAreIsolated(t *testing.T, store storage.Store) {
	ctx := context.Background()

	if err := store.Set(ctx, storage.TablePendingAuth, "shared-key", []byte(`{"table":"pending"}`)); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if _, err := store.Get(ctx, storage.TableAuthCodes, "shared-key"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Get() from other table error = %v, want ErrNotFound", err)
	}
	if err := store.Delete(ctx, storage.TableAuthCodes, "shared-key"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := store.Get(ctx, storage.TablePendingAuth, "shared-key"); err != nil {
		t.Errorf("record removed by delete on another table: %v", err)
	}
}

func testConcurrent(t *testing.T, store storage.Store) {
	ctx := context.Background()
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("client-%d", i)
			if err := store.Set(ctx, storage.TableRegisteredClients, key, []byte(`{}`)); err != nil {
				t.Errorf("Set(%s) error = %v", key, err)
				return
			}
			if _, err := store.Get(ctx, storage.TableRegisteredClients, key); err != nil {
				t.Errorf("Get(%s) error = %v", key, err)
			}
		}(i)
	}
	wg.Wait()
}
