// Package memory provides an in-memory implementation of storage.Store.
//
// Records are kept in per-table maps guarded by a sync.RWMutex. The store never
// removes records on its own: expiry is decided by storage.CredentialStore when a
// record is read. It is suitable for development, tests and single-instance
// deployments; use storage/valkey, storage/redis or storage/sqlite when state
// must survive a restart or be shared between replicas.
//
//	backend := memory.New()
//	creds := storage.NewCredentialStore(backend, logger)
package memory
