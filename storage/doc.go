// Package storage provides persistence for the authorization flow.
//
// Two layers live here:
//   - Store: the minimal key-value contract (Get, Set, Delete by table and key)
//     that every backend implements.
//   - CredentialStore: a typed wrapper that encodes the four record kinds as flat
//     JSON documents and enforces lazy expiry on the pendingAuth and authCodes
//     tables.
//
// Backends are provided in subpackages:
//   - storage/memory: in-memory maps, the default
//   - storage/valkey: Valkey via valkey-go
//   - storage/redis: Redis via go-redis
//   - storage/sqlite: a single SQLite table via modernc.org/sqlite
//   - storage/mock: function-field mock for tests
//
// Backends never expire records themselves. A record in pendingAuth or authCodes
// whose expiresAt is not after the request's clock reading is deleted by the read
// that finds it and reported as ErrNotFound.
package storage
