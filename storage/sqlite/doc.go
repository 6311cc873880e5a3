// Package sqlite provides a SQLite-backed implementation of storage.Store using the
// pure-Go modernc.org/sqlite driver. All tables share one physical table:
//
//	CREATE TABLE records (tbl TEXT, key TEXT, doc BLOB, PRIMARY KEY (tbl, record_key))
//
// It suits single-instance deployments that need flow state and registered
// clients to survive a restart without running a separate database server.
package sqlite
