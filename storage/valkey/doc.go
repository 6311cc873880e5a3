// Package valkey provides a Valkey-backed implementation of storage.Store.
//
// Each record is stored as a JSON string under the key
//
//	<prefix><table>:<key>
//
// with no server-side TTL; expiry stays with storage.CredentialStore so that all
// backends behave identically. Valkey is protocol compatible with Redis, so this
// backend also works against Redis servers.
//
//	store, err := valkey.New(valkey.Config{Address: "localhost:6379"})
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
package valkey
