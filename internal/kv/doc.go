// Package kv defines the key-value storage contract the document store is
// persisted through, the browser localStorage of the original application
// turned into an explicit dependency.
//
// # Overview
//
// A Storage maps string keys to opaque byte values. Every stored value has an
// ETag, an opaque version token chosen by the backend. Writes carry an
// If-Match precondition so that concurrent writers detect lost updates
// instead of silently overwriting each other:
//
//   - kv.Any        write unconditionally
//   - ""            create only; fails if the key already exists
//   - "<etag>"      replace only if the current ETag equals the given one
//
// A failed precondition returns common.ErrVersionConflict. A missing key on
// Get returns common.ErrorNotFound.
//
// # Implementations
//
//   - memkv:      process-local map, for tests and ephemeral use
//   - filekv:     one JSON file per key in a directory, with fsnotify Watch
//   - sqlitekv:   embedded SQLite (modernc.org/sqlite), goose migrations
//   - postgreskv: PostgreSQL (pgx stdlib), goose migrations
//   - sealedkv:   wrapper encrypting values at rest with a passphrase
//
// # Typical Usage
//
//	st := memkv.New()
//	etag, _ := st.Put(ctx, "krishimitra_db", []byte(`{}`), "")
//	item, _ := st.Get(ctx, "krishimitra_db")
//	_, err := st.Put(ctx, "krishimitra_db", next, item.ETag)
package kv
