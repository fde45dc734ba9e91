// Package docstore is a small document store: named collections of JSON
// records persisted as one serialized blob under a single namespace key of a
// kv.Storage.
//
// # Data Model
//
// A Database maps collection names to Collections; a Collection is an
// ordered slice of Records; a Record is a JSON object with three fields
// managed by the store:
//
//   - id: assigned on Insert, never changed afterwards
//   - createdAt: ISO-8601 UTC timestamp set on Insert
//   - updatedAt: ISO-8601 UTC timestamp set on every Update
//
// The stored value is exactly the JSON encoding of the Database, e.g.
//
//	{"farmers":[{"id":"…","name":"Ravi","createdAt":"2024-01-01T00:00:00.000Z"}]}
//
// # Reads and writes
//
// Nothing is cached: every call loads and decodes the whole namespace, and
// every write encodes and stores all of it. Missing namespaces, collections
// and records are never errors; operations return empty values or false.
//
// # Concurrency
//
// Every operation runs inside one mutex per Store. Writes are stored with the ETag read at
// the start of the operation as an If-Match precondition. If another process
// changed the namespace in between, the whole operation is retried on fresh
// state (WithMaxRetries) and common.ErrVersionConflict is returned once the
// retries are spent.
//
// # Typical Usage
//
//	store, err := docstore.Open(ctx, memkv.New())
//	rec, _ := store.Insert(ctx, "farmers", docstore.Record{"name": "Ravi"})
//	got, ok, _ := store.FindByID(ctx, "farmers", rec.ID())
//	_, _, _ = store.Update(ctx, "farmers", rec.ID(), docstore.Record{"name": "Ravi K"})
//	_, _ = store.Delete(ctx, "farmers", rec.ID())
package docstore
