package docstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/dmitrijs2005/krishimitra/internal/common"
	"github.com/dmitrijs2005/krishimitra/internal/kv"
	"github.com/dmitrijs2005/krishimitra/internal/logging"
	"github.com/dmitrijs2005/krishimitra/internal/timex"
)

// Store gives CRUD access to the collections of one namespace.
type Store struct {
	storage    kv.Storage
	namespace  string
	logger     logging.Logger
	now        func() time.Time
	newID      IDGenerator
	corrupt    CorruptPolicy
	maxRetries int

	mu sync.Mutex
}

// CollectionStats is returned by Stats.
type CollectionStats struct {
	Count int `json:"count"`
	// Size is the length in bytes of the collection's JSON encoding.
	Size int `json:"size"`
}

// New returns a Store over storage without touching it.
func New(storage kv.Storage, opts ...Option) *Store {
	s := &Store{storage: storage}
	defaults(s)
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("namespace", s.namespace)
	return s
}

// Open is New followed by Init.
func Open(ctx context.Context, storage kv.Storage, opts ...Option) (*Store, error) {
	s := New(storage, opts...)
	if err := s.Init(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Namespace returns the storage key this store owns.
func (s *Store) Namespace() string { return s.namespace }

// Init writes an empty database if the namespace does not exist yet.
func (s *Store) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.storage.Put(ctx, s.namespace, []byte(`{}`), "")
	if err != nil && !errors.Is(err, common.ErrVersionConflict) {
		return fmt.Errorf("init namespace %q: %w", s.namespace, err)
	}
	return nil
}

// load reads and decodes the namespace. The returned etag is "" when the
// namespace does not exist, which makes the following write create-only.
func (s *Store) load(ctx context.Context) (Database, string, error) {
	item, err := s.storage.Get(ctx, s.namespace)
	if errors.Is(err, common.ErrorNotFound) {
		return Database{}, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("load namespace %q: %w", s.namespace, err)
	}

	var db Database
	if err := json.Unmarshal(item.Value, &db); err != nil {
		if s.corrupt == CorruptReset {
			s.logger.Warn(ctx, "stored database is corrupt, treating as empty", "error", err)
			return Database{}, item.ETag, nil
		}
		return nil, "", &CorruptStateError{Namespace: s.namespace, Err: err}
	}
	if db == nil {
		db = Database{}
	}
	return db, item.ETag, nil
}

func (s *Store) persist(ctx context.Context, db Database, ifMatch string) error {
	b, err := encodeJSON(db)
	if err != nil {
		return fmt.Errorf("encode database: %w", err)
	}
	etag, err := s.storage.Put(ctx, s.namespace, b, ifMatch)
	if err != nil {
		return fmt.Errorf("save namespace %q: %w", s.namespace, err)
	}
	s.logger.Debug(ctx, "database persisted", "bytes", len(b), "etag", etag)
	return nil
}

// mutate runs fn on freshly loaded state and persists the result when fn
// reports a change. fn may run several times and must derive everything
// from the db it is given.
func (s *Store) mutate(ctx context.Context, fn func(db Database) (bool, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for attempt := 0; ; attempt++ {
		db, etag, err := s.load(ctx)
		if err != nil {
			return err
		}

		changed, err := fn(db)
		if err != nil || !changed {
			return err
		}

		err = s.persist(ctx, db, etag)
		if err == nil || !errors.Is(err, common.ErrVersionConflict) || attempt >= s.maxRetries {
			return err
		}
		s.logger.Warn(ctx, "concurrent write detected, retrying", "attempt", attempt+1)
	}
}

// GetDatabase returns the whole namespace, or an empty Database if it has
// never been written.
func (s *Store) GetDatabase(ctx context.Context) (Database, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	db, _, err := s.load(ctx)
	return db, err
}

// SaveDatabase replaces the whole namespace with db, unconditionally.
func (s *Store) SaveDatabase(ctx context.Context, db Database) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if db == nil {
		db = Database{}
	}
	return s.persist(ctx, db, kv.Any)
}

// GetCollection returns the named collection, or an empty one.
func (s *Store) GetCollection(ctx context.Context, name string) (Collection, error) {
	db, err := s.GetDatabase(ctx)
	if err != nil {
		return nil, err
	}
	if c, ok := db[name]; ok && c != nil {
		return c, nil
	}
	return Collection{}, nil
}

// SaveCollection replaces the named collection wholesale.
func (s *Store) SaveCollection(ctx context.Context, name string, records Collection) error {
	if records == nil {
		records = Collection{}
	}
	return s.SaveCollections(ctx, map[string]Collection{name: records})
}

// SaveCollections replaces every given collection in a single write.
// Either all of them are stored or none is.
func (s *Store) SaveCollections(ctx context.Context, cols map[string]Collection) error {
	if len(cols) == 0 {
		return nil
	}
	return s.mutate(ctx, func(db Database) (bool, error) {
		for name, records := range cols {
			if records == nil {
				records = Collection{}
			}
			db[name] = records
		}
		return true, nil
	})
}

// FindAll is GetCollection.
func (s *Store) FindAll(ctx context.Context, name string) (Collection, error) {
	return s.GetCollection(ctx, name)
}

// FindByID returns the first record of the collection whose id is id.
func (s *Store) FindByID(ctx context.Context, name, id string) (Record, bool, error) {
	c, err := s.GetCollection(ctx, name)
	if err != nil {
		return nil, false, err
	}
	if i := indexOf(c, id); i >= 0 {
		return c[i], true, nil
	}
	return nil, false, nil
}

// Find returns the records matching every field of query (see Matches),
// in collection order.
func (s *Store) Find(ctx context.Context, name string, query Record) (Collection, error) {
	c, err := s.GetCollection(ctx, name)
	if err != nil {
		return nil, err
	}
	out := Collection{}
	for _, r := range c {
		if Matches(r, query) {
			out = append(out, r)
		}
	}
	return out, nil
}

// Insert assigns a new id and createdAt to rec, appends it to the
// collection and returns it as stored. Once the write succeeds rec itself is
// refreshed to the stored form, so callers holding the map see the generated
// fields. A failed insert leaves rec untouched.
func (s *Store) Insert(ctx context.Context, name string, rec Record) (Record, error) {
	if rec == nil {
		rec = Record{}
	}
	var stored Record
	err := s.mutate(ctx, func(db Database) (bool, error) {
		c := db[name]
		id, err := s.uniqueID(c)
		if err != nil {
			return false, err
		}
		stored = rec.clone()
		stored[common.FieldID] = id
		stored[common.FieldCreatedAt] = timex.FormatISO(s.now())
		db[name] = append(c, stored)
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	out, err := normalize(stored)
	if err != nil {
		return nil, err
	}
	clear(rec)
	for k, v := range out {
		rec[k] = v
	}
	return rec, nil
}

func (s *Store) uniqueID(c Collection) (string, error) {
	for i := 0; i < maxIDAttempts; i++ {
		id, err := s.newID()
		if err != nil {
			return "", fmt.Errorf("generate id: %w", err)
		}
		if indexOf(c, id) < 0 {
			return id, nil
		}
	}
	return "", common.ErrIDCollision
}

// Update overlays patch onto the record with the given id, stamps
// updatedAt and stores it at the same position. The system fields id,
// createdAt and updatedAt in patch are ignored. When no record has the id
// nothing is written and ok is false.
func (s *Store) Update(ctx context.Context, name, id string, patch Record) (Record, bool, error) {
	var updated Record
	err := s.mutate(ctx, func(db Database) (bool, error) {
		updated = nil
		c := db[name]
		i := indexOf(c, id)
		if i < 0 {
			return false, nil
		}
		next := c[i].clone()
		for k, v := range patch {
			if isReserved(k) {
				continue
			}
			next[k] = v
		}
		next[common.FieldUpdatedAt] = timex.FormatISO(s.now())
		c[i] = next
		updated = next
		return true, nil
	})
	if err != nil {
		return nil, false, err
	}
	if updated == nil {
		return nil, false, nil
	}
	out, err := normalize(updated)
	if err != nil {
		return nil, false, err
	}
	return out, true, nil
}

// Delete removes the first record with the given id and reports whether
// one was removed.
func (s *Store) Delete(ctx context.Context, name, id string) (bool, error) {
	removed := false
	err := s.mutate(ctx, func(db Database) (bool, error) {
		removed = false
		c := db[name]
		i := indexOf(c, id)
		if i < 0 {
			return false, nil
		}
		db[name] = slices.Delete(c, i, i+1)
		removed = true
		return true, nil
	})
	if err != nil {
		return false, err
	}
	return removed, nil
}

// DeleteMany removes every record matching query and returns how many were
// removed. Nothing is written when none match.
func (s *Store) DeleteMany(ctx context.Context, name string, query Record) (int, error) {
	removed := 0
	err := s.mutate(ctx, func(db Database) (bool, error) {
		c := db[name]
		kept := make(Collection, 0, len(c))
		for _, r := range c {
			if !Matches(r, query) {
				kept = append(kept, r)
			}
		}
		removed = len(c) - len(kept)
		if removed == 0 {
			return false, nil
		}
		db[name] = kept
		return true, nil
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

// Clear removes the namespace and writes an empty database in its place.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.storage.Delete(ctx, s.namespace); err != nil {
		return fmt.Errorf("clear namespace %q: %w", s.namespace, err)
	}
	return s.persist(ctx, Database{}, kv.Any)
}

// DropCollection removes the named collection.
func (s *Store) DropCollection(ctx context.Context, name string) error {
	return s.mutate(ctx, func(db Database) (bool, error) {
		delete(db, name)
		return true, nil
	})
}

// Collections returns the collection names in sorted order.
func (s *Store) Collections(ctx context.Context) ([]string, error) {
	db, err := s.GetDatabase(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(db))
	for name := range db {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Stats reports the record count and encoded size of a collection.
func (s *Store) Stats(ctx context.Context, name string) (CollectionStats, error) {
	c, err := s.GetCollection(ctx, name)
	if err != nil {
		return CollectionStats{}, err
	}
	b, err := encodeJSON(c)
	if err != nil {
		return CollectionStats{}, fmt.Errorf("encode collection: %w", err)
	}
	return CollectionStats{Count: len(c), Size: len(b)}, nil
}

// encodeJSON is json.Marshal without escaping <, > and &.
func encodeJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// normalize returns r as it reads back from storage, so numbers come out
// as float64 and structs as maps.
func normalize(r Record) (Record, error) {
	b, err := encodeJSON(r)
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	var out Record
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	return out, nil
}

func indexOf(c Collection, id string) int {
	for i, r := range c {
		if rid, ok := r[common.FieldID].(string); ok && rid == id {
			return i
		}
	}
	return -1
}
