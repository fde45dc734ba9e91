package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/krishimitra/internal/common"
	"github.com/dmitrijs2005/krishimitra/internal/kv"
	"github.com/dmitrijs2005/krishimitra/internal/kv/memkv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stepClock returns start, start+1s, start+2s, ...
func stepClock(start time.Time) func() time.Time {
	var mu sync.Mutex
	next := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t := next
		next = next.Add(time.Second)
		return t
	}
}

func newTestStore(t *testing.T, opts ...Option) (*Store, *memkv.Storage) {
	t.Helper()
	mem := memkv.New()
	base := []Option{WithClock(stepClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))}
	return New(mem, append(base, opts...)...), mem
}

func TestStore_EmptyNamespace(t *testing.T) {
	ctx := context.Background()
	s, mem := newTestStore(t)

	db, err := s.GetDatabase(ctx)
	require.NoError(t, err)
	assert.Empty(t, db)

	c, err := s.GetCollection(ctx, "farmers")
	require.NoError(t, err)
	assert.NotNil(t, c)
	assert.Empty(t, c)

	_, err = mem.Get(ctx, common.DefaultNamespace)
	require.ErrorIs(t, err, common.ErrorNotFound, "reads never write")
}

func TestStore_Init(t *testing.T) {
	ctx := context.Background()
	mem := memkv.New()

	s, err := Open(ctx, mem, WithNamespace("custom"))
	require.NoError(t, err)
	assert.Equal(t, "custom", s.Namespace())

	item, err := mem.Get(ctx, "custom")
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(item.Value))

	_, err = s.Insert(ctx, "farmers", Record{"name": "Ravi"})
	require.NoError(t, err)

	// a second Init leaves existing data alone
	require.NoError(t, s.Init(ctx))
	all, err := s.FindAll(ctx, "farmers")
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestStore_FarmerLifecycle(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t, WithIDGenerator(func() (string, error) { return "_abc123xyz", nil }))

	in := Record{"name": "Ravi"}
	inserted, err := s.Insert(ctx, "farmers", in)
	require.NoError(t, err)
	assert.Equal(t, "_abc123xyz", inserted.ID())
	assert.Equal(t, "Ravi", inserted["name"])
	assert.Equal(t, "2024-01-01T00:00:00.000Z", inserted.CreatedAt())
	assert.Empty(t, inserted.UpdatedAt())
	assert.Equal(t, "_abc123xyz", in.ID(), "caller's map receives the generated fields")

	updated, ok, err := s.Update(ctx, "farmers", "_abc123xyz", Record{"name": "Ravi K"})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "_abc123xyz", updated.ID())
	assert.Equal(t, "Ravi K", updated["name"])
	assert.Equal(t, "2024-01-01T00:00:00.000Z", updated.CreatedAt())
	assert.Equal(t, "2024-01-01T00:00:01.000Z", updated.UpdatedAt())

	removed, err := s.Delete(ctx, "farmers", "_abc123xyz")
	require.NoError(t, err)
	assert.True(t, removed)

	_, found, err := s.FindByID(ctx, "farmers", "_abc123xyz")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	r, err := s.Insert(ctx, "crops", Record{"name": "wheat", "acres": 2.5, "organic": true})
	require.NoError(t, err)

	got, ok, err := s.FindByID(ctx, "crops", r.ID())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, Record{
		"id":        r.ID(),
		"createdAt": "2024-01-01T00:00:00.000Z",
		"name":      "wheat",
		"acres":     2.5,
		"organic":   true,
	}, got)
}

func TestStore_InsertNilRecord(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	r, err := s.Insert(ctx, "logs", nil)
	require.NoError(t, err)
	assert.NotEmpty(t, r.ID())
	assert.Len(t, r, 2)
}

func TestStore_ReturnsStoredForm(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	rec := Record{"name": "wheat", "plots": 3, "tags": []string{"rabi"}}
	inserted, err := s.Insert(ctx, "crops", rec)
	require.NoError(t, err)
	assert.Equal(t, float64(3), inserted["plots"])
	assert.Equal(t, []any{"rabi"}, inserted["tags"])

	got, ok, err := s.FindByID(ctx, "crops", inserted.ID())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, got, inserted)
	assert.Equal(t, got, rec, "the caller's map is refreshed in place")

	updated, ok, err := s.Update(ctx, "crops", inserted.ID(), Record{"plots": 4})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, float64(4), updated["plots"])

	got, ok, err = s.FindByID(ctx, "crops", inserted.ID())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, got, updated)
}

func TestStore_UpdateOverlay(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	r, err := s.Insert(ctx, "farmers", Record{"name": "Ravi", "village": "Nashik"})
	require.NoError(t, err)

	tests := []struct {
		name  string
		patch Record
		check func(t *testing.T, got Record)
	}{
		{
			name:  "new field added, others kept",
			patch: Record{"phone": "123"},
			check: func(t *testing.T, got Record) {
				assert.Equal(t, "Ravi", got["name"])
				assert.Equal(t, "Nashik", got["village"])
				assert.Equal(t, "123", got["phone"])
			},
		},
		{
			name:  "empty patch only stamps updatedAt",
			patch: Record{},
			check: func(t *testing.T, got Record) {
				assert.Equal(t, "Ravi", got["name"])
				assert.NotEmpty(t, got.UpdatedAt())
			},
		},
		{
			name:  "system fields in patch are ignored",
			patch: Record{"id": "other", "createdAt": "1999-01-01T00:00:00.000Z", "updatedAt": "x"},
			check: func(t *testing.T, got Record) {
				assert.Equal(t, r.ID(), got.ID())
				assert.Equal(t, "2024-01-01T00:00:00.000Z", got.CreatedAt())
				assert.NotEqual(t, "x", got.UpdatedAt())
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok, err := s.Update(ctx, "farmers", r.ID(), tt.patch)
			require.NoError(t, err)
			require.True(t, ok)
			tt.check(t, got)

			stored, _, err := s.FindByID(ctx, "farmers", r.ID())
			require.NoError(t, err)
			assert.Equal(t, got.UpdatedAt(), stored.UpdatedAt())
		})
	}
}

func TestStore_UpdateMissingDoesNotPersist(t *testing.T) {
	ctx := context.Background()
	s, mem := newTestStore(t)

	_, err := s.Insert(ctx, "farmers", Record{"name": "Ravi"})
	require.NoError(t, err)
	before, err := mem.Get(ctx, common.DefaultNamespace)
	require.NoError(t, err)

	got, ok, err := s.Update(ctx, "farmers", "nope", Record{"name": "x"})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, got)

	after, err := mem.Get(ctx, common.DefaultNamespace)
	require.NoError(t, err)
	assert.Equal(t, before.ETag, after.ETag)
}

func TestStore_DeleteIdempotence(t *testing.T) {
	ctx := context.Background()
	s, mem := newTestStore(t)

	r, err := s.Insert(ctx, "farmers", Record{"name": "Ravi"})
	require.NoError(t, err)

	removed, err := s.Delete(ctx, "farmers", r.ID())
	require.NoError(t, err)
	assert.True(t, removed)

	before, err := mem.Get(ctx, common.DefaultNamespace)
	require.NoError(t, err)

	removed, err = s.Delete(ctx, "farmers", r.ID())
	require.NoError(t, err)
	assert.False(t, removed)

	after, err := mem.Get(ctx, common.DefaultNamespace)
	require.NoError(t, err)
	assert.Equal(t, before.ETag, after.ETag, "no write when nothing was removed")
}

func TestStore_FindConjunction(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	for _, r := range []Record{
		{"name": "Ravi", "state": "MH", "acres": 3},
		{"name": "Sita", "state": "MH", "acres": 5},
		{"name": "Arjun", "state": "KA", "acres": 3},
		{"name": "Meera", "tags": []any{"rice"}},
	} {
		_, err := s.Insert(ctx, "farmers", r)
		require.NoError(t, err)
	}

	names := func(c Collection) []string {
		out := []string{}
		for _, r := range c {
			out = append(out, r["name"].(string))
		}
		return out
	}

	tests := []struct {
		name  string
		query Record
		want  []string
	}{
		{"empty query matches all", Record{}, []string{"Ravi", "Sita", "Arjun", "Meera"}},
		{"single key", Record{"state": "MH"}, []string{"Ravi", "Sita"}},
		{"all keys must match", Record{"state": "MH", "acres": 3}, []string{"Ravi"}},
		{"int query matches stored number", Record{"acres": 5}, []string{"Sita"}},
		{"no match", Record{"state": "TN"}, []string{}},
		{"arrays never equal", Record{"tags": []any{"rice"}}, []string{}},
		{"missing field never matches nil", Record{"tags": nil}, []string{}},
		{"string does not equal number", Record{"acres": "3"}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.Find(ctx, "farmers", tt.query)
			require.NoError(t, err)
			assert.Equal(t, tt.want, names(got))
		})
	}
}

func TestStore_CollectionIsolationAndOrder(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	for _, n := range []string{"a", "b", "c"} {
		_, err := s.Insert(ctx, "first", Record{"n": n})
		require.NoError(t, err)
	}
	_, err := s.Insert(ctx, "second", Record{"n": "z"})
	require.NoError(t, err)

	first, err := s.FindAll(ctx, "first")
	require.NoError(t, err)
	require.Len(t, first, 3)
	for i, n := range []string{"a", "b", "c"} {
		assert.Equal(t, n, first[i]["n"])
	}

	second, err := s.FindAll(ctx, "second")
	require.NoError(t, err)
	require.Len(t, second, 1)

	removed, err := s.Delete(ctx, "first", first[1].ID())
	require.NoError(t, err)
	require.True(t, removed)

	first, err = s.FindAll(ctx, "first")
	require.NoError(t, err)
	assert.Equal(t, "a", first[0]["n"])
	assert.Equal(t, "c", first[1]["n"])

	second, err = s.FindAll(ctx, "second")
	require.NoError(t, err)
	assert.Len(t, second, 1)
}

func TestStore_NamespacesShareNothing(t *testing.T) {
	ctx := context.Background()
	mem := memkv.New()
	a := New(mem, WithNamespace("a"))
	b := New(mem, WithNamespace("b"))

	_, err := a.Insert(ctx, "farmers", Record{"name": "Ravi"})
	require.NoError(t, err)

	got, err := b.FindAll(ctx, "farmers")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestStore_SaveAndDrop(t *testing.T) {
	ctx := context.Background()
	s, mem := newTestStore(t)

	require.NoError(t, s.SaveCollection(ctx, "prices", Collection{{"id": "p1", "crop": "onion"}}))
	require.NoError(t, s.SaveCollection(ctx, "soil", nil))

	names, err := s.Collections(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"prices", "soil"}, names)

	item, err := mem.Get(ctx, common.DefaultNamespace)
	require.NoError(t, err)
	assert.JSONEq(t, `{"prices":[{"id":"p1","crop":"onion"}],"soil":[]}`, string(item.Value))

	require.NoError(t, s.DropCollection(ctx, "prices"))
	names, err = s.Collections(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"soil"}, names)

	require.NoError(t, s.SaveDatabase(ctx, Database{"x": Collection{}}))
	db, err := s.GetDatabase(ctx)
	require.NoError(t, err)
	assert.Equal(t, Database{"x": Collection{}}, db)
}

// countingStorage counts Put calls and fails them once err is set.
type countingStorage struct {
	kv.Storage
	puts int
	err  error
}

func (c *countingStorage) Put(ctx context.Context, key string, value []byte, ifMatch string) (string, error) {
	c.puts++
	if c.err != nil {
		return "", c.err
	}
	return c.Storage.Put(ctx, key, value, ifMatch)
}

func TestStore_SaveCollections(t *testing.T) {
	ctx := context.Background()
	counting := &countingStorage{Storage: memkv.New()}
	s := New(counting)

	require.NoError(t, s.SaveCollection(ctx, "farmers", Collection{{"id": "f1"}}))
	counting.puts = 0

	require.NoError(t, s.SaveCollections(ctx, map[string]Collection{
		"prices": {{"id": "p1", "crop": "onion"}},
		"soil":   nil,
	}))
	assert.Equal(t, 1, counting.puts, "all collections go out in one write")

	db, err := s.GetDatabase(ctx)
	require.NoError(t, err)
	assert.Equal(t, Database{
		"farmers": {{"id": "f1"}},
		"prices":  {{"id": "p1", "crop": "onion"}},
		"soil":    {},
	}, db)

	counting.err = errors.New("disk full")
	err = s.SaveCollections(ctx, map[string]Collection{
		"farmers": {},
		"prices":  {},
	})
	require.ErrorIs(t, err, counting.err)

	counting.err = nil
	after, err := s.GetDatabase(ctx)
	require.NoError(t, err)
	assert.Equal(t, db, after, "a failed save changes nothing")

	counting.puts = 0
	require.NoError(t, s.SaveCollections(ctx, nil))
	assert.Zero(t, counting.puts)
}

func TestStore_Clear(t *testing.T) {
	ctx := context.Background()
	s, mem := newTestStore(t)

	_, err := s.Insert(ctx, "farmers", Record{"name": "Ravi"})
	require.NoError(t, err)
	require.NoError(t, s.Clear(ctx))

	item, err := mem.Get(ctx, common.DefaultNamespace)
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(item.Value))

	names, err := s.Collections(ctx)
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestStore_DeleteManyAndStats(t *testing.T) {
	ctx := context.Background()
	s, mem := newTestStore(t)

	for _, crop := range []string{"onion", "rice", "onion"} {
		_, err := s.Insert(ctx, "prices", Record{"crop": crop})
		require.NoError(t, err)
	}

	n, err := s.DeleteMany(ctx, "prices", Record{"crop": "onion"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	before, err := mem.Get(ctx, common.DefaultNamespace)
	require.NoError(t, err)
	n, err = s.DeleteMany(ctx, "prices", Record{"crop": "wheat"})
	require.NoError(t, err)
	assert.Zero(t, n)
	after, err := mem.Get(ctx, common.DefaultNamespace)
	require.NoError(t, err)
	assert.Equal(t, before.ETag, after.ETag)

	c, err := s.FindAll(ctx, "prices")
	require.NoError(t, err)
	b, err := json.Marshal(c)
	require.NoError(t, err)

	st, err := s.Stats(ctx, "prices")
	require.NoError(t, err)
	assert.Equal(t, CollectionStats{Count: 1, Size: len(b)}, st)

	st, err = s.Stats(ctx, "missing")
	require.NoError(t, err)
	assert.Equal(t, CollectionStats{Count: 0, Size: len("[]")}, st)
}

func TestStore_CorruptState(t *testing.T) {
	ctx := context.Background()

	t.Run("fail", func(t *testing.T) {
		s, mem := newTestStore(t)
		_, err := mem.Put(ctx, common.DefaultNamespace, []byte("{not json"), kv.Any)
		require.NoError(t, err)

		_, err = s.GetDatabase(ctx)
		require.ErrorIs(t, err, common.ErrCorruptState)
		var cse *CorruptStateError
		require.ErrorAs(t, err, &cse)
		assert.Equal(t, common.DefaultNamespace, cse.Namespace)

		_, err = s.Insert(ctx, "farmers", Record{"name": "Ravi"})
		require.ErrorIs(t, err, common.ErrCorruptState)

		item, err := mem.Get(ctx, common.DefaultNamespace)
		require.NoError(t, err)
		assert.Equal(t, "{not json", string(item.Value), "blob left untouched")
	})

	t.Run("reset", func(t *testing.T) {
		s, mem := newTestStore(t, WithCorruptPolicy(CorruptReset))
		_, err := mem.Put(ctx, common.DefaultNamespace, []byte("[1,2"), kv.Any)
		require.NoError(t, err)

		db, err := s.GetDatabase(ctx)
		require.NoError(t, err)
		assert.Empty(t, db)

		_, err = s.Insert(ctx, "farmers", Record{"name": "Ravi"})
		require.NoError(t, err)

		all, err := s.FindAll(ctx, "farmers")
		require.NoError(t, err)
		assert.Len(t, all, 1)
	})
}

func TestParseCorruptPolicy(t *testing.T) {
	assert.Equal(t, CorruptReset, ParseCorruptPolicy("reset"))
	assert.Equal(t, CorruptFail, ParseCorruptPolicy("fail"))
	assert.Equal(t, CorruptFail, ParseCorruptPolicy(""))
}

func TestStore_StatsDoesNotEscapeHTML(t *testing.T) {
	ctx := context.Background()
	s, mem := newTestStore(t)

	require.NoError(t, s.SaveCollection(ctx, "notes", Collection{{"id": "n1", "text": "<urea & dap>"}}))

	st, err := s.Stats(ctx, "notes")
	require.NoError(t, err)
	assert.Equal(t, CollectionStats{Count: 1, Size: len(`[{"id":"n1","text":"<urea & dap>"}]`)}, st)

	item, err := mem.Get(ctx, common.DefaultNamespace)
	require.NoError(t, err)
	assert.Contains(t, string(item.Value), "<urea & dap>")
}

// racingStorage lets another writer slip in right before the next races
// Put calls.
type racingStorage struct {
	kv.Storage
	races  int
	before func()
}

func (r *racingStorage) Put(ctx context.Context, key string, value []byte, ifMatch string) (string, error) {
	if r.races > 0 {
		r.races--
		r.before()
	}
	return r.Storage.Put(ctx, key, value, ifMatch)
}

func TestStore_ConcurrentWriterIsNotLost(t *testing.T) {
	ctx := context.Background()
	mem := memkv.New()
	other := New(mem)

	racing := &racingStorage{Storage: mem, races: 1}
	racing.before = func() {
		_, err := other.Insert(ctx, "farmers", Record{"name": "Sita"})
		require.NoError(t, err)
	}
	s := New(racing)

	_, err := s.Insert(ctx, "farmers", Record{"name": "Ravi"})
	require.NoError(t, err)

	all, err := other.FindAll(ctx, "farmers")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Sita", all[0]["name"])
	assert.Equal(t, "Ravi", all[1]["name"])
}

func TestStore_ConflictAfterRetries(t *testing.T) {
	ctx := context.Background()
	mem := memkv.New()
	other := New(mem)

	racing := &racingStorage{Storage: mem, races: 3}
	racing.before = func() {
		_, err := other.Insert(ctx, "farmers", Record{"name": "Sita"})
		require.NoError(t, err)
	}
	s := New(racing, WithMaxRetries(2))

	rec := Record{"name": "Ravi"}
	_, err := s.Insert(ctx, "farmers", rec)
	require.ErrorIs(t, err, common.ErrVersionConflict)
	assert.Equal(t, Record{"name": "Ravi"}, rec, "a failed insert leaves the caller's record alone")

	all, err := other.FindAll(ctx, "farmers")
	require.NoError(t, err)
	assert.Len(t, all, 3, "only the concurrent writer's records are stored")
}

func TestStore_ParallelInserts(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Insert(ctx, "chat", Record{"text": "hi"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	all, err := s.FindAll(ctx, "chat")
	require.NoError(t, err)
	assert.Len(t, all, 20)
}

func TestStore_IDs(t *testing.T) {
	ctx := context.Background()

	t.Run("uuid by default", func(t *testing.T) {
		s, _ := newTestStore(t)
		r, err := s.Insert(ctx, "farmers", Record{})
		require.NoError(t, err)
		assert.Regexp(t, regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-4[0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$`), r.ID())
	})

	t.Run("legacy", func(t *testing.T) {
		s, _ := newTestStore(t, WithIDGenerator(GeneratorByName("legacy")))
		r, err := s.Insert(ctx, "farmers", Record{})
		require.NoError(t, err)
		assert.Regexp(t, regexp.MustCompile(`^_[0-9a-z]{9}$`), r.ID())
	})

	t.Run("collision is retried", func(t *testing.T) {
		ids := []string{"a", "a", "a", "b"}
		gen := func() (string, error) {
			id := ids[0]
			ids = ids[1:]
			return id, nil
		}
		s, _ := newTestStore(t, WithIDGenerator(gen))
		r1, err := s.Insert(ctx, "farmers", Record{})
		require.NoError(t, err)
		r2, err := s.Insert(ctx, "farmers", Record{})
		require.NoError(t, err)
		assert.Equal(t, "a", r1.ID())
		assert.Equal(t, "b", r2.ID())
	})

	t.Run("persistent collision", func(t *testing.T) {
		s, _ := newTestStore(t, WithIDGenerator(func() (string, error) { return "same", nil }))
		_, err := s.Insert(ctx, "farmers", Record{})
		require.NoError(t, err)
		_, err = s.Insert(ctx, "farmers", Record{})
		require.ErrorIs(t, err, common.ErrIDCollision)
	})

	t.Run("generator error", func(t *testing.T) {
		boom := errors.New("boom")
		s, _ := newTestStore(t, WithIDGenerator(func() (string, error) { return "", boom }))
		_, err := s.Insert(ctx, "farmers", Record{})
		require.ErrorIs(t, err, boom)
	})
}

type failingStorage struct {
	kv.Storage
	err error
}

func (f failingStorage) Get(context.Context, string) (*kv.Item, error) { return nil, f.err }

func TestStore_BackendErrorsPropagate(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("disk on fire")
	s := New(failingStorage{Storage: memkv.New(), err: boom})

	_, err := s.GetCollection(ctx, "farmers")
	require.ErrorIs(t, err, boom)
	_, err = s.Insert(ctx, "farmers", Record{})
	require.ErrorIs(t, err, boom)
	_, _, err = s.FindByID(ctx, "farmers", "x")
	require.ErrorIs(t, err, boom)
}
