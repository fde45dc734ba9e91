// Package filekv stores each key as a JSON file inside a directory. Writes
// are atomic (temp file + rename) and changes made by other processes can be
// observed with Watch.
package filekv

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dmitrijs2005/krishimitra/internal/common"
	"github.com/dmitrijs2005/krishimitra/internal/filex"
	"github.com/dmitrijs2005/krishimitra/internal/kv"
	"github.com/gofrs/flock"
)

const (
	fileExt = ".json"
	lockExt = ".lock"

	lockRetryDelay = 5 * time.Millisecond
)

// Storage is a directory of <key>.json files.
//
// Writes hold an advisory lock on <key>.lock from the precondition check
// until the rename, so several Storage values or processes sharing a
// directory never lose each other's updates.
type Storage struct {
	dir      string
	debounce time.Duration

	mu sync.Mutex
	// etag of the last write made through this Storage, per key; "" after
	// a Delete. Used by Watch to skip our own changes.
	own map[string]string

	// test hook, called once Watch has registered with fsnotify
	onWatching func()
}

var (
	_ kv.Storage = (*Storage)(nil)
	_ kv.Watcher = (*Storage)(nil)
)

type Option func(*Storage)

// WithDebounce sets how long Watch waits for a burst of file events to
// settle before reporting a change. Default 100ms.
func WithDebounce(d time.Duration) Option {
	return func(s *Storage) { s.debounce = d }
}

// New creates the directory if needed and returns a Storage rooted there.
func New(dir string, opts ...Option) (*Storage, error) {
	abs, err := filex.EnsureDir(dir)
	if err != nil {
		return nil, err
	}
	s := &Storage{dir: abs, debounce: 100 * time.Millisecond, own: make(map[string]string)}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Dir returns the absolute directory the storage writes to.
func (s *Storage) Dir() string { return s.dir }

func (s *Storage) path(key string) string {
	return filepath.Join(s.dir, key+fileExt)
}

func (s *Storage) read(key string) (*kv.Item, error) {
	b, err := os.ReadFile(s.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("key %q: %w", key, common.ErrorNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	return &kv.Item{Value: b, ETag: kv.ComputeETag(b)}, nil
}

func (s *Storage) Get(ctx context.Context, key string) (*kv.Item, error) {
	if err := kv.ValidateKey(key); err != nil {
		return nil, err
	}
	return s.read(key)
}

// lock takes the cross-process write lock for key, waiting until ctx is
// done.
func (s *Storage) lock(ctx context.Context, key string) (*flock.Flock, error) {
	fl := flock.New(filepath.Join(s.dir, key+lockExt))
	ok, err := fl.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", key, err)
	}
	if !ok {
		return nil, fmt.Errorf("lock %s: %w", key, ctx.Err())
	}
	return fl, nil
}

func (s *Storage) Put(ctx context.Context, key string, value []byte, ifMatch string) (string, error) {
	if err := kv.ValidateKey(key); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	fl, err := s.lock(ctx, key)
	if err != nil {
		return "", err
	}
	defer fl.Unlock()

	current, err := s.read(key)
	if err != nil && !errors.Is(err, common.ErrorNotFound) {
		return "", err
	}
	if err := kv.CheckPrecondition(current, ifMatch); err != nil {
		return "", err
	}

	if err := filex.WriteFileAtomic(s.path(key), value, 0o600); err != nil {
		return "", err
	}

	etag := kv.ComputeETag(value)
	s.own[key] = etag
	return etag, nil
}

func (s *Storage) Delete(ctx context.Context, key string) error {
	if err := kv.ValidateKey(key); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	fl, err := s.lock(ctx, key)
	if err != nil {
		return err
	}
	defer fl.Unlock()

	if err := os.Remove(s.path(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", key, err)
	}
	s.own[key] = ""
	return nil
}

func (s *Storage) Close() error { return nil }

func (s *Storage) ownETag(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	etag, ok := s.own[key]
	return etag, ok
}
