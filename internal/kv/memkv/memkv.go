// Package memkv is a process-local kv.Storage backed by a map.
package memkv

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/dmitrijs2005/krishimitra/internal/common"
	"github.com/dmitrijs2005/krishimitra/internal/kv"
)

type entry struct {
	value []byte
	etag  string
}

// Storage keeps values in memory. ETags are a per-storage write counter.
type Storage struct {
	mu    sync.RWMutex
	items map[string]entry
	seq   uint64
}

var _ kv.Storage = (*Storage)(nil)

func New() *Storage {
	return &Storage{items: make(map[string]entry)}
}

func (s *Storage) Get(ctx context.Context, key string) (*kv.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.items[key]
	if !ok {
		return nil, fmt.Errorf("key %q: %w", key, common.ErrorNotFound)
	}
	return &kv.Item{Value: append([]byte(nil), e.value...), ETag: e.etag}, nil
}

func (s *Storage) Put(ctx context.Context, key string, value []byte, ifMatch string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var current *kv.Item
	if e, ok := s.items[key]; ok {
		current = &kv.Item{ETag: e.etag}
	}
	if err := kv.CheckPrecondition(current, ifMatch); err != nil {
		return "", err
	}

	s.seq++
	etag := strconv.FormatUint(s.seq, 10)
	s.items[key] = entry{value: append([]byte(nil), value...), etag: etag}
	return etag, nil
}

func (s *Storage) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, key)
	return nil
}

func (s *Storage) Close() error { return nil }
