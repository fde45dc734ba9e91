// Package sealedkv wraps a kv.Storage so that values are encrypted at rest
// with a key derived from a passphrase. ETags and preconditions pass through
// to the inner storage untouched.
package sealedkv

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/krishimitra/internal/common"
	"github.com/dmitrijs2005/krishimitra/internal/cryptox"
	"github.com/dmitrijs2005/krishimitra/internal/kv"
)

// magic prefixes every sealed value: "KMS" + format version.
var magic = []byte("KMS1")

var ErrNotSealed = errors.New("value is not sealed")

// Storage encrypts values with AES-GCM. The stored layout is
//
//	magic(4) | salt(16) | nonce | ciphertext+tag
//
// and the key name is bound as additional data, so a value copied under
// another key fails to open.
type Storage struct {
	inner      kv.Storage
	passphrase []byte

	mu   sync.Mutex
	salt []byte
	keys map[string][]byte // derived key per salt
}

var _ kv.Storage = (*Storage)(nil)

// New wraps inner. The passphrase is copied; callers may wipe theirs.
func New(inner kv.Storage, passphrase []byte) *Storage {
	return &Storage{
		inner:      inner,
		passphrase: append([]byte(nil), passphrase...),
		keys:       make(map[string][]byte),
	}
}

func (s *Storage) keyFor(salt []byte) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()

	if k, ok := s.keys[string(salt)]; ok {
		return k
	}
	k := cryptox.DeriveMasterKey(s.passphrase, salt)
	s.keys[string(salt)] = k
	return k
}

// writeSalt returns the salt for new writes: the one last seen on a read,
// or a fresh one. Reusing it avoids an Argon2 run per write.
func (s *Storage) writeSalt() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.salt == nil {
		s.salt = cryptox.NewSalt()
	}
	return s.salt
}

func (s *Storage) Get(ctx context.Context, key string) (*kv.Item, error) {
	item, err := s.inner.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	hdr := len(magic) + cryptox.SaltSize
	if len(item.Value) < hdr || !bytes.Equal(item.Value[:len(magic)], magic) {
		return nil, fmt.Errorf("key %q: %w", key, ErrNotSealed)
	}
	salt := item.Value[len(magic):hdr]

	plain, err := cryptox.Open(s.keyFor(salt), item.Value[hdr:], []byte(key))
	if err != nil {
		return nil, fmt.Errorf("key %q: %w", key, err)
	}

	s.mu.Lock()
	s.salt = append([]byte(nil), salt...)
	s.mu.Unlock()

	return &kv.Item{Value: plain, ETag: item.ETag}, nil
}

func (s *Storage) Put(ctx context.Context, key string, value []byte, ifMatch string) (string, error) {
	salt := s.writeSalt()

	sealed, err := cryptox.Seal(s.keyFor(salt), value, []byte(key))
	if err != nil {
		return "", fmt.Errorf("seal %q: %w", key, err)
	}

	out := make([]byte, 0, len(magic)+len(salt)+len(sealed))
	out = append(out, magic...)
	out = append(out, salt...)
	out = append(out, sealed...)

	return s.inner.Put(ctx, key, out, ifMatch)
}

func (s *Storage) Delete(ctx context.Context, key string) error {
	return s.inner.Delete(ctx, key)
}

// Close wipes key material and closes the inner storage.
func (s *Storage) Close() error {
	s.mu.Lock()
	common.WipeByteArray(s.passphrase)
	for _, k := range s.keys {
		common.WipeByteArray(k)
	}
	s.keys = make(map[string][]byte)
	s.mu.Unlock()

	return s.inner.Close()
}

// Watch forwards to the inner storage when it supports watching.
func (s *Storage) Watch(ctx context.Context, key string, fn func(kv.Event)) error {
	w, ok := s.inner.(kv.Watcher)
	if !ok {
		return errors.ErrUnsupported
	}
	return w.Watch(ctx, key, fn)
}
