package kv

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/krishimitra/internal/common"
)

// Any is the If-Match wildcard: the write succeeds whatever the current state.
const Any = "*"

var ErrInvalidKey = errors.New("invalid key")

// Item is a stored value together with its current version token.
type Item struct {
	Value []byte
	ETag  string
}

// Storage describes the operations the document store needs from a
// key-value backend.
type Storage interface {
	// Get returns the value stored under key, or common.ErrorNotFound.
	Get(ctx context.Context, key string) (*Item, error)

	// Put stores value under key if ifMatch holds (see package doc) and
	// returns the new ETag.
	Put(ctx context.Context, key string, value []byte, ifMatch string) (string, error)

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases resources held by the backend.
	Close() error
}

// Event describes a change to a watched key made by someone else.
type Event struct {
	Key     string
	ETag    string
	Deleted bool
}

// Watcher is implemented by storages that can report changes made outside
// the current process.
type Watcher interface {
	// Watch calls fn for every external change of key until ctx is done.
	Watch(ctx context.Context, key string, fn func(Event)) error
}

// ComputeETag derives a content-addressed ETag for value. Backends without a
// native version token use it.
func ComputeETag(value []byte) string {
	sum := sha256.Sum256(value)
	return hex.EncodeToString(sum[:16])
}

// CheckPrecondition reports whether a write guarded by ifMatch may replace
// current, where current is nil if the key is absent.
func CheckPrecondition(current *Item, ifMatch string) error {
	switch {
	case ifMatch == Any:
		return nil
	case ifMatch == "":
		if current != nil {
			return fmt.Errorf("key already exists: %w", common.ErrVersionConflict)
		}
		return nil
	case current == nil:
		return fmt.Errorf("key vanished: %w", common.ErrVersionConflict)
	case current.ETag != ifMatch:
		return fmt.Errorf("etag %s does not match %s: %w", current.ETag, ifMatch, common.ErrVersionConflict)
	default:
		return nil
	}
}

// ValidateKey rejects keys that cannot be used as a file or object name.
func ValidateKey(key string) error {
	if key == "" || key == "." || key == ".." ||
		strings.ContainsAny(key, `/\`) || strings.ContainsRune(key, 0) {
		return fmt.Errorf("%q: %w", key, ErrInvalidKey)
	}
	return nil
}
