package filekv

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/dmitrijs2005/krishimitra/internal/kv"
	"github.com/fsnotify/fsnotify"
)

// newWatcher is a seam for tests.
var newWatcher = fsnotify.NewWatcher

// Watch reports changes of key made outside this Storage (another process,
// another Storage on the same directory, or a manual edit). Bursts of file
// events are coalesced and writes made through s itself are skipped.
// It blocks until ctx is done.
func (s *Storage) Watch(ctx context.Context, key string, fn func(kv.Event)) error {
	if err := kv.ValidateKey(key); err != nil {
		return err
	}

	w, err := newWatcher()
	if err != nil {
		return fmt.Errorf("fsnotify: %w", err)
	}
	defer w.Close()

	// watch the directory, not the file: atomic renames replace the inode
	if err := w.Add(s.dir); err != nil {
		return fmt.Errorf("watch %s: %w", s.dir, err)
	}

	target := filepath.Clean(s.path(key))
	seen := s.currentETag(key)

	timer := time.NewTimer(s.debounce)
	timer.Stop()
	pending := false

	if s.onWatching != nil {
		s.onWatching()
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			pending = true
			timer.Reset(s.debounce)

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("watch %s: %w", key, err)

		case <-timer.C:
			if !pending {
				continue
			}
			pending = false

			cur := s.currentETag(key)
			if cur == seen {
				continue
			}
			seen = cur

			if own, ok := s.ownETag(key); ok && own == cur {
				continue
			}
			fn(kv.Event{Key: key, ETag: cur, Deleted: cur == ""})
		}
	}
}

// currentETag returns the ETag of the stored value, or "" if absent or
// unreadable.
func (s *Storage) currentETag(key string) string {
	item, err := s.read(key)
	if err != nil {
		return ""
	}
	return item.ETag
}
