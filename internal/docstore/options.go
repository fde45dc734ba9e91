package docstore

import (
	"time"

	"github.com/dmitrijs2005/krishimitra/internal/common"
	"github.com/dmitrijs2005/krishimitra/internal/logging"
)

// CorruptPolicy decides what happens when the stored namespace is not a
// valid JSON database.
type CorruptPolicy int

const (
	// CorruptFail returns a *CorruptStateError from every operation.
	CorruptFail CorruptPolicy = iota
	// CorruptReset logs a warning and treats the namespace as empty; the
	// next write replaces the corrupt value.
	CorruptReset
)

// ParseCorruptPolicy maps "reset" to CorruptReset and anything else to
// CorruptFail.
func ParseCorruptPolicy(s string) CorruptPolicy {
	if s == "reset" {
		return CorruptReset
	}
	return CorruptFail
}

const (
	defaultMaxRetries = 5
	maxIDAttempts     = 8
)

type Option func(*Store)

// WithNamespace sets the storage key. Default common.DefaultNamespace.
func WithNamespace(ns string) Option {
	return func(s *Store) {
		if ns != "" {
			s.namespace = ns
		}
	}
}

func WithLogger(l logging.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock replaces time.Now for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func WithIDGenerator(g IDGenerator) Option {
	return func(s *Store) {
		if g != nil {
			s.newID = g
		}
	}
}

func WithCorruptPolicy(p CorruptPolicy) Option {
	return func(s *Store) { s.corrupt = p }
}

// WithMaxRetries bounds how often a write is re-run after a version
// conflict. Zero disables retrying.
func WithMaxRetries(n int) Option {
	return func(s *Store) {
		if n >= 0 {
			s.maxRetries = n
		}
	}
}

func defaults(s *Store) {
	s.namespace = common.DefaultNamespace
	s.logger = logging.Nop()
	s.now = time.Now
	s.newID = UUIDGenerator
	s.corrupt = CorruptFail
	s.maxRetries = defaultMaxRetries
}
