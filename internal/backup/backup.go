// Package backup copies the collections of a document store to and from
// external locations, one indented JSON file per collection.
package backup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/dmitrijs2005/krishimitra/internal/docstore"
	"golang.org/x/sync/errgroup"
)

const (
	fileExt     = ".json"
	parallelism = 4
)

var ErrInvalidName = errors.New("invalid collection name")

// Target receives collection snapshots.
type Target interface {
	Write(ctx context.Context, collection string, data []byte) error
}

// Source yields previously written snapshots.
type Source interface {
	// List returns the collection names available in the source.
	List(ctx context.Context) ([]string, error)
	Read(ctx context.Context, collection string) ([]byte, error)
}

// Backup writes every collection of store to target and returns the names
// written. All collections come from a single read of the namespace.
func Backup(ctx context.Context, store *docstore.Store, target Target) ([]string, error) {
	db, err := store.GetDatabase(ctx)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(db))
	for name := range db {
		if err := checkName(name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	sort.Strings(names)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)
	for _, name := range names {
		c := db[name]
		if c == nil {
			c = docstore.Collection{}
		}
		g.Go(func() error {
			b, err := json.MarshalIndent(c, "", "  ")
			if err != nil {
				return fmt.Errorf("encode %s: %w", name, err)
			}
			if err := target.Write(gctx, name, b); err != nil {
				return fmt.Errorf("write %s: %w", name, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return names, nil
}

// Restore replaces every collection found in source. Collections absent
// from the source are left alone. Nothing is written unless every snapshot
// reads and decodes.
func Restore(ctx context.Context, store *docstore.Store, source Source) ([]string, error) {
	names, err := source.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list backup: %w", err)
	}
	sort.Strings(names)

	collections := make([]docstore.Collection, len(names))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)
	for i, name := range names {
		if err := checkName(name); err != nil {
			return nil, err
		}
		g.Go(func() error {
			b, err := source.Read(gctx, name)
			if err != nil {
				return fmt.Errorf("read %s: %w", name, err)
			}
			var c docstore.Collection
			if err := json.Unmarshal(b, &c); err != nil {
				return fmt.Errorf("decode %s: %w", name, err)
			}
			collections[i] = c
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	cols := make(map[string]docstore.Collection, len(names))
	for i, name := range names {
		cols[name] = collections[i]
	}
	if err := store.SaveCollections(ctx, cols); err != nil {
		return nil, err
	}
	return names, nil
}

func checkName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%q: %w", name, ErrInvalidName)
	}
	return nil
}
