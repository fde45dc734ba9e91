package backup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/krishimitra/internal/filex"
)

// Dir stores snapshots as <collection>.json files in a local directory.
type Dir struct {
	path string
}

var (
	_ Target = (*Dir)(nil)
	_ Source = (*Dir)(nil)
)

func NewDir(path string) *Dir {
	return &Dir{path: path}
}

func (d *Dir) Write(ctx context.Context, collection string, data []byte) error {
	dir, err := filex.EnsureDir(d.path)
	if err != nil {
		return err
	}
	return filex.WriteFileAtomic(filepath.Join(dir, collection+fileExt), data, 0o640)
}

func (d *Dir) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(d.path)
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w", d.path, err)
	}
	var names []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, fileExt) {
			continue
		}
		names = append(names, strings.TrimSuffix(name, fileExt))
	}
	return names, nil
}

func (d *Dir) Read(ctx context.Context, collection string) ([]byte, error) {
	return os.ReadFile(filepath.Join(d.path, collection+fileExt))
}
