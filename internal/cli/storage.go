package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/dmitrijs2005/krishimitra/internal/common"
	"github.com/dmitrijs2005/krishimitra/internal/config"
	"github.com/dmitrijs2005/krishimitra/internal/kv"
	"github.com/dmitrijs2005/krishimitra/internal/kv/filekv"
	"github.com/dmitrijs2005/krishimitra/internal/kv/memkv"
	"github.com/dmitrijs2005/krishimitra/internal/kv/postgreskv"
	"github.com/dmitrijs2005/krishimitra/internal/kv/sealedkv"
	"github.com/dmitrijs2005/krishimitra/internal/kv/sqlitekv"
)

// openPostgres is a test seam.
var openPostgres = func(ctx context.Context, dsn string) (kv.Storage, error) {
	return postgreskv.Open(ctx, dsn)
}

// OpenStorage builds the backend named by cfg.Backend. With cfg.Encrypt set
// the backend is wrapped in sealedkv, using the passphrase read from
// passphrase; the passphrase bytes are wiped afterwards.
func OpenStorage(ctx context.Context, cfg *config.Config, passphrase func(io.Writer) ([]byte, error), w io.Writer) (kv.Storage, error) {
	var (
		st  kv.Storage
		err error
	)

	switch cfg.Backend {
	case config.BackendMemory:
		st = memkv.New()
	case config.BackendFile:
		st, err = filekv.New(cfg.DataDir, filekv.WithDebounce(cfg.WatchInterval))
	case config.BackendSQLite:
		st, err = sqlitekv.Open(ctx, cfg.SQLitePath)
	case config.BackendPostgres:
		st, err = openPostgres(ctx, cfg.PostgresDSN)
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s storage: %w", cfg.Backend, err)
	}

	if !cfg.Encrypt {
		return st, nil
	}

	pw, err := passphrase(w)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("read passphrase: %w", err)
	}
	defer common.WipeByteArray(pw)
	if len(pw) == 0 {
		_ = st.Close()
		return nil, fmt.Errorf("empty passphrase")
	}
	return sealedkv.New(st, pw), nil
}
