package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/dmitrijs2005/krishimitra/internal/backup"
	"github.com/dmitrijs2005/krishimitra/internal/config"
	"github.com/dmitrijs2005/krishimitra/internal/docstore"
	"github.com/dmitrijs2005/krishimitra/internal/kv"
	"github.com/dmitrijs2005/krishimitra/internal/logging"
)

var errNoBackupTarget = errors.New("no backup location configured (set -backup or -s3-bucket)")

type backupLocation interface {
	backup.Target
	backup.Source
}

type App struct {
	config  *config.Config
	storage kv.Storage
	store   *docstore.Store
	logger  logging.Logger
}

// NewApp opens the configured storage and document store.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	logger := logging.NewTextLogger(os.Stderr, c.LogLevel)

	st, err := OpenStorage(ctx, c, GetPassword, os.Stderr)
	if err != nil {
		return nil, err
	}

	store, err := docstore.Open(ctx, st,
		docstore.WithNamespace(c.Namespace),
		docstore.WithLogger(logger),
		docstore.WithCorruptPolicy(docstore.ParseCorruptPolicy(c.CorruptPolicy)),
		docstore.WithIDGenerator(docstore.GeneratorByName(c.IDStrategy)),
		docstore.WithMaxRetries(c.MaxRetries),
	)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	return newApp(c, st, store, logger), nil
}

func newApp(c *config.Config, st kv.Storage, store *docstore.Store, logger logging.Logger) *App {
	return &App{config: c, storage: st, store: store, logger: logger}
}

// Run starts the change watcher and the interactive loop on stdin. It
// returns when the user quits or stdin is closed.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer a.Close()

	a.logger.Info(ctx, "kmdb started", "backend", a.config.Backend, "namespace", a.store.Namespace())

	go a.StartChangeWatcher(ctx)

	printlnFn("kmdb shell (type 'help' for commands)")
	runREPL(ctx, a, a.status, bufio.NewScanner(os.Stdin))
	return nil
}

func (a *App) Close() error {
	return a.storage.Close()
}

func (a *App) status() string {
	return fmt.Sprintf("%s:%s", a.config.Backend, a.store.Namespace())
}

// StartChangeWatcher logs changes made to the namespace by other processes
// until ctx is done. Storages that cannot watch are left alone.
func (a *App) StartChangeWatcher(ctx context.Context) {
	w, ok := a.storage.(kv.Watcher)
	if !ok {
		return
	}
	err := w.Watch(ctx, a.store.Namespace(), func(ev kv.Event) {
		if ev.Deleted {
			a.logger.Warn(ctx, "database removed by another process")
			return
		}
		a.logger.Info(ctx, "database changed by another process", "etag", ev.ETag)
	})
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, errors.ErrUnsupported) {
		a.logger.Error(ctx, "change watcher stopped", "error", err)
	}
}

// backupTarget picks the directory when configured, S3 otherwise.
func (a *App) backupTarget(ctx context.Context) (backupLocation, error) {
	switch {
	case a.config.BackupDir != "":
		return backup.NewDir(a.config.BackupDir), nil
	case a.config.S3Bucket != "":
		return backup.NewS3(ctx, backup.S3Config{
			Bucket:       a.config.S3Bucket,
			Prefix:       a.config.S3Prefix,
			Region:       a.config.S3Region,
			BaseEndpoint: a.config.S3BaseEndpoint,
			AccessKey:    a.config.S3AccessKey,
			SecretKey:    a.config.S3SecretKey,
		})
	default:
		return nil, errNoBackupTarget
	}
}
