// Package sqlkv implements kv.Storage over a single SQL table
//
//	kv(key TEXT PRIMARY KEY, value BLOB, etag TEXT, updated_at TIMESTAMP)
//
// Every conditional write is one statement, so the precondition and the write
// are atomic at the database level even across processes. The sqlitekv and
// postgreskv packages open the database, run migrations and hand the
// connection to New.
package sqlkv

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/krishimitra/internal/common"
	"github.com/dmitrijs2005/krishimitra/internal/dbx"
	"github.com/dmitrijs2005/krishimitra/internal/kv"
	"github.com/google/uuid"
)

// DB is what Storage needs from *sql.DB.
type DB interface {
	dbx.DBTX
	dbx.TxBeginner
	Close() error
}

// Storage implements kv.Storage using a DB.
type Storage struct {
	db  DB
	ph  dbx.Placeholder
	now func() time.Time
}

var _ kv.Storage = (*Storage)(nil)

// New returns a Storage bound to db, writing placeholders in the given style.
func New(db DB, ph dbx.Placeholder) *Storage {
	return &Storage{db: db, ph: ph, now: time.Now}
}

func (s *Storage) q(query string) string {
	return dbx.Rebind(s.ph, query)
}

func newETag() string {
	return uuid.NewString()
}

func (s *Storage) Get(ctx context.Context, key string) (*kv.Item, error) {
	item := &kv.Item{}
	err := s.db.QueryRowContext(ctx, s.q(`SELECT value, etag FROM kv WHERE key = ?`), key).
		Scan(&item.Value, &item.ETag)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("key %q: %w", key, common.ErrorNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get kv[%s]: %w", key, err)
	}
	return item, nil
}

// Put runs the conditional write and, when it affects no row, reads the
// current etag in the same transaction to report why.
func (s *Storage) Put(ctx context.Context, key string, value []byte, ifMatch string) (string, error) {
	etag := newETag()
	now := s.now().UTC()

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		var (
			res sql.Result
			err error
		)
		switch ifMatch {
		case kv.Any:
			res, err = tx.ExecContext(ctx, s.q(`
				INSERT INTO kv (key, value, etag, updated_at) VALUES (?, ?, ?, ?)
				ON CONFLICT(key) DO UPDATE SET value = excluded.value,
					etag = excluded.etag,
					updated_at = excluded.updated_at`), key, value, etag, now)
		case "":
			res, err = tx.ExecContext(ctx, s.q(`
				INSERT INTO kv (key, value, etag, updated_at) VALUES (?, ?, ?, ?)
				ON CONFLICT(key) DO NOTHING`), key, value, etag, now)
		default:
			res, err = tx.ExecContext(ctx, s.q(`
				UPDATE kv SET value = ?, etag = ?, updated_at = ?
				WHERE key = ? AND etag = ?`), value, etag, now, key, ifMatch)
		}
		if err != nil {
			return fmt.Errorf("failed to put kv[%s]: %w", key, err)
		}

		ra, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if ra == 1 {
			return nil
		}

		var current *kv.Item
		var cur string
		err = tx.QueryRowContext(ctx, s.q(`SELECT etag FROM kv WHERE key = ?`), key).Scan(&cur)
		switch {
		case errors.Is(err, sql.ErrNoRows):
		case err != nil:
			return fmt.Errorf("failed to read kv[%s] etag: %w", key, err)
		default:
			current = &kv.Item{ETag: cur}
		}
		if err := kv.CheckPrecondition(current, ifMatch); err != nil {
			return err
		}
		return fmt.Errorf("kv[%s]: wrong rows affected count: %d: %w", key, ra, common.ErrVersionConflict)
	})
	if err != nil {
		return "", err
	}
	return etag, nil
}

func (s *Storage) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, s.q(`DELETE FROM kv WHERE key = ?`), key); err != nil {
		return fmt.Errorf("failed to delete kv[%s]: %w", key, err)
	}
	return nil
}

func (s *Storage) Close() error {
	return s.db.Close()
}
