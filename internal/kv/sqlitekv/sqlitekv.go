// Package sqlitekv opens an embedded SQLite database (modernc.org/sqlite,
// no cgo) as a kv.Storage. The schema is applied with goose from embedded
// migrations.
package sqlitekv

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/krishimitra/internal/dbx"
	"github.com/dmitrijs2005/krishimitra/internal/kv/sqlitekv/migrations"
	"github.com/dmitrijs2005/krishimitra/internal/kv/sqlkv"
	"github.com/pressly/goose/v3"

	_ "modernc.org/sqlite"
)

// RunMigrations applies the embedded schema to db. It is idempotent.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	return goose.UpContext(ctx, db, ".")
}

// DSN turns a file path into a modernc DSN with a busy timeout, so that a
// second process writing the same file waits instead of failing at once.
// ":memory:" is returned unchanged.
func DSN(path string) string {
	if path == ":memory:" || strings.HasPrefix(path, "file:") {
		return path
	}
	return "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

// Open opens (creating if needed) the database at path and migrates it.
func Open(ctx context.Context, path string) (*sqlkv.Storage, error) {
	db, err := sql.Open("sqlite", DSN(path))
	if err != nil {
		return nil, err
	}
	// one connection: keeps ":memory:" databases alive and serializes
	// writers inside the process
	db.SetMaxOpenConns(1)

	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite migrations: %w", err)
	}

	return sqlkv.New(db, dbx.Question), nil
}
