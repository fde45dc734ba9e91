// Package postgreskv provides a PostgreSQL-backed kv.Storage (pgx stdlib
// driver) for deployments where several processes share one database.
package postgreskv

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/krishimitra/internal/dbx"
	"github.com/dmitrijs2005/krishimitra/internal/kv/postgreskv/migrations"
	"github.com/dmitrijs2005/krishimitra/internal/kv/sqlkv"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// sqlOpen is a seam for tests.
var sqlOpen = sql.Open

// RunMigrations sets up goose with the embedded migrations and runs them
// against the provided database connection.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	return gooseUpContext(ctx, db, ".")
}

// New wraps an already opened connection.
func New(db sqlkv.DB) *sqlkv.Storage {
	return sqlkv.New(db, dbx.Dollar)
}

// Open connects to dsn, checks connectivity and migrates the schema.
func Open(ctx context.Context, dsn string) (*sqlkv.Storage, error) {
	db, err := sqlOpen("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}
	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres migrations: %w", err)
	}
	return New(db), nil
}
