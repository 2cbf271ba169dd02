// Package sqlite implements the storage interfaces on SQLite via
// modernc.org/sqlite.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"runtime"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/skyward-io/skygate/internal/storage"
)

var _ storage.Store = (*Store)(nil)

//go:embed migrations/*.sql
var migrationFS embed.FS

const pragmas = "_pragma=journal_mode(WAL)" +
	"&_pragma=busy_timeout(5000)" +
	"&_pragma=synchronous(NORMAL)" +
	"&_pragma=foreign_keys(1)"

// Store implements storage.Store on a pair of connection pools: one
// writer connection plus a reader pool sized to the machine. SQLite in
// WAL mode allows exactly one writer, so funneling writes through a
// single connection avoids SQLITE_BUSY churn.
type Store struct {
	write *sql.DB
	read  *sql.DB
}

// New opens the database at dsn, applies pending migrations, and
// returns a ready Store. ":memory:" opens a shared-cache in-memory
// database so both pools see the same data.
func New(dsn string) (*Store, error) {
	uri := "file:" + dsn + "?" + pragmas
	if dsn == ":memory:" {
		uri = "file::memory:?mode=memory&cache=shared&" + pragmas
	}

	write, err := openPool(uri, 1)
	if err != nil {
		return nil, fmt.Errorf("open write db: %w", err)
	}
	read, err := openPool(uri, max(4, runtime.NumCPU()))
	if err != nil {
		write.Close()
		return nil, fmt.Errorf("open read db: %w", err)
	}

	if err := migrate(context.Background(), write); err != nil {
		write.Close()
		read.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}
	return &Store{write: write, read: read}, nil
}

func openPool(uri string, maxConns int) (*sql.DB, error) {
	db, err := sql.Open("sqlite", uri)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(maxConns)
	return db, nil
}

// migrate applies the embedded migrations with goose. fs.Sub strips the
// "migrations/" prefix so goose sees the files at the FS root.
func migrate(ctx context.Context, db *sql.DB) error {
	fsys, err := fs.Sub(migrationFS, "migrations")
	if err != nil {
		return fmt.Errorf("sub fs: %w", err)
	}
	provider, err := goose.NewProvider(goose.DialectSQLite3, db, fsys)
	if err != nil {
		return fmt.Errorf("create migration provider: %w", err)
	}
	_, err = provider.Up(ctx)
	return err
}

// Ping verifies connectivity through the read pool.
func (s *Store) Ping(ctx context.Context) error {
	return s.read.PingContext(ctx)
}

// Close closes both pools.
func (s *Store) Close() error {
	return errors.Join(s.write.Close(), s.read.Close())
}
