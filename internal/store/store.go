// Package store opens the local durable database and vends the repositories
// bound to it. It is the single source of truth for everything not yet
// confirmed synced: cached entities, the operation log, the id map, snapshot
// markers, the media queue, and sync bookkeeping.
package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pressly/goose/v3"
	"github.com/voyago/tripsync/internal/dbx"
	"github.com/voyago/tripsync/internal/migrations"
	"github.com/voyago/tripsync/internal/repositories/cache"
	"github.com/voyago/tripsync/internal/repositories/idmap"
	"github.com/voyago/tripsync/internal/repositories/mediaqueue"
	"github.com/voyago/tripsync/internal/repositories/oplog"
	"github.com/voyago/tripsync/internal/repositories/snapshots"
	"github.com/voyago/tripsync/internal/repositories/syncmeta"

	_ "modernc.org/sqlite"
)

// Repos bundles the repositories bound to one DBTX. A Store embeds a bundle
// bound to the raw connection; WithTx hands callbacks a bundle bound to the
// in-flight transaction.
type Repos struct {
	Cache     cache.Repository
	Oplog     oplog.Repository
	IDMap     idmap.Repository
	Meta      syncmeta.Repository
	Snapshots snapshots.Repository
	Media     mediaqueue.Repository
}

func newRepos(db dbx.DBTX) Repos {
	return Repos{
		Cache:     cache.NewSQLiteRepository(db),
		Oplog:     oplog.NewSQLiteRepository(db),
		IDMap:     idmap.NewSQLiteRepository(db),
		Meta:      syncmeta.NewSQLiteRepository(db),
		Snapshots: snapshots.NewSQLiteRepository(db),
		Media:     mediaqueue.NewSQLiteRepository(db),
	}
}

// Store is the opened local database.
type Store struct {
	Repos
	db *sql.DB
}

// Open opens (creating if needed) the store at dsn and brings the schema up
// to date. If the on-disk schema version is newer than this binary
// understands, the store is wiped and rebuilt: stale caches are recoverable
// from the server, a half-understood schema is not.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open local store: %w", err)
	}
	// cross-goroutine writes from the fire-and-forget cache path
	db.SetMaxOpenConns(1)

	if err := ensureSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{Repos: newRepos(db), db: db}, nil
}

// DB exposes the raw handle for tests.
func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Close() error { return s.db.Close() }

// WithTx runs fn with all repositories bound to one transaction.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, r Repos) error) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return fn(ctx, newRepos(tx))
	})
}

func ensureSchema(ctx context.Context, db *sql.DB) error {
	var onDisk int64
	if err := db.QueryRowContext(ctx, `PRAGMA user_version`).Scan(&onDisk); err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	if onDisk > migrations.SchemaVersion {
		if err := wipe(ctx, db); err != nil {
			return fmt.Errorf("failed to rebuild newer-schema store: %w", err)
		}
	}

	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	if _, err := db.ExecContext(ctx, fmt.Sprintf(`PRAGMA user_version = %d`, migrations.SchemaVersion)); err != nil {
		return fmt.Errorf("failed to stamp schema version: %w", err)
	}
	return nil
}

func wipe(ctx context.Context, db *sql.DB) error {
	rows, err := db.QueryContext(ctx, `SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%'`)
	if err != nil {
		return err
	}
	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return err
		}
		tables = append(tables, name)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, name := range tables {
		if _, err := db.ExecContext(ctx, `DROP TABLE IF EXISTS "`+name+`"`); err != nil {
			return err
		}
	}
	_, err = db.ExecContext(ctx, `PRAGMA user_version = 0`)
	return err
}
