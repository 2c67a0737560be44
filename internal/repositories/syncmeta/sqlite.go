package syncmeta

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/voyago/tripsync/internal/dbx"
)

// SQLiteRepository implements Repository using a DBTX (either *sql.DB or *sql.Tx).
type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx, `SELECT value FROM syncmeta WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get syncmeta[%s]: %w", key, err)
	}
	return value, nil
}

func (r *SQLiteRepository) Set(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO syncmeta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("failed to set syncmeta[%s]: %w", key, err)
	}
	return nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, key string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM syncmeta WHERE key = ?`, key)
	if err != nil {
		return fmt.Errorf("failed to delete syncmeta[%s]: %w", key, err)
	}
	return nil
}

func (r *SQLiteRepository) GetInt64(ctx context.Context, key string) (int64, error) {
	s, err := r.Get(ctx, key)
	if err != nil {
		return 0, err
	}
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("syncmeta[%s] is not an integer: %w", key, err)
	}
	return v, nil
}

func (r *SQLiteRepository) SetInt64(ctx context.Context, key string, v int64) error {
	return r.Set(ctx, key, strconv.FormatInt(v, 10))
}
