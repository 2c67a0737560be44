package idmap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/voyago/tripsync/internal/dbx"
	"github.com/voyago/tripsync/internal/models"
)

// SQLiteRepository implements Repository using a DBTX (either *sql.DB or *sql.Tx).
type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Insert(ctx context.Context, m *models.IDMapping) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO idmap (kind, temp_id, server_id, mapped_at) VALUES (?, ?, ?, ?)`,
		m.Kind, m.TempID, m.ServerID, m.MappedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to insert id mapping %s/%d: %w", m.Kind, m.TempID, err)
	}
	return nil
}

func (r *SQLiteRepository) ByTemp(ctx context.Context, kind models.Kind, tempID int64) (*models.IDMapping, error) {
	return r.getWhere(ctx, `kind = ? AND temp_id = ?`, kind, tempID)
}

func (r *SQLiteRepository) ByServer(ctx context.Context, kind models.Kind, serverID int64) (*models.IDMapping, error) {
	return r.getWhere(ctx, `kind = ? AND server_id = ?`, kind, serverID)
}

func (r *SQLiteRepository) getWhere(ctx context.Context, where string, args ...any) (*models.IDMapping, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT kind, temp_id, server_id, mapped_at FROM idmap WHERE `+where, args...)

	var m models.IDMapping
	var mappedAt string
	err := row.Scan(&m.Kind, &m.TempID, &m.ServerID, &mappedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get id mapping: %w", err)
	}
	t, err := time.Parse(time.RFC3339Nano, mappedAt)
	if err != nil {
		return nil, fmt.Errorf("bad timestamp %q: %w", mappedAt, err)
	}
	m.MappedAt = t
	return &m, nil
}

func (r *SQLiteRepository) Resolve(ctx context.Context, kind models.Kind, id int64) (int64, bool, error) {
	if !models.IsTemporary(id) {
		return id, true, nil
	}
	m, err := r.ByTemp(ctx, kind, id)
	if err != nil {
		return 0, false, err
	}
	if m == nil {
		return 0, false, nil
	}
	return m.ServerID, true, nil
}
