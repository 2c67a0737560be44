package snapshots

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

func (r *SQLiteRepository) Put(ctx context.Context, s *models.PlanSnapshot) error {
	complete := 0
	if s.IsComplete {
		complete = 1
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO snapshots (plan_id, last_fetched_at, snapshot_version, is_complete)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(plan_id) DO UPDATE SET
			last_fetched_at = excluded.last_fetched_at,
			snapshot_version = excluded.snapshot_version,
			is_complete = excluded.is_complete
	`, s.PlanID, s.LastFetchedAt.UTC().Format(time.RFC3339Nano), s.SnapshotVersion, complete)
	if err != nil {
		return fmt.Errorf("failed to upsert snapshot for plan %d: %w", s.PlanID, err)
	}
	return nil
}

func (r *SQLiteRepository) Get(ctx context.Context, planID int64) (*models.PlanSnapshot, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT plan_id, last_fetched_at, snapshot_version, is_complete FROM snapshots WHERE plan_id = ?`, planID)
	s, err := scanSnapshot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot for plan %d: %w", planID, err)
	}
	return s, nil
}

func (r *SQLiteRepository) List(ctx context.Context) ([]*models.PlanSnapshot, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT plan_id, last_fetched_at, snapshot_version, is_complete FROM snapshots ORDER BY plan_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	defer rows.Close()

	var result []*models.PlanSnapshot
	for rows.Next() {
		s, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, planID int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM snapshots WHERE plan_id = ?`, planID)
	if err != nil {
		return fmt.Errorf("failed to delete snapshot for plan %d: %w", planID, err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(row scanner) (*models.PlanSnapshot, error) {
	var s models.PlanSnapshot
	var fetchedAt string
	var complete int
	if err := row.Scan(&s.PlanID, &fetchedAt, &s.SnapshotVersion, &complete); err != nil {
		return nil, err
	}
	t, err := time.Parse(time.RFC3339Nano, fetchedAt)
	if err != nil {
		return nil, fmt.Errorf("bad timestamp %q: %w", fetchedAt, err)
	}
	s.LastFetchedAt = t
	s.IsComplete = complete != 0
	return &s, nil
}
