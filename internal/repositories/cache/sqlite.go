package cache

import (
	"context"
	"database/sql"
	"encoding/json"
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

// NewSQLiteRepository returns a new SQLiteRepository bound to the given DBTX.
func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const recColumns = `kind, id, plan_id, parent_id, body, dirty, deleted, conflict, pending_sync, local_updated_at, server_version`

func (r *SQLiteRepository) Put(ctx context.Context, rec *models.CachedRecord) error {
	query := `INSERT INTO entities (` + recColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(kind, id) DO UPDATE SET
			plan_id = excluded.plan_id,
			parent_id = excluded.parent_id,
			body = excluded.body,
			dirty = excluded.dirty,
			deleted = excluded.deleted,
			conflict = excluded.conflict,
			pending_sync = excluded.pending_sync,
			local_updated_at = excluded.local_updated_at,
			server_version = excluded.server_version`
	_, err := r.db.ExecContext(ctx, query,
		rec.Kind, rec.ID, rec.PlanID, rec.ParentID, []byte(rec.Body),
		boolInt(rec.Meta.Dirty), boolInt(rec.Meta.Deleted), boolInt(rec.Meta.Conflict), boolInt(rec.Meta.PendingSync),
		fmtTime(rec.Meta.LocalUpdatedAt), nullBytes(rec.Meta.ServerVersion))
	if err != nil {
		return fmt.Errorf("failed to upsert %s/%d: %w", rec.Kind, rec.ID, err)
	}
	return nil
}

func (r *SQLiteRepository) PutServer(ctx context.Context, rec *models.CachedRecord) error {
	query := `INSERT INTO entities (` + recColumns + `)
		VALUES (?, ?, ?, ?, ?, 0, 0, 0, 0, ?, NULL)
		ON CONFLICT(kind, id) DO UPDATE SET
			plan_id = excluded.plan_id,
			parent_id = excluded.parent_id,
			body = excluded.body,
			local_updated_at = excluded.local_updated_at
		WHERE entities.dirty = 0 AND entities.pending_sync = 0
			AND entities.conflict = 0 AND entities.deleted = 0`
	_, err := r.db.ExecContext(ctx, query,
		rec.Kind, rec.ID, rec.PlanID, rec.ParentID, []byte(rec.Body), fmtTime(rec.Meta.LocalUpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to cache %s/%d: %w", rec.Kind, rec.ID, err)
	}
	return nil
}

func (r *SQLiteRepository) Get(ctx context.Context, kind models.Kind, id int64) (*models.CachedRecord, error) {
	return r.getWhere(ctx, `kind = ? AND id = ? AND deleted = 0`, kind, id)
}

func (r *SQLiteRepository) GetAny(ctx context.Context, kind models.Kind, id int64) (*models.CachedRecord, error) {
	return r.getWhere(ctx, `kind = ? AND id = ?`, kind, id)
}

func (r *SQLiteRepository) getWhere(ctx context.Context, where string, args ...any) (*models.CachedRecord, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+recColumns+` FROM entities WHERE `+where, args...)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cached record: %w", err)
	}
	return rec, nil
}

func (r *SQLiteRepository) ListKind(ctx context.Context, kind models.Kind) ([]*models.CachedRecord, error) {
	return r.listWhere(ctx, `kind = ? AND deleted = 0`, kind)
}

func (r *SQLiteRepository) ListByParent(ctx context.Context, kind models.Kind, parentID int64) ([]*models.CachedRecord, error) {
	return r.listWhere(ctx, `kind = ? AND parent_id = ? AND deleted = 0`, kind, parentID)
}

func (r *SQLiteRepository) ListByParentAny(ctx context.Context, kind models.Kind, parentID int64) ([]*models.CachedRecord, error) {
	return r.listWhere(ctx, `kind = ? AND parent_id = ?`, kind, parentID)
}

func (r *SQLiteRepository) ListByPlan(ctx context.Context, kind models.Kind, planID int64) ([]*models.CachedRecord, error) {
	return r.listWhere(ctx, `kind = ? AND plan_id = ? AND deleted = 0`, kind, planID)
}

func (r *SQLiteRepository) listWhere(ctx context.Context, where string, args ...any) ([]*models.CachedRecord, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+recColumns+` FROM entities WHERE `+where+` ORDER BY id`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select cached records: %w", err)
	}
	defer rows.Close()

	var result []*models.CachedRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, kind models.Kind, id int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM entities WHERE kind = ? AND id = ?`, kind, id)
	if err != nil {
		return fmt.Errorf("failed to delete %s/%d: %w", kind, id, err)
	}
	return nil
}

func (r *SQLiteRepository) DeleteByPlan(ctx context.Context, planID int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM entities WHERE plan_id = ? OR (kind = ? AND id = ?)`,
		planID, models.KindPlan, planID)
	if err != nil {
		return fmt.Errorf("failed to delete plan %d records: %w", planID, err)
	}
	return nil
}

func (r *SQLiteRepository) Tombstone(ctx context.Context, kind models.Kind, id int64, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE entities SET deleted = 1, dirty = 1, pending_sync = 1, local_updated_at = ? WHERE kind = ? AND id = ?`,
		fmtTime(at), kind, id)
	if err != nil {
		return fmt.Errorf("failed to tombstone %s/%d: %w", kind, id, err)
	}
	ra, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if ra != 1 {
		return fmt.Errorf("wrong rows affected count: %d", ra)
	}
	return nil
}

func (r *SQLiteRepository) Rekey(ctx context.Context, kind models.Kind, tempID, serverID int64, body json.RawMessage, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE entities SET id = ?, body = ?, dirty = 0, pending_sync = 0, conflict = 0,
			server_version = NULL, local_updated_at = ?
		 WHERE kind = ? AND id = ?`,
		serverID, []byte(body), fmtTime(at), kind, tempID)
	if err != nil {
		return fmt.Errorf("failed to rekey %s/%d: %w", kind, tempID, err)
	}
	ra, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if ra != 1 {
		return fmt.Errorf("wrong rows affected count: %d", ra)
	}
	return nil
}

func (r *SQLiteRepository) RewriteParent(ctx context.Context, kind models.Kind, oldParent, newParent int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE entities SET parent_id = ? WHERE kind = ? AND parent_id = ?`, newParent, kind, oldParent)
	if err != nil {
		return fmt.Errorf("failed to rewrite parent for %s: %w", kind, err)
	}
	return nil
}

func (r *SQLiteRepository) SetConflict(ctx context.Context, kind models.Kind, id int64, serverVersion json.RawMessage, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE entities SET conflict = 1, server_version = ?, local_updated_at = ? WHERE kind = ? AND id = ?`,
		[]byte(serverVersion), fmtTime(at), kind, id)
	if err != nil {
		return fmt.Errorf("failed to flag conflict on %s/%d: %w", kind, id, err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*models.CachedRecord, error) {
	var (
		rec                                   models.CachedRecord
		dirty, deleted, conflict, pendingSync int
		localUpdatedAt                        string
		serverVersion                         []byte
		body                                  []byte
	)
	if err := row.Scan(&rec.Kind, &rec.ID, &rec.PlanID, &rec.ParentID, &body,
		&dirty, &deleted, &conflict, &pendingSync, &localUpdatedAt, &serverVersion); err != nil {
		return nil, err
	}
	rec.Body = body
	rec.Meta = models.LocalMeta{
		Dirty:       dirty != 0,
		Deleted:     deleted != 0,
		Conflict:    conflict != 0,
		PendingSync: pendingSync != 0,
	}
	if serverVersion != nil {
		rec.Meta.ServerVersion = serverVersion
	}
	t, err := parseTime(localUpdatedAt)
	if err != nil {
		return nil, err
	}
	rec.Meta.LocalUpdatedAt = t
	return &rec, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullBytes(b json.RawMessage) any {
	if b == nil {
		return nil
	}
	return []byte(b)
}

func fmtTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad timestamp %q: %w", s, err)
	}
	return t, nil
}
