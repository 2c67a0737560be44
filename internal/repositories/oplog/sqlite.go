package oplog

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

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const opColumns = `id, plan_id, kind, entity_id, action, payload, base_updated_at, status, retry_count, last_error, created_at, updated_at`

func (r *SQLiteRepository) Append(ctx context.Context, op *models.Operation) error {
	query := `INSERT INTO oplog (` + opColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		op.ID, op.PlanID, op.Kind, op.EntityID, op.Action, []byte(op.Payload),
		nullTime(op.BaseUpdatedAt), op.Status, op.RetryCount, op.LastError,
		fmtTime(op.CreatedAt), fmtTime(op.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to append operation: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Get(ctx context.Context, opID string) (*models.Operation, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+opColumns+` FROM oplog WHERE id = ?`, opID)
	op, err := scanOp(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get operation %s: %w", opID, err)
	}
	return op, nil
}

// Pending groups retryable failures ahead of fresh entries, chronological
// within each group. Per-entity chronology is preserved: an op only reaches
// failed after every earlier op for its entity has been attempted.
func (r *SQLiteRepository) Pending(ctx context.Context) ([]*models.Operation, error) {
	return r.listWhere(ctx, `status IN (?, ?)`, `status, created_at, id`, models.StatusPending, models.StatusFailed)
}

func (r *SQLiteRepository) Conflicts(ctx context.Context) ([]*models.Operation, error) {
	return r.listWhere(ctx, `status = ?`, `created_at, id`, models.StatusConflict)
}

func (r *SQLiteRepository) ForEntity(ctx context.Context, kind models.Kind, entityID int64) ([]*models.Operation, error) {
	return r.listWhere(ctx, `kind = ? AND entity_id = ?`, `created_at, id`, kind, entityID)
}

func (r *SQLiteRepository) listWhere(ctx context.Context, where, order string, args ...any) ([]*models.Operation, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+opColumns+` FROM oplog WHERE `+where+` ORDER BY `+order, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select operations: %w", err)
	}
	defer rows.Close()

	var result []*models.Operation
	for rows.Next() {
		op, err := scanOp(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, op)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *SQLiteRepository) SetStatus(ctx context.Context, opID string, status models.OpStatus, lastError string) (models.OpStatus, error) {
	now := fmtTime(time.Now())
	if status != models.StatusFailed {
		_, err := r.db.ExecContext(ctx,
			`UPDATE oplog SET status = ?, last_error = ?, updated_at = ? WHERE id = ?`,
			status, lastError, now, opID)
		if err != nil {
			return "", fmt.Errorf("failed to set status on %s: %w", opID, err)
		}
		return status, nil
	}

	// failed: bump the retry count, then let the ceiling promote to dead.
	_, err := r.db.ExecContext(ctx,
		`UPDATE oplog SET status = ?, last_error = ?, retry_count = retry_count + 1, updated_at = ? WHERE id = ?`,
		models.StatusFailed, lastError, now, opID)
	if err != nil {
		return "", fmt.Errorf("failed to set status on %s: %w", opID, err)
	}
	_, err = r.db.ExecContext(ctx,
		`UPDATE oplog SET status = ? WHERE id = ? AND status = ? AND retry_count >= ?`,
		models.StatusDead, opID, models.StatusFailed, models.MaxRetries)
	if err != nil {
		return "", fmt.Errorf("failed to apply retry ceiling on %s: %w", opID, err)
	}

	var final models.OpStatus
	if err := r.db.QueryRowContext(ctx, `SELECT status FROM oplog WHERE id = ?`, opID).Scan(&final); err != nil {
		return "", fmt.Errorf("failed to read back status of %s: %w", opID, err)
	}
	return final, nil
}

func (r *SQLiteRepository) UpdatePayload(ctx context.Context, opID string, payload json.RawMessage) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE oplog SET payload = ?, updated_at = ? WHERE id = ?`,
		[]byte(payload), fmtTime(time.Now()), opID)
	if err != nil {
		return fmt.Errorf("failed to update payload of %s: %w", opID, err)
	}
	return nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, opID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM oplog WHERE id = ?`, opID)
	if err != nil {
		return fmt.Errorf("failed to delete operation %s: %w", opID, err)
	}
	return nil
}

func (r *SQLiteRepository) DeleteForEntity(ctx context.Context, kind models.Kind, entityID int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM oplog WHERE kind = ? AND entity_id = ?`, kind, entityID)
	if err != nil {
		return fmt.Errorf("failed to delete operations for %s/%d: %w", kind, entityID, err)
	}
	return nil
}

func (r *SQLiteRepository) PurgeDone(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM oplog WHERE status = ?`, models.StatusDone)
	if err != nil {
		return 0, fmt.Errorf("failed to purge done operations: %w", err)
	}
	return res.RowsAffected()
}

func (r *SQLiteRepository) Counts(ctx context.Context) (map[models.OpStatus]int64, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM oplog GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count operations: %w", err)
	}
	defer rows.Close()

	result := make(map[models.OpStatus]int64)
	for rows.Next() {
		var s models.OpStatus
		var n int64
		if err := rows.Scan(&s, &n); err != nil {
			return nil, err
		}
		result[s] = n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanOp(row scanner) (*models.Operation, error) {
	var (
		op            models.Operation
		payload       []byte
		baseUpdatedAt sql.NullString
		createdAt     string
		updatedAt     string
	)
	if err := row.Scan(&op.ID, &op.PlanID, &op.Kind, &op.EntityID, &op.Action, &payload,
		&baseUpdatedAt, &op.Status, &op.RetryCount, &op.LastError, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	op.Payload = payload
	if baseUpdatedAt.Valid && baseUpdatedAt.String != "" {
		t, err := parseTime(baseUpdatedAt.String)
		if err != nil {
			return nil, err
		}
		op.BaseUpdatedAt = &t
	}
	var err error
	if op.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if op.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &op, nil
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return fmtTime(*t)
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
