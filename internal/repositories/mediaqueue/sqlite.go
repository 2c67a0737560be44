package mediaqueue

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

const mediaColumns = `ref, kind, entity_id, local_path, content_type, status, retry_count, last_error, created_at, updated_at`

func (r *SQLiteRepository) Enqueue(ctx context.Context, u *models.MediaUpload) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO media_queue (`+mediaColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.Ref, u.Kind, u.EntityID, u.LocalPath, u.ContentType, u.Status, u.RetryCount, u.LastError,
		fmtTime(u.CreatedAt), fmtTime(u.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to enqueue media %s: %w", u.Ref, err)
	}
	return nil
}

func (r *SQLiteRepository) Get(ctx context.Context, ref string) (*models.MediaUpload, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+mediaColumns+` FROM media_queue WHERE ref = ?`, ref)
	u, err := scanUpload(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get media %s: %w", ref, err)
	}
	return u, nil
}

func (r *SQLiteRepository) Pending(ctx context.Context) ([]*models.MediaUpload, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+mediaColumns+` FROM media_queue WHERE status IN (?, ?) ORDER BY created_at, ref`,
		models.StatusPending, models.StatusFailed)
	if err != nil {
		return nil, fmt.Errorf("failed to select pending media: %w", err)
	}
	defer rows.Close()

	var result []*models.MediaUpload
	for rows.Next() {
		u, err := scanUpload(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *SQLiteRepository) SetStatus(ctx context.Context, ref string, status models.OpStatus, lastError string) (models.OpStatus, error) {
	now := fmtTime(time.Now())
	if status != models.StatusFailed {
		_, err := r.db.ExecContext(ctx,
			`UPDATE media_queue SET status = ?, last_error = ?, updated_at = ? WHERE ref = ?`,
			status, lastError, now, ref)
		if err != nil {
			return "", fmt.Errorf("failed to set status on media %s: %w", ref, err)
		}
		return status, nil
	}

	_, err := r.db.ExecContext(ctx,
		`UPDATE media_queue SET status = ?, last_error = ?, retry_count = retry_count + 1, updated_at = ? WHERE ref = ?`,
		models.StatusFailed, lastError, now, ref)
	if err != nil {
		return "", fmt.Errorf("failed to set status on media %s: %w", ref, err)
	}
	_, err = r.db.ExecContext(ctx,
		`UPDATE media_queue SET status = ? WHERE ref = ? AND status = ? AND retry_count >= ?`,
		models.StatusDead, ref, models.StatusFailed, models.MaxRetries)
	if err != nil {
		return "", fmt.Errorf("failed to apply retry ceiling on media %s: %w", ref, err)
	}

	var final models.OpStatus
	if err := r.db.QueryRowContext(ctx, `SELECT status FROM media_queue WHERE ref = ?`, ref).Scan(&final); err != nil {
		return "", fmt.Errorf("failed to read back status of media %s: %w", ref, err)
	}
	return final, nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, ref string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM media_queue WHERE ref = ?`, ref)
	if err != nil {
		return fmt.Errorf("failed to delete media %s: %w", ref, err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUpload(row scanner) (*models.MediaUpload, error) {
	var u models.MediaUpload
	var createdAt, updatedAt string
	if err := row.Scan(&u.Ref, &u.Kind, &u.EntityID, &u.LocalPath, &u.ContentType,
		&u.Status, &u.RetryCount, &u.LastError, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	var err error
	if u.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if u.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &u, nil
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
