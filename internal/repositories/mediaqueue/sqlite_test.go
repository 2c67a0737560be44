package mediaqueue

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voyago/tripsync/internal/models"
	_ "modernc.org/sqlite"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`
CREATE TABLE media_queue (
  ref TEXT PRIMARY KEY,
  kind TEXT NOT NULL,
  entity_id INTEGER NOT NULL,
  local_path TEXT NOT NULL,
  content_type TEXT NOT NULL DEFAULT '',
  status TEXT NOT NULL DEFAULT 'pending',
  retry_count INTEGER NOT NULL DEFAULT 0,
  last_error TEXT NOT NULL DEFAULT '',
  created_at TEXT NOT NULL,
  updated_at TEXT NOT NULL
);
`)
	require.NoError(t, err)
	return db
}

func TestEnqueuePendingDelete(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	u := &models.MediaUpload{
		Ref:         "m-1",
		Kind:        models.KindMoment,
		EntityID:    -2,
		LocalPath:   "/tmp/photo.jpg",
		ContentType: "image/jpeg",
		Status:      models.StatusPending,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	require.NoError(t, r.Enqueue(ctx, u))

	pending, err := r.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "/tmp/photo.jpg", pending[0].LocalPath)

	require.NoError(t, r.Delete(ctx, "m-1"))
	pending, err = r.Pending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestMediaRetryCeiling(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	u := &models.MediaUpload{Ref: "m-2", Kind: models.KindMoment, EntityID: 1, LocalPath: "/tmp/x",
		Status: models.StatusPending, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	require.NoError(t, r.Enqueue(ctx, u))

	var final models.OpStatus
	var err error
	for i := 0; i < models.MaxRetries; i++ {
		final, err = r.SetStatus(ctx, "m-2", models.StatusFailed, "upload refused")
		require.NoError(t, err)
	}
	assert.Equal(t, models.StatusDead, final)

	pending, err := r.Pending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending, "dead uploads are not retried")
}
