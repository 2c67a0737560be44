package oplog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
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
CREATE TABLE oplog (
  id TEXT PRIMARY KEY,
  plan_id INTEGER NOT NULL DEFAULT 0,
  kind TEXT NOT NULL,
  entity_id INTEGER NOT NULL,
  action TEXT NOT NULL,
  payload BLOB,
  base_updated_at TEXT,
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

func op(id string, kind models.Kind, entityID int64, action models.OpAction, at time.Time) *models.Operation {
	return &models.Operation{
		ID:        id,
		PlanID:    1,
		Kind:      kind,
		EntityID:  entityID,
		Action:    action,
		Payload:   json.RawMessage(`{}`),
		Status:    models.StatusPending,
		CreatedAt: at,
		UpdatedAt: at,
	}
}

func TestAppendAndPending_Ordered(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, r.Append(ctx, op("b", models.KindSchedule, 1, models.ActionUpdate, base.Add(time.Second))))
	require.NoError(t, r.Append(ctx, op("a", models.KindSchedule, 1, models.ActionCreate, base)))
	require.NoError(t, r.Append(ctx, op("c", models.KindMemo, 2, models.ActionCreate, base.Add(2*time.Second))))

	got, err := r.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "b", got[1].ID)
	assert.Equal(t, "c", got[2].ID)
}

func TestPending_ExcludesTerminalStatuses(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	now := time.Now()
	for i, s := range []models.OpStatus{
		models.StatusPending, models.StatusFailed, models.StatusDone,
		models.StatusDead, models.StatusConflict, models.StatusSyncing,
	} {
		o := op(fmt.Sprintf("op%d", i), models.KindPlan, int64(i), models.ActionUpdate, now.Add(time.Duration(i)*time.Millisecond))
		o.Status = s
		require.NoError(t, r.Append(ctx, o))
	}

	got, err := r.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, models.StatusFailed, got[0].Status)
	assert.Equal(t, models.StatusPending, got[1].Status)
}

func TestPending_GroupsByStatusThenChronology(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	mk := func(id string, entityID int64, status models.OpStatus, at time.Time) {
		o := op(id, models.KindMemo, entityID, models.ActionUpdate, at)
		o.Status = status
		require.NoError(t, r.Append(ctx, o))
	}
	mk("p1", 1, models.StatusPending, base)
	mk("f1", 2, models.StatusFailed, base.Add(time.Second))
	mk("p2", 3, models.StatusPending, base.Add(2*time.Second))
	mk("f2", 4, models.StatusFailed, base.Add(3*time.Second))

	got, err := r.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, got, 4)

	ids := []string{got[0].ID, got[1].ID, got[2].ID, got[3].ID}
	assert.Equal(t, []string{"f1", "f2", "p1", "p2"}, ids)
}

func TestSetStatus_FailedIncrementsAndPromotesDead(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	require.NoError(t, r.Append(ctx, op("x", models.KindPlan, 1, models.ActionUpdate, time.Now())))

	for i := 1; i < models.MaxRetries; i++ {
		got, err := r.SetStatus(ctx, "x", models.StatusFailed, "boom")
		require.NoError(t, err)
		assert.Equal(t, models.StatusFailed, got, "attempt %d must stay failed", i)
	}

	got, err := r.SetStatus(ctx, "x", models.StatusFailed, "boom")
	require.NoError(t, err)
	assert.Equal(t, models.StatusDead, got, "4th failure must hit the ceiling")

	stored, err := r.Get(ctx, "x")
	require.NoError(t, err)
	assert.Equal(t, models.StatusDead, stored.Status)
	assert.Equal(t, models.MaxRetries, stored.RetryCount)
	assert.Equal(t, "boom", stored.LastError)

	pending, err := r.Pending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending, "dead operations are excluded from future runs")
}

func TestSetStatus_BaseUpdatedAtRoundTrip(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	base := time.Date(2026, 5, 2, 9, 30, 0, 123456000, time.UTC)
	o := op("y", models.KindSchedule, 3, models.ActionUpdate, time.Now())
	o.BaseUpdatedAt = &base
	require.NoError(t, r.Append(ctx, o))

	got, err := r.Get(ctx, "y")
	require.NoError(t, err)
	require.NotNil(t, got.BaseUpdatedAt)
	assert.True(t, got.BaseUpdatedAt.Equal(base))
}

func TestPurgeDone_PhysicallyRemoves(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	a := op("a", models.KindPlan, 1, models.ActionUpdate, time.Now())
	a.Status = models.StatusDone
	require.NoError(t, r.Append(ctx, a))
	require.NoError(t, r.Append(ctx, op("b", models.KindPlan, 2, models.ActionUpdate, time.Now())))

	n, err := r.PurgeDone(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	var left int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM oplog`).Scan(&left))
	assert.Equal(t, 1, left)
}

func TestDeleteForEntity(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	require.NoError(t, r.Append(ctx, op("a", models.KindMoment, -5, models.ActionCreate, time.Now())))
	require.NoError(t, r.Append(ctx, op("b", models.KindMoment, -5, models.ActionUpdate, time.Now())))
	require.NoError(t, r.Append(ctx, op("c", models.KindMoment, -6, models.ActionCreate, time.Now())))

	require.NoError(t, r.DeleteForEntity(ctx, models.KindMoment, -5))

	got, err := r.ForEntity(ctx, models.KindMoment, -5)
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = r.ForEntity(ctx, models.KindMoment, -6)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestCounts(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	for i, s := range []models.OpStatus{models.StatusPending, models.StatusPending, models.StatusDead} {
		o := op(fmt.Sprintf("n%d", i), models.KindPlan, int64(i), models.ActionUpdate, time.Now())
		o.Status = s
		require.NoError(t, r.Append(ctx, o))
	}

	counts, err := r.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts[models.StatusPending])
	assert.Equal(t, int64(1), counts[models.StatusDead])
}
