package cache

import (
	"context"
	"database/sql"
	"encoding/json"
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
CREATE TABLE entities (
  kind TEXT NOT NULL,
  id INTEGER NOT NULL,
  plan_id INTEGER NOT NULL DEFAULT 0,
  parent_id INTEGER NOT NULL DEFAULT 0,
  body BLOB NOT NULL,
  dirty INTEGER NOT NULL DEFAULT 0,
  deleted INTEGER NOT NULL DEFAULT 0,
  conflict INTEGER NOT NULL DEFAULT 0,
  pending_sync INTEGER NOT NULL DEFAULT 0,
  local_updated_at TEXT NOT NULL,
  server_version BLOB,
  PRIMARY KEY (kind, id)
);
`)
	require.NoError(t, err)
	return db
}

func rec(kind models.Kind, id, planID, parentID int64, body string) *models.CachedRecord {
	return &models.CachedRecord{
		Kind:     kind,
		ID:       id,
		PlanID:   planID,
		ParentID: parentID,
		Body:     json.RawMessage(body),
		Meta:     models.LocalMeta{LocalUpdatedAt: time.Now()},
	}
}

func TestPut_InsertAndUpdate(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	s := rec(models.KindSchedule, 10, 1, 1, `{"id":10,"title":"A"}`)
	require.NoError(t, r.Put(ctx, s))

	got, err := r.Get(ctx, models.KindSchedule, 10)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.JSONEq(t, `{"id":10,"title":"A"}`, string(got.Body))

	s.Body = json.RawMessage(`{"id":10,"title":"B"}`)
	s.Meta.Dirty = true
	require.NoError(t, r.Put(ctx, s))

	got, err = r.Get(ctx, models.KindSchedule, 10)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":10,"title":"B"}`, string(got.Body))
	assert.True(t, got.Meta.Dirty)
}

func TestGet_AbsentReturnsNil(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)

	got, err := r.Get(context.Background(), models.KindPlan, 404)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestTombstone_ExcludedFromAllReads(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	require.NoError(t, r.Put(ctx, rec(models.KindMemo, 7, 1, 1, `{"id":7}`)))
	require.NoError(t, r.Put(ctx, rec(models.KindMemo, 8, 1, 1, `{"id":8}`)))
	require.NoError(t, r.Tombstone(ctx, models.KindMemo, 7, time.Now()))

	got, err := r.Get(ctx, models.KindMemo, 7)
	require.NoError(t, err)
	assert.Nil(t, got, "tombstoned record must not surface via Get")

	list, err := r.ListByParent(ctx, models.KindMemo, 1)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, int64(8), list[0].ID)

	byPlan, err := r.ListByPlan(ctx, models.KindMemo, 1)
	require.NoError(t, err)
	require.Len(t, byPlan, 1)

	kind, err := r.ListKind(ctx, models.KindMemo)
	require.NoError(t, err)
	require.Len(t, kind, 1)

	// the raw accessor still sees it
	raw, err := r.GetAny(ctx, models.KindMemo, 7)
	require.NoError(t, err)
	require.NotNil(t, raw)
	assert.True(t, raw.Meta.Deleted)
	assert.True(t, raw.Meta.PendingSync)
}

func TestPutServer_DoesNotClobberLocalEdits(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	local := rec(models.KindSchedule, 5, 1, 1, `{"id":5,"title":"local edit"}`)
	local.Meta.Dirty = true
	local.Meta.PendingSync = true
	require.NoError(t, r.Put(ctx, local))

	server := rec(models.KindSchedule, 5, 1, 1, `{"id":5,"title":"server"}`)
	require.NoError(t, r.PutServer(ctx, server))

	got, err := r.Get(ctx, models.KindSchedule, 5)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":5,"title":"local edit"}`, string(got.Body))

	// a clean row is overwritten
	clean := rec(models.KindSchedule, 6, 1, 1, `{"id":6,"title":"old"}`)
	require.NoError(t, r.Put(ctx, clean))
	server6 := rec(models.KindSchedule, 6, 1, 1, `{"id":6,"title":"fresh"}`)
	require.NoError(t, r.PutServer(ctx, server6))

	got, err = r.Get(ctx, models.KindSchedule, 6)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":6,"title":"fresh"}`, string(got.Body))
}

func TestRekey_ReplacesIDAndClearsFlags(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	tmp := rec(models.KindSchedule, -3, 1, 1, `{"id":-3,"title":"x"}`)
	tmp.Meta.Dirty = true
	tmp.Meta.PendingSync = true
	require.NoError(t, r.Put(ctx, tmp))

	require.NoError(t, r.Rekey(ctx, models.KindSchedule, -3, 42, json.RawMessage(`{"id":42,"title":"x"}`), time.Now()))

	gone, err := r.GetAny(ctx, models.KindSchedule, -3)
	require.NoError(t, err)
	assert.Nil(t, gone, "temp key must disappear once the create is confirmed")

	got, err := r.Get(ctx, models.KindSchedule, 42)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.False(t, got.Meta.Dirty)
	assert.False(t, got.Meta.PendingSync)
	assert.JSONEq(t, `{"id":42,"title":"x"}`, string(got.Body))
}

func TestRewriteParent(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	require.NoError(t, r.Put(ctx, rec(models.KindMoment, -1, 1, -3, `{"id":-1}`)))
	require.NoError(t, r.Put(ctx, rec(models.KindMoment, -2, 1, -3, `{"id":-2}`)))
	require.NoError(t, r.RewriteParent(ctx, models.KindMoment, -3, 42))

	list, err := r.ListByParentAny(ctx, models.KindMoment, 42)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestSetConflict_AttachesServerVersion(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	require.NoError(t, r.Put(ctx, rec(models.KindPlan, 1, 1, 0, `{"id":1,"title":"mine"}`)))
	require.NoError(t, r.SetConflict(ctx, models.KindPlan, 1, json.RawMessage(`{"id":1,"title":"theirs"}`), time.Now()))

	got, err := r.Get(ctx, models.KindPlan, 1)
	require.NoError(t, err)
	assert.True(t, got.Meta.Conflict)
	assert.JSONEq(t, `{"id":1,"title":"theirs"}`, string(got.Meta.ServerVersion))
}

func TestDeleteByPlan_Cascades(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	require.NoError(t, r.Put(ctx, rec(models.KindPlan, 1, 1, 0, `{"id":1}`)))
	require.NoError(t, r.Put(ctx, rec(models.KindSchedule, 10, 1, 1, `{"id":10}`)))
	require.NoError(t, r.Put(ctx, rec(models.KindMemo, 20, 1, 1, `{"id":20}`)))
	require.NoError(t, r.Put(ctx, rec(models.KindPlan, 2, 2, 0, `{"id":2}`)))

	require.NoError(t, r.DeleteByPlan(ctx, 1))

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM entities`).Scan(&n))
	assert.Equal(t, 1, n, "only the unrelated plan should survive")
}
