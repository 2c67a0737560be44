package idmap

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
CREATE TABLE idmap (
  kind TEXT NOT NULL,
  temp_id INTEGER NOT NULL,
  server_id INTEGER NOT NULL,
  mapped_at TEXT NOT NULL,
  PRIMARY KEY (kind, temp_id),
  UNIQUE (kind, server_id)
);
`)
	require.NoError(t, err)
	return db
}

func TestInsertAndLookupBothDirections(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	m := &models.IDMapping{Kind: models.KindSchedule, TempID: -4, ServerID: 99, MappedAt: time.Now()}
	require.NoError(t, r.Insert(ctx, m))

	byTemp, err := r.ByTemp(ctx, models.KindSchedule, -4)
	require.NoError(t, err)
	require.NotNil(t, byTemp)
	assert.Equal(t, int64(99), byTemp.ServerID)

	byServer, err := r.ByServer(ctx, models.KindSchedule, 99)
	require.NoError(t, err)
	require.NotNil(t, byServer)
	assert.Equal(t, int64(-4), byServer.TempID)

	// a second insert for the same temp id must fail: mappings are immutable
	assert.Error(t, r.Insert(ctx, &models.IDMapping{Kind: models.KindSchedule, TempID: -4, ServerID: 100, MappedAt: time.Now()}))
}

func TestResolve(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	require.NoError(t, r.Insert(ctx, &models.IDMapping{Kind: models.KindMoment, TempID: -7, ServerID: 12, MappedAt: time.Now()}))

	id, ok, err := r.Resolve(ctx, models.KindMoment, -7)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(12), id)

	id, ok, err = r.Resolve(ctx, models.KindMoment, 55)
	require.NoError(t, err)
	assert.True(t, ok, "server ids resolve to themselves")
	assert.Equal(t, int64(55), id)

	_, ok, err = r.Resolve(ctx, models.KindMoment, -999)
	require.NoError(t, err)
	assert.False(t, ok, "unmapped temp id")
}
