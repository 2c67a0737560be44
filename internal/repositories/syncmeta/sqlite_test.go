package syncmeta

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`CREATE TABLE syncmeta (key TEXT PRIMARY KEY, value TEXT NOT NULL);`)
	require.NoError(t, err)
	return db
}

func TestGetSetDelete(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	v, err := r.Get(ctx, "missing")
	require.NoError(t, err)
	assert.Equal(t, "", v)

	require.NoError(t, r.Set(ctx, KeyBootstrapStatus, "running"))
	require.NoError(t, r.Set(ctx, KeyBootstrapStatus, "done")) // upsert

	v, err = r.Get(ctx, KeyBootstrapStatus)
	require.NoError(t, err)
	assert.Equal(t, "done", v)

	require.NoError(t, r.Delete(ctx, KeyBootstrapStatus))
	v, err = r.Get(ctx, KeyBootstrapStatus)
	require.NoError(t, err)
	assert.Equal(t, "", v)
}

func TestInt64RoundTrip(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	n, err := r.GetInt64(ctx, KeyTempIDCounter)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n, "absent key reads as zero")

	require.NoError(t, r.SetInt64(ctx, KeyTempIDCounter, -17))
	n, err = r.GetInt64(ctx, KeyTempIDCounter)
	require.NoError(t, err)
	assert.Equal(t, int64(-17), n)

	require.NoError(t, r.Set(ctx, "junk", "not-a-number"))
	_, err = r.GetInt64(ctx, "junk")
	assert.Error(t, err)
}
