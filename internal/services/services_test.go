package services

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voyago/tripsync/internal/api"
	"github.com/voyago/tripsync/internal/api/apitest"
	"github.com/voyago/tripsync/internal/logging"
	"github.com/voyago/tripsync/internal/models"
	"github.com/voyago/tripsync/internal/store"
)

func newSet(t *testing.T) (*Set, *apitest.Fake, *Mode, *store.Store) {
	t.Helper()
	st, err := store.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	fake := &apitest.Fake{}
	mode := NewMode()
	return New(st, fake, mode, logging.Nop{}), fake, mode, st
}

func seedSchedule(t *testing.T, st *store.Store, id, planID int64, title string, updatedAt time.Time) {
	t.Helper()
	rec, err := ScheduleRecord(models.Schedule{ID: id, PlanID: planID, Title: title, UpdatedAt: updatedAt})
	require.NoError(t, err)
	require.NoError(t, st.Cache.Put(context.Background(), rec))
}

func TestScheduleCreateOfflineQueuesTempRecord(t *testing.T) {
	set, _, mode, st := newSet(t)
	mode.SetOffline(true)
	ctx := context.Background()

	out, err := set.Schedules.Create(ctx, models.Schedule{PlanID: 7, Title: "Louvre", Day: 1})
	require.NoError(t, err)
	assert.True(t, models.IsTemporary(out.ID))

	rec, err := st.Cache.Get(ctx, models.KindSchedule, out.ID)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.True(t, rec.Meta.Dirty)
	assert.True(t, rec.Meta.PendingSync)
	assert.Equal(t, int64(7), rec.PlanID)

	ops, err := st.Oplog.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.Equal(t, models.ActionCreate, ops[0].Action)
	assert.Equal(t, out.ID, ops[0].EntityID)

	var payload models.Schedule
	require.NoError(t, json.Unmarshal(ops[0].Payload, &payload))
	assert.Equal(t, out.ID, payload.ID, "queued payload must carry the temp id")
}

func TestScheduleCreateOnlineNoOperationQueued(t *testing.T) {
	set, fake, _, st := newSet(t)
	ctx := context.Background()
	fake.CreateScheduleFn = func(ctx context.Context, s models.Schedule) (*models.Schedule, error) {
		s.ID = 100
		s.UpdatedAt = time.Now().UTC()
		return &s, nil
	}

	out, err := set.Schedules.Create(ctx, models.Schedule{PlanID: 7, Title: "Louvre"})
	require.NoError(t, err)
	assert.Equal(t, int64(100), out.ID)

	ops, err := st.Oplog.Pending(ctx)
	require.NoError(t, err)
	assert.Empty(t, ops, "server already has the truth")

	require.Eventually(t, func() bool {
		rec, err := st.Cache.Get(ctx, models.KindSchedule, 100)
		return err == nil && rec != nil
	}, time.Second, 10*time.Millisecond, "read-through cache fill")
}

func TestPlanCreateBlockedOffline(t *testing.T) {
	set, _, mode, st := newSet(t)
	mode.SetOffline(true)
	ctx := context.Background()

	_, err := set.Plans.Create(ctx, models.Plan{Title: "Paris"})
	require.ErrorIs(t, err, ErrBlockedOffline)

	ops, err := st.Oplog.Pending(ctx)
	require.NoError(t, err)
	assert.Empty(t, ops, "blocked operations are never queued")
}

func TestMemberWritesBlockedOffline(t *testing.T) {
	set, _, mode, _ := newSet(t)
	mode.SetOffline(true)
	ctx := context.Background()

	_, err := set.Members.Add(ctx, 7, 2, "editor")
	assert.ErrorIs(t, err, ErrBlockedOffline)
	assert.ErrorIs(t, set.Members.Remove(ctx, 7, 2), ErrBlockedOffline)
}

func TestScheduleUpdateOfflinePatchesCacheAndQueuesOp(t *testing.T) {
	set, _, mode, st := newSet(t)
	mode.SetOffline(true)
	ctx := context.Background()
	base := time.Date(2026, 7, 1, 10, 0, 0, 0, time.UTC)
	seedSchedule(t, st, 100, 7, "Louvre", base)

	out, err := set.Schedules.Update(ctx, 100, api.Patch{"title": "Musée d'Orsay"})
	require.NoError(t, err)
	assert.Equal(t, "Musée d'Orsay", out.Title)

	rec, err := st.Cache.Get(ctx, models.KindSchedule, 100)
	require.NoError(t, err)
	assert.True(t, rec.Meta.Dirty)
	assert.True(t, rec.Meta.PendingSync)

	ops, err := st.Oplog.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.Equal(t, models.ActionUpdate, ops[0].Action)
	require.NotNil(t, ops[0].BaseUpdatedAt)
	assert.True(t, ops[0].BaseUpdatedAt.Equal(base))
	assert.JSONEq(t, `{"title":"Musée d'Orsay"}`, string(ops[0].Payload), "payload carries changed fields only")
}

func TestUpdateOfflineWithoutCachedCopyFails(t *testing.T) {
	set, _, mode, _ := newSet(t)
	mode.SetOffline(true)

	_, err := set.Schedules.Update(context.Background(), 999, api.Patch{"title": "x"})
	assert.ErrorIs(t, err, ErrNoOfflineData)
}

func TestDeleteTempIDCancelsLocally(t *testing.T) {
	set, _, mode, st := newSet(t)
	mode.SetOffline(true)
	ctx := context.Background()

	out, err := set.Schedules.Create(ctx, models.Schedule{PlanID: 7, Title: "Louvre"})
	require.NoError(t, err)
	require.NoError(t, set.Schedules.Delete(ctx, out.ID))

	rec, err := st.Cache.GetAny(ctx, models.KindSchedule, out.ID)
	require.NoError(t, err)
	assert.Nil(t, rec, "cancelled create must be physically absent")

	ops, err := st.Oplog.Pending(ctx)
	require.NoError(t, err)
	assert.Empty(t, ops, "nothing to tell the server")
}

func TestDeleteServerIDOfflineTombstones(t *testing.T) {
	set, _, mode, st := newSet(t)
	mode.SetOffline(true)
	ctx := context.Background()
	seedSchedule(t, st, 100, 7, "Louvre", time.Now().UTC())

	require.NoError(t, set.Schedules.Delete(ctx, 100))

	rec, err := st.Cache.Get(ctx, models.KindSchedule, 100)
	require.NoError(t, err)
	assert.Nil(t, rec, "tombstoned records are invisible to reads")

	tomb, err := st.Cache.GetAny(ctx, models.KindSchedule, 100)
	require.NoError(t, err)
	require.NotNil(t, tomb)
	assert.True(t, tomb.Meta.Deleted)

	ops, err := st.Oplog.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.Equal(t, models.ActionDelete, ops[0].Action)
}

func TestListFallsBackToCache(t *testing.T) {
	set, _, mode, st := newSet(t)
	mode.SetOffline(true)
	ctx := context.Background()
	seedSchedule(t, st, 100, 7, "Louvre", time.Now().UTC())

	items, err := set.Schedules.List(ctx, 7)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Louvre", items[0].Title)
}

func TestListWithoutBootstrapFailsDistinctly(t *testing.T) {
	set, _, mode, _ := newSet(t)
	mode.SetOffline(true)

	_, err := set.Schedules.List(context.Background(), 7)
	assert.ErrorIs(t, err, ErrNoOfflineData)
}

func TestListEmptyPlanWithSnapshotIsNotAnError(t *testing.T) {
	set, _, mode, st := newSet(t)
	mode.SetOffline(true)
	ctx := context.Background()
	require.NoError(t, st.Snapshots.Put(ctx, &models.PlanSnapshot{
		PlanID: 7, LastFetchedAt: time.Now().UTC(), IsComplete: true,
	}))

	items, err := set.Schedules.List(ctx, 7)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestNoFallbackWhenOfflineModeDisabled(t *testing.T) {
	set, _, _, st := newSet(t)
	ctx := context.Background()
	seedSchedule(t, st, 100, 7, "Louvre", time.Now().UTC())

	_, err := set.Schedules.List(ctx, 7)
	assert.ErrorIs(t, err, api.ErrUnavailable, "dual path is active only in offline mode")
}

func TestUpdateSendsCachedBaseAsPrecondition(t *testing.T) {
	set, fake, _, st := newSet(t)
	ctx := context.Background()
	base := time.Date(2026, 7, 1, 10, 0, 0, 0, time.UTC)
	seedSchedule(t, st, 100, 7, "Louvre", base)

	var gotBase *time.Time
	fake.UpdateScheduleFn = func(ctx context.Context, id int64, patch api.Patch, b *time.Time) (*models.Schedule, error) {
		gotBase = b
		return &models.Schedule{ID: id, PlanID: 7, Title: "x", UpdatedAt: time.Now().UTC()}, nil
	}

	_, err := set.Schedules.Update(ctx, 100, api.Patch{"title": "x"})
	require.NoError(t, err)
	require.NotNil(t, gotBase)
	assert.True(t, gotBase.Equal(base))
}

func TestMediaDrainUploadsAndAttachesKey(t *testing.T) {
	set, fake, _, st := newSet(t)
	ctx := context.Background()
	seedSchedule(t, st, 100, 7, "Louvre", time.Now().UTC())

	dir := t.TempDir()
	path := dir + "/photo.jpg"
	require.NoError(t, os.WriteFile(path, []byte("jpeg-bytes"), 0o600))

	fake.CreateUploadFn = func(ctx context.Context, contentType string) (*api.Upload, error) {
		return &api.Upload{URL: "https://bucket/put", Key: "media/abc"}, nil
	}
	var uploaded []byte
	fake.PutUploadFn = func(ctx context.Context, url string, data []byte, contentType string) error {
		uploaded = data
		return nil
	}
	var patched api.Patch
	fake.UpdateMomentFn = func(ctx context.Context, id int64, patch api.Patch, base *time.Time) (*models.Moment, error) {
		patched = patch
		return &models.Moment{ID: id, ScheduleID: 100, UpdatedAt: time.Now().UTC()}, nil
	}

	ref, err := set.Media.Attach(ctx, 555, path, "image/jpeg")
	require.NoError(t, err)
	require.NoError(t, set.Media.Drain(ctx))

	assert.Equal(t, []byte("jpeg-bytes"), uploaded)
	assert.Equal(t, api.Patch{"media_key": "media/abc"}, patched)

	entry, err := st.Media.Get(ctx, ref)
	require.NoError(t, err)
	assert.Nil(t, entry, "confirmed uploads leave the queue")
}

func TestMediaDrainKeepsEntryWhenAttachConflicts(t *testing.T) {
	set, fake, _, st := newSet(t)
	ctx := context.Background()
	seedSchedule(t, st, 100, 7, "Louvre", time.Now().UTC())

	dir := t.TempDir()
	path := dir + "/photo.jpg"
	require.NoError(t, os.WriteFile(path, []byte("jpeg-bytes"), 0o600))

	fake.CreateUploadFn = func(ctx context.Context, contentType string) (*api.Upload, error) {
		return &api.Upload{URL: "https://bucket/put", Key: "media/abc"}, nil
	}
	fake.PutUploadFn = func(ctx context.Context, url string, data []byte, contentType string) error {
		return nil
	}
	fake.UpdateMomentFn = func(ctx context.Context, id int64, patch api.Patch, base *time.Time) (*models.Moment, error) {
		return nil, &api.ConflictError{Server: []byte(`{"id":555}`)}
	}

	ref, err := set.Media.Attach(ctx, 555, path, "image/jpeg")
	require.NoError(t, err)
	require.NoError(t, set.Media.Drain(ctx))

	entry, err := st.Media.Get(ctx, ref)
	require.NoError(t, err)
	require.NotNil(t, entry, "a rejected attach must not dequeue the upload")
	assert.Equal(t, models.StatusFailed, entry.Status)
	assert.Equal(t, 1, entry.RetryCount)
}

func TestMediaDrainSkipsUnmappedTempMoment(t *testing.T) {
	set, fake, _, st := newSet(t)
	ctx := context.Background()
	fake.CreateUploadFn = func(ctx context.Context, contentType string) (*api.Upload, error) {
		t.Fatal("must not request an upload slot for an unmapped moment")
		return nil, nil
	}

	ref, err := set.Media.Attach(ctx, -3, "/nowhere.jpg", "image/jpeg")
	require.NoError(t, err)
	require.NoError(t, set.Media.Drain(ctx))

	entry, err := st.Media.Get(ctx, ref)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, models.StatusPending, entry.Status)
}

func TestStatusSummaryCountsQueuedWork(t *testing.T) {
	set, _, mode, _ := newSet(t)
	mode.SetOffline(true)
	ctx := context.Background()

	_, err := set.Schedules.Create(ctx, models.Schedule{PlanID: 7, Title: "a"})
	require.NoError(t, err)
	_, err = set.Memos.Create(ctx, models.Memo{PlanID: 7, Body: "pack adapters"})
	require.NoError(t, err)

	sum, err := set.Status.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), sum.Pending)
	assert.True(t, sum.OfflineMode)
}
