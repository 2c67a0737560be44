// Package services is the offline-aware repository layer: one façade per
// entity kind exposing the same CRUD surface as the plain network client.
// Every call tries the server first; when offline mode is enabled and the
// server is unreachable, reads fall back to the local cache and writes are
// queued on the operation log for later replay by the sync engine.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/voyago/tripsync/internal/api"
	"github.com/voyago/tripsync/internal/logging"
	"github.com/voyago/tripsync/internal/models"
	"github.com/voyago/tripsync/internal/store"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Set bundles the per-kind repositories sharing one store and client.
type Set struct {
	Plans     *Plans
	Schedules *Schedules
	Moments   *Moments
	Memos     *Memos
	Comments  *Comments
	Members   *Members
	Media     *Media
	Status    *Status
}

func New(st *store.Store, client api.Client, mode *Mode, log logging.Logger) *Set {
	c := &core{store: st, api: client, mode: mode, log: log}
	moments := &Moments{core: c}
	return &Set{
		Plans:     &Plans{core: c},
		Schedules: &Schedules{core: c},
		Moments:   moments,
		Memos:     &Memos{core: c},
		Comments:  &Comments{core: c},
		Members:   &Members{core: c},
		Media:     &Media{core: c, moments: moments},
		Status:    &Status{core: c},
	}
}

// core carries the dependencies shared by every per-kind repository.
type core struct {
	store *store.Store
	api   api.Client
	mode  *Mode
	log   logging.Logger
}

// fallback reports whether err should divert the call to the local store:
// only transport-level unavailability, and only when offline mode is on.
// Conflicts, auth failures and not-found propagate to the caller unchanged.
func (c *core) fallback(err error) bool {
	return c.mode.OfflineEnabled() && errors.Is(err, api.ErrUnavailable)
}

// fillCache writes server-authoritative records into the cache without
// blocking the caller. One goroutine per read call; failures are logged and
// swallowed, never surfaced to the read that triggered the fill.
func (c *core) fillCache(ctx context.Context, recs ...*models.CachedRecord) {
	ctx = context.WithoutCancel(ctx)
	go func() {
		for _, rec := range recs {
			if err := c.store.Cache.PutServer(ctx, rec); err != nil {
				c.log.Warn(ctx, "cache fill failed", "kind", rec.Kind, "id", rec.ID, "error", err)
			}
		}
	}()
}

// offlineCreate queues a create: allocates a temp id, caches a locally
// shaped record carrying it, and appends a pending create operation. The
// cached row and the log entry commit in one transaction.
func (c *core) offlineCreate(ctx context.Context, kind models.Kind, planID, parentID int64, body json.RawMessage) (int64, error) {
	tempID, err := c.store.AllocateTempID(ctx)
	if err != nil {
		return 0, err
	}
	body, err = setField(body, "id", tempID)
	if err != nil {
		return 0, err
	}

	now := time.Now().UTC()
	rec := &models.CachedRecord{
		Kind: kind, ID: tempID, PlanID: planID, ParentID: parentID, Body: body,
		Meta: models.LocalMeta{Dirty: true, PendingSync: true, LocalUpdatedAt: now},
	}
	op := &models.Operation{
		ID: uuid.NewString(), PlanID: planID, Kind: kind, EntityID: tempID,
		Action: models.ActionCreate, Payload: body,
		Status: models.StatusPending, CreatedAt: now, UpdatedAt: now,
	}
	err = c.store.WithTx(ctx, func(ctx context.Context, r store.Repos) error {
		if err := r.Cache.Put(ctx, rec); err != nil {
			return err
		}
		return r.Oplog.Append(ctx, op)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to queue offline create: %w", err)
	}
	c.log.Info(ctx, "queued offline create", "kind", kind, "temp_id", tempID)
	return tempID, nil
}

// offlineUpdate patches the cached copy in place and appends an update
// operation carrying only the changed fields plus the server timestamp the
// edit was computed against.
func (c *core) offlineUpdate(ctx context.Context, kind models.Kind, id int64, patch api.Patch) error {
	rec, err := c.store.Cache.Get(ctx, kind, id)
	if err != nil {
		return err
	}
	if rec == nil {
		return fmt.Errorf("%s %d: %w", kind, id, ErrNoOfflineData)
	}

	base := baseUpdatedAt(rec.Body)
	body, err := applyPatch(rec.Body, patch)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(patch)
	if err != nil {
		return fmt.Errorf("failed to encode patch: %w", err)
	}

	now := time.Now().UTC()
	rec.Body = body
	rec.Meta.Dirty = true
	rec.Meta.PendingSync = true
	rec.Meta.LocalUpdatedAt = now
	op := &models.Operation{
		ID: uuid.NewString(), PlanID: rec.PlanID, Kind: kind, EntityID: id,
		Action: models.ActionUpdate, Payload: payload, BaseUpdatedAt: base,
		Status: models.StatusPending, CreatedAt: now, UpdatedAt: now,
	}
	err = c.store.WithTx(ctx, func(ctx context.Context, r store.Repos) error {
		if err := r.Cache.Put(ctx, rec); err != nil {
			return err
		}
		return r.Oplog.Append(ctx, op)
	})
	if err != nil {
		return fmt.Errorf("failed to queue offline update: %w", err)
	}
	return nil
}

// offlineDelete queues a delete. A temp id means the entity never reached
// the server, so the whole thing cancels locally: the cached record and any
// queued operations for it are dropped, and nothing is told to the server.
func (c *core) offlineDelete(ctx context.Context, kind models.Kind, id int64) error {
	if models.IsTemporary(id) {
		err := c.store.WithTx(ctx, func(ctx context.Context, r store.Repos) error {
			if err := r.Cache.Delete(ctx, kind, id); err != nil {
				return err
			}
			return r.Oplog.DeleteForEntity(ctx, kind, id)
		})
		if err != nil {
			return fmt.Errorf("failed to cancel local create: %w", err)
		}
		return nil
	}

	rec, err := c.store.Cache.Get(ctx, kind, id)
	if err != nil {
		return err
	}
	if rec == nil {
		return fmt.Errorf("%s %d: %w", kind, id, ErrNoOfflineData)
	}

	now := time.Now().UTC()
	op := &models.Operation{
		ID: uuid.NewString(), PlanID: rec.PlanID, Kind: kind, EntityID: id,
		Action: models.ActionDelete,
		Status: models.StatusPending, CreatedAt: now, UpdatedAt: now,
	}
	err = c.store.WithTx(ctx, func(ctx context.Context, r store.Repos) error {
		if err := r.Cache.Tombstone(ctx, kind, id, now); err != nil {
			return err
		}
		return r.Oplog.Append(ctx, op)
	})
	if err != nil {
		return fmt.Errorf("failed to queue offline delete: %w", err)
	}
	return nil
}

// cachedBase returns the server timestamp the caller's edit is computed
// against: the updated_at of the cached copy, when one exists. Nil skips the
// optimistic-concurrency precondition.
func (c *core) cachedBase(ctx context.Context, kind models.Kind, id int64) *time.Time {
	rec, err := c.store.Cache.Get(ctx, kind, id)
	if err != nil || rec == nil {
		return nil
	}
	return baseUpdatedAt(rec.Body)
}

// hasSnapshot distinguishes "legitimately empty" from "never bootstrapped"
// when a fallback list read comes back with zero rows.
func (c *core) hasSnapshot(ctx context.Context, planID int64) (bool, error) {
	snap, err := c.store.Snapshots.Get(ctx, planID)
	if err != nil {
		return false, err
	}
	return snap != nil, nil
}

func cachedOne[T any](ctx context.Context, c *core, kind models.Kind, id int64) (*T, error) {
	rec, err := c.store.Cache.Get(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("%s %d: %w", kind, id, ErrNoOfflineData)
	}
	var v T
	if err := json.Unmarshal(rec.Body, &v); err != nil {
		return nil, fmt.Errorf("failed to decode cached %s %d: %w", kind, id, err)
	}
	return &v, nil
}

func decodeAll[T any](recs []*models.CachedRecord) ([]T, error) {
	out := make([]T, 0, len(recs))
	for _, rec := range recs {
		var v T
		if err := json.Unmarshal(rec.Body, &v); err != nil {
			return nil, fmt.Errorf("failed to decode cached %s %d: %w", rec.Kind, rec.ID, err)
		}
		out = append(out, v)
	}
	return out, nil
}

func baseUpdatedAt(body json.RawMessage) *time.Time {
	var v struct {
		UpdatedAt *time.Time `json:"updated_at"`
	}
	if err := json.Unmarshal(body, &v); err != nil {
		return nil
	}
	if v.UpdatedAt == nil || v.UpdatedAt.IsZero() {
		return nil
	}
	return v.UpdatedAt
}

func applyPatch(body json.RawMessage, patch api.Patch) (json.RawMessage, error) {
	var m map[string]any
	if err := json.Unmarshal(body, &m); err != nil {
		return nil, fmt.Errorf("failed to decode cached body: %w", err)
	}
	for k, v := range patch {
		if k == "id" {
			continue
		}
		m[k] = v
	}
	out, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to encode patched body: %w", err)
	}
	return out, nil
}

func setField(body json.RawMessage, key string, value any) (json.RawMessage, error) {
	var m map[string]any
	if err := json.Unmarshal(body, &m); err != nil {
		return nil, fmt.Errorf("failed to decode payload: %w", err)
	}
	m[key] = value
	out, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload: %w", err)
	}
	return out, nil
}
