// Package syncer drains the operation log against the server: it compacts
// redundant entries, replays creates parent-before-child while mapping temp
// ids to server ids, replays updates chronologically with optimistic
// concurrency, and replays deletes child-before-parent. One failure never
// aborts a batch; poisoned entries hit the retry ceiling and go dead.
package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/voyago/tripsync/internal/api"
	"github.com/voyago/tripsync/internal/logging"
	"github.com/voyago/tripsync/internal/models"
	"github.com/voyago/tripsync/internal/repositories/syncmeta"
	"github.com/voyago/tripsync/internal/services"
	"github.com/voyago/tripsync/internal/store"
)

var (
	// ErrLocked means another sync run holds the cooperative lock. The
	// caller must skip, not queue: at most one sync runs per device.
	ErrLocked = errors.New("sync already running")

	// ErrUnresolved marks a payload foreign key still pointing at a temp id
	// whose create never succeeded.
	ErrUnresolved = errors.New("temp id not yet mapped")
)

// Report summarizes one sync run.
type Report struct {
	Compacted int64
	Created   int
	Updated   int
	Deleted   int
	Failed    int
	Dead      int
	Conflicts int

	StartedAt  time.Time
	FinishedAt time.Time
}

// Engine replays the operation log. Safe to construct once and Run many
// times; each Run takes the store-backed lock.
type Engine struct {
	store   *store.Store
	api     api.Client
	reg     services.Registry
	log     logging.Logger
	lockTTL time.Duration
}

func New(st *store.Store, client api.Client, reg services.Registry, log logging.Logger) *Engine {
	return &Engine{store: st, api: client, reg: reg, log: log, lockTTL: store.DefaultLockTTL}
}

// Run executes one full sync: compaction, then the three replay phases, then
// counter recompute and done-row purge. Returns ErrLocked when another run
// holds the lock. A run is not cancellable between phases: partial phase
// completion would leave relationships inconsistently ordered.
func (e *Engine) Run(ctx context.Context) (*Report, error) {
	acquired, err := e.store.TryLockSync(ctx, e.lockTTL)
	if err != nil {
		return nil, err
	}
	if !acquired {
		return nil, ErrLocked
	}
	defer func() {
		if uerr := e.store.UnlockSync(context.WithoutCancel(ctx)); uerr != nil {
			e.log.Error(ctx, "failed to release sync lock", "error", uerr)
		}
	}()

	rep := &Report{StartedAt: time.Now().UTC()}
	rep.Compacted, err = e.Compact(ctx)
	if err != nil {
		return nil, err
	}

	pending, err := e.store.Oplog.Pending(ctx)
	if err != nil {
		return nil, err
	}
	var creates, updates, deletes []*models.Operation
	for _, op := range pending {
		switch op.Action {
		case models.ActionCreate:
			creates = append(creates, op)
		case models.ActionUpdate:
			updates = append(updates, op)
		case models.ActionDelete:
			deletes = append(deletes, op)
		}
	}

	e.replayCreates(ctx, creates, rep)
	e.replayUpdates(ctx, updates, rep)
	e.replayDeletes(ctx, deletes, rep)

	if err := e.finish(ctx, rep); err != nil {
		return nil, err
	}
	rep.FinishedAt = time.Now().UTC()
	e.log.Info(ctx, "sync run finished",
		"created", rep.Created, "updated", rep.Updated, "deleted", rep.Deleted,
		"failed", rep.Failed, "dead", rep.Dead, "conflicts", rep.Conflicts)
	return rep, nil
}

// replayCreates processes creates parent-before-child so that by the time a
// child's create runs, its parent's temp id is already mapped.
func (e *Engine) replayCreates(ctx context.Context, ops []*models.Operation, rep *Report) {
	sort.SliceStable(ops, func(i, j int) bool {
		ri, rj := models.CreateRank(ops[i].Kind), models.CreateRank(ops[j].Kind)
		if ri != rj {
			return ri < rj
		}
		return ops[i].CreatedAt.Before(ops[j].CreatedAt)
	})

	for _, op := range ops {
		if _, err := e.store.Oplog.SetStatus(ctx, op.ID, models.StatusSyncing, ""); err != nil {
			e.log.Error(ctx, "failed to mark operation syncing", "op", op.ID, "error", err)
			continue
		}

		payload, err := e.resolveFKs(ctx, op.Kind, op.Payload)
		if err != nil {
			e.fail(ctx, op, err, rep)
			continue
		}
		created, err := e.reg[op.Kind].Create(ctx, e.api, payload)
		if err != nil {
			e.fail(ctx, op, err, rep)
			continue
		}

		now := time.Now().UTC()
		err = e.store.WithTx(ctx, func(ctx context.Context, r store.Repos) error {
			if ierr := r.IDMap.Insert(ctx, &models.IDMapping{
				Kind: op.Kind, TempID: op.EntityID, ServerID: created.ID, MappedAt: now,
			}); ierr != nil {
				return ierr
			}
			if rerr := r.Cache.Rekey(ctx, op.Kind, op.EntityID, created.ID, created.Body, now); rerr != nil {
				return rerr
			}
			return e.rewriteChildren(ctx, r, op.Kind, op.EntityID, created.ID)
		})
		if err != nil {
			e.fail(ctx, op, err, rep)
			continue
		}
		if _, err := e.store.Oplog.SetStatus(ctx, op.ID, models.StatusDone, ""); err != nil {
			e.log.Error(ctx, "failed to mark operation done", "op", op.ID, "error", err)
			continue
		}
		rep.Created++
		e.log.Debug(ctx, "create replayed", "kind", op.Kind, "temp_id", op.EntityID, "server_id", created.ID)
	}
}

// replayUpdates processes updates in chronological order across all kinds.
// The target already exists, so no kind ordering is needed.
func (e *Engine) replayUpdates(ctx context.Context, ops []*models.Operation, rep *Report) {
	for _, op := range ops {
		if _, err := e.store.Oplog.SetStatus(ctx, op.ID, models.StatusSyncing, ""); err != nil {
			e.log.Error(ctx, "failed to mark operation syncing", "op", op.ID, "error", err)
			continue
		}

		id, ok, err := e.store.IDMap.Resolve(ctx, op.Kind, op.EntityID)
		if err != nil {
			e.fail(ctx, op, err, rep)
			continue
		}
		if !ok {
			// the create that would have produced the mapping failed
			e.fail(ctx, op, fmt.Errorf("%s %d: %w", op.Kind, op.EntityID, ErrUnresolved), rep)
			continue
		}
		payload, err := e.resolveFKs(ctx, op.Kind, op.Payload)
		if err != nil {
			e.fail(ctx, op, err, rep)
			continue
		}
		var patch api.Patch
		if err := json.Unmarshal(payload, &patch); err != nil {
			e.fail(ctx, op, fmt.Errorf("failed to decode patch: %w", err), rep)
			continue
		}

		body, err := e.reg[op.Kind].Update(ctx, e.api, op.PlanID, id, patch, op.BaseUpdatedAt)
		var conflict *api.ConflictError
		switch {
		case errors.As(err, &conflict):
			e.markConflict(ctx, op, id, conflict, rep)
			continue
		case err != nil:
			e.fail(ctx, op, err, rep)
			continue
		}

		if err := e.confirmUpdate(ctx, op.Kind, id, body); err != nil {
			e.log.Error(ctx, "failed to refresh cache after update", "op", op.ID, "error", err)
		}
		if _, err := e.store.Oplog.SetStatus(ctx, op.ID, models.StatusDone, ""); err != nil {
			e.log.Error(ctx, "failed to mark operation done", "op", op.ID, "error", err)
			continue
		}
		rep.Updated++
	}
}

// replayDeletes processes deletes child-before-parent, the reverse of the
// create order, to satisfy referential constraints server-side.
func (e *Engine) replayDeletes(ctx context.Context, ops []*models.Operation, rep *Report) {
	sort.SliceStable(ops, func(i, j int) bool {
		ri, rj := models.CreateRank(ops[i].Kind), models.CreateRank(ops[j].Kind)
		if ri != rj {
			return ri > rj
		}
		return ops[i].CreatedAt.Before(ops[j].CreatedAt)
	})

	for _, op := range ops {
		if _, err := e.store.Oplog.SetStatus(ctx, op.ID, models.StatusSyncing, ""); err != nil {
			e.log.Error(ctx, "failed to mark operation syncing", "op", op.ID, "error", err)
			continue
		}

		id, ok, err := e.store.IDMap.Resolve(ctx, op.Kind, op.EntityID)
		if err != nil {
			e.fail(ctx, op, err, rep)
			continue
		}
		if !ok {
			// never reached the server, nothing to delete there
			if derr := e.store.Cache.Delete(ctx, op.Kind, op.EntityID); derr != nil {
				e.fail(ctx, op, derr, rep)
				continue
			}
			if _, serr := e.store.Oplog.SetStatus(ctx, op.ID, models.StatusDone, ""); serr != nil {
				e.log.Error(ctx, "failed to mark operation done", "op", op.ID, "error", serr)
				continue
			}
			rep.Deleted++
			continue
		}

		err = e.reg[op.Kind].Delete(ctx, e.api, op.PlanID, id)
		if err != nil && !errors.Is(err, api.ErrNotFound) {
			e.fail(ctx, op, err, rep)
			continue
		}

		err = e.store.WithTx(ctx, func(ctx context.Context, r store.Repos) error {
			if op.Kind == models.KindPlan {
				if derr := r.Cache.DeleteByPlan(ctx, id); derr != nil {
					return derr
				}
				return r.Snapshots.Delete(ctx, id)
			}
			return r.Cache.Delete(ctx, op.Kind, id)
		})
		if err != nil {
			e.fail(ctx, op, err, rep)
			continue
		}
		if _, err := e.store.Oplog.SetStatus(ctx, op.ID, models.StatusDone, ""); err != nil {
			e.log.Error(ctx, "failed to mark operation done", "op", op.ID, "error", err)
			continue
		}
		rep.Deleted++
	}
}

// finish purges done rows, recomputes the status counters, and stamps the
// sync timestamps. The success timestamp moves only when nothing failed.
func (e *Engine) finish(ctx context.Context, rep *Report) error {
	purged, err := e.store.Oplog.PurgeDone(ctx)
	if err != nil {
		return err
	}
	e.log.Debug(ctx, "purged confirmed operations", "count", purged)

	counts, err := e.store.Oplog.Counts(ctx)
	if err != nil {
		return err
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	err = e.store.WithTx(ctx, func(ctx context.Context, r store.Repos) error {
		for key, status := range map[string]models.OpStatus{
			syncmeta.KeyPendingOps:  models.StatusPending,
			syncmeta.KeyFailedOps:   models.StatusFailed,
			syncmeta.KeyDeadOps:     models.StatusDead,
			syncmeta.KeyConflictOps: models.StatusConflict,
		} {
			if serr := r.Meta.SetInt64(ctx, key, counts[status]); serr != nil {
				return serr
			}
		}
		if serr := r.Meta.Set(ctx, syncmeta.KeyLastSyncAt, now); serr != nil {
			return serr
		}
		if rep.Failed == 0 && rep.Dead == 0 {
			return r.Meta.Set(ctx, syncmeta.KeyLastSyncOKAt, now)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to record sync bookkeeping: %w", err)
	}
	return nil
}

// resolveFKs rewrites payload fields that still carry temp foreign keys.
// Only the registered fields of the kind are touched; an unmapped temp key
// is an error because the owning create must have failed.
func (e *Engine) resolveFKs(ctx context.Context, kind models.Kind, payload json.RawMessage) (json.RawMessage, error) {
	fks := e.reg[kind].FKFields
	if len(fks) == 0 {
		return payload, nil
	}
	var m map[string]any
	if err := json.Unmarshal(payload, &m); err != nil {
		return nil, fmt.Errorf("failed to decode payload: %w", err)
	}

	changed := false
	for field, fkKind := range fks {
		num, ok := m[field].(float64)
		if !ok {
			continue
		}
		id := int64(num)
		if !models.IsTemporary(id) {
			continue
		}
		serverID, mapped, err := e.store.IDMap.Resolve(ctx, fkKind, id)
		if err != nil {
			return nil, err
		}
		if !mapped {
			return nil, fmt.Errorf("%s %s %d: %w", field, fkKind, id, ErrUnresolved)
		}
		m[field] = serverID
		changed = true
	}
	if !changed {
		return payload, nil
	}
	out, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload: %w", err)
	}
	return out, nil
}

// rewriteChildren repoints cached children of a freshly mapped parent: the
// parent_id column and the foreign-key field inside each child body.
func (e *Engine) rewriteChildren(ctx context.Context, r store.Repos, parent models.Kind, tempID, serverID int64) error {
	for childKind, ops := range e.reg {
		if ops.Parent != parent {
			continue
		}
		field := ""
		for f, k := range ops.FKFields {
			if k == parent {
				field = f
				break
			}
		}
		children, err := r.Cache.ListByParentAny(ctx, childKind, tempID)
		if err != nil {
			return err
		}
		for _, child := range children {
			child.ParentID = serverID
			if field != "" {
				body, berr := setJSONField(child.Body, field, serverID)
				if berr != nil {
					return berr
				}
				child.Body = body
			}
			if perr := r.Cache.Put(ctx, child); perr != nil {
				return perr
			}
		}
	}
	return nil
}

// confirmUpdate replaces the cached body with the server's authoritative
// copy and clears the local edit flags.
func (e *Engine) confirmUpdate(ctx context.Context, kind models.Kind, id int64, body json.RawMessage) error {
	rec, err := e.store.Cache.GetAny(ctx, kind, id)
	if err != nil {
		return err
	}
	if rec == nil {
		return nil
	}
	rec.Body = body
	rec.Meta = models.LocalMeta{LocalUpdatedAt: time.Now().UTC()}
	return e.store.Cache.Put(ctx, rec)
}

// markConflict parks the operation for manual resolution and attaches the
// server's snapshot to the cached record. Conflicted operations are never
// retried automatically.
func (e *Engine) markConflict(ctx context.Context, op *models.Operation, id int64, ce *api.ConflictError, rep *Report) {
	now := time.Now().UTC()
	err := e.store.WithTx(ctx, func(ctx context.Context, r store.Repos) error {
		if _, serr := r.Oplog.SetStatus(ctx, op.ID, models.StatusConflict, ce.Error()); serr != nil {
			return serr
		}
		return r.Cache.SetConflict(ctx, op.Kind, id, ce.Server, now)
	})
	if err != nil {
		e.log.Error(ctx, "failed to record conflict", "op", op.ID, "error", err)
		return
	}
	rep.Conflicts++
	e.log.Warn(ctx, "update conflicted", "kind", op.Kind, "id", id, "op", op.ID)
}

// fail transitions an operation through the retry ceiling and tallies it.
func (e *Engine) fail(ctx context.Context, op *models.Operation, err error, rep *Report) {
	status, serr := e.store.Oplog.SetStatus(ctx, op.ID, models.StatusFailed, err.Error())
	if serr != nil {
		e.log.Error(ctx, "failed to mark operation failed", "op", op.ID, "error", serr)
		return
	}
	if status == models.StatusDead {
		rep.Dead++
	} else {
		rep.Failed++
	}
	e.log.Warn(ctx, "operation failed", "op", op.ID, "kind", op.Kind,
		"action", op.Action, "status", status, "error", err)
}

func setJSONField(body json.RawMessage, key string, value any) (json.RawMessage, error) {
	var m map[string]any
	if err := json.Unmarshal(body, &m); err != nil {
		return nil, fmt.Errorf("failed to decode cached body: %w", err)
	}
	m[key] = value
	out, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to encode cached body: %w", err)
	}
	return out, nil
}
