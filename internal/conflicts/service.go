// Package conflicts surfaces operations parked by the sync engine after an
// optimistic-concurrency mismatch and applies the user's resolution. Either
// resolution feeds back into the engine's normal update path on the next run.
package conflicts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/voyago/tripsync/internal/logging"
	"github.com/voyago/tripsync/internal/models"
	"github.com/voyago/tripsync/internal/store"
)

var (
	// ErrNotConflicted means the operation is absent or not awaiting
	// resolution.
	ErrNotConflicted = errors.New("operation is not conflicted")

	// ErrNoServerVersion means the cached record carries no server snapshot
	// to resolve against.
	ErrNoServerVersion = errors.New("no server snapshot attached")
)

// FieldDiff is one locally edited field whose value differs server-side.
type FieldDiff struct {
	Field  string
	Label  string
	Mine   any
	Theirs any
}

// Conflict is one parked operation prepared for display.
type Conflict struct {
	OpID       string
	Kind       models.Kind
	EntityID   int64
	PlanID     int64
	Diffs      []FieldDiff
	DetectedAt time.Time
}

type Service struct {
	store *store.Store
	log   logging.Logger
}

func New(st *store.Store, log logging.Logger) *Service {
	return &Service{store: st, log: log}
}

// List returns every conflict awaiting resolution, field diffs computed
// against the server snapshot attached to the cached record.
func (s *Service) List(ctx context.Context) ([]Conflict, error) {
	ops, err := s.store.Oplog.Conflicts(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]Conflict, 0, len(ops))
	for _, op := range ops {
		id, _, rerr := s.store.IDMap.Resolve(ctx, op.Kind, op.EntityID)
		if rerr != nil {
			return nil, rerr
		}
		rec, rerr := s.store.Cache.GetAny(ctx, op.Kind, id)
		if rerr != nil {
			return nil, rerr
		}
		c := Conflict{OpID: op.ID, Kind: op.Kind, EntityID: id, PlanID: op.PlanID, DetectedAt: op.UpdatedAt}
		if rec != nil && len(rec.Meta.ServerVersion) > 0 {
			diffs, derr := diff(op.Kind, op.Payload, rec.Meta.ServerVersion)
			if derr != nil {
				return nil, derr
			}
			c.Diffs = diffs
		}
		out = append(out, c)
	}
	return out, nil
}

// KeepMine re-enqueues the local payload as a fresh update with no base
// timestamp, an explicit force-overwrite, and clears the conflict marks. The
// next sync run replays it through the normal update phase.
func (s *Service) KeepMine(ctx context.Context, opID string) error {
	op, rec, err := s.load(ctx, opID)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	forced := &models.Operation{
		ID: uuid.NewString(), PlanID: op.PlanID, Kind: op.Kind, EntityID: op.EntityID,
		Action: models.ActionUpdate, Payload: op.Payload,
		Status: models.StatusPending, CreatedAt: now, UpdatedAt: now,
	}
	err = s.store.WithTx(ctx, func(ctx context.Context, r store.Repos) error {
		if derr := r.Oplog.Delete(ctx, op.ID); derr != nil {
			return derr
		}
		if aerr := r.Oplog.Append(ctx, forced); aerr != nil {
			return aerr
		}
		rec.Meta.Conflict = false
		rec.Meta.ServerVersion = nil
		rec.Meta.LocalUpdatedAt = now
		return r.Cache.Put(ctx, rec)
	})
	if err != nil {
		return fmt.Errorf("failed to keep local version: %w", err)
	}
	s.log.Info(ctx, "conflict resolved locally", "kind", op.Kind, "id", rec.ID)
	return nil
}

// KeepServer discards the local edit: the cached record becomes the server
// snapshot wholesale, all local-meta flags clear, and the parked operation
// is dropped.
func (s *Service) KeepServer(ctx context.Context, opID string) error {
	op, rec, err := s.load(ctx, opID)
	if err != nil {
		return err
	}
	if len(rec.Meta.ServerVersion) == 0 {
		return fmt.Errorf("%s %d: %w", op.Kind, rec.ID, ErrNoServerVersion)
	}

	now := time.Now().UTC()
	err = s.store.WithTx(ctx, func(ctx context.Context, r store.Repos) error {
		if derr := r.Oplog.Delete(ctx, op.ID); derr != nil {
			return derr
		}
		rec.Body = rec.Meta.ServerVersion
		rec.Meta = models.LocalMeta{LocalUpdatedAt: now}
		return r.Cache.Put(ctx, rec)
	})
	if err != nil {
		return fmt.Errorf("failed to keep server version: %w", err)
	}
	s.log.Info(ctx, "conflict resolved server-side", "kind", op.Kind, "id", rec.ID)
	return nil
}

func (s *Service) load(ctx context.Context, opID string) (*models.Operation, *models.CachedRecord, error) {
	op, err := s.store.Oplog.Get(ctx, opID)
	if err != nil {
		return nil, nil, err
	}
	if op == nil || op.Status != models.StatusConflict {
		return nil, nil, fmt.Errorf("operation %s: %w", opID, ErrNotConflicted)
	}
	id, _, err := s.store.IDMap.Resolve(ctx, op.Kind, op.EntityID)
	if err != nil {
		return nil, nil, err
	}
	rec, err := s.store.Cache.GetAny(ctx, op.Kind, id)
	if err != nil {
		return nil, nil, err
	}
	if rec == nil {
		return nil, nil, fmt.Errorf("operation %s: cached record missing: %w", opID, ErrNotConflicted)
	}
	return op, rec, nil
}

// diff lists the keys of the local payload whose value differs from the
// server snapshot's value for that key.
func diff(kind models.Kind, payload, server json.RawMessage) ([]FieldDiff, error) {
	var mine, theirs map[string]any
	if err := json.Unmarshal(payload, &mine); err != nil {
		return nil, fmt.Errorf("failed to decode local payload: %w", err)
	}
	if err := json.Unmarshal(server, &theirs); err != nil {
		return nil, fmt.Errorf("failed to decode server snapshot: %w", err)
	}

	fields := make([]string, 0, len(mine))
	for f := range mine {
		if f != "id" {
			fields = append(fields, f)
		}
	}
	sort.Strings(fields)

	var out []FieldDiff
	for _, f := range fields {
		if reflect.DeepEqual(mine[f], theirs[f]) {
			continue
		}
		out = append(out, FieldDiff{Field: f, Label: label(kind, f), Mine: mine[f], Theirs: theirs[f]})
	}
	return out, nil
}
