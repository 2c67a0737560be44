package syncer

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/voyago/tripsync/internal/models"
	"github.com/voyago/tripsync/internal/store"
)

type entityKey struct {
	kind models.Kind
	id   int64
}

// Compact collapses redundant queued operations per entity before replay:
//
//   - create + delete cancel out entirely and the cached record is dropped;
//   - updates after a create fold into the create's payload;
//   - multiple updates fold into the latest one, fields overlaid in order;
//   - a delete supersedes any prior updates.
//
// Dropped rows are physically removed so a crash mid-sync cannot resurrect
// them. Running it twice yields what running it once does. Returns how many
// operations were eliminated.
func (e *Engine) Compact(ctx context.Context) (int64, error) {
	pending, err := e.store.Oplog.Pending(ctx)
	if err != nil {
		return 0, err
	}

	groups := make(map[entityKey][]*models.Operation)
	var order []entityKey
	for _, op := range pending {
		k := entityKey{op.Kind, op.EntityID}
		if _, seen := groups[k]; !seen {
			order = append(order, k)
		}
		groups[k] = append(groups[k], op)
	}

	var dropped int64
	err = e.store.WithTx(ctx, func(ctx context.Context, r store.Repos) error {
		for _, k := range order {
			n, cerr := compactGroup(ctx, r, k, groups[k])
			if cerr != nil {
				return cerr
			}
			dropped += n
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to compact operation log: %w", err)
	}
	if dropped > 0 {
		e.log.Info(ctx, "compacted operation log", "dropped", dropped)
	}
	return dropped, nil
}

// compactGroup applies the rules to one entity's chronologically ordered
// operations.
func compactGroup(ctx context.Context, r store.Repos, k entityKey, ops []*models.Operation) (int64, error) {
	if len(ops) < 2 {
		return 0, nil
	}

	var create, del *models.Operation
	var updates []*models.Operation
	for _, op := range ops {
		switch op.Action {
		case models.ActionCreate:
			create = op
		case models.ActionUpdate:
			updates = append(updates, op)
		case models.ActionDelete:
			del = op
		}
	}

	switch {
	case create != nil && del != nil:
		// the entity never needs to exist server-side
		for _, op := range ops {
			if err := r.Oplog.Delete(ctx, op.ID); err != nil {
				return 0, err
			}
		}
		if err := r.Cache.Delete(ctx, k.kind, k.id); err != nil {
			return 0, err
		}
		return int64(len(ops)), nil

	case del != nil:
		var n int64
		for _, op := range ops {
			if op == del {
				continue
			}
			if err := r.Oplog.Delete(ctx, op.ID); err != nil {
				return 0, err
			}
			n++
		}
		return n, nil

	case create != nil:
		if len(updates) == 0 {
			return 0, nil
		}
		merged, err := overlay(create.Payload, updates)
		if err != nil {
			return 0, err
		}
		if err := r.Oplog.UpdatePayload(ctx, create.ID, merged); err != nil {
			return 0, err
		}
		for _, op := range updates {
			if err := r.Oplog.Delete(ctx, op.ID); err != nil {
				return 0, err
			}
		}
		return int64(len(updates)), nil

	default:
		if len(updates) < 2 {
			return 0, nil
		}
		// the latest operation survives so its retry metadata carries over
		survivor := updates[len(updates)-1]
		merged, err := overlay(updates[0].Payload, updates[1:])
		if err != nil {
			return 0, err
		}
		if err := r.Oplog.UpdatePayload(ctx, survivor.ID, merged); err != nil {
			return 0, err
		}
		for _, op := range updates[:len(updates)-1] {
			if err := r.Oplog.Delete(ctx, op.ID); err != nil {
				return 0, err
			}
		}
		return int64(len(updates) - 1), nil
	}
}

// overlay applies the payloads of ops onto base in order, later fields
// winning. The id field never moves between payloads.
func overlay(base json.RawMessage, ops []*models.Operation) (json.RawMessage, error) {
	var m map[string]any
	if err := json.Unmarshal(base, &m); err != nil {
		return nil, fmt.Errorf("failed to decode payload: %w", err)
	}
	for _, op := range ops {
		var patch map[string]any
		if err := json.Unmarshal(op.Payload, &patch); err != nil {
			return nil, fmt.Errorf("failed to decode payload of %s: %w", op.ID, err)
		}
		for key, v := range patch {
			if key == "id" {
				continue
			}
			m[key] = v
		}
	}
	out, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to encode merged payload: %w", err)
	}
	return out, nil
}
