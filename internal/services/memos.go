package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/voyago/tripsync/internal/api"
	"github.com/voyago/tripsync/internal/models"
)

// Memos is the offline-aware memo repository. Memo endpoints are nested
// under their plan, so updates and deletes carry the plan id.
type Memos struct {
	*core
}

func (s *Memos) List(ctx context.Context, planID int64) ([]models.Memo, error) {
	items, err := s.api.ListMemos(ctx, planID)
	if err == nil {
		recs := make([]*models.CachedRecord, 0, len(items))
		for _, it := range items {
			rec, rerr := MemoRecord(it)
			if rerr != nil {
				return nil, rerr
			}
			recs = append(recs, rec)
		}
		s.fillCache(ctx, recs...)
		return items, nil
	}
	if !s.fallback(err) {
		return nil, err
	}

	recs, lerr := s.store.Cache.ListByParent(ctx, models.KindMemo, planID)
	if lerr != nil {
		return nil, lerr
	}
	if len(recs) == 0 {
		ok, serr := s.hasSnapshot(ctx, planID)
		if serr != nil {
			return nil, serr
		}
		if !ok {
			return nil, fmt.Errorf("memos of plan %d: %w", planID, ErrNoOfflineData)
		}
	}
	return decodeAll[models.Memo](recs)
}

func (s *Memos) Create(ctx context.Context, in models.Memo) (*models.Memo, error) {
	if err := validate.Struct(in); err != nil {
		return nil, fmt.Errorf("invalid memo: %w", err)
	}
	out, err := s.api.CreateMemo(ctx, in)
	if err == nil {
		if rec, rerr := MemoRecord(*out); rerr == nil {
			s.fillCache(ctx, rec)
		}
		return out, nil
	}
	if !s.fallback(err) {
		return nil, err
	}

	body, merr := json.Marshal(in)
	if merr != nil {
		return nil, fmt.Errorf("failed to encode memo: %w", merr)
	}
	tempID, cerr := s.offlineCreate(ctx, models.KindMemo, in.PlanID, in.PlanID, body)
	if cerr != nil {
		return nil, cerr
	}
	in.ID = tempID
	return &in, nil
}

func (s *Memos) Update(ctx context.Context, planID, id int64, patch api.Patch) (*models.Memo, error) {
	if !models.IsTemporary(id) {
		base := s.cachedBase(ctx, models.KindMemo, id)
		out, err := s.api.UpdateMemo(ctx, planID, id, patch, base)
		if err == nil {
			if rec, rerr := MemoRecord(*out); rerr == nil {
				s.fillCache(ctx, rec)
			}
			return out, nil
		}
		if !s.fallback(err) {
			return nil, err
		}
	}
	if uerr := s.offlineUpdate(ctx, models.KindMemo, id, patch); uerr != nil {
		return nil, uerr
	}
	return cachedOne[models.Memo](ctx, s.core, models.KindMemo, id)
}

func (s *Memos) Delete(ctx context.Context, planID, id int64) error {
	if models.IsTemporary(id) {
		return s.offlineDelete(ctx, models.KindMemo, id)
	}
	err := s.api.DeleteMemo(ctx, planID, id)
	if err == nil || errors.Is(err, api.ErrNotFound) {
		return s.store.Cache.Delete(ctx, models.KindMemo, id)
	}
	if !s.fallback(err) {
		return err
	}
	return s.offlineDelete(ctx, models.KindMemo, id)
}
