package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/voyago/tripsync/internal/api"
	"github.com/voyago/tripsync/internal/models"
)

// Moments is the offline-aware moment repository. Moments may be created
// under a schedule that itself still carries a temp id; the queued payload
// keeps the temp foreign key and the sync engine resolves it at replay.
type Moments struct {
	*core
}

func (s *Moments) List(ctx context.Context, scheduleID int64) ([]models.Moment, error) {
	if !models.IsTemporary(scheduleID) {
		items, err := s.api.ListMoments(ctx, scheduleID)
		if err == nil {
			recs := make([]*models.CachedRecord, 0, len(items))
			for _, it := range items {
				rec, rerr := MomentRecord(it)
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
	}

	recs, lerr := s.store.Cache.ListByParent(ctx, models.KindMoment, scheduleID)
	if lerr != nil {
		return nil, lerr
	}
	return decodeAll[models.Moment](recs)
}

func (s *Moments) Get(ctx context.Context, id int64) (*models.Moment, error) {
	return cachedOne[models.Moment](ctx, s.core, models.KindMoment, id)
}

func (s *Moments) Create(ctx context.Context, in models.Moment) (*models.Moment, error) {
	if err := validate.Struct(in); err != nil {
		return nil, fmt.Errorf("invalid moment: %w", err)
	}
	if !models.IsTemporary(in.ScheduleID) {
		out, err := s.api.CreateMoment(ctx, in)
		if err == nil {
			if rec, rerr := MomentRecord(*out); rerr == nil {
				s.fillCache(ctx, rec)
			}
			return out, nil
		}
		if !s.fallback(err) {
			return nil, err
		}
	} else if !s.mode.OfflineEnabled() {
		// a temp parent can only exist with offline mode on
		return nil, fmt.Errorf("schedule %d: %w", in.ScheduleID, ErrNoOfflineData)
	}

	body, merr := json.Marshal(in)
	if merr != nil {
		return nil, fmt.Errorf("failed to encode moment: %w", merr)
	}
	tempID, cerr := s.offlineCreate(ctx, models.KindMoment, in.PlanID, in.ScheduleID, body)
	if cerr != nil {
		return nil, cerr
	}
	in.ID = tempID
	return &in, nil
}

func (s *Moments) Update(ctx context.Context, id int64, patch api.Patch) (*models.Moment, error) {
	if !models.IsTemporary(id) {
		base := s.cachedBase(ctx, models.KindMoment, id)
		out, err := s.api.UpdateMoment(ctx, id, patch, base)
		if err == nil {
			if rec, rerr := MomentRecord(*out); rerr == nil {
				s.fillCache(ctx, rec)
			}
			return out, nil
		}
		if !s.fallback(err) {
			return nil, err
		}
	}
	if uerr := s.offlineUpdate(ctx, models.KindMoment, id, patch); uerr != nil {
		return nil, uerr
	}
	return cachedOne[models.Moment](ctx, s.core, models.KindMoment, id)
}

func (s *Moments) Delete(ctx context.Context, id int64) error {
	if models.IsTemporary(id) {
		return s.offlineDelete(ctx, models.KindMoment, id)
	}
	err := s.api.DeleteMoment(ctx, id)
	if err == nil || errors.Is(err, api.ErrNotFound) {
		return s.store.Cache.Delete(ctx, models.KindMoment, id)
	}
	if !s.fallback(err) {
		return err
	}
	return s.offlineDelete(ctx, models.KindMoment, id)
}
