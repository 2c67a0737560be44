package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/voyago/tripsync/internal/api"
	"github.com/voyago/tripsync/internal/models"
)

// Schedules is the offline-aware schedule repository.
type Schedules struct {
	*core
}

func (s *Schedules) List(ctx context.Context, planID int64) ([]models.Schedule, error) {
	items, err := s.api.ListSchedules(ctx, planID)
	if err == nil {
		recs := make([]*models.CachedRecord, 0, len(items))
		for _, it := range items {
			rec, rerr := ScheduleRecord(it)
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

	recs, lerr := s.store.Cache.ListByParent(ctx, models.KindSchedule, planID)
	if lerr != nil {
		return nil, lerr
	}
	if len(recs) == 0 {
		ok, serr := s.hasSnapshot(ctx, planID)
		if serr != nil {
			return nil, serr
		}
		if !ok {
			return nil, fmt.Errorf("schedules of plan %d: %w", planID, ErrNoOfflineData)
		}
	}
	return decodeAll[models.Schedule](recs)
}

func (s *Schedules) Get(ctx context.Context, id int64) (*models.Schedule, error) {
	return cachedOne[models.Schedule](ctx, s.core, models.KindSchedule, id)
}

func (s *Schedules) Create(ctx context.Context, in models.Schedule) (*models.Schedule, error) {
	if err := validate.Struct(in); err != nil {
		return nil, fmt.Errorf("invalid schedule: %w", err)
	}
	out, err := s.api.CreateSchedule(ctx, in)
	if err == nil {
		if rec, rerr := ScheduleRecord(*out); rerr == nil {
			s.fillCache(ctx, rec)
		}
		return out, nil
	}
	if !s.fallback(err) {
		return nil, err
	}

	body, merr := json.Marshal(in)
	if merr != nil {
		return nil, fmt.Errorf("failed to encode schedule: %w", merr)
	}
	tempID, cerr := s.offlineCreate(ctx, models.KindSchedule, in.PlanID, in.PlanID, body)
	if cerr != nil {
		return nil, cerr
	}
	in.ID = tempID
	return &in, nil
}

func (s *Schedules) Update(ctx context.Context, id int64, patch api.Patch) (*models.Schedule, error) {
	if !models.IsTemporary(id) {
		base := s.cachedBase(ctx, models.KindSchedule, id)
		out, err := s.api.UpdateSchedule(ctx, id, patch, base)
		if err == nil {
			if rec, rerr := ScheduleRecord(*out); rerr == nil {
				s.fillCache(ctx, rec)
			}
			return out, nil
		}
		if !s.fallback(err) {
			return nil, err
		}
	}
	if uerr := s.offlineUpdate(ctx, models.KindSchedule, id, patch); uerr != nil {
		return nil, uerr
	}
	return cachedOne[models.Schedule](ctx, s.core, models.KindSchedule, id)
}

func (s *Schedules) Delete(ctx context.Context, id int64) error {
	if models.IsTemporary(id) {
		return s.offlineDelete(ctx, models.KindSchedule, id)
	}
	err := s.api.DeleteSchedule(ctx, id)
	if err == nil || errors.Is(err, api.ErrNotFound) {
		return s.store.Cache.Delete(ctx, models.KindSchedule, id)
	}
	if !s.fallback(err) {
		return err
	}
	return s.offlineDelete(ctx, models.KindSchedule, id)
}
