package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/voyago/tripsync/internal/api"
	"github.com/voyago/tripsync/internal/models"
)

// Plans is the offline-aware plan repository. Plan creation is blocked while
// disconnected: the server assigns owner and invite state that cannot be
// synthesized locally.
type Plans struct {
	*core
}

func (s *Plans) List(ctx context.Context) ([]models.Plan, error) {
	plans, err := s.api.ListPlans(ctx)
	if err == nil {
		recs := make([]*models.CachedRecord, 0, len(plans))
		for _, p := range plans {
			rec, rerr := PlanRecord(p)
			if rerr != nil {
				return nil, rerr
			}
			recs = append(recs, rec)
		}
		s.fillCache(ctx, recs...)
		return plans, nil
	}
	if !s.fallback(err) {
		return nil, err
	}

	recs, lerr := s.store.Cache.ListKind(ctx, models.KindPlan)
	if lerr != nil {
		return nil, lerr
	}
	if len(recs) == 0 {
		snaps, serr := s.store.Snapshots.List(ctx)
		if serr != nil {
			return nil, serr
		}
		if len(snaps) == 0 {
			return nil, fmt.Errorf("plans: %w", ErrNoOfflineData)
		}
	}
	return decodeAll[models.Plan](recs)
}

func (s *Plans) Get(ctx context.Context, id int64) (*api.PlanDetail, error) {
	d, err := s.api.GetPlan(ctx, id)
	if err == nil {
		recs := make([]*models.CachedRecord, 0, len(d.Schedules)+1)
		if rec, rerr := PlanRecord(d.Plan); rerr == nil {
			recs = append(recs, rec)
		}
		for _, sc := range d.Schedules {
			if rec, rerr := ScheduleRecord(sc); rerr == nil {
				recs = append(recs, rec)
			}
		}
		s.fillCache(ctx, recs...)
		return d, nil
	}
	if !s.fallback(err) {
		return nil, err
	}

	plan, lerr := cachedOne[models.Plan](ctx, s.core, models.KindPlan, id)
	if lerr != nil {
		return nil, lerr
	}
	recs, lerr := s.store.Cache.ListByParent(ctx, models.KindSchedule, id)
	if lerr != nil {
		return nil, lerr
	}
	schedules, lerr := decodeAll[models.Schedule](recs)
	if lerr != nil {
		return nil, lerr
	}
	return &api.PlanDetail{Plan: *plan, Schedules: schedules}, nil
}

func (s *Plans) Create(ctx context.Context, p models.Plan) (*models.Plan, error) {
	if err := validate.Struct(p); err != nil {
		return nil, fmt.Errorf("invalid plan: %w", err)
	}
	if s.mode.OfflineEnabled() && !s.mode.Online() {
		return nil, fmt.Errorf("plan creation: %w", ErrBlockedOffline)
	}
	out, err := s.api.CreatePlan(ctx, p)
	if err != nil {
		if s.fallback(err) {
			return nil, fmt.Errorf("plan creation: %w", ErrBlockedOffline)
		}
		return nil, err
	}
	if rec, rerr := PlanRecord(*out); rerr == nil {
		s.fillCache(ctx, rec)
	}
	return out, nil
}

func (s *Plans) Update(ctx context.Context, id int64, patch api.Patch) (*models.Plan, error) {
	base := s.cachedBase(ctx, models.KindPlan, id)
	out, err := s.api.UpdatePlan(ctx, id, patch, base)
	if err == nil {
		if rec, rerr := PlanRecord(*out); rerr == nil {
			s.fillCache(ctx, rec)
		}
		return out, nil
	}
	if !s.fallback(err) {
		return nil, err
	}
	if uerr := s.offlineUpdate(ctx, models.KindPlan, id, patch); uerr != nil {
		return nil, uerr
	}
	return cachedOne[models.Plan](ctx, s.core, models.KindPlan, id)
}

func (s *Plans) Delete(ctx context.Context, id int64) error {
	if models.IsTemporary(id) {
		return s.offlineDelete(ctx, models.KindPlan, id)
	}
	err := s.api.DeletePlan(ctx, id)
	if err == nil || errors.Is(err, api.ErrNotFound) {
		if derr := s.store.Cache.DeleteByPlan(ctx, id); derr != nil {
			return derr
		}
		return s.store.Snapshots.Delete(ctx, id)
	}
	if !s.fallback(err) {
		return err
	}
	return s.offlineDelete(ctx, models.KindPlan, id)
}
