package services

import (
	"context"
	"fmt"

	"github.com/voyago/tripsync/internal/models"
)

// Members is the membership façade: reads are cached for offline display,
// writes are online-only because invite codes and uniqueness checks happen
// server-side and cannot be queued.
type Members struct {
	*core
}

func (s *Members) List(ctx context.Context, planID int64) ([]models.Member, error) {
	items, err := s.api.ListMembers(ctx, planID)
	if err == nil {
		recs := make([]*models.CachedRecord, 0, len(items))
		for _, it := range items {
			rec, rerr := MemberRecord(it)
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

	recs, lerr := s.store.Cache.ListByParent(ctx, models.KindMember, planID)
	if lerr != nil {
		return nil, lerr
	}
	if len(recs) == 0 {
		ok, serr := s.hasSnapshot(ctx, planID)
		if serr != nil {
			return nil, serr
		}
		if !ok {
			return nil, fmt.Errorf("members of plan %d: %w", planID, ErrNoOfflineData)
		}
	}
	return decodeAll[models.Member](recs)
}

func (s *Members) Add(ctx context.Context, planID, userID int64, role string) (*models.Member, error) {
	if s.mode.OfflineEnabled() && !s.mode.Online() {
		return nil, fmt.Errorf("membership change: %w", ErrBlockedOffline)
	}
	out, err := s.api.AddMember(ctx, planID, userID, role)
	if err != nil {
		if s.fallback(err) {
			return nil, fmt.Errorf("membership change: %w", ErrBlockedOffline)
		}
		return nil, err
	}
	if rec, rerr := MemberRecord(*out); rerr == nil {
		s.fillCache(ctx, rec)
	}
	return out, nil
}

func (s *Members) Remove(ctx context.Context, planID, userID int64) error {
	if s.mode.OfflineEnabled() && !s.mode.Online() {
		return fmt.Errorf("membership change: %w", ErrBlockedOffline)
	}
	err := s.api.RemoveMember(ctx, planID, userID)
	if err != nil {
		if s.fallback(err) {
			return fmt.Errorf("membership change: %w", ErrBlockedOffline)
		}
		return err
	}
	return s.store.Cache.Delete(ctx, models.KindMember, userID)
}
