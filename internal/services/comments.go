package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/voyago/tripsync/internal/api"
	"github.com/voyago/tripsync/internal/models"
)

// Comments is the offline-aware comment repository. Comments nest under
// moments, the deepest level of the tree, so their queued payloads may carry
// temp moment ids two hops away from a temp schedule.
type Comments struct {
	*core
}

func (s *Comments) List(ctx context.Context, momentID int64) ([]models.Comment, error) {
	if !models.IsTemporary(momentID) {
		items, err := s.api.ListComments(ctx, momentID)
		if err == nil {
			recs := make([]*models.CachedRecord, 0, len(items))
			for _, it := range items {
				rec, rerr := CommentRecord(it)
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

	recs, lerr := s.store.Cache.ListByParent(ctx, models.KindComment, momentID)
	if lerr != nil {
		return nil, lerr
	}
	return decodeAll[models.Comment](recs)
}

func (s *Comments) Create(ctx context.Context, in models.Comment) (*models.Comment, error) {
	if err := validate.Struct(in); err != nil {
		return nil, fmt.Errorf("invalid comment: %w", err)
	}
	if !models.IsTemporary(in.MomentID) {
		out, err := s.api.CreateComment(ctx, in)
		if err == nil {
			if rec, rerr := CommentRecord(*out); rerr == nil {
				s.fillCache(ctx, rec)
			}
			return out, nil
		}
		if !s.fallback(err) {
			return nil, err
		}
	} else if !s.mode.OfflineEnabled() {
		return nil, fmt.Errorf("moment %d: %w", in.MomentID, ErrNoOfflineData)
	}

	body, merr := json.Marshal(in)
	if merr != nil {
		return nil, fmt.Errorf("failed to encode comment: %w", merr)
	}
	tempID, cerr := s.offlineCreate(ctx, models.KindComment, in.PlanID, in.MomentID, body)
	if cerr != nil {
		return nil, cerr
	}
	in.ID = tempID
	return &in, nil
}

func (s *Comments) Update(ctx context.Context, id int64, patch api.Patch) (*models.Comment, error) {
	if !models.IsTemporary(id) {
		base := s.cachedBase(ctx, models.KindComment, id)
		out, err := s.api.UpdateComment(ctx, id, patch, base)
		if err == nil {
			if rec, rerr := CommentRecord(*out); rerr == nil {
				s.fillCache(ctx, rec)
			}
			return out, nil
		}
		if !s.fallback(err) {
			return nil, err
		}
	}
	if uerr := s.offlineUpdate(ctx, models.KindComment, id, patch); uerr != nil {
		return nil, uerr
	}
	return cachedOne[models.Comment](ctx, s.core, models.KindComment, id)
}

func (s *Comments) Delete(ctx context.Context, id int64) error {
	if models.IsTemporary(id) {
		return s.offlineDelete(ctx, models.KindComment, id)
	}
	err := s.api.DeleteComment(ctx, id)
	if err == nil || errors.Is(err, api.ErrNotFound) {
		return s.store.Cache.Delete(ctx, models.KindComment, id)
	}
	if !s.fallback(err) {
		return err
	}
	return s.offlineDelete(ctx, models.KindComment, id)
}
