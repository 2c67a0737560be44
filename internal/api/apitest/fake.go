// Package apitest provides a configurable fake api.Client for tests. Every
// method delegates to an optional function field; unset fields fail with
// api.ErrUnavailable, which conveniently simulates a dead network.
package apitest

import (
	"context"
	"time"

	"github.com/voyago/tripsync/internal/api"
	"github.com/voyago/tripsync/internal/models"
)

type Fake struct {
	PingFn func(ctx context.Context) error

	ListPlansFn  func(ctx context.Context) ([]models.Plan, error)
	GetPlanFn    func(ctx context.Context, id int64) (*api.PlanDetail, error)
	CreatePlanFn func(ctx context.Context, p models.Plan) (*models.Plan, error)
	UpdatePlanFn func(ctx context.Context, id int64, patch api.Patch, base *time.Time) (*models.Plan, error)
	DeletePlanFn func(ctx context.Context, id int64) error

	ListSchedulesFn  func(ctx context.Context, planID int64) ([]models.Schedule, error)
	CreateScheduleFn func(ctx context.Context, s models.Schedule) (*models.Schedule, error)
	UpdateScheduleFn func(ctx context.Context, id int64, patch api.Patch, base *time.Time) (*models.Schedule, error)
	DeleteScheduleFn func(ctx context.Context, id int64) error

	ListMomentsFn  func(ctx context.Context, scheduleID int64) ([]models.Moment, error)
	CreateMomentFn func(ctx context.Context, m models.Moment) (*models.Moment, error)
	UpdateMomentFn func(ctx context.Context, id int64, patch api.Patch, base *time.Time) (*models.Moment, error)
	DeleteMomentFn func(ctx context.Context, id int64) error

	ListMemosFn  func(ctx context.Context, planID int64) ([]models.Memo, error)
	CreateMemoFn func(ctx context.Context, m models.Memo) (*models.Memo, error)
	UpdateMemoFn func(ctx context.Context, planID, id int64, patch api.Patch, base *time.Time) (*models.Memo, error)
	DeleteMemoFn func(ctx context.Context, planID, id int64) error

	ListCommentsFn  func(ctx context.Context, momentID int64) ([]models.Comment, error)
	CreateCommentFn func(ctx context.Context, c models.Comment) (*models.Comment, error)
	UpdateCommentFn func(ctx context.Context, id int64, patch api.Patch, base *time.Time) (*models.Comment, error)
	DeleteCommentFn func(ctx context.Context, id int64) error

	ListMembersFn  func(ctx context.Context, planID int64) ([]models.Member, error)
	AddMemberFn    func(ctx context.Context, planID, userID int64, role string) (*models.Member, error)
	RemoveMemberFn func(ctx context.Context, planID, userID int64) error

	CreateUploadFn func(ctx context.Context, contentType string) (*api.Upload, error)
	PutUploadFn    func(ctx context.Context, url string, data []byte, contentType string) error
}

var _ api.Client = (*Fake)(nil)

func (f *Fake) Ping(ctx context.Context) error {
	if f.PingFn == nil {
		return api.ErrUnavailable
	}
	return f.PingFn(ctx)
}

func (f *Fake) ListPlans(ctx context.Context) ([]models.Plan, error) {
	if f.ListPlansFn == nil {
		return nil, api.ErrUnavailable
	}
	return f.ListPlansFn(ctx)
}

func (f *Fake) GetPlan(ctx context.Context, id int64) (*api.PlanDetail, error) {
	if f.GetPlanFn == nil {
		return nil, api.ErrUnavailable
	}
	return f.GetPlanFn(ctx, id)
}

func (f *Fake) CreatePlan(ctx context.Context, p models.Plan) (*models.Plan, error) {
	if f.CreatePlanFn == nil {
		return nil, api.ErrUnavailable
	}
	return f.CreatePlanFn(ctx, p)
}

func (f *Fake) UpdatePlan(ctx context.Context, id int64, patch api.Patch, base *time.Time) (*models.Plan, error) {
	if f.UpdatePlanFn == nil {
		return nil, api.ErrUnavailable
	}
	return f.UpdatePlanFn(ctx, id, patch, base)
}

func (f *Fake) DeletePlan(ctx context.Context, id int64) error {
	if f.DeletePlanFn == nil {
		return api.ErrUnavailable
	}
	return f.DeletePlanFn(ctx, id)
}

func (f *Fake) ListSchedules(ctx context.Context, planID int64) ([]models.Schedule, error) {
	if f.ListSchedulesFn == nil {
		return nil, api.ErrUnavailable
	}
	return f.ListSchedulesFn(ctx, planID)
}

func (f *Fake) CreateSchedule(ctx context.Context, s models.Schedule) (*models.Schedule, error) {
	if f.CreateScheduleFn == nil {
		return nil, api.ErrUnavailable
	}
	return f.CreateScheduleFn(ctx, s)
}

func (f *Fake) UpdateSchedule(ctx context.Context, id int64, patch api.Patch, base *time.Time) (*models.Schedule, error) {
	if f.UpdateScheduleFn == nil {
		return nil, api.ErrUnavailable
	}
	return f.UpdateScheduleFn(ctx, id, patch, base)
}

func (f *Fake) DeleteSchedule(ctx context.Context, id int64) error {
	if f.DeleteScheduleFn == nil {
		return api.ErrUnavailable
	}
	return f.DeleteScheduleFn(ctx, id)
}

func (f *Fake) ListMoments(ctx context.Context, scheduleID int64) ([]models.Moment, error) {
	if f.ListMomentsFn == nil {
		return nil, api.ErrUnavailable
	}
	return f.ListMomentsFn(ctx, scheduleID)
}

func (f *Fake) CreateMoment(ctx context.Context, m models.Moment) (*models.Moment, error) {
	if f.CreateMomentFn == nil {
		return nil, api.ErrUnavailable
	}
	return f.CreateMomentFn(ctx, m)
}

func (f *Fake) UpdateMoment(ctx context.Context, id int64, patch api.Patch, base *time.Time) (*models.Moment, error) {
	if f.UpdateMomentFn == nil {
		return nil, api.ErrUnavailable
	}
	return f.UpdateMomentFn(ctx, id, patch, base)
}

func (f *Fake) DeleteMoment(ctx context.Context, id int64) error {
	if f.DeleteMomentFn == nil {
		return api.ErrUnavailable
	}
	return f.DeleteMomentFn(ctx, id)
}

func (f *Fake) ListMemos(ctx context.Context, planID int64) ([]models.Memo, error) {
	if f.ListMemosFn == nil {
		return nil, api.ErrUnavailable
	}
	return f.ListMemosFn(ctx, planID)
}

func (f *Fake) CreateMemo(ctx context.Context, m models.Memo) (*models.Memo, error) {
	if f.CreateMemoFn == nil {
		return nil, api.ErrUnavailable
	}
	return f.CreateMemoFn(ctx, m)
}

func (f *Fake) UpdateMemo(ctx context.Context, planID, id int64, patch api.Patch, base *time.Time) (*models.Memo, error) {
	if f.UpdateMemoFn == nil {
		return nil, api.ErrUnavailable
	}
	return f.UpdateMemoFn(ctx, planID, id, patch, base)
}

func (f *Fake) DeleteMemo(ctx context.Context, planID, id int64) error {
	if f.DeleteMemoFn == nil {
		return api.ErrUnavailable
	}
	return f.DeleteMemoFn(ctx, planID, id)
}

func (f *Fake) ListComments(ctx context.Context, momentID int64) ([]models.Comment, error) {
	if f.ListCommentsFn == nil {
		return nil, api.ErrUnavailable
	}
	return f.ListCommentsFn(ctx, momentID)
}

func (f *Fake) CreateComment(ctx context.Context, c models.Comment) (*models.Comment, error) {
	if f.CreateCommentFn == nil {
		return nil, api.ErrUnavailable
	}
	return f.CreateCommentFn(ctx, c)
}

func (f *Fake) UpdateComment(ctx context.Context, id int64, patch api.Patch, base *time.Time) (*models.Comment, error) {
	if f.UpdateCommentFn == nil {
		return nil, api.ErrUnavailable
	}
	return f.UpdateCommentFn(ctx, id, patch, base)
}

func (f *Fake) DeleteComment(ctx context.Context, id int64) error {
	if f.DeleteCommentFn == nil {
		return api.ErrUnavailable
	}
	return f.DeleteCommentFn(ctx, id)
}

func (f *Fake) ListMembers(ctx context.Context, planID int64) ([]models.Member, error) {
	if f.ListMembersFn == nil {
		return nil, api.ErrUnavailable
	}
	return f.ListMembersFn(ctx, planID)
}

func (f *Fake) AddMember(ctx context.Context, planID, userID int64, role string) (*models.Member, error) {
	if f.AddMemberFn == nil {
		return nil, api.ErrUnavailable
	}
	return f.AddMemberFn(ctx, planID, userID, role)
}

func (f *Fake) RemoveMember(ctx context.Context, planID, userID int64) error {
	if f.RemoveMemberFn == nil {
		return api.ErrUnavailable
	}
	return f.RemoveMemberFn(ctx, planID, userID)
}

func (f *Fake) CreateUpload(ctx context.Context, contentType string) (*api.Upload, error) {
	if f.CreateUploadFn == nil {
		return nil, api.ErrUnavailable
	}
	return f.CreateUploadFn(ctx, contentType)
}

func (f *Fake) PutUpload(ctx context.Context, url string, data []byte, contentType string) error {
	if f.PutUploadFn == nil {
		return api.ErrUnavailable
	}
	return f.PutUploadFn(ctx, url, data, contentType)
}
