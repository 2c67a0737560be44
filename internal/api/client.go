// Package api is the client of the server-of-record CRUD API. It is the only
// network boundary of the offline engine: every call either succeeds with
// the server's authoritative record or fails with one of the package's
// sentinel errors, and updates may fail with a *ConflictError carrying the
// server's snapshot.
package api

import (
	"context"
	"time"

	"github.com/voyago/tripsync/internal/models"
)

// PlanDetail is the GET /plans/{id} response: the plan plus its schedules.
type PlanDetail struct {
	Plan      models.Plan       `json:"plan"`
	Schedules []models.Schedule `json:"schedules"`
}

// Upload is a presigned upload slot for one binary attachment.
type Upload struct {
	URL string `json:"url"`
	Key string `json:"key"`
}

// Patch is a changed-fields update payload.
type Patch = map[string]any

// Client is the typed surface of the server API. Update calls take the
// base timestamp the edit was computed against; a nil base skips the
// optimistic-concurrency precondition (forced overwrite).
type Client interface {
	Ping(ctx context.Context) error

	ListPlans(ctx context.Context) ([]models.Plan, error)
	GetPlan(ctx context.Context, id int64) (*PlanDetail, error)
	CreatePlan(ctx context.Context, p models.Plan) (*models.Plan, error)
	UpdatePlan(ctx context.Context, id int64, patch Patch, base *time.Time) (*models.Plan, error)
	DeletePlan(ctx context.Context, id int64) error

	ListSchedules(ctx context.Context, planID int64) ([]models.Schedule, error)
	CreateSchedule(ctx context.Context, s models.Schedule) (*models.Schedule, error)
	UpdateSchedule(ctx context.Context, id int64, patch Patch, base *time.Time) (*models.Schedule, error)
	DeleteSchedule(ctx context.Context, id int64) error

	ListMoments(ctx context.Context, scheduleID int64) ([]models.Moment, error)
	CreateMoment(ctx context.Context, m models.Moment) (*models.Moment, error)
	UpdateMoment(ctx context.Context, id int64, patch Patch, base *time.Time) (*models.Moment, error)
	DeleteMoment(ctx context.Context, id int64) error

	ListMemos(ctx context.Context, planID int64) ([]models.Memo, error)
	CreateMemo(ctx context.Context, m models.Memo) (*models.Memo, error)
	UpdateMemo(ctx context.Context, planID, id int64, patch Patch, base *time.Time) (*models.Memo, error)
	DeleteMemo(ctx context.Context, planID, id int64) error

	ListComments(ctx context.Context, momentID int64) ([]models.Comment, error)
	CreateComment(ctx context.Context, c models.Comment) (*models.Comment, error)
	UpdateComment(ctx context.Context, id int64, patch Patch, base *time.Time) (*models.Comment, error)
	DeleteComment(ctx context.Context, id int64) error

	ListMembers(ctx context.Context, planID int64) ([]models.Member, error)
	AddMember(ctx context.Context, planID, userID int64, role string) (*models.Member, error)
	RemoveMember(ctx context.Context, planID, userID int64) error

	CreateUpload(ctx context.Context, contentType string) (*Upload, error)
	PutUpload(ctx context.Context, url string, data []byte, contentType string) error
}
