package services

import (
	"encoding/json"
	"fmt"

	"github.com/voyago/tripsync/internal/models"
)

// Record constructors turn server-shaped entities into clean cache rows
// (local-meta zeroed: the server copy is by definition not dirty). Shared
// with the bootstrap loader.

func PlanRecord(p models.Plan) (*models.CachedRecord, error) {
	return record(models.KindPlan, p.ID, p.ID, p.ID, p)
}

func ScheduleRecord(s models.Schedule) (*models.CachedRecord, error) {
	return record(models.KindSchedule, s.ID, s.PlanID, s.PlanID, s)
}

func MomentRecord(m models.Moment) (*models.CachedRecord, error) {
	return record(models.KindMoment, m.ID, m.PlanID, m.ScheduleID, m)
}

func MemoRecord(m models.Memo) (*models.CachedRecord, error) {
	return record(models.KindMemo, m.ID, m.PlanID, m.PlanID, m)
}

func CommentRecord(c models.Comment) (*models.CachedRecord, error) {
	return record(models.KindComment, c.ID, c.PlanID, c.MomentID, c)
}

func MemberRecord(m models.Member) (*models.CachedRecord, error) {
	return record(models.KindMember, m.UserID, m.PlanID, m.PlanID, m)
}

func record(kind models.Kind, id, planID, parentID int64, v any) (*models.CachedRecord, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s %d: %w", kind, id, err)
	}
	return &models.CachedRecord{Kind: kind, ID: id, PlanID: planID, ParentID: parentID, Body: body}, nil
}
