package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/voyago/tripsync/internal/api"
	"github.com/voyago/tripsync/internal/models"
)

// Created is the outcome of a replayed create: the server-assigned id and
// the server's authoritative copy of the record.
type Created struct {
	ID   int64
	Body json.RawMessage
}

// KindOps is one kind's entry in the dispatch table: its relationship shape
// plus the network calls the sync engine replays operations through. Adding
// an entity kind is a single registration here.
type KindOps struct {
	// Parent is the kind this one is nested under, "" for the root.
	Parent models.Kind

	// FKFields names the payload fields that may still carry temp ids when
	// an operation is replayed, keyed to the kind whose id map resolves them.
	FKFields map[string]models.Kind

	Create func(ctx context.Context, c api.Client, payload json.RawMessage) (*Created, error)
	Update func(ctx context.Context, c api.Client, planID, id int64, patch api.Patch, base *time.Time) (json.RawMessage, error)
	Delete func(ctx context.Context, c api.Client, planID, id int64) error
}

// Registry maps every syncable kind to its KindOps. Built once at startup.
type Registry map[models.Kind]KindOps

func NewRegistry() Registry {
	return Registry{
		models.KindPlan: {
			Create: func(ctx context.Context, c api.Client, payload json.RawMessage) (*Created, error) {
				var p models.Plan
				if err := json.Unmarshal(payload, &p); err != nil {
					return nil, decodeErr(models.KindPlan, err)
				}
				out, err := c.CreatePlan(ctx, p)
				if err != nil {
					return nil, err
				}
				return created(out.ID, out)
			},
			Update: func(ctx context.Context, c api.Client, _, id int64, patch api.Patch, base *time.Time) (json.RawMessage, error) {
				return encode(c.UpdatePlan(ctx, id, patch, base))
			},
			Delete: func(ctx context.Context, c api.Client, _, id int64) error {
				return c.DeletePlan(ctx, id)
			},
		},
		models.KindSchedule: {
			Parent:   models.KindPlan,
			FKFields: map[string]models.Kind{"plan_id": models.KindPlan},
			Create: func(ctx context.Context, c api.Client, payload json.RawMessage) (*Created, error) {
				var s models.Schedule
				if err := json.Unmarshal(payload, &s); err != nil {
					return nil, decodeErr(models.KindSchedule, err)
				}
				out, err := c.CreateSchedule(ctx, s)
				if err != nil {
					return nil, err
				}
				return created(out.ID, out)
			},
			Update: func(ctx context.Context, c api.Client, _, id int64, patch api.Patch, base *time.Time) (json.RawMessage, error) {
				return encode(c.UpdateSchedule(ctx, id, patch, base))
			},
			Delete: func(ctx context.Context, c api.Client, _, id int64) error {
				return c.DeleteSchedule(ctx, id)
			},
		},
		models.KindMoment: {
			Parent:   models.KindSchedule,
			FKFields: map[string]models.Kind{"schedule_id": models.KindSchedule, "plan_id": models.KindPlan},
			Create: func(ctx context.Context, c api.Client, payload json.RawMessage) (*Created, error) {
				var m models.Moment
				if err := json.Unmarshal(payload, &m); err != nil {
					return nil, decodeErr(models.KindMoment, err)
				}
				out, err := c.CreateMoment(ctx, m)
				if err != nil {
					return nil, err
				}
				return created(out.ID, out)
			},
			Update: func(ctx context.Context, c api.Client, _, id int64, patch api.Patch, base *time.Time) (json.RawMessage, error) {
				return encode(c.UpdateMoment(ctx, id, patch, base))
			},
			Delete: func(ctx context.Context, c api.Client, _, id int64) error {
				return c.DeleteMoment(ctx, id)
			},
		},
		models.KindMemo: {
			Parent:   models.KindPlan,
			FKFields: map[string]models.Kind{"plan_id": models.KindPlan},
			Create: func(ctx context.Context, c api.Client, payload json.RawMessage) (*Created, error) {
				var m models.Memo
				if err := json.Unmarshal(payload, &m); err != nil {
					return nil, decodeErr(models.KindMemo, err)
				}
				out, err := c.CreateMemo(ctx, m)
				if err != nil {
					return nil, err
				}
				return created(out.ID, out)
			},
			Update: func(ctx context.Context, c api.Client, planID, id int64, patch api.Patch, base *time.Time) (json.RawMessage, error) {
				return encode(c.UpdateMemo(ctx, planID, id, patch, base))
			},
			Delete: func(ctx context.Context, c api.Client, planID, id int64) error {
				return c.DeleteMemo(ctx, planID, id)
			},
		},
		models.KindComment: {
			Parent:   models.KindMoment,
			FKFields: map[string]models.Kind{"moment_id": models.KindMoment, "plan_id": models.KindPlan},
			Create: func(ctx context.Context, c api.Client, payload json.RawMessage) (*Created, error) {
				var cm models.Comment
				if err := json.Unmarshal(payload, &cm); err != nil {
					return nil, decodeErr(models.KindComment, err)
				}
				out, err := c.CreateComment(ctx, cm)
				if err != nil {
					return nil, err
				}
				return created(out.ID, out)
			},
			Update: func(ctx context.Context, c api.Client, _, id int64, patch api.Patch, base *time.Time) (json.RawMessage, error) {
				return encode(c.UpdateComment(ctx, id, patch, base))
			},
			Delete: func(ctx context.Context, c api.Client, _, id int64) error {
				return c.DeleteComment(ctx, id)
			},
		},
	}
}

func created(id int64, v any) (*Created, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode server response: %w", err)
	}
	return &Created{ID: id, Body: body}, nil
}

func encode[T any](v *T, err error) (json.RawMessage, error) {
	if err != nil {
		return nil, err
	}
	body, merr := json.Marshal(v)
	if merr != nil {
		return nil, fmt.Errorf("failed to encode server response: %w", merr)
	}
	return body, nil
}

func decodeErr(kind models.Kind, err error) error {
	return fmt.Errorf("failed to decode %s payload: %w", kind, err)
}
