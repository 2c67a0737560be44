package models

import (
	"encoding/json"
	"time"
)

// Plan is a trip: the root of the entity tree.
type Plan struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title" validate:"required"`
	Destination string    `json:"destination"`
	StartDate   string    `json:"start_date" validate:"omitempty,datetime=2006-01-02"`
	EndDate     string    `json:"end_date" validate:"omitempty,datetime=2006-01-02"`
	OwnerID     int64     `json:"owner_id"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Schedule is one itinerary item inside a plan.
type Schedule struct {
	ID        int64     `json:"id"`
	PlanID    int64     `json:"plan_id" validate:"required"`
	Day       int       `json:"day" validate:"gte=0"`
	Title     string    `json:"title" validate:"required"`
	Place     string    `json:"place"`
	StartsAt  string    `json:"starts_at"`
	EndsAt    string    `json:"ends_at"`
	Note      string    `json:"note"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Moment is a photo/diary entry attached to a schedule.
type Moment struct {
	ID         int64      `json:"id"`
	ScheduleID int64      `json:"schedule_id" validate:"required"`
	PlanID     int64      `json:"plan_id"`
	Caption    string     `json:"caption"`
	MediaKey   string     `json:"media_key"`
	TakenAt    *time.Time `json:"taken_at,omitempty"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// Memo is a free-form note on a plan.
type Memo struct {
	ID        int64     `json:"id"`
	PlanID    int64     `json:"plan_id" validate:"required"`
	Body      string    `json:"body" validate:"required"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Comment is a reply on a moment.
type Comment struct {
	ID        int64     `json:"id"`
	MomentID  int64     `json:"moment_id" validate:"required"`
	PlanID    int64     `json:"plan_id"`
	AuthorID  int64     `json:"author_id"`
	Body      string    `json:"body" validate:"required"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Member is a plan participant. Cached for offline reads only; membership
// writes are online-only because invite codes and uniqueness checks happen
// server-side.
type Member struct {
	UserID   int64     `json:"user_id"`
	PlanID   int64     `json:"plan_id"`
	Role     string    `json:"role"`
	Nickname string    `json:"nickname"`
	JoinedAt time.Time `json:"joined_at"`
}

// LocalMeta is the mutation metadata attached to every cached record.
type LocalMeta struct {
	Dirty          bool
	Deleted        bool
	Conflict       bool
	PendingSync    bool
	LocalUpdatedAt time.Time
	// ServerVersion holds the server's snapshot of the record when a
	// conflict was detected, pending manual resolution.
	ServerVersion json.RawMessage
}

// CachedRecord is one row of the local entity cache: the server-shaped JSON
// body plus the local meta block and the denormalized keys used for lookups.
type CachedRecord struct {
	Kind     Kind
	ID       int64
	PlanID   int64
	ParentID int64
	Body     json.RawMessage
	Meta     LocalMeta
}
