package models

import (
	"encoding/json"
	"time"
)

// OpAction is the kind of mutation an operation log entry intends.
type OpAction string

const (
	ActionCreate OpAction = "create"
	ActionUpdate OpAction = "update"
	ActionDelete OpAction = "delete"
)

// OpStatus is the replay state of an operation log entry.
type OpStatus string

const (
	StatusPending  OpStatus = "pending"
	StatusSyncing  OpStatus = "syncing"
	StatusDone     OpStatus = "done"
	StatusFailed   OpStatus = "failed"
	StatusDead     OpStatus = "dead"
	StatusConflict OpStatus = "conflict"
)

// MaxRetries is the retry ceiling: an operation whose retry count reaches
// this value is promoted to dead and never retried automatically.
const MaxRetries = 4

// Operation is one pending mutation intent, durably queued until the sync
// engine confirms it against the server.
type Operation struct {
	ID       string
	PlanID   int64
	Kind     Kind
	EntityID int64
	Action   OpAction
	// Payload is the full record for creates and the changed-fields patch
	// for updates. Foreign keys inside it may still be temp ids.
	Payload json.RawMessage
	// BaseUpdatedAt is the server timestamp the local edit was computed
	// against, sent as an optimistic-concurrency precondition on updates.
	BaseUpdatedAt *time.Time
	Status        OpStatus
	RetryCount    int
	LastError     string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// IDMapping records a confirmed temp-to-server id assignment. Immutable once
// written; queried by either key during replay.
type IDMapping struct {
	Kind     Kind
	TempID   int64
	ServerID int64
	MappedAt time.Time
}

// PlanSnapshot marks how complete the bootstrapped offline copy of one plan
// is. The UI refuses offline access to plans without a complete snapshot.
type PlanSnapshot struct {
	PlanID          int64
	LastFetchedAt   time.Time
	SnapshotVersion int64
	IsComplete      bool
}

// MediaStatus mirrors OpStatus for the binary upload queue.
type MediaUpload struct {
	Ref         string
	Kind        Kind
	EntityID    int64
	LocalPath   string
	ContentType string
	Status      OpStatus
	RetryCount  int
	LastError   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
