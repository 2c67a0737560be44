package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/voyago/tripsync/internal/models"
)

// Repository stores cached copies of server entities together with their
// local mutation metadata. All read accessors except the *Any variants
// exclude soft-deleted records: a tombstoned row must never surface through
// a normal read path.
type Repository interface {
	// Put upserts a record, meta included.
	Put(ctx context.Context, rec *models.CachedRecord) error

	// PutServer upserts a server-authoritative record but leaves rows with
	// local edits (dirty, pending sync, or conflicted) untouched, so a
	// background cache fill can never clobber an unsynced local write.
	PutServer(ctx context.Context, rec *models.CachedRecord) error

	// Get returns a record by key, or (nil, nil) if absent or tombstoned.
	Get(ctx context.Context, kind models.Kind, id int64) (*models.CachedRecord, error)

	// GetAny returns a record regardless of its deleted flag.
	GetAny(ctx context.Context, kind models.Kind, id int64) (*models.CachedRecord, error)

	// ListKind returns all live records of a kind.
	ListKind(ctx context.Context, kind models.Kind) ([]*models.CachedRecord, error)

	// ListByParent returns live records of a kind under one parent.
	ListByParent(ctx context.Context, kind models.Kind, parentID int64) ([]*models.CachedRecord, error)

	// ListByParentAny includes tombstoned records; used by the sync engine
	// when rewriting foreign keys after an id mapping.
	ListByParentAny(ctx context.Context, kind models.Kind, parentID int64) ([]*models.CachedRecord, error)

	// ListByPlan returns live records of a kind belonging to a plan.
	ListByPlan(ctx context.Context, kind models.Kind, planID int64) ([]*models.CachedRecord, error)

	// Delete hard-deletes a record. Used after a confirmed server delete or
	// to cancel a never-synced temp record.
	Delete(ctx context.Context, kind models.Kind, id int64) error

	// DeleteByPlan hard-deletes every record of a plan, the plan row
	// included. Used when a plan delete is confirmed server-side.
	DeleteByPlan(ctx context.Context, planID int64) error

	// Tombstone marks a record deleted and pending sync.
	Tombstone(ctx context.Context, kind models.Kind, id int64, at time.Time) error

	// Rekey moves a record from its temp id to the server id, replaces the
	// body with the server's version, and clears the local-meta flags.
	Rekey(ctx context.Context, kind models.Kind, tempID, serverID int64, body json.RawMessage, at time.Time) error

	// RewriteParent repoints the parent_id column of every record of kind
	// from oldParent to newParent.
	RewriteParent(ctx context.Context, kind models.Kind, oldParent, newParent int64) error

	// SetConflict flags a record conflicted and attaches the server's
	// snapshot for later manual resolution.
	SetConflict(ctx context.Context, kind models.Kind, id int64, serverVersion json.RawMessage, at time.Time) error
}
