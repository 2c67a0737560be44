package oplog

import (
	"context"
	"encoding/json"

	"github.com/voyago/tripsync/internal/models"
)

// Repository is the durable, ordered queue of not-yet-confirmed mutation
// intents. Entries for the same (kind, entityId) are causally ordered by
// CreatedAt and must be replayed and compacted in that order.
type Repository interface {
	// Append stores a new entry.
	Append(ctx context.Context, op *models.Operation) error

	// Get returns one entry by id, or (nil, nil) if absent.
	Get(ctx context.Context, opID string) (*models.Operation, error)

	// Pending returns entries eligible for replay (pending or failed, not
	// yet dead), ordered by creation time.
	Pending(ctx context.Context) ([]*models.Operation, error)

	// Conflicts returns entries awaiting manual resolution.
	Conflicts(ctx context.Context) ([]*models.Operation, error)

	// ForEntity returns all entries for one entity, oldest first.
	ForEntity(ctx context.Context, kind models.Kind, entityID int64) ([]*models.Operation, error)

	// SetStatus transitions an entry. A transition to failed increments the
	// retry count; once the count reaches models.MaxRetries the entry is
	// promoted to dead instead, so poison payloads cannot retry forever.
	// The status actually stored is returned.
	SetStatus(ctx context.Context, opID string, status models.OpStatus, lastError string) (models.OpStatus, error)

	// UpdatePayload replaces an entry's payload; used by compaction when
	// merging superseded entries into a survivor.
	UpdatePayload(ctx context.Context, opID string, payload json.RawMessage) error

	// Delete physically removes one entry.
	Delete(ctx context.Context, opID string) error

	// DeleteForEntity physically removes every entry for one entity; used
	// when a never-synced temp create is cancelled locally.
	DeleteForEntity(ctx context.Context, kind models.Kind, entityID int64) error

	// PurgeDone physically removes entries whose status is done, returning
	// how many were removed.
	PurgeDone(ctx context.Context) (int64, error)

	// Counts returns the number of entries per status.
	Counts(ctx context.Context) (map[models.OpStatus]int64, error)
}
