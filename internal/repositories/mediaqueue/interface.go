package mediaqueue

import (
	"context"

	"github.com/voyago/tripsync/internal/models"
)

// Repository queues binary attachments (moment photos) pending upload.
// Entries are keyed by a local ref rather than an entity id, and follow the
// same retry/dead semantics as the operation log.
type Repository interface {
	// Enqueue stores a new pending upload.
	Enqueue(ctx context.Context, u *models.MediaUpload) error

	// Get returns one entry by ref, or (nil, nil) if absent.
	Get(ctx context.Context, ref string) (*models.MediaUpload, error)

	// Pending returns uploads eligible for a drain attempt, oldest first.
	Pending(ctx context.Context) ([]*models.MediaUpload, error)

	// SetStatus transitions an entry; failed increments the retry count and
	// the ceiling promotes to dead, mirroring the operation log.
	SetStatus(ctx context.Context, ref string, status models.OpStatus, lastError string) (models.OpStatus, error)

	// Delete removes an entry after a confirmed upload or a discard.
	Delete(ctx context.Context, ref string) error
}
