package snapshots

import (
	"context"

	"github.com/voyago/tripsync/internal/models"
)

// Repository tracks per-plan bootstrap completeness. The UI consults it to
// decide whether offline access to a plan is safe.
type Repository interface {
	// Put upserts a snapshot marker.
	Put(ctx context.Context, s *models.PlanSnapshot) error

	// Get returns the marker for a plan, or (nil, nil) if never bootstrapped.
	Get(ctx context.Context, planID int64) (*models.PlanSnapshot, error)

	// List returns all markers.
	List(ctx context.Context) ([]*models.PlanSnapshot, error)

	// Delete removes a marker (plan deleted or cache purged).
	Delete(ctx context.Context, planID int64) error
}
