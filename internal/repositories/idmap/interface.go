package idmap

import (
	"context"

	"github.com/voyago/tripsync/internal/models"
)

// Repository is the durable temp-to-server id mapping, populated the moment
// a create succeeds server-side. Mappings are immutable and queryable by
// either key, since replay rewrites relationships from both directions.
type Repository interface {
	// Insert records a new mapping.
	Insert(ctx context.Context, m *models.IDMapping) error

	// ByTemp returns the mapping for a temp id, or (nil, nil) if absent.
	ByTemp(ctx context.Context, kind models.Kind, tempID int64) (*models.IDMapping, error)

	// ByServer returns the mapping for a server id, or (nil, nil) if absent.
	ByServer(ctx context.Context, kind models.Kind, serverID int64) (*models.IDMapping, error)

	// Resolve maps id to its server id. Non-temp ids resolve to themselves;
	// ok is false when a temp id has no mapping yet.
	Resolve(ctx context.Context, kind models.Kind, id int64) (serverID int64, ok bool, err error)
}
