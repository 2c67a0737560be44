package services

import (
	"context"
	"time"

	"github.com/voyago/tripsync/internal/models"
	"github.com/voyago/tripsync/internal/repositories/syncmeta"
)

// Summary is the sync state shown to the user.
type Summary struct {
	Pending   int64
	Failed    int64
	Dead      int64
	Conflicts int64

	MediaPending int64

	LastSyncAt   time.Time
	LastSyncOKAt time.Time

	OfflineMode bool
	Online      bool
}

// Status reports pending-change counters and sync timestamps. Counters come
// straight from the operation log so a queued write is visible immediately,
// not after the next sync run.
type Status struct {
	*core
}

func (s *Status) Summary(ctx context.Context) (*Summary, error) {
	counts, err := s.store.Oplog.Counts(ctx)
	if err != nil {
		return nil, err
	}
	media, err := s.store.Media.Pending(ctx)
	if err != nil {
		return nil, err
	}

	out := &Summary{
		Pending:      counts[models.StatusPending] + counts[models.StatusSyncing],
		Failed:       counts[models.StatusFailed],
		Dead:         counts[models.StatusDead],
		Conflicts:    counts[models.StatusConflict],
		MediaPending: int64(len(media)),
		LastSyncAt:   s.metaTime(ctx, syncmeta.KeyLastSyncAt),
		LastSyncOKAt: s.metaTime(ctx, syncmeta.KeyLastSyncOKAt),
		OfflineMode:  s.mode.OfflineEnabled(),
		Online:       s.mode.Online(),
	}
	return out, nil
}

func (s *Status) metaTime(ctx context.Context, key string) time.Time {
	v, err := s.store.Meta.Get(ctx, key)
	if err != nil || v == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}
	}
	return t
}
