package store

import (
	"context"
	"fmt"
	"time"

	"github.com/voyago/tripsync/internal/repositories/syncmeta"
)

// DefaultLockTTL bounds how long a crashed sync run can hold the lock.
const DefaultLockTTL = 5 * time.Minute

// TryLockSync attempts the cooperative sync lock. The lock is best-effort:
// when it is already held the caller must skip its run, not queue behind it.
// Returns true when acquired.
func (s *Store) TryLockSync(ctx context.Context, ttl time.Duration) (bool, error) {
	acquired := false
	err := s.WithTx(ctx, func(ctx context.Context, r Repos) error {
		now := time.Now().Unix()
		expires, err := r.Meta.GetInt64(ctx, syncmeta.KeySyncLockExpires)
		if err != nil {
			return err
		}
		if expires > now {
			return nil // held by someone else
		}
		acquired = true
		return r.Meta.SetInt64(ctx, syncmeta.KeySyncLockExpires, time.Now().Add(ttl).Unix())
	})
	if err != nil {
		return false, fmt.Errorf("failed to acquire sync lock: %w", err)
	}
	return acquired, nil
}

// UnlockSync releases the sync lock.
func (s *Store) UnlockSync(ctx context.Context) error {
	if err := s.Meta.SetInt64(ctx, syncmeta.KeySyncLockExpires, 0); err != nil {
		return fmt.Errorf("failed to release sync lock: %w", err)
	}
	return nil
}
