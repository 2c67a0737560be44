package store

import (
	"context"
	"fmt"

	"github.com/voyago/tripsync/internal/repositories/syncmeta"
)

// AllocateTempID returns the next temporary id: a strictly decreasing
// sequence starting at −1. The counter lives in syncmeta and each allocation
// is a read-modify-write transaction, so ids never collide across reloads or
// tabs sharing the same store file.
func (s *Store) AllocateTempID(ctx context.Context) (int64, error) {
	var id int64
	err := s.WithTx(ctx, func(ctx context.Context, r Repos) error {
		cur, err := r.Meta.GetInt64(ctx, syncmeta.KeyTempIDCounter)
		if err != nil {
			return err
		}
		id = cur - 1
		return r.Meta.SetInt64(ctx, syncmeta.KeyTempIDCounter, id)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to allocate temp id: %w", err)
	}
	return id, nil
}

// ResetTempIDs rewinds the counter to the start. Testing/recovery hook only:
// calling it while any temp-id-referencing state remains can alias records.
func (s *Store) ResetTempIDs(ctx context.Context) error {
	return s.Meta.SetInt64(ctx, syncmeta.KeyTempIDCounter, 0)
}
