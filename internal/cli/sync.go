package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/voyago/tripsync/internal/syncer"
)

// Sync pushes queued local changes to the server, then drains the media
// upload queue for moments that now have server ids.
func (a *App) Sync(ctx context.Context) error {
	if !a.mode.Online() {
		printlnFn("Server unreachable; changes stay queued")
		return nil
	}

	rep, err := a.engine.Run(ctx)
	if err != nil {
		if errors.Is(err, syncer.ErrLocked) {
			printlnFn("Another sync is already running")
			return nil
		}
		printlnFn("Sync failed:", err)
		return err
	}

	printlnFn(fmt.Sprintf("Synced in %s: %d created, %d updated, %d deleted (%d ops compacted away)",
		rep.FinishedAt.Sub(rep.StartedAt).Round(time.Millisecond), rep.Created, rep.Updated, rep.Deleted, rep.Compacted))
	if rep.Failed > 0 || rep.Dead > 0 {
		printlnFn(fmt.Sprintf("%d failed, %d gave up after repeated failures", rep.Failed, rep.Dead))
	}
	if rep.Conflicts > 0 {
		printlnFn(fmt.Sprintf("%d conflicts need resolution; run 'conflicts'", rep.Conflicts))
	}

	if err := a.set.Media.Drain(ctx); err != nil {
		printlnFn("Media upload finished with errors:", err)
	}
	return nil
}
