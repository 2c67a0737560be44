package cli

import (
	"context"
	"errors"

	"github.com/voyago/tripsync/internal/bootstrap"
)

// SetOfflineMode toggles offline mode. Enabling it while the server is
// reachable kicks off a bootstrap so the local cache holds a full snapshot;
// enabling it while unreachable keeps whatever snapshot is already there.
func (a *App) SetOfflineMode(ctx context.Context, enabled bool) error {
	a.mode.SetOffline(enabled)

	if !enabled {
		printlnFn("Offline mode disabled")
		return nil
	}

	printlnFn("Offline mode enabled")
	if !a.mode.Online() {
		printlnFn("Server unreachable, using existing local data")
		return nil
	}

	printlnFn("Downloading plans for offline use...")
	if err := a.loader.Run(ctx); err != nil {
		if errors.Is(err, bootstrap.ErrRunning) {
			printlnFn("A download is already in progress")
			return nil
		}
		printlnFn("Download failed:", err)
		return err
	}
	printlnFn("Offline data ready")
	return nil
}

// Refresh re-fetches the plan and schedule snapshots without the heavy
// per-plan fan-out.
func (a *App) Refresh(ctx context.Context) error {
	if err := a.loader.RefreshLight(ctx); err != nil {
		printlnFn("Refresh failed:", err)
		return err
	}
	printlnFn("Snapshots refreshed")
	return nil
}
