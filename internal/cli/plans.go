package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/voyago/tripsync/internal/models"
	"github.com/voyago/tripsync/internal/services"
)

// ListPlans prints the user's trip plans. Rows queued locally but not yet
// synced are marked so the user can tell them apart from server data.
func (a *App) ListPlans(ctx context.Context) error {
	plans, err := a.set.Plans.List(ctx)
	if err != nil {
		if errors.Is(err, services.ErrNoOfflineData) {
			printlnFn("No offline data yet; enable offline mode while connected first")
			return err
		}
		printlnFn("error:", err)
		return err
	}

	if len(plans) == 0 {
		printlnFn("No plans")
		return nil
	}
	for _, p := range plans {
		mark := ""
		if models.IsTemporary(p.ID) {
			mark = " (not synced)"
		}
		printlnFn(fmt.Sprintf("%d  %s — %s [%s..%s]%s", p.ID, p.Title, p.Destination, p.StartDate, p.EndDate, mark))
	}
	return nil
}
