package cli

import (
	"context"
	"fmt"
	"time"
)

func (a *App) statusLine() string {
	s := ""
	if a.isLoggedIn() {
		s = "logged-in"
	}
	if a.mode.OfflineEnabled() {
		s += " offline-mode"
	}
	if !a.mode.Online() {
		s += " unreachable"
	}
	if s != "" {
		s = fmt.Sprintf("(%s)", s)
	}
	return s
}

// ShowStatus prints pending-change counters and the last sync timestamps.
func (a *App) ShowStatus(ctx context.Context) error {
	sum, err := a.set.Status.Summary(ctx)
	if err != nil {
		printlnFn("error:", err)
		return err
	}

	printlnFn(fmt.Sprintf("Pending: %d  Failed: %d  Dead: %d  Conflicts: %d  Media queued: %d",
		sum.Pending, sum.Failed, sum.Dead, sum.Conflicts, sum.MediaPending))
	printlnFn("Last sync attempt: ", fmtTime(sum.LastSyncAt))
	printlnFn("Last clean sync:   ", fmtTime(sum.LastSyncOKAt))
	printlnFn(fmt.Sprintf("Offline mode: %v  Server reachable: %v", sum.OfflineMode, sum.Online))
	return nil
}

func fmtTime(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return t.Local().Format(time.RFC3339)
}
