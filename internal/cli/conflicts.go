package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/voyago/tripsync/internal/conflicts"
)

// ListConflicts prints every edit the server rejected, field by field.
func (a *App) ListConflicts(ctx context.Context) error {
	list, err := a.conflicts.List(ctx)
	if err != nil {
		printlnFn("error:", err)
		return err
	}
	if len(list) == 0 {
		printlnFn("No conflicts")
		return nil
	}

	for _, c := range list {
		printlnFn(fmt.Sprintf("%s  %s #%d (plan %d)", c.OpID, c.Kind, c.EntityID, c.PlanID))
		for _, d := range c.Diffs {
			printlnFn(fmt.Sprintf("  %s: mine=%v theirs=%v", d.Label, d.Mine, d.Theirs))
		}
	}
	printlnFn("Resolve with: keep mine|server <op-id>")
	return nil
}

// Resolve applies the user's choice for one conflicted operation.
func (a *App) Resolve(ctx context.Context, choice, opID string) error {
	var err error
	switch choice {
	case "mine":
		err = a.conflicts.KeepMine(ctx, opID)
	case "server":
		err = a.conflicts.KeepServer(ctx, opID)
	default:
		printlnFn("Usage: keep mine|server <op-id>")
		return nil
	}

	if err != nil {
		if errors.Is(err, conflicts.ErrNotConflicted) {
			printlnFn("No such conflict:", opID)
			return err
		}
		printlnFn("error:", err)
		return err
	}

	if choice == "mine" {
		printlnFn("Kept your version; it will be pushed on the next sync")
	} else {
		printlnFn("Kept the server version")
	}
	return nil
}
