package cli

import (
	"context"
	"os"
	"time"
)

// Login prompts for a session token and verifies it with a ping. The token
// is kept even when the server is unreachable so queued writes can go out
// once connectivity returns.
func (a *App) Login(ctx context.Context) error {
	token, err := GetSecret("Enter session token", os.Stdout)
	if err != nil {
		printlnFn("error:", err)
		return err
	}
	if token == "" {
		printlnFn("Empty token, nothing changed")
		return nil
	}

	a.setToken(token)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := a.api.Ping(pingCtx); err != nil {
		a.mode.SetOnline(false)
		printlnFn("Token stored; server not reachable right now")
		return nil
	}
	a.mode.SetOnline(true)
	printlnFn("Logged in")
	return nil
}
