package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isLoggedIn() bool
	Login(ctx context.Context) error
	SetOfflineMode(ctx context.Context, enabled bool) error
	ListPlans(ctx context.Context) error
	ShowStatus(ctx context.Context) error
	Sync(ctx context.Context) error
	Refresh(ctx context.Context) error
	ListConflicts(ctx context.Context) error
	Resolve(ctx context.Context, choice, opID string) error
}

// runREPL starts a read–eval–print loop for the tripsync CLI.
//
// It reads a line from the provided scanner, parses the first token as the
// command, and dispatches to methods on 'a'. Unknown commands are reported
// back to the user. The loop exits on scanner EOF or when the user types
// "exit" or "quit".
//
// Commands:
//
//	login                      — enter a session token
//	offline on | off           — toggle offline mode (on triggers a bootstrap)
//	plans                      — list trip plans
//	status                     — pending changes, conflicts, last sync times
//	sync                       — push queued local changes to the server
//	refresh                    — refresh plan/schedule snapshots
//	conflicts                  — list edits the server rejected
//	keep mine|server <op-id>   — resolve one conflict
//	exit | quit                — leave the program
//
// Any errors returned by command handlers are ignored here; handlers report
// their own errors. This keeps the REPL loop resilient and focused on I/O.
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner) {
	for {
		printlnFn(fmt.Sprintf("tripsync %s> ", statusFn()))
		if !scanner.Scan() {
			return
		}
		line := scanner.Text()
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd := parts[0]
		args := parts[1:]

		switch cmd {
		case "help":
			printlnFn("Available commands: login, offline on|off, plans, status, sync, refresh, conflicts, keep mine|server <op-id>, exit")

		case "login":
			_ = a.Login(ctx)

		case "offline":
			if len(args) != 1 || (args[0] != "on" && args[0] != "off") {
				printlnFn("Usage: offline on|off")
				continue
			}
			_ = a.SetOfflineMode(ctx, args[0] == "on")

		case "plans":
			_ = a.ListPlans(ctx)

		case "status":
			_ = a.ShowStatus(ctx)

		case "sync":
			_ = a.Sync(ctx)

		case "refresh":
			_ = a.Refresh(ctx)

		case "conflicts":
			_ = a.ListConflicts(ctx)

		case "keep":
			if len(args) != 2 || (args[0] != "mine" && args[0] != "server") {
				printlnFn("Usage: keep mine|server <op-id>")
				continue
			}
			_ = a.Resolve(ctx, args[0], args[1])

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}
	}
}
