package cli

import (
	"bufio"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeExec struct {
	loggedIn bool

	calls []string
}

func (f *fakeExec) isLoggedIn() bool { return f.loggedIn }
func (f *fakeExec) Login(ctx context.Context) error {
	f.calls = append(f.calls, "login")
	f.loggedIn = true
	return nil
}
func (f *fakeExec) SetOfflineMode(ctx context.Context, enabled bool) error {
	if enabled {
		f.calls = append(f.calls, "offline-on")
	} else {
		f.calls = append(f.calls, "offline-off")
	}
	return nil
}
func (f *fakeExec) ListPlans(ctx context.Context) error {
	f.calls = append(f.calls, "plans")
	return nil
}
func (f *fakeExec) ShowStatus(ctx context.Context) error {
	f.calls = append(f.calls, "status")
	return nil
}
func (f *fakeExec) Sync(ctx context.Context) error { f.calls = append(f.calls, "sync"); return nil }
func (f *fakeExec) Refresh(ctx context.Context) error {
	f.calls = append(f.calls, "refresh")
	return nil
}
func (f *fakeExec) ListConflicts(ctx context.Context) error {
	f.calls = append(f.calls, "conflicts")
	return nil
}
func (f *fakeExec) Resolve(ctx context.Context, choice, opID string) error {
	f.calls = append(f.calls, "keep-"+choice+"-"+opID)
	return nil
}

func runScript(t *testing.T, exec *fakeExec, lines ...string) {
	t.Helper()
	origPrint := printlnFn
	printlnFn = func(...any) (int, error) { return 0, nil }
	t.Cleanup(func() { printlnFn = origPrint })

	sc := bufio.NewScanner(strings.NewReader(strings.Join(lines, "\n")))
	runREPL(context.Background(), exec, func() string { return "" }, sc)
}

func TestRunREPL_DispatchesCommands(t *testing.T) {
	exec := &fakeExec{}
	runScript(t, exec,
		"help",
		"login",
		"offline on",
		"plans",
		"status",
		"sync",
		"conflicts",
		"keep mine op-1",
		"offline off",
		"exit",
	)

	assert.Equal(t, []string{
		"login", "offline-on", "plans", "status", "sync",
		"conflicts", "keep-mine-op-1", "offline-off",
	}, exec.calls)
}

func TestRunREPL_BadArgsPrintUsage(t *testing.T) {
	exec := &fakeExec{loggedIn: true}
	runScript(t, exec,
		"offline",
		"offline maybe",
		"keep",
		"keep theirs op-1",
		"frobnicate",
		"quit",
	)

	assert.Empty(t, exec.calls)
}

func TestRunREPL_ExitsOnEOF(t *testing.T) {
	exec := &fakeExec{}
	runScript(t, exec, "plans")

	assert.Equal(t, []string{"plans"}, exec.calls)
}
