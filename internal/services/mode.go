package services

import "sync/atomic"

// Mode holds the two connectivity switches shared across the client: whether
// the user has enabled offline mode (which activates the local fallback
// paths) and whether the server is currently reachable (flipped by the ping
// watcher). Both are read on every repository call, so they are atomics
// rather than store rows.
type Mode struct {
	offline atomic.Bool
	online  atomic.Bool
}

// NewMode starts online with offline mode disabled.
func NewMode() *Mode {
	m := &Mode{}
	m.online.Store(true)
	return m
}

// SetOffline toggles offline mode.
func (m *Mode) SetOffline(enabled bool) { m.offline.Store(enabled) }

// OfflineEnabled reports whether local fallback paths are active.
func (m *Mode) OfflineEnabled() bool { return m.offline.Load() }

// SetOnline records the last observed server reachability.
func (m *Mode) SetOnline(v bool) { m.online.Store(v) }

// Online reports the last observed server reachability.
func (m *Mode) Online() bool { return m.online.Load() }
