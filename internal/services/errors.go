package services

import "errors"

var (
	// ErrBlockedOffline marks operations that are structurally disallowed
	// without connectivity (plan creation, membership writes) because their
	// server-side effects cannot be predicted client-side. Never queued.
	ErrBlockedOffline = errors.New("operation requires connectivity")

	// ErrNoOfflineData is returned when a read falls back to the local store
	// and the requested record was never bootstrapped or cached.
	ErrNoOfflineData = errors.New("no offline data")
)
