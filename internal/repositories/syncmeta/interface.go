package syncmeta

import "context"

// Well-known keys. Everything process-wide and mutable (counters, locks,
// bootstrap status) lives in this table so that increments survive reloads
// and are visible across tabs of the same device.
const (
	KeyTempIDCounter    = "temp_id_counter"
	KeySyncLockExpires  = "sync_lock_expires"
	KeyBootstrapStatus  = "bootstrap_status"
	KeyBootstrapExpires = "bootstrap_expires"
	KeyPendingOps       = "pending_ops"
	KeyFailedOps        = "failed_ops"
	KeyDeadOps          = "dead_ops"
	KeyConflictOps      = "conflict_ops"
	KeyLastSyncAt       = "last_sync_at"
	KeyLastSyncOKAt     = "last_sync_success_at"
)

// Repository is a flat key/value table for sync bookkeeping.
type Repository interface {
	// Get returns the value for key, or "" if absent.
	Get(ctx context.Context, key string) (string, error)

	// Set upserts a value.
	Set(ctx context.Context, key, value string) error

	// Delete removes a key.
	Delete(ctx context.Context, key string) error

	// GetInt64 returns the value parsed as int64, or 0 if absent.
	GetInt64(ctx context.Context, key string) (int64, error)

	// SetInt64 stores an int64 value.
	SetInt64(ctx context.Context, key string, v int64) error
}
