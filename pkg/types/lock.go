package types

import "time"

// DefaultLockDuration is how long an entry lock lasts before it expires on
// its own.
const DefaultLockDuration = time.Hour

// EntryLock is a temporary advisory edit lock on one entry. Locks signal
// edit intent so users do not overwrite each other by mistake; they do not
// enforce exclusivity. The optimistic last-changed-at check on entry edits
// is the actual safety net.
//
// At most one lock per entry is active at any instant, where active means
// not cancelled and not expired. Expiry needs no background sweep: it is
// evaluated by comparing ExpiresAt to the clock whenever the lock is read.
type EntryLock struct {
	LockID      string     // UUID v7, generated on creation.
	EntryID     string     // The locked entry.
	OwnedBy     string     // Opaque requester identifier of the owner.
	CreatedAt   time.Time  // When the lock was taken.
	ExpiresAt   time.Time  // When the lock lapses; CreatedAt + DefaultLockDuration by default.
	CancelledAt *time.Time // Set when the lock was cancelled; nil while live.
	CancelledBy string     // Who cancelled it (owner, stealer, or editor).
}

// Active reports whether the lock is in force at the given instant.
func (l *EntryLock) Active(now time.Time) bool {
	return l.CancelledAt == nil && l.ExpiresAt.After(now)
}
