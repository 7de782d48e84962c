package types

import (
	"errors"
	"fmt"
	"time"
)

// Store lifecycle errors.
var (
	ErrStoreDetached   = errors.New("store is detached")
	ErrAlreadyAttached = errors.New("store is already attached")
)

// Operation errors.
var (
	ErrNotFound      = errors.New("entity not found")
	ErrInvalidID     = errors.New("invalid entity ID")
	ErrInvalidData   = errors.New("invalid entity data")
	ErrInvalidFilter = errors.New("invalid filter value")
	ErrValidation    = errors.New("attribute validation failed")
)

// LockedError is returned when a lock acquisition is refused because another
// requester holds an active lock on the entry. It carries the existing lock
// so the caller can show its owner and expiry and offer wait or steal.
type LockedError struct {
	Lock *EntryLock
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("entry %s is locked by %s until %s",
		e.Lock.EntryID, e.Lock.OwnedBy, e.Lock.ExpiresAt.Format(time.RFC3339))
}

// ConflictError is returned when an optimistic write check fails: the entity
// was changed after the editor loaded it. Current is the entity's
// last-changed timestamp now; Submitted is the one the editor started from.
// Either may be nil for a never-edited entity.
type ConflictError struct {
	Current   *time.Time
	Submitted *time.Time
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("entry changed since it was loaded (current %s, submitted %s)",
		formatNullableTime(e.Current), formatNullableTime(e.Submitted))
}

func formatNullableTime(t *time.Time) string {
	if t == nil {
		return "never"
	}
	return t.Format(time.RFC3339)
}
