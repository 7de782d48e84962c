package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mesh-intelligence/elog/pkg/types"
)

// lockColumns is the SELECT column list matching hydrateLock.
const lockColumns = `lock_id, entry_id, owned_by, created_at, expires_at, cancelled_at, cancelled_by`

// GetLock inspects or modifies the lock state of an entry.
//
// With no flags it reports the active lock, or nil if none. With acquire it
// creates a lock owned by requester when none is active, returns the
// existing lock when requester already owns it, and fails with a
// LockedError when another requester owns it. With steal the active lock is
// cancelled, recording requester as canceller, and a fresh lock owned by
// requester replaces it; cancel and create run in one transaction so no
// moment has two active locks.
//
// Expired locks are simply ignored, never deleted; the full lock history
// stays queryable.
func (b *Backend) GetLock(entryID, requester string, acquire, steal bool) (*types.EntryLock, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.ready(); err != nil {
		return nil, err
	}
	if (acquire || steal) && requester == "" {
		return nil, fmt.Errorf("lock requester must not be empty: %w", types.ErrInvalidData)
	}

	tx, err := b.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := getEntry(tx, entryID); err != nil {
		return nil, err
	}

	now := time.Now()
	active, err := activeLock(tx, entryID, now)
	if err != nil {
		return nil, err
	}

	switch {
	case steal:
		if active != nil {
			if err := cancelLock(tx, active, requester, now); err != nil {
				return nil, err
			}
		}
		lock, err := createLock(tx, entryID, requester, now)
		if err != nil {
			return nil, err
		}
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("committing lock steal: %w", err)
		}
		return lock, nil

	case active != nil:
		if acquire && active.OwnedBy != requester {
			return nil, &types.LockedError{Lock: active}
		}
		return active, nil

	case acquire:
		lock, err := createLock(tx, entryID, requester, now)
		if err != nil {
			return nil, err
		}
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("committing lock acquisition: %w", err)
		}
		return lock, nil

	default:
		return nil, nil
	}
}

// CancelLock cancels the entry's active lock, recording requester as
// canceller. Returns ErrNotFound if no lock is active.
func (b *Backend) CancelLock(entryID, requester string) (*types.EntryLock, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.ready(); err != nil {
		return nil, err
	}

	tx, err := b.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := getEntry(tx, entryID); err != nil {
		return nil, err
	}

	now := time.Now()
	active, err := activeLock(tx, entryID, now)
	if err != nil {
		return nil, err
	}
	if active == nil {
		return nil, fmt.Errorf("no active lock on entry %q: %w", entryID, types.ErrNotFound)
	}
	if err := cancelLock(tx, active, requester, now); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing lock cancellation: %w", err)
	}
	return active, nil
}

// activeLock returns the entry's active lock at the given instant, or nil.
func activeLock(q querier, entryID string, now time.Time) (*types.EntryLock, error) {
	row := q.QueryRow(fmt.Sprintf(`SELECT %s FROM entry_locks
    WHERE entry_id = ? AND cancelled_at IS NULL AND expires_at > ?
    ORDER BY created_at DESC LIMIT 1`, lockColumns),
		entryID, formatTime(now))
	lock, err := hydrateLock(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return lock, err
}

// createLock inserts a fresh lock on the entry for the requester.
func createLock(q querier, entryID, requester string, now time.Time) (*types.EntryLock, error) {
	lock := &types.EntryLock{
		LockID:    newUUID(),
		EntryID:   entryID,
		OwnedBy:   requester,
		CreatedAt: now.UTC().Truncate(time.Microsecond),
		ExpiresAt: now.Add(types.DefaultLockDuration).UTC().Truncate(time.Microsecond),
	}
	_, err := q.Exec(`INSERT INTO entry_locks
    (lock_id, entry_id, owned_by, created_at, expires_at, cancelled_at, cancelled_by)
    VALUES (?, ?, ?, ?, ?, NULL, NULL)`,
		lock.LockID, lock.EntryID, lock.OwnedBy,
		formatTime(lock.CreatedAt), formatTime(lock.ExpiresAt))
	if err != nil {
		return nil, fmt.Errorf("inserting lock: %w", err)
	}
	return lock, nil
}

// cancelLock marks the lock cancelled and updates the struct in place.
func cancelLock(q querier, lock *types.EntryLock, requester string, now time.Time) error {
	_, err := q.Exec(`UPDATE entry_locks SET cancelled_at = ?, cancelled_by = ?
    WHERE lock_id = ?`,
		formatTime(now), nullString(requester), lock.LockID)
	if err != nil {
		return fmt.Errorf("cancelling lock: %w", err)
	}
	cancelled := now.UTC().Truncate(time.Microsecond)
	lock.CancelledAt = &cancelled
	lock.CancelledBy = requester
	return nil
}

// hydrateLock converts one lock row into a *types.EntryLock.
func hydrateLock(s rowScanner) (*types.EntryLock, error) {
	var lock types.EntryLock
	var createdAt, expiresAt string
	var cancelledAt, cancelledBy sql.NullString
	err := s.Scan(&lock.LockID, &lock.EntryID, &lock.OwnedBy,
		&createdAt, &expiresAt, &cancelledAt, &cancelledBy)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning lock: %w", err)
	}
	if lock.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parsing lock created_at: %w", err)
	}
	if lock.ExpiresAt, err = parseTime(expiresAt); err != nil {
		return nil, fmt.Errorf("parsing lock expires_at: %w", err)
	}
	if cancelledAt.Valid {
		ts, err := parseTime(cancelledAt.String)
		if err != nil {
			return nil, fmt.Errorf("parsing lock cancelled_at: %w", err)
		}
		lock.CancelledAt = &ts
	}
	lock.CancelledBy = cancelledBy.String
	return &lock, nil
}
