// Unit tests for the advisory entry lock protocol.
package sqlite

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/elog/pkg/types"
)

func TestGetLock(t *testing.T) {
	b := setupBackend(t)
	logbookID := makeLogbook(t, b, "Ops")

	t.Run("no lock reports nil", func(t *testing.T) {
		id := makeEntry(t, b, logbookID, "quiet")
		lock, err := b.GetLock(id, "", false, false)
		require.NoError(t, err)
		assert.Nil(t, lock)
	})

	t.Run("acquire creates a lock", func(t *testing.T) {
		id := makeEntry(t, b, logbookID, "editable")
		lock, err := b.GetLock(id, "alice", true, false)
		require.NoError(t, err)
		require.NotNil(t, lock)
		assert.Equal(t, "alice", lock.OwnedBy)
		assert.Equal(t, id, lock.EntryID)
		assert.True(t, lock.Active(time.Now()))
		assert.WithinDuration(t, lock.CreatedAt.Add(types.DefaultLockDuration), lock.ExpiresAt, time.Second)
	})

	t.Run("owner re-acquires the same lock", func(t *testing.T) {
		id := makeEntry(t, b, logbookID, "mine")
		first, err := b.GetLock(id, "alice", true, false)
		require.NoError(t, err)

		again, err := b.GetLock(id, "alice", true, false)
		require.NoError(t, err)
		assert.Equal(t, first.LockID, again.LockID)
	})

	t.Run("other requester gets LockedError", func(t *testing.T) {
		id := makeEntry(t, b, logbookID, "contested")
		held, err := b.GetLock(id, "alice", true, false)
		require.NoError(t, err)

		_, err = b.GetLock(id, "bob", true, false)
		var locked *types.LockedError
		require.ErrorAs(t, err, &locked)
		assert.Equal(t, held.LockID, locked.Lock.LockID)
		assert.Equal(t, "alice", locked.Lock.OwnedBy)
	})

	t.Run("steal cancels and replaces", func(t *testing.T) {
		id := makeEntry(t, b, logbookID, "stolen")
		old, err := b.GetLock(id, "alice", true, false)
		require.NoError(t, err)

		stolen, err := b.GetLock(id, "bob", false, true)
		require.NoError(t, err)
		assert.NotEqual(t, old.LockID, stolen.LockID)
		assert.Equal(t, "bob", stolen.OwnedBy)

		// Exactly one active lock remains, the stolen one.
		active, err := b.GetLock(id, "", false, false)
		require.NoError(t, err)
		require.NotNil(t, active)
		assert.Equal(t, stolen.LockID, active.LockID)
	})

	t.Run("acquire without requester is rejected", func(t *testing.T) {
		id := makeEntry(t, b, logbookID, "anon")
		_, err := b.GetLock(id, "", true, false)
		assert.ErrorIs(t, err, types.ErrInvalidData)
	})

	t.Run("missing entry", func(t *testing.T) {
		_, err := b.GetLock(newUUID(), "alice", true, false)
		assert.ErrorIs(t, err, types.ErrNotFound)
	})
}

func TestCancelLock(t *testing.T) {
	b := setupBackend(t)
	logbookID := makeLogbook(t, b, "Ops")

	t.Run("cancel releases the lock", func(t *testing.T) {
		id := makeEntry(t, b, logbookID, "held")
		_, err := b.GetLock(id, "alice", true, false)
		require.NoError(t, err)

		cancelled, err := b.CancelLock(id, "alice")
		require.NoError(t, err)
		assert.NotNil(t, cancelled.CancelledAt)
		assert.Equal(t, "alice", cancelled.CancelledBy)

		lock, err := b.GetLock(id, "", false, false)
		require.NoError(t, err)
		assert.Nil(t, lock)
	})

	t.Run("no active lock", func(t *testing.T) {
		id := makeEntry(t, b, logbookID, "free")
		_, err := b.CancelLock(id, "alice")
		assert.ErrorIs(t, err, types.ErrNotFound)
	})
}

func TestEditReleasesOwnLock(t *testing.T) {
	b := setupBackend(t)
	logbookID := makeLogbook(t, b, "Ops")

	t.Run("successful edit cancels the editor's lock", func(t *testing.T) {
		id := makeEntry(t, b, logbookID, "locked for edit")
		_, err := b.GetLock(id, "alice", true, false)
		require.NoError(t, err)

		_, err = b.ChangeEntry(id, map[string]any{types.FieldTitle: "edited"},
			types.RevisionMeta{Origin: "alice"})
		require.NoError(t, err)

		lock, err := b.GetLock(id, "", false, false)
		require.NoError(t, err)
		assert.Nil(t, lock)
	})

	t.Run("another requester's lock survives the edit", func(t *testing.T) {
		id := makeEntry(t, b, logbookID, "locked by other")
		held, err := b.GetLock(id, "alice", true, false)
		require.NoError(t, err)

		_, err = b.ChangeEntry(id, map[string]any{types.FieldTitle: "edited anyway"},
			types.RevisionMeta{Origin: "bob"})
		require.NoError(t, err)

		lock, err := b.GetLock(id, "", false, false)
		require.NoError(t, err)
		require.NotNil(t, lock)
		assert.Equal(t, held.LockID, lock.LockID)
	})
}
