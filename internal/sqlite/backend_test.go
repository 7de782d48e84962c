// Unit tests for backend lifecycle and persistence.
package sqlite

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/elog/pkg/types"
)

// setupBackend creates an attached Backend on a temporary data directory.
func setupBackend(t *testing.T) *Backend {
	t.Helper()
	b := NewBackend()
	config := types.Config{
		Backend: types.BackendSQLite,
		DataDir: t.TempDir(),
	}
	require.NoError(t, b.Attach(config))
	t.Cleanup(func() { b.Detach() })
	return b
}

// makeLogbook creates a logbook with the given name and attribute
// definitions, returning its ID.
func makeLogbook(t *testing.T, b *Backend, name string, attrs ...types.Attribute) string {
	t.Helper()
	id, err := b.CreateLogbook(&types.Logbook{Name: name, Attributes: attrs})
	require.NoError(t, err)
	return id
}

// makeEntry creates an entry in the given logbook, returning its ID.
func makeEntry(t *testing.T, b *Backend, logbookID, title string) string {
	t.Helper()
	id, err := b.CreateEntry(&types.Entry{LogbookID: logbookID, Title: title})
	require.NoError(t, err)
	return id
}

func TestAttachDetach(t *testing.T) {
	t.Run("attach twice fails", func(t *testing.T) {
		b := NewBackend()
		config := types.Config{Backend: types.BackendSQLite, DataDir: t.TempDir()}
		require.NoError(t, b.Attach(config))
		defer b.Detach()

		err := b.Attach(config)
		assert.ErrorIs(t, err, types.ErrAlreadyAttached)
	})

	t.Run("detach is idempotent", func(t *testing.T) {
		b := NewBackend()
		config := types.Config{Backend: types.BackendSQLite, DataDir: t.TempDir()}
		require.NoError(t, b.Attach(config))

		assert.NoError(t, b.Detach())
		assert.NoError(t, b.Detach())
	})

	t.Run("operations after detach fail", func(t *testing.T) {
		b := NewBackend()
		config := types.Config{Backend: types.BackendSQLite, DataDir: t.TempDir()}
		require.NoError(t, b.Attach(config))
		require.NoError(t, b.Detach())

		_, err := b.GetLogbook("any")
		assert.ErrorIs(t, err, types.ErrStoreDetached)
		_, err = b.CreateLogbook(&types.Logbook{Name: "x"})
		assert.ErrorIs(t, err, types.ErrStoreDetached)
	})

	t.Run("invalid config is rejected", func(t *testing.T) {
		b := NewBackend()
		err := b.Attach(types.Config{Backend: "etcd", DataDir: t.TempDir()})
		assert.ErrorIs(t, err, types.ErrBackendUnknown)
	})
}

func TestReattachKeepsData(t *testing.T) {
	dataDir := t.TempDir()
	config := types.Config{Backend: types.BackendSQLite, DataDir: dataDir}

	b := NewBackend()
	require.NoError(t, b.Attach(config))
	id, err := b.CreateLogbook(&types.Logbook{Name: "Operations"})
	require.NoError(t, err)
	require.NoError(t, b.Detach())

	b2 := NewBackend()
	require.NoError(t, b2.Attach(config))
	defer b2.Detach()

	logbook, err := b2.GetLogbook(id)
	require.NoError(t, err)
	assert.Equal(t, "Operations", logbook.Name)
}
