// Unit tests for logbook CRUD, hierarchy and version reconstruction.
package sqlite

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/elog/pkg/types"
)

func TestCreateLogbook(t *testing.T) {
	b := setupBackend(t)

	t.Run("generates UUID v7 and defaults", func(t *testing.T) {
		logbook := &types.Logbook{Name: "Linac"}
		id, err := b.CreateLogbook(logbook)
		require.NoError(t, err)

		parsed, err := uuid.Parse(id)
		require.NoError(t, err)
		assert.Equal(t, uuid.Version(7), parsed.Version())

		got, err := b.GetLogbook(id)
		require.NoError(t, err)
		assert.Equal(t, "Linac", got.Name)
		assert.Equal(t, types.DefaultContentType, got.TemplateContentType)
		assert.False(t, got.CreatedAt.IsZero())
		assert.Nil(t, got.LastChangedAt)
		assert.NotNil(t, got.Attributes)
		assert.NotNil(t, got.Metadata)
	})

	t.Run("empty name is rejected", func(t *testing.T) {
		_, err := b.CreateLogbook(&types.Logbook{})
		assert.ErrorIs(t, err, types.ErrInvalidData)
	})

	t.Run("invalid attribute definition is rejected", func(t *testing.T) {
		_, err := b.CreateLogbook(&types.Logbook{
			Name:       "Bad",
			Attributes: []types.Attribute{{Name: "shift", Type: "enum"}},
		})
		assert.ErrorIs(t, err, types.ErrInvalidData)
	})

	t.Run("missing parent is rejected", func(t *testing.T) {
		_, err := b.CreateLogbook(&types.Logbook{Name: "Orphan", ParentID: newUUID()})
		assert.ErrorIs(t, err, types.ErrNotFound)
	})
}

func TestGetLogbookNotFound(t *testing.T) {
	b := setupBackend(t)
	_, err := b.GetLogbook(newUUID())
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestListLogbooks(t *testing.T) {
	b := setupBackend(t)

	rootA, err := b.CreateLogbook(&types.Logbook{Name: "Accelerator"})
	require.NoError(t, err)
	_, err = b.CreateLogbook(&types.Logbook{Name: "Beamlines"})
	require.NoError(t, err)
	childID, err := b.CreateLogbook(&types.Logbook{Name: "RF", ParentID: rootA})
	require.NoError(t, err)

	t.Run("roots when parent empty", func(t *testing.T) {
		roots, err := b.ListLogbooks("")
		require.NoError(t, err)
		require.Len(t, roots, 2)
		assert.Equal(t, "Accelerator", roots[0].Name)
		assert.Equal(t, "Beamlines", roots[1].Name)
	})

	t.Run("children of one logbook", func(t *testing.T) {
		children, err := b.ListLogbooks(rootA)
		require.NoError(t, err)
		require.Len(t, children, 1)
		assert.Equal(t, childID, children[0].LogbookID)
	})
}

func TestChangeLogbook(t *testing.T) {
	b := setupBackend(t)

	t.Run("records old values of changed fields", func(t *testing.T) {
		id := makeLogbook(t, b, "Old name")

		rev, err := b.ChangeLogbook(id, map[string]any{
			types.FieldName:        "New name",
			types.FieldDescription: "now described",
		}, types.RevisionMeta{Comment: "rename"})
		require.NoError(t, err)

		// Description did not change (empty to empty is a change since the
		// new value differs); only fields that actually differ appear.
		assert.Equal(t, "Old name", rev.Changed[types.FieldName])
		assert.Contains(t, rev.Changed, types.FieldDescription)
		assert.Equal(t, "rename", rev.Comment)

		got, err := b.GetLogbook(id)
		require.NoError(t, err)
		assert.Equal(t, "New name", got.Name)
		assert.Equal(t, "now described", got.Description)
		assert.NotNil(t, got.LastChangedAt)
	})

	t.Run("no-op edit records empty delta", func(t *testing.T) {
		id := makeLogbook(t, b, "Stable")

		rev, err := b.ChangeLogbook(id, map[string]any{
			types.FieldName: "Stable",
		}, types.RevisionMeta{})
		require.NoError(t, err)
		assert.Empty(t, rev.Changed)

		count, err := b.LogbookRevisionCount(id)
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})

	t.Run("unknown field is rejected", func(t *testing.T) {
		id := makeLogbook(t, b, "Strict")
		_, err := b.ChangeLogbook(id, map[string]any{"colour": "red"}, types.RevisionMeta{})
		assert.ErrorIs(t, err, types.ErrInvalidData)
	})

	t.Run("rejected edit leaves no revision", func(t *testing.T) {
		id := makeLogbook(t, b, "Atomic")
		_, err := b.ChangeLogbook(id, map[string]any{
			types.FieldName: "Changed",
			"colour":        "red",
		}, types.RevisionMeta{})
		require.Error(t, err)

		got, err := b.GetLogbook(id)
		require.NoError(t, err)
		assert.Equal(t, "Atomic", got.Name)
		count, err := b.LogbookRevisionCount(id)
		require.NoError(t, err)
		assert.Equal(t, 0, count)
	})

	t.Run("nesting under own descendant is rejected", func(t *testing.T) {
		top := makeLogbook(t, b, "Top")
		mid, err := b.CreateLogbook(&types.Logbook{Name: "Mid", ParentID: top})
		require.NoError(t, err)

		_, err = b.ChangeLogbook(top, map[string]any{types.FieldParent: mid}, types.RevisionMeta{})
		assert.ErrorIs(t, err, types.ErrInvalidData)
	})
}

func TestLogbookAncestors(t *testing.T) {
	b := setupBackend(t)

	top := makeLogbook(t, b, "Facility")
	mid, err := b.CreateLogbook(&types.Logbook{Name: "Sector", ParentID: top})
	require.NoError(t, err)
	leaf, err := b.CreateLogbook(&types.Logbook{Name: "Station", ParentID: mid})
	require.NoError(t, err)

	t.Run("root first ordering", func(t *testing.T) {
		ancestors, err := b.LogbookAncestors(leaf)
		require.NoError(t, err)
		require.Len(t, ancestors, 2)
		assert.Equal(t, top, ancestors[0].LogbookID)
		assert.Equal(t, mid, ancestors[1].LogbookID)
	})

	t.Run("root has no ancestors", func(t *testing.T) {
		ancestors, err := b.LogbookAncestors(top)
		require.NoError(t, err)
		assert.Empty(t, ancestors)
	})
}

func TestGetLogbookVersion(t *testing.T) {
	b := setupBackend(t)

	id := makeLogbook(t, b, "v0 name")
	_, err := b.ChangeLogbook(id, map[string]any{types.FieldName: "v1 name"}, types.RevisionMeta{})
	require.NoError(t, err)
	_, err = b.ChangeLogbook(id, map[string]any{types.FieldDescription: "v2 desc"}, types.RevisionMeta{})
	require.NoError(t, err)
	_, err = b.ChangeLogbook(id, map[string]any{types.FieldName: "v3 name"}, types.RevisionMeta{})
	require.NoError(t, err)

	t.Run("version 0 is the original", func(t *testing.T) {
		got, err := b.GetLogbookVersion(id, 0)
		require.NoError(t, err)
		assert.Equal(t, "v0 name", got.Name)
		assert.Equal(t, "", got.Description)
		assert.Nil(t, got.LastChangedAt)
	})

	t.Run("intermediate versions reconstruct", func(t *testing.T) {
		got, err := b.GetLogbookVersion(id, 1)
		require.NoError(t, err)
		assert.Equal(t, "v1 name", got.Name)
		assert.Equal(t, "", got.Description)

		got, err = b.GetLogbookVersion(id, 2)
		require.NoError(t, err)
		assert.Equal(t, "v1 name", got.Name)
		assert.Equal(t, "v2 desc", got.Description)
	})

	t.Run("version N is the live logbook", func(t *testing.T) {
		got, err := b.GetLogbookVersion(id, 3)
		require.NoError(t, err)
		assert.Equal(t, "v3 name", got.Name)
		assert.Equal(t, "v2 desc", got.Description)
	})

	t.Run("out of range", func(t *testing.T) {
		_, err := b.GetLogbookVersion(id, 4)
		assert.ErrorIs(t, err, types.ErrNotFound)
		_, err = b.GetLogbookVersion(id, -1)
		assert.ErrorIs(t, err, types.ErrNotFound)
	})
}

func TestEntryHistogram(t *testing.T) {
	b := setupBackend(t)
	id := makeLogbook(t, b, "Shift log")

	day1 := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	day2 := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	first, err := b.CreateEntry(&types.Entry{LogbookID: id, Title: "a", CreatedAt: day1})
	require.NoError(t, err)
	_, err = b.CreateEntry(&types.Entry{LogbookID: id, Title: "b", CreatedAt: day1.Add(time.Hour)})
	require.NoError(t, err)
	_, err = b.CreateEntry(&types.Entry{LogbookID: id, Title: "c", CreatedAt: day2})
	require.NoError(t, err)

	bins, err := b.EntryHistogram(id)
	require.NoError(t, err)
	require.Len(t, bins, 2)
	assert.Equal(t, "2026-03-01", bins[0].Date)
	assert.Equal(t, 2, bins[0].Count)
	assert.Equal(t, first, bins[0].FirstEntryID)
	assert.Equal(t, "2026-03-02", bins[1].Date)
	assert.Equal(t, 1, bins[1].Count)
}
