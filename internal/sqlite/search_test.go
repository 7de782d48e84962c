// Unit tests for entry search: scope expansion, filters, thread aggregation
// and pagination.
package sqlite

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/elog/pkg/types"
)

func TestSearchScope(t *testing.T) {
	b := setupBackend(t)

	top := makeLogbook(t, b, "Top")
	mid, err := b.CreateLogbook(&types.Logbook{Name: "Mid", ParentID: top})
	require.NoError(t, err)
	leaf, err := b.CreateLogbook(&types.Logbook{Name: "Leaf", ParentID: mid})
	require.NoError(t, err)
	other := makeLogbook(t, b, "Other")

	makeEntry(t, b, top, "in top")
	makeEntry(t, b, mid, "in mid")
	makeEntry(t, b, leaf, "in leaf")
	makeEntry(t, b, other, "elsewhere")

	t.Run("single logbook", func(t *testing.T) {
		results, err := b.Search(types.SearchOptions{LogbookID: top})
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "in top", results[0].Entry.Title)
	})

	t.Run("descendants to any depth", func(t *testing.T) {
		results, err := b.Search(types.SearchOptions{LogbookID: top, IncludeDescendants: true})
		require.NoError(t, err)
		assert.Len(t, results, 3)
	})

	t.Run("no logbook searches everything", func(t *testing.T) {
		results, err := b.Search(types.SearchOptions{})
		require.NoError(t, err)
		assert.Len(t, results, 4)
	})
}

func TestSearchTextFilters(t *testing.T) {
	b := setupBackend(t)
	logbookID := makeLogbook(t, b, "Ops")

	_, err := b.CreateEntry(&types.Entry{
		LogbookID: logbookID,
		Title:     "Beam dump at 14:32",
		Content:   "The beam dumped during injection",
		Authors:   []types.Author{{Name: "Sam Operator"}},
	})
	require.NoError(t, err)
	_, err = b.CreateEntry(&types.Entry{
		LogbookID: logbookID,
		Title:     "Routine checks",
		Content:   "All nominal",
		Authors:   []types.Author{{Name: "Ada Physicist"}},
	})
	require.NoError(t, err)
	// An entry with absent title and content never matches text filters.
	_, err = b.CreateEntry(&types.Entry{LogbookID: logbookID})
	require.NoError(t, err)

	t.Run("content regex", func(t *testing.T) {
		results, err := b.Search(types.SearchOptions{
			LogbookID:      logbookID,
			ContentPattern: "beam.*injection",
		})
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "Beam dump at 14:32", results[0].Entry.Title)
	})

	t.Run("title regex", func(t *testing.T) {
		results, err := b.Search(types.SearchOptions{
			LogbookID:    logbookID,
			TitlePattern: "(?i)routine",
		})
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "Routine checks", results[0].Entry.Title)
	})

	t.Run("author regex", func(t *testing.T) {
		results, err := b.Search(types.SearchOptions{
			LogbookID:     logbookID,
			AuthorPattern: "Physicist$",
		})
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "Routine checks", results[0].Entry.Title)
	})

	t.Run("count matches search", func(t *testing.T) {
		n, err := b.CountEntries(types.SearchOptions{
			LogbookID:      logbookID,
			ContentPattern: "nominal|injection",
		})
		require.NoError(t, err)
		assert.Equal(t, 2, n)
	})
}

func TestSearchAttributeFilters(t *testing.T) {
	b := setupBackend(t)
	logbookID := makeLogbook(t, b, "Typed",
		types.Attribute{Name: "operator", Type: types.AttributeText},
		types.Attribute{Name: "stable", Type: types.AttributeBoolean},
	)

	_, err := b.CreateEntry(&types.Entry{
		LogbookID:  logbookID,
		Title:      "smith stable",
		Attributes: map[string]any{"operator": "smith", "stable": true},
	})
	require.NoError(t, err)
	_, err = b.CreateEntry(&types.Entry{
		LogbookID:  logbookID,
		Title:      "smith unstable",
		Attributes: map[string]any{"operator": "smith", "stable": false},
	})
	require.NoError(t, err)
	_, err = b.CreateEntry(&types.Entry{
		LogbookID:  logbookID,
		Title:      "jones stable",
		Attributes: map[string]any{"operator": "jones", "stable": true},
	})
	require.NoError(t, err)

	t.Run("single filter", func(t *testing.T) {
		results, err := b.Search(types.SearchOptions{
			LogbookID:        logbookID,
			AttributeFilters: []types.AttributeFilter{{Name: "operator", Value: "smith"}},
		})
		require.NoError(t, err)
		assert.Len(t, results, 2)
	})

	t.Run("filters combine with AND", func(t *testing.T) {
		results, err := b.Search(types.SearchOptions{
			LogbookID: logbookID,
			AttributeFilters: []types.AttributeFilter{
				{Name: "operator", Value: "smith"},
				{Name: "stable", Value: true},
			},
		})
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "smith stable", results[0].Entry.Title)
	})

	t.Run("quoted name is rejected", func(t *testing.T) {
		_, err := b.Search(types.SearchOptions{
			AttributeFilters: []types.AttributeFilter{{Name: `a"b`, Value: "x"}},
		})
		assert.ErrorIs(t, err, types.ErrInvalidFilter)
	})

	t.Run("non-scalar value is rejected", func(t *testing.T) {
		_, err := b.Search(types.SearchOptions{
			AttributeFilters: []types.AttributeFilter{{Name: "operator", Value: []string{"a"}}},
		})
		assert.ErrorIs(t, err, types.ErrInvalidFilter)
	})
}

func TestSearchAggregation(t *testing.T) {
	b := setupBackend(t)
	logbookID := makeLogbook(t, b, "Threads")

	base := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	root, err := b.CreateEntry(&types.Entry{
		LogbookID: logbookID, Title: "thread root", Content: "problem",
		CreatedAt: base,
	})
	require.NoError(t, err)
	_, err = b.CreateEntry(&types.Entry{
		LogbookID: logbookID, Title: "first reply", Content: "looking into it",
		FollowsID: root, CreatedAt: base.Add(time.Hour),
	})
	require.NoError(t, err)
	_, err = b.CreateEntry(&types.Entry{
		LogbookID: logbookID, Title: "second reply", Content: "fixed",
		FollowsID: root, CreatedAt: base.Add(2 * time.Hour),
	})
	require.NoError(t, err)
	lone, err := b.CreateEntry(&types.Entry{
		LogbookID: logbookID, Title: "standalone", Content: "unrelated",
		CreatedAt: base.Add(30 * time.Minute),
	})
	require.NoError(t, err)

	t.Run("threads collapse to roots with followup count", func(t *testing.T) {
		results, err := b.Search(types.SearchOptions{LogbookID: logbookID})
		require.NoError(t, err)
		require.Len(t, results, 2)

		// Newest activity first: the thread's last reply is newer than the
		// standalone entry.
		assert.Equal(t, root, results[0].Entry.EntryID)
		assert.Equal(t, 2, results[0].FollowupCount)
		assert.True(t, results[0].LastActivity.Equal(base.Add(2*time.Hour)))

		assert.Equal(t, lone, results[1].Entry.EntryID)
		assert.Equal(t, 0, results[1].FollowupCount)
	})

	t.Run("text filter disables aggregation", func(t *testing.T) {
		results, err := b.Search(types.SearchOptions{
			LogbookID:      logbookID,
			ContentPattern: "fixed",
		})
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "second reply", results[0].Entry.Title)
		assert.Equal(t, 0, results[0].FollowupCount)
	})

	t.Run("count is distinct threads when aggregated", func(t *testing.T) {
		n, err := b.CountEntries(types.SearchOptions{LogbookID: logbookID})
		require.NoError(t, err)
		assert.Equal(t, 2, n)
	})

	t.Run("count is rows when not aggregated", func(t *testing.T) {
		n, err := b.CountEntries(types.SearchOptions{
			LogbookID:      logbookID,
			ContentPattern: ".",
		})
		require.NoError(t, err)
		assert.Equal(t, 4, n)
	})
}

func TestSearchArchivedAndPagination(t *testing.T) {
	b := setupBackend(t)
	logbookID := makeLogbook(t, b, "Paged")

	base := time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)
	var ids []string
	for i := 0; i < 5; i++ {
		id, err := b.CreateEntry(&types.Entry{
			LogbookID: logbookID,
			Title:     "entry",
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
		})
		require.NoError(t, err)
		ids = append(ids, id)
	}
	_, err := b.ChangeEntry(ids[0], map[string]any{types.FieldArchived: true}, types.RevisionMeta{})
	require.NoError(t, err)

	t.Run("archived entries are hidden by default", func(t *testing.T) {
		results, err := b.Search(types.SearchOptions{LogbookID: logbookID})
		require.NoError(t, err)
		assert.Len(t, results, 4)
	})

	t.Run("archived entries included on request", func(t *testing.T) {
		results, err := b.Search(types.SearchOptions{LogbookID: logbookID, IncludeArchived: true})
		require.NoError(t, err)
		assert.Len(t, results, 5)
	})

	t.Run("limit and offset apply after ordering", func(t *testing.T) {
		// Newest first: ids[4], ids[3], ids[2], ids[1]. Offset 1, limit 2
		// selects ids[3] and ids[2].
		results, err := b.Search(types.SearchOptions{
			LogbookID: logbookID,
			Limit:     2,
			Offset:    1,
		})
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, ids[3], results[0].Entry.EntryID)
		assert.Equal(t, ids[2], results[1].Entry.EntryID)
	})

	t.Run("count ignores pagination", func(t *testing.T) {
		n, err := b.CountEntries(types.SearchOptions{
			LogbookID: logbookID,
			Limit:     2,
			Offset:    1,
		})
		require.NoError(t, err)
		assert.Equal(t, 4, n)
	})
}
