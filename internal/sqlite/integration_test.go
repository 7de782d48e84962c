// Full scenario test exercising the store components together.
package sqlite

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/elog/pkg/types"
)

// TestShiftLogScenario walks one realistic shift-log workflow across
// logbooks, entries, locks, revisions, search and attachments.
func TestShiftLogScenario(t *testing.T) {
	b := setupBackend(t)

	// A small logbook tree: Accelerator > Linac.
	acceleratorID, err := b.CreateLogbook(&types.Logbook{
		Name: "Accelerator",
		Attributes: []types.Attribute{
			{Name: "operator", Type: types.AttributeText},
			{Name: "current", Type: types.AttributeNumber},
		},
	})
	require.NoError(t, err)
	linacID, err := b.CreateLogbook(&types.Logbook{
		Name:     "Linac",
		ParentID: acceleratorID,
		Attributes: []types.Attribute{
			{Name: "operator", Type: types.AttributeText},
		},
	})
	require.NoError(t, err)

	ancestors, err := b.LogbookAncestors(linacID)
	require.NoError(t, err)
	require.Len(t, ancestors, 1)
	assert.Equal(t, acceleratorID, ancestors[0].LogbookID)

	// A morning entry and a followup, with fixed creation times.
	morning := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	rootID, err := b.CreateEntry(&types.Entry{
		LogbookID:  linacID,
		Title:      "Morning checks",
		Content:    "Injection steady",
		Authors:    []types.Author{{Name: "Alice Operator"}},
		Attributes: map[string]any{"operator": "alice"},
		CreatedAt:  morning,
	})
	require.NoError(t, err)
	followupID, err := b.CreateEntry(&types.Entry{
		LogbookID: linacID,
		Title:     "Re-check after lunch",
		FollowsID: rootID,
		CreatedAt: morning.Add(time.Hour),
	})
	require.NoError(t, err)

	root, err := b.ThreadRoot(followupID)
	require.NoError(t, err)
	assert.Equal(t, rootID, root.EntryID)

	// Alice locks the root entry and edits it; the edit consumes her lock.
	lock, err := b.GetLock(rootID, "alice", true, false)
	require.NoError(t, err)
	require.NotNil(t, lock)

	loaded, err := b.GetEntry(rootID)
	require.NoError(t, err)
	_, err = b.ChangeEntry(rootID,
		map[string]any{types.FieldContent: "Injection steady, RF trip at 10:20"},
		types.RevisionMeta{
			Authors:          []types.Author{{Name: "Alice Operator"}},
			Comment:          "added RF trip",
			Origin:           "alice",
			CheckLastChanged: true,
			LastChangedAt:    loaded.LastChangedAt,
		})
	require.NoError(t, err)

	released, err := b.GetLock(rootID, "", false, false)
	require.NoError(t, err)
	assert.Nil(t, released)

	// Bob edits from a stale copy and is rejected.
	_, err = b.ChangeEntry(rootID,
		map[string]any{types.FieldContent: "overwrite"},
		types.RevisionMeta{CheckLastChanged: true, LastChangedAt: nil})
	var conflict *types.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.NotNil(t, conflict.Current)

	// The pre-edit content is still reachable through version 0.
	v0, err := b.GetEntryVersion(rootID, 0)
	require.NoError(t, err)
	assert.Equal(t, "Injection steady", v0.Content)
	count, err := b.EntryRevisionCount(rootID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	// Searching the whole tree aggregates the thread under its root.
	results, err := b.Search(types.SearchOptions{
		LogbookID:          acceleratorID,
		IncludeDescendants: true,
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, rootID, results[0].Entry.EntryID)
	assert.Equal(t, 1, results[0].FollowupCount)

	n, err := b.CountEntries(types.SearchOptions{
		LogbookID:          acceleratorID,
		IncludeDescendants: true,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// Both entries land in the same histogram day.
	bins, err := b.EntryHistogram(linacID)
	require.NoError(t, err)
	require.Len(t, bins, 1)
	assert.Equal(t, "2026-03-01", bins[0].Date)
	assert.Equal(t, 2, bins[0].Count)
	assert.Equal(t, rootID, bins[0].FirstEntryID)

	// A screenshot is attached to the followup.
	attachmentID, err := b.AddAttachment(&types.Attachment{
		EntryID:     followupID,
		Filename:    "rf-trip.png",
		Path:        "2026/03/01/rf-trip.png",
		ContentType: "image/png",
	})
	require.NoError(t, err)
	attachments, err := b.EntryAttachments(followupID, false)
	require.NoError(t, err)
	require.Len(t, attachments, 1)
	assert.Equal(t, attachmentID, attachments[0].AttachmentID)
}
