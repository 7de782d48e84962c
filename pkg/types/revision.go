package types

import "time"

// Revision is an immutable record of one edit to a logbook or an entry.
//
// Counter-intuitively, Changed holds the *old* values of exactly the fields
// the edit touched. Storing only the changed fields keeps revisions small;
// reconstruction of any historical value scans forward through later
// revisions and falls back to the live entity (see Store.GetEntryVersion).
type Revision struct {
	RevisionID int64          // Monotonically increasing; defines chronological order.
	EntityID   string         // The logbook or entry this revision belongs to.
	Changed    map[string]any // Field name to value before this edit.
	Timestamp  time.Time      // When the edit happened.
	Authors    []Author       // Who made the edit, if known.
	Comment    string         // Optional free-text edit comment.
	Origin     string         // Optional opaque requester identifier, e.g. a client address.
}

// RevisionMeta carries audit information and the optimistic write check for
// a change operation.
type RevisionMeta struct {
	Authors []Author // Recorded on the revision.
	Comment string   // Recorded on the revision.
	Origin  string   // Opaque requester identifier; also the lock owner to release on a successful entry edit.

	// CheckLastChanged enables the optimistic write check: the change is
	// rejected with a ConflictError unless the entity's current
	// last-changed timestamp equals LastChangedAt (both nil counts as
	// equal). LastChangedAt is the value the editor observed when it
	// loaded the entity.
	CheckLastChanged bool
	LastChangedAt    *time.Time
}
