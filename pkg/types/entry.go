package types

import "time"

// Author describes one author of an entry or revision. Name is the only
// field that is always present.
type Author struct {
	Name  string `json:"name"`
	Login string `json:"login,omitempty"`
	Email string `json:"email,omitempty"`
}

// Entry is a single logged record. An entry belongs to exactly one logbook
// and may be a followup to another entry via FollowsID, forming a reply
// thread. The thread root is the entry reached by walking FollowsID until
// it is empty.
type Entry struct {
	EntryID       string         // UUID v7, generated on creation.
	LogbookID     string         // Owning logbook (required).
	Title         string         // Optional title; empty means absent.
	Authors       []Author       // Ordered author descriptors.
	Content       string         // Rich-text content; empty means absent.
	ContentType   string         // Content type of Content.
	Metadata      map[string]any // Free-form metadata.
	Attributes    map[string]any // Attribute values keyed by attribute name.
	FollowsID     string         // Entry this one follows; empty for a thread root.
	Archived      bool           // Archived entries are hidden from search by default.
	CreatedAt     time.Time      // Timestamp of creation.
	LastChangedAt *time.Time     // Timestamp of last edit; nil until first edit.
}

// EffectiveTimestamp returns the entry's last-changed timestamp, falling
// back to its creation timestamp if it was never edited.
func (e *Entry) EffectiveTimestamp() time.Time {
	if e.LastChangedAt != nil {
		return *e.LastChangedAt
	}
	return e.CreatedAt
}

// IsThreadRoot reports whether the entry starts a thread.
func (e *Entry) IsThreadRoot() bool {
	return e.FollowsID == ""
}
