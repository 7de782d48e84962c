package types

import "time"

// AttributeFilter requires an entry attribute to equal a value exactly.
type AttributeFilter struct {
	Name  string
	Value any
}

// SearchOptions selects and filters entries for Store.Search and
// Store.CountEntries.
//
// Text patterns are regular expressions matched against content, title and
// any author's name; an entry whose filtered field is absent never matches.
// When any text or author pattern is set, thread aggregation is skipped and
// matching followups are returned as individual rows, since the pattern may
// specifically target followup content.
type SearchOptions struct {
	LogbookID          string            // Restrict to one logbook; empty searches all entries.
	IncludeDescendants bool              // Also search logbooks nested under LogbookID, to any depth.
	IncludeArchived    bool              // Include archived entries.
	Limit              int               // Maximum rows to return; 0 means no limit.
	Offset             int               // Rows to skip, applied after ordering.
	AttributeFilters   []AttributeFilter // All must match exactly.
	ContentPattern     string            // Regex over entry content.
	TitlePattern       string            // Regex over entry title.
	AuthorPattern      string            // Regex over author names.
}

// Aggregated reports whether results will be collapsed into thread roots
// with followup aggregation.
func (o SearchOptions) Aggregated() bool {
	return o.ContentPattern == "" && o.TitlePattern == "" && o.AuthorPattern == ""
}

// SearchResult is one search row. For aggregated searches Entry is a thread
// root, FollowupCount is the number of entries following it, and
// LastActivity is the newest effective timestamp across the whole thread.
// For non-aggregated searches FollowupCount is zero and LastActivity is the
// entry's own effective timestamp.
type SearchResult struct {
	Entry         *Entry
	FollowupCount int
	LastActivity  time.Time
}

// HistogramBin is one day of entry creation activity in a logbook.
type HistogramBin struct {
	Date         string // Day in YYYY-MM-DD form.
	FirstEntryID string // ID of the first entry created that day.
	Count        int    // Number of entries created that day.
}
