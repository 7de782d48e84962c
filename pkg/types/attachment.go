package types

import "time"

// Attachment describes a file associated with an entry. Only the descriptor
// is stored here; the bytes live outside the store, at Path within the
// upload area.
type Attachment struct {
	AttachmentID string         // UUID v7, generated on creation.
	EntryID      string         // Owning entry; empty while an upload is pending association.
	Filename     string         // Original filename, if known.
	Path         string         // Location within the upload area.
	ContentType  string         // MIME type, if known.
	Embedded     bool           // True for content embedded in the entry body, e.g. an inline image.
	Metadata     map[string]any // Optional details such as image dimensions.
	Archived     bool           // Archived attachments are hidden from listings.
	CreatedAt    time.Time      // Timestamp of creation.
}
