package types

// Logbook field names accepted by Store.ChangeLogbook and recorded in
// revision deltas.
const (
	FieldName                = "name"
	FieldDescription         = "description"
	FieldTemplate            = "template"
	FieldTemplateContentType = "template_content_type"
	FieldParent              = "parent_id"
	FieldAttributes          = "attributes"
	FieldMetadata            = "metadata"
	FieldArchived            = "archived"
)

// Entry field names accepted by Store.ChangeEntry and recorded in revision
// deltas. FieldMetadata, FieldAttributes and FieldArchived are shared with
// logbooks.
const (
	FieldLogbook     = "logbook_id"
	FieldTitle       = "title"
	FieldAuthors     = "authors"
	FieldContent     = "content"
	FieldContentType = "content_type"
	FieldFollows     = "follows_id"
)

// Store is the persistence and versioning core of the logbook system.
// Callers attach to a backend, operate on logbooks and entries, and detach
// when done. Every mutation is recorded as a revision; any past state can
// be read back through the version accessors.
type Store interface {
	// Attach connects the Store to the backend described by config.
	// Creates the DataDir if it does not exist. Returns ErrAlreadyAttached
	// if called while already attached.
	Attach(config Config) error

	// Detach releases backend resources. Idempotent: multiple calls
	// succeed. After Detach, operations return ErrStoreDetached.
	Detach() error

	// CreateLogbook persists a new logbook and returns its generated ID.
	CreateLogbook(logbook *Logbook) (string, error)

	// GetLogbook retrieves a logbook by ID.
	// Returns ErrNotFound if no logbook exists with that ID.
	GetLogbook(id string) (*Logbook, error)

	// ListLogbooks returns the direct children of the given logbook,
	// or the root logbooks when parentID is empty.
	ListLogbooks(parentID string) ([]*Logbook, error)

	// ChangeLogbook applies values to the logbook, first recording the old
	// values of the fields that differ as a revision. An edit that changes
	// nothing still records an empty-delta revision as an audit entry.
	// Returns the created revision.
	ChangeLogbook(id string, values map[string]any, meta RevisionMeta) (*Revision, error)

	// LogbookAncestors returns the chain parent, grandparent, ... ordered
	// root first.
	LogbookAncestors(id string) ([]*Logbook, error)

	// LogbookRevisions returns all revisions of the logbook, oldest first.
	LogbookRevisions(id string) ([]*Revision, error)

	// LogbookRevisionCount returns the number of recorded revisions.
	LogbookRevisionCount(id string) (int, error)

	// GetLogbookVersion returns the logbook as it was after its version-th
	// edit. Version ranges 0..N where N is the revision count; version N
	// returns the live logbook. Out-of-range versions return ErrNotFound.
	GetLogbookVersion(id string, version int) (*Logbook, error)

	// EntryHistogram returns per-day entry creation counts for a logbook.
	EntryHistogram(logbookID string) ([]HistogramBin, error)

	// CreateEntry persists a new entry and returns its generated ID.
	// Attribute values are coerced against the owning logbook's
	// definitions; values that fail coercion are dropped.
	CreateEntry(entry *Entry) (string, error)

	// GetEntry retrieves an entry by ID.
	// Returns ErrNotFound if no entry exists with that ID.
	GetEntry(id string) (*Entry, error)

	// ChangeEntry applies values to the entry, recording the old values of
	// changed fields as a revision, like ChangeLogbook. When
	// meta.CheckLastChanged is set the change is rejected with a
	// ConflictError unless the entry's current last-changed timestamp
	// equals meta.LastChangedAt. A successful change cancels any active
	// lock owned by meta.Origin.
	ChangeEntry(id string, values map[string]any, meta RevisionMeta) (*Revision, error)

	// EntryRevisions returns all revisions of the entry, oldest first.
	EntryRevisions(id string) ([]*Revision, error)

	// EntryRevisionCount returns the number of recorded revisions.
	EntryRevisionCount(id string) (int, error)

	// GetEntryVersion returns the entry as it was after its version-th
	// edit, with the same range rules as GetLogbookVersion.
	GetEntryVersion(id string, version int) (*Entry, error)

	// ThreadRoot walks the follows chain from the given entry and returns
	// the entry that starts the thread. An entry with no follows reference
	// is its own thread root.
	ThreadRoot(id string) (*Entry, error)

	// NextEntry returns the thread root in the same logbook with the
	// smallest effective timestamp after this entry's, or ErrNotFound.
	NextEntry(id string) (*Entry, error)

	// PreviousEntry returns the thread root in the same logbook with the
	// largest effective timestamp before this entry's, or ErrNotFound.
	PreviousEntry(id string) (*Entry, error)

	// GetLock inspects or modifies the lock state of an entry. With no
	// flags it returns the active lock, or nil if none. With acquire it
	// creates a lock owned by requester when none is active, returns the
	// existing lock when requester already owns it, and fails with a
	// LockedError when another requester owns it. With steal it cancels
	// the active lock, recording requester as canceller, and creates a
	// fresh lock owned by requester.
	GetLock(entryID, requester string, acquire, steal bool) (*EntryLock, error)

	// CancelLock cancels the entry's active lock, recording requester as
	// canceller. Returns ErrNotFound if no lock is active.
	CancelLock(entryID, requester string) (*EntryLock, error)

	// Search returns entries matching the options, ordered by descending
	// last activity, with pagination applied after ordering.
	Search(opts SearchOptions) ([]SearchResult, error)

	// CountEntries returns the number of distinct threads (or rows, when
	// aggregation is skipped) that Search would match, ignoring Limit and
	// Offset.
	CountEntries(opts SearchOptions) (int, error)

	// AddAttachment persists an attachment descriptor and returns its
	// generated ID.
	AddAttachment(attachment *Attachment) (string, error)

	// GetAttachment retrieves an attachment descriptor by ID.
	GetAttachment(id string) (*Attachment, error)

	// EntryAttachments returns the entry's non-archived attachment
	// descriptors with the given embed flag.
	EntryAttachments(entryID string, embedded bool) ([]*Attachment, error)
}
