package sqlite

// Schema DDL. Entities carry UUID v7 TEXT keys; revisions use AUTOINCREMENT
// integer keys, which makes the revision ID the monotonic ordering key for
// reconstruction. Timestamps are stored as fixed-width RFC 3339 UTC text.
const (
	createLogbooks = `CREATE TABLE IF NOT EXISTS logbooks (
    logbook_id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    description TEXT,
    template TEXT,
    template_content_type TEXT NOT NULL,
    parent_id TEXT,
    attributes TEXT NOT NULL,
    metadata TEXT NOT NULL,
    archived INTEGER NOT NULL DEFAULT 0,
    created_at TEXT NOT NULL,
    last_changed_at TEXT,
    FOREIGN KEY (parent_id) REFERENCES logbooks(logbook_id)
);`

	createLogbookRevisions = `CREATE TABLE IF NOT EXISTS logbook_revisions (
    revision_id INTEGER PRIMARY KEY AUTOINCREMENT,
    logbook_id TEXT NOT NULL,
    changed TEXT NOT NULL,
    timestamp TEXT NOT NULL,
    authors TEXT,
    comment TEXT,
    origin TEXT,
    FOREIGN KEY (logbook_id) REFERENCES logbooks(logbook_id)
);`

	createEntries = `CREATE TABLE IF NOT EXISTS entries (
    entry_id TEXT PRIMARY KEY,
    logbook_id TEXT NOT NULL,
    title TEXT,
    authors TEXT NOT NULL,
    content TEXT,
    content_type TEXT NOT NULL,
    metadata TEXT NOT NULL,
    attributes TEXT NOT NULL,
    follows_id TEXT,
    archived INTEGER NOT NULL DEFAULT 0,
    created_at TEXT NOT NULL,
    last_changed_at TEXT,
    FOREIGN KEY (logbook_id) REFERENCES logbooks(logbook_id),
    FOREIGN KEY (follows_id) REFERENCES entries(entry_id)
);`

	createEntryRevisions = `CREATE TABLE IF NOT EXISTS entry_revisions (
    revision_id INTEGER PRIMARY KEY AUTOINCREMENT,
    entry_id TEXT NOT NULL,
    changed TEXT NOT NULL,
    timestamp TEXT NOT NULL,
    authors TEXT,
    comment TEXT,
    origin TEXT,
    FOREIGN KEY (entry_id) REFERENCES entries(entry_id)
);`

	createEntryLocks = `CREATE TABLE IF NOT EXISTS entry_locks (
    lock_id TEXT PRIMARY KEY,
    entry_id TEXT NOT NULL,
    owned_by TEXT NOT NULL,
    created_at TEXT NOT NULL,
    expires_at TEXT NOT NULL,
    cancelled_at TEXT,
    cancelled_by TEXT,
    FOREIGN KEY (entry_id) REFERENCES entries(entry_id)
);`

	createAttachments = `CREATE TABLE IF NOT EXISTS attachments (
    attachment_id TEXT PRIMARY KEY,
    entry_id TEXT,
    filename TEXT,
    path TEXT NOT NULL,
    content_type TEXT,
    embedded INTEGER NOT NULL DEFAULT 0,
    metadata TEXT,
    archived INTEGER NOT NULL DEFAULT 0,
    created_at TEXT NOT NULL,
    FOREIGN KEY (entry_id) REFERENCES entries(entry_id)
);`
)

// Index DDL for common queries.
const (
	idxLogbooksParent     = `CREATE INDEX IF NOT EXISTS idx_logbooks_parent ON logbooks(parent_id);`
	idxLogbookRevsLogbook = `CREATE INDEX IF NOT EXISTS idx_logbook_revisions_logbook ON logbook_revisions(logbook_id, revision_id);`
	idxEntriesLogbook     = `CREATE INDEX IF NOT EXISTS idx_entries_logbook ON entries(logbook_id);`
	idxEntriesFollows     = `CREATE INDEX IF NOT EXISTS idx_entries_follows ON entries(follows_id);`
	idxEntryRevsEntry     = `CREATE INDEX IF NOT EXISTS idx_entry_revisions_entry ON entry_revisions(entry_id, revision_id);`
	idxEntryLocksEntry    = `CREATE INDEX IF NOT EXISTS idx_entry_locks_entry ON entry_locks(entry_id);`
	idxAttachmentsEntry   = `CREATE INDEX IF NOT EXISTS idx_attachments_entry ON attachments(entry_id);`
	idxEntriesCreated     = `CREATE INDEX IF NOT EXISTS idx_entries_created ON entries(created_at);`
)

// schemaDDL lists all CREATE TABLE statements in dependency order.
var schemaDDL = []string{
	createLogbooks,
	createLogbookRevisions,
	createEntries,
	createEntryRevisions,
	createEntryLocks,
	createAttachments,
}

// indexDDL lists all CREATE INDEX statements.
var indexDDL = []string{
	idxLogbooksParent,
	idxLogbookRevsLogbook,
	idxEntriesLogbook,
	idxEntriesFollows,
	idxEntryRevsEntry,
	idxEntryLocksEntry,
	idxAttachmentsEntry,
	idxEntriesCreated,
}
