package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mesh-intelligence/elog/pkg/types"
)

// entryColumns is the SELECT column list matching hydrateEntry.
const entryColumns = `entry_id, logbook_id, title, authors, content, content_type,
    metadata, attributes, follows_id, archived, created_at, last_changed_at`

// CreateEntry persists a new entry. Attribute values are coerced against the
// owning logbook's definitions; values that fail coercion are dropped. A
// supplied non-zero creation timestamp is honored, which lets importers
// preserve original entry dates.
func (b *Backend) CreateEntry(entry *types.Entry) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.ready(); err != nil {
		return "", err
	}

	if entry.LogbookID == "" {
		return "", fmt.Errorf("entry logbook must not be empty: %w", types.ErrInvalidData)
	}
	logbook, err := getLogbook(b.db, entry.LogbookID)
	if err != nil {
		return "", err
	}
	if entry.FollowsID != "" {
		if _, err := getEntry(b.db, entry.FollowsID); err != nil {
			return "", fmt.Errorf("followed entry: %w", err)
		}
	}

	if entry.EntryID == "" {
		entry.EntryID = newUUID()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	if entry.ContentType == "" {
		entry.ContentType = types.DefaultContentType
	}
	if entry.Authors == nil {
		entry.Authors = []types.Author{}
	}
	if entry.Metadata == nil {
		entry.Metadata = map[string]any{}
	}
	entry.Attributes = logbook.ConvertAttributes(entry.Attributes)

	authorsJSON, err := marshalJSON(entry.Authors, "entry authors")
	if err != nil {
		return "", err
	}
	metadataJSON, err := marshalJSON(entry.Metadata, "entry metadata")
	if err != nil {
		return "", err
	}
	attributesJSON, err := marshalJSON(entry.Attributes, "entry attributes")
	if err != nil {
		return "", err
	}

	_, err = b.db.Exec(`INSERT INTO entries
    (entry_id, logbook_id, title, authors, content, content_type,
     metadata, attributes, follows_id, archived, created_at, last_changed_at)
    VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.EntryID, entry.LogbookID, nullString(entry.Title), authorsJSON,
		nullString(entry.Content), entry.ContentType, metadataJSON,
		attributesJSON, nullString(entry.FollowsID), boolToInt(entry.Archived),
		formatTime(entry.CreatedAt), nullTime(entry.LastChangedAt))
	if err != nil {
		return "", fmt.Errorf("inserting entry: %w", err)
	}
	return entry.EntryID, nil
}

// GetEntry retrieves an entry by ID.
func (b *Backend) GetEntry(id string) (*types.Entry, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if err := b.ready(); err != nil {
		return nil, err
	}
	return getEntry(b.db, id)
}

// getEntry loads one entry inside an existing transaction or directly.
func getEntry(q querier, id string) (*types.Entry, error) {
	if id == "" {
		return nil, types.ErrInvalidID
	}
	row := q.QueryRow(
		fmt.Sprintf("SELECT %s FROM entries WHERE entry_id = ?", entryColumns), id)
	entry, err := hydrateEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("entry %q: %w", id, types.ErrNotFound)
	}
	return entry, err
}

// ChangeEntry applies values to the entry, recording the old values of the
// changed fields as a revision. With meta.CheckLastChanged set the change is
// rejected with a ConflictError unless the entry's current last-changed
// timestamp equals the one the editor observed. A successful change cancels
// any active lock owned by meta.Origin. Everything runs in one transaction.
func (b *Backend) ChangeEntry(id string, values map[string]any, meta types.RevisionMeta) (*types.Revision, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.ready(); err != nil {
		return nil, err
	}

	tx, err := b.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	entry, err := getEntry(tx, id)
	if err != nil {
		return nil, err
	}

	if meta.CheckLastChanged && !sameTimestamp(entry.LastChangedAt, meta.LastChangedAt) {
		return nil, &types.ConflictError{
			Current:   entry.LastChangedAt,
			Submitted: meta.LastChangedAt,
		}
	}

	updated := *entry
	if err := applyEntryValues(tx, &updated, values); err != nil {
		return nil, err
	}

	delta, err := computeDelta(entryFieldValues(entry), values)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	revision, err := insertRevision(tx, entryRevisionTable, entryRevisionColumn, id, delta, meta, now)
	if err != nil {
		return nil, err
	}

	authorsJSON, err := marshalJSON(updated.Authors, "entry authors")
	if err != nil {
		return nil, err
	}
	metadataJSON, err := marshalJSON(updated.Metadata, "entry metadata")
	if err != nil {
		return nil, err
	}
	attributesJSON, err := marshalJSON(updated.Attributes, "entry attributes")
	if err != nil {
		return nil, err
	}
	_, err = tx.Exec(`UPDATE entries SET
    logbook_id = ?, title = ?, authors = ?, content = ?, content_type = ?,
    metadata = ?, attributes = ?, follows_id = ?, archived = ?, last_changed_at = ?
    WHERE entry_id = ?`,
		updated.LogbookID, nullString(updated.Title), authorsJSON,
		nullString(updated.Content), updated.ContentType, metadataJSON,
		attributesJSON, nullString(updated.FollowsID), boolToInt(updated.Archived),
		formatTime(now), id)
	if err != nil {
		return nil, fmt.Errorf("updating entry: %w", err)
	}

	// A successful edit releases the editor's own advisory lock.
	if meta.Origin != "" {
		_, err = tx.Exec(`UPDATE entry_locks SET cancelled_at = ?, cancelled_by = ?
    WHERE entry_id = ? AND owned_by = ? AND cancelled_at IS NULL AND expires_at > ?`,
			formatTime(now), meta.Origin, id, meta.Origin, formatTime(now))
		if err != nil {
			return nil, fmt.Errorf("releasing lock: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing entry change: %w", err)
	}
	return revision, nil
}

// EntryRevisions returns all revisions of the entry, oldest first.
func (b *Backend) EntryRevisions(id string) ([]*types.Revision, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if err := b.ready(); err != nil {
		return nil, err
	}
	if _, err := getEntry(b.db, id); err != nil {
		return nil, err
	}
	return loadRevisions(b.db, entryRevisionTable, entryRevisionColumn, id)
}

// EntryRevisionCount returns the number of recorded revisions.
func (b *Backend) EntryRevisionCount(id string) (int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if err := b.ready(); err != nil {
		return 0, err
	}
	if _, err := getEntry(b.db, id); err != nil {
		return 0, err
	}
	return countRevisions(b.db, entryRevisionTable, entryRevisionColumn, id)
}

// GetEntryVersion returns the entry as it was after its version-th edit.
// Version N (the revision count) is the live entry; versions out of 0..N
// return ErrNotFound.
func (b *Backend) GetEntryVersion(id string, version int) (*types.Entry, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if err := b.ready(); err != nil {
		return nil, err
	}

	entry, err := getEntry(b.db, id)
	if err != nil {
		return nil, err
	}
	revisions, err := loadRevisions(b.db, entryRevisionTable, entryRevisionColumn, id)
	if err != nil {
		return nil, err
	}
	if version < 0 || version > len(revisions) {
		return nil, fmt.Errorf("entry %q version %d: %w", id, version, types.ErrNotFound)
	}
	if version == len(revisions) {
		return entry, nil
	}

	snapshot := *entry
	snapshot.LastChangedAt = nil
	if version > 0 {
		ts := revisions[version-1].Timestamp
		snapshot.LastChangedAt = &ts
	}
	for _, field := range []string{
		types.FieldLogbook, types.FieldTitle, types.FieldAuthors,
		types.FieldContent, types.FieldContentType, types.FieldMetadata,
		types.FieldAttributes, types.FieldFollows, types.FieldArchived,
	} {
		value, ok := valueAtVersion(revisions, version, field)
		if !ok {
			continue
		}
		if err := setEntryField(&snapshot, field, value); err != nil {
			return nil, err
		}
	}
	return &snapshot, nil
}

// ThreadRoot walks the follows chain from the given entry and returns the
// entry that starts the thread. The walk carries a visited set so it
// terminates even on damaged data.
func (b *Backend) ThreadRoot(id string) (*types.Entry, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if err := b.ready(); err != nil {
		return nil, err
	}

	entry, err := getEntry(b.db, id)
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{entry.EntryID: true}
	for entry.FollowsID != "" {
		if seen[entry.FollowsID] {
			return nil, fmt.Errorf("follows chain of entry %q contains a cycle: %w", id, types.ErrInvalidData)
		}
		seen[entry.FollowsID] = true
		entry, err = getEntry(b.db, entry.FollowsID)
		if err != nil {
			return nil, err
		}
	}
	return entry, nil
}

// NextEntry returns the thread root in the same logbook with the smallest
// effective timestamp after this entry's, skipping archived entries.
func (b *Backend) NextEntry(id string) (*types.Entry, error) {
	return b.adjacentEntry(id, ">", "ASC")
}

// PreviousEntry returns the thread root in the same logbook with the
// largest effective timestamp before this entry's, skipping archived
// entries.
func (b *Backend) PreviousEntry(id string) (*types.Entry, error) {
	return b.adjacentEntry(id, "<", "DESC")
}

// adjacentEntry implements NextEntry and PreviousEntry. Stored timestamps
// are fixed width, so string comparison orders them chronologically.
func (b *Backend) adjacentEntry(id, cmp, dir string) (*types.Entry, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if err := b.ready(); err != nil {
		return nil, err
	}

	entry, err := getEntry(b.db, id)
	if err != nil {
		return nil, err
	}

	row := b.db.QueryRow(fmt.Sprintf(`SELECT %s FROM entries
    WHERE logbook_id = ? AND follows_id IS NULL AND archived = 0 AND entry_id != ?
      AND coalesce(last_changed_at, created_at) %s ?
    ORDER BY coalesce(last_changed_at, created_at) %s
    LIMIT 1`, entryColumns, cmp, dir),
		entry.LogbookID, entry.EntryID, formatTime(entry.EffectiveTimestamp()))
	adjacent, err := hydrateEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("no adjacent entry for %q: %w", id, types.ErrNotFound)
	}
	return adjacent, err
}

// hydrateEntry converts one entry row into a *types.Entry.
func hydrateEntry(s rowScanner) (*types.Entry, error) {
	var entry types.Entry
	var title, content, followsID, lastChanged sql.NullString
	var authorsJSON, metadataJSON, attributesJSON, createdAt string
	var archived int
	err := s.Scan(&entry.EntryID, &entry.LogbookID, &title, &authorsJSON,
		&content, &entry.ContentType, &metadataJSON, &attributesJSON,
		&followsID, &archived, &createdAt, &lastChanged)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning entry: %w", err)
	}

	entry.Title = title.String
	entry.Content = content.String
	entry.FollowsID = followsID.String
	entry.Archived = archived != 0
	if err := unmarshalJSON(authorsJSON, &entry.Authors); err != nil {
		return nil, fmt.Errorf("parsing entry authors: %w", err)
	}
	if err := unmarshalJSON(metadataJSON, &entry.Metadata); err != nil {
		return nil, fmt.Errorf("parsing entry metadata: %w", err)
	}
	if err := unmarshalJSON(attributesJSON, &entry.Attributes); err != nil {
		return nil, fmt.Errorf("parsing entry attributes: %w", err)
	}
	if entry.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parsing entry created_at: %w", err)
	}
	if lastChanged.Valid {
		ts, err := parseTime(lastChanged.String)
		if err != nil {
			return nil, fmt.Errorf("parsing entry last_changed_at: %w", err)
		}
		entry.LastChangedAt = &ts
	}
	return &entry, nil
}

// entryFieldValues maps an entry's editable fields to their current values,
// keyed by the Field constants.
func entryFieldValues(e *types.Entry) map[string]any {
	return map[string]any{
		types.FieldLogbook:     e.LogbookID,
		types.FieldTitle:       e.Title,
		types.FieldAuthors:     e.Authors,
		types.FieldContent:     e.Content,
		types.FieldContentType: e.ContentType,
		types.FieldMetadata:    e.Metadata,
		types.FieldAttributes:  e.Attributes,
		types.FieldFollows:     e.FollowsID,
		types.FieldArchived:    e.Archived,
	}
}

// applyEntryValues validates and applies submitted field values to an
// entry, checking referential rules that need database access. Submitted
// attribute values are coerced against the owning logbook, which may itself
// be changing in the same edit.
func applyEntryValues(q querier, entry *types.Entry, values map[string]any) error {
	for field, value := range values {
		switch field {
		case types.FieldLogbook:
			logbookID, err := stringValue(field, value)
			if err != nil {
				return err
			}
			if logbookID == "" {
				return fmt.Errorf("entry logbook must not be empty: %w", types.ErrInvalidData)
			}
			if _, err := getLogbook(q, logbookID); err != nil {
				return err
			}
		case types.FieldFollows:
			followsID, err := stringValue(field, value)
			if err != nil {
				return err
			}
			if followsID != "" {
				if followsID == entry.EntryID {
					return fmt.Errorf("entry %q cannot follow itself: %w", entry.EntryID, types.ErrInvalidData)
				}
				if _, err := getEntry(q, followsID); err != nil {
					return fmt.Errorf("followed entry: %w", err)
				}
			}
		}
		if err := setEntryField(entry, field, value); err != nil {
			return err
		}
	}

	if _, ok := values[types.FieldAttributes]; ok {
		logbook, err := getLogbook(q, entry.LogbookID)
		if err != nil {
			return err
		}
		entry.Attributes = logbook.ConvertAttributes(entry.Attributes)
	}
	return nil
}

// setEntryField assigns one field value, converting JSON-shaped values to
// their typed form.
func setEntryField(entry *types.Entry, field string, value any) error {
	switch field {
	case types.FieldLogbook:
		s, err := stringValue(field, value)
		if err != nil {
			return err
		}
		entry.LogbookID = s
	case types.FieldTitle:
		s, err := stringValue(field, value)
		if err != nil {
			return err
		}
		entry.Title = s
	case types.FieldAuthors:
		var authors []types.Author
		if value != nil {
			if err := remarshal(value, &authors); err != nil {
				return fmt.Errorf("field %q: %v: %w", field, err, types.ErrInvalidData)
			}
		}
		if authors == nil {
			authors = []types.Author{}
		}
		entry.Authors = authors
	case types.FieldContent:
		s, err := stringValue(field, value)
		if err != nil {
			return err
		}
		entry.Content = s
	case types.FieldContentType:
		s, err := stringValue(field, value)
		if err != nil {
			return err
		}
		entry.ContentType = s
	case types.FieldMetadata:
		var metadata map[string]any
		if value != nil {
			if err := remarshal(value, &metadata); err != nil {
				return fmt.Errorf("field %q: %v: %w", field, err, types.ErrInvalidData)
			}
		}
		if metadata == nil {
			metadata = map[string]any{}
		}
		entry.Metadata = metadata
	case types.FieldAttributes:
		var attributes map[string]any
		if value != nil {
			if err := remarshal(value, &attributes); err != nil {
				return fmt.Errorf("field %q: %v: %w", field, err, types.ErrInvalidData)
			}
		}
		if attributes == nil {
			attributes = map[string]any{}
		}
		entry.Attributes = attributes
	case types.FieldFollows:
		s, err := stringValue(field, value)
		if err != nil {
			return err
		}
		entry.FollowsID = s
	case types.FieldArchived:
		flag, ok := value.(bool)
		if !ok {
			return fmt.Errorf("field %q must be a boolean: %w", field, types.ErrInvalidData)
		}
		entry.Archived = flag
	default:
		return fmt.Errorf("unknown field %q: %w", field, types.ErrInvalidData)
	}
	return nil
}

// sameTimestamp compares two optional timestamps at storage precision.
func sameTimestamp(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return formatTime(*a) == formatTime(*b)
}
