package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mesh-intelligence/elog/pkg/types"
)

// logbookColumns is the SELECT column list matching hydrateLogbook.
const logbookColumns = `logbook_id, name, description, template, template_content_type,
    parent_id, attributes, metadata, archived, created_at, last_changed_at`

// CreateLogbook persists a new logbook. A missing ID, creation timestamp or
// template content type is filled in; the generated ID is returned and also
// written back to the struct.
func (b *Backend) CreateLogbook(logbook *types.Logbook) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.ready(); err != nil {
		return "", err
	}

	if logbook.Name == "" {
		return "", fmt.Errorf("logbook name must not be empty: %w", types.ErrInvalidData)
	}
	for _, attr := range logbook.Attributes {
		if err := attr.Validate(); err != nil {
			return "", err
		}
	}
	if logbook.ParentID != "" {
		if _, err := getLogbook(b.db, logbook.ParentID); err != nil {
			return "", fmt.Errorf("parent logbook: %w", err)
		}
	}

	if logbook.LogbookID == "" {
		logbook.LogbookID = newUUID()
	}
	if logbook.CreatedAt.IsZero() {
		logbook.CreatedAt = time.Now()
	}
	if logbook.TemplateContentType == "" {
		logbook.TemplateContentType = types.DefaultContentType
	}
	if logbook.Attributes == nil {
		logbook.Attributes = []types.Attribute{}
	}
	if logbook.Metadata == nil {
		logbook.Metadata = map[string]any{}
	}

	attributesJSON, err := marshalJSON(logbook.Attributes, "logbook attributes")
	if err != nil {
		return "", err
	}
	metadataJSON, err := marshalJSON(logbook.Metadata, "logbook metadata")
	if err != nil {
		return "", err
	}

	_, err = b.db.Exec(`INSERT INTO logbooks
    (logbook_id, name, description, template, template_content_type,
     parent_id, attributes, metadata, archived, created_at, last_changed_at)
    VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		logbook.LogbookID, logbook.Name, nullString(logbook.Description),
		nullString(logbook.Template), logbook.TemplateContentType,
		nullString(logbook.ParentID), attributesJSON, metadataJSON,
		boolToInt(logbook.Archived), formatTime(logbook.CreatedAt),
		nullTime(logbook.LastChangedAt))
	if err != nil {
		return "", fmt.Errorf("inserting logbook: %w", err)
	}
	return logbook.LogbookID, nil
}

// GetLogbook retrieves a logbook by ID.
func (b *Backend) GetLogbook(id string) (*types.Logbook, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if err := b.ready(); err != nil {
		return nil, err
	}
	return getLogbook(b.db, id)
}

// getLogbook loads one logbook inside an existing transaction or directly.
func getLogbook(q querier, id string) (*types.Logbook, error) {
	if id == "" {
		return nil, types.ErrInvalidID
	}
	row := q.QueryRow(
		fmt.Sprintf("SELECT %s FROM logbooks WHERE logbook_id = ?", logbookColumns), id)
	logbook, err := hydrateLogbook(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("logbook %q: %w", id, types.ErrNotFound)
	}
	return logbook, err
}

// ListLogbooks returns the direct children of the given logbook, or the
// root logbooks when parentID is empty, ordered by name.
func (b *Backend) ListLogbooks(parentID string) ([]*types.Logbook, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if err := b.ready(); err != nil {
		return nil, err
	}

	query := fmt.Sprintf("SELECT %s FROM logbooks WHERE parent_id IS NULL ORDER BY name", logbookColumns)
	args := []any{}
	if parentID != "" {
		query = fmt.Sprintf("SELECT %s FROM logbooks WHERE parent_id = ? ORDER BY name", logbookColumns)
		args = append(args, parentID)
	}

	rows, err := b.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying logbooks: %w", err)
	}
	defer rows.Close()

	var logbooks []*types.Logbook
	for rows.Next() {
		logbook, err := hydrateLogbook(rows)
		if err != nil {
			return nil, err
		}
		logbooks = append(logbooks, logbook)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating logbooks: %w", err)
	}
	return logbooks, nil
}

// ChangeLogbook applies values to the logbook, first recording the old
// values of the fields that differ as a revision. The revision insert, row
// update and timestamp bump run in one transaction.
func (b *Backend) ChangeLogbook(id string, values map[string]any, meta types.RevisionMeta) (*types.Revision, error) {
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

	logbook, err := getLogbook(tx, id)
	if err != nil {
		return nil, err
	}

	updated := *logbook
	if err := applyLogbookValues(tx, &updated, values); err != nil {
		return nil, err
	}

	delta, err := computeDelta(logbookFieldValues(logbook), values)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	revision, err := insertRevision(tx, logbookRevisionTable, logbookRevisionColumn, id, delta, meta, now)
	if err != nil {
		return nil, err
	}

	attributesJSON, err := marshalJSON(updated.Attributes, "logbook attributes")
	if err != nil {
		return nil, err
	}
	metadataJSON, err := marshalJSON(updated.Metadata, "logbook metadata")
	if err != nil {
		return nil, err
	}
	_, err = tx.Exec(`UPDATE logbooks SET
    name = ?, description = ?, template = ?, template_content_type = ?,
    parent_id = ?, attributes = ?, metadata = ?, archived = ?, last_changed_at = ?
    WHERE logbook_id = ?`,
		updated.Name, nullString(updated.Description), nullString(updated.Template),
		updated.TemplateContentType, nullString(updated.ParentID),
		attributesJSON, metadataJSON, boolToInt(updated.Archived),
		formatTime(now), id)
	if err != nil {
		return nil, fmt.Errorf("updating logbook: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing logbook change: %w", err)
	}
	return revision, nil
}

// LogbookAncestors returns the chain parent, grandparent, ... ordered root
// first.
func (b *Backend) LogbookAncestors(id string) ([]*types.Logbook, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if err := b.ready(); err != nil {
		return nil, err
	}

	if _, err := getLogbook(b.db, id); err != nil {
		return nil, err
	}

	rows, err := b.db.Query(fmt.Sprintf(`WITH RECURSIVE ancestors(id, depth) AS (
    SELECT parent_id, 1 FROM logbooks WHERE logbook_id = ?
    UNION ALL
    SELECT l.parent_id, a.depth + 1 FROM logbooks l JOIN ancestors a ON l.logbook_id = a.id
)
SELECT %s FROM logbooks l JOIN ancestors a ON l.logbook_id = a.id
ORDER BY a.depth DESC`, logbookColumns), id)
	if err != nil {
		return nil, fmt.Errorf("querying ancestors: %w", err)
	}
	defer rows.Close()

	var ancestors []*types.Logbook
	for rows.Next() {
		logbook, err := hydrateLogbook(rows)
		if err != nil {
			return nil, err
		}
		ancestors = append(ancestors, logbook)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating ancestors: %w", err)
	}
	return ancestors, nil
}

// LogbookRevisions returns all revisions of the logbook, oldest first.
func (b *Backend) LogbookRevisions(id string) ([]*types.Revision, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if err := b.ready(); err != nil {
		return nil, err
	}
	if _, err := getLogbook(b.db, id); err != nil {
		return nil, err
	}
	return loadRevisions(b.db, logbookRevisionTable, logbookRevisionColumn, id)
}

// LogbookRevisionCount returns the number of recorded revisions.
func (b *Backend) LogbookRevisionCount(id string) (int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if err := b.ready(); err != nil {
		return 0, err
	}
	if _, err := getLogbook(b.db, id); err != nil {
		return 0, err
	}
	return countRevisions(b.db, logbookRevisionTable, logbookRevisionColumn, id)
}

// GetLogbookVersion returns the logbook as it was after its version-th
// edit. Version N (the revision count) is the live logbook; versions out of
// 0..N return ErrNotFound.
func (b *Backend) GetLogbookVersion(id string, version int) (*types.Logbook, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if err := b.ready(); err != nil {
		return nil, err
	}

	logbook, err := getLogbook(b.db, id)
	if err != nil {
		return nil, err
	}
	revisions, err := loadRevisions(b.db, logbookRevisionTable, logbookRevisionColumn, id)
	if err != nil {
		return nil, err
	}
	if version < 0 || version > len(revisions) {
		return nil, fmt.Errorf("logbook %q version %d: %w", id, version, types.ErrNotFound)
	}
	if version == len(revisions) {
		return logbook, nil
	}

	snapshot := *logbook
	snapshot.LastChangedAt = nil
	if version > 0 {
		ts := revisions[version-1].Timestamp
		snapshot.LastChangedAt = &ts
	}
	for _, field := range []string{
		types.FieldName, types.FieldDescription, types.FieldTemplate,
		types.FieldTemplateContentType, types.FieldParent,
		types.FieldAttributes, types.FieldMetadata, types.FieldArchived,
	} {
		value, ok := valueAtVersion(revisions, version, field)
		if !ok {
			continue
		}
		if err := setLogbookField(&snapshot, field, value); err != nil {
			return nil, err
		}
	}
	return &snapshot, nil
}

// EntryHistogram returns per-day entry creation counts for a logbook,
// oldest day first. Archived entries are excluded.
func (b *Backend) EntryHistogram(logbookID string) ([]types.HistogramBin, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if err := b.ready(); err != nil {
		return nil, err
	}
	if _, err := getLogbook(b.db, logbookID); err != nil {
		return nil, err
	}

	// The first 10 characters of a stored timestamp are its YYYY-MM-DD day.
	rows, err := b.db.Query(`SELECT substr(created_at, 1, 10) AS day, min(entry_id), count(*)
    FROM entries
    WHERE logbook_id = ? AND archived = 0
    GROUP BY day
    ORDER BY day`, logbookID)
	if err != nil {
		return nil, fmt.Errorf("querying histogram: %w", err)
	}
	defer rows.Close()

	var bins []types.HistogramBin
	for rows.Next() {
		var bin types.HistogramBin
		if err := rows.Scan(&bin.Date, &bin.FirstEntryID, &bin.Count); err != nil {
			return nil, fmt.Errorf("scanning histogram bin: %w", err)
		}
		bins = append(bins, bin)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating histogram: %w", err)
	}
	return bins, nil
}

// hydrateLogbook converts one logbook row into a *types.Logbook.
func hydrateLogbook(s rowScanner) (*types.Logbook, error) {
	var logbook types.Logbook
	var description, template, parentID, lastChanged sql.NullString
	var attributesJSON, metadataJSON, createdAt string
	var archived int
	err := s.Scan(&logbook.LogbookID, &logbook.Name, &description, &template,
		&logbook.TemplateContentType, &parentID, &attributesJSON, &metadataJSON,
		&archived, &createdAt, &lastChanged)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning logbook: %w", err)
	}

	logbook.Description = description.String
	logbook.Template = template.String
	logbook.ParentID = parentID.String
	logbook.Archived = archived != 0
	if err := unmarshalJSON(attributesJSON, &logbook.Attributes); err != nil {
		return nil, fmt.Errorf("parsing logbook attributes: %w", err)
	}
	if err := unmarshalJSON(metadataJSON, &logbook.Metadata); err != nil {
		return nil, fmt.Errorf("parsing logbook metadata: %w", err)
	}
	if logbook.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parsing logbook created_at: %w", err)
	}
	if lastChanged.Valid {
		ts, err := parseTime(lastChanged.String)
		if err != nil {
			return nil, fmt.Errorf("parsing logbook last_changed_at: %w", err)
		}
		logbook.LastChangedAt = &ts
	}
	return &logbook, nil
}

// logbookFieldValues maps a logbook's editable fields to their current
// values, keyed by the Field constants.
func logbookFieldValues(l *types.Logbook) map[string]any {
	return map[string]any{
		types.FieldName:                l.Name,
		types.FieldDescription:         l.Description,
		types.FieldTemplate:            l.Template,
		types.FieldTemplateContentType: l.TemplateContentType,
		types.FieldParent:              l.ParentID,
		types.FieldAttributes:          l.Attributes,
		types.FieldMetadata:            l.Metadata,
		types.FieldArchived:            l.Archived,
	}
}

// applyLogbookValues validates and applies submitted field values to a
// logbook, checking referential rules that need database access (parent
// existence, parent cycles).
func applyLogbookValues(q querier, logbook *types.Logbook, values map[string]any) error {
	for field, value := range values {
		if field == types.FieldParent {
			parentID, err := stringValue(field, value)
			if err != nil {
				return err
			}
			if parentID != "" {
				if err := checkParentChain(q, logbook.LogbookID, parentID); err != nil {
					return err
				}
			}
		}
		if err := setLogbookField(logbook, field, value); err != nil {
			return err
		}
	}
	if logbook.Name == "" {
		return fmt.Errorf("logbook name must not be empty: %w", types.ErrInvalidData)
	}
	for _, attr := range logbook.Attributes {
		if err := attr.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// setLogbookField assigns one field value, converting JSON-shaped values to
// their typed form.
func setLogbookField(logbook *types.Logbook, field string, value any) error {
	switch field {
	case types.FieldName:
		s, err := stringValue(field, value)
		if err != nil {
			return err
		}
		logbook.Name = s
	case types.FieldDescription:
		s, err := stringValue(field, value)
		if err != nil {
			return err
		}
		logbook.Description = s
	case types.FieldTemplate:
		s, err := stringValue(field, value)
		if err != nil {
			return err
		}
		logbook.Template = s
	case types.FieldTemplateContentType:
		s, err := stringValue(field, value)
		if err != nil {
			return err
		}
		logbook.TemplateContentType = s
	case types.FieldParent:
		s, err := stringValue(field, value)
		if err != nil {
			return err
		}
		logbook.ParentID = s
	case types.FieldAttributes:
		var attrs []types.Attribute
		if value != nil {
			if err := remarshal(value, &attrs); err != nil {
				return fmt.Errorf("field %q: %v: %w", field, err, types.ErrInvalidData)
			}
		}
		if attrs == nil {
			attrs = []types.Attribute{}
		}
		logbook.Attributes = attrs
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
		logbook.Metadata = metadata
	case types.FieldArchived:
		flag, ok := value.(bool)
		if !ok {
			return fmt.Errorf("field %q must be a boolean: %w", field, types.ErrInvalidData)
		}
		logbook.Archived = flag
	default:
		return fmt.Errorf("unknown field %q: %w", field, types.ErrInvalidData)
	}
	return nil
}

// checkParentChain verifies that parentID exists and that making it the
// parent of id would not create a cycle. The walk carries a visited set so
// it terminates even on damaged data.
func checkParentChain(q querier, id, parentID string) error {
	seen := make(map[string]bool)
	current := parentID
	for current != "" {
		if current == id {
			return fmt.Errorf("logbook %q cannot be nested under its own descendant %q: %w",
				id, parentID, types.ErrInvalidData)
		}
		if seen[current] {
			return fmt.Errorf("parent chain of %q contains a cycle: %w", parentID, types.ErrInvalidData)
		}
		seen[current] = true

		var next sql.NullString
		err := q.QueryRow("SELECT parent_id FROM logbooks WHERE logbook_id = ?", current).Scan(&next)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("parent logbook %q: %w", current, types.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("walking parent chain: %w", err)
		}
		current = next.String
	}
	return nil
}

// stringValue extracts an optional string field value. nil clears the field.
func stringValue(field string, value any) (string, error) {
	if value == nil {
		return "", nil
	}
	s, ok := value.(string)
	if !ok {
		return "", fmt.Errorf("field %q must be a string: %w", field, types.ErrInvalidData)
	}
	return s, nil
}

// boolToInt renders a bool for an INTEGER column.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
