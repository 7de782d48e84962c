package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mesh-intelligence/elog/pkg/types"
)

// attachmentColumns is the SELECT column list matching hydrateAttachment.
const attachmentColumns = `attachment_id, entry_id, filename, path, content_type,
    embedded, metadata, archived, created_at`

// AddAttachment persists an attachment descriptor. The entry reference may
// be empty while an upload is pending association; when set, the entry must
// exist.
func (b *Backend) AddAttachment(attachment *types.Attachment) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.ready(); err != nil {
		return "", err
	}

	if attachment.Path == "" {
		return "", fmt.Errorf("attachment path must not be empty: %w", types.ErrInvalidData)
	}
	if attachment.EntryID != "" {
		if _, err := getEntry(b.db, attachment.EntryID); err != nil {
			return "", err
		}
	}

	if attachment.AttachmentID == "" {
		attachment.AttachmentID = newUUID()
	}
	if attachment.CreatedAt.IsZero() {
		attachment.CreatedAt = time.Now()
	}

	var metadataJSON sql.NullString
	if attachment.Metadata != nil {
		s, err := marshalJSON(attachment.Metadata, "attachment metadata")
		if err != nil {
			return "", err
		}
		metadataJSON = sql.NullString{String: s, Valid: true}
	}

	_, err := b.db.Exec(`INSERT INTO attachments
    (attachment_id, entry_id, filename, path, content_type,
     embedded, metadata, archived, created_at)
    VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		attachment.AttachmentID, nullString(attachment.EntryID),
		nullString(attachment.Filename), attachment.Path,
		nullString(attachment.ContentType), boolToInt(attachment.Embedded),
		metadataJSON, boolToInt(attachment.Archived),
		formatTime(attachment.CreatedAt))
	if err != nil {
		return "", fmt.Errorf("inserting attachment: %w", err)
	}
	return attachment.AttachmentID, nil
}

// GetAttachment retrieves an attachment descriptor by ID.
func (b *Backend) GetAttachment(id string) (*types.Attachment, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if err := b.ready(); err != nil {
		return nil, err
	}

	row := b.db.QueryRow(
		fmt.Sprintf("SELECT %s FROM attachments WHERE attachment_id = ?", attachmentColumns), id)
	attachment, err := hydrateAttachment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("attachment %q: %w", id, types.ErrNotFound)
	}
	return attachment, err
}

// EntryAttachments returns the entry's non-archived attachment descriptors
// with the given embed flag, oldest first.
func (b *Backend) EntryAttachments(entryID string, embedded bool) ([]*types.Attachment, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if err := b.ready(); err != nil {
		return nil, err
	}
	if _, err := getEntry(b.db, entryID); err != nil {
		return nil, err
	}

	rows, err := b.db.Query(fmt.Sprintf(`SELECT %s FROM attachments
    WHERE entry_id = ? AND embedded = ? AND archived = 0
    ORDER BY created_at`, attachmentColumns),
		entryID, boolToInt(embedded))
	if err != nil {
		return nil, fmt.Errorf("querying attachments: %w", err)
	}
	defer rows.Close()

	var attachments []*types.Attachment
	for rows.Next() {
		attachment, err := hydrateAttachment(rows)
		if err != nil {
			return nil, err
		}
		attachments = append(attachments, attachment)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating attachments: %w", err)
	}
	return attachments, nil
}

// hydrateAttachment converts one attachment row into a *types.Attachment.
func hydrateAttachment(s rowScanner) (*types.Attachment, error) {
	var attachment types.Attachment
	var entryID, filename, contentType, metadataJSON sql.NullString
	var createdAt string
	var embedded, archived int
	err := s.Scan(&attachment.AttachmentID, &entryID, &filename,
		&attachment.Path, &contentType, &embedded, &metadataJSON,
		&archived, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning attachment: %w", err)
	}

	attachment.EntryID = entryID.String
	attachment.Filename = filename.String
	attachment.ContentType = contentType.String
	attachment.Embedded = embedded != 0
	attachment.Archived = archived != 0
	if metadataJSON.Valid {
		if err := unmarshalJSON(metadataJSON.String, &attachment.Metadata); err != nil {
			return nil, fmt.Errorf("parsing attachment metadata: %w", err)
		}
	}
	if attachment.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parsing attachment created_at: %w", err)
	}
	return &attachment, nil
}
