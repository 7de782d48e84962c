package sqlite

import (
	"database/sql"
	"fmt"
	"reflect"
	"time"

	"github.com/mesh-intelligence/elog/pkg/types"
)

// Revision log and reconstruction engine, shared by logbooks and entries.
//
// A revision's Changed map holds the values the changed fields had *before*
// the edit. Reconstructing "the value of field f at version k" therefore
// scans forward from revision k: the first revision at or after k whose
// delta contains f stored exactly the value f had at version k (nothing
// changed f in between), and if no revision touched f the live value still
// applies.

// Revision table descriptors.
const (
	logbookRevisionTable  = "logbook_revisions"
	logbookRevisionColumn = "logbook_id"
	entryRevisionTable    = "entry_revisions"
	entryRevisionColumn   = "entry_id"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
	Exec(query string, args ...any) (sql.Result, error)
}

// computeDelta compares the submitted values against the current field
// values and returns the delta of old values for exactly the fields that
// differ. Both sides are passed through a JSON round-trip first so database
// and caller representations compare structurally. An unknown field name
// fails with ErrInvalidData.
func computeDelta(current, values map[string]any) (map[string]any, error) {
	delta := make(map[string]any)
	for field, newVal := range values {
		oldVal, ok := current[field]
		if !ok {
			return nil, fmt.Errorf("unknown field %q: %w", field, types.ErrInvalidData)
		}
		normOld, err := normalize(oldVal)
		if err != nil {
			return nil, err
		}
		normNew, err := normalize(newVal)
		if err != nil {
			return nil, err
		}
		if !reflect.DeepEqual(normOld, normNew) {
			delta[field] = normOld
		}
	}
	return delta, nil
}

// insertRevision appends one revision row and returns the stored record.
// The revision ID is the AUTOINCREMENT key, so ordering by it yields
// chronological order with creation-order tie-break.
func insertRevision(q querier, table, column, entityID string, delta map[string]any, meta types.RevisionMeta, now time.Time) (*types.Revision, error) {
	changedJSON, err := marshalJSON(delta, "revision delta")
	if err != nil {
		return nil, err
	}
	var authorsJSON sql.NullString
	if len(meta.Authors) > 0 {
		s, err := marshalJSON(meta.Authors, "revision authors")
		if err != nil {
			return nil, err
		}
		authorsJSON = sql.NullString{String: s, Valid: true}
	}

	res, err := q.Exec(
		fmt.Sprintf("INSERT INTO %s (%s, changed, timestamp, authors, comment, origin) VALUES (?, ?, ?, ?, ?, ?)",
			table, column),
		entityID, changedJSON, formatTime(now), authorsJSON,
		nullString(meta.Comment), nullString(meta.Origin))
	if err != nil {
		return nil, fmt.Errorf("inserting revision: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading revision id: %w", err)
	}

	return &types.Revision{
		RevisionID: id,
		EntityID:   entityID,
		Changed:    delta,
		Timestamp:  now.UTC().Truncate(time.Microsecond),
		Authors:    meta.Authors,
		Comment:    meta.Comment,
		Origin:     meta.Origin,
	}, nil
}

// loadRevisions returns all revisions for one entity ordered oldest first.
func loadRevisions(q querier, table, column, entityID string) ([]*types.Revision, error) {
	rows, err := q.Query(
		fmt.Sprintf("SELECT revision_id, %s, changed, timestamp, authors, comment, origin FROM %s WHERE %s = ? ORDER BY revision_id",
			column, table, column),
		entityID)
	if err != nil {
		return nil, fmt.Errorf("querying revisions: %w", err)
	}
	defer rows.Close()

	var revisions []*types.Revision
	for rows.Next() {
		rev, err := hydrateRevision(rows)
		if err != nil {
			return nil, err
		}
		revisions = append(revisions, rev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating revisions: %w", err)
	}
	return revisions, nil
}

// hydrateRevision converts one revision row into a *types.Revision.
func hydrateRevision(s rowScanner) (*types.Revision, error) {
	var rev types.Revision
	var changedJSON, timestamp string
	var authorsJSON, comment, origin sql.NullString
	if err := s.Scan(&rev.RevisionID, &rev.EntityID, &changedJSON, &timestamp, &authorsJSON, &comment, &origin); err != nil {
		return nil, fmt.Errorf("scanning revision: %w", err)
	}
	if err := unmarshalJSON(changedJSON, &rev.Changed); err != nil {
		return nil, fmt.Errorf("parsing revision delta: %w", err)
	}
	ts, err := parseTime(timestamp)
	if err != nil {
		return nil, fmt.Errorf("parsing revision timestamp: %w", err)
	}
	rev.Timestamp = ts
	if authorsJSON.Valid {
		if err := unmarshalJSON(authorsJSON.String, &rev.Authors); err != nil {
			return nil, fmt.Errorf("parsing revision authors: %w", err)
		}
	}
	rev.Comment = comment.String
	rev.Origin = origin.String
	return &rev, nil
}

// countRevisions returns the number of revisions recorded for one entity.
func countRevisions(q querier, table, column, entityID string) (int, error) {
	var n int
	err := q.QueryRow(
		fmt.Sprintf("SELECT count(*) FROM %s WHERE %s = ?", table, column),
		entityID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting revisions: %w", err)
	}
	return n, nil
}

// valueAtVersion resolves the value a field had at version index `version`
// (the state after the version-th edit): the first delta at or after that
// index that contains the field holds it; otherwise the field never changed
// again and the live value applies. The second return reports whether a
// delta supplied the value (false means "use the live value").
func valueAtVersion(revisions []*types.Revision, version int, field string) (any, bool) {
	for _, rev := range revisions[version:] {
		if v, ok := rev.Changed[field]; ok {
			return v, true
		}
	}
	return nil, false
}
