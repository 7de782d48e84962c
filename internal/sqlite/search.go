package sqlite

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/mesh-intelligence/elog/pkg/types"
)

// Search query assembly. Every caller-supplied value is a bind parameter;
// attribute names are validated before they are embedded in a JSON path.

// searchEntryColumns is entryColumns qualified for the entries alias.
const searchEntryColumns = `e.entry_id, e.logbook_id, e.title, e.authors, e.content, e.content_type,
    e.metadata, e.attributes, e.follows_id, e.archived, e.created_at, e.last_changed_at`

// logbookScopeCTE expands one logbook ID into the set containing it and all
// logbooks nested under it, to any depth.
const logbookScopeCTE = `WITH RECURSIVE scope(id) AS (
    SELECT ?
    UNION ALL
    SELECT l.logbook_id FROM logbooks l JOIN scope s ON l.parent_id = s.id
)
`

// Search returns entries matching the options, ordered by descending last
// activity, with pagination applied after ordering.
//
// Without text or author patterns the results are thread roots with
// followup aggregation. With any pattern set, aggregation is skipped and
// matching followups come back as individual rows, since the pattern may
// specifically target followup content.
func (b *Backend) Search(opts types.SearchOptions) ([]types.SearchResult, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if err := b.ready(); err != nil {
		return nil, err
	}

	query, args, err := buildSearchQuery(opts, false)
	if err != nil {
		return nil, err
	}

	rows, err := b.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying entries: %w", err)
	}
	defer rows.Close()

	var results []types.SearchResult
	for rows.Next() {
		result, err := hydrateSearchResult(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, *result)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating entries: %w", err)
	}
	return results, nil
}

// CountEntries returns the number of rows Search would match for the
// options, ignoring Limit and Offset. For aggregated searches this is the
// number of distinct threads.
func (b *Backend) CountEntries(opts types.SearchOptions) (int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if err := b.ready(); err != nil {
		return 0, err
	}

	query, args, err := buildSearchQuery(opts, true)
	if err != nil {
		return 0, err
	}

	var n int
	if err := b.db.QueryRow(query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting entries: %w", err)
	}
	return n, nil
}

// buildSearchQuery assembles the SQL for Search (count false) or
// CountEntries (count true) from the options.
func buildSearchQuery(opts types.SearchOptions, count bool) (string, []any, error) {
	var cte string
	var args []any
	var where []string

	if opts.LogbookID != "" {
		if opts.IncludeDescendants {
			cte = logbookScopeCTE
			args = append(args, opts.LogbookID)
			where = append(where, "e.logbook_id IN (SELECT id FROM scope)")
		} else {
			where = append(where, "e.logbook_id = ?")
			args = append(args, opts.LogbookID)
		}
	}
	if !opts.IncludeArchived {
		where = append(where, "e.archived = 0")
	}
	if opts.TitlePattern != "" {
		where = append(where, "e.title REGEXP ?")
		args = append(args, opts.TitlePattern)
	}
	if opts.ContentPattern != "" {
		where = append(where, "e.content REGEXP ?")
		args = append(args, opts.ContentPattern)
	}
	if opts.AuthorPattern != "" {
		where = append(where,
			`EXISTS (SELECT 1 FROM json_each(e.authors)
        WHERE json_extract(json_each.value, '$.name') REGEXP ?)`)
		args = append(args, opts.AuthorPattern)
	}
	for _, filter := range opts.AttributeFilters {
		path, err := attributePath(filter.Name)
		if err != nil {
			return "", nil, err
		}
		value, err := attributeFilterValue(filter)
		if err != nil {
			return "", nil, err
		}
		where = append(where, fmt.Sprintf("json_extract(e.attributes, %s) = ?", path))
		args = append(args, value)
	}

	aggregated := opts.Aggregated()
	if count {
		if aggregated {
			where = append(where, "e.follows_id IS NULL")
		}
		query := cte + "SELECT count(*) FROM entries e" + whereClause(where)
		return query, args, nil
	}

	var query string
	if aggregated {
		followJoin := "f.follows_id = e.entry_id"
		if !opts.IncludeArchived {
			followJoin += " AND f.archived = 0"
		}
		query = cte + fmt.Sprintf(`SELECT %s,
    count(f.entry_id) AS followups,
    max(coalesce(e.last_changed_at, e.created_at),
        coalesce(max(coalesce(f.last_changed_at, f.created_at)), '')) AS last_activity
FROM entries e
LEFT JOIN entries f ON %s%s
GROUP BY e.entry_id
HAVING e.follows_id IS NULL
ORDER BY last_activity DESC`, searchEntryColumns, followJoin, whereClause(where))
	} else {
		query = cte + fmt.Sprintf(`SELECT %s,
    0 AS followups,
    coalesce(e.last_changed_at, e.created_at) AS last_activity
FROM entries e%s
ORDER BY last_activity DESC`, searchEntryColumns, whereClause(where))
	}

	if opts.Limit > 0 {
		query += fmt.Sprintf("\nLIMIT %d", opts.Limit)
		if opts.Offset > 0 {
			query += fmt.Sprintf(" OFFSET %d", opts.Offset)
		}
	} else if opts.Offset > 0 {
		// SQLite requires a LIMIT before OFFSET; -1 means unlimited.
		query += fmt.Sprintf("\nLIMIT -1 OFFSET %d", opts.Offset)
	}
	return query, args, nil
}

// whereClause joins conditions into a WHERE clause, or returns the empty
// string when there are none.
func whereClause(conditions []string) string {
	if len(conditions) == 0 {
		return ""
	}
	return "\nWHERE " + strings.Join(conditions, "\n  AND ")
}

// attributePath renders a quoted JSON path for an attribute name. Names
// containing double quotes cannot be expressed safely and are rejected.
func attributePath(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("attribute filter name must not be empty: %w", types.ErrInvalidFilter)
	}
	if strings.ContainsAny(name, `"`) {
		return "", fmt.Errorf("attribute filter name %q must not contain quotes: %w", name, types.ErrInvalidFilter)
	}
	return `'$."` + name + `"'`, nil
}

// attributeFilterValue converts a filter value to its bindable form. JSON
// booleans extract as 0/1 integers, so booleans bind as integers. Only
// scalar values can be filtered on.
func attributeFilterValue(filter types.AttributeFilter) (any, error) {
	switch v := filter.Value.(type) {
	case string:
		return v, nil
	case bool:
		return boolToInt(v), nil
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	default:
		return nil, fmt.Errorf("attribute filter %q: value %v is not a scalar: %w",
			filter.Name, filter.Value, types.ErrInvalidFilter)
	}
}

// hydrateSearchResult converts one search row (entry columns plus followup
// count and last activity) into a SearchResult.
func hydrateSearchResult(s rowScanner) (*types.SearchResult, error) {
	var entry types.Entry
	var title, content, followsID, lastChanged sql.NullString
	var authorsJSON, metadataJSON, attributesJSON, createdAt string
	var archived, followups int
	var lastActivity string
	err := s.Scan(&entry.EntryID, &entry.LogbookID, &title, &authorsJSON,
		&content, &entry.ContentType, &metadataJSON, &attributesJSON,
		&followsID, &archived, &createdAt, &lastChanged,
		&followups, &lastActivity)
	if err != nil {
		return nil, fmt.Errorf("scanning search row: %w", err)
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

	activity, err := parseTime(lastActivity)
	if err != nil {
		return nil, fmt.Errorf("parsing last activity: %w", err)
	}
	return &types.SearchResult{
		Entry:         &entry,
		FollowupCount: followups,
		LastActivity:  activity,
	}, nil
}
