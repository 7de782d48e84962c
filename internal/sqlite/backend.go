// Package sqlite implements the SQLite storage backend for the elog core:
// logbook and entry tables, the append-only revision log, advisory entry
// locks, and the recursive search engine.
package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mesh-intelligence/elog/pkg/types"
)

// databaseFile is the SQLite database filename within DataDir.
const databaseFile = "elog.db"

// timeFormat is the storage format for timestamps: RFC 3339 UTC with fixed
// six-digit fractional seconds, so lexicographic order on the stored text
// equals chronological order.
const timeFormat = "2006-01-02T15:04:05.000000Z07:00"

// Compile-time interface check: Backend must implement types.Store.
var _ types.Store = (*Backend)(nil)

// Backend implements types.Store on a single SQLite database. The database
// is the source of truth; every read-modify-write runs in one transaction.
type Backend struct {
	mu       sync.RWMutex
	attached bool
	config   types.Config
	db       *sql.DB
}

// NewBackend creates a new SQLite backend instance.
// The backend is not attached; call Attach with a Config to initialize.
func NewBackend() *Backend {
	return &Backend{}
}

// Attach initializes the backend with the given configuration. Creates
// DataDir if it does not exist and ensures the schema is present.
// Returns ErrAlreadyAttached if already attached.
func (b *Backend) Attach(config types.Config) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.attached {
		return types.ErrAlreadyAttached
	}
	if err := config.Validate(); err != nil {
		return err
	}

	dataDir := config.DataDir
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("creating data dir: %w", err)
	}

	db, err := sql.Open("sqlite", filepath.Join(dataDir, databaseFile))
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}

	for _, ddl := range schemaDDL {
		if _, err := db.Exec(ddl); err != nil {
			db.Close()
			return fmt.Errorf("creating schema: %w", err)
		}
	}
	for _, ddl := range indexDDL {
		if _, err := db.Exec(ddl); err != nil {
			db.Close()
			return fmt.Errorf("creating indexes: %w", err)
		}
	}

	b.db = db
	b.config = config
	b.attached = true
	return nil
}

// Detach releases the database handle. After Detach, all operations return
// ErrStoreDetached. Detach is idempotent.
func (b *Backend) Detach() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return nil
	}
	if b.db != nil {
		if err := b.db.Close(); err != nil {
			return err
		}
		b.db = nil
	}
	b.attached = false
	return nil
}

// ready returns ErrStoreDetached unless the backend is attached.
// The caller must hold b.mu (read or write).
func (b *Backend) ready() error {
	if !b.attached {
		return types.ErrStoreDetached
	}
	return nil
}

// newUUID generates a UUID v7 string for entity IDs. UUID v7 is
// time-ordered, so lexicographic ID order follows creation order.
func newUUID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// formatTime renders a timestamp in the storage format.
func formatTime(t time.Time) string {
	return t.UTC().Format(timeFormat)
}

// parseTime reads a timestamp in the storage format.
func parseTime(s string) (time.Time, error) {
	return time.Parse(timeFormat, s)
}

// nullTime renders an optional timestamp for a nullable column.
func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

// nullString renders an optional string for a nullable column. The empty
// string is stored as NULL so text filters treat it as absent.
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// marshalJSON serializes a value for a JSON column.
func marshalJSON(v any, what string) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshaling %s: %w", what, err)
	}
	return string(data), nil
}

// normalize passes a value through a JSON round-trip so values from the
// database and values supplied by callers compare structurally equal
// (numbers as float64, lists as []any, objects as map[string]any).
func normalize(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("normalizing value: %w", err)
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("normalizing value: %w", err)
	}
	return out, nil
}

// unmarshalJSON decodes a JSON column value into a target.
func unmarshalJSON(s string, target any) error {
	return json.Unmarshal([]byte(s), target)
}

// remarshal decodes a JSON-shaped value into a typed target, e.g. []any
// into []types.Author.
func remarshal(v any, target any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("remarshaling value: %w", err)
	}
	return json.Unmarshal(data, target)
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}
