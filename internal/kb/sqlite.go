package kb

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"schemamap/internal/canonical"
	"schemamap/internal/mapping"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS kb_entries (
	key            TEXT PRIMARY KEY,
	domain         TEXT NOT NULL,
	normalized     TEXT NOT NULL,
	canonical_type TEXT NOT NULL,
	confidence     REAL NOT NULL,
	source         TEXT NOT NULL,
	usage_count    INTEGER NOT NULL DEFAULT 1,
	updated_at     INTEGER NOT NULL
)`

// Assignments read the pre-update row, so every CASE sees the old source.
const sqliteUpsert = `
INSERT INTO kb_entries (key, domain, normalized, canonical_type, confidence, source, usage_count, updated_at)
VALUES (?, ?, ?, ?, ?, ?, 1, ?)
ON CONFLICT(key) DO UPDATE SET
	usage_count    = kb_entries.usage_count + 1,
	updated_at     = excluded.updated_at,
	canonical_type = CASE WHEN kb_entries.source = 'user_confirmed' AND excluded.source <> 'user_confirmed'
		THEN kb_entries.canonical_type ELSE excluded.canonical_type END,
	confidence     = CASE WHEN kb_entries.source = 'user_confirmed' AND excluded.source <> 'user_confirmed'
		THEN kb_entries.confidence ELSE excluded.confidence END,
	source         = CASE WHEN kb_entries.source = 'user_confirmed' AND excluded.source <> 'user_confirmed'
		THEN kb_entries.source ELSE excluded.source END`

const sqliteGet = `
SELECT key, domain, normalized, canonical_type, confidence, source, usage_count, updated_at
FROM kb_entries WHERE key = ?`

// SQLiteStore persists entries in a SQLite database file.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path and migrates the schema.
// Use ":memory:" for a throwaway store.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrapf(err, "open sqlite %s", path)
	}

	// a single connection keeps ":memory:" databases shared and serializes writers
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()

		return nil, eris.Wrap(err, "migrate kb schema")
	}

	return &SQLiteStore{db: db}, nil
}

// Get implements Store.
func (s *SQLiteStore) Get(ctx context.Context, key string) (Entry, error) {
	var (
		e       Entry
		typ     string
		source  string
		updated int64
	)

	err := s.db.QueryRowContext(ctx, sqliteGet, key).Scan(
		&e.Key, &e.Domain, &e.Normalized, &typ, &e.Confidence, &source, &e.UsageCount, &updated,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, ErrNotFound
	}

	if err != nil {
		return Entry{}, eris.Wrap(err, "query kb entry")
	}

	return decodeEntry(e, typ, source, time.Unix(0, updated).UTC())
}

// Upsert implements Store.
func (s *SQLiteStore) Upsert(ctx context.Context, e Entry) error {
	if e.UpdatedAt.IsZero() {
		e.UpdatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, sqliteUpsert,
		e.Key, e.Domain, e.Normalized, string(e.Type), e.Confidence, e.Source.String(), e.UpdatedAt.UnixNano(),
	)
	if err != nil {
		return eris.Wrap(err, "upsert kb entry")
	}

	return nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func decodeEntry(e Entry, typ, source string, updated time.Time) (Entry, error) {
	t, ok := canonical.Parse(typ)
	if !ok {
		return Entry{}, eris.Errorf("kb entry %s has unknown type %q", e.Key, typ)
	}

	src, err := mapping.ParseSource(source)
	if err != nil {
		return Entry{}, eris.Wrapf(err, "kb entry %s", e.Key)
	}

	e.Type = t
	e.Source = src
	e.UpdatedAt = updated

	return e, nil
}
