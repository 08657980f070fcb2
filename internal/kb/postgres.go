package kb

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS kb_entries (
	key            TEXT PRIMARY KEY,
	domain         TEXT NOT NULL,
	normalized     TEXT NOT NULL,
	canonical_type TEXT NOT NULL,
	confidence     DOUBLE PRECISION NOT NULL,
	source         TEXT NOT NULL,
	usage_count    INTEGER NOT NULL DEFAULT 1,
	updated_at     TIMESTAMPTZ NOT NULL
)`

const postgresUpsert = `
INSERT INTO kb_entries (key, domain, normalized, canonical_type, confidence, source, usage_count, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, 1, $7)
ON CONFLICT (key) DO UPDATE SET
	usage_count    = kb_entries.usage_count + 1,
	updated_at     = EXCLUDED.updated_at,
	canonical_type = CASE WHEN kb_entries.source = 'user_confirmed' AND EXCLUDED.source <> 'user_confirmed'
		THEN kb_entries.canonical_type ELSE EXCLUDED.canonical_type END,
	confidence     = CASE WHEN kb_entries.source = 'user_confirmed' AND EXCLUDED.source <> 'user_confirmed'
		THEN kb_entries.confidence ELSE EXCLUDED.confidence END,
	source         = CASE WHEN kb_entries.source = 'user_confirmed' AND EXCLUDED.source <> 'user_confirmed'
		THEN kb_entries.source ELSE EXCLUDED.source END`

const postgresGet = `
SELECT key, domain, normalized, canonical_type, confidence, source, usage_count, updated_at
FROM kb_entries WHERE key = $1`

// PostgresStore persists entries in PostgreSQL through a pgx pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects to dsn and migrates the schema.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, eris.Wrap(err, "parse postgres dsn")
	}

	poolConfig.MaxConns = 10
	poolConfig.MinConns = 1
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = time.Minute * 30

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, eris.Wrap(err, "create postgres pool")
	}

	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()

		return nil, eris.Wrap(err, "migrate kb schema")
	}

	return &PostgresStore{pool: pool}, nil
}

// Get implements Store.
func (s *PostgresStore) Get(ctx context.Context, key string) (Entry, error) {
	var (
		e       Entry
		typ     string
		source  string
		updated time.Time
	)

	err := s.pool.QueryRow(ctx, postgresGet, key).Scan(
		&e.Key, &e.Domain, &e.Normalized, &typ, &e.Confidence, &source, &e.UsageCount, &updated,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Entry{}, ErrNotFound
	}

	if err != nil {
		return Entry{}, eris.Wrap(err, "query kb entry")
	}

	return decodeEntry(e, typ, source, updated.UTC())
}

// Upsert implements Store.
func (s *PostgresStore) Upsert(ctx context.Context, e Entry) error {
	if e.UpdatedAt.IsZero() {
		e.UpdatedAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx, postgresUpsert,
		e.Key, e.Domain, e.Normalized, string(e.Type), e.Confidence, e.Source.String(), e.UpdatedAt,
	)
	if err != nil {
		return eris.Wrap(err, "upsert kb entry")
	}

	return nil
}

// Close implements Store.
func (s *PostgresStore) Close() error {
	s.pool.Close()

	return nil
}
