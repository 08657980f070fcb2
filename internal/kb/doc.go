// Package kb implements the knowledge base cache: a durable store of
// previously accepted (header, canonical type) pairs consulted before the
// language model.
//
// Entries are addressed by Key(domain, normalized header). Any store with
// point lookup and upsert satisfies Store; MemoryStore, SQLiteStore and
// PostgresStore are provided. Upserts are idempotent and last writer wins,
// except that a user confirmation is only replaced by another confirmation.
//
// Cache wraps a Store for the pipeline: store failures degrade to misses and
// are logged, never returned.
package kb
