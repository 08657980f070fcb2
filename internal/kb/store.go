package kb

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/rotisserie/eris"

	"schemamap/internal/canonical"
	"schemamap/internal/mapping"
)

// ErrNotFound is returned by Store.Get on a miss.
var ErrNotFound = eris.New("kb: entry not found")

// Entry is one remembered mapping.
type Entry struct {
	Key        string
	Domain     string
	Normalized string
	Type       canonical.Type
	// Confidence is on the 0-1 scale.
	Confidence float64
	Source     mapping.Source
	UsageCount int
	UpdatedAt  time.Time
}

// Store is a point lookup / upsert key-value store.
type Store interface {
	// Get returns the entry for key or ErrNotFound.
	Get(ctx context.Context, key string) (Entry, error)
	// Upsert inserts e or updates the existing entry with the same key,
	// incrementing its usage count.
	Upsert(ctx context.Context, e Entry) error
	Close() error
}

// Key hashes the domain context and normalized header into a stable key.
func Key(domain, normalized string) string {
	sum := sha256.Sum256([]byte(domain + "|" + normalized))

	return hex.EncodeToString(sum[:])
}

// merge applies upsert semantics of incoming onto existing.
func merge(existing, incoming Entry) Entry {
	out := existing
	out.UsageCount++
	out.UpdatedAt = incoming.UpdatedAt

	if existing.Source == mapping.SourceUserConfirmed && incoming.Source != mapping.SourceUserConfirmed {
		return out
	}

	out.Type = incoming.Type
	out.Confidence = incoming.Confidence
	out.Source = incoming.Source

	return out
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]Entry)}
}

// Get implements Store.
func (m *MemoryStore) Get(_ context.Context, key string) (Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.entries[key]
	if !ok {
		return Entry{}, ErrNotFound
	}

	return e, nil
}

// Upsert implements Store.
func (m *MemoryStore) Upsert(_ context.Context, e Entry) error {
	if e.UpdatedAt.IsZero() {
		e.UpdatedAt = time.Now().UTC()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.entries[e.Key]
	if !ok {
		e.UsageCount = 1
		m.entries[e.Key] = e

		return nil
	}

	m.entries[e.Key] = merge(existing, e)

	return nil
}

// Len returns the number of stored entries.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.entries)
}

// Close implements Store.
func (m *MemoryStore) Close() error { return nil }
