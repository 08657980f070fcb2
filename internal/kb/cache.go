package kb

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"schemamap/internal/canonical"
	"schemamap/internal/logging"
	"schemamap/internal/mapping"
	"schemamap/internal/metrics"
)

// Drivers accepted by Open.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Open creates the store for driver.
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	switch strings.ToLower(driver) {
	case "", DriverMemory:
		return NewMemoryStore(), nil
	case DriverSQLite:
		if dsn == "" {
			dsn = "schemamap.db"
		}

		return OpenSQLite(ctx, dsn)
	case DriverPostgres:
		return OpenPostgres(ctx, dsn)
	default:
		return nil, eris.Errorf("unknown kb driver %q", driver)
	}
}

// Cache is the pipeline's view of the knowledge base for one domain context.
// A nil store or a failing store behaves as an always-missing cache.
type Cache struct {
	store  Store
	domain string
	logger *zap.Logger
	now    func() time.Time
}

// NewCache wraps store for the given domain context.
func NewCache(store Store, domain string, logger *zap.Logger) *Cache {
	return &Cache{
		store:  store,
		domain: domain,
		logger: logging.OrNop(logger).Named("kb"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Domain returns the cache's domain context.
func (c *Cache) Domain() string { return c.domain }

// Lookup returns the remembered entry for a normalized header.
func (c *Cache) Lookup(ctx context.Context, normalized string) (Entry, bool) {
	if c == nil || c.store == nil {
		return Entry{}, false
	}

	e, err := c.store.Get(ctx, Key(c.domain, normalized))

	switch {
	case err == nil:
		metrics.RecordKBLookup(metrics.LookupHit)

		return e, true
	case errors.Is(err, ErrNotFound):
		metrics.RecordKBLookup(metrics.LookupMiss)
	default:
		metrics.RecordKBLookup(metrics.LookupError)
		c.logger.Warn("knowledge base lookup failed, treating as miss",
			zap.String("header", normalized), zap.Error(err))
	}

	return Entry{}, false
}

// Remember upserts a mapping. Failures are logged and reported as false.
func (c *Cache) Remember(ctx context.Context, normalized string, typ canonical.Type, confidence float64, src mapping.Source) bool {
	if c == nil || c.store == nil || typ.IsIgnore() || !typ.IsValid() {
		return false
	}

	err := c.store.Upsert(ctx, Entry{
		Key:        Key(c.domain, normalized),
		Domain:     c.domain,
		Normalized: normalized,
		Type:       typ,
		Confidence: mapping.Clamp01(confidence),
		Source:     src,
		UpdatedAt:  c.now(),
	})
	if err != nil {
		c.logger.Warn("knowledge base write failed",
			zap.String("header", normalized), zap.Stringer("type", typ), zap.Error(err))

		return false
	}

	return true
}

// Candidate converts a hit into a knowledge_base candidate.
func (e Entry) Candidate() mapping.Candidate {
	return mapping.Candidate{
		Type:       e.Type,
		Confidence: e.Confidence,
		Source:     mapping.SourceKnowledgeBase,
		Strategy:   "kb_" + e.Source.String(),
		Rationale:  fmt.Sprintf("remembered from %s, used %d times", e.Source, e.UsageCount),
	}
}
