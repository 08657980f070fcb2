package escalation

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"schemamap/internal/canonical"
	"schemamap/internal/common"
	"schemamap/internal/logging"
	"schemamap/internal/mapping"
	"schemamap/internal/metrics"
)

// Config controls batching, retries and timeouts.
type Config struct {
	MaxBatchSize   int
	MaxRetries     int
	BaseBackoff    time.Duration
	MaxBackoff     time.Duration
	RequestTimeout time.Duration
	// Parallelism is the number of batches in flight; 1 dispatches sequentially.
	Parallelism int
	// FallbackDiscount multiplies the best local confidence when a batch fails.
	FallbackDiscount float64
}

// DefaultConfig returns the reference settings.
func DefaultConfig() Config {
	return Config{
		MaxBatchSize:     20,
		MaxRetries:       3,
		BaseBackoff:      500 * time.Millisecond,
		MaxBackoff:       8 * time.Second,
		RequestTimeout:   30 * time.Second,
		Parallelism:      1,
		FallbackDiscount: 0.8,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()

	if c.MaxBatchSize <= 0 {
		c.MaxBatchSize = def.MaxBatchSize
	}

	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}

	if c.BaseBackoff <= 0 {
		c.BaseBackoff = def.BaseBackoff
	}

	if c.MaxBackoff < c.BaseBackoff {
		c.MaxBackoff = c.BaseBackoff
	}

	if c.RequestTimeout <= 0 {
		c.RequestTimeout = def.RequestTimeout
	}

	if c.Parallelism <= 0 {
		c.Parallelism = 1
	}

	if c.FallbackDiscount <= 0 || c.FallbackDiscount > 1 {
		c.FallbackDiscount = def.FallbackDiscount
	}

	return c
}

// Request is one header to escalate together with its local candidates,
// which serve as the fallback if the model cannot be reached.
type Request struct {
	Header string
	Local  mapping.CandidateList
}

// Response is the outcome for one Request, in the same position.
type Response struct {
	Header string
	// Candidates holds the model's suggestion (source language_model), the
	// discounted local fallback (source local_fallback), or nothing when the
	// model answered but omitted or garbled this header.
	Candidates mapping.CandidateList
	// FellBack is set when the header's batch exhausted its retries.
	FellBack bool
	// Err is the last batch error when FellBack is set.
	Err error
}

// Client escalates headers to a language model.
type Client struct {
	transport Transport
	table     *canonical.Table
	cfg       Config
	logger    *zap.Logger
	stats     *Stats
}

// NewClient creates a client. A nil table uses the built-in vocabulary.
func NewClient(transport Transport, table *canonical.Table, cfg Config, logger *zap.Logger) *Client {
	if table == nil {
		table = canonical.Default()
	}

	return &Client{
		transport: transport,
		table:     table,
		cfg:       cfg.withDefaults(),
		logger:    logging.OrNop(logger).Named("escalation"),
		stats:     &Stats{},
	}
}

// Enabled reports whether the client has a transport.
func (c *Client) Enabled() bool {
	return c != nil && c.transport != nil
}

// Stats returns the client's counters.
func (c *Client) Stats() StatsSnapshot {
	return c.stats.Snapshot()
}

// Resolve escalates every request. It never returns an error: failed
// batches degrade to local fallback. The result is aligned with reqs.
func (c *Client) Resolve(ctx context.Context, reqs []Request) []Response {
	if len(reqs) == 0 {
		return nil
	}

	positions := make([]int, len(reqs))
	for i := range positions {
		positions[i] = i
	}

	results := make([]Response, len(reqs))

	g := new(errgroup.Group)
	g.SetLimit(c.cfg.Parallelism)

	for n, batch := range common.Chunk(positions, c.cfg.MaxBatchSize) {
		g.Go(func() error {
			c.runBatch(ctx, n, reqs, batch, results)

			return nil
		})
	}

	_ = g.Wait()

	return results
}

// runBatch writes only to the results slots of its own positions.
func (c *Client) runBatch(ctx context.Context, n int, reqs []Request, batch []int, results []Response) {
	headers := make([]string, len(batch))
	for i, pos := range batch {
		headers[i] = reqs[pos].Header
	}

	logger := c.logger.With(zap.Int("batch", n), zap.Int("headers", len(headers)))

	suggestions, err := c.complete(ctx, logger, headers)
	if err != nil {
		logger.Warn("escalation failed, using discounted local candidates", zap.Error(err))
		c.stats.recordFallback(len(batch))

		for _, pos := range batch {
			results[pos] = c.fallback(reqs[pos], err)
		}

		return
	}

	byHeader := make(map[string]Suggestion, len(suggestions))
	for _, s := range suggestions {
		byHeader[s.Original] = s
	}

	for _, pos := range batch {
		resp := Response{Header: reqs[pos].Header}

		if s, ok := byHeader[reqs[pos].Header]; ok {
			resp.Candidates = mapping.CandidateList{{
				Type:       s.Type,
				Confidence: s.Confidence / 100,
				Source:     mapping.SourceLanguageModel,
				Strategy:   "llm",
				Rationale:  s.Reason,
			}}
		}

		results[pos] = resp
	}
}

func (c *Client) fallback(req Request, err error) Response {
	resp := Response{Header: req.Header, FellBack: true, Err: err}

	best := req.Local.Sorted().Best()
	if best == nil {
		return resp
	}

	cand := best.Discount(c.cfg.FallbackDiscount, mapping.SourceLocalFallback)
	cand.Rationale = fmt.Sprintf("escalation unavailable; %s", best.Rationale)
	resp.Candidates = mapping.CandidateList{cand}

	return resp
}

// complete runs the retry loop for one batch.
func (c *Client) complete(ctx context.Context, logger *zap.Logger, headers []string) ([]Suggestion, error) {
	prompt := BuildPrompt(headers, c.table)

	var lastErr error

	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			c.stats.recordRetry()
			metrics.EscalationRetries.Inc()

			if err := sleep(ctx, jitter(c.backoff(attempt-1))); err != nil {
				return nil, eris.Wrapf(lastErr, "retry aborted: %v", err)
			}
		}

		suggestions, err := c.attempt(ctx, prompt, headers)
		if err == nil {
			return suggestions, nil
		}

		lastErr = err
		logger.Warn("escalation attempt failed", zap.Int("attempt", attempt+1), zap.Error(err))

		if ctx.Err() != nil {
			break
		}
	}

	return nil, lastErr
}

func (c *Client) attempt(ctx context.Context, prompt string, headers []string) ([]Suggestion, error) {
	actx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()

	start := time.Now()
	reply, err := c.transport.Complete(actx, prompt)
	latency := time.Since(start)

	if err != nil {
		c.stats.recordCall(latency, false, false)
		metrics.RecordEscalationCall(false, latency)

		return nil, eris.Wrap(err, "transport")
	}

	suggestions, dropped, err := ParseReply(reply, headers)
	if err != nil {
		c.stats.recordCall(latency, false, true)
		metrics.RecordEscalationCall(false, latency)
		metrics.EscalationParseErrors.Inc()

		return nil, eris.Wrap(err, "parse reply")
	}

	c.stats.recordCall(latency, true, false)
	c.stats.recordDropped(dropped)
	metrics.RecordEscalationCall(true, latency)

	return suggestions, nil
}

// backoff returns BaseBackoff * 2^n capped at MaxBackoff.
func (c *Client) backoff(n int) time.Duration {
	d := c.cfg.BaseBackoff
	for i := 0; i < n && d < c.cfg.MaxBackoff; i++ {
		d *= 2
	}

	return min(d, c.cfg.MaxBackoff)
}

// jitter spreads d uniformly over [d/2, d].
func jitter(d time.Duration) time.Duration {
	half := d / 2
	if half <= 0 {
		return d
	}

	return half + rand.N(half+1)
}

func sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
