// Package escalation sends low-confidence headers to an external language
// model and turns its answers into language_model candidates.
//
// Only header text crosses the boundary, never cell values. Headers are
// grouped into bounded batches; each batch builds a strict JSON-only prompt,
// calls the Transport, extracts the first JSON object from the reply and
// validates every entry. Transport and parse failures are retried with
// exponential backoff and jitter. A batch that exhausts its retries degrades
// to the header's best local candidate, discounted and tagged local_fallback.
//
// Batches may run in parallel. Each batch owns its retry state and results
// are reassembled in input order, so parallelism changes only wall-clock time.
package escalation
