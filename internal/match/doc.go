// Package match implements the header normalizer: it canonicalizes raw
// column headers and proposes ranked candidate canonical types for each.
//
// Normalization folds Unicode to ASCII where possible, lower-cases, strips
// punctuation and collapses separators into single spaces. Candidate
// generation runs independent strategies against the canonical synonym table:
//   - ExactAlias: whole-header synonym lookup, confidence 1.0
//   - Fuzzy: token-sequence similarity (Levenshtein plus abbreviation) >= 0.75
//   - Semantic: embedding cosine against type descriptions >= 0.70
//   - TokenSplit: per-token alias lookup, then substring overlap, only when
//     the other strategies found nothing
//
// Every candidate carries source local_rule. Generation is deterministic and
// has no side effects.
package match
