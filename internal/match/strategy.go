package match

import (
	"context"
	"fmt"
	"strings"

	"schemamap/internal/canonical"
	"schemamap/internal/embed"
	"schemamap/internal/mapping"
)

// Strategy names recorded on candidates.
const (
	StrategyExactAlias = "exact_alias"
	StrategyFuzzy      = "fuzzy"
	StrategySemantic   = "semantic"
	StrategyTokenSplit = "token_split"
	StrategySubstring  = "substring"
)

const (
	// DefaultFuzzyMin is the minimum token-sequence similarity kept by the fuzzy strategy.
	DefaultFuzzyMin = 0.75
	// DefaultSemanticMin is the minimum cosine similarity kept by the semantic strategy.
	DefaultSemanticMin = 0.70

	semanticCeiling = 0.99

	// token split hits score in [0.4, 0.7]; substring hits in [0.3, 0.6].
	tokenSplitBase   = 0.4
	tokenSplitSpan   = 0.3
	substringBase    = 0.3
	substringSpan    = 0.3
	minSubstringRune = 4
	minPrefixRune    = 3
	prefixScore      = 0.3
)

// Strategy proposes candidates for one normalized header. A strategy may
// fail; the generator records the failure and moves on.
type Strategy interface {
	Name() string
	Propose(ctx context.Context, normalized string) (mapping.CandidateList, error)
}

// ExactAlias looks the whole normalized header up in the synonym table.
type ExactAlias struct {
	Table *canonical.Table
}

// Name implements Strategy.
func (s ExactAlias) Name() string { return StrategyExactAlias }

// Propose implements Strategy.
func (s ExactAlias) Propose(_ context.Context, normalized string) (mapping.CandidateList, error) {
	typ, ok := s.Table.Lookup(normalized)
	if !ok {
		return nil, nil
	}

	return mapping.CandidateList{{
		Type:       typ,
		Confidence: 1.0,
		Source:     mapping.SourceLocalRule,
		Strategy:   StrategyExactAlias,
		Rationale:  fmt.Sprintf("exact alias %q", normalized),
	}}, nil
}

// Fuzzy scores token-sequence similarity against every synonym.
type Fuzzy struct {
	Table *canonical.Table
	Min   float64
}

// Name implements Strategy.
func (s Fuzzy) Name() string { return StrategyFuzzy }

// Propose implements Strategy.
func (s Fuzzy) Propose(_ context.Context, normalized string) (mapping.CandidateList, error) {
	tokens := Tokens(normalized)
	if len(tokens) == 0 {
		return nil, nil
	}

	minScore := s.Min
	if minScore <= 0 {
		minScore = DefaultFuzzyMin
	}

	var out mapping.CandidateList

	for _, pair := range s.Table.Synonyms() {
		sim := SequenceSimilarity(tokens, Tokens(pair.Synonym))
		if sim < minScore {
			continue
		}

		out = append(out, mapping.Candidate{
			Type:       pair.Type,
			Confidence: sim,
			Source:     mapping.SourceLocalRule,
			Strategy:   StrategyFuzzy,
			Rationale:  fmt.Sprintf("fuzzy match to %q (%.2f)", pair.Synonym, sim),
		})
	}

	return out.Dedupe(), nil
}

// Semantic compares the header embedding with precomputed description embeddings.
type Semantic struct {
	Index *embed.Index
	Min   float64
}

// Name implements Strategy.
func (s Semantic) Name() string { return StrategySemantic }

// Propose implements Strategy.
func (s Semantic) Propose(ctx context.Context, normalized string) (mapping.CandidateList, error) {
	if s.Index == nil {
		return nil, fmt.Errorf("semantic index not configured")
	}

	minScore := s.Min
	if minScore <= 0 {
		minScore = DefaultSemanticMin
	}

	matches, err := s.Index.Nearest(ctx, normalized, minScore)
	if err != nil {
		return nil, err
	}

	out := make(mapping.CandidateList, 0, len(matches))
	for _, m := range matches {
		out = append(out, mapping.Candidate{
			Type:       m.Type,
			Confidence: min(m.Similarity, semanticCeiling),
			Source:     mapping.SourceLocalRule,
			Strategy:   StrategySemantic,
			Rationale:  fmt.Sprintf("semantic similarity %.2f", m.Similarity),
		})
	}

	return out, nil
}

// TokenSplit is the last-resort strategy. It looks up every contiguous run of
// tokens (delimiters and "and" removed) in the synonym table; when nothing
// matches it falls back to substring and prefix overlap so a header with any
// partial token match is never left without a candidate.
type TokenSplit struct {
	Table *canonical.Table
}

// Name implements Strategy.
func (s TokenSplit) Name() string { return StrategyTokenSplit }

// Propose implements Strategy.
func (s TokenSplit) Propose(_ context.Context, normalized string) (mapping.CandidateList, error) {
	tokens := splitTokens(normalized)
	if len(tokens) == 0 {
		return nil, nil
	}

	var out mapping.CandidateList

	for size := len(tokens); size >= 1; size-- {
		for start := 0; start+size <= len(tokens); start++ {
			span := strings.Join(tokens[start:start+size], " ")

			typ, ok := s.Table.Lookup(span)
			if !ok {
				continue
			}

			out = append(out, mapping.Candidate{
				Type:       typ,
				Confidence: tokenSplitBase + tokenSplitSpan*float64(size)/float64(len(tokens)),
				Source:     mapping.SourceLocalRule,
				Strategy:   StrategyTokenSplit,
				Rationale:  fmt.Sprintf("token %q is an alias", span),
			})
		}
	}

	if len(out) > 0 {
		return out.Dedupe(), nil
	}

	return s.overlap(tokens).Dedupe(), nil
}

// overlap applies the weak substring and prefix heuristics.
func (s TokenSplit) overlap(tokens []string) mapping.CandidateList {
	compact := strings.Join(tokens, "")
	compactLen := len([]rune(compact))

	var out mapping.CandidateList

	for _, pair := range s.Table.Synonyms() {
		syn := strings.ReplaceAll(pair.Synonym, " ", "")
		synLen := len([]rune(syn))

		if synLen >= minSubstringRune && strings.Contains(compact, syn) {
			out = append(out, mapping.Candidate{
				Type:       pair.Type,
				Confidence: substringBase + substringSpan*float64(synLen)/float64(compactLen),
				Source:     mapping.SourceLocalRule,
				Strategy:   StrategySubstring,
				Rationale:  fmt.Sprintf("contains alias %q", pair.Synonym),
			})

			continue
		}

		for _, tok := range tokens {
			if len([]rune(tok)) >= minPrefixRune && len(tok) < len(syn) && strings.HasPrefix(syn, tok) {
				out = append(out, mapping.Candidate{
					Type:       pair.Type,
					Confidence: prefixScore,
					Source:     mapping.SourceLocalRule,
					Strategy:   StrategySubstring,
					Rationale:  fmt.Sprintf("token %q prefixes alias %q", tok, pair.Synonym),
				})

				break
			}
		}
	}

	return out
}

// splitTokens splits on whitespace and drops the conjunction "and"; the
// other delimiters (_ & |) were already turned into spaces by NormalizeHeader.
func splitTokens(normalized string) []string {
	var out []string
	for _, t := range Tokens(normalized) {
		if t != "and" {
			out = append(out, t)
		}
	}

	return out
}
