package match

import "strings"

// qualifierTokens carry no semantic role of their own and are ignored when
// comparing token sequences ("txn dt" compares like "dt").
var qualifierTokens = map[string]bool{
	"txn": true, "trx": true, "trans": true, "transaction": true,
	"rec": true, "record": true, "entry": true,
	"the": true, "of": true, "per": true, "col": true, "field": true,
}

const (
	// abbreviationPenalty scales the share of the long form left unmatched:
	// "dt" of "date" scores 0.8, "rev" of "revenue" about 0.77.
	abbreviationPenalty = 0.4

	// minPrefixAbbreviation is the shortest prefix credited as an abbreviation.
	minPrefixAbbreviation = 3

	// fuzzyCeiling keeps fuzzy scores strictly below exact alias hits.
	fuzzyCeiling = 0.95
)

// TokenSimilarity scores a header token against a synonym token: the better
// of normalized Levenshtein similarity and abbreviation similarity. It is not
// symmetric; only the header token may be the abbreviation.
func TokenSimilarity(header, synonym string) float64 {
	return max(LevenshteinNormalized(header, synonym), abbreviationScore(header, synonym))
}

// abbreviationScore recognizes short as an abbreviation of long. Two shapes
// qualify: a prefix of at least three runes ("rev" of "revenue", "cust" of
// "customer") and a consonant skeleton that keeps the first rune ("dt" of
// "date", "qty" of "quantity", "amt" of "amount"). A longer token that merely
// contains long as a subsequence never qualifies.
func abbreviationScore(short, long string) float64 {
	rs, rl := []rune(short), []rune(long)
	if len(rs) < 2 || len(rs) >= len(rl) || rs[0] != rl[0] {
		return 0
	}

	if !isPrefixAbbreviation(rs, rl) && !isSkeletonAbbreviation(rs, rl) {
		return 0
	}

	unmatched := float64(len(rl)-len(rs)) / float64(len(rl))

	return 1 - abbreviationPenalty*unmatched
}

func isPrefixAbbreviation(short, long []rune) bool {
	if len(short) < minPrefixAbbreviation {
		return false
	}

	for i, r := range short {
		if long[i] != r {
			return false
		}
	}

	return true
}

// isSkeletonAbbreviation reports whether short, after its first rune, holds
// only consonants that appear in order among long's consonants.
func isSkeletonAbbreviation(short, long []rune) bool {
	for _, r := range short[1:] {
		if isVowel(r) {
			return false
		}
	}

	j := 1
	for i := 1; i < len(long) && j < len(short); i++ {
		if long[i] == short[j] {
			j++
		}
	}

	return j == len(short)
}

func isVowel(r rune) bool {
	switch r {
	case 'a', 'e', 'i', 'o', 'u':
		return true
	}

	return false
}

// SequenceSimilarity compares a header's tokens with a synonym's tokens,
// order-insensitively. Each synonym token is paired with its most similar
// unused header token; the summed similarity is divided by the longer
// sequence so unmatched tokens on either side cost score. The concatenated
// forms are compared too so "salesamount" still scores against "sales amount".
func SequenceSimilarity(header, synonym []string) float64 {
	header = significant(header)
	if len(header) == 0 || len(synonym) == 0 {
		return 0
	}

	used := make([]bool, len(header))

	var total float64

	for _, st := range synonym {
		best, bestIdx := 0.0, -1

		for i, ht := range header {
			if used[i] {
				continue
			}

			if sim := TokenSimilarity(ht, st); sim > best {
				best, bestIdx = sim, i
			}
		}

		if bestIdx >= 0 {
			used[bestIdx] = true
			total += best
		}
	}

	score := total / float64(max(len(header), len(synonym)))

	joined := LevenshteinNormalized(strings.Join(header, ""), strings.Join(synonym, ""))

	return min(max(score, joined), fuzzyCeiling)
}

func significant(tokens []string) []string {
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if !qualifierTokens[t] {
			out = append(out, t)
		}
	}

	if len(out) == 0 {
		return tokens
	}

	return out
}
