package mapping

import (
	"sort"

	"schemamap/internal/canonical"
)

// Candidate is a scored, sourced proposal mapping one header to one canonical type.
// Candidates are generated once per run and never persisted on their own.
type Candidate struct {
	Type canonical.Type
	// Confidence is the raw confidence on the 0-1 scale.
	Confidence float64
	Source     Source
	// Strategy names the rule that produced the candidate (exact_alias, fuzzy, ...).
	Strategy  string
	Rationale string
}

// Effective returns the candidate's effective score under the given weights.
func (c Candidate) Effective(w Weights) float64 {
	return c.Confidence * w.Weight(c.Source)
}

// CandidateList is a list of candidates with ranking functionality.
type CandidateList []Candidate

// Len implements sort.Interface.
func (c CandidateList) Len() int { return len(c) }

// Swap implements sort.Interface.
func (c CandidateList) Swap(i, j int) { c[i], c[j] = c[j], c[i] }

// Less implements sort.Interface.
// Sorts by raw confidence descending, then source priority, then vocabulary order.
func (c CandidateList) Less(i, j int) bool {
	if c[i].Confidence != c[j].Confidence {
		return c[i].Confidence > c[j].Confidence
	}

	if c[i].Source != c[j].Source {
		return c[i].Source < c[j].Source
	}

	return vocabIndex(c[i].Type) < vocabIndex(c[j].Type)
}

// Sorted returns a sorted copy of the list.
func (c CandidateList) Sorted() CandidateList {
	out := make(CandidateList, len(c))
	copy(out, c)
	sort.Stable(out)

	return out
}

// RankEffective returns a copy sorted by effective score descending. Ties
// break by source priority (user_confirmed > knowledge_base > language_model
// > local_rule), then by raw confidence, then vocabulary order.
func (c CandidateList) RankEffective(w Weights) CandidateList {
	out := make(CandidateList, len(c))
	copy(out, c)

	sort.SliceStable(out, func(i, j int) bool {
		ei, ej := out[i].Effective(w), out[j].Effective(w)
		if ei != ej {
			return ei > ej
		}

		if out[i].Source != out[j].Source {
			return out[i].Source < out[j].Source
		}

		if out[i].Confidence != out[j].Confidence {
			return out[i].Confidence > out[j].Confidence
		}

		return vocabIndex(out[i].Type) < vocabIndex(out[j].Type)
	})

	return out
}

// Best returns the first candidate, or nil if the list is empty.
func (c CandidateList) Best() *Candidate {
	if len(c) == 0 {
		return nil
	}

	return &c[0]
}

// Top returns the top n candidates.
func (c CandidateList) Top(n int) CandidateList {
	if n >= len(c) {
		return c
	}

	return c[:n]
}

// AboveThreshold returns candidates whose raw confidence is at least threshold.
func (c CandidateList) AboveThreshold(threshold float64) CandidateList {
	var result CandidateList
	for _, cand := range c {
		if cand.Confidence >= threshold {
			result = append(result, cand)
		}
	}

	return result
}

// IsAmbiguous returns true if the top two candidates name different types
// and are within the threshold of each other.
func (c CandidateList) IsAmbiguous(threshold float64) bool {
	if len(c) < 2 || c[0].Type == c[1].Type {
		return false
	}

	return c[0].Confidence-c[1].Confidence < threshold
}

// Dedupe keeps the highest-confidence candidate per type, preserving the
// first occurrence on ties. The result is sorted.
func (c CandidateList) Dedupe() CandidateList {
	best := make(map[canonical.Type]int, len(c))

	var out CandidateList

	for _, cand := range c {
		idx, ok := best[cand.Type]
		if !ok {
			best[cand.Type] = len(out)
			out = append(out, cand)

			continue
		}

		if cand.Confidence > out[idx].Confidence {
			out[idx] = cand
		}
	}

	return out.Sorted()
}

// Discount returns a copy of the candidate with its confidence multiplied by
// factor and its source rewritten.
func (c Candidate) Discount(factor float64, src Source) Candidate {
	c.Confidence *= factor
	c.Source = src

	return c
}

func vocabIndex(t canonical.Type) int {
	for i, v := range canonical.Vocabulary() {
		if v == t {
			return i
		}
	}

	return len(canonical.Vocabulary())
}

// Clamp01 bounds a confidence to [0, 1].
func Clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}

	if x > 1 {
		return 1
	}

	return x
}
