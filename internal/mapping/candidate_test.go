package mapping

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schemamap/internal/canonical"
)

func TestSourceString(t *testing.T) {
	tests := []struct {
		src      Source
		expected string
	}{
		{SourceUserConfirmed, "user_confirmed"},
		{SourceKnowledgeBase, "knowledge_base"},
		{SourceLanguageModel, "language_model"},
		{SourceLocalRule, "local_rule"},
		{SourceLocalFallback, "local_fallback"},
		{Source(42), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.src.String())
		})
	}
}

func TestSourceJSONRoundTrip(t *testing.T) {
	data, err := json.Marshal(struct {
		S Source `json:"s"`
	}{SourceKnowledgeBase})
	require.NoError(t, err)
	assert.JSONEq(t, `{"s":"knowledge_base"}`, string(data))

	var out struct {
		S Source `json:"s"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"s":"language_model"}`), &out))
	assert.Equal(t, SourceLanguageModel, out.S)

	require.Error(t, json.Unmarshal([]byte(`{"s":"oracle"}`), &out))
}

func TestDefaultWeights(t *testing.T) {
	w := DefaultWeights()
	require.NoError(t, w.Validate())

	assert.InDelta(t, 1.0, w.Weight(SourceUserConfirmed), 1e-9)
	assert.InDelta(t, 0.98, w.Weight(SourceKnowledgeBase), 1e-9)
	assert.InDelta(t, 0.9, w.Weight(SourceLanguageModel), 1e-9)
	assert.InDelta(t, 0.85, w.Weight(SourceLocalRule), 1e-9)
	assert.InDelta(t, 0.85, w.Weight(SourceLocalFallback), 1e-9)
}

func TestWeightsValidate(t *testing.T) {
	w := DefaultWeights()
	w.LanguageModel = 1.5
	require.Error(t, w.Validate())

	w = DefaultWeights()
	w.LocalRule = 0
	require.Error(t, w.Validate())
}

func TestCandidateEffective(t *testing.T) {
	c := Candidate{Type: canonical.Sales, Confidence: 0.9, Source: SourceLanguageModel}
	assert.InDelta(t, 0.81, c.Effective(DefaultWeights()), 1e-9)
}

func TestCandidateListSorted(t *testing.T) {
	list := CandidateList{
		{Type: canonical.Amount, Confidence: 0.8, Source: SourceLocalRule},
		{Type: canonical.Sales, Confidence: 0.9, Source: SourceLocalRule},
		{Type: canonical.Date, Confidence: 0.8, Source: SourceLocalRule},
		{Type: canonical.Region, Confidence: 0.8, Source: SourceKnowledgeBase},
	}

	sorted := list.Sorted()
	require.Len(t, sorted, 4)
	assert.Equal(t, canonical.Sales, sorted[0].Type)
	assert.Equal(t, canonical.Region, sorted[1].Type, "higher-priority source first on equal confidence")
	assert.Equal(t, canonical.Date, sorted[2].Type, "vocabulary order last")
	assert.Equal(t, canonical.Amount, sorted[3].Type)

	// original untouched
	assert.Equal(t, canonical.Amount, list[0].Type)
}

func TestRankEffectiveTieBreaksBySourcePriority(t *testing.T) {
	w := Weights{UserConfirmed: 1, KnowledgeBase: 1, LanguageModel: 1, LocalRule: 1}
	list := CandidateList{
		{Type: canonical.Amount, Confidence: 0.8, Source: SourceLocalRule},
		{Type: canonical.Sales, Confidence: 0.8, Source: SourceLanguageModel},
		{Type: canonical.Profit, Confidence: 0.8, Source: SourceUserConfirmed},
	}

	ranked := list.RankEffective(w)
	assert.Equal(t, canonical.Profit, ranked[0].Type)
	assert.Equal(t, canonical.Sales, ranked[1].Type)
	assert.Equal(t, canonical.Amount, ranked[2].Type)
}

func TestRankEffectiveUsesWeights(t *testing.T) {
	list := CandidateList{
		{Type: canonical.Amount, Confidence: 0.95, Source: SourceLocalRule},    // 0.8075
		{Type: canonical.Sales, Confidence: 0.92, Source: SourceLanguageModel}, // 0.828
	}

	ranked := list.RankEffective(DefaultWeights())
	assert.Equal(t, canonical.Sales, ranked[0].Type)
}

func TestCandidateListHelpers(t *testing.T) {
	list := CandidateList{
		{Type: canonical.Sales, Confidence: 0.9},
		{Type: canonical.Amount, Confidence: 0.85},
		{Type: canonical.Sales, Confidence: 0.5},
	}

	assert.Equal(t, canonical.Sales, list.Best().Type)
	assert.Len(t, list.Top(2), 2)
	assert.Len(t, list.Top(10), 3)
	assert.Len(t, list.AboveThreshold(0.8), 2)
	assert.True(t, list.IsAmbiguous(0.1))
	assert.False(t, list.IsAmbiguous(0.01))

	var empty CandidateList
	assert.Nil(t, empty.Best())
	assert.False(t, empty.IsAmbiguous(1))
}

func TestDedupe(t *testing.T) {
	list := CandidateList{
		{Type: canonical.Sales, Confidence: 0.7, Strategy: "fuzzy"},
		{Type: canonical.Amount, Confidence: 0.75, Strategy: "fuzzy"},
		{Type: canonical.Sales, Confidence: 0.9, Strategy: "semantic"},
		{Type: canonical.Sales, Confidence: 0.9, Strategy: "token_split"},
	}

	out := list.Dedupe()
	require.Len(t, out, 2)
	assert.Equal(t, canonical.Sales, out[0].Type)
	assert.Equal(t, "semantic", out[0].Strategy)
	assert.Equal(t, canonical.Amount, out[1].Type)
}

func TestDiscount(t *testing.T) {
	c := Candidate{Type: canonical.Date, Confidence: 0.85, Source: SourceLocalRule}
	d := c.Discount(0.8, SourceLocalFallback)

	assert.InDelta(t, 0.68, d.Confidence, 1e-9)
	assert.Equal(t, SourceLocalFallback, d.Source)
	assert.Equal(t, canonical.Date, d.Type)
	assert.InDelta(t, 0.85, c.Confidence, 1e-9)
}

func TestClamp01(t *testing.T) {
	assert.InDelta(t, 0.0, Clamp01(-1), 1e-9)
	assert.InDelta(t, 1.0, Clamp01(3), 1e-9)
	assert.InDelta(t, 0.4, Clamp01(0.4), 1e-9)
}
