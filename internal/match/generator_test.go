package match

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schemamap/internal/canonical"
	"schemamap/internal/embed"
	"schemamap/internal/mapping"
)

func semanticGenerator(t *testing.T) *Generator {
	t.Helper()

	table := canonical.Default()
	idx, err := embed.BuildIndex(context.Background(), embed.NewHashEmbedder(embed.DefaultHashDim), table)
	require.NoError(t, err)

	return NewGenerator(Options{Table: table, Index: idx})
}

func TestGenerateExactAliases(t *testing.T) {
	gen := NewGenerator(Options{})

	results := gen.Generate(context.Background(), []string{"Sale_Date", "Sales_Amount", "Product_ID", "Region"})
	require.Len(t, results, 4)

	want := []canonical.Type{canonical.Date, canonical.Sales, canonical.Product, canonical.Region}
	for i, res := range results {
		assert.Equal(t, i, res.Index)

		best := res.Best()
		require.NotNil(t, best, res.Raw)
		assert.Equal(t, want[i], best.Type, res.Raw)
		assert.InDelta(t, 1.0, best.Confidence, 1e-9)
		assert.Equal(t, mapping.SourceLocalRule, best.Source)
		assert.Equal(t, StrategyExactAlias, best.Strategy)
	}
}

func TestExactAliasAlwaysTop(t *testing.T) {
	gen := semanticGenerator(t)
	table := canonical.Default()

	var headers []string
	for _, pair := range table.Synonyms() {
		headers = append(headers, pair.Synonym)
	}

	for i, res := range gen.Generate(context.Background(), headers) {
		want, ok := table.Lookup(headers[i])
		require.True(t, ok)

		best := res.Best()
		require.NotNil(t, best, headers[i])
		assert.Equal(t, want, best.Type, headers[i])
		assert.InDelta(t, 1.0, best.Confidence, 1e-9, headers[i])
		assert.Equal(t, mapping.SourceLocalRule, best.Source)

		for _, c := range res.Candidates[1:] {
			assert.Less(t, c.Confidence, 1.0, "only the alias reaches 1.0 for %q", headers[i])
		}
	}
}

func TestGenerateFuzzyAbbreviations(t *testing.T) {
	gen := semanticGenerator(t)

	results := gen.Generate(context.Background(), []string{"txn_dt", "rev"})

	tests := []struct {
		want canonical.Type
		conf float64
	}{
		{canonical.Date, 0.8},
		{canonical.Sales, 1 - 0.4*4.0/7.0},
	}

	for i, tt := range tests {
		best := results[i].Best()
		require.NotNil(t, best, results[i].Raw)
		assert.Equal(t, tt.want, best.Type, results[i].Raw)
		assert.InDelta(t, tt.conf, best.Confidence, 1e-9)
		assert.Equal(t, StrategyFuzzy, best.Strategy)
		assert.GreaterOrEqual(t, best.Confidence, 0.75)
		assert.Less(t, best.Confidence, 0.9)
	}
}

func TestGenerateWordsContainingShortAliases(t *testing.T) {
	gen := NewGenerator(Options{})

	results := gen.Generate(context.Background(), []string{"Department", "Continent", "Currency", "Country"})

	for _, res := range results[:3] {
		for _, c := range res.Candidates {
			assert.NotEqual(t, canonical.Date, c.Type, "%q: %s", res.Raw, c.Rationale)
			assert.NotEqual(t, canonical.Quantity, c.Type, "%q: %s", res.Raw, c.Rationale)
			assert.NotEqual(t, canonical.Customer, c.Type, "%q: %s", res.Raw, c.Rationale)
		}

		assert.Less(t, res.BestConfidence(), 0.75, "%q must stay below the escalation cutoff", res.Raw)
	}

	country := results[3]
	require.NotNil(t, country.Best())
	assert.Equal(t, canonical.Region, country.Best().Type)

	for _, c := range country.Candidates {
		assert.NotEqual(t, canonical.Quantity, c.Type, c.Rationale)
	}
}

func TestGenerateTokenSplit(t *testing.T) {
	gen := NewGenerator(Options{})

	res := gen.Generate(context.Background(), []string{"Region and Product"})[0]
	require.Len(t, res.Candidates, 2)

	types := []canonical.Type{res.Candidates[0].Type, res.Candidates[1].Type}
	assert.ElementsMatch(t, []canonical.Type{canonical.Region, canonical.Product}, types)

	for _, c := range res.Candidates {
		assert.Equal(t, StrategyTokenSplit, c.Strategy)
		assert.InDelta(t, 0.55, c.Confidence, 1e-9)
	}
}

func TestGenerateSubstringOverlap(t *testing.T) {
	gen := NewGenerator(Options{})

	results := gen.Generate(context.Background(), []string{"xxregionxx", "prod xyz abc"})

	contains := results[0].Best()
	require.NotNil(t, contains)
	assert.Equal(t, canonical.Region, contains.Type)
	assert.Equal(t, StrategySubstring, contains.Strategy)
	assert.InDelta(t, 0.3+0.3*6.0/10.0, contains.Confidence, 1e-9)

	var prefixTypes []canonical.Type
	for _, c := range results[1].Candidates {
		assert.Equal(t, StrategySubstring, c.Strategy)
		assert.InDelta(t, prefixScore, c.Confidence, 1e-9)
		prefixTypes = append(prefixTypes, c.Type)
	}

	assert.Contains(t, prefixTypes, canonical.Product)
}

func TestGenerateNoCandidates(t *testing.T) {
	gen := NewGenerator(Options{})

	for _, res := range gen.Generate(context.Background(), []string{"", "zzz qqq", "!!!"}) {
		assert.Empty(t, res.Candidates, "%q", res.Raw)
		assert.Nil(t, res.Best())
		assert.Zero(t, res.BestConfidence())
	}
}

type failingStrategy struct{}

func (failingStrategy) Name() string { return "broken" }

func (failingStrategy) Propose(context.Context, string) (mapping.CandidateList, error) {
	return nil, errors.New("model unavailable")
}

type constStrategy struct {
	cand mapping.Candidate
}

func (constStrategy) Name() string { return "const" }

func (s constStrategy) Propose(context.Context, string) (mapping.CandidateList, error) {
	return mapping.CandidateList{s.cand}, nil
}

func TestGenerateStrategyFailureFallsThrough(t *testing.T) {
	table := canonical.Default()
	gen := NewGeneratorWith(TokenSplit{Table: table}, failingStrategy{}, ExactAlias{Table: table})

	res := gen.Generate(context.Background(), []string{"Region"})[0]

	require.Len(t, res.Failed, 1)
	assert.Equal(t, "broken", res.Failed[0].Strategy)
	require.NotNil(t, res.Best())
	assert.Equal(t, canonical.Region, res.Best().Type)
}

func TestGenerateDropsInvalidCandidates(t *testing.T) {
	gen := NewGeneratorWith(nil,
		constStrategy{cand: mapping.Candidate{Type: "Nonsense", Confidence: 0.9}},
		constStrategy{cand: mapping.Candidate{Type: canonical.Ignore, Confidence: 0.9}},
		constStrategy{cand: mapping.Candidate{Type: canonical.Price, Confidence: 1.7}},
	)

	res := gen.Generate(context.Background(), []string{"anything"})[0]
	require.Len(t, res.Candidates, 1)
	assert.Equal(t, canonical.Price, res.Candidates[0].Type)
	assert.InDelta(t, 1.0, res.Candidates[0].Confidence, 1e-9)
}

func TestGenerateDeterministic(t *testing.T) {
	gen := semanticGenerator(t)
	headers := []string{"Sale_Date", "txn_dt", "rev", "Kunde", "Quantité", "xxregionxx", "prod xyz abc"}

	first := gen.Generate(context.Background(), headers)
	second := gen.Generate(context.Background(), headers)
	assert.Equal(t, first, second)
}
