package match

import (
	"context"

	"schemamap/internal/canonical"
	"schemamap/internal/embed"
	"schemamap/internal/mapping"
)

// Result is the normalizer's output for one header.
type Result struct {
	// Index is the column position of the header.
	Index      int
	Raw        string
	Normalized string
	// Candidates are pooled across strategies, one per type, sorted by confidence.
	Candidates mapping.CandidateList
	// Failed lists strategies that returned an error for this header.
	Failed []StrategyFailure
}

// StrategyFailure records a strategy error that was absorbed.
type StrategyFailure struct {
	Strategy string
	Err      error
}

// Best returns the top candidate or nil when the header produced none.
func (r Result) Best() *mapping.Candidate {
	return r.Candidates.Best()
}

// BestConfidence returns the raw confidence of the top candidate, or 0.
func (r Result) BestConfidence() float64 {
	if best := r.Best(); best != nil {
		return best.Confidence
	}

	return 0
}

// Generator runs the candidate strategies over a header list.
type Generator struct {
	primary  []Strategy
	fallback Strategy
}

// Options configures NewGenerator.
type Options struct {
	Table *canonical.Table
	// Index enables the semantic strategy; nil disables it.
	Index       *embed.Index
	FuzzyMin    float64
	SemanticMin float64
}

// NewGenerator builds the default strategy chain: exact alias, fuzzy,
// semantic, with token split as the fallback when the pool stays empty.
func NewGenerator(opts Options) *Generator {
	table := opts.Table
	if table == nil {
		table = canonical.Default()
	}

	primary := []Strategy{
		ExactAlias{Table: table},
		Fuzzy{Table: table, Min: opts.FuzzyMin},
	}
	if opts.Index != nil {
		primary = append(primary, Semantic{Index: opts.Index, Min: opts.SemanticMin})
	}

	return &Generator{
		primary:  primary,
		fallback: TokenSplit{Table: table},
	}
}

// NewGeneratorWith builds a generator from explicit strategies. The fallback
// may be nil.
func NewGeneratorWith(fallback Strategy, primary ...Strategy) *Generator {
	return &Generator{primary: primary, fallback: fallback}
}

// Generate normalizes every header and proposes candidates. Output order
// matches input order. Generate never fails; strategy errors are recorded on
// the result and the next strategy runs.
func (g *Generator) Generate(ctx context.Context, headers []string) []Result {
	results := make([]Result, len(headers))

	for i, raw := range headers {
		results[i] = g.generateOne(ctx, i, raw)
	}

	return results
}

func (g *Generator) generateOne(ctx context.Context, idx int, raw string) Result {
	res := Result{
		Index:      idx,
		Raw:        raw,
		Normalized: NormalizeHeader(raw),
	}

	if res.Normalized == "" {
		return res
	}

	var pool mapping.CandidateList

	for _, s := range g.primary {
		pool = append(pool, g.run(ctx, s, &res)...)
	}

	if len(pool) == 0 && g.fallback != nil {
		pool = g.run(ctx, g.fallback, &res)
	}

	res.Candidates = pool.Dedupe()

	return res
}

func (g *Generator) run(ctx context.Context, s Strategy, res *Result) mapping.CandidateList {
	cands, err := s.Propose(ctx, res.Normalized)
	if err != nil {
		res.Failed = append(res.Failed, StrategyFailure{Strategy: s.Name(), Err: err})

		return nil
	}

	out := make(mapping.CandidateList, 0, len(cands))

	for _, c := range cands {
		if !c.Type.IsValid() || c.Type.IsIgnore() {
			continue
		}

		c.Confidence = mapping.Clamp01(c.Confidence)
		out = append(out, c)
	}

	return out
}
