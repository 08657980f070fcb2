package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"schemamap/internal/canonical"
	"schemamap/internal/diagnostic"
	"schemamap/internal/escalation"
	"schemamap/internal/fallback"
	"schemamap/internal/kb"
	"schemamap/internal/logging"
	"schemamap/internal/mapping"
	"schemamap/internal/match"
	"schemamap/internal/merge"
	"schemamap/internal/metrics"
	"schemamap/internal/readiness"
	"schemamap/internal/table"
)

// DefaultAmbiguityGap is the confidence gap below which two local
// candidates of different types are reported as ambiguous.
const DefaultAmbiguityGap = 0.05

// Settings are the numeric knobs of a run, all on the 0-1 scale.
type Settings struct {
	EscalationCutoff float64
	AutoAcceptCutoff float64
	AmbiguityGap     float64
	// ReassignMin is the raw confidence a proposal needs before the merger
	// may move an aliased or ignored header onto it.
	ReassignMin float64
	Weights     mapping.Weights
}

// DefaultSettings returns the reference thresholds.
func DefaultSettings() Settings {
	return Settings{
		EscalationCutoff: 0.75,
		AutoAcceptCutoff: 0.90,
		AmbiguityGap:     DefaultAmbiguityGap,
		ReassignMin:      match.DefaultFuzzyMin,
		Weights:          mapping.DefaultWeights(),
	}
}

// Options wires the components of a Pipeline. Only Generator is required;
// a nil Cache disables the knowledge base, a nil or disabled Escalator
// routes low-confidence headers to Fallback.
type Options struct {
	Settings  Settings
	Domain    string
	Generator *match.Generator
	Cache     *kb.Cache
	Escalator *escalation.Client
	Fallback  *fallback.Mapper
	Evaluator *readiness.Evaluator
	Logger    *zap.Logger
}

// Pipeline resolves table headers to canonical types.
type Pipeline struct {
	settings  Settings
	generator *match.Generator
	cache     *kb.Cache
	escalator *escalation.Client
	fallback  *fallback.Mapper
	evaluator *readiness.Evaluator
	merger    *merge.Merger
	logger    *zap.Logger
	domain    string
	now       func() time.Time
	newID     func() string
}

// New creates a pipeline.
func New(opts Options) (*Pipeline, error) {
	if opts.Generator == nil {
		return nil, eris.New("pipeline: generator is required")
	}

	if opts.Evaluator == nil {
		opts.Evaluator = readiness.NewEvaluator(nil)
	}

	if opts.Fallback == nil {
		opts.Fallback = fallback.New(fallback.DefaultMinConfidence)
	}

	if opts.Settings.AmbiguityGap <= 0 {
		opts.Settings.AmbiguityGap = DefaultAmbiguityGap
	}

	if err := opts.Settings.Weights.Validate(); err != nil {
		return nil, eris.Wrap(err, "pipeline: invalid weights")
	}

	domain := opts.Domain
	if opts.Cache != nil {
		domain = opts.Cache.Domain()
	}

	required := opts.Evaluator.Registry().RequiredAtoms()
	reqs := make([]merge.Requirement, len(required))

	for i, atom := range required {
		reqs[i] = merge.Requirement(atom)
	}

	return &Pipeline{
		settings:  opts.Settings,
		generator: opts.Generator,
		cache:     opts.Cache,
		escalator: opts.Escalator,
		fallback:  opts.Fallback,
		evaluator: opts.Evaluator,
		merger:    merge.New(merge.Config{
			Weights:     opts.Settings.Weights,
			Required:    reqs,
			ReassignMin: opts.Settings.ReassignMin,
		}),
		logger:    logging.OrNop(opts.Logger).Named("pipeline"),
		domain:    domain,
		now:       time.Now,
		newID:     uuid.NewString,
	}, nil
}

// Evaluator returns the readiness evaluator used by the pipeline.
func (p *Pipeline) Evaluator() *readiness.Evaluator { return p.evaluator }

// header is the per-column working state of a run.
type header struct {
	result    match.Result
	proposals mapping.CandidateList
	confirmed bool
	kbHit     *kb.Entry
}

// Run resolves the headers of tbl. confirmed may be nil. The returned
// report carries the renamed table; tbl itself is not modified. Run only
// fails when tbl is nil or ctx is cancelled before the rename is applied.
func (p *Pipeline) Run(ctx context.Context, tbl *table.Table, confirmed Confirmations) (*Report, error) {
	if tbl == nil {
		return nil, eris.New("pipeline: nil table")
	}

	started := p.now()
	report := &Report{
		RunID:   p.newID(),
		Domain:  p.domain,
		Started: started,
	}

	logger := p.logger.With(zap.String("run_id", report.RunID), zap.Int("headers", tbl.Width()))
	diags := &report.Diagnostics

	headers := p.propose(ctx, tbl.Headers, confirmed, diags)

	report.Escalated = p.escalate(ctx, headers, diags)

	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "pipeline: run cancelled")
	}

	inputs := make([]merge.Input, len(headers))
	for i, h := range headers {
		inputs[i] = merge.Input{
			Index:      h.result.Index,
			Raw:        h.result.Raw,
			Normalized: h.result.Normalized,
			Proposals:  h.proposals,
		}
	}

	merged := p.merger.Merge(inputs)
	report.Status = merged.Status

	for _, req := range merged.Missing {
		report.Missing = append(report.Missing, req.String())
		diags.AddWarning(diagnostic.CodeRequiredMissing,
			fmt.Sprintf("no column maps to %s", req), diagnostic.StageMerge, "")
	}

	for _, r := range merged.Reassignments {
		diags.AddInfo(diagnostic.CodeReassigned,
			fmt.Sprintf("moved from %s to %s to cover a required type", r.From, r.To),
			diagnostic.StageMerge, headers[r.Index].result.Raw)
	}

	names := make([]string, len(merged.Entries))
	for i, e := range merged.Entries {
		names[i] = e.Name
		report.Entries = append(report.Entries, newEntry(e))

		switch {
		case e.Aliased():
			diags.AddWarning(diagnostic.CodeCollision,
				fmt.Sprintf("lost %s to a stronger column, renamed %s", e.Type, e.Name),
				diagnostic.StageMerge, e.Raw)
		case e.Type.IsIgnore() && len(headers[i].proposals) == 0:
			diags.AddInfo(diagnostic.CodeNoCandidate, "no candidate found, left as Ignore",
				diagnostic.StageNormalize, e.Raw)
		}

		metrics.RecordMapping(e.Chosen.Source.String())
	}

	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "pipeline: run cancelled")
	}

	renamed, err := tbl.Renamed(names)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: apply rename")
	}

	report.Table = renamed
	report.Analytics = p.evaluator.Evaluate(readiness.PresentTypes(renamed.Headers), renamed)
	report.Available = readiness.Available(report.Analytics)

	report.Remembered = p.remember(ctx, headers, merged.Entries, diags)

	if p.escalator != nil {
		report.Escalation = p.escalator.Stats()
	}

	report.Duration = p.now().Sub(started).String()

	logger.Info("schema resolved",
		zap.String("status", string(report.Status)),
		zap.Int("escalated", report.Escalated),
		zap.Int("remembered", report.Remembered),
		zap.Strings("available", report.Available),
		zap.Int("warnings", len(diags.Warnings)))

	return report, nil
}

// propose runs the normalizer and adds confirmations and knowledge base hits.
func (p *Pipeline) propose(ctx context.Context, raw []string, confirmed Confirmations, diags *diagnostic.Diagnostics) []*header {
	results := p.generator.Generate(ctx, raw)
	headers := make([]*header, len(results))

	for i, res := range results {
		h := &header{result: res, proposals: append(mapping.CandidateList(nil), res.Candidates...)}
		headers[i] = h

		for _, f := range res.Failed {
			diags.AddWarning(diagnostic.CodeStrategyFailed,
				fmt.Sprintf("%s strategy failed: %v", f.Strategy, f.Err),
				diagnostic.StageNormalize, res.Raw)
		}

		if res.Candidates.IsAmbiguous(p.settings.AmbiguityGap) {
			top := res.Candidates.Top(2)
			diags.AddWarning(diagnostic.CodeAmbiguous,
				fmt.Sprintf("%s and %s score within %.2f", top[0].Type, top[1].Type, p.settings.AmbiguityGap),
				diagnostic.StageNormalize, res.Raw, string(top[0].Type), string(top[1].Type))
		}

		if typ, ok := confirmed[res.Raw]; ok && typ.IsValid() {
			h.confirmed = true
			h.proposals = append(h.proposals, mapping.Candidate{
				Type:       typ,
				Confidence: 1,
				Source:     mapping.SourceUserConfirmed,
				Strategy:   "confirmed",
				Rationale:  "confirmed by user",
			})
		}

		if res.Normalized == "" {
			continue
		}

		if e, ok := p.cache.Lookup(ctx, res.Normalized); ok {
			h.kbHit = &e
			h.proposals = append(h.proposals, e.Candidate())
			diags.AddInfo(diagnostic.CodeKnowledgeBaseHit,
				fmt.Sprintf("remembered as %s", e.Type), diagnostic.StageKB, res.Raw)
		}
	}

	return headers
}

// escalate resolves headers whose best local confidence is below the
// cutoff and that neither the user nor the knowledge base settled. It
// returns the number of headers sent to the language model.
func (p *Pipeline) escalate(ctx context.Context, headers []*header, diags *diagnostic.Diagnostics) int {
	var pending []*header

	for _, h := range headers {
		if h.confirmed || h.kbHit != nil || h.result.BestConfidence() >= p.settings.EscalationCutoff {
			continue
		}

		pending = append(pending, h)
	}

	if len(pending) == 0 {
		return 0
	}

	if !p.escalator.Enabled() {
		for _, h := range pending {
			p.applyFallbackMapper(h, diags)
		}

		return 0
	}

	reqs := make([]escalation.Request, len(pending))
	for i, h := range pending {
		reqs[i] = escalation.Request{Header: h.result.Raw, Local: h.result.Candidates}
	}

	for i, resp := range p.escalator.Resolve(ctx, reqs) {
		h := pending[i]

		switch {
		case resp.FellBack:
			diags.AddWarning(diagnostic.CodeEscalationFailed,
				fmt.Sprintf("language model unavailable: %v", resp.Err),
				diagnostic.StageEscalation, h.result.Raw)

			h.proposals = withoutLocal(h.proposals)
			h.proposals = append(h.proposals, resp.Candidates...)

			if len(resp.Candidates) == 0 {
				p.applyFallbackMapper(h, diags)
			}
		case len(resp.Candidates) == 0:
			diags.AddWarning(diagnostic.CodeEscalationOmitted,
				"language model returned no usable mapping", diagnostic.StageEscalation, h.result.Raw)
		default:
			h.proposals = append(h.proposals, resp.Candidates...)
			diags.AddInfo(diagnostic.CodeEscalated,
				fmt.Sprintf("language model suggested %s", resp.Candidates[0].Type),
				diagnostic.StageEscalation, h.result.Raw)
		}
	}

	return len(pending)
}

func (p *Pipeline) applyFallbackMapper(h *header, diags *diagnostic.Diagnostics) {
	cand, ok := p.fallback.Map(h.result.Raw)
	if !ok {
		return
	}

	h.proposals = append(h.proposals, cand)
	diags.AddInfo(diagnostic.CodeFallbackMapper,
		fmt.Sprintf("keyword rules suggested %s", cand.Type), diagnostic.StageFallback, h.result.Raw)
}

// withoutLocal drops local_rule proposals, which a local_fallback replaces.
func withoutLocal(c mapping.CandidateList) mapping.CandidateList {
	out := c[:0:0]

	for _, cand := range c {
		if cand.Source != mapping.SourceLocalRule {
			out = append(out, cand)
		}
	}

	return out
}

// remember writes confident bare mappings back to the knowledge base.
func (p *Pipeline) remember(ctx context.Context, headers []*header, entries []merge.Entry, diags *diagnostic.Diagnostics) int {
	if p.cache == nil {
		return 0
	}

	n := 0

	for i, e := range entries {
		if !e.Canonical() || e.Chosen.Confidence < p.settings.AutoAcceptCutoff || e.Normalized == "" {
			continue
		}

		src := e.Chosen.Source
		if src == mapping.SourceKnowledgeBase && headers[i].kbHit != nil {
			src = headers[i].kbHit.Source
		}

		if !p.cache.Remember(ctx, e.Normalized, e.Type, e.Chosen.Confidence, src) {
			continue
		}

		n++

		diags.AddInfo(diagnostic.CodeKnowledgeBaseSave,
			fmt.Sprintf("remembered as %s", e.Type), diagnostic.StageKB, e.Raw)
	}

	return n
}

// Confirm records a user confirmation for a raw header in the knowledge base.
func (p *Pipeline) Confirm(ctx context.Context, raw string, typ canonical.Type) error {
	if p.cache == nil {
		return eris.New("pipeline: no knowledge base configured")
	}

	if !typ.IsValid() || typ.IsIgnore() {
		return eris.Errorf("pipeline: cannot confirm %q as %q", raw, typ)
	}

	normalized := match.NormalizeHeader(raw)
	if normalized == "" {
		return eris.Errorf("pipeline: header %q normalizes to nothing", raw)
	}

	if !p.cache.Remember(ctx, normalized, typ, 1, mapping.SourceUserConfirmed) {
		return eris.Errorf("pipeline: failed to store confirmation for %q", raw)
	}

	p.logger.Info("confirmation stored", zap.String("header", raw), zap.Stringer("type", typ))

	return nil
}
