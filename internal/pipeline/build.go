package pipeline

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"schemamap/internal/canonical"
	"schemamap/internal/config"
	"schemamap/internal/embed"
	"schemamap/internal/embed/ort"
	"schemamap/internal/escalation"
	"schemamap/internal/fallback"
	"schemamap/internal/kb"
	"schemamap/internal/match"
	"schemamap/internal/readiness"
)

// Build wires a Pipeline from configuration. The returned close function
// releases the knowledge base store and the embedder, if any.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Pipeline, func() error, error) {
	var closers []func() error

	closeAll := func() error {
		var errs []error
		for i := len(closers) - 1; i >= 0; i-- {
			errs = append(errs, closers[i]())
		}

		return errors.Join(errs...)
	}

	fail := func(err error) (*Pipeline, func() error, error) {
		_ = closeAll()

		return nil, nil, err
	}

	table, err := cfg.Table()
	if err != nil {
		return fail(eris.Wrap(err, "load synonym table"))
	}

	index, closeEmbedder, err := buildIndex(ctx, cfg.Embedder, table)
	if err != nil {
		return fail(err)
	}

	if closeEmbedder != nil {
		closers = append(closers, closeEmbedder)
	}

	store, err := kb.Open(ctx, cfg.KB.Driver, cfg.KB.DSN)
	if err != nil {
		return fail(err)
	}

	closers = append(closers, store.Close)

	transport, err := escalation.NewTransport(ctx, cfg.LLM)
	if err != nil {
		return fail(eris.Wrap(err, "build llm transport"))
	}

	p, err := New(Options{
		Settings: Settings{
			EscalationCutoff: cfg.EscalationCutoff(),
			AutoAcceptCutoff: cfg.AutoAcceptCutoff(),
			ReassignMin:      cfg.FuzzyMin,
			Weights:          cfg.Weights,
		},
		Generator: match.NewGenerator(match.Options{
			Table:       table,
			Index:       index,
			FuzzyMin:    cfg.FuzzyMin,
			SemanticMin: cfg.SemanticMin,
		}),
		Cache:     kb.NewCache(store, cfg.Domain, logger),
		Escalator: escalation.NewClient(transport, table, cfg.EscalationClientConfig(), logger),
		Fallback:  fallback.New(cfg.FallbackMin),
		Evaluator: readiness.NewEvaluator(nil),
		Logger:    logger,
	})
	if err != nil {
		return fail(err)
	}

	return p, closeAll, nil
}

func buildIndex(ctx context.Context, cfg config.EmbedderConfig, table *canonical.Table) (*embed.Index, func() error, error) {
	var (
		e       embed.Embedder
		closeFn func() error
	)

	switch cfg.Kind {
	case config.EmbedderNone:
		return nil, nil, nil
	case config.EmbedderONNX:
		oe, err := ort.New(cfg.ONNX)
		if err != nil {
			return nil, nil, eris.Wrap(err, "open onnx embedder")
		}

		e, closeFn = oe, oe.Close
	default:
		e = embed.NewHashEmbedder(cfg.HashDim)
	}

	index, err := embed.BuildIndex(ctx, e, table)
	if err != nil {
		if closeFn != nil {
			_ = closeFn()
		}

		return nil, nil, eris.Wrap(err, "build embedding index")
	}

	return index, closeFn, nil
}
