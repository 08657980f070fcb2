package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schemamap/internal/canonical"
	"schemamap/internal/config"
	"schemamap/internal/diagnostic"
	"schemamap/internal/escalation"
	"schemamap/internal/kb"
	"schemamap/internal/mapping"
	"schemamap/internal/match"
	"schemamap/internal/merge"
	"schemamap/internal/readiness"
	"schemamap/internal/table"
)

type replyTransport struct {
	calls atomic.Int32
	reply func(prompt string) (string, error)
}

func (r *replyTransport) Complete(_ context.Context, prompt string) (string, error) {
	r.calls.Add(1)

	return r.reply(prompt)
}

type blockingTransport struct{}

func (blockingTransport) Complete(ctx context.Context, _ string) (string, error) {
	<-ctx.Done()

	return "", ctx.Err()
}

// makeTable fills 12 rows with values that pass the quality checks for
// the type each header is expected to resolve to.
func makeTable(t *testing.T, headers ...string) *table.Table {
	t.Helper()

	rows := make([][]string, 12)
	for r := range rows {
		row := make([]string, len(headers))
		for c, h := range headers {
			switch match.NormalizeHeader(h) {
			case "sale date", "txn dt":
				row[c] = fmt.Sprintf("2024-01-%02d", r+1)
			case "sales amount", "rev":
				row[c] = fmt.Sprintf("%d.50", 100+r)
			default:
				row[c] = fmt.Sprintf("value %d", r)
			}
		}

		rows[r] = row
	}

	tbl, err := table.New(headers, rows)
	require.NoError(t, err)

	return tbl
}

type fixture struct {
	p         *Pipeline
	store     *kb.MemoryStore
	transport escalation.Transport
}

func newFixture(t *testing.T, transport escalation.Transport) *fixture {
	t.Helper()

	store := kb.NewMemoryStore()

	var client *escalation.Client
	if transport != nil {
		client = escalation.NewClient(transport, nil, escalation.Config{
			MaxRetries:     1,
			BaseBackoff:    time.Millisecond,
			MaxBackoff:     2 * time.Millisecond,
			RequestTimeout: 20 * time.Millisecond,
		}, nil)
	}

	p, err := New(Options{
		Settings:  DefaultSettings(),
		Generator: match.NewGenerator(match.Options{}),
		Cache:     kb.NewCache(store, "retail", nil),
		Escalator: client,
	})
	require.NoError(t, err)

	p.newID = func() string { return "run-1" }

	return &fixture{p: p, store: store, transport: transport}
}

func TestScenarioExactAliases(t *testing.T) {
	transport := &replyTransport{reply: func(string) (string, error) { return "", errors.New("unused") }}
	f := newFixture(t, transport)

	tbl := makeTable(t, "Sale_Date", "Sales_Amount", "Product_ID", "Region")

	report, err := f.p.Run(context.Background(), tbl, nil)
	require.NoError(t, err)

	assert.Equal(t, map[string]canonical.Type{
		"Sale_Date":    canonical.Date,
		"Sales_Amount": canonical.Sales,
		"Product_ID":   canonical.Product,
		"Region":       canonical.Region,
	}, report.Mapping(), spew.Sdump(report.Entries))

	for _, e := range report.Entries {
		assert.Equal(t, mapping.SourceLocalRule, e.Source, e.Raw)
		assert.InDelta(t, 1.0, e.Confidence, 1e-9, e.Raw)
	}

	assert.Equal(t, []string{"Date", "Sales", "Product", "Region"}, report.Table.Headers)
	assert.Equal(t, []string{"Sale_Date", "Sales_Amount", "Product_ID", "Region"}, tbl.Headers, "input table untouched")

	for _, name := range []string{"sales_summary", "regional_sales"} {
		rec, ok := report.Record(name)
		require.True(t, ok, name)
		assert.True(t, rec.CanPerform, "%s: %s", name, rec.Reason)
	}

	demand, ok := report.Record("demand_forecasting")
	require.True(t, ok)
	assert.False(t, demand.CanPerform)
	assert.Equal(t, []string{"Quantity"}, demand.Missing)

	assert.Equal(t, int32(0), transport.calls.Load(), "nothing below the escalation threshold")
	assert.Zero(t, report.Escalated)
	assert.Equal(t, 4, report.Remembered)
	assert.Equal(t, 4, f.store.Len())
	assert.Equal(t, "run-1", report.RunID)
	assert.Equal(t, "retail", report.Domain)
	assert.Equal(t, merge.StatusPartial, report.Status, "not every analytic is covered")
	assert.Contains(t, report.Missing, "Quantity")
}

func TestScenarioFuzzyWithoutEscalation(t *testing.T) {
	transport := &replyTransport{reply: func(string) (string, error) { return "", errors.New("unused") }}
	f := newFixture(t, transport)

	report, err := f.p.Run(context.Background(), makeTable(t, "txn_dt", "rev"), nil)
	require.NoError(t, err)

	assert.Equal(t, map[string]canonical.Type{
		"txn_dt": canonical.Date,
		"rev":    canonical.Sales,
	}, report.Mapping())

	for _, e := range report.Entries {
		assert.GreaterOrEqual(t, e.Confidence, 0.75, e.Raw)
		assert.Less(t, e.Confidence, 0.90, e.Raw)
		assert.Equal(t, mapping.SourceLocalRule, e.Source, e.Raw)
	}

	assert.Equal(t, int32(0), transport.calls.Load())
	assert.Zero(t, report.Remembered, "below the auto-accept threshold")

	rec, ok := report.Record("sales_summary")
	require.True(t, ok)
	assert.True(t, rec.CanPerform, rec.Reason)
}

func TestScenarioCollision(t *testing.T) {
	f := newFixture(t, nil)

	report, err := f.p.Run(context.Background(), makeTable(t, "Region", "Area"), nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"Region", "Region_1"}, report.Names())
	assert.False(t, report.Entries[0].Aliased)
	assert.True(t, report.Entries[1].Aliased)
	assert.Equal(t, canonical.Region, report.Entries[1].Type)

	assert.Equal(t, []canonical.Type{canonical.Region}, readiness.PresentTypes(report.Table.Headers))

	rec, ok := report.Record("regional_sales")
	require.True(t, ok)
	assert.False(t, rec.CanPerform)
	assert.Equal(t, []string{"one of: Sales, Amount"}, rec.Missing)

	collisions := report.Diagnostics.ByCode(diagnostic.CodeCollision)
	require.Len(t, collisions, 1)
	assert.Equal(t, "Area", collisions[0].Header)

	assert.Equal(t, 1, report.Remembered, "only the bare claimant is written back")
}

func TestWordContainingShortAliasIsEscalated(t *testing.T) {
	transport := &replyTransport{reply: func(string) (string, error) { return "", errors.New("model offline") }}
	f := newFixture(t, transport)

	report, err := f.p.Run(context.Background(), makeTable(t, "Department", "Revenue"), nil)
	require.NoError(t, err)

	dept := report.Entries[0]
	assert.NotEqual(t, canonical.Date, dept.Type, spew.Sdump(dept))
	assert.Equal(t, canonical.Ignore, dept.Type)
	assert.Equal(t, "Department", dept.Name)

	assert.Equal(t, canonical.Sales, report.Entries[1].Type)
	assert.Equal(t, 1, report.Escalated, "only Department is below the cutoff")
	assert.Positive(t, transport.calls.Load())
	assert.Equal(t, 1, report.Remembered, "only Revenue is written back")
}

func TestCollisionLoserIsNotMovedOntoUnrelatedType(t *testing.T) {
	transport := &replyTransport{reply: func(string) (string, error) { return "", errors.New("unused") }}
	f := newFixture(t, transport)

	report, err := f.p.Run(context.Background(),
		makeTable(t, "Order Date", "Region", "Country", "Product", "Revenue"), nil)
	require.NoError(t, err)

	country := report.Entries[2]
	assert.Equal(t, canonical.Region, country.Type, spew.Sdump(country))
	assert.Equal(t, "Region_1", country.Name)
	assert.True(t, country.Aliased)
	assert.False(t, country.Reassigned)

	assert.Empty(t, report.Diagnostics.ByCode(diagnostic.CodeReassigned))
	assert.Contains(t, report.Missing, "Quantity")
	assert.Equal(t, int32(0), transport.calls.Load())
}

func TestEscalationTimeoutFallsBackToDiscountedLocal(t *testing.T) {
	f := newFixture(t, blockingTransport{})

	report, err := f.p.Run(context.Background(), makeTable(t, "Sale_Date", "xxregionxx"), nil)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Escalated)

	date := report.Entries[0]
	assert.Equal(t, canonical.Date, date.Type)
	assert.Equal(t, mapping.SourceLocalRule, date.Source)

	region := report.Entries[1]
	assert.Equal(t, canonical.Region, region.Type, "never left unmapped")
	assert.Equal(t, "Region", region.Name)
	assert.Equal(t, mapping.SourceLocalFallback, region.Source)
	assert.InDelta(t, (0.3+0.3*6.0/10.0)*0.8, region.Confidence, 1e-9)

	failures := report.Diagnostics.ByCode(diagnostic.CodeEscalationFailed)
	require.Len(t, failures, 1)
	assert.Equal(t, "xxregionxx", failures[0].Header)

	assert.Equal(t, 2, report.Escalation.Calls, "one call plus one retry")
	assert.Equal(t, 1, report.Escalation.Fallbacks)
}

func TestEscalationSuggestionIsRememberedAndReused(t *testing.T) {
	transport := &replyTransport{reply: func(string) (string, error) {
		return "Sure:\n```json\n" +
			`{"mappings":[{"original":"xxregionxx","mapped_to":"Region","confidence":95,"reason":"geographic code"}]}` +
			"\n```", nil
	}}
	f := newFixture(t, transport)
	ctx := context.Background()

	first, err := f.p.Run(ctx, makeTable(t, "xxregionxx"), nil)
	require.NoError(t, err)

	entry := first.Entries[0]
	assert.Equal(t, canonical.Region, entry.Type)
	assert.Equal(t, mapping.SourceLanguageModel, entry.Source)
	assert.InDelta(t, 0.95, entry.Confidence, 1e-9)
	assert.Equal(t, 1, first.Remembered)
	assert.Equal(t, int32(1), transport.calls.Load())

	stored, err := f.store.Get(ctx, kb.Key("retail", "xxregionxx"))
	require.NoError(t, err)
	assert.Equal(t, mapping.SourceLanguageModel, stored.Source)

	second, err := f.p.Run(ctx, makeTable(t, "xxregionxx"), nil)
	require.NoError(t, err)

	assert.Equal(t, int32(1), transport.calls.Load(), "knowledge base hit skips escalation")
	assert.Zero(t, second.Escalated)
	assert.Equal(t, mapping.SourceKnowledgeBase, second.Entries[0].Source)
	assert.Equal(t, canonical.Region, second.Entries[0].Type)
	assert.Len(t, second.Diagnostics.ByCode(diagnostic.CodeKnowledgeBaseHit), 1)

	stored, err = f.store.Get(ctx, kb.Key("retail", "xxregionxx"))
	require.NoError(t, err)
	assert.Equal(t, mapping.SourceLanguageModel, stored.Source, "reuse keeps the original source")
	assert.Equal(t, 2, stored.UsageCount)
}

func TestEscalationDisabledUsesFallbackMapper(t *testing.T) {
	p, err := New(Options{
		Settings:  DefaultSettings(),
		Generator: match.NewGeneratorWith(nil),
	})
	require.NoError(t, err)

	report, err := p.Run(context.Background(), makeTable(t, "Customer Name", "Sales Rep"), nil)
	require.NoError(t, err)

	customer := report.Entries[0]
	assert.Equal(t, canonical.Customer, customer.Type)
	assert.Equal(t, mapping.SourceLocalRule, customer.Source)
	assert.Equal(t, "keyword", customer.Strategy)

	rep := report.Entries[1]
	assert.Equal(t, canonical.Ignore, rep.Type)
	assert.Equal(t, "Sales Rep", rep.Name)

	assert.Len(t, report.Diagnostics.ByCode(diagnostic.CodeFallbackMapper), 1)
	assert.Len(t, report.Diagnostics.ByCode(diagnostic.CodeNoCandidate), 1)
	assert.Zero(t, report.Remembered, "no knowledge base configured")
}

func TestUserConfirmationWins(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	report, err := f.p.Run(ctx, makeTable(t, "txn_dt", "rev"), Confirmations{"rev": canonical.Amount})
	require.NoError(t, err)

	rev := report.Entries[1]
	assert.Equal(t, canonical.Amount, rev.Type)
	assert.Equal(t, mapping.SourceUserConfirmed, rev.Source)
	assert.Equal(t, "Amount", rev.Name)

	stored, err := f.store.Get(ctx, kb.Key("retail", "rev"))
	require.NoError(t, err)
	assert.Equal(t, mapping.SourceUserConfirmed, stored.Source)
	assert.Equal(t, canonical.Amount, stored.Type)
}

func TestConfirm(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	require.NoError(t, f.p.Confirm(ctx, "Umsatz Netto", canonical.Sales))

	report, err := f.p.Run(ctx, makeTable(t, "umsatz_netto"), nil)
	require.NoError(t, err)

	assert.Equal(t, canonical.Sales, report.Entries[0].Type)
	assert.Equal(t, mapping.SourceKnowledgeBase, report.Entries[0].Source)

	assert.Error(t, f.p.Confirm(ctx, "Notes", canonical.Ignore))
	assert.Error(t, f.p.Confirm(ctx, "Notes", canonical.Type("Nonsense")))
	assert.Error(t, f.p.Confirm(ctx, "  ", canonical.Sales))

	bare, err := New(Options{Settings: DefaultSettings(), Generator: match.NewGenerator(match.Options{})})
	require.NoError(t, err)
	assert.Error(t, bare.Confirm(ctx, "rev", canonical.Sales))
}

func TestRoundTripMembership(t *testing.T) {
	f := newFixture(t, nil)

	headers := []string{"Sale_Date", "Sales_Amount", "Revenue", "Region", "Area", "Notes", "Sales_Amount"}

	report, err := f.p.Run(context.Background(), makeTable(t, headers...), nil)
	require.NoError(t, err)

	var bare []canonical.Type
	for _, typ := range canonical.Vocabulary() {
		for _, e := range report.Entries {
			if e.Type == typ && !e.Aliased && !typ.IsIgnore() {
				bare = append(bare, typ)

				break
			}
		}
	}

	assert.Equal(t, bare, readiness.PresentTypes(report.Table.Headers))

	seen := make(map[string]bool)
	for _, name := range report.Table.Headers {
		assert.False(t, seen[name], "duplicate column %q", name)
		seen[name] = true
	}
}

func TestRunCancelled(t *testing.T) {
	f := newFixture(t, blockingTransport{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := f.p.Run(ctx, makeTable(t, "xxregionxx"), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, report)
	assert.Zero(t, f.store.Len(), "nothing written back")
}

func TestRunNilTable(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.p.Run(context.Background(), nil, nil)
	assert.Error(t, err)
}

func TestNewRequiresGenerator(t *testing.T) {
	_, err := New(Options{Settings: DefaultSettings()})
	assert.Error(t, err)

	_, err = New(Options{Generator: match.NewGenerator(match.Options{})})
	assert.Error(t, err, "zero weights are rejected")
}

func TestBuildFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Domain = "test"

	p, closeFn, err := Build(context.Background(), cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, closeFn()) })

	report, err := p.Run(context.Background(), makeTable(t, "Sale_Date", "Sales_Amount"), nil)
	require.NoError(t, err)

	assert.Equal(t, "test", report.Domain)
	assert.Equal(t, []string{"Date", "Sales"}, report.Names())
	assert.Contains(t, report.Available, "sales_summary")
}

func TestBuildRejectsBadStore(t *testing.T) {
	cfg := config.Default()
	cfg.KB.Driver = "redis"

	_, _, err := Build(context.Background(), cfg, nil)
	assert.Error(t, err)
}
