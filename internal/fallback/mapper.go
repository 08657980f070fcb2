// Package fallback is the rule-based mapper used when escalation is
// unavailable or disabled. It needs no network and no cache.
package fallback

import (
	"fmt"
	"regexp"
	"strings"

	"schemamap/internal/canonical"
	"schemamap/internal/mapping"
	"schemamap/internal/match"
)

// DefaultMinConfidence is the gate on the 0-100 scale.
const DefaultMinConfidence = 70

const (
	singleTokenBonus = 5
	ambiguityPenalty = 10
)

// excluded tokens name business columns that look like canonical roles but
// are not ("sales rep", "payment amount", "discount value").
var excluded = map[string]bool{
	"rep": true, "reps": true, "representative": true, "salesperson": true, "agent": true,
	"payment": true, "payments": true, "paid": true, "pay": true,
	"discount": true, "disc": true, "rebate": true,
	"tax": true, "vat": true, "fee": true, "fees": true, "commission": true,
	"shipping": true, "freight": true, "refund": true, "refunds": true,
	"comment": true, "comments": true, "note": true, "notes": true,
}

type rule struct {
	typ     canonical.Type
	pattern *regexp.Regexp
	score   float64
}

func wordRule(typ canonical.Type, score float64, words ...string) rule {
	return rule{
		typ:     typ,
		pattern: regexp.MustCompile(`\b(` + strings.Join(words, "|") + `)\b`),
		score:   score,
	}
}

var defaultRules = []rule{
	{
		typ:     canonical.OrderID,
		pattern: regexp.MustCompile(`\b(order|invoice|receipt|txn|transaction) ?(id|no|num|number|nbr|ref)\b`),
		score:   92,
	},
	wordRule(canonical.Date, 90, "date", "dt", "day", "timestamp", "datetime", "month", "period", "fecha", "datum"),
	wordRule(canonical.Date, 75, "year", "yr", "week", "wk", "time"),
	wordRule(canonical.Sales, 85, "sales", "sale", "revenue", "revenues", "rev", "turnover", "income", "ventas", "umsatz"),
	wordRule(canonical.Amount, 80, "amount", "amt", "total", "value", "sum", "importe", "betrag", "montant"),
	wordRule(canonical.Product, 85, "product", "prod", "item", "sku", "article", "upc", "ean", "artikel", "producto"),
	wordRule(canonical.Quantity, 85, "qty", "quantity", "units", "pcs", "pieces", "count", "cnt", "volume", "menge"),
	wordRule(canonical.Region, 85, "region", "area", "territory", "zone", "market", "country", "state", "city", "location", "geo"),
	wordRule(canonical.Customer, 85, "customer", "cust", "client", "buyer", "account", "acct", "kunde"),
	wordRule(canonical.Category, 75, "category", "cat", "segment", "class", "family", "group", "line"),
	wordRule(canonical.Price, 85, "price", "prc", "msrp", "rate", "preis", "precio"),
	wordRule(canonical.Cost, 85, "cost", "costs", "cogs", "expense", "expenses", "spend"),
	wordRule(canonical.Profit, 85, "profit", "margin", "earnings", "gain"),
}

// Mapper scores normalized headers against keyword rules.
type Mapper struct {
	rules []rule
	min   float64
}

// New creates a mapper with the built-in rules. minConfidence is on the
// 0-100 scale; zero selects DefaultMinConfidence.
func New(minConfidence float64) *Mapper {
	if minConfidence <= 0 {
		minConfidence = DefaultMinConfidence
	}

	return &Mapper{rules: defaultRules, min: minConfidence}
}

// Map returns the mapper's candidate for a raw header, or false when the
// header is excluded or nothing clears the gate. The candidate's
// confidence is on the 0-1 scale with source local_rule.
func (m *Mapper) Map(raw string) (mapping.Candidate, bool) {
	normalized := match.NormalizeHeader(raw)
	tokens := match.Tokens(normalized)

	if len(tokens) == 0 {
		return mapping.Candidate{}, false
	}

	for _, tok := range tokens {
		if excluded[tok] {
			return mapping.Candidate{}, false
		}
	}

	best := make(map[canonical.Type]rule)
	order := make([]canonical.Type, 0, 2)

	for _, r := range m.rules {
		if !r.pattern.MatchString(normalized) {
			continue
		}

		prev, seen := best[r.typ]
		if !seen {
			order = append(order, r.typ)
		}

		if !seen || r.score > prev.score {
			best[r.typ] = r
		}
	}

	if len(order) == 0 {
		return mapping.Candidate{}, false
	}

	winner := best[order[0]]
	for _, typ := range order[1:] {
		if best[typ].score > winner.score {
			winner = best[typ]
		}
	}

	score := winner.score
	if len(tokens) == 1 {
		score += singleTokenBonus
	}

	if len(order) > 1 {
		score -= ambiguityPenalty
	}

	score = min(score, 100)
	if score < m.min {
		return mapping.Candidate{}, false
	}

	return mapping.Candidate{
		Type:       winner.typ,
		Confidence: score / 100,
		Source:     mapping.SourceLocalRule,
		Strategy:   "keyword",
		Rationale:  fmt.Sprintf("keyword %q", winner.pattern.FindString(normalized)),
	}, true
}
