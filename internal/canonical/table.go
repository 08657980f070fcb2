package canonical

import (
	"fmt"
	"sort"
	"strings"
)

// Entry holds the static knowledge about one canonical type.
type Entry struct {
	Type        Type
	Description string
	// Synonyms are stored in normalized header form (lower-case, single spaces).
	Synonyms []string
}

// builtin is the default synonym/description table. Synonyms must already be
// in normalized form; a synonym may belong to exactly one type.
var builtin = []Entry{
	{
		Type:        Date,
		Description: "calendar date or timestamp of the transaction, order, invoice or sale",
		Synonyms: []string{
			"date", "sale date", "sales date", "order date", "transaction date", "invoice date",
			"purchase date", "ship date", "day", "timestamp", "datetime", "period", "month",
			"fecha", "datum", "date de vente",
		},
	},
	{
		Type:        Sales,
		Description: "total sales revenue or turnover earned, monetary value of goods sold",
		Synonyms: []string{
			"sales", "sale", "sales amount", "sales value", "total sales", "revenue", "revenues",
			"net sales", "gross sales", "turnover", "sales revenue", "income", "ventas", "umsatz",
			"chiffre daffaires",
		},
	},
	{
		Type:        Amount,
		Description: "generic monetary amount or transaction value",
		Synonyms: []string{
			"amount", "amt", "value", "total", "total amount", "transaction amount",
			"line total", "importe", "betrag", "montant",
		},
	},
	{
		Type:        Product,
		Description: "product, item, article or sku that was sold",
		Synonyms: []string{
			"product", "product id", "product name", "item", "item name", "item id", "sku",
			"article", "product code", "producto", "produkt", "produit", "artikel",
		},
	},
	{
		Type:        Quantity,
		Description: "number of units sold or ordered, count of items",
		Synonyms: []string{
			"quantity", "qty", "units", "units sold", "unit sold", "volume", "count",
			"quantity sold", "pieces", "cantidad", "menge", "quantite",
		},
	},
	{
		Type:        Region,
		Description: "geographic region, territory, area, market or location of the sale",
		Synonyms: []string{
			"region", "area", "territory", "zone", "market", "location", "state", "country",
			"city", "sales region", "region name", "regione", "gebiet",
		},
	},
	{
		Type:        Customer,
		Description: "customer, client, buyer or account who purchased",
		Synonyms: []string{
			"customer", "customer id", "customer name", "client", "client name", "buyer",
			"account", "account name", "cliente", "kunde",
		},
	},
	{
		Type:        Category,
		Description: "product category, segment, family or product line classification",
		Synonyms: []string{
			"category", "product category", "segment", "product line", "family", "group",
			"class", "type", "categoria", "kategorie",
		},
	},
	{
		Type:        Price,
		Description: "unit price or list price charged per item",
		Synonyms: []string{
			"price", "unit price", "list price", "selling price", "rate", "price per unit",
			"precio", "preis", "prix",
		},
	},
	{
		Type:        Cost,
		Description: "cost of goods, expense or unit cost incurred",
		Synonyms: []string{
			"cost", "unit cost", "cogs", "cost of goods sold", "expense", "expenses",
			"total cost", "costo", "kosten",
		},
	},
	{
		Type:        Profit,
		Description: "profit, margin or net income earned after costs",
		Synonyms: []string{
			"profit", "margin", "gross profit", "net profit", "gross margin", "earnings",
			"ganancia", "gewinn",
		},
	},
	{
		Type:        Discount,
		Description: "discount, rebate or markdown applied to the sale",
		Synonyms: []string{
			"discount", "discount amount", "rebate", "markdown", "descuento", "rabatt",
		},
	},
	{
		Type:        OrderID,
		Description: "order, invoice or transaction identifier",
		Synonyms: []string{
			"order id", "order number", "order no", "invoice id", "invoice number",
			"transaction id", "receipt number",
		},
	},
}

// Table indexes synonyms and descriptions for the vocabulary.
// A Table is immutable once built and safe for concurrent reads.
type Table struct {
	entries map[Type]Entry
	alias   map[string]Type
}

// Default returns the built-in table.
func Default() *Table {
	t, err := NewTable(builtin)
	if err != nil {
		panic(fmt.Sprintf("canonical: invalid builtin table: %v", err))
	}

	return t
}

// NewTable builds a Table from entries. It fails when an entry names a type
// outside the vocabulary, names Ignore, or when a synonym is claimed twice.
func NewTable(entries []Entry) (*Table, error) {
	t := &Table{
		entries: make(map[Type]Entry, len(entries)),
		alias:   make(map[string]Type),
	}

	for _, e := range entries {
		if !e.Type.IsValid() || e.Type.IsIgnore() {
			return nil, fmt.Errorf("unknown canonical type %q", e.Type)
		}

		existing := t.entries[e.Type]
		existing.Type = e.Type
		if e.Description != "" {
			existing.Description = e.Description
		}

		for _, syn := range e.Synonyms {
			syn = strings.Join(strings.Fields(strings.ToLower(syn)), " ")
			if syn == "" {
				continue
			}

			if owner, ok := t.alias[syn]; ok {
				if owner == e.Type {
					continue
				}

				return nil, fmt.Errorf("synonym %q claimed by both %s and %s", syn, owner, e.Type)
			}

			t.alias[syn] = e.Type
			existing.Synonyms = append(existing.Synonyms, syn)
		}

		t.entries[e.Type] = existing
	}

	return t, nil
}

// Lookup returns the type owning the normalized synonym.
func (t *Table) Lookup(normalized string) (Type, bool) {
	typ, ok := t.alias[normalized]

	return typ, ok
}

// Entry returns the entry for a type.
func (t *Table) Entry(typ Type) (Entry, bool) {
	e, ok := t.entries[typ]

	return e, ok
}

// Types returns every type with an entry, in vocabulary order.
func (t *Table) Types() []Type {
	var out []Type
	for _, typ := range vocabulary {
		if _, ok := t.entries[typ]; ok {
			out = append(out, typ)
		}
	}

	return out
}

// Synonyms returns (synonym, type) pairs sorted by synonym for deterministic scans.
func (t *Table) Synonyms() []SynonymPair {
	out := make([]SynonymPair, 0, len(t.alias))
	for syn, typ := range t.alias {
		out = append(out, SynonymPair{Synonym: syn, Type: typ})
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].Synonym < out[j].Synonym
	})

	return out
}

// SynonymPair is one row of the alias table.
type SynonymPair struct {
	Synonym string
	Type    Type
}

// Describe returns the description text embedded for semantic matching:
// the description followed by every synonym.
func (t *Table) Describe(typ Type) string {
	e, ok := t.entries[typ]
	if !ok {
		return ""
	}

	return e.Description + ". " + strings.Join(e.Synonyms, ", ")
}

// Entries returns a copy of the entries in vocabulary order.
func (t *Table) Entries() []Entry {
	out := make([]Entry, 0, len(t.entries))
	for _, typ := range t.Types() {
		e := t.entries[typ]
		e.Synonyms = append([]string(nil), e.Synonyms...)
		out = append(out, e)
	}

	return out
}
