// Package readiness decides which downstream analytics can run on a mapped
// dataset. Presence of the required canonical columns is necessary but not
// sufficient: when the table is available each required column must also
// pass lightweight quality checks.
package readiness

import (
	"fmt"
	"strings"

	"schemamap/internal/canonical"
)

// Atom is one requirement: a single type, or an OR-group of which any one suffices.
type Atom []canonical.Type

// Of builds an atom.
func Of(types ...canonical.Type) Atom { return Atom(types) }

// String renders the atom verbatim: "Date" or "one of: Sales, Amount".
func (a Atom) String() string {
	if len(a) == 1 {
		return string(a[0])
	}

	names := make([]string, len(a))
	for i, t := range a {
		names[i] = string(t)
	}

	return "one of: " + strings.Join(names, ", ")
}

// Analytic is a registered downstream product.
type Analytic struct {
	Name         string
	Description  string
	Requirements []Atom
}

// Registry holds the analytics known to the evaluator, in registration order.
type Registry struct {
	analytics []Analytic
}

// NewRegistry builds a registry. Names must be unique and every atom must
// name at least one non-Ignore vocabulary type.
func NewRegistry(analytics ...Analytic) (*Registry, error) {
	seen := make(map[string]bool, len(analytics))

	for _, a := range analytics {
		if a.Name == "" || seen[a.Name] {
			return nil, fmt.Errorf("analytic name %q is empty or duplicated", a.Name)
		}

		seen[a.Name] = true

		for _, atom := range a.Requirements {
			if len(atom) == 0 {
				return nil, fmt.Errorf("analytic %s has an empty requirement", a.Name)
			}

			for _, t := range atom {
				if !t.IsValid() || t.IsIgnore() {
					return nil, fmt.Errorf("analytic %s requires unknown type %q", a.Name, t)
				}
			}
		}
	}

	return &Registry{analytics: append([]Analytic(nil), analytics...)}, nil
}

// DefaultRegistry returns the built-in analytics.
func DefaultRegistry() *Registry {
	sales := Of(canonical.Sales, canonical.Amount)

	r, err := NewRegistry(
		Analytic{
			Name:         "sales_summary",
			Description:  "totals and trends of sales over time",
			Requirements: []Atom{Of(canonical.Date), sales},
		},
		Analytic{
			Name:         "regional_sales",
			Description:  "sales broken down by region",
			Requirements: []Atom{Of(canonical.Region), sales},
		},
		Analytic{
			Name:         "demand_forecasting",
			Description:  "forecast of units demanded per product",
			Requirements: []Atom{Of(canonical.Date), Of(canonical.Product), Of(canonical.Quantity)},
		},
		Analytic{
			Name:         "product_performance",
			Description:  "ranking of products by sales",
			Requirements: []Atom{Of(canonical.Product), sales},
		},
		Analytic{
			Name:         "sales_forecasting",
			Description:  "forecast of future sales",
			Requirements: []Atom{Of(canonical.Date), sales},
		},
		Analytic{
			Name:         "customer_analysis",
			Description:  "customer value and segmentation",
			Requirements: []Atom{Of(canonical.Customer), sales},
		},
		Analytic{
			Name:         "profitability",
			Description:  "margin of sales over cost",
			Requirements: []Atom{sales, Of(canonical.Cost, canonical.Profit)},
		},
		Analytic{
			Name:         "pricing_analysis",
			Description:  "price elasticity of demand per product",
			Requirements: []Atom{Of(canonical.Product), Of(canonical.Price), Of(canonical.Quantity)},
		},
	)
	if err != nil {
		panic(err)
	}

	return r
}

// Analytics returns the registered analytics.
func (r *Registry) Analytics() []Analytic {
	return append([]Analytic(nil), r.analytics...)
}

// Get returns the analytic with the given name.
func (r *Registry) Get(name string) (Analytic, bool) {
	for _, a := range r.analytics {
		if a.Name == name {
			return a, true
		}
	}

	return Analytic{}, false
}

// RequiredAtoms returns every distinct atom used by at least one analytic,
// in first-use order.
func (r *Registry) RequiredAtoms() []Atom {
	var out []Atom

	seen := make(map[string]bool)

	for _, a := range r.analytics {
		for _, atom := range a.Requirements {
			key := atom.String()
			if seen[key] {
				continue
			}

			seen[key] = true
			out = append(out, atom)
		}
	}

	return out
}

// PresentTypes derives canonical membership from column names: a column
// counts only when its name is exactly a vocabulary type. Aliased names
// such as "Region_1" do not count. The result is in vocabulary order.
func PresentTypes(columns []string) []canonical.Type {
	set := make(map[canonical.Type]bool)

	for _, c := range columns {
		t := canonical.Type(c)
		if t.IsValid() && !t.IsIgnore() {
			set[t] = true
		}
	}

	out := make([]canonical.Type, 0, len(set))
	for _, t := range canonical.Vocabulary() {
		if set[t] {
			out = append(out, t)
		}
	}

	return out
}
