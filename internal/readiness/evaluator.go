package readiness

import (
	"strings"

	"schemamap/internal/canonical"
	"schemamap/internal/table"
)

// Record is the derived readiness of one analytic. Records are recomputed
// from scratch whenever the mapping changes.
type Record struct {
	Analytic   string         `json:"analytic"`
	CanPerform bool           `json:"can_perform"`
	Status     Status         `json:"status"`
	Missing    []string       `json:"missing,omitempty"`
	Issues     []QualityIssue `json:"issues,omitempty"`
	Reason     string         `json:"reason"`
}

// Evaluator evaluates every analytic of a registry.
type Evaluator struct {
	registry *Registry
}

// NewEvaluator creates an evaluator; a nil registry uses DefaultRegistry.
func NewEvaluator(registry *Registry) *Evaluator {
	if registry == nil {
		registry = DefaultRegistry()
	}

	return &Evaluator{registry: registry}
}

// Registry returns the evaluator's registry.
func (e *Evaluator) Registry() *Registry { return e.registry }

// Evaluate reports readiness for the given present types. When tbl is not
// nil, the column named after each satisfying type is quality checked; an
// OR-group is satisfied by any member whose column passes.
func (e *Evaluator) Evaluate(present []canonical.Type, tbl *table.Table) []Record {
	have := make(map[canonical.Type]bool, len(present))
	for _, t := range present {
		have[t] = true
	}

	cache := make(map[canonical.Type][]QualityIssue)

	check := func(t canonical.Type) []QualityIssue {
		if tbl == nil {
			return nil
		}

		if issues, ok := cache[t]; ok {
			return issues
		}

		cells, _ := tbl.ColumnByName(string(t))
		issues := CheckColumn(string(t), t, cells)
		cache[t] = issues

		return issues
	}

	out := make([]Record, 0, len(e.registry.analytics))

	for _, a := range e.registry.analytics {
		rec := Record{Analytic: a.Name}

		for _, atom := range a.Requirements {
			var (
				found  bool
				clean  bool
				issues []QualityIssue
			)

			for _, t := range atom {
				if !have[t] {
					continue
				}

				found = true

				got := check(t)
				if len(got) == 0 {
					clean = true

					break
				}

				issues = append(issues, got...)
			}

			switch {
			case !found:
				rec.Missing = append(rec.Missing, atom.String())
			case !clean:
				rec.Issues = append(rec.Issues, issues...)
			}
		}

		rec.CanPerform = len(rec.Missing) == 0 && len(rec.Issues) == 0

		switch {
		case len(rec.Missing) > 0:
			rec.Status = StatusMissingColumns
		case len(rec.Issues) > 0:
			rec.Status = StatusQualityIssues
		default:
			rec.Status = StatusReady
		}

		rec.Reason = reason(rec)
		out = append(out, rec)
	}

	return out
}

// Available returns the names of analytics that can run.
func Available(records []Record) []string {
	var out []string

	for _, r := range records {
		if r.CanPerform {
			out = append(out, r.Analytic)
		}
	}

	return out
}

func reason(rec Record) string {
	if rec.CanPerform {
		return "all required columns present"
	}

	var parts []string

	if len(rec.Missing) > 0 {
		parts = append(parts, "missing "+strings.Join(rec.Missing, "; "))
	}

	for _, issue := range rec.Issues {
		parts = append(parts, issue.String())
	}

	return strings.Join(parts, "; ")
}
