package pipeline

import (
	"time"

	"schemamap/internal/canonical"
	"schemamap/internal/diagnostic"
	"schemamap/internal/escalation"
	"schemamap/internal/mapping"
	"schemamap/internal/merge"
	"schemamap/internal/readiness"
	"schemamap/internal/table"
)

// Confirmations are user-confirmed types keyed by raw header.
type Confirmations map[string]canonical.Type

// Report is the outcome of one run.
type Report struct {
	RunID    string    `json:"run_id"`
	Domain   string    `json:"domain"`
	Started  time.Time `json:"started"`
	Duration string    `json:"duration"`

	Entries []Entry `json:"entries"`
	// Status is ok when every required type is present exactly once.
	Status  merge.Status `json:"status"`
	Missing []string     `json:"missing,omitempty"`

	Analytics []readiness.Record `json:"analytics"`
	Available []string           `json:"available"`

	Escalated   int                      `json:"escalated"`
	Escalation  escalation.StatsSnapshot `json:"escalation"`
	Remembered  int                      `json:"remembered"`
	Diagnostics diagnostic.Diagnostics   `json:"diagnostics"`

	// Table is the renamed working table.
	Table *table.Table `json:"-"`
}

// Entry is the final mapping of one header.
type Entry struct {
	Index      int            `json:"index"`
	Raw        string         `json:"raw"`
	Normalized string         `json:"normalized"`
	Name       string         `json:"name"`
	Type       canonical.Type `json:"type"`
	Source     mapping.Source `json:"source"`
	Strategy   string         `json:"strategy,omitempty"`
	Confidence float64        `json:"confidence"`
	Effective  float64        `json:"effective"`
	Rationale  string         `json:"rationale,omitempty"`
	Aliased    bool           `json:"aliased,omitempty"`
	Reassigned bool           `json:"reassigned,omitempty"`
	Alternates []Alternate    `json:"alternates,omitempty"`
}

// Alternate is a proposal that lost for its header.
type Alternate struct {
	Type       canonical.Type `json:"type"`
	Source     mapping.Source `json:"source"`
	Confidence float64        `json:"confidence"`
}

// Mapping returns the final raw header to canonical type map. Headers
// that appear more than once keep their first entry.
func (r *Report) Mapping() map[string]canonical.Type {
	out := make(map[string]canonical.Type, len(r.Entries))

	for _, e := range r.Entries {
		if _, ok := out[e.Raw]; !ok {
			out[e.Raw] = e.Type
		}
	}

	return out
}

// Names returns the renamed column names in column order.
func (r *Report) Names() []string {
	out := make([]string, len(r.Entries))
	for i, e := range r.Entries {
		out[i] = e.Name
	}

	return out
}

// Record returns the readiness record of the named analytic.
func (r *Report) Record(analytic string) (readiness.Record, bool) {
	for _, rec := range r.Analytics {
		if rec.Analytic == analytic {
			return rec, true
		}
	}

	return readiness.Record{}, false
}

func newEntry(e merge.Entry) Entry {
	out := Entry{
		Index:      e.Index,
		Raw:        e.Raw,
		Normalized: e.Normalized,
		Name:       e.Name,
		Type:       e.Type,
		Source:     e.Chosen.Source,
		Strategy:   e.Chosen.Strategy,
		Confidence: e.Chosen.Confidence,
		Effective:  e.Effective,
		Rationale:  e.Chosen.Rationale,
		Aliased:    e.Aliased(),
		Reassigned: e.Reassigned,
	}

	for _, alt := range e.Alternates {
		out.Alternates = append(out.Alternates, Alternate{
			Type:       alt.Type,
			Source:     alt.Source,
			Confidence: alt.Confidence,
		})
	}

	return out
}
