package merge

import (
	"fmt"
	"sort"
	"strings"

	"schemamap/internal/canonical"
	"schemamap/internal/mapping"
)

// Status is the verification outcome.
type Status string

const (
	StatusOK      Status = "ok"
	StatusPartial Status = "partial"
)

// Input is every proposal collected for one header.
type Input struct {
	Index      int
	Raw        string
	Normalized string
	Proposals  mapping.CandidateList
}

// Entry is the final mapping of one header.
type Entry struct {
	Index      int
	Raw        string
	Normalized string
	// Name is the column name after the rename.
	Name string
	Type canonical.Type
	// Alias is the collision suffix; 0 for the bare canonical name.
	Alias  int
	Chosen mapping.Candidate
	// Effective is Chosen's effective score.
	Effective float64
	// Alternates are the other proposals, best first.
	Alternates mapping.CandidateList
	// Reassigned is set when verification moved this header off its provisional type.
	Reassigned bool
}

// Aliased reports whether the entry lost a collision.
func (e Entry) Aliased() bool { return e.Alias > 0 }

// Canonical reports whether the entry holds a bare canonical name.
func (e Entry) Canonical() bool { return e.Alias == 0 && !e.Type.IsIgnore() }

// Reassignment records a verification retry.
type Reassignment struct {
	Index int
	From  canonical.Type
	To    canonical.Type
}

// Result is the merger's output.
type Result struct {
	Entries       []Entry
	Status        Status
	Missing       []Requirement
	Reassignments []Reassignment
}

// Requirement is one required atom: a single type or an OR-group.
type Requirement []canonical.Type

// String renders the requirement for reports.
func (r Requirement) String() string {
	if len(r) == 1 {
		return string(r[0])
	}

	names := make([]string, len(r))
	for i, t := range r {
		names[i] = string(t)
	}

	return "one of: " + strings.Join(names, ", ")
}

// Config configures a Merger.
type Config struct {
	Weights mapping.Weights
	// Required lists the atoms every run should satisfy.
	Required []Requirement
	// ReassignMin is the raw confidence a proposal needs before verification
	// may move a header onto it. Zero accepts any proposal.
	ReassignMin float64
}

// Merger combines proposals into a final mapping.
type Merger struct {
	weights     mapping.Weights
	required    []Requirement
	reassignMin float64
}

// New creates a merger.
func New(cfg Config) *Merger {
	return &Merger{weights: cfg.Weights, required: cfg.Required, reassignMin: cfg.ReassignMin}
}

// header is the merger's working state for one input.
type header struct {
	in     Input
	ranked mapping.CandidateList
	choice int // index into ranked; -1 means Ignore
	moved  bool
}

func (h *header) chosen() mapping.Candidate {
	if h.choice < 0 {
		return mapping.Candidate{
			Type:      canonical.Ignore,
			Source:    mapping.SourceLocalRule,
			Rationale: "no candidate",
		}
	}

	return h.ranked[h.choice]
}

// Merge resolves the inputs. It never fails; malformed proposals are
// skipped and headers without proposals become Ignore.
func (m *Merger) Merge(inputs []Input) Result {
	headers := make([]*header, len(inputs))

	for i, in := range inputs {
		h := &header{in: in, ranked: m.rank(in.Proposals), choice: -1}
		if len(h.ranked) > 0 {
			h.choice = 0
		}

		headers[i] = h
	}

	var res Result

	aliases := m.resolveCollisions(headers)

	for {
		missing := m.missing(headers, aliases)
		if len(missing) == 0 {
			break
		}

		r, ok := m.reassign(headers, aliases, missing)
		if !ok {
			res.Missing = missing
			break
		}

		res.Reassignments = append(res.Reassignments, r)
		aliases = m.resolveCollisions(headers)
	}

	res.Status = StatusOK
	if len(res.Missing) > 0 {
		res.Status = StatusPartial
	}

	res.Entries = m.entries(headers, aliases)

	return res
}

// rank drops invalid proposals and orders the rest by effective score.
func (m *Merger) rank(proposals mapping.CandidateList) mapping.CandidateList {
	valid := make(mapping.CandidateList, 0, len(proposals))

	for _, p := range proposals {
		if !p.Type.IsValid() || p.Confidence <= 0 {
			continue
		}

		p.Confidence = mapping.Clamp01(p.Confidence)
		valid = append(valid, p)
	}

	return valid.RankEffective(m.weights)
}

// before orders two claimants of the same type: higher effective score,
// then source priority, then raw confidence, then column position.
func (m *Merger) before(a, b *header) bool {
	ca, cb := a.chosen(), b.chosen()

	ea, eb := ca.Effective(m.weights), cb.Effective(m.weights)
	if ea != eb {
		return ea > eb
	}

	if ca.Source != cb.Source {
		return ca.Source < cb.Source
	}

	if ca.Confidence != cb.Confidence {
		return ca.Confidence > cb.Confidence
	}

	return a.in.Index < b.in.Index
}

// resolveCollisions returns the alias number for each header position.
func (m *Merger) resolveCollisions(headers []*header) []int {
	groups := make(map[canonical.Type][]*header)
	pos := make(map[*header]int, len(headers))

	for i, h := range headers {
		pos[h] = i

		if t := h.chosen().Type; !t.IsIgnore() {
			groups[t] = append(groups[t], h)
		}
	}

	aliases := make([]int, len(headers))

	for _, group := range groups {
		sort.SliceStable(group, func(i, j int) bool { return m.before(group[i], group[j]) })

		for n, h := range group {
			aliases[pos[h]] = n
		}
	}

	return aliases
}

func (m *Merger) missing(headers []*header, aliases []int) []Requirement {
	present := make(map[canonical.Type]bool)

	for i, h := range headers {
		if t := h.chosen().Type; !t.IsIgnore() && aliases[i] == 0 {
			present[t] = true
		}
	}

	var out []Requirement

	for _, req := range m.required {
		satisfied := false

		for _, t := range req {
			if present[t] {
				satisfied = true

				break
			}
		}

		if !satisfied {
			out = append(out, req)
		}
	}

	return out
}

// reassign moves one aliased or ignored header onto a missing type it
// proposed with at least reassignMin confidence. The best-scoring such
// proposal across all missing atoms wins.
func (m *Merger) reassign(headers []*header, aliases []int, missing []Requirement) (Reassignment, bool) {
	var (
		bestHeader *header
		bestIdx    int
		bestScore  float64
	)

	for i, h := range headers {
		if aliases[i] == 0 && !h.chosen().Type.IsIgnore() {
			continue
		}

		for k, cand := range h.ranked {
			if k == h.choice || !wanted(missing, cand.Type) || cand.Confidence < m.reassignMin {
				continue
			}

			score := cand.Effective(m.weights)
			if bestHeader == nil || score > bestScore ||
				(score == bestScore && h.in.Index < bestHeader.in.Index) {
				bestHeader, bestIdx, bestScore = h, k, score
			}

			break
		}
	}

	if bestHeader == nil {
		return Reassignment{}, false
	}

	from := bestHeader.chosen().Type
	bestHeader.choice = bestIdx
	bestHeader.moved = true

	return Reassignment{Index: bestHeader.in.Index, From: from, To: bestHeader.chosen().Type}, true
}

func wanted(missing []Requirement, t canonical.Type) bool {
	for _, req := range missing {
		for _, rt := range req {
			if rt == t {
				return true
			}
		}
	}

	return false
}

func (m *Merger) entries(headers []*header, aliases []int) []Entry {
	out := make([]Entry, len(headers))
	used := make(map[string]bool, len(headers))

	for i, h := range headers {
		c := h.chosen()
		e := Entry{
			Index:      h.in.Index,
			Raw:        h.in.Raw,
			Normalized: h.in.Normalized,
			Type:       c.Type,
			Chosen:     c,
			Effective:  c.Effective(m.weights),
			Reassigned: h.moved,
		}

		for k, alt := range h.ranked {
			if k != h.choice {
				e.Alternates = append(e.Alternates, alt)
			}
		}

		if !c.Type.IsIgnore() {
			e.Alias = aliases[i]
			e.Name = string(c.Type)

			if e.Alias > 0 {
				e.Name = c.Type.Alias(e.Alias)
			}

			used[e.Name] = true
		}

		out[i] = e
	}

	for i := range out {
		if out[i].Type.IsIgnore() {
			out[i].Name = ignoredName(out[i], used)
			used[out[i].Name] = true
		}
	}

	return out
}

// ignoredName keeps the raw header unless it is blank, spells a canonical
// name, or is already taken, in which case "_raw" (then "_raw2", ...) is appended.
func ignoredName(e Entry, used map[string]bool) string {
	base := strings.TrimSpace(e.Raw)
	if base == "" {
		base = fmt.Sprintf("column_%d", e.Index+1)
	}

	_, spellsCanonical := canonical.Parse(base)
	if !spellsCanonical && !used[base] {
		return base
	}

	name := base + "_raw"
	for n := 2; used[name]; n++ {
		name = fmt.Sprintf("%s_raw%d", base, n)
	}

	return name
}
