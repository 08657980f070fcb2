package pipeline

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"schemamap/internal/canonical"
)

// SuggestionFile is a reviewable mapping. After editing, it can be fed
// back into a run as confirmations.
//
//	version: "1"
//	domain: retail
//	mappings:
//	  - header: txn_dt
//	    type: Date
//	    source: local_rule
//	    confidence: 0.85
type SuggestionFile struct {
	Version  string       `yaml:"version"`
	Domain   string       `yaml:"domain,omitempty"`
	Mappings []Suggestion `yaml:"mappings"`
}

// Suggestion is one reviewed header.
type Suggestion struct {
	Header     string  `yaml:"header"`
	Type       string  `yaml:"type"`
	Source     string  `yaml:"source,omitempty"`
	Confidence float64 `yaml:"confidence,omitempty"`
	Rationale  string  `yaml:"rationale,omitempty"`
}

// ExportSuggestions converts a report into a suggestion file in column order.
// Aliased entries are exported with their canonical type so that a reviewer
// can decide which column should own it.
func ExportSuggestions(r *Report) *SuggestionFile {
	sf := &SuggestionFile{Version: "1", Domain: r.Domain}

	for _, e := range r.Entries {
		sf.Mappings = append(sf.Mappings, Suggestion{
			Header:     e.Raw,
			Type:       string(e.Type),
			Source:     e.Source.String(),
			Confidence: e.Confidence,
			Rationale:  e.Rationale,
		})
	}

	return sf
}

// ExportSuggestionsYAML renders ExportSuggestions as YAML.
func ExportSuggestionsYAML(r *Report) ([]byte, error) {
	return yaml.Marshal(ExportSuggestions(r))
}

// LoadConfirmations reads a suggestion file from path.
func LoadConfirmations(path string) (Confirmations, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read confirmations %s: %w", path, err)
	}

	return ParseConfirmations(data)
}

// ParseConfirmations turns a reviewed suggestion file into confirmations.
// Ignore entries are skipped; unknown type names are an error.
func ParseConfirmations(data []byte) (Confirmations, error) {
	var sf SuggestionFile

	if err := yaml.Unmarshal(data, &sf); err != nil {
		return nil, fmt.Errorf("failed to parse confirmations YAML: %w", err)
	}

	out := make(Confirmations, len(sf.Mappings))

	for i, s := range sf.Mappings {
		typ, ok := canonical.Parse(s.Type)
		if !ok {
			return nil, fmt.Errorf("mappings[%d]: unknown canonical type %q", i, s.Type)
		}

		if typ.IsIgnore() {
			continue
		}

		out[s.Header] = typ
	}

	return out, nil
}
