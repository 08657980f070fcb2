package canonical

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"schemamap/internal/common"
)

// OverrideFile is the on-disk shape of a synonym extension file:
//
//	version: "1"
//	types:
//	  Sales:
//	    description: "revenue booked"
//	    synonyms: [umsatz netto, erloes]
//	  Region:
//	    synonyms: [bezirk]
type OverrideFile struct {
	Version string                   `yaml:"version"`
	Types   map[string]OverrideEntry `yaml:"types"`
}

// OverrideEntry extends a single canonical type.
type OverrideEntry struct {
	Description string   `yaml:"description,omitempty"`
	Synonyms    []string `yaml:"synonyms,omitempty"`
}

// LoadOverrides loads and parses a YAML override file from the given path.
func LoadOverrides(path string) (*OverrideFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read synonym file %s: %w", path, err)
	}

	return ParseOverrides(data)
}

// ParseOverrides parses YAML data into an OverrideFile.
func ParseOverrides(data []byte) (*OverrideFile, error) {
	var of OverrideFile

	if err := yaml.Unmarshal(data, &of); err != nil {
		return nil, fmt.Errorf("failed to parse synonym YAML: %w", err)
	}

	if of.Version == "" {
		of.Version = "1"
	}

	return &of, nil
}

// WithOverrides returns a new Table with the builtin entries extended by the
// override file. Override descriptions replace builtin ones; synonyms are
// appended. Type names are matched case-insensitively.
func WithOverrides(of *OverrideFile) (*Table, error) {
	entries := make([]Entry, 0, len(builtin)+len(of.Types))
	entries = append(entries, builtin...)

	// map order must not leak into synonym ownership errors
	for _, name := range common.SortedKeys(of.Types) {
		typ, ok := Parse(name)
		if !ok || typ.IsIgnore() {
			return nil, fmt.Errorf("override for unknown canonical type %q", name)
		}

		o := of.Types[name]
		entries = append(entries, Entry{
			Type:        typ,
			Description: o.Description,
			Synonyms:    o.Synonyms,
		})
	}

	return NewTable(entries)
}
