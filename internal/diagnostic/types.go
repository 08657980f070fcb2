package diagnostic

import (
	"errors"
	"fmt"
	"strings"

	"schemamap/internal/common"
)

// Diagnostic codes.
const (
	CodeNoCandidate       = "no_candidate"
	CodeStrategyFailed    = "strategy_failed"
	CodeAmbiguous         = "ambiguous"
	CodeKnowledgeBaseHit  = "kb_hit"
	CodeKnowledgeBaseSave = "kb_saved"
	CodeEscalated         = "escalated"
	CodeEscalationFailed  = "escalation_failed"
	CodeEscalationOmitted = "escalation_omitted"
	CodeFallbackMapper    = "fallback_mapper"
	CodeCollision         = "collision"
	CodeReassigned        = "reassigned"
	CodeRequiredMissing   = "required_missing"
)

// Stages name the pipeline step a diagnostic came from.
const (
	StageNormalize  = "normalize"
	StageKB         = "kb"
	StageEscalation = "escalation"
	StageFallback   = "fallback"
	StageMerge      = "merge"
)

// Diagnostics holds all diagnostic information from a run.
type Diagnostics struct {
	Errors   []Diagnostic `json:"errors,omitempty"`
	Warnings []Diagnostic `json:"warnings,omitempty"`
	Infos    []Diagnostic `json:"infos,omitempty"`
}

// Diagnostic represents a single diagnostic message.
type Diagnostic struct {
	// Severity of the diagnostic.
	Severity Severity `json:"severity"`
	// Code is a unique identifier for this type of diagnostic.
	Code string `json:"code"`
	// Message is the human-readable description.
	Message string `json:"message"`
	// Stage is the pipeline step that raised it.
	Stage string `json:"stage,omitempty"`
	// Header is the raw header it relates to (if any).
	Header string `json:"header,omitempty"`
	// Suggestions are alternative mappings worth a look.
	Suggestions []string `json:"suggestions,omitempty"`
}

// Severity represents the severity level of a diagnostic.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
)

// String returns a human-readable severity name.
func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return common.UnknownStr
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (d *Diagnostics) add(list *[]Diagnostic, sev Severity, code, message, stage, header string, suggestions []string) {
	*list = append(*list, Diagnostic{
		Severity:    sev,
		Code:        code,
		Message:     message,
		Stage:       stage,
		Header:      header,
		Suggestions: suggestions,
	})
}

// AddError adds an error diagnostic.
func (d *Diagnostics) AddError(code, message, stage, header string) {
	d.add(&d.Errors, SeverityError, code, message, stage, header, nil)
}

// AddWarning adds a warning diagnostic.
func (d *Diagnostics) AddWarning(code, message, stage, header string, suggestions ...string) {
	d.add(&d.Warnings, SeverityWarning, code, message, stage, header, suggestions)
}

// AddInfo adds an info diagnostic.
func (d *Diagnostics) AddInfo(code, message, stage, header string) {
	d.add(&d.Infos, SeverityInfo, code, message, stage, header, nil)
}

// HasErrors returns true if there are any error diagnostics.
func (d *Diagnostics) HasErrors() bool {
	return len(d.Errors) > 0
}

// Merge merges another Diagnostics instance into this one.
func (d *Diagnostics) Merge(other Diagnostics) {
	d.Errors = append(d.Errors, other.Errors...)
	d.Warnings = append(d.Warnings, other.Warnings...)
	d.Infos = append(d.Infos, other.Infos...)
}

// ByCode returns every diagnostic with the given code, in severity order.
func (d *Diagnostics) ByCode(code string) []Diagnostic {
	var out []Diagnostic

	for _, list := range [][]Diagnostic{d.Errors, d.Warnings, d.Infos} {
		for _, diag := range list {
			if diag.Code == code {
				out = append(out, diag)
			}
		}
	}

	return out
}

// Error returns a combined error from all error diagnostics, or nil.
func (d *Diagnostics) Error() error {
	if !d.HasErrors() {
		return nil
	}

	parts := make([]string, 0, len(d.Errors))
	for _, e := range d.Errors {
		parts = append(parts, e.String())
	}

	return errors.New(strings.Join(parts, "; "))
}

// String returns a formatted diagnostic string.
func (d Diagnostic) String() string {
	var prefix []string
	if d.Stage != "" {
		prefix = append(prefix, "["+d.Stage+"]")
	}

	if d.Header != "" {
		prefix = append(prefix, fmt.Sprintf("%q", d.Header))
	}

	msg := d.Message
	if d.Code != "" {
		msg = fmt.Sprintf("[%s] %s", d.Code, msg)
	}

	if len(d.Suggestions) > 0 {
		msg += " (consider: " + strings.Join(d.Suggestions, ", ") + ")"
	}

	if len(prefix) > 0 {
		return strings.Join(prefix, " ") + ": " + msg
	}

	return msg
}
