package mapping

import (
	"fmt"

	"schemamap/internal/common"
)

// Source indicates where a mapping proposal originated.
// Lower values carry higher priority when effective scores tie.
type Source int

const (
	// SourceUserConfirmed - explicitly confirmed by a user (highest priority).
	SourceUserConfirmed Source = iota
	// SourceKnowledgeBase - reused from a previously confirmed mapping.
	SourceKnowledgeBase
	// SourceLanguageModel - proposed by the escalation service.
	SourceLanguageModel
	// SourceLocalRule - alias, fuzzy, semantic or keyword rules.
	SourceLocalRule
	// SourceLocalFallback - best local candidate after escalation failed, discounted.
	SourceLocalFallback
)

// String returns the wire name of the source.
func (s Source) String() string {
	switch s {
	case SourceUserConfirmed:
		return "user_confirmed"
	case SourceKnowledgeBase:
		return "knowledge_base"
	case SourceLanguageModel:
		return "language_model"
	case SourceLocalRule:
		return "local_rule"
	case SourceLocalFallback:
		return "local_fallback"
	default:
		return common.UnknownStr
	}
}

// ParseSource is the inverse of String.
func ParseSource(s string) (Source, error) {
	for src := SourceUserConfirmed; src <= SourceLocalFallback; src++ {
		if src.String() == s {
			return src, nil
		}
	}

	return 0, fmt.Errorf("unknown mapping source %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (s Source) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Source) UnmarshalText(data []byte) error {
	parsed, err := ParseSource(string(data))
	if err != nil {
		return err
	}

	*s = parsed

	return nil
}

// Weights holds the trust weight per source. EffectiveScore = confidence x weight.
type Weights struct {
	UserConfirmed float64 `yaml:"user_confirmed" mapstructure:"user_confirmed"`
	KnowledgeBase float64 `yaml:"knowledge_base" mapstructure:"knowledge_base"`
	LanguageModel float64 `yaml:"language_model" mapstructure:"language_model"`
	LocalRule     float64 `yaml:"local_rule" mapstructure:"local_rule"`
}

// DefaultWeights returns the reference trust weights.
func DefaultWeights() Weights {
	return Weights{
		UserConfirmed: 1.0,
		KnowledgeBase: 0.98,
		LanguageModel: 0.9,
		LocalRule:     0.85,
	}
}

// Weight returns the trust weight for a source. A local fallback is trusted
// like any other local rule; its confidence carries the discount.
func (w Weights) Weight(s Source) float64 {
	switch s {
	case SourceUserConfirmed:
		return w.UserConfirmed
	case SourceKnowledgeBase:
		return w.KnowledgeBase
	case SourceLanguageModel:
		return w.LanguageModel
	case SourceLocalRule, SourceLocalFallback:
		return w.LocalRule
	default:
		return 0
	}
}

// Validate checks that every weight lies in (0, 1].
func (w Weights) Validate() error {
	for _, pair := range []struct {
		name  string
		value float64
	}{
		{"user_confirmed", w.UserConfirmed},
		{"knowledge_base", w.KnowledgeBase},
		{"language_model", w.LanguageModel},
		{"local_rule", w.LocalRule},
	} {
		if pair.value <= 0 || pair.value > 1 {
			return fmt.Errorf("weight %s must be in (0, 1], got %v", pair.name, pair.value)
		}
	}

	return nil
}
