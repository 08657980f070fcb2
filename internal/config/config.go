// Package config holds the run configuration for schemamap. A Config is an
// explicit value handed to the pipeline; nothing here is process-global.
package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"schemamap/internal/canonical"
	"schemamap/internal/embed/ort"
	"schemamap/internal/escalation"
	"schemamap/internal/kb"
	"schemamap/internal/logging"
	"schemamap/internal/mapping"
)

// EnvPrefix prefixes every environment override, e.g. SCHEMAMAP_ESCALATION_THRESHOLD.
const EnvPrefix = "SCHEMAMAP"

// Embedder kinds.
const (
	EmbedderNone = "none"
	EmbedderHash = "hash"
	EmbedderONNX = "onnx"
)

// Config is the full configuration of a schemamap run.
type Config struct {
	// Domain scopes knowledge base entries, e.g. "retail".
	Domain string `yaml:"domain" mapstructure:"domain"`
	// EscalationThreshold (0-100): headers whose best local confidence is
	// below it are sent to the language model.
	EscalationThreshold float64 `yaml:"escalation_threshold" mapstructure:"escalation_threshold"`
	// AutoAcceptThreshold (0-100): final mappings at or above it are written
	// back to the knowledge base.
	AutoAcceptThreshold float64 `yaml:"auto_accept_threshold" mapstructure:"auto_accept_threshold"`
	// FuzzyMin and SemanticMin are similarity floors on 0-1.
	FuzzyMin    float64 `yaml:"fuzzy_min" mapstructure:"fuzzy_min"`
	SemanticMin float64 `yaml:"semantic_min" mapstructure:"semantic_min"`
	// FallbackMin (0-100) gates the keyword fallback mapper.
	FallbackMin float64         `yaml:"fallback_min" mapstructure:"fallback_min"`
	Weights     mapping.Weights `yaml:"weights" mapstructure:"weights"`
	// Synonyms optionally points at a YAML synonym override file.
	Synonyms string `yaml:"synonyms" mapstructure:"synonyms"`

	Escalation EscalationConfig          `yaml:"escalation" mapstructure:"escalation"`
	LLM        escalation.ProviderConfig `yaml:"llm" mapstructure:"llm"`
	KB         KBConfig                  `yaml:"kb" mapstructure:"kb"`
	Embedder   EmbedderConfig            `yaml:"embedder" mapstructure:"embedder"`
	Logging    logging.Config            `yaml:"logging" mapstructure:"logging"`
	Metrics    MetricsConfig             `yaml:"metrics" mapstructure:"metrics"`
}

// EscalationConfig controls batching and retries of the escalation client.
type EscalationConfig struct {
	MaxBatchSize     int           `yaml:"max_batch_size" mapstructure:"max_batch_size"`
	MaxRetries       int           `yaml:"max_retries" mapstructure:"max_retries"`
	BaseBackoff      time.Duration `yaml:"base_backoff" mapstructure:"base_backoff"`
	MaxBackoff       time.Duration `yaml:"max_backoff" mapstructure:"max_backoff"`
	RequestTimeout   time.Duration `yaml:"request_timeout" mapstructure:"request_timeout"`
	ParallelBatches  int           `yaml:"parallel_batches" mapstructure:"parallel_batches"`
	FallbackDiscount float64       `yaml:"fallback_discount" mapstructure:"fallback_discount"`
}

// KBConfig selects the knowledge base store.
type KBConfig struct {
	Driver string `yaml:"driver" mapstructure:"driver"`
	DSN    string `yaml:"dsn" mapstructure:"dsn"`
}

// EmbedderConfig selects the semantic similarity backend.
type EmbedderConfig struct {
	Kind    string     `yaml:"kind" mapstructure:"kind"`
	HashDim int        `yaml:"hash_dim" mapstructure:"hash_dim"`
	ONNX    ort.Config `yaml:"onnx" mapstructure:"onnx"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Addr string `yaml:"addr" mapstructure:"addr"`
}

// Default returns the reference configuration.
func Default() *Config {
	esc := escalation.DefaultConfig()

	return &Config{
		Domain:              "default",
		EscalationThreshold: 75,
		AutoAcceptThreshold: 90,
		FuzzyMin:            0.75,
		SemanticMin:         0.70,
		FallbackMin:         70,
		Weights:             mapping.DefaultWeights(),
		Escalation: EscalationConfig{
			MaxBatchSize:     esc.MaxBatchSize,
			MaxRetries:       esc.MaxRetries,
			BaseBackoff:      esc.BaseBackoff,
			MaxBackoff:       esc.MaxBackoff,
			RequestTimeout:   esc.RequestTimeout,
			ParallelBatches:  esc.Parallelism,
			FallbackDiscount: esc.FallbackDiscount,
		},
		LLM:      escalation.ProviderConfig{Provider: escalation.ProviderNone},
		KB:       KBConfig{Driver: kb.DriverMemory},
		Embedder: EmbedderConfig{Kind: EmbedderHash},
		Logging:  logging.Config{Level: "info", Format: "console"},
	}
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config YAML: %w", err)
	}

	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Load builds a Config from the defaults, the optional YAML file at path and
// SCHEMAMAP_* environment variables, in increasing precedence.
func Load(path string) (*Config, error) {
	base, err := yaml.Marshal(Default())
	if err != nil {
		return nil, eris.Wrap(err, "failed to encode default config")
	}

	v := viper.New()
	v.SetConfigType("yaml")

	if err := v.ReadConfig(bytes.NewReader(base)); err != nil {
		return nil, eris.Wrap(err, "failed to seed default config")
	}

	if path != "" {
		v.SetConfigFile(path)

		if err := v.MergeInConfig(); err != nil {
			return nil, eris.Wrapf(err, "failed to read config file %s", path)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "failed to decode config")
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// applyDefaults fills in values that depend on other fields.
func applyDefaults(cfg *Config) {
	cfg.Domain = strings.TrimSpace(cfg.Domain)
	if cfg.Domain == "" {
		cfg.Domain = "default"
	}

	cfg.LLM.Provider = strings.ToLower(strings.TrimSpace(cfg.LLM.Provider))
	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = escalation.ProviderNone
	}

	if cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = os.Getenv(apiKeyEnv(cfg.LLM.Provider))
	}

	cfg.Embedder.Kind = strings.ToLower(strings.TrimSpace(cfg.Embedder.Kind))
	if cfg.Embedder.Kind == "" {
		cfg.Embedder.Kind = EmbedderHash
	}
}

func apiKeyEnv(provider string) string {
	switch provider {
	case escalation.ProviderOpenAI:
		return "OPENAI_API_KEY"
	case escalation.ProviderAnthropic:
		return "ANTHROPIC_API_KEY"
	case escalation.ProviderGemini:
		return "GEMINI_API_KEY"
	default:
		return ""
	}
}

// Validate rejects out-of-range settings.
func (c *Config) Validate() error {
	for _, pct := range []struct {
		name  string
		value float64
	}{
		{"escalation_threshold", c.EscalationThreshold},
		{"auto_accept_threshold", c.AutoAcceptThreshold},
		{"fallback_min", c.FallbackMin},
	} {
		if pct.value < 0 || pct.value > 100 {
			return fmt.Errorf("%s must be in [0, 100], got %v", pct.name, pct.value)
		}
	}

	for _, unit := range []struct {
		name  string
		value float64
	}{
		{"fuzzy_min", c.FuzzyMin},
		{"semantic_min", c.SemanticMin},
	} {
		if unit.value < 0 || unit.value > 1 {
			return fmt.Errorf("%s must be in [0, 1], got %v", unit.name, unit.value)
		}
	}

	if err := c.Weights.Validate(); err != nil {
		return err
	}

	e := c.Escalation
	if e.MaxBatchSize <= 0 {
		return fmt.Errorf("escalation.max_batch_size must be positive, got %d", e.MaxBatchSize)
	}

	if e.MaxRetries < 0 {
		return fmt.Errorf("escalation.max_retries must not be negative, got %d", e.MaxRetries)
	}

	if e.FallbackDiscount <= 0 || e.FallbackDiscount > 1 {
		return fmt.Errorf("escalation.fallback_discount must be in (0, 1], got %v", e.FallbackDiscount)
	}

	switch c.KB.Driver {
	case kb.DriverMemory, kb.DriverSQLite, kb.DriverPostgres:
	default:
		return fmt.Errorf("unknown kb driver %q", c.KB.Driver)
	}

	switch c.LLM.Provider {
	case escalation.ProviderNone, escalation.ProviderOpenAI, escalation.ProviderAnthropic, escalation.ProviderGemini:
	default:
		return fmt.Errorf("unknown llm provider %q", c.LLM.Provider)
	}

	switch c.Embedder.Kind {
	case EmbedderNone, EmbedderHash, EmbedderONNX:
	default:
		return fmt.Errorf("unknown embedder kind %q", c.Embedder.Kind)
	}

	return nil
}

// EscalationCutoff returns the escalation threshold on the 0-1 scale.
func (c *Config) EscalationCutoff() float64 { return c.EscalationThreshold / 100 }

// AutoAcceptCutoff returns the auto-accept threshold on the 0-1 scale.
func (c *Config) AutoAcceptCutoff() float64 { return c.AutoAcceptThreshold / 100 }

// EscalationClientConfig converts the escalation section for escalation.NewClient.
func (c *Config) EscalationClientConfig() escalation.Config {
	return escalation.Config{
		MaxBatchSize:     c.Escalation.MaxBatchSize,
		MaxRetries:       c.Escalation.MaxRetries,
		BaseBackoff:      c.Escalation.BaseBackoff,
		MaxBackoff:       c.Escalation.MaxBackoff,
		RequestTimeout:   c.Escalation.RequestTimeout,
		Parallelism:      c.Escalation.ParallelBatches,
		FallbackDiscount: c.Escalation.FallbackDiscount,
	}
}

// Table returns the synonym table, extended by the override file if one is set.
func (c *Config) Table() (*canonical.Table, error) {
	if c.Synonyms == "" {
		return canonical.Default(), nil
	}

	of, err := canonical.LoadOverrides(c.Synonyms)
	if err != nil {
		return nil, err
	}

	return canonical.WithOverrides(of)
}
