package escalation

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/rotisserie/eris"
	"google.golang.org/genai"
)

// Providers accepted by NewTransport.
const (
	ProviderNone      = "none"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
)

const (
	defaultOpenAIURL    = "https://api.openai.com/v1"
	defaultAnthropicURL = "https://api.anthropic.com/v1"
	defaultOpenAIModel  = "gpt-4o-mini"
	defaultClaudeModel  = "claude-3-5-haiku-latest"
	defaultGeminiModel  = "gemini-2.0-flash"
	anthropicVersion    = "2023-06-01"
	anthropicMaxTokens  = 2000
)

// Transport sends one prompt to a language model and returns its raw text reply.
type Transport interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// ProviderConfig selects and configures a transport.
type ProviderConfig struct {
	Provider string `yaml:"provider" mapstructure:"provider"`
	Model    string `yaml:"model" mapstructure:"model"`
	BaseURL  string `yaml:"base_url" mapstructure:"base_url"`
	APIKey   string `yaml:"api_key" mapstructure:"api_key"`
}

// NewTransport builds the transport for cfg. It returns nil, nil when
// escalation is disabled.
func NewTransport(ctx context.Context, cfg ProviderConfig) (Transport, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", ProviderNone:
		return nil, nil
	case ProviderOpenAI:
		return NewOpenAITransport(cfg), nil
	case ProviderAnthropic:
		return NewAnthropicTransport(cfg), nil
	case ProviderGemini:
		t, err := NewGeminiTransport(ctx, cfg)
		if err != nil {
			return nil, err
		}

		return t, nil
	default:
		return nil, eris.Errorf("unknown llm provider %q", cfg.Provider)
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type openAIResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// OpenAITransport talks to any OpenAI-compatible /chat/completions endpoint.
type OpenAITransport struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

// NewOpenAITransport creates an OpenAI-compatible transport.
func NewOpenAITransport(cfg ProviderConfig) *OpenAITransport {
	t := &OpenAITransport{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  strings.TrimSpace(cfg.APIKey),
		model:   cfg.Model,
		client:  &http.Client{},
	}

	if t.baseURL == "" {
		t.baseURL = defaultOpenAIURL
	}

	if t.model == "" {
		t.model = defaultOpenAIModel
	}

	return t
}

// Complete implements Transport.
func (t *OpenAITransport) Complete(ctx context.Context, prompt string) (string, error) {
	if t.apiKey == "" {
		return "", eris.New("openai api key not configured")
	}

	body, err := json.Marshal(openAIRequest{
		Model:    t.model,
		Messages: []chatMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", eris.Wrap(err, "marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", eris.Wrap(err, "create request")
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+t.apiKey)

	raw, err := do(t.client, req)
	if err != nil {
		return "", err
	}

	var resp openAIResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", eris.Wrap(err, "unmarshal response")
	}

	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}

	return resp.Choices[0].Message.Content, nil
}

type anthropicRequest struct {
	Model       string        `json:"model"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
	Messages    []chatMessage `json:"messages"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// AnthropicTransport talks to the Anthropic Messages API.
type AnthropicTransport struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

// NewAnthropicTransport creates an Anthropic Messages API transport.
func NewAnthropicTransport(cfg ProviderConfig) *AnthropicTransport {
	t := &AnthropicTransport{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  strings.TrimSpace(cfg.APIKey),
		model:   cfg.Model,
		client:  &http.Client{},
	}

	if t.baseURL == "" {
		t.baseURL = defaultAnthropicURL
	}

	if t.model == "" {
		t.model = defaultClaudeModel
	}

	return t
}

// Complete implements Transport.
func (t *AnthropicTransport) Complete(ctx context.Context, prompt string) (string, error) {
	if t.apiKey == "" {
		return "", eris.New("anthropic api key not configured")
	}

	body, err := json.Marshal(anthropicRequest{
		Model:       t.model,
		MaxTokens:   anthropicMaxTokens,
		Temperature: 0,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", eris.Wrap(err, "marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return "", eris.Wrap(err, "create request")
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", t.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	raw, err := do(t.client, req)
	if err != nil {
		return "", err
	}

	var resp anthropicResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", eris.Wrap(err, "unmarshal response")
	}

	for _, c := range resp.Content {
		if strings.TrimSpace(c.Text) != "" {
			return c.Text, nil
		}
	}

	return "", ErrEmptyResponse
}

func do(client *http.Client, req *http.Request) ([]byte, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "send request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "read response")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("api request failed with status %d: %s", resp.StatusCode, truncate(string(body), 256))
	}

	return body, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}

	return s[:n] + "..."
}

// GeminiTransport talks to Gemini through the genai SDK.
type GeminiTransport struct {
	client *genai.Client
	model  string
}

// NewGeminiTransport creates a Gemini transport. Without an API key the SDK
// falls back to Application Default Credentials.
func NewGeminiTransport(ctx context.Context, cfg ProviderConfig) (*GeminiTransport, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: strings.TrimSpace(cfg.APIKey),
	})
	if err != nil {
		return nil, eris.Wrap(err, "create gemini client")
	}

	model := cfg.Model
	if model == "" {
		model = defaultGeminiModel
	}

	return &GeminiTransport{client: client, model: model}, nil
}

// Complete implements Transport.
func (t *GeminiTransport) Complete(ctx context.Context, prompt string) (string, error) {
	content := genai.NewContentFromText(prompt, genai.RoleUser)

	resp, err := t.client.Models.GenerateContent(ctx, t.model, []*genai.Content{content}, nil)
	if err != nil {
		return "", eris.Wrap(err, "generate content with gemini")
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", ErrEmptyResponse
	}

	var out strings.Builder

	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil && part.Text != "" {
			out.WriteString(part.Text)
		}
	}

	return out.String(), nil
}
