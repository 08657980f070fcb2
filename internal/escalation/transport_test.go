package escalation

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAITransport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req openAIRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-test", req.Model)
		assert.Equal(t, "map these", req.Messages[0].Content)

		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"{\"mappings\":[]}"}}]}`))
	}))
	defer srv.Close()

	tr := NewOpenAITransport(ProviderConfig{BaseURL: srv.URL + "/v1/", APIKey: " sk-test ", Model: "gpt-test"})

	got, err := tr.Complete(context.Background(), "map these")
	require.NoError(t, err)
	assert.Equal(t, `{"mappings":[]}`, got)
}

func TestOpenAITransportErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := NewOpenAITransport(ProviderConfig{BaseURL: srv.URL, APIKey: "k"}).Complete(context.Background(), "p")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")

	_, err = NewOpenAITransport(ProviderConfig{BaseURL: srv.URL}).Complete(context.Background(), "p")
	require.Error(t, err)
}

func TestAnthropicTransport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/messages", r.URL.Path)
		assert.Equal(t, "key", r.Header.Get("x-api-key"))
		assert.Equal(t, anthropicVersion, r.Header.Get("anthropic-version"))

		var req anthropicRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, defaultClaudeModel, req.Model)
		assert.Positive(t, req.MaxTokens)

		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"  "},{"type":"text","text":"{\"mappings\":[]}"}]}`))
	}))
	defer srv.Close()

	got, err := NewAnthropicTransport(ProviderConfig{BaseURL: srv.URL, APIKey: "key"}).Complete(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, `{"mappings":[]}`, got)
}

func TestAnthropicTransportEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"content":[]}`))
	}))
	defer srv.Close()

	_, err := NewAnthropicTransport(ProviderConfig{BaseURL: srv.URL, APIKey: "key"}).Complete(context.Background(), "p")
	require.ErrorIs(t, err, ErrEmptyResponse)
}

func TestNewTransport(t *testing.T) {
	ctx := context.Background()

	tr, err := NewTransport(ctx, ProviderConfig{})
	require.NoError(t, err)
	assert.Nil(t, tr)

	tr, err = NewTransport(ctx, ProviderConfig{Provider: "none"})
	require.NoError(t, err)
	assert.Nil(t, tr)

	tr, err = NewTransport(ctx, ProviderConfig{Provider: "OpenAI"})
	require.NoError(t, err)
	assert.IsType(t, &OpenAITransport{}, tr)

	tr, err = NewTransport(ctx, ProviderConfig{Provider: "anthropic"})
	require.NoError(t, err)
	assert.IsType(t, &AnthropicTransport{}, tr)

	_, err = NewTransport(ctx, ProviderConfig{Provider: "carrier-pigeon"})
	require.Error(t, err)
}
