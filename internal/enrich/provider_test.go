package enrich

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ammaran620-de/stealth-market-intelligence/internal/config"
)

func testAIConfig() config.AIConfig {
	return config.AIConfig{
		Provider:         "openai",
		OpenAIKey:        "test-openai-key",
		AnthropicKey:     "test-anthropic-key",
		OpenAIModel:      "gpt-4-turbo-preview",
		AnthropicModel:   "claude-3-sonnet-20240229",
		OpenAIBaseURL:    "https://api.openai.com",
		AnthropicBaseURL: "https://api.anthropic.com",
		Temperature:      0.3,
		MaxTokens:        2000,
		RequestTimeout:   5 * time.Second,
	}
}

func TestNewProvider(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*config.AIConfig)
		wantName string
		wantErr  error
	}{
		{
			name:     "openai configured",
			mutate:   func(c *config.AIConfig) {},
			wantName: "openai",
		},
		{
			name:     "anthropic configured",
			mutate:   func(c *config.AIConfig) { c.Provider = "anthropic" },
			wantName: "anthropic",
		},
		{
			name:    "openai key missing",
			mutate:  func(c *config.AIConfig) { c.OpenAIKey = "" },
			wantErr: ErrMissingAPIKey,
		},
		{
			name:    "openai key left as placeholder",
			mutate:  func(c *config.AIConfig) { c.OpenAIKey = "your_openai_api_key_here" },
			wantErr: ErrMissingAPIKey,
		},
		{
			name: "anthropic key left as placeholder",
			mutate: func(c *config.AIConfig) {
				c.Provider = "anthropic"
				c.AnthropicKey = "your_anthropic_api_key_here"
			},
			wantErr: ErrMissingAPIKey,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testAIConfig()
			tt.mutate(&cfg)

			provider, err := NewProvider(cfg)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, provider.Name())
		})
	}

	t.Run("unsupported provider", func(t *testing.T) {
		cfg := testAIConfig()
		cfg.Provider = "gemini"
		_, err := NewProvider(cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported AI provider")
	})
}

func TestOpenAIComplete(t *testing.T) {
	transport := httpmock.NewMockTransport()

	var captured openAIRequest
	transport.RegisterResponder(http.MethodPost, "https://api.openai.com/v1/chat/completions",
		func(req *http.Request) (*http.Response, error) {
			assert.Equal(t, "Bearer test-openai-key", req.Header.Get("Authorization"))
			assert.Equal(t, "application/json", req.Header.Get("Content-Type"))

			body, err := io.ReadAll(req.Body)
			require.NoError(t, err)
			require.NoError(t, json.Unmarshal(body, &captured))

			return httpmock.NewStringResponse(http.StatusOK,
				`{"choices":[{"message":{"role":"assistant","content":"{\"categorizations\":[]}"}}]}`), nil
		})

	p := newOpenAIProvider(testAIConfig())
	p.client = &http.Client{Transport: transport}

	text, err := p.Complete(context.Background(), "categorize these", 0.3, 2000)
	require.NoError(t, err)
	assert.Equal(t, `{"categorizations":[]}`, text)

	assert.Equal(t, "gpt-4-turbo-preview", captured.Model)
	require.Len(t, captured.Messages, 2)
	assert.Equal(t, "system", captured.Messages[0].Role)
	assert.Equal(t, openAISystemPrompt, captured.Messages[0].Content)
	assert.Equal(t, "user", captured.Messages[1].Role)
	assert.Equal(t, "categorize these", captured.Messages[1].Content)
	assert.InDelta(t, 0.3, captured.Temperature, 0.0001)
	assert.Equal(t, 2000, captured.MaxTokens)
}

func TestOpenAICompleteAPIError(t *testing.T) {
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder(http.MethodPost, "https://api.openai.com/v1/chat/completions",
		httpmock.NewStringResponder(http.StatusTooManyRequests,
			`{"error":{"message":"Rate limit reached","type":"rate_limit_error"}}`))

	p := newOpenAIProvider(testAIConfig())
	p.client = &http.Client{Transport: transport}

	_, err := p.Complete(context.Background(), "prompt", 0.3, 2000)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Rate limit reached")
	assert.Contains(t, err.Error(), "429")
}

func TestOpenAICompleteNoChoices(t *testing.T) {
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder(http.MethodPost, "https://api.openai.com/v1/chat/completions",
		httpmock.NewStringResponder(http.StatusOK, `{"choices":[]}`))

	p := newOpenAIProvider(testAIConfig())
	p.client = &http.Client{Transport: transport}

	_, err := p.Complete(context.Background(), "prompt", 0.3, 2000)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no choices")
}

func TestAnthropicComplete(t *testing.T) {
	transport := httpmock.NewMockTransport()

	var captured anthropicRequest
	transport.RegisterResponder(http.MethodPost, "https://api.anthropic.com/v1/messages",
		func(req *http.Request) (*http.Response, error) {
			assert.Equal(t, "test-anthropic-key", req.Header.Get("x-api-key"))
			assert.Equal(t, anthropicVersion, req.Header.Get("anthropic-version"))

			body, err := io.ReadAll(req.Body)
			require.NoError(t, err)
			require.NoError(t, json.Unmarshal(body, &captured))

			return httpmock.NewStringResponse(http.StatusOK,
				`{"content":[{"type":"text","text":"{\"categorizations\":[]}"}]}`), nil
		})

	cfg := testAIConfig()
	cfg.Provider = "anthropic"
	p := newAnthropicProvider(cfg)
	p.client = &http.Client{Transport: transport}

	text, err := p.Complete(context.Background(), "categorize these", 0.3, 2000)
	require.NoError(t, err)
	assert.Equal(t, `{"categorizations":[]}`, text)

	assert.Equal(t, "claude-3-sonnet-20240229", captured.Model)
	assert.Equal(t, 2000, captured.MaxTokens)
	assert.InDelta(t, 0.3, captured.Temperature, 0.0001)
	require.Len(t, captured.Messages, 1)
	assert.Equal(t, "user", captured.Messages[0].Role)
}

func TestAnthropicCompleteAPIError(t *testing.T) {
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder(http.MethodPost, "https://api.anthropic.com/v1/messages",
		httpmock.NewStringResponder(http.StatusBadRequest,
			`{"error":{"type":"invalid_request_error","message":"max_tokens required"}}`))

	cfg := testAIConfig()
	cfg.Provider = "anthropic"
	p := newAnthropicProvider(cfg)
	p.client = &http.Client{Transport: transport}

	_, err := p.Complete(context.Background(), "prompt", 0.3, 2000)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_tokens required")
}

func TestAnthropicCompleteNoContent(t *testing.T) {
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder(http.MethodPost, "https://api.anthropic.com/v1/messages",
		httpmock.NewStringResponder(http.StatusOK, `{"content":[]}`))

	cfg := testAIConfig()
	cfg.Provider = "anthropic"
	p := newAnthropicProvider(cfg)
	p.client = &http.Client{Transport: transport}

	_, err := p.Complete(context.Background(), "prompt", 0.3, 2000)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no content blocks")
}
