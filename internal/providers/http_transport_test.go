package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitalis-health/ai-routing/models"
	"github.com/vitalis-health/ai-routing/services"
)

func testProvider() *models.ProviderConfig {
	return &models.ProviderConfig{
		ID:      "provider-alpha",
		Name:    "Provider Alpha",
		Enabled: true,
		Models: []models.ModelConfig{
			{
				Name:            "clinical-large",
				Category:        models.ModelCategoryChat,
				CostPer1KInput:  0.01,
				CostPer1KOutput: 0.03,
				MaxTokens:       4096,
			},
		},
	}
}

func TestHTTPTransport_Call(t *testing.T) {
	var gotAuth string
	var gotReq chatRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))

		resp := chatResponse{
			ID:    "resp-1",
			Model: "clinical-large",
			Choices: []chatChoice{
				{Message: chatMessage{Role: "assistant", Content: "summary of the visit"}, FinishReason: "stop"},
			},
			Usage: chatUsage{PromptTokens: 1000, CompletionTokens: 500, TotalTokens: 1500},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	transport := NewHTTPTransport(map[string]Endpoint{
		"provider-alpha": {BaseURL: server.URL, APIKey: "test-key"},
	}, nil)

	provider := testProvider()
	req := models.NewRoutingRequest("summarize the visit", "tenant-1", "dr-souza")
	req.AI.MaxTokens = 512
	req.AI.Temperature = 0.2

	result, err := transport.Call(context.Background(), provider, provider.Models[0], req)
	require.NoError(t, err)

	assert.Equal(t, "summary of the visit", result.Content)
	assert.Equal(t, 1000, result.TokensIn)
	assert.Equal(t, 500, result.TokensOut)
	// 1000/1000*0.01 + 500/1000*0.03
	assert.InDelta(t, 0.025, result.Cost, 1e-9)

	assert.Equal(t, "Bearer test-key", gotAuth)
	assert.Equal(t, "clinical-large", gotReq.Model)
	require.Len(t, gotReq.Messages, 1)
	assert.Equal(t, "user", gotReq.Messages[0].Role)
	assert.Equal(t, "summarize the visit", gotReq.Messages[0].Content)
	require.NotNil(t, gotReq.MaxTokens)
	assert.Equal(t, 512, *gotReq.MaxTokens)
}

func TestHTTPTransport_MessagesWinOverPrompt(t *testing.T) {
	var gotReq chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		_ = json.NewEncoder(w).Encode(chatResponse{
			Choices: []chatChoice{{Message: chatMessage{Role: "assistant", Content: "ok"}}},
		})
	}))
	defer server.Close()

	transport := NewHTTPTransport(map[string]Endpoint{
		"provider-alpha": {BaseURL: server.URL, APIKey: "k"},
	}, nil)

	provider := testProvider()
	req := models.NewRoutingRequest("ignored", "tenant-1", "dr-souza")
	req.Messages = []models.Message{
		{Role: "system", Content: "you are a clinical assistant"},
		{Role: "user", Content: "list the medications"},
	}

	_, err := transport.Call(context.Background(), provider, provider.Models[0], req)
	require.NoError(t, err)
	require.Len(t, gotReq.Messages, 2)
	assert.Equal(t, "system", gotReq.Messages[0].Role)
}

func TestHTTPTransport_ErrorStatus(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"rate limited", http.StatusTooManyRequests, `{"error":{"message":"rate limit exceeded","type":"rate_limit"}}`},
		{"server error", http.StatusInternalServerError, `{"error":{"message":"upstream exploded","type":"server_error"}}`},
		{"bad request", http.StatusBadRequest, `not even json`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			transport := NewHTTPTransport(map[string]Endpoint{
				"provider-alpha": {BaseURL: server.URL, APIKey: "k"},
			}, nil)

			provider := testProvider()
			req := models.NewRoutingRequest("hello", "tenant-1", "dr-souza")

			_, err := transport.Call(context.Background(), provider, provider.Models[0], req)
			require.Error(t, err)
			assert.True(t, services.IsProviderError(err))
			assert.True(t, services.IsRetryable(err))
		})
	}
}

func TestHTTPTransport_UnknownProvider(t *testing.T) {
	transport := NewHTTPTransport(map[string]Endpoint{}, nil)

	provider := testProvider()
	req := models.NewRoutingRequest("hello", "tenant-1", "dr-souza")

	_, err := transport.Call(context.Background(), provider, provider.Models[0], req)
	require.Error(t, err)
	assert.True(t, services.IsProviderError(err))
	assert.Contains(t, err.Error(), "no endpoint configured")
}

func TestHTTPTransport_NoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(chatResponse{})
	}))
	defer server.Close()

	transport := NewHTTPTransport(map[string]Endpoint{
		"provider-alpha": {BaseURL: server.URL, APIKey: "k"},
	}, nil)

	provider := testProvider()
	req := models.NewRoutingRequest("hello", "tenant-1", "dr-souza")

	_, err := transport.Call(context.Background(), provider, provider.Models[0], req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no choices")
}

func TestHTTPTransport_Probe(t *testing.T) {
	t.Run("healthy endpoint", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/models", r.URL.Path)
			_, _ = w.Write([]byte(`{"data":[]}`))
		}))
		defer server.Close()

		transport := NewHTTPTransport(map[string]Endpoint{
			"provider-alpha": {BaseURL: server.URL, APIKey: "k"},
		}, nil)

		latency, err := transport.Probe(context.Background(), "provider-alpha")
		require.NoError(t, err)
		assert.Greater(t, latency, time.Duration(0))
	})

	t.Run("failing endpoint", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer server.Close()

		transport := NewHTTPTransport(map[string]Endpoint{
			"provider-alpha": {BaseURL: server.URL, APIKey: "k"},
		}, nil)

		_, err := transport.Probe(context.Background(), "provider-alpha")
		require.Error(t, err)
	})

	t.Run("unknown provider", func(t *testing.T) {
		transport := NewHTTPTransport(map[string]Endpoint{}, nil)
		_, err := transport.Probe(context.Background(), "nope")
		require.Error(t, err)
	})
}

func TestLoadCatalog(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "providers.json")

	content := `{
		"providers": [
			{
				"provider": {
					"id": "provider-alpha",
					"name": "Provider Alpha",
					"enabled": true,
					"compliance": ["lgpd", "anvisa", "cfm"],
					"requests_per_min": 60,
					"models": [
						{"name": "clinical-large", "category": "chat", "cost_per_1k_input": 0.01, "cost_per_1k_output": 0.03, "max_tokens": 4096}
					]
				},
				"endpoint": {"base_url": "https://alpha.example.com/v1", "api_key_env": "ALPHA_API_KEY"}
			}
		]
	}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("ALPHA_API_KEY", "secret-key")

	catalog, err := LoadCatalog(path)
	require.NoError(t, err)
	require.Len(t, catalog.Providers, 1)

	configs := catalog.Configs()
	require.Len(t, configs, 1)
	assert.Equal(t, "provider-alpha", configs[0].ID)
	assert.Equal(t, []models.ComplianceFlag{models.ComplianceLGPD, models.ComplianceANVISA, models.ComplianceCFM}, configs[0].Compliance)

	endpoints := catalog.Endpoints()
	assert.Equal(t, "https://alpha.example.com/v1", endpoints["provider-alpha"].BaseURL)
	assert.Equal(t, "secret-key", endpoints["provider-alpha"].APIKey)
}

func TestLoadCatalog_Invalid(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		content string
		errMsg  string
	}{
		{"missing file", "", "failed to read"},
		{"bad json", "{", "failed to parse"},
		{"no id", `{"providers":[{"provider":{"models":[{"name":"m"}]},"endpoint":{"base_url":"x"}}]}`, "has no id"},
		{"no models", `{"providers":[{"provider":{"id":"p"},"endpoint":{"base_url":"x"}}]}`, "has no models"},
		{"no endpoint", `{"providers":[{"provider":{"id":"p","models":[{"name":"m"}]},"endpoint":{}}]}`, "no endpoint base URL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name+".json")
			if tt.content != "" {
				require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o600))
			}
			_, err := LoadCatalog(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}
