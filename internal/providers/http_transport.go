package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/vitalis-health/ai-routing/models"
	"github.com/vitalis-health/ai-routing/services"
	"github.com/vitalis-health/ai-routing/services/router"
)

const defaultTimeout = 60 * time.Second

// Endpoint is the network location and credential for one provider.
type Endpoint struct {
	BaseURL string
	APIKey  string
	Headers map[string]string
}

// HTTPTransport calls OpenAI-compatible chat completion endpoints.
type HTTPTransport struct {
	endpoints map[string]Endpoint
	client    *http.Client
	logger    *zap.Logger
}

// Option configures the transport.
type Option func(*HTTPTransport)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(t *HTTPTransport) {
		t.client = client
	}
}

// NewHTTPTransport creates a transport for the given provider endpoints,
// keyed by provider id.
func NewHTTPTransport(endpoints map[string]Endpoint, logger *zap.Logger, opts ...Option) *HTTPTransport {
	if logger == nil {
		logger = zap.NewNop()
	}
	t := &HTTPTransport{
		endpoints: endpoints,
		client:    &http.Client{Timeout: defaultTimeout},
		logger:    logger,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Call sends the request to the provider's chat completions endpoint and
// returns the first choice with token usage converted to cost.
func (t *HTTPTransport) Call(ctx context.Context, provider *models.ProviderConfig, model models.ModelConfig, req *models.RoutingRequest) (*router.ProviderResult, error) {
	endpoint, ok := t.endpoints[provider.ID]
	if !ok {
		return nil, services.NewDomainError(services.ErrorTypeProvider,
			fmt.Sprintf("no endpoint configured for provider %s", provider.ID), nil)
	}

	wireReq := buildChatRequest(model, req)
	body, err := json.Marshal(wireReq)
	if err != nil {
		return nil, services.NewDomainError(services.ErrorTypeProvider, "failed to marshal provider request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, services.NewDomainError(services.ErrorTypeProvider, "failed to create provider request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+endpoint.APIKey)
	for k, v := range endpoint.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, services.NewDomainError(services.ErrorTypeProvider, "provider request failed", err).
			WithDetail("provider_id", provider.ID)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, services.NewDomainError(services.ErrorTypeProvider, "failed to read provider response", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, t.errorFromStatus(provider.ID, resp.StatusCode, respBody)
	}

	var wireResp chatResponse
	if err := json.Unmarshal(respBody, &wireResp); err != nil {
		return nil, services.NewDomainError(services.ErrorTypeProvider, "failed to decode provider response", err)
	}
	if len(wireResp.Choices) == 0 {
		return nil, services.NewDomainError(services.ErrorTypeProvider, "provider returned no choices", nil).
			WithDetail("provider_id", provider.ID)
	}

	tokensIn := wireResp.Usage.PromptTokens
	tokensOut := wireResp.Usage.CompletionTokens
	cost := float64(tokensIn)/1000*model.CostPer1KInput + float64(tokensOut)/1000*model.CostPer1KOutput

	return &router.ProviderResult{
		Content:   wireResp.Choices[0].Message.Content,
		TokensIn:  tokensIn,
		TokensOut: tokensOut,
		Cost:      cost,
	}, nil
}

// Probe checks a provider's models endpoint for liveness. Used by the
// health monitor's periodic probe loop.
func (t *HTTPTransport) Probe(ctx context.Context, providerID string) (time.Duration, error) {
	endpoint, ok := t.endpoints[providerID]
	if !ok {
		return 0, fmt.Errorf("no endpoint configured for provider %s", providerID)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.BaseURL+"/models", nil)
	if err != nil {
		return 0, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+endpoint.APIKey)

	start := time.Now()
	resp, err := t.client.Do(httpReq)
	elapsed := time.Since(start)
	if err != nil {
		return elapsed, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return elapsed, fmt.Errorf("probe returned status %d", resp.StatusCode)
	}
	return elapsed, nil
}

func (t *HTTPTransport) errorFromStatus(providerID string, status int, body []byte) error {
	var wireErr errorResponse
	message := fmt.Sprintf("provider returned status %d", status)
	if err := json.Unmarshal(body, &wireErr); err == nil && wireErr.Error.Message != "" {
		message = wireErr.Error.Message
	}

	t.logger.Warn("provider call failed",
		zap.String("provider_id", providerID),
		zap.Int("status", status),
		zap.String("message", message),
	)

	if status == http.StatusTooManyRequests {
		return services.NewDomainError(services.ErrorTypeProvider, "provider rate limited", nil).
			WithDetail("provider_id", providerID).
			WithDetail("status", status)
	}
	return services.NewDomainError(services.ErrorTypeProvider, message, nil).
		WithDetail("provider_id", providerID).
		WithDetail("status", status)
}

// buildChatRequest converts the routing request to the chat completions
// wire format. Explicit messages win over the bare prompt.
func buildChatRequest(model models.ModelConfig, req *models.RoutingRequest) *chatRequest {
	wireReq := &chatRequest{
		Model: model.Name,
	}
	if len(req.Messages) > 0 {
		wireReq.Messages = make([]chatMessage, len(req.Messages))
		for i, m := range req.Messages {
			wireReq.Messages[i] = chatMessage{Role: m.Role, Content: m.Content}
		}
	} else {
		wireReq.Messages = []chatMessage{{Role: "user", Content: req.Prompt}}
	}
	if req.AI.MaxTokens > 0 {
		wireReq.MaxTokens = &req.AI.MaxTokens
	}
	if req.AI.Temperature > 0 {
		wireReq.Temperature = &req.AI.Temperature
	}
	return wireReq
}

// Chat completions wire types

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   *int          `json:"max_tokens,omitempty"`
	Temperature *float64      `json:"temperature,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	ID      string       `json:"id"`
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
	Usage   chatUsage    `json:"usage"`
}

type chatChoice struct {
	Index        int         `json:"index"`
	Message      chatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

type chatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}
