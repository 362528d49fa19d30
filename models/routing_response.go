package models

import (
	"time"

	"github.com/google/uuid"
)

// ResponseMetrics captures the measurable outcome of one routed request
type ResponseMetrics struct {
	TotalLatencyMs    int     `json:"total_latency_ms"`
	ProviderLatencyMs int     `json:"provider_latency_ms"`
	Cost              float64 `json:"cost"`
	TokensIn          int     `json:"tokens_in"`
	TokensOut         int     `json:"tokens_out"`
	CacheHit          bool    `json:"cache_hit"`
	FallbackUsed      bool    `json:"fallback_used"`
}

// ComplianceInfo records which safeguards were applied to a response
type ComplianceInfo struct {
	Sanitized   bool `json:"sanitized"`
	PIIRedacted bool `json:"pii_redacted"`
	AuditLogged bool `json:"audit_logged"`
}

// ResponseMetadata identifies a response
type ResponseMetadata struct {
	ResponseID string    `json:"response_id"`
	Timestamp  time.Time `json:"timestamp"`
}

// RoutingResponse is the single output of the router. Produced once,
// never mutated after return.
type RoutingResponse struct {
	Content      string           `json:"content"`
	ProviderUsed string           `json:"provider_used"`
	ModelUsed    string           `json:"model_used"`
	Metrics      ResponseMetrics  `json:"metrics"`
	Compliance   ComplianceInfo   `json:"compliance"`
	Metadata     ResponseMetadata `json:"metadata"`
}

// NewRoutingResponse creates a response shell with generated metadata.
func NewRoutingResponse(content, provider, model string) *RoutingResponse {
	return &RoutingResponse{
		Content:      content,
		ProviderUsed: provider,
		ModelUsed:    model,
		Metadata: ResponseMetadata{
			ResponseID: uuid.New().String(),
			Timestamp:  time.Now(),
		},
	}
}
