package models

import (
	"time"
)

// ModelCategory classifies what a model is suited for
type ModelCategory string

const (
	ModelCategoryChat          ModelCategory = "chat"
	ModelCategoryClinicalNotes ModelCategory = "clinical_notes"
	ModelCategoryTriage        ModelCategory = "triage"
	ModelCategorySummarization ModelCategory = "summarization"
	ModelCategoryEmbedding     ModelCategory = "embedding"
)

// ComplianceFlag identifies a regulatory requirement a provider can satisfy
type ComplianceFlag string

const (
	// ComplianceLGPD indicates the provider processes data under LGPD terms
	ComplianceLGPD ComplianceFlag = "lgpd"

	// ComplianceANVISA indicates clearance from the local health authority
	ComplianceANVISA ComplianceFlag = "anvisa"

	// ComplianceCFM indicates professional-body (medical council) approval
	ComplianceCFM ComplianceFlag = "cfm"
)

// ModelConfig describes a single model offered by a provider
type ModelConfig struct {
	Name            string        `json:"name"`
	Category        ModelCategory `json:"category"`
	CostPer1KInput  float64       `json:"cost_per_1k_input"`
	CostPer1KOutput float64       `json:"cost_per_1k_output"`
	MaxTokens       int           `json:"max_tokens"`
	MaxLatencyMs    int           `json:"max_latency_ms"`
}

// ProviderConfig holds the static configuration for an AI provider.
// Immutable after registration except Enabled and the spend counters,
// which are owned by the registry.
type ProviderConfig struct {
	ID              string           `json:"id"`
	Name            string           `json:"name"`
	Enabled         bool             `json:"enabled"`
	Models          []ModelConfig    `json:"models"`
	Compliance      []ComplianceFlag `json:"compliance"`
	RequestsPerMin  int              `json:"requests_per_min"`
	UseCaseAffinity []UseCase        `json:"use_case_affinity,omitempty"`
}

// HasCompliance reports whether the provider carries every flag in required.
func (p *ProviderConfig) HasCompliance(required []ComplianceFlag) bool {
	for _, want := range required {
		found := false
		for _, have := range p.Compliance {
			if have == want {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// ModelsForCategory returns the models matching a category.
func (p *ProviderConfig) ModelsForCategory(category ModelCategory) []ModelConfig {
	var out []ModelConfig
	for _, m := range p.Models {
		if m.Category == category {
			out = append(out, m)
		}
	}
	return out
}

// HealthStatus represents the operational state of a provider
type HealthStatus string

const (
	HealthStatusAvailable   HealthStatus = "available"
	HealthStatusDegraded    HealthStatus = "degraded"
	HealthStatusUnavailable HealthStatus = "unavailable"
	HealthStatusRateLimited HealthStatus = "rate_limited"
	HealthStatusMaintenance HealthStatus = "maintenance"
)

// ProviderHealth is the rolling health snapshot for one provider.
// Mutated only by the health monitor; read by the router.
type ProviderHealth struct {
	ProviderID  string       `json:"provider_id"`
	Status      HealthStatus `json:"status"`
	LatencyMs   float64      `json:"latency_ms"`   // exponential moving average
	SuccessRate float64      `json:"success_rate"` // 0-100
	LastCheck   time.Time    `json:"last_check"`
	LastError   string       `json:"last_error,omitempty"`
}

// ProviderMetrics aggregates per-provider traffic counters
type ProviderMetrics struct {
	ProviderID    string  `json:"provider_id"`
	TotalRequests int64   `json:"total_requests"`
	TotalFailures int64   `json:"total_failures"`
	TotalSpend    float64 `json:"total_spend"`
	AvgLatencyMs  float64 `json:"avg_latency_ms"`
	SuccessRate   float64 `json:"success_rate"`
}
