package models

import (
	"time"

	"github.com/google/uuid"
)

// UseCase identifies the healthcare workflow a request belongs to
type UseCase string

const (
	UseCaseGeneralChat        UseCase = "general_chat"
	UseCaseClinicalNotes      UseCase = "clinical_notes"
	UseCaseTriage             UseCase = "triage"
	UseCaseAppointmentSummary UseCase = "appointment_summary"
	UseCasePatientEducation   UseCase = "patient_education"
)

// Priority is the urgency level of a routing request
type Priority string

const (
	PriorityRoutine   Priority = "routine"
	PriorityUrgent    Priority = "urgent"
	PriorityEmergency Priority = "emergency"
)

// Strategy selects how the router picks among eligible providers
type Strategy string

const (
	StrategyCostOptimized      Strategy = "cost_optimized"
	StrategyLatencyOptimized   Strategy = "latency_optimized"
	StrategyQualityOptimized   Strategy = "quality_optimized"
	StrategyHealthcareSpecific Strategy = "healthcare_specific"
	StrategyEmergencyPriority  Strategy = "emergency_priority"
	StrategyLoadBalanced       Strategy = "load_balanced"
)

// Message is a single conversation turn sent to a provider
type Message struct {
	Role    string `json:"role" validate:"required,oneof=system user assistant"`
	Content string `json:"content" validate:"required"`
}

// HealthcareContext carries the clinical and compliance context of a request
type HealthcareContext struct {
	UseCase            UseCase          `json:"use_case" validate:"required,oneof=general_chat clinical_notes triage appointment_summary patient_education"`
	TenantID           string           `json:"tenant_id" validate:"required"`
	PatientID          string           `json:"patient_id,omitempty"`
	IsEmergency        bool             `json:"is_emergency"`
	ContainsPII        bool             `json:"contains_pii"`
	RequiredCompliance []ComplianceFlag `json:"required_compliance,omitempty"`
}

// IsolationKey returns the data-separation key for cache operations.
// Patient id takes precedence; tenant id is the fallback unit of isolation.
func (c *HealthcareContext) IsolationKey() string {
	if c.PatientID != "" {
		return c.TenantID + ":" + c.PatientID
	}
	return c.TenantID
}

// AIConfig holds the model-facing knobs for a request
type AIConfig struct {
	Category           ModelCategory `json:"category" validate:"required,oneof=chat clinical_notes triage summarization embedding"`
	MaxTokens          int           `json:"max_tokens" validate:"gte=0"`
	Temperature        float64       `json:"temperature" validate:"gte=0,lte=2"`
	PreferredProviders []string      `json:"preferred_providers,omitempty"`
	CacheEnabled       bool          `json:"cache_enabled"`
	FallbackEnabled    bool          `json:"fallback_enabled"`
}

// RoutingOptions constrains how a provider is chosen
type RoutingOptions struct {
	Strategy     Strategy `json:"strategy" validate:"required,oneof=cost_optimized latency_optimized quality_optimized healthcare_specific emergency_priority load_balanced"`
	MaxCost      float64  `json:"max_cost" validate:"gte=0"`
	MaxLatencyMs int      `json:"max_latency_ms" validate:"gte=0"`
	Priority     Priority `json:"priority" validate:"required,oneof=routine urgent emergency"`
}

// RequestMetadata identifies a request for audit and tracing
type RequestMetadata struct {
	RequestID   string    `json:"request_id"`
	RequesterID string    `json:"requester_id" validate:"required"`
	Timestamp   time.Time `json:"timestamp"`
}

// RoutingRequest is the single input to the router. Constructed once per
// call and never mutated afterwards.
type RoutingRequest struct {
	Prompt   string            `json:"prompt" validate:"required"`
	Messages []Message         `json:"messages,omitempty" validate:"dive"`
	Context  HealthcareContext `json:"context" validate:"required"`
	AI       AIConfig          `json:"ai" validate:"required"`
	Routing  RoutingOptions    `json:"routing" validate:"required"`
	Metadata RequestMetadata   `json:"metadata"`
}

// NewRoutingRequest builds a request with generated metadata and the
// defaults the surrounding route layer relies on.
func NewRoutingRequest(prompt, tenantID, requesterID string) *RoutingRequest {
	return &RoutingRequest{
		Prompt: prompt,
		Context: HealthcareContext{
			UseCase:  UseCaseGeneralChat,
			TenantID: tenantID,
		},
		AI: AIConfig{
			Category:        ModelCategoryChat,
			CacheEnabled:    true,
			FallbackEnabled: true,
		},
		Routing: RoutingOptions{
			Strategy: StrategyHealthcareSpecific,
			Priority: PriorityRoutine,
		},
		Metadata: RequestMetadata{
			RequestID:   uuid.New().String(),
			RequesterID: requesterID,
			Timestamp:   time.Now(),
		},
	}
}

// IsEmergency reports whether the request must take the emergency path.
func (r *RoutingRequest) IsEmergency() bool {
	return r.Context.IsEmergency || r.Routing.Priority == PriorityEmergency
}
