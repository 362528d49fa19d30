package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// AuditEventType represents the type of event being audited
type AuditEventType string

const (
	AuditEventRequestStart    AuditEventType = "request_start"
	AuditEventCacheHit        AuditEventType = "cache_hit"
	AuditEventRequestComplete AuditEventType = "request_complete"
	AuditEventEmergencyAccess AuditEventType = "emergency_access"
	AuditEventFallback        AuditEventType = "fallback"
	AuditEventPIIRedaction    AuditEventType = "pii_redaction"
	AuditEventError           AuditEventType = "error"
	AuditEventComplianceDeny  AuditEventType = "compliance_deny"
)

// AuditLog represents one compliance audit trail entry
type AuditLog struct {
	ID           uuid.UUID       `json:"id" db:"id"`
	EventType    AuditEventType  `json:"event_type" db:"event_type"`
	ActorID      string          `json:"actor_id" db:"actor_id"`
	TenantID     string          `json:"tenant_id" db:"tenant_id"`
	ResourceType string          `json:"resource_type" db:"resource_type"`
	ResourceID   string          `json:"resource_id" db:"resource_id"`
	RequestID    string          `json:"request_id" db:"request_id"`
	Details      json.RawMessage `json:"details,omitempty" db:"details"`
	Timestamp    time.Time       `json:"timestamp" db:"timestamp"`

	// Routing-specific fields
	Provider  *string  `json:"provider,omitempty" db:"provider"`
	Model     *string  `json:"model,omitempty" db:"model"`
	Cost      *float64 `json:"cost,omitempty" db:"cost"`
	LatencyMs *int     `json:"latency_ms,omitempty" db:"latency_ms"`
	ErrorMsg  *string  `json:"error_message,omitempty" db:"error_message"`
}

// TableName returns the table name for the AuditLog model
func (AuditLog) TableName() string {
	return "ai_audit_logs"
}

// NewAuditLog creates a new AuditLog instance
func NewAuditLog(eventType AuditEventType, actorID, resourceType, resourceID string) *AuditLog {
	return &AuditLog{
		ID:           uuid.New(),
		EventType:    eventType,
		ActorID:      actorID,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Timestamp:    time.Now(),
	}
}

// WithTenant sets the tenant id
func (a *AuditLog) WithTenant(tenantID string) *AuditLog {
	a.TenantID = tenantID
	return a
}

// WithRequest sets the originating request id
func (a *AuditLog) WithRequest(requestID string) *AuditLog {
	a.RequestID = requestID
	return a
}

// WithDetails marshals arbitrary metadata into the details column
func (a *AuditLog) WithDetails(details interface{}) *AuditLog {
	if data, err := json.Marshal(details); err == nil {
		a.Details = data
	}
	return a
}

// WithRouting sets routing outcome fields
func (a *AuditLog) WithRouting(provider, model string, cost float64, latencyMs int) *AuditLog {
	a.Provider = &provider
	a.Model = &model
	a.Cost = &cost
	a.LatencyMs = &latencyMs
	return a
}

// WithError sets error information
func (a *AuditLog) WithError(message string) *AuditLog {
	a.ErrorMsg = &message
	return a
}
