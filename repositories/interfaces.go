package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/vitalis-health/ai-routing/models"
)

// AuditRepository handles audit trail persistence
type AuditRepository interface {
	// Insert inserts a new audit log entry
	Insert(ctx context.Context, log *models.AuditLog) error

	// GetByID retrieves an audit log by ID
	GetByID(ctx context.Context, id uuid.UUID) (*models.AuditLog, error)

	// GetByTenant retrieves audit logs for a tenant with pagination
	GetByTenant(ctx context.Context, tenantID string, limit, offset int) ([]*models.AuditLog, error)

	// GetByRequestID retrieves every audit log tied to one routed request
	GetByRequestID(ctx context.Context, requestID string) ([]*models.AuditLog, error)

	// GetByEventType retrieves audit logs of one event type for a tenant
	GetByEventType(ctx context.Context, tenantID string, eventType models.AuditEventType, limit, offset int) ([]*models.AuditLog, error)

	// GetByDateRange retrieves audit logs within a date range for a tenant
	GetByDateRange(ctx context.Context, tenantID string, start, end time.Time, limit, offset int) ([]*models.AuditLog, error)
}
