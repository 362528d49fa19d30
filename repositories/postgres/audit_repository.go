package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/vitalis-health/ai-routing/models"
	"github.com/vitalis-health/ai-routing/repositories"
	"go.uber.org/zap"
)

const auditColumns = `id, event_type, actor_id, tenant_id, resource_type, resource_id,
	       request_id, details, timestamp, provider, model, cost, latency_ms, error_message`

// AuditRepository implements repositories.AuditRepository on PostgreSQL.
type AuditRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *DB, logger *zap.Logger) repositories.AuditRepository {
	return &AuditRepository{
		db:     db,
		logger: logger,
	}
}

// Insert inserts a new audit log entry
func (r *AuditRepository) Insert(ctx context.Context, log *models.AuditLog) error {
	query := `
		INSERT INTO ai_audit_logs (
			id, event_type, actor_id, tenant_id, resource_type, resource_id,
			request_id, details, timestamp, provider, model, cost, latency_ms, error_message
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14
		)
	`

	_, err := r.db.ExecContext(ctx, query,
		log.ID,
		log.EventType,
		log.ActorID,
		log.TenantID,
		log.ResourceType,
		log.ResourceID,
		log.RequestID,
		log.Details,
		log.Timestamp,
		log.Provider,
		log.Model,
		log.Cost,
		log.LatencyMs,
		log.ErrorMsg,
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit log: %w", err)
	}

	r.logger.Debug("audit log inserted",
		zap.String("id", log.ID.String()),
		zap.String("event_type", string(log.EventType)))
	return nil
}

// GetByID retrieves an audit log by ID
func (r *AuditRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.AuditLog, error) {
	query := `
		SELECT ` + auditColumns + `
		FROM ai_audit_logs
		WHERE id = $1
	`

	log := &models.AuditLog{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&log.ID,
		&log.EventType,
		&log.ActorID,
		&log.TenantID,
		&log.ResourceType,
		&log.ResourceID,
		&log.RequestID,
		&log.Details,
		&log.Timestamp,
		&log.Provider,
		&log.Model,
		&log.Cost,
		&log.LatencyMs,
		&log.ErrorMsg,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("audit log not found: %s", id)
		}
		return nil, fmt.Errorf("failed to get audit log: %w", err)
	}

	return log, nil
}

// GetByTenant retrieves audit logs for a tenant with pagination
func (r *AuditRepository) GetByTenant(ctx context.Context, tenantID string, limit, offset int) ([]*models.AuditLog, error) {
	query := `
		SELECT ` + auditColumns + `
		FROM ai_audit_logs
		WHERE tenant_id = $1
		ORDER BY timestamp DESC
		LIMIT $2 OFFSET $3
	`

	return r.queryAuditLogs(ctx, query, tenantID, limit, offset)
}

// GetByRequestID retrieves every audit log tied to one routed request
func (r *AuditRepository) GetByRequestID(ctx context.Context, requestID string) ([]*models.AuditLog, error) {
	query := `
		SELECT ` + auditColumns + `
		FROM ai_audit_logs
		WHERE request_id = $1
		ORDER BY timestamp ASC
	`

	return r.queryAuditLogs(ctx, query, requestID)
}

// GetByEventType retrieves audit logs of one event type for a tenant
func (r *AuditRepository) GetByEventType(ctx context.Context, tenantID string, eventType models.AuditEventType, limit, offset int) ([]*models.AuditLog, error) {
	query := `
		SELECT ` + auditColumns + `
		FROM ai_audit_logs
		WHERE tenant_id = $1 AND event_type = $2
		ORDER BY timestamp DESC
		LIMIT $3 OFFSET $4
	`

	return r.queryAuditLogs(ctx, query, tenantID, eventType, limit, offset)
}

// GetByDateRange retrieves audit logs within a date range for a tenant
func (r *AuditRepository) GetByDateRange(ctx context.Context, tenantID string, start, end time.Time, limit, offset int) ([]*models.AuditLog, error) {
	query := `
		SELECT ` + auditColumns + `
		FROM ai_audit_logs
		WHERE tenant_id = $1 AND timestamp >= $2 AND timestamp <= $3
		ORDER BY timestamp DESC
		LIMIT $4 OFFSET $5
	`

	return r.queryAuditLogs(ctx, query, tenantID, start, end, limit, offset)
}

// queryAuditLogs is a helper method to query multiple audit logs
func (r *AuditRepository) queryAuditLogs(ctx context.Context, query string, args ...interface{}) ([]*models.AuditLog, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit logs: %w", err)
	}
	defer rows.Close()

	var logs []*models.AuditLog
	for rows.Next() {
		log := &models.AuditLog{}
		err := rows.Scan(
			&log.ID,
			&log.EventType,
			&log.ActorID,
			&log.TenantID,
			&log.ResourceType,
			&log.ResourceID,
			&log.RequestID,
			&log.Details,
			&log.Timestamp,
			&log.Provider,
			&log.Model,
			&log.Cost,
			&log.LatencyMs,
			&log.ErrorMsg,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit log: %w", err)
		}
		logs = append(logs, log)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit log rows: %w", err)
	}

	return logs, nil
}
