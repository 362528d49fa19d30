package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vitalis-health/ai-routing/models"
	"github.com/vitalis-health/ai-routing/repositories"
	"github.com/vitalis-health/ai-routing/utils"
)

const (
	defaultAuditPageSize = 50
	maxAuditPageSize     = 500
)

// AuditHandler serves the persisted audit trail.
type AuditHandler struct {
	repo   repositories.AuditRepository
	logger *zap.Logger
}

// NewAuditHandler creates a new AuditHandler.
func NewAuditHandler(repo repositories.AuditRepository, logger *zap.Logger) *AuditHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditHandler{repo: repo, logger: logger}
}

// HandleList handles GET /api/v1/audit/logs?tenant_id=...&event_type=...&from=...&to=...
func (h *AuditHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		_ = utils.WriteNotFound(w, "audit trail persistence is disabled")
		return
	}

	tenantID := r.URL.Query().Get("tenant_id")
	if tenantID == "" {
		_ = utils.WriteBadRequest(w, "tenant_id query parameter is required", nil)
		return
	}
	limit, offset := pagination(r)

	var (
		logs []*models.AuditLog
		err  error
	)
	switch {
	case r.URL.Query().Get("event_type") != "":
		eventType := models.AuditEventType(r.URL.Query().Get("event_type"))
		logs, err = h.repo.GetByEventType(r.Context(), tenantID, eventType, limit, offset)
	case r.URL.Query().Get("from") != "":
		from, perr := time.Parse(time.RFC3339, r.URL.Query().Get("from"))
		if perr != nil {
			_ = utils.WriteBadRequest(w, "from must be RFC3339", nil)
			return
		}
		to := time.Now()
		if raw := r.URL.Query().Get("to"); raw != "" {
			if to, perr = time.Parse(time.RFC3339, raw); perr != nil {
				_ = utils.WriteBadRequest(w, "to must be RFC3339", nil)
				return
			}
		}
		logs, err = h.repo.GetByDateRange(r.Context(), tenantID, from, to, limit, offset)
	default:
		logs, err = h.repo.GetByTenant(r.Context(), tenantID, limit, offset)
	}

	if err != nil {
		h.logger.Error("failed to list audit logs",
			zap.String("tenant_id", tenantID),
			zap.Error(err))
		_ = utils.WriteInternalServerError(w, "failed to list audit logs")
		return
	}

	if err := utils.WriteOK(w, map[string]interface{}{
		"logs":   logs,
		"limit":  limit,
		"offset": offset,
	}); err != nil {
		h.logger.Error("failed to write audit logs response", zap.Error(err))
	}
}

// HandleGet handles GET /api/v1/audit/logs/{id}.
func (h *AuditHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		_ = utils.WriteNotFound(w, "audit trail persistence is disabled")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		_ = utils.WriteBadRequest(w, "invalid audit log id", nil)
		return
	}

	log, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		_ = utils.WriteNotFound(w, "audit log not found")
		return
	}
	if err := utils.WriteOK(w, log); err != nil {
		h.logger.Error("failed to write audit log response", zap.Error(err))
	}
}

// HandleByRequest handles GET /api/v1/audit/requests/{requestID}.
func (h *AuditHandler) HandleByRequest(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		_ = utils.WriteNotFound(w, "audit trail persistence is disabled")
		return
	}

	requestID := chi.URLParam(r, "requestID")
	logs, err := h.repo.GetByRequestID(r.Context(), requestID)
	if err != nil {
		h.logger.Error("failed to load audit logs for request",
			zap.String("request_id", requestID),
			zap.Error(err))
		_ = utils.WriteInternalServerError(w, "failed to load audit logs")
		return
	}
	if err := utils.WriteOK(w, map[string]interface{}{"logs": logs}); err != nil {
		h.logger.Error("failed to write audit logs response", zap.Error(err))
	}
}

func pagination(r *http.Request) (limit, offset int) {
	limit = defaultAuditPageSize
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			limit = v
		}
	}
	if limit > maxAuditPageSize {
		limit = maxAuditPageSize
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v >= 0 {
			offset = v
		}
	}
	return limit, offset
}
