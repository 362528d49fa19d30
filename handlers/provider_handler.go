package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/vitalis-health/ai-routing/models"
	"github.com/vitalis-health/ai-routing/utils"
)

// ProviderService is the operational surface for provider management.
type ProviderService interface {
	GetAvailableProviders() []string
	ListProviderHealth() []models.ProviderHealth
	GetProviderHealth(providerID string) (models.ProviderHealth, bool)
	GetProviderMetrics(providerID string) (models.ProviderMetrics, bool)
	SetProviderEnabled(providerID string, enabled bool) bool
}

// ProviderHandler handles provider management HTTP requests.
type ProviderHandler struct {
	service ProviderService
	logger  *zap.Logger
}

// NewProviderHandler creates a new ProviderHandler.
func NewProviderHandler(service ProviderService, logger *zap.Logger) *ProviderHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProviderHandler{service: service, logger: logger}
}

// HandleList handles GET /api/v1/providers.
func (h *ProviderHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	providers := h.service.GetAvailableProviders()
	if err := utils.WriteOK(w, map[string]interface{}{"providers": providers}); err != nil {
		h.logger.Error("failed to write providers response", zap.Error(err))
	}
}

// HandleHealthList handles GET /api/v1/providers/health.
func (h *ProviderHandler) HandleHealthList(w http.ResponseWriter, r *http.Request) {
	health := h.service.ListProviderHealth()
	if err := utils.WriteOK(w, map[string]interface{}{"health": health}); err != nil {
		h.logger.Error("failed to write provider health response", zap.Error(err))
	}
}

// HandleHealth handles GET /api/v1/providers/{id}/health.
func (h *ProviderHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	providerID := chi.URLParam(r, "id")
	health, ok := h.service.GetProviderHealth(providerID)
	if !ok {
		_ = utils.WriteNotFound(w, "provider not found")
		return
	}
	if err := utils.WriteOK(w, health); err != nil {
		h.logger.Error("failed to write provider health response", zap.Error(err))
	}
}

// HandleMetrics handles GET /api/v1/providers/{id}/metrics.
func (h *ProviderHandler) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	providerID := chi.URLParam(r, "id")
	metrics, ok := h.service.GetProviderMetrics(providerID)
	if !ok {
		_ = utils.WriteNotFound(w, "provider not found")
		return
	}
	if err := utils.WriteOK(w, metrics); err != nil {
		h.logger.Error("failed to write provider metrics response", zap.Error(err))
	}
}

// EnableRequest is the request body for PUT /api/v1/providers/{id}/enabled.
type EnableRequest struct {
	Enabled bool `json:"enabled"`
}

// HandleSetEnabled handles PUT /api/v1/providers/{id}/enabled.
func (h *ProviderHandler) HandleSetEnabled(w http.ResponseWriter, r *http.Request) {
	providerID := chi.URLParam(r, "id")

	var body EnableRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}

	if !h.service.SetProviderEnabled(providerID, body.Enabled) {
		_ = utils.WriteNotFound(w, "provider not found")
		return
	}

	h.logger.Info("provider enabled state changed",
		zap.String("provider_id", providerID),
		zap.Bool("enabled", body.Enabled))

	if err := utils.WriteOK(w, map[string]interface{}{
		"provider_id": providerID,
		"enabled":     body.Enabled,
	}); err != nil {
		h.logger.Error("failed to write provider enabled response", zap.Error(err))
	}
}
