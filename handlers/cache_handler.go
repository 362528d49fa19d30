package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/vitalis-health/ai-routing/services/cache"
	"github.com/vitalis-health/ai-routing/utils"
)

// CacheService is the cache surface the HTTP layer depends on.
type CacheService interface {
	GetStats() cache.Stats
	Cleanup() int
}

// CacheHandler handles semantic cache HTTP requests.
type CacheHandler struct {
	service CacheService
	logger  *zap.Logger
}

// NewCacheHandler creates a new CacheHandler.
func NewCacheHandler(service CacheService, logger *zap.Logger) *CacheHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheHandler{service: service, logger: logger}
}

// HandleStats handles GET /api/v1/cache/stats.
func (h *CacheHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		_ = utils.WriteNotFound(w, "semantic cache is disabled")
		return
	}
	if err := utils.WriteOK(w, h.service.GetStats()); err != nil {
		h.logger.Error("failed to write cache stats response", zap.Error(err))
	}
}

// HandleCleanup handles POST /api/v1/cache/cleanup.
func (h *CacheHandler) HandleCleanup(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		_ = utils.WriteNotFound(w, "semantic cache is disabled")
		return
	}
	removed := h.service.Cleanup()
	h.logger.Info("cache cleanup triggered", zap.Int("removed", removed))
	if err := utils.WriteOK(w, map[string]interface{}{"removed": removed}); err != nil {
		h.logger.Error("failed to write cache cleanup response", zap.Error(err))
	}
}
