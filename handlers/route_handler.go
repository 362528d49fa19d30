package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/vitalis-health/ai-routing/internal/observability"
	"github.com/vitalis-health/ai-routing/models"
	"github.com/vitalis-health/ai-routing/services"
	"github.com/vitalis-health/ai-routing/utils"
)

// RoutingService is the routing surface the HTTP layer depends on.
type RoutingService interface {
	Route(ctx context.Context, req *models.RoutingRequest) (*models.RoutingResponse, error)
}

// RouteRequest is the request body for POST /api/v1/route.
// Omitted sections fall back to the routing defaults.
type RouteRequest struct {
	Prompt      string                   `json:"prompt"`
	Messages    []models.Message         `json:"messages,omitempty"`
	Context     models.HealthcareContext `json:"context"`
	AI          *models.AIConfig         `json:"ai,omitempty"`
	Routing     *models.RoutingOptions   `json:"routing,omitempty"`
	RequesterID string                   `json:"requester_id"`
}

// toRoutingRequest builds the immutable routing request, filling in
// defaults for any section the caller omitted.
func (r *RouteRequest) toRoutingRequest() *models.RoutingRequest {
	req := models.NewRoutingRequest(r.Prompt, r.Context.TenantID, r.RequesterID)
	req.Messages = r.Messages

	useCase := r.Context.UseCase
	if useCase == "" {
		useCase = models.UseCaseGeneralChat
	}
	req.Context = r.Context
	req.Context.UseCase = useCase
	if r.AI != nil {
		req.AI = *r.AI
		if req.AI.Category == "" {
			req.AI.Category = models.ModelCategoryChat
		}
	}
	if r.Routing != nil {
		req.Routing = *r.Routing
		if req.Routing.Strategy == "" {
			req.Routing.Strategy = models.StrategyHealthcareSpecific
		}
		if req.Routing.Priority == "" {
			req.Routing.Priority = models.PriorityRoutine
		}
	}
	return req
}

// RouteHandler handles routing HTTP requests.
type RouteHandler struct {
	service RoutingService
	metrics observability.Metrics
	logger  *zap.Logger
}

// NewRouteHandler creates a new RouteHandler.
func NewRouteHandler(service RoutingService, metrics observability.Metrics, logger *zap.Logger) *RouteHandler {
	if metrics == nil {
		metrics = observability.NopMetrics{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RouteHandler{
		service: service,
		metrics: metrics,
		logger:  logger,
	}
}

// HandleRoute handles POST /api/v1/route.
func (h *RouteHandler) HandleRoute(w http.ResponseWriter, r *http.Request) {
	var body RouteRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.logger.Warn("failed to parse request body", zap.Error(err))
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}

	req := body.toRoutingRequest()
	if err := utils.ValidateStruct(req); err != nil {
		h.logger.Warn("routing request failed validation", zap.Error(err))
		HandleValidationError(w, err, h.logger)
		return
	}

	ctx := observability.WithRequestID(r.Context(), req.Metadata.RequestID)

	h.logger.Debug("processing routing request",
		zap.String("request_id", req.Metadata.RequestID),
		zap.String("tenant_id", req.Context.TenantID),
		zap.String("strategy", string(req.Routing.Strategy)))

	resp, err := h.service.Route(ctx, req)
	if err != nil {
		h.metrics.RecordRequest(ctx, observability.RequestLabels{
			TenantID: req.Context.TenantID,
			Status:   string(services.GetErrorType(err)),
		})
		h.logger.Warn("routing request failed",
			zap.String("request_id", req.Metadata.RequestID),
			zap.Error(err))
		HandleServiceError(w, err, h.logger)
		return
	}

	labels := observability.RequestLabels{
		TenantID: req.Context.TenantID,
		Provider: resp.ProviderUsed,
		Model:    resp.ModelUsed,
		Status:   "success",
	}
	h.metrics.RecordRequest(ctx, labels)
	h.metrics.RecordLatency(ctx, float64(resp.Metrics.TotalLatencyMs), labels)
	h.metrics.RecordTokens(ctx, resp.Metrics.TokensIn, resp.Metrics.TokensOut, labels)
	h.metrics.RecordCost(ctx, resp.Metrics.Cost, labels)
	if req.AI.CacheEnabled {
		h.metrics.RecordCacheLookup(ctx, req.Context.TenantID, resp.Metrics.CacheHit)
	}
	if resp.Metrics.FallbackUsed {
		h.metrics.RecordFallback(ctx, req.Context.TenantID, resp.ProviderUsed)
	}

	h.logger.Info("routing request completed",
		zap.String("request_id", req.Metadata.RequestID),
		zap.String("provider", resp.ProviderUsed),
		zap.String("model", resp.ModelUsed),
		zap.Bool("cache_hit", resp.Metrics.CacheHit),
		zap.Bool("fallback_used", resp.Metrics.FallbackUsed),
		zap.Int("total_latency_ms", resp.Metrics.TotalLatencyMs),
		zap.Float64("cost", resp.Metrics.Cost))

	if err := utils.WriteOK(w, resp); err != nil {
		h.logger.Error("failed to write response",
			zap.String("request_id", req.Metadata.RequestID),
			zap.Error(err))
	}
}
