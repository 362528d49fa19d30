package router

import (
	"context"

	"github.com/vitalis-health/ai-routing/models"
)

// ProviderResult is what a transport returns for one successful call.
type ProviderResult struct {
	Content   string
	TokensIn  int
	TokensOut int
	Cost      float64
}

// ProviderTransport is the network boundary to an AI provider. Timeouts
// and remote failures propagate as ordinary errors into the fallback loop;
// implementations should honor ctx cancellation.
type ProviderTransport interface {
	Call(ctx context.Context, provider *models.ProviderConfig, model models.ModelConfig, req *models.RoutingRequest) (*ProviderResult, error)
}

// AuditLogger records compliance-relevant events. A failure to log is the
// implementation's problem to report; it must never abort a request.
type AuditLogger interface {
	LogEvent(eventType models.AuditEventType, actorID, resourceType, resourceID string, metadata map[string]interface{})
}
