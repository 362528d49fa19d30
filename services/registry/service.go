// Package registry is the in-memory provider configuration store. It is a
// pure configuration component, replaceable by any persistent config source
// without touching the router or the health monitor.
package registry

import (
	"math"
	"sort"
	"sync"

	"github.com/vitalis-health/ai-routing/models"
	"github.com/vitalis-health/ai-routing/services"
	"go.uber.org/zap"
)

// RegistrationHook is invoked when a provider is registered, so the health
// monitor can initialize its health record and circuit breaker.
type RegistrationHook func(providerID string)

// Registry manages provider configurations and enable state.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]*models.ProviderConfig
	order     []string // registration order, kept for deterministic listings
	spend     map[string]float64
	hooks     []RegistrationHook
	logger    *zap.Logger
}

// NewRegistry creates an empty provider registry.
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		providers: make(map[string]*models.ProviderConfig),
		spend:     make(map[string]float64),
		logger:    logger,
	}
}

// OnRegister adds a hook called for every subsequently registered provider.
func (r *Registry) OnRegister(hook RegistrationHook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hooks = append(r.hooks, hook)
}

// Register adds a provider configuration. Registering an already-known id
// replaces its configuration but keeps spend counters.
func (r *Registry) Register(config *models.ProviderConfig) error {
	if config == nil || config.ID == "" {
		return services.ErrUnknownProvider
	}
	if len(config.Models) == 0 {
		return services.NewDomainError(services.ErrorTypeValidation,
			"provider must declare at least one model", nil).
			WithDetail("provider_id", config.ID)
	}

	r.mu.Lock()
	if _, exists := r.providers[config.ID]; !exists {
		r.order = append(r.order, config.ID)
	}
	r.providers[config.ID] = config
	hooks := make([]RegistrationHook, len(r.hooks))
	copy(hooks, r.hooks)
	r.mu.Unlock()

	for _, hook := range hooks {
		hook(config.ID)
	}

	r.logger.Info("registered provider",
		zap.String("provider_id", config.ID),
		zap.Int("models", len(config.Models)),
		zap.Bool("enabled", config.Enabled))

	return nil
}

// Get retrieves a provider configuration by id.
func (r *Registry) Get(id string) (*models.ProviderConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.providers[id]
	return p, ok
}

// ListEnabled returns enabled providers in registration order.
func (r *Registry) ListEnabled() []*models.ProviderConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*models.ProviderConfig, 0, len(r.order))
	for _, id := range r.order {
		if p := r.providers[id]; p != nil && p.Enabled {
			out = append(out, p)
		}
	}
	return out
}

// ListAll returns every registered provider in registration order.
func (r *Registry) ListAll() []*models.ProviderConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*models.ProviderConfig, 0, len(r.order))
	for _, id := range r.order {
		if p := r.providers[id]; p != nil {
			out = append(out, p)
		}
	}
	return out
}

// SetEnabled flips a provider's enabled flag. Returns false for unknown ids.
func (r *Registry) SetEnabled(id string, enabled bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.providers[id]
	if !ok {
		return false
	}
	p.Enabled = enabled
	r.logger.Info("provider enable state changed",
		zap.String("provider_id", id), zap.Bool("enabled", enabled))
	return true
}

// EstimateCost estimates the cost of serving req on the given provider,
// using the cheapest model eligible for the request's category and token
// budget. Returns +Inf when no model qualifies.
func (r *Registry) EstimateCost(providerID string, req *models.RoutingRequest) float64 {
	r.mu.RLock()
	p, ok := r.providers[providerID]
	r.mu.RUnlock()
	if !ok {
		return math.Inf(1)
	}

	model, ok := cheapestEligibleModel(p, req)
	if !ok {
		return math.Inf(1)
	}

	inTokens := estimateTokens(req.Prompt)
	outTokens := req.AI.MaxTokens
	if outTokens == 0 {
		outTokens = 500
	}
	return float64(inTokens)/1000*model.CostPer1KInput +
		float64(outTokens)/1000*model.CostPer1KOutput
}

// SelectModel returns the model the provider would serve req with.
func (r *Registry) SelectModel(providerID string, req *models.RoutingRequest) (models.ModelConfig, bool) {
	r.mu.RLock()
	p, ok := r.providers[providerID]
	r.mu.RUnlock()
	if !ok {
		return models.ModelConfig{}, false
	}
	return cheapestEligibleModel(p, req)
}

// RecordSpend adds the cost of a completed call to the provider's
// cumulative spend counter.
func (r *Registry) RecordSpend(providerID string, cost float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.spend[providerID] += cost
}

// Spend returns the cumulative spend for a provider.
func (r *Registry) Spend(providerID string) float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.spend[providerID]
}

// cheapestEligibleModel picks the lowest-cost model matching the request's
// category whose token limit covers the request.
func cheapestEligibleModel(p *models.ProviderConfig, req *models.RoutingRequest) (models.ModelConfig, bool) {
	eligible := make([]models.ModelConfig, 0, len(p.Models))
	for _, m := range p.Models {
		if m.Category != req.AI.Category {
			continue
		}
		if req.AI.MaxTokens > 0 && m.MaxTokens < req.AI.MaxTokens {
			continue
		}
		eligible = append(eligible, m)
	}
	if len(eligible) == 0 {
		return models.ModelConfig{}, false
	}
	sort.SliceStable(eligible, func(i, j int) bool {
		return eligible[i].CostPer1KInput+eligible[i].CostPer1KOutput <
			eligible[j].CostPer1KInput+eligible[j].CostPer1KOutput
	})
	return eligible[0], true
}

// estimateTokens approximates the token count of text. Four characters per
// token is the usual rule of thumb for latin-script clinical text.
func estimateTokens(text string) int {
	n := len(text) / 4
	if n == 0 {
		n = 1
	}
	return n
}
