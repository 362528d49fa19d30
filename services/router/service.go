// Package router is the request entry point: it validates, enforces
// compliance, consults the semantic cache, selects a provider and executes
// the call with bounded fallback.
package router

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/vitalis-health/ai-routing/internal/observability"
	"github.com/vitalis-health/ai-routing/internal/prompt"
	"github.com/vitalis-health/ai-routing/models"
	"github.com/vitalis-health/ai-routing/services"
	"github.com/vitalis-health/ai-routing/services/cache"
	"github.com/vitalis-health/ai-routing/services/health"
	"github.com/vitalis-health/ai-routing/services/registry"
	"go.uber.org/zap"
)

const (
	// DefaultMaxFallbacks caps the alternates tried after the selected
	// provider fails
	DefaultMaxFallbacks = 2

	// DefaultAttemptTimeout bounds one provider call for routine traffic
	DefaultAttemptTimeout = 30 * time.Second

	// DefaultUrgentAttemptTimeout bounds one call for urgent traffic
	DefaultUrgentAttemptTimeout = 15 * time.Second

	// DefaultEmergencyAttemptTimeout bounds the single emergency attempt
	DefaultEmergencyAttemptTimeout = 5 * time.Second

	// DefaultCacheWriteCostCeiling excludes expensive responses from the
	// cache; they are not representative of typical traffic
	DefaultCacheWriteCostCeiling = 0.10

	// DefaultEmergencyLatencyCeilingMs is the hard latency bar a provider
	// must clear to serve emergency traffic
	DefaultEmergencyLatencyCeilingMs = 2000.0
)

// Config holds router tuning knobs.
type Config struct {
	MaxFallbacks              int
	AttemptTimeout            time.Duration
	UrgentAttemptTimeout      time.Duration
	EmergencyAttemptTimeout   time.Duration
	CacheWriteCostCeiling     float64
	EmergencyLatencyCeilingMs float64
}

// DefaultConfig returns the default router configuration.
func DefaultConfig() Config {
	return Config{
		MaxFallbacks:              DefaultMaxFallbacks,
		AttemptTimeout:            DefaultAttemptTimeout,
		UrgentAttemptTimeout:      DefaultUrgentAttemptTimeout,
		EmergencyAttemptTimeout:   DefaultEmergencyAttemptTimeout,
		CacheWriteCostCeiling:     DefaultCacheWriteCostCeiling,
		EmergencyLatencyCeilingMs: DefaultEmergencyLatencyCeilingMs,
	}
}

// rateWindow tracks per-minute request counts against a provider's budget.
type rateWindow struct {
	start time.Time
	count int
}

// Router coordinates registry, health monitor, semantic cache and the
// provider transport. Safe for concurrent use.
type Router struct {
	config    Config
	registry  *registry.Registry
	monitor   *health.Monitor
	cache     *cache.SemanticCache
	transport ProviderTransport
	audit     AuditLogger
	validate  *validator.Validate
	logger    *zap.Logger

	rateMu sync.Mutex
	rates  map[string]*rateWindow
}

// NewRouter wires the router. The cache and audit logger may be nil, in
// which case caching and audit events are skipped.
func NewRouter(config Config, reg *registry.Registry, monitor *health.Monitor, semCache *cache.SemanticCache, transport ProviderTransport, audit AuditLogger, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.MaxFallbacks < 0 {
		config.MaxFallbacks = DefaultMaxFallbacks
	}
	if config.AttemptTimeout <= 0 {
		config.AttemptTimeout = DefaultAttemptTimeout
	}
	if config.UrgentAttemptTimeout <= 0 {
		config.UrgentAttemptTimeout = DefaultUrgentAttemptTimeout
	}
	if config.EmergencyAttemptTimeout <= 0 {
		config.EmergencyAttemptTimeout = DefaultEmergencyAttemptTimeout
	}
	if config.CacheWriteCostCeiling <= 0 {
		config.CacheWriteCostCeiling = DefaultCacheWriteCostCeiling
	}
	if config.EmergencyLatencyCeilingMs <= 0 {
		config.EmergencyLatencyCeilingMs = DefaultEmergencyLatencyCeilingMs
	}
	return &Router{
		config:    config,
		registry:  reg,
		monitor:   monitor,
		cache:     semCache,
		transport: transport,
		audit:     audit,
		validate:  validator.New(),
		logger:    logger,
		rates:     make(map[string]*rateWindow),
	}
}

// Route is the sole request entry point. Synchronous; every internal
// suspension is time-boxed.
func (r *Router) Route(ctx context.Context, req *models.RoutingRequest) (*models.RoutingResponse, error) {
	start := time.Now()

	sanitized, sensitive, err := r.validateRequest(req)
	if err != nil {
		return nil, err
	}

	redacted := false
	if sensitive {
		before := sanitized
		sanitized = prompt.RedactPII(sanitized)
		redacted = sanitized != before
		if redacted {
			r.logEvent(models.AuditEventPIIRedaction, req, nil)
		}
	}

	r.logEvent(models.AuditEventRequestStart, req, map[string]interface{}{
		"strategy": string(req.Routing.Strategy),
		"use_case": string(req.Context.UseCase),
	})

	if req.IsEmergency() {
		resp, err := r.routeEmergency(ctx, req, sanitized, redacted)
		if err != nil {
			r.logEvent(models.AuditEventError, req, map[string]interface{}{"error": err.Error()})
			return nil, err
		}
		resp.Metrics.TotalLatencyMs = int(time.Since(start).Milliseconds())
		return resp, nil
	}

	if cached := r.lookupCache(req, sanitized, sensitive); cached != nil {
		resp := models.NewRoutingResponse(cached.Response, "semantic-cache", "")
		resp.Metrics.CacheHit = true
		resp.Metrics.TotalLatencyMs = int(time.Since(start).Milliseconds())
		resp.Compliance = models.ComplianceInfo{Sanitized: true, PIIRedacted: redacted, AuditLogged: r.audit != nil}
		r.logEvent(models.AuditEventCacheHit, req, map[string]interface{}{"entry_id": cached.ID})
		return resp, nil
	}

	resp, err := r.routeToProvider(ctx, req, sanitized, redacted)
	if err != nil {
		r.logEvent(models.AuditEventError, req, map[string]interface{}{"error": err.Error()})
		return nil, err
	}

	r.maybeCacheResponse(req, sanitized, sensitive, resp)

	resp.Metrics.TotalLatencyMs = int(time.Since(start).Milliseconds())
	r.logEvent(models.AuditEventRequestComplete, req, map[string]interface{}{
		"provider": resp.ProviderUsed,
		"model":    resp.ModelUsed,
		"cost":     resp.Metrics.Cost,
		"fallback": resp.Metrics.FallbackUsed,
	})
	return resp, nil
}

// validateRequest runs structural validation and the compliance gate.
// No provider state is touched before this returns nil.
func (r *Router) validateRequest(req *models.RoutingRequest) (string, bool, error) {
	if req == nil {
		return "", false, services.ErrInvalidRequest
	}
	if req.Prompt == "" {
		return "", false, services.ErrEmptyPrompt
	}
	if err := r.validate.Struct(req); err != nil {
		return "", false, services.NewDomainError(services.ErrorTypeValidation,
			"invalid routing request", err)
	}
	if strategyFor(req.Routing.Strategy) == nil {
		return "", false, services.NewDomainError(services.ErrorTypeValidation,
			"unknown routing strategy", nil).WithDetail("strategy", string(req.Routing.Strategy))
	}

	sensitive := req.Context.ContainsPII || prompt.DetectPII(req.Prompt)
	if sensitive && req.Context.PatientID == "" {
		r.logEvent(models.AuditEventComplianceDeny, req, map[string]interface{}{
			"reason": "sensitive content without patient isolation key",
		})
		return "", false, services.ErrMissingIsolationKey
	}

	sanitized := prompt.Sanitize(req.Prompt)
	if sanitized == "" {
		return "", false, services.ErrPromptSanitizedEmpty
	}
	return sanitized, sensitive, nil
}

// lookupCache consults the semantic cache when policy allows. Sensitive
// prompts never reach the cache even after redaction.
func (r *Router) lookupCache(req *models.RoutingRequest, sanitized string, sensitive bool) *models.CacheEntry {
	if r.cache == nil || !req.AI.CacheEnabled || sensitive {
		return nil
	}
	isolationKey := req.Context.IsolationKey()
	if isolationKey == "" {
		return nil
	}
	entry, err := r.cache.FindSimilar(sanitized, cache.LookupContext{
		IsolationKey:       isolationKey,
		RequiredCompliance: req.Context.RequiredCompliance,
	})
	if err != nil {
		r.logger.Warn("cache lookup failed", zap.Error(err))
		return nil
	}
	return entry
}

// maybeCacheResponse applies the cache-write policy: non-emergency,
// isolation-keyed, non-fallback, below the cost ceiling.
func (r *Router) maybeCacheResponse(req *models.RoutingRequest, sanitized string, sensitive bool, resp *models.RoutingResponse) {
	if r.cache == nil || !req.AI.CacheEnabled || sensitive {
		return
	}
	if resp.Metrics.FallbackUsed || resp.Metrics.Cost >= r.config.CacheWriteCostCeiling {
		return
	}
	isolationKey := req.Context.IsolationKey()
	if isolationKey == "" {
		return
	}
	if _, err := r.cache.Add(sanitized, resp.Content, cache.EntryMetadata{
		IsolationKey:   isolationKey,
		ComplianceTags: req.Context.RequiredCompliance,
		Cost:           resp.Metrics.Cost,
	}); err != nil {
		r.logger.Warn("cache write skipped", zap.Error(err))
	}
}

// routeEmergency bypasses the cache, filters to compliant providers under
// the hard latency ceiling and uses the single best candidate. No fallback
// negotiation; failures surface immediately.
func (r *Router) routeEmergency(ctx context.Context, req *models.RoutingRequest, sanitized string, redacted bool) (*models.RoutingResponse, error) {
	r.logEvent(models.AuditEventEmergencyAccess, req, nil)

	eligible := r.eligibleCandidates(req)
	filtered := eligible[:0]
	for i := range eligible {
		if eligible[i].health.LatencyMs <= r.config.EmergencyLatencyCeilingMs {
			filtered = append(filtered, eligible[i])
		}
	}
	best := emergencyPriority{}.Select(filtered, req)
	if best == nil {
		// Partially compliant providers are still acceptable when the
		// fully-compliant set under the ceiling is empty
		best = latencyOptimized{}.Select(filtered, req)
	}
	if best == nil {
		return nil, services.NewDomainError(services.ErrorTypeNoProvider,
			"no provider available", nil).WithDetail("path", "emergency")
	}

	resp, err := r.attempt(ctx, req, best, sanitized, r.config.EmergencyAttemptTimeout)
	if err != nil {
		return nil, err
	}
	resp.Compliance = models.ComplianceInfo{Sanitized: true, PIIRedacted: redacted, AuditLogged: r.audit != nil}
	return resp, nil
}

// routeToProvider selects via the request strategy and walks the fallback
// chain: the selected candidate plus up to MaxFallbacks alternates.
func (r *Router) routeToProvider(ctx context.Context, req *models.RoutingRequest, sanitized string, redacted bool) (*models.RoutingResponse, error) {
	eligible := r.eligibleCandidates(req)
	if len(eligible) == 0 {
		return nil, services.ErrNoProviderAvailable
	}

	selected := strategyFor(req.Routing.Strategy).Select(eligible, req)
	if selected == nil {
		return nil, services.ErrNoProviderAvailable
	}

	chain := []*candidate{selected}
	if req.AI.FallbackEnabled {
		for i := range eligible {
			if len(chain) > r.config.MaxFallbacks {
				break
			}
			if eligible[i].config.ID == selected.config.ID {
				continue
			}
			chain = append(chain, &eligible[i])
		}
	}

	timeout := r.attemptTimeout(req.Routing.Priority)
	var lastErr error
	for i, cand := range chain {
		resp, err := r.attempt(ctx, req, cand, sanitized, timeout)
		if err != nil {
			lastErr = err
			// A breaker that closed the admission window between
			// filtering and dispatch only skips this candidate.
			if !services.IsRetryable(err) && !services.IsCircuitOpenError(err) {
				return nil, err
			}
			r.logger.Warn("provider attempt failed",
				append(observability.ContextFields(ctx),
					zap.String("provider", cand.config.ID),
					zap.Error(err))...)
			if i < len(chain)-1 {
				r.logEvent(models.AuditEventFallback, req, map[string]interface{}{
					"failed_provider": cand.config.ID,
					"next_provider":   chain[i+1].config.ID,
				})
			}
			continue
		}
		resp.Metrics.FallbackUsed = i > 0
		resp.Compliance = models.ComplianceInfo{Sanitized: true, PIIRedacted: redacted, AuditLogged: r.audit != nil}
		return resp, nil
	}

	return nil, services.NewAggregateProviderFailure(len(chain), lastErr)
}

// attempt executes one time-boxed provider call and records the outcome
// on the health monitor either way.
func (r *Router) attempt(ctx context.Context, req *models.RoutingRequest, cand *candidate, sanitized string, timeout time.Duration) (*models.RoutingResponse, error) {
	model, ok := r.registry.SelectModel(cand.config.ID, req)
	if !ok {
		return nil, services.NewDomainError(services.ErrorTypeValidation,
			"invalid model specified", nil).WithDetail("provider", cand.config.ID)
	}

	if !r.monitor.AllowCall(cand.config.ID) {
		return nil, services.NewDomainError(services.ErrorTypeCircuitOpen,
			"circuit breaker open", nil).WithDetail("provider", cand.config.ID)
	}
	r.consumeRateBudget(cand.config)

	callReq := *req
	callReq.Prompt = sanitized

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	result, err := r.transport.Call(callCtx, cand.config, model, &callReq)
	latency := time.Since(start)

	if err != nil {
		r.monitor.RecordFailure(cand.config.ID, err)
		if callCtx.Err() == context.DeadlineExceeded {
			return nil, services.NewDomainError(services.ErrorTypeProvider,
				"provider timeout", nil).WithDetail("provider", cand.config.ID)
		}
		if services.IsProviderError(err) {
			return nil, err
		}
		return nil, services.NewDomainError(services.ErrorTypeProvider,
			"provider call failed", err).WithDetail("provider", cand.config.ID)
	}

	r.monitor.RecordSuccess(cand.config.ID, latency)
	r.registry.RecordSpend(cand.config.ID, result.Cost)

	resp := models.NewRoutingResponse(result.Content, cand.config.ID, model.Name)
	resp.Metrics = models.ResponseMetrics{
		ProviderLatencyMs: int(latency.Milliseconds()),
		Cost:              result.Cost,
		TokensIn:          result.TokensIn,
		TokensOut:         result.TokensOut,
	}
	return resp, nil
}

// eligibleCandidates builds the filtered provider set: enabled, compliant,
// available with a closed breaker, within the request's cost and latency
// ceilings and inside the per-minute budget. Preferred providers narrow
// the set only when at least one of them survives the filters; a
// preference for an unusable provider never empties the pool. List order
// follows registration order so ties stay deterministic.
func (r *Router) eligibleCandidates(req *models.RoutingRequest) []candidate {
	all := r.filterCandidates(req)
	if len(req.AI.PreferredProviders) == 0 {
		return all
	}
	var preferred []candidate
	for i := range all {
		if containsString(req.AI.PreferredProviders, all[i].config.ID) {
			preferred = append(preferred, all[i])
		}
	}
	if len(preferred) > 0 {
		return preferred
	}
	return all
}

func (r *Router) filterCandidates(req *models.RoutingRequest) []candidate {
	var out []candidate
	for _, p := range r.registry.ListEnabled() {
		if !p.HasCompliance(req.Context.RequiredCompliance) {
			continue
		}
		if !r.monitor.IsAvailable(p.ID) {
			continue
		}
		if exhausted, until := r.rateBudgetExhausted(p); exhausted {
			r.monitor.RecordRateLimited(p.ID, until)
			continue
		}
		h, ok := r.monitor.Health(p.ID)
		if !ok {
			continue
		}
		if req.Routing.MaxLatencyMs > 0 && h.LatencyMs > float64(req.Routing.MaxLatencyMs) {
			continue
		}
		est := r.registry.EstimateCost(p.ID, req)
		if math.IsInf(est, 1) {
			continue
		}
		if req.Routing.MaxCost > 0 && est > req.Routing.MaxCost {
			continue
		}
		out = append(out, candidate{config: p, health: h, estimatedCost: est})
	}
	return out
}

// rateBudgetExhausted reports whether the provider's per-minute budget is
// spent, and when the current window ends. Read-only: candidate filtering
// must not charge providers for requests they never serve.
func (r *Router) rateBudgetExhausted(p *models.ProviderConfig) (bool, time.Time) {
	if p.RequestsPerMin <= 0 {
		return false, time.Time{}
	}
	now := time.Now()

	r.rateMu.Lock()
	defer r.rateMu.Unlock()

	w, ok := r.rates[p.ID]
	if !ok || now.Sub(w.start) >= time.Minute {
		return false, time.Time{}
	}
	return w.count >= p.RequestsPerMin, w.start.Add(time.Minute)
}

// consumeRateBudget charges one slot in the provider's per-minute budget.
// Called only when a call is actually dispatched to the provider.
func (r *Router) consumeRateBudget(p *models.ProviderConfig) {
	if p.RequestsPerMin <= 0 {
		return
	}
	now := time.Now()

	r.rateMu.Lock()
	defer r.rateMu.Unlock()

	w, ok := r.rates[p.ID]
	if !ok || now.Sub(w.start) >= time.Minute {
		r.rates[p.ID] = &rateWindow{start: now, count: 1}
		return
	}
	w.count++
}

func (r *Router) attemptTimeout(p models.Priority) time.Duration {
	switch p {
	case models.PriorityEmergency:
		return r.config.EmergencyAttemptTimeout
	case models.PriorityUrgent:
		return r.config.UrgentAttemptTimeout
	default:
		return r.config.AttemptTimeout
	}
}

func (r *Router) logEvent(eventType models.AuditEventType, req *models.RoutingRequest, metadata map[string]interface{}) {
	if r.audit == nil {
		return
	}
	r.audit.LogEvent(eventType, req.Metadata.RequesterID, "routing_request", req.Metadata.RequestID, metadata)
}

// GetProviderHealth returns the health snapshot for one provider.
func (r *Router) GetProviderHealth(providerID string) (models.ProviderHealth, bool) {
	return r.monitor.Health(providerID)
}

// ListProviderHealth returns snapshots for every tracked provider.
func (r *Router) ListProviderHealth() []models.ProviderHealth {
	return r.monitor.ListHealth()
}

// GetProviderMetrics returns the traffic counters for one provider.
func (r *Router) GetProviderMetrics(providerID string) (models.ProviderMetrics, bool) {
	m, ok := r.monitor.Metrics(providerID)
	if ok {
		m.TotalSpend = r.registry.Spend(providerID)
	}
	return m, ok
}

// SetProviderEnabled toggles a provider; false means the id is unknown.
func (r *Router) SetProviderEnabled(providerID string, enabled bool) bool {
	return r.registry.SetEnabled(providerID, enabled)
}

// GetAvailableProviders lists enabled providers the monitor considers
// currently routable.
func (r *Router) GetAvailableProviders() []string {
	var out []string
	for _, p := range r.registry.ListEnabled() {
		if r.monitor.IsAvailable(p.ID) {
			out = append(out, p.ID)
		}
	}
	return out
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
