// Package health tracks per-provider health, latency and success rate, and
// owns one circuit breaker per provider. All mutation of a provider's state
// goes through that provider's lock; cross-provider operations need no
// coordination.
package health

import (
	"context"
	"sync"
	"time"

	"github.com/vitalis-health/ai-routing/models"
	"go.uber.org/zap"
)

const (
	// DefaultProbeInterval is how often every enabled provider is probed
	DefaultProbeInterval = 30 * time.Second

	// DefaultProbeTimeout bounds a single probe so a slow provider cannot
	// stall the probe loop
	DefaultProbeTimeout = 5 * time.Second

	// latencyEMAWeight smooths noisy latency samples
	latencyEMAWeight = 0.2

	// successWindowSize bounds the rolling outcome window per provider
	successWindowSize = 50

	// unavailableFloor is the success-rate floor below which a provider is
	// forced unavailable
	unavailableFloor = 50.0

	// degradedFloor marks providers answering but failing noticeably
	degradedFloor = 80.0
)

// Prober checks provider liveness. The router's provider transport
// typically backs this with a lightweight ping call.
type Prober interface {
	Probe(ctx context.Context, providerID string) (time.Duration, error)
}

// ProviderLister supplies the set of providers the probe loop visits.
type ProviderLister func() []string

// Config holds monitor tuning knobs.
type Config struct {
	FailureThreshold int
	Cooldown         time.Duration
	ProbeInterval    time.Duration
	ProbeTimeout     time.Duration
}

// DefaultConfig returns the default monitor configuration.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: DefaultFailureThreshold,
		Cooldown:         DefaultCooldown,
		ProbeInterval:    DefaultProbeInterval,
		ProbeTimeout:     DefaultProbeTimeout,
	}
}

// providerState is everything the monitor knows about one provider.
// Guarded by its own mutex so providers never contend with each other.
type providerState struct {
	mu               sync.Mutex
	health           models.ProviderHealth
	breaker          *CircuitBreaker
	outcomes         []bool // rolling window, true = success
	totalRequests    int64
	totalFailures    int64
	rateLimitedUntil time.Time
}

// clearExpiredRateLimit restores a rate-limited provider once its budget
// window has rolled over. Caller holds st.mu.
func (st *providerState) clearExpiredRateLimit(now time.Time) {
	if st.health.Status == models.HealthStatusRateLimited && !now.Before(st.rateLimitedUntil) {
		st.rateLimitedUntil = time.Time{}
		st.recomputeStatus()
	}
}

// Monitor maintains rolling health per provider and runs the periodic
// probe loop.
type Monitor struct {
	config Config
	logger *zap.Logger

	mu        sync.RWMutex
	providers map[string]*providerState

	prober Prober
	lister ProviderLister

	stopCh  chan struct{}
	stopped sync.WaitGroup
	started bool
}

// NewMonitor creates a Monitor. prober and lister may be nil, in which
// case the periodic probe loop is a no-op.
func NewMonitor(config Config, prober Prober, lister ProviderLister, logger *zap.Logger) *Monitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = DefaultFailureThreshold
	}
	if config.Cooldown <= 0 {
		config.Cooldown = DefaultCooldown
	}
	if config.ProbeInterval <= 0 {
		config.ProbeInterval = DefaultProbeInterval
	}
	if config.ProbeTimeout <= 0 {
		config.ProbeTimeout = DefaultProbeTimeout
	}
	return &Monitor{
		config:    config,
		logger:    logger,
		providers: make(map[string]*providerState),
		prober:    prober,
		lister:    lister,
		stopCh:    make(chan struct{}),
	}
}

// Track initializes health and breaker state for a provider. Called from
// the registry's registration hook. Tracking an already-known provider is
// a no-op; health records are never deleted.
func (m *Monitor) Track(providerID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.providers[providerID]; ok {
		return
	}
	m.providers[providerID] = &providerState{
		health: models.ProviderHealth{
			ProviderID:  providerID,
			Status:      models.HealthStatusAvailable,
			SuccessRate: 100,
			LastCheck:   time.Now(),
		},
		breaker: NewCircuitBreaker(m.config.FailureThreshold, m.config.Cooldown),
	}
	m.logger.Debug("tracking provider health", zap.String("provider_id", providerID))
}

// get returns the state for a provider, tracking it lazily if needed.
func (m *Monitor) get(providerID string) *providerState {
	m.mu.RLock()
	st, ok := m.providers[providerID]
	m.mu.RUnlock()
	if ok {
		return st
	}
	m.Track(providerID)
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.providers[providerID]
}

// RecordSuccess feeds a successful call and its latency into the
// provider's health and closes its breaker.
func (m *Monitor) RecordSuccess(providerID string, latency time.Duration) {
	st := m.get(providerID)
	st.mu.Lock()
	defer st.mu.Unlock()

	st.breaker.RecordSuccess()
	st.totalRequests++
	st.pushOutcome(true)
	st.updateLatency(latency)
	st.health.LastCheck = time.Now()
	st.health.LastError = ""
	st.recomputeStatus()
}

// RecordFailure feeds a failed call into the provider's health and breaker.
func (m *Monitor) RecordFailure(providerID string, callErr error) {
	st := m.get(providerID)
	st.mu.Lock()
	defer st.mu.Unlock()

	now := time.Now()
	st.breaker.RecordFailure(now)
	st.totalRequests++
	st.totalFailures++
	st.pushOutcome(false)
	st.health.LastCheck = now
	if callErr != nil {
		st.health.LastError = callErr.Error()
	}
	st.recomputeStatus()

	m.logger.Warn("provider failure recorded",
		zap.String("provider_id", providerID),
		zap.String("breaker_state", string(st.breaker.State())),
		zap.Error(callErr))
}

// RecordRateLimited marks a provider as rate limited until the end of its
// current budget window, without affecting the breaker's consecutive
// failure count. The status clears itself once the window rolls over.
func (m *Monitor) RecordRateLimited(providerID string, until time.Time) {
	st := m.get(providerID)
	st.mu.Lock()
	defer st.mu.Unlock()

	st.health.Status = models.HealthStatusRateLimited
	st.health.LastCheck = time.Now()
	st.rateLimitedUntil = until
}

// AllowCall admits or blocks one dispatched call against the provider's
// breaker. This is the only path that consumes the half-open trial; call
// it when a request is actually sent, never for introspection.
func (m *Monitor) AllowCall(providerID string) bool {
	st := m.get(providerID)
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.breaker.Allow(time.Now())
}

// IsOpen reports whether the provider's breaker currently blocks calls.
// Read-only: repeated calls never consume the half-open trial.
func (m *Monitor) IsOpen(providerID string) bool {
	st := m.get(providerID)
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.breaker.IsOpen(time.Now())
}

// IsAvailable combines health status and breaker state. A provider whose
// breaker is open must never be selected. Read-only apart from clearing
// an expired rate-limit window.
func (m *Monitor) IsAvailable(providerID string) bool {
	st := m.get(providerID)
	st.mu.Lock()
	defer st.mu.Unlock()

	now := time.Now()
	if st.breaker.IsOpen(now) {
		return false
	}
	st.clearExpiredRateLimit(now)
	switch st.health.Status {
	case models.HealthStatusAvailable, models.HealthStatusDegraded:
		return true
	default:
		return false
	}
}

// Health returns a copy of the provider's health snapshot.
func (m *Monitor) Health(providerID string) (models.ProviderHealth, bool) {
	m.mu.RLock()
	st, ok := m.providers[providerID]
	m.mu.RUnlock()
	if !ok {
		return models.ProviderHealth{}, false
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	st.clearExpiredRateLimit(time.Now())
	return st.health, true
}

// ListHealth returns health snapshots for every tracked provider.
func (m *Monitor) ListHealth() []models.ProviderHealth {
	m.mu.RLock()
	states := make([]*providerState, 0, len(m.providers))
	for _, st := range m.providers {
		states = append(states, st)
	}
	m.mu.RUnlock()

	now := time.Now()
	out := make([]models.ProviderHealth, 0, len(states))
	for _, st := range states {
		st.mu.Lock()
		st.clearExpiredRateLimit(now)
		out = append(out, st.health)
		st.mu.Unlock()
	}
	return out
}

// Metrics returns aggregate counters for a provider.
func (m *Monitor) Metrics(providerID string) (models.ProviderMetrics, bool) {
	m.mu.RLock()
	st, ok := m.providers[providerID]
	m.mu.RUnlock()
	if !ok {
		return models.ProviderMetrics{}, false
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return models.ProviderMetrics{
		ProviderID:    providerID,
		TotalRequests: st.totalRequests,
		TotalFailures: st.totalFailures,
		AvgLatencyMs:  st.health.LatencyMs,
		SuccessRate:   st.health.SuccessRate,
	}, true
}

// BreakerState returns the breaker state for introspection.
func (m *Monitor) BreakerState(providerID string) BreakerState {
	st := m.get(providerID)
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.breaker.State()
}

// MutationCount returns the total number of recorded outcomes across all
// providers. Used by callers asserting that a rejected request touched no
// provider.
func (m *Monitor) MutationCount() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var total int64
	for _, st := range m.providers {
		st.mu.Lock()
		total += st.totalRequests
		st.mu.Unlock()
	}
	return total
}

// Start launches the periodic probe loop. Safe to call once.
func (m *Monitor) Start() {
	if m.prober == nil || m.lister == nil {
		return
	}
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return
	}
	m.started = true
	m.mu.Unlock()

	m.stopped.Add(1)
	go m.probeLoop()
}

// Stop terminates the probe loop and waits for it to exit.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.started {
		m.mu.Unlock()
		return
	}
	m.started = false
	m.mu.Unlock()

	close(m.stopCh)
	m.stopped.Wait()
}

// probeLoop probes every listed provider on a fixed interval. A probe
// failure only degrades status; it never crashes the monitor.
func (m *Monitor) probeLoop() {
	defer m.stopped.Done()

	ticker := time.NewTicker(m.config.ProbeInterval)
	defer ticker.Stop()

	m.logger.Info("health probe loop started",
		zap.Duration("interval", m.config.ProbeInterval))

	for {
		select {
		case <-m.stopCh:
			m.logger.Info("health probe loop stopped")
			return
		case <-ticker.C:
			m.probeAll()
		}
	}
}

// probeAll runs one probe round. Each probe is independently time-boxed.
func (m *Monitor) probeAll() {
	for _, providerID := range m.lister() {
		ctx, cancel := context.WithTimeout(context.Background(), m.config.ProbeTimeout)
		latency, err := m.prober.Probe(ctx, providerID)
		cancel()

		if err != nil {
			m.RecordFailure(providerID, err)
			continue
		}
		m.RecordSuccess(providerID, latency)
	}
}

// pushOutcome appends to the rolling window. Must hold st.mu.
func (st *providerState) pushOutcome(success bool) {
	st.outcomes = append(st.outcomes, success)
	if len(st.outcomes) > successWindowSize {
		st.outcomes = st.outcomes[len(st.outcomes)-successWindowSize:]
	}
}

// updateLatency folds a sample into the exponential moving average.
// Must hold st.mu.
func (st *providerState) updateLatency(latency time.Duration) {
	sample := float64(latency.Milliseconds())
	if st.health.LatencyMs == 0 {
		st.health.LatencyMs = sample
		return
	}
	st.health.LatencyMs = latencyEMAWeight*sample + (1-latencyEMAWeight)*st.health.LatencyMs
}

// recomputeStatus derives status from the rolling success rate.
// Must hold st.mu.
func (st *providerState) recomputeStatus() {
	if len(st.outcomes) == 0 {
		st.health.SuccessRate = 100
		st.health.Status = models.HealthStatusAvailable
		return
	}
	successes := 0
	for _, ok := range st.outcomes {
		if ok {
			successes++
		}
	}
	st.health.SuccessRate = float64(successes) / float64(len(st.outcomes)) * 100

	switch {
	case st.health.SuccessRate < unavailableFloor:
		st.health.Status = models.HealthStatusUnavailable
	case st.health.SuccessRate < degradedFloor:
		st.health.Status = models.HealthStatusDegraded
	default:
		st.health.Status = models.HealthStatusAvailable
	}
}
