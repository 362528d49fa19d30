// Package cache implements the similarity-based response cache with strict
// per-tenant isolation, compliance tagging and TTL expiry.
package cache

import (
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/vitalis-health/ai-routing/internal/prompt"
	"github.com/vitalis-health/ai-routing/models"
	"github.com/vitalis-health/ai-routing/services"
	"github.com/vitalis-health/ai-routing/services/embedding"
	"go.uber.org/zap"
)

const (
	// DefaultMaxEntries bounds the store; the least-recently-accessed
	// entry is evicted when the bound is hit
	DefaultMaxEntries = 1000

	// DefaultSimilarityThreshold is the minimum similarity for a hit
	DefaultSimilarityThreshold = 0.85

	// DefaultTTL is applied to entries whose metadata carries no TTL
	DefaultTTL = 24 * time.Hour

	// DefaultCleanupSchedule drives the TTL sweep
	DefaultCleanupSchedule = "@every 5m"

	// DefaultAvgMissCost is the assumed provider cost of a cache miss,
	// used only for the cost-efficiency statistic
	DefaultAvgMissCost = 0.02
)

// MandatoryComplianceTag is force-injected into every stored entry.
const MandatoryComplianceTag = models.ComplianceLGPD

// Config holds semantic cache tuning knobs.
type Config struct {
	MaxEntries          int
	SimilarityThreshold float64
	DefaultTTL          time.Duration
	CleanupSchedule     string
	AvgMissCost         float64
}

// DefaultConfig returns the default cache configuration.
func DefaultConfig() Config {
	return Config{
		MaxEntries:          DefaultMaxEntries,
		SimilarityThreshold: DefaultSimilarityThreshold,
		DefaultTTL:          DefaultTTL,
		CleanupSchedule:     DefaultCleanupSchedule,
		AvgMissCost:         DefaultAvgMissCost,
	}
}

// LookupContext carries the caller's isolation and compliance demands.
type LookupContext struct {
	IsolationKey       string
	RequiredCompliance []models.ComplianceFlag
	IsEmergency        bool
}

// EntryMetadata describes an entry being added.
type EntryMetadata struct {
	IsolationKey   string
	ComplianceTags []models.ComplianceFlag
	Cost           float64
	TTL            time.Duration
	IsEmergency    bool
	ContainsPII    bool
}

// Stats is the cache's cumulative statistics snapshot.
type Stats struct {
	TotalRequests  int64   `json:"total_requests"`
	Hits           int64   `json:"hits"`
	Misses         int64   `json:"misses"`
	HitRate        float64 `json:"hit_rate"`
	SavedCost      float64 `json:"saved_cost"`
	CostEfficiency float64 `json:"cost_efficiency"`
	Entries        int     `json:"entries"`
}

// SemanticCache stores sanitized prompt/response pairs keyed by embedding
// similarity. All ambiguity resolves to a miss, never a permissive match.
type SemanticCache struct {
	config Config
	index  *embedding.Index
	logger *zap.Logger

	mu        sync.RWMutex
	entries   map[string]*models.CacheEntry
	hits      int64
	misses    int64
	savedCost float64

	cron    *cron.Cron
	cronID  cron.EntryID
	started bool
}

// NewSemanticCache creates a cache backed by the given embedding index.
func NewSemanticCache(config Config, index *embedding.Index, logger *zap.Logger) *SemanticCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.MaxEntries <= 0 {
		config.MaxEntries = DefaultMaxEntries
	}
	if config.SimilarityThreshold <= 0 {
		config.SimilarityThreshold = DefaultSimilarityThreshold
	}
	if config.DefaultTTL <= 0 {
		config.DefaultTTL = DefaultTTL
	}
	if config.CleanupSchedule == "" {
		config.CleanupSchedule = DefaultCleanupSchedule
	}
	if config.AvgMissCost <= 0 {
		config.AvgMissCost = DefaultAvgMissCost
	}
	return &SemanticCache{
		config:  config,
		index:   index,
		logger:  logger,
		entries: make(map[string]*models.CacheEntry),
	}
}

// FindSimilar looks up the best live entry for the prompt within the
// caller's isolation boundary. Emergency traffic always bypasses the
// cache; a prompt that sanitizes to empty is rejected.
func (c *SemanticCache) FindSimilar(rawPrompt string, ctx LookupContext) (*models.CacheEntry, error) {
	if ctx.IsEmergency {
		return nil, services.ErrEmergencyNotCacheable
	}
	if ctx.IsolationKey == "" {
		return nil, services.ErrMissingIsolationKey
	}

	sanitized := prompt.Sanitize(rawPrompt)
	if sanitized == "" {
		return nil, services.ErrPromptSanitizedEmpty
	}

	vector := c.index.Embed(sanitized)
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	candidates := make([]embedding.Candidate, 0, len(c.entries))
	for id, entry := range c.entries {
		if entry.IsExpired(now) {
			continue
		}
		if entry.IsolationKey != ctx.IsolationKey {
			continue
		}
		if !entry.HasComplianceTags(ctx.RequiredCompliance) {
			continue
		}
		if !entry.VerifyIntegrity() {
			// Corrupt entries are purged on sight and treated as a miss
			delete(c.entries, id)
			c.logger.Warn("evicted cache entry on integrity mismatch",
				zap.String("entry_id", id))
			continue
		}
		candidates = append(candidates, embedding.Candidate{ID: id, Vector: entry.Embedding})
	}

	match := c.index.NearestAbove(vector, candidates, c.config.SimilarityThreshold)
	if match == nil {
		c.misses++
		return nil, nil
	}

	entry := c.entries[match.ID]
	entry.Touch(now)
	c.hits++
	c.savedCost += entry.Cost

	c.logger.Debug("semantic cache hit",
		zap.String("entry_id", entry.ID),
		zap.Float64("similarity", match.Similarity))

	return entry, nil
}

// Add stores a sanitized prompt/response pair. Emergency or PII-bearing
// content is refused outright; the mandatory compliance tag is injected
// when absent.
func (c *SemanticCache) Add(rawPrompt, rawResponse string, meta EntryMetadata) (string, error) {
	if meta.IsEmergency {
		return "", services.ErrEmergencyNotCacheable
	}
	if meta.ContainsPII {
		return "", services.NewDomainError(services.ErrorTypeCompliance,
			"content flagged as PII must not be cached", nil)
	}
	if meta.IsolationKey == "" {
		return "", services.ErrMissingIsolationKey
	}

	sanitizedPrompt := prompt.Sanitize(rawPrompt)
	if sanitizedPrompt == "" {
		return "", services.ErrPromptSanitizedEmpty
	}
	sanitizedResponse := prompt.Sanitize(rawResponse)
	if sanitizedResponse == "" {
		return "", services.NewDomainError(services.ErrorTypeValidation,
			"response is empty after sanitization", nil)
	}

	entry := models.NewCacheEntry(sanitizedPrompt, sanitizedResponse, meta.IsolationKey)
	entry.Cost = meta.Cost
	entry.ComplianceTags = meta.ComplianceTags
	if !entry.HasComplianceTags([]models.ComplianceFlag{MandatoryComplianceTag}) {
		entry.ComplianceTags = append(entry.ComplianceTags, MandatoryComplianceTag)
	}

	ttl := meta.TTL
	if ttl <= 0 {
		ttl = c.config.DefaultTTL
	}
	expires := entry.CreatedAt.Add(ttl)
	entry.ExpiresAt = &expires

	entry.Embedding = c.index.Embed(sanitizedPrompt)

	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.entries) >= c.config.MaxEntries {
		c.evictLRU()
	}
	c.entries[entry.ID] = entry

	c.logger.Debug("semantic cache entry added",
		zap.String("entry_id", entry.ID),
		zap.String("isolation_key", entry.IsolationKey))

	return entry.ID, nil
}

// Remove deletes a specific entry. Returns false for unknown ids.
func (c *SemanticCache) Remove(entryID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[entryID]; !ok {
		return false
	}
	delete(c.entries, entryID)
	return true
}

// Cleanup removes all expired entries and returns how many were removed.
// Idempotent: repeated calls with no newly expired entries remove nothing.
func (c *SemanticCache) Cleanup() int {
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for id, entry := range c.entries {
		if entry.IsExpired(now) {
			delete(c.entries, id)
			removed++
		}
	}
	if removed > 0 {
		c.logger.Info("cache cleanup removed expired entries", zap.Int("removed", removed))
	}
	return removed
}

// Size returns the number of stored entries, expired or not.
func (c *SemanticCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// GetStats returns the cumulative cache statistics.
func (c *SemanticCache) GetStats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	total := c.hits + c.misses
	stats := Stats{
		TotalRequests: total,
		Hits:          c.hits,
		Misses:        c.misses,
		SavedCost:     c.savedCost,
		Entries:       len(c.entries),
	}
	if total > 0 {
		stats.HitRate = float64(c.hits) / float64(total)
	}
	denominator := c.savedCost + float64(c.misses)*c.config.AvgMissCost
	if denominator > 0 {
		stats.CostEfficiency = c.savedCost / denominator
	}
	return stats
}

// StartCleanupScheduler begins periodic TTL sweeps on the configured
// schedule. Stopped via StopCleanupScheduler.
func (c *SemanticCache) StartCleanupScheduler() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.started {
		return nil
	}
	c.cron = cron.New()
	id, err := c.cron.AddFunc(c.config.CleanupSchedule, func() { c.Cleanup() })
	if err != nil {
		return err
	}
	c.cronID = id
	c.cron.Start()
	c.started = true

	c.logger.Info("cache cleanup scheduler started",
		zap.String("schedule", c.config.CleanupSchedule))
	return nil
}

// StopCleanupScheduler stops the periodic sweep and waits for any running
// sweep to finish.
func (c *SemanticCache) StopCleanupScheduler() {
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return
	}
	c.started = false
	cr := c.cron
	c.mu.Unlock()

	<-cr.Stop().Done()
}

// evictLRU removes the single least-recently-accessed entry. O(n) scan;
// acceptable at the configured bound. Must hold c.mu.
func (c *SemanticCache) evictLRU() {
	var oldestID string
	var oldestAt time.Time
	first := true
	for id, entry := range c.entries {
		if first || entry.AccessedAt.Before(oldestAt) {
			oldestID = id
			oldestAt = entry.AccessedAt
			first = false
		}
	}
	if !first {
		delete(c.entries, oldestID)
		c.logger.Debug("evicted least recently used cache entry",
			zap.String("entry_id", oldestID))
	}
}
