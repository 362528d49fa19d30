package cache

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitalis-health/ai-routing/models"
	"github.com/vitalis-health/ai-routing/services"
	"github.com/vitalis-health/ai-routing/services/embedding"
)

func newTestCache(t *testing.T, config Config) *SemanticCache {
	t.Helper()
	index := embedding.NewIndex(embedding.NewLocalEmbedder(embedding.DefaultDimensions), embedding.DefaultCacheSize)
	return NewSemanticCache(config, index, nil)
}

func tenantContext(tenant string) LookupContext {
	return LookupContext{IsolationKey: tenant}
}

func TestSemanticCache_AddAndFindRoundTrip(t *testing.T) {
	c := newTestCache(t, DefaultConfig())

	id, err := c.Add("what are the side effects of amoxicillin",
		"Common side effects include nausea and rash.",
		EntryMetadata{IsolationKey: "clinic-a", Cost: 0.03})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	entry, err := c.FindSimilar("what are the side effects of amoxicillin", tenantContext("clinic-a"))
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, id, entry.ID)
	assert.Equal(t, "Common side effects include nausea and rash.", entry.Response)
	assert.Equal(t, int64(1), entry.AccessCount)
}

func TestSemanticCache_MissBelowThreshold(t *testing.T) {
	c := newTestCache(t, DefaultConfig())

	_, err := c.Add("what are the side effects of amoxicillin",
		"Common side effects include nausea and rash.",
		EntryMetadata{IsolationKey: "clinic-a"})
	require.NoError(t, err)

	entry, err := c.FindSimilar("schedule a cardiology appointment for next week", tenantContext("clinic-a"))
	require.NoError(t, err)
	assert.Nil(t, entry)

	stats := c.GetStats()
	assert.Equal(t, int64(1), stats.Misses)
}

func TestSemanticCache_TenantIsolation(t *testing.T) {
	c := newTestCache(t, DefaultConfig())

	_, err := c.Add("what is the recommended dose of dipyrone",
		"500mg up to four times daily for adults.",
		EntryMetadata{IsolationKey: "clinic-a"})
	require.NoError(t, err)

	// Identical prompt from another tenant must never see the entry
	entry, err := c.FindSimilar("what is the recommended dose of dipyrone", tenantContext("clinic-b"))
	require.NoError(t, err)
	assert.Nil(t, entry)

	// Patient-scoped key differs from the bare tenant key
	entry, err = c.FindSimilar("what is the recommended dose of dipyrone", tenantContext("clinic-a:patient-1"))
	require.NoError(t, err)
	assert.Nil(t, entry)

	entry, err = c.FindSimilar("what is the recommended dose of dipyrone", tenantContext("clinic-a"))
	require.NoError(t, err)
	assert.NotNil(t, entry)
}

func TestSemanticCache_ComplianceSupersetMatch(t *testing.T) {
	c := newTestCache(t, DefaultConfig())

	_, err := c.Add("summarize discharge instructions",
		"Rest, hydrate, and follow up in seven days.",
		EntryMetadata{
			IsolationKey:   "clinic-a",
			ComplianceTags: []models.ComplianceFlag{models.ComplianceLGPD, models.ComplianceANVISA},
		})
	require.NoError(t, err)

	entry, err := c.FindSimilar("summarize discharge instructions", LookupContext{
		IsolationKey:       "clinic-a",
		RequiredCompliance: []models.ComplianceFlag{models.ComplianceANVISA},
	})
	require.NoError(t, err)
	assert.NotNil(t, entry)

	// Demanding a tag the entry lacks is a miss
	entry, err = c.FindSimilar("summarize discharge instructions", LookupContext{
		IsolationKey:       "clinic-a",
		RequiredCompliance: []models.ComplianceFlag{models.ComplianceCFM},
	})
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestSemanticCache_MandatoryTagInjected(t *testing.T) {
	c := newTestCache(t, DefaultConfig())

	_, err := c.Add("list common pediatric vaccines", "BCG, hepatitis B, pentavalent.",
		EntryMetadata{IsolationKey: "clinic-a"})
	require.NoError(t, err)

	entry, err := c.FindSimilar("list common pediatric vaccines", LookupContext{
		IsolationKey:       "clinic-a",
		RequiredCompliance: []models.ComplianceFlag{MandatoryComplianceTag},
	})
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Contains(t, entry.ComplianceTags, MandatoryComplianceTag)
}

func TestSemanticCache_EmergencyRefused(t *testing.T) {
	c := newTestCache(t, DefaultConfig())

	_, err := c.Add("patient unresponsive protocol", "Begin CPR immediately.",
		EntryMetadata{IsolationKey: "clinic-a", IsEmergency: true})
	assert.ErrorIs(t, err, services.ErrEmergencyNotCacheable)
	assert.Equal(t, 0, c.Size())

	// Lookup under emergency bypasses the cache as well
	_, err = c.FindSimilar("patient unresponsive protocol", LookupContext{
		IsolationKey: "clinic-a",
		IsEmergency:  true,
	})
	assert.ErrorIs(t, err, services.ErrEmergencyNotCacheable)
}

func TestSemanticCache_PIIRefused(t *testing.T) {
	c := newTestCache(t, DefaultConfig())

	_, err := c.Add("patient record for 123.456.789-09", "Record details.",
		EntryMetadata{IsolationKey: "clinic-a", ContainsPII: true})
	require.Error(t, err)
	assert.True(t, services.IsComplianceError(err))
	assert.Equal(t, 0, c.Size())
}

func TestSemanticCache_MissingIsolationKey(t *testing.T) {
	c := newTestCache(t, DefaultConfig())

	_, err := c.Add("any prompt", "any response", EntryMetadata{})
	assert.ErrorIs(t, err, services.ErrMissingIsolationKey)

	_, err = c.FindSimilar("any prompt", LookupContext{})
	assert.ErrorIs(t, err, services.ErrMissingIsolationKey)
}

func TestSemanticCache_EmptyAfterSanitization(t *testing.T) {
	c := newTestCache(t, DefaultConfig())

	_, err := c.Add("<script>alert(1)</script>", "response",
		EntryMetadata{IsolationKey: "clinic-a"})
	assert.ErrorIs(t, err, services.ErrPromptSanitizedEmpty)
	assert.Equal(t, 0, c.Size())
}

func TestSemanticCache_IntegrityPurge(t *testing.T) {
	c := newTestCache(t, DefaultConfig())

	id, err := c.Add("describe hypertension management",
		"Lifestyle changes plus medication when indicated.",
		EntryMetadata{IsolationKey: "clinic-a"})
	require.NoError(t, err)

	// Tamper with the stored response behind the hash's back
	c.mu.Lock()
	c.entries[id].Response = "tampered"
	c.mu.Unlock()

	entry, err := c.FindSimilar("describe hypertension management", tenantContext("clinic-a"))
	require.NoError(t, err)
	assert.Nil(t, entry)
	assert.Equal(t, 0, c.Size())
}

func TestSemanticCache_LRUEviction(t *testing.T) {
	config := DefaultConfig()
	config.MaxEntries = 3
	c := newTestCache(t, config)

	ids := make([]string, 3)
	prompts := []string{
		"first distinct clinical question about cardiology",
		"second distinct clinical question about dermatology",
		"third distinct clinical question about neurology",
	}
	for i, p := range prompts {
		id, err := c.Add(p, fmt.Sprintf("answer %d", i), EntryMetadata{IsolationKey: "clinic-a"})
		require.NoError(t, err)
		ids[i] = id
		// Distinct AccessedAt ordering
		c.mu.Lock()
		c.entries[id].AccessedAt = time.Now().Add(time.Duration(i) * time.Second)
		c.mu.Unlock()
	}

	_, err := c.Add("fourth distinct clinical question about oncology", "answer 3",
		EntryMetadata{IsolationKey: "clinic-a"})
	require.NoError(t, err)

	assert.Equal(t, 3, c.Size())
	c.mu.RLock()
	_, oldestStillPresent := c.entries[ids[0]]
	c.mu.RUnlock()
	assert.False(t, oldestStillPresent, "least recently accessed entry should be evicted")
}

func TestSemanticCache_CleanupIdempotent(t *testing.T) {
	c := newTestCache(t, DefaultConfig())

	id, err := c.Add("expiring question", "expiring answer",
		EntryMetadata{IsolationKey: "clinic-a", TTL: time.Millisecond})
	require.NoError(t, err)
	_, err = c.Add("long lived question", "long lived answer",
		EntryMetadata{IsolationKey: "clinic-a", TTL: time.Hour})
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)

	assert.Equal(t, 1, c.Cleanup())
	assert.Equal(t, 0, c.Cleanup())
	assert.Equal(t, 1, c.Size())

	c.mu.RLock()
	_, present := c.entries[id]
	c.mu.RUnlock()
	assert.False(t, present)
}

func TestSemanticCache_ExpiredEntryIsMiss(t *testing.T) {
	c := newTestCache(t, DefaultConfig())

	_, err := c.Add("short lived question", "short lived answer",
		EntryMetadata{IsolationKey: "clinic-a", TTL: time.Millisecond})
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)

	entry, err := c.FindSimilar("short lived question", tenantContext("clinic-a"))
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestSemanticCache_Stats(t *testing.T) {
	config := DefaultConfig()
	config.AvgMissCost = 0.02
	c := newTestCache(t, config)

	_, err := c.Add("question about asthma inhaler technique", "Shake, exhale, inhale slowly.",
		EntryMetadata{IsolationKey: "clinic-a", Cost: 0.04})
	require.NoError(t, err)

	hit, err := c.FindSimilar("question about asthma inhaler technique", tenantContext("clinic-a"))
	require.NoError(t, err)
	require.NotNil(t, hit)

	miss, err := c.FindSimilar("completely unrelated billing export request", tenantContext("clinic-a"))
	require.NoError(t, err)
	require.Nil(t, miss)

	stats := c.GetStats()
	assert.Equal(t, int64(2), stats.TotalRequests)
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.InDelta(t, 0.5, stats.HitRate, 1e-9)
	assert.InDelta(t, 0.04, stats.SavedCost, 1e-9)
	assert.InDelta(t, 0.04/(0.04+0.02), stats.CostEfficiency, 1e-9)
	assert.Equal(t, 1, stats.Entries)
}

func TestSemanticCache_CleanupScheduler(t *testing.T) {
	c := newTestCache(t, DefaultConfig())

	require.NoError(t, c.StartCleanupScheduler())
	require.NoError(t, c.StartCleanupScheduler())

	c.StopCleanupScheduler()
	c.StopCleanupScheduler()
}
