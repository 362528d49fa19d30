package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vitalis-health/ai-routing/services/cache"
)

type fakeCacheService struct {
	stats   cache.Stats
	removed int
}

func (f *fakeCacheService) GetStats() cache.Stats {
	return f.stats
}

func (f *fakeCacheService) Cleanup() int {
	return f.removed
}

func TestCacheHandler_Stats(t *testing.T) {
	service := &fakeCacheService{
		stats: cache.Stats{
			TotalRequests:  10,
			Hits:           4,
			Misses:         6,
			HitRate:        0.4,
			SavedCost:      0.12,
			CostEfficiency: 0.5,
			Entries:        7,
		},
	}
	handler := NewCacheHandler(service, zap.NewNop())

	w := httptest.NewRecorder()
	handler.HandleStats(w, httptest.NewRequest(http.MethodGet, "/api/v1/cache/stats", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var envelope struct {
		Data cache.Stats `json:"data"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&envelope))
	assert.Equal(t, int64(10), envelope.Data.TotalRequests)
	assert.Equal(t, 0.4, envelope.Data.HitRate)
	assert.Equal(t, 7, envelope.Data.Entries)
}

func TestCacheHandler_Cleanup(t *testing.T) {
	handler := NewCacheHandler(&fakeCacheService{removed: 3}, zap.NewNop())

	w := httptest.NewRecorder()
	handler.HandleCleanup(w, httptest.NewRequest(http.MethodPost, "/api/v1/cache/cleanup", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var envelope struct {
		Data map[string]int `json:"data"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&envelope))
	assert.Equal(t, 3, envelope.Data["removed"])
}

func TestCacheHandler_Disabled(t *testing.T) {
	handler := NewCacheHandler(nil, zap.NewNop())

	w := httptest.NewRecorder()
	handler.HandleStats(w, httptest.NewRequest(http.MethodGet, "/api/v1/cache/stats", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = httptest.NewRecorder()
	handler.HandleCleanup(w, httptest.NewRequest(http.MethodPost, "/api/v1/cache/cleanup", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
