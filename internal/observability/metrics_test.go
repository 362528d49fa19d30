package observability

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusMetrics_RecordAndExpose(t *testing.T) {
	m := NewPrometheusMetrics()
	ctx := context.Background()

	labels := RequestLabels{
		TenantID: "tenant-1",
		Provider: "provider-alpha",
		Model:    "clinical-large",
		Status:   "success",
	}

	m.RecordRequest(ctx, labels)
	m.RecordRequest(ctx, labels)
	m.RecordLatency(ctx, 120.5, labels)
	m.RecordTokens(ctx, 200, 80, labels)
	m.RecordCost(ctx, 0.004, labels)
	m.RecordCacheLookup(ctx, "tenant-1", true)
	m.RecordCacheLookup(ctx, "tenant-1", false)
	m.RecordFallback(ctx, "tenant-1", "provider-beta")

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	m.Handler().ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `ai_routing_requests_total{model="clinical-large",provider="provider-alpha",status="success",tenant="tenant-1"} 2`)
	assert.Contains(t, body, `ai_routing_tokens_total{direction="input",model="clinical-large",provider="provider-alpha",tenant="tenant-1"} 200`)
	assert.Contains(t, body, `ai_routing_tokens_total{direction="output",model="clinical-large",provider="provider-alpha",tenant="tenant-1"} 80`)
	assert.Contains(t, body, `ai_routing_cache_lookups_total{result="hit",tenant="tenant-1"} 1`)
	assert.Contains(t, body, `ai_routing_cache_lookups_total{result="miss",tenant="tenant-1"} 1`)
	assert.Contains(t, body, `ai_routing_fallbacks_total{tenant="tenant-1",to_provider="provider-beta"} 1`)
}

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger("debug", "json")
	require.NoError(t, err)
	require.NotNil(t, logger)

	logger, err = NewLogger("info", "text")
	require.NoError(t, err)
	require.NotNil(t, logger)

	_, err = NewLogger("verbose", "json")
	assert.Error(t, err)
}

func TestRequestIDPropagation(t *testing.T) {
	ctx := context.Background()

	_, ok := RequestIDFrom(ctx)
	assert.False(t, ok)
	assert.Nil(t, ContextFields(ctx))

	ctx = WithRequestID(ctx, "req-123")
	id, ok := RequestIDFrom(ctx)
	require.True(t, ok)
	assert.Equal(t, "req-123", id)
	assert.Len(t, ContextFields(ctx), 1)
}
