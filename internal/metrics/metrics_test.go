package metrics

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistersAll(t *testing.T) {
	m := New()

	m.SessionsActive.Inc()
	m.SessionsTotal.WithLabelValues("done").Inc()
	m.ObserveModelTurn("openai", "ok", 120*time.Millisecond)
	m.ObserveToolCall("google_search", "success", 40*time.Millisecond)
	m.BudgetExceededTotal.WithLabelValues("tool_calls").Inc()
	m.EventsEmittedTotal.WithLabelValues("token").Inc()
	m.CacheHitsTotal.Inc()
	m.CacheMissesTotal.Inc()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	m.Handler().ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "research_sessions_active")
	assert.Contains(t, body, "model_turns_total")
	assert.Contains(t, body, "tool_calls_total")
	assert.Contains(t, body, "budget_exceeded_total")
	assert.Contains(t, body, "tool_cache_hits_total")
}

func TestDefaultIsSingleton(t *testing.T) {
	assert.Same(t, Default(), Default())
}
