package telemetry

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentnet/internal/domain"
)

func TestNewPrometheusMetrics(t *testing.T) {
	m := NewPrometheusMetrics(prometheus.NewRegistry())
	assert.NotNil(t, m)
	assert.NotNil(t, m.indexRebuilds)
	assert.NotNil(t, m.indexRebuildDuration)
	assert.NotNil(t, m.indexChunks)
	assert.NotNil(t, m.searchDuration)
	assert.NotNil(t, m.plannerLatency)
	assert.NotNil(t, m.plannerTokens)
	assert.NotNil(t, m.toolCalls)
}

func TestNewPrometheusMetrics_UsesProvidedRegistry(t *testing.T) {
	registry := prometheus.NewRegistry()

	m := NewPrometheusMetrics(registry)
	m.ObserveIndexRebuild(domain.RebuildStaleStamp, 2*time.Second, 42, nil)
	m.ObserveIndexReuse()
	m.ObserveSearch(30*time.Millisecond, nil)
	m.ObservePlannerLatency("openai", "gpt-4.1-mini", 500*time.Millisecond)
	m.ObservePlannerTokens("openai", "gpt-4.1-mini", 128)
	m.ObserveToolCall("notion", errors.New("boom"))

	metrics, err := registry.Gather()
	require.NoError(t, err)

	names := make([]string, 0, len(metrics))
	for _, m := range metrics {
		names = append(names, m.GetName())
	}

	assert.Contains(t, names, "agentnet_index_rebuilds_total")
	assert.Contains(t, names, "agentnet_index_rebuild_duration_seconds")
	assert.Contains(t, names, "agentnet_index_chunks")
	assert.Contains(t, names, "agentnet_index_reuses_total")
	assert.Contains(t, names, "agentnet_search_duration_seconds")
	assert.Contains(t, names, "agentnet_planner_latency_seconds")
	assert.Contains(t, names, "agentnet_planner_tokens_total")
	assert.Contains(t, names, "agentnet_tool_calls_total")
}

func TestPrometheusMetrics_Values(t *testing.T) {
	m := NewPrometheusMetrics(prometheus.NewRegistry())

	m.ObserveIndexRebuild(domain.RebuildForced, time.Second, 10, nil)
	m.ObserveIndexRebuild(domain.RebuildForced, time.Second, 99, errors.New("embed failed"))
	m.ObservePlannerTokens("openai", "m", 100)
	m.ObservePlannerTokens("openai", "m", 28)
	m.ObserveToolCall("a", nil)
	m.ObserveToolCall("b", nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.indexRebuilds.WithLabelValues("forced", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.indexRebuilds.WithLabelValues("forced", "error")))
	assert.Equal(t, 10.0, testutil.ToFloat64(m.indexChunks))
	assert.Equal(t, 128.0, testutil.ToFloat64(m.plannerTokens.WithLabelValues("openai", "m")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.toolCalls.WithLabelValues("success")))
}
