package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"agentnet/internal/domain"
)

type PrometheusMetrics struct {
	indexRebuilds        *prometheus.CounterVec
	indexRebuildDuration prometheus.Histogram
	indexChunks          prometheus.Gauge
	indexReuses          prometheus.Counter
	searchDuration       *prometheus.HistogramVec
	plannerLatency       *prometheus.HistogramVec
	plannerTokens        *prometheus.CounterVec
	toolCalls            *prometheus.CounterVec
}

func NewPrometheusMetrics(registerer prometheus.Registerer) *PrometheusMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registerer)

	return &PrometheusMetrics{
		indexRebuilds: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentnet_index_rebuilds_total",
				Help: "Total number of vector index rebuilds",
			},
			[]string{"reason", "status"},
		),
		indexRebuildDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "agentnet_index_rebuild_duration_seconds",
				Help:    "Duration of vector index rebuilds in seconds",
				Buckets: []float64{.1, .5, 1, 2.5, 5, 10, 30, 60, 120, 300},
			},
		),
		indexChunks: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "agentnet_index_chunks",
				Help: "Number of chunks in the last successfully built index",
			},
		),
		indexReuses: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "agentnet_index_reuses_total",
				Help: "Total number of times a persisted index was reused",
			},
		),
		searchDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agentnet_search_duration_seconds",
				Help:    "Duration of server searches in seconds",
				Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"status"},
		),
		plannerLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agentnet_planner_latency_seconds",
				Help:    "Latency of language model calls in seconds",
				Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"provider", "model"},
		),
		plannerTokens: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentnet_planner_tokens_total",
				Help: "Total number of tokens consumed by language model calls",
			},
			[]string{"provider", "model"},
		),
		toolCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentnet_tool_calls_total",
				Help: "Total number of tool server calls",
			},
			[]string{"status"},
		),
	}
}

func statusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

func (p *PrometheusMetrics) ObserveIndexRebuild(reason domain.RebuildReason, duration time.Duration, chunks int, err error) {
	p.indexRebuilds.WithLabelValues(string(reason), statusLabel(err)).Inc()
	p.indexRebuildDuration.Observe(duration.Seconds())
	if err == nil {
		p.indexChunks.Set(float64(chunks))
	}
}

func (p *PrometheusMetrics) ObserveIndexReuse() {
	p.indexReuses.Inc()
}

func (p *PrometheusMetrics) ObserveSearch(duration time.Duration, err error) {
	p.searchDuration.WithLabelValues(statusLabel(err)).Observe(duration.Seconds())
}

func (p *PrometheusMetrics) ObservePlannerLatency(provider string, model string, duration time.Duration) {
	p.plannerLatency.WithLabelValues(provider, model).Observe(duration.Seconds())
}

func (p *PrometheusMetrics) ObservePlannerTokens(provider string, model string, tokens int) {
	p.plannerTokens.WithLabelValues(provider, model).Add(float64(tokens))
}

// ObserveToolCall counts tool calls by outcome. The server is not used as a
// label to keep cardinality bounded by the catalog size.
func (p *PrometheusMetrics) ObserveToolCall(_ string, err error) {
	p.toolCalls.WithLabelValues(statusLabel(err)).Inc()
}

var _ domain.Metrics = (*PrometheusMetrics)(nil)
