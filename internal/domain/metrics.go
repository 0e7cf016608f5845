package domain

import "time"

// RebuildReason labels why the vector index was rebuilt.
type RebuildReason string

const (
	RebuildForced      RebuildReason = "forced"
	RebuildEmptyStore  RebuildReason = "empty_store"
	RebuildStaleStamp  RebuildReason = "stale_stamp"
	RebuildOpenFailed  RebuildReason = "open_failed"
	RebuildProbeFailed RebuildReason = "probe_failed"
)

// Metrics records operational metrics for indexing, search and execution.
type Metrics interface {
	ObserveIndexRebuild(reason RebuildReason, duration time.Duration, chunks int, err error)
	ObserveIndexReuse()
	ObserveSearch(duration time.Duration, err error)
	ObservePlannerLatency(provider string, model string, duration time.Duration)
	ObservePlannerTokens(provider string, model string, tokens int)
	ObserveToolCall(server string, err error)
}

// NoopMetrics discards every observation.
type NoopMetrics struct{}

func (NoopMetrics) ObserveIndexRebuild(RebuildReason, time.Duration, int, error) {}
func (NoopMetrics) ObserveIndexReuse()                                           {}
func (NoopMetrics) ObserveSearch(time.Duration, error)                           {}
func (NoopMetrics) ObservePlannerLatency(string, string, time.Duration)          {}
func (NoopMetrics) ObservePlannerTokens(string, string, int)                     {}
func (NoopMetrics) ObserveToolCall(string, error)                                {}

var _ Metrics = NoopMetrics{}
