package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestEnsureRequestMeta_GeneratesID(t *testing.T) {
	ctx, meta := EnsureRequestMeta(context.Background(), " ", "/api/search")
	require.NotEmpty(t, meta.RequestID)
	assert.Equal(t, "/api/search", meta.Route)

	got, ok := RequestIDFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, meta.RequestID, got)
}

func TestEnsureRequestMeta_KeepsExisting(t *testing.T) {
	ctx, first := EnsureRequestMeta(context.Background(), "req-123", "search")

	_, second := EnsureRequestMeta(ctx, "", "")
	assert.Equal(t, first, second)

	_, third := EnsureRequestMeta(ctx, "req-456", "")
	assert.Equal(t, "req-456", third.RequestID)
	assert.Equal(t, "search", third.Route)
}

func TestEnsureRequestMeta_CapturesSpan(t *testing.T) {
	traceID, err := trace.TraceIDFromHex("0123456789abcdef0123456789abcdef")
	require.NoError(t, err)
	spanID, err := trace.SpanIDFromHex("0123456789abcdef")
	require.NoError(t, err)
	spanCtx := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: traceID,
		SpanID:  spanID,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), spanCtx)

	_, meta := EnsureRequestMeta(ctx, "req-1", "")
	assert.Equal(t, traceID.String(), meta.TraceID)
	assert.Equal(t, spanID.String(), meta.SpanID)

	gotTrace, gotSpan := TraceSpanFromContext(context.Background())
	assert.Empty(t, gotTrace)
	assert.Empty(t, gotSpan)
}

func TestRequestFields(t *testing.T) {
	fields := RequestFields(RequestMeta{
		RequestID: "req-1",
		Route:     "run",
		TraceID:   "trace-1",
	})
	require.Len(t, fields, 3)
	assert.Equal(t, FieldRequestID, fields[0].Key)
	assert.Equal(t, FieldRoute, fields[1].Key)
	assert.Equal(t, FieldTraceID, fields[2].Key)
	assert.Empty(t, RequestFields(RequestMeta{}))
}

func TestLoggerWithRequest(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	ctx, _ := EnsureRequestMeta(context.Background(), "req-9", "/api/execute")

	LoggerWithRequest(ctx, zap.New(core)).Info("hello")
	LoggerWithRequest(context.Background(), zap.New(core)).Info("bare")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "req-9", entries[0].ContextMap()[FieldRequestID])
	assert.Equal(t, "/api/execute", entries[0].ContextMap()[FieldRoute])
	assert.Empty(t, entries[1].Context)
	assert.NotNil(t, LoggerWithRequest(ctx, nil))
}

func TestEndpointFieldDropsQuery(t *testing.T) {
	field := EndpointField("https://server.smithery.ai/notion/mcp?api_key=secret")
	assert.Equal(t, FieldEndpoint, field.Key)
	assert.Equal(t, "https://server.smithery.ai/notion/mcp", field.String)
}
