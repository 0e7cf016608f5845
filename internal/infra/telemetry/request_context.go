package telemetry

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const RequestIDHeader = "X-Request-Id"

type requestContextKey struct{}

// RequestMeta identifies one search or execute request across log lines.
// Route is the HTTP path or CLI command that started it.
type RequestMeta struct {
	RequestID string
	Route     string
	TraceID   string
	SpanID    string
}

func (m RequestMeta) IsZero() bool {
	return m.RequestID == "" && m.Route == "" && m.TraceID == "" && m.SpanID == ""
}

func RequestMetaFromContext(ctx context.Context) (RequestMeta, bool) {
	if ctx == nil {
		return RequestMeta{}, false
	}
	meta, ok := ctx.Value(requestContextKey{}).(RequestMeta)
	return meta, ok && !meta.IsZero()
}

func RequestIDFromContext(ctx context.Context) (string, bool) {
	meta, ok := RequestMetaFromContext(ctx)
	if !ok || meta.RequestID == "" {
		return "", false
	}
	return meta.RequestID, true
}

func TraceSpanFromContext(ctx context.Context) (string, string) {
	if ctx == nil {
		return "", ""
	}
	spanCtx := trace.SpanContextFromContext(ctx)
	if !spanCtx.IsValid() {
		return "", ""
	}
	return spanCtx.TraceID().String(), spanCtx.SpanID().String()
}

// EnsureRequestMeta stores request metadata on ctx. A blank requestID reuses
// the one already on ctx or generates a new UUID; a blank route keeps the
// existing route.
func EnsureRequestMeta(ctx context.Context, requestID, route string) (context.Context, RequestMeta) {
	if ctx == nil {
		ctx = context.Background()
	}
	requestID = strings.TrimSpace(requestID)
	existing, _ := RequestMetaFromContext(ctx)
	if requestID == "" {
		requestID = existing.RequestID
	}
	if requestID == "" {
		requestID = uuid.NewString()
	}
	if route == "" {
		route = existing.Route
	}
	traceID, spanID := TraceSpanFromContext(ctx)
	meta := RequestMeta{
		RequestID: requestID,
		Route:     route,
		TraceID:   traceID,
		SpanID:    spanID,
	}
	return context.WithValue(ctx, requestContextKey{}, meta), meta
}

func RequestFields(meta RequestMeta) []zap.Field {
	fields := make([]zap.Field, 0, 4)
	if meta.RequestID != "" {
		fields = append(fields, RequestIDField(meta.RequestID))
	}
	if meta.Route != "" {
		fields = append(fields, RouteField(meta.Route))
	}
	if meta.TraceID != "" {
		fields = append(fields, TraceIDField(meta.TraceID))
	}
	if meta.SpanID != "" {
		fields = append(fields, SpanIDField(meta.SpanID))
	}
	return fields
}

// LoggerWithRequest returns base annotated with the request metadata on ctx.
func LoggerWithRequest(ctx context.Context, base *zap.Logger) *zap.Logger {
	logger := base
	if logger == nil {
		logger = zap.NewNop()
	}
	meta, ok := RequestMetaFromContext(ctx)
	if !ok {
		return logger
	}
	return logger.With(RequestFields(meta)...)
}
