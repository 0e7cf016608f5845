package telemetry

import (
	"time"

	"go.uber.org/zap"
)

const (
	FieldEvent      = "event"
	FieldCatalog    = "catalog"
	FieldServer     = "server"
	FieldTool       = "tool"
	FieldEndpoint   = "endpoint"
	FieldMode       = "mode"
	FieldDurationMs = "duration_ms"
	FieldRequestID  = "request_id"
	FieldRoute      = "route"
	FieldTraceID    = "trace_id"
	FieldSpanID     = "span_id"
)

const (
	EventSearch         = "search"
	EventSearchFailure  = "search_failure"
	EventExecuteStart   = "execute_start"
	EventExecuteSuccess = "execute_success"
	EventExecuteFailure = "execute_failure"
	EventToolCall       = "tool_call"
	EventCatalogChange  = "catalog_change"
	EventReindexFailure = "reindex_failure"
)

func EventField(event string) zap.Field {
	return zap.String(FieldEvent, event)
}

func CatalogField(path string) zap.Field {
	return zap.String(FieldCatalog, path)
}

func ServerField(server string) zap.Field {
	return zap.String(FieldServer, server)
}

func ToolField(tool string) zap.Field {
	return zap.String(FieldTool, tool)
}

// EndpointField logs a tool server endpoint. Query strings are dropped since
// they may carry credentials.
func EndpointField(endpoint string) zap.Field {
	for i := 0; i < len(endpoint); i++ {
		if endpoint[i] == '?' {
			endpoint = endpoint[:i]
			break
		}
	}
	return zap.String(FieldEndpoint, endpoint)
}

func ModeField(mode string) zap.Field {
	return zap.String(FieldMode, mode)
}

func DurationField(duration time.Duration) zap.Field {
	return zap.Int64(FieldDurationMs, duration.Milliseconds())
}

func RequestIDField(value string) zap.Field {
	return zap.String(FieldRequestID, value)
}

func RouteField(value string) zap.Field {
	return zap.String(FieldRoute, value)
}

func TraceIDField(value string) zap.Field {
	return zap.String(FieldTraceID, value)
}

func SpanIDField(value string) zap.Field {
	return zap.String(FieldSpanID, value)
}
