package domain

import "encoding/json"

// AgentRunEnvelope wraps the outcome of one execution request.
type AgentRunEnvelope struct {
	MCPBaseURL  *string `json:"mcp_base_url"`
	FinalOutput string  `json:"final_output"`
	RawOutput   any     `json:"raw_output"`
}

// BaseURL returns the tool server endpoint or "" in direct mode.
func (e AgentRunEnvelope) BaseURL() string {
	if e.MCPBaseURL == nil {
		return ""
	}
	return *e.MCPBaseURL
}

// ConversationTurn is one prior exchange supplied as history.
type ConversationTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ToolDescriptor is a tool as advertised by a live tool server.
type ToolDescriptor struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	InputSchema map[string]any `json:"input_schema,omitempty"`
}

// ToolResult is the closed set of shapes a tool call result is reduced to.
type ToolResult interface {
	isToolResult()
	// Plain returns the result as plain Go values suitable for JSON encoding.
	Plain() any
}

type PrimitiveValue struct {
	Value any
}

type SequenceValue struct {
	Items []ToolResult
}

type MappingValue struct {
	Entries map[string]ToolResult
}

// RecordValue is a mapping whose field names are fixed by a known record type.
type RecordValue struct {
	Type   string
	Fields map[string]ToolResult
}

func (PrimitiveValue) isToolResult() {}
func (SequenceValue) isToolResult()  {}
func (MappingValue) isToolResult()   {}
func (RecordValue) isToolResult()    {}

func (v PrimitiveValue) Plain() any { return v.Value }

func (v SequenceValue) Plain() any {
	out := make([]any, 0, len(v.Items))
	for _, item := range v.Items {
		out = append(out, plainOf(item))
	}
	return out
}

func (v MappingValue) Plain() any {
	out := make(map[string]any, len(v.Entries))
	for key, item := range v.Entries {
		out[key] = plainOf(item)
	}
	return out
}

func (v RecordValue) Plain() any {
	out := make(map[string]any, len(v.Fields)+1)
	for key, item := range v.Fields {
		out[key] = plainOf(item)
	}
	if _, ok := out["type"]; !ok && v.Type != "" {
		out["type"] = v.Type
	}
	return out
}

func plainOf(v ToolResult) any {
	if v == nil {
		return nil
	}
	return v.Plain()
}

// MarshalToolResult encodes a tool result as JSON.
func MarshalToolResult(v ToolResult) (json.RawMessage, error) {
	return json.Marshal(plainOf(v))
}
