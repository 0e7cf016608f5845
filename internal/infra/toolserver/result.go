package toolserver

import (
	"encoding/base64"
	"encoding/json"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"agentnet/internal/domain"
)

// ConvertResult reduces an MCP call result to a ToolResult. Structured
// content wins over content blocks; a single block is returned unwrapped.
func ConvertResult(res *mcp.CallToolResult) domain.ToolResult {
	if res == nil {
		return domain.PrimitiveValue{}
	}
	if res.StructuredContent != nil {
		return FromValue(normalize(res.StructuredContent))
	}
	items := make([]domain.ToolResult, 0, len(res.Content))
	for _, content := range res.Content {
		items = append(items, convertContent(content))
	}
	if len(items) == 1 {
		return items[0]
	}
	return domain.SequenceValue{Items: items}
}

func convertContent(content mcp.Content) domain.ToolResult {
	switch c := content.(type) {
	case *mcp.TextContent:
		if parsed, ok := parseJSONText(c.Text); ok {
			return FromValue(parsed)
		}
		return domain.RecordValue{Type: "text", Fields: map[string]domain.ToolResult{
			"text": domain.PrimitiveValue{Value: c.Text},
		}}
	case *mcp.ImageContent:
		return domain.RecordValue{Type: "image", Fields: map[string]domain.ToolResult{
			"mimeType": domain.PrimitiveValue{Value: c.MIMEType},
			"data":     domain.PrimitiveValue{Value: base64.StdEncoding.EncodeToString(c.Data)},
		}}
	case *mcp.AudioContent:
		return domain.RecordValue{Type: "audio", Fields: map[string]domain.ToolResult{
			"mimeType": domain.PrimitiveValue{Value: c.MIMEType},
			"data":     domain.PrimitiveValue{Value: base64.StdEncoding.EncodeToString(c.Data)},
		}}
	case *mcp.ResourceLink:
		return domain.RecordValue{Type: "resource_link", Fields: map[string]domain.ToolResult{
			"uri":         domain.PrimitiveValue{Value: c.URI},
			"name":        domain.PrimitiveValue{Value: c.Name},
			"description": domain.PrimitiveValue{Value: c.Description},
			"mimeType":    domain.PrimitiveValue{Value: c.MIMEType},
		}}
	case *mcp.EmbeddedResource:
		fields := map[string]domain.ToolResult{}
		if c.Resource != nil {
			fields["uri"] = domain.PrimitiveValue{Value: c.Resource.URI}
			fields["mimeType"] = domain.PrimitiveValue{Value: c.Resource.MIMEType}
			if c.Resource.Text != "" {
				fields["text"] = domain.PrimitiveValue{Value: c.Resource.Text}
			}
		}
		return domain.RecordValue{Type: "resource", Fields: fields}
	default:
		return FromValue(normalize(content))
	}
}

// FromValue maps decoded JSON values onto ToolResult variants.
func FromValue(v any) domain.ToolResult {
	switch value := v.(type) {
	case map[string]any:
		entries := make(map[string]domain.ToolResult, len(value))
		for key, item := range value {
			entries[key] = FromValue(item)
		}
		return domain.MappingValue{Entries: entries}
	case []any:
		items := make([]domain.ToolResult, 0, len(value))
		for _, item := range value {
			items = append(items, FromValue(item))
		}
		return domain.SequenceValue{Items: items}
	default:
		return domain.PrimitiveValue{Value: value}
	}
}

// ExtractResultRefs finds the first URL-like and ID-like string fields in a
// result, checking keys in priority order. Sequences are searched item by item.
func ExtractResultRefs(result domain.ToolResult) (ref string, id string) {
	switch r := result.(type) {
	case domain.MappingValue:
		return firstString(r.Entries, domain.ResultURLKeys), firstString(r.Entries, domain.ResultIDKeys)
	case domain.RecordValue:
		return firstString(r.Fields, domain.ResultURLKeys), firstString(r.Fields, domain.ResultIDKeys)
	case domain.SequenceValue:
		for _, item := range r.Items {
			itemRef, itemID := ExtractResultRefs(item)
			if ref == "" {
				ref = itemRef
			}
			if id == "" {
				id = itemID
			}
			if ref != "" && id != "" {
				break
			}
		}
	}
	return ref, id
}

func firstString(fields map[string]domain.ToolResult, keys []string) string {
	for _, key := range keys {
		value, ok := fields[key].(domain.PrimitiveValue)
		if !ok {
			continue
		}
		if s, ok := value.Value.(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

func parseJSONText(text string) (any, bool) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" || (trimmed[0] != '{' && trimmed[0] != '[') {
		return nil, false
	}
	var parsed any
	if err := json.Unmarshal([]byte(trimmed), &parsed); err != nil {
		return nil, false
	}
	return parsed, true
}

// normalize round-trips a value through JSON so nested types become plain maps and slices.
func normalize(v any) any {
	raw, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return v
	}
	return out
}
