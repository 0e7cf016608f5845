package toolserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"agentnet/internal/domain"
)

// Session is a connected MCP client session.
type Session struct {
	cs       *mcp.ClientSession
	endpoint string
	logger   *zap.Logger
}

// ListTools returns every tool the server advertises, following pagination.
func (s *Session) ListTools(ctx context.Context) ([]domain.ToolDescriptor, error) {
	var tools []domain.ToolDescriptor
	cursor := ""
	for {
		res, err := s.cs.ListTools(ctx, &mcp.ListToolsParams{Cursor: cursor})
		if err != nil {
			return nil, domain.E(domain.CodeUnavailable, "toolserver.ListTools", fmt.Sprintf("list tools at %s", s.endpoint), err)
		}
		for _, tool := range res.Tools {
			if tool == nil {
				continue
			}
			schema, err := schemaMap(tool.InputSchema)
			if err != nil {
				s.logger.Warn("tool input schema unreadable", zap.String("tool", tool.Name), zap.Error(err))
			}
			tools = append(tools, domain.ToolDescriptor{
				Name:        tool.Name,
				Description: tool.Description,
				InputSchema: schema,
			})
		}
		if res.NextCursor == "" {
			return tools, nil
		}
		cursor = res.NextCursor
	}
}

// CallTool invokes a tool. A result flagged as an error by the server is
// returned together with a TOOL_CALL error.
func (s *Session) CallTool(ctx context.Context, name string, args map[string]any) (domain.ToolResult, error) {
	if args == nil {
		args = map[string]any{}
	}
	res, err := s.cs.CallTool(ctx, &mcp.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		return nil, domain.E(domain.CodeToolCall, "toolserver.CallTool", fmt.Sprintf("call %s", name), err)
	}
	result := ConvertResult(res)
	if res.IsError {
		return result, domain.E(domain.CodeToolCall, "toolserver.CallTool",
			fmt.Sprintf("tool %s reported an error: %s", name, errorText(res)), nil)
	}
	return result, nil
}

func (s *Session) Close() error {
	return s.cs.Close()
}

func schemaMap(schema any) (map[string]any, error) {
	if schema == nil {
		return nil, nil
	}
	if m, ok := schema.(map[string]any); ok {
		return m, nil
	}
	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func errorText(res *mcp.CallToolResult) string {
	var parts []string
	for _, content := range res.Content {
		if text, ok := content.(*mcp.TextContent); ok && strings.TrimSpace(text.Text) != "" {
			parts = append(parts, strings.TrimSpace(text.Text))
		}
	}
	if len(parts) == 0 {
		return "no details"
	}
	return strings.Join(parts, "; ")
}

var _ domain.ToolSession = (*Session)(nil)
