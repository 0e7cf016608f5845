package planner

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	"go.uber.org/zap"

	"agentnet/internal/domain"
)

const systemPrompt = "You produce ONLY valid JSON that conforms strictly to the provided JSON Schema. " +
	"Never include comments or additional text."

// PlanContext describes the target server to the language model.
type PlanContext struct {
	AgentID       string   `json:"id"`
	Name          string   `json:"name"`
	Provider      string   `json:"provider"`
	Capabilities  []string `json:"capabilities"`
	Tags          []string `json:"tags"`
	Description   string   `json:"description"`
	SearchSnippet string   `json:"search_snippet"`
	Endpoint      string   `json:"endpoint"`
}

type promptPayload struct {
	Task   string         `json:"task"`
	Agent  PlanContext    `json:"agent"`
	Schema map[string]any `json:"schema"`
}

// Planner asks a language model for tool arguments and validates them.
type Planner struct {
	completer domain.ChatCompleter
	logger    *zap.Logger
}

func New(completer domain.ChatCompleter, logger *zap.Logger) *Planner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Planner{completer: completer, logger: logger.Named("planner")}
}

// PlanArguments returns arguments for a tool with the given input schema.
// The call is single-shot; retries are left to the caller.
func (p *Planner) PlanArguments(ctx context.Context, schema map[string]any, task string, pc PlanContext) (map[string]any, error) {
	if schema == nil {
		schema = map[string]any{"type": "object"}
	}
	resolved, err := resolveSchema(schema)
	if err != nil {
		return nil, err
	}
	if pc.Capabilities == nil {
		pc.Capabilities = []string{}
	}
	if pc.Tags == nil {
		pc.Tags = []string{}
	}

	payload, err := json.Marshal(promptPayload{Task: task, Agent: pc, Schema: schema})
	if err != nil {
		return nil, fmt.Errorf("encode planner payload: %w", err)
	}
	raw, err := p.completer.Complete(ctx, domain.CompletionRequest{
		System:   systemPrompt,
		Messages: []domain.ConversationTurn{{Role: domain.RoleUser, Content: string(payload)}},
		JSONOnly: true,
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, domain.E(domain.CodePlanning, "planner.PlanArguments", "language model call failed", err)
	}

	args, err := ParseArguments(raw)
	if err != nil {
		return nil, err
	}
	if err := resolved.Validate(args); err != nil {
		p.logger.Debug("planned arguments rejected", zap.Error(err))
		return nil, domain.E(domain.CodeSchemaValidation, "planner.PlanArguments",
			"model output failed schema validation: "+err.Error(), err)
	}
	return args, nil
}

// ParseArguments decodes model output that must be a single JSON object.
func ParseArguments(raw string) (map[string]any, error) {
	var decoded any
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return nil, domain.E(domain.CodePlanning, "planner.ParseArguments", "model output is not valid JSON", err)
	}
	args, ok := decoded.(map[string]any)
	if !ok {
		return nil, domain.E(domain.CodePlanning, "planner.ParseArguments",
			fmt.Sprintf("model output must be a JSON object, got %T", decoded), nil)
	}
	return args, nil
}

// resolveSchema compiles a tool input schema for validation under 2020-12
// rules. A declared $schema dialect is dropped and draft-07 tuple keywords are
// rewritten by upgradeDraft07.
func resolveSchema(schema map[string]any) (*jsonschema.Resolved, error) {
	cleaned, _ := upgradeDraft07(schema).(map[string]any)
	delete(cleaned, "$schema")
	raw, err := json.Marshal(cleaned)
	if err != nil {
		return nil, domain.E(domain.CodeInvalidArgument, "planner.resolveSchema", "encode tool schema", err)
	}
	var parsed jsonschema.Schema
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, domain.E(domain.CodeInvalidArgument, "planner.resolveSchema", "tool schema is not a valid JSON Schema", err)
	}
	resolved, err := parsed.Resolve(nil)
	if err != nil {
		return nil, domain.E(domain.CodeInvalidArgument, "planner.resolveSchema", "resolve tool schema", err)
	}
	return resolved, nil
}

// literalKeywords hold instance data rather than subschemas.
var literalKeywords = map[string]bool{"const": true, "default": true, "enum": true, "examples": true}

// upgradeDraft07 returns a copy of node with array-form "items" turned into
// "prefixItems" and "additionalItems" moved to "items", at every depth.
func upgradeDraft07(node any) any {
	switch v := node.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, value := range v {
			if literalKeywords[key] {
				out[key] = value
				continue
			}
			out[key] = upgradeDraft07(value)
		}
		if tuple, ok := out["items"].([]any); ok {
			out["prefixItems"] = tuple
			delete(out, "items")
			if extra, ok := out["additionalItems"]; ok {
				out["items"] = extra
			}
			delete(out, "additionalItems")
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, value := range v {
			out[i] = upgradeDraft07(value)
		}
		return out
	default:
		return node
	}
}
