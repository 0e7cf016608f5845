package app

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"agentnet/internal/domain"
	"agentnet/internal/infra/planner"
	"agentnet/internal/infra/telemetry"
	"agentnet/internal/infra/toolserver"
)

const directSystemPrompt = "You are a helpful assistant. Answer the user's request directly and concisely."

// ExecuteRequest runs a task against one ranked server or in direct mode.
type ExecuteRequest struct {
	Instruction string
	// Clarification replaces Instruction when it is not blank.
	Clarification string
	ServerName    string
	ChildLink     string
	Mode          string
	// EndpointOverride skips endpoint derivation.
	EndpointOverride string
	Description      string
	Why              string
	History          []domain.ConversationTurn
	DryRun           bool
}

// RunReport is carried as the envelope's raw output.
type RunReport struct {
	Mode    string         `json:"mode"`
	Server  string         `json:"server,omitempty"`
	Tool    string         `json:"tool,omitempty"`
	Args    map[string]any `json:"args,omitempty"`
	Result  any            `json:"result,omitempty"`
	PageURL string         `json:"page_url,omitempty"`
	PageID  string         `json:"page_id,omitempty"`
	Tools   []string       `json:"tools,omitempty"`
	DryRun  bool           `json:"dry_run,omitempty"`
	Message string         `json:"message,omitempty"`
}

// ArgumentPlanner produces schema-valid arguments for a tool.
type ArgumentPlanner interface {
	PlanArguments(ctx context.Context, schema map[string]any, task string, pc planner.PlanContext) (map[string]any, error)
}

type OrchestratorOptions struct {
	Dialer       domain.ToolServerDialer
	Planner      ArgumentPlanner
	Completer    domain.ChatCompleter
	Endpoints    Endpoints
	HistoryTurns int
	Metrics      domain.Metrics
	Logger       *zap.Logger
}

// Orchestrator executes a task either through a tool server or by direct answer.
type Orchestrator struct {
	dialer       domain.ToolServerDialer
	planner      ArgumentPlanner
	completer    domain.ChatCompleter
	endpoints    Endpoints
	historyTurns int
	metrics      domain.Metrics
	logger       *zap.Logger
}

func NewOrchestrator(opts OrchestratorOptions) *Orchestrator {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = domain.NoopMetrics{}
	}
	endpoints := opts.Endpoints
	if endpoints.BaseURL == "" {
		endpoints = NewEndpoints(domain.ToolServerConfig{PathPrefix: endpoints.PathPrefix})
	}
	turns := opts.HistoryTurns
	if turns <= 0 {
		turns = domain.DefaultHistoryTurns
	}
	return &Orchestrator{
		dialer:       opts.Dialer,
		planner:      opts.Planner,
		completer:    opts.Completer,
		endpoints:    endpoints,
		historyTurns: turns,
		metrics:      metrics,
		logger:       logger.Named("orchestrator"),
	}
}

// IsDirect reports whether req bypasses tool discovery.
func IsDirect(req ExecuteRequest) bool {
	if strings.EqualFold(strings.TrimSpace(req.Mode), domain.DirectMode) {
		return true
	}
	return strings.TrimSpace(req.ChildLink) == "" && strings.TrimSpace(req.EndpointOverride) == ""
}

func (o *Orchestrator) Execute(ctx context.Context, req ExecuteRequest) (domain.AgentRunEnvelope, error) {
	instruction := strings.TrimSpace(req.Clarification)
	if instruction == "" {
		instruction = strings.TrimSpace(req.Instruction)
	}
	if instruction == "" {
		return domain.AgentRunEnvelope{}, domain.E(domain.CodeInvalidArgument, "app.Execute", "instruction is required", nil)
	}
	task := WithHistory(instruction, req.History, o.historyTurns)

	mode := "tool"
	if IsDirect(req) {
		mode = domain.DirectMode
	}
	logger := telemetry.LoggerWithRequest(ctx, o.logger).With(
		telemetry.ServerField(req.ServerName),
		telemetry.ModeField(mode),
	)
	logger.Info("execution started", telemetry.EventField(telemetry.EventExecuteStart), zap.Bool("dry_run", req.DryRun))

	started := time.Now()
	var (
		envelope domain.AgentRunEnvelope
		err      error
	)
	if mode == domain.DirectMode {
		envelope, err = o.executeDirect(ctx, task, req)
	} else {
		envelope, err = o.executeTool(ctx, task, req, logger)
	}
	if err != nil {
		logger.Warn("execution failed",
			telemetry.EventField(telemetry.EventExecuteFailure),
			telemetry.DurationField(time.Since(started)),
			zap.Error(err),
		)
		return domain.AgentRunEnvelope{}, err
	}
	logger.Info("execution completed",
		telemetry.EventField(telemetry.EventExecuteSuccess),
		telemetry.DurationField(time.Since(started)),
	)
	return envelope, nil
}

func (o *Orchestrator) executeDirect(ctx context.Context, task string, req ExecuteRequest) (domain.AgentRunEnvelope, error) {
	if o.completer == nil {
		return domain.AgentRunEnvelope{}, domain.E(domain.CodeUnavailable, "app.Execute", "no language model configured for direct answers", nil)
	}
	answer, err := o.completer.Complete(ctx, domain.CompletionRequest{
		System:   directSystemPrompt,
		Messages: []domain.ConversationTurn{{Role: domain.RoleUser, Content: task}},
	})
	if err != nil {
		return domain.AgentRunEnvelope{}, err
	}
	return domain.AgentRunEnvelope{
		MCPBaseURL:  nil,
		FinalOutput: answer,
		RawOutput: RunReport{
			Mode:   domain.DirectMode,
			Server: req.ServerName,
		},
	}, nil
}

func (o *Orchestrator) executeTool(ctx context.Context, task string, req ExecuteRequest, logger *zap.Logger) (domain.AgentRunEnvelope, error) {
	if o.dialer == nil || o.planner == nil {
		return domain.AgentRunEnvelope{}, domain.E(domain.CodeUnavailable, "app.Execute", "tool execution is not configured", nil)
	}

	endpoint := strings.TrimSpace(req.EndpointOverride)
	if endpoint == "" {
		derived, err := o.endpoints.Derive(req.ChildLink)
		if err != nil {
			return domain.AgentRunEnvelope{}, err
		}
		endpoint = derived
	}
	slug, err := o.endpoints.Slug(req.ChildLink)
	if err != nil {
		slug = req.ServerName
	}
	logger = logger.With(telemetry.EndpointField(endpoint))

	session, err := o.dialer.Connect(ctx, endpoint)
	if err != nil {
		return domain.AgentRunEnvelope{}, err
	}
	defer func() {
		if closeErr := session.Close(); closeErr != nil {
			logger.Debug("tool session close failed", zap.Error(closeErr))
		}
	}()

	tools, err := session.ListTools(ctx)
	if err != nil {
		return domain.AgentRunEnvelope{}, err
	}
	report := RunReport{Mode: "tool", Server: req.ServerName, DryRun: req.DryRun}
	if len(tools) == 0 {
		if req.DryRun {
			report.Tools = []string{}
			report.Message = "No tools available"
			return envelopeFor(endpoint, report.Message, report), nil
		}
		return domain.AgentRunEnvelope{}, domain.E(domain.CodeNoTools, "app.Execute", "no tools available from selected server", nil)
	}

	chosen, ok := planner.SelectTool(task, tools)
	if !ok {
		return domain.AgentRunEnvelope{}, domain.E(domain.CodeNoTools, "app.Execute", "failed to choose a tool for the task", nil)
	}
	report.Tool = chosen.Name
	report.Tools = toolNames(tools)

	args, err := o.planner.PlanArguments(ctx, chosen.InputSchema, task, planner.PlanContext{
		AgentID:       slug,
		Name:          req.ServerName,
		Provider:      providerOf(endpoint),
		Description:   req.Description,
		SearchSnippet: req.Why,
		Endpoint:      endpoint,
	})
	if err != nil {
		return domain.AgentRunEnvelope{}, err
	}
	report.Args = args

	if req.DryRun {
		return envelopeFor(endpoint, renderJSON(args), report), nil
	}
	report.Tools = nil

	result, err := session.CallTool(ctx, chosen.Name, args)
	o.metrics.ObserveToolCall(slug, err)
	logger.Info("tool called",
		telemetry.EventField(telemetry.EventToolCall),
		telemetry.ToolField(chosen.Name),
		zap.Bool("ok", err == nil),
	)
	if err != nil {
		return domain.AgentRunEnvelope{}, err
	}

	report.Result = plain(result)
	report.PageURL, report.PageID = toolserver.ExtractResultRefs(result)
	return envelopeFor(endpoint, finalOutput(report), report), nil
}

func envelopeFor(endpoint, output string, report RunReport) domain.AgentRunEnvelope {
	base := endpoint
	return domain.AgentRunEnvelope{
		MCPBaseURL:  &base,
		FinalOutput: output,
		RawOutput:   report,
	}
}

// finalOutput prefers the extracted reference over the raw result.
func finalOutput(report RunReport) string {
	switch {
	case report.PageURL != "":
		return report.PageURL
	case report.PageID != "":
		return report.PageID
	}
	if text, ok := report.Result.(string); ok {
		return text
	}
	return renderJSON(report.Result)
}

func plain(result domain.ToolResult) any {
	if result == nil {
		return nil
	}
	return result.Plain()
}

func renderJSON(v any) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return ""
	}
	return string(data)
}

func toolNames(tools []domain.ToolDescriptor) []string {
	names := make([]string, 0, len(tools))
	for _, tool := range tools {
		names = append(names, tool.Name)
	}
	return names
}

func providerOf(endpoint string) string {
	parsed, err := url.Parse(endpoint)
	if err != nil {
		return ""
	}
	return parsed.Hostname()
}
