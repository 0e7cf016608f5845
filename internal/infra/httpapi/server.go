package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"agentnet/internal/app"
	"agentnet/internal/domain"
	"agentnet/internal/infra/telemetry"
)

const (
	maxBodyBytes  = 1 << 20
	maxTopServers = 10
)

// Searcher runs catalog searches.
type Searcher interface {
	Search(ctx context.Context, req app.SearchRequest) (app.SearchResponse, error)
}

// Executor runs tasks against a selected server.
type Executor interface {
	Execute(ctx context.Context, req app.ExecuteRequest) (domain.AgentRunEnvelope, error)
}

type Options struct {
	Search   Searcher
	Execute  Executor
	Gatherer prometheus.Gatherer
	Logger   *zap.Logger
}

type handler struct {
	search  Searcher
	execute Executor
	logger  *zap.Logger
}

// NewRouter returns the JSON API handler.
func NewRouter(opts Options) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &handler{
		search:  opts.Search,
		execute: opts.Execute,
		logger:  logger.Named("http"),
	}
	gatherer := opts.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestMeta)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route("/api", func(r chi.Router) {
		r.Post("/search", h.handleSearch)
		r.Post("/execute", h.handleExecute)
	})
	return r
}

// requestMeta attaches request and trace identifiers to the context and echoes
// the request ID.
func requestMeta(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, meta := telemetry.EnsureRequestMeta(r.Context(), r.Header.Get(telemetry.RequestIDHeader), r.URL.Path)
		w.Header().Set(telemetry.RequestIDHeader, meta.RequestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type searchPayload struct {
	Query       string `json:"query"`
	Instruction string `json:"instruction"`
	Catalog     string `json:"catalog"`
	TopServers  int    `json:"top_servers"`
	KChunks     int    `json:"k_chunks"`
	Reindex     bool   `json:"reindex"`
	Direct      *bool  `json:"direct_option"`
	Mode        string `json:"mode"`
}

type searchResult struct {
	Results     []domain.RankedServer `json:"results"`
	Instruction string                `json:"instruction"`
	Catalog     string                `json:"catalog"`
	Rebuilt     bool                  `json:"rebuilt"`
}

func (h *handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	var payload searchPayload
	if err := decodeBody(w, r, &payload); err != nil {
		h.writeError(w, r, err)
		return
	}
	if payload.TopServers < 0 || payload.TopServers > maxTopServers {
		h.writeError(w, r, domain.E(domain.CodeInvalidArgument, "httpapi.search", "top_servers must be between 1 and 10", nil))
		return
	}
	if payload.KChunks < 0 {
		h.writeError(w, r, domain.E(domain.CodeInvalidArgument, "httpapi.search", "k_chunks must be positive", nil))
		return
	}
	mode := domain.RankingMode(strings.TrimSpace(payload.Mode))
	if mode != "" && mode != domain.RankingReciprocal && mode != domain.RankingFirstHit {
		h.writeError(w, r, domain.E(domain.CodeInvalidArgument, "httpapi.search", "unsupported ranking mode", nil))
		return
	}

	resp, err := h.search.Search(r.Context(), app.SearchRequest{
		Query:        payload.Query,
		CatalogPath:  payload.Catalog,
		KChunks:      payload.KChunks,
		TopServers:   payload.TopServers,
		ForceReindex: payload.Reindex,
		DirectOption: payload.Direct,
		Mode:         mode,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	instruction := strings.TrimSpace(payload.Instruction)
	if instruction == "" {
		instruction = payload.Query
	}
	writeJSON(w, http.StatusOK, searchResult{
		Results:     resp.Results,
		Instruction: instruction,
		Catalog:     resp.CatalogPath,
		Rebuilt:     resp.Rebuilt,
	})
}

type executePayload struct {
	Instruction   string                    `json:"instruction"`
	Clarified     string                    `json:"clarified_instruction"`
	ChildLink     string                    `json:"child_link"`
	ServerName    string                    `json:"server_name"`
	Mode          string                    `json:"mode"`
	BaseURL       string                    `json:"base_url_override"`
	History       []domain.ConversationTurn `json:"history"`
	DryRun        bool                      `json:"dry_run"`
	Description   string                    `json:"description"`
	Justification string                    `json:"why"`
}

func (h *handler) handleExecute(w http.ResponseWriter, r *http.Request) {
	var payload executePayload
	if err := decodeBody(w, r, &payload); err != nil {
		h.writeError(w, r, err)
		return
	}

	envelope, err := h.execute.Execute(r.Context(), app.ExecuteRequest{
		Instruction:      payload.Instruction,
		Clarification:    payload.Clarified,
		ServerName:       payload.ServerName,
		ChildLink:        payload.ChildLink,
		Mode:             payload.Mode,
		EndpointOverride: payload.BaseURL,
		Description:      payload.Description,
		Why:              payload.Justification,
		History:          payload.History,
		DryRun:           payload.DryRun,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope)
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return domain.E(domain.CodeInvalidArgument, "httpapi.decode", "invalid JSON body: "+err.Error(), err)
	}
	return nil
}

type errorBody struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"request_id,omitempty"`
}

func (h *handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code, ok := domain.CodeFrom(err)
	if !ok {
		code = domain.CodeInternal
	}
	status := StatusFor(code)
	requestID, _ := telemetry.RequestIDFromContext(r.Context())

	logger := telemetry.LoggerWithRequest(r.Context(), h.logger)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", zap.String("path", r.URL.Path), zap.String("code", string(code)), zap.Error(err))
	} else {
		logger.Info("request rejected", zap.String("path", r.URL.Path), zap.String("code", string(code)), zap.Error(err))
	}

	msg := err.Error()
	var domainErr *domain.Error
	if errors.As(err, &domainErr) && domainErr.Message != "" {
		msg = domainErr.Message
	}
	writeJSON(w, status, errorBody{Error: msg, Code: string(code), RequestID: requestID})
}

// StatusFor maps an error code to an HTTP status.
func StatusFor(code domain.ErrorCode) int {
	switch code {
	case domain.CodeInvalidArgument, domain.CodeEndpointDerivation:
		return http.StatusBadRequest
	case domain.CodeCatalogNotFound:
		return http.StatusNotFound
	case domain.CodeNoTools:
		return http.StatusConflict
	case domain.CodePlanning, domain.CodeSchemaValidation:
		return http.StatusUnprocessableEntity
	case domain.CodeEmbeddingProvider, domain.CodeToolCall:
		return http.StatusBadGateway
	case domain.CodeUnavailable:
		return http.StatusServiceUnavailable
	case domain.CodeCanceled:
		return 499
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
