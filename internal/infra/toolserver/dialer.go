package toolserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"agentnet/internal/domain"
)

const apiKeyParam = "api_key"

// ClientVersion is reported to tool servers during the MCP handshake.
var ClientVersion = "dev"

// Dialer connects to hosted tool servers over streamable HTTP.
type Dialer struct {
	cfg    domain.ToolServerConfig
	apiKey string
	base   http.RoundTripper
	logger *zap.Logger
}

type DialerOptions struct {
	Config domain.ToolServerConfig
	// Base overrides the underlying HTTP transport.
	Base   http.RoundTripper
	Logger *zap.Logger
}

func NewDialer(opts DialerOptions) *Dialer {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	apiKey := strings.TrimSpace(opts.Config.APIKey)
	if apiKey == "" && opts.Config.APIKeyEnvVar != "" {
		apiKey = strings.TrimSpace(os.Getenv(opts.Config.APIKeyEnvVar))
	}
	base := opts.Base
	if base == nil {
		base = http.DefaultTransport
	}
	return &Dialer{
		cfg:    opts.Config,
		apiKey: apiKey,
		base:   base,
		logger: logger.Named("toolserver"),
	}
}

// Connect opens an MCP session against endpoint.
func (d *Dialer) Connect(ctx context.Context, endpoint string) (domain.ToolSession, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, domain.E(domain.CodeEndpointDerivation, "toolserver.Connect", "tool server endpoint is required", nil)
	}
	target, err := withAPIKey(endpoint, d.apiKey)
	if err != nil {
		return nil, domain.E(domain.CodeEndpointDerivation, "toolserver.Connect", fmt.Sprintf("invalid endpoint %q", endpoint), err)
	}

	roundTripper, err := buildHeaderTransport(d.base, d.cfg.Headers)
	if err != nil {
		return nil, err
	}
	maxRetries := d.cfg.MaxRetries
	if maxRetries == 0 {
		maxRetries = domain.DefaultToolServerRetries
	}
	transport := &mcp.StreamableClientTransport{
		Endpoint:   target,
		HTTPClient: &http.Client{Transport: roundTripper},
		MaxRetries: maxRetries,
	}
	return Open(ctx, transport, endpoint, d.logger)
}

// Open runs the MCP handshake over transport and wraps the session.
func Open(ctx context.Context, transport mcp.Transport, endpoint string, logger *zap.Logger) (*Session, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	client := mcp.NewClient(&mcp.Implementation{Name: "agentnet", Version: ClientVersion}, nil)
	cs, err := client.Connect(ctx, transport, nil)
	if err != nil {
		return nil, domain.E(domain.CodeUnavailable, "toolserver.Connect", fmt.Sprintf("connect %s", endpoint), err)
	}
	logger.Debug("tool server connected", zap.String("endpoint", endpoint))
	return &Session{cs: cs, endpoint: endpoint, logger: logger}, nil
}

// withAPIKey appends the api_key query parameter when a key is configured.
func withAPIKey(endpoint, apiKey string) (string, error) {
	parsed, err := url.Parse(endpoint)
	if err != nil {
		return "", err
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return "", errors.New("endpoint must be an absolute URL")
	}
	if apiKey == "" {
		return parsed.String(), nil
	}
	query := parsed.Query()
	query.Set(apiKeyParam, apiKey)
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}

func buildHeaderTransport(base http.RoundTripper, configured map[string]string) (http.RoundTripper, error) {
	headers := http.Header{}
	for key, value := range configured {
		name := http.CanonicalHeaderKey(strings.TrimSpace(key))
		if name == "" {
			return nil, errors.New("http headers contain empty key")
		}
		headers.Set(name, value)
	}
	if len(headers) == 0 {
		return base, nil
	}
	return &headerRoundTripper{
		base:    base,
		headers: headers,
	}, nil
}

type headerRoundTripper struct {
	base    http.RoundTripper
	headers http.Header
}

func (h *headerRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	for key, values := range h.headers {
		req.Header.Del(key)
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}
	return h.base.RoundTrip(req)
}

var _ domain.ToolServerDialer = (*Dialer)(nil)
