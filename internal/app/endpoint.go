package app

import (
	"fmt"
	"net/url"
	"strings"

	"agentnet/internal/domain"
)

// Endpoints maps catalog child links onto hosted tool server URLs.
type Endpoints struct {
	BaseURL    string
	PathPrefix string
}

// NewEndpoints applies the hosted defaults to empty fields.
func NewEndpoints(cfg domain.ToolServerConfig) Endpoints {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = domain.DefaultToolServerBaseURL
	}
	prefix := strings.TrimSpace(cfg.PathPrefix)
	if prefix == "" {
		prefix = domain.DefaultToolServerPrefix
	}
	return Endpoints{BaseURL: base, PathPrefix: prefix}
}

// DeriveEndpoint builds the default hosted endpoint for childLink.
// "/server/notion" becomes "https://server.smithery.ai/notion/mcp".
func DeriveEndpoint(childLink string) (string, error) {
	return NewEndpoints(domain.ToolServerConfig{}).Derive(childLink)
}

// ExtractServerSlug returns the first path segment after the server prefix.
func ExtractServerSlug(childLink string) (string, error) {
	return NewEndpoints(domain.ToolServerConfig{}).Slug(childLink)
}

func (e Endpoints) Derive(childLink string) (string, error) {
	if strings.TrimSpace(childLink) == "" {
		return "", domain.E(domain.CodeEndpointDerivation, "app.DeriveEndpoint", "child link is required to derive the endpoint", nil)
	}
	path := strings.Trim(e.stripPrefix(strings.TrimSpace(childLink)), "/")
	if path == "" {
		return "", domain.E(domain.CodeEndpointDerivation, "app.DeriveEndpoint", fmt.Sprintf("unable to derive endpoint path from child link %q", childLink), nil)
	}
	endpoint := e.BaseURL + "/" + path + "/mcp"
	if _, err := url.Parse(endpoint); err != nil {
		return "", domain.E(domain.CodeEndpointDerivation, "app.DeriveEndpoint", fmt.Sprintf("invalid endpoint for child link %q", childLink), err)
	}
	return endpoint, nil
}

func (e Endpoints) Slug(childLink string) (string, error) {
	path := strings.Trim(e.stripPrefix("/"+strings.Trim(strings.TrimSpace(childLink), "/")), "/")
	slug, _, _ := strings.Cut(path, "/")
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return "", domain.E(domain.CodeEndpointDerivation, "app.ExtractServerSlug", fmt.Sprintf("unable to derive server slug from child link %q", childLink), nil)
	}
	return slug, nil
}

// stripPrefix removes the path prefix only on a segment boundary.
func (e Endpoints) stripPrefix(link string) string {
	prefix := "/" + strings.Trim(e.PathPrefix, "/")
	if prefix == "/" {
		return link
	}
	if link == prefix || strings.HasPrefix(link, prefix+"/") {
		return link[len(prefix):]
	}
	return link
}
