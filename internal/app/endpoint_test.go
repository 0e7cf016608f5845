package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentnet/internal/domain"
)

func TestDeriveEndpoint(t *testing.T) {
	cases := []struct {
		name string
		link string
		want string
	}{
		{"prefixed", "/server/notion", "https://server.smithery.ai/notion/mcp"},
		{"padded", "  /server/notion/  ", "https://server.smithery.ai/notion/mcp"},
		{"nested", "/server/demo-app/tasks", "https://server.smithery.ai/demo-app/tasks/mcp"},
		{"bare", "notion", "https://server.smithery.ai/notion/mcp"},
		{"prefix lookalike", "/serverless/x", "https://server.smithery.ai/serverless/x/mcp"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := DeriveEndpoint(tc.link)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestDeriveEndpoint_Errors(t *testing.T) {
	for _, link := range []string{"", "   ", "/server", "/server/", "//"} {
		_, err := DeriveEndpoint(link)
		require.ErrorIs(t, err, domain.ErrEndpointDerivation, "link %q", link)
	}
}

func TestEndpoints_CustomBase(t *testing.T) {
	e := NewEndpoints(domain.ToolServerConfig{BaseURL: "http://localhost:9000/", PathPrefix: "/tools"})

	got, err := e.Derive("/tools/github")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:9000/github/mcp", got)

	slug, err := e.Slug("/tools/github/issues")
	require.NoError(t, err)
	assert.Equal(t, "github", slug)
}

func TestExtractServerSlug(t *testing.T) {
	slug, err := ExtractServerSlug(" /server/demo-app/tasks ")
	require.NoError(t, err)
	assert.Equal(t, "demo-app", slug)

	slug, err = ExtractServerSlug("notion")
	require.NoError(t, err)
	assert.Equal(t, "notion", slug)

	_, err = ExtractServerSlug("/server/")
	require.ErrorIs(t, err, domain.ErrEndpointDerivation)
}
