package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentnet/internal/domain"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "agentnet.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, "{}\n")

	cfg, err := NewLoader(nil).Load(path)
	require.NoError(t, err)

	dir := filepath.Dir(path)
	assert.Equal(t, dir, cfg.Catalog.BaseDir)
	assert.Equal(t, defaultCandidates, cfg.Catalog.Candidates)
	assert.Equal(t, filepath.Join(dir, domain.DefaultPersistDir), cfg.Index.PersistDir)
	assert.Equal(t, domain.DefaultCollectionName, cfg.Index.Collection)
	assert.Equal(t, domain.FingerprintContentHash, cfg.Index.Fingerprint)
	assert.Equal(t, domain.GranularityTool, cfg.Index.Granularity)
	assert.Equal(t, 5*time.Second, cfg.Index.OpenTimeout)
	assert.Equal(t, 200*time.Millisecond, cfg.Index.WatchDebounce)
	assert.Equal(t, domain.RankingReciprocal, cfg.Ranking.Mode)
	assert.Equal(t, domain.DefaultKChunks, cfg.Ranking.KChunks)
	assert.Equal(t, domain.DefaultTopServers, cfg.Ranking.TopServers)
	assert.Equal(t, domain.DefaultEmbeddingModel, cfg.Embedding.Model)
	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, domain.DefaultToolServerBaseURL, cfg.ToolServer.BaseURL)
	assert.Equal(t, domain.DefaultToolServerPrefix, cfg.ToolServer.PathPrefix)
	assert.Equal(t, domain.DefaultHTTPListenAddress, cfg.HTTP.ListenAddress)
}

func TestLoad_Overrides(t *testing.T) {
	path := writeConfig(t, `
catalog:
  path: catalogs/servers.json
index:
  persistDir: /var/lib/agentnet
  fingerprint: size
  granularity: server
ranking:
  mode: first_hit
  kChunks: 20
  topServers: 3
  directOption: true
toolServer:
  baseURL: http://localhost:9000/
  headers:
    X-Team: search
`)

	cfg, err := NewLoader(nil).Load(path)
	require.NoError(t, err)

	assert.Equal(t, "catalogs/servers.json", cfg.Catalog.Path)
	assert.Equal(t, "/var/lib/agentnet", cfg.Index.PersistDir)
	assert.Equal(t, domain.FingerprintSize, cfg.Index.Fingerprint)
	assert.Equal(t, domain.GranularityServer, cfg.Index.Granularity)
	assert.Equal(t, domain.RankingFirstHit, cfg.Ranking.Mode)
	assert.Equal(t, 20, cfg.Ranking.KChunks)
	assert.Equal(t, 3, cfg.Ranking.TopServers)
	assert.True(t, cfg.Ranking.DirectOption)
	assert.Equal(t, "http://localhost:9000", cfg.ToolServer.BaseURL)
	assert.Equal(t, "search", cfg.ToolServer.Headers["x-team"])
}

func TestLoad_ExpandsEnv(t *testing.T) {
	t.Setenv("AGENTNET_TEST_K", "7")
	t.Setenv("AGENTNET_TEST_MODEL", "gpt-test")
	path := writeConfig(t, `
ranking:
  kChunks: ${AGENTNET_TEST_K}
llm:
  model: "${AGENTNET_TEST_MODEL}"
  baseURL: ${AGENTNET_TEST_UNSET:-http://llm.local}
`)

	cfg, err := NewLoader(nil).Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Ranking.KChunks)
	assert.Equal(t, "gpt-test", cfg.LLM.Model)
	assert.Equal(t, "http://llm.local", cfg.LLM.BaseURL)
}

func TestLoad_EnvPrefixOverride(t *testing.T) {
	t.Setenv("AGENTNET_RANKING_TOPSERVERS", "9")
	path := writeConfig(t, "{}\n")

	cfg, err := NewLoader(nil).Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9, cfg.Ranking.TopServers)
}

func TestLoad_LegacyCatalogEnv(t *testing.T) {
	t.Setenv(LegacyCatalogEnvVar, "/data/mcp_description.json")
	path := writeConfig(t, "{}\n")

	cfg, err := NewLoader(nil).Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/data/mcp_description.json", cfg.Catalog.Path)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := NewLoader(nil).Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config")
}

func TestLoad_ReportsAllInvalidFields(t *testing.T) {
	path := writeConfig(t, `
index:
  fingerprint: mtime
  granularity: paragraph
ranking:
  mode: bm25
  kChunks: 0
toolServer:
  baseURL: ftp://example.com
`)

	_, err := NewLoader(nil).Load(path)
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "index.fingerprint")
	assert.Contains(t, msg, "index.granularity")
	assert.Contains(t, msg, "ranking.mode")
	assert.Contains(t, msg, "ranking.kChunks")
	assert.Contains(t, msg, "toolServer.baseURL")
}

func TestExpandEnv_TracksMissing(t *testing.T) {
	out, missing, err := expandEnv([]byte("a: ${AGENTNET_DEFINITELY_UNSET}\nb: plain\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"AGENTNET_DEFINITELY_UNSET (a)"}, missing)
	assert.Contains(t, out, "b: plain")
}

func TestExpandEnv_ConfigKeys(t *testing.T) {
	t.Setenv("AGENTNET_TEST_EMBED_KEY", "sk-test")
	t.Setenv("AGENTNET_TEST_K", "")
	doc := `
embedding:
  apiKey: ${AGENTNET_TEST_EMBED_KEY}
ranking:
  kChunks: ${AGENTNET_TEST_K:-12}
toolServer:
  headers:
    ${AGENTNET_TEST_HEADER_NAME}: ${AGENTNET_TEST_TEAM_UNSET}
catalog:
  - ${AGENTNET_TEST_CATALOG_UNSET}
`
	out, missing, err := expandEnv([]byte(doc))
	require.NoError(t, err)
	assert.Contains(t, out, "apiKey: sk-test")
	assert.Contains(t, out, "kChunks: 12")
	assert.Contains(t, out, "${AGENTNET_TEST_HEADER_NAME}")
	assert.Equal(t, []string{
		"AGENTNET_TEST_CATALOG_UNSET (catalog[0])",
		"AGENTNET_TEST_TEAM_UNSET (toolServer.headers.${AGENTNET_TEST_HEADER_NAME})",
	}, missing)
}

func TestRetag(t *testing.T) {
	cases := []struct {
		in      string
		wantTag string
	}{
		{"42", "!!int"},
		{"true", "!!bool"},
		{"1.5", "!!float"},
		{"hello", "!!str"},
		{"", "!!str"},
		{"null", "!!null"},
	}
	for _, tc := range cases {
		tag, _ := retag(tc.in)
		assert.Equal(t, tc.wantTag, tag, tc.in)
	}
}
