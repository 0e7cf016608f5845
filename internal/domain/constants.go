package domain

const (
	DefaultCollectionName      = "servers_v1"
	DefaultPersistDir          = "GCB"
	DefaultStampFileName       = ".catalog_hash"
	DefaultIndexFileName       = "index.db"
	DefaultCatalogFileName     = "mcp_description.json"
	DefaultEmbeddingModel      = "text-embedding-3-large"
	DefaultEmbeddingEndpoint   = "https://api.openai.com"
	DefaultEmbeddingBatchSize  = 64
	DefaultEmbeddingTimeoutSec = 60
	DefaultEmbeddingAPIKeyEnv  = "OPENAI_API_KEY"
	DefaultLLMProvider         = "openai"
	DefaultLLMModel            = "gpt-4.1-mini"
	DefaultLLMAPIKeyEnv        = "OPENAI_API_KEY"
	DefaultKChunks             = 12
	DefaultTopServers          = 5
	DefaultWorkflowTopServers  = 3
	DefaultToolServerBaseURL   = "https://server.smithery.ai"
	DefaultToolServerPrefix    = "/server"
	DefaultToolServerKeyEnv    = "SMITHERY_API_KEY"
	DefaultToolServerRetries   = 3
	DefaultToolServerTimeout   = 60
	DefaultHTTPListenAddress   = "0.0.0.0:8000"
	DefaultHistoryTurns        = 10
	DefaultProbeQuery          = "probe"
	DefaultStoreOpenTimeoutSec = 5
)

const (
	UnknownServerName      = "Unknown server"
	FallbackServerIntent   = "General purpose server."
	FallbackToolIntent     = "General purpose tool."
	FallbackServerReason   = "Relevant server."
	FallbackToolReason     = "Relevant tools available."
	DirectAnswerServerName = "Direct answer (no MCP tools)"
	DirectAnswerReason     = "Answer the task directly with the language model."
	MaxIntentLength        = 200
	MaxReasonLength        = 300
	MaxReasonChunks        = 3
)

// CreatePagesToolMarker is the high-value action token that selects a tool immediately.
const CreatePagesToolMarker = "create:pages"

// ActionKeywords earn +2 when found in a tool name and +1 in its description.
var ActionKeywords = []string{"create", "plan", "page", "write", "generate"}

// ResultURLKeys and ResultIDKeys are looked up in order when extracting a
// reference from a tool call result.
var (
	ResultURLKeys = []string{"url", "page_url", "permalink", "external_url"}
	ResultIDKeys  = []string{"id", "page_id", "pageId"}
)
