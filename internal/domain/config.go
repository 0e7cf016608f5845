package domain

import "time"

// FingerprintMode selects how catalog changes are detected.
type FingerprintMode string

const (
	// FingerprintContentHash hashes the full catalog bytes.
	FingerprintContentHash FingerprintMode = "content_hash"
	// FingerprintSize compares byte size only; cheaper but weaker.
	FingerprintSize FingerprintMode = "size"
)

// Config is the fully normalized application configuration.
type Config struct {
	Catalog    CatalogConfig    `json:"catalog"`
	Index      IndexConfig      `json:"index"`
	Ranking    RankingConfig    `json:"ranking"`
	Embedding  EmbeddingConfig  `json:"embedding"`
	LLM        LLMConfig        `json:"llm"`
	ToolServer ToolServerConfig `json:"toolServer"`
	HTTP       HTTPConfig       `json:"http"`
}

type CatalogConfig struct {
	// Path is an explicit catalog location; it must exist when set.
	Path string `json:"path"`
	// Candidates are probed in order when Path is empty.
	Candidates []string `json:"candidates"`
	// BaseDir resolves relative paths.
	BaseDir string `json:"baseDir"`
	Watch   bool   `json:"watch"`
}

type IndexConfig struct {
	PersistDir      string          `json:"persistDir"`
	Collection      string          `json:"collection"`
	Fingerprint     FingerprintMode `json:"fingerprint"`
	Granularity     Granularity     `json:"granularity"`
	ProbeQuery      string          `json:"probeQuery"`
	OpenTimeout     time.Duration   `json:"openTimeout"`
	StampFileName   string          `json:"stampFileName"`
	StoreFileName   string          `json:"storeFileName"`
	WatchDebounce   time.Duration   `json:"watchDebounce"`
	ReindexOnChange bool            `json:"reindexOnChange"`
}

type RankingConfig struct {
	Mode         RankingMode `json:"mode"`
	KChunks      int         `json:"kChunks"`
	TopServers   int         `json:"topServers"`
	DirectOption bool        `json:"directOption"`
}

type EmbeddingConfig struct {
	Endpoint     string        `json:"endpoint"`
	Model        string        `json:"model"`
	APIKey       string        `json:"-"`
	APIKeyEnvVar string        `json:"apiKeyEnvVar"`
	BatchSize    int           `json:"batchSize"`
	Timeout      time.Duration `json:"timeout"`
}

type LLMConfig struct {
	Provider     string `json:"provider"`
	Model        string `json:"model"`
	APIKey       string `json:"-"`
	APIKeyEnvVar string `json:"apiKeyEnvVar"`
	BaseURL      string `json:"baseURL"`
	HistoryTurns int    `json:"historyTurns"`
}

type ToolServerConfig struct {
	BaseURL      string            `json:"baseURL"`
	PathPrefix   string            `json:"pathPrefix"`
	APIKey       string            `json:"-"`
	APIKeyEnvVar string            `json:"apiKeyEnvVar"`
	Headers      map[string]string `json:"headers"`
	MaxRetries   int               `json:"maxRetries"`
	Timeout      time.Duration     `json:"timeout"`
}

type HTTPConfig struct {
	ListenAddress string `json:"listenAddress"`
}
