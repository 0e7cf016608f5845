package config

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"agentnet/internal/domain"
)

const (
	// DefaultConfigFile is looked up in the working directory when no path is given.
	DefaultConfigFile = "agentnet.yaml"
	envPrefix         = "AGENTNET"
	// LegacyCatalogEnvVar points at the catalog file when no path is configured.
	LegacyCatalogEnvVar = "MCP_SERVER_DESCRIPTION_PATH"
)

var defaultCandidates = []string{
	domain.DefaultCatalogFileName,
	filepath.Join("data", domain.DefaultCatalogFileName),
	filepath.Join("data_mcpinfo", domain.DefaultCatalogFileName),
}

type rawConfig struct {
	Catalog    rawCatalogConfig    `mapstructure:"catalog"`
	Index      rawIndexConfig      `mapstructure:"index"`
	Ranking    rawRankingConfig    `mapstructure:"ranking"`
	Embedding  rawEmbeddingConfig  `mapstructure:"embedding"`
	LLM        rawLLMConfig        `mapstructure:"llm"`
	ToolServer rawToolServerConfig `mapstructure:"toolServer"`
	HTTP       rawHTTPConfig       `mapstructure:"http"`
}

type rawCatalogConfig struct {
	Path       string   `mapstructure:"path"`
	Candidates []string `mapstructure:"candidates"`
	Watch      bool     `mapstructure:"watch"`
}

type rawIndexConfig struct {
	PersistDir         string `mapstructure:"persistDir"`
	Collection         string `mapstructure:"collection"`
	Fingerprint        string `mapstructure:"fingerprint"`
	Granularity        string `mapstructure:"granularity"`
	ProbeQuery         string `mapstructure:"probeQuery"`
	OpenTimeoutSeconds int    `mapstructure:"openTimeoutSeconds"`
	StampFileName      string `mapstructure:"stampFileName"`
	StoreFileName      string `mapstructure:"storeFileName"`
	WatchDebounceMs    int    `mapstructure:"watchDebounceMs"`
	ReindexOnChange    bool   `mapstructure:"reindexOnChange"`
}

type rawRankingConfig struct {
	Mode         string `mapstructure:"mode"`
	KChunks      int    `mapstructure:"kChunks"`
	TopServers   int    `mapstructure:"topServers"`
	DirectOption bool   `mapstructure:"directOption"`
}

type rawEmbeddingConfig struct {
	Endpoint       string `mapstructure:"endpoint"`
	Model          string `mapstructure:"model"`
	APIKey         string `mapstructure:"apiKey"`
	APIKeyEnvVar   string `mapstructure:"apiKeyEnvVar"`
	BatchSize      int    `mapstructure:"batchSize"`
	TimeoutSeconds int    `mapstructure:"timeoutSeconds"`
}

type rawLLMConfig struct {
	Provider     string `mapstructure:"provider"`
	Model        string `mapstructure:"model"`
	APIKey       string `mapstructure:"apiKey"`
	APIKeyEnvVar string `mapstructure:"apiKeyEnvVar"`
	BaseURL      string `mapstructure:"baseURL"`
	HistoryTurns int    `mapstructure:"historyTurns"`
}

type rawToolServerConfig struct {
	BaseURL        string            `mapstructure:"baseURL"`
	PathPrefix     string            `mapstructure:"pathPrefix"`
	APIKey         string            `mapstructure:"apiKey"`
	APIKeyEnvVar   string            `mapstructure:"apiKeyEnvVar"`
	Headers        map[string]string `mapstructure:"headers"`
	MaxRetries     int               `mapstructure:"maxRetries"`
	TimeoutSeconds int               `mapstructure:"timeoutSeconds"`
}

type rawHTTPConfig struct {
	ListenAddress string `mapstructure:"listenAddress"`
}

// Loader reads agentnet.yaml into a normalized domain.Config.
type Loader struct {
	logger *zap.Logger
}

func NewLoader(logger *zap.Logger) *Loader {
	if logger == nil {
		return &Loader{logger: zap.NewNop()}
	}
	return &Loader{logger: logger.Named("config")}
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("catalog.path", "")
	v.SetDefault("catalog.candidates", defaultCandidates)
	v.SetDefault("catalog.watch", false)
	v.SetDefault("index.persistDir", domain.DefaultPersistDir)
	v.SetDefault("index.collection", domain.DefaultCollectionName)
	v.SetDefault("index.fingerprint", string(domain.FingerprintContentHash))
	v.SetDefault("index.granularity", string(domain.GranularityTool))
	v.SetDefault("index.probeQuery", domain.DefaultProbeQuery)
	v.SetDefault("index.openTimeoutSeconds", domain.DefaultStoreOpenTimeoutSec)
	v.SetDefault("index.stampFileName", domain.DefaultStampFileName)
	v.SetDefault("index.storeFileName", domain.DefaultIndexFileName)
	v.SetDefault("index.watchDebounceMs", 200)
	v.SetDefault("index.reindexOnChange", true)
	v.SetDefault("ranking.mode", string(domain.RankingReciprocal))
	v.SetDefault("ranking.kChunks", domain.DefaultKChunks)
	v.SetDefault("ranking.topServers", domain.DefaultTopServers)
	v.SetDefault("ranking.directOption", false)
	v.SetDefault("embedding.endpoint", domain.DefaultEmbeddingEndpoint)
	v.SetDefault("embedding.model", domain.DefaultEmbeddingModel)
	v.SetDefault("embedding.apiKey", "")
	v.SetDefault("embedding.apiKeyEnvVar", domain.DefaultEmbeddingAPIKeyEnv)
	v.SetDefault("embedding.batchSize", domain.DefaultEmbeddingBatchSize)
	v.SetDefault("embedding.timeoutSeconds", domain.DefaultEmbeddingTimeoutSec)
	v.SetDefault("llm.provider", domain.DefaultLLMProvider)
	v.SetDefault("llm.model", domain.DefaultLLMModel)
	v.SetDefault("llm.apiKey", "")
	v.SetDefault("llm.apiKeyEnvVar", domain.DefaultLLMAPIKeyEnv)
	v.SetDefault("llm.baseURL", "")
	v.SetDefault("llm.historyTurns", domain.DefaultHistoryTurns)
	v.SetDefault("toolServer.baseURL", domain.DefaultToolServerBaseURL)
	v.SetDefault("toolServer.pathPrefix", domain.DefaultToolServerPrefix)
	v.SetDefault("toolServer.apiKey", "")
	v.SetDefault("toolServer.apiKeyEnvVar", domain.DefaultToolServerKeyEnv)
	v.SetDefault("toolServer.maxRetries", domain.DefaultToolServerRetries)
	v.SetDefault("toolServer.timeoutSeconds", domain.DefaultToolServerTimeout)
	v.SetDefault("http.listenAddress", domain.DefaultHTTPListenAddress)
}

// Load reads the config file at path. An empty path falls back to
// agentnet.yaml in the working directory, and to defaults when that is absent.
func (l *Loader) Load(path string) (domain.Config, error) {
	v := newViper()
	baseDir, err := os.Getwd()
	if err != nil {
		return domain.Config{}, fmt.Errorf("resolve working directory: %w", err)
	}

	explicit := strings.TrimSpace(path) != ""
	if !explicit {
		path = DefaultConfigFile
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		expanded, missing, expandErr := expandEnv(data)
		if expandErr != nil {
			return domain.Config{}, expandErr
		}
		if len(missing) > 0 {
			l.logger.Warn("missing environment variables in config", zap.String("path", path), zap.Strings("missing", missing))
		}
		if err := v.ReadConfig(bytes.NewBufferString(expanded)); err != nil {
			return domain.Config{}, fmt.Errorf("parse config: %w", err)
		}
		if abs, absErr := filepath.Abs(path); absErr == nil {
			baseDir = filepath.Dir(abs)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
		l.logger.Debug("no config file found, using defaults", zap.String("path", path))
	default:
		return domain.Config{}, fmt.Errorf("read config: %w", err)
	}

	var raw rawConfig
	if err := v.Unmarshal(&raw); err != nil {
		return domain.Config{}, fmt.Errorf("decode config: %w", err)
	}
	if raw.Catalog.Path == "" {
		raw.Catalog.Path = strings.TrimSpace(os.Getenv(LegacyCatalogEnvVar))
	}

	cfg, errs := normalize(raw, baseDir)
	if len(errs) > 0 {
		return domain.Config{}, errors.New(strings.Join(errs, "; "))
	}
	return cfg, nil
}

// normalize converts the decoded document to domain.Config and reports every
// invalid field.
func normalize(raw rawConfig, baseDir string) (domain.Config, []string) {
	var errs []string

	persistDir := strings.TrimSpace(raw.Index.PersistDir)
	if persistDir != "" && !filepath.IsAbs(persistDir) && baseDir != "" {
		persistDir = filepath.Join(baseDir, persistDir)
	}

	fingerprint := domain.FingerprintMode(strings.ToLower(strings.TrimSpace(raw.Index.Fingerprint)))
	switch fingerprint {
	case domain.FingerprintContentHash, domain.FingerprintSize:
	default:
		errs = append(errs, fmt.Sprintf("index.fingerprint: unsupported mode %q", raw.Index.Fingerprint))
	}

	granularity := domain.Granularity(strings.ToLower(strings.TrimSpace(raw.Index.Granularity)))
	switch granularity {
	case domain.GranularityServer, domain.GranularityTool:
	default:
		errs = append(errs, fmt.Sprintf("index.granularity: unsupported value %q", raw.Index.Granularity))
	}

	collection := strings.TrimSpace(raw.Index.Collection)
	if collection == "" || strings.HasPrefix(collection, "__") {
		errs = append(errs, fmt.Sprintf("index.collection: invalid name %q", raw.Index.Collection))
	}

	mode := domain.RankingMode(strings.ToLower(strings.TrimSpace(raw.Ranking.Mode)))
	switch mode {
	case domain.RankingReciprocal, domain.RankingFirstHit:
	default:
		errs = append(errs, fmt.Sprintf("ranking.mode: unsupported mode %q", raw.Ranking.Mode))
	}
	if raw.Ranking.KChunks <= 0 {
		errs = append(errs, "ranking.kChunks must be > 0")
	}
	if raw.Ranking.TopServers <= 0 {
		errs = append(errs, "ranking.topServers must be > 0")
	}
	if raw.Embedding.BatchSize <= 0 {
		errs = append(errs, "embedding.batchSize must be > 0")
	}
	if raw.LLM.HistoryTurns < 0 {
		errs = append(errs, "llm.historyTurns must be >= 0")
	}
	if raw.ToolServer.MaxRetries < 0 {
		errs = append(errs, "toolServer.maxRetries must be >= 0")
	}
	if err := validateBaseURL(raw.ToolServer.BaseURL); err != nil {
		errs = append(errs, fmt.Sprintf("toolServer.baseURL: %v", err))
	}
	for key := range raw.ToolServer.Headers {
		if strings.TrimSpace(key) == "" {
			errs = append(errs, "toolServer.headers contains an empty key")
			break
		}
	}

	cfg := domain.Config{
		Catalog: domain.CatalogConfig{
			Path:       strings.TrimSpace(raw.Catalog.Path),
			Candidates: raw.Catalog.Candidates,
			BaseDir:    baseDir,
			Watch:      raw.Catalog.Watch,
		},
		Index: domain.IndexConfig{
			PersistDir:      persistDir,
			Collection:      collection,
			Fingerprint:     fingerprint,
			Granularity:     granularity,
			ProbeQuery:      raw.Index.ProbeQuery,
			OpenTimeout:     seconds(raw.Index.OpenTimeoutSeconds),
			StampFileName:   raw.Index.StampFileName,
			StoreFileName:   raw.Index.StoreFileName,
			WatchDebounce:   time.Duration(raw.Index.WatchDebounceMs) * time.Millisecond,
			ReindexOnChange: raw.Index.ReindexOnChange,
		},
		Ranking: domain.RankingConfig{
			Mode:         mode,
			KChunks:      raw.Ranking.KChunks,
			TopServers:   raw.Ranking.TopServers,
			DirectOption: raw.Ranking.DirectOption,
		},
		Embedding: domain.EmbeddingConfig{
			Endpoint:     strings.TrimRight(strings.TrimSpace(raw.Embedding.Endpoint), "/"),
			Model:        strings.TrimSpace(raw.Embedding.Model),
			APIKey:       strings.TrimSpace(raw.Embedding.APIKey),
			APIKeyEnvVar: strings.TrimSpace(raw.Embedding.APIKeyEnvVar),
			BatchSize:    raw.Embedding.BatchSize,
			Timeout:      seconds(raw.Embedding.TimeoutSeconds),
		},
		LLM: domain.LLMConfig{
			Provider:     strings.ToLower(strings.TrimSpace(raw.LLM.Provider)),
			Model:        strings.TrimSpace(raw.LLM.Model),
			APIKey:       strings.TrimSpace(raw.LLM.APIKey),
			APIKeyEnvVar: strings.TrimSpace(raw.LLM.APIKeyEnvVar),
			BaseURL:      strings.TrimSpace(raw.LLM.BaseURL),
			HistoryTurns: raw.LLM.HistoryTurns,
		},
		ToolServer: domain.ToolServerConfig{
			BaseURL:      strings.TrimRight(strings.TrimSpace(raw.ToolServer.BaseURL), "/"),
			PathPrefix:   strings.TrimSpace(raw.ToolServer.PathPrefix),
			APIKey:       strings.TrimSpace(raw.ToolServer.APIKey),
			APIKeyEnvVar: strings.TrimSpace(raw.ToolServer.APIKeyEnvVar),
			Headers:      raw.ToolServer.Headers,
			MaxRetries:   raw.ToolServer.MaxRetries,
			Timeout:      seconds(raw.ToolServer.TimeoutSeconds),
		},
		HTTP: domain.HTTPConfig{
			ListenAddress: strings.TrimSpace(raw.HTTP.ListenAddress),
		},
	}
	return cfg, errs
}

func validateBaseURL(raw string) error {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return errors.New("must not be empty")
	}
	parsed, err := url.Parse(trimmed)
	if err != nil {
		return err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return errors.New("host is required")
	}
	return nil
}

func seconds(n int) time.Duration {
	if n <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second
}
