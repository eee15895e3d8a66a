package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store       StoreConfig       `yaml:"store" mapstructure:"store"`
	Vector      VectorConfig      `yaml:"vector" mapstructure:"vector"`
	Cache       CacheConfig       `yaml:"cache" mapstructure:"cache"`
	Anthropic   AnthropicConfig   `yaml:"anthropic" mapstructure:"anthropic"`
	Gemini      GeminiConfig      `yaml:"gemini" mapstructure:"gemini"`
	LLM         LLMConfig         `yaml:"llm" mapstructure:"llm"`
	Fetch       FetchConfig       `yaml:"fetch" mapstructure:"fetch"`
	Discovery   DiscoveryConfig   `yaml:"discovery" mapstructure:"discovery"`
	Selection   SelectionConfig   `yaml:"selection" mapstructure:"selection"`
	Extraction  ExtractionConfig  `yaml:"extraction" mapstructure:"extraction"`
	Aggregation AggregationConfig `yaml:"aggregation" mapstructure:"aggregation"`
	Embedding   EmbeddingConfig   `yaml:"embedding" mapstructure:"embedding"`
	Progress    ProgressConfig    `yaml:"progress" mapstructure:"progress"`
	Log         LogConfig         `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the document store backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	Path        string `yaml:"path" mapstructure:"path"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// VectorConfig configures the vector index.
type VectorConfig struct {
	Path                   string `yaml:"path" mapstructure:"path"`
	Collection             string `yaml:"collection" mapstructure:"collection"`
	MetadataBudgetBytes    int    `yaml:"metadata_budget_bytes" mapstructure:"metadata_budget_bytes"`
	SummaryPrefixChars     int    `yaml:"summary_prefix_chars" mapstructure:"summary_prefix_chars"`
	DescriptionPrefixChars int    `yaml:"description_prefix_chars" mapstructure:"description_prefix_chars"`
}

// CacheConfig configures the crawl cache.
type CacheConfig struct {
	Enabled  bool   `yaml:"enabled" mapstructure:"enabled"`
	Path     string `yaml:"path" mapstructure:"path"`
	TTLHours int    `yaml:"ttl_hours" mapstructure:"ttl_hours"`
}

// AnthropicConfig holds Anthropic API settings (primary LLM provider).
type AnthropicConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int    `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// GeminiConfig holds Google Gemini API settings (fallback LLM provider
// and embedding provider).
type GeminiConfig struct {
	Key        string `yaml:"key" mapstructure:"key"`
	Model      string `yaml:"model" mapstructure:"model"`
	EmbedModel string `yaml:"embed_model" mapstructure:"embed_model"`
}

// LLMConfig configures the gateway shared by all LLM callers.
type LLMConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute" mapstructure:"requests_per_minute"`
	Burst             int `yaml:"burst" mapstructure:"burst"`
}

// FetchConfig configures the static fetcher and the headless browser.
type FetchConfig struct {
	UserAgent       string  `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs     int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	SSLVerify       bool    `yaml:"ssl_verify" mapstructure:"ssl_verify"`
	PerHostRPS      float64 `yaml:"per_host_rps" mapstructure:"per_host_rps"`
	PerHostBurst    int     `yaml:"per_host_burst" mapstructure:"per_host_burst"`
	PageTimeoutSecs int     `yaml:"page_timeout_secs" mapstructure:"page_timeout_secs"`
}

// DiscoveryConfig configures the link discovery phase.
type DiscoveryConfig struct {
	MaxDepth        int `yaml:"max_depth" mapstructure:"max_depth"`
	MaxLinksPerPage int `yaml:"max_links_per_page" mapstructure:"max_links_per_page"`
	MaxVisited      int `yaml:"max_visited" mapstructure:"max_visited"`
	WallTimeSecs    int `yaml:"wall_time_secs" mapstructure:"wall_time_secs"`
	MaxURLs         int `yaml:"max_urls" mapstructure:"max_urls"`
}

// SelectionConfig configures the page selection phase.
type SelectionConfig struct {
	MaxCandidates int `yaml:"max_candidates" mapstructure:"max_candidates"`
	MaxTargets    int `yaml:"max_targets" mapstructure:"max_targets"`
	TimeoutSecs   int `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// ExtractionConfig configures the parallel extraction phase.
type ExtractionConfig struct {
	Concurrency  int `yaml:"concurrency" mapstructure:"concurrency"`
	BodyMaxChars int `yaml:"body_max_chars" mapstructure:"body_max_chars"`
	MinWords     int `yaml:"min_words" mapstructure:"min_words"`
}

// AggregationConfig configures the intelligence generation phase.
type AggregationConfig struct {
	CorpusBudgetChars int `yaml:"corpus_budget_chars" mapstructure:"corpus_budget_chars"`
	TimeoutSecs       int `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// EmbeddingConfig configures embedding generation.
type EmbeddingConfig struct {
	Dimension int `yaml:"dimension" mapstructure:"dimension"`
}

// ProgressConfig configures the progress bus and its persisted file.
type ProgressConfig struct {
	Path              string `yaml:"path" mapstructure:"path"`
	MaxJobs           int    `yaml:"max_jobs" mapstructure:"max_jobs"`
	MaxLogLines       int    `yaml:"max_log_lines" mapstructure:"max_log_lines"`
	StaleAfterMinutes int    `yaml:"stale_after_minutes" mapstructure:"stale_after_minutes"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("THEODORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	dataDir := defaultDataDir()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", filepath.Join(dataDir, "theodore.db"))
	v.SetDefault("vector.path", filepath.Join(dataDir, "vectors"))
	v.SetDefault("vector.collection", "companies")
	v.SetDefault("vector.metadata_budget_bytes", 40*1024)
	v.SetDefault("vector.summary_prefix_chars", 1000)
	v.SetDefault("vector.description_prefix_chars", 500)
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.path", filepath.Join(dataDir, "crawlcache"))
	v.SetDefault("cache.ttl_hours", 168)
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.max_tokens", 4096)
	v.SetDefault("gemini.model", "gemini-2.5-flash")
	v.SetDefault("gemini.embed_model", "gemini-embedding-001")
	v.SetDefault("llm.requests_per_minute", 8)
	v.SetDefault("llm.burst", 8)
	v.SetDefault("fetch.user_agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	v.SetDefault("fetch.timeout_secs", 15)
	v.SetDefault("fetch.ssl_verify", true)
	v.SetDefault("fetch.per_host_rps", 2.0)
	v.SetDefault("fetch.per_host_burst", 4)
	v.SetDefault("fetch.page_timeout_secs", 20)
	v.SetDefault("discovery.max_depth", 3)
	v.SetDefault("discovery.max_links_per_page", 50)
	v.SetDefault("discovery.max_visited", 200)
	v.SetDefault("discovery.wall_time_secs", 30)
	v.SetDefault("discovery.max_urls", 1000)
	v.SetDefault("selection.max_candidates", 25)
	v.SetDefault("selection.max_targets", 50)
	v.SetDefault("selection.timeout_secs", 120)
	v.SetDefault("extraction.concurrency", 10)
	v.SetDefault("extraction.body_max_chars", 10_000)
	v.SetDefault("extraction.min_words", 10)
	v.SetDefault("aggregation.corpus_budget_chars", 8000)
	v.SetDefault("aggregation.timeout_secs", 120)
	v.SetDefault("embedding.dimension", 768)
	v.SetDefault("progress.path", filepath.Join(dataDir, "progress.json"))
	v.SetDefault("progress.max_jobs", 50)
	v.SetDefault("progress.max_log_lines", 100)
	v.SetDefault("progress.stale_after_minutes", 15)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the configuration for the given command mode.
// Mode "research" runs the full pipeline and needs LLM credentials;
// mode "query" only reads stores and needs none.
func (c *Config) Validate(mode string) error {
	var problems []string

	switch mode {
	case "research":
		if c.Anthropic.Key == "" && c.Gemini.Key == "" {
			problems = append(problems, "anthropic.key or gemini.key is required")
		}
		if c.Gemini.Key == "" {
			zap.L().Warn("config: gemini.key unset, records will be stored without embeddings")
		}
		if c.LLM.RequestsPerMinute < 1 {
			problems = append(problems, "llm.requests_per_minute must be >= 1")
		}
		if c.Extraction.Concurrency < 1 || c.Extraction.Concurrency > 50 {
			problems = append(problems, "extraction.concurrency must be between 1 and 50")
		}
		if c.Discovery.MaxDepth < 1 {
			problems = append(problems, "discovery.max_depth must be >= 1")
		}
		if c.Embedding.Dimension < 1 {
			problems = append(problems, "embedding.dimension must be >= 1")
		}
	case "query":
		// Store paths have defaults; nothing to check.
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if c.Store.Driver != "sqlite" && c.Store.Driver != "postgres" {
		problems = append(problems, "store.driver must be sqlite or postgres")
	}
	if c.Store.Driver == "postgres" && c.Store.DatabaseURL == "" {
		problems = append(problems, "store.database_url is required for the postgres driver")
	}

	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
	}
	return nil
}

// defaultDataDir returns the directory for Theodore's local state,
// preferring the user config dir and falling back to the temp dir.
func defaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "theodore")
	}
	return filepath.Join(os.TempDir(), "theodore")
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
