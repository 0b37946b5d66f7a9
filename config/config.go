package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the cowrite backend
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Queues    QueuesConfig    `mapstructure:"queues"`
	Materials MaterialsConfig `mapstructure:"materials"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	Search    SearchConfig    `mapstructure:"search"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Address        string        `mapstructure:"address"`
	CORSOrigins    []string      `mapstructure:"cors_origins"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

func (s ServerConfig) Validate() error {
	if strings.TrimSpace(s.Address) == "" {
		return fmt.Errorf("server.address required")
	}
	if s.RequestTimeout <= 0 {
		return fmt.Errorf("server.request_timeout must be > 0")
	}
	return nil
}

// LogConfig selects the zap logger preset.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or console
}

func (l LogConfig) Validate() error {
	switch l.Format {
	case "json", "console":
		return nil
	default:
		return fmt.Errorf("log.format must be json or console, got %q", l.Format)
	}
}

// LLMConfig contains the two generation providers tried in order
type LLMConfig struct {
	Primary     LLMProvider `mapstructure:"primary"`
	Secondary   LLMProvider `mapstructure:"secondary"`
	RepairModel string      `mapstructure:"repair_model"`
	Temperature float64     `mapstructure:"temperature"`
	MaxTokens   int         `mapstructure:"max_tokens"`
}

// LLMProvider represents a single LLM provider configuration
type LLMProvider struct {
	Name    string        `mapstructure:"name"`
	Type    string        `mapstructure:"type"` // openai or genai
	BaseURL string        `mapstructure:"base_url"`
	APIKey  string        `mapstructure:"api_key"`
	Model   string        `mapstructure:"model"`
	Timeout time.Duration `mapstructure:"timeout"`
}

func (p LLMProvider) validate(key string) error {
	switch p.Type {
	case "openai", "genai":
	default:
		return fmt.Errorf("llm.%s.type must be openai or genai, got %q", key, p.Type)
	}
	if p.Timeout < 0 {
		return fmt.Errorf("llm.%s.timeout cannot be negative", key)
	}
	return nil
}

func (c LLMConfig) Validate() error {
	if err := c.Primary.validate("primary"); err != nil {
		return err
	}
	if err := c.Secondary.validate("secondary"); err != nil {
		return err
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("llm.temperature must be within [0,2]")
	}
	if c.MaxTokens < 0 {
		return fmt.Errorf("llm.max_tokens cannot be negative")
	}
	return nil
}

// QueuesConfig caps concurrent external calls per queue.
type QueuesConfig struct {
	SearchConcurrency     int `mapstructure:"search_concurrency"`
	GenerationConcurrency int `mapstructure:"generation_concurrency"`
}

func (q QueuesConfig) Validate() error {
	if q.SearchConcurrency <= 0 || q.GenerationConcurrency <= 0 {
		return fmt.Errorf("queues.search_concurrency and queues.generation_concurrency must be > 0")
	}
	return nil
}

// MaterialsConfig tunes cleaning and reranking of retrieved documents.
type MaterialsConfig struct {
	TopN                 int `mapstructure:"top_n"`
	MaxContentLength     int `mapstructure:"max_content_length"`
	EmbeddingConcurrency int `mapstructure:"embedding_concurrency"`
	PerSourceLimit       int `mapstructure:"per_source_limit"`
}

// Normalize applies defaults for unset values.
func (m MaterialsConfig) Normalize() MaterialsConfig {
	if m.TopN <= 0 {
		m.TopN = 5
	}
	if m.MaxContentLength <= 0 {
		m.MaxContentLength = 2000
	}
	if m.EmbeddingConcurrency <= 0 {
		m.EmbeddingConcurrency = 5
	}
	if m.PerSourceLimit <= 0 {
		m.PerSourceLimit = 10
	}
	return m
}

// EmbeddingConfig selects the embedding backend used for reranking.
type EmbeddingConfig struct {
	Type    string        `mapstructure:"type"` // service, openai, genai or none
	URL     string        `mapstructure:"url"`
	APIKey  string        `mapstructure:"api_key"`
	Model   string        `mapstructure:"model"`
	Timeout time.Duration `mapstructure:"timeout"`
}

func (e EmbeddingConfig) Validate() error {
	switch e.Type {
	case "", "none", "openai", "genai":
		return nil
	case "service":
		if strings.TrimSpace(e.URL) == "" {
			return fmt.Errorf("embedding.url required for the service backend")
		}
		return nil
	default:
		return fmt.Errorf("embedding.type must be service, openai, genai or none, got %q", e.Type)
	}
}

// SearchConfig contains retrieval provider settings
type SearchConfig struct {
	SerpAPIKey        string        `mapstructure:"serpapi_key"`
	SerpAPIURL        string        `mapstructure:"serpapi_url"`
	HL                string        `mapstructure:"hl"`
	GL                string        `mapstructure:"gl"`
	ScholarSinceYear  int           `mapstructure:"scholar_since_year"`
	MaxQueriesPerKind int           `mapstructure:"max_queries_per_kind"`
	OpenAlexURL       string        `mapstructure:"openalex_url"`
	OpenAlexMailto    string        `mapstructure:"openalex_mailto"`
	Timeout           time.Duration `mapstructure:"timeout"`
}

func (s SearchConfig) Validate() error {
	if s.MaxQueriesPerKind <= 0 {
		return fmt.Errorf("search.max_queries_per_kind must be > 0")
	}
	return nil
}

// RedisConfig contains Redis connection settings. An empty Addr keeps
// research results in memory.
type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
	Stream   string        `mapstructure:"stream"`
}

func (r RedisConfig) Validate() error {
	if r.DB < 0 {
		return fmt.Errorf("redis.db cannot be negative")
	}
	if r.TTL < 0 {
		return fmt.Errorf("redis.ttl cannot be negative")
	}
	return nil
}

// TelemetryConfig contains tracing and metrics settings
type TelemetryConfig struct {
	ServiceName string `mapstructure:"service_name"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.request_timeout", 2*time.Minute)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("llm.primary.name", "gemini")
	v.SetDefault("llm.primary.type", "openai")
	v.SetDefault("llm.primary.model", "gemini-2.5-flash")
	v.SetDefault("llm.primary.timeout", 60*time.Second)
	v.SetDefault("llm.secondary.name", "qwen")
	v.SetDefault("llm.secondary.type", "openai")
	v.SetDefault("llm.secondary.base_url", "https://dashscope.aliyuncs.com/compatible-mode/v1")
	v.SetDefault("llm.secondary.model", "qwen-plus")
	v.SetDefault("llm.secondary.timeout", 60*time.Second)
	v.SetDefault("llm.repair_model", "gemini-2.5-flash")
	v.SetDefault("llm.temperature", 0.7)
	v.SetDefault("llm.max_tokens", 8192)

	v.SetDefault("queues.search_concurrency", 5)
	v.SetDefault("queues.generation_concurrency", 5)

	v.SetDefault("materials.top_n", 5)
	v.SetDefault("materials.max_content_length", 2000)
	v.SetDefault("materials.embedding_concurrency", 5)
	v.SetDefault("materials.per_source_limit", 10)

	v.SetDefault("embedding.type", "none")
	v.SetDefault("embedding.model", "text-embedding-3-small")
	v.SetDefault("embedding.timeout", 30*time.Second)

	v.SetDefault("search.serpapi_url", "https://serpapi.com/search.json")
	v.SetDefault("search.hl", "zh-CN")
	v.SetDefault("search.gl", "cn")
	v.SetDefault("search.scholar_since_year", 2020)
	v.SetDefault("search.max_queries_per_kind", 2)
	v.SetDefault("search.openalex_url", "https://api.openalex.org")
	v.SetDefault("search.timeout", 20*time.Second)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", 24*time.Hour)
	v.SetDefault("redis.stream", "cowrite:research:events")

	v.SetDefault("telemetry.service_name", "cowrite")

	// Registered so AutomaticEnv can override keys absent from the file.
	for _, key := range []string{"llm.primary.base_url", "llm.primary.api_key", "llm.secondary.api_key", "embedding.url", "embedding.api_key", "search.serpapi_key", "search.openalex_mailto", "redis.password"} {
		v.SetDefault(key, "")
	}
}

// LoadConfig loads config from path, or from the first config.json found in
// the usual locations when path is empty. A missing file is not an error:
// defaults and COWRITE_* environment variables are enough to run.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("json")
	setDefaults(v)

	if path == "" {
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
		if exe, err := os.Executable(); err == nil {
			exeDir := filepath.Dir(exe)
			v.AddConfigPath(exeDir)
			v.AddConfigPath(filepath.Join(exeDir, "..", "config"))
		}
	} else {
		v.SetConfigFile(path)
	}

	v.SetEnvPrefix("COWRITE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.applyLegacyEnv()
	cfg.Materials = cfg.Materials.Normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks every section.
func (c *Config) Validate() error {
	for _, check := range []func() error{
		c.Server.Validate,
		c.Log.Validate,
		c.LLM.Validate,
		c.Queues.Validate,
		c.Embedding.Validate,
		c.Search.Validate,
		c.Redis.Validate,
	} {
		if err := check(); err != nil {
			return err
		}
	}
	return nil
}

// applyLegacyEnv fills unset credentials from the variable names used by
// earlier deployments.
func (c *Config) applyLegacyEnv() {
	fill := func(dst *string, names ...string) {
		if *dst != "" {
			return
		}
		for _, n := range names {
			if v := strings.TrimSpace(os.Getenv(n)); v != "" {
				*dst = v
				return
			}
		}
	}
	fill(&c.LLM.Primary.BaseURL, "OPENAI_BASE_URL")
	fill(&c.LLM.Primary.APIKey, "INTEGRATIONS_API_KEY")
	fill(&c.LLM.Secondary.APIKey, "QIANWEN_API_KEY", "QWEN_API_KEY")
	fill(&c.Search.SerpAPIKey, "SERPAPI_API_KEY")

	if c.Embedding.Type == "none" || c.Embedding.Type == "" {
		if u := strings.TrimSpace(os.Getenv("EMBEDDING_SERVICE_URL")); u != "" {
			c.Embedding.Type = "service"
			c.Embedding.URL = u
		}
	}
	if c.Embedding.Type == "openai" {
		fill(&c.Embedding.URL, "OPENAI_BASE_URL")
		fill(&c.Embedding.APIKey, "INTEGRATIONS_API_KEY")
	}
}
