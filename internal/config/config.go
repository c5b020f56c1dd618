// Package config loads service and CLI settings from the environment and an
// optional config file.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Model providers.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
)

type Config struct {
	Port     string `mapstructure:"port"`
	LogLevel string `mapstructure:"log_level"`

	// Pathstore connection. Empty URL keeps documents in memory.
	PathstoreURL    string `mapstructure:"pathstore_url"`
	PathstoreAPIKey string `mapstructure:"pathstore_api_key"`

	// Auth
	APIKey string `mapstructure:"docstruct_api_key"`

	// Model
	LLMProvider      string `mapstructure:"llm_provider"`
	AnthropicAPIKey  string `mapstructure:"anthropic_api_key"`
	AnthropicModel   string `mapstructure:"anthropic_model"`
	AnthropicBaseURL string `mapstructure:"anthropic_base_url"`
	OpenAIAPIKey     string `mapstructure:"openai_api_key"`
	OpenAIModel      string `mapstructure:"openai_model"`
	OpenAIBaseURL    string `mapstructure:"openai_base_url"`
	ResponseTokens   int    `mapstructure:"response_tokens"`

	// Multi-instance event fan-out. Empty keeps events in process.
	RedisAddr    string `mapstructure:"redis_addr"`
	RedisChannel string `mapstructure:"redis_channel"`

	// Worker pool
	WorkerCount        int `mapstructure:"worker_count"`
	MaxQueueSize       int `mapstructure:"max_queue_size"`
	MaxConcurrentStore int `mapstructure:"max_concurrent_store"`
	ChunkConcurrency   int `mapstructure:"chunk_concurrency"`

	// Upload limits
	MaxUploadBytes int64 `mapstructure:"max_upload_bytes"`

	// Chunking
	ChunkSize    int `mapstructure:"chunk_size"`
	ChunkOverlap int `mapstructure:"chunk_overlap"`
	MaxTokens    int `mapstructure:"max_tokens"`

	// Job state
	JobTTL time.Duration `mapstructure:"job_ttl"`

	// Acquisition
	PDFFallbackPdftotext bool   `mapstructure:"pdf_fallback_pdftotext"`
	FetchProxyURL        string `mapstructure:"fetch_proxy_url"`
}

var defaults = map[string]any{
	"port":                   "8090",
	"log_level":              "info",
	"pathstore_url":          "",
	"pathstore_api_key":      "",
	"docstruct_api_key":      "",
	"llm_provider":           ProviderAnthropic,
	"anthropic_api_key":      "",
	"anthropic_model":        "claude-sonnet-4-5-20250929",
	"anthropic_base_url":     "https://api.anthropic.com",
	"openai_api_key":         "",
	"openai_model":           "gpt-4.1",
	"openai_base_url":        "",
	"response_tokens":        16000,
	"redis_addr":             "",
	"redis_channel":          "docstruct:events",
	"worker_count":           4,
	"max_queue_size":         100,
	"max_concurrent_store":   10,
	"chunk_concurrency":      1,
	"max_upload_bytes":       int64(52428800), // 50MB
	"chunk_size":             8000,
	"chunk_overlap":          1000,
	"max_tokens":             30000,
	"job_ttl":                time.Hour,
	"pdf_fallback_pdftotext": true,
	"fetch_proxy_url":        "",
}

// Load reads configuration from the environment.
func Load() Config {
	cfg, err := LoadFile("")
	if err != nil {
		// Without a file only decoding can fail; fall back to defaults.
		slog.Error("config load failed, using defaults", "error", err)
		cfg = decodeDefaults()
	}
	return cfg
}

// LoadFile reads configuration from path (yaml, json or toml by extension)
// overlaid by the environment. An empty path reads the environment only.
func LoadFile(path string) (Config, error) {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.clamp()
	return cfg, nil
}

func decodeDefaults() Config {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	var cfg Config
	_ = v.Unmarshal(&cfg)
	cfg.clamp()
	return cfg
}

func (c *Config) clamp() {
	if c.WorkerCount <= 0 {
		c.WorkerCount = 4
	}
	if c.MaxQueueSize <= 0 {
		c.MaxQueueSize = 100
	}
	if c.MaxConcurrentStore <= 0 {
		c.MaxConcurrentStore = 10
	}
	if c.ChunkConcurrency <= 0 {
		c.ChunkConcurrency = 1
	}
	if c.MaxUploadBytes <= 0 {
		c.MaxUploadBytes = 52428800
	}
	if c.ChunkSize <= 0 {
		c.ChunkSize = 8000
	}
	if c.ChunkOverlap < 0 {
		c.ChunkOverlap = 0
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = 30000
	}
	if c.ResponseTokens <= 0 {
		c.ResponseTokens = 16000
	}
	if c.JobTTL <= 0 {
		c.JobTTL = time.Hour
	}
	c.LLMProvider = strings.ToLower(strings.TrimSpace(c.LLMProvider))
}

// ValidateModel checks the settings needed to talk to the model.
func (c Config) ValidateModel() error {
	switch c.LLMProvider {
	case ProviderAnthropic:
		if c.AnthropicAPIKey == "" {
			return fmt.Errorf("ANTHROPIC_API_KEY is required")
		}
	case ProviderOpenAI:
		if c.OpenAIAPIKey == "" && c.OpenAIBaseURL == "" {
			return fmt.Errorf("OPENAI_API_KEY or OPENAI_BASE_URL is required")
		}
	default:
		return fmt.Errorf("unknown LLM_PROVIDER %q", c.LLMProvider)
	}
	if c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("CHUNK_OVERLAP (%d) must be smaller than CHUNK_SIZE (%d)", c.ChunkOverlap, c.ChunkSize)
	}
	return nil
}

// Validate checks the settings the HTTP service needs.
func (c Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("DOCSTRUCT_API_KEY is required")
	}
	if c.PathstoreURL != "" && c.PathstoreAPIKey == "" {
		return fmt.Errorf("PATHSTORE_API_KEY is required when PATHSTORE_URL is set")
	}
	return c.ValidateModel()
}

// SlogLevel maps LogLevel to a slog level, defaulting to info.
func (c Config) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}
