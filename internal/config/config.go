// Package config loads the per-environment YAML configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the realtorbot configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Database  DatabaseConfig  `yaml:"database"`
	Listings  ListingsConfig  `yaml:"listings"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Chat      ChatConfig      `yaml:"chat"`
	RAG       RAGConfig       `yaml:"rag"`
	Tenants   TenantsConfig   `yaml:"tenants"`
	Usage     UsageConfig     `yaml:"usage"`
	Auth      AuthConfig      `yaml:"auth"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds the Valkey connection (vector index, tenants, caches, counters).
type DatabaseConfig struct {
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	DB               int      `yaml:"db"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// ListingsConfig holds the structured listing store.
type ListingsConfig struct {
	Driver string `yaml:"driver"` // postgres, sqlite (default: sqlite)
	DSN    string `yaml:"dsn"`
}

// EmbeddingConfig holds the query embedding provider.
type EmbeddingConfig struct {
	Provider         string `yaml:"provider"`
	APIKey           string `yaml:"api_key"`
	BaseURL          string `yaml:"base_url"`
	Model            string `yaml:"model"`
	Dimensions       int    `yaml:"dimensions"`
	QueryInstruction string `yaml:"query_instruction"`
	CacheTTLSec      int    `yaml:"cache_ttl_sec"` // 0 = keep forever
	TimeoutSec       int    `yaml:"timeout_sec"`
}

// ChatConfig holds the chat-completion model.
type ChatConfig struct {
	Provider     string `yaml:"provider"`
	APIKey       string `yaml:"api_key"`
	BaseURL      string `yaml:"base_url"`
	Model        string `yaml:"model"`
	MaxTokens    int    `yaml:"max_tokens"`
	MaxRetries   int    `yaml:"max_retries"` // 0 = default (2), -1 disables retries
	RetryDelayMS int    `yaml:"retry_delay_ms"`
	TimeoutSec   int    `yaml:"timeout_sec"`
	Encoding     string `yaml:"encoding"` // tokenizer encoding used for budgeting
}

// RAGConfig holds retrieval limits and the context budget.
type RAGConfig struct {
	TokenBudget     int `yaml:"token_budget"`
	ReservedTokens  int `yaml:"reserved_tokens"`
	ListingTopK     int `yaml:"listing_top_k"`
	DevelopmentTopK int `yaml:"development_top_k"`
	BroadTopK       int `yaml:"broad_top_k"`
	MaxResults      int `yaml:"max_results"`
}

// TenantsConfig holds the in-process tenant cache.
type TenantsConfig struct {
	CacheSize   int `yaml:"cache_size"`
	CacheTTLSec int `yaml:"cache_ttl_sec"`
}

// UsageConfig holds per-tenant token metering.
type UsageConfig struct {
	Disabled bool `yaml:"disabled"`
	// Counter retention; buckets outlive their period so reports stay readable.
	DailyRetentionHours  int `yaml:"daily_retention_hours"`
	MonthlyRetentionDays int `yaml:"monthly_retention_days"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	return Parse(data)
}

// Parse decodes YAML, expands ${VAR} references, applies defaults and validates.
func Parse(data []byte) (Config, error) {
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		// A turn can spend two model retries plus the completion itself.
		c.HTTP.WriteTimeoutSec = 60
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Listings.Driver == "" {
		c.Listings.Driver = "sqlite"
	}
	if c.Embedding.Provider == "" {
		c.Embedding.Provider = "openai"
	}
	if c.Embedding.TimeoutSec <= 0 {
		c.Embedding.TimeoutSec = 10
	}
	if c.Chat.Provider == "" {
		c.Chat.Provider = "openai"
	}
	if c.Chat.MaxTokens <= 0 {
		c.Chat.MaxTokens = 1000
	}
	if c.Chat.MaxRetries < 0 {
		c.Chat.MaxRetries = 0
	} else if c.Chat.MaxRetries == 0 {
		c.Chat.MaxRetries = 2
	}
	if c.Chat.RetryDelayMS <= 0 {
		c.Chat.RetryDelayMS = 2000
	}
	if c.Chat.TimeoutSec <= 0 {
		c.Chat.TimeoutSec = 30
	}
	if c.Chat.Encoding == "" {
		c.Chat.Encoding = "cl100k_base"
	}
	if c.RAG.TokenBudget <= 0 {
		c.RAG.TokenBudget = 4096
	}
	if c.RAG.ReservedTokens <= 0 {
		c.RAG.ReservedTokens = 1000
	}
	if c.RAG.ListingTopK <= 0 {
		c.RAG.ListingTopK = 10
	}
	if c.RAG.DevelopmentTopK <= 0 {
		c.RAG.DevelopmentTopK = 10
	}
	if c.RAG.BroadTopK <= 0 {
		c.RAG.BroadTopK = 50
	}
	if c.RAG.MaxResults <= 0 {
		c.RAG.MaxResults = 20
	}
	if c.Tenants.CacheSize <= 0 {
		c.Tenants.CacheSize = 256
	}
	if c.Tenants.CacheTTLSec <= 0 {
		c.Tenants.CacheTTLSec = 60
	}
	if c.Usage.DailyRetentionHours <= 0 {
		c.Usage.DailyRetentionHours = 48
	}
	if c.Usage.MonthlyRetentionDays <= 0 {
		c.Usage.MonthlyRetentionDays = 62
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if len(c.Database.Addrs) == 0 {
		return errors.New("database.addrs is required")
	}
	switch c.Listings.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("listings.driver must be \"postgres\" or \"sqlite\", got %q", c.Listings.Driver)
	}
	if c.Listings.DSN == "" {
		return errors.New("listings.dsn is required")
	}
	if c.Embedding.Model == "" {
		return errors.New("embedding.model is required")
	}
	if c.Embedding.Dimensions < 0 {
		return fmt.Errorf("embedding.dimensions must be >= 0, got %d", c.Embedding.Dimensions)
	}
	if c.Chat.Model == "" {
		return errors.New("chat.model is required")
	}
	if c.RAG.ReservedTokens >= c.RAG.TokenBudget {
		return fmt.Errorf("rag.reserved_tokens (%d) must be below rag.token_budget (%d)",
			c.RAG.ReservedTokens, c.RAG.TokenBudget)
	}
	return nil
}

// RetryDelay returns the pause between model retries.
func (c ChatConfig) RetryDelay() time.Duration {
	return time.Duration(c.RetryDelayMS) * time.Millisecond
}

// Timeout returns the HTTP client timeout of the chat model.
func (c ChatConfig) Timeout() time.Duration { return time.Duration(c.TimeoutSec) * time.Second }

// Timeout returns the HTTP client timeout of the embedding provider.
func (c EmbeddingConfig) Timeout() time.Duration { return time.Duration(c.TimeoutSec) * time.Second }

// CacheTTL returns the embedding cache entry lifetime (0 = forever).
func (c EmbeddingConfig) CacheTTL() time.Duration { return time.Duration(c.CacheTTLSec) * time.Second }

// CacheTTL returns the tenant cache entry lifetime.
func (c TenantsConfig) CacheTTL() time.Duration { return time.Duration(c.CacheTTLSec) * time.Second }

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
