// Package config handles configuration loading for edgarwatch.
// It supports YAML config files with environment variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete application configuration.
type Config struct {
	SEC     SECConfig     `mapstructure:"sec"     yaml:"sec"`
	Batch   BatchConfig   `mapstructure:"batch"   yaml:"batch"`
	LLM     LLMConfig     `mapstructure:"llm"     yaml:"llm"`
	API     APIConfig     `mapstructure:"api"     yaml:"api"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
}

// SECConfig holds EDGAR access settings.
type SECConfig struct {
	UserAgent     string            `mapstructure:"user_agent"     yaml:"user_agent"`
	Transport     string            `mapstructure:"transport"      yaml:"transport"` // "direct" or "relay"
	Relays        []RelayConfig     `mapstructure:"relays"         yaml:"relays"`
	DirectTimeout time.Duration     `mapstructure:"direct_timeout" yaml:"direct_timeout"`
	RelayTimeout  time.Duration     `mapstructure:"relay_timeout"  yaml:"relay_timeout"`
	RateLimit     int               `mapstructure:"rate_limit"     yaml:"rate_limit"` // requests per second
	MinBodyBytes  int               `mapstructure:"min_body_bytes" yaml:"min_body_bytes"`
	DirectoryTTL  time.Duration     `mapstructure:"directory_ttl"  yaml:"directory_ttl"`
	Placeholders  bool              `mapstructure:"placeholders"   yaml:"placeholders"`
	ExtraTickers  map[string]string `mapstructure:"extra_tickers"  yaml:"extra_tickers"` // ticker -> CIK, merged over the curated table
}

// RelayConfig is one relay endpoint. An empty list means the built-in relays.
type RelayConfig struct {
	Name   string `mapstructure:"name"   yaml:"name"`
	Prefix string `mapstructure:"prefix" yaml:"prefix"`
	Encode bool   `mapstructure:"encode" yaml:"encode"`
}

// BatchConfig holds settings for the scheduled snapshot job.
type BatchConfig struct {
	Tickers     []string      `mapstructure:"tickers"     yaml:"tickers"`
	Forms       []string      `mapstructure:"forms"       yaml:"forms"` // tried in order until one yields filings
	Count       int           `mapstructure:"count"       yaml:"count"`
	Delay       time.Duration `mapstructure:"delay"       yaml:"delay"`
	Concurrency int           `mapstructure:"concurrency" yaml:"concurrency"`
	DataDir     string        `mapstructure:"data_dir"    yaml:"data_dir"`
	Narrative   bool          `mapstructure:"narrative"   yaml:"narrative"`
}

// LLMConfig holds narrative model provider configuration.
type LLMConfig struct {
	Primary       string        `mapstructure:"primary"        yaml:"primary"` // "openrouter" or "gemini"
	OpenRouterKey string        `mapstructure:"openrouter_key" yaml:"openrouter_key"`
	GeminiKey     string        `mapstructure:"gemini_key"     yaml:"gemini_key"`
	BaseURL       string        `mapstructure:"base_url"       yaml:"base_url"`
	Model         string        `mapstructure:"model"          yaml:"model"`
	FallbackModel string        `mapstructure:"fallback_model" yaml:"fallback_model"`
	Temperature   float64       `mapstructure:"temperature"    yaml:"temperature"`
	MaxTokens     int           `mapstructure:"max_tokens"     yaml:"max_tokens"`
	Timeout       time.Duration `mapstructure:"timeout"        yaml:"timeout"`
}

// APIConfig holds settings for the read-only snapshot API.
type APIConfig struct {
	Addr            string        `mapstructure:"addr"             yaml:"addr"`
	CORSOrigins     []string      `mapstructure:"cors_origins"     yaml:"cors_origins"`
	RefreshInterval time.Duration `mapstructure:"refresh_interval" yaml:"refresh_interval"` // 0 disables scheduled batch runs
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `mapstructure:"format" yaml:"format"` // "text" or "json"
}

// Load reads the configuration from file and environment variables.
// Config file search order:
//  1. ./config/config.yaml (project root)
//  2. ~/.edgarwatch/config.yaml (home directory)
//  3. /etc/edgarwatch/config.yaml (system)
//
// Environment variables override config file values.
// Format: EDGARWATCH_<SECTION>_<KEY>, e.g., EDGARWATCH_LLM_OPENROUTER_KEY
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(filepath.Join(homeDir(), ".edgarwatch"))
	v.AddConfigPath("/etc/edgarwatch")

	bindEnv(v)

	// Read config file (not required to exist)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	return unmarshal(v)
}

// LoadFromFile reads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	bindEnv(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}

	return unmarshal(v)
}

func bindEnv(v *viper.Viper) {
	v.SetEnvPrefix("EDGARWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	overrideFromEnv(&cfg)
	normalize(&cfg)
	return &cfg, nil
}

// setDefaults sets sensible defaults for all config values.
func setDefaults(v *viper.Viper) {
	// SEC defaults. SEC fair-access policy allows 10 requests per second.
	v.SetDefault("sec.user_agent", "edgarwatch/1.0 (press@example.com)")
	v.SetDefault("sec.transport", "direct")
	v.SetDefault("sec.direct_timeout", 30*time.Second)
	v.SetDefault("sec.relay_timeout", 30*time.Second)
	v.SetDefault("sec.rate_limit", 10)
	v.SetDefault("sec.min_body_bytes", 100)
	v.SetDefault("sec.directory_ttl", 24*time.Hour)
	v.SetDefault("sec.placeholders", true)

	// Batch defaults
	v.SetDefault("batch.tickers", []string{"AAPL", "TSLA", "NVDA", "MSFT", "GOOGL"})
	v.SetDefault("batch.forms", []string{"10-Q", "10-K"})
	v.SetDefault("batch.count", 2)
	v.SetDefault("batch.delay", 200*time.Millisecond)
	v.SetDefault("batch.concurrency", 1)
	v.SetDefault("batch.data_dir", "data")
	v.SetDefault("batch.narrative", true)

	// LLM defaults
	v.SetDefault("llm.primary", "openrouter")
	v.SetDefault("llm.base_url", "https://openrouter.ai/api/v1")
	v.SetDefault("llm.model", "google/gemini-2.0-flash-exp:free")
	v.SetDefault("llm.fallback_model", "gemini-2.0-flash")
	v.SetDefault("llm.temperature", 0.3)
	v.SetDefault("llm.max_tokens", 1000)
	v.SetDefault("llm.timeout", 60*time.Second)

	// API defaults
	v.SetDefault("api.addr", ":8080")
	v.SetDefault("api.refresh_interval", time.Duration(0))

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// overrideFromEnv explicitly reads sensitive keys from environment variables.
// OPENROUTER_API_KEY and GEMINI_API_KEY are honored as well since they are
// what the providers' own tooling exports.
func overrideFromEnv(cfg *Config) {
	if key := firstEnv("EDGARWATCH_LLM_OPENROUTER_KEY", "OPENROUTER_API_KEY"); key != "" {
		cfg.LLM.OpenRouterKey = key
	}
	if key := firstEnv("EDGARWATCH_LLM_GEMINI_KEY", "GEMINI_API_KEY"); key != "" {
		cfg.LLM.GeminiKey = key
	}
	if ua := os.Getenv("EDGARWATCH_SEC_USER_AGENT"); ua != "" {
		cfg.SEC.UserAgent = ua
	}
}

// normalize cleans list values that may arrive as a single comma-separated
// string from the environment.
func normalize(cfg *Config) {
	cfg.Batch.Tickers = splitList(cfg.Batch.Tickers)
	cfg.Batch.Forms = splitList(cfg.Batch.Forms)
	cfg.API.CORSOrigins = splitList(cfg.API.CORSOrigins)
	if cfg.Batch.Concurrency < 1 {
		cfg.Batch.Concurrency = 1
	}
	if cfg.Batch.Count < 1 {
		cfg.Batch.Count = 1
	}
}

func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func firstEnv(names ...string) string {
	for _, n := range names {
		if v := os.Getenv(n); v != "" {
			return v
		}
	}
	return ""
}

// TickerTable returns the curated ticker table merged with any configured extras.
func (c *Config) TickerTable() TickerTable {
	return DefaultTickerTable().With(c.SEC.ExtraTickers)
}

// homeDir returns the user's home directory.
func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
