// Package config handles configuration loading for secqa.
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
	Edgar   EdgarConfig   `mapstructure:"edgar"   yaml:"edgar"`
	LLM     LLMConfig     `mapstructure:"llm"     yaml:"llm"`
	API     APIConfig     `mapstructure:"api"     yaml:"api"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
}

// EdgarConfig holds SEC EDGAR client settings.
type EdgarConfig struct {
	// UserAgent is the mandatory identification header (contact name and
	// email) EDGAR requires on every request. There is no default: it must
	// identify the actual operator.
	UserAgent       string `mapstructure:"user_agent"        yaml:"user_agent"`
	CachePath       string `mapstructure:"cache_path"        yaml:"cache_path"`
	UseCache        bool   `mapstructure:"use_cache"         yaml:"use_cache"`
	RequestDelayMS  int    `mapstructure:"request_delay_ms"  yaml:"request_delay_ms"`
	TimeoutSec      int    `mapstructure:"timeout_sec"       yaml:"timeout_sec"`
	MaxContextChars int    `mapstructure:"max_context_chars" yaml:"max_context_chars"`
}

// RequestDelay returns the minimum inter-request delay as a duration.
func (e EdgarConfig) RequestDelay() time.Duration {
	return time.Duration(e.RequestDelayMS) * time.Millisecond
}

// Timeout returns the per-request timeout as a duration.
func (e EdgarConfig) Timeout() time.Duration {
	return time.Duration(e.TimeoutSec) * time.Second
}

// LLMConfig holds LLM provider configuration.
type LLMConfig struct {
	Primary       string  `mapstructure:"primary"        yaml:"primary"` // "anthropic" or "openai"
	AnthropicKey  string  `mapstructure:"anthropic_key"  yaml:"anthropic_key"`
	OpenAIKey     string  `mapstructure:"openai_key"     yaml:"openai_key"`
	Model         string  `mapstructure:"model"          yaml:"model"`
	FallbackModel string  `mapstructure:"fallback_model" yaml:"fallback_model"`
	Temperature   float64 `mapstructure:"temperature"    yaml:"temperature"`
	MaxTokens     int     `mapstructure:"max_tokens"     yaml:"max_tokens"`
}

// APIConfig holds HTTP API server settings.
type APIConfig struct {
	Host        string   `mapstructure:"host"         yaml:"host"`
	Port        int      `mapstructure:"port"         yaml:"port"`
	CORSOrigins []string `mapstructure:"cors_origins" yaml:"cors_origins"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `mapstructure:"format" yaml:"format"` // "text" or "json"
}

// Load reads the configuration from file and environment variables.
// Config file search order:
//  1. ./config/config.yaml (project root)
//  2. ~/.secqa/config.yaml (home directory)
//  3. /etc/secqa/config.yaml (system)
//
// Environment variables override config file values.
// Format: SECQA_<SECTION>_<KEY>, e.g., SECQA_EDGAR_USER_AGENT
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(filepath.Join(homeDir(), ".secqa"))
	v.AddConfigPath("/etc/secqa")

	v.SetEnvPrefix("SECQA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// No config file is fine: defaults plus env vars.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	overrideFromEnv(&cfg)
	return &cfg, nil
}

// LoadFromFile reads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	v.SetEnvPrefix("SECQA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	overrideFromEnv(&cfg)
	return &cfg, nil
}

// setDefaults sets sensible defaults for all config values.
func setDefaults(v *viper.Viper) {
	// EDGAR defaults. No user_agent default on purpose.
	v.SetDefault("edgar.cache_path", "company_tickers.json")
	v.SetDefault("edgar.use_cache", true)
	v.SetDefault("edgar.request_delay_ms", 150)
	v.SetDefault("edgar.timeout_sec", 30)
	v.SetDefault("edgar.max_context_chars", 300000) // ~75K tokens of filing text

	// LLM defaults
	v.SetDefault("llm.primary", "anthropic")
	v.SetDefault("llm.model", "claude-sonnet-4-20250514")
	v.SetDefault("llm.fallback_model", "gpt-4o")
	v.SetDefault("llm.temperature", 0.1)
	v.SetDefault("llm.max_tokens", 1024)

	// API defaults
	v.SetDefault("api.host", "0.0.0.0")
	v.SetDefault("api.port", 8080)
	v.SetDefault("api.cors_origins", []string{"*"})

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// overrideFromEnv explicitly reads sensitive keys from environment variables.
func overrideFromEnv(cfg *Config) {
	if key := os.Getenv("SECQA_LLM_ANTHROPIC_KEY"); key != "" {
		cfg.LLM.AnthropicKey = key
	}
	if key := os.Getenv("SECQA_LLM_OPENAI_KEY"); key != "" {
		cfg.LLM.OpenAIKey = key
	}
	if ua := os.Getenv("SECQA_EDGAR_USER_AGENT"); ua != "" {
		cfg.Edgar.UserAgent = ua
	}
}

// homeDir returns the user's home directory.
func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
