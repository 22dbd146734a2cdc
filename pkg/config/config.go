// Package config loads gateway configuration from a YAML file with
// environment-variable expansion, plus credential acquisition from the
// process environment (optionally seeded from a .env file).
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/resilia-labs/inference-gateway/pkg/logging"
)

// minAPIKeyLength triggers a warning for keys that look truncated.
const minAPIKeyLength = 10

// Config holds all gateway configuration.
type Config struct {
	Listen    string       `yaml:"listen"`
	Model     ModelConfig  `yaml:"model"`
	Cache     CacheConfig  `yaml:"cache"`
	Budget    BudgetConfig `yaml:"budget"`
	LogLevel  string       `yaml:"log_level"`
	LogFormat string       `yaml:"log_format"`
}

// ModelConfig identifies the upstream inference endpoint.
type ModelConfig struct {
	Endpoint    string        `yaml:"endpoint"`
	APIKey      string        `yaml:"api_key"`
	MaxAttempts int           `yaml:"max_attempts"`
	Timeout     time.Duration `yaml:"timeout"`
}

// CacheConfig selects the response cache backend. Backend is "sqlite",
// "redis" or "none".
type CacheConfig struct {
	Backend string        `yaml:"backend"`
	Path    string        `yaml:"path"`
	Addr    string        `yaml:"addr"`
	TTL     time.Duration `yaml:"ttl"`
}

// BudgetConfig bounds conversation history and input size.
type BudgetConfig struct {
	MaxHistoryTurns  int `yaml:"max_history_turns"`
	MaxHistoryTokens int `yaml:"max_history_tokens"`
	MaxInputLength   int `yaml:"max_input_length"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Listen: ":8080",
		Model: ModelConfig{
			MaxAttempts: 3,
			Timeout:     30 * time.Second,
		},
		Cache: CacheConfig{
			Backend: "sqlite",
			Path:    "chat_cache.db",
			TTL:     time.Hour,
		},
		Budget: BudgetConfig{
			MaxHistoryTurns:  10,
			MaxHistoryTokens: 800,
			MaxInputLength:   512,
		},
		LogLevel:  "info",
		LogFormat: "json",
	}
}

// Load reads a YAML config file and expands environment variables. A missing
// file is not an error; defaults plus the environment apply.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnv()
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyEnv()
	return cfg, nil
}

// LoadDotenv seeds the process environment from a .env file when one exists.
// Variables already set in the environment win.
func LoadDotenv() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logger := logging.NewLogger("config")
		logger.Warn().Err(err).Msg("Failed to load .env file")
	}
}

// applyEnv fills credential and endpoint gaps from the process environment.
func (c *Config) applyEnv() {
	if c.Model.APIKey == "" {
		c.Model.APIKey = os.Getenv("HF_API_KEY")
	}
	if c.Model.Endpoint == "" {
		c.Model.Endpoint = os.Getenv("HF_API_ENDPOINT")
	}
}

// Validate checks that the configuration can actually run a gateway. A
// missing credential is fatal here, never retried at request time.
func (c *Config) Validate() error {
	if c.Model.Endpoint == "" {
		return fmt.Errorf("model endpoint is required (set model.endpoint or HF_API_ENDPOINT)")
	}
	if c.Model.APIKey == "" {
		return fmt.Errorf("api key is required (set model.api_key or HF_API_KEY)")
	}
	if len(c.Model.APIKey) < minAPIKeyLength {
		logger := logging.NewLogger("config")
		logger.Warn().
			Int("length", len(c.Model.APIKey)).
			Msg("API key looks unusually short")
	}

	switch c.Cache.Backend {
	case "sqlite", "redis", "none":
	default:
		return fmt.Errorf("unknown cache backend %q (want sqlite, redis or none)", c.Cache.Backend)
	}
	if c.Cache.Backend == "redis" && c.Cache.Addr == "" {
		return fmt.Errorf("cache.addr is required for the redis backend")
	}

	return nil
}
