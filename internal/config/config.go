// Package config provides application configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hupe1980/firegraph/core"
)

// Providers accepted in LLM_PROVIDER.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// Config holds all application configuration.
type Config struct {
	Port     string
	DBPath   string
	LogLevel string
	// LogFormat is "json" or "text".
	LogFormat string

	Model ModelConfig

	// MCPServersFile points to the YAML table of tool servers.
	MCPServersFile string
	// KnowledgeDir holds the reference documents loaded into the knowledge store.
	KnowledgeDir string

	HistoryLimit  int
	MaxSteps      int
	WorkerSteps   int
	TurnDeadline  time.Duration
	WorkerTimeout time.Duration
}

// ModelConfig selects and tunes the language model.
type ModelConfig struct {
	Provider       string
	Name           string
	APIKey         string
	Temperature    float64
	MaxRetries     int
	RequestTimeout time.Duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	provider := strings.ToLower(getEnv("LLM_PROVIDER", ProviderOpenAI))

	cfg := &Config{
		Port:      getEnv("PORT", "8080"),
		DBPath:    getEnv("DB_PATH", "./data/checkpoints.db"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
		Model: ModelConfig{
			Provider:       provider,
			Name:           getEnv("MODEL_NAME", defaultModel(provider)),
			APIKey:         apiKey(provider),
			Temperature:    getEnvFloat("MODEL_TEMPERATURE", 0),
			MaxRetries:     getEnvInt("MODEL_MAX_RETRIES", 6),
			RequestTimeout: getEnvDuration("MODEL_REQUEST_TIMEOUT", 50*time.Second),
		},
		MCPServersFile: getEnv("MCP_SERVERS_FILE", "./mcp_servers.yaml"),
		KnowledgeDir:   getEnv("KNOWLEDGE_DIR", ""),
		HistoryLimit:   getEnvInt("HISTORY_LIMIT", 10),
		MaxSteps:       getEnvInt("MAX_STEPS", 50),
		WorkerSteps:    getEnvInt("WORKER_STEPS", 15),
		TurnDeadline:   getEnvDuration("TURN_DEADLINE", 55*time.Second),
		WorkerTimeout:  getEnvDuration("WORKER_TIMEOUT", 45*time.Second),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set. Errors are
// configuration failures.
func (c *Config) Validate() error {
	var errs []error

	if c.Port == "" {
		errs = append(errs, errors.New("PORT cannot be empty"))
	}
	if c.DBPath == "" {
		errs = append(errs, errors.New("DB_PATH cannot be empty"))
	}

	switch c.Model.Provider {
	case ProviderOpenAI:
		if c.Model.APIKey == "" {
			errs = append(errs, errors.New("OPENAI_API_KEY is required for the openai provider"))
		}
	case ProviderAnthropic:
		if c.Model.APIKey == "" {
			errs = append(errs, errors.New("ANTHROPIC_API_KEY is required for the anthropic provider"))
		}
	default:
		errs = append(errs, fmt.Errorf("LLM_PROVIDER %q is not supported", c.Model.Provider))
	}

	if c.Model.Name == "" {
		errs = append(errs, errors.New("MODEL_NAME cannot be empty"))
	}
	if c.Model.MaxRetries < 0 {
		errs = append(errs, errors.New("MODEL_MAX_RETRIES must be >= 0"))
	}
	if c.HistoryLimit < 0 {
		errs = append(errs, errors.New("HISTORY_LIMIT must be >= 0"))
	}
	if c.MaxSteps <= 0 {
		errs = append(errs, errors.New("MAX_STEPS must be > 0"))
	}
	if c.TurnDeadline <= 0 {
		errs = append(errs, errors.New("TURN_DEADLINE must be > 0"))
	}
	if c.WorkerTimeout <= 0 {
		errs = append(errs, errors.New("WORKER_TIMEOUT must be > 0"))
	}

	if len(errs) > 0 {
		return core.NewFailure(core.FailureConfiguration, "config", errors.Join(errs...))
	}

	return nil
}

func defaultModel(provider string) string {
	if provider == ProviderAnthropic {
		return "claude-3-5-sonnet-20241022"
	}
	return "gpt-4o"
}

func apiKey(provider string) string {
	if provider == ProviderAnthropic {
		return getEnv("ANTHROPIC_API_KEY", "")
	}
	return getEnv("OPENAI_API_KEY", "")
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return f
}

// getEnvDuration accepts Go durations ("55s") and plain seconds ("55").
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	value = strings.TrimSpace(value)
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if n, err := strconv.Atoi(value); err == nil {
		return time.Duration(n) * time.Second
	}
	return fallback
}
