// Package config loads command configuration from the environment and from
// YAML agent files, and builds providers, loggers and agents from it.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the command configuration loaded from environment variables.
type Config struct {
	// Server
	Port     string
	LogLevel string // debug, info, warn, error

	// Provider selection
	Provider string
	Model    string

	// API Keys
	AnthropicKey string
	OpenAIKey    string
	GoogleKey    string

	// Vertex AI (uses ADC for auth)
	VertexProject  string
	VertexLocation string

	// Agent
	AgentFile   string
	Mode        string
	MaxSteps    int
	MaxDuration time.Duration
	MaxTokens   int
	DemoTools   bool

	// DataDir holds persisted thread memories. Empty keeps them in process.
	DataDir string
}

// Load reads configuration from environment variables.
// It loads a .env file first if one is present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:           getEnvOrDefault("GAMBIT_PORT", "8000"),
		LogLevel:       getEnvOrDefault("GAMBIT_LOG_LEVEL", "info"),
		Provider:       os.Getenv("GAMBIT_PROVIDER"),
		Model:          os.Getenv("GAMBIT_MODEL"),
		AnthropicKey:   os.Getenv("ANTHROPIC_API_KEY"),
		OpenAIKey:      os.Getenv("OPENAI_API_KEY"),
		GoogleKey:      os.Getenv("GOOGLE_API_KEY"),
		VertexProject:  os.Getenv("VERTEX_PROJECT"),
		VertexLocation: os.Getenv("VERTEX_LOCATION"),
		AgentFile:      os.Getenv("GAMBIT_AGENT_FILE"),
		Mode:           getEnvOrDefault("GAMBIT_MODE", "code"),
		MaxSteps:       getEnvIntOrDefault("GAMBIT_MAX_STEPS", 10),
		MaxDuration:    getEnvDurationOrDefault("GAMBIT_MAX_DURATION", 2*time.Minute),
		MaxTokens:      getEnvIntOrDefault("GAMBIT_MAX_TOKENS", 0),
		DemoTools:      getEnvBoolOrDefault("GAMBIT_DEMO_TOOLS", true),
		DataDir:        os.Getenv("GAMBIT_DATA_DIR"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	switch c.Provider {
	case "":
		return fmt.Errorf("GAMBIT_PROVIDER is required (anthropic, openai, google, or vertex)")
	case "anthropic":
		if c.AnthropicKey == "" {
			return fmt.Errorf("ANTHROPIC_API_KEY is required for anthropic provider")
		}
	case "openai":
		if c.OpenAIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required for openai provider")
		}
	case "google":
		if c.GoogleKey == "" {
			return fmt.Errorf("GOOGLE_API_KEY is required for google provider")
		}
	case "vertex":
		if c.VertexProject == "" || c.VertexLocation == "" {
			return fmt.Errorf("VERTEX_PROJECT and VERTEX_LOCATION are required for vertex provider")
		}
	default:
		return fmt.Errorf("unknown provider: %s (must be anthropic, openai, google, or vertex)", c.Provider)
	}

	switch c.Mode {
	case "code", "tool_calling":
	default:
		return fmt.Errorf("unknown mode: %s (must be code or tool_calling)", c.Mode)
	}
	if c.MaxSteps < 0 || c.MaxTokens < 0 || c.MaxDuration < 0 {
		return fmt.Errorf("budget limits must not be negative")
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
