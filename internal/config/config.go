// Package config loads server and CLI configuration from the environment,
// with an optional YAML overlay for values that are awkward as env vars.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration values.
type Config struct {
	// HTTP server
	ListenAddr string
	JWTSecret  string
	JWTExpiry  time.Duration

	// SurrealDB connection
	SurrealDBURL       string
	SurrealDBNamespace string
	SurrealDBDatabase  string
	SurrealDBUser      string
	SurrealDBPass      string

	// LLM provider
	Provider        string // ollama | openai | anthropic | bedrock
	Model           string
	SuggestModel    string
	OllamaHost      string
	OpenAIKey       string
	AnthropicKey    string
	BedrockModelARN string

	// Client
	ServerURL  string
	SessionDir string

	// Logging
	LogFile  string
	LogLevel slog.Level
}

// fileConfig is the YAML overlay shape. Only fields that are set override
// the environment.
type fileConfig struct {
	ListenAddr   string `yaml:"listen_addr"`
	JWTSecret    string `yaml:"jwt_secret"`
	SurrealDBURL string `yaml:"surrealdb_url"`
	Provider     string `yaml:"provider"`
	Model        string `yaml:"model"`
	SuggestModel string `yaml:"suggest_model"`
	ServerURL    string `yaml:"server_url"`
	LogFile      string `yaml:"log_file"`
	LogLevel     string `yaml:"log_level"`
}

// Load reads configuration from environment variables, then applies the
// YAML file at $PERISCOPE_CONFIG on top when set.
func Load() (Config, error) {
	cfg := Config{
		ListenAddr: getEnv("PERISCOPE_LISTEN_ADDR", ":8484"),
		JWTSecret:  getEnv("PERISCOPE_JWT_SECRET", ""),
		JWTExpiry:  getEnvDuration("PERISCOPE_JWT_EXPIRY", 7*24*time.Hour),

		SurrealDBURL:       getEnv("SURREALDB_URL", "ws://localhost:8000/rpc"),
		SurrealDBNamespace: getEnv("SURREALDB_NAMESPACE", "periscope"),
		SurrealDBDatabase:  getEnv("SURREALDB_DATABASE", "app"),
		SurrealDBUser:      getEnv("SURREALDB_USER", "root"),
		SurrealDBPass:      getEnv("SURREALDB_PASS", "root"),

		Provider:        getEnv("PERISCOPE_PROVIDER", "ollama"),
		Model:           getEnv("PERISCOPE_MODEL", "llama3.2"),
		SuggestModel:    getEnv("PERISCOPE_SUGGEST_MODEL", ""),
		OllamaHost:      getEnv("OLLAMA_HOST", "http://localhost:11434"),
		OpenAIKey:       getEnv("OPENAI_API_KEY", ""),
		AnthropicKey:    getEnv("ANTHROPIC_API_KEY", ""),
		BedrockModelARN: getEnv("PERISCOPE_BEDROCK_MODEL_ARN", ""),

		ServerURL:  getEnv("PERISCOPE_SERVER_URL", "http://localhost:8484"),
		SessionDir: getEnv("PERISCOPE_SESSION_DIR", defaultSessionDir()),

		LogFile:  getEnv("PERISCOPE_LOG_FILE", ""),
		LogLevel: parseLogLevel(getEnv("PERISCOPE_LOG_LEVEL", "INFO")),
	}

	if path := os.Getenv("PERISCOPE_CONFIG"); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return cfg, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if cfg.SuggestModel == "" {
		cfg.SuggestModel = cfg.Model
	}
	return cfg, nil
}

func (c *Config) applyFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var fc fileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return err
	}
	setIf(&c.ListenAddr, fc.ListenAddr)
	setIf(&c.JWTSecret, fc.JWTSecret)
	setIf(&c.SurrealDBURL, fc.SurrealDBURL)
	setIf(&c.Provider, fc.Provider)
	setIf(&c.Model, fc.Model)
	setIf(&c.SuggestModel, fc.SuggestModel)
	setIf(&c.ServerURL, fc.ServerURL)
	setIf(&c.LogFile, fc.LogFile)
	if fc.LogLevel != "" {
		c.LogLevel = parseLogLevel(fc.LogLevel)
	}
	return nil
}

func setIf(dst *string, val string) {
	if val != "" {
		*dst = val
	}
}

func defaultSessionDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "periscope")
	}
	return filepath.Join(home, ".periscope")
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(val); err == nil {
		return d
	}
	// Plain integers are hours.
	if hours, err := strconv.Atoi(val); err == nil {
		return time.Duration(hours) * time.Hour
	}
	return defaultVal
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
