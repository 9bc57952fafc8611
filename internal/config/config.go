// Package config loads the engine configuration from the environment, with
// an optional .env file for local development.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds everything the CLI and servers need to wire the engine.
type Config struct {
	// Model API (OpenAI-compatible).
	ModelBaseURL string
	ModelAPIKey  string
	ChatModel    string
	EmbedModel   string
	ModelTimeout time.Duration

	// Sampling defaults.
	Temperature float64
	TopP        float64
	MaxTokens   int

	// Retrieval.
	ChunkSize    int
	ChunkOverlap int
	TopK         int

	// Session persistence. Empty RedisAddr means in-memory.
	RedisAddr     string
	RedisPassword string
	SessionTTL    time.Duration

	// EncryptionKey, when set, must be 32 bytes and enables at-rest
	// encryption of session state.
	EncryptionKey string

	// Vector store. Empty PostgresDSN means in-memory.
	PostgresDSN string

	// Servers.
	HTTPAddr string
	MCPPort  int

	LogLevel string
}

// Load reads the configuration, first from a .env file when present, then
// from the environment.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("load env file %s: %w", envFile, err)
		}
	} else {
		_ = godotenv.Load()
	}

	cfg := &Config{
		ModelBaseURL: envStr("ESPALIER_MODEL_BASE_URL", "http://localhost:11434/v1"),
		ModelAPIKey:  envStr("ESPALIER_MODEL_API_KEY", ""),
		ChatModel:    envStr("ESPALIER_CHAT_MODEL", "gpt-4o-mini"),
		EmbedModel:   envStr("ESPALIER_EMBED_MODEL", "text-embedding-3-small"),

		Temperature: envFloat("ESPALIER_TEMPERATURE", 0.7),
		TopP:        envFloat("ESPALIER_TOP_P", 0),
		MaxTokens:   envInt("ESPALIER_MAX_TOKENS", 0),

		ChunkSize:    envInt("ESPALIER_CHUNK_SIZE", 1000),
		ChunkOverlap: envInt("ESPALIER_CHUNK_OVERLAP", 200),
		TopK:         envInt("ESPALIER_TOP_K", 4),

		RedisAddr:     envStr("ESPALIER_REDIS_ADDR", ""),
		RedisPassword: envStr("ESPALIER_REDIS_PASSWORD", ""),

		EncryptionKey: envStr("ESPALIER_ENCRYPTION_KEY", ""),

		PostgresDSN: envStr("ESPALIER_POSTGRES_DSN", ""),

		HTTPAddr: envStr("ESPALIER_HTTP_ADDR", ":8080"),
		MCPPort:  envInt("ESPALIER_MCP_PORT", 8765),

		LogLevel: envStr("ESPALIER_LOG_LEVEL", "info"),
	}

	var err error
	if cfg.ModelTimeout, err = envDuration("ESPALIER_MODEL_TIMEOUT", 60*time.Second); err != nil {
		return nil, err
	}
	if cfg.SessionTTL, err = envDuration("ESPALIER_SESSION_TTL", 24*time.Hour); err != nil {
		return nil, err
	}

	if cfg.EncryptionKey != "" && len(cfg.EncryptionKey) != 32 {
		return nil, fmt.Errorf("ESPALIER_ENCRYPTION_KEY must be exactly 32 bytes, got %d", len(cfg.EncryptionKey))
	}
	if cfg.ChunkOverlap >= cfg.ChunkSize {
		return nil, fmt.Errorf("ESPALIER_CHUNK_OVERLAP (%d) must be smaller than ESPALIER_CHUNK_SIZE (%d)", cfg.ChunkOverlap, cfg.ChunkSize)
	}

	return cfg, nil
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
