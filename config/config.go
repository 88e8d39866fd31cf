// Package config loads the service configuration from the environment.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config is the full service configuration. Only the retrieval endpoint and
// JWT secret are required; everything else enables an optional collaborator.
type Config struct {
	// HTTP
	ListenAddr string

	// Auth
	JWTSecret string

	// Retrieval collaborator
	RetrievalEndpoint   string
	RetrievalServiceKey string
	RetrievalTimeout    time.Duration

	// LLM provider credentials, resolved in priority order.
	OpenAIKey    string
	AnthropicKey string
	GeminiKey    string
	GroqKey      string

	// Wall-clock budget per model call. Zero disables the deadline.
	LLMCallTimeout time.Duration

	// Optional stores.
	PostgresDSN   string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisTTL      time.Duration
	MongoURI      string
	MongoDatabase string

	// Telemetry backend selection is handled by pkg/telemetry via the
	// standard OTEL_EXPORTER_OTLP_ENDPOINT variable.
}

// Load reads configuration from RAGCHAT_* environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		ListenAddr:          envOr("RAGCHAT_LISTEN_ADDR", ":8080"),
		JWTSecret:           os.Getenv("RAGCHAT_JWT_SECRET"),
		RetrievalEndpoint:   os.Getenv("RAGCHAT_RETRIEVAL_ENDPOINT"),
		RetrievalServiceKey: os.Getenv("RAGCHAT_RETRIEVAL_SERVICE_KEY"),
		RetrievalTimeout:    envDuration("RAGCHAT_RETRIEVAL_TIMEOUT", 15*time.Second),
		OpenAIKey:           os.Getenv("OPENAI_API_KEY"),
		AnthropicKey:        os.Getenv("ANTHROPIC_API_KEY"),
		GeminiKey:           os.Getenv("GEMINI_API_KEY"),
		GroqKey:             os.Getenv("GROQ_API_KEY"),
		LLMCallTimeout:      envDuration("RAGCHAT_LLM_TIMEOUT", 60*time.Second),
		PostgresDSN:         os.Getenv("RAGCHAT_POSTGRES_DSN"),
		RedisAddr:           os.Getenv("RAGCHAT_REDIS_ADDR"),
		RedisPassword:       os.Getenv("RAGCHAT_REDIS_PASSWORD"),
		RedisDB:             envInt("RAGCHAT_REDIS_DB", 0),
		RedisTTL:            envDuration("RAGCHAT_REDIS_TTL", 24*time.Hour),
		MongoURI:            os.Getenv("RAGCHAT_MONGO_URI"),
		MongoDatabase:       envOr("RAGCHAT_MONGO_DATABASE", "ragchat"),
	}
	return cfg, cfg.Validate()
}

// Validate checks the required fields and value ranges.
func (c *Config) Validate() error {
	v := NewValidator()
	v.RequireNonEmpty("RAGCHAT_JWT_SECRET", c.JWTSecret)
	v.ValidateMinLength("RAGCHAT_JWT_SECRET", c.JWTSecret, 16)
	v.RequireNonEmpty("RAGCHAT_RETRIEVAL_ENDPOINT", c.RetrievalEndpoint)
	if c.RedisAddr != "" {
		v.ValidateDBNumber("RAGCHAT_REDIS_DB", c.RedisDB)
	}
	return v.Error()
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
