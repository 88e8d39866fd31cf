package config

import (
	"strings"
	"testing"
	"time"
)

func validConfig() *Config {
	return &Config{
		ListenAddr:        ":8080",
		JWTSecret:         "a-sufficiently-long-secret",
		RetrievalEndpoint: "https://retrieval.internal/v1/search",
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("RAGCHAT_JWT_SECRET", "a-sufficiently-long-secret")
	t.Setenv("RAGCHAT_RETRIEVAL_ENDPOINT", "https://retrieval.internal/v1/search")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ListenAddr != ":8080" {
		t.Errorf("ListenAddr = %q, want :8080", cfg.ListenAddr)
	}
	if cfg.RetrievalTimeout != 15*time.Second {
		t.Errorf("RetrievalTimeout = %v, want 15s", cfg.RetrievalTimeout)
	}
	if cfg.LLMCallTimeout != 60*time.Second {
		t.Errorf("LLMCallTimeout = %v, want 60s", cfg.LLMCallTimeout)
	}
	if cfg.RedisTTL != 24*time.Hour {
		t.Errorf("RedisTTL = %v, want 24h", cfg.RedisTTL)
	}
	if cfg.MongoDatabase != "ragchat" {
		t.Errorf("MongoDatabase = %q, want ragchat", cfg.MongoDatabase)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("RAGCHAT_JWT_SECRET", "a-sufficiently-long-secret")
	t.Setenv("RAGCHAT_RETRIEVAL_ENDPOINT", "https://retrieval.internal/v1/search")
	t.Setenv("RAGCHAT_LISTEN_ADDR", ":9999")
	t.Setenv("RAGCHAT_LLM_TIMEOUT", "30s")
	t.Setenv("RAGCHAT_REDIS_ADDR", "localhost:6379")
	t.Setenv("RAGCHAT_REDIS_DB", "3")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ListenAddr != ":9999" {
		t.Errorf("ListenAddr = %q", cfg.ListenAddr)
	}
	if cfg.LLMCallTimeout != 30*time.Second {
		t.Errorf("LLMCallTimeout = %v", cfg.LLMCallTimeout)
	}
	if cfg.RedisDB != 3 {
		t.Errorf("RedisDB = %d", cfg.RedisDB)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid",
			mutate: func(*Config) {},
		},
		{
			name:    "missing jwt secret",
			mutate:  func(c *Config) { c.JWTSecret = "" },
			wantErr: "RAGCHAT_JWT_SECRET",
		},
		{
			name:    "short jwt secret",
			mutate:  func(c *Config) { c.JWTSecret = "tooshort" },
			wantErr: "RAGCHAT_JWT_SECRET",
		},
		{
			name:    "missing retrieval endpoint",
			mutate:  func(c *Config) { c.RetrievalEndpoint = "" },
			wantErr: "RAGCHAT_RETRIEVAL_ENDPOINT",
		},
		{
			name: "bad redis db",
			mutate: func(c *Config) {
				c.RedisAddr = "localhost:6379"
				c.RedisDB = 42
			},
			wantErr: "RAGCHAT_REDIS_DB",
		},
		{
			name: "redis db ignored without addr",
			mutate: func(c *Config) {
				c.RedisDB = 42
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want error mentioning %s", err, tt.wantErr)
			}
		})
	}
}
