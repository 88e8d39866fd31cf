package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/agentstudio/ragchat/auth"
	"github.com/agentstudio/ragchat/cache"
	"github.com/agentstudio/ragchat/config"
	"github.com/agentstudio/ragchat/llm"
	"github.com/agentstudio/ragchat/memory"
	"github.com/agentstudio/ragchat/pkg/logging"
	"github.com/agentstudio/ragchat/pkg/telemetry"
	"github.com/agentstudio/ragchat/provider"
	"github.com/agentstudio/ragchat/rag"
	"github.com/agentstudio/ragchat/retrieval"
	"github.com/agentstudio/ragchat/server"
	"github.com/agentstudio/ragchat/store"
)

func main() {
	logger := logging.Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("configuration invalid", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Init(ctx, telemetry.Config{ServiceName: "ragchat"})
	if err != nil {
		logger.Error("telemetry init failed", "error", err)
		os.Exit(1)
	}
	defer shutdownTelemetry(context.Background())

	verifier, err := auth.NewVerifier(cfg.JWTSecret)
	if err != nil {
		logger.Error("auth init failed", "error", err)
		os.Exit(1)
	}

	searcher := retrieval.NewClient(cfg.RetrievalEndpoint, cfg.RetrievalServiceKey, cfg.RetrievalTimeout)

	opts := []rag.Option{
		rag.WithCallTimeout(cfg.LLMCallTimeout),
	}

	client, name, err := provider.Resolve(ctx, provider.Credentials{
		OpenAIKey:    cfg.OpenAIKey,
		AnthropicKey: cfg.AnthropicKey,
		GeminiKey:    cfg.GeminiKey,
		GroqKey:      cfg.GroqKey,
	})
	switch {
	case errors.Is(err, llm.ErrNotConfigured):
		// The pipeline degrades to its fixed explanatory responses.
		logger.Warn("no LLM provider configured")
	case err != nil:
		logger.Error("provider init failed", "error", err)
		os.Exit(1)
	default:
		logger.Info("LLM provider selected", "provider", name)
		opts = append(opts, rag.WithLLM(client))
	}

	if cfg.RedisAddr != "" {
		redisCache, err := cache.NewRedisCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.RedisTTL)
		if err != nil {
			logger.Error("redis init failed", "error", err)
			os.Exit(1)
		}
		defer redisCache.Close()
		opts = append(opts, rag.WithComplexityCache(redisCache))
	} else {
		opts = append(opts, rag.WithComplexityCache(cache.NewMemoryCache()))
	}

	if cfg.PostgresDSN != "" {
		memStore, err := memory.NewPostgresStore(cfg.PostgresDSN)
		if err != nil {
			logger.Error("memory store init failed", "error", err)
			os.Exit(1)
		}
		defer memStore.Close()
		opts = append(opts, rag.WithMemoryStore(memStore), rag.WithProfileLoader(memStore))

		auditStore, err := store.NewPostgresStore(cfg.PostgresDSN)
		if err != nil {
			logger.Error("audit store init failed", "error", err)
			os.Exit(1)
		}
		defer auditStore.Close()
		opts = append(opts, rag.WithStore(auditStore))
	} else if cfg.MongoURI != "" {
		auditStore, err := store.NewMongoStore(cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			logger.Error("audit store init failed", "error", err)
			os.Exit(1)
		}
		defer auditStore.Close(context.Background())
		opts = append(opts, rag.WithStore(auditStore))
	}

	pipeline := rag.New(searcher, opts...)
	srv := server.New(pipeline, verifier)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe(cfg.ListenAddr)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}
