package rag

import (
	"log/slog"
	"time"

	"github.com/agentstudio/ragchat/cache"
	"github.com/agentstudio/ragchat/llm"
	"github.com/agentstudio/ragchat/memory"
	"github.com/agentstudio/ragchat/store"
)

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLLM sets the chat-completion client. Leaving it unset puts the
// pipeline into its unconfigured-provider degraded mode.
func WithLLM(c llm.Client) Option {
	return func(p *Pipeline) { p.llm = c }
}

// WithMemoryStore enables long-term user memory.
func WithMemoryStore(s memory.Store) Option {
	return func(p *Pipeline) { p.memories = s }
}

// WithProfileLoader enables per-agent memory/awareness settings.
func WithProfileLoader(l memory.ProfileLoader) Option {
	return func(p *Pipeline) { p.profiles = l }
}

// WithComplexityCache enables caching of classifier verdicts.
func WithComplexityCache(c cache.ComplexityCache) Option {
	return func(p *Pipeline) { p.complexityCache = c }
}

// WithStore enables the audit trail (reasoning logs, citations, evaluations,
// experiences, strategy metrics).
func WithStore(s store.Store) Option {
	return func(p *Pipeline) { p.store = s }
}

// WithCallTimeout bounds every model call with a wall-clock deadline.
func WithCallTimeout(d time.Duration) Option {
	return func(p *Pipeline) { p.callTimeout = d }
}

// WithBackgroundTimeout bounds detached tail writes. Defaults to 30s.
func WithBackgroundTimeout(d time.Duration) Option {
	return func(p *Pipeline) { p.bgTimeout = d }
}

// WithLogger overrides the pipeline logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}
