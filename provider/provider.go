// Package provider resolves the chat-completion client from the first
// available credential, in a fixed priority order. Resolution is explicit:
// credentials are injected by the caller, never read from hidden globals.
package provider

import (
	"context"
	"fmt"

	"github.com/agentstudio/ragchat/llm"
	"github.com/agentstudio/ragchat/provider/claude"
	"github.com/agentstudio/ragchat/provider/gemini"
	"github.com/agentstudio/ragchat/provider/groq"
	"github.com/agentstudio/ragchat/provider/openai"
)

// Credentials carries the API keys for every supported provider. Empty
// fields are skipped during resolution.
type Credentials struct {
	OpenAIKey    string
	AnthropicKey string
	GeminiKey    string
	GroqKey      string
}

// Configured reports whether at least one credential is present.
func (c Credentials) Configured() bool {
	return c.OpenAIKey != "" || c.AnthropicKey != "" || c.GeminiKey != "" || c.GroqKey != ""
}

// Resolve returns a client for the first configured provider, checked in
// order: OpenAI, Anthropic, Gemini, Groq. The second return value is the
// model name the client will use. When no credential is set it returns
// llm.ErrNotConfigured; callers treat that as a degraded mode, not a fault.
func Resolve(ctx context.Context, creds Credentials) (llm.Client, string, error) {
	switch {
	case creds.OpenAIKey != "":
		p := openai.New(openai.DefaultConfig(creds.OpenAIKey))
		return p, p.Model(), nil
	case creds.AnthropicKey != "":
		p := claude.New(claude.DefaultConfig(creds.AnthropicKey))
		return p, p.Model(), nil
	case creds.GeminiKey != "":
		p, err := gemini.New(ctx, gemini.DefaultConfig(creds.GeminiKey))
		if err != nil {
			return nil, "", fmt.Errorf("resolve gemini provider: %w", err)
		}
		return p, p.Model(), nil
	case creds.GroqKey != "":
		p := groq.New(groq.DefaultConfig(creds.GroqKey))
		return p, p.Model(), nil
	}
	return nil, "", llm.ErrNotConfigured
}
