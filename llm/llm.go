// Package llm defines the minimal chat-completion surface the pipeline
// depends on. Concrete providers live under provider/.
package llm

import (
	"context"
	"errors"

	"github.com/agentstudio/ragchat/message"
)

// ErrNotConfigured is returned when no provider credential is available.
var ErrNotConfigured = errors.New("llm: no provider configured")

// Request bundles inputs for a non-streaming LLM invocation.
type Request struct {
	Messages  []message.Message
	MaxTokens int64
}

// Response captures the LLM reply for non-streaming calls.
type Response struct {
	Content string
}

// Client is implemented by all LLM providers.
type Client interface {
	// Generate produces a completion for the given messages.
	Generate(ctx context.Context, req *Request) (*Response, error)
}
