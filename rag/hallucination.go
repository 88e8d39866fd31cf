package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/agentstudio/ragchat/llm"
	"github.com/agentstudio/ragchat/message"
	"github.com/agentstudio/ragchat/pkg/tokens"
	"github.com/agentstudio/ragchat/retrieval"
)

const hallucinationPrompt = `You are a hallucination detector. Analyze if the response contains claims not supported by the provided sources.

Respond with JSON:
{
  "hallucination_detected": true/false,
  "unsupported_claims": [{"claim": "specific claim text", "issue": "why unsupported"}],
  "supported_claims_count": number,
  "confidence": 0.0-1.0
}`

// UnsupportedClaim is one flagged statement from the hallucination check.
type UnsupportedClaim struct {
	Claim string `json:"claim"`
	Issue string `json:"issue"`
}

type hallucinationResult struct {
	Detected   bool
	Details    []UnsupportedClaim
	Confidence float64
}

type hallucinationVerdict struct {
	HallucinationDetected bool               `json:"hallucination_detected"`
	UnsupportedClaims     []UnsupportedClaim `json:"unsupported_claims"`
	SupportedClaimsCount  int                `json:"supported_claims_count"`
	Confidence            float64            `json:"confidence"`
}

// checkHallucinations cross-checks the answer against up to 5 retrieved
// chunks. It never blocks delivery: any failure yields the optimistic
// not-detected default at 0.5 confidence.
func (p *Pipeline) checkHallucinations(ctx context.Context, answer string, chunks []retrieval.Chunk, query string) hallucinationResult {
	fallback := hallucinationResult{Detected: false, Confidence: 0.5}
	if p.llm == nil {
		return fallback
	}

	var parts []string
	for i, c := range chunks {
		if i >= 5 {
			break
		}
		parts = append(parts, c.Content)
	}
	contextBlock := tokens.ClipRunes(strings.Join(parts, "\n\n"), 4000)

	userPrompt := fmt.Sprintf("Query: %q\n\nSource Documents:\n%s\n\nResponse to Verify:\n%s\n\nCheck each factual claim in the response against the sources.",
		query, contextBlock, answer)

	resp, err := p.llm.Generate(ctx, &llm.Request{
		Messages: []message.Message{
			message.System(hallucinationPrompt),
			message.User(userPrompt),
		},
		MaxTokens: 600,
	})
	if err != nil {
		p.logger.Warn("hallucination check failed", "error", err)
		return fallback
	}

	verdict, err := decodeJSON[hallucinationVerdict](resp.Content)
	if err != nil {
		p.logger.Warn("hallucination verdict unparseable", "error", err)
		return fallback
	}

	confidence := verdict.Confidence
	if confidence == 0 {
		confidence = 0.5
	}
	return hallucinationResult{
		Detected:   verdict.HallucinationDetected,
		Details:    verdict.UnsupportedClaims,
		Confidence: confidence,
	}
}
