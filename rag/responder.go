package rag

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/agentstudio/ragchat/llm"
	"github.com/agentstudio/ragchat/message"
	"github.com/agentstudio/ragchat/pkg/tokens"
	"github.com/agentstudio/ragchat/retrieval"
	"github.com/agentstudio/ragchat/tool"
)

// Fixed user-visible strings for degraded upstreams. The pipeline keeps
// running (validation, persistence) even when these are returned.
const (
	msgNotConfigured = "AI service is not configured. Please set OPENAI_API_KEY, ANTHROPIC_API_KEY, GEMINI_API_KEY, or GROQ_API_KEY."
	msgUpstreamError = "I encountered an error while reaching the AI service. Please try again later."
)

var sourceMarkerRe = regexp.MustCompile(`\[Source (\d+)\]`)

type responderResult struct {
	Answer    string
	Chunks    []retrieval.Chunk
	Citations []Citation
}

// respondStandard is the non-agentic path for simple and moderate queries:
// one retrieval, one completion, citations extracted from [Source N] markers.
func (p *Pipeline) respondStandard(ctx context.Context, query string, folderIDs []string, cfg *AgentConfig, aw AwarenessSettings, customTemplate string, history []message.Message) responderResult {
	chunks := tool.KnowledgeSearch(ctx, p.searcher, query, folderIDs, 5)

	var ctxParts []string
	for i, c := range chunks {
		ctxParts = append(ctxParts, fmt.Sprintf("[Source %d: %s]\n%s", i+1, c.SourceFile, c.Content))
	}
	contextBlock := strings.Join(ctxParts, "\n\n---\n\n")

	systemPrompt := personaPrompt(cfg, "You are a helpful AI assistant.")
	var rules *ResponseRules
	if cfg != nil {
		rules = cfg.ResponseRules
	}
	systemPrompt += responderRulesSection(rules)

	template := customTemplate
	if template == "" && rules != nil {
		template = rules.CustomResponseTemplate
	}
	if template != "" {
		systemPrompt += "\n\n## RESPONSE TEMPLATE\nStructure your response following this template:\n" + template
	}

	systemPrompt += awarenessSection(cfg, aw)
	systemPrompt += "\n\nUse the provided context to answer questions.\n\n=== CONTEXT ===\n" + contextBlock + "\n=== END CONTEXT ==="

	answer := ""
	if p.llm == nil {
		p.logger.Error("no AI provider configured")
		answer = msgNotConfigured
	} else {
		msgs := append([]message.Message{message.System(systemPrompt)}, message.Tail(history, 6)...)
		resp, err := p.llm.Generate(ctx, &llm.Request{Messages: msgs, MaxTokens: 2000})
		if err != nil {
			p.logger.Error("completion failed", "error", err)
			answer = msgUpstreamError
		} else {
			answer = resp.Content
		}
	}

	return responderResult{
		Answer:    answer,
		Chunks:    chunks,
		Citations: extractCitations(answer, chunks),
	}
}

// extractCitations maps [Source N] markers in the answer back onto the
// retrieved chunk list. Markers are 1-indexed; out-of-range and duplicate
// indices are dropped.
func extractCitations(answer string, chunks []retrieval.Chunk) []Citation {
	var citations []Citation
	seen := make(map[int]bool)
	for _, m := range sourceMarkerRe.FindAllStringSubmatch(answer, -1) {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		idx := n - 1
		if idx < 0 || idx >= len(chunks) || seen[idx] {
			continue
		}
		seen[idx] = true
		c := chunks[idx]
		citations = append(citations, Citation{
			ChunkID:         c.ID,
			SourceFile:      c.SourceFile,
			CitationText:    tokens.ClipRunes(c.Content, 200),
			ConfidenceScore: relevanceOr(c, 0.5),
		})
	}
	return citations
}
