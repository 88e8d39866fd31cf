package rag

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/agentstudio/ragchat/cache"
	"github.com/agentstudio/ragchat/llm"
	"github.com/agentstudio/ragchat/message"
	"github.com/agentstudio/ragchat/pkg/tokens"
)

const classifierPrompt = `You are a query complexity analyzer. Classify queries to determine the best retrieval strategy.

Respond with JSON:
{
  "complexity": "simple|moderate|complex|conversational",
  "strategy": "direct_answer|simple_lookup|standard_rag|multi_hop|agentic_full",
  "reasoning": "brief explanation",
  "indicators": {
    "requires_synthesis": true/false,
    "multi_document": true/false,
    "temporal_reasoning": true/false,
    "comparison_needed": true/false,
    "follow_up_question": true/false
  }
}

Classification guide:
- SIMPLE: Direct factual question, single document likely sufficient
- MODERATE: Needs multiple sources or some synthesis
- COMPLEX: Research-level, requires analysis, comparison, or multi-step reasoning
- CONVERSATIONAL: Follow-up question using context from conversation`

// classification is the classifier's verdict for one query.
type classification struct {
	Complexity QueryComplexity
	Strategy   string
	Reasoning  string
}

func defaultClassification(reasoning string) classification {
	return classification{
		Complexity: ComplexityModerate,
		Strategy:   StrategyStandardRAG,
		Reasoning:  reasoning,
	}
}

type classifierVerdict struct {
	Complexity string         `json:"complexity"`
	Strategy   string         `json:"strategy"`
	Reasoning  string         `json:"reasoning"`
	Indicators map[string]any `json:"indicators"`
}

// queryHash returns the hex SHA-256 of the normalized query text.
func queryHash(query string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(strings.ToLower(query))))
	return hex.EncodeToString(sum[:])
}

// classify assigns a complexity tier and answering strategy to the query.
// Cache hits skip the model call entirely. Any model or parse failure falls
// back to the moderate/standard_rag default; classification never fails a
// request.
func (p *Pipeline) classify(ctx context.Context, query string, history []message.Message) classification {
	hash := queryHash(query)

	if p.complexityCache != nil {
		rec, err := p.complexityCache.Get(ctx, hash)
		if err != nil {
			p.logger.Warn("complexity cache lookup failed", "error", err)
		} else if rec != nil {
			return classification{
				Complexity: QueryComplexity(rec.Complexity),
				Strategy:   rec.RecommendedStrategy,
				Reasoning:  "Cached analysis",
			}
		}
	}

	if p.llm == nil {
		return defaultClassification("No AI provider configured")
	}

	var recent []string
	for _, m := range message.Tail(history, 2) {
		recent = append(recent, tokens.ClipRunes(m.Content, 100))
	}
	userPrompt := fmt.Sprintf("Query: %q\nConversation length: %d messages\nLast 2 messages context: %s",
		query, len(history), strings.Join(recent, " | "))

	resp, err := p.llm.Generate(ctx, &llm.Request{
		Messages: []message.Message{
			message.System(classifierPrompt),
			message.User(userPrompt),
		},
		MaxTokens: 300,
	})
	if err != nil {
		p.logger.Warn("complexity analysis failed", "error", err)
		return defaultClassification("Analysis failed, using default")
	}

	verdict, err := decodeJSON[classifierVerdict](resp.Content)
	if err != nil {
		p.logger.Warn("complexity verdict unparseable", "error", err)
		return defaultClassification("Analysis failed, using default")
	}

	out := classification{
		Complexity: QueryComplexity(verdict.Complexity),
		Strategy:   verdict.Strategy,
		Reasoning:  verdict.Reasoning,
	}
	if out.Complexity == "" {
		out.Complexity = ComplexityModerate
	}
	if out.Strategy == "" {
		out.Strategy = StrategyStandardRAG
	}

	if p.complexityCache != nil {
		rec := &cache.Record{
			QueryHash:           hash,
			OriginalQuery:       tokens.ClipRunes(query, 500),
			Complexity:          string(out.Complexity),
			RecommendedStrategy: out.Strategy,
			AnalysisDetails:     verdict.Indicators,
		}
		if err := p.complexityCache.Put(ctx, rec); err != nil {
			p.logger.Warn("complexity cache write failed", "error", err)
		}
	}
	return out
}
