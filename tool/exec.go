package tool

import (
	"context"
	"fmt"
	"strings"

	"github.com/agentstudio/ragchat/llm"
	"github.com/agentstudio/ragchat/message"
	"github.com/agentstudio/ragchat/pkg/logging"
	"github.com/agentstudio/ragchat/pkg/tokens"
	"github.com/agentstudio/ragchat/retrieval"
)

// compareMaxDocs caps how many chunks a comparison may span.
const compareMaxDocs = 5

// KnowledgeSearch retrieves chunks for the query. It never fails: any
// retrieval error yields an empty result.
func KnowledgeSearch(ctx context.Context, searcher retrieval.Searcher, query string, folderIDs []string, topK int) []retrieval.Chunk {
	if searcher == nil {
		return nil
	}
	chunks, err := searcher.Search(ctx, query, folderIDs, topK)
	if err != nil {
		logging.WithComponent("tool").Warn("knowledge search failed", "error", err)
		return nil
	}
	return chunks
}

// Summarize condenses content to roughly maxLength characters with one LLM
// call, falling back to plain truncation when no client is available or the
// call fails.
func Summarize(ctx context.Context, client llm.Client, content string, maxLength int) string {
	if maxLength <= 0 {
		maxLength = 500
	}
	if client == nil {
		return tokens.ClipRunes(content, maxLength)
	}

	resp, err := client.Generate(ctx, &llm.Request{
		Messages: []message.Message{
			message.System(fmt.Sprintf("Summarize the following content concisely in %d characters or less. Preserve key facts and insights.", maxLength)),
			message.User(content),
		},
		MaxTokens: 400,
	})
	if err != nil || resp == nil || resp.Content == "" {
		if err != nil {
			logging.WithComponent("tool").Warn("summarize failed", "error", err)
		}
		return tokens.ClipRunes(content, maxLength)
	}
	return resp.Content
}

// Compare asks the LLM to contrast the given chunks, optionally focused on
// one aspect. It requires at least two chunks.
func Compare(ctx context.Context, client llm.Client, chunks []retrieval.Chunk, aspect string) string {
	if client == nil || len(chunks) < 2 {
		return "Insufficient documents for comparison."
	}

	if len(chunks) > compareMaxDocs {
		chunks = chunks[:compareMaxDocs]
	}
	var docs strings.Builder
	for i, chunk := range chunks {
		if i > 0 {
			docs.WriteString("\n\n---\n\n")
		}
		fmt.Fprintf(&docs, "Document %d (%s):\n%s", i+1, chunk.SourceFile, tokens.ClipRunes(chunk.Content, 800))
	}

	userPrompt := fmt.Sprintf("Compare these documents:\n\n%s", docs.String())
	if aspect != "" {
		userPrompt = fmt.Sprintf("Compare these documents focusing on: %s\n\n%s", aspect, docs.String())
	}

	resp, err := client.Generate(ctx, &llm.Request{
		Messages: []message.Message{
			message.System("You are a document comparison expert. Compare the provided documents and highlight similarities, differences, and key insights."),
			message.User(userPrompt),
		},
		MaxTokens: 800,
	})
	if err != nil || resp == nil {
		if err != nil {
			logging.WithComponent("tool").Warn("compare failed", "error", err)
		}
		return "Comparison error occurred."
	}
	if resp.Content == "" {
		return "Comparison could not be completed."
	}
	return resp.Content
}
