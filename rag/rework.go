package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/agentstudio/ragchat/llm"
	"github.com/agentstudio/ragchat/message"
)

type reworkResult struct {
	Response   string
	Attempts   int
	FinalScore ValidationScore
}

// rework asks the model to revise a failing draft, re-scoring each attempt.
// It loops while attempts < maxRetries and the score has not passed, aborting
// early on a model failure or a degenerate (under 50 characters) revision.
// The returned response is never empty: at worst it is the original draft.
func (p *Pipeline) rework(ctx context.Context, original string, score ValidationScore, rules *ResponseRules, customTemplate, systemPrompt string, history []message.Message, maxRetries int) reworkResult {
	if p.llm == nil {
		return reworkResult{Response: original, Attempts: 0, FinalScore: score}
	}

	current := original
	currentScore := score
	attempts := 0

	for attempts < maxRetries && !currentScore.Passed {
		attempts++
		p.logger.Info("rework attempt", "attempt", attempts, "score", currentScore.OverallScore)

		instructions := buildCorrectionPrompt(current, currentScore, rules, customTemplate)
		msgs := []message.Message{
			message.System(systemPrompt + "\n\nIMPORTANT: You are correcting a previous response that didn't meet quality standards."),
		}
		msgs = append(msgs, message.Tail(history, 4)...)
		msgs = append(msgs, message.User(instructions))

		resp, err := p.llm.Generate(ctx, &llm.Request{Messages: msgs, MaxTokens: 2500})
		if err != nil {
			p.logger.Warn("rework attempt failed", "attempt", attempts, "error", err)
			break
		}
		if len(resp.Content) <= 50 {
			p.logger.Warn("rework produced degenerate reply", "attempt", attempts, "length", len(resp.Content))
			break
		}
		current = resp.Content
		currentScore = ValidateCompliance(current, rules, customTemplate)
		p.logger.Info("rework rescored", "attempt", attempts, "score", currentScore.OverallScore)
	}

	return reworkResult{Response: current, Attempts: attempts, FinalScore: currentScore}
}

// buildCorrectionPrompt enumerates the unmet issues and restates the concrete
// requirements the revision must satisfy.
func buildCorrectionPrompt(current string, score ValidationScore, rules *ResponseRules, customTemplate string) string {
	var issueLines, numbered []string
	for i, issue := range score.Issues {
		issueLines = append(issueLines, "- "+issue.Message)
		numbered = append(numbered, fmt.Sprintf("%d. %s", i+1, issue.Message))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Your previous response scored %d/100 on template compliance.\n\n", score.OverallScore)
	b.WriteString("Issues found:\n" + strings.Join(issueLines, "\n") + "\n\n")
	b.WriteString("Please revise your response to fix these issues:\n" + strings.Join(numbered, "\n") + "\n\n")

	if customTemplate != "" {
		b.WriteString("Follow this exact structure:\n" + customTemplate + "\n\n")
	}

	b.WriteString("Requirements:\n")
	if rules != nil {
		if rules.StepByStep {
			b.WriteString("- Use numbered steps or bullet points for clarity\n")
		}
		if rules.CiteIfPossible {
			b.WriteString("- Include [Source N] citations for key facts\n")
		}
		if rules.IncludeConfidenceScores {
			b.WriteString("- Add a confidence percentage (e.g., \"Confidence: 85%\")\n")
		}
		if rules.UseBulletPoints {
			b.WriteString("- Use bullet points for key information\n")
		}
		if rules.SummarizeAtEnd {
			b.WriteString("- End with a brief summary section\n")
		}
	}

	b.WriteString("\nOriginal response to improve:\n" + current)
	return b.String()
}
