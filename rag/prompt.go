package rag

import (
	"fmt"
	"strings"
)

// promptFragment is one optional system-prompt section gated by agent
// settings. Fragments are applied in a fixed order so the assembled prompt is
// deterministic for a given configuration.
type promptFragment struct {
	enabled func(*AgentConfig, AwarenessSettings) bool
	render  func(*AgentConfig, AwarenessSettings) string
}

var awarenessFragments = []promptFragment{
	{
		enabled: func(_ *AgentConfig, aw AwarenessSettings) bool {
			return aw.SelfRoleEnabled && aw.RoleBoundaries != ""
		},
		render: func(_ *AgentConfig, aw AwarenessSettings) string {
			return fmt.Sprintf("\n\n## SELF-ROLE AWARENESS\nYour role boundaries: %s\nIf a request falls outside your area of expertise or defined boundaries, clearly state: \"This falls outside my area of expertise.\" and suggest what kind of specialist should be consulted.", aw.RoleBoundaries)
		},
	},
	{
		enabled: func(_ *AgentConfig, aw AwarenessSettings) bool { return aw.StateAwarenessEnabled },
		render: func(_ *AgentConfig, aw AwarenessSettings) string {
			return fmt.Sprintf("\n\n## STATE AWARENESS\nYou are context-aware. Before responding, consider the current state of the conversation and project. Adjust your response detail and urgency accordingly. Context source: %s.", aw.StateContextSource)
		},
	},
	{
		enabled: func(_ *AgentConfig, aw AwarenessSettings) bool { return aw.ProactiveReasoning },
		render: func(_ *AgentConfig, _ AwarenessSettings) string {
			return "\n\n## PROACTIVE REASONING (Chain of Verification)\nBefore providing your answer, internally verify:\n1. Does this response align with the user's stated goal?\n2. Have I stayed within my role boundaries?\n3. Is my confidence level sufficient to provide this answer?\n4. Are there any gaps or assumptions I should flag?"
		},
	},
	{
		enabled: func(_ *AgentConfig, aw AwarenessSettings) bool { return aw.AwarenessLevel >= 4 },
		render: func(_ *AgentConfig, aw AwarenessSettings) string {
			return fmt.Sprintf("\n\n## ADVANCED AUTONOMY\nYou are operating at high awareness level (%d/5). You should:\n- Proactively identify gaps in the user's request\n- Suggest improvements and alternatives\n- Flag potential issues before they arise\n- Provide meta-commentary on your reasoning process", aw.AwarenessLevel)
		},
	},
}

// personaPrompt is the persona + role header shared by the responder, the
// rework loop, and the reasoning loop.
func personaPrompt(cfg *AgentConfig, fallback string) string {
	prompt := fallback
	if cfg != nil && cfg.Persona != "" {
		prompt = cfg.Persona
	}
	if cfg != nil && cfg.RoleDescription != "" {
		prompt += "\nRole: " + cfg.RoleDescription
	}
	return prompt
}

// responderRulesSection renders the "## RESPONSE RULES" block for the
// standard responder.
func responderRulesSection(rules *ResponseRules) string {
	if rules == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString("\n\n## RESPONSE RULES")
	if rules.StepByStep {
		b.WriteString("\n- Use step-by-step reasoning: Break down complex answers into clear, numbered steps")
	}
	if rules.CiteIfPossible {
		b.WriteString("\n- Cite sources: Reference specific documents or knowledge using [Source N] format")
	} else {
		b.WriteString("\n- You may cite sources using [Source N] format when relevant")
	}
	if rules.RefuseIfUncertain {
		b.WriteString("\n- Refuse if uncertain: Acknowledge when you don't have enough information rather than guessing")
	}
	if rules.IncludeConfidenceScores {
		b.WriteString("\n- Include confidence score: Add a confidence percentage (e.g., \"Confidence: 85%\") at the end of your response")
	}
	if rules.UseBulletPoints {
		b.WriteString("\n- Use bullet points: Format key information as bullet points for easy scanning")
	}
	if rules.SummarizeAtEnd {
		b.WriteString("\n- Summarize at end: Include a brief summary section at the end of your response")
	}
	return b.String()
}

// awarenessSection renders the enabled awareness directives in order.
func awarenessSection(cfg *AgentConfig, aw AwarenessSettings) string {
	var b strings.Builder
	for _, f := range awarenessFragments {
		if f.enabled(cfg, aw) {
			b.WriteString(f.render(cfg, aw))
		}
	}
	return b.String()
}

// reactRulesSection renders the numbered response-rule hints embedded in the
// reasoning loop's system prompt.
func reactRulesSection(rules *ResponseRules) string {
	if rules == nil {
		return ""
	}
	var list []string
	if rules.StepByStep {
		list = append(list, "Use step-by-step reasoning in your final answer")
	}
	if rules.CiteIfPossible {
		list = append(list, "Cite sources using [Source N] format when using retrieved information")
	}
	if rules.RefuseIfUncertain {
		list = append(list, "Acknowledge limitations honestly when uncertain")
	}
	if len(list) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("\n\n## Response Rules")
	for i, r := range list {
		fmt.Fprintf(&b, "\n%d. %s", i+1, r)
	}
	return b.String()
}
