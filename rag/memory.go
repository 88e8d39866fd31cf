package rag

import (
	"context"
	"fmt"

	"github.com/agentstudio/ragchat/llm"
	"github.com/agentstudio/ragchat/memory"
	"github.com/agentstudio/ragchat/message"
	"github.com/agentstudio/ragchat/pkg/tokens"
)

const memoryExtractionPrompt = `Extract any learnable facts about the user from this conversation exchange.

Respond with JSON:
{
  "memories": [
    {
      "type": "preference|fact|topic_interest|communication_style",
      "key": "short_identifier",
      "value": "the learned information"
    }
  ]
}

Only extract clear, useful information. Return empty array if nothing notable.`

type extractedMemories struct {
	Memories []struct {
		Type  string `json:"type"`
		Key   string `json:"key"`
		Value string `json:"value"`
	} `json:"memories"`
}

// extractMemories asks the model for learnable user facts from the exchange
// and upserts them. Runs off the critical path; all failures are logged and
// swallowed.
func (p *Pipeline) extractMemories(ctx context.Context, query, answer, userID, agentID, workspaceID, conversationID string) error {
	if p.llm == nil || p.memories == nil {
		return nil
	}

	userPrompt := fmt.Sprintf("User asked: %q\nAssistant responded: %q",
		tokens.ClipRunes(query, 500), tokens.ClipRunes(answer, 500))

	resp, err := p.llm.Generate(ctx, &llm.Request{
		Messages: []message.Message{
			message.System(memoryExtractionPrompt),
			message.User(userPrompt),
		},
		MaxTokens: 300,
	})
	if err != nil {
		return fmt.Errorf("memory extraction: %w", err)
	}

	extracted, err := decodeJSON[extractedMemories](resp.Content)
	if err != nil {
		return fmt.Errorf("memory extraction parse: %w", err)
	}

	for _, m := range extracted.Memories {
		if m.Key == "" || m.Value == "" {
			continue
		}
		memType := m.Type
		if memType == "" {
			memType = "fact"
		}
		item := memory.Item{
			UserID:               userID,
			AgentID:              agentID,
			WorkspaceID:          workspaceID,
			MemoryType:           memType,
			MemoryKey:            m.Key,
			MemoryValue:          m.Value,
			SourceConversationID: conversationID,
			Confidence:           0.7,
			Importance:           0.5,
		}
		if err := p.memories.Upsert(ctx, item); err != nil {
			p.logger.Warn("memory upsert failed", "key", m.Key, "error", err)
		}
	}
	return nil
}

// loadAgentSettings merges the agent profile's raw settings over the
// defaults. A missing profile or loader leaves the defaults untouched.
func (p *Pipeline) loadAgentSettings(ctx context.Context, agentID string) (MemorySettings, AwarenessSettings) {
	mem := defaultMemorySettings()
	aw := defaultAwarenessSettings()
	if p.profiles == nil || agentID == "" {
		return mem, aw
	}

	memRaw, awRaw, err := p.profiles.AgentSettings(ctx, agentID)
	if err != nil {
		p.logger.Warn("agent profile load failed", "agent_id", agentID, "error", err)
		return mem, aw
	}

	if memRaw != nil {
		mem.ShortTermEnabled = boolKey(memRaw, "short_term_enabled", mem.ShortTermEnabled)
		mem.ContextWindowSize = intKey(memRaw, "context_window_size", mem.ContextWindowSize)
		mem.LongTermEnabled = boolKey(memRaw, "long_term_enabled", mem.LongTermEnabled)
		mem.RetentionPolicy = stringKey(memRaw, "retention_policy", mem.RetentionPolicy)
		mem.LearnPreferences = boolKey(memRaw, "learn_preferences", mem.LearnPreferences)
	}
	if awRaw != nil {
		aw.AwarenessLevel = intKey(awRaw, "awareness_level", aw.AwarenessLevel)
		aw.SelfRoleEnabled = boolKey(awRaw, "self_role_enabled", aw.SelfRoleEnabled)
		aw.RoleBoundaries = stringKey(awRaw, "role_boundaries", aw.RoleBoundaries)
		aw.StateAwarenessEnabled = boolKey(awRaw, "state_awareness_enabled", aw.StateAwarenessEnabled)
		aw.StateContextSource = stringKey(awRaw, "state_context_source", aw.StateContextSource)
		aw.ProactiveReasoning = boolKey(awRaw, "proactive_reasoning", aw.ProactiveReasoning)
		aw.FeedbackLearning = boolKey(awRaw, "feedback_learning", aw.FeedbackLearning)
	}
	p.logger.Info("agent settings loaded",
		"agent_id", agentID,
		"short_term", mem.ShortTermEnabled,
		"long_term", mem.LongTermEnabled,
		"awareness_level", aw.AwarenessLevel)
	return mem, aw
}

func boolKey(m map[string]any, key string, def bool) bool {
	if v, ok := m[key].(bool); ok {
		return v
	}
	return def
}

func intKey(m map[string]any, key string, def int) int {
	switch v := m[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return def
}

func stringKey(m map[string]any, key string, def string) string {
	if v, ok := m[key].(string); ok && v != "" {
		return v
	}
	return def
}
