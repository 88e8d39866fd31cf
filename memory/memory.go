// Package memory stores long-lived per-user facts that personalize agent
// behavior across conversations.
package memory

import (
	"context"
	"time"
)

// Item is one durable fact about a user, keyed by (user, agent, memory key).
type Item struct {
	UserID               string    `json:"user_id"`
	AgentID              string    `json:"agent_id,omitempty"`
	WorkspaceID          string    `json:"workspace_id,omitempty"`
	MemoryType           string    `json:"memory_type"`
	MemoryKey            string    `json:"memory_key"`
	MemoryValue          any       `json:"memory_value"`
	SourceConversationID string    `json:"source_conversation_id,omitempty"`
	Confidence           float64   `json:"confidence"`
	Importance           float64   `json:"importance"`
	LastAccessed         time.Time `json:"last_accessed"`
}

// Store reads and upserts memory items.
type Store interface {
	// Recall returns up to limit items for the user (optionally scoped to
	// one agent), most important and most recently used first. Reading
	// touches last_accessed as a best effort.
	Recall(ctx context.Context, userID, agentID string, limit int) ([]Item, error)

	// Upsert inserts or replaces the item keyed by
	// (user_id, agent_id, memory_key).
	Upsert(ctx context.Context, item Item) error
}

// ProfileLoader loads the raw per-agent memory and awareness settings. The
// values arrive as loosely-typed JSON objects; the pipeline merges them over
// its defaults rather than trusting them as validated.
type ProfileLoader interface {
	AgentSettings(ctx context.Context, agentID string) (memorySettings, awarenessSettings map[string]any, err error)
}
