package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/agentstudio/ragchat/pkg/logging"
)

const memoryTableSQL = `
CREATE TABLE IF NOT EXISTS agent_user_memory (
	user_id TEXT NOT NULL,
	agent_id TEXT NOT NULL DEFAULT '',
	workspace_id TEXT NOT NULL DEFAULT '',
	memory_type TEXT NOT NULL,
	memory_key TEXT NOT NULL,
	memory_value JSONB NOT NULL,
	source_conversation_id TEXT,
	confidence DOUBLE PRECISION NOT NULL DEFAULT 0.7,
	importance DOUBLE PRECISION NOT NULL DEFAULT 0.5,
	last_accessed TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (user_id, agent_id, memory_key)
);

CREATE TABLE IF NOT EXISTS agent_profiles (
	agent_id TEXT PRIMARY KEY,
	memory_settings JSONB NOT NULL DEFAULT '{}',
	awareness_settings JSONB NOT NULL DEFAULT '{}'
);
`

// PostgresStore persists memory items and agent profiles in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

var _ Store = (*PostgresStore)(nil)
var _ ProfileLoader = (*PostgresStore)(nil)

// NewPostgresStore connects to PostgreSQL and ensures the schema exists.
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, memoryTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("create memory tables: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

// Close releases the underlying connection pool.
func (s *PostgresStore) Close() error { return s.db.Close() }

func (s *PostgresStore) Recall(ctx context.Context, userID, agentID string, limit int) ([]Item, error) {
	if limit <= 0 {
		limit = 10
	}
	query := `
		SELECT user_id, agent_id, workspace_id, memory_type, memory_key,
		       memory_value, COALESCE(source_conversation_id, ''),
		       confidence, importance, last_accessed
		FROM agent_user_memory
		WHERE user_id = $1 AND ($2 = '' OR agent_id = $2)
		ORDER BY importance DESC, last_accessed DESC
		LIMIT $3`
	rows, err := s.db.QueryContext(ctx, query, userID, agentID, limit)
	if err != nil {
		return nil, fmt.Errorf("recall memory: %w", err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var it Item
		var value []byte
		if err := rows.Scan(&it.UserID, &it.AgentID, &it.WorkspaceID, &it.MemoryType,
			&it.MemoryKey, &value, &it.SourceConversationID,
			&it.Confidence, &it.Importance, &it.LastAccessed); err != nil {
			return nil, fmt.Errorf("scan memory row: %w", err)
		}
		if err := json.Unmarshal(value, &it.MemoryValue); err != nil {
			it.MemoryValue = string(value)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate memory rows: %w", err)
	}

	if len(items) > 0 {
		s.touch(ctx, userID, agentID, items)
	}
	return items, nil
}

// touch bumps last_accessed for the recalled keys. Failures are logged and
// swallowed so a stats update never breaks a chat turn.
func (s *PostgresStore) touch(ctx context.Context, userID, agentID string, items []Item) {
	keys := make([]string, len(items))
	for i, it := range items {
		keys[i] = it.MemoryKey
	}
	keyJSON, err := json.Marshal(keys)
	if err != nil {
		return
	}
	_, err = s.db.ExecContext(ctx, `
		UPDATE agent_user_memory SET last_accessed = now()
		WHERE user_id = $1 AND ($2 = '' OR agent_id = $2)
		  AND memory_key IN (SELECT jsonb_array_elements_text($3::jsonb))`,
		userID, agentID, keyJSON)
	if err != nil {
		logging.Logger().Warn("memory touch failed", "error", err, "user_id", userID)
	}
}

func (s *PostgresStore) Upsert(ctx context.Context, item Item) error {
	if item.MemoryKey == "" {
		return fmt.Errorf("upsert memory: empty memory_key")
	}
	if item.Confidence == 0 {
		item.Confidence = 0.7
	}
	if item.Importance == 0 {
		item.Importance = 0.5
	}
	value, err := json.Marshal(item.MemoryValue)
	if err != nil {
		return fmt.Errorf("marshal memory value: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO agent_user_memory
			(user_id, agent_id, workspace_id, memory_type, memory_key,
			 memory_value, source_conversation_id, confidence, importance, last_accessed)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8, $9, now())
		ON CONFLICT (user_id, agent_id, memory_key) DO UPDATE SET
			workspace_id = EXCLUDED.workspace_id,
			memory_type = EXCLUDED.memory_type,
			memory_value = EXCLUDED.memory_value,
			source_conversation_id = EXCLUDED.source_conversation_id,
			confidence = EXCLUDED.confidence,
			importance = EXCLUDED.importance,
			last_accessed = now()`,
		item.UserID, item.AgentID, item.WorkspaceID, item.MemoryType, item.MemoryKey,
		value, item.SourceConversationID, item.Confidence, item.Importance)
	if err != nil {
		return fmt.Errorf("upsert memory: %w", err)
	}
	return nil
}

// AgentSettings loads the raw memory and awareness settings for an agent.
// A missing profile returns two nil maps without error; the caller falls
// back to defaults.
func (s *PostgresStore) AgentSettings(ctx context.Context, agentID string) (map[string]any, map[string]any, error) {
	var memRaw, awareRaw []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT memory_settings, awareness_settings
		FROM agent_profiles WHERE agent_id = $1`, agentID).Scan(&memRaw, &awareRaw)
	if err == sql.ErrNoRows {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("load agent profile: %w", err)
	}
	var memSettings, awareSettings map[string]any
	if err := json.Unmarshal(memRaw, &memSettings); err != nil {
		return nil, nil, fmt.Errorf("decode memory settings: %w", err)
	}
	if err := json.Unmarshal(awareRaw, &awareSettings); err != nil {
		return nil, nil, fmt.Errorf("decode awareness settings: %w", err)
	}
	return memSettings, awareSettings, nil
}
