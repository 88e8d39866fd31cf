package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
)

const storeTableSQL = `
CREATE TABLE IF NOT EXISTS agent_reasoning_logs (
	id BIGSERIAL PRIMARY KEY,
	conversation_id TEXT NOT NULL,
	agent_id TEXT NOT NULL DEFAULT '',
	step_number INT NOT NULL,
	step_type TEXT NOT NULL,
	content TEXT NOT NULL,
	tool_used TEXT,
	tool_input TEXT,
	tool_output TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS message_citations (
	id BIGSERIAL PRIMARY KEY,
	conversation_id TEXT NOT NULL,
	message_id TEXT,
	source_index INT NOT NULL,
	source_file TEXT NOT NULL,
	chunk_id TEXT,
	excerpt TEXT NOT NULL,
	relevance_score DOUBLE PRECISION NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS agent_self_evaluations (
	id BIGSERIAL PRIMARY KEY,
	conversation_id TEXT NOT NULL,
	agent_id TEXT NOT NULL DEFAULT '',
	query TEXT NOT NULL DEFAULT '',
	response TEXT NOT NULL DEFAULT '',
	retrieval_decision TEXT NOT NULL DEFAULT 'retrieve',
	overall_score INT NOT NULL,
	structure_score INT NOT NULL,
	rules_score INT NOT NULL,
	passed BOOLEAN NOT NULL,
	issues JSONB NOT NULL DEFAULT '[]',
	rework_attempts INT NOT NULL DEFAULT 0,
	refinement_iterations INT NOT NULL DEFAULT 0,
	hallucination_detected BOOLEAN NOT NULL DEFAULT FALSE,
	hallucination_details JSONB NOT NULL DEFAULT '[]',
	confidence_score DOUBLE PRECISION NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS agent_experiences (
	id BIGSERIAL PRIMARY KEY,
	conversation_id TEXT NOT NULL,
	agent_id TEXT NOT NULL DEFAULT '',
	workspace_id TEXT NOT NULL DEFAULT '',
	query TEXT NOT NULL,
	complexity TEXT NOT NULL,
	strategy TEXT NOT NULL,
	response_length INT NOT NULL,
	chunks_used INT NOT NULL,
	confidence DOUBLE PRECISION NOT NULL,
	success BOOLEAN NOT NULL,
	latency_ms BIGINT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS agent_strategy_metrics (
	workspace_id TEXT NOT NULL,
	strategy TEXT NOT NULL,
	complexity TEXT NOT NULL,
	total_uses BIGINT NOT NULL DEFAULT 0,
	success_count BIGINT NOT NULL DEFAULT 0,
	avg_latency_ms DOUBLE PRECISION NOT NULL DEFAULT 0,
	avg_confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (workspace_id, strategy, complexity)
);
`

// PostgresStore persists the audit trail in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

var _ Store = (*PostgresStore)(nil)

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
	if _, err := db.ExecContext(ctx, storeTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("create store tables: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

// Close releases the underlying connection pool.
func (s *PostgresStore) Close() error { return s.db.Close() }

func (s *PostgresStore) LogReasoningStep(ctx context.Context, log ReasoningLog) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO agent_reasoning_logs
			(conversation_id, agent_id, step_number, step_type, content,
			 tool_used, tool_input, tool_output)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), NULLIF($7, ''), NULLIF($8, ''))`,
		log.ConversationID, log.AgentID, log.StepNumber, log.StepType, log.Content,
		log.ToolUsed, log.ToolInput, log.ToolOutput)
	if err != nil {
		return fmt.Errorf("log reasoning step: %w", err)
	}
	return nil
}

func (s *PostgresStore) SaveCitations(ctx context.Context, citations []Citation) error {
	if len(citations) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin citations tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, pq.CopyIn("message_citations",
		"conversation_id", "message_id", "source_index", "source_file",
		"chunk_id", "excerpt", "relevance_score"))
	if err != nil {
		return fmt.Errorf("prepare citations copy: %w", err)
	}
	for _, c := range citations {
		if _, err := stmt.ExecContext(ctx, c.ConversationID, c.MessageID, c.SourceIndex,
			c.SourceFile, c.ChunkID, c.Excerpt, c.RelevanceScore); err != nil {
			stmt.Close()
			return fmt.Errorf("buffer citation: %w", err)
		}
	}
	if _, err := stmt.ExecContext(ctx); err != nil {
		stmt.Close()
		return fmt.Errorf("flush citations: %w", err)
	}
	if err := stmt.Close(); err != nil {
		return fmt.Errorf("close citations copy: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit citations: %w", err)
	}
	return nil
}

func (s *PostgresStore) SaveEvaluation(ctx context.Context, eval Evaluation) error {
	issues, err := json.Marshal(eval.Issues)
	if err != nil {
		return fmt.Errorf("marshal evaluation issues: %w", err)
	}
	details, err := json.Marshal(eval.HallucinationDetails)
	if err != nil {
		return fmt.Errorf("marshal hallucination details: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO agent_self_evaluations
			(conversation_id, agent_id, query, response, retrieval_decision,
			 overall_score, structure_score, rules_score, passed, issues,
			 rework_attempts, refinement_iterations, hallucination_detected,
			 hallucination_details, confidence_score)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		eval.ConversationID, eval.AgentID, eval.Query, eval.Response, eval.RetrievalDecision,
		eval.OverallScore, eval.StructureScore, eval.RulesScore, eval.Passed, issues,
		eval.ReworkAttempts, eval.RefinementIterations, eval.HallucinationDetected,
		details, eval.Confidence)
	if err != nil {
		return fmt.Errorf("save evaluation: %w", err)
	}
	return nil
}

func (s *PostgresStore) ArchiveExperience(ctx context.Context, exp Experience) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO agent_experiences
			(conversation_id, agent_id, workspace_id, query, complexity, strategy,
			 response_length, chunks_used, confidence, success, latency_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		exp.ConversationID, exp.AgentID, exp.WorkspaceID, exp.Query, exp.Complexity,
		exp.Strategy, exp.ResponseLength, exp.ChunksUsed, exp.Confidence,
		exp.Success, exp.LatencyMS)
	if err != nil {
		return fmt.Errorf("archive experience: %w", err)
	}
	return nil
}

func (s *PostgresStore) RecordStrategyOutcome(ctx context.Context, workspaceID, strategy, complexity string, success bool, latencyMS int64, confidence float64) error {
	// Rolling averages are folded in SQL so concurrent turns compose.
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO agent_strategy_metrics
			(workspace_id, strategy, complexity, total_uses, success_count,
			 avg_latency_ms, avg_confidence, updated_at)
		VALUES ($1, $2, $3, 1, CASE WHEN $4 THEN 1 ELSE 0 END, $5, $6, now())
		ON CONFLICT (workspace_id, strategy, complexity) DO UPDATE SET
			total_uses = agent_strategy_metrics.total_uses + 1,
			success_count = agent_strategy_metrics.success_count + CASE WHEN $4 THEN 1 ELSE 0 END,
			avg_latency_ms = (agent_strategy_metrics.avg_latency_ms * agent_strategy_metrics.total_uses + $5)
				/ (agent_strategy_metrics.total_uses + 1),
			avg_confidence = (agent_strategy_metrics.avg_confidence * agent_strategy_metrics.total_uses + $6)
				/ (agent_strategy_metrics.total_uses + 1),
			updated_at = now()`,
		workspaceID, strategy, complexity, success, float64(latencyMS), confidence)
	if err != nil {
		return fmt.Errorf("record strategy outcome: %w", err)
	}
	return nil
}
