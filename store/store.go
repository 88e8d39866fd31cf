// Package store persists the audit trail a chat turn leaves behind:
// reasoning steps, citations, self-evaluations, archived experiences, and
// per-strategy outcome metrics. All writes happen after the response is
// already on the wire, so implementations must tolerate being called from
// detached goroutines.
package store

import (
	"context"
	"time"
)

// ReasoningLog is one recorded step of an agentic reasoning loop.
type ReasoningLog struct {
	ConversationID string    `json:"conversation_id"`
	AgentID        string    `json:"agent_id,omitempty"`
	StepNumber     int       `json:"step_number"`
	StepType       string    `json:"step_type"`
	Content        string    `json:"content"`
	ToolUsed       string    `json:"tool_used,omitempty"`
	ToolInput      string    `json:"tool_input,omitempty"`
	ToolOutput     string    `json:"tool_output,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// Citation links a response back to a source chunk.
type Citation struct {
	ConversationID string  `json:"conversation_id"`
	MessageID      string  `json:"message_id,omitempty"`
	SourceIndex    int     `json:"source_index"`
	SourceFile     string  `json:"source_file"`
	ChunkID        string  `json:"chunk_id,omitempty"`
	Excerpt        string  `json:"excerpt"`
	RelevanceScore float64 `json:"relevance_score"`
}

// HallucinationDetail is one unsupported claim flagged while verifying a
// response against its sources.
type HallucinationDetail struct {
	Claim string `json:"claim"`
	Issue string `json:"issue"`
}

// Evaluation is a post-hoc self-assessment of one response.
type Evaluation struct {
	ConversationID        string                `json:"conversation_id"`
	AgentID               string                `json:"agent_id,omitempty"`
	Query                 string                `json:"query"`
	Response              string                `json:"response"`
	RetrievalDecision     string                `json:"retrieval_decision"`
	OverallScore          int                   `json:"overall_score"`
	StructureScore        int                   `json:"structure_score"`
	RulesScore            int                   `json:"rules_score"`
	Passed                bool                  `json:"passed"`
	Issues                []string              `json:"issues,omitempty"`
	ReworkAttempts        int                   `json:"rework_attempts"`
	RefinementIterations  int                   `json:"refinement_iterations"`
	HallucinationDetected bool                  `json:"hallucination_detected"`
	HallucinationDetails  []HallucinationDetail `json:"hallucination_details,omitempty"`
	Confidence            float64               `json:"confidence_score"`
	CreatedAt             time.Time             `json:"created_at"`
}

// Experience is a completed turn archived for later strategy learning.
type Experience struct {
	ConversationID string    `json:"conversation_id"`
	AgentID        string    `json:"agent_id,omitempty"`
	WorkspaceID    string    `json:"workspace_id,omitempty"`
	Query          string    `json:"query"`
	Complexity     string    `json:"complexity"`
	Strategy       string    `json:"strategy"`
	ResponseLength int       `json:"response_length"`
	ChunksUsed     int       `json:"chunks_used"`
	Confidence     float64   `json:"confidence"`
	Success        bool      `json:"success"`
	LatencyMS      int64     `json:"latency_ms"`
	CreatedAt      time.Time `json:"created_at"`
}

// Store is the persistence surface for the pipeline's tail writes.
type Store interface {
	LogReasoningStep(ctx context.Context, log ReasoningLog) error
	SaveCitations(ctx context.Context, citations []Citation) error
	SaveEvaluation(ctx context.Context, eval Evaluation) error
	ArchiveExperience(ctx context.Context, exp Experience) error

	// RecordStrategyOutcome folds one turn's outcome into the rolling
	// per-(workspace, strategy, complexity) metrics.
	RecordStrategyOutcome(ctx context.Context, workspaceID, strategy, complexity string, success bool, latencyMS int64, confidence float64) error
}
