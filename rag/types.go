// Package rag implements the agentic retrieval-augmented chat pipeline:
// adaptive strategy selection, a ReAct reasoning loop with tools, compliance
// validation with a bounded rework loop, and hallucination checking.
package rag

import (
	"github.com/agentstudio/ragchat/message"
)

// QueryComplexity is the coarse difficulty tier assigned to a query.
type QueryComplexity string

const (
	ComplexitySimple         QueryComplexity = "simple"
	ComplexityModerate       QueryComplexity = "moderate"
	ComplexityComplex        QueryComplexity = "complex"
	ComplexityConversational QueryComplexity = "conversational"
)

// Strategy names produced by the classifier.
const (
	StrategyDirectAnswer = "direct_answer"
	StrategySimpleLookup = "simple_lookup"
	StrategyStandardRAG  = "standard_rag"
	StrategyMultiHop     = "multi_hop"
	StrategyAgenticFull  = "agentic_full"
)

// Citation links a generated claim back to a retrieved chunk.
type Citation struct {
	ChunkID         string  `json:"chunk_id"`
	SourceFile      string  `json:"source_file"`
	CitationText    string  `json:"citation_text"`
	ConfidenceScore float64 `json:"confidence_score"`
}

// StepType tags one reasoning step.
type StepType string

const (
	StepThought     StepType = "thought"
	StepAction      StepType = "action"
	StepObservation StepType = "observation"
	StepAnswer      StepType = "answer"
)

// ReActStep is one entry of the reasoning trace.
type ReActStep struct {
	StepType   StepType       `json:"step_type"`
	Content    string         `json:"content"`
	ToolName   string         `json:"tool_name,omitempty"`
	ToolInput  map[string]any `json:"tool_input,omitempty"`
	ToolOutput string         `json:"tool_output,omitempty"`
	LatencyMS  int64          `json:"latency_ms,omitempty"`
}

// Issue is one validation finding.
type Issue struct {
	Type     string `json:"type"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
}

// ValidationScore is the compliance verdict for one draft.
type ValidationScore struct {
	OverallScore   int     `json:"overall_score"`
	StructureScore int     `json:"structure_score"`
	RulesScore     int     `json:"rules_score"`
	Issues         []Issue `json:"issues"`
	Passed         bool    `json:"passed"`
}

// ResponseRules are the per-agent output directives.
type ResponseRules struct {
	StepByStep              bool   `json:"step_by_step"`
	CiteIfPossible          bool   `json:"cite_if_possible"`
	RefuseIfUncertain       bool   `json:"refuse_if_uncertain"`
	IncludeConfidenceScores bool   `json:"include_confidence_scores"`
	UseBulletPoints         bool   `json:"use_bullet_points"`
	SummarizeAtEnd          bool   `json:"summarize_at_end"`
	CustomResponseTemplate  string `json:"custom_response_template,omitempty"`
}

// AgentConfig is the caller-supplied agent definition. The pipeline reads it,
// never mutates it.
type AgentConfig struct {
	AgentID         string         `json:"agent_id,omitempty"`
	Persona         string         `json:"persona,omitempty"`
	RoleDescription string         `json:"role_description,omitempty"`
	ResponseRules   *ResponseRules `json:"response_rules,omitempty"`
}

// ReworkSettings bound the self-correction loop.
type ReworkSettings struct {
	Enabled               bool `json:"enabled"`
	MaxRetries            int  `json:"max_retries"`
	MinimumScoreThreshold int  `json:"minimum_score_threshold"`
	AutoCorrect           bool `json:"auto_correct"`
}

func defaultReworkSettings() ReworkSettings {
	return ReworkSettings{
		Enabled:               true,
		MaxRetries:            2,
		MinimumScoreThreshold: 70,
		AutoCorrect:           true,
	}
}

// MemorySettings control short/long-term memory behavior for one agent.
type MemorySettings struct {
	ShortTermEnabled  bool
	ContextWindowSize int
	LongTermEnabled   bool
	RetentionPolicy   string
	LearnPreferences  bool
}

func defaultMemorySettings() MemorySettings {
	return MemorySettings{
		ShortTermEnabled:  true,
		ContextWindowSize: 10,
		LongTermEnabled:   false,
		RetentionPolicy:   "keep_successful",
		LearnPreferences:  true,
	}
}

// AwarenessSettings control the optional self-awareness prompt directives.
type AwarenessSettings struct {
	AwarenessLevel        int
	SelfRoleEnabled       bool
	RoleBoundaries        string
	StateAwarenessEnabled bool
	StateContextSource    string
	ProactiveReasoning    bool
	FeedbackLearning      bool
}

func defaultAwarenessSettings() AwarenessSettings {
	return AwarenessSettings{
		AwarenessLevel:     2,
		StateContextSource: "project_status",
	}
}

// Request is the body of one chat turn. Enable flags are pointers so that an
// absent field defaults to true while an explicit false is honored.
type Request struct {
	Messages                 []message.Message `json:"messages"`
	AgentConfig              *AgentConfig      `json:"agentConfig,omitempty"`
	ConversationID           string            `json:"conversation_id,omitempty"`
	FolderIDs                []string          `json:"folder_ids,omitempty"`
	WorkspaceID              string            `json:"workspace_id,omitempty"`
	UserID                   string            `json:"user_id,omitempty"`
	EnableAgentic            *bool             `json:"enable_agentic,omitempty"`
	EnableMemory             *bool             `json:"enable_memory,omitempty"`
	EnableHallucinationCheck *bool             `json:"enable_hallucination_check,omitempty"`
	EnableAdaptiveStrategy   *bool             `json:"enable_adaptive_strategy,omitempty"`
	MaxReasoningSteps        int               `json:"max_reasoning_steps,omitempty"`
	ReworkSettings           *ReworkSettings   `json:"rework_settings,omitempty"`
	CustomResponseTemplate   string            `json:"custom_response_template,omitempty"`
}

// Validation is the reported compliance section of a response.
type Validation struct {
	Score          int     `json:"score"`
	StructureScore int     `json:"structure_score"`
	RulesScore     int     `json:"rules_score"`
	Passed         bool    `json:"passed"`
	Issues         []Issue `json:"issues"`
	ReworkAttempts int     `json:"rework_attempts"`
}

// Metadata describes how one response was produced.
type Metadata struct {
	StrategyUsed          string          `json:"strategy_used"`
	QueryComplexity       QueryComplexity `json:"query_complexity"`
	ChunksUsed            int             `json:"chunks_used"`
	ReasoningSteps        int             `json:"reasoning_steps"`
	HallucinationDetected bool            `json:"hallucination_detected"`
	HallucinationCount    int             `json:"hallucination_count"`
	MemoryItemsUsed       int             `json:"memory_items_used"`
	TotalLatencyMS        int64           `json:"total_latency_ms"`
	ReworkEnabled         bool            `json:"rework_enabled"`
	ReworkThreshold       int             `json:"rework_threshold"`
}

// TraceEntry is one truncated reasoning step in the response body.
type TraceEntry struct {
	Type    StepType `json:"type"`
	Content string   `json:"content"`
	Tool    string   `json:"tool,omitempty"`
}

// Response is the structured result of one chat turn.
type Response struct {
	Success        bool         `json:"success"`
	Response       string       `json:"response"`
	Citations      []Citation   `json:"citations"`
	Confidence     float64      `json:"confidence"`
	Validation     Validation   `json:"validation"`
	Metadata       Metadata     `json:"metadata"`
	ReasoningTrace []TraceEntry `json:"reasoning_trace"`
}

func boolOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}
