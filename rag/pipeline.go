package rag

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/agentstudio/ragchat/cache"
	apperrors "github.com/agentstudio/ragchat/errors"
	"github.com/agentstudio/ragchat/llm"
	"github.com/agentstudio/ragchat/memory"
	"github.com/agentstudio/ragchat/message"
	"github.com/agentstudio/ragchat/pkg/logging"
	"github.com/agentstudio/ragchat/pkg/tokens"
	"github.com/agentstudio/ragchat/retrieval"
	"github.com/agentstudio/ragchat/store"
)

const (
	maxMessages      = 100
	maxMessageLength = 50000
)

// Pipeline coordinates one chat turn: classify, answer, validate, rework,
// hallucination-check, then persist telemetry off the critical path.
type Pipeline struct {
	llm             llm.Client
	searcher        retrieval.Searcher
	memories        memory.Store
	profiles        memory.ProfileLoader
	complexityCache cache.ComplexityCache
	store           store.Store

	callTimeout time.Duration
	bgTimeout   time.Duration
	logger      *slog.Logger
	tracer      trace.Tracer

	wg sync.WaitGroup
}

// New builds a pipeline around the retrieval collaborator. Everything else is
// optional; missing collaborators degrade the matching feature instead of
// failing requests.
func New(searcher retrieval.Searcher, opts ...Option) *Pipeline {
	p := &Pipeline{
		searcher:  searcher,
		bgTimeout: 30 * time.Second,
		logger:    logging.WithComponent("rag"),
		tracer:    otel.Tracer("ragchat/rag"),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.callTimeout > 0 && p.llm != nil {
		p.llm = llm.WithTimeout(p.llm, p.callTimeout)
	}
	return p
}

// Wait blocks until all detached tail writes have finished. Used on shutdown
// and in tests.
func (p *Pipeline) Wait() { p.wg.Wait() }

// ValidateRequest applies the fast-fail input checks. It runs before any
// external call.
func ValidateRequest(req *Request) error {
	if req == nil || len(req.Messages) == 0 {
		return fmt.Errorf("%w: messages array is required", apperrors.ErrInvalidInput)
	}
	if len(req.Messages) > maxMessages {
		return fmt.Errorf("%w: too many messages (max %d)", apperrors.ErrInvalidInput, maxMessages)
	}
	for _, m := range req.Messages {
		if m.Content == "" {
			return fmt.Errorf("%w: invalid message format: content must be a string", apperrors.ErrInvalidInput)
		}
		if len(m.Content) > maxMessageLength {
			return fmt.Errorf("%w: message too long (max %d characters per message)", apperrors.ErrInvalidInput, maxMessageLength)
		}
		if !m.Role.Valid() {
			return fmt.Errorf("%w: invalid message role: must be 'user', 'assistant', or 'system'", apperrors.ErrInvalidInput)
		}
	}
	return nil
}

// Handle answers one chat turn for an authenticated user. The returned error
// is non-nil only for input errors; every upstream failure degrades into the
// response body instead.
func (p *Pipeline) Handle(ctx context.Context, authUserID string, req *Request) (*Response, error) {
	start := time.Now()

	if err := ValidateRequest(req); err != nil {
		return nil, err
	}

	ctx, span := p.tracer.Start(ctx, "rag.Handle")
	defer span.End()

	userID := authUserID
	if userID == "" {
		userID = req.UserID
	}

	reworkCfg := defaultReworkSettings()
	if req.ReworkSettings != nil {
		reworkCfg = *req.ReworkSettings
	}

	cfg := req.AgentConfig
	agentID := ""
	if cfg != nil {
		agentID = cfg.AgentID
	}

	userMessage := req.Messages[len(req.Messages)-1].Content
	p.logger.Info("chat turn",
		"query", tokens.ClipRunes(userMessage, 50),
		"user_id", userID,
		"conversation_id", req.ConversationID)

	memSettings, awSettings := p.loadAgentSettings(ctx, agentID)

	// Each exchange is two messages, so the short-term window doubles the
	// configured size.
	windowSize := 6
	if memSettings.ShortTermEnabled {
		windowSize = memSettings.ContextWindowSize * 2
	}
	windowed := message.Tail(req.Messages, windowSize)

	verdict := defaultClassification("Adaptive strategy disabled")
	if boolOr(req.EnableAdaptiveStrategy, true) {
		verdict = p.classify(ctx, userMessage, windowed[:len(windowed)-1])
		p.logger.Info("adaptive strategy", "complexity", verdict.Complexity, "strategy", verdict.Strategy)
	}
	span.SetAttributes(
		attribute.String("rag.complexity", string(verdict.Complexity)),
		attribute.String("rag.strategy", verdict.Strategy),
	)

	var userMemory []memory.Item
	if boolOr(req.EnableMemory, true) && userID != "" && p.memories != nil {
		items, err := p.memories.Recall(ctx, userID, agentID, 10)
		if err != nil {
			p.logger.Warn("memory recall failed", "error", err)
		} else {
			userMemory = items
		}
	}

	history := req.Messages[:len(req.Messages)-1]

	var (
		answer    string
		citations []Citation
		chunks    []retrieval.Chunk
		steps     []ReActStep
	)

	agentic := boolOr(req.EnableAgentic, true) &&
		(verdict.Strategy == StrategyAgenticFull || verdict.Complexity == ComplexityComplex)

	if agentic {
		p.logger.Info("using agentic reasoning loop")
		result := p.runReAct(ctx, userMessage, req.FolderIDs, cfg, history, userMemory, req.ConversationID, req.MaxReasoningSteps)
		answer = result.FinalAnswer
		citations = result.Citations
		chunks = result.Chunks
		steps = result.Steps
	} else {
		p.logger.Info("using standard retrieval")
		result := p.respondStandard(ctx, userMessage, req.FolderIDs, cfg, awSettings, req.CustomResponseTemplate, req.Messages)
		answer = result.Answer
		citations = result.Citations
		chunks = result.Chunks
	}

	// Validation and the bounded rework loop.
	validation := ValidationScore{OverallScore: 100, StructureScore: 100, RulesScore: 100, Issues: []Issue{}, Passed: true}
	reworkAttempts := 0

	if answer != "" && cfg != nil && cfg.ResponseRules != nil {
		template := req.CustomResponseTemplate
		if template == "" {
			template = cfg.ResponseRules.CustomResponseTemplate
		}
		validation = ValidateCompliance(answer, cfg.ResponseRules, template)
		p.logger.Info("initial validation", "score", validation.OverallScore)

		if reworkCfg.Enabled && reworkCfg.AutoCorrect && !validation.Passed {
			p.logger.Info("starting rework loop", "threshold", reworkCfg.MinimumScoreThreshold)
			result := p.rework(ctx, answer, validation, cfg.ResponseRules, template,
				personaPrompt(cfg, "You are a helpful AI assistant."), req.Messages, reworkCfg.MaxRetries)
			answer = result.Response
			reworkAttempts = result.Attempts
			validation = result.FinalScore
			p.logger.Info("rework complete", "attempts", reworkAttempts, "score", validation.OverallScore)
		}
	}

	hallucination := hallucinationResult{Detected: false, Confidence: 0.5}
	if boolOr(req.EnableHallucinationCheck, true) && len(chunks) > 0 {
		hallucination = p.checkHallucinations(ctx, answer, chunks, userMessage)
		if hallucination.Detected {
			p.logger.Info("hallucination detected", "claims", len(hallucination.Details))
		}
	}

	confidence := 0.4
	if len(citations) > 0 {
		confidence = math.Min(0.95, 0.5+float64(len(citations))*0.1)
	}

	p.persistTail(ctx, tailInput{
		req:            req,
		userID:         userID,
		agentID:        agentID,
		userMessage:    userMessage,
		answer:         answer,
		citations:      citations,
		chunks:         chunks,
		steps:          steps,
		validation:     validation,
		reworkAttempts: reworkAttempts,
		hallucination:  hallucination,
		verdict:        verdict,
		memSettings:    memSettings,
		confidence:     confidence,
		latency:        time.Since(start),
	})

	metrics := AnalyzeResponseBehavior(answer, responseRulesOf(cfg))
	if metricsJSON, err := json.Marshal(metrics); err == nil {
		p.logger.Debug("behavior metrics", "metrics", string(metricsJSON))
	}

	traceEntries := make([]TraceEntry, len(steps))
	for i, s := range steps {
		traceEntries[i] = TraceEntry{
			Type:    s.StepType,
			Content: tokens.ClipRunes(s.Content, 500),
			Tool:    s.ToolName,
		}
	}

	if citations == nil {
		citations = []Citation{}
	}

	return &Response{
		Success:    true,
		Response:   answer,
		Citations:  citations,
		Confidence: confidence,
		Validation: Validation{
			Score:          validation.OverallScore,
			StructureScore: validation.StructureScore,
			RulesScore:     validation.RulesScore,
			Passed:         validation.Passed,
			Issues:         validation.Issues,
			ReworkAttempts: reworkAttempts,
		},
		Metadata: Metadata{
			StrategyUsed:          verdict.Strategy,
			QueryComplexity:       verdict.Complexity,
			ChunksUsed:            len(chunks),
			ReasoningSteps:        len(steps),
			HallucinationDetected: hallucination.Detected,
			HallucinationCount:    len(hallucination.Details),
			MemoryItemsUsed:       len(userMemory),
			TotalLatencyMS:        time.Since(start).Milliseconds(),
			ReworkEnabled:         reworkCfg.Enabled,
			ReworkThreshold:       reworkCfg.MinimumScoreThreshold,
		},
		ReasoningTrace: traceEntries,
	}, nil
}

type tailInput struct {
	req            *Request
	userID         string
	agentID        string
	userMessage    string
	answer         string
	citations      []Citation
	chunks         []retrieval.Chunk
	steps          []ReActStep
	validation     ValidationScore
	reworkAttempts int
	hallucination  hallucinationResult
	verdict        classification
	memSettings    MemorySettings
	confidence     float64
	latency        time.Duration
}

// persistTail issues the fire-and-forget writes: memory extraction,
// experience archival, self-evaluation, citations, and strategy metrics.
// None of them touch the response.
func (p *Pipeline) persistTail(ctx context.Context, in tailInput) {
	if boolOr(in.req.EnableMemory, true) && in.userID != "" && in.answer != "" {
		p.spawn(ctx, "memory extraction", func(ctx context.Context) error {
			return p.extractMemories(ctx, in.userMessage, in.answer, in.userID, in.agentID, in.req.WorkspaceID, in.req.ConversationID)
		})
	}

	if in.memSettings.LongTermEnabled && in.agentID != "" && in.req.WorkspaceID != "" && len(in.answer) > 100 && p.store != nil {
		archiveConfidence := 0.4
		if len(in.citations) > 0 {
			archiveConfidence = math.Min(0.95, 0.5+float64(len(in.citations))*0.1)
		}
		shouldArchive := in.memSettings.RetentionPolicy == "keep_all" ||
			(in.memSettings.RetentionPolicy == "keep_successful" && archiveConfidence > 0.6)
		if shouldArchive {
			exp := store.Experience{
				ConversationID: in.req.ConversationID,
				AgentID:        in.agentID,
				WorkspaceID:    in.req.WorkspaceID,
				Query:          tokens.ClipRunes(in.userMessage, 200),
				Complexity:     string(in.verdict.Complexity),
				Strategy:       in.verdict.Strategy,
				ResponseLength: len(in.answer),
				ChunksUsed:     len(in.chunks),
				Confidence:     archiveConfidence,
				Success:        true,
				LatencyMS:      in.latency.Milliseconds(),
			}
			p.spawn(ctx, "experience archive", func(ctx context.Context) error {
				return p.store.ArchiveExperience(ctx, exp)
			})
		}
	}

	if p.store != nil {
		retrievalDecision := "retrieve"
		if in.verdict.Strategy == StrategyDirectAnswer {
			retrievalDecision = "no_retrieve"
		}
		thoughts := 0
		for _, s := range in.steps {
			if s.StepType == StepThought {
				thoughts++
			}
		}
		var claims []store.HallucinationDetail
		for _, d := range in.hallucination.Details {
			claims = append(claims, store.HallucinationDetail{Claim: d.Claim, Issue: d.Issue})
		}
		eval := store.Evaluation{
			ConversationID:        in.req.ConversationID,
			AgentID:               in.agentID,
			Query:                 in.userMessage,
			Response:              in.answer,
			RetrievalDecision:     retrievalDecision,
			OverallScore:          in.validation.OverallScore,
			StructureScore:        in.validation.StructureScore,
			RulesScore:            in.validation.RulesScore,
			Passed:                in.validation.Passed,
			Issues:                issueMessages(in.validation.Issues),
			ReworkAttempts:        in.reworkAttempts,
			RefinementIterations:  thoughts,
			HallucinationDetected: in.hallucination.Detected,
			HallucinationDetails:  claims,
			Confidence:            in.confidence,
		}
		p.spawn(ctx, "self evaluation", func(ctx context.Context) error {
			return p.store.SaveEvaluation(ctx, eval)
		})

		if len(in.citations) > 0 && in.req.ConversationID != "" {
			rows := make([]store.Citation, len(in.citations))
			for i, c := range in.citations {
				rows[i] = store.Citation{
					ConversationID: in.req.ConversationID,
					SourceIndex:    i + 1,
					SourceFile:     c.SourceFile,
					ChunkID:        c.ChunkID,
					Excerpt:        c.CitationText,
					RelevanceScore: c.ConfidenceScore,
				}
			}
			p.spawn(ctx, "citations", func(ctx context.Context) error {
				return p.store.SaveCitations(ctx, rows)
			})
		}

		success := !in.hallucination.Detected && len(in.answer) > 50
		workspaceID := in.req.WorkspaceID
		strategy := in.verdict.Strategy
		complexity := string(in.verdict.Complexity)
		latencyMS := in.latency.Milliseconds()
		confidence := in.confidence
		p.spawn(ctx, "strategy metrics", func(ctx context.Context) error {
			return p.store.RecordStrategyOutcome(ctx, workspaceID, strategy, complexity, success, latencyMS, confidence)
		})
	}
}

// spawn runs fn detached from the request: the work outlives the caller's
// cancellation, errors are logged and swallowed.
func (p *Pipeline) spawn(ctx context.Context, name string, fn func(context.Context) error) {
	bg := context.WithoutCancel(ctx)
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				p.logger.Error("background task panicked", "task", name, "panic", r)
			}
		}()
		ctx, cancel := context.WithTimeout(bg, p.bgTimeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			p.logger.Warn("background task failed", "task", name, "error", err)
		}
	}()
}

func responseRulesOf(cfg *AgentConfig) *ResponseRules {
	if cfg == nil {
		return nil
	}
	return cfg.ResponseRules
}

func issueMessages(issues []Issue) []string {
	out := make([]string, len(issues))
	for i, issue := range issues {
		out[i] = issue.Message
	}
	return out
}
