package rag

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	apperrors "github.com/agentstudio/ragchat/errors"
	"github.com/agentstudio/ragchat/llm"
	"github.com/agentstudio/ragchat/memory"
	"github.com/agentstudio/ragchat/message"
	"github.com/agentstudio/ragchat/pkg/tokens"
	"github.com/agentstudio/ragchat/retrieval"
	"github.com/agentstudio/ragchat/store"
	"github.com/agentstudio/ragchat/tool"
)

// DefaultMaxSteps bounds the reasoning loop when the request does not set one.
const DefaultMaxSteps = 5

// wrapUpTokenBudget clips the gathered context fed to the forced final answer.
const wrapUpTokenBudget = 2500

var (
	thoughtRe = regexp.MustCompile(`(?is)THOUGHT:\s*(.*?)(?:ACTION:|ANSWER:|$)`)
	actionRe  = regexp.MustCompile(`(?i)ACTION:\s*(\w+)`)
	inputRe   = regexp.MustCompile(`(?is)INPUT:\s*(.*?)(?:THOUGHT:|ACTION:|ANSWER:|$)`)
)

// Model output may use either a tool's registered name or a verb form.
var toolAliases = map[string]string{
	"summarize": "summarizer",
	"calculate": "calculator",
	"compare":   "comparator",
	"analyze":   "analyzer",
}

type reactResult struct {
	Steps       []ReActStep
	FinalAnswer string
	Chunks      []retrieval.Chunk
	Citations   []Citation
}

// reactState accumulates retrieval results across loop iterations so tools
// like the comparator can work over everything gathered so far.
type reactState struct {
	p         *Pipeline
	query     string
	folderIDs []string
	chunks    []retrieval.Chunk
	citations []Citation
}

func (s *reactState) addChunks(chunks []retrieval.Chunk) {
	s.chunks = append(s.chunks, chunks...)
	for _, c := range chunks {
		s.citations = append(s.citations, Citation{
			ChunkID:         c.ID,
			SourceFile:      c.SourceFile,
			CitationText:    tokens.ClipRunes(c.Content, 200),
			ConfidenceScore: relevanceOr(c, 0.5),
		})
	}
}

func relevanceOr(c retrieval.Chunk, def float64) float64 {
	if c.RelevanceScore == 0 {
		return def
	}
	return c.RelevanceScore
}

// buildToolRegistry wires the five built-in tools against the shared state.
func (s *reactState) buildToolRegistry() *tool.Registry {
	reg := tool.NewRegistry()

	reg.Register(&tool.Tool{
		Name:        "knowledge_search",
		Description: "Search the knowledge base for relevant document chunks",
		// Not marked required: handlers fall back to the user's query when
		// the model omits an argument.
		Parameters: []tool.Parameter{
			{Name: "query", Type: "string", Description: "search query"},
			{Name: "top_k", Type: "number", Description: "number of chunks to retrieve"},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			query := stringArg(args, "query", s.query)
			topK := intArg(args, "top_k", 5)
			chunks := tool.KnowledgeSearch(ctx, s.p.searcher, query, s.folderIDs, topK)
			s.addChunks(chunks)

			type hit struct {
				Index     int     `json:"index"`
				Source    string  `json:"source"`
				Content   string  `json:"content"`
				Relevance float64 `json:"relevance"`
			}
			hits := make([]hit, len(chunks))
			for i, c := range chunks {
				hits[i] = hit{
					Index:     i + 1,
					Source:    c.SourceFile,
					Content:   tokens.ClipRunes(c.Content, 500),
					Relevance: relevanceOr(c, 0.5),
				}
			}
			out, err := json.MarshalIndent(hits, "", "  ")
			if err != nil {
				return "", err
			}
			return string(out), nil
		},
	})

	reg.Register(&tool.Tool{
		Name:        "summarizer",
		Description: "Summarize long content into a shorter form",
		Parameters: []tool.Parameter{
			{Name: "content", Type: "string", Description: "text to summarize"},
			{Name: "max_length", Type: "number", Description: "maximum summary length"},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			content := stringArg(args, "content", "")
			if content == "" {
				var parts []string
				for _, c := range s.chunks {
					parts = append(parts, c.Content)
				}
				content = strings.Join(parts, "\n\n")
			}
			maxLength := intArg(args, "max_length", 500)
			return tool.Summarize(ctx, s.p.llm, content, maxLength), nil
		},
	})

	reg.Register(&tool.Tool{
		Name:        "calculator",
		Description: "Evaluate a basic arithmetic expression",
		Parameters: []tool.Parameter{
			{Name: "expression", Type: "string", Description: "arithmetic expression"},
		},
		Handler: func(_ context.Context, args map[string]any) (string, error) {
			expr := stringArg(args, "expression", stringArg(args, "query", ""))
			return tool.Calculate(expr), nil
		},
	})

	reg.Register(&tool.Tool{
		Name:        "comparator",
		Description: "Compare the documents gathered so far",
		Parameters: []tool.Parameter{
			{Name: "aspect", Type: "string", Description: "aspect to compare on"},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			aspect := stringArg(args, "aspect", "")
			return tool.Compare(ctx, s.p.llm, s.chunks, aspect), nil
		},
	})

	reg.Register(&tool.Tool{
		Name:        "analyzer",
		Description: "Retrieve a wider document set for deep analysis",
		Handler: func(ctx context.Context, _ map[string]any) (string, error) {
			if len(s.chunks) == 0 {
				s.addChunks(tool.KnowledgeSearch(ctx, s.p.searcher, s.query, s.folderIDs, 10))
			}
			var sources []string
			for i, c := range s.chunks {
				if i >= 3 {
					break
				}
				sources = append(sources, c.SourceFile)
			}
			return fmt.Sprintf("Retrieved %d documents for deep analysis. Key sources: %s",
				len(s.chunks), strings.Join(sources, ", ")), nil
		},
	})

	return reg
}

// runReAct drives the bounded thought/action/observation loop and always
// returns a non-empty answer, synthesizing one when the step budget runs out.
func (p *Pipeline) runReAct(ctx context.Context, query string, folderIDs []string, cfg *AgentConfig, history []message.Message, memories []memory.Item, conversationID string, maxSteps int) reactResult {
	if p.llm == nil {
		return reactResult{FinalAnswer: msgNotConfigured}
	}
	if maxSteps <= 0 {
		maxSteps = DefaultMaxSteps
	}

	state := &reactState{p: p, query: query, folderIDs: folderIDs}
	registry := state.buildToolRegistry()

	persona := personaPrompt(cfg, "You are an intelligent AI agent with access to tools.")
	systemPrompt := p.reactSystemPrompt(persona, registry, memories, cfg, maxSteps)

	currentContext := "Question: " + query
	if len(history) > 0 {
		var recent []string
		for _, m := range message.Tail(history, 4) {
			recent = append(recent, string(m.Role)+": "+tokens.ClipRunes(m.Content, 200))
		}
		currentContext = "Recent conversation:\n" + strings.Join(recent, "\n") +
			"\n\nCurrent question: " + query
	}

	var steps []ReActStep

	for stepNum := 0; stepNum < maxSteps; stepNum++ {
		stepStart := time.Now()
		resp, err := p.llm.Generate(ctx, &llm.Request{
			Messages: []message.Message{
				message.System(systemPrompt),
				message.User(currentContext),
			},
			MaxTokens: 1500,
		})
		if err != nil {
			p.logger.Error("reasoning step failed", "step", stepNum+1, "error", err)
			break
		}
		output := resp.Content
		latency := time.Since(stepStart).Milliseconds()

		if idx := strings.Index(output, "ANSWER:"); idx >= 0 {
			answer := strings.TrimSpace(output[idx+len("ANSWER:"):])
			if answer == "" {
				answer = output
			}
			steps = append(steps, ReActStep{StepType: StepAnswer, Content: answer, LatencyMS: latency})
			p.logStep(ctx, conversationID, stepNum+1, StepAnswer, answer, "", "", "")
			return reactResult{Steps: steps, FinalAnswer: answer, Chunks: state.chunks, Citations: state.citations}
		}

		var thought string
		if m := thoughtRe.FindStringSubmatch(output); m != nil {
			thought = strings.TrimSpace(m[1])
			steps = append(steps, ReActStep{StepType: StepThought, Content: thought, LatencyMS: latency})
			p.logStep(ctx, conversationID, stepNum+1, StepThought, thought, "", "", "")
		}

		actionMatch := actionRe.FindStringSubmatch(output)
		if actionMatch != nil {
			toolName := strings.ToLower(actionMatch[1])
			toolInput := parseToolInput(output)

			steps = append(steps, ReActStep{
				StepType:  StepAction,
				Content:   "Executing " + toolName,
				ToolName:  toolName,
				ToolInput: toolInput,
				LatencyMS: latency,
			})

			toolStart := time.Now()
			observation := p.dispatchTool(ctx, registry, toolName, toolInput)
			toolLatency := time.Since(toolStart).Milliseconds()

			steps = append(steps, ReActStep{
				StepType:   StepObservation,
				Content:    observation,
				ToolName:   toolName,
				ToolOutput: observation,
				LatencyMS:  toolLatency,
			})

			inputJSON, _ := json.Marshal(toolInput)
			p.logStep(ctx, conversationID, stepNum+1, StepAction, "Executed "+toolName, toolName, string(inputJSON), observation)

			if thought == "" {
				thought = "Gathering information"
			}
			currentContext += "\n\nTHOUGHT: " + thought + "\nACTION: " + toolName +
				"\nOBSERVATION: " + observation + "\n\nContinue reasoning:"
		} else if thought == "" {
			// No recognizable format, treat the raw text as the final answer.
			steps = append(steps, ReActStep{StepType: StepAnswer, Content: output, LatencyMS: latency})
			return reactResult{Steps: steps, FinalAnswer: output, Chunks: state.chunks, Citations: state.citations}
		}
	}

	answer := p.wrapUpAnswer(ctx, query, persona, state.chunks)
	steps = append(steps, ReActStep{StepType: StepAnswer, Content: answer})
	return reactResult{Steps: steps, FinalAnswer: answer, Chunks: state.chunks, Citations: state.citations}
}

func (p *Pipeline) reactSystemPrompt(persona string, registry *tool.Registry, memories []memory.Item, cfg *AgentConfig, maxSteps int) string {
	memoryContext := ""
	if len(memories) > 0 {
		var facts []string
		for _, m := range memories {
			value, _ := json.Marshal(m.MemoryValue)
			facts = append(facts, fmt.Sprintf("- %s: %s = %s", m.MemoryType, m.MemoryKey, value))
		}
		memoryContext = "\n\nUser Memory (what you know about this user):\n" + strings.Join(facts, "\n")
	}

	var rules *ResponseRules
	if cfg != nil {
		rules = cfg.ResponseRules
	}

	return fmt.Sprintf(`%s

You use the ReAct (Reasoning and Acting) pattern to answer questions thoroughly.

## Available Tools
%s

## ReAct Format
For each step, respond with ONE of these formats:

THOUGHT: [Your reasoning about what to do next]
ACTION: [tool_name]
INPUT: [JSON input for the tool]

OR when you have enough information:

ANSWER: [Your final comprehensive answer]

## Rules
1. Always start with a THOUGHT about what information you need
2. Use tools to gather information before answering
3. After each tool result (OBSERVATION), think about what you learned
4. Cite sources using [Source N] format when using retrieved information
5. Maximum %d reasoning steps before you must provide an answer
6. If uncertain, acknowledge limitations honestly
%s%s`, persona, registry.Describe(), maxSteps, memoryContext, reactRulesSection(rules))
}

// dispatchTool resolves aliases and never propagates tool failures into the
// loop; a failed tool becomes an error observation.
func (p *Pipeline) dispatchTool(ctx context.Context, registry *tool.Registry, name string, input map[string]any) string {
	canonical := name
	if alias, ok := toolAliases[name]; ok {
		canonical = alias
	}
	out, err := registry.Execute(ctx, canonical, input)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return "Unknown tool: " + name
		}
		p.logger.Warn("tool execution failed", "tool", canonical, "error", err)
		return "Tool error: " + err.Error()
	}
	return tokens.ClipRunes(out, 2000)
}

// parseToolInput reads the INPUT block as JSON, falling back to treating the
// raw text as a query string.
func parseToolInput(output string) map[string]any {
	inputStr := ""
	if m := inputRe.FindStringSubmatch(output); m != nil {
		inputStr = strings.TrimSpace(m[1])
	}
	if inputStr == "" {
		return map[string]any{}
	}
	if strings.HasPrefix(inputStr, "{") {
		var parsed map[string]any
		if err := json.Unmarshal([]byte(inputStr), &parsed); err == nil {
			return parsed
		}
	}
	return map[string]any{"query": inputStr}
}

// wrapUpAnswer forces a final answer from whatever was gathered when the step
// budget runs out.
func (p *Pipeline) wrapUpAnswer(ctx context.Context, query, persona string, chunks []retrieval.Chunk) string {
	var parts []string
	for i, c := range chunks {
		parts = append(parts, fmt.Sprintf("[Source %d: %s]\n%s", i+1, c.SourceFile, c.Content))
	}
	finalContext := tokens.Clip(strings.Join(parts, "\n\n---\n\n"), wrapUpTokenBudget)

	resp, err := p.llm.Generate(ctx, &llm.Request{
		Messages: []message.Message{
			message.System(persona + "\n\nProvide a comprehensive answer based on the gathered information. Use [Source N] format to cite sources."),
			message.User(fmt.Sprintf("Question: %s\n\nGathered Information:\n%s\n\nProvide a complete answer with citations.", query, finalContext)),
		},
		MaxTokens: 2000,
	})
	if err != nil {
		p.logger.Error("wrap-up answer failed", "error", err)
		return "I gathered some information but couldn't formulate a complete answer. Please try rephrasing your question."
	}
	if resp.Content == "" {
		return "Unable to generate response."
	}
	return resp.Content
}

// logStep records one reasoning step. Persistence failures never affect the
// loop.
func (p *Pipeline) logStep(ctx context.Context, conversationID string, stepNumber int, stepType StepType, content, toolName, toolInput, toolOutput string) {
	if p.store == nil {
		return
	}
	log := store.ReasoningLog{
		ConversationID: conversationID,
		StepNumber:     stepNumber,
		StepType:       string(stepType),
		Content:        tokens.ClipRunes(content, 5000),
		ToolUsed:       toolName,
		ToolInput:      toolInput,
		ToolOutput:     toolOutput,
	}
	p.spawn(ctx, "reasoning log", func(ctx context.Context) error {
		return p.store.LogReasoningStep(ctx, log)
	})
}

func stringArg(args map[string]any, key, def string) string {
	if v, ok := args[key].(string); ok && v != "" {
		return v
	}
	return def
}

func intArg(args map[string]any, key string, def int) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return def
}
