package rag

import (
	"context"
	"errors"
	"strings"
	"testing"

	apperrors "github.com/agentstudio/ragchat/errors"
	"github.com/agentstudio/ragchat/memory"
	"github.com/agentstudio/ragchat/message"
	"github.com/agentstudio/ragchat/retrieval"
)

func boolPtr(b bool) *bool { return &b }

func TestValidateRequest(t *testing.T) {
	long := strings.Repeat("x", maxMessageLength+1)
	many := make([]message.Message, maxMessages+1)
	for i := range many {
		many[i] = message.User("hi")
	}

	tests := []struct {
		name    string
		req     *Request
		wantMsg string
	}{
		{"nil request", nil, "messages array is required"},
		{"empty messages", &Request{}, "messages array is required"},
		{"too many messages", &Request{Messages: many}, "too many messages"},
		{"empty content", &Request{Messages: []message.Message{{Role: message.RoleUser}}}, "content must be a string"},
		{"oversized content", &Request{Messages: []message.Message{message.User(long)}}, "message too long"},
		{"bad role", &Request{Messages: []message.Message{{Role: "robot", Content: "hi"}}}, "invalid message role"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRequest(tt.req)
			if err == nil {
				t.Fatal("want error, got nil")
			}
			if !errors.Is(err, apperrors.ErrInvalidInput) {
				t.Errorf("error %v is not ErrInvalidInput", err)
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error = %q, want substring %q", err, tt.wantMsg)
			}
		})
	}

	ok := &Request{Messages: []message.Message{message.System("be nice"), message.User("hi")}}
	if err := ValidateRequest(ok); err != nil {
		t.Errorf("valid request rejected: %v", err)
	}
}

func TestHandleRejectsBadInputBeforeRetrieval(t *testing.T) {
	searcher := &stubSearcher{}
	p := New(searcher)

	_, err := p.Handle(context.Background(), "user-1", &Request{})
	if !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
	if searcher.callCount() != 0 {
		t.Errorf("searcher called %d times before validation", searcher.callCount())
	}
}

func TestHandleStandardPath(t *testing.T) {
	searcher := &stubSearcher{}
	llmStub := &scriptedLLM{results: []llmResult{
		{content: `{"complexity":"simple","strategy":"simple_lookup","reasoning":"one fact"}`},
		{content: "A cat is a small domesticated mammal."},
	}}
	p := New(searcher, WithLLM(llmStub))

	resp, err := p.Handle(context.Background(), "user-1", &Request{
		Messages:      []message.Message{message.User("what is a cat?")},
		EnableAgentic: boolPtr(false),
	})
	if err != nil {
		t.Fatal(err)
	}
	p.Wait()

	if !resp.Success {
		t.Error("success = false")
	}
	if resp.Response != "A cat is a small domesticated mammal." {
		t.Errorf("response = %q", resp.Response)
	}
	if resp.Citations == nil || len(resp.Citations) != 0 {
		t.Errorf("citations = %#v, want empty non-nil slice", resp.Citations)
	}
	if resp.Confidence != 0.4 {
		t.Errorf("confidence = %v, want 0.4 without citations", resp.Confidence)
	}
	if resp.Metadata.StrategyUsed != "simple_lookup" || resp.Metadata.QueryComplexity != ComplexitySimple {
		t.Errorf("metadata = %+v", resp.Metadata)
	}
	if resp.Metadata.ChunksUsed != 0 || resp.Metadata.ReasoningSteps != 0 {
		t.Errorf("metadata = %+v, want no chunks or steps", resp.Metadata)
	}
	// classify + completion; empty retrieval skips the hallucination check.
	if llmStub.callCount() != 2 {
		t.Errorf("model called %d times, want 2", llmStub.callCount())
	}
}

func TestHandleWithoutProviderDegrades(t *testing.T) {
	p := New(&stubSearcher{})

	resp, err := p.Handle(context.Background(), "user-1", &Request{
		Messages: []message.Message{message.User("hello")},
	})
	if err != nil {
		t.Fatal(err)
	}
	p.Wait()

	if !resp.Success {
		t.Error("success = false, want degraded success")
	}
	if resp.Response != msgNotConfigured {
		t.Errorf("response = %q, want configuration message", resp.Response)
	}
	if !resp.Validation.Passed {
		t.Errorf("validation = %+v, want default pass", resp.Validation)
	}
}

func TestHandleAgenticPath(t *testing.T) {
	searcher := &stubSearcher{chunks: []retrieval.Chunk{
		{ID: "c1", SourceFile: "pets.md", Content: "Cats are independent; dogs are social.", RelevanceScore: 0.9},
	}}
	llmStub := &scriptedLLM{results: []llmResult{
		{content: `{"complexity":"complex","strategy":"agentic_full","reasoning":"needs comparison"}`},
		{content: "THOUGHT: I need sources on both animals.\nACTION: knowledge_search\nINPUT: {\"query\": \"cats vs dogs\"}"},
		{content: "ANSWER: Cats are independent while dogs are social [Source 1]."},
		{content: `{"hallucination_detected":false,"unsupported_claims":[],"supported_claims_count":2,"confidence":0.9}`},
		{content: `{"memories":[{"type":"preference","key":"pets","value":"interested in cats and dogs"}]}`},
	}}
	memories := &stubMemoryStore{items: []memory.Item{
		{UserID: "user-1", MemoryType: "preference", MemoryKey: "tone", MemoryValue: "casual"},
	}}
	audit := &stubStore{}
	p := New(searcher,
		WithLLM(llmStub),
		WithMemoryStore(memories),
		WithStore(audit),
	)

	resp, err := p.Handle(context.Background(), "user-1", &Request{
		Messages:       []message.Message{message.User("compare cats and dogs")},
		ConversationID: "conv-1",
		WorkspaceID:    "ws-1",
	})
	if err != nil {
		t.Fatal(err)
	}
	p.Wait()

	if resp.Response != "Cats are independent while dogs are social [Source 1]." {
		t.Errorf("response = %q", resp.Response)
	}
	if len(resp.Citations) != 1 || resp.Citations[0].ChunkID != "c1" {
		t.Fatalf("citations = %+v", resp.Citations)
	}
	if resp.Confidence != 0.6 {
		t.Errorf("confidence = %v, want 0.6 for one citation", resp.Confidence)
	}

	md := resp.Metadata
	if md.StrategyUsed != StrategyAgenticFull || md.QueryComplexity != ComplexityComplex {
		t.Errorf("metadata = %+v", md)
	}
	if md.ChunksUsed != 1 || md.ReasoningSteps != 4 {
		t.Errorf("metadata = %+v, want 1 chunk and 4 steps", md)
	}
	if md.HallucinationDetected || md.HallucinationCount != 0 {
		t.Errorf("metadata = %+v, want clean hallucination check", md)
	}
	if md.MemoryItemsUsed != 1 {
		t.Errorf("memory items used = %d, want 1", md.MemoryItemsUsed)
	}

	// thought, action, observation, answer
	wantTypes := []StepType{StepThought, StepAction, StepObservation, StepAnswer}
	if len(resp.ReasoningTrace) != len(wantTypes) {
		t.Fatalf("trace = %+v", resp.ReasoningTrace)
	}
	for i, want := range wantTypes {
		if resp.ReasoningTrace[i].Type != want {
			t.Errorf("trace[%d].Type = %s, want %s", i, resp.ReasoningTrace[i].Type, want)
		}
	}

	// Detached tail writes, visible once Wait returns.
	audit.mu.Lock()
	defer audit.mu.Unlock()
	if len(audit.logs) != 3 {
		t.Errorf("reasoning logs = %d, want 3", len(audit.logs))
	}
	if len(audit.evaluations) != 1 || !audit.evaluations[0].Passed {
		t.Fatalf("evaluations = %+v", audit.evaluations)
	}
	eval := audit.evaluations[0]
	if eval.Query != "compare cats and dogs" || eval.Response != resp.Response {
		t.Errorf("evaluation = %+v, want query and response recorded", eval)
	}
	if eval.RetrievalDecision != "retrieve" {
		t.Errorf("retrieval decision = %q, want retrieve", eval.RetrievalDecision)
	}
	if eval.RefinementIterations != 1 {
		t.Errorf("refinement iterations = %d, want 1 thought step", eval.RefinementIterations)
	}
	if eval.Confidence != 0.6 {
		t.Errorf("evaluation confidence = %v, want 0.6", eval.Confidence)
	}
	if eval.HallucinationDetected || len(eval.HallucinationDetails) != 0 {
		t.Errorf("evaluation = %+v, want clean hallucination record", eval)
	}
	if len(audit.citations) != 1 || audit.citations[0].SourceIndex != 1 || audit.citations[0].ConversationID != "conv-1" {
		t.Errorf("citation rows = %+v", audit.citations)
	}
	if audit.outcomes != 1 {
		t.Errorf("strategy outcomes = %d, want 1", audit.outcomes)
	}

	memories.mu.Lock()
	defer memories.mu.Unlock()
	if len(memories.upserted) != 1 {
		t.Fatalf("upserted memories = %+v", memories.upserted)
	}
	got := memories.upserted[0]
	if got.UserID != "user-1" || got.MemoryKey != "pets" || got.MemoryType != "preference" {
		t.Errorf("upserted memory = %+v", got)
	}
}

func TestHandleEvaluationRecordsUnsupportedClaims(t *testing.T) {
	searcher := &stubSearcher{chunks: []retrieval.Chunk{
		{ID: "c1", SourceFile: "cats.md", Content: "Cats are mammals.", RelevanceScore: 0.9},
	}}
	llmStub := &scriptedLLM{results: []llmResult{
		{content: `{"complexity":"moderate","strategy":"standard_rag","reasoning":"needs sources"}`},
		{content: "Cats are mammals and can fly short distances [Source 1]."},
		{content: `{"hallucination_detected":true,"unsupported_claims":[{"claim":"cats can fly short distances","issue":"not in any source"}],"supported_claims_count":1,"confidence":0.8}`},
	}}
	audit := &stubStore{}
	p := New(searcher, WithLLM(llmStub), WithStore(audit))

	resp, err := p.Handle(context.Background(), "user-1", &Request{
		Messages:       []message.Message{message.User("tell me about cats")},
		ConversationID: "conv-1",
		EnableAgentic:  boolPtr(false),
	})
	if err != nil {
		t.Fatal(err)
	}
	p.Wait()

	if !resp.Metadata.HallucinationDetected || resp.Metadata.HallucinationCount != 1 {
		t.Errorf("metadata = %+v, want one flagged claim", resp.Metadata)
	}

	audit.mu.Lock()
	defer audit.mu.Unlock()
	if len(audit.evaluations) != 1 {
		t.Fatalf("evaluations = %+v, want 1", audit.evaluations)
	}
	eval := audit.evaluations[0]
	if !eval.HallucinationDetected {
		t.Error("hallucination_detected = false, want true")
	}
	if len(eval.HallucinationDetails) != 1 {
		t.Fatalf("hallucination details = %+v, want 1", eval.HallucinationDetails)
	}
	if eval.HallucinationDetails[0].Claim != "cats can fly short distances" ||
		eval.HallucinationDetails[0].Issue != "not in any source" {
		t.Errorf("detail = %+v", eval.HallucinationDetails[0])
	}
	if eval.Query != "tell me about cats" || eval.Response != resp.Response {
		t.Errorf("evaluation = %+v, want query and response recorded", eval)
	}
}

func TestHandleReworkImprovesFailingDraft(t *testing.T) {
	template := "{SOURCES}\n{SUMMARY}\n{CONFIDENCE}"
	revised := "Revised answer with sources [Source 1].\n\nSummary: all fixed now.\nConfidence: 90%"
	llmStub := &scriptedLLM{results: []llmResult{
		{content: `{"complexity":"simple","strategy":"simple_lookup","reasoning":"one fact"}`},
		{content: "A plain draft that matches none of the required template sections at all."},
		{content: revised},
	}}
	searcher := &stubSearcher{chunks: []retrieval.Chunk{
		{ID: "c1", SourceFile: "a.md", Content: "facts", RelevanceScore: 0.8},
	}}
	p := New(searcher, WithLLM(llmStub))

	resp, err := p.Handle(context.Background(), "user-1", &Request{
		Messages: []message.Message{message.User("what is a cat?")},
		AgentConfig: &AgentConfig{
			ResponseRules: &ResponseRules{CustomResponseTemplate: template},
		},
		EnableHallucinationCheck: boolPtr(false),
	})
	if err != nil {
		t.Fatal(err)
	}
	p.Wait()

	if resp.Response != revised {
		t.Errorf("response = %q, want reworked revision", resp.Response)
	}
	if resp.Validation.ReworkAttempts != 1 {
		t.Errorf("rework attempts = %d, want 1", resp.Validation.ReworkAttempts)
	}
	if !resp.Validation.Passed {
		t.Errorf("validation = %+v, want passed after rework", resp.Validation)
	}
}

func TestHandleHonorsExplicitFalseFlags(t *testing.T) {
	llmStub := &scriptedLLM{results: []llmResult{
		{content: "Direct reply without adaptive classification."},
	}}
	memories := &stubMemoryStore{items: []memory.Item{{MemoryKey: "tone"}}}
	p := New(&stubSearcher{}, WithLLM(llmStub), WithMemoryStore(memories))

	resp, err := p.Handle(context.Background(), "user-1", &Request{
		Messages:               []message.Message{message.User("hi")},
		EnableAdaptiveStrategy: boolPtr(false),
		EnableMemory:           boolPtr(false),
	})
	if err != nil {
		t.Fatal(err)
	}
	p.Wait()

	// Only the responder completion: no classifier call, no memory recall,
	// no extraction.
	if llmStub.callCount() != 1 {
		t.Errorf("model called %d times, want 1", llmStub.callCount())
	}
	if resp.Metadata.MemoryItemsUsed != 0 {
		t.Errorf("memory items used = %d, want 0", resp.Metadata.MemoryItemsUsed)
	}
	if resp.Metadata.StrategyUsed != StrategyStandardRAG {
		t.Errorf("strategy = %q, want default", resp.Metadata.StrategyUsed)
	}
	memories.mu.Lock()
	defer memories.mu.Unlock()
	if len(memories.upserted) != 0 {
		t.Errorf("memories upserted = %+v, want none", memories.upserted)
	}
}
