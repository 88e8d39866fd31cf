package rag

import (
	"context"
	"errors"
	"sync"

	"github.com/agentstudio/ragchat/llm"
	"github.com/agentstudio/ragchat/memory"
	"github.com/agentstudio/ragchat/retrieval"
	"github.com/agentstudio/ragchat/store"
)

type llmResult struct {
	content string
	err     error
}

// scriptedLLM replays a fixed sequence of replies and records every request.
type scriptedLLM struct {
	mu      sync.Mutex
	results []llmResult
	calls   []*llm.Request
}

func (s *scriptedLLM) Generate(_ context.Context, req *llm.Request) (*llm.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, req)
	if len(s.results) == 0 {
		return nil, errors.New("scripted LLM: unexpected call")
	}
	next := s.results[0]
	s.results = s.results[1:]
	if next.err != nil {
		return nil, next.err
	}
	return &llm.Response{Content: next.content}, nil
}

func (s *scriptedLLM) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

type stubSearcher struct {
	mu     sync.Mutex
	chunks []retrieval.Chunk
	err    error
	calls  int
}

func (s *stubSearcher) Search(_ context.Context, _ string, _ []string, _ int) ([]retrieval.Chunk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.chunks, s.err
}

func (s *stubSearcher) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type stubMemoryStore struct {
	mu       sync.Mutex
	items    []memory.Item
	upserted []memory.Item
}

func (s *stubMemoryStore) Recall(_ context.Context, _, _ string, _ int) ([]memory.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.items, nil
}

func (s *stubMemoryStore) Upsert(_ context.Context, item memory.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upserted = append(s.upserted, item)
	return nil
}

type stubStore struct {
	mu          sync.Mutex
	logs        []store.ReasoningLog
	citations   []store.Citation
	evaluations []store.Evaluation
	experiences []store.Experience
	outcomes    int
}

func (s *stubStore) LogReasoningStep(_ context.Context, log store.ReasoningLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, log)
	return nil
}

func (s *stubStore) SaveCitations(_ context.Context, cs []store.Citation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.citations = append(s.citations, cs...)
	return nil
}

func (s *stubStore) SaveEvaluation(_ context.Context, e store.Evaluation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evaluations = append(s.evaluations, e)
	return nil
}

func (s *stubStore) ArchiveExperience(_ context.Context, e store.Experience) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.experiences = append(s.experiences, e)
	return nil
}

func (s *stubStore) RecordStrategyOutcome(_ context.Context, _, _, _ string, _ bool, _ int64, _ float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outcomes++
	return nil
}
