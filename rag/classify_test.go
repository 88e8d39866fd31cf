package rag

import (
	"context"
	"errors"
	"testing"

	"github.com/agentstudio/ragchat/cache"
)

func TestQueryHashNormalizes(t *testing.T) {
	a := queryHash("  What Is A Cat? ")
	b := queryHash("what is a cat?")
	if a != b {
		t.Errorf("hashes differ for equivalent queries: %s vs %s", a, b)
	}
	if queryHash("cats") == queryHash("dogs") {
		t.Error("distinct queries hashed identically")
	}
}

func TestClassifyCacheHit(t *testing.T) {
	c := cache.NewMemoryCache()
	if err := c.Put(context.Background(), &cache.Record{
		QueryHash:           queryHash("compare cats and dogs"),
		OriginalQuery:       "compare cats and dogs",
		Complexity:          "complex",
		RecommendedStrategy: "agentic_full",
	}); err != nil {
		t.Fatal(err)
	}

	llmStub := &scriptedLLM{}
	p := New(&stubSearcher{}, WithLLM(llmStub), WithComplexityCache(c))

	got := p.classify(context.Background(), "compare cats and dogs", nil)
	if got.Complexity != ComplexityComplex || got.Strategy != StrategyAgenticFull {
		t.Errorf("classification = %+v, want cached complex/agentic_full", got)
	}
	if got.Reasoning != "Cached analysis" {
		t.Errorf("reasoning = %q", got.Reasoning)
	}
	if llmStub.callCount() != 0 {
		t.Errorf("cache hit still called the model %d times", llmStub.callCount())
	}
}

func TestClassifyNoProvider(t *testing.T) {
	p := New(&stubSearcher{})
	got := p.classify(context.Background(), "anything", nil)
	if got.Complexity != ComplexityModerate || got.Strategy != StrategyStandardRAG {
		t.Errorf("classification = %+v, want moderate/standard_rag default", got)
	}
}

func TestClassifyModelFailure(t *testing.T) {
	llmStub := &scriptedLLM{results: []llmResult{{err: errors.New("rate limited")}}}
	p := New(&stubSearcher{}, WithLLM(llmStub))

	got := p.classify(context.Background(), "anything", nil)
	if got.Complexity != ComplexityModerate || got.Strategy != StrategyStandardRAG {
		t.Errorf("classification = %+v, want moderate/standard_rag default", got)
	}
}

func TestClassifyUnparseableVerdict(t *testing.T) {
	llmStub := &scriptedLLM{results: []llmResult{{content: "not json at all"}}}
	p := New(&stubSearcher{}, WithLLM(llmStub))

	got := p.classify(context.Background(), "anything", nil)
	if got.Complexity != ComplexityModerate || got.Strategy != StrategyStandardRAG {
		t.Errorf("classification = %+v, want moderate/standard_rag default", got)
	}
}

func TestClassifyPopulatesCache(t *testing.T) {
	c := cache.NewMemoryCache()
	llmStub := &scriptedLLM{results: []llmResult{{content: "```json\n" +
		`{"complexity":"simple","strategy":"direct_answer","reasoning":"single fact","indicators":{"multi_document":false}}` +
		"\n```"}}}
	p := New(&stubSearcher{}, WithLLM(llmStub), WithComplexityCache(c))

	got := p.classify(context.Background(), "what is a cat?", nil)
	if got.Complexity != ComplexitySimple || got.Strategy != "direct_answer" {
		t.Fatalf("classification = %+v", got)
	}

	rec, err := c.Get(context.Background(), queryHash("what is a cat?"))
	if err != nil || rec == nil {
		t.Fatalf("cache record = %v, err = %v", rec, err)
	}
	if rec.Complexity != "simple" || rec.RecommendedStrategy != "direct_answer" {
		t.Errorf("cached record = %+v", rec)
	}

	// Second call must be served from the cache.
	again := p.classify(context.Background(), "What Is A Cat?", nil)
	if again.Reasoning != "Cached analysis" {
		t.Errorf("second classification reasoning = %q, want cache hit", again.Reasoning)
	}
	if llmStub.callCount() != 1 {
		t.Errorf("model called %d times, want 1", llmStub.callCount())
	}
}

func TestClassifyFillsMissingFields(t *testing.T) {
	llmStub := &scriptedLLM{results: []llmResult{{content: `{"reasoning":"shrug"}`}}}
	p := New(&stubSearcher{}, WithLLM(llmStub))

	got := p.classify(context.Background(), "anything", nil)
	if got.Complexity != ComplexityModerate || got.Strategy != StrategyStandardRAG {
		t.Errorf("classification = %+v, want defaults filled in", got)
	}
	if got.Reasoning != "shrug" {
		t.Errorf("reasoning = %q", got.Reasoning)
	}
}
