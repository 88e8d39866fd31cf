package rag

import (
	"context"
	"errors"
	"strings"
	"testing"
)

// failingTemplate produces a structure score of 0 for a plain-prose draft,
// pushing the overall score below the pass threshold.
const failingTemplate = "{SOURCES}\n{SUMMARY}\n{CONFIDENCE}"

const passingRevision = "Here is the corrected answer with enough substance [Source 1].\n\nSummary: cats are mammals.\nConfidence: 90%"

func TestReworkSkipsWhenPassed(t *testing.T) {
	llmStub := &scriptedLLM{}
	p := New(&stubSearcher{}, WithLLM(llmStub))

	score := ValidateCompliance("A fine answer.", nil, "")
	if !score.Passed {
		t.Fatalf("precondition: score %+v should pass", score)
	}

	got := p.rework(context.Background(), "A fine answer.", score, nil, "", "system", nil, 2)
	if got.Attempts != 0 || got.Response != "A fine answer." {
		t.Errorf("rework = %+v, want untouched original", got)
	}
	if llmStub.callCount() != 0 {
		t.Errorf("model called %d times for a passing draft", llmStub.callCount())
	}
}

func TestReworkSucceedsOnRevision(t *testing.T) {
	llmStub := &scriptedLLM{results: []llmResult{{content: passingRevision}}}
	p := New(&stubSearcher{}, WithLLM(llmStub))

	original := "Cats are mammals and that is all I have to say about that."
	score := ValidateCompliance(original, nil, failingTemplate)
	if score.Passed {
		t.Fatalf("precondition: score %+v should fail", score)
	}

	got := p.rework(context.Background(), original, score, nil, failingTemplate, "", nil, 2)
	if got.Attempts != 1 {
		t.Errorf("attempts = %d, want 1", got.Attempts)
	}
	if got.Response != passingRevision {
		t.Errorf("response = %q, want revision", got.Response)
	}
	if !got.FinalScore.Passed {
		t.Errorf("final score = %+v, want passed", got.FinalScore)
	}

	// The correction prompt carries the failing score and the target structure.
	calls := llmStub.calls
	if len(calls) != 1 {
		t.Fatalf("model calls = %d, want 1", len(calls))
	}
	correction := calls[0].Messages[len(calls[0].Messages)-1].Content
	if !strings.Contains(correction, "template compliance") {
		t.Errorf("correction prompt missing score line: %q", correction)
	}
	if !strings.Contains(correction, failingTemplate) {
		t.Errorf("correction prompt missing template: %q", correction)
	}
	if !strings.Contains(correction, original) {
		t.Errorf("correction prompt missing original draft")
	}
}

func TestReworkStopsAtMaxRetries(t *testing.T) {
	stillBad := "This revision is long enough to be accepted but still has no structure whatsoever."
	llmStub := &scriptedLLM{results: []llmResult{{content: stillBad}, {content: stillBad}}}
	p := New(&stubSearcher{}, WithLLM(llmStub))

	original := "Cats are mammals and that is all I have to say about that."
	score := ValidateCompliance(original, nil, failingTemplate)

	got := p.rework(context.Background(), original, score, nil, failingTemplate, "", nil, 2)
	if got.Attempts != 2 {
		t.Errorf("attempts = %d, want 2", got.Attempts)
	}
	if got.FinalScore.Passed {
		t.Errorf("final score = %+v, want still failing", got.FinalScore)
	}
	if got.Response != stillBad {
		t.Errorf("response = %q, want last accepted revision", got.Response)
	}
}

func TestReworkAbortsOnDegenerateReply(t *testing.T) {
	llmStub := &scriptedLLM{results: []llmResult{{content: "ok"}}}
	p := New(&stubSearcher{}, WithLLM(llmStub))

	original := "Cats are mammals and that is all I have to say about that."
	score := ValidateCompliance(original, nil, failingTemplate)

	got := p.rework(context.Background(), original, score, nil, failingTemplate, "", nil, 3)
	if got.Attempts != 1 {
		t.Errorf("attempts = %d, want 1", got.Attempts)
	}
	if got.Response != original {
		t.Errorf("response = %q, want original retained", got.Response)
	}
}

func TestReworkAbortsOnModelError(t *testing.T) {
	llmStub := &scriptedLLM{results: []llmResult{{err: errors.New("overloaded")}}}
	p := New(&stubSearcher{}, WithLLM(llmStub))

	original := "Cats are mammals and that is all I have to say about that."
	score := ValidateCompliance(original, nil, failingTemplate)

	got := p.rework(context.Background(), original, score, nil, failingTemplate, "", nil, 3)
	if got.Attempts != 1 || got.Response != original {
		t.Errorf("rework = %+v, want abort with original", got)
	}
}

func TestReworkWithoutProvider(t *testing.T) {
	p := New(&stubSearcher{})
	score := ValidateCompliance("draft", nil, failingTemplate)
	got := p.rework(context.Background(), "draft", score, nil, failingTemplate, "", nil, 2)
	if got.Attempts != 0 || got.Response != "draft" {
		t.Errorf("rework = %+v, want no-op without a provider", got)
	}
}
