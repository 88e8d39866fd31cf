package rag

import (
	"math"
	"regexp"
	"strings"
)

// BehaviorMetrics describe the surface form of one response, logged so output
// style can be tuned per agent over time.
type BehaviorMetrics struct {
	WordCount         int            `json:"word_count"`
	CharacterCount    int            `json:"character_count"`
	SentenceCount     int            `json:"sentence_count"`
	AvgSentenceLength float64        `json:"avg_sentence_length"`
	ParagraphCount    int            `json:"paragraph_count"`
	HasBulletPoints   bool           `json:"has_bullet_points"`
	HasNumberedList   bool           `json:"has_numbered_list"`
	HasCitations      bool           `json:"has_citations"`
	CitationCount     int            `json:"citation_count"`
	HasHeaders        bool           `json:"has_headers"`
	HasCodeBlocks     bool           `json:"has_code_blocks"`
	ToneIndicators    ToneIndicators `json:"tone_indicators"`
	Structure         string         `json:"structure"`
	RulesApplied      []string       `json:"rules_applied"`
}

type ToneIndicators struct {
	FormalScore      float64 `json:"formal_score"`
	UsesContractions bool    `json:"uses_contractions"`
	UsesFirstPerson  bool    `json:"uses_first_person"`
}

var (
	wordSplitRe     = regexp.MustCompile(`\s+`)
	sentenceSplitRe = regexp.MustCompile(`[.!?]+`)
	paragraphRe     = regexp.MustCompile(`\n\n+`)
	numberedListRe  = regexp.MustCompile(`(?m)^[\s]*\d+[.)]\s`)
	behaviorCiteRe  = regexp.MustCompile(`(?i)\[Source \d+\]`)
	headerRe        = regexp.MustCompile(`(?m)^#+\s|^[A-Z][A-Z\s]+:$`)
	codeBlockRe     = regexp.MustCompile("(?s)```.*?```")
	contractionsRe  = regexp.MustCompile(`(?i)(don't|won't|can't|isn't|aren't|wasn't|weren't|haven't|hasn't|hadn't|wouldn't|couldn't|shouldn't|I'm|you're|we're|they're|it's|that's|there's|here's|what's|who's|let's)`)
	firstPersonRe   = regexp.MustCompile(`(?i)\b(I|me|my|mine|we|us|our|ours)\b`)
	uncertaintyRe   = regexp.MustCompile(`(?i)I('m| am) not (sure|certain)|don't have enough|cannot (confirm|verify)|beyond my knowledge|uncertain`)
)

// AnalyzeResponseBehavior computes style metrics for a response.
func AnalyzeResponseBehavior(response string, rules *ResponseRules) BehaviorMetrics {
	words := nonEmpty(wordSplitRe.Split(response, -1))
	sentences := nonEmpty(sentenceSplitRe.Split(response, -1))
	paragraphs := nonEmpty(paragraphRe.Split(response, -1))

	wordCount := len(words)
	sentenceCount := len(sentences)
	avgSentenceLength := 0.0
	if sentenceCount > 0 {
		avgSentenceLength = float64(wordCount) / float64(sentenceCount)
	}

	hasBullets := bulletPattern.MatchString(response)
	hasNumbered := numberedListRe.MatchString(response)
	citationMatches := behaviorCiteRe.FindAllString(response, -1)
	hasHeaders := headerRe.MatchString(response)
	usesContractions := contractionsRe.MatchString(response)
	usesFirstPerson := firstPersonRe.MatchString(response)

	formalScore := 0.5
	if !usesContractions {
		formalScore += 0.2
	}
	if !usesFirstPerson {
		formalScore += 0.1
	}
	if hasHeaders {
		formalScore += 0.1
	}
	if avgSentenceLength > 20 {
		formalScore += 0.1
	}
	formalScore = math.Min(1, formalScore)

	structure := "balanced"
	if wordCount < 100 {
		structure = "concise"
	} else if wordCount > 300 {
		structure = "detailed"
	}

	var applied []string
	if rules != nil {
		if rules.StepByStep && (hasNumbered || hasBullets) {
			applied = append(applied, "step_by_step")
		}
		if rules.CiteIfPossible && len(citationMatches) > 0 {
			applied = append(applied, "cite_if_possible")
		}
		if rules.RefuseIfUncertain && uncertaintyRe.MatchString(response) {
			applied = append(applied, "refuse_if_uncertain")
		}
	}

	return BehaviorMetrics{
		WordCount:         wordCount,
		CharacterCount:    len(response),
		SentenceCount:     sentenceCount,
		AvgSentenceLength: math.Round(avgSentenceLength*10) / 10,
		ParagraphCount:    len(paragraphs),
		HasBulletPoints:   hasBullets,
		HasNumberedList:   hasNumbered,
		HasCitations:      len(citationMatches) > 0,
		CitationCount:     len(citationMatches),
		HasHeaders:        hasHeaders,
		HasCodeBlocks:     codeBlockRe.MatchString(response),
		ToneIndicators: ToneIndicators{
			FormalScore:      math.Round(formalScore*100) / 100,
			UsesContractions: usesContractions,
			UsesFirstPerson:  usesFirstPerson,
		},
		Structure:    structure,
		RulesApplied: applied,
	}
}

func nonEmpty(parts []string) []string {
	out := parts[:0:0]
	for _, s := range parts {
		if strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	return out
}
