// Package cache holds the query-complexity cache. Classifying a query costs
// an LLM call, so identical queries reuse the stored verdict.
package cache

import "context"

// Record is a cached complexity verdict for one normalized query.
type Record struct {
	QueryHash           string         `json:"query_hash"`
	OriginalQuery       string         `json:"original_query"`
	Complexity          string         `json:"complexity"`
	RecommendedStrategy string         `json:"recommended_strategy"`
	AnalysisDetails     map[string]any `json:"analysis_details,omitempty"`
}

// ComplexityCache stores complexity verdicts keyed by query hash.
type ComplexityCache interface {
	// Get returns the cached record, or (nil, nil) on a miss.
	Get(ctx context.Context, queryHash string) (*Record, error)

	// Put stores the record under its QueryHash.
	Put(ctx context.Context, rec *Record) error
}
