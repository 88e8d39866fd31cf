// Package retrieval talks to the external document-chunk retrieval service.
package retrieval

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/agentstudio/ragchat/pkg/logging"
)

// Chunk is one ranked piece of retrieved reference text. Chunks are
// immutable and live for a single request.
type Chunk struct {
	ID             string  `json:"id"`
	SourceFile     string  `json:"source_file"`
	Content        string  `json:"content"`
	RelevanceScore float64 `json:"relevance_score,omitempty"`
}

// Searcher finds document chunks relevant to a query.
type Searcher interface {
	Search(ctx context.Context, query string, folderIDs []string, topK int) ([]Chunk, error)
}

// Client calls the retrieval service over HTTP.
type Client struct {
	endpoint   string
	serviceKey string
	http       *http.Client
	logger     *slog.Logger
}

// NewClient creates a retrieval client for the given endpoint. The service
// key authenticates server-to-server calls.
func NewClient(endpoint, serviceKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		endpoint:   endpoint,
		serviceKey: serviceKey,
		http:       &http.Client{Timeout: timeout},
		logger:     logging.WithComponent("retrieval"),
	}
}

type searchConfig struct {
	TopK              int      `json:"top_k"`
	RerankTopN        int      `json:"rerank_top_n"`
	UseQueryExpansion bool     `json:"use_query_expansion"`
	UseHyde           bool     `json:"use_hyde"`
	UseReranking      bool     `json:"use_reranking"`
	FolderIDs         []string `json:"folder_ids,omitempty"`
}

type searchRequest struct {
	Query  string       `json:"query"`
	Config searchConfig `json:"config"`
}

type searchResponse struct {
	Chunks []Chunk `json:"chunks"`
}

// Search implements Searcher.
func (c *Client) Search(ctx context.Context, query string, folderIDs []string, topK int) ([]Chunk, error) {
	if topK <= 0 {
		topK = 5
	}
	rerank := topK
	if rerank > 5 {
		rerank = 5
	}

	body, err := json.Marshal(searchRequest{
		Query: query,
		Config: searchConfig{
			TopK:              topK,
			RerankTopN:        rerank,
			UseQueryExpansion: true,
			UseHyde:           true,
			UseReranking:      true,
			FolderIDs:         folderIDs,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal search request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.serviceKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.serviceKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("retrieval request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.logger.Warn("retrieval service error", "status", resp.StatusCode, "body", string(data))
		return nil, fmt.Errorf("retrieval service returned status %d", resp.StatusCode)
	}

	var parsed searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode retrieval response: %w", err)
	}
	return parsed.Chunks, nil
}
