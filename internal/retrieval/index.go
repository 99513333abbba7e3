package retrieval

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// TimeoutIndexQuery bounds a single similarity search against the external
// vector index.
const TimeoutIndexQuery = 10 * time.Second

// ErrIndexUnavailable is wrapped when the vector index cannot be reached,
// answers with an error status, or times out. The caller decides whether
// this degrades to a non-grounded result or surfaces as INDEX_MISSING.
var ErrIndexUnavailable = errors.New("vector index unavailable")

// Hit is one (chunk, similarity, metadata) tuple returned by the index.
// Distance is the raw vector distance: lower is closer.
type Hit struct {
	ID          string    `json:"id"`
	Text        string    `json:"text"`
	Distance    float64   `json:"distance"`
	Title       string    `json:"title"`
	Org         string    `json:"org"`
	DocType     string    `json:"doc_type"`
	SourceURL   string    `json:"source_url"`
	Tags        []string  `json:"tags"`
	LastUpdated time.Time `json:"last_updated"`
}

// Index is the external similarity-search collaborator.
type Index interface {
	// Query returns the top-k nearest chunks for the expanded query text.
	Query(ctx context.Context, query string, k int) ([]Hit, error)
}

// HTTPIndex talks to the vector index service over HTTP.
type HTTPIndex struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPIndex creates an index client pointing at the given base URL.
func NewHTTPIndex(baseURL string) *HTTPIndex {
	return &HTTPIndex{
		baseURL:    baseURL,
		httpClient: &http.Client{},
	}
}

type indexQueryRequest struct {
	Query string `json:"query"`
	K     int    `json:"k"`
}

type indexQueryResponse struct {
	Hits []Hit `json:"hits"`
}

// Query posts the expanded query to the index service. All transport and
// server-side failures are wrapped as ErrIndexUnavailable.
func (ix *HTTPIndex) Query(ctx context.Context, query string, k int) ([]Hit, error) {
	ctx, cancel := context.WithTimeout(ctx, TimeoutIndexQuery)
	defer cancel()

	body, err := json.Marshal(indexQueryRequest{Query: query, K: k})
	if err != nil {
		return nil, fmt.Errorf("marshalling index query: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", ix.baseURL+"/v1/query", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating index request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := ix.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("index query: %v: %w", err, ErrIndexUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("index query: status %d: %w", resp.StatusCode, ErrIndexUnavailable)
	}

	var apiResp indexQueryResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("decoding index response: %v: %w", err, ErrIndexUnavailable)
	}
	return apiResp.Hits, nil
}

// CheckHealth reports whether the index service answers its health endpoint.
func (ix *HTTPIndex) CheckHealth(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, "GET", ix.baseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := ix.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
