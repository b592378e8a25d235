// Package jina provides a client for the Jina AI search API, used as the
// semantic document index collaborator.
package jina

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/insight-cli/internal/resilience"
)

const defaultBaseURL = "https://s.jina.ai"

// Client defines the semantic search operations.
type Client interface {
	// Search returns the k most relevant indexed documents for the query.
	Search(ctx context.Context, query string, k int, opts ...SearchOption) (*SearchResponse, error)
}

// SearchResponse is the parsed search API response.
type SearchResponse struct {
	Code int            `json:"code"`
	Data []SearchResult `json:"data"`
}

// SearchResult represents a single scored document hit.
type SearchResult struct {
	DocumentID string  `json:"document_id"`
	Title      string  `json:"title"`
	Score      float64 `json:"score"`
	Snippet    string  `json:"snippet"`
}

// SearchOption configures a search request.
type SearchOption func(*searchBody)

// WithFilter restricts results to documents whose metadata matches.
func WithFilter(filter map[string]string) SearchOption {
	return func(b *searchBody) {
		b.Filter = filter
	}
}

type searchBody struct {
	Query  string            `json:"q"`
	TopK   int               `json:"top_k"`
	Filter map[string]string `json:"filter,omitempty"`
}

// Option configures the Jina client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRetry overrides the retry bounds for transient failures.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(c *httpClient) {
		c.retry = cfg
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
	retry   resilience.RetryConfig
}

// NewClient creates a new Jina search client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		retry: resilience.DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.retry.OnRetry == nil {
		c.retry.OnRetry = resilience.RetryLogger("semantic", "search")
	}
	return c
}

type apiResult struct {
	body   []byte
	status int
}

// doOnce performs one round trip. Transport errors and retryable statuses
// come back marked as source outages so the retry loop knows to try again.
func (c *httpClient) doOnce(ctx context.Context, raw []byte) (apiResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/search", bytes.NewReader(raw))
	if err != nil {
		return apiResult{}, eris.Wrap(err, "jina: create request")
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return apiResult{}, resilience.Unavailable("semantic", 0, err)
	}

	body, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return apiResult{}, eris.Wrap(readErr, "jina: read response body")
	}

	if resilience.IsTransientHTTPStatus(resp.StatusCode) {
		return apiResult{}, resilience.Unavailable("semantic", resp.StatusCode,
			eris.Errorf("jina: %s", string(body)))
	}

	return apiResult{body: body, status: resp.StatusCode}, nil
}

func (c *httpClient) Search(ctx context.Context, query string, k int, opts ...SearchOption) (*SearchResponse, error) {
	if k <= 0 {
		k = 5
	}
	payload := searchBody{Query: query, TopK: k}
	for _, opt := range opts {
		opt(&payload)
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, eris.Wrap(err, "jina: marshal request")
	}

	res, err := resilience.DoVal(ctx, c.retry, func(ctx context.Context) (apiResult, error) {
		return c.doOnce(ctx, raw)
	})
	if err != nil {
		return nil, eris.Wrap(err, "jina: request failed")
	}
	if res.status != http.StatusOK {
		return nil, eris.Errorf("jina: unexpected status %d: %s", res.status, string(res.body))
	}

	var result SearchResponse
	if err := json.Unmarshal(res.body, &result); err != nil {
		return nil, eris.Wrap(err, "jina: unmarshal response")
	}

	return &result, nil
}
