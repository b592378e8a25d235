package jina

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/insight-cli/internal/resilience"
)

func fastRetry(attempts int) Option {
	return WithRetry(resilience.RetryConfig{
		MaxAttempts:    attempts,
		InitialBackoff: time.Millisecond,
		JitterFraction: -1,
	})
}

func TestSearch_SendsQueryAndFilter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))

		var body searchBody
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "top products", body.Query)
		assert.Equal(t, 3, body.TopK)
		assert.Equal(t, "acme", body.Filter["tenant"])

		_ = json.NewEncoder(w).Encode(SearchResponse{
			Code: 200,
			Data: []SearchResult{
				{DocumentID: "doc-1", Title: "Q2 sales recap", Score: 0.91, Snippet: "..."},
			},
		})
	}))
	defer srv.Close()

	c := NewClient("key", WithBaseURL(srv.URL))
	resp, err := c.Search(context.Background(), "top products", 3,
		WithFilter(map[string]string{"tenant": "acme"}))
	require.NoError(t, err)
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "doc-1", resp.Data[0].DocumentID)
	assert.InDelta(t, 0.91, resp.Data[0].Score, 0.001)
}

func TestSearch_RetriesTransientStatus(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "upstream hiccup", http.StatusBadGateway)
			return
		}
		_ = json.NewEncoder(w).Encode(SearchResponse{Code: 200})
	}))
	defer srv.Close()

	c := NewClient("key", WithBaseURL(srv.URL), fastRetry(3))
	_, err := c.Search(context.Background(), "q", 1)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestSearch_GivesUpOnClientError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad request", http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewClient("key", WithBaseURL(srv.URL), fastRetry(3))
	_, err := c.Search(context.Background(), "q", 1)
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestSearch_ExhaustedRetriesSurfaceOutage(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "down for maintenance", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient("key", WithBaseURL(srv.URL), fastRetry(2))
	_, err := c.Search(context.Background(), "q", 1)
	require.Error(t, err)
	assert.Equal(t, int32(2), calls.Load())

	var ue *resilience.UnavailableError
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, "semantic", ue.Source)
	assert.Equal(t, http.StatusServiceUnavailable, ue.StatusCode)
}
