package retrieve

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/insight-cli/internal/model"
	"github.com/sells-group/insight-cli/internal/resilience"
	"github.com/sells-group/insight-cli/pkg/jina"
)

// SemanticIndex adapts the document index client to the SemanticSearcher
// interface, behind a circuit breaker.
type SemanticIndex struct {
	client  jina.Client
	breaker *resilience.CircuitBreaker
}

// NewSemanticIndex wraps the given index client. breaker may be nil.
func NewSemanticIndex(client jina.Client, breaker *resilience.CircuitBreaker) *SemanticIndex {
	if breaker == nil {
		breaker = resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig())
	}
	return &SemanticIndex{client: client, breaker: breaker}
}

func (s *SemanticIndex) Search(ctx context.Context, query string, k int) ([]model.ContextFragment, error) {
	resp, err := resilience.ExecuteVal(ctx, s.breaker, func(ctx context.Context) (*jina.SearchResponse, error) {
		return s.client.Search(ctx, query, k)
	})
	if err != nil {
		return nil, eris.Wrap(err, "semantic: search")
	}

	frags := make([]model.ContextFragment, 0, len(resp.Data))
	for _, r := range resp.Data {
		frags = append(frags, model.ContextFragment{
			Source:     model.SourceSemantic,
			Key:        r.DocumentID,
			Payload:    r.Snippet,
			Relevance:  r.Score,
			Confidence: r.Score,
			Citation:   r.Title,
		})
	}
	zap.L().Debug("semantic search complete",
		zap.String("query", query),
		zap.Int("results", len(frags)),
	)
	return frags, nil
}
