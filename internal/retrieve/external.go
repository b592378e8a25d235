package retrieve

import (
	"context"
	"net/url"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/time/rate"

	"github.com/sells-group/insight-cli/internal/model"
	"github.com/sells-group/insight-cli/internal/resilience"
	"github.com/sells-group/insight-cli/pkg/perplexity"
)

// externalConfidence is fixed per result: external findings carry citations
// but no similarity score.
const externalConfidence = 0.6

// ExternalResearcher adapts the research feed client to the Researcher
// interface, rate limited and behind a circuit breaker.
type ExternalResearcher struct {
	client  perplexity.Client
	limiter *rate.Limiter
	breaker *resilience.CircuitBreaker
	titler  cases.Caser
}

// NewExternalResearcher wraps the given feed client. limiter and breaker may
// be nil, in which case defaults apply (1 req/s, burst 3).
func NewExternalResearcher(client perplexity.Client, limiter *rate.Limiter, breaker *resilience.CircuitBreaker) *ExternalResearcher {
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Limit(1), 3)
	}
	if breaker == nil {
		breaker = resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig())
	}
	return &ExternalResearcher{
		client:  client,
		limiter: limiter,
		breaker: breaker,
		titler:  cases.Title(language.English),
	}
}

func (r *ExternalResearcher) Research(ctx context.Context, query string, maxResults int) ([]model.ContextFragment, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "external: rate limit wait")
	}

	results, err := resilience.ExecuteVal(ctx, r.breaker, func(ctx context.Context) ([]perplexity.ResearchResult, error) {
		return r.client.Research(ctx, query, maxResults)
	})
	if err != nil {
		return nil, eris.Wrap(err, "external: research")
	}

	frags := make([]model.ContextFragment, 0, len(results))
	for i, res := range results {
		// Earlier results rank higher; the feed returns them ordered.
		relevance := 1.0 - float64(i)*0.1
		if relevance < 0.1 {
			relevance = 0.1
		}
		frags = append(frags, model.ContextFragment{
			Source:     model.SourceExternal,
			Key:        res.URL,
			Payload:    res.Snippet,
			Relevance:  relevance,
			Confidence: externalConfidence,
			Citation:   r.citation(res),
		})
	}
	zap.L().Debug("external research complete",
		zap.String("query", query),
		zap.Int("results", len(frags)),
	)
	return frags, nil
}

// citation builds a human-readable attribution line: the result title when
// present, otherwise a title-cased rendering of the source host.
func (r *ExternalResearcher) citation(res perplexity.ResearchResult) string {
	title := strings.TrimSpace(res.Title)
	if title == "" {
		title = r.humanizeURL(res.URL)
	}
	if res.PublishedDate != "" {
		return title + " (" + res.PublishedDate + ")"
	}
	return title
}

func (r *ExternalResearcher) humanizeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	host := strings.TrimPrefix(u.Host, "www.")
	if i := strings.LastIndex(host, "."); i > 0 {
		host = host[:i]
	}
	return r.titler.String(strings.ReplaceAll(host, "-", " "))
}
