package main

import (
	"context"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/insight-cli/internal/aggregate"
	"github.com/sells-group/insight-cli/internal/fallback"
	"github.com/sells-group/insight-cli/internal/intent"
	"github.com/sells-group/insight-cli/internal/pipeline"
	"github.com/sells-group/insight-cli/internal/planner"
	"github.com/sells-group/insight-cli/internal/resilience"
	"github.com/sells-group/insight-cli/internal/retrieve"
	"github.com/sells-group/insight-cli/internal/schema"
	anthropicpkg "github.com/sells-group/insight-cli/pkg/anthropic"
	"github.com/sells-group/insight-cli/pkg/jina"
	"github.com/sells-group/insight-cli/pkg/perplexity"
)

// initExecutor opens the configured structured store.
func initExecutor(ctx context.Context) (retrieve.StructuredExecutor, error) {
	switch cfg.Store.Driver {
	case "postgres":
		return retrieve.NewPostgres(ctx, cfg.Store.DatabaseURL, cfg.Store.Pool)
	case "sqlite":
		return retrieve.NewSQLite(cfg.Store.DatabaseURL)
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// buildPipeline wires the full question-answering pipeline. Sources without
// credentials are left out; the aggregator reports them as skipped.
func buildPipeline(exec retrieve.StructuredExecutor) *pipeline.Pipeline {
	breakers := resilience.NewSourceBreakers(
		resilience.FromCircuitConfig(cfg.Resilience.FailureThreshold, cfg.Resilience.ResetTimeoutSecs),
	)
	retryCfg := resilience.FromRetryConfig(
		cfg.Resilience.RetryAttempts,
		cfg.Resilience.RetryBackoffMs,
		cfg.Resilience.RetryMaxWaitMs,
	)

	var semantic retrieve.SemanticSearcher
	if cfg.Jina.Key != "" {
		client := jina.NewClient(cfg.Jina.Key,
			jina.WithBaseURL(cfg.Jina.BaseURL),
			jina.WithRetry(retryCfg),
		)
		semantic = retrieve.NewSemanticIndex(client, breakers.Get("semantic"))
	}

	var research retrieve.Researcher
	if cfg.Perplexity.Key != "" {
		client := perplexity.NewClient(cfg.Perplexity.Key,
			perplexity.WithBaseURL(cfg.Perplexity.BaseURL),
			perplexity.WithModel(cfg.Perplexity.Model),
			perplexity.WithRetry(retryCfg),
		)
		limiter := rate.NewLimiter(rate.Limit(cfg.Perplexity.RateLimit), cfg.Perplexity.Burst)
		research = retrieve.NewExternalResearcher(client, limiter, breakers.Get("external"))
	}

	var llm anthropicpkg.Client
	if cfg.Anthropic.Key != "" {
		llm = anthropicpkg.NewClient(cfg.Anthropic.Key)
	}

	aggregator := aggregate.New(exec, semantic, research, aggregate.Config{
		StructuredTimeout: cfg.Retrieval.StructuredTimeout,
		SemanticTimeout:   cfg.Retrieval.SemanticTimeout,
		ExternalTimeout:   cfg.Retrieval.ExternalTimeout,
		FragmentBudget:    cfg.Retrieval.FragmentBudget,
		SemanticK:         cfg.Retrieval.SemanticK,
		ExternalResults:   cfg.Retrieval.ExternalResults,
	})

	return pipeline.New(
		exec,
		intent.NewClassifier(llm, cfg.Anthropic.Model),
		planner.NewBuilder(cfg.Retrieval.MaxRows),
		aggregator,
		fallback.NewController(schema.NewCache(), exec),
	)
}
