// Package aggregate fans a classified question out to the three context
// sources, merges what comes back, and hands a single deduplicated bundle
// downstream. Any source may fail or time out without failing the request;
// the bundle records how each source fared.
package aggregate

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/sells-group/insight-cli/internal/model"
	"github.com/sells-group/insight-cli/internal/retrieve"
)

// Config bounds the fan-out.
type Config struct {
	StructuredTimeout time.Duration `yaml:"structured_timeout" mapstructure:"structured_timeout"`
	SemanticTimeout   time.Duration `yaml:"semantic_timeout" mapstructure:"semantic_timeout"`
	ExternalTimeout   time.Duration `yaml:"external_timeout" mapstructure:"external_timeout"`
	FragmentBudget    int           `yaml:"fragment_budget" mapstructure:"fragment_budget"`
	SemanticK         int           `yaml:"semantic_k" mapstructure:"semantic_k"`
	ExternalResults   int           `yaml:"external_results" mapstructure:"external_results"`
}

// DefaultConfig returns the fan-out bounds used when none are configured.
func DefaultConfig() Config {
	return Config{
		StructuredTimeout: 5 * time.Second,
		SemanticTimeout:   3 * time.Second,
		ExternalTimeout:   10 * time.Second,
		FragmentBudget:    12,
		SemanticK:         5,
		ExternalResults:   5,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.StructuredTimeout <= 0 {
		c.StructuredTimeout = d.StructuredTimeout
	}
	if c.SemanticTimeout <= 0 {
		c.SemanticTimeout = d.SemanticTimeout
	}
	if c.ExternalTimeout <= 0 {
		c.ExternalTimeout = d.ExternalTimeout
	}
	if c.FragmentBudget <= 0 {
		c.FragmentBudget = d.FragmentBudget
	}
	if c.SemanticK <= 0 {
		c.SemanticK = d.SemanticK
	}
	if c.ExternalResults <= 0 {
		c.ExternalResults = d.ExternalResults
	}
	return c
}

// Aggregator runs the fan-out. Any of the three sources may be nil, in which
// case it is reported as skipped.
type Aggregator struct {
	exec     retrieve.StructuredExecutor
	semantic retrieve.SemanticSearcher
	research retrieve.Researcher
	cfg      Config
	titler   cases.Caser
}

// New creates an Aggregator over the given sources.
func New(exec retrieve.StructuredExecutor, semantic retrieve.SemanticSearcher, research retrieve.Researcher, cfg Config) *Aggregator {
	return &Aggregator{
		exec:     exec,
		semantic: semantic,
		research: research,
		cfg:      cfg.withDefaults(),
		titler:   cases.Title(language.English),
	}
}

type sourceResult struct {
	frags  []model.ContextFragment
	status model.SourceStatus
	reason string
}

// Gather retrieves context for the request from all applicable sources
// concurrently and merges the results. It never fails because one source
// failed; the returned bundle's SourceStatus says what happened.
func (a *Aggregator) Gather(ctx context.Context, req model.Request, intent model.QueryIntent, plans []model.QueryPlan) *model.AggregatedContext {
	var (
		mu      sync.Mutex
		results = map[model.Source]sourceResult{}
	)
	record := func(src model.Source, res sourceResult) {
		mu.Lock()
		results[src] = res
		mu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		record(model.SourceStructured, a.gatherStructured(gctx, plans))
		return nil
	})
	g.Go(func() error {
		record(model.SourceSemantic, a.gatherSemantic(gctx, req.Question))
		return nil
	})
	g.Go(func() error {
		record(model.SourceExternal, a.gatherExternal(gctx, req.Question, intent))
		return nil
	})
	_ = g.Wait() // goroutines record outcomes, they never return errors

	out := &model.AggregatedContext{
		SourceStatus: make(map[model.Source]model.SourceStatus, len(results)),
	}
	var reasons []string
	var all []model.ContextFragment
	for src, res := range results {
		out.SourceStatus[src] = res.status
		all = append(all, res.frags...)
		if res.reason != "" {
			reasons = append(reasons, res.reason)
		}
		if res.status == model.StatusFailed || res.status == model.StatusPartialTimeout {
			out.Degraded = true
		}
	}
	sort.Strings(reasons)
	out.DegradedReason = strings.Join(reasons, "; ")
	out.Fragments = a.merge(all, intent)

	zap.L().Info("context gathered",
		zap.String("request_id", req.ID),
		zap.Int("fragments", len(out.Fragments)),
		zap.Bool("degraded", out.Degraded),
		zap.Any("source_status", out.SourceStatus),
	)
	return out
}

// gatherStructured tries plans in order until one executes. Later plans are
// fallback candidates; using one marks the result degraded.
func (a *Aggregator) gatherStructured(ctx context.Context, plans []model.QueryPlan) sourceResult {
	if a.exec == nil || len(plans) == 0 {
		return sourceResult{status: model.StatusSkipped}
	}
	ctx, cancel := context.WithTimeout(ctx, a.cfg.StructuredTimeout)
	defer cancel()

	var lastErr error
	for _, plan := range plans {
		rows, err := a.exec.Execute(ctx, plan)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				break
			}
			zap.L().Warn("plan failed, trying next candidate",
				zap.String("table", plan.Table),
				zap.Error(err),
			)
			continue
		}

		res := sourceResult{status: model.StatusSucceeded}
		if plan.Degraded {
			res.reason = "structured: answered by fallback plan"
		}
		for i, row := range rows {
			res.frags = append(res.frags, model.ContextFragment{
				Source:     model.SourceStructured,
				Key:        fmt.Sprintf("%s:%d", plan.Table, i),
				Payload:    row,
				Relevance:  plan.Confidence,
				Confidence: plan.Confidence,
				Citation:   a.tableCitation(plan.Table),
			})
		}
		return res
	}
	return failureResult(ctx, "structured", lastErr)
}

func (a *Aggregator) gatherSemantic(ctx context.Context, question string) sourceResult {
	if a.semantic == nil {
		return sourceResult{status: model.StatusSkipped}
	}
	ctx, cancel := context.WithTimeout(ctx, a.cfg.SemanticTimeout)
	defer cancel()

	frags, err := a.semantic.Search(ctx, question, a.cfg.SemanticK)
	if err != nil {
		return failureResult(ctx, "semantic", err)
	}
	return sourceResult{frags: frags, status: model.StatusSucceeded}
}

func (a *Aggregator) gatherExternal(ctx context.Context, question string, intent model.QueryIntent) sourceResult {
	if a.research == nil || !intent.WantsExternal() {
		return sourceResult{status: model.StatusSkipped}
	}
	ctx, cancel := context.WithTimeout(ctx, a.cfg.ExternalTimeout)
	defer cancel()

	frags, err := a.research.Research(ctx, question, a.cfg.ExternalResults)
	if err != nil {
		return failureResult(ctx, "external", err)
	}
	return sourceResult{frags: frags, status: model.StatusSucceeded}
}

func failureResult(ctx context.Context, source string, err error) sourceResult {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return sourceResult{
			status: model.StatusPartialTimeout,
			reason: source + ": timed out",
		}
	}
	reason := source + ": failed"
	if err != nil {
		zap.L().Warn("source failed", zap.String("source", source), zap.Error(err))
	}
	return sourceResult{status: model.StatusFailed, reason: reason}
}

// sourcePriority ranks sources for the merge order. The primary source
// depends on what the question is after.
func sourcePriority(intent model.QueryIntent) map[model.Source]int {
	switch intent.Type {
	case model.IntentExternalResearch:
		return map[model.Source]int{model.SourceExternal: 0, model.SourceSemantic: 1, model.SourceStructured: 2}
	case model.IntentTrendAnalysis, model.IntentComparison:
		return map[model.Source]int{model.SourceStructured: 0, model.SourceExternal: 1, model.SourceSemantic: 2}
	default:
		return map[model.Source]int{model.SourceStructured: 0, model.SourceSemantic: 1, model.SourceExternal: 2}
	}
}

// merge deduplicates on (source, key) keeping the higher-relevance copy,
// orders by source priority, relevance, then confidence, and truncates to
// the fragment budget.
func (a *Aggregator) merge(frags []model.ContextFragment, intent model.QueryIntent) []model.ContextFragment {
	type identity struct {
		src model.Source
		key string
	}
	best := make(map[identity]model.ContextFragment, len(frags))
	for _, f := range frags {
		id := identity{f.Source, f.Key}
		if prev, ok := best[id]; !ok || f.Relevance > prev.Relevance {
			best[id] = f
		}
	}

	merged := make([]model.ContextFragment, 0, len(best))
	for _, f := range best {
		merged = append(merged, f)
	}

	prio := sourcePriority(intent)
	sort.SliceStable(merged, func(i, j int) bool {
		if prio[merged[i].Source] != prio[merged[j].Source] {
			return prio[merged[i].Source] < prio[merged[j].Source]
		}
		if merged[i].Relevance != merged[j].Relevance {
			return merged[i].Relevance > merged[j].Relevance
		}
		if merged[i].Confidence != merged[j].Confidence {
			return merged[i].Confidence > merged[j].Confidence
		}
		return merged[i].Key < merged[j].Key
	})

	if len(merged) > a.cfg.FragmentBudget {
		merged = merged[:a.cfg.FragmentBudget]
	}
	return merged
}

func (a *Aggregator) tableCitation(table string) string {
	return a.titler.String(strings.ReplaceAll(table, "_", " ")) + " (internal database)"
}
