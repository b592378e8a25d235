// Package pipeline wires the full question-answering flow: introspect,
// analyze, classify, plan, gather, and fall back when the preferred path
// cannot answer.
package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/insight-cli/internal/aggregate"
	"github.com/sells-group/insight-cli/internal/fallback"
	"github.com/sells-group/insight-cli/internal/intent"
	"github.com/sells-group/insight-cli/internal/model"
	"github.com/sells-group/insight-cli/internal/planner"
	"github.com/sells-group/insight-cli/internal/retrieve"
)

// Pipeline orchestrates one question end to end.
type Pipeline struct {
	exec       retrieve.StructuredExecutor
	classifier *intent.Classifier
	builder    *planner.Builder
	aggregator *aggregate.Aggregator
	controller *fallback.Controller
}

// New creates a Pipeline with all dependencies.
func New(
	exec retrieve.StructuredExecutor,
	classifier *intent.Classifier,
	builder *planner.Builder,
	aggregator *aggregate.Aggregator,
	controller *fallback.Controller,
) *Pipeline {
	return &Pipeline{
		exec:       exec,
		classifier: classifier,
		builder:    builder,
		aggregator: aggregator,
		controller: controller,
	}
}

// Run answers a single question. A degraded answer is still an answer: Run
// fails only when the schema cannot be detected or every last-resort path
// is exhausted.
func (p *Pipeline) Run(ctx context.Context, question string, priorTurns ...string) (*model.Response, error) {
	started := time.Now()
	req := model.NewRequest(question, priorTurns...)
	log := zap.L().With(zap.String("request_id", req.ID))
	log.Info("pipeline: starting", zap.String("question", question))

	tables, err := p.exec.Introspect(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: introspect")
	}

	desc, err := p.controller.Descriptor(tables)
	if err != nil {
		return nil, err
	}
	req.Fingerprint = desc.Fingerprint

	resp := &model.Response{
		RequestID:   req.ID,
		Question:    question,
		Fingerprint: desc.Fingerprint,
	}

	resp.Intent, err = p.classifier.Classify(ctx, req)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: classify")
	}
	if resp.Intent.NeedsClarification {
		log.Info("pipeline: question needs clarification",
			zap.String("reason", resp.Intent.ClarifyReason),
		)
		resp.Elapsed = time.Since(started)
		return resp, nil
	}

	resp.Plans, err = p.builder.Build(resp.Intent, desc)
	if err != nil && !errors.Is(err, planner.ErrBuildFailure) {
		return nil, eris.Wrap(err, "pipeline: build plans")
	}
	if errors.Is(err, planner.ErrBuildFailure) {
		// The other two sources can still answer.
		log.Warn("pipeline: no structured plan, relying on other sources")
	}

	agg := p.aggregator.Gather(ctx, req, resp.Intent, resp.Plans)
	agg.Tier = fallback.Tier(desc)

	if fallback.Exhausted(agg) {
		log.Warn("pipeline: all sources exhausted, recovering")
		agg, err = p.controller.Recover(ctx, desc, agg)
		if err != nil {
			resp.Context = agg
			resp.Elapsed = time.Since(started)
			return resp, err
		}
	}

	resp.Context = agg
	resp.Elapsed = time.Since(started)
	log.Info("pipeline: finished",
		zap.Int("fragments", len(agg.Fragments)),
		zap.Int("tier", agg.Tier),
		zap.Bool("degraded", agg.Degraded),
		zap.Duration("elapsed", resp.Elapsed),
	)
	return resp, nil
}
