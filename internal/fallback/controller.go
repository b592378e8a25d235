// Package fallback keeps the pipeline answering when its preferred path
// breaks. Escalation is one-directional within a request: full analysis,
// then loose schema rules, then a bounded raw sample.
package fallback

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/insight-cli/internal/model"
	"github.com/sells-group/insight-cli/internal/retrieve"
	"github.com/sells-group/insight-cli/internal/schema"
)

// Tiers, in escalation order.
const (
	TierFull   = 0 // full analysis and retrieval
	TierLoose  = 1 // loose schema rules
	TierSample = 2 // bounded raw sample or empty context
)

// defaultSampleLimit bounds the rows returned by a last-resort sample.
const defaultSampleLimit = 5

var (
	// ErrSchemaDetection means introspection produced no tables at all.
	ErrSchemaDetection = eris.New("fallback: schema detection failed, no tables found")

	// ErrTotalFailure means every retrieval path failed and no sample could
	// be read either.
	ErrTotalFailure = eris.New("fallback: all retrieval paths failed")
)

// Controller owns tier escalation for schema derivation and for total
// retrieval failure.
type Controller struct {
	cache       *schema.Cache
	exec        retrieve.StructuredExecutor
	sampleLimit int
}

// NewController creates a Controller over the shared descriptor cache.
func NewController(cache *schema.Cache, exec retrieve.StructuredExecutor) *Controller {
	return &Controller{cache: cache, exec: exec, sampleLimit: defaultSampleLimit}
}

// Descriptor resolves the schema descriptor for an introspection snapshot.
// When strict analysis assigns no role to any table, it escalates to the
// loose pass; either result is cached under the snapshot's fingerprint, so
// a schema that needed the loose pass once keeps its derived descriptor
// until the schema actually changes.
func (c *Controller) Descriptor(tables []model.Table) (*model.SchemaDescriptor, error) {
	if len(tables) == 0 {
		return nil, ErrSchemaDetection
	}

	desc := c.cache.Resolve(tables, func(tables []model.Table) *model.SchemaDescriptor {
		d := schema.Analyze(tables)
		if hasUsableRole(&d) {
			return &d
		}

		zap.L().Warn("no table roles detected, escalating to loose schema rules",
			zap.String("fingerprint", d.Fingerprint),
			zap.Int("tables", len(tables)),
		)
		loose := schema.LooseAnalyze(tables)
		return &loose
	})
	return desc, nil
}

// Tier reports which tier a descriptor was derived at.
func Tier(desc *model.SchemaDescriptor) int {
	if desc != nil && desc.DerivedViaTier1 {
		return TierLoose
	}
	return TierFull
}

// Exhausted reports whether a gathered bundle represents total retrieval
// failure: nothing retrieved and no source succeeded.
func Exhausted(agg *model.AggregatedContext) bool {
	if agg == nil {
		return true
	}
	if len(agg.Fragments) > 0 {
		return false
	}
	for _, status := range agg.SourceStatus {
		if status == model.StatusSucceeded {
			return false
		}
	}
	return true
}

// Recover produces the last-resort bundle after total retrieval failure: a
// bounded raw sample from the most plausible table, or an empty degraded
// bundle when even that is impossible. The returned bundle is always
// non-nil and always carries a machine-readable reason.
func (c *Controller) Recover(ctx context.Context, desc *model.SchemaDescriptor, agg *model.AggregatedContext) (*model.AggregatedContext, error) {
	out := &model.AggregatedContext{
		SourceStatus:   map[model.Source]model.SourceStatus{},
		Tier:           TierSample,
		Degraded:       true,
		DegradedReason: "all_sources_failed",
	}
	if agg != nil {
		out.SourceStatus = agg.SourceStatus
	}

	table := sampleCandidate(desc)
	if table == "" || c.exec == nil {
		out.DegradedReason = "all_sources_failed_no_sample"
		return out, ErrTotalFailure
	}

	rows, err := c.exec.Sample(ctx, table, c.sampleLimit)
	if err != nil || len(rows) == 0 {
		zap.L().Error("last-resort sample failed",
			zap.String("table", table),
			zap.Error(err),
		)
		out.DegradedReason = "all_sources_failed_no_sample"
		return out, ErrTotalFailure
	}

	zap.L().Warn("answering from bounded raw sample",
		zap.String("table", table),
		zap.Int("rows", len(rows)),
	)
	for i, row := range rows {
		out.Fragments = append(out.Fragments, model.ContextFragment{
			Source:     model.SourceStructured,
			Key:        sampleKey(table, i),
			Payload:    row,
			Relevance:  0.1,
			Confidence: 0.1,
			Citation:   table + " (raw sample)",
		})
	}
	out.DegradedReason = "all_sources_failed_sample_returned"
	return out, nil
}

// sampleCandidate picks the table to sample: the highest-priority role
// holder, falling back to the first table of the descriptor.
func sampleCandidate(desc *model.SchemaDescriptor) string {
	if desc == nil || len(desc.Tables) == 0 {
		return ""
	}
	for _, role := range model.RolePriority {
		if t := desc.TableByRole(role); t != nil {
			return t.Name
		}
	}
	return desc.Tables[0].Name
}

func sampleKey(table string, i int) string {
	return fmt.Sprintf("%s:sample:%d", table, i)
}

func hasUsableRole(desc *model.SchemaDescriptor) bool {
	for _, t := range desc.Tables {
		if t.Role != model.RoleUnknown {
			return true
		}
	}
	return false
}
