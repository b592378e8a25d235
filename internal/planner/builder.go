// Package planner turns a classified intent plus a semantic schema
// description into validated, parameterized, read-only query plans. It never
// interpolates external strings into SQL: every identifier is checked
// against the analyzer's descriptor and every value travels as a bound
// parameter.
package planner

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/insight-cli/internal/model"
)

// ErrBuildFailure means no table satisfied any required role, even after
// degradation. The fallback controller treats this as a tier trigger.
var ErrBuildFailure = eris.New("planner: no table satisfies any required role")

// maxCandidatesPerRole bounds how many alternate column choices are emitted
// per role. Each alternate carries a lower confidence and the degraded flag.
const maxCandidatesPerRole = 3

// Builder produces query plans against an analyzed schema.
type Builder struct {
	maxRows int
}

// NewBuilder creates a Builder. maxRows caps every emitted plan's LIMIT.
func NewBuilder(maxRows int) *Builder {
	if maxRows <= 0 {
		maxRows = 50
	}
	return &Builder{maxRows: maxRows}
}

// Build emits one or more validated plans for the intent. Plans for the same
// role are ordered best-first: callers try the next one only when the
// previous fails at runtime (e.g. a column was renamed since analysis).
func (b *Builder) Build(intent model.QueryIntent, desc *model.SchemaDescriptor) ([]model.QueryPlan, error) {
	roles := intent.RequiredRoles
	if len(roles) == 0 {
		roles = []model.TableRole{b.defaultRole(desc)}
	}

	var plans []model.QueryPlan
	for _, role := range roles {
		table := desc.TableByRole(role)
		if table == nil {
			// No table carries this role: emit a minimally-shaped plan
			// against the best table we have rather than failing outright.
			if p, ok := b.shapePlan(role, desc); ok {
				plans = append(plans, p)
			}
			continue
		}
		plans = append(plans, b.plansForTable(intent, role, table)...)
	}

	if len(plans) == 0 {
		return nil, ErrBuildFailure
	}

	valid := plans[:0]
	for i := range plans {
		if err := Validate(&plans[i], desc); err != nil {
			// By construction this should not happen; dropping the plan is
			// the defense-in-depth response.
			zap.L().Error("planner: emitted plan failed validation",
				zap.String("table", plans[i].Table),
				zap.Error(err),
			)
			continue
		}
		valid = append(valid, plans[i])
	}
	plans = valid
	if len(plans) == 0 {
		return nil, ErrBuildFailure
	}

	return plans, nil
}

// plansForTable emits the primary plan plus degraded alternates that walk
// the metric column candidates in descending confidence order.
func (b *Builder) plansForTable(intent model.QueryIntent, role model.TableRole, table *model.TableDescriptor) []model.QueryPlan {
	metricCols := b.metricCandidates(intent, table)

	if len(metricCols) == 0 {
		p := b.buildPlan(intent, role, table, nil, table.Confidence, false)
		return []model.QueryPlan{p}
	}

	n := len(metricCols)
	if n > maxCandidatesPerRole {
		n = maxCandidatesPerRole
	}

	plans := make([]model.QueryPlan, 0, n)
	for i := 0; i < n; i++ {
		conf := table.Confidence * metricCols[i].Confidence
		degraded := i > 0
		if degraded {
			// Each retry down the candidate list costs confidence.
			conf *= 0.8
		}
		plans = append(plans, b.buildPlan(intent, role, table, &metricCols[i], conf, degraded))
	}
	return plans
}

// metricCandidates resolves the column the intent's metric refers to.
// "revenue", "price", "cost" and friends all want a Price-typed column.
func (b *Builder) metricCandidates(intent model.QueryIntent, table *model.TableDescriptor) []model.ColumnDescriptor {
	if intent.Metric == "" && intent.Type != model.IntentTrendAnalysis {
		return nil
	}
	return table.ColumnsBySemantic(model.SemanticPrice)
}

// buildPlan assembles one SELECT. All identifiers come from the descriptor;
// all values are bound parameters.
func (b *Builder) buildPlan(intent model.QueryIntent, role model.TableRole, table *model.TableDescriptor, metric *model.ColumnDescriptor, confidence float64, degraded bool) model.QueryPlan {
	cols := b.selectColumns(table, metric)

	var (
		sql    strings.Builder
		params []any
		wheres []string
	)
	sql.WriteString("SELECT ")
	sql.WriteString(strings.Join(cols, ", "))
	sql.WriteString(" FROM ")
	sql.WriteString(table.Name)

	// Entity filter: literal term bound against the best Name column.
	if term, ok := intent.Entities[role]; ok && term != "" {
		if names := table.ColumnsBySemantic(model.SemanticName); len(names) > 0 {
			params = append(params, "%"+term+"%")
			wheres = append(wheres, fmt.Sprintf("%s LIKE $%d", names[0].Name, len(params)))
		}
	}

	// Time filter: bound against the best Date column.
	if intent.TimeRange != nil {
		if dates := table.ColumnsBySemantic(model.SemanticDate); len(dates) > 0 {
			params = append(params, intent.TimeRange.From)
			wheres = append(wheres, fmt.Sprintf("%s >= $%d", dates[0].Name, len(params)))
			params = append(params, intent.TimeRange.To)
			wheres = append(wheres, fmt.Sprintf("%s < $%d", dates[0].Name, len(params)))
		}
	}

	if len(wheres) > 0 {
		sql.WriteString(" WHERE ")
		sql.WriteString(strings.Join(wheres, " AND "))
	}

	if metric != nil {
		sql.WriteString(" ORDER BY ")
		sql.WriteString(metric.Name)
		sql.WriteString(" DESC")
	}

	params = append(params, b.maxRows)
	fmt.Fprintf(&sql, " LIMIT $%d", len(params))

	return model.QueryPlan{
		Role:       role,
		Table:      table.Name,
		SQL:        sql.String(),
		Params:     params,
		Columns:    cols,
		Confidence: clamp01(confidence),
		Degraded:   degraded,
	}
}

// selectColumns picks the identifying and informative columns for the
// select list, always including the metric column when one was resolved.
func (b *Builder) selectColumns(table *model.TableDescriptor, metric *model.ColumnDescriptor) []string {
	var cols []string
	seen := make(map[string]bool)
	add := func(name string) {
		if name != "" && !seen[name] {
			seen[name] = true
			cols = append(cols, name)
		}
	}

	for _, sem := range []model.SemanticType{model.SemanticIdentifier, model.SemanticName} {
		if cands := table.ColumnsBySemantic(sem); len(cands) > 0 {
			add(cands[0].Name)
		}
	}
	if metric != nil {
		add(metric.Name)
	}
	if dates := table.ColumnsBySemantic(model.SemanticDate); len(dates) > 0 {
		add(dates[0].Name)
	}

	// Bare tables still need something to select.
	if len(cols) == 0 {
		for i, c := range table.Columns {
			if i >= 4 {
				break
			}
			add(c.Name)
		}
	}
	return cols
}

// shapePlan emits the maximally-degraded plan used when no table carries
// the required role: a bounded, unfiltered sample of the best table.
func (b *Builder) shapePlan(role model.TableRole, desc *model.SchemaDescriptor) (model.QueryPlan, bool) {
	var best *model.TableDescriptor
	for i := range desc.Tables {
		t := &desc.Tables[i]
		if len(t.Columns) == 0 {
			continue
		}
		if best == nil || t.Confidence > best.Confidence {
			best = t
		}
	}
	if best == nil {
		return model.QueryPlan{}, false
	}

	cols := b.selectColumns(best, nil)
	sql := fmt.Sprintf("SELECT %s FROM %s LIMIT $1", strings.Join(cols, ", "), best.Name)

	zap.L().Warn("planner: no table for role, emitting shape-only plan",
		zap.String("role", string(role)),
		zap.String("table", best.Name),
	)

	return model.QueryPlan{
		Role:       role,
		Table:      best.Name,
		SQL:        sql,
		Params:     []any{b.maxRows},
		Columns:    cols,
		Confidence: 0.1,
		Degraded:   true,
	}, true
}

// defaultRole picks the role to query when the intent names none, following
// the fixed Product > Customer > Order > Review priority.
func (b *Builder) defaultRole(desc *model.SchemaDescriptor) model.TableRole {
	for _, role := range model.RolePriority {
		if desc.TableByRole(role) != nil {
			return role
		}
	}
	return model.RoleProduct
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
