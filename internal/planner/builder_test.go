package planner

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/insight-cli/internal/model"
	"github.com/sells-group/insight-cli/internal/schema"
)

func productSchema() *model.SchemaDescriptor {
	d := schema.Analyze([]model.Table{
		{
			Name: "products",
			Columns: []model.Column{
				{Name: "id", DeclaredType: "INTEGER", IsPrimaryKey: true},
				{Name: "name", DeclaredType: "VARCHAR(255)"},
				{Name: "price", DeclaredType: "DECIMAL(10,2)"},
				{Name: "category_id", DeclaredType: "INTEGER", IsForeignKey: true, References: "categories.id"},
			},
		},
		{
			Name: "orders",
			Columns: []model.Column{
				{Name: "id", DeclaredType: "INTEGER", IsPrimaryKey: true},
				{Name: "order_date", DeclaredType: "DATETIME"},
				{Name: "total_amount", DeclaredType: "NUMERIC"},
			},
		},
	})
	return &d
}

func TestBuild_RankByPriceReferencesPriceColumn(t *testing.T) {
	b := NewBuilder(25)
	intent := model.QueryIntent{
		Type:          model.IntentDataQuery,
		RequiredRoles: []model.TableRole{model.RoleProduct},
		Metric:        "price",
	}

	plans, err := b.Build(intent, productSchema())
	require.NoError(t, err)
	require.NotEmpty(t, plans)

	primary := plans[0]
	assert.Equal(t, "products", primary.Table)
	assert.Contains(t, primary.SQL, "ORDER BY price DESC")
	assert.Contains(t, primary.Columns, "price")
	assert.False(t, primary.Degraded)
	assert.True(t, primary.Validated)

	// The plan never references columns outside the analyzed schema.
	table := productSchema().TableByName("products")
	for _, col := range primary.Columns {
		assert.True(t, table.HasColumn(col), col)
	}
}

func TestBuild_AlternatesAreDegraded(t *testing.T) {
	d := schema.Analyze([]model.Table{{
		Name: "products",
		Columns: []model.Column{
			{Name: "id", DeclaredType: "INTEGER"},
			{Name: "name", DeclaredType: "VARCHAR(80)"},
			{Name: "price", DeclaredType: "DECIMAL"},
			{Name: "list_price", DeclaredType: "DECIMAL"},
		},
	}})

	b := NewBuilder(10)
	intent := model.QueryIntent{
		Type:          model.IntentDataQuery,
		RequiredRoles: []model.TableRole{model.RoleProduct},
		Metric:        "revenue",
	}
	plans, err := b.Build(intent, &d)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(plans), 2)

	assert.False(t, plans[0].Degraded)
	assert.True(t, plans[1].Degraded)
	assert.Less(t, plans[1].Confidence, plans[0].Confidence)
}

func TestBuild_EntityTermIsBoundParameter(t *testing.T) {
	b := NewBuilder(10)
	intent := model.QueryIntent{
		Type:          model.IntentDataQuery,
		RequiredRoles: []model.TableRole{model.RoleProduct},
		Entities:      map[model.TableRole]string{model.RoleProduct: "widget'); DROP TABLE products"},
	}

	plans, err := b.Build(intent, productSchema())
	require.NoError(t, err)

	p := plans[0]
	// The hostile term only ever appears as a bound parameter.
	assert.NotContains(t, p.SQL, "DROP")
	assert.Contains(t, p.SQL, "name LIKE $1")
	assert.Contains(t, p.Params[0].(string), "widget")
	assert.True(t, p.Validated)
}

func TestBuild_TimeRangeFiltersDateColumn(t *testing.T) {
	b := NewBuilder(10)
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	intent := model.QueryIntent{
		Type:          model.IntentTrendAnalysis,
		RequiredRoles: []model.TableRole{model.RoleOrder},
		TimeRange:     &model.TimeRange{From: from, To: to},
	}

	plans, err := b.Build(intent, productSchema())
	require.NoError(t, err)

	p := plans[0]
	assert.Equal(t, "orders", p.Table)
	assert.Contains(t, p.SQL, "order_date >=")
	assert.Contains(t, p.Params, from)
	assert.Contains(t, p.Params, to)
}

func TestBuild_MissingRoleEmitsShapePlan(t *testing.T) {
	b := NewBuilder(10)
	intent := model.QueryIntent{
		Type:          model.IntentDataQuery,
		RequiredRoles: []model.TableRole{model.RoleReview},
	}

	plans, err := b.Build(intent, productSchema())
	require.NoError(t, err)
	require.Len(t, plans, 1)

	p := plans[0]
	assert.True(t, p.Degraded)
	assert.InDelta(t, 0.1, p.Confidence, 0.001)
	assert.Equal(t, model.RoleReview, p.Role)
	assert.True(t, strings.HasPrefix(p.SQL, "SELECT "))
	assert.Contains(t, p.SQL, "LIMIT $1")
}

func TestBuild_DropsPlanTrippingKeywordScanWithoutPanic(t *testing.T) {
	// A column literally named "exec" puts a forbidden keyword into the
	// emitted SELECT. The plan must be dropped, not crash the build, and
	// plans for the remaining roles must survive.
	desc := &model.SchemaDescriptor{
		Tables: []model.TableDescriptor{
			{
				Name: "products", Role: model.RoleProduct, Confidence: 0.8,
				Columns: []model.ColumnDescriptor{
					{Name: "exec", Semantic: model.SemanticUnknown},
					{Name: "payload", Semantic: model.SemanticUnknown},
				},
			},
			{
				Name: "orders", Role: model.RoleOrder, Confidence: 0.8,
				Columns: []model.ColumnDescriptor{
					{Name: "id", Semantic: model.SemanticIdentifier, Confidence: 1.0},
					{Name: "order_date", Semantic: model.SemanticDate, Confidence: 0.9},
				},
			},
		},
	}

	b := NewBuilder(10)
	intent := model.QueryIntent{
		Type:          model.IntentDataQuery,
		RequiredRoles: []model.TableRole{model.RoleProduct, model.RoleOrder},
	}

	plans, err := b.Build(intent, desc)
	require.NoError(t, err)
	require.Len(t, plans, 1)
	assert.Equal(t, "orders", plans[0].Table)
	assert.True(t, plans[0].Validated)
}

func TestBuild_AllPlansRejectedFails(t *testing.T) {
	desc := &model.SchemaDescriptor{
		Tables: []model.TableDescriptor{{
			Name: "jobs", Role: model.RoleOrder, Confidence: 0.5,
			Columns: []model.ColumnDescriptor{
				{Name: "merge", Semantic: model.SemanticUnknown},
			},
		}},
	}

	b := NewBuilder(10)
	_, err := b.Build(model.QueryIntent{RequiredRoles: []model.TableRole{model.RoleOrder}}, desc)
	assert.ErrorIs(t, err, ErrBuildFailure)
}

func TestBuild_EmptySchemaFails(t *testing.T) {
	b := NewBuilder(10)
	empty := &model.SchemaDescriptor{}
	_, err := b.Build(model.QueryIntent{RequiredRoles: []model.TableRole{model.RoleProduct}}, empty)
	assert.ErrorIs(t, err, ErrBuildFailure)
}

func TestBuild_EveryPlanHasLimit(t *testing.T) {
	b := NewBuilder(7)
	intent := model.QueryIntent{
		Type:          model.IntentDataQuery,
		RequiredRoles: []model.TableRole{model.RoleProduct, model.RoleOrder},
		Metric:        "price",
	}
	plans, err := b.Build(intent, productSchema())
	require.NoError(t, err)
	for _, p := range plans {
		assert.Contains(t, p.SQL, "LIMIT $", p.SQL)
		assert.Equal(t, 7, p.Params[len(p.Params)-1])
	}
}
