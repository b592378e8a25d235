// Package retrieve holds the three context sources the pipeline fans out to:
// the structured store, the semantic document index, and the external
// research feed.
package retrieve

import (
	"context"

	"github.com/sells-group/insight-cli/internal/model"
)

// StructuredExecutor runs validated read-only plans against the business
// database and exposes its catalog for analysis.
type StructuredExecutor interface {
	// Introspect reads the raw table catalog: names, columns, declared
	// types, and constraint metadata where the engine exposes it.
	Introspect(ctx context.Context) ([]model.Table, error)

	// Execute runs a validated plan and returns its rows. Implementations
	// re-check the statement before touching the database.
	Execute(ctx context.Context, plan model.QueryPlan) ([]model.Row, error)

	// Sample returns up to limit rows from a table, for degraded answers
	// when no plan can be built.
	Sample(ctx context.Context, table string, limit int) ([]model.Row, error)

	Close()
}

// SemanticSearcher retrieves document fragments ranked by similarity to the
// question.
type SemanticSearcher interface {
	Search(ctx context.Context, query string, k int) ([]model.ContextFragment, error)
}

// Researcher queries the external research feed for cited findings.
type Researcher interface {
	Research(ctx context.Context, query string, maxResults int) ([]model.ContextFragment, error)
}
