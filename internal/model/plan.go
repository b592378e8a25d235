package model

// QueryPlan is a validated, parameterized read-only query against one table.
// A plan is never executed unless Validated is true.
type QueryPlan struct {
	Role       TableRole `json:"role"`
	Table      string    `json:"table"`
	SQL        string    `json:"sql"`
	Params     []any     `json:"params,omitempty"`
	Columns    []string  `json:"columns"` // resolved column names embedded in SQL
	Confidence float64   `json:"confidence"`
	Degraded   bool      `json:"degraded"` // built from a secondary/fallback column choice
	Validated  bool      `json:"validated"`
}

// Row is one structured result row, opaque to the retrieval core.
type Row map[string]any
