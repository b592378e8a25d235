package model

// Source identifies which retrieval path produced a fragment.
type Source string

const (
	SourceStructured Source = "structured"
	SourceSemantic   Source = "semantic"
	SourceExternal   Source = "external"
)

// SourceStatus records how a retrieval path fared within one request.
type SourceStatus string

const (
	StatusSucceeded      SourceStatus = "succeeded"
	StatusPartialTimeout SourceStatus = "partial_timeout"
	StatusFailed         SourceStatus = "failed"
	StatusSkipped        SourceStatus = "skipped"
)

// ContextFragment is one retrieved unit of context from a single source.
// Payload is opaque to the core; Citation is human-readable attribution.
type ContextFragment struct {
	Source     Source  `json:"source"`
	Key        string  `json:"key"` // identity for dedup within a source
	Payload    any     `json:"payload"`
	Relevance  float64 `json:"relevance"`
	Confidence float64 `json:"confidence"`
	Citation   string  `json:"citation"`
}

// AggregatedContext is the merged, budgeted, deduplicated bundle handed to
// the downstream answer generator.
type AggregatedContext struct {
	Fragments      []ContextFragment       `json:"fragments"`
	SourceStatus   map[Source]SourceStatus `json:"source_status"`
	Tier           int                     `json:"tier"`
	Degraded       bool                    `json:"degraded"`
	DegradedReason string                  `json:"degraded_reason,omitempty"`
}

// CountBySource returns how many fragments each source contributed.
func (a *AggregatedContext) CountBySource() map[Source]int {
	counts := make(map[Source]int)
	for _, f := range a.Fragments {
		counts[f.Source]++
	}
	return counts
}
