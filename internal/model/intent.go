package model

import "time"

// IntentType classifies what kind of answer the question is after.
type IntentType string

const (
	IntentDataQuery        IntentType = "data_query"
	IntentTrendAnalysis    IntentType = "trend_analysis"
	IntentComparison       IntentType = "comparison"
	IntentReport           IntentType = "report"
	IntentExternalResearch IntentType = "external_research"
)

// TimeRange bounds a question to a period, when one was mentioned.
type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// QueryIntent is the structured reading of a free-text question.
type QueryIntent struct {
	Type               IntentType           `json:"type"`
	Entities           map[TableRole]string `json:"entities,omitempty"` // role hint -> literal term from the question
	TimeRange          *TimeRange           `json:"time_range,omitempty"`
	RequiredRoles      []TableRole          `json:"required_roles"`
	Metric             string               `json:"metric,omitempty"` // e.g. "revenue", "price"
	Confidence         float64              `json:"confidence"`
	NeedsClarification bool                 `json:"needs_clarification"`
	ClarifyReason      string               `json:"clarify_reason,omitempty"`
}

// WantsExternal reports whether the intent justifies hitting the external
// research feed at all.
func (q QueryIntent) WantsExternal() bool {
	return q.Type == IntentExternalResearch || q.Type == IntentTrendAnalysis || q.Type == IntentComparison
}
