package model

import "github.com/google/uuid"

// Request carries the per-request values threaded through the pipeline:
// the question, its request ID for log correlation, and the schema
// fingerprint resolved for this request. Requests own their QueryIntent,
// QueryPlans, and AggregatedContext exclusively; nothing here is shared
// across requests.
type Request struct {
	ID          string   `json:"id"`
	Question    string   `json:"question"`
	PriorTurns  []string `json:"prior_turns,omitempty"`
	Fingerprint string   `json:"fingerprint,omitempty"`
}

// NewRequest creates a Request with a fresh ID.
func NewRequest(question string, priorTurns ...string) Request {
	return Request{
		ID:         uuid.NewString(),
		Question:   question,
		PriorTurns: priorTurns,
	}
}
