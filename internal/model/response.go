package model

import "time"

// Response is what the pipeline hands back for one question: the structured
// reading of the question, the plans that ran, and the merged context.
type Response struct {
	RequestID   string             `json:"request_id"`
	Question    string             `json:"question"`
	Fingerprint string             `json:"fingerprint,omitempty"`
	Intent      QueryIntent        `json:"intent"`
	Plans       []QueryPlan        `json:"plans,omitempty"`
	Context     *AggregatedContext `json:"context,omitempty"`
	Elapsed     time.Duration      `json:"elapsed_ns"`
}

// NeedsClarification reports whether the pipeline declined to retrieve
// because the question was too ambiguous to classify.
func (r *Response) NeedsClarification() bool {
	return r.Intent.NeedsClarification
}
