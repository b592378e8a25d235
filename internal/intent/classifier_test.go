package intent

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/insight-cli/internal/model"
	"github.com/sells-group/insight-cli/pkg/anthropic"
)

type fakeLLM struct {
	resp *anthropic.MessageResponse
	err  error
	got  anthropic.MessageRequest
}

func (f *fakeLLM) CreateMessage(_ context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	f.got = req
	return f.resp, f.err
}

func textResponse(s string) *anthropic.MessageResponse {
	return &anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: s}},
	}
}

func fixedClock() func() time.Time {
	return func() time.Time {
		return time.Date(2025, time.March, 15, 10, 30, 0, 0, time.UTC)
	}
}

func TestHeuristicIntentTypes(t *testing.T) {
	c := NewClassifier(nil, "")

	cases := []struct {
		question string
		want     model.IntentType
	}{
		{"show me the top products by revenue", model.IntentDataQuery},
		{"what is the sales trend over time", model.IntentTrendAnalysis},
		{"compare product sales vs last year", model.IntentComparison},
		{"give me a summary report of orders", model.IntentReport},
		{"what are competitors doing in this market", model.IntentExternalResearch},
	}
	for _, tc := range cases {
		got, err := c.Classify(context.Background(), model.Request{ID: "r1", Question: tc.question})
		require.NoError(t, err)
		assert.Equal(t, tc.want, got.Type, "question %q", tc.question)
	}
}

func TestHeuristicRolesAndMetric(t *testing.T) {
	c := NewClassifier(nil, "")

	got, err := c.Classify(context.Background(), model.Request{Question: "show revenue per product for our customers"})
	require.NoError(t, err)

	assert.Contains(t, got.RequiredRoles, model.RoleProduct)
	assert.Contains(t, got.RequiredRoles, model.RoleCustomer)
	assert.Equal(t, "revenue", got.Metric)
}

func TestQuotedEntityBindsFirstRole(t *testing.T) {
	c := NewClassifier(nil, "")

	got, err := c.Classify(context.Background(), model.Request{Question: `show orders for product "Widget Pro"`})
	require.NoError(t, err)

	require.NotEmpty(t, got.RequiredRoles)
	assert.Equal(t, "Widget Pro", got.Entities[got.RequiredRoles[0]])
}

func TestTimeRangeExtraction(t *testing.T) {
	c := NewClassifier(nil, "").WithNow(fixedClock())

	got, err := c.Classify(context.Background(), model.Request{Question: "list orders from last month"})
	require.NoError(t, err)

	require.NotNil(t, got.TimeRange)
	assert.Equal(t, time.Date(2025, time.February, 1, 0, 0, 0, 0, time.UTC), got.TimeRange.From)
	assert.Equal(t, time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC), got.TimeRange.To)
}

func TestThisYearRange(t *testing.T) {
	c := NewClassifier(nil, "").WithNow(fixedClock())

	got, err := c.Classify(context.Background(), model.Request{Question: "show sales this year"})
	require.NoError(t, err)

	require.NotNil(t, got.TimeRange)
	assert.Equal(t, 2025, got.TimeRange.From.Year())
	assert.Equal(t, 2026, got.TimeRange.To.Year())
}

func TestLLMAgreementRaisesConfidence(t *testing.T) {
	llm := &fakeLLM{resp: textResponse(`{"type":"data_query","required_roles":["product"],"confidence":0.9}`)}
	c := NewClassifier(llm, "claude-3-5-haiku-latest")

	got, err := c.Classify(context.Background(), model.Request{Question: "show top products"})
	require.NoError(t, err)

	assert.Equal(t, model.IntentDataQuery, got.Type)
	assert.Greater(t, got.Confidence, 0.7)
	assert.False(t, got.NeedsClarification)
	assert.Equal(t, "claude-3-5-haiku-latest", llm.got.Model)
}

func TestConfidentDisagreementAsksForClarification(t *testing.T) {
	llm := &fakeLLM{resp: textResponse(`{"type":"external_research","confidence":0.9}`)}
	c := NewClassifier(llm, "m")

	got, err := c.Classify(context.Background(), model.Request{Question: "show me the top products"})
	require.NoError(t, err)

	assert.True(t, got.NeedsClarification)
	assert.NotEmpty(t, got.ClarifyReason)
}

func TestLLMFailureFallsBackToHeuristics(t *testing.T) {
	llm := &fakeLLM{err: assert.AnError}
	c := NewClassifier(llm, "m")

	got, err := c.Classify(context.Background(), model.Request{Question: "count orders from last week"})
	require.NoError(t, err)

	assert.Equal(t, model.IntentDataQuery, got.Type)
	assert.False(t, got.NeedsClarification)
}

func TestGarbageLLMOutputFallsBackToHeuristics(t *testing.T) {
	llm := &fakeLLM{resp: textResponse("sorry, I cannot help with that")}
	c := NewClassifier(llm, "m")

	got, err := c.Classify(context.Background(), model.Request{Question: "list best customers"})
	require.NoError(t, err)

	assert.Equal(t, model.IntentDataQuery, got.Type)
}

func TestCodeFencedJSONIsAccepted(t *testing.T) {
	llm := &fakeLLM{resp: textResponse("```json\n{\"type\":\"report\",\"confidence\":0.8}\n```")}
	c := NewClassifier(llm, "m")

	got, err := c.Classify(context.Background(), model.Request{Question: "quarterly breakdown report"})
	require.NoError(t, err)

	assert.Equal(t, model.IntentReport, got.Type)
}

func TestVagueQuestionNeedsClarification(t *testing.T) {
	c := NewClassifier(nil, "")

	got, err := c.Classify(context.Background(), model.Request{Question: "hmm what about things"})
	require.NoError(t, err)

	assert.True(t, got.NeedsClarification)
	assert.Equal(t, "low classification confidence", got.ClarifyReason)
}

func TestLLMRolesAreMergedIn(t *testing.T) {
	llm := &fakeLLM{resp: textResponse(`{"type":"data_query","required_roles":["order","bogus"],"confidence":0.8}`)}
	c := NewClassifier(llm, "m")

	got, err := c.Classify(context.Background(), model.Request{Question: "show top products"})
	require.NoError(t, err)

	assert.Contains(t, got.RequiredRoles, model.RoleProduct)
	assert.Contains(t, got.RequiredRoles, model.RoleOrder)
	assert.Len(t, got.RequiredRoles, 2)
}

func TestPriorTurnsForwardedToLLM(t *testing.T) {
	llm := &fakeLLM{resp: textResponse(`{"type":"data_query","confidence":0.9}`)}
	c := NewClassifier(llm, "m")

	_, err := c.Classify(context.Background(), model.Request{
		Question:   "show the top products",
		PriorTurns: []string{"we were talking about Q2"},
	})
	require.NoError(t, err)
	require.Len(t, llm.got.Messages, 2)
	assert.Equal(t, "we were talking about Q2", llm.got.Messages[0].Content)
}
