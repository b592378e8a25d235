// Package intent turns a free-text business question into a structured
// QueryIntent. Classification is two-stage: fast pattern heuristics plus an
// optional language-model verdict; when the two disagree or neither is
// confident, the intent asks for clarification instead of guessing.
package intent

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/insight-cli/internal/model"
	"github.com/sells-group/insight-cli/pkg/anthropic"
)

// minConfidence is the floor below which the classifier refuses to guess.
const minConfidence = 0.4

const systemPrompt = `You are a business intelligence query analyzer. Return only a JSON object:
{"type": one of "data_query"|"trend_analysis"|"comparison"|"report"|"external_research",
 "required_roles": subset of ["product","customer","order","review"],
 "metric": optional metric word from the question,
 "confidence": 0.0-1.0}`

// Classifier classifies questions, optionally consulting an LLM.
type Classifier struct {
	llm   anthropic.Client
	model string
	now   func() time.Time
}

// NewClassifier creates a Classifier. llm may be nil, in which case
// heuristics alone decide at reduced confidence.
func NewClassifier(llm anthropic.Client, llmModel string) *Classifier {
	return &Classifier{llm: llm, model: llmModel, now: time.Now}
}

// WithNow sets a fixed clock for testing time-range extraction.
func (c *Classifier) WithNow(now func() time.Time) *Classifier {
	c.now = now
	return c
}

// Classify produces the QueryIntent for a request. The LLM path failing is
// never an error: heuristics carry the verdict at reduced confidence.
func (c *Classifier) Classify(ctx context.Context, req model.Request) (model.QueryIntent, error) {
	heur := c.heuristic(req.Question)

	if c.llm == nil {
		heur.Confidence *= 0.8
		c.finalize(&heur)
		return heur, nil
	}

	llmVerdict, err := c.consultLLM(ctx, req)
	if err != nil {
		zap.L().Warn("intent: language model unavailable, using heuristics",
			zap.String("request_id", req.ID),
			zap.Error(err),
		)
		heur.Confidence *= 0.8
		c.finalize(&heur)
		return heur, nil
	}

	merged := c.merge(heur, llmVerdict)
	c.finalize(&merged)
	return merged, nil
}

// llmVerdict is the JSON shape the model is asked to return.
type llmVerdict struct {
	Type          string   `json:"type"`
	RequiredRoles []string `json:"required_roles"`
	Metric        string   `json:"metric"`
	Confidence    float64  `json:"confidence"`
}

func (c *Classifier) consultLLM(ctx context.Context, req model.Request) (*llmVerdict, error) {
	msgs := make([]anthropic.Message, 0, len(req.PriorTurns)+1)
	for _, turn := range req.PriorTurns {
		msgs = append(msgs, anthropic.Message{Role: "user", Content: turn})
	}
	msgs = append(msgs, anthropic.Message{Role: "user", Content: "Analyze this query: " + req.Question})

	temp := 0.1
	resp, err := c.llm.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       c.model,
		MaxTokens:   500,
		System:      systemPrompt,
		Messages:    msgs,
		Temperature: &temp,
	})
	if err != nil {
		return nil, err
	}
	resp.Usage.LogCost(c.model, "intent_classify")

	var verdict llmVerdict
	if err := json.Unmarshal([]byte(extractJSON(resp.Text())), &verdict); err != nil {
		return nil, err
	}
	return &verdict, nil
}

// merge reconciles the two signals. A confident disagreement on intent type
// is ambiguity, not a coin toss.
func (c *Classifier) merge(heur model.QueryIntent, llm *llmVerdict) model.QueryIntent {
	out := heur

	llmType := model.IntentType(llm.Type)
	if !validIntentType(llmType) {
		return out
	}

	if llmType != heur.Type {
		if llm.Confidence >= 0.6 && heur.Confidence >= 0.6 {
			out.NeedsClarification = true
			out.ClarifyReason = "pattern and model classification disagree"
			out.Confidence = minConfidence
			return out
		}
		if llm.Confidence > heur.Confidence {
			out.Type = llmType
			out.Confidence = llm.Confidence
		}
	} else {
		// Agreement reinforces.
		out.Confidence = heur.Confidence + (1-heur.Confidence)*llm.Confidence*0.5
	}

	if out.Metric == "" {
		out.Metric = llm.Metric
	}
	for _, r := range llm.RequiredRoles {
		role := model.TableRole(r)
		if validRole(role) && !containsRole(out.RequiredRoles, role) {
			out.RequiredRoles = append(out.RequiredRoles, role)
		}
	}

	return out
}

func (c *Classifier) finalize(q *model.QueryIntent) {
	if q.Confidence < minConfidence && !q.NeedsClarification {
		q.NeedsClarification = true
		q.ClarifyReason = "low classification confidence"
	}
}

var (
	trendPattern    = regexp.MustCompile(`\b(trend|pattern|over time|forecast|predict|projection|growth)\b`)
	comparePattern  = regexp.MustCompile(`\b(compare|vs|versus|difference|better|worse)\b`)
	reportPattern   = regexp.MustCompile(`\b(report|summary|overview|breakdown)\b`)
	externalPattern = regexp.MustCompile(`\b(market|industry|competitor|benchmark|news|recent)\b`)
	dataPattern     = regexp.MustCompile(`\b(show|select|find|get|list|count|sum|average|top|best|worst|highest|lowest|rank)\b`)
	metricPattern   = regexp.MustCompile(`\b(revenue|price|cost|sales|total|amount|income)\b`)
	quotedPattern   = regexp.MustCompile(`"([^"]+)"|'([^']+)'`)
)

// rolePatterns mirror the business-entity lexicon: a mention of any keyword
// pulls the matching canonical role into RequiredRoles.
var rolePatterns = map[model.TableRole]*regexp.Regexp{
	model.RoleProduct:  regexp.MustCompile(`\b(product|item|sku|inventory|catalog)\w*\b`),
	model.RoleCustomer: regexp.MustCompile(`\b(customer|client|buyer|user)\w*\b`),
	model.RoleOrder:    regexp.MustCompile(`\b(order|purchase|transaction|sale)\w*\b`),
	model.RoleReview:   regexp.MustCompile(`\b(review|rating|feedback)\w*\b`),
}

func (c *Classifier) heuristic(question string) model.QueryIntent {
	q := strings.ToLower(question)

	out := model.QueryIntent{
		Type:       model.IntentDataQuery,
		Confidence: 0.3,
	}

	switch {
	case trendPattern.MatchString(q):
		out.Type = model.IntentTrendAnalysis
		out.Confidence = 0.7
	case comparePattern.MatchString(q):
		out.Type = model.IntentComparison
		out.Confidence = 0.7
	case reportPattern.MatchString(q):
		out.Type = model.IntentReport
		out.Confidence = 0.65
	case externalPattern.MatchString(q):
		out.Type = model.IntentExternalResearch
		out.Confidence = 0.65
	case dataPattern.MatchString(q):
		out.Type = model.IntentDataQuery
		out.Confidence = 0.7
	}

	// Required roles, scanned in fixed priority order for determinism.
	for _, role := range model.RolePriority {
		if rolePatterns[role].MatchString(q) {
			out.RequiredRoles = append(out.RequiredRoles, role)
		}
	}

	if m := metricPattern.FindString(q); m != "" {
		out.Metric = m
	}

	if tr := c.timeRange(q); tr != nil {
		out.TimeRange = tr
	}

	// A quoted term becomes the entity filter for the first required role.
	if m := quotedPattern.FindStringSubmatch(question); m != nil && len(out.RequiredRoles) > 0 {
		term := m[1]
		if term == "" {
			term = m[2]
		}
		out.Entities = map[model.TableRole]string{out.RequiredRoles[0]: term}
	}

	return out
}

// timeRange resolves relative period phrases against the injected clock.
func (c *Classifier) timeRange(q string) *model.TimeRange {
	now := c.now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	switch {
	case strings.Contains(q, "last week"):
		start := today.AddDate(0, 0, -7-int(today.Weekday()))
		return &model.TimeRange{From: start, To: start.AddDate(0, 0, 7)}
	case strings.Contains(q, "this week"):
		start := today.AddDate(0, 0, -int(today.Weekday()))
		return &model.TimeRange{From: start, To: start.AddDate(0, 0, 7)}
	case strings.Contains(q, "last month"):
		start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -1, 0)
		return &model.TimeRange{From: start, To: start.AddDate(0, 1, 0)}
	case strings.Contains(q, "this month"):
		start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
		return &model.TimeRange{From: start, To: start.AddDate(0, 1, 0)}
	case strings.Contains(q, "last quarter"):
		qStart := time.Date(now.Year(), ((now.Month()-1)/3)*3+1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, -3, 0)
		return &model.TimeRange{From: qStart, To: qStart.AddDate(0, 3, 0)}
	case strings.Contains(q, "last year"):
		start := time.Date(now.Year()-1, 1, 1, 0, 0, 0, 0, time.UTC)
		return &model.TimeRange{From: start, To: start.AddDate(1, 0, 0)}
	case strings.Contains(q, "this year"):
		start := time.Date(now.Year(), 1, 1, 0, 0, 0, 0, time.UTC)
		return &model.TimeRange{From: start, To: start.AddDate(1, 0, 0)}
	}
	return nil
}

// extractJSON pulls the first {...} object out of a model response that may
// wrap it in prose or a code fence.
func extractJSON(text string) string {
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end <= start {
		return text
	}
	return text[start : end+1]
}

func validIntentType(t model.IntentType) bool {
	switch t {
	case model.IntentDataQuery, model.IntentTrendAnalysis, model.IntentComparison,
		model.IntentReport, model.IntentExternalResearch:
		return true
	}
	return false
}

func validRole(r model.TableRole) bool {
	switch r {
	case model.RoleProduct, model.RoleCustomer, model.RoleOrder, model.RoleReview:
		return true
	}
	return false
}

func containsRole(roles []model.TableRole, r model.TableRole) bool {
	for _, x := range roles {
		if x == r {
			return true
		}
	}
	return false
}
