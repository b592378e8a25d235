package schema

import (
	"strings"

	"github.com/sells-group/insight-cli/internal/model"
)

// matchKind orders rule specificity: exact beats suffix beats substring.
type matchKind int

const (
	matchExact matchKind = iota
	matchSuffix
	matchPrefix
	matchSubstring
)

// rule is one (pattern, category, confidence) entry. Rules are evaluated in
// declaration order and the first match wins, so ties are broken by position
// in the list, never randomly.
type rule struct {
	name       string
	kind       matchKind
	pattern    string
	semantic   model.SemanticType
	confidence float64
}

func (r rule) matches(ident string) bool {
	switch r.kind {
	case matchExact:
		return ident == r.pattern
	case matchSuffix:
		return strings.HasSuffix(ident, r.pattern)
	case matchPrefix:
		return strings.HasPrefix(ident, r.pattern)
	case matchSubstring:
		return strings.Contains(ident, r.pattern)
	default:
		return false
	}
}

// columnRules is the ordered rule list, most specific category first:
// Identifier, Price, Date, Boolean, ForeignKey, Name. Patterns match against
// normalized identifiers (lowercase snake_case).
var columnRules = []rule{
	// Identifier
	{name: "id_exact", kind: matchExact, pattern: "id", semantic: model.SemanticIdentifier, confidence: 1.0},
	{name: "uuid_exact", kind: matchExact, pattern: "uuid", semantic: model.SemanticIdentifier, confidence: 1.0},
	{name: "id_suffix", kind: matchSuffix, pattern: "_id", semantic: model.SemanticIdentifier, confidence: 0.9},
	{name: "pk_prefix", kind: matchPrefix, pattern: "pk_", semantic: model.SemanticIdentifier, confidence: 0.85},
	{name: "sku_exact", kind: matchExact, pattern: "sku", semantic: model.SemanticIdentifier, confidence: 0.85},

	// Price
	{name: "price_exact", kind: matchExact, pattern: "price", semantic: model.SemanticPrice, confidence: 0.95},
	{name: "cost_exact", kind: matchExact, pattern: "cost", semantic: model.SemanticPrice, confidence: 0.95},
	{name: "amount_exact", kind: matchExact, pattern: "amount", semantic: model.SemanticPrice, confidence: 0.9},
	{name: "total_exact", kind: matchExact, pattern: "total", semantic: model.SemanticPrice, confidence: 0.9},
	{name: "revenue_exact", kind: matchExact, pattern: "revenue", semantic: model.SemanticPrice, confidence: 0.9},
	{name: "price_suffix", kind: matchSuffix, pattern: "_price", semantic: model.SemanticPrice, confidence: 0.85},
	{name: "cost_suffix", kind: matchSuffix, pattern: "_cost", semantic: model.SemanticPrice, confidence: 0.85},
	{name: "amount_suffix", kind: matchSuffix, pattern: "_amount", semantic: model.SemanticPrice, confidence: 0.85},
	{name: "total_suffix", kind: matchSuffix, pattern: "_total", semantic: model.SemanticPrice, confidence: 0.8},
	{name: "price_substr", kind: matchSubstring, pattern: "price", semantic: model.SemanticPrice, confidence: 0.6},

	// Date
	{name: "timestamp_exact", kind: matchExact, pattern: "timestamp", semantic: model.SemanticDate, confidence: 0.95},
	{name: "date_suffix", kind: matchSuffix, pattern: "_date", semantic: model.SemanticDate, confidence: 0.9},
	{name: "at_suffix", kind: matchSuffix, pattern: "_at", semantic: model.SemanticDate, confidence: 0.9},
	{name: "time_suffix", kind: matchSuffix, pattern: "_time", semantic: model.SemanticDate, confidence: 0.85},
	{name: "created_prefix", kind: matchPrefix, pattern: "created", semantic: model.SemanticDate, confidence: 0.85},
	{name: "updated_prefix", kind: matchPrefix, pattern: "updated", semantic: model.SemanticDate, confidence: 0.85},
	{name: "modified_prefix", kind: matchPrefix, pattern: "modified", semantic: model.SemanticDate, confidence: 0.8},
	{name: "date_prefix", kind: matchPrefix, pattern: "date_", semantic: model.SemanticDate, confidence: 0.8},
	{name: "date_substr", kind: matchSubstring, pattern: "date", semantic: model.SemanticDate, confidence: 0.6},

	// Boolean
	{name: "active_exact", kind: matchExact, pattern: "active", semantic: model.SemanticBoolean, confidence: 0.9},
	{name: "enabled_exact", kind: matchExact, pattern: "enabled", semantic: model.SemanticBoolean, confidence: 0.9},
	{name: "visible_exact", kind: matchExact, pattern: "visible", semantic: model.SemanticBoolean, confidence: 0.85},
	{name: "is_prefix", kind: matchPrefix, pattern: "is_", semantic: model.SemanticBoolean, confidence: 0.9},
	{name: "has_prefix", kind: matchPrefix, pattern: "has_", semantic: model.SemanticBoolean, confidence: 0.9},
	{name: "can_prefix", kind: matchPrefix, pattern: "can_", semantic: model.SemanticBoolean, confidence: 0.85},
	{name: "flag_suffix", kind: matchSuffix, pattern: "_flag", semantic: model.SemanticBoolean, confidence: 0.85},

	// ForeignKey (naming only; explicit constraint metadata bypasses rules)
	{name: "fk_prefix", kind: matchPrefix, pattern: "fk_", semantic: model.SemanticForeignKey, confidence: 0.9},

	// Name
	{name: "name_exact", kind: matchExact, pattern: "name", semantic: model.SemanticName, confidence: 0.95},
	{name: "title_exact", kind: matchExact, pattern: "title", semantic: model.SemanticName, confidence: 0.9},
	{name: "label_exact", kind: matchExact, pattern: "label", semantic: model.SemanticName, confidence: 0.85},
	{name: "name_suffix", kind: matchSuffix, pattern: "_name", semantic: model.SemanticName, confidence: 0.85},
	{name: "name_substr", kind: matchSubstring, pattern: "name", semantic: model.SemanticName, confidence: 0.6},
}

// matchColumn runs the ordered rule list over a normalized identifier.
// Returns the zero rule and false when nothing matches.
func matchColumn(ident string) (rule, bool) {
	for _, r := range columnRules {
		if r.matches(ident) {
			return r, true
		}
	}
	return rule{}, false
}

// roleSignatures weights each semantic type's vote toward a canonical role.
// Presence of Price+Name votes Product; Date+Price+FK edges vote Order, and
// so on. Table-name keywords contribute a separate boost in the analyzer.
var roleSignatures = map[model.TableRole]map[model.SemanticType]float64{
	model.RoleProduct: {
		model.SemanticPrice: 1.2,
		model.SemanticName:  0.8,
	},
	model.RoleCustomer: {
		model.SemanticName: 0.9,
		model.SemanticText: 0.4,
		model.SemanticDate: 0.2,
	},
	model.RoleOrder: {
		model.SemanticDate:       0.8,
		model.SemanticPrice:      0.7,
		model.SemanticForeignKey: 0.6,
	},
	model.RoleReview: {
		model.SemanticText:       0.9,
		model.SemanticForeignKey: 0.5,
		model.SemanticDate:       0.3,
	},
}

// roleTableKeywords boost the vote when the table's own name says what it is.
var roleTableKeywords = map[model.TableRole][]string{
	model.RoleProduct:  {"product", "item", "inventory", "catalog", "sku"},
	model.RoleCustomer: {"customer", "client", "user", "member", "account"},
	model.RoleOrder:    {"order", "purchase", "sale", "transaction", "invoice"},
	model.RoleReview:   {"review", "rating", "feedback", "comment"},
}
