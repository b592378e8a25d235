package schema

import (
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/insight-cli/internal/model"
)

// looseConfidence is assigned to every verdict of the loose pass. The pass
// exists to keep answering at all, not to be right often.
const looseConfidence = 0.3

// pricelike column name substrings for the loose product heuristic.
var pricelike = []string{"price", "cost", "amount", "total"}

// LooseAnalyze is the permissive second pass used when the strict analyzer
// assigns no role to any table. It matches bare substrings of table names
// and, failing that, calls the first table with a price-like column the
// product table. Results are always marked low confidence.
func LooseAnalyze(tables []model.Table) model.SchemaDescriptor {
	desc := model.SchemaDescriptor{
		Fingerprint:     Fingerprint(tables),
		DerivedViaTier1: true,
	}

	assigned := map[model.TableRole]bool{}
	for _, t := range tables {
		td := looseTable(t, assigned)
		if td.Role != model.RoleUnknown {
			assigned[td.Role] = true
		}
		desc.Tables = append(desc.Tables, td)
		desc.ForeignKeys = append(desc.ForeignKeys, foreignKeyEdges(t)...)
	}

	// Nothing matched by name: promote the first price-carrying table.
	if !assigned[model.RoleProduct] {
		for i := range desc.Tables {
			if hasPricelikeColumn(tables[i]) {
				desc.Tables[i].Role = model.RoleProduct
				desc.Tables[i].Confidence = looseConfidence
				zap.L().Warn("loose analysis: price column promoted table to product",
					zap.String("table", desc.Tables[i].Name),
				)
				break
			}
		}
	}

	return desc
}

// looseRoleHints are bare substrings, far more permissive than the strict
// analyzer's keyword list. First unclaimed role wins.
var looseRoleHints = map[model.TableRole][]string{
	model.RoleProduct:  {"prod", "item", "good", "sku", "catalog", "inventor"},
	model.RoleCustomer: {"cust", "client", "buyer", "user", "member", "account"},
	model.RoleOrder:    {"ord", "purchase", "sale", "transaction", "invoice"},
	model.RoleReview:   {"review", "rating", "feedback", "comment"},
}

func looseTable(t model.Table, assigned map[model.TableRole]bool) model.TableDescriptor {
	td := model.TableDescriptor{Name: t.Name, Role: model.RoleUnknown}
	for _, c := range t.Columns {
		td.Columns = append(td.Columns, analyzeColumn(c))
	}

	norm := NormalizeIdentifier(t.Name)
	for _, role := range model.RolePriority {
		if assigned[role] {
			continue
		}
		for _, hint := range looseRoleHints[role] {
			if strings.Contains(norm, hint) {
				td.Role = role
				td.Confidence = looseConfidence
				return td
			}
		}
	}
	return td
}

func hasPricelikeColumn(t model.Table) bool {
	for _, c := range t.Columns {
		norm := NormalizeIdentifier(c.Name)
		for _, p := range pricelike {
			if strings.Contains(norm, p) {
				return true
			}
		}
	}
	return false
}
