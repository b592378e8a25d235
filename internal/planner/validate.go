package planner

import (
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/insight-cli/internal/model"
)

// ErrValidation marks a plan rejected before execution. Rejected plans are
// never executed; the aggregator records the reason and moves on.
var ErrValidation = eris.New("planner: plan failed read-only validation")

// writeTokens are keywords that must never appear in an emitted plan. The
// executor performs the same scan independently.
var writeTokens = []string{
	"INSERT", "UPDATE", "DELETE", "DROP", "ALTER", "CREATE", "TRUNCATE",
	"GRANT", "REVOKE", "MERGE", "REPLACE", "EXEC", "CALL", "COPY",
	"ATTACH", "DETACH", "PRAGMA", "VACUUM",
}

// Validate checks a plan's text and identifiers against the descriptor and
// stamps it validated. A plan that fails here is unusable.
func Validate(plan *model.QueryPlan, desc *model.SchemaDescriptor) error {
	plan.Validated = false

	if err := CheckReadOnly(plan.SQL); err != nil {
		return err
	}

	table := desc.TableByName(plan.Table)
	if table == nil {
		return eris.Wrapf(ErrValidation, "unknown table %q", plan.Table)
	}
	for _, col := range plan.Columns {
		if !table.HasColumn(col) {
			return eris.Wrapf(ErrValidation, "unknown column %q on table %q", col, plan.Table)
		}
	}

	plan.Validated = true
	return nil
}

// CheckReadOnly rejects any statement that is not a single SELECT or that
// contains a write/DDL token. Shared with the executors as defense in depth.
func CheckReadOnly(sql string) error {
	trimmed := strings.TrimSpace(sql)
	if trimmed == "" {
		return eris.Wrap(ErrValidation, "empty statement")
	}

	// Single statement only: a trailing semicolon is tolerated, an
	// embedded one is not.
	if i := strings.IndexByte(trimmed, ';'); i >= 0 && i != len(trimmed)-1 {
		return eris.Wrap(ErrValidation, "multiple statements")
	}
	trimmed = strings.TrimSuffix(trimmed, ";")

	upper := strings.ToUpper(trimmed)
	if !strings.HasPrefix(upper, "SELECT ") {
		return eris.Wrap(ErrValidation, "only SELECT statements are allowed")
	}

	for _, tok := range writeTokens {
		if containsToken(upper, tok) {
			return eris.Wrapf(ErrValidation, "forbidden keyword %s", tok)
		}
	}
	return nil
}

// containsToken finds tok as a whole word, so a column called
// "updated_at" does not trip the UPDATE check.
func containsToken(upper, tok string) bool {
	for start := 0; ; {
		i := strings.Index(upper[start:], tok)
		if i < 0 {
			return false
		}
		i += start
		before := i == 0 || !isWordByte(upper[i-1])
		afterIdx := i + len(tok)
		after := afterIdx >= len(upper) || !isWordByte(upper[afterIdx])
		if before && after {
			return true
		}
		start = i + len(tok)
	}
}

func isWordByte(b byte) bool {
	return b == '_' || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9') || (b >= 'a' && b <= 'z')
}
