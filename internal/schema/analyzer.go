// Package schema infers the business meaning of an arbitrary relational
// schema: per-column semantic types, per-table canonical roles, and
// foreign-key edges, all confidence-scored and fully deterministic so the
// result can be cached by schema fingerprint.
package schema

import (
	"strings"
	"unicode"

	"go.uber.org/zap"

	"github.com/sells-group/insight-cli/internal/model"
)

// minRoleSupport is the minimum weighted vote a role needs before a table is
// assigned anything other than RoleUnknown.
const minRoleSupport = 1.0

// tableNameBoost is the vote added when the table's own name matches a role
// keyword. Strong signal: a table called "products" is almost always products.
const tableNameBoost = 1.5

// Analyze derives a SchemaDescriptor from raw introspection metadata. Pure
// function: identical input always yields an identical descriptor.
func Analyze(tables []model.Table) model.SchemaDescriptor {
	desc := model.SchemaDescriptor{
		Fingerprint: Fingerprint(tables),
	}

	for _, t := range tables {
		td := analyzeTable(t)
		desc.Tables = append(desc.Tables, td)
		desc.ForeignKeys = append(desc.ForeignKeys, foreignKeyEdges(t)...)
	}

	return desc
}

func analyzeTable(t model.Table) model.TableDescriptor {
	td := model.TableDescriptor{Name: t.Name, Role: model.RoleUnknown}

	if len(t.Columns) == 0 {
		return td
	}

	for _, c := range t.Columns {
		td.Columns = append(td.Columns, analyzeColumn(c))
	}

	role, conf := voteRole(t.Name, td.Columns)
	td.Role = role
	td.Confidence = conf

	if role == model.RoleUnknown {
		zap.L().Debug("schema: table below role support threshold",
			zap.String("table", t.Name),
		)
	}

	return td
}

func analyzeColumn(c model.Column) model.ColumnDescriptor {
	cd := model.ColumnDescriptor{
		Name:          c.Name,
		DeclaredType:  c.DeclaredType,
		CanonicalType: canonicalType(c.DeclaredType),
		Nullable:      c.Nullable,
		Semantic:      model.SemanticUnknown,
	}

	// Explicit constraint metadata always beats name inference.
	if c.IsForeignKey && c.References != "" {
		cd.Semantic = model.SemanticForeignKey
		cd.Confidence = 1.0
		cd.MatchedRule = "explicit_fk"
		return cd
	}

	ident := NormalizeIdentifier(c.Name)
	if r, ok := matchColumn(ident); ok {
		cd.Semantic = r.semantic
		cd.Confidence = r.confidence
		cd.MatchedRule = r.name
		return cd
	}

	// No name rule fired: long text columns still carry semantic weight.
	if cd.CanonicalType == model.TypeText {
		cd.Semantic = model.SemanticText
		cd.Confidence = 0.5
		cd.MatchedRule = "declared_text"
	}

	return cd
}

// voteRole runs the confidence-weighted majority vote of column semantics
// against the role-signature table. Roles are scanned in fixed priority
// order so equal scores resolve deterministically.
func voteRole(tableName string, cols []model.ColumnDescriptor) (model.TableRole, float64) {
	normName := NormalizeIdentifier(tableName)

	var bestRole = model.RoleUnknown
	var bestScore float64

	for _, role := range model.RolePriority {
		score := 0.0
		for _, c := range cols {
			if w, ok := roleSignatures[role][c.Semantic]; ok {
				score += w * c.Confidence
			}
		}
		for _, kw := range roleTableKeywords[role] {
			if strings.Contains(normName, kw) {
				score += tableNameBoost
				break
			}
		}
		if score > bestScore {
			bestScore = score
			bestRole = role
		}
	}

	if bestScore < minRoleSupport {
		return model.RoleUnknown, 0
	}

	conf := bestScore / (bestScore + 1.0)
	if conf > 1 {
		conf = 1
	}
	return bestRole, conf
}

// foreignKeyEdges collects table-to-table edges. Explicit constraint
// metadata wins; otherwise a `<singular-table>_id` naming convention is
// used to infer the target table.
func foreignKeyEdges(t model.Table) []model.ForeignKeyEdge {
	var edges []model.ForeignKeyEdge
	for _, c := range t.Columns {
		if c.IsForeignKey && c.References != "" {
			target, _, _ := strings.Cut(c.References, ".")
			edges = append(edges, model.ForeignKeyEdge{
				FromTable:  t.Name,
				FromColumn: c.Name,
				ToTable:    target,
			})
			continue
		}

		ident := NormalizeIdentifier(c.Name)
		if ident == "id" || !strings.HasSuffix(ident, "_id") {
			continue
		}
		base := strings.TrimSuffix(ident, "_id")
		edges = append(edges, model.ForeignKeyEdge{
			FromTable:  t.Name,
			FromColumn: c.Name,
			ToTable:    guessTargetTable(base),
			Inferred:   true,
		})
	}
	return edges
}

// guessTargetTable maps an FK column base ("customer") to its likely table
// name ("customers"). Already-plural bases are kept as-is.
func guessTargetTable(base string) string {
	if strings.HasSuffix(base, "s") {
		return base
	}
	return base + "s"
}

// NormalizeIdentifier lowercases an identifier and converts camelCase and
// separator variants to snake_case, so "ProductID", "product-id" and
// "product_id" all compare equal.
func NormalizeIdentifier(name string) string {
	var b strings.Builder
	runes := []rune(strings.TrimSpace(name))

	for i, r := range runes {
		switch {
		case r == '-' || r == ' ' || r == '.':
			b.WriteRune('_')
		case unicode.IsUpper(r):
			if i > 0 && (unicode.IsLower(runes[i-1]) ||
				(i+1 < len(runes) && unicode.IsLower(runes[i+1]) && unicode.IsUpper(runes[i-1]))) {
				b.WriteRune('_')
			}
			b.WriteRune(unicode.ToLower(r))
		default:
			b.WriteRune(r)
		}
	}

	return b.String()
}

// typeGroups maps substrings of a normalized declared type to canonical
// types. Checked in order; first hit wins. Tolerant of dialect synonyms
// across SQLite, Postgres and MySQL.
var typeGroups = []struct {
	contains  []string
	canonical model.CanonicalType
}{
	{[]string{"BOOL"}, model.TypeBoolean},
	{[]string{"TIMESTAMP", "DATETIME"}, model.TypeTimestamp},
	{[]string{"DATE"}, model.TypeDate},
	{[]string{"TIME"}, model.TypeTimestamp},
	{[]string{"JSON"}, model.TypeJSON},
	{[]string{"SERIAL", "INT"}, model.TypeInteger},
	{[]string{"DECIMAL", "NUMERIC", "MONEY", "FLOAT", "DOUBLE", "REAL", "NUMBER", "CURRENCY"}, model.TypeDecimal},
	{[]string{"VARCHAR", "CHAR", "STRING"}, model.TypeString},
	{[]string{"TEXT", "CLOB", "BLOB"}, model.TypeText},
}

// canonicalType maps a raw declared SQL type to its canonical group,
// stripping size specifiers like VARCHAR(255).
func canonicalType(declared string) model.CanonicalType {
	clean := strings.ToUpper(strings.TrimSpace(declared))
	if i := strings.IndexByte(clean, '('); i >= 0 {
		clean = strings.TrimSpace(clean[:i])
	}
	if clean == "" {
		return model.TypeText
	}

	for _, g := range typeGroups {
		for _, sub := range g.contains {
			if strings.Contains(clean, sub) {
				return g.canonical
			}
		}
	}
	return model.TypeString
}
