package model

import "sort"

// SemanticType is a column's normalized meaning, independent of the SQL
// dialect's declared type name.
type SemanticType string

const (
	SemanticIdentifier SemanticType = "identifier"
	SemanticName       SemanticType = "name"
	SemanticPrice      SemanticType = "price"
	SemanticDate       SemanticType = "date"
	SemanticBoolean    SemanticType = "boolean"
	SemanticForeignKey SemanticType = "foreign_key"
	SemanticText       SemanticType = "text"
	SemanticUnknown    SemanticType = "unknown"
)

// CanonicalType groups dialect-specific declared types (INT, BIGSERIAL,
// NUMERIC(10,2), ...) into a small set independent of semantic inference.
type CanonicalType string

const (
	TypeInteger   CanonicalType = "integer"
	TypeDecimal   CanonicalType = "decimal"
	TypeString    CanonicalType = "string"
	TypeText      CanonicalType = "text"
	TypeDate      CanonicalType = "date"
	TypeTimestamp CanonicalType = "timestamp"
	TypeBoolean   CanonicalType = "boolean"
	TypeJSON      CanonicalType = "json"
)

// TableRole is the abstract business entity a table is believed to represent.
type TableRole string

const (
	RoleProduct  TableRole = "product"
	RoleCustomer TableRole = "customer"
	RoleOrder    TableRole = "order"
	RoleReview   TableRole = "review"
	RoleUnknown  TableRole = "unknown"
)

// RolePriority is the fixed tie-break order used whenever two candidates
// satisfy the same requirement. Lower index wins.
var RolePriority = []TableRole{RoleProduct, RoleCustomer, RoleOrder, RoleReview}

// Column is raw introspection input for a single column.
type Column struct {
	Name         string `json:"name"`
	DeclaredType string `json:"declared_type"`
	Nullable     bool   `json:"nullable"`
	IsPrimaryKey bool   `json:"is_primary_key"`
	IsForeignKey bool   `json:"is_foreign_key"`
	References   string `json:"references,omitempty"` // "table.column" from constraint metadata
}

// Table is raw introspection input for a single table.
type Table struct {
	Name    string   `json:"name"`
	Columns []Column `json:"columns"`
}

// ColumnDescriptor is the analyzer's verdict on one column.
type ColumnDescriptor struct {
	Name          string        `json:"name"`
	DeclaredType  string        `json:"declared_type"`
	CanonicalType CanonicalType `json:"canonical_type"`
	Nullable      bool          `json:"nullable"`
	Semantic      SemanticType  `json:"semantic"`
	Confidence    float64       `json:"confidence"`
	MatchedRule   string        `json:"matched_rule,omitempty"`
}

// ForeignKeyEdge records a table-to-table reference, either from explicit
// constraint metadata or inferred from naming conventions.
type ForeignKeyEdge struct {
	FromTable  string `json:"from_table"`
	FromColumn string `json:"from_column"`
	ToTable    string `json:"to_table"`
	Inferred   bool   `json:"inferred"`
}

// TableDescriptor is the analyzer's verdict on one table.
type TableDescriptor struct {
	Name       string             `json:"name"`
	Role       TableRole          `json:"role"`
	Confidence float64            `json:"confidence"`
	Columns    []ColumnDescriptor `json:"columns"`
}

// SchemaDescriptor is the confidence-scored semantic description of a whole
// schema snapshot. Derived once per fingerprint and cached read-only.
type SchemaDescriptor struct {
	Fingerprint     string           `json:"fingerprint"`
	Tables          []TableDescriptor `json:"tables"`
	ForeignKeys     []ForeignKeyEdge `json:"foreign_keys,omitempty"`
	DerivedViaTier1 bool             `json:"derived_via_tier1,omitempty"`
}

// TableByRole returns the highest-confidence table assigned the given role,
// or nil when no table carries it.
func (s *SchemaDescriptor) TableByRole(role TableRole) *TableDescriptor {
	var best *TableDescriptor
	for i := range s.Tables {
		t := &s.Tables[i]
		if t.Role != role {
			continue
		}
		if best == nil || t.Confidence > best.Confidence {
			best = t
		}
	}
	return best
}

// TableByName returns the table descriptor with the given name, or nil.
func (s *SchemaDescriptor) TableByName(name string) *TableDescriptor {
	for i := range s.Tables {
		if s.Tables[i].Name == name {
			return &s.Tables[i]
		}
	}
	return nil
}

// ColumnsBySemantic returns the table's columns of the given semantic type,
// ordered by descending confidence. Declaration order breaks ties so the
// result is stable across runs.
func (t *TableDescriptor) ColumnsBySemantic(sem SemanticType) []ColumnDescriptor {
	var out []ColumnDescriptor
	for _, c := range t.Columns {
		if c.Semantic == sem {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Confidence > out[j].Confidence
	})
	return out
}

// HasColumn reports whether the table declares a column with the given name.
func (t *TableDescriptor) HasColumn(name string) bool {
	for _, c := range t.Columns {
		if c.Name == name {
			return true
		}
	}
	return false
}
