package retrieve

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/insight-cli/internal/model"
	"github.com/sells-group/insight-cli/internal/planner"
)

// SQLiteExecutor implements StructuredExecutor over modernc.org/sqlite.
type SQLiteExecutor struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteExecutor, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteExecutor{db: db}, nil
}

func (e *SQLiteExecutor) Close() {
	e.db.Close()
}

// DB exposes the underlying handle for test fixtures.
func (e *SQLiteExecutor) DB() *sql.DB {
	return e.db
}

// Introspect lists user tables and reads each table's column and foreign key
// metadata from the pragma tables.
func (e *SQLiteExecutor) Introspect(ctx context.Context) ([]model.Table, error) {
	names, err := e.tableNames(ctx)
	if err != nil {
		return nil, err
	}

	tables := make([]model.Table, 0, len(names))
	for _, name := range names {
		cols, err := e.tableColumns(ctx, name)
		if err != nil {
			return nil, err
		}
		tables = append(tables, model.Table{Name: name, Columns: cols})
	}
	return tables, nil
}

func (e *SQLiteExecutor) tableNames(ctx context.Context) ([]string, error) {
	rows, err := e.db.QueryContext(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list tables")
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan table name")
		}
		names = append(names, name)
	}
	return names, eris.Wrap(rows.Err(), "sqlite: iterate tables")
}

func (e *SQLiteExecutor) tableColumns(ctx context.Context, table string) ([]model.Column, error) {
	rows, err := e.db.QueryContext(ctx, fmt.Sprintf(`PRAGMA table_info(%q)`, table))
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: table_info %s", table)
	}
	defer rows.Close()

	var cols []model.Column
	for rows.Next() {
		var (
			cid          int
			name, dtype  string
			notNull, pk  int
			defaultValue sql.NullString
		)
		if err := rows.Scan(&cid, &name, &dtype, &notNull, &defaultValue, &pk); err != nil {
			return nil, eris.Wrapf(err, "sqlite: scan table_info %s", table)
		}
		cols = append(cols, model.Column{
			Name:         name,
			DeclaredType: dtype,
			Nullable:     notNull == 0 && pk == 0,
			IsPrimaryKey: pk > 0,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrapf(err, "sqlite: iterate table_info %s", table)
	}

	if err := e.applyForeignKeys(ctx, table, cols); err != nil {
		return nil, err
	}
	return cols, nil
}

func (e *SQLiteExecutor) applyForeignKeys(ctx context.Context, table string, cols []model.Column) error {
	rows, err := e.db.QueryContext(ctx, fmt.Sprintf(`PRAGMA foreign_key_list(%q)`, table))
	if err != nil {
		return eris.Wrapf(err, "sqlite: foreign_key_list %s", table)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id, seq            int
			refTable, from     string
			to                 sql.NullString
			onUpdate, onDelete string
			match              string
		)
		if err := rows.Scan(&id, &seq, &refTable, &from, &to, &onUpdate, &onDelete, &match); err != nil {
			return eris.Wrapf(err, "sqlite: scan foreign_key_list %s", table)
		}
		for i := range cols {
			if cols[i].Name != from {
				continue
			}
			cols[i].IsForeignKey = true
			refCol := to.String
			if refCol == "" {
				refCol = "id"
			}
			cols[i].References = refTable + "." + refCol
		}
	}
	return eris.Wrapf(rows.Err(), "sqlite: iterate foreign_key_list %s", table)
}

// Execute runs a validated plan. Placeholders are rebound from $n to ? for
// the sqlite driver; plan parameters always appear in ascending order so the
// positional rewrite is safe.
func (e *SQLiteExecutor) Execute(ctx context.Context, plan model.QueryPlan) ([]model.Row, error) {
	if err := planner.CheckReadOnly(plan.SQL); err != nil {
		return nil, err
	}

	rows, err := e.db.QueryContext(ctx, rebind(plan.SQL), plan.Params...)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: execute plan for %s", plan.Table)
	}
	defer rows.Close()

	return collectSQLRows(rows)
}

// Sample reads up to limit rows from a table for degraded answers.
func (e *SQLiteExecutor) Sample(ctx context.Context, table string, limit int) ([]model.Row, error) {
	rows, err := e.db.QueryContext(ctx, fmt.Sprintf(`SELECT * FROM %q LIMIT ?`, table), limit)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: sample %s", table)
	}
	defer rows.Close()

	return collectSQLRows(rows)
}

// rebind rewrites $1..$n placeholders to the ? form.
func rebind(query string) string {
	var b strings.Builder
	b.Grow(len(query))
	for i := 0; i < len(query); i++ {
		if query[i] == '$' && i+1 < len(query) && query[i+1] >= '0' && query[i+1] <= '9' {
			b.WriteByte('?')
			for i+1 < len(query) && query[i+1] >= '0' && query[i+1] <= '9' {
				i++
			}
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

func collectSQLRows(rows *sql.Rows) ([]model.Row, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: read columns")
	}

	var out []model.Row
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan row")
		}
		row := make(model.Row, len(cols))
		for i, c := range cols {
			if b, ok := values[i].([]byte); ok {
				row[c] = string(b)
			} else {
				row[c] = values[i]
			}
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: iterate rows")
	}
	return out, nil
}
