package retrieve

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/insight-cli/internal/model"
	"github.com/sells-group/insight-cli/internal/planner"
)

// Pool is the subset of pgxpool.Pool the executor needs. pgxmock satisfies it.
type Pool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// PostgresExecutor implements StructuredExecutor over a pgx connection pool.
type PostgresExecutor struct {
	pool    Pool
	schema  string
	closeFn func()
}

// NewPostgres connects a PostgresExecutor to the given database.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresExecutor, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}

	return &PostgresExecutor{pool: pool, schema: "public", closeFn: pool.Close}, nil
}

// NewPostgresFromPool wraps an existing pool. Used by tests with pgxmock.
func NewPostgresFromPool(pool Pool) *PostgresExecutor {
	return &PostgresExecutor{pool: pool, schema: "public"}
}

func (e *PostgresExecutor) Close() {
	if e.closeFn != nil {
		e.closeFn()
	}
}

const columnCatalogSQL = `
SELECT c.table_name, c.column_name, c.data_type, c.is_nullable
FROM information_schema.columns c
JOIN information_schema.tables t
  ON t.table_schema = c.table_schema AND t.table_name = c.table_name
WHERE c.table_schema = $1 AND t.table_type = 'BASE TABLE'
ORDER BY c.table_name, c.ordinal_position`

const keyCatalogSQL = `
SELECT tc.table_name, kcu.column_name, tc.constraint_type,
       COALESCE(ccu.table_name, ''), COALESCE(ccu.column_name, '')
FROM information_schema.table_constraints tc
JOIN information_schema.key_column_usage kcu
  ON kcu.constraint_name = tc.constraint_name AND kcu.table_schema = tc.table_schema
LEFT JOIN information_schema.constraint_column_usage ccu
  ON ccu.constraint_name = tc.constraint_name AND ccu.table_schema = tc.table_schema
  AND tc.constraint_type = 'FOREIGN KEY'
WHERE tc.table_schema = $1 AND tc.constraint_type IN ('PRIMARY KEY', 'FOREIGN KEY')`

// Introspect reads the column catalog and key constraints for the configured
// schema.
func (e *PostgresExecutor) Introspect(ctx context.Context) ([]model.Table, error) {
	rows, err := e.pool.Query(ctx, columnCatalogSQL, e.schema)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: introspect columns")
	}
	defer rows.Close()

	var (
		tables []model.Table
		index  = map[string]int{}
	)
	for rows.Next() {
		var tableName, colName, dataType, nullable string
		if err := rows.Scan(&tableName, &colName, &dataType, &nullable); err != nil {
			return nil, eris.Wrap(err, "postgres: scan column row")
		}
		i, ok := index[tableName]
		if !ok {
			i = len(tables)
			index[tableName] = i
			tables = append(tables, model.Table{Name: tableName})
		}
		tables[i].Columns = append(tables[i].Columns, model.Column{
			Name:         colName,
			DeclaredType: dataType,
			Nullable:     nullable == "YES",
		})
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate columns")
	}

	if err := e.applyKeys(ctx, tables, index); err != nil {
		return nil, err
	}
	return tables, nil
}

func (e *PostgresExecutor) applyKeys(ctx context.Context, tables []model.Table, index map[string]int) error {
	rows, err := e.pool.Query(ctx, keyCatalogSQL, e.schema)
	if err != nil {
		return eris.Wrap(err, "postgres: introspect keys")
	}
	defer rows.Close()

	for rows.Next() {
		var tableName, colName, kind, refTable, refCol string
		if err := rows.Scan(&tableName, &colName, &kind, &refTable, &refCol); err != nil {
			return eris.Wrap(err, "postgres: scan key row")
		}
		i, ok := index[tableName]
		if !ok {
			continue
		}
		for j := range tables[i].Columns {
			if tables[i].Columns[j].Name != colName {
				continue
			}
			switch kind {
			case "PRIMARY KEY":
				tables[i].Columns[j].IsPrimaryKey = true
			case "FOREIGN KEY":
				tables[i].Columns[j].IsForeignKey = true
				if refTable != "" {
					tables[i].Columns[j].References = refTable + "." + refCol
				}
			}
		}
	}
	return eris.Wrap(rows.Err(), "postgres: iterate keys")
}

// Execute runs a validated plan. The read-only check runs again here so a
// plan that skipped validation can never reach the database.
func (e *PostgresExecutor) Execute(ctx context.Context, plan model.QueryPlan) ([]model.Row, error) {
	if err := planner.CheckReadOnly(plan.SQL); err != nil {
		return nil, err
	}

	rows, err := e.pool.Query(ctx, plan.SQL, plan.Params...)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: execute plan for %s", plan.Table)
	}
	defer rows.Close()

	return collectPgxRows(rows)
}

// Sample reads up to limit rows from a table for degraded answers.
func (e *PostgresExecutor) Sample(ctx context.Context, table string, limit int) ([]model.Row, error) {
	sql := fmt.Sprintf(`SELECT * FROM %s LIMIT $1`, pgx.Identifier{table}.Sanitize())
	rows, err := e.pool.Query(ctx, sql, limit)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: sample %s", table)
	}
	defer rows.Close()

	return collectPgxRows(rows)
}

func collectPgxRows(rows pgx.Rows) ([]model.Row, error) {
	fields := rows.FieldDescriptions()
	var out []model.Row
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, eris.Wrap(err, "postgres: read row values")
		}
		row := make(model.Row, len(fields))
		for i, f := range fields {
			row[f.Name] = values[i]
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate rows")
	}
	return out, nil
}
