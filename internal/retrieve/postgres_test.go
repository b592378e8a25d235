package retrieve

import (
	"context"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/insight-cli/internal/model"
)

func TestPostgresIntrospect(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("information_schema.columns").
		WithArgs("public").
		WillReturnRows(pgxmock.NewRows([]string{"table_name", "column_name", "data_type", "is_nullable"}).
			AddRow("products", "product_id", "integer", "NO").
			AddRow("products", "name", "character varying", "NO").
			AddRow("products", "price", "numeric", "YES").
			AddRow("orders", "order_id", "integer", "NO").
			AddRow("orders", "product_id", "integer", "YES"))

	mock.ExpectQuery("table_constraints").
		WithArgs("public").
		WillReturnRows(pgxmock.NewRows([]string{"table_name", "column_name", "constraint_type", "ref_table", "ref_column"}).
			AddRow("products", "product_id", "PRIMARY KEY", "", "").
			AddRow("orders", "order_id", "PRIMARY KEY", "", "").
			AddRow("orders", "product_id", "FOREIGN KEY", "products", "product_id"))

	exec := NewPostgresFromPool(mock)
	tables, err := exec.Introspect(context.Background())
	require.NoError(t, err)
	require.Len(t, tables, 2)

	products := tables[0]
	assert.Equal(t, "products", products.Name)
	require.Len(t, products.Columns, 3)
	assert.True(t, products.Columns[0].IsPrimaryKey)
	assert.Equal(t, "numeric", products.Columns[2].DeclaredType)
	assert.True(t, products.Columns[2].Nullable)

	orders := tables[1]
	require.Len(t, orders.Columns, 2)
	assert.True(t, orders.Columns[1].IsForeignKey)
	assert.Equal(t, "products.product_id", orders.Columns[1].References)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresExecuteBindsParams(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`SELECT product_id, name FROM products`).
		WithArgs("%widget%", 50).
		WillReturnRows(pgxmock.NewRows([]string{"product_id", "name"}).
			AddRow(int64(1), "Widget Pro").
			AddRow(int64(2), "Widget Mini"))

	exec := NewPostgresFromPool(mock)
	rows, err := exec.Execute(context.Background(), model.QueryPlan{
		Table:  "products",
		SQL:    `SELECT product_id, name FROM products WHERE name LIKE $1 LIMIT $2`,
		Params: []any{"%widget%", 50},
	})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Widget Pro", rows[0]["name"])
	assert.Equal(t, int64(2), rows[1]["product_id"])

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresExecuteRejectsWrites(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	exec := NewPostgresFromPool(mock)
	_, err = exec.Execute(context.Background(), model.QueryPlan{
		Table: "products",
		SQL:   `DELETE FROM products`,
	})
	require.Error(t, err)

	// The statement must never reach the pool.
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSample(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`SELECT \* FROM "products" LIMIT \$1`).
		WithArgs(5).
		WillReturnRows(pgxmock.NewRows([]string{"product_id"}).AddRow(int64(1)))

	exec := NewPostgresFromPool(mock)
	rows, err := exec.Sample(context.Background(), "products", 5)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	assert.NoError(t, mock.ExpectationsWereMet())
}
