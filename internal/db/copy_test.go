package db

import (
	"context"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var productCols = []string{"product_id", "name", "price"}

func productRows() [][]any {
	return [][]any{
		{"SKU-100", "Widget Pro", 19.99},
		{"SKU-101", "Widget Mini", 9.99},
		{"SKU-102", "Gadget Max", 49.50},
	}
}

func TestCopyFrom_EmptyRows(t *testing.T) {
	n, err := CopyFrom(context.TODO(), nil, "products", productCols, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestCopyFrom_LoadsProducts(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"products"}, productCols).WillReturnResult(3)

	n, err := CopyFrom(context.Background(), mock, "products", productCols, productRows())
	assert.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCopyFrom_Error(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"products"}, productCols).WillReturnError(fmt.Errorf("copy failed"))

	_, err = CopyFrom(context.Background(), mock, "products", productCols, productRows()[:1])
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COPY INTO products")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCopyFromSchema_EmptyRows(t *testing.T) {
	n, err := CopyFromSchema(context.TODO(), nil, "sales", "orders", []string{"order_id"}, [][]any{})
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestCopyFromSchema_LoadsOrders(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	cols := []string{"order_id", "product_id", "quantity", "region"}
	rows := [][]any{
		{1001, "SKU-100", 3, "west"},
		{1002, "SKU-101", 1, "east"},
		{1003, "SKU-100", 7, "south"},
		{1004, "SKU-102", 2, "west"},
		{1005, "SKU-101", 5, "north"},
	}
	mock.ExpectCopyFrom(pgx.Identifier{"sales", "orders"}, cols).WillReturnResult(5)

	n, err := CopyFromSchema(context.Background(), mock, "sales", "orders", cols, rows)
	assert.NoError(t, err)
	assert.Equal(t, int64(5), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCopyFromSchema_Error(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"sales", "orders"}, []string{"order_id"}).
		WillReturnError(fmt.Errorf("permission denied"))

	_, err = CopyFromSchema(context.Background(), mock, "sales", "orders", []string{"order_id"}, [][]any{{1001}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COPY INTO sales.orders")
	assert.NoError(t, mock.ExpectationsWereMet())
}
