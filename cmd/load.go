package main

import (
	"context"
	"database/sql"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/insight-cli/internal/db"
	"github.com/sells-group/insight-cli/internal/retrieve"
)

var (
	loadCSVPath string
	loadKeys    string
)

var loadCmd = &cobra.Command{
	Use:   "load <table>",
	Short: "Load rows from a CSV file into the structured store",
	Long: `Reads a CSV file whose header row names the target columns and bulk-loads
it into the configured store. Against PostgreSQL the rows go in via the COPY
protocol; pass --key to upsert on a unique constraint instead. Against SQLite
the rows are inserted in a single transaction.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		table := args[0]

		f, err := os.Open(loadCSVPath)
		if err != nil {
			return eris.Wrapf(err, "load: open %s", loadCSVPath)
		}
		defer f.Close()

		columns, rows, err := readCSV(f)
		if err != nil {
			return eris.Wrapf(err, "load: parse %s", loadCSVPath)
		}

		var n int64
		switch cfg.Store.Driver {
		case "postgres":
			n, err = loadPostgres(ctx, table, columns, rows)
		case "sqlite":
			n, err = loadSQLiteStore(ctx, table, columns, rows)
		default:
			return eris.Errorf("unknown store driver %q", cfg.Store.Driver)
		}
		if err != nil {
			return err
		}

		zap.L().Info("load complete",
			zap.String("table", table),
			zap.Int64("rows", n),
			zap.String("csv", loadCSVPath),
		)
		return nil
	},
}

func init() {
	loadCmd.Flags().StringVar(&loadCSVPath, "csv", "", "path to CSV file (required)")
	loadCmd.Flags().StringVar(&loadKeys, "key", "", "comma-separated conflict key columns; upsert instead of append (postgres)")
	_ = loadCmd.MarkFlagRequired("csv")
	rootCmd.AddCommand(loadCmd)
}

// readCSV parses a CSV stream into a header and row values. Every record must
// have the same width as the header.
func readCSV(r io.Reader) ([]string, [][]any, error) {
	reader := csv.NewReader(r)

	header, err := reader.Read()
	if err != nil {
		return nil, nil, eris.Wrap(err, "read header")
	}
	columns := make([]string, len(header))
	for i, h := range header {
		columns[i] = strings.TrimSpace(h)
	}

	var rows [][]any
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, eris.Wrapf(err, "read row %d", len(rows)+2)
		}
		row := make([]any, len(record))
		for i, v := range record {
			row[i] = v
		}
		rows = append(rows, row)
	}

	return columns, rows, nil
}

func loadPostgres(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	pool, err := pgxpool.New(ctx, cfg.Store.DatabaseURL)
	if err != nil {
		return 0, eris.Wrap(err, "load: connect")
	}
	defer pool.Close()

	if loadKeys != "" {
		return db.BulkUpsert(ctx, pool, db.UpsertConfig{
			Table:        table,
			Columns:      columns,
			ConflictKeys: splitAndTrim(loadKeys),
		}, rows)
	}
	return db.CopyFrom(ctx, pool, table, columns, rows)
}

func loadSQLiteStore(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	if loadKeys != "" {
		return 0, eris.New("load: --key is only supported for the postgres driver")
	}

	exec, err := retrieve.NewSQLite(cfg.Store.DatabaseURL)
	if err != nil {
		return 0, err
	}
	defer exec.Close()

	return insertSQLite(ctx, exec.DB(), table, columns, rows)
}

// insertSQLite appends rows inside a single transaction using a prepared
// statement.
func insertSQLite(ctx context.Context, dbh *sql.DB, table string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	quoted := make([]string, len(columns))
	marks := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = quoteIdent(c)
		marks[i] = "?"
	}
	insertSQL := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdent(table),
		strings.Join(quoted, ", "),
		strings.Join(marks, ", "),
	)

	tx, err := dbh.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "load: begin tx")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, insertSQL)
	if err != nil {
		return 0, eris.Wrapf(err, "load: prepare insert into %s", table)
	}
	defer stmt.Close()

	var n int64
	for i, row := range rows {
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			return 0, eris.Wrapf(err, "load: insert row %d into %s", i+1, table)
		}
		n++
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "load: commit tx")
	}
	return n, nil
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
