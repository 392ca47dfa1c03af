package ioexport

import (
	"context"
	"log/slog"

	"github.com/gnames/bioclim/pkg/climate"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ToPostgres replaces the table with the joined rows using CopyFrom.
// It returns the number of copied rows.
func ToPostgres(
	ctx context.Context,
	dsn, table string,
	rows []climate.Row,
	bands int,
) (int64, error) {
	ddl, err := createTable(table, bands, "DOUBLE PRECISION")
	if err != nil {
		return 0, PostgresError(table, err)
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return 0, PostgresError(table, err)
	}
	defer pool.Close()

	if err = pool.Ping(ctx); err != nil {
		return 0, PostgresError(table, err)
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return 0, PostgresError(table, err)
	}
	defer tx.Rollback(ctx)

	if _, err = tx.Exec(ctx, "DROP TABLE IF EXISTS "+table); err != nil {
		return 0, PostgresError(table, err)
	}
	if _, err = tx.Exec(ctx, ddl); err != nil {
		return 0, PostgresError(table, err)
	}

	data := make([][]any, len(rows))
	for i, row := range rows {
		data[i] = values(row, bands)
	}
	count, err := tx.CopyFrom(
		ctx,
		pgx.Identifier{table},
		columns(bands),
		pgx.CopyFromRows(data),
	)
	if err != nil {
		return 0, PostgresError(table, err)
	}
	if err = tx.Commit(ctx); err != nil {
		return 0, PostgresError(table, err)
	}

	slog.Info("Copied joined table to PostgreSQL", "table", table, "rows", count)
	return count, nil
}
