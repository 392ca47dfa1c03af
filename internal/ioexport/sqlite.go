package ioexport

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/gnames/bioclim/pkg/climate"
	_ "modernc.org/sqlite"
)

// WriteSQLite creates a SQLite database at path with the joined rows in
// the given table. Missing band values are NULL.
func WriteSQLite(
	ctx context.Context,
	path, table string,
	rows []climate.Row,
	bands int,
) error {
	ddl, err := createTable(table, bands, "REAL")
	if err != nil {
		return SQLiteError(path, err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return SQLiteError(path, err)
	}
	defer db.Close()

	if err = insertSQLite(ctx, db, ddl, table, rows, bands); err != nil {
		return SQLiteError(path, err)
	}
	return nil
}

func insertSQLite(
	ctx context.Context,
	db *sql.DB,
	ddl, table string,
	rows []climate.Row,
	bands int,
) error {
	if _, err := db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table); err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	cols := columns(bands)
	marks := strings.TrimSuffix(strings.Repeat("?,", len(cols)), ",")
	q := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		table, strings.Join(cols, ", "), marks,
	)
	stmt, err := tx.PrepareContext(ctx, q)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, row := range rows {
		if _, err = stmt.ExecContext(ctx, values(row, bands)...); err != nil {
			return err
		}
	}
	return tx.Commit()
}
