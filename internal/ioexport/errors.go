package ioexport

import (
	"fmt"

	"github.com/gnames/bioclim/pkg/errcode"
	"github.com/gnames/gn"
)

// PostgresError is returned when the joined table cannot be copied to
// PostgreSQL.
func PostgresError(table string, err error) error {
	msg := `Cannot export joined table to PostgreSQL table <em>%s</em>`
	vars := []any{table}
	return &gn.Error{
		Code: errcode.ExportPostgresError,
		Msg:  msg,
		Vars: vars,
		Err:  fmt.Errorf("postgres table %s: %w", table, err),
	}
}

// SQLiteError is returned when the SQLite database cannot be written.
func SQLiteError(path string, err error) error {
	msg := `Cannot write SQLite database <em>%s</em>`
	vars := []any{path}
	return &gn.Error{
		Code: errcode.ExportSQLiteError,
		Msg:  msg,
		Vars: vars,
		Err:  fmt.Errorf("sqlite %s: %w", path, err),
	}
}

// ParquetError is returned when a Parquet file cannot be written or read.
func ParquetError(path string, err error) error {
	msg := `Cannot process Parquet file <em>%s</em>`
	vars := []any{path}
	return &gn.Error{
		Code: errcode.ExportParquetError,
		Msg:  msg,
		Vars: vars,
		Err:  fmt.Errorf("parquet %s: %w", path, err),
	}
}

// BucketError is returned when an artifact cannot be published to a
// bucket.
func BucketError(url, key string, err error) error {
	msg := `Cannot publish <em>%s</em> to <em>%s</em>`
	vars := []any{key, url}
	return &gn.Error{
		Code: errcode.ExportBucketError,
		Msg:  msg,
		Vars: vars,
		Err:  fmt.Errorf("bucket %s key %s: %w", url, key, err),
	}
}
