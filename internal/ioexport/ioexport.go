// Package ioexport writes the joined table to Parquet, SQLite and
// PostgreSQL, and publishes artifacts to a blob bucket.
package ioexport

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/gnames/bioclim/pkg/climate"
)

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// columns returns SQL column names of the joined table.
func columns(bands int) []string {
	res := []string{
		"uid", "taxonomy_id", "species_key",
		"phylum", "order_name", "family", "genus", "species",
	}
	for _, v := range climate.BandColumns(bands) {
		res = append(res, strings.ToLower(v))
	}
	return res
}

// createTable returns DDL for the joined table. Band columns use the
// given floating point type name.
func createTable(table string, bands int, real string) (string, error) {
	if !identRe.MatchString(table) {
		return "", fmt.Errorf("bad table name %q", table)
	}
	cols := columns(bands)
	defs := make([]string, len(cols))
	for i, c := range cols {
		typ := "TEXT"
		if i >= len(cols)-bands {
			typ = real
		}
		defs[i] = c + " " + typ
	}
	return fmt.Sprintf(
		"CREATE TABLE %s (%s)", table, strings.Join(defs, ", "),
	), nil
}

// values converts a row to column values, missing band values are nil.
func values(row climate.Row, bands int) []any {
	res := []any{
		row.UID, row.TaxID, row.SpeciesKey,
		row.Phylum, row.Order, row.Family, row.Genus, row.Species,
	}
	for i := range bands {
		if i >= len(row.Values) || math.IsNaN(row.Values[i]) {
			res = append(res, nil)
			continue
		}
		res = append(res, row.Values[i])
	}
	return res
}
