package ioexport

import (
	"errors"
	"io"
	"os"

	"github.com/gnames/bioclim/pkg/climate"
	"github.com/parquet-go/parquet-go"
)

// parquetRow is the Parquet schema of the joined table. Missing band
// values are stored as NaN.
type parquetRow struct {
	UID        string    `parquet:"uid"`
	TaxID      string    `parquet:"taxonomy_id"`
	SpeciesKey string    `parquet:"species_key"`
	Phylum     string    `parquet:"phylum"`
	Order      string    `parquet:"order"`
	Family     string    `parquet:"family"`
	Genus      string    `parquet:"genus"`
	Species    string    `parquet:"species"`
	Bio        []float64 `parquet:"bio,list"`
}

// WriteParquet writes joined rows as a Parquet file.
func WriteParquet(w io.Writer, rows []climate.Row) error {
	pw := parquet.NewGenericWriter[parquetRow](w)
	batch := make([]parquetRow, len(rows))
	for i, v := range rows {
		batch[i] = parquetRow{
			UID:        v.UID,
			TaxID:      v.TaxID,
			SpeciesKey: v.SpeciesKey,
			Phylum:     v.Phylum,
			Order:      v.Order,
			Family:     v.Family,
			Genus:      v.Genus,
			Species:    v.Species,
			Bio:        v.Values,
		}
	}
	if _, err := pw.Write(batch); err != nil {
		_ = pw.Close()
		return err
	}
	return pw.Close()
}

// ReadParquet reads rows written by WriteParquet.
func ReadParquet(path string) ([]climate.Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, ParquetError(path, err)
	}
	defer f.Close()

	pr := parquet.NewGenericReader[parquetRow](f)
	defer pr.Close()

	batch := make([]parquetRow, pr.NumRows())
	n, err := pr.Read(batch)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, ParquetError(path, err)
	}

	res := make([]climate.Row, n)
	for i, v := range batch[:n] {
		res[i] = climate.Row{
			UID: v.UID,
			Taxon: climate.Taxon{
				TaxID:      v.TaxID,
				SpeciesKey: v.SpeciesKey,
				Phylum:     v.Phylum,
				Order:      v.Order,
				Family:     v.Family,
				Genus:      v.Genus,
				Species:    v.Species,
			},
			Values: v.Bio,
		}
	}
	return res, nil
}
