package climate

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// Column names of table headers.
const (
	ColUID        = "UID"
	ColTaxID      = "Taxonomy ID"
	ColSpeciesKey = "Species Key"
	ColPhylum     = "Phylum"
	ColOrder      = "Order"
	ColFamily     = "Family"
	ColGenus      = "Genus"
	ColSpecies    = "Species"
)

// BandColumns returns names of n band columns: BIO1, BIO2...
func BandColumns(n int) []string {
	res := make([]string, n)
	for i := range res {
		res[i] = "BIO" + strconv.Itoa(i+1)
	}
	return res
}

// JoinedHeader returns the header of the final table.
func JoinedHeader(bands int) []string {
	res := []string{
		ColUID, ColTaxID, ColSpeciesKey,
		ColPhylum, ColOrder, ColFamily, ColGenus, ColSpecies,
	}
	return append(res, BandColumns(bands)...)
}

// FormatValue formats a band value; a missing value is an empty string.
func FormatValue(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// ParseValue parses a band value. Empty strings and "nan" are missing.
func ParseValue(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "nan") {
		return math.NaN(), nil
	}
	return strconv.ParseFloat(s, 64)
}

func formatValues(vs []float64) []string {
	res := make([]string, len(vs))
	for i, v := range vs {
		res[i] = FormatValue(v)
	}
	return res
}

func parseValues(fields []string) ([]float64, error) {
	res := make([]float64, len(fields))
	for i, f := range fields {
		v, err := ParseValue(f)
		if err != nil {
			return nil, err
		}
		res[i] = v
	}
	return res, nil
}

// WriteLinks writes UID,taxid lines without a header.
func WriteLinks(w io.Writer, links []Link) error {
	cw := csv.NewWriter(w)
	for _, l := range links {
		if err := cw.Write([]string{l.UID, l.TaxID}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadLinks reads lines written by WriteLinks.
func ReadLinks(r io.Reader) ([]Link, error) {
	var res []Link
	err := readRows(r, 2, func(f []string) error {
		res = append(res, Link{UID: f[0], TaxID: f[1]})
		return nil
	})
	return res, err
}

// WriteTaxonNames writes taxid,name lines without a header.
func WriteTaxonNames(w io.Writer, taxa []TaxonName) error {
	cw := csv.NewWriter(w)
	for _, t := range taxa {
		if err := cw.Write([]string{t.TaxID, t.Name}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadTaxonNames reads lines written by WriteTaxonNames.
func ReadTaxonNames(r io.Reader) ([]TaxonName, error) {
	var res []TaxonName
	err := readRows(r, 2, func(f []string) error {
		res = append(res, TaxonName{TaxID: f[0], Name: f[1]})
		return nil
	})
	return res, err
}

func taxonFields(t Taxon) []string {
	return []string{
		t.TaxID, t.SpeciesKey, t.Phylum, t.Order, t.Family, t.Genus, t.Species,
	}
}

func fieldsTaxon(f []string) Taxon {
	return Taxon{
		TaxID:      f[0],
		SpeciesKey: f[1],
		Phylum:     f[2],
		Order:      f[3],
		Family:     f[4],
		Genus:      f[5],
		Species:    f[6],
	}
}

// WriteTaxa writes GBIF matches without a header.
func WriteTaxa(w io.Writer, taxa []Taxon) error {
	cw := csv.NewWriter(w)
	for _, t := range taxa {
		if err := cw.Write(taxonFields(t)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadTaxa reads lines written by WriteTaxa.
func ReadTaxa(r io.Reader) ([]Taxon, error) {
	var res []Taxon
	err := readRows(r, 7, func(f []string) error {
		res = append(res, fieldsTaxon(f))
		return nil
	})
	return res, err
}

// Location is an occurrence of a species that passed the geographic
// filter.
type Location struct {
	SpeciesKey string
	X          float64
	Y          float64
}

// LocationWriter writes key,x,y lines without a header.
type LocationWriter struct {
	cw *csv.Writer
}

// NewLocationWriter creates a LocationWriter.
func NewLocationWriter(w io.Writer) *LocationWriter {
	return &LocationWriter{cw: csv.NewWriter(w)}
}

// Write adds a location.
func (w *LocationWriter) Write(l Location) error {
	return w.cw.Write([]string{
		l.SpeciesKey,
		strconv.FormatFloat(l.X, 'f', -1, 64),
		strconv.FormatFloat(l.Y, 'f', -1, 64),
	})
}

// Flush writes buffered locations.
func (w *LocationWriter) Flush() error {
	w.cw.Flush()
	return w.cw.Error()
}

// ReadLocations reads lines written by LocationWriter and calls fn for
// every location.
func ReadLocations(r io.Reader, fn func(Location) error) error {
	return readRows(r, 3, func(f []string) error {
		x, err := strconv.ParseFloat(f[1], 64)
		if err != nil {
			return err
		}
		y, err := strconv.ParseFloat(f[2], 64)
		if err != nil {
			return err
		}
		return fn(Location{SpeciesKey: f[0], X: x, Y: y})
	})
}

// SampleWriter writes a climate sample table row by row.
type SampleWriter struct {
	cw    *csv.Writer
	bands int
}

// NewSampleWriter writes the header of a table with the given number of
// bands.
func NewSampleWriter(w io.Writer, bands int) (*SampleWriter, error) {
	cw := csv.NewWriter(w)
	header := append([]string{ColSpeciesKey}, BandColumns(bands)...)
	if err := cw.Write(header); err != nil {
		return nil, err
	}
	return &SampleWriter{cw: cw, bands: bands}, nil
}

// Write adds a row.
func (w *SampleWriter) Write(key string, values []float64) error {
	if len(values) != w.bands {
		return fmt.Errorf("%d values for %d bands", len(values), w.bands)
	}
	return w.cw.Write(append([]string{key}, formatValues(values)...))
}

// Flush writes buffered rows.
func (w *SampleWriter) Flush() error {
	w.cw.Flush()
	return w.cw.Error()
}

// WriteMeans writes aggregated means in the sample table format.
func WriteMeans(w io.Writer, means []SpeciesMean, bands int) error {
	sw, err := NewSampleWriter(w, bands)
	if err != nil {
		return err
	}
	for _, m := range means {
		if err = sw.Write(m.SpeciesKey, m.Values); err != nil {
			return err
		}
	}
	return sw.Flush()
}

// ReadSamples reads a sample table and calls fn for every row. It
// returns the number of bands from the header.
func ReadSamples(r io.Reader, fn func(Sample) error) (int, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if len(header) < 1 || header[0] != ColSpeciesKey {
		return 0, fmt.Errorf("unexpected header %v", header)
	}
	bands := len(header) - 1
	cr.FieldsPerRecord = len(header)

	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return bands, nil
		}
		if err != nil {
			return bands, err
		}
		vals, err := parseValues(rec[1:])
		if err != nil {
			return bands, err
		}
		if err = fn(Sample{SpeciesKey: rec[0], Values: vals}); err != nil {
			return bands, err
		}
	}
}

// ReadMeans reads a table written by WriteMeans.
func ReadMeans(r io.Reader) ([]SpeciesMean, int, error) {
	var res []SpeciesMean
	bands, err := ReadSamples(r, func(s Sample) error {
		res = append(res, SpeciesMean(s))
		return nil
	})
	return res, bands, err
}

// WriteRows writes the final table with a header.
func WriteRows(w io.Writer, rows []Row, bands int) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(JoinedHeader(bands)); err != nil {
		return err
	}
	for _, row := range rows {
		rec := append([]string{row.UID}, taxonFields(row.Taxon)...)
		rec = append(rec, formatValues(row.Values)...)
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadRows reads a table written by WriteRows.
func ReadRows(r io.Reader) ([]Row, int, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, err
	}
	const fixed = 8
	if len(header) < fixed || header[0] != ColUID {
		return nil, 0, fmt.Errorf("unexpected header %v", header)
	}
	bands := len(header) - fixed
	cr.FieldsPerRecord = len(header)

	var res []Row
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return res, bands, nil
		}
		if err != nil {
			return nil, bands, err
		}
		vals, err := parseValues(rec[fixed:])
		if err != nil {
			return nil, bands, err
		}
		res = append(res, Row{
			UID:    rec[0],
			Taxon:  fieldsTaxon(rec[1:fixed]),
			Values: vals,
		})
	}
}

func readRows(r io.Reader, n int, fn func([]string) error) error {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = n
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if err = fn(rec); err != nil {
			return err
		}
	}
}
