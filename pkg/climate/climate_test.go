package climate_test

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/gnames/bioclim/pkg/climate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var nan = math.NaN()

func TestAggregate(t *testing.T) {
	samples := []climate.Sample{
		{SpeciesKey: "20", Values: []float64{2.0, 1}},
		{SpeciesKey: "3", Values: []float64{1.0005, nan}},
		{SpeciesKey: "20", Values: []float64{nan, 2}},
		{SpeciesKey: "20", Values: []float64{4.0, 2}},
		{SpeciesKey: "3", Values: []float64{1.0, nan}},
	}
	res := climate.Aggregate(samples, 3)
	require.Len(t, res, 2)

	assert.Equal(t, "3", res[0].SpeciesKey, "numeric order of keys")
	assert.Equal(t, 1.0, res[0].Values[0])
	assert.True(t, math.IsNaN(res[0].Values[1]), "all-missing band stays missing")

	assert.Equal(t, "20", res[1].SpeciesKey)
	assert.Equal(t, 3.0, res[1].Values[0], "missing is excluded from the mean")
	assert.Equal(t, 1.667, res[1].Values[1])
}

func TestCompareKeys(t *testing.T) {
	assert.Negative(t, climate.CompareKeys("9", "10"))
	assert.Positive(t, climate.CompareKeys("b", "a"))
	assert.Negative(t, climate.CompareKeys("10", "a"))
	assert.Zero(t, climate.CompareKeys("5", "5"))
}

func TestJoin(t *testing.T) {
	links := []climate.Link{
		{UID: "7", TaxID: "200"},
		{UID: "1", TaxID: "100"},
		{UID: "9", TaxID: "300"},
	}
	taxa := []climate.Taxon{
		{TaxID: "100", SpeciesKey: "S1", Genus: "Aus"},
		{TaxID: "200", SpeciesKey: "S2"},
	}
	means := []climate.SpeciesMean{
		{SpeciesKey: "S1", Values: []float64{1.0}},
	}

	res := climate.Join(links, taxa, means)
	require.Len(t, res, 1)
	assert.Equal(t, "1", res[0].UID)
	assert.Equal(t, "100", res[0].TaxID)
	assert.Equal(t, "S1", res[0].SpeciesKey)
	assert.Equal(t, "Aus", res[0].Genus)
	assert.Equal(t, []float64{1.0}, res[0].Values)
}

func TestJoinKeepsOrder(t *testing.T) {
	links := []climate.Link{
		{UID: "3", TaxID: "1"},
		{UID: "1", TaxID: "2"},
		{UID: "2", TaxID: "1"},
	}
	taxa := []climate.Taxon{
		{TaxID: "1", SpeciesKey: "A"},
		{TaxID: "2", SpeciesKey: "B"},
	}
	means := []climate.SpeciesMean{
		{SpeciesKey: "B", Values: []float64{2}},
		{SpeciesKey: "A", Values: []float64{1}},
	}
	res := climate.Join(links, taxa, means)
	var uids []string
	for _, r := range res {
		uids = append(uids, r.UID)
	}
	assert.Equal(t, []string{"3", "1", "2"}, uids)
}

func TestUnique(t *testing.T) {
	links := []climate.Link{
		{UID: "1", TaxID: "5"}, {UID: "2", TaxID: "3"}, {UID: "3", TaxID: "5"},
	}
	assert.Equal(t, []string{"5", "3"}, climate.UniqueTaxIDs(links))

	taxa := []climate.Taxon{
		{TaxID: "1", SpeciesKey: "9"}, {TaxID: "2", SpeciesKey: "9"},
		{TaxID: "3", SpeciesKey: "4"},
	}
	assert.Equal(t, []string{"9", "4"}, climate.UniqueSpeciesKeys(taxa))
}

func TestValues(t *testing.T) {
	assert.Equal(t, "", climate.FormatValue(nan))
	assert.Equal(t, "12.346", climate.FormatValue(12.346))
	assert.Equal(t, "-3", climate.FormatValue(-3))

	for _, s := range []string{"", " ", "nan", "NaN"} {
		v, err := climate.ParseValue(s)
		require.NoError(t, err)
		assert.True(t, math.IsNaN(v), s)
	}
	v, err := climate.ParseValue("0")
	require.NoError(t, err)
	assert.Equal(t, 0.0, v)
	_, err = climate.ParseValue("abc")
	assert.Error(t, err)
}

func TestTaxaCSV(t *testing.T) {
	var buf bytes.Buffer
	names := []climate.TaxonName{
		{TaxID: "3702", Name: "Arabidopsis thaliana"},
		{TaxID: "1", Name: "Rosa sp. clone A, B"},
	}
	require.NoError(t, climate.WriteTaxonNames(&buf, names))
	assert.Contains(t, buf.String(), `1,"Rosa sp. clone A, B"`)
	res, err := climate.ReadTaxonNames(&buf)
	require.NoError(t, err)
	assert.Equal(t, names, res)

	_, err = climate.ReadLinks(strings.NewReader("1,2,3\n"))
	assert.Error(t, err, "wrong number of fields")
}

func TestSamplesCSV(t *testing.T) {
	var buf bytes.Buffer
	sw, err := climate.NewSampleWriter(&buf, 2)
	require.NoError(t, err)
	require.NoError(t, sw.Write("5", []float64{1.5, nan}))
	require.NoError(t, sw.Write("6", []float64{0, -2}))
	assert.Error(t, sw.Write("7", []float64{1}))
	require.NoError(t, sw.Flush())
	assert.Equal(t, "Species Key,BIO1,BIO2\n5,1.5,\n6,0,-2\n", buf.String())

	var res []climate.Sample
	bands, err := climate.ReadSamples(&buf, func(s climate.Sample) error {
		res = append(res, s)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, bands)
	require.Len(t, res, 2)
	assert.True(t, math.IsNaN(res[0].Values[1]))
	assert.Equal(t, []float64{0, -2}, res[1].Values)
}

func TestRowsCSV(t *testing.T) {
	rows := []climate.Row{
		{
			UID: "1",
			Taxon: climate.Taxon{
				TaxID: "100", SpeciesKey: "S1", Phylum: "Tracheophyta",
				Order: "Poales", Family: "Poaceae", Genus: "Oryza",
				Species: "Oryza sativa",
			},
			Values: []float64{1, nan},
		},
	}
	var buf bytes.Buffer
	require.NoError(t, climate.WriteRows(&buf, rows, 2))
	assert.True(t, strings.HasPrefix(buf.String(),
		"UID,Taxonomy ID,Species Key,Phylum,Order,Family,Genus,Species,BIO1,BIO2\n"))

	res, bands, err := climate.ReadRows(&buf)
	require.NoError(t, err)
	assert.Equal(t, 2, bands)
	require.Len(t, res, 1)
	assert.Equal(t, rows[0].Taxon, res[0].Taxon)
	assert.True(t, math.IsNaN(res[0].Values[1]))
}

func TestLocationsCSV(t *testing.T) {
	var buf bytes.Buffer
	lw := climate.NewLocationWriter(&buf)
	require.NoError(t, lw.Write(climate.Location{SpeciesKey: "5", X: -1.25, Y: 40}))
	require.NoError(t, lw.Write(climate.Location{SpeciesKey: "7", X: 10, Y: -3.5}))
	require.NoError(t, lw.Flush())
	assert.Equal(t, "5,-1.25,40\n7,10,-3.5\n", buf.String())

	var res []climate.Location
	err := climate.ReadLocations(&buf, func(l climate.Location) error {
		res = append(res, l)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []climate.Location{
		{SpeciesKey: "5", X: -1.25, Y: 40},
		{SpeciesKey: "7", X: 10, Y: -3.5},
	}, res)

	err = climate.ReadLocations(strings.NewReader("5,a,1\n"),
		func(climate.Location) error { return nil })
	assert.Error(t, err)
}
